package wire

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/dep2p/kadtransport/pkg/types"
)

// maxFrameSize bounds a single TCP frame to guard against a peer claiming
// an absurd length prefix.
const maxFrameSize = 16 * 1024 * 1024

// TCPFramer reads and writes length-prefixed frames over a stream
// connection, cumulating partial reads the way TomP2PCumulationTCP
// accumulates inbound bytes until a full frame is available.
type TCPFramer struct {
	r *bufio.Reader
	w io.Writer
}

// NewTCPFramer wraps a stream connection for framed message I/O.
func NewTCPFramer(rw io.ReadWriter) *TCPFramer {
	return &TCPFramer{r: bufio.NewReader(rw), w: rw}
}

// WriteMessage encodes msg and writes it as a single length-prefixed frame.
func (f *TCPFramer) WriteMessage(msg *types.Message) error {
	payload, err := Encode(msg)
	if err != nil {
		return err
	}
	var prefix [4]byte
	binary.BigEndian.PutUint32(prefix[:], uint32(len(payload)))
	if _, err := f.w.Write(prefix[:]); err != nil {
		return fmt.Errorf("write frame length: %w", err)
	}
	if _, err := f.w.Write(payload); err != nil {
		return fmt.Errorf("write frame body: %w", err)
	}
	return nil
}

// ReadMessage blocks until a full frame has been cumulated and decodes it.
// It returns io.EOF (or a wrapped error) if the underlying reader is
// closed before a full frame arrives.
func (f *TCPFramer) ReadMessage() (*types.Message, error) {
	var prefix [4]byte
	if _, err := io.ReadFull(f.r, prefix[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(prefix[:])
	if n > maxFrameSize {
		return nil, fmt.Errorf("frame length %d exceeds maximum %d", n, maxFrameSize)
	}
	payload := make([]byte, n)
	if _, err := io.ReadFull(f.r, payload); err != nil {
		return nil, fmt.Errorf("read frame body: %w", err)
	}
	return Decode(payload)
}
