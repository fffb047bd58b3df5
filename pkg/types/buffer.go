package types

import "bytes"

// Buffer wraps a byte payload with its own read cursor so that a Message
// can be duplicated — each duplicate's buffers are read independently, as
// required when the hole-punch orchestrator fans one message out to
// several UDP sockets.
type Buffer struct {
	reader *bytes.Reader
	data   []byte
}

// NewBuffer wraps data in a fresh Buffer with its cursor at the start.
func NewBuffer(data []byte) Buffer {
	return Buffer{reader: bytes.NewReader(data), data: data}
}

// Bytes returns the full underlying payload, irrespective of cursor
// position.
func (b Buffer) Bytes() []byte {
	return b.data
}

// Reader returns the buffer's independent bytes.Reader.
func (b Buffer) Reader() *bytes.Reader {
	return b.reader
}

// Duplicate returns a copy of b with a fresh read cursor over the same
// underlying bytes — mirroring TomP2P's `new Buffer(buf.buffer().duplicate())`.
func (b Buffer) Duplicate() Buffer {
	return NewBuffer(b.data)
}
