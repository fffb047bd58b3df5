package wire

import (
	"fmt"

	"github.com/dep2p/kadtransport/pkg/types"
)

// maxDatagramSize is the largest UDP payload this codec will attempt to
// decode; larger datagrams are rejected rather than silently truncated.
const maxDatagramSize = 64 * 1024

// EncodeDatagram encodes msg as a single UDP payload (TomP2PSinglePacketUDP
// equivalent — one message, one datagram, no length prefix needed).
func EncodeDatagram(msg *types.Message) ([]byte, error) {
	payload, err := Encode(msg)
	if err != nil {
		return nil, err
	}
	if len(payload) > maxDatagramSize {
		return nil, fmt.Errorf("encoded message is %d bytes, exceeds datagram limit %d", len(payload), maxDatagramSize)
	}
	return payload, nil
}

// DecodeDatagram decodes a single UDP payload back into a Message.
func DecodeDatagram(payload []byte) (*types.Message, error) {
	if len(payload) > maxDatagramSize {
		return nil, fmt.Errorf("datagram is %d bytes, exceeds limit %d", len(payload), maxDatagramSize)
	}
	return Decode(payload)
}
