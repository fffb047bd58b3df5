package wire

import (
	"net"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dep2p/kadtransport/pkg/types"
)

func sampleMessage() *types.Message {
	sender := types.PeerAddress{
		PeerID:      types.NewRandomPeerID(),
		InetAddress: net.ParseIP("10.0.0.1"),
		TCPPort:     2424,
		UDPPort:     2424,
	}
	recipient := types.PeerAddress{
		PeerID:        types.NewRandomPeerID(),
		InetAddress:   net.ParseIP("10.0.0.2"),
		TCPPort:       8088,
		UDPPort:       8088,
		FirewalledTCP: true,
		Relayed:       true,
		Relays: []types.PeerSocketAddress{
			{InetAddress: net.ParseIP("10.0.0.3"), TCPPort: 4000, UDPPort: 4000},
			{InetAddress: net.ParseIP("10.0.0.4"), TCPPort: 4001, UDPPort: 4001},
		},
	}
	return &types.Message{
		ID:        42,
		Version:   1,
		Sender:    sender,
		Recipient: recipient,
		Command:   types.CommandDirectData,
		Type:      types.TypeRequest1,
		UDP:       true,
		KeepAlive: false,
		IntList:   []int{1, 2, 3},
		Buffers:   []types.Buffer{types.NewBuffer([]byte("hello")), types.NewBuffer([]byte("world"))},
		Payload:   map[string][]byte{"k": []byte("v")},
		Signature: []byte{0xAA, 0xBB},
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	msg := sampleMessage()

	encoded, err := Encode(msg)
	require.NoError(t, err)

	decoded, err := Decode(encoded)
	require.NoError(t, err)

	require.Equal(t, msg.ID, decoded.ID)
	require.Equal(t, msg.Version, decoded.Version)
	require.Equal(t, msg.Command, decoded.Command)
	require.Equal(t, msg.Type, decoded.Type)
	require.Equal(t, msg.UDP, decoded.UDP)
	require.Equal(t, msg.KeepAlive, decoded.KeepAlive)
	require.Equal(t, msg.IntList, decoded.IntList)
	require.Equal(t, msg.Payload, decoded.Payload)
	require.Equal(t, msg.Signature, decoded.Signature)
	require.Equal(t, msg.Sender.PeerID, decoded.Sender.PeerID)
	require.True(t, msg.Sender.InetAddress.Equal(decoded.Sender.InetAddress))
	require.Equal(t, msg.Recipient.Relayed, decoded.Recipient.Relayed)
	require.Equal(t, msg.Recipient.FirewalledTCP, decoded.Recipient.FirewalledTCP)
	require.Len(t, decoded.Recipient.Relays, 2)
	require.True(t, msg.Recipient.Relays[0].InetAddress.Equal(decoded.Recipient.Relays[0].InetAddress))

	require.Len(t, decoded.Buffers, 2)
	require.Equal(t, []byte("hello"), decoded.Buffers[0].Bytes())
	require.Equal(t, []byte("world"), decoded.Buffers[1].Bytes())
}

func TestEncodeDecodeEmptyMessage(t *testing.T) {
	msg := &types.Message{
		Sender:    types.PeerAddress{InetAddress: net.ParseIP("127.0.0.1")},
		Recipient: types.PeerAddress{InetAddress: net.ParseIP("127.0.0.1")},
	}
	encoded, err := Encode(msg)
	require.NoError(t, err)

	decoded, err := Decode(encoded)
	require.NoError(t, err)
	require.Nil(t, decoded.IntList)
	require.Nil(t, decoded.Buffers)
	require.Nil(t, decoded.Payload)
	require.Nil(t, decoded.Recipient.Relays)
}

func TestDatagramRoundTrip(t *testing.T) {
	msg := sampleMessage()
	payload, err := EncodeDatagram(msg)
	require.NoError(t, err)

	decoded, err := DecodeDatagram(payload)
	require.NoError(t, err)
	require.Equal(t, msg.ID, decoded.ID)
}

func TestTCPFramerReadWrite(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	msg := sampleMessage()

	done := make(chan error, 1)
	go func() {
		framer := NewTCPFramer(client)
		done <- framer.WriteMessage(msg)
	}()

	serverFramer := NewTCPFramer(server)
	got, err := serverFramer.ReadMessage()
	require.NoError(t, err)
	require.NoError(t, <-done)

	require.Equal(t, msg.ID, got.ID)
	require.Equal(t, msg.Command, got.Command)
}

func TestBufferDuplicateIndependentCursors(t *testing.T) {
	b := types.NewBuffer([]byte("payload"))
	dup := b.Duplicate()

	buf := make([]byte, 3)
	n, err := b.Reader().Read(buf)
	require.NoError(t, err)
	require.Equal(t, 3, n)
	require.Equal(t, "pay", string(buf[:n]))

	dupBuf := make([]byte, 3)
	n, err = dup.Reader().Read(dupBuf)
	require.NoError(t, err)
	require.Equal(t, "pay", string(dupBuf[:n]))
}
