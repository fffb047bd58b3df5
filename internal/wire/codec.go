package wire

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"net"

	"github.com/dep2p/kadtransport/pkg/types"
)

const (
	flagUDP       = 1 << 0
	flagKeepAlive = 1 << 1

	peerFlagFirewalledTCP = 1 << 0
	peerFlagFirewalledUDP = 1 << 1
	peerFlagRelayed       = 1 << 2
)

// Encode serializes msg into its wire representation. Decode(Encode(m))
// yields a Message equal to m.
func Encode(msg *types.Message) ([]byte, error) {
	var buf bytes.Buffer

	writeU32(&buf, uint32(msg.Version))
	writeU32(&buf, msg.ID)
	buf.WriteByte(byte(msg.Command))
	buf.WriteByte(byte(msg.Type))

	var flags byte
	if msg.UDP {
		flags |= flagUDP
	}
	if msg.KeepAlive {
		flags |= flagKeepAlive
	}
	buf.WriteByte(flags)

	if err := encodePeerAddress(&buf, msg.Sender); err != nil {
		return nil, fmt.Errorf("encode sender: %w", err)
	}
	if err := encodePeerAddress(&buf, msg.Recipient); err != nil {
		return nil, fmt.Errorf("encode recipient: %w", err)
	}

	writeU16(&buf, uint16(len(msg.IntList)))
	for _, v := range msg.IntList {
		writeU32(&buf, uint32(int32(v)))
	}

	writeU16(&buf, uint16(len(msg.Buffers)))
	for _, b := range msg.Buffers {
		data := b.Bytes()
		writeU32(&buf, uint32(len(data)))
		buf.Write(data)
	}

	writeU16(&buf, uint16(len(msg.Payload)))
	for k, v := range msg.Payload {
		writeU16(&buf, uint16(len(k)))
		buf.WriteString(k)
		writeU32(&buf, uint32(len(v)))
		buf.Write(v)
	}

	writeU16(&buf, uint16(len(msg.Signature)))
	buf.Write(msg.Signature)

	return buf.Bytes(), nil
}

// Decode parses a byte slice produced by Encode back into a Message.
func Decode(data []byte) (*types.Message, error) {
	r := bytes.NewReader(data)
	msg := &types.Message{}

	var err error
	var version, id uint32
	if version, err = readU32(r); err != nil {
		return nil, err
	}
	msg.Version = int(version)
	if id, err = readU32(r); err != nil {
		return nil, err
	}
	msg.ID = id

	cmd, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	msg.Command = types.Command(cmd)

	typ, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	msg.Type = types.MessageType(typ)

	flags, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	msg.UDP = flags&flagUDP != 0
	msg.KeepAlive = flags&flagKeepAlive != 0

	if msg.Sender, err = decodePeerAddress(r); err != nil {
		return nil, fmt.Errorf("decode sender: %w", err)
	}
	if msg.Recipient, err = decodePeerAddress(r); err != nil {
		return nil, fmt.Errorf("decode recipient: %w", err)
	}

	intCount, err := readU16(r)
	if err != nil {
		return nil, err
	}
	if intCount > 0 {
		msg.IntList = make([]int, intCount)
		for i := range msg.IntList {
			v, err := readU32(r)
			if err != nil {
				return nil, err
			}
			msg.IntList[i] = int(int32(v))
		}
	}

	bufCount, err := readU16(r)
	if err != nil {
		return nil, err
	}
	if bufCount > 0 {
		msg.Buffers = make([]types.Buffer, bufCount)
		for i := range msg.Buffers {
			n, err := readU32(r)
			if err != nil {
				return nil, err
			}
			data := make([]byte, n)
			if _, err := readFull(r, data); err != nil {
				return nil, err
			}
			msg.Buffers[i] = types.NewBuffer(data)
		}
	}

	payloadCount, err := readU16(r)
	if err != nil {
		return nil, err
	}
	if payloadCount > 0 {
		msg.Payload = make(map[string][]byte, payloadCount)
		for i := uint16(0); i < payloadCount; i++ {
			klen, err := readU16(r)
			if err != nil {
				return nil, err
			}
			key := make([]byte, klen)
			if _, err := readFull(r, key); err != nil {
				return nil, err
			}
			vlen, err := readU32(r)
			if err != nil {
				return nil, err
			}
			val := make([]byte, vlen)
			if _, err := readFull(r, val); err != nil {
				return nil, err
			}
			msg.Payload[string(key)] = val
		}
	}

	sigLen, err := readU16(r)
	if err != nil {
		return nil, err
	}
	if sigLen > 0 {
		msg.Signature = make([]byte, sigLen)
		if _, err := readFull(r, msg.Signature); err != nil {
			return nil, err
		}
	}

	return msg, nil
}

// EncodePeerAddress serializes a single PeerAddress to its wire form, the
// same encoding Encode uses for a Message's Sender/Recipient fields. Used
// outside this package to carry peer descriptors in a Message's Buffers,
// e.g. the tracker-get reply's result set.
func EncodePeerAddress(pa types.PeerAddress) ([]byte, error) {
	var buf bytes.Buffer
	if err := encodePeerAddress(&buf, pa); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodePeerAddress parses bytes produced by EncodePeerAddress back into a
// PeerAddress.
func DecodePeerAddress(data []byte) (types.PeerAddress, error) {
	return decodePeerAddress(bytes.NewReader(data))
}

func encodePeerAddress(buf *bytes.Buffer, pa types.PeerAddress) error {
	buf.Write(pa.PeerID[:])

	if err := encodeIP(buf, pa.InetAddress); err != nil {
		return err
	}
	writeU16(buf, uint16(pa.TCPPort))
	writeU16(buf, uint16(pa.UDPPort))

	var flags byte
	if pa.FirewalledTCP {
		flags |= peerFlagFirewalledTCP
	}
	if pa.FirewalledUDP {
		flags |= peerFlagFirewalledUDP
	}
	if pa.Relayed {
		flags |= peerFlagRelayed
	}
	buf.WriteByte(flags)

	buf.WriteByte(byte(len(pa.Relays)))
	for _, r := range pa.Relays {
		if err := encodeIP(buf, r.InetAddress); err != nil {
			return err
		}
		writeU16(buf, uint16(r.TCPPort))
		writeU16(buf, uint16(r.UDPPort))
	}
	return nil
}

func decodePeerAddress(r *bytes.Reader) (types.PeerAddress, error) {
	var pa types.PeerAddress

	if _, err := readFull(r, pa.PeerID[:]); err != nil {
		return pa, err
	}

	ip, err := decodeIP(r)
	if err != nil {
		return pa, err
	}
	pa.InetAddress = ip

	tcpPort, err := readU16(r)
	if err != nil {
		return pa, err
	}
	pa.TCPPort = int(tcpPort)

	udpPort, err := readU16(r)
	if err != nil {
		return pa, err
	}
	pa.UDPPort = int(udpPort)

	flags, err := r.ReadByte()
	if err != nil {
		return pa, err
	}
	pa.FirewalledTCP = flags&peerFlagFirewalledTCP != 0
	pa.FirewalledUDP = flags&peerFlagFirewalledUDP != 0
	pa.Relayed = flags&peerFlagRelayed != 0

	relayCount, err := r.ReadByte()
	if err != nil {
		return pa, err
	}
	if relayCount > 0 {
		pa.Relays = make([]types.PeerSocketAddress, relayCount)
		for i := range pa.Relays {
			ip, err := decodeIP(r)
			if err != nil {
				return pa, err
			}
			tcpPort, err := readU16(r)
			if err != nil {
				return pa, err
			}
			udpPort, err := readU16(r)
			if err != nil {
				return pa, err
			}
			pa.Relays[i] = types.PeerSocketAddress{InetAddress: ip, TCPPort: int(tcpPort), UDPPort: int(udpPort)}
		}
	}

	return pa, nil
}

func encodeIP(buf *bytes.Buffer, ip net.IP) error {
	v4 := ip.To4()
	if v4 != nil {
		buf.WriteByte(4)
		buf.Write(v4)
		return nil
	}
	v6 := ip.To16()
	if v6 != nil {
		buf.WriteByte(16)
		buf.Write(v6)
		return nil
	}
	buf.WriteByte(0)
	return nil
}

func decodeIP(r *bytes.Reader) (net.IP, error) {
	n, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	ip := make([]byte, n)
	if _, err := readFull(r, ip); err != nil {
		return nil, err
	}
	return net.IP(ip), nil
}

func writeU16(buf *bytes.Buffer, v uint16) {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	buf.Write(b[:])
}

func writeU32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

func readU16(r *bytes.Reader) (uint16, error) {
	var b [2]byte
	if _, err := readFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b[:]), nil
}

func readU32(r *bytes.Reader) (uint32, error) {
	var b [4]byte
	if _, err := readFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b[:]), nil
}

func readFull(r *bytes.Reader, buf []byte) (int, error) {
	n := 0
	for n < len(buf) {
		m, err := r.Read(buf[n:])
		n += m
		if err != nil {
			return n, err
		}
	}
	return n, nil
}
