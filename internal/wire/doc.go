// Package wire implements the message grammar and the two framing
// strategies a DHT transport needs: a single-datagram UDP codec and a
// length-prefixed, cumulating TCP codec, mirroring TomP2P's
// TomP2PSinglePacketUDP / TomP2PCumulationTCP split.
package wire
