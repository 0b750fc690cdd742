package transport

import (
	"encoding/binary"
	"errors"
	"io"
)

// handshakeLen is the fixed handshake header size: magic(4) + node_id(4) +
// identity[32].
const handshakeLen = 4 + 4 + 32

// writeHandshake writes the fixed handshake header to w.
func writeHandshake(w io.Writer, nodeID uint32, identity string) error {
	buf := make([]byte, handshakeLen)
	binary.BigEndian.PutUint32(buf[0:4], HandshakeMagic)
	binary.BigEndian.PutUint32(buf[4:8], nodeID)
	copy(buf[8:8+32], identity) // zero-padded, truncated at 32 bytes
	_, err := w.Write(buf)
	return err
}

// readHandshake reads and validates the peer's handshake header, returning
// its node id and identity string.
func readHandshake(r io.Reader) (peerNode uint32, identity string, err error) {
	buf := make([]byte, handshakeLen)
	if _, err = io.ReadFull(r, buf); err != nil {
		return 0, "", err
	}
	if binary.BigEndian.Uint32(buf[0:4]) != HandshakeMagic {
		return 0, "", errors.New("transport: handshake magic mismatch")
	}
	peerNode = binary.BigEndian.Uint32(buf[4:8])
	end := 8
	for end < handshakeLen && buf[end] != 0 {
		end++
	}
	identity = string(buf[8:end])
	return peerNode, identity, nil
}
