package transport

import (
	"encoding/binary"
	"errors"

	"github.com/foundation42/microkernel/message"
)

// FrameMagic is the fixed magic at the start of every wire frame.
const FrameMagic uint32 = 0x4D4B0100

// HandshakeMagic is the fixed magic at the start of the stream handshake
// header.
const HandshakeMagic uint32 = 0x4D4B3031

// FixedHeaderLen is the size, in bytes, of every field before the payload:
// magic(4) + source_node(4) + dest_actor_id(8) + source_actor_id(8) +
// type(4) + payload_len(4).
const FixedHeaderLen = 32

// EncodeFrame serializes msg per the kernel's fixed wire layout.
func EncodeFrame(msg message.Message) []byte {
	buf := make([]byte, FixedHeaderLen+len(msg.Payload))
	binary.BigEndian.PutUint32(buf[0:4], FrameMagic)
	binary.BigEndian.PutUint32(buf[4:8], msg.Source.Node)
	binary.BigEndian.PutUint32(buf[8:12], msg.Dest.Node)
	binary.BigEndian.PutUint32(buf[12:16], msg.Dest.Seq)
	binary.BigEndian.PutUint32(buf[16:20], msg.Source.Node)
	binary.BigEndian.PutUint32(buf[20:24], msg.Source.Seq)
	binary.BigEndian.PutUint32(buf[24:28], uint32(msg.Type))
	binary.BigEndian.PutUint32(buf[28:32], uint32(len(msg.Payload)))
	copy(buf[32:], msg.Payload)
	return buf
}

// ErrBadMagic is returned when a frame's leading magic doesn't match
// FrameMagic.
var ErrBadMagic = errors.New("transport: bad frame magic")

// DecodeFrame parses a complete frame (FixedHeaderLen + payload_len bytes)
// back into a Message. It does not consume a partial buffer; callers must
// have already accumulated a whole frame (see streamDecoder).
func DecodeFrame(buf []byte) (message.Message, error) {
	if len(buf) < FixedHeaderLen {
		return message.Message{}, errors.New("transport: short frame")
	}
	if binary.BigEndian.Uint32(buf[0:4]) != FrameMagic {
		return message.Message{}, ErrBadMagic
	}
	destNode := binary.BigEndian.Uint32(buf[8:12])
	destSeq := binary.BigEndian.Uint32(buf[12:16])
	srcNode := binary.BigEndian.Uint32(buf[16:20])
	srcSeq := binary.BigEndian.Uint32(buf[20:24])
	typ := message.Type(binary.BigEndian.Uint32(buf[24:28]))
	payloadLen := binary.BigEndian.Uint32(buf[28:32])
	if uint32(len(buf)-FixedHeaderLen) < payloadLen {
		return message.Message{}, errors.New("transport: truncated payload")
	}
	payload := append([]byte(nil), buf[FixedHeaderLen:FixedHeaderLen+int(payloadLen)]...)
	return message.Message{
		Source: message.ActorID{Node: srcNode, Seq: srcSeq},
		Dest:   message.ActorID{Node: destNode, Seq: destSeq},
		Type:   typ,
		Payload: payload,
	}, nil
}

// FrameLen reports how many bytes a complete frame needs once the fixed
// header (already available) has been read, or -1 if buf doesn't even hold
// the fixed header yet.
func FrameLen(buf []byte) int {
	if len(buf) < FixedHeaderLen {
		return -1
	}
	return FixedHeaderLen + int(binary.BigEndian.Uint32(buf[28:32]))
}

// streamDecoder accumulates bytes from a stream transport until a whole
// frame is present, tolerating arbitrary fragmentation from the underlying
// stream.
type streamDecoder struct {
	buf []byte
}

func (d *streamDecoder) Feed(b []byte) {
	d.buf = append(d.buf, b...)
}

// Next pops one complete frame off the front of the accumulated buffer, if
// one is available.
func (d *streamDecoder) Next() (message.Message, bool, error) {
	need := FrameLen(d.buf)
	if need < 0 || len(d.buf) < need {
		return message.Message{}, false, nil
	}
	msg, err := DecodeFrame(d.buf[:need])
	d.buf = d.buf[need:]
	if err != nil {
		return message.Message{}, false, err
	}
	return msg, true, nil
}
