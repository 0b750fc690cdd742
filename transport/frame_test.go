package transport

import (
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/foundation42/microkernel/message"
)

func TestEncodeDecodeFrameRoundTrip(t *testing.T) {
	msg := message.New(
		message.ActorID{Node: 3, Seq: 7},
		message.ActorID{Node: 1, Seq: 2},
		message.Type(42),
		[]byte("hello world"),
	)

	buf := EncodeFrame(msg)
	require.Equal(t, FixedHeaderLen+len(msg.Payload), len(buf))
	require.Equal(t, FrameLen(buf), len(buf))

	got, err := DecodeFrame(buf)
	require.NoError(t, err)
	require.Equal(t, msg.Source, got.Source)
	require.Equal(t, msg.Dest, got.Dest)
	require.Equal(t, msg.Type, got.Type)
	require.Equal(t, msg.Payload, got.Payload)
}

func TestDecodeFrameRejectsBadMagic(t *testing.T) {
	buf := EncodeFrame(message.New(message.Invalid, message.Invalid, 1, nil))
	buf[0] ^= 0xFF
	_, err := DecodeFrame(buf)
	require.ErrorIs(t, err, ErrBadMagic)
}

func TestDecodeFrameRejectsShort(t *testing.T) {
	_, err := DecodeFrame(make([]byte, FixedHeaderLen-1))
	require.Error(t, err)
}

func TestStreamDecoderHandlesFragmentation(t *testing.T) {
	msg1 := message.New(message.ActorID{Node: 1, Seq: 1}, message.ActorID{Node: 2, Seq: 1}, 1, []byte("abc"))
	msg2 := message.New(message.ActorID{Node: 1, Seq: 1}, message.ActorID{Node: 2, Seq: 2}, 2, nil)

	var full []byte
	full = append(full, EncodeFrame(msg1)...)
	full = append(full, EncodeFrame(msg2)...)

	d := &streamDecoder{}
	var got []message.Message
	for _, b := range full {
		d.Feed([]byte{b})
		for {
			msg, ok, err := d.Next()
			require.NoError(t, err)
			if !ok {
				break
			}
			got = append(got, msg)
		}
	}

	require.Len(t, got, 2)
	require.Equal(t, msg1.Type, got[0].Type)
	require.Equal(t, msg2.Type, got[1].Type)
}

// TestFrameRoundTripProperty: encode then decode
// always reproduces source, dest, type and payload exactly.
func TestFrameRoundTripProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		msg := message.New(
			message.ActorID{
				Node: uint32(rapid.IntRange(0, 15).Draw(rt, "srcNode")),
				Seq:  uint32(rapid.IntRange(0, 1<<20).Draw(rt, "srcSeq")),
			},
			message.ActorID{
				Node: uint32(rapid.IntRange(0, 15).Draw(rt, "dstNode")),
				Seq:  uint32(rapid.IntRange(0, 1<<20).Draw(rt, "dstSeq")),
			},
			message.Type(rapid.IntRange(0, 1<<20).Draw(rt, "type")),
			[]byte(rapid.StringN(0, 64, 64).Draw(rt, "payload")),
		)

		got, err := DecodeFrame(EncodeFrame(msg))
		require.NoError(rt, err)
		require.Equal(rt, msg.Source, got.Source)
		require.Equal(rt, msg.Dest, got.Dest)
		require.Equal(rt, msg.Type, got.Type)
		require.Equal(rt, msg.Payload, got.Payload)
	})
}
