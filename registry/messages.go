package registry

import (
	"encoding/binary"
	"errors"

	"github.com/google/uuid"

	"github.com/foundation42/microkernel/message"
)

// Status is the NS reply status code.
type Status uint8

const (
	StatusOK Status = iota
	StatusENOENT
	StatusEEXIST
	StatusEFULL
	StatusEINVAL
)

// Request is the decoded form of an NS_REGISTER/LOOKUP/LIST/MOUNT/UMOUNT
// message. Correlation is a uuid so a requester (see actor.PendingRequests) can
// match its reply even when several requests are in flight.
type Request struct {
	Correlation uuid.UUID
	Path        string
	Target      message.ActorID
}

// EncodeRequest packs a Request into a message payload: 16 bytes
// correlation id, path length-prefixed (u16), then the path bytes, then an 8
// byte ActorID (node:seq, used only by Register/Mount).
func EncodeRequest(req Request) []byte {
	buf := make([]byte, 16+2+len(req.Path)+8)
	copy(buf[0:16], req.Correlation[:])
	binary.BigEndian.PutUint16(buf[16:18], uint16(len(req.Path)))
	copy(buf[18:18+len(req.Path)], req.Path)
	off := 18 + len(req.Path)
	binary.BigEndian.PutUint32(buf[off:off+4], req.Target.Node)
	binary.BigEndian.PutUint32(buf[off+4:off+8], req.Target.Seq)
	return buf
}

// ErrMalformed is returned when a payload is too short to be a well-formed
// NS request or reply.
var ErrMalformed = errors.New("registry: malformed ns payload")

// DecodeRequest reverses EncodeRequest.
func DecodeRequest(payload []byte) (Request, error) {
	if len(payload) < 18 {
		return Request{}, ErrMalformed
	}
	var req Request
	copy(req.Correlation[:], payload[0:16])
	pathLen := int(binary.BigEndian.Uint16(payload[16:18]))
	if len(payload) < 18+pathLen+8 {
		return Request{}, ErrMalformed
	}
	req.Path = string(payload[18 : 18+pathLen])
	off := 18 + pathLen
	req.Target = message.ActorID{
		Node: binary.BigEndian.Uint32(payload[off : off+4]),
		Seq:  binary.BigEndian.Uint32(payload[off+4 : off+8]),
	}
	return req, nil
}

// Reply is the decoded NS_REPLY payload: status, the resolved id if
// applicable, and a bounded (<=1KiB) data buffer, e.g. a List() result.
type Reply struct {
	Correlation uuid.UUID
	Status      Status
	ID          message.ActorID
	Data        []byte
}

// MaxReplyData bounds a reply's data buffer.
const MaxReplyData = 1024

// EncodeReply packs a Reply into a message payload.
func EncodeReply(rep Reply) []byte {
	data := rep.Data
	if len(data) > MaxReplyData {
		data = data[:MaxReplyData]
	}
	buf := make([]byte, 16+1+8+2+len(data))
	copy(buf[0:16], rep.Correlation[:])
	buf[16] = byte(rep.Status)
	binary.BigEndian.PutUint32(buf[17:21], rep.ID.Node)
	binary.BigEndian.PutUint32(buf[21:25], rep.ID.Seq)
	binary.BigEndian.PutUint16(buf[25:27], uint16(len(data)))
	copy(buf[27:], data)
	return buf
}

// DecodeReply reverses EncodeReply.
func DecodeReply(payload []byte) (Reply, error) {
	if len(payload) < 27 {
		return Reply{}, ErrMalformed
	}
	var rep Reply
	copy(rep.Correlation[:], payload[0:16])
	rep.Status = Status(payload[16])
	rep.ID = message.ActorID{
		Node: binary.BigEndian.Uint32(payload[17:21]),
		Seq:  binary.BigEndian.Uint32(payload[21:25]),
	}
	dataLen := int(binary.BigEndian.Uint16(payload[25:27]))
	if len(payload) < 27+dataLen {
		return Reply{}, ErrMalformed
	}
	rep.Data = payload[27 : 27+dataLen]
	return rep, nil
}

// Handle processes one NS_* message against reg and returns the reply
// message to send back to msg.Source. Callers (the runtime, dispatching a
// message addressed to the registry's own actor) are expected to send the
// result with type message.NSReply.
func Handle(reg *Registry, self message.ActorID, msg message.Message) message.Message {
	req, err := DecodeRequest(msg.Payload)
	if err != nil {
		return message.New(self, msg.Source, message.NSReply, EncodeReply(Reply{Status: StatusEINVAL}))
	}

	var rep Reply
	rep.Correlation = req.Correlation

	switch msg.Type {
	case message.NSRegister:
		switch regErr := reg.Register(req.Path, req.Target); regErr {
		case nil:
			rep.Status = StatusOK
			rep.ID = req.Target
		case ErrAlreadyExists:
			rep.Status = StatusEEXIST
		default:
			rep.Status = StatusEINVAL
		}

	case message.NSLookup:
		id, lookErr := reg.Lookup(req.Path)
		if lookErr != nil {
			rep.Status = StatusENOENT
		} else {
			rep.Status = StatusOK
			rep.ID = id
		}

	case message.NSList:
		entries := reg.List(req.Path)
		rep.Status = StatusOK
		joined := ""
		for i, e := range entries {
			if i > 0 {
				joined += "\n"
			}
			joined += e
		}
		rep.Data = []byte(joined)

	case message.NSMount:
		if mountErr := reg.Mount(req.Path, req.Target); mountErr != nil {
			rep.Status = StatusEINVAL
		} else {
			rep.Status = StatusOK
		}

	case message.NSUnmount:
		if unErr := reg.Unmount(req.Path); unErr != nil {
			rep.Status = StatusENOENT
		} else {
			rep.Status = StatusOK
		}

	default:
		rep.Status = StatusEINVAL
	}

	return message.New(self, msg.Source, message.NSReply, EncodeReply(rep))
}
