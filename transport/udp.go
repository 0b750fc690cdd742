package transport

import (
	"net"
	"sync"
	"time"

	"github.com/foundation42/microkernel/message"
)

// UDPTransport implements Transport over a datagram socket: a bound UDP
// socket learns its peer from the first datagram it receives and is
// "effectively connected" thereafter; oversize frames (ones that wouldn't
// fit one datagram) fail on Send rather than fragmenting.
type UDPTransport struct {
	mu       sync.Mutex
	conn     *net.UDPConn
	peerAddr *net.UDPAddr
	peerNode uint32
	bound    bool // true once peerAddr has been learned (bind mode) or dialed (connect mode)
}

// maxDatagram is a conservative UDP payload ceiling (well under the 1500
// byte Ethernet MTU minus IP/UDP headers) that keeps frames from needing
// fragmentation at the IP layer.
const maxDatagram = 1400

// UDPBind opens a UDP socket on addr; the peer is learned from the first
// received datagram.
func UDPBind(addr string) (*UDPTransport, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, err
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return nil, err
	}
	return &UDPTransport{conn: conn}, nil
}

// UDPConnect opens a UDP socket pre-connected to addr.
func UDPConnect(addr string) (*UDPTransport, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, err
	}
	conn, err := net.DialUDP("udp", nil, udpAddr)
	if err != nil {
		return nil, err
	}
	return &UDPTransport{conn: conn, peerAddr: udpAddr, bound: true}, nil
}

// Send implements Transport.
func (t *UDPTransport) Send(msg message.Message) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	frame := EncodeFrame(msg)
	if len(frame) > maxDatagram {
		return false
	}
	if t.peerAddr == nil {
		return false
	}
	var n int
	var err error
	if t.conn.RemoteAddr() != nil {
		// UDPConnect's socket is already connected; WriteToUDP is refused on it.
		n, err = t.conn.Write(frame)
	} else {
		n, err = t.conn.WriteToUDP(frame, t.peerAddr)
	}
	return err == nil && n == len(frame)
}

// Recv implements Transport; it never blocks, using a read deadline in the
// immediate past.
func (t *UDPTransport) Recv() (message.Message, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	buf := make([]byte, 64*1024)
	_ = t.conn.SetReadDeadline(time.Now())
	n, from, err := t.conn.ReadFromUDP(buf)
	_ = t.conn.SetReadDeadline(time.Time{})
	if err != nil || n == 0 {
		return message.Message{}, false
	}

	msg, derr := DecodeFrame(buf[:n])
	if derr != nil {
		return message.Message{}, false
	}

	if t.peerAddr == nil {
		t.peerAddr = from
	}
	t.peerNode = msg.Source.Node
	t.bound = true
	return msg, true
}

// IsConnected implements Transport.
func (t *UDPTransport) IsConnected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.bound
}

// PeerNode implements Transport.
func (t *UDPTransport) PeerNode() uint32 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.peerNode
}

// FD implements Transport; UDP is read via Go's deadline-based Recv rather
// than the raw reactor.
func (t *UDPTransport) FD() int { return -1 }

// Close implements Transport.
func (t *UDPTransport) Close() error {
	return t.conn.Close()
}
