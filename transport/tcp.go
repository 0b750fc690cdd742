package transport

import (
	"net"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"github.com/foundation42/microkernel/internal/conc"
	"github.com/foundation42/microkernel/message"
)

// TCPTransport implements Transport over a TCP stream, in three variants:
// TCPListen (binds+listens eagerly, accepts lazily on first Recv/Poll),
// TCPConnect (dials eagerly), and TCPFromAcceptedConn (adopts a conn a
// listener already accepted). Only the first accepted peer is served; later
// accepts on the same listener are closed immediately.
type TCPTransport struct {
	mu       sync.Mutex
	nodeID   uint32
	identity string

	listener net.Listener
	acceptor conc.Actor
	accepted *acceptBox[net.Conn]

	conn     net.Conn
	peerNode uint32
	decoder  streamDecoder

	breaker *gobreaker.CircuitBreaker
}

func newBreaker(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     10 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})
}

// TCPListen binds and listens eagerly on addr; the first accepted peer
// becomes this transport's connection.
func TCPListen(addr string, nodeID uint32, identity string) (*TCPTransport, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	t := &TCPTransport{
		nodeID:   nodeID,
		identity: identity,
		listener: ln,
		accepted: newAcceptBox[net.Conn](),
		breaker:  newBreaker("tcp-listen:" + addr),
	}
	t.startAcceptLoop()
	return t, nil
}

func (t *TCPTransport) startAcceptLoop() {
	worker := conc.WorkerFunc(func(c conc.Context) conc.WorkerStatus {
		conn, err := t.listener.Accept()
		if err != nil {
			return conc.WorkerEnd
		}
		if !t.accepted.Offer(conn) {
			// A peer is already connected; this transport serves exactly
			// one peer at a time, so subsequent accepts are closed.
			_ = conn.Close()
		}
		return conc.WorkerContinue
	})
	t.acceptor = conc.New(worker, conc.OptOnStop(func() {
		_ = t.listener.Close()
	}))
	t.acceptor.Start()
}

// TCPConnect dials addr eagerly and performs the handshake.
func TCPConnect(addr string, nodeID uint32, identity string) (*TCPTransport, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, err
	}
	t := &TCPTransport{nodeID: nodeID, identity: identity, breaker: newBreaker("tcp-connect:" + addr)}
	if err := t.adopt(conn); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return t, nil
}

// TCPFromAcceptedConn adopts a connection a caller already accepted
// (e.g. from its own net.Listener), performing the handshake.
func TCPFromAcceptedConn(conn net.Conn, nodeID uint32, identity string) (*TCPTransport, error) {
	t := &TCPTransport{nodeID: nodeID, identity: identity, breaker: newBreaker("tcp-accepted")}
	if err := t.adopt(conn); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return t, nil
}

func (t *TCPTransport) adopt(conn net.Conn) error {
	if err := writeHandshake(conn, t.nodeID, t.identity); err != nil {
		return err
	}
	peerNode, _, err := readHandshake(conn)
	if err != nil {
		return ErrHandshake
	}
	t.mu.Lock()
	t.conn = conn
	t.peerNode = peerNode
	t.mu.Unlock()
	return nil
}

func (t *TCPTransport) tryAccept() {
	if t.conn != nil {
		return
	}
	if conn, ok := t.accepted.Take(); ok {
		if err := t.adopt(conn); err != nil {
			_ = conn.Close()
		}
	}
}

// Send implements Transport.
func (t *TCPTransport) Send(msg message.Message) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.tryAccept()
	if t.conn == nil {
		return false
	}

	frame := EncodeFrame(msg)
	_, err := t.breaker.Execute(func() (any, error) {
		n, werr := t.conn.Write(frame)
		if werr == nil && n != len(frame) {
			werr = ErrShortWrite
		}
		return nil, werr
	})
	return err == nil
}

// Recv implements Transport. It is non-blocking: a short read deadline in
// the past makes conn.Read return immediately with whatever the kernel
// buffer already holds.
func (t *TCPTransport) Recv() (message.Message, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.tryAccept()
	if t.conn == nil {
		return message.Message{}, false
	}

	if msg, ok, err := t.decoder.Next(); ok || err != nil {
		if err != nil {
			return message.Message{}, false
		}
		return msg, true
	}

	_ = t.conn.SetReadDeadline(time.Now())
	buf := make([]byte, 64*1024)
	n, err := t.conn.Read(buf)
	_ = t.conn.SetReadDeadline(time.Time{})
	if n > 0 {
		t.decoder.Feed(buf[:n])
	}
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			// no data currently buffered
		} else {
			t.conn = nil // disconnected
		}
	}

	msg, ok, derr := t.decoder.Next()
	if derr != nil {
		return message.Message{}, false
	}
	return msg, ok
}

// IsConnected implements Transport.
func (t *TCPTransport) IsConnected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.tryAccept()
	return t.conn != nil
}

// PeerNode implements Transport.
func (t *TCPTransport) PeerNode() uint32 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.peerNode
}

// FD implements Transport; TCP connections are polled through Go's own
// runtime netpoller via Recv's deadline-based read, so there is no raw fd to
// hand the reactor.
func (t *TCPTransport) FD() int { return -1 }

// Close implements Transport.
func (t *TCPTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.listener != nil {
		// Closing the listener first unblocks the accept loop's pending
		// Accept() call; acceptor.Stop() would otherwise wait forever for
		// a goroutine that only exits once Accept() returns.
		_ = t.listener.Close()
	}
	if t.acceptor != nil {
		t.acceptor.Stop()
	}
	if t.accepted != nil {
		t.accepted.Stop()
	}
	if t.conn != nil {
		return t.conn.Close()
	}
	return nil
}
