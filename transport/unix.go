package transport

import (
	"net"
	"os"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"github.com/foundation42/microkernel/internal/conc"
	"github.com/foundation42/microkernel/message"
)

// UnixTransport implements Transport over a Unix domain socket stream, with
// the same listen/connect/adopt split as TCPTransport. Destroying a
// UnixListen transport unlinks the socket path on close.
type UnixTransport struct {
	mu       sync.Mutex
	path     string // only set (and unlinked on Close) for listener transports
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

// UnixListen binds and listens eagerly on path.
func UnixListen(path string, nodeID uint32, identity string) (*UnixTransport, error) {
	_ = os.Remove(path) // stale socket from a prior crash
	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, err
	}
	t := &UnixTransport{
		path:     path,
		nodeID:   nodeID,
		identity: identity,
		listener: ln,
		accepted: newAcceptBox[net.Conn](),
		breaker:  newBreaker("unix-listen:" + path),
	}
	t.startAcceptLoop()
	return t, nil
}

func (t *UnixTransport) startAcceptLoop() {
	worker := conc.WorkerFunc(func(c conc.Context) conc.WorkerStatus {
		conn, err := t.listener.Accept()
		if err != nil {
			return conc.WorkerEnd
		}
		if !t.accepted.Offer(conn) {
			_ = conn.Close()
		}
		return conc.WorkerContinue
	})
	t.acceptor = conc.New(worker, conc.OptOnStop(func() {
		_ = t.listener.Close()
	}))
	t.acceptor.Start()
}

// UnixConnect dials path eagerly and performs the handshake.
func UnixConnect(path string, nodeID uint32, identity string) (*UnixTransport, error) {
	conn, err := net.Dial("unix", path)
	if err != nil {
		return nil, err
	}
	t := &UnixTransport{nodeID: nodeID, identity: identity, breaker: newBreaker("unix-connect:" + path)}
	if err := t.adopt(conn); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return t, nil
}

func (t *UnixTransport) adopt(conn net.Conn) error {
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

func (t *UnixTransport) tryAccept() {
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
func (t *UnixTransport) Send(msg message.Message) bool {
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

// Recv implements Transport.
func (t *UnixTransport) Recv() (message.Message, bool) {
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
		if ne, ok := err.(net.Error); !(ok && ne.Timeout()) {
			t.conn = nil
		}
	}

	msg, ok, derr := t.decoder.Next()
	if derr != nil {
		return message.Message{}, false
	}
	return msg, ok
}

// IsConnected implements Transport.
func (t *UnixTransport) IsConnected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.tryAccept()
	return t.conn != nil
}

// PeerNode implements Transport.
func (t *UnixTransport) PeerNode() uint32 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.peerNode
}

// FD implements Transport; see TCPTransport.FD.
func (t *UnixTransport) FD() int { return -1 }

// Close implements Transport, unlinking the socket path for listener
// transports.
func (t *UnixTransport) Close() error {
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
		_ = t.conn.Close()
	}
	if t.path != "" {
		return os.Remove(t.path)
	}
	return nil
}
