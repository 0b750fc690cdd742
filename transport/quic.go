package transport

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"math/big"
	"sync"
	"time"

	"github.com/quic-go/quic-go"

	"github.com/foundation42/microkernel/internal/conc"
	"github.com/foundation42/microkernel/message"
)

// QUICTransport is a stream transport over a single QUIC stream, offered
// alongside TCP/Unix: same framing, same handshake, same
// lazy-accept-on-first-recv/poll contract, just riding QUIC's 0-RTT-capable,
// multiplexable connection instead of a raw TCP socket.
type QUICTransport struct {
	mu       sync.Mutex
	nodeID   uint32
	identity string

	listener *quic.Listener
	acceptor conc.Actor
	accepted *acceptBox[quic.Connection]

	conn     quic.Connection
	stream   quic.Stream
	peerNode uint32
	decoder  streamDecoder
}

// QUICListen binds addr and listens eagerly, accepting the connection (and
// its first stream) lazily on first Recv/Poll, mirroring TCPListen.
func QUICListen(addr string, nodeID uint32, identity string) (*QUICTransport, error) {
	tlsConf, err := selfSignedTLSConfig()
	if err != nil {
		return nil, err
	}
	ln, err := quic.ListenAddr(addr, tlsConf, nil)
	if err != nil {
		return nil, err
	}
	t := &QUICTransport{
		nodeID:   nodeID,
		identity: identity,
		listener: ln,
		accepted: newAcceptBox[quic.Connection](),
	}
	t.startAcceptLoop()
	return t, nil
}

func (t *QUICTransport) startAcceptLoop() {
	worker := conc.WorkerFunc(func(c conc.Context) conc.WorkerStatus {
		conn, err := t.listener.Accept(context.Background())
		if err != nil {
			return conc.WorkerEnd
		}
		if !t.accepted.Offer(conn) {
			_ = conn.CloseWithError(0, "one peer already connected")
		}
		return conc.WorkerContinue
	})
	t.acceptor = conc.New(worker, conc.OptOnStop(func() {
		_ = t.listener.Close()
	}))
	t.acceptor.Start()
}

// QUICConnect dials addr eagerly, opens a stream, and performs the
// handshake.
func QUICConnect(addr string, nodeID uint32, identity string) (*QUICTransport, error) {
	tlsConf := &tls.Config{InsecureSkipVerify: true, NextProtos: []string{"microkernel"}}
	conn, err := quic.DialAddr(context.Background(), addr, tlsConf, nil)
	if err != nil {
		return nil, err
	}
	stream, err := conn.OpenStreamSync(context.Background())
	if err != nil {
		return nil, err
	}
	t := &QUICTransport{nodeID: nodeID, identity: identity}
	if err := t.adopt(conn, stream); err != nil {
		_ = conn.CloseWithError(0, "handshake failed")
		return nil, err
	}
	return t, nil
}

func (t *QUICTransport) adopt(conn quic.Connection, stream quic.Stream) error {
	if err := writeHandshake(stream, t.nodeID, t.identity); err != nil {
		return err
	}
	peerNode, _, err := readHandshake(stream)
	if err != nil {
		return ErrHandshake
	}
	t.mu.Lock()
	t.conn = conn
	t.stream = stream
	t.peerNode = peerNode
	t.mu.Unlock()
	return nil
}

func (t *QUICTransport) tryAccept() {
	if t.conn != nil {
		return
	}
	if conn, ok := t.accepted.Take(); ok {
		stream, err := conn.AcceptStream(context.Background())
		if err != nil {
			_ = conn.CloseWithError(0, "no stream")
			return
		}
		if err := t.adopt(conn, stream); err != nil {
			_ = conn.CloseWithError(0, "handshake failed")
		}
	}
}

// Send implements Transport.
func (t *QUICTransport) Send(msg message.Message) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.tryAccept()
	if t.stream == nil {
		return false
	}
	frame := EncodeFrame(msg)
	n, err := t.stream.Write(frame)
	return err == nil && n == len(frame)
}

// Recv implements Transport.
func (t *QUICTransport) Recv() (message.Message, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.tryAccept()
	if t.stream == nil {
		return message.Message{}, false
	}

	if msg, ok, err := t.decoder.Next(); ok || err != nil {
		if err != nil {
			return message.Message{}, false
		}
		return msg, true
	}

	_ = t.stream.SetReadDeadline(time.Now())
	buf := make([]byte, 64*1024)
	n, err := t.stream.Read(buf)
	_ = t.stream.SetReadDeadline(time.Time{})
	if n > 0 {
		t.decoder.Feed(buf[:n])
	}
	if err != nil {
		if ne, ok := err.(interface{ Timeout() bool }); !(ok && ne.Timeout()) {
			t.stream = nil
		}
	}

	msg, ok, derr := t.decoder.Next()
	if derr != nil {
		return message.Message{}, false
	}
	return msg, ok
}

// IsConnected implements Transport.
func (t *QUICTransport) IsConnected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.tryAccept()
	return t.stream != nil
}

// PeerNode implements Transport.
func (t *QUICTransport) PeerNode() uint32 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.peerNode
}

// FD implements Transport; QUIC runs over a UDP socket Go's runtime already
// polls internally, nothing to hand the reactor.
func (t *QUICTransport) FD() int { return -1 }

// Close implements Transport.
func (t *QUICTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	var listenErr error
	if t.listener != nil {
		// Closing the listener first unblocks the accept loop's pending
		// Accept() call; acceptor.Stop() would otherwise wait forever for
		// a goroutine that only exits once Accept() returns.
		listenErr = t.listener.Close()
	}
	if t.acceptor != nil {
		t.acceptor.Stop()
	}
	if t.accepted != nil {
		t.accepted.Stop()
	}
	if t.conn != nil {
		return t.conn.CloseWithError(0, "closed")
	}
	return listenErr
}

// selfSignedTLSConfig builds an ephemeral self-signed cert for QUIC's
// mandatory TLS handshake; node identity/trust is established by this
// kernel's own handshake frame, not by the TLS certificate chain —
// certificate-based trust is out of scope, actors trust each other within
// a node.
func selfSignedTLSConfig() (*tls.Config, error) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, err
	}
	template := x509.Certificate{SerialNumber: big.NewInt(1)}
	der, err := x509.CreateCertificate(rand.Reader, &template, &template, &key.PublicKey, key)
	if err != nil {
		return nil, err
	}
	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
	cert, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		return nil, err
	}
	return &tls.Config{Certificates: []tls.Certificate{cert}, NextProtos: []string{"microkernel"}}, nil
}
