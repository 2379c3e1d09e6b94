package transport

import (
	"context"
	"crypto/tls"
	"net"
	"sync"
	"time"

	"github.com/quic-go/quic-go"
)

// ALPN protocol id for fshare over QUIC.
const ALPN = "fshare/1"

// closeGrace: how long a closed stream waits for the peer before the
// QUIC connection is torn down, so queued bytes (e.g. BYE) still arrive.
const closeGrace = 5 * time.Second

func quicConfig() *quic.Config {
	return &quic.Config{
		MaxIdleTimeout:  30 * time.Second,
		KeepAlivePeriod: 10 * time.Second,
	}
}

// streamConn wraps one quic.Stream as net.Conn (one session per QUIC conn).
type streamConn struct {
	*quic.Stream
	conn      *quic.Conn
	closeOnce sync.Once
}

func (c *streamConn) LocalAddr() net.Addr  { return c.conn.LocalAddr() }
func (c *streamConn) RemoteAddr() net.Addr { return c.conn.RemoteAddr() }

// Close sends FIN, stops reading, then drops the QUIC conn once the peer
// hangs up or closeGrace passes.
func (c *streamConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		err = c.Stream.Close()
		c.Stream.CancelRead(0)
		go func() {
			select {
			case <-c.conn.Context().Done():
			case <-time.After(closeGrace):
			}
			_ = c.conn.CloseWithError(0, "")
		}()
	})
	return err
}

// ClientTLS TLS for QUIC client (InsecureSkipVerify, ALPN fshare/1).
func ClientTLS() *tls.Config {
	return &tls.Config{
		InsecureSkipVerify: true,
		MinVersion:         tls.VersionTLS13,
		NextProtos:         []string{ALPN},
	}
}

// DialStream dials QUIC to addr, one stream, returns net.Conn.
func DialStream(ctx context.Context, addr string, tlsConfig *tls.Config) (net.Conn, error) {
	if tlsConfig == nil {
		tlsConfig = ClientTLS()
	}
	conn, err := quic.DialAddr(ctx, addr, tlsConfig, quicConfig())
	if err != nil {
		return nil, err
	}
	stream, err := conn.OpenStreamSync(ctx)
	if err != nil {
		_ = conn.CloseWithError(0, "")
		return nil, err
	}
	return &streamConn{Stream: stream, conn: conn}, nil
}

// Listener adapts a QUIC listener to net.Listener: each accepted QUIC conn
// yields its first client-opened stream.
type Listener struct {
	ql     *quic.Listener
	ctx    context.Context
	cancel context.CancelFunc
	conns  chan net.Conn
	errc   chan error
}

// Listen QUIC on addr; tlsConfig must carry a certificate.
func Listen(addr string, tlsConfig *tls.Config) (*Listener, error) {
	ql, err := quic.ListenAddr(addr, tlsConfig, quicConfig())
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(context.Background())
	l := &Listener{ql: ql, ctx: ctx, cancel: cancel, conns: make(chan net.Conn), errc: make(chan error, 1)}
	go l.acceptLoop()
	return l, nil
}

func (l *Listener) acceptLoop() {
	for {
		qconn, err := l.ql.Accept(l.ctx)
		if err != nil {
			l.errc <- err
			return
		}
		go l.acceptStream(qconn)
	}
}

// acceptStream waits for the client's stream off the accept loop, so a
// slow client cannot hold up others.
func (l *Listener) acceptStream(qconn *quic.Conn) {
	stream, err := qconn.AcceptStream(l.ctx)
	if err != nil {
		_ = qconn.CloseWithError(0, "")
		return
	}
	sc := &streamConn{Stream: stream, conn: qconn}
	select {
	case l.conns <- sc:
	case <-l.ctx.Done():
		_ = qconn.CloseWithError(0, "")
	}
}

// Accept returns next stream as net.Conn.
func (l *Listener) Accept() (net.Conn, error) {
	select {
	case c := <-l.conns:
		return c, nil
	case err := <-l.errc:
		l.errc <- err
		return nil, err
	case <-l.ctx.Done():
		return nil, net.ErrClosed
	}
}

// Close stops accepting; live sessions are unaffected.
func (l *Listener) Close() error {
	l.cancel()
	return l.ql.Close()
}

// Addr returns local UDP addr.
func (l *Listener) Addr() net.Addr { return l.ql.Addr() }
