// Package server owns the listening sockets and hands each accepted
// connection to a command session.
package server

import (
	"context"
	"errors"
	"log"
	"net"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/net/netutil"

	"dev.c0redev.fshare/internal/server/session"
)

// Options control how connections are scheduled.
type Options struct {
	// Concurrent runs one goroutine per connection; false serves one
	// connection to completion before accepting the next.
	Concurrent bool
	// MaxConns caps open connections (0 = no cap).
	MaxConns int
}

// Server: accept loop(s) over shared session Env.
type Server struct {
	env  *session.Env
	opts Options

	mu     sync.Mutex
	conns  map[net.Conn]struct{}
	closed bool
}

// New returns Server; env is shared read-only by every session.
func New(env *session.Env, opts Options) *Server {
	return &Server{env: env, opts: opts, conns: make(map[net.Conn]struct{})}
}

// Stats returns shared counters.
func (s *Server) Stats() *session.Stats { return s.env.Stats }

// ListenAndServe listens on TCP addr and calls Serve.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve accepts on ln until ctx is done or ln fails. Cancelling ctx closes
// ln and every open session; Serve returns nil once its sessions have
// exited. A failing Accept closes ln and shuts s down the same way, then
// returns the error. ln is closed on every return path.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	if s.opts.MaxConns > 0 {
		ln = netutil.LimitListener(ln, s.opts.MaxConns)
	}
	defer ln.Close()
	shutdown := func() {
		ln.Close()
		s.closeAll()
	}
	stop := context.AfterFunc(ctx, shutdown)
	defer stop()

	var wg sync.WaitGroup
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				wg.Wait()
				return nil
			}
			shutdown()
			wg.Wait()
			return err
		}
		if s.opts.Concurrent {
			wg.Add(1)
			go func() {
				defer wg.Done()
				s.handle(conn)
			}()
			continue
		}
		s.handle(conn)
	}
}

func (s *Server) handle(conn net.Conn) {
	if !s.track(conn) {
		conn.Close()
		return
	}
	defer s.untrack(conn)

	id := uuid.NewString()[:8]
	log.Printf("session %s: connected from %s", id, conn.RemoteAddr())
	sess := session.New(id, conn, s.env)
	err := sess.Run()
	switch {
	case err == nil:
		log.Printf("session %s: disconnected (user %q)", id, sess.User())
	case errors.Is(err, session.ErrAuthFailed):
		log.Printf("session %s: closed after failed auth", id)
	default:
		log.Printf("session %s: closed (user %q): %v", id, sess.User(), err)
	}
}

func (s *Server) track(conn net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.conns[conn] = struct{}{}
	return true
}

func (s *Server) untrack(conn net.Conn) {
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
}

// closeAll closes open sessions; later connections are refused.
func (s *Server) closeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for c := range s.conns {
		c.Close()
	}
}

// ActiveConns: connections currently in a session.
func (s *Server) ActiveConns() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}
