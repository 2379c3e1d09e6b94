// Package session runs the per-connection command state machine:
// one AUTH attempt, then LIST/GET/PUT/QUIT until the connection closes.
package session

import (
	"errors"
	"io"
	"log"
	"strings"
	"time"

	"dev.c0redev.fshare/internal/proto"
	"dev.c0redev.fshare/internal/sandbox"
	"dev.c0redev.fshare/internal/server/auth"
	"dev.c0redev.fshare/internal/store"
	"dev.c0redev.fshare/internal/transfer"
	"dev.c0redev.fshare/internal/xform"
)

// ErrAuthFailed: the single AUTH attempt was rejected.
var ErrAuthFailed = errors.New("auth failed")

// maxListBody bounds the LIST reply so it always fits in one frame.
var maxListBody = proto.MaxFrameLength

// State of a session.
type State int

const (
	Unauthenticated State = iota
	Authenticated
	Closed
)

func (s State) String() string {
	switch s {
	case Unauthenticated:
		return "unauthenticated"
	case Authenticated:
		return "authenticated"
	case Closed:
		return "closed"
	}
	return "unknown"
}

// Recorder stores transfer outcomes (*store.DB implements it).
type Recorder interface {
	RecordTransfer(t *store.Transfer) error
}

// Env: collaborators shared by all sessions; read-only after setup.
// Every field except Recorder and IdleTimeout is required.
type Env struct {
	Auth        auth.Authenticator
	Root        *sandbox.Root // LIST and GET
	Uploads     *sandbox.Root // PUT
	Transform   xform.Transform
	Locks       *sandbox.PathLocks
	Recorder    Recorder      // opt
	Stats       *Stats
	IdleTimeout time.Duration // 0 = wait forever for the next command
}

type readDeadliner interface {
	SetReadDeadline(t time.Time) error
}

// Session: one connection's auth + command dispatch.
type Session struct {
	ID    string
	conn  io.ReadWriteCloser
	env   *Env
	state State
	user  string
}

// New returns Session in Unauthenticated state.
func New(id string, conn io.ReadWriteCloser, env *Env) *Session {
	return &Session{ID: id, conn: conn, env: env}
}

// User returns authenticated user ("" before AUTH_OK).
func (s *Session) User() string { return s.user }

// Run drives the session to Closed and closes conn. Returns nil after QUIT
// or a clean peer close between commands, ErrAuthFailed on rejected AUTH,
// else the transport or file error that ended it.
func (s *Session) Run() error {
	s.env.Stats.Sessions.Add(1)
	s.env.Stats.Active.Add(1)
	defer s.env.Stats.Active.Add(-1)
	defer s.close()

	if err := s.authenticate(); err != nil {
		return err
	}
	for s.state == Authenticated {
		if err := s.step(); err != nil {
			return err
		}
	}
	return nil
}

func (s *Session) close() {
	s.state = Closed
	_ = s.conn.Close()
}

func (s *Session) authenticate() error {
	line, err := proto.RecvText(s.conn)
	if err != nil {
		return err
	}
	cmd := proto.ParseCommand(line)
	user, password := cmd.Arg(0), cmd.Arg(1)
	ok := false
	if cmd.Name == proto.CmdAuth && user != "" && password != "" {
		ok, err = s.env.Auth.Authenticate(user, password)
		if err != nil {
			log.Printf("session %s: credential store: %v", s.ID, err)
			ok = false
		}
	}
	if !ok {
		s.env.Stats.AuthFailures.Add(1)
		log.Printf("session %s: auth failed (user %q)", s.ID, user)
		_ = proto.SendText(s.conn, proto.RespAuthFail)
		return ErrAuthFailed
	}
	if err := proto.SendText(s.conn, proto.RespAuthOK); err != nil {
		return err
	}
	s.state = Authenticated
	s.user = user
	log.Printf("session %s: auth ok (user %q)", s.ID, user)
	return nil
}

func (s *Session) step() error {
	line, err := s.recvCommand()
	if errors.Is(err, io.EOF) {
		// peer closed between commands
		s.state = Closed
		return nil
	}
	if err != nil {
		return err
	}
	cmd := proto.ParseCommand(line)
	switch cmd.Name {
	case proto.CmdList:
		return s.list()
	case proto.CmdGet:
		return s.get(cmd.Arg(0))
	case proto.CmdPut:
		return s.put(cmd.Arg(0))
	case proto.CmdQuit:
		s.state = Closed
		return proto.SendText(s.conn, proto.RespBye)
	default:
		return s.sendErr(proto.ReasonUnknownCmd)
	}
}

func (s *Session) recvCommand() (string, error) {
	d, ok := s.conn.(readDeadliner)
	if !ok || s.env.IdleTimeout <= 0 {
		return proto.RecvText(s.conn)
	}
	if err := d.SetReadDeadline(time.Now().Add(s.env.IdleTimeout)); err != nil {
		return "", &proto.TransportError{Op: "set deadline", Err: err}
	}
	line, err := proto.RecvText(s.conn)
	if err != nil {
		return "", err
	}
	if err := d.SetReadDeadline(time.Time{}); err != nil {
		return "", &proto.TransportError{Op: "clear deadline", Err: err}
	}
	return line, nil
}

func (s *Session) sendErr(reason string) error {
	return proto.SendText(s.conn, proto.ErrFrame(reason))
}

func (s *Session) list() error {
	names, err := s.env.Root.List(s.env.Root.ChildName(s.env.Uploads))
	if err != nil {
		log.Printf("session %s: list: %v", s.ID, err)
		return s.sendErr(proto.ReasonListFailed)
	}
	var b strings.Builder
	for _, n := range names {
		b.WriteString(n)
		b.WriteByte('\n')
	}
	if b.Len() > maxListBody {
		log.Printf("session %s: list: %d bytes exceeds frame limit", s.ID, b.Len())
		return s.sendErr(proto.ReasonListFailed)
	}
	if err := proto.SendText(s.conn, proto.RespOK); err != nil {
		return err
	}
	return proto.SendText(s.conn, b.String())
}

func (s *Session) get(name string) error {
	path, err := s.env.Root.Resolve(name)
	if err != nil {
		return s.sendErr(proto.ReasonBadName)
	}
	unlock := s.env.Locks.Lock(path)
	defer unlock()

	src, err := transfer.OpenSource(path)
	if err != nil {
		return s.sendErr(proto.ReasonNotFound)
	}
	defer src.Close()
	if err := proto.SendText(s.conn, proto.RespOK); err != nil {
		return err
	}
	d, err := src.Send(s.conn, s.env.Transform, nil)
	s.finish(store.DirGet, name, d, err)
	return err
}

func (s *Session) put(name string) error {
	path, err := s.env.Uploads.Resolve(name)
	if err != nil {
		return s.sendErr(proto.ReasonBadName)
	}
	unlock := s.env.Locks.Lock(path)
	defer unlock()

	if err := proto.SendText(s.conn, proto.RespOK); err != nil {
		return err
	}
	d, err := transfer.RecvFile(s.conn, path, s.env.Transform, nil)
	s.finish(store.DirPut, name, d, err)
	return err
}

// finish updates counters, logs and records one transfer.
func (s *Session) finish(dir, name string, d *transfer.Descriptor, err error) {
	if d == nil {
		d = &transfer.Descriptor{}
	}
	st := s.env.Stats
	st.Transfers.Add(1)
	if dir == store.DirGet {
		st.BytesSent.Add(d.BytesMoved)
	} else {
		st.BytesReceived.Add(d.BytesMoved)
	}
	rec := &store.Transfer{
		SessionID:  s.ID,
		Login:      s.user,
		Direction:  dir,
		Name:       name,
		TotalSize:  d.TotalSize,
		BytesMoved: d.BytesMoved,
		OK:         err == nil,
	}
	if err != nil {
		st.FailedXfers.Add(1)
		rec.Error = err.Error()
		log.Printf("session %s: %s %s failed after %d/%d bytes: %v", s.ID, dir, name, d.BytesMoved, d.TotalSize, err)
	} else {
		log.Printf("session %s: %s %s (%d bytes)", s.ID, dir, name, d.BytesMoved)
	}
	if s.env.Recorder != nil {
		if rerr := s.env.Recorder.RecordTransfer(rec); rerr != nil {
			log.Printf("session %s: record transfer: %v", s.ID, rerr)
		}
	}
}
