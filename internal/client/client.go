// Package client speaks the fshare control protocol from the client side.
package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"dev.c0redev.fshare/internal/proto"
	"dev.c0redev.fshare/internal/transfer"
	"dev.c0redev.fshare/internal/transport"
	"dev.c0redev.fshare/internal/xform"
)

var ErrAuthFailed = errors.New("authentication failed")

// ServerError: server answered "ERR <reason>".
type ServerError struct {
	Reason string
}

func (e *ServerError) Error() string {
	return "server: ERR " + e.Reason
}

// IsReason true if err is a ServerError with reason.
func IsReason(err error, reason string) bool {
	var se *ServerError
	return errors.As(err, &se) && se.Reason == reason
}

// UnexpectedReply: server sent something outside the vocabulary.
type UnexpectedReply struct {
	Cmd   string
	Reply string
}

func (e *UnexpectedReply) Error() string {
	return fmt.Sprintf("%s: unexpected reply %q", e.Cmd, e.Reply)
}

// Client: one authenticated connection. Not safe for concurrent use.
// After a transfer error the stream position is lost; Close it.
type Client struct {
	conn      net.Conn
	transform xform.Transform
	// Progress opt, called per chunk during Get/Put.
	Progress transfer.ProgressFunc
}

// New wraps an established conn.
func New(conn net.Conn, t xform.Transform) *Client {
	return &Client{conn: conn, transform: t}
}

// Dial connects over TCP.
func Dial(ctx context.Context, addr string, t xform.Transform) (*Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	return New(conn, t), nil
}

// DialQUIC connects over QUIC (one stream).
func DialQUIC(ctx context.Context, addr string, t xform.Transform) (*Client, error) {
	conn, err := transport.DialStream(ctx, addr, nil)
	if err != nil {
		return nil, err
	}
	return New(conn, t), nil
}

// Conn returns underlying conn (e.g. deadline).
func (c *Client) Conn() net.Conn { return c.conn }

// Close closes the connection without QUIT.
func (c *Client) Close() error { return c.conn.Close() }

// Auth sends AUTH; ErrAuthFailed on AUTH_FAIL (server then closes).
func (c *Client) Auth(user, password string) error {
	resp, err := c.roundTrip(proto.CmdAuth + " " + user + " " + password)
	if err != nil {
		return err
	}
	switch resp {
	case proto.RespAuthOK:
		return nil
	case proto.RespAuthFail:
		return ErrAuthFailed
	}
	return &UnexpectedReply{Cmd: proto.CmdAuth, Reply: resp}
}

// List returns remote names in server order.
func (c *Client) List() ([]string, error) {
	if err := c.expectOK(proto.CmdList, proto.CmdList); err != nil {
		return nil, err
	}
	body, err := proto.RecvText(c.conn)
	if err != nil {
		return nil, err
	}
	body = strings.TrimSuffix(body, "\n")
	if body == "" {
		return nil, nil
	}
	return strings.Split(body, "\n"), nil
}

// Get downloads name into localPath (truncated first).
func (c *Client) Get(name, localPath string) (*transfer.Descriptor, error) {
	if err := c.expectOK(proto.CmdGet, proto.CmdGet+" "+name); err != nil {
		return nil, err
	}
	return transfer.RecvFile(c.conn, localPath, c.transform, c.Progress)
}

// Put uploads localPath under its base name.
func (c *Client) Put(localPath string) (*transfer.Descriptor, error) {
	return c.PutAs(localPath, BaseName(localPath))
}

// PutAs uploads localPath as name. The local file is opened before PUT is
// sent so a missing file does not leave the server waiting for a payload.
func (c *Client) PutAs(localPath, name string) (*transfer.Descriptor, error) {
	src, err := transfer.OpenSource(localPath)
	if err != nil {
		return nil, err
	}
	defer src.Close()
	if err := c.expectOK(proto.CmdPut, proto.CmdPut+" "+name); err != nil {
		return nil, err
	}
	return src.Send(c.conn, c.transform, c.Progress)
}

// Quit sends QUIT, waits for BYE, closes.
func (c *Client) Quit() error {
	defer c.conn.Close()
	resp, err := c.roundTrip(proto.CmdQuit)
	if err != nil {
		return err
	}
	if resp != proto.RespBye {
		return &UnexpectedReply{Cmd: proto.CmdQuit, Reply: resp}
	}
	return nil
}

func (c *Client) roundTrip(line string) (string, error) {
	if err := proto.SendText(c.conn, line); err != nil {
		return "", err
	}
	return proto.RecvText(c.conn)
}

func (c *Client) expectOK(cmd, line string) error {
	resp, err := c.roundTrip(line)
	if err != nil {
		return err
	}
	if resp == proto.RespOK {
		return nil
	}
	if reason, ok := proto.ParseErr(resp); ok {
		return &ServerError{Reason: reason}
	}
	return &UnexpectedReply{Cmd: cmd, Reply: resp}
}

// BaseName: part after the last '/' or '\', whichever OS produced the path.
func BaseName(p string) string {
	if i := strings.LastIndexAny(p, "/\\"); i >= 0 {
		return p[i+1:]
	}
	return p
}
