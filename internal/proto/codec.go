package proto

import (
	"encoding/binary"
	"io"
	"strings"
)

// WriteFull writes all of p, retrying short writes until done or w errors.
func WriteFull(w io.Writer, p []byte) error {
	for len(p) > 0 {
		n, err := w.Write(p)
		if err != nil {
			return err
		}
		if n == 0 {
			return io.ErrShortWrite
		}
		p = p[n:]
	}
	return nil
}

// SendFrame writes 4-byte length + payload to w.
func SendFrame(w io.Writer, payload []byte) error {
	if len(payload) > MaxFrameLength {
		return ErrFrameTooLarge
	}
	buf := make([]byte, FrameHeaderSize+len(payload))
	binary.BigEndian.PutUint32(buf[:FrameHeaderSize], uint32(len(payload)))
	copy(buf[FrameHeaderSize:], payload)
	if err := WriteFull(w, buf); err != nil {
		return &TransportError{Op: "send frame", Err: err}
	}
	return nil
}

// RecvFrame reads one frame; length checked against MaxFrameLength before alloc.
func RecvFrame(r io.Reader) ([]byte, error) {
	var header [FrameHeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, &TransportError{Op: "recv frame header", Err: err}
	}
	length := binary.BigEndian.Uint32(header[:])
	if length > MaxFrameLength {
		return nil, ErrFrameTooLarge
	}
	payload := make([]byte, length)
	if length == 0 {
		return payload, nil
	}
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, &TransportError{Op: "recv frame payload", Err: err}
	}
	return payload, nil
}

// SendText sends s as one frame.
func SendText(w io.Writer, s string) error {
	return SendFrame(w, []byte(s))
}

// RecvText reads one frame as string.
func RecvText(r io.Reader) (string, error) {
	b, err := RecvFrame(r)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// WriteSize writes the 8-byte big-endian size prefix (not framed).
func WriteSize(w io.Writer, size uint64) error {
	var b [SizePrefixLen]byte
	binary.BigEndian.PutUint64(b[:], size)
	if err := WriteFull(w, b[:]); err != nil {
		return &TransportError{Op: "send size", Err: err}
	}
	return nil
}

// ReadSize reads the 8-byte big-endian size prefix.
func ReadSize(r io.Reader) (uint64, error) {
	var b [SizePrefixLen]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, &TransportError{Op: "recv size", Err: err}
	}
	return binary.BigEndian.Uint64(b[:]), nil
}

// ErrFrame formats "ERR <reason>".
func ErrFrame(reason string) string {
	return RespErr + " " + reason
}

// ParseErr returns reason if s is an ERR reply.
func ParseErr(s string) (reason string, ok bool) {
	if s == RespErr {
		return "", true
	}
	if !strings.HasPrefix(s, RespErr+" ") {
		return "", false
	}
	return strings.TrimPrefix(s, RespErr+" "), true
}

// Command: parsed control line (leading token + rest split on whitespace).
type Command struct {
	Name string
	Args []string
}

// ParseCommand splits on whitespace; no quoting or escaping.
func ParseCommand(line string) Command {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return Command{}
	}
	return Command{Name: fields[0], Args: fields[1:]}
}

// Arg returns i-th arg or "".
func (c Command) Arg(i int) string {
	if i < 0 || i >= len(c.Args) {
		return ""
	}
	return c.Args[i]
}
