// Package transfer streams a file as an 8-byte big-endian size followed by
// size transformed bytes, in fixed chunks. The payload is not framed.
package transfer

import (
	"errors"
	"fmt"
	"io"
	"os"

	"dev.c0redev.fshare/internal/proto"
	"dev.c0redev.fshare/internal/xform"
)

// ChunkSize bytes moved per read/write cycle (64KiB, fixed).
const ChunkSize = 64 * 1024

var errSourceShrunk = errors.New("source ended before declared size")

// Descriptor tracks one GET/PUT.
type Descriptor struct {
	TotalSize  uint64
	BytesMoved uint64
	ChunkSize  int
}

// Remaining bytes not yet moved.
func (d *Descriptor) Remaining() uint64 {
	return d.TotalSize - d.BytesMoved
}

// ProgressFunc called after each chunk; nil = none.
type ProgressFunc func(done, total uint64)

// IOError: local file read/write failed (not the stream).
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// Send writes size prefix then size bytes from src, transformed, to w.
func Send(w io.Writer, src io.Reader, size uint64, t xform.Transform, progress ProgressFunc) (*Descriptor, error) {
	d := &Descriptor{TotalSize: size, ChunkSize: ChunkSize}
	if err := proto.WriteSize(w, size); err != nil {
		return d, err
	}
	buf := make([]byte, ChunkSize)
	for d.Remaining() > 0 {
		n := chunkLen(d.Remaining())
		if _, err := io.ReadFull(src, buf[:n]); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				err = errSourceShrunk
			}
			return d, &IOError{Op: "read source", Err: err}
		}
		t.Apply(buf[:n])
		if err := proto.WriteFull(w, buf[:n]); err != nil {
			return d, &proto.TransportError{Op: "send chunk", Err: err}
		}
		d.BytesMoved += uint64(n)
		if progress != nil {
			progress(d.BytesMoved, d.TotalSize)
		}
	}
	return d, nil
}

// ErrNotRegular: the path names a directory or other non-regular file.
var ErrNotRegular = errors.New("not a regular file")

// Source is a local file opened for sending; Size is fixed at open time.
type Source struct {
	f    *os.File
	Path string
	Size uint64
}

// OpenSource opens path for Send. Missing and non-regular files fail here,
// before anything is written to the peer.
func OpenSource(path string) (*Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &IOError{Op: "open", Path: path, Err: err}
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, &IOError{Op: "stat", Path: path, Err: err}
	}
	if !st.Mode().IsRegular() {
		f.Close()
		return nil, &IOError{Op: "open", Path: path, Err: ErrNotRegular}
	}
	return &Source{f: f, Path: path, Size: uint64(st.Size())}, nil
}

// Send streams the file to w (size prefix + chunks).
func (s *Source) Send(w io.Writer, t xform.Transform, progress ProgressFunc) (*Descriptor, error) {
	d, err := Send(w, s.f, s.Size, t, progress)
	var ioErr *IOError
	if errors.As(err, &ioErr) && ioErr.Path == "" {
		ioErr.Path = s.Path
	}
	return d, err
}

// Close closes the file.
func (s *Source) Close() error { return s.f.Close() }

// Recv reads size prefix then size bytes from r, transformed back, into dst.
func Recv(r io.Reader, dst io.Writer, t xform.Transform, progress ProgressFunc) (*Descriptor, error) {
	size, err := proto.ReadSize(r)
	if err != nil {
		return nil, err
	}
	return recvBody(r, dst, size, t, progress)
}

// RecvFile reads size, truncates/creates path, then streams into it.
// A failure leaves whatever was written on disk.
func RecvFile(r io.Reader, path string, t xform.Transform, progress ProgressFunc) (*Descriptor, error) {
	size, err := proto.ReadSize(r)
	if err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return &Descriptor{TotalSize: size, ChunkSize: ChunkSize}, &IOError{Op: "create", Path: path, Err: err}
	}
	d, err := recvBody(r, f, size, t, progress)
	if cerr := f.Close(); err == nil && cerr != nil {
		err = &IOError{Op: "close", Path: path, Err: cerr}
	}
	var ioErr *IOError
	if errors.As(err, &ioErr) && ioErr.Path == "" {
		ioErr.Path = path
	}
	return d, err
}

func recvBody(r io.Reader, dst io.Writer, size uint64, t xform.Transform, progress ProgressFunc) (*Descriptor, error) {
	d := &Descriptor{TotalSize: size, ChunkSize: ChunkSize}
	if size == 0 {
		return d, nil
	}
	buf := make([]byte, ChunkSize)
	for d.Remaining() > 0 {
		n := chunkLen(d.Remaining())
		if _, err := io.ReadFull(r, buf[:n]); err != nil {
			return d, &proto.TransportError{Op: "recv chunk", Err: err}
		}
		t.Apply(buf[:n])
		if _, err := dst.Write(buf[:n]); err != nil {
			return d, &IOError{Op: "write", Err: err}
		}
		d.BytesMoved += uint64(n)
		if progress != nil {
			progress(d.BytesMoved, d.TotalSize)
		}
	}
	return d, nil
}

func chunkLen(remaining uint64) int {
	if remaining < ChunkSize {
		return int(remaining)
	}
	return ChunkSize
}
