package transfer

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"dev.c0redev.fshare/internal/proto"
	"dev.c0redev.fshare/internal/xform"
)

var key = xform.NewXOR(xform.DefaultKey)

func randomBytes(n int, seed int64) []byte {
	b := make([]byte, n)
	rand.New(rand.NewSource(seed)).Read(b)
	return b
}

func TestSendRecvRoundtrip(t *testing.T) {
	dir := t.TempDir()
	for _, n := range []int{0, 1, ChunkSize - 1, ChunkSize, ChunkSize + 1, 150000} {
		data := randomBytes(n, int64(n))
		src := filepath.Join(dir, "src.bin")
		if err := os.WriteFile(src, data, 0644); err != nil {
			t.Fatal(err)
		}
		var wire bytes.Buffer
		source, err := OpenSource(src)
		if err != nil {
			t.Fatal(err)
		}
		sd, err := source.Send(&wire, key, nil)
		source.Close()
		if err != nil {
			t.Fatalf("send %d: %v", n, err)
		}
		if sd.BytesMoved != uint64(n) || sd.TotalSize != uint64(n) {
			t.Fatalf("send %d: descriptor %+v", n, sd)
		}
		if wire.Len() != proto.SizePrefixLen+n {
			t.Fatalf("send %d: wire len %d", n, wire.Len())
		}
		dst := filepath.Join(dir, "dst.bin")
		rd, err := RecvFile(&wire, dst, key, nil)
		if err != nil {
			t.Fatalf("recv %d: %v", n, err)
		}
		if rd.BytesMoved != uint64(n) {
			t.Fatalf("recv %d: moved %d", n, rd.BytesMoved)
		}
		got, err := os.ReadFile(dst)
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(got, data) {
			t.Fatalf("roundtrip %d: content mismatch", n)
		}
	}
}

func TestSendWireIsTransformed(t *testing.T) {
	var wire bytes.Buffer
	plain := []byte("hello")
	if _, err := Send(&wire, bytes.NewReader(plain), uint64(len(plain)), key, nil); err != nil {
		t.Fatal(err)
	}
	b := wire.Bytes()
	if binary.BigEndian.Uint64(b[:8]) != 5 {
		t.Fatalf("size prefix: %x", b[:8])
	}
	for i, c := range plain {
		if b[8+i] != c^xform.DefaultKey {
			t.Fatalf("byte %d: got %x", i, b[8+i])
		}
	}
}

func TestSendStopsAtDeclaredSize(t *testing.T) {
	var wire bytes.Buffer
	src := bytes.NewReader([]byte("abcdefgh"))
	d, err := Send(&wire, src, 3, key, nil)
	if err != nil {
		t.Fatal(err)
	}
	if d.BytesMoved != 3 || wire.Len() != proto.SizePrefixLen+3 {
		t.Fatalf("moved %d wire %d", d.BytesMoved, wire.Len())
	}
}

func TestSendSourceShrunk(t *testing.T) {
	_, err := Send(io.Discard, bytes.NewReader([]byte("ab")), 10, key, nil)
	var ioErr *IOError
	if !errors.As(err, &ioErr) {
		t.Fatalf("expected IOError, got %v", err)
	}
}

func TestOpenSourceMissing(t *testing.T) {
	_, err := OpenSource(filepath.Join(t.TempDir(), "nope"))
	var ioErr *IOError
	if !errors.As(err, &ioErr) || !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected IOError not-exist, got %v", err)
	}
}

func TestOpenSourceDirectory(t *testing.T) {
	if _, err := OpenSource(t.TempDir()); !errors.Is(err, ErrNotRegular) {
		t.Fatalf("expected ErrNotRegular, got %v", err)
	}
}

type closedWriter struct{}

func (closedWriter) Write(p []byte) (int, error) { return 0, io.ErrClosedPipe }

func TestSendPeerClosed(t *testing.T) {
	_, err := Send(closedWriter{}, bytes.NewReader([]byte("abc")), 3, key, nil)
	if !proto.IsTransport(err) {
		t.Fatalf("expected transport error, got %v", err)
	}
}

func TestRecvZeroSize(t *testing.T) {
	dir := t.TempDir()
	dst := filepath.Join(dir, "empty.bin")
	if err := os.WriteFile(dst, []byte("old contents"), 0644); err != nil {
		t.Fatal(err)
	}
	var wire bytes.Buffer
	_ = proto.WriteSize(&wire, 0)
	wire.WriteString("trailing") // must not be consumed
	if _, err := RecvFile(&wire, dst, key, nil); err != nil {
		t.Fatal(err)
	}
	st, err := os.Stat(dst)
	if err != nil || st.Size() != 0 {
		t.Fatalf("expected empty file: %v %v", st, err)
	}
	if wire.String() != "trailing" {
		t.Fatalf("zero size consumed payload bytes: %q", wire.String())
	}
}

func TestRecvEarlyCloseLeavesPartial(t *testing.T) {
	dir := t.TempDir()
	dst := filepath.Join(dir, "partial.bin")
	data := randomBytes(ChunkSize+100, 3)
	var wire bytes.Buffer
	if _, err := Send(&wire, bytes.NewReader(data), uint64(len(data)), key, nil); err != nil {
		t.Fatal(err)
	}
	cut := wire.Bytes()[:proto.SizePrefixLen+ChunkSize+10]
	d, err := RecvFile(bytes.NewReader(cut), dst, key, nil)
	if !proto.IsTransport(err) {
		t.Fatalf("expected transport error, got %v", err)
	}
	if d.BytesMoved != ChunkSize {
		t.Fatalf("moved %d", d.BytesMoved)
	}
	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, data[:ChunkSize]) {
		t.Fatalf("partial file: got %d bytes", len(got))
	}
}

func TestRecvMissingSize(t *testing.T) {
	dst := filepath.Join(t.TempDir(), "x")
	_, err := RecvFile(bytes.NewReader([]byte{0, 0, 1}), dst, key, nil)
	if !proto.IsTransport(err) {
		t.Fatalf("expected transport error, got %v", err)
	}
	if _, err := os.Stat(dst); !os.IsNotExist(err) {
		t.Fatal("destination should not be created before size is read")
	}
}

func TestRecvCreateFails(t *testing.T) {
	var wire bytes.Buffer
	_ = proto.WriteSize(&wire, 1)
	wire.WriteByte(0)
	_, err := RecvFile(&wire, filepath.Join(t.TempDir(), "no", "such", "dir"), key, nil)
	var ioErr *IOError
	if !errors.As(err, &ioErr) {
		t.Fatalf("expected IOError, got %v", err)
	}
}

func TestProgress(t *testing.T) {
	data := randomBytes(2*ChunkSize+5, 9)
	var calls []uint64
	var wire bytes.Buffer
	_, err := Send(&wire, bytes.NewReader(data), uint64(len(data)), key, func(done, total uint64) {
		if total != uint64(len(data)) {
			t.Fatalf("total %d", total)
		}
		calls = append(calls, done)
	})
	if err != nil {
		t.Fatal(err)
	}
	want := []uint64{ChunkSize, 2 * ChunkSize, uint64(len(data))}
	if len(calls) != len(want) {
		t.Fatalf("calls %v", calls)
	}
	for i := range want {
		if calls[i] != want[i] {
			t.Fatalf("calls %v want %v", calls, want)
		}
	}
	var out bytes.Buffer
	if _, err := Recv(&wire, &out, key, nil); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(out.Bytes(), data) {
		t.Fatal("Recv mismatch")
	}
}
