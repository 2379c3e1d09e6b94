package sandbox

import (
	"errors"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"
)

func TestValidName(t *testing.T) {
	for _, bad := range []string{"", "../etc/passwd", "a/b", "a\\b", "..", "x..y"} {
		if ValidName(bad) {
			t.Fatalf("%q should be rejected", bad)
		}
	}
	for _, good := range []string{"report.txt", "data-1.bin", ".hidden", "a b"} {
		if !ValidName(good) {
			t.Fatalf("%q should be accepted", good)
		}
	}
}

func TestResolve(t *testing.T) {
	dir := t.TempDir()
	r, err := NewRoot(dir)
	if err != nil {
		t.Fatal(err)
	}
	p, err := r.Resolve("report.txt")
	if err != nil {
		t.Fatal(err)
	}
	if p != filepath.Join(r.Dir(), "report.txt") {
		t.Fatalf("resolve: %q", p)
	}
	for _, bad := range []string{"", "../x", "a/b", "."} {
		if _, err := r.Resolve(bad); !errors.Is(err, ErrBadName) {
			t.Fatalf("%q: expected ErrBadName, got %v", bad, err)
		}
	}
}

func TestListExcludesUploadDir(t *testing.T) {
	dir := t.TempDir()
	uploads := filepath.Join(dir, "uploads")
	if err := EnsureDirs(dir, uploads); err != nil {
		t.Fatal(err)
	}
	for _, n := range []string{"sample.txt", "b.bin"} {
		if err := os.WriteFile(filepath.Join(dir, n), []byte(n), 0644); err != nil {
			t.Fatal(err)
		}
	}
	root, _ := NewRoot(dir)
	up, _ := NewRoot(uploads)
	if got := root.ChildName(up); got != "uploads" {
		t.Fatalf("ChildName: %q", got)
	}
	names, err := root.List(root.ChildName(up))
	if err != nil {
		t.Fatal(err)
	}
	sort.Strings(names)
	if len(names) != 2 || names[0] != "b.bin" || names[1] != "sample.txt" {
		t.Fatalf("List: %v", names)
	}
}

func TestChildNameUnrelated(t *testing.T) {
	a, _ := NewRoot(t.TempDir())
	b, _ := NewRoot(t.TempDir())
	if got := a.ChildName(b); got != "" {
		t.Fatalf("unrelated roots: %q", got)
	}
	if got := a.ChildName(a); got != "" {
		t.Fatalf("same root: %q", got)
	}
}

func TestListMissingRoot(t *testing.T) {
	r, _ := NewRoot(filepath.Join(t.TempDir(), "gone"))
	if _, err := r.List(); err == nil {
		t.Fatal("expected error for missing root")
	}
}

func TestPathLocksSerialize(t *testing.T) {
	l := NewPathLocks()
	unlock := l.Lock("/x")
	acquired := make(chan struct{})
	go func() {
		u := l.Lock("/x")
		close(acquired)
		u()
	}()
	select {
	case <-acquired:
		t.Fatal("second Lock should block while first is held")
	case <-time.After(50 * time.Millisecond):
	}
	// other paths are independent
	l.Lock("/y")()
	unlock()
	select {
	case <-acquired:
	case <-time.After(2 * time.Second):
		t.Fatal("second Lock never acquired")
	}
}

func TestPathLocksFreed(t *testing.T) {
	l := NewPathLocks()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.Lock("/same")()
		}()
	}
	wg.Wait()
	if n := l.Len(); n != 0 {
		t.Fatalf("expected no held locks, got %d", n)
	}
}
