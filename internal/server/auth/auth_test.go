package auth

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"dev.c0redev.fshare/internal/store"
)

func TestHashPassword(t *testing.T) {
	hash, err := HashPassword("secret")
	if err != nil {
		t.Fatal(err)
	}
	if hash == "" || hash == "secret" {
		t.Fatal("hash should be non-empty and different from password")
	}
	if !IsHash(hash) {
		t.Fatalf("IsHash(%q) false", hash)
	}
	hash2, _ := HashPassword("secret")
	if hash == hash2 {
		t.Fatal("hashes should differ (salt)")
	}
}

func TestCheckPassword(t *testing.T) {
	hash, _ := HashPassword("mypass")
	if !CheckPassword("mypass", hash) {
		t.Fatal("correct password should match")
	}
	if CheckPassword("wrong", hash) {
		t.Fatal("wrong password should not match")
	}
}

func TestConstantTimeEqual(t *testing.T) {
	if !ConstantTimeEqual("a", "a") {
		t.Fatal("equal strings")
	}
	if ConstantTimeEqual("a", "b") {
		t.Fatal("different strings")
	}
	if ConstantTimeEqual("ab", "a") {
		t.Fatal("different length")
	}
}

func writeUsers(t *testing.T, content string) *FileStore {
	t.Helper()
	p := filepath.Join(t.TempDir(), "users.txt")
	if err := os.WriteFile(p, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return NewFileStore(p)
}

func TestFileStore(t *testing.T) {
	s := writeUsers(t, "alice:alice123\nbob:bobpw\ngarbage line\nalice:second\n")
	cases := []struct {
		user, pass string
		want       bool
	}{
		{"alice", "alice123", true},
		{"alice", "second", true},
		{"alice", "wrongpass", false},
		{"bob", "bobpw", true},
		{"bob", "alice123", false},
		{"carol", "x", false},
		{"", "", false},
		{"garbage line", "", false},
	}
	for _, c := range cases {
		got, err := s.Authenticate(c.user, c.pass)
		if err != nil {
			t.Fatal(err)
		}
		if got != c.want {
			t.Fatalf("Authenticate(%q, %q) = %v, want %v", c.user, c.pass, got, c.want)
		}
	}
}

func TestFileStorePasswordWithColon(t *testing.T) {
	s := writeUsers(t, "dave:pa:ss\r\n")
	if ok, _ := s.Authenticate("dave", "pa:ss"); !ok {
		t.Fatal("password is everything after the first colon")
	}
}

func TestFileStoreLongLine(t *testing.T) {
	s := writeUsers(t, "junk:"+strings.Repeat("x", 70*1024)+"\nalice:alice123\nlast:one")
	ok, err := s.Authenticate("alice", "alice123")
	if err != nil || !ok {
		t.Fatalf("record after a long line: ok=%v err=%v", ok, err)
	}
	if ok, _ := s.Authenticate("last", "one"); !ok {
		t.Fatal("final record without newline should match")
	}
}

func TestFileStoreHashed(t *testing.T) {
	hash, _ := HashPassword("alice123")
	s := writeUsers(t, "alice:"+hash+"\n")
	if ok, _ := s.Authenticate("alice", "alice123"); !ok {
		t.Fatal("hashed record should verify")
	}
	if ok, _ := s.Authenticate("alice", hash); ok {
		t.Fatal("the hash itself is not the password")
	}
}

func TestFileStoreRereads(t *testing.T) {
	s := writeUsers(t, "alice:one\n")
	if ok, _ := s.Authenticate("alice", "one"); !ok {
		t.Fatal("initial")
	}
	if err := os.WriteFile(s.Path, []byte("alice:two\n"), 0600); err != nil {
		t.Fatal(err)
	}
	if ok, _ := s.Authenticate("alice", "one"); ok {
		t.Fatal("old password should fail after file change")
	}
	if ok, _ := s.Authenticate("alice", "two"); !ok {
		t.Fatal("new password should pass after file change")
	}
}

func TestFileStoreMissing(t *testing.T) {
	s := NewFileStore(filepath.Join(t.TempDir(), "none.txt"))
	ok, err := s.Authenticate("alice", "alice123")
	if ok || err != nil {
		t.Fatalf("missing file: %v %v", ok, err)
	}
}

func TestDBStore(t *testing.T) {
	db, err := store.Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	hash, _ := HashPassword("pw123456")
	if _, err := db.CreateUser("erin", hash); err != nil {
		t.Fatal(err)
	}
	s := NewDBStore(db)
	if ok, err := s.Authenticate("erin", "pw123456"); !ok || err != nil {
		t.Fatalf("erin: %v %v", ok, err)
	}
	if ok, _ := s.Authenticate("erin", "nope"); ok {
		t.Fatal("wrong password")
	}
	if ok, _ := s.Authenticate("nobody", "pw123456"); ok {
		t.Fatal("unknown user")
	}
}

type stubAuth struct {
	ok  bool
	err error
}

func (s stubAuth) Authenticate(string, string) (bool, error) { return s.ok, s.err }

func TestChain(t *testing.T) {
	boom := errors.New("boom")
	if ok, err := (Chain{stubAuth{err: boom}, stubAuth{ok: true}}).Authenticate("u", "p"); !ok || err != nil {
		t.Fatalf("second accepts: %v %v", ok, err)
	}
	if ok, err := (Chain{stubAuth{}, stubAuth{err: boom}}).Authenticate("u", "p"); ok || !errors.Is(err, boom) {
		t.Fatalf("none accept: %v %v", ok, err)
	}
	if ok, err := (Chain{}).Authenticate("u", "p"); ok || err != nil {
		t.Fatalf("empty: %v %v", ok, err)
	}
}
