package store

import (
	"errors"
	"testing"
)

func TestOpenMemory(t *testing.T) {
	db, err := Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		t.Fatal(err)
	}
}

func TestUserCRUD(t *testing.T) {
	db, err := Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	id, err := db.CreateUser("alice", "hash1")
	if err != nil {
		t.Fatal(err)
	}
	if id <= 0 {
		t.Fatal("expected positive user id")
	}
	if _, err := db.CreateUser("alice", "hash2"); err == nil {
		t.Fatal("duplicate login should fail")
	}

	u, err := db.UserByLogin("alice")
	if err != nil || u == nil {
		t.Fatal("UserByLogin alice", err)
	}
	if u.ID != id || u.Login != "alice" || u.PasswordHash != "hash1" {
		t.Fatalf("user mismatch: %+v", u)
	}
	if u, err := db.UserByLogin("nobody"); err != nil || u != nil {
		t.Fatalf("missing user: %+v %v", u, err)
	}

	if err := db.UpdateUserPassword("alice", "hash3"); err != nil {
		t.Fatal(err)
	}
	if err := db.UpdateUserPassword("nobody", "x"); !errors.Is(err, ErrUserNotFound) {
		t.Fatal("update of missing user should fail")
	}
	u, _ = db.UserByLogin("alice")
	if u.PasswordHash != "hash3" {
		t.Fatalf("hash not updated: %q", u.PasswordHash)
	}

	if err := db.UpsertUser("bob", "b1"); err != nil {
		t.Fatal(err)
	}
	if err := db.UpsertUser("bob", "b2"); err != nil {
		t.Fatal(err)
	}
	u, _ = db.UserByLogin("bob")
	if u == nil || u.PasswordHash != "b2" {
		t.Fatalf("upsert: %+v", u)
	}

	list, err := db.ListUsers()
	if err != nil || len(list) != 2 || list[0].Login != "alice" || list[1].Login != "bob" {
		t.Fatalf("ListUsers: %v %+v", err, list)
	}

	if err := db.DeleteUser("bob"); err != nil {
		t.Fatal(err)
	}
	if err := db.DeleteUser("bob"); !errors.Is(err, ErrUserNotFound) {
		t.Fatal("second delete should fail")
	}
}

func TestTransferLog(t *testing.T) {
	db, err := Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	first := &Transfer{SessionID: "s1", Login: "alice", Direction: DirPut, Name: "big.bin", TotalSize: 150000, BytesMoved: 150000, OK: true}
	if err := db.RecordTransfer(first); err != nil {
		t.Fatal(err)
	}
	if first.ID <= 0 || first.CreatedAt.IsZero() {
		t.Fatalf("record: %+v", first)
	}
	second := &Transfer{SessionID: "s2", Login: "bob", Direction: DirGet, Name: "x", TotalSize: 10, BytesMoved: 3, Error: "transport recv chunk: EOF"}
	if err := db.RecordTransfer(second); err != nil {
		t.Fatal(err)
	}

	all, err := db.ListTransfers("", 0)
	if err != nil || len(all) != 2 {
		t.Fatalf("ListTransfers all: %v len=%d", err, len(all))
	}
	if all[0].SessionID != "s2" || all[0].OK || all[0].Error == "" || all[0].BytesMoved != 3 {
		t.Fatalf("newest first: %+v", all[0])
	}
	if !all[1].OK || all[1].TotalSize != 150000 || all[1].Direction != DirPut {
		t.Fatalf("older: %+v", all[1])
	}

	alice, err := db.ListTransfers("alice", 10)
	if err != nil || len(alice) != 1 || alice[0].Name != "big.bin" {
		t.Fatalf("ListTransfers alice: %v %+v", err, alice)
	}
	one, _ := db.ListTransfers("", 1)
	if len(one) != 1 {
		t.Fatalf("limit: %d", len(one))
	}
}
