package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// DB wraps sqlite (users, transfer log).
type DB struct {
	*sql.DB
}

// Open opens db at path, runs migrations.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}
	if path == ":memory:" {
		// each pooled conn would get its own empty in-memory db
		db.SetMaxOpenConns(1)
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	return &DB{db}, nil
}

func migrate(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			login TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			created_at TEXT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS transfers (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL,
			login TEXT NOT NULL,
			direction TEXT NOT NULL,
			name TEXT NOT NULL,
			total_size INTEGER NOT NULL,
			bytes_moved INTEGER NOT NULL,
			ok INTEGER NOT NULL,
			error TEXT,
			created_at TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_transfers_login ON transfers(login);
	`)
	return err
}

// User: login, password hash.
type User struct {
	ID           int64
	Login        string
	PasswordHash string
	CreatedAt    time.Time
}

// ErrUserNotFound: update or delete of a login that does not exist.
var ErrUserNotFound = errors.New("user not found")

// CreateUser inserts user; err if login exists.
func (db *DB) CreateUser(login, passwordHash string) (int64, error) {
	now := time.Now().UTC().Format(time.RFC3339)
	res, err := db.Exec("INSERT INTO users (login, password_hash, created_at) VALUES (?, ?, ?)", login, passwordHash, now)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// UserByLogin returns user by login or nil.
func (db *DB) UserByLogin(login string) (*User, error) {
	var u User
	var t string
	err := db.QueryRow("SELECT id, login, password_hash, created_at FROM users WHERE login = ?", login).Scan(&u.ID, &u.Login, &u.PasswordHash, &t)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	u.CreatedAt, _ = time.Parse(time.RFC3339, t)
	return &u, nil
}

// UpdateUserPassword sets password hash for login; err if no such user.
func (db *DB) UpdateUserPassword(login, passwordHash string) error {
	res, err := db.Exec("UPDATE users SET password_hash = ? WHERE login = ?", passwordHash, login)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("%w: %q", ErrUserNotFound, login)
	}
	return nil
}

// UpsertUser creates login or replaces its hash.
func (db *DB) UpsertUser(login, passwordHash string) error {
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := db.Exec(`INSERT INTO users (login, password_hash, created_at) VALUES (?, ?, ?)
		ON CONFLICT(login) DO UPDATE SET password_hash = excluded.password_hash`, login, passwordHash, now)
	return err
}

// DeleteUser removes login; err if not found.
func (db *DB) DeleteUser(login string) error {
	res, err := db.Exec("DELETE FROM users WHERE login = ?", login)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("%w: %q", ErrUserNotFound, login)
	}
	return nil
}

// ListUsers returns all users ordered by login.
func (db *DB) ListUsers() ([]User, error) {
	rows, err := db.Query("SELECT id, login, password_hash, created_at FROM users ORDER BY login")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []User
	for rows.Next() {
		var u User
		var t string
		if err := rows.Scan(&u.ID, &u.Login, &u.PasswordHash, &t); err != nil {
			return nil, err
		}
		u.CreatedAt, _ = time.Parse(time.RFC3339, t)
		list = append(list, u)
	}
	return list, rows.Err()
}

// Transfer directions.
const (
	DirGet = "get"
	DirPut = "put"
)

// Transfer: one GET/PUT outcome.
type Transfer struct {
	ID         int64
	SessionID  string
	Login      string
	Direction  string
	Name       string
	TotalSize  uint64
	BytesMoved uint64
	OK         bool
	Error      string
	CreatedAt  time.Time
}

// RecordTransfer appends t to the log; CreatedAt defaults to now.
func (db *DB) RecordTransfer(t *Transfer) error {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	ok := 0
	if t.OK {
		ok = 1
	}
	var errText interface{}
	if t.Error != "" {
		errText = t.Error
	}
	res, err := db.Exec(`INSERT INTO transfers (session_id, login, direction, name, total_size, bytes_moved, ok, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.SessionID, t.Login, t.Direction, t.Name, int64(t.TotalSize), int64(t.BytesMoved), ok, errText, t.CreatedAt.Format(time.RFC3339))
	if err != nil {
		return err
	}
	t.ID, _ = res.LastInsertId()
	return nil
}

// ListTransfers returns newest first; login "" = all users; limit <= 0 = 100.
func (db *DB) ListTransfers(login string, limit int) ([]Transfer, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows *sql.Rows
	var err error
	const cols = "id, session_id, login, direction, name, total_size, bytes_moved, ok, COALESCE(error, ''), created_at"
	if login != "" {
		rows, err = db.Query("SELECT "+cols+" FROM transfers WHERE login = ? ORDER BY id DESC LIMIT ?", login, limit)
	} else {
		rows, err = db.Query("SELECT "+cols+" FROM transfers ORDER BY id DESC LIMIT ?", limit)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []Transfer
	for rows.Next() {
		var t Transfer
		var total, moved int64
		var ok int
		var created string
		if err := rows.Scan(&t.ID, &t.SessionID, &t.Login, &t.Direction, &t.Name, &total, &moved, &ok, &t.Error, &created); err != nil {
			return nil, err
		}
		t.TotalSize = uint64(total)
		t.BytesMoved = uint64(moved)
		t.OK = ok == 1
		t.CreatedAt, _ = time.Parse(time.RFC3339, created)
		list = append(list, t)
	}
	return list, rows.Err()
}
