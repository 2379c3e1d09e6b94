// Package config reads FSHARE_* environment variables with defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"dev.c0redev.fshare/internal/xform"
)

// Getenv looks up one variable; nil means os.Getenv.
type Getenv func(key string) string

// Server settings for cmd/server.
type Server struct {
	Addr        string
	QUICAddr    string // "" = off
	Root        string
	UploadRoot  string
	Users       string
	DB          string // "" = no sqlite
	XORKey      byte
	Concurrent  bool
	MaxConns    int
	IdleTimeout time.Duration
	HTTPAddr    string // "" = no admin API
	AdminToken  string
	MaxBodyMB   int
}

// Client settings for cmd/client.
type Client struct {
	Server     string
	User       string
	Password   string
	XORKey     byte
	UseQUIC    bool
	API        string
	AdminToken string
}

// LoadServer reads server settings. A malformed XOR key or idle timeout is
// an error; other bad values fall back to defaults.
func LoadServer(get Getenv) (Server, error) {
	if get == nil {
		get = os.Getenv
	}
	root := readString(get, "FSHARE_ROOT", "server_files")
	c := Server{
		Addr:       readString(get, "FSHARE_ADDR", ":8080"),
		QUICAddr:   readString(get, "FSHARE_QUIC_ADDR", ""),
		Root:       root,
		UploadRoot: readString(get, "FSHARE_UPLOAD_ROOT", filepath.Join(root, "uploads")),
		Users:      readString(get, "FSHARE_USERS", "users.txt"),
		DB:         readString(get, "FSHARE_DB", ""),
		Concurrent: readBool(get, "FSHARE_CONCURRENT"),
		MaxConns:   readInt(get, "FSHARE_MAX_CONNS", 0),
		HTTPAddr:   readString(get, "FSHARE_HTTP_ADDR", ""),
		AdminToken: readString(get, "FSHARE_ADMIN_TOKEN", ""),
		MaxBodyMB:  readInt(get, "FSHARE_MAX_BODY_MB", 1),
	}
	if c.MaxBodyMB > 64 {
		c.MaxBodyMB = 64
	}
	key, err := readKey(get)
	if err != nil {
		return c, err
	}
	c.XORKey = key
	c.IdleTimeout, err = readDuration(get, "FSHARE_IDLE_TIMEOUT")
	if err != nil {
		return c, err
	}
	return c, nil
}

// LoadClient reads client settings.
func LoadClient(get Getenv) (Client, error) {
	if get == nil {
		get = os.Getenv
	}
	c := Client{
		Server:     readString(get, "FSHARE_SERVER", "127.0.0.1:8080"),
		User:       readString(get, "FSHARE_USER", ""),
		Password:   readString(get, "FSHARE_PASSWORD", ""),
		UseQUIC:    readBool(get, "FSHARE_USE_QUIC"),
		API:        readString(get, "FSHARE_API", ""),
		AdminToken: readString(get, "FSHARE_ADMIN_TOKEN", ""),
	}
	key, err := readKey(get)
	if err != nil {
		return c, err
	}
	c.XORKey = key
	return c, nil
}

func readString(get Getenv, key, def string) string {
	if s := strings.TrimSpace(get(key)); s != "" {
		return s
	}
	return def
}

func readInt(get Getenv, key string, def int) int {
	if n, err := strconv.Atoi(strings.TrimSpace(get(key))); err == nil && n > 0 {
		return n
	}
	return def
}

func readBool(get Getenv, key string) bool {
	b, _ := strconv.ParseBool(strings.TrimSpace(get(key)))
	return b
}

func readKey(get Getenv) (byte, error) {
	k, err := xform.ParseKey(get("FSHARE_XOR_KEY"))
	if err != nil {
		return 0, fmt.Errorf("FSHARE_XOR_KEY: %w", err)
	}
	return k, nil
}

// readDuration accepts "30s"-style values or plain seconds; "" = 0.
func readDuration(get Getenv, key string) (time.Duration, error) {
	s := strings.TrimSpace(get(key))
	if s == "" {
		return 0, nil
	}
	if n, err := strconv.Atoi(s); err == nil && n >= 0 {
		return time.Duration(n) * time.Second, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("%s: invalid duration %q", key, s)
	}
	return d, nil
}
