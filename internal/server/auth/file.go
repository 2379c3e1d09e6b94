package auth

import (
	"bufio"
	"io"
	"os"
	"strings"
)

// FileStore: newline-delimited "name:password" records, read on every call.
// The password field may be plaintext or a bcrypt hash.
type FileStore struct {
	Path string
}

// NewFileStore returns FileStore for path.
func NewFileStore(path string) *FileStore {
	return &FileStore{Path: path}
}

// Authenticate true iff some record for user accepts password; scanning
// stops at the first match. A missing file rejects everyone.
func (s *FileStore) Authenticate(user, password string) (bool, error) {
	if user == "" || password == "" {
		return false, nil
	}
	f, err := os.Open(s.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	defer f.Close()
	br := bufio.NewReader(f)
	for {
		line, err := br.ReadString('\n')
		if line != "" {
			line = strings.TrimSuffix(strings.TrimSuffix(line, "\n"), "\r")
			if name, stored, ok := strings.Cut(line, ":"); ok && name == user && Verify(password, stored) {
				return true, nil
			}
		}
		if err == io.EOF {
			return false, nil
		}
		if err != nil {
			return false, err
		}
	}
}
