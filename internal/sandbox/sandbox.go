// Package sandbox maps client filenames to paths under a configured root.
package sandbox

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

var ErrBadName = errors.New("invalid filename")

// ValidName rejects empty names and any name containing "..", "/" or "\".
func ValidName(name string) bool {
	return name != "" &&
		!strings.Contains(name, "..") &&
		!strings.ContainsAny(name, "/\\")
}

// Root: absolute base dir; names resolve only to direct children.
type Root struct {
	dir string
}

// NewRoot returns Root for dir (made absolute).
func NewRoot(dir string) (*Root, error) {
	if strings.TrimSpace(dir) == "" {
		dir = "."
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	return &Root{dir: abs}, nil
}

// Dir returns absolute root path.
func (r *Root) Dir() string { return r.dir }

// Resolve validates name and joins it to root.
func (r *Root) Resolve(name string) (string, error) {
	if !ValidName(name) {
		return "", ErrBadName
	}
	p := filepath.Join(r.dir, name)
	if p == r.dir {
		return "", ErrBadName
	}
	rel, err := filepath.Rel(r.dir, p)
	if err != nil || rel != name {
		return "", ErrBadName
	}
	return p, nil
}

// List returns entry names in directory order, minus any in exclude.
func (r *Root) List(exclude ...string) ([]string, error) {
	f, err := os.Open(r.dir)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	names, err := f.Readdirnames(-1)
	if err != nil {
		return nil, err
	}
	out := names[:0]
	for _, n := range names {
		if n == "." || n == ".." || contains(exclude, n) {
			continue
		}
		out = append(out, n)
	}
	return out, nil
}

// ChildName returns base name of other if it sits directly inside r, else "".
// Used to hide the upload dir when it lives under the listing root.
func (r *Root) ChildName(other *Root) string {
	if other == nil || filepath.Dir(other.dir) != r.dir {
		return ""
	}
	return filepath.Base(other.dir)
}

// EnsureDirs creates each dir (0755) if missing.
func EnsureDirs(dirs ...string) error {
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0755); err != nil {
			return err
		}
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
