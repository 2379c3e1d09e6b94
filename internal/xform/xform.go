// Package xform: reversible byte-wise payload transform applied to file
// contents in transit. Not encryption; provides no confidentiality.
package xform

import (
	"fmt"
	"strconv"
	"strings"
)

// DefaultKey XOR key byte used when none is configured.
const DefaultKey byte = 0x5A

// Transform rewrites a chunk in place. Implementations must be self-inverse:
// Apply(Apply(p)) restores p.
type Transform interface {
	Apply(p []byte)
}

// XOR flips bits with a single key byte.
type XOR struct {
	Key byte
}

// NewXOR returns XOR transform for key.
func NewXOR(key byte) XOR {
	return XOR{Key: key}
}

// Byte transforms one byte.
func (x XOR) Byte(b byte) byte {
	return b ^ x.Key
}

// Apply XORs every byte of p with Key.
func (x XOR) Apply(p []byte) {
	for i := range p {
		p[i] ^= x.Key
	}
}

// ParseKey accepts "0x5A", "90", or "" (default).
func ParseKey(s string) (byte, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return DefaultKey, nil
	}
	n, err := strconv.ParseUint(s, 0, 8)
	if err != nil {
		return 0, fmt.Errorf("xform key %q: %w", s, err)
	}
	return byte(n), nil
}
