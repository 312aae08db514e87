// Package sha256 computes item fingerprints with SHA-256.
package sha256

import (
	"crypto/sha256"
	"encoding/hex"
)

// separator terminates every fingerprinted part so ("ab","c") and ("a","bc") differ.
const separator = 0x00

// Hasher implements news.Hasher.
type Hasher struct{}

// New returns a SHA-256 hasher.
func New() *Hasher {
	return &Hasher{}
}

// Fingerprint digests the non-empty parts in order, each followed by a NUL byte, and returns hex.
func (h *Hasher) Fingerprint(parts ...string) string {
	d := sha256.New()
	for _, p := range parts {
		if p == "" {
			continue
		}
		d.Write([]byte(p))
		d.Write([]byte{separator})
	}
	return hex.EncodeToString(d.Sum(nil))
}
