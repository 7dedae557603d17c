package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Hasher computes content digests for caching and ETags.
type Hasher struct {
	// Length truncates hex digests; zero keeps the full digest.
	Length int
}

// DefaultHasher returns a hasher producing 16-character digests
func DefaultHasher() *Hasher {
	return &Hasher{Length: 16}
}

// Hash computes a SHA-256 hex digest of data
func (h *Hasher) Hash(data []byte) string {
	sum := sha256.Sum256(data)
	digest := hex.EncodeToString(sum[:])
	if h.Length > 0 && h.Length < len(digest) {
		return digest[:h.Length]
	}
	return digest
}

// HashString computes a digest of a string
func (h *Hasher) HashString(s string) string {
	return h.Hash([]byte(s))
}

// HashFields computes a digest over fields in order. Fields are separated by
// a NUL byte so ("ab", "c") and ("a", "bc") differ.
func (h *Hasher) HashFields(fields ...string) string {
	return h.HashString(strings.Join(fields, "\x00"))
}

// ETag returns a strong HTTP entity tag for fields
func (h *Hasher) ETag(fields ...string) string {
	return `"` + h.HashFields(fields...) + `"`
}

// MatchETag reports whether an If-None-Match header value matches etag.
func MatchETag(header, etag string) bool {
	if header == "" {
		return false
	}
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimSpace(candidate)
		candidate = strings.TrimPrefix(candidate, "W/")
		if candidate == "*" || candidate == etag {
			return true
		}
	}
	return false
}
