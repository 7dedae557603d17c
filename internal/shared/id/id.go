// Package id generates the identifiers the preview service hands out.
//
// Live preview sessions and HTTP requests get prefixed ULIDs ("sess_…",
// "req_…"), so log lines sort by time and show what they refer to. Request
// IDs supplied by callers are accepted when they are a ULID or a UUID.
package id

import (
	"crypto/rand"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// SessionID identifies a live preview session
type SessionID string

// RequestID identifies an API request
type RequestID string

const (
	SessionPrefix = "sess"
	RequestPrefix = "req"
)

// Generator generates ULIDs. IDs from one generator are strictly increasing,
// including within the same millisecond.
type Generator struct {
	mu      sync.Mutex
	entropy io.Reader
}

var (
	defaultGenerator *Generator
	once             sync.Once
)

// Default returns the process-wide generator
func Default() *Generator {
	once.Do(func() {
		defaultGenerator = NewGenerator()
	})
	return defaultGenerator
}

// NewGenerator creates a generator backed by crypto/rand
func NewGenerator() *Generator {
	return NewGeneratorWithEntropy(rand.Reader)
}

// NewGeneratorWithEntropy creates a generator reading from entropy.
// Useful for deterministic tests.
func NewGeneratorWithEntropy(entropy io.Reader) *Generator {
	return &Generator{entropy: ulid.Monotonic(entropy, 0)}
}

// Generate creates a new ULID
func (g *Generator) Generate() ulid.ULID {
	g.mu.Lock()
	defer g.mu.Unlock()

	return ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy)
}

// GenerateWithPrefix creates a prefixed ULID string
func (g *Generator) GenerateWithPrefix(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, g.Generate())
}

// NewSessionID generates a new live session ID
func NewSessionID() SessionID {
	return SessionID(Default().GenerateWithPrefix(SessionPrefix))
}

// NewRequestID generates a new request ID
func NewRequestID() RequestID {
	return RequestID(Default().GenerateWithPrefix(RequestPrefix))
}

func (id SessionID) String() string { return string(id) }
func (id RequestID) String() string { return string(id) }

// Split separates "prefix_ULID" into its parts. Unprefixed input returns an
// empty prefix.
func Split(s string) (prefix, rest string) {
	if i := strings.LastIndexByte(s, '_'); i >= 0 {
		return s[:i], s[i+1:]
	}
	return "", s
}

// IsValid reports whether s is a ULID, optionally prefixed
func IsValid(s string) bool {
	_, err := Parse(s)
	return err == nil
}

// Parse parses a ULID, optionally prefixed
func Parse(s string) (ulid.ULID, error) {
	_, rest := Split(s)
	return ulid.ParseStrict(rest)
}

// Timestamp extracts the creation time from a ULID, optionally prefixed
func Timestamp(s string) (time.Time, error) {
	parsed, err := Parse(s)
	if err != nil {
		return time.Time{}, err
	}
	return ulid.Time(parsed.Time()), nil
}

// AcceptRequestID returns header as the request ID when it is a ULID
// (prefixed or not) or a UUID. Anything else gets a fresh ID.
func AcceptRequestID(header string) RequestID {
	header = strings.TrimSpace(header)
	switch {
	case header == "":
	case len(header) <= 64 && IsValid(header):
		return RequestID(header)
	default:
		if _, err := uuid.Parse(header); err == nil {
			return RequestID(strings.ToLower(header))
		}
	}
	return NewRequestID()
}
