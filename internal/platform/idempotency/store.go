package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"time"
)

// DefaultTTL bounds how long a key is remembered.
const DefaultTTL = 24 * time.Hour

// Outcome is the result of claiming a key.
type Outcome int

const (
	// Acquired means the caller owns the key and must run the request.
	Acquired Outcome = iota
	// Replay means a finished response exists for the key.
	Replay
	// InFlight means an earlier request with the key has not finished yet.
	InFlight
)

// ErrKeyReused is returned when a key comes back with a different request.
var ErrKeyReused = errors.New("idempotency: key already used for a different request")

// Response is the captured HTTP response stored against a key.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// Entry is what a store remembers for a key.
type Entry struct {
	Fingerprint string
	Done        bool
	Response    Response
	ExpiresAt   time.Time
}

// Store persists claimed keys and the responses produced under them.
type Store interface {
	Claim(ctx context.Context, key, fingerprint string, now time.Time, ttl time.Duration) (Outcome, Entry, error)
	Complete(ctx context.Context, key, fingerprint string, resp Response, now time.Time, ttl time.Duration) error
	Abandon(ctx context.Context, key, fingerprint string) error
}

func digest(parts ...[]byte) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write(p)
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// replayableHeader drops transport headers and session cookies from a stored response.
func replayableHeader(header http.Header) http.Header {
	out := make(http.Header, len(header))
	for name, values := range header {
		switch http.CanonicalHeaderKey(name) {
		case "Content-Length", "Date", "Connection", "Transfer-Encoding", "Set-Cookie", "Trailer", "Upgrade":
			continue
		}
		out[http.CanonicalHeaderKey(name)] = append([]string(nil), values...)
	}
	return out
}
