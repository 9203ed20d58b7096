// Package pagination reads pageSize/pageToken query parameters and encodes
// keyset cursors into opaque page tokens.
package pagination

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultPageSize    = 50
	DefaultMaxPageSize = 100
)

var (
	ErrInvalidPageSize  = errors.New("pagination: invalid pageSize")
	ErrInvalidPageToken = errors.New("pagination: invalid pageToken")
)

// Options tunes the page size a handler accepts. Zero values use the package defaults.
type Options struct {
	DefaultPageSize int
	MaxPageSize     int
}

func (o Options) limits() (def, ceiling int) {
	ceiling = o.MaxPageSize
	if ceiling <= 0 {
		ceiling = DefaultMaxPageSize
	}
	def = o.DefaultPageSize
	if def <= 0 {
		def = DefaultPageSize
	}
	return min(def, ceiling), ceiling
}

// Params is a validated page request.
type Params struct {
	PageSize  int
	PageToken string
	Cursor    Cursor
}

func FromRequest(r *http.Request, opts Options) (Params, error) {
	if r == nil || r.URL == nil {
		return Params{}, errors.New("pagination: nil request")
	}
	return Parse(r.URL.Query(), opts)
}

// Parse validates pageSize and pageToken. Oversized pages are clamped, not rejected.
func Parse(query url.Values, opts Options) (Params, error) {
	def, ceiling := opts.limits()
	out := Params{PageSize: def}

	if raw := strings.TrimSpace(query.Get("pageSize")); raw != "" {
		n, err := strconv.Atoi(raw)
		switch {
		case err != nil:
			return Params{}, fmt.Errorf("%w: %q is not a number", ErrInvalidPageSize, raw)
		case n < 1:
			return Params{}, fmt.Errorf("%w: must be at least 1", ErrInvalidPageSize)
		}
		out.PageSize = min(n, ceiling)
	}

	if raw := strings.TrimSpace(query.Get("pageToken")); raw != "" {
		cursor, err := DecodeToken(raw)
		if err != nil {
			return Params{}, err
		}
		out.PageToken, out.Cursor = raw, cursor
	}
	return out, nil
}

// Clamp bounds a page size passed straight to a repository.
func Clamp(size int) int {
	if size < 1 {
		return DefaultPageSize
	}
	return min(size, DefaultMaxPageSize)
}

// Cursor is the (created_at, id) of the last row on the previous page.
type Cursor struct {
	CreatedAt time.Time
	ID        string
}

func (c Cursor) IsZero() bool {
	return c.ID == "" && c.CreatedAt.IsZero()
}

const cursorSep = "|"

// EncodeToken returns "" for the zero cursor.
func EncodeToken(c Cursor) (string, error) {
	if c.IsZero() {
		return "", nil
	}
	if c.ID == "" || strings.Contains(c.ID, cursorSep) {
		return "", fmt.Errorf("pagination: encode token: bad id %q", c.ID)
	}
	raw := c.CreatedAt.UTC().Format(time.RFC3339Nano) + cursorSep + c.ID
	return base64.RawURLEncoding.EncodeToString([]byte(raw)), nil
}

func DecodeToken(token string) (Cursor, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Cursor{}, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return Cursor{}, fmt.Errorf("%w: %v", ErrInvalidPageToken, err)
	}
	stamp, id, ok := strings.Cut(string(raw), cursorSep)
	if !ok || id == "" {
		return Cursor{}, fmt.Errorf("%w: malformed cursor", ErrInvalidPageToken)
	}
	at, err := time.Parse(time.RFC3339Nano, stamp)
	if err != nil {
		return Cursor{}, fmt.Errorf("%w: %v", ErrInvalidPageToken, err)
	}
	return Cursor{CreatedAt: at, ID: id}, nil
}
