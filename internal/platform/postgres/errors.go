package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/uptrace/bun/driver/pgdriver"
)

// ErrStaleStatus reports that a conditional update matched no row.
var ErrStaleStatus = errors.New("postgres: row changed concurrently")

// Error implements repositories.RepositoryError for Postgres backed repositories.
type Error struct {
	op          string
	err         error
	notFound    bool
	conflict    bool
	unavailable bool
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.op != "" {
		return fmt.Sprintf("%s: %v", e.op, e.err)
	}
	return e.err.Error()
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.err
}

// IsNotFound reports whether the error represents a missing row.
func (e *Error) IsNotFound() bool { return e != nil && e.notFound }

// IsConflict reports whether the error represents a lost race: a stale
// conditional update, a serialization failure, a deadlock or a lock timeout.
func (e *Error) IsConflict() bool { return e != nil && e.conflict }

// IsUnavailable reports whether the error represents a transient backend outage.
func (e *Error) IsUnavailable() bool { return e != nil && e.unavailable }

// NotFound builds a not-found repository error.
func NotFound(op string, format string, args ...any) error {
	return &Error{op: op, err: fmt.Errorf(format, args...), notFound: true}
}

// WrapError annotates driver errors with repository semantics. Context cancellations pass through.
func WrapError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var repoErr *Error
	if errors.As(err, &repoErr) {
		if op != "" && repoErr.op == "" {
			repoErr.op = op
		}
		return repoErr
	}

	e := &Error{op: op, err: err}
	switch {
	case errors.Is(err, sql.ErrNoRows):
		e.notFound = true
	case errors.Is(err, ErrStaleStatus):
		e.conflict = true
	case errors.Is(err, driver.ErrBadConn), errors.Is(err, sql.ErrConnDone):
		e.unavailable = true
	}

	var pgErr pgdriver.Error
	if errors.As(err, &pgErr) {
		e.classify(pgErr.Field('C'))
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		e.unavailable = true
	}
	return e
}

// classify sets the category for a SQLSTATE code. Integrity violations stay
// unclassified: they are data-store failures, not client conflicts.
func (e *Error) classify(code string) {
	switch {
	case code == "22P02":
		// invalid_text_representation: a malformed uuid never matches a row.
		e.notFound = true
	case code == "40001", code == "40P01", code == "55P03":
		e.conflict = true
	case strings.HasPrefix(code, "08"), strings.HasPrefix(code, "57P"), code == "53300":
		e.unavailable = true
	}
}
