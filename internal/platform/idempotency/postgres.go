package idempotency

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"time"

	"github.com/uptrace/bun"

	ppostgres "github.com/eventpass/api/internal/platform/postgres"
)

const (
	statusPending = "pending"
	statusDone    = "done"
)

// PostgresStore keeps keys in the idempotency_keys table so every API instance shares them.
type PostgresStore struct {
	provider *ppostgres.Provider
}

// NewPostgresStore binds the store to the shared provider.
func NewPostgresStore(provider *ppostgres.Provider) (*PostgresStore, error) {
	if provider == nil {
		return nil, errors.New("idempotency: postgres provider is required")
	}
	return &PostgresStore{provider: provider}, nil
}

type keyRow struct {
	bun.BaseModel `bun:"table:idempotency_keys,alias:ik"`

	Key            string      `bun:"key,pk"`
	RequestHash    string      `bun:"request_hash,notnull"`
	Status         string      `bun:"status,notnull"`
	ResponseStatus int         `bun:"response_status,nullzero"`
	ResponseBody   []byte      `bun:"response_body"`
	ResponseHeader http.Header `bun:"response_header,type:jsonb"`
	CreatedAt      time.Time   `bun:"created_at,notnull"`
	UpdatedAt      time.Time   `bun:"updated_at,notnull"`
	ExpiresAt      time.Time   `bun:"expires_at,notnull"`
}

func (r *keyRow) entry() Entry {
	return Entry{
		Fingerprint: r.RequestHash,
		Done:        r.Status == statusDone,
		Response:    Response{Status: r.ResponseStatus, Header: r.ResponseHeader, Body: r.ResponseBody},
		ExpiresAt:   r.ExpiresAt,
	}
}

// Claim inserts a pending row, taking over an expired one in the same statement.
func (s *PostgresStore) Claim(ctx context.Context, key, fingerprint string, now time.Time, ttl time.Duration) (Outcome, Entry, error) {
	conn, err := s.provider.Conn(ctx)
	if err != nil {
		return 0, Entry{}, err
	}
	now = now.UTC()
	row := &keyRow{
		Key:         digest([]byte(key)),
		RequestHash: fingerprint,
		Status:      statusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
		ExpiresAt:   now.Add(ttlOrDefault(ttl)),
	}
	res, err := conn.NewInsert().Model(row).
		On("CONFLICT (key) DO UPDATE").
		Set("request_hash = EXCLUDED.request_hash").
		Set("status = EXCLUDED.status").
		Set("response_status = NULL").
		Set("response_body = NULL").
		Set("response_header = NULL").
		Set("created_at = EXCLUDED.created_at").
		Set("updated_at = EXCLUDED.updated_at").
		Set("expires_at = EXCLUDED.expires_at").
		Where("ik.expires_at <= EXCLUDED.created_at").
		Exec(ctx)
	if err != nil {
		return 0, Entry{}, err
	}
	if n, _ := res.RowsAffected(); n == 1 {
		return Acquired, row.entry(), nil
	}

	existing := new(keyRow)
	err = conn.NewSelect().Model(existing).Where("ik.key = ?", row.Key).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		// Abandoned between the insert and the read; the client may retry.
		return InFlight, Entry{}, nil
	}
	if err != nil {
		return 0, Entry{}, err
	}
	switch {
	case existing.RequestHash != fingerprint:
		return 0, Entry{}, ErrKeyReused
	case existing.Status == statusDone:
		return Replay, existing.entry(), nil
	default:
		return InFlight, existing.entry(), nil
	}
}

// Complete stores the response on the caller's pending row.
func (s *PostgresStore) Complete(ctx context.Context, key, fingerprint string, resp Response, now time.Time, ttl time.Duration) error {
	conn, err := s.provider.Conn(ctx)
	if err != nil {
		return err
	}
	now = now.UTC()
	res, err := conn.NewUpdate().Model((*keyRow)(nil)).
		Set("status = ?", statusDone).
		Set("response_status = ?", resp.Status).
		Set("response_body = ?", resp.Body).
		Set("response_header = ?", replayableHeader(resp.Header)).
		Set("updated_at = ?", now).
		Set("expires_at = ?", now.Add(ttlOrDefault(ttl))).
		Where("key = ?", digest([]byte(key))).
		Where("request_hash = ?", fingerprint).
		Exec(ctx)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrKeyReused
	}
	return nil
}

// Abandon deletes the caller's pending row so the key can be retried.
func (s *PostgresStore) Abandon(ctx context.Context, key, fingerprint string) error {
	conn, err := s.provider.Conn(ctx)
	if err != nil {
		return err
	}
	_, err = conn.NewDelete().Model((*keyRow)(nil)).
		Where("key = ?", digest([]byte(key))).
		Where("request_hash = ?", fingerprint).
		Where("status = ?", statusPending).
		Exec(ctx)
	return err
}

// Purge deletes up to limit expired rows.
func (s *PostgresStore) Purge(ctx context.Context, now time.Time, limit int) (int, error) {
	if limit <= 0 {
		limit = 500
	}
	conn, err := s.provider.Conn(ctx)
	if err != nil {
		return 0, err
	}
	expired := conn.NewSelect().Model((*keyRow)(nil)).
		Column("key").
		Where("expires_at <= ?", now.UTC()).
		OrderExpr("expires_at").
		Limit(limit)
	res, err := conn.NewDelete().Model((*keyRow)(nil)).
		Where("key IN (?)", expired).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}
