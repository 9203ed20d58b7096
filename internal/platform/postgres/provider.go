package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"

	"github.com/eventpass/api/internal/platform/config"
)

var ErrProviderClosed = errors.New("postgres: provider is closed")

// Provider owns the shared bun database handle.
type Provider struct {
	cfg config.DatabaseConfig

	mu     sync.Mutex
	db     *bun.DB
	closed bool
}

// NewProvider constructs a Provider. The connection pool is opened lazily on first use.
func NewProvider(cfg config.DatabaseConfig) *Provider {
	return &Provider{cfg: cfg}
}

// NewProviderWithDB wraps an existing handle, mainly for tests and tooling.
func NewProviderWithDB(db *bun.DB, cfg config.DatabaseConfig) *Provider {
	return &Provider{cfg: cfg, db: db}
}

// DB returns the shared database handle.
func (p *Provider) DB(ctx context.Context) (*bun.DB, error) {
	if ctx == nil {
		return nil, errors.New("postgres: context is required")
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, ErrProviderClosed
	}
	if p.db != nil {
		return p.db, nil
	}

	dsn := strings.TrimSpace(p.cfg.DSN)
	if dsn == "" {
		return nil, errors.New("postgres: dsn is required")
	}
	opts := []pgdriver.Option{
		pgdriver.WithDSN(dsn),
		pgdriver.WithApplicationName("eventpass-api"),
	}
	if p.cfg.DialTimeout > 0 {
		opts = append(opts, pgdriver.WithDialTimeout(p.cfg.DialTimeout))
	}
	sqldb := sql.OpenDB(pgdriver.NewConnector(opts...))
	if p.cfg.MaxOpenConns > 0 {
		sqldb.SetMaxOpenConns(p.cfg.MaxOpenConns)
	}
	if p.cfg.MaxIdleConns > 0 {
		sqldb.SetMaxIdleConns(p.cfg.MaxIdleConns)
	}
	if p.cfg.ConnMaxLifetime > 0 {
		sqldb.SetConnMaxLifetime(p.cfg.ConnMaxLifetime)
	}

	db := bun.NewDB(sqldb, pgdialect.New())
	if p.cfg.Debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}
	p.db = db
	return db, nil
}

// Ping verifies connectivity.
func (p *Provider) Ping(ctx context.Context) error {
	db, err := p.DB(ctx)
	if err != nil {
		return err
	}
	return WrapError("ping", db.PingContext(ctx))
}

// Close releases the connection pool. The Provider cannot be reused afterwards.
func (p *Provider) Close(context.Context) error {
	if p == nil {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	if p.db == nil {
		return nil
	}
	err := p.db.Close()
	p.db = nil
	return err
}

type txKey struct{}

// RunInTx executes fn inside a transaction. Nested calls join the outer transaction.
func (p *Provider) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if fn == nil {
		return WrapError("transaction", errors.New("postgres: transaction function is nil"))
	}
	if _, ok := ctx.Value(txKey{}).(bun.Tx); ok {
		return fn(ctx)
	}
	db, err := p.DB(ctx)
	if err != nil {
		return err
	}

	txCtx := ctx
	if timeout := p.cfg.TxTimeout; timeout > 0 {
		deadline, ok := ctx.Deadline()
		if !ok || time.Until(deadline) > timeout {
			var cancel context.CancelFunc
			txCtx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
	}

	err = db.RunInTx(txCtx, &sql.TxOptions{Isolation: sql.LevelReadCommitted}, func(ctx context.Context, tx bun.Tx) error {
		return fn(context.WithValue(ctx, txKey{}, tx))
	})
	return WrapError("transaction", err)
}

// Conn returns the transaction bound to ctx, or the shared handle when none is active.
func (p *Provider) Conn(ctx context.Context) (bun.IDB, error) {
	if tx, ok := ctx.Value(txKey{}).(bun.Tx); ok {
		return tx, nil
	}
	db, err := p.DB(ctx)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}
	return db, nil
}
