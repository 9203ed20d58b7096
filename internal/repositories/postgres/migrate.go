package postgres

import (
	"context"
	"embed"
	"fmt"
	"io/fs"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Migrations returns the embedded schema migrations.
func Migrations() (*migrate.Migrations, error) {
	sub, err := fs.Sub(migrationFiles, "migrations")
	if err != nil {
		return nil, err
	}
	migrations := migrate.NewMigrations()
	if err := migrations.Discover(sub); err != nil {
		return nil, fmt.Errorf("discover migrations: %w", err)
	}
	return migrations, nil
}

// MigrateResult summarises a migration run.
type MigrateResult struct {
	Group   string
	Applied []string
}

// Migrate applies pending migrations under the bun migration lock.
func Migrate(ctx context.Context, db *bun.DB) (MigrateResult, error) {
	migrator, err := newMigrator(db)
	if err != nil {
		return MigrateResult{}, err
	}
	if err := migrator.Init(ctx); err != nil {
		return MigrateResult{}, fmt.Errorf("init migrations: %w", err)
	}
	if err := migrator.Lock(ctx); err != nil {
		return MigrateResult{}, fmt.Errorf("lock migrations: %w", err)
	}
	defer migrator.Unlock(ctx) //nolint:errcheck

	group, err := migrator.Migrate(ctx)
	if err != nil {
		return MigrateResult{}, fmt.Errorf("apply migrations: %w", err)
	}
	return groupResult(group), nil
}

// Rollback reverts the last applied migration group.
func Rollback(ctx context.Context, db *bun.DB) (MigrateResult, error) {
	migrator, err := newMigrator(db)
	if err != nil {
		return MigrateResult{}, err
	}
	if err := migrator.Init(ctx); err != nil {
		return MigrateResult{}, fmt.Errorf("init migrations: %w", err)
	}
	if err := migrator.Lock(ctx); err != nil {
		return MigrateResult{}, fmt.Errorf("lock migrations: %w", err)
	}
	defer migrator.Unlock(ctx) //nolint:errcheck

	group, err := migrator.Rollback(ctx)
	if err != nil {
		return MigrateResult{}, fmt.Errorf("rollback migrations: %w", err)
	}
	return groupResult(group), nil
}

func newMigrator(db *bun.DB) (*migrate.Migrator, error) {
	migrations, err := Migrations()
	if err != nil {
		return nil, err
	}
	return migrate.NewMigrator(db, migrations), nil
}

func groupResult(group *migrate.MigrationGroup) MigrateResult {
	if group == nil || group.IsZero() {
		return MigrateResult{}
	}
	result := MigrateResult{Group: group.String()}
	for _, m := range group.Migrations {
		result.Applied = append(result.Applied, m.Name)
	}
	return result
}
