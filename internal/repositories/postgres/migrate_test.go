package postgres

import (
	"strings"
	"testing"
)

func TestMigrationsAreEmbedded(t *testing.T) {
	migrations, err := Migrations()
	if err != nil {
		t.Fatalf("Migrations: %v", err)
	}
	sorted := migrations.Sorted()
	if len(sorted) == 0 {
		t.Fatal("expected embedded migrations")
	}
	first := sorted[0]
	if first.Name != "20250601120000" {
		t.Fatalf("unexpected first migration %q", first.Name)
	}
	if first.Up == nil || first.Down == nil {
		t.Fatal("expected up and down migration for init")
	}
}

func TestInitMigrationEnforcesCancellationReason(t *testing.T) {
	data, err := migrationFiles.ReadFile("migrations/20250601120000_init.up.sql")
	if err != nil {
		t.Fatalf("read migration: %v", err)
	}
	if !strings.Contains(string(data), "(status = 'CANCELLED') = (cancellation_reason IS NOT NULL)") {
		t.Fatal("orders table must tie cancellation_reason to CANCELLED status")
	}
}
