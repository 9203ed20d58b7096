//go:build integration

package postgres

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	domain "github.com/eventpass/api/internal/domain"
	"github.com/eventpass/api/internal/platform/config"
	ppostgres "github.com/eventpass/api/internal/platform/postgres"
	"github.com/eventpass/api/internal/repositories"
)

func integrationProvider(t *testing.T) *ppostgres.Provider {
	t.Helper()
	if testing.Short() {
		t.Skip("integration test skipped in short mode")
	}
	dsn := os.Getenv("EVENTPASS_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("EVENTPASS_TEST_DATABASE_URL not set")
	}
	provider := ppostgres.NewProvider(config.DatabaseConfig{DSN: dsn, MaxOpenConns: 8, TxTimeout: 10 * time.Second})
	t.Cleanup(func() { _ = provider.Close(context.Background()) })

	ctx := context.Background()
	db, err := provider.DB(ctx)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if _, err := Migrate(ctx, db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return provider
}

func TestOrderRepositoryConditionalUpdateIntegration(t *testing.T) {
	provider := integrationProvider(t)
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	reg, err := NewRegistry(provider, nil)
	if err != nil {
		t.Fatalf("registry: %v", err)
	}

	now := time.Now().UTC().Truncate(time.Microsecond)
	order := domain.Order{
		ID:            uuid.NewString(),
		Source:        domain.OrderSourcePlatformCOD,
		UserName:      "Amira",
		UserPhone:     "+21620000000",
		City:          "Sousse",
		Ville:         "Sahloul",
		PassType:      "VIP",
		Quantity:      2,
		TotalPrice:    decimal.NewFromInt(100),
		PaymentMethod: domain.PaymentMethodLegacyCOD,
		Status:        domain.OrderStatusLegacyPending,
		Passes: []domain.OrderPass{
			{ID: uuid.NewString(), PassType: "VIP", Quantity: 2, Price: decimal.NewFromInt(50)},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	saved, err := reg.Orders().Insert(ctx, order)
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if saved.OrderNumber == nil {
		t.Fatal("expected store-assigned order number")
	}

	const workers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		conflicts int
	)
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			acceptedAt := time.Now().UTC()
			_, err := reg.Orders().UpdateStatus(ctx, repositories.OrderStatusUpdate{
				OrderID:    order.ID,
				From:       domain.OrderStatusLegacyPending,
				To:         domain.OrderStatusLegacyAccepted,
				UpdatedAt:  acceptedAt,
				AcceptedAt: &acceptedAt,
			})
			mu.Lock()
			defer mu.Unlock()
			var repoErr repositories.RepositoryError
			switch {
			case err == nil:
				succeeded++
			case errors.As(err, &repoErr) && repoErr.IsConflict():
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if succeeded != 1 || conflicts != workers-1 {
		t.Fatalf("expected exactly one winner, got %d successes and %d conflicts", succeeded, conflicts)
	}

	got, err := reg.Orders().FindByID(ctx, order.ID)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got.Status != domain.OrderStatusLegacyAccepted || got.AcceptedAt == nil {
		t.Fatalf("unexpected order after race: %+v", got)
	}
	if len(got.Passes) != 1 || !got.Passes[0].Price.Equal(decimal.NewFromInt(50)) {
		t.Fatalf("expected snapshotted pass line, got %+v", got.Passes)
	}

	_, err = reg.Orders().UpdateStatus(ctx, repositories.OrderStatusUpdate{
		OrderID: uuid.NewString(), From: domain.OrderStatusPendingCash, To: domain.OrderStatusPaid, UpdatedAt: now,
	})
	var repoErr repositories.RepositoryError
	if !errors.As(err, &repoErr) || !repoErr.IsNotFound() {
		t.Fatalf("expected not found for unknown order, got %v", err)
	}
}

func seedLegacyOrder(t *testing.T, ctx context.Context, reg *Registry) domain.Order {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Microsecond)
	order := domain.Order{
		ID:            uuid.NewString(),
		Source:        domain.OrderSourcePlatformCOD,
		UserName:      "Sami",
		UserPhone:     "+21621000000",
		City:          "Sousse",
		Ville:         "Sahloul",
		PassType:      "Standard",
		Quantity:      1,
		TotalPrice:    decimal.NewFromInt(50),
		PaymentMethod: domain.PaymentMethodLegacyCOD,
		Status:        domain.OrderStatusLegacyPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if _, err := reg.Orders().Insert(ctx, order); err != nil {
		t.Fatalf("insert: %v", err)
	}
	return order
}

func TestOrderRepositoryFailedLogRollsBackStatusIntegration(t *testing.T) {
	provider := integrationProvider(t)
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	reg, err := NewRegistry(provider, nil)
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	order := seedLegacyOrder(t, ctx, reg)

	err = reg.RunInTx(ctx, func(ctx context.Context) error {
		acceptedAt := time.Now().UTC()
		if _, err := reg.Orders().UpdateStatus(ctx, repositories.OrderStatusUpdate{
			OrderID:    order.ID,
			From:       domain.OrderStatusLegacyPending,
			To:         domain.OrderStatusLegacyAccepted,
			UpdatedAt:  acceptedAt,
			AcceptedAt: &acceptedAt,
		}); err != nil {
			return err
		}
		// order_logs.order_id references orders, so an unknown order id fails the insert.
		return reg.OrderLogs().Append(ctx, domain.OrderLog{
			ID:              uuid.NewString(),
			OrderID:         uuid.NewString(),
			Action:          domain.OrderLogAccepted,
			PerformedByType: domain.ActorAdmin,
			CreatedAt:       acceptedAt,
		})
	})
	if err == nil {
		t.Fatal("expected log append to fail")
	}

	got, err := reg.Orders().FindByID(ctx, order.ID)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got.Status != domain.OrderStatusLegacyPending || got.AcceptedAt != nil {
		t.Fatalf("expected status rolled back to pending, got %s (accepted_at %v)", got.Status, got.AcceptedAt)
	}
}

func TestOrderRepositoryUpdateStatusChecksPreviousAmbassadorIntegration(t *testing.T) {
	provider := integrationProvider(t)
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	reg, err := NewRegistry(provider, nil)
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	order := seedLegacyOrder(t, ctx, reg)

	// The order is unassigned; a caller that believes it belongs to someone else lost a race.
	previous := uuid.NewString()
	next := uuid.NewString()
	_, err = reg.Orders().UpdateStatus(ctx, repositories.OrderStatusUpdate{
		OrderID:          order.ID,
		From:             domain.OrderStatusLegacyPending,
		FromAmbassadorID: &previous,
		To:               domain.OrderStatusLegacyPending,
		AmbassadorID:     &next,
		UpdatedAt:        time.Now().UTC(),
	})
	var repoErr repositories.RepositoryError
	if !errors.As(err, &repoErr) || !repoErr.IsConflict() {
		t.Fatalf("expected conflict for stale ambassador, got %v", err)
	}

	got, err := reg.Orders().FindByID(ctx, order.ID)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got.AmbassadorID != "" {
		t.Fatalf("expected order to stay unassigned, got %q", got.AmbassadorID)
	}
}
