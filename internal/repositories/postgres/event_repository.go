package postgres

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/uptrace/bun"

	domain "github.com/eventpass/api/internal/domain"
	ppostgres "github.com/eventpass/api/internal/platform/postgres"
	"github.com/eventpass/api/internal/repositories"
)

// EventRepository persists events and their passes.
type EventRepository struct {
	provider *ppostgres.Provider
}

var _ repositories.EventRepository = (*EventRepository)(nil)

// NewEventRepository constructs a Postgres-backed event repository.
func NewEventRepository(provider *ppostgres.Provider) (*EventRepository, error) {
	if provider == nil {
		return nil, errors.New("event repository requires postgres provider")
	}
	return &EventRepository{provider: provider}, nil
}

// ListPublished returns published events by date with their active passes.
func (r *EventRepository) ListPublished(ctx context.Context) ([]domain.Event, error) {
	conn, err := r.provider.Conn(ctx)
	if err != nil {
		return nil, err
	}
	var rows []*eventRow
	err = conn.NewSelect().Model(&rows).
		Relation("Passes", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("ep.active").OrderExpr("ep.price ASC")
		}).
		Where("e.published").
		OrderExpr("e.date ASC").
		Scan(ctx)
	if err != nil {
		return nil, ppostgres.WrapError("events.list_published", err)
	}
	events := make([]domain.Event, 0, len(rows))
	for _, row := range rows {
		events = append(events, row.toDomain())
	}
	return events, nil
}

func (r *EventRepository) FindByID(ctx context.Context, eventID string) (domain.Event, error) {
	id := strings.TrimSpace(eventID)
	if id == "" {
		return domain.Event{}, errors.New("event repository: id is required")
	}
	conn, err := r.provider.Conn(ctx)
	if err != nil {
		return domain.Event{}, err
	}
	row := new(eventRow)
	err = conn.NewSelect().Model(row).
		Relation("Passes", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.OrderExpr("ep.price ASC")
		}).
		Where("e.id = ?", id).
		Scan(ctx)
	if err != nil {
		return domain.Event{}, ppostgres.WrapError("events.get", err)
	}
	return row.toDomain(), nil
}

// FindPasses loads the requested passes of an event. Missing ids are simply absent from the result.
func (r *EventRepository) FindPasses(ctx context.Context, eventID string, passIDs []string) ([]domain.EventPass, error) {
	id := strings.TrimSpace(eventID)
	if id == "" {
		return nil, errors.New("event repository: event id is required")
	}
	if len(passIDs) == 0 {
		return nil, nil
	}
	conn, err := r.provider.Conn(ctx)
	if err != nil {
		return nil, err
	}
	var rows []*eventPassRow
	err = conn.NewSelect().Model(&rows).
		Where("ep.event_id = ?", id).
		Where("ep.id IN (?)", bun.In(passIDs)).
		Scan(ctx)
	if err != nil {
		return nil, ppostgres.WrapError("events.find_passes", err)
	}
	passes := make([]domain.EventPass, 0, len(rows))
	for _, row := range rows {
		passes = append(passes, row.toDomain())
	}
	return passes, nil
}

// Insert stores a new event with its passes.
func (r *EventRepository) Insert(ctx context.Context, event domain.Event) error {
	row := newEventRow(event)
	err := r.provider.RunInTx(ctx, func(ctx context.Context) error {
		conn, err := r.provider.Conn(ctx)
		if err != nil {
			return err
		}
		if _, err := conn.NewInsert().Model(row).Exec(ctx); err != nil {
			return err
		}
		if len(row.Passes) == 0 {
			return nil
		}
		_, err = conn.NewInsert().Model(&row.Passes).Exec(ctx)
		return err
	})
	return ppostgres.WrapError("events.insert", err)
}

// Update overwrites event fields and upserts its passes. Passes absent from the event are deactivated.
func (r *EventRepository) Update(ctx context.Context, event domain.Event) error {
	row := newEventRow(event)
	err := r.provider.RunInTx(ctx, func(ctx context.Context) error {
		conn, err := r.provider.Conn(ctx)
		if err != nil {
			return err
		}
		res, err := conn.NewUpdate().Model(row).
			Column("name", "description", "venue", "city", "date", "poster_url", "published", "updated_at").
			WherePK().
			Exec(ctx)
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return ppostgres.NotFound("events.update", "event %s not found", row.ID)
		}

		keep := make([]string, 0, len(row.Passes))
		for _, pass := range row.Passes {
			keep = append(keep, pass.ID)
		}
		deactivate := conn.NewUpdate().Model((*eventPassRow)(nil)).
			Set("active = false").
			Where("event_id = ?", row.ID)
		if len(keep) > 0 {
			deactivate = deactivate.Where("id NOT IN (?)", bun.In(keep))
		}
		if _, err := deactivate.Exec(ctx); err != nil {
			return err
		}
		if len(row.Passes) == 0 {
			return nil
		}
		_, err = conn.NewInsert().Model(&row.Passes).
			On("CONFLICT (id) DO UPDATE").
			Set("name = EXCLUDED.name").
			Set("description = EXCLUDED.description").
			Set("price = EXCLUDED.price").
			Set("active = EXCLUDED.active").
			Exec(ctx)
		return err
	})
	return ppostgres.WrapError("events.update", err)
}

func (r *EventRepository) UpdatePoster(ctx context.Context, eventID, posterURL string, updatedAt time.Time) error {
	id := strings.TrimSpace(eventID)
	if id == "" {
		return errors.New("event repository: id is required")
	}
	conn, err := r.provider.Conn(ctx)
	if err != nil {
		return err
	}
	res, err := conn.NewUpdate().Model((*eventRow)(nil)).
		Set("poster_url = ?", posterURL).
		Set("updated_at = ?", updatedAt.UTC()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return ppostgres.WrapError("events.update_poster", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ppostgres.NotFound("events.update_poster", "event %s not found", id)
	}
	return nil
}
