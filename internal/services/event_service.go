package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/eventpass/api/internal/repositories"
)

var (
	// ErrEventInvalidInput signals a malformed event or pass list.
	ErrEventInvalidInput = errors.New("event: invalid input")
	// ErrEventNotFound indicates the event could not be located.
	ErrEventNotFound = errors.New("event: not found")
	// ErrEventStorageUnavailable indicates poster storage is not configured.
	ErrEventStorageUnavailable = errors.New("event: poster storage unavailable")
)

// EventServiceDeps bundles collaborators required to construct the event service.
type EventServiceDeps struct {
	Events      repositories.EventRepository
	Posters     PosterStorage
	Clock       func() time.Time
	IDGenerator func() string
	Logger      func(ctx context.Context, event string, fields map[string]any)
}

type eventService struct {
	events  repositories.EventRepository
	posters PosterStorage
	clock   func() time.Time
	newID   func() string
	logger  func(context.Context, string, map[string]any)
}

var _ EventService = (*eventService)(nil)

// NewEventService wires dependencies into the event service.
func NewEventService(deps EventServiceDeps) (EventService, error) {
	if deps.Events == nil {
		return nil, errors.New("event service: event repository is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string { return uuid.NewString() }
	}
	logger := deps.Logger
	if logger == nil {
		logger = discardEvent
	}
	return &eventService{
		events:  deps.Events,
		posters: deps.Posters,
		clock:   func() time.Time { return clock().UTC() },
		newID:   idGen,
		logger:  logger,
	}, nil
}

func (s *eventService) ListPublished(ctx context.Context) ([]Event, error) {
	events, err := s.events.ListPublished(ctx)
	if err != nil {
		return nil, err
	}
	if events == nil {
		return []Event{}, nil
	}
	return events, nil
}

// GetEvent returns a published event. Unpublished events are reported as not found.
func (s *eventService) GetEvent(ctx context.Context, eventID string) (Event, error) {
	event, err := s.find(ctx, eventID)
	if err != nil {
		return Event{}, err
	}
	if !event.Published {
		return Event{}, fmt.Errorf("%w: %s", ErrEventNotFound, event.ID)
	}
	active := event.Passes[:0:0]
	for _, pass := range event.Passes {
		if pass.Active {
			active = append(active, pass)
		}
	}
	event.Passes = active
	return event, nil
}

func (s *eventService) CreateEvent(ctx context.Context, cmd UpsertEventCommand) (Event, error) {
	cmd.EventID = s.newID()
	now := s.clock()
	event, err := s.buildEvent(cmd, now)
	if err != nil {
		return Event{}, err
	}
	event.CreatedAt = now
	if err := s.events.Insert(ctx, event); err != nil {
		return Event{}, err
	}
	s.logger(ctx, "event.created", map[string]any{"eventId": event.ID, "passes": len(event.Passes)})
	return event, nil
}

// UpdateEvent replaces the event fields and pass list. Passes missing from the command are
// deactivated rather than deleted, since orders reference them.
func (s *eventService) UpdateEvent(ctx context.Context, cmd UpsertEventCommand) (Event, error) {
	existing, err := s.find(ctx, cmd.EventID)
	if err != nil {
		return Event{}, err
	}
	event, err := s.buildEvent(cmd, s.clock())
	if err != nil {
		return Event{}, err
	}
	event.ID = existing.ID
	event.PosterURL = existing.PosterURL
	event.CreatedAt = existing.CreatedAt
	if err := s.events.Update(ctx, event); err != nil {
		if notFound(err) {
			return Event{}, fmt.Errorf("%w: %s", ErrEventNotFound, event.ID)
		}
		return Event{}, err
	}
	s.logger(ctx, "event.updated", map[string]any{"eventId": event.ID, "passes": len(event.Passes)})
	return event, nil
}

func (s *eventService) IssuePosterUpload(ctx context.Context, cmd PosterUploadCommand) (PosterUpload, error) {
	if s.posters == nil {
		return PosterUpload{}, ErrEventStorageUnavailable
	}
	event, err := s.find(ctx, cmd.EventID)
	if err != nil {
		return PosterUpload{}, err
	}
	if strings.TrimSpace(cmd.FileName) == "" || strings.TrimSpace(cmd.ContentType) == "" {
		return PosterUpload{}, fmt.Errorf("%w: file name and content type are required", ErrEventInvalidInput)
	}
	upload, err := s.posters.IssuePosterUpload(ctx, event.ID, cmd.FileName, cmd.ContentType)
	if err != nil {
		return PosterUpload{}, fmt.Errorf("%w: %v", ErrEventInvalidInput, err)
	}
	return upload, nil
}

func (s *eventService) PublishPoster(ctx context.Context, cmd PublishPosterCommand) (Event, error) {
	if s.posters == nil {
		return Event{}, ErrEventStorageUnavailable
	}
	event, err := s.find(ctx, cmd.EventID)
	if err != nil {
		return Event{}, err
	}
	if strings.TrimSpace(cmd.UploadID) == "" || strings.TrimSpace(cmd.FileName) == "" {
		return Event{}, fmt.Errorf("%w: upload id and file name are required", ErrEventInvalidInput)
	}
	url, err := s.posters.PublishPoster(ctx, event.ID, cmd.UploadID, cmd.FileName)
	if err != nil {
		return Event{}, err
	}
	now := s.clock()
	if err := s.events.UpdatePoster(ctx, event.ID, url, now); err != nil {
		return Event{}, err
	}
	event.PosterURL = url
	event.UpdatedAt = now
	s.logger(ctx, "event.poster.published", map[string]any{"eventId": event.ID, "uploadId": cmd.UploadID})
	return event, nil
}

func (s *eventService) find(ctx context.Context, eventID string) (Event, error) {
	eventID = strings.TrimSpace(eventID)
	if eventID == "" {
		return Event{}, fmt.Errorf("%w: event id is required", ErrEventInvalidInput)
	}
	event, err := s.events.FindByID(ctx, eventID)
	if err != nil {
		if notFound(err) {
			return Event{}, fmt.Errorf("%w: %s", ErrEventNotFound, eventID)
		}
		return Event{}, err
	}
	return event, nil
}

func (s *eventService) buildEvent(cmd UpsertEventCommand, now time.Time) (Event, error) {
	name := strings.TrimSpace(cmd.Name)
	if name == "" {
		return Event{}, fmt.Errorf("%w: name is required", ErrEventInvalidInput)
	}
	if cmd.Date.IsZero() {
		return Event{}, fmt.Errorf("%w: date is required", ErrEventInvalidInput)
	}
	if len(cmd.Passes) == 0 {
		return Event{}, fmt.Errorf("%w: at least one pass is required", ErrEventInvalidInput)
	}

	event := Event{
		ID:          strings.TrimSpace(cmd.EventID),
		Name:        name,
		Description: strings.TrimSpace(cmd.Description),
		Venue:       strings.TrimSpace(cmd.Venue),
		City:        strings.TrimSpace(cmd.City),
		Date:        cmd.Date.UTC(),
		Published:   cmd.Published,
		UpdatedAt:   now,
		Passes:      make([]EventPass, 0, len(cmd.Passes)),
	}
	names := make(map[string]struct{}, len(cmd.Passes))
	for i, in := range cmd.Passes {
		passName := strings.TrimSpace(in.Name)
		if passName == "" {
			return Event{}, fmt.Errorf("%w: pass %d name is required", ErrEventInvalidInput, i)
		}
		if _, dup := names[strings.ToLower(passName)]; dup {
			return Event{}, fmt.Errorf("%w: duplicate pass %q", ErrEventInvalidInput, passName)
		}
		names[strings.ToLower(passName)] = struct{}{}
		if in.Price.IsNegative() {
			return Event{}, fmt.Errorf("%w: pass %q price must not be negative", ErrEventInvalidInput, passName)
		}
		id := strings.TrimSpace(in.ID)
		if id == "" {
			id = s.newID()
		}
		event.Passes = append(event.Passes, EventPass{
			ID:          id,
			EventID:     event.ID,
			Name:        passName,
			Description: strings.TrimSpace(in.Description),
			Price:       in.Price,
			Active:      in.Active,
		})
	}
	return event, nil
}
