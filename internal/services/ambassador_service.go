package services

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	domain "github.com/eventpass/api/internal/domain"
	"github.com/eventpass/api/internal/platform/auth"
	"github.com/eventpass/api/internal/platform/textutil"
	"github.com/eventpass/api/internal/repositories"
)

var (
	// ErrAmbassadorInvalidInput signals missing or malformed location or credentials.
	ErrAmbassadorInvalidInput = errors.New("ambassador: invalid input")
	// ErrAmbassadorNotFound indicates the ambassador could not be located.
	ErrAmbassadorNotFound = errors.New("ambassador: not found")
	// ErrAmbassadorUnavailable indicates the ambassador store could not be queried.
	ErrAmbassadorUnavailable = errors.New("ambassador: unable to load ambassadors")
	// ErrAmbassadorPending indicates the application has not been approved yet.
	ErrAmbassadorPending = errors.New("ambassador: application pending")
	// ErrAmbassadorRejected indicates the application was rejected.
	ErrAmbassadorRejected = errors.New("ambassador: application rejected")
)

// incomeStatuses are the order statuses that count towards ambassador income.
var incomeStatuses = []domain.OrderStatus{domain.OrderStatusLegacyCompleted, domain.OrderStatusPaid}

// AmbassadorServiceDeps bundles collaborators required to construct the ambassador service.
type AmbassadorServiceDeps struct {
	Ambassadors repositories.AmbassadorRepository
	Orders      repositories.OrderRepository
	Tokens      TokenIssuer
	Passwords   PasswordComparer
	SessionTTL  time.Duration
	// Shuffle reorders ambassadors in place. Defaults to a Fisher–Yates shuffle seeded per call.
	Shuffle func([]Ambassador)
	Logger  func(ctx context.Context, event string, fields map[string]any)
}

type ambassadorService struct {
	ambassadors repositories.AmbassadorRepository
	orders      repositories.OrderRepository
	tokens      TokenIssuer
	passwords   PasswordComparer
	ttl         time.Duration
	shuffle     func([]Ambassador)
	logger      func(context.Context, string, map[string]any)
}

var _ AmbassadorService = (*ambassadorService)(nil)

// NewAmbassadorService wires dependencies into the ambassador service.
func NewAmbassadorService(deps AmbassadorServiceDeps) (AmbassadorService, error) {
	if deps.Ambassadors == nil {
		return nil, errors.New("ambassador service: ambassador repository is required")
	}
	if deps.Orders == nil {
		return nil, errors.New("ambassador service: order repository is required")
	}
	passwords := deps.Passwords
	if passwords == nil {
		passwords = auth.ComparePassword
	}
	ttl := deps.SessionTTL
	if ttl <= 0 {
		ttl = defaultAmbassadorSessionTTL
	}
	shuffle := deps.Shuffle
	if shuffle == nil {
		shuffle = shuffleAmbassadors
	}
	logger := deps.Logger
	if logger == nil {
		logger = discardEvent
	}
	return &ambassadorService{
		ambassadors: deps.Ambassadors,
		orders:      deps.Orders,
		tokens:      deps.Tokens,
		passwords:   passwords,
		ttl:         ttl,
		shuffle:     shuffle,
		logger:      logger,
	}, nil
}

// GetActiveAmbassadorsByLocation returns approved ambassadors for the location in random order.
// An empty slice means nobody covers the location; it is not an error.
func (s *ambassadorService) GetActiveAmbassadorsByLocation(ctx context.Context, city, ville string) ([]Ambassador, error) {
	filter, err := locationFilter(city, ville)
	if err != nil {
		return nil, err
	}
	ambassadors, err := s.ambassadors.ListApproved(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAmbassadorUnavailable, err)
	}
	if len(ambassadors) == 0 {
		return []Ambassador{}, nil
	}
	for i := range ambassadors {
		ambassadors[i].PasswordHash = ""
	}
	s.shuffle(ambassadors)
	return ambassadors, nil
}

func (s *ambassadorService) HasActiveAmbassadors(ctx context.Context, city, ville string) (bool, error) {
	filter, err := locationFilter(city, ville)
	if err != nil {
		return false, err
	}
	ok, err := s.ambassadors.ExistsApproved(ctx, filter)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrAmbassadorUnavailable, err)
	}
	return ok, nil
}

func (s *ambassadorService) Login(ctx context.Context, cmd AmbassadorLoginCommand) (Session, error) {
	phone := textutil.NormalizePhone(cmd.Phone)
	if phone == "" || cmd.Password == "" {
		return Session{}, fmt.Errorf("%w: phone and password are required", ErrAmbassadorInvalidInput)
	}
	if s.tokens == nil {
		return Session{}, errors.New("ambassador service: token issuer not configured")
	}

	ambassador, err := s.ambassadors.FindByPhone(ctx, phone)
	if err != nil {
		if notFound(err) {
			return Session{}, ErrAuthInvalidCredentials
		}
		return Session{}, fmt.Errorf("%w: %v", ErrAmbassadorUnavailable, err)
	}
	if err := s.passwords(ambassador.PasswordHash, cmd.Password); err != nil {
		s.logger(ctx, "ambassador.login.mismatch", map[string]any{"ambassadorId": ambassador.ID})
		return Session{}, ErrAuthInvalidCredentials
	}
	switch ambassador.Status {
	case domain.AmbassadorApprovalApproved:
	case domain.AmbassadorApprovalRejected:
		return Session{}, ErrAmbassadorRejected
	default:
		return Session{}, ErrAmbassadorPending
	}

	subject := SessionSubject{ID: ambassador.ID, Email: ambassador.Email, Role: auth.RoleAmbassador}
	token, expires, err := s.tokens.IssueSession(subject, s.ttl)
	if err != nil {
		return Session{}, fmt.Errorf("ambassador: issue session: %w", err)
	}
	s.logger(ctx, "ambassador.login", map[string]any{"ambassadorId": ambassador.ID})
	return Session{Subject: subject, Token: token, ExpiresAt: expires}, nil
}

// Income applies the tiered commission to the ambassador's completed and paid tickets.
// commission_rate on the ambassador record is not consulted.
func (s *ambassadorService) Income(ctx context.Context, ambassadorID string) (AmbassadorIncome, error) {
	ambassadorID = strings.TrimSpace(ambassadorID)
	if ambassadorID == "" {
		return AmbassadorIncome{}, fmt.Errorf("%w: ambassador id is required", ErrAmbassadorInvalidInput)
	}
	tickets, err := s.orders.SumTickets(ctx, ambassadorID, incomeStatuses)
	if err != nil {
		return AmbassadorIncome{}, fmt.Errorf("%w: %v", ErrAmbassadorUnavailable, err)
	}
	return AmbassadorIncome{
		AmbassadorID: ambassadorID,
		TicketsSold:  tickets,
		Income:       domain.CalculateAmbassadorIncome(tickets),
	}, nil
}

func locationFilter(city, ville string) (repositories.AmbassadorLocationFilter, error) {
	city = strings.TrimSpace(city)
	if city == "" {
		return repositories.AmbassadorLocationFilter{}, fmt.Errorf("%w: city is required", ErrAmbassadorInvalidInput)
	}
	return repositories.AmbassadorLocationFilter{City: city, Ville: strings.TrimSpace(ville)}, nil
}

// shuffleAmbassadors is a Fisher–Yates shuffle over a source created for this call only.
func shuffleAmbassadors(items []Ambassador) {
	rng := rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	for i := len(items) - 1; i > 0; i-- {
		j := rng.IntN(i + 1)
		items[i], items[j] = items[j], items[i]
	}
}
