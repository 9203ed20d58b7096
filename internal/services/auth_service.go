package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/eventpass/api/internal/platform/auth"
	"github.com/eventpass/api/internal/repositories"
)

const (
	defaultAdminSessionTTL      = 12 * time.Hour
	defaultAmbassadorSessionTTL = 24 * time.Hour
)

var (
	// ErrAuthInvalidInput indicates missing credentials.
	ErrAuthInvalidInput = errors.New("auth: invalid input")
	// ErrAuthInvalidCredentials is returned for unknown users and wrong passwords alike.
	ErrAuthInvalidCredentials = errors.New("auth: invalid credentials")
	// ErrAuthAccountDisabled indicates the admin account is deactivated.
	ErrAuthAccountDisabled = errors.New("auth: account disabled")
	// ErrAuthUnavailable indicates the credential store could not be reached.
	ErrAuthUnavailable = errors.New("auth: unavailable")
)

// PasswordComparer checks a plaintext password against a stored hash.
type PasswordComparer func(hash, password string) error

// NewTokenIssuer adapts the session token manager to TokenIssuer.
func NewTokenIssuer(manager *auth.TokenManager) (TokenIssuer, error) {
	if manager == nil {
		return nil, errors.New("token issuer: token manager is required")
	}
	return tokenIssuer{manager: manager}, nil
}

type tokenIssuer struct {
	manager *auth.TokenManager
}

func (i tokenIssuer) IssueSession(subject SessionSubject, ttl time.Duration) (string, time.Time, error) {
	return i.manager.Issue(auth.Identity{ID: subject.ID, Email: subject.Email, Role: subject.Role}, ttl)
}

// AuthServiceDeps bundles collaborators required to construct the admin auth service.
type AuthServiceDeps struct {
	Admins    repositories.AdminRepository
	Tokens    TokenIssuer
	Passwords PasswordComparer
	TTL       time.Duration
	Logger    func(ctx context.Context, event string, fields map[string]any)
}

type authService struct {
	admins    repositories.AdminRepository
	tokens    TokenIssuer
	passwords PasswordComparer
	ttl       time.Duration
	logger    func(context.Context, string, map[string]any)
}

var _ AuthService = (*authService)(nil)

// NewAuthService wires dependencies into the admin auth service.
func NewAuthService(deps AuthServiceDeps) (AuthService, error) {
	if deps.Admins == nil {
		return nil, errors.New("auth service: admin repository is required")
	}
	if deps.Tokens == nil {
		return nil, errors.New("auth service: token issuer is required")
	}
	passwords := deps.Passwords
	if passwords == nil {
		passwords = auth.ComparePassword
	}
	ttl := deps.TTL
	if ttl <= 0 {
		ttl = defaultAdminSessionTTL
	}
	logger := deps.Logger
	if logger == nil {
		logger = discardEvent
	}
	return &authService{
		admins:    deps.Admins,
		tokens:    deps.Tokens,
		passwords: passwords,
		ttl:       ttl,
		logger:    logger,
	}, nil
}

func (s *authService) AdminLogin(ctx context.Context, cmd AdminLoginCommand) (Session, error) {
	email := strings.ToLower(strings.TrimSpace(cmd.Email))
	if email == "" || cmd.Password == "" {
		return Session{}, fmt.Errorf("%w: email and password are required", ErrAuthInvalidInput)
	}

	admin, err := s.admins.FindByEmail(ctx, email)
	if err != nil {
		if notFound(err) {
			s.logger(ctx, "auth.admin.login.unknown", map[string]any{"email": email})
			return Session{}, ErrAuthInvalidCredentials
		}
		return Session{}, fmt.Errorf("%w: %v", ErrAuthUnavailable, err)
	}
	if err := s.passwords(admin.PasswordHash, cmd.Password); err != nil {
		s.logger(ctx, "auth.admin.login.mismatch", map[string]any{"adminId": admin.ID})
		return Session{}, ErrAuthInvalidCredentials
	}
	if !admin.Active {
		return Session{}, ErrAuthAccountDisabled
	}

	role := strings.TrimSpace(admin.Role)
	if role == "" {
		role = auth.RoleAdmin
	}
	subject := SessionSubject{ID: admin.ID, Email: admin.Email, Role: role}
	token, expires, err := s.tokens.IssueSession(subject, s.ttl)
	if err != nil {
		return Session{}, fmt.Errorf("auth: issue session: %w", err)
	}
	s.logger(ctx, "auth.admin.login", map[string]any{"adminId": admin.ID, "role": role})
	return Session{Subject: subject, Token: token, ExpiresAt: expires}, nil
}

func (s *authService) CurrentAdmin(ctx context.Context, adminID string) (Admin, error) {
	adminID = strings.TrimSpace(adminID)
	if adminID == "" {
		return Admin{}, fmt.Errorf("%w: admin id is required", ErrAuthInvalidInput)
	}
	admin, err := s.admins.FindByID(ctx, adminID)
	if err != nil {
		if notFound(err) {
			return Admin{}, ErrAuthInvalidCredentials
		}
		return Admin{}, fmt.Errorf("%w: %v", ErrAuthUnavailable, err)
	}
	if !admin.Active {
		return Admin{}, ErrAuthAccountDisabled
	}
	admin.PasswordHash = ""
	return admin, nil
}
