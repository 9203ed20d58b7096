package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"
)

const defaultCookieName = "admin_token"

// TokenVerifier validates session tokens.
type TokenVerifier interface {
	Verify(token string) (*Identity, error)
}

// Authenticator wires session token verification into HTTP middleware.
type Authenticator struct {
	verifier   TokenVerifier
	cookieName string
	metrics    MetricsRecorder
	now        func() time.Time
}

// Option customises Authenticator behaviour.
type Option func(*Authenticator)

// WithCookieName overrides the cookie carrying the session token.
func WithCookieName(name string) Option {
	return func(a *Authenticator) {
		name = strings.TrimSpace(name)
		if name != "" {
			a.cookieName = name
		}
	}
}

// WithMetrics sets the verification metrics recorder.
func WithMetrics(metrics MetricsRecorder) Option {
	return func(a *Authenticator) {
		a.metrics = metrics
	}
}

// NewAuthenticator constructs an Authenticator for middleware composition.
func NewAuthenticator(verifier TokenVerifier, opts ...Option) *Authenticator {
	a := &Authenticator{
		verifier:   verifier,
		cookieName: defaultCookieName,
		now:        time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	return a
}

// CookieName reports the session cookie name.
func (a *Authenticator) CookieName() string {
	if a == nil {
		return defaultCookieName
	}
	return a.cookieName
}

// RequireAdmin admits dashboard operators only.
func (a *Authenticator) RequireAdmin() func(http.Handler) http.Handler {
	return a.RequireRoles(RoleAdmin, RoleSuperAdmin)
}

// RequireAmbassador admits ambassadors only.
func (a *Authenticator) RequireAmbassador() func(http.Handler) http.Handler {
	return a.RequireRoles(RoleAmbassador)
}

// RequireRoles verifies the session cookie (or bearer token) and ensures one of the allowed roles.
func (a *Authenticator) RequireRoles(allowedRoles ...string) func(http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(allowedRoles))
	for _, role := range allowedRoles {
		if role = canonicalRole(role); role != "" {
			allowed[role] = struct{}{}
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := a.clock()
			token, ok := a.extractToken(r)
			if !ok {
				a.record(r, false, "token_missing", start)
				respondAuthError(w, http.StatusUnauthorized, "unauthenticated", "session token missing")
				return
			}
			if a == nil || a.verifier == nil {
				a.record(r, false, "verifier_unavailable", start)
				respondAuthError(w, http.StatusUnauthorized, "unauthenticated", "authorization service unavailable")
				return
			}

			identity, err := a.verifier.Verify(token)
			if err != nil {
				a.record(r, false, "token_invalid", start)
				respondVerificationError(w, err)
				return
			}

			if len(allowed) > 0 {
				if _, ok := allowed[canonicalRole(identity.Role)]; !ok {
					a.record(r, false, "insufficient_role", start)
					respondAuthError(w, http.StatusForbidden, "insufficient_role", "identity does not have required role")
					return
				}
			}

			a.record(r, true, "ok", start)
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
		})
	}
}

// Subject returns "role:id" for a request carrying a valid session token, or "" otherwise.
// It does not reject the request.
func (a *Authenticator) Subject(r *http.Request) string {
	if a == nil || a.verifier == nil {
		return ""
	}
	token, ok := a.extractToken(r)
	if !ok {
		return ""
	}
	identity, err := a.verifier.Verify(token)
	if err != nil || identity == nil || identity.ID == "" {
		return ""
	}
	return canonicalRole(identity.Role) + ":" + identity.ID
}

// SessionCookie builds the HttpOnly cookie carrying a session token.
func SessionCookie(name, token string, expires time.Time, domain string, secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    token,
		Path:     "/",
		Domain:   domain,
		Expires:  expires,
		MaxAge:   int(time.Until(expires).Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// ExpiredSessionCookie clears the session cookie.
func ExpiredSessionCookie(name, domain string, secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		Domain:   domain,
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
}

func (a *Authenticator) extractToken(r *http.Request) (string, bool) {
	if cookie, err := r.Cookie(a.CookieName()); err == nil {
		if value := strings.TrimSpace(cookie.Value); value != "" {
			return value, true
		}
	}
	return extractBearerToken(r.Header.Get("Authorization"))
}

func (a *Authenticator) clock() time.Time {
	if a == nil || a.now == nil {
		return time.Now()
	}
	return a.now()
}

func (a *Authenticator) record(r *http.Request, success bool, reason string, start time.Time) {
	if a == nil || a.metrics == nil {
		return
	}
	a.metrics.RecordVerification(r.Context(), "session", success, reason, a.clock().Sub(start))
}

func extractBearerToken(header string) (string, bool) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", false
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 {
		return "", false
	}

	if !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}

	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", false
	}

	return token, true
}

func respondAuthError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error":   code,
		"message": message,
		"status":  status,
	})
}

func respondVerificationError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrTokenExpired):
		respondAuthError(w, http.StatusUnauthorized, "token_expired", "session token expired")
	default:
		respondAuthError(w, http.StatusUnauthorized, "invalid_token", "session token invalid")
	}
}
