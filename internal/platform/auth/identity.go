package auth

import (
	"context"
	"slices"
	"strings"
)

const (
	RoleAdmin      = "admin"
	RoleSuperAdmin = "super_admin"
	RoleAmbassador = "ambassador"
)

// Identity is the principal a verified session token names.
type Identity struct {
	ID    string
	Email string
	Role  string
}

// Is reports whether the identity holds one of roles. Comparison ignores case.
func (i *Identity) Is(roles ...string) bool {
	if i == nil {
		return false
	}
	own := canonicalRole(i.Role)
	return own != "" && slices.ContainsFunc(roles, func(r string) bool { return canonicalRole(r) == own })
}

// IsAdmin is true for dashboard roles.
func (i *Identity) IsAdmin() bool {
	return i.Is(RoleAdmin, RoleSuperAdmin)
}

type identityKey struct{}

func WithIdentity(ctx context.Context, identity *Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, identity)
}

func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	identity, _ := ctx.Value(identityKey{}).(*Identity)
	return identity, identity != nil
}

func canonicalRole(role string) string {
	return strings.ToLower(strings.TrimSpace(role))
}
