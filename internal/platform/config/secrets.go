package config

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"slices"
	"strings"
)

// SecretResolver fetches the value behind a secret:// reference.
type SecretResolver interface {
	ResolveSecret(ctx context.Context, ref string) (string, error)
}

type SecretResolverFunc func(context.Context, string) (string, error)

func (f SecretResolverFunc) ResolveSecret(ctx context.Context, ref string) (string, error) {
	return f(ctx, ref)
}

var errNoResolver = errors.New("secret resolver not configured")

// ValidationError lists config fields, or env keys with unparsable values,
// that Load rejected.
type ValidationError struct {
	fields []string
}

func (e *ValidationError) Error() string {
	return "config: invalid fields: " + strings.Join(e.fields, ", ")
}

func (e *ValidationError) Fields() []string {
	return slices.Clone(e.fields)
}

// SecretError wraps a resolver failure for Ref.
type SecretError struct {
	Ref string
	Err error
}

func (e *SecretError) Error() string {
	return fmt.Sprintf("config: resolve %s: %v", e.Ref, e.Err)
}

func (e *SecretError) Unwrap() error { return e.Err }

// MissingSecretsError reports required secrets that resolved empty. Its
// message only carries hashed names.
type MissingSecretsError struct {
	names []string
}

func (e *MissingSecretsError) Error() string {
	return "config: required secrets empty: " + strings.Join(e.RedactedNames(), ", ")
}

func (e *MissingSecretsError) Names() []string {
	if e == nil {
		return nil
	}
	out := slices.Clone(e.names)
	slices.Sort(out)
	return out
}

// RedactedNames returns a 16 hex digit sha256 prefix of each name.
func (e *MissingSecretsError) RedactedNames() []string {
	if e == nil {
		return nil
	}
	out := make([]string, len(e.names))
	for i, name := range e.names {
		sum := sha256.Sum256([]byte(name))
		out[i] = hex.EncodeToString(sum[:8])
	}
	slices.Sort(out)
	return out
}

// secretRef normalises sm:// to secret:// and reports whether value is a reference.
func secretRef(value string) (string, bool) {
	value = strings.TrimSpace(value)
	for _, scheme := range []string{"secret://", "sm://"} {
		if rest, ok := strings.CutPrefix(value, scheme); ok {
			return "secret://" + rest, true
		}
	}
	return "", false
}

// secretBook resolves secret references in place and records what each
// named field ended up holding.
type secretBook struct {
	resolver SecretResolver
	values   map[string]string
}

func (b *secretBook) resolve(ctx context.Context, name string, field *string) error {
	if ref, ok := secretRef(*field); ok {
		if b.resolver == nil {
			return &SecretError{Ref: ref, Err: errNoResolver}
		}
		secret, err := b.resolver.ResolveSecret(ctx, ref)
		if err != nil {
			return &SecretError{Ref: ref, Err: err}
		}
		*field = secret
	}
	b.values[name] = strings.TrimSpace(*field)
	return nil
}

func (b *secretBook) missing(required []string) *MissingSecretsError {
	var names []string
	for _, name := range required {
		name = strings.TrimSpace(name)
		if name == "" || slices.Contains(names, name) {
			continue
		}
		if b.values[name] == "" {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return nil
	}
	return &MissingSecretsError{names: names}
}
