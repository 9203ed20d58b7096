package config

import (
	"bufio"
	"errors"
	"fmt"
	"maps"
	"os"
	"strconv"
	"strings"
	"time"
)

// Option customises Load and EnvironmentValues.
type Option func(*settings)

type settings struct {
	envFile        string
	overrides      map[string]string
	skipProcessEnv bool
	resolver       SecretResolver
	required       []string
	panicOnMissing bool
}

func collect(opts []Option) settings {
	s := settings{envFile: defaultEnvFile}
	for _, opt := range opts {
		if opt != nil {
			opt(&s)
		}
	}
	return s
}

// WithEnvFile points at the dotenv file read before the process environment.
// An empty path skips it.
func WithEnvFile(path string) Option {
	return func(s *settings) { s.envFile = path }
}

// WithEnvMap sets values that win over every other source.
func WithEnvMap(values map[string]string) Option {
	return func(s *settings) { s.overrides = values }
}

func WithoutSystemEnv() Option {
	return func(s *settings) { s.skipProcessEnv = true }
}

// WithSecretResolver handles secret:// and sm:// values.
func WithSecretResolver(resolver SecretResolver) Option {
	return func(s *settings) { s.resolver = resolver }
}

// WithRequiredSecrets names config fields, such as "Auth.JWTSecret" or
// "Security.HMAC.Secrets[flouci]", that must resolve to a non-empty value.
func WithRequiredSecrets(names ...string) Option {
	return func(s *settings) { s.required = append(s.required, names...) }
}

func WithPanicOnMissingSecrets() Option {
	return func(s *settings) { s.panicOnMissing = true }
}

// EnvironmentValues merges the configured sources the same way Load does, so
// the secret fetcher can be built before the config that depends on it.
func EnvironmentValues(opts ...Option) (map[string]string, error) {
	return collect(opts).environment()
}

// environment layers the dotenv file, then the process env, then overrides.
func (s settings) environment() (map[string]string, error) {
	merged, err := readDotEnv(s.envFile)
	if err != nil {
		return nil, err
	}
	if !s.skipProcessEnv {
		for _, kv := range os.Environ() {
			if k, v, ok := strings.Cut(kv, "="); ok && k != "" {
				merged[k] = v
			}
		}
	}
	maps.Copy(merged, s.overrides)
	return merged, nil
}

func readDotEnv(path string) (map[string]string, error) {
	out := map[string]string{}
	if path == "" {
		return out, nil
	}
	f, err := os.Open(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return out, nil
	case err != nil:
		return nil, fmt.Errorf("config: open %s: %w", path, err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for n := 1; sc.Scan(); n++ {
		line := strings.TrimSpace(sc.Text())
		if line == "" || line[0] == '#' {
			continue
		}
		k, v, ok := strings.Cut(strings.TrimPrefix(line, "export "), "=")
		if k = strings.TrimSpace(k); !ok || k == "" {
			return nil, fmt.Errorf("config: %s:%d: expected KEY=VALUE", path, n)
		}
		out[k] = unquote(strings.TrimSpace(v))
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return out, nil
}

func unquote(v string) string {
	if len(v) >= 2 && (v[0] == '"' || v[0] == '\'') && v[len(v)-1] == v[0] {
		return v[1 : len(v)-1]
	}
	return v
}

// envReader reads typed values and remembers keys whose values did not parse.
type envReader struct {
	values    map[string]string
	malformed []string
}

func (e *envReader) lookup(key string) (string, bool) {
	v := strings.TrimSpace(e.values[key])
	return v, v != ""
}

func (e *envReader) String(key, def string) string {
	if v, ok := e.lookup(key); ok {
		return v
	}
	return def
}

func (e *envReader) Duration(key string, def time.Duration) time.Duration {
	v, ok := e.lookup(key)
	if !ok {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.malformed = append(e.malformed, key)
		return def
	}
	return d
}

func (e *envReader) Int(key string, def int) int {
	v, ok := e.lookup(key)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.malformed = append(e.malformed, key)
		return def
	}
	return n
}

func (e *envReader) Bool(key string, def bool) bool {
	v, ok := e.lookup(key)
	if !ok {
		return def
	}
	switch strings.ToLower(v) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	e.malformed = append(e.malformed, key)
	return def
}

func (e *envReader) List(key string) []string {
	out := []string{}
	v, _ := e.lookup(key)
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// Pairs reads "name=value" list items into a map keyed by lower-cased name.
func (e *envReader) Pairs(key string) map[string]string {
	out := map[string]string{}
	for _, item := range e.List(key) {
		name, value, ok := strings.Cut(item, "=")
		name, value = strings.ToLower(strings.TrimSpace(name)), strings.TrimSpace(value)
		if !ok || name == "" || value == "" {
			e.malformed = append(e.malformed, key)
			continue
		}
		out[name] = value
	}
	return out
}
