package secrets

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/googleapis/gax-go/v2"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const jwtResource = "projects/eventpass-prod/secrets/jwt_secret/versions/latest"

func TestResolveSecretCachesUntilTTL(t *testing.T) {
	ctx := context.Background()
	client := newFakeSecretClient()
	client.values[jwtResource] = "remote-secret\n"

	fetcher, err := NewFetcher(ctx, WithSecretManagerClient(client), WithProject("eventpass-prod"), WithCacheTTL(time.Minute), WithFallbackFile(""))
	if err != nil {
		t.Fatalf("NewFetcher: %v", err)
	}
	now := time.Date(2025, 6, 14, 12, 0, 0, 0, time.UTC)
	fetcher.now = func() time.Time { return now }

	for i := 0; i < 2; i++ {
		got, err := fetcher.ResolveSecret(ctx, "secret://jwt_secret")
		if err != nil {
			t.Fatalf("ResolveSecret: %v", err)
		}
		if got != "remote-secret" {
			t.Fatalf("expected trimmed remote value, got %q", got)
		}
	}
	if calls := client.callCount(jwtResource); calls != 1 {
		t.Fatalf("expected one remote call while cached, got %d", calls)
	}

	now = now.Add(2 * time.Minute)
	if _, err := fetcher.ResolveSecret(ctx, "secret://jwt_secret"); err != nil {
		t.Fatalf("ResolveSecret after expiry: %v", err)
	}
	if calls := client.callCount(jwtResource); calls != 2 {
		t.Fatalf("expected refetch after ttl, got %d calls", calls)
	}
}

func TestResolveSecretHonoursVersionAndProject(t *testing.T) {
	client := newFakeSecretClient()
	client.values["projects/other/secrets/flouci/versions/3"] = "v3"
	fetcher, err := NewFetcher(context.Background(), WithSecretManagerClient(client), WithProject("eventpass-prod"), WithFallbackFile(""))
	if err != nil {
		t.Fatalf("NewFetcher: %v", err)
	}

	got, err := fetcher.ResolveSecret(context.Background(), "secret://flouci?version=3&project=other")
	if err != nil || got != "v3" {
		t.Fatalf("expected pinned version, got %q err=%v", got, err)
	}
}

func TestResolveSecretFallsBackWhenUnavailable(t *testing.T) {
	client := newFakeSecretClient()
	client.errors[jwtResource] = status.Error(codes.Unavailable, "down")
	client.errors["projects/none/secrets/clictopay/versions/2"] = status.Error(codes.PermissionDenied, "denied")
	path := writeFallback(t, "# local secrets\njwt_secret = local-secret\nclictopay@2=older\n")

	fetcher, err := NewFetcher(context.Background(), WithSecretManagerClient(client), WithProject("eventpass-prod"), WithFallbackFile(path))
	if err != nil {
		t.Fatalf("NewFetcher: %v", err)
	}

	got, err := fetcher.ResolveSecret(context.Background(), "secret://jwt_secret")
	if err != nil || got != "local-secret" {
		t.Fatalf("expected fallback value, got %q err=%v", got, err)
	}
	got, err = fetcher.ResolveSecret(context.Background(), "secret://clictopay?version=2&project=none")
	if err != nil || got != "older" {
		t.Fatalf("expected versioned fallback, got %q err=%v", got, err)
	}
}

func TestResolveSecretDoesNotFallBackOnNotFound(t *testing.T) {
	client := newFakeSecretClient()
	path := writeFallback(t, "jwt_secret=local\n")
	fetcher, err := NewFetcher(context.Background(), WithSecretManagerClient(client), WithProject("eventpass-prod"), WithFallbackFile(path))
	if err != nil {
		t.Fatalf("NewFetcher: %v", err)
	}

	if _, err := fetcher.ResolveSecret(context.Background(), "secret://jwt_secret"); err == nil || status.Code(errors.Unwrap(err)) != codes.NotFound {
		t.Fatalf("expected wrapped not found from secret manager, got %v", err)
	}
}

func TestResolveSecretWithoutProjectUsesFallbackOnly(t *testing.T) {
	original := newSecretManagerClient
	t.Cleanup(func() { newSecretManagerClient = original })
	newSecretManagerClient = func(context.Context, ...option.ClientOption) (secretManagerClient, error) {
		t.Fatal("client must not be dialed without a project")
		return nil, nil
	}

	fetcher, err := NewFetcher(context.Background(), WithFallbackFile(writeFallback(t, "sms_key=abc\n")))
	if err != nil {
		t.Fatalf("NewFetcher: %v", err)
	}
	got, err := fetcher.ResolveSecret(context.Background(), "secret://sms_key")
	if err != nil || got != "abc" {
		t.Fatalf("expected fallback value, got %q err=%v", got, err)
	}
	if _, err := fetcher.ResolveSecret(context.Background(), "secret://missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestInvalidateForcesRefetch(t *testing.T) {
	client := newFakeSecretClient()
	client.values[jwtResource] = "first"
	fetcher, err := NewFetcher(context.Background(), WithSecretManagerClient(client), WithProject("eventpass-prod"), WithFallbackFile(""))
	if err != nil {
		t.Fatalf("NewFetcher: %v", err)
	}
	if _, err := fetcher.ResolveSecret(context.Background(), "secret://jwt_secret"); err != nil {
		t.Fatalf("ResolveSecret: %v", err)
	}
	client.values[jwtResource] = "rotated"
	fetcher.Invalidate("secret://jwt_secret")

	got, err := fetcher.ResolveSecret(context.Background(), "secret://jwt_secret")
	if err != nil || got != "rotated" {
		t.Fatalf("expected rotated value, got %q err=%v", got, err)
	}
}

func TestParseReferenceRejectsBadInput(t *testing.T) {
	for _, ref := range []string{"", "https://x", "secret://"} {
		if _, err := parseReference(ref); err == nil {
			t.Errorf("expected error for %q", ref)
		}
	}
}

func writeFallback(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), ".secrets.local")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write fallback: %v", err)
	}
	return path
}

type fakeSecretClient struct {
	mu      sync.Mutex
	values  map[string]string
	errors  map[string]error
	counter map[string]int
}

func newFakeSecretClient() *fakeSecretClient {
	return &fakeSecretClient{
		values:  make(map[string]string),
		errors:  make(map[string]error),
		counter: make(map[string]int),
	}
}

func (f *fakeSecretClient) AccessSecretVersion(_ context.Context, req *secretmanagerpb.AccessSecretVersionRequest, _ ...gax.CallOption) (*secretmanagerpb.AccessSecretVersionResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	name := req.GetName()
	f.counter[name]++
	if err, ok := f.errors[name]; ok {
		return nil, err
	}
	if value, ok := f.values[name]; ok {
		return &secretmanagerpb.AccessSecretVersionResponse{
			Payload: &secretmanagerpb.SecretPayload{Data: []byte(value)},
		}, nil
	}
	return nil, status.Error(codes.NotFound, "not found")
}

func (f *fakeSecretClient) Close() error { return nil }

func (f *fakeSecretClient) callCount(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.counter[name]
}
