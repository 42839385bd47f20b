package tokens

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/itamhq/teambot/pkg/config"
	pkgerrors "github.com/itamhq/teambot/pkg/errors"
)

type fakeKV struct {
	data    map[string]string
	ttls    map[string]time.Duration
	err     error
	setNXed int
}

func newFakeKV() *fakeKV {
	return &fakeKV{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeKV) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	f.setNXed++
	if f.err != nil {
		return false, f.err
	}
	if _, exists := f.data[key]; exists {
		return false, nil
	}
	f.data[key] = value.(string)
	f.ttls[key] = ttl
	return true, nil
}

func newTestStore(t *testing.T, kv keyValueStore) *Store {
	t.Helper()
	store, err := NewStore(kv, config.TokenConfig{TTL: 600 * time.Second, Length: 16})
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	return store
}

func TestIssueStoresValueWithTTL(t *testing.T) {
	kv := newFakeKV()
	store := newTestStore(t, kv)
	store.now = func() time.Time {
		return time.Date(2026, 3, 1, 14, 30, 0, 0, time.UTC)
	}

	token, err := store.Issue(context.Background(), 42, "alice")
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}
	if len(token) != 16 {
		t.Fatalf("expected 16-char token, got %q", token)
	}
	if kv.data[token] != "42;alice;14:30" {
		t.Fatalf("unexpected stored value %q", kv.data[token])
	}
	if kv.ttls[token] != 600*time.Second {
		t.Fatalf("unexpected ttl %v", kv.ttls[token])
	}
}

func TestIssueEmptyUsernameUsesDash(t *testing.T) {
	kv := newFakeKV()
	store := newTestStore(t, kv)
	store.now = func() time.Time {
		return time.Date(2026, 3, 1, 9, 5, 0, 0, time.UTC)
	}

	token, err := store.Issue(context.Background(), 7, "")
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}
	if kv.data[token] != "7;-;09:05" {
		t.Fatalf("unexpected stored value %q", kv.data[token])
	}
}

func TestIssueRetriesOnCollision(t *testing.T) {
	kv := newFakeKV()
	store := newTestStore(t, kv)

	candidates := []string{"AAAAAAAAAAAAAAAA", "AAAAAAAAAAAAAAAA", "BBBBBBBBBBBBBBBB"}
	store.generate = func(int) (string, error) {
		next := candidates[0]
		if len(candidates) > 1 {
			candidates = candidates[1:]
		}
		return next, nil
	}

	first, err := store.Issue(context.Background(), 1, "a")
	if err != nil {
		t.Fatalf("first issue failed: %v", err)
	}
	second, err := store.Issue(context.Background(), 2, "b")
	if err != nil {
		t.Fatalf("second issue failed: %v", err)
	}
	if first == second {
		t.Fatalf("live tokens must be unique, both %q", first)
	}
	if kv.setNXed != 3 {
		t.Fatalf("expected collision to cost one extra probe, got %d", kv.setNXed)
	}
}

func TestIssueUniqueAcrossMany(t *testing.T) {
	kv := newFakeKV()
	store := newTestStore(t, kv)

	seen := map[string]bool{}
	for i := 0; i < 200; i++ {
		token, err := store.Issue(context.Background(), int64(i), "u")
		if err != nil {
			t.Fatalf("issue %d failed: %v", i, err)
		}
		if seen[token] {
			t.Fatalf("duplicate live token %q", token)
		}
		seen[token] = true
	}
}

func TestIssueSurfacesStoreErrors(t *testing.T) {
	kv := newFakeKV()
	kv.err = errors.New("connection reset")
	store := newTestStore(t, kv)

	_, err := store.Issue(context.Background(), 42, "alice")
	if err == nil {
		t.Fatalf("expected error")
	}
	if pkgerrors.CodeOf(err) != pkgerrors.CodeDependency {
		t.Fatalf("store failures are delivery failures, got %s", pkgerrors.CodeOf(err))
	}
	if kv.setNXed != 1 {
		t.Fatalf("store errors must not be retried internally, got %d probes", kv.setNXed)
	}
}

func TestIssueBoundedAttempts(t *testing.T) {
	kv := newFakeKV()
	store := newTestStore(t, kv)
	store.generate = func(int) (string, error) {
		return "SAME", nil
	}

	if _, err := store.Issue(context.Background(), 1, "a"); err != nil {
		t.Fatalf("first issue failed: %v", err)
	}
	_, err := store.Issue(context.Background(), 2, "b")
	if err == nil {
		t.Fatalf("expected exhaustion error with a stuck generator")
	}
	if kv.setNXed > maxAttempts+1 {
		t.Fatalf("attempts must be bounded, saw %d probes", kv.setNXed)
	}
}
