package settings

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
)

type fakeStore struct {
	values map[string]string
	err    error
	reads  int
}

func (s *fakeStore) SystemSettings(ctx context.Context) (map[string]string, error) {
	s.reads++
	return s.values, s.err
}

func newTestResolver(store *fakeStore, ttl time.Duration) (*Resolver, *time.Time) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	r := NewResolver(store, ttl, zap.NewNop())
	r.now = func() time.Time { return now }
	return r, &now
}

func TestResolverTierOrder(t *testing.T) {
	t.Setenv("WORKER_MAX_RETRIES", "5")
	t.Setenv("WORKER_NAVIGATION_TIMEOUT_MS", "45000")

	store := &fakeStore{values: map[string]string{
		"maxRetries":     "7",
		"checkCycleCron": "*/5 * * * *",
	}}
	r, _ := newTestResolver(store, time.Minute)
	s := r.Load(context.Background(), false)

	// Store beats environment.
	if s.MaxRetries != 7 {
		t.Fatalf("MaxRetries = %d, want store value 7", s.MaxRetries)
	}
	// Environment beats the compiled-in default when the store is silent.
	if s.NavigationTimeout != 45*time.Second {
		t.Fatalf("NavigationTimeout = %v, want 45s from env", s.NavigationTimeout)
	}
	if s.CheckCycleCron != "*/5 * * * *" {
		t.Fatalf("CheckCycleCron = %q", s.CheckCycleCron)
	}
	// Untouched keys fall through to defaults.
	if s.BrowserPoolSize != 3 {
		t.Fatalf("BrowserPoolSize = %d, want default 3", s.BrowserPoolSize)
	}
	if s.HeartbeatInterval != time.Minute {
		t.Fatalf("HeartbeatInterval = %v, want default 1m", s.HeartbeatInterval)
	}
}

func TestResolverEmptyStoreValueFallsThrough(t *testing.T) {
	store := &fakeStore{values: map[string]string{"maxRetries": ""}}
	r, _ := newTestResolver(store, time.Minute)
	s := r.Load(context.Background(), false)
	if s.MaxRetries != 2 {
		t.Fatalf("empty store value must fall through to default, got %d", s.MaxRetries)
	}
}

func TestResolverCacheWithinTTL(t *testing.T) {
	store := &fakeStore{values: map[string]string{"maxRetries": "4"}}
	r, now := newTestResolver(store, time.Minute)

	first := r.Load(context.Background(), false)
	*now = now.Add(30 * time.Second)
	second := r.Load(context.Background(), false)

	if first != second {
		t.Fatal("within the TTL both loads must return the identical snapshot")
	}
	if store.reads != 1 {
		t.Fatalf("expected a single store read, got %d", store.reads)
	}
}

func TestResolverExpiredTTLReloads(t *testing.T) {
	store := &fakeStore{values: map[string]string{"maxRetries": "4"}}
	r, now := newTestResolver(store, time.Minute)

	first := r.Load(context.Background(), false)
	store.values["maxRetries"] = "9"
	*now = now.Add(2 * time.Minute)
	second := r.Load(context.Background(), false)

	if first == second {
		t.Fatal("expired cache must be rebuilt")
	}
	if second.MaxRetries != 9 {
		t.Fatalf("reload did not pick up new store value, got %d", second.MaxRetries)
	}
}

func TestResolverForceBypassesTTL(t *testing.T) {
	store := &fakeStore{values: map[string]string{"maxRetries": "4"}}
	r, _ := newTestResolver(store, time.Hour)

	r.Load(context.Background(), false)
	store.values["maxRetries"] = "6"
	s := r.Load(context.Background(), true)

	if s.MaxRetries != 6 {
		t.Fatalf("force load must re-read the store, got %d", s.MaxRetries)
	}
	if store.reads != 2 {
		t.Fatalf("expected 2 store reads, got %d", store.reads)
	}
}

func TestResolverStoreFailureKeepsPreviousSnapshot(t *testing.T) {
	store := &fakeStore{values: map[string]string{"maxRetries": "4"}}
	r, now := newTestResolver(store, time.Minute)

	first := r.Load(context.Background(), false)
	store.err = errors.New("connection refused")
	*now = now.Add(2 * time.Minute)
	second := r.Load(context.Background(), false)

	if second != first {
		t.Fatal("store failure must retain the previous snapshot")
	}
	if second.MaxRetries != 4 {
		t.Fatalf("retained snapshot corrupted: %d", second.MaxRetries)
	}
}

func TestResolverStoreFailureWithoutCacheUsesDefaults(t *testing.T) {
	store := &fakeStore{err: errors.New("connection refused")}
	r, _ := newTestResolver(store, time.Minute)

	s := r.Load(context.Background(), false)
	if s == nil {
		t.Fatal("Load must never return nil")
	}
	if s.MaxRetries != 2 || s.BrowserPoolSize != 3 {
		t.Fatalf("expected default snapshot, got %+v", s)
	}
}

func TestResolverCurrentBeforeFirstLoad(t *testing.T) {
	store := &fakeStore{values: map[string]string{"maxRetries": "4"}}
	r, _ := newTestResolver(store, time.Minute)

	s := r.Current()
	if s == nil {
		t.Fatal("Current must never return nil")
	}
	if s.MaxRetries != 2 {
		t.Fatalf("pre-load Current must use defaults, got %d", s.MaxRetries)
	}
	if store.reads != 0 {
		t.Fatal("Current must not touch the store")
	}
}

func TestBuildParseFallback(t *testing.T) {
	s := build(map[string]string{
		"maxRetries":           "not-a-number",
		"navigationTimeoutMs":  "12.5",
		"blockedResourceTypes": "{broken json",
	})
	if s.MaxRetries != 2 {
		t.Fatalf("bad int must fall back to default, got %d", s.MaxRetries)
	}
	if s.NavigationTimeout != 30*time.Second {
		t.Fatalf("bad duration must fall back to default, got %v", s.NavigationTimeout)
	}
	want := []string{"Image", "Media", "Font"}
	if len(s.BlockedResourceTypes) != len(want) {
		t.Fatalf("bad list must fall back to default, got %v", s.BlockedResourceTypes)
	}
	for i, v := range want {
		if s.BlockedResourceTypes[i] != v {
			t.Fatalf("BlockedResourceTypes[%d] = %q, want %q", i, s.BlockedResourceTypes[i], v)
		}
	}
}

func TestBuildClampsNegativeMaxRetries(t *testing.T) {
	s := build(map[string]string{"maxRetries": "-1"})
	if s.MaxRetries != 0 {
		t.Fatalf("negative store value must clamp to 0, got %d", s.MaxRetries)
	}
}

func TestBuildBlockedResourceTypesOverride(t *testing.T) {
	s := build(map[string]string{
		"blockedResourceTypes": `["Image","Stylesheet"]`,
	})
	if len(s.BlockedResourceTypes) != 2 || s.BlockedResourceTypes[1] != "Stylesheet" {
		t.Fatalf("got %v", s.BlockedResourceTypes)
	}
}
