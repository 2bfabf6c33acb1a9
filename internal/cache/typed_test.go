package cache

import (
	"context"
	"errors"
	"testing"
	"time"
)

type snapshot struct {
	Range string  `json:"range"`
	Total int     `json:"total"`
	Ratio float64 `json:"ratio"`
}

func TestTypedCache_RoundTrip(t *testing.T) {
	mem := NewMemoryCache(MemoryCacheOptions{DefaultTTL: time.Hour})
	defer func() { _ = mem.Close() }()
	tc := NewTypedCache[snapshot](mem, time.Minute)
	ctx := context.Background()

	want := snapshot{Range: "7d", Total: 42, Ratio: 0.5}
	if err := tc.Set(ctx, "stats:7d", &want); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	got, err := tc.Get(ctx, "stats:7d")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if *got != want {
		t.Errorf("got %+v, want %+v", *got, want)
	}
}

func TestTypedCache_Miss(t *testing.T) {
	mem := NewMemoryCache(MemoryCacheOptions{DefaultTTL: time.Hour})
	defer func() { _ = mem.Close() }()
	tc := NewTypedCache[snapshot](mem, time.Minute)

	if _, err := tc.Get(context.Background(), "absent"); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("expected ErrCacheMiss, got %v", err)
	}
}

func TestTypedCache_DecodeError(t *testing.T) {
	mem := NewMemoryCache(MemoryCacheOptions{DefaultTTL: time.Hour})
	defer func() { _ = mem.Close() }()
	tc := NewTypedCache[snapshot](mem, time.Minute)
	ctx := context.Background()

	_ = mem.Set(ctx, "bad", []byte("{not json"), 0)

	_, err := tc.Get(ctx, "bad")
	if err == nil || errors.Is(err, ErrCacheMiss) {
		t.Errorf("expected decode error, got %v", err)
	}
}

func TestTypedCache_DefaultTTL(t *testing.T) {
	clock := newFakeClock()
	mem := NewMemoryCache(MemoryCacheOptions{DefaultTTL: time.Hour, Now: clock.Now})
	defer func() { _ = mem.Close() }()
	tc := NewTypedCache[snapshot](mem, time.Minute)
	ctx := context.Background()

	_ = tc.Set(ctx, "a", &snapshot{Total: 1})

	clock.Advance(30 * time.Second)
	if _, err := tc.Get(ctx, "a"); err != nil {
		t.Errorf("entry missing before its TTL: %v", err)
	}

	clock.Advance(30 * time.Second)
	if _, err := tc.Get(ctx, "a"); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("expected default TTL of the typed cache to apply, got %v", err)
	}
}
