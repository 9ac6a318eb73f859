package cache

import (
	"context"
	"testing"
	"time"
)

func TestMemoryStoreSetGet(t *testing.T) {
	s := NewMemoryStore("test")
	ctx := context.Background()

	if err := s.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	lookup := s.Get(ctx, "k")
	if !lookup.Found || string(lookup.Value) != "v" {
		t.Fatalf("expected hit with value v, got %+v", lookup)
	}
}

func TestMemoryStoreExpiry(t *testing.T) {
	s := NewMemoryStore("test")
	ctx := context.Background()

	now := time.Now()
	s.SetClock(func() time.Time { return now })

	s.Set(ctx, "k", []byte("v"), time.Minute)

	now = now.Add(61 * time.Second)
	if lookup := s.Get(ctx, "k"); lookup.Found {
		t.Fatal("expected expired key to be a miss")
	}
}

func TestMemoryStoreUpdateAbsent(t *testing.T) {
	s := NewMemoryStore("test")
	ok, err := s.Update(context.Background(), "nope", []byte("v"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatal("update of absent key must report not found")
	}
	if lookup := s.Get(context.Background(), "nope"); lookup.Found {
		t.Fatal("update of absent key must not create it")
	}
}

func TestMemoryStoreUpdatePreservesExpiry(t *testing.T) {
	s := NewMemoryStore("test")
	ctx := context.Background()

	now := time.Now()
	s.SetClock(func() time.Time { return now })

	s.Set(ctx, "k", []byte("v1"), time.Minute)

	now = now.Add(30 * time.Second)
	ok, err := s.Update(ctx, "k", []byte("v2"))
	if err != nil || !ok {
		t.Fatalf("update failed: ok=%v err=%v", ok, err)
	}

	// Original expiry still applies.
	now = now.Add(31 * time.Second)
	if lookup := s.Get(ctx, "k"); lookup.Found {
		t.Fatal("update must not extend the TTL")
	}
}

func TestMemoryStoreIncrement(t *testing.T) {
	s := NewMemoryStore("test")
	ctx := context.Background()

	now := time.Now()
	s.SetClock(func() time.Time { return now })

	for i := int64(1); i <= 3; i++ {
		n, err := s.Increment(ctx, "counter", time.Minute)
		if err != nil {
			t.Fatalf("increment failed: %v", err)
		}
		if n != i {
			t.Fatalf("expected counter %d, got %d", i, n)
		}
	}

	// Window expires, counter resets.
	now = now.Add(61 * time.Second)
	n, err := s.Increment(ctx, "counter", time.Minute)
	if err != nil {
		t.Fatalf("increment failed: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected counter reset to 1, got %d", n)
	}
}
