package repository

import (
	"context"
	"testing"
	"time"
)

func TestMemorySignatureStore_RejectsReuseWithinTTL(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := NewMemorySignatureStore()
	store.now = func() time.Time { return now }
	ctx := context.Background()

	fresh, err := store.MarkUsed(ctx, "0xsig", 10*time.Minute)
	if err != nil || !fresh {
		t.Fatalf("expected first use to be fresh, got fresh=%v err=%v", fresh, err)
	}

	fresh, _ = store.MarkUsed(ctx, "0xsig", 10*time.Minute)
	if fresh {
		t.Fatalf("expected reuse inside TTL to be rejected")
	}

	fresh, _ = store.MarkUsed(ctx, "0xother", 10*time.Minute)
	if !fresh {
		t.Fatalf("expected a different signature to be fresh")
	}
}

func TestMemorySignatureStore_ForgetsAfterTTL(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := NewMemorySignatureStore()
	store.now = func() time.Time { return now }
	ctx := context.Background()

	store.MarkUsed(ctx, "0xsig", time.Minute)

	now = now.Add(2 * time.Minute)
	fresh, _ := store.MarkUsed(ctx, "0xsig", time.Minute)
	if !fresh {
		t.Fatalf("expected signature to be accepted again after TTL")
	}
	if len(store.seen) != 1 {
		t.Fatalf("expected expired entries to be pruned, have %d", len(store.seen))
	}
}
