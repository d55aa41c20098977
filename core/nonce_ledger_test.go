package core

import (
	"context"
	"testing"
	"time"
)

func TestMemoryNonceLedger_RejectsReuseWithinWindow(t *testing.T) {
	ledger := NewMemoryNonceLedger(time.Minute)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ledger.Now = func() time.Time { return now }
	key := NonceKey("ck", "at", "1700000000", "n1")

	if accepted, err := ledger.Claim(context.Background(), key, 0); err != nil || !accepted {
		t.Fatalf("expected first claim accepted, accepted=%v err=%v", accepted, err)
	}
	if accepted, err := ledger.Claim(context.Background(), key, 0); err != nil || accepted {
		t.Fatalf("expected reuse rejected, accepted=%v err=%v", accepted, err)
	}

	now = now.Add(2 * time.Minute)
	if accepted, err := ledger.Claim(context.Background(), key, 0); err != nil || !accepted {
		t.Fatalf("expected claim after window accepted, accepted=%v err=%v", accepted, err)
	}
}

func TestMemoryNonceLedger_KeyIncludesCredentials(t *testing.T) {
	ledger := NewMemoryNonceLedger(time.Minute)
	ctx := context.Background()
	if accepted, _ := ledger.Claim(ctx, NonceKey("ck", "token_a", "1", "n"), 0); !accepted {
		t.Fatalf("expected first claim accepted")
	}
	if accepted, _ := ledger.Claim(ctx, NonceKey("ck", "token_b", "1", "n"), 0); !accepted {
		t.Fatalf("expected same nonce under another token accepted")
	}
}

func TestMemoryNonceLedger_CapacityEvictsOldest(t *testing.T) {
	ledger := NewMemoryNonceLedgerWithLimits(time.Hour, 2)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ledger.Now = func() time.Time { return now }
	ctx := context.Background()

	for _, key := range []string{"a", "b", "c"} {
		if _, err := ledger.Claim(ctx, key, 0); err != nil {
			t.Fatalf("claim %s: %v", key, err)
		}
		now = now.Add(time.Second)
	}
	if ledger.Len() != 2 {
		t.Fatalf("expected ledger bounded at 2, got %d", ledger.Len())
	}
	if accepted, _ := ledger.Claim(ctx, "a", 0); !accepted {
		t.Fatalf("expected evicted key to be claimable again")
	}
}

func TestMemoryNonceLedger_RequiresKey(t *testing.T) {
	ledger := NewMemoryNonceLedger(time.Minute)
	if _, err := ledger.Claim(context.Background(), "  ", 0); err == nil {
		t.Fatalf("expected empty key to fail")
	}
}

func TestMemoryNonceLedger_EvictsEarliestExpiryWhenFull(t *testing.T) {
	ledger := NewMemoryNonceLedgerWithLimits(time.Hour, 3)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ledger.Now = func() time.Time { return now }
	ctx := context.Background()

	claims := []struct {
		key string
		ttl time.Duration
	}{
		{"long", 30 * time.Minute},
		{"short", 5 * time.Minute},
		{"mid", 10 * time.Minute},
	}
	for _, claim := range claims {
		if accepted, err := ledger.Claim(ctx, claim.key, claim.ttl); err != nil || !accepted {
			t.Fatalf("claim %s: accepted=%v err=%v", claim.key, accepted, err)
		}
	}
	if accepted, _ := ledger.Claim(ctx, "next", 0); !accepted {
		t.Fatalf("expected claim on full ledger to be accepted")
	}
	if ledger.Len() != 3 {
		t.Fatalf("expected ledger bounded at 3, got %d", ledger.Len())
	}
	if accepted, _ := ledger.Claim(ctx, "long", 0); accepted {
		t.Fatalf("expected long lived claim to survive eviction")
	}
	if accepted, _ := ledger.Claim(ctx, "mid", 0); accepted {
		t.Fatalf("expected mid claim to survive eviction")
	}
}

func TestMemoryNonceLedger_PurgeAndReclaim(t *testing.T) {
	ledger := NewMemoryNonceLedger(time.Minute)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ledger.Now = func() time.Time { return now }
	ctx := context.Background()

	for _, key := range []string{"a", "b"} {
		if _, err := ledger.Claim(ctx, key, 0); err != nil {
			t.Fatalf("claim %s: %v", key, err)
		}
	}
	now = now.Add(30 * time.Second)
	if _, err := ledger.Claim(ctx, "c", 0); err != nil {
		t.Fatalf("claim c: %v", err)
	}
	now = now.Add(45 * time.Second)

	// "a" expired but is still held; claiming it again refreshes its expiry.
	if accepted, _ := ledger.Claim(ctx, "a", 0); !accepted {
		t.Fatalf("expected expired key to be claimable")
	}
	purged, err := ledger.PurgeExpired(ctx)
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if purged != 1 || ledger.Len() != 2 {
		t.Fatalf("expected only b purged, purged=%d len=%d", purged, ledger.Len())
	}
	if accepted, _ := ledger.Claim(ctx, "a", 0); accepted {
		t.Fatalf("expected refreshed claim to be live")
	}
	if accepted, _ := ledger.Claim(ctx, "c", 0); accepted {
		t.Fatalf("expected c to be live")
	}
}
