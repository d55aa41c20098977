package core

import (
	"container/heap"
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// The remote service rejects a nonce reused within a timestamp window; the
// ledger keeps claims for a little longer than that window.
const defaultNonceWindow = 15 * time.Minute
const defaultNonceLedgerMaxEntries = 16384

type nonceClaim struct {
	key       string
	expiresAt time.Time
	index     int
}

// nonceExpiryHeap orders claims by expiry so pruning and eviction only touch
// the earliest entries.
type nonceExpiryHeap []*nonceClaim

func (h nonceExpiryHeap) Len() int           { return len(h) }
func (h nonceExpiryHeap) Less(i, j int) bool { return h[i].expiresAt.Before(h[j].expiresAt) }
func (h nonceExpiryHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *nonceExpiryHeap) Push(x any) {
	claim := x.(*nonceClaim)
	claim.index = len(*h)
	*h = append(*h, claim)
}

func (h *nonceExpiryHeap) Pop() any {
	old := *h
	last := len(old) - 1
	claim := old[last]
	old[last] = nil
	*h = old[:last]
	return claim
}

type MemoryNonceLedger struct {
	mu         sync.Mutex
	window     time.Duration
	maxEntries int
	entries    map[string]*nonceClaim
	expiries   nonceExpiryHeap
	Now        func() time.Time
}

func NewMemoryNonceLedger(window time.Duration) *MemoryNonceLedger {
	return NewMemoryNonceLedgerWithLimits(window, defaultNonceLedgerMaxEntries)
}

func NewMemoryNonceLedgerWithLimits(window time.Duration, maxEntries int) *MemoryNonceLedger {
	if window <= 0 {
		window = defaultNonceWindow
	}
	if maxEntries <= 0 {
		maxEntries = defaultNonceLedgerMaxEntries
	}
	return &MemoryNonceLedger{
		window:     window,
		maxEntries: maxEntries,
		entries:    map[string]*nonceClaim{},
		Now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// NonceKey scopes a nonce to the credentials and timestamp it was issued with.
func NonceKey(consumerKey string, token string, timestamp string, nonce string) string {
	return strings.Join([]string{
		strings.TrimSpace(consumerKey),
		strings.TrimSpace(token),
		strings.TrimSpace(timestamp),
		strings.TrimSpace(nonce),
	}, "|")
}

// Claim records key and reports whether it was unused.
func (l *MemoryNonceLedger) Claim(_ context.Context, key string, ttl time.Duration) (bool, error) {
	if l == nil {
		return false, fmt.Errorf("core: nonce ledger is not configured")
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return false, fmt.Errorf("core: nonce key is required")
	}
	if ttl <= 0 {
		ttl = l.window
	}
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if claim, ok := l.entries[key]; ok {
		if now.Before(claim.expiresAt) {
			return false, nil
		}
		claim.expiresAt = now.Add(ttl)
		heap.Fix(&l.expiries, claim.index)
		return true, nil
	}
	if len(l.entries) >= l.maxEntries {
		l.pruneExpiredLocked(now)
		for len(l.entries) >= l.maxEntries {
			l.removeEarliestLocked()
		}
	}
	claim := &nonceClaim{key: key, expiresAt: now.Add(ttl)}
	heap.Push(&l.expiries, claim)
	l.entries[key] = claim
	return true, nil
}

func (l *MemoryNonceLedger) PurgeExpired(_ context.Context) (int, error) {
	if l == nil {
		return 0, fmt.Errorf("core: nonce ledger is not configured")
	}
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.pruneExpiredLocked(now), nil
}

func (l *MemoryNonceLedger) Len() int {
	if l == nil {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

func (l *MemoryNonceLedger) now() time.Time {
	if l != nil && l.Now != nil {
		return l.Now().UTC()
	}
	return time.Now().UTC()
}

func (l *MemoryNonceLedger) pruneExpiredLocked(now time.Time) int {
	pruned := 0
	for len(l.expiries) > 0 && !now.Before(l.expiries[0].expiresAt) {
		l.removeEarliestLocked()
		pruned++
	}
	return pruned
}

func (l *MemoryNonceLedger) removeEarliestLocked() {
	claim := heap.Pop(&l.expiries).(*nonceClaim)
	delete(l.entries, claim.key)
}
