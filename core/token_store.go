package core

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"
	"sync"
	"time"
)

const defaultRequestTokenTTL = 10 * time.Minute
const tokenStoreShards = 32

type tokenShard struct {
	mu      sync.Mutex
	entries map[string]RequestToken
}

// MemoryRequestTokenStore keeps request tokens in lock-sharded maps so
// concurrent handshakes for different tokens do not contend.
type MemoryRequestTokenStore struct {
	ttl    time.Duration
	shards [tokenStoreShards]*tokenShard
	Now    func() time.Time
}

func NewMemoryRequestTokenStore(ttl time.Duration) *MemoryRequestTokenStore {
	if ttl <= 0 {
		ttl = defaultRequestTokenTTL
	}
	store := &MemoryRequestTokenStore{
		ttl: ttl,
		Now: func() time.Time {
			return time.Now().UTC()
		},
	}
	for i := range store.shards {
		store.shards[i] = &tokenShard{entries: map[string]RequestToken{}}
	}
	return store
}

// PutRequestToken stores the token with CreatedAt stamped from the store
// clock. Expiry is always measured against that same clock.
func (s *MemoryRequestTokenStore) PutRequestToken(_ context.Context, token RequestToken) error {
	if s == nil {
		return fmt.Errorf("core: token store is not configured")
	}
	key := strings.TrimSpace(token.Token)
	if key == "" {
		return NewBadInputError("core: request token is required")
	}
	now := s.now()
	token.CreatedAt = now
	token.Token = key

	shard := s.shardFor(key)
	shard.mu.Lock()
	defer shard.mu.Unlock()
	if existing, ok := shard.entries[key]; ok && !s.expired(existing, now) {
		return NewConflictError("core: request token already exists")
	}
	shard.entries[key] = token
	return nil
}

// TakeRequestToken removes and returns the token. Expired tokens are removed
// and reported as absent.
func (s *MemoryRequestTokenStore) TakeRequestToken(_ context.Context, token string) (RequestToken, bool, error) {
	if s == nil {
		return RequestToken{}, false, fmt.Errorf("core: token store is not configured")
	}
	key := strings.TrimSpace(token)
	if key == "" {
		return RequestToken{}, false, nil
	}
	shard := s.shardFor(key)
	shard.mu.Lock()
	defer shard.mu.Unlock()
	record, ok := shard.entries[key]
	if !ok {
		return RequestToken{}, false, nil
	}
	delete(shard.entries, key)
	if s.expired(record, s.now()) {
		return RequestToken{}, false, nil
	}
	return record, true, nil
}

func (s *MemoryRequestTokenStore) PurgeExpired(_ context.Context) (int, error) {
	if s == nil {
		return 0, fmt.Errorf("core: token store is not configured")
	}
	now := s.now()
	purged := 0
	for _, shard := range s.shards {
		shard.mu.Lock()
		for key, record := range shard.entries {
			if s.expired(record, now) {
				delete(shard.entries, key)
				purged++
			}
		}
		shard.mu.Unlock()
	}
	return purged, nil
}

func (s *MemoryRequestTokenStore) Len() int {
	if s == nil {
		return 0
	}
	total := 0
	for _, shard := range s.shards {
		shard.mu.Lock()
		total += len(shard.entries)
		shard.mu.Unlock()
	}
	return total
}

func (s *MemoryRequestTokenStore) shardFor(key string) *tokenShard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return s.shards[h.Sum32()%tokenStoreShards]
}

func (s *MemoryRequestTokenStore) expired(record RequestToken, now time.Time) bool {
	return !now.Before(record.CreatedAt.Add(s.ttl))
}

func (s *MemoryRequestTokenStore) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// CompositeTokenStore joins a request token store and a link store into the
// single TokenStore the handshake and publish paths share.
type CompositeTokenStore struct {
	Requests RequestTokenStore
	Links    LinkStore
}

func NewTokenStore(requests RequestTokenStore, links LinkStore) *CompositeTokenStore {
	return &CompositeTokenStore{Requests: requests, Links: links}
}

// NewMemoryTokenStore returns a TokenStore held entirely in process memory.
func NewMemoryTokenStore(ttl time.Duration) *CompositeTokenStore {
	return NewTokenStore(NewMemoryRequestTokenStore(ttl), NewMemoryLinkStore())
}

func (s *CompositeTokenStore) PutRequestToken(ctx context.Context, token RequestToken) error {
	if s == nil || s.Requests == nil {
		return fmt.Errorf("core: request token store is not configured")
	}
	return s.Requests.PutRequestToken(ctx, token)
}

func (s *CompositeTokenStore) TakeRequestToken(ctx context.Context, token string) (RequestToken, bool, error) {
	if s == nil || s.Requests == nil {
		return RequestToken{}, false, fmt.Errorf("core: request token store is not configured")
	}
	return s.Requests.TakeRequestToken(ctx, token)
}

// PutAccessLink upserts the user's link, replacing any earlier one.
func (s *CompositeTokenStore) PutAccessLink(ctx context.Context, link UserServiceLink) (UserServiceLink, error) {
	if s == nil || s.Links == nil {
		return UserServiceLink{}, fmt.Errorf("core: link store is not configured")
	}
	return s.Links.SaveLink(ctx, link)
}

func (s *CompositeTokenStore) GetAccessLink(ctx context.Context, userID string) (UserServiceLink, bool, error) {
	if s == nil || s.Links == nil {
		return UserServiceLink{}, false, fmt.Errorf("core: link store is not configured")
	}
	return s.Links.GetLink(ctx, userID)
}

func (s *CompositeTokenStore) DeleteAccessLink(ctx context.Context, userID string) error {
	if s == nil || s.Links == nil {
		return fmt.Errorf("core: link store is not configured")
	}
	return s.Links.DeleteLink(ctx, userID)
}

// PurgeExpired delegates to the request token store when it supports purging.
func (s *CompositeTokenStore) PurgeExpired(ctx context.Context) (int, error) {
	if s == nil || s.Requests == nil {
		return 0, fmt.Errorf("core: request token store is not configured")
	}
	purger, ok := s.Requests.(ExpiredTokenPurger)
	if !ok {
		return 0, nil
	}
	return purger.PurgeExpired(ctx)
}
