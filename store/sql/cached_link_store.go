package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/goliatone/go-crosspost/core"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
)

const linkCacheKeyPrefix = "go-crosspost::link::v1"

var errLinkAbsent = errors.New("sqlstore: link absent")

// CachedLinkStore serves link reads from a cache and invalidates on writes.
// Missing links are not cached.
type CachedLinkStore struct {
	base  core.LinkStore
	cache repositorycache.CacheService
}

func NewCachedLinkStore(base core.LinkStore, cacheService repositorycache.CacheService) (*CachedLinkStore, error) {
	if base == nil {
		return nil, fmt.Errorf("sqlstore: base link store is required")
	}
	if cacheService == nil {
		return nil, fmt.Errorf("sqlstore: link cache service is required")
	}
	return &CachedLinkStore{base: base, cache: cacheService}, nil
}

// LinkCacheKey returns go-crosspost::link::v1::<user_id> with the user id
// URL-path escaped.
func LinkCacheKey(userID string) (string, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return "", core.NewBadInputError("sqlstore: user id is required")
	}
	return linkCacheKeyPrefix + "::" + url.PathEscape(userID), nil
}

func (s *CachedLinkStore) GetLink(ctx context.Context, userID string) (core.UserServiceLink, bool, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.UserServiceLink{}, false, fmt.Errorf("sqlstore: cached link store is not configured")
	}
	cacheKey, err := LinkCacheKey(userID)
	if err != nil {
		return core.UserServiceLink{}, false, nil
	}
	link, err := repositorycache.GetOrFetch(ctx, s.cache, cacheKey, func(ctx context.Context) (core.UserServiceLink, error) {
		fetched, ok, fetchErr := s.base.GetLink(ctx, strings.TrimSpace(userID))
		if fetchErr != nil {
			return core.UserServiceLink{}, fetchErr
		}
		if !ok {
			return core.UserServiceLink{}, errLinkAbsent
		}
		return fetched, nil
	})
	if errors.Is(err, errLinkAbsent) {
		return core.UserServiceLink{}, false, nil
	}
	if err != nil {
		return core.UserServiceLink{}, false, err
	}
	return link, true, nil
}

func (s *CachedLinkStore) SaveLink(ctx context.Context, link core.UserServiceLink) (core.UserServiceLink, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.UserServiceLink{}, fmt.Errorf("sqlstore: cached link store is not configured")
	}
	saved, err := s.base.SaveLink(ctx, link)
	if err != nil {
		return core.UserServiceLink{}, err
	}
	if err := s.invalidate(ctx, saved.UserID); err != nil {
		return core.UserServiceLink{}, err
	}
	return saved, nil
}

func (s *CachedLinkStore) DeleteLink(ctx context.Context, userID string) error {
	if s == nil || s.base == nil || s.cache == nil {
		return fmt.Errorf("sqlstore: cached link store is not configured")
	}
	if err := s.base.DeleteLink(ctx, userID); err != nil {
		return err
	}
	return s.invalidate(ctx, userID)
}

func (s *CachedLinkStore) invalidate(ctx context.Context, userID string) error {
	cacheKey, err := LinkCacheKey(userID)
	if err != nil {
		return nil
	}
	return s.cache.Delete(ctx, cacheKey)
}
