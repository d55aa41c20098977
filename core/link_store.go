package core

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryLinkStore keeps service links in process memory.
type MemoryLinkStore struct {
	mu    sync.RWMutex
	links map[string]UserServiceLink
	Now   func() time.Time
}

func NewMemoryLinkStore() *MemoryLinkStore {
	return &MemoryLinkStore{
		links: map[string]UserServiceLink{},
		Now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// SaveLink creates or replaces the link for link.UserID.
func (s *MemoryLinkStore) SaveLink(_ context.Context, link UserServiceLink) (UserServiceLink, error) {
	if s == nil {
		return UserServiceLink{}, fmt.Errorf("core: link store is not configured")
	}
	if err := validateLink(link); err != nil {
		return UserServiceLink{}, err
	}
	userID := strings.TrimSpace(link.UserID)
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.links[userID]; ok {
		link.ID = existing.ID
		link.CreatedAt = existing.CreatedAt
	}
	if strings.TrimSpace(link.ID) == "" {
		link.ID = uuid.NewString()
	}
	if link.CreatedAt.IsZero() {
		link.CreatedAt = now
	}
	link.UpdatedAt = now
	link.UserID = userID
	link.AccessToken.UserID = userID
	s.links[userID] = link
	return link, nil
}

func (s *MemoryLinkStore) GetLink(_ context.Context, userID string) (UserServiceLink, bool, error) {
	if s == nil {
		return UserServiceLink{}, false, fmt.Errorf("core: link store is not configured")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	link, ok := s.links[strings.TrimSpace(userID)]
	return link, ok, nil
}

func (s *MemoryLinkStore) DeleteLink(_ context.Context, userID string) error {
	if s == nil {
		return fmt.Errorf("core: link store is not configured")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.links, strings.TrimSpace(userID))
	return nil
}

func (s *MemoryLinkStore) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// ValidateLink checks the fields every LinkStore implementation requires.
func ValidateLink(link UserServiceLink) error {
	return validateLink(link)
}

func validateLink(link UserServiceLink) error {
	if strings.TrimSpace(link.UserID) == "" {
		return NewBadInputError("core: link user id is required")
	}
	if strings.TrimSpace(link.ExternalAccountID) == "" {
		return NewBadInputError("core: link external account id is required")
	}
	if !link.AccessToken.Valid() {
		return NewBadInputError("core: link access token is required")
	}
	return nil
}
