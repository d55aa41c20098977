package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-crosspost/core"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// LinkStore keeps one row per user in crosspost_links.
type LinkStore struct {
	db      *bun.DB
	repo    repository.Repository[*linkRecord]
	secrets secretCodec
	Now     func() time.Time
}

func NewLinkStore(db *bun.DB, secrets core.SecretProvider) (*LinkStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*linkRecord](db, linkHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid link repository wiring: %w", err)
		}
	}
	return &LinkStore{
		db:      db,
		repo:    repo,
		secrets: secretCodec{provider: secrets},
		Now: func() time.Time {
			return time.Now().UTC()
		},
	}, nil
}

// SaveLink inserts or replaces the user's link. Replacing keeps the row id
// and creation time.
func (s *LinkStore) SaveLink(ctx context.Context, link core.UserServiceLink) (core.UserServiceLink, error) {
	if s == nil || s.db == nil {
		return core.UserServiceLink{}, fmt.Errorf("sqlstore: link store is not configured")
	}
	if err := core.ValidateLink(link); err != nil {
		return core.UserServiceLink{}, err
	}
	userID := strings.TrimSpace(link.UserID)
	sealed, isSealed, err := s.secrets.seal(ctx, link.AccessToken.TokenSecret)
	if err != nil {
		return core.UserServiceLink{}, err
	}
	now := s.now()

	var saved *linkRecord
	err = s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		record := &linkRecord{}
		selectErr := tx.NewSelect().
			Model(record).
			Where("?TableAlias.user_id = ?", userID).
			Limit(1).
			Scan(ctx)
		created := false
		switch {
		case errors.Is(selectErr, sql.ErrNoRows):
			created = true
			record = &linkRecord{ID: uuid.NewString(), UserID: userID, CreatedAt: now}
		case selectErr != nil:
			return selectErr
		}
		record.ExternalAccountID = strings.TrimSpace(link.ExternalAccountID)
		record.AccessToken = strings.TrimSpace(link.AccessToken.Token)
		record.AccessTokenSecret = sealed
		record.SecretSealed = isSealed
		record.UpdatedAt = now
		saved = record

		if created {
			_, insertErr := tx.NewInsert().Model(record).Exec(ctx)
			return insertErr
		}
		_, updateErr := tx.NewUpdate().
			Model(record).
			Column("external_account_id", "access_token", "access_token_secret", "secret_sealed", "updated_at").
			WherePK().
			Exec(ctx)
		return updateErr
	})
	if err != nil {
		return core.UserServiceLink{}, err
	}
	return saved.toDomain(link.AccessToken.TokenSecret), nil
}

func (s *LinkStore) GetLink(ctx context.Context, userID string) (core.UserServiceLink, bool, error) {
	if s == nil || s.repo == nil {
		return core.UserServiceLink{}, false, fmt.Errorf("sqlstore: link store is not configured")
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return core.UserServiceLink{}, false, nil
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("user_id", "=", userID),
		repository.OrderBy("updated_at DESC"),
	)
	if err != nil {
		return core.UserServiceLink{}, false, err
	}
	if len(records) == 0 || records[0] == nil {
		return core.UserServiceLink{}, false, nil
	}
	secret, err := s.secrets.open(ctx, records[0].AccessTokenSecret, records[0].SecretSealed)
	if err != nil {
		return core.UserServiceLink{}, false, err
	}
	return records[0].toDomain(secret), true, nil
}

func (s *LinkStore) DeleteLink(ctx context.Context, userID string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: link store is not configured")
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil
	}
	_, err := s.db.NewDelete().
		Model((*linkRecord)(nil)).
		Where("user_id = ?", userID).
		Exec(ctx)
	return err
}

func (s *LinkStore) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}
