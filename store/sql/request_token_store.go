package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-crosspost/core"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

const defaultRequestTokenTTL = 10 * time.Minute

// RequestTokenStore keeps pending request tokens in crosspost_request_tokens.
// A token is handed out by deleting its row; only the caller whose delete
// affected the row receives it.
type RequestTokenStore struct {
	db      *bun.DB
	ttl     time.Duration
	secrets secretCodec
	Now     func() time.Time
}

func NewRequestTokenStore(db *bun.DB, ttl time.Duration, secrets core.SecretProvider) (*RequestTokenStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	if ttl <= 0 {
		ttl = defaultRequestTokenTTL
	}
	return &RequestTokenStore{
		db:      db,
		ttl:     ttl,
		secrets: secretCodec{provider: secrets},
		Now: func() time.Time {
			return time.Now().UTC()
		},
	}, nil
}

func (s *RequestTokenStore) PutRequestToken(ctx context.Context, token core.RequestToken) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: request token store is not configured")
	}
	key := strings.TrimSpace(token.Token)
	if key == "" {
		return core.NewBadInputError("sqlstore: request token is required")
	}
	sealed, isSealed, err := s.secrets.seal(ctx, token.TokenSecret)
	if err != nil {
		return err
	}
	now := s.now()
	createdAt := now

	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		existing := &requestTokenRecord{}
		selectErr := tx.NewSelect().
			Model(existing).
			Where("?TableAlias.token = ?", key).
			Limit(1).
			Scan(ctx)
		switch {
		case selectErr == nil:
			if existing.ExpiresAt.After(now) {
				return core.NewConflictError("sqlstore: request token already exists")
			}
			if _, delErr := tx.NewDelete().
				Model((*requestTokenRecord)(nil)).
				Where("id = ?", existing.ID).
				Exec(ctx); delErr != nil {
				return delErr
			}
		case !errors.Is(selectErr, sql.ErrNoRows):
			return selectErr
		}

		_, insertErr := tx.NewInsert().Model(&requestTokenRecord{
			ID:           uuid.NewString(),
			Token:        key,
			TokenSecret:  sealed,
			SecretSealed: isSealed,
			UserID:       strings.TrimSpace(token.UserID),
			CreatedAt:    createdAt,
			ExpiresAt:    createdAt.Add(s.ttl),
		}).Exec(ctx)
		return insertErr
	})
}

func (s *RequestTokenStore) TakeRequestToken(ctx context.Context, token string) (core.RequestToken, bool, error) {
	if s == nil || s.db == nil {
		return core.RequestToken{}, false, fmt.Errorf("sqlstore: request token store is not configured")
	}
	key := strings.TrimSpace(token)
	if key == "" {
		return core.RequestToken{}, false, nil
	}

	var (
		record *requestTokenRecord
		taken  bool
	)
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		candidate := &requestTokenRecord{}
		selectErr := tx.NewSelect().
			Model(candidate).
			Where("?TableAlias.token = ?", key).
			Limit(1).
			Scan(ctx)
		if errors.Is(selectErr, sql.ErrNoRows) {
			return nil
		}
		if selectErr != nil {
			return selectErr
		}
		res, delErr := tx.NewDelete().
			Model((*requestTokenRecord)(nil)).
			Where("id = ?", candidate.ID).
			Exec(ctx)
		if delErr != nil {
			return delErr
		}
		affected, _ := res.RowsAffected()
		if affected == 1 {
			record = candidate
			taken = true
		}
		return nil
	})
	if err != nil {
		return core.RequestToken{}, false, err
	}
	if !taken || !record.ExpiresAt.After(s.now()) {
		return core.RequestToken{}, false, nil
	}
	secret, err := s.secrets.open(ctx, record.TokenSecret, record.SecretSealed)
	if err != nil {
		return core.RequestToken{}, false, err
	}
	return record.toDomain(secret), true, nil
}

// PurgeExpired deletes abandoned handshakes.
func (s *RequestTokenStore) PurgeExpired(ctx context.Context) (int, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("sqlstore: request token store is not configured")
	}
	res, err := s.db.NewDelete().
		Model((*requestTokenRecord)(nil)).
		Where("expires_at <= ?", s.now()).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	affected, _ := res.RowsAffected()
	return int(affected), nil
}

func (s *RequestTokenStore) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}
