package sqlstore

import (
	"time"

	"github.com/goliatone/go-crosspost/core"
	"github.com/uptrace/bun"
)

type linkRecord struct {
	bun.BaseModel `bun:"table:crosspost_links,alias:cl"`

	ID                string    `bun:"id,pk"`
	UserID            string    `bun:"user_id,notnull"`
	ExternalAccountID string    `bun:"external_account_id,notnull"`
	AccessToken       string    `bun:"access_token,notnull"`
	AccessTokenSecret []byte    `bun:"access_token_secret,notnull"`
	SecretSealed      bool      `bun:"secret_sealed,notnull"`
	CreatedAt         time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt         time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type requestTokenRecord struct {
	bun.BaseModel `bun:"table:crosspost_request_tokens,alias:crt"`

	ID           string    `bun:"id,pk"`
	Token        string    `bun:"token,notnull"`
	TokenSecret  []byte    `bun:"token_secret,notnull"`
	SecretSealed bool      `bun:"secret_sealed,notnull"`
	UserID       string    `bun:"user_id,notnull"`
	CreatedAt    time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	ExpiresAt    time.Time `bun:"expires_at,notnull"`
}

func (r *linkRecord) toDomain(secret string) core.UserServiceLink {
	if r == nil {
		return core.UserServiceLink{}
	}
	return core.UserServiceLink{
		ID:                r.ID,
		UserID:            r.UserID,
		ExternalAccountID: r.ExternalAccountID,
		AccessToken: core.AccessToken{
			Token:             r.AccessToken,
			TokenSecret:       secret,
			ExternalAccountID: r.ExternalAccountID,
			UserID:            r.UserID,
		},
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
}

func (r *requestTokenRecord) toDomain(secret string) core.RequestToken {
	if r == nil {
		return core.RequestToken{}
	}
	return core.RequestToken{
		Token:       r.Token,
		TokenSecret: secret,
		UserID:      r.UserID,
		CreatedAt:   r.CreatedAt.UTC(),
	}
}
