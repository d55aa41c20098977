package sqlstore

import (
	"context"
	"fmt"

	"github.com/goliatone/go-crosspost/core"
)

// secretCodec seals token secrets when a provider is configured and stores
// them verbatim otherwise. Rows remember which form they hold.
type secretCodec struct {
	provider core.SecretProvider
}

func (c secretCodec) seal(ctx context.Context, secret string) ([]byte, bool, error) {
	if c.provider == nil || secret == "" {
		return []byte(secret), false, nil
	}
	sealed, err := c.provider.Encrypt(ctx, []byte(secret))
	if err != nil {
		return nil, false, fmt.Errorf("sqlstore: seal token secret: %w", err)
	}
	return sealed, true, nil
}

func (c secretCodec) open(ctx context.Context, data []byte, sealed bool) (string, error) {
	if !sealed {
		return string(data), nil
	}
	if c.provider == nil {
		return "", fmt.Errorf("sqlstore: token secret is sealed but no secret provider is configured")
	}
	plain, err := c.provider.Decrypt(ctx, data)
	if err != nil {
		return "", fmt.Errorf("sqlstore: open token secret: %w", err)
	}
	return string(plain), nil
}
