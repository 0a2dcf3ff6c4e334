package sqlstore

import (
	"context"
	"fmt"

	"github.com/goliatone/go-oauth1/core"
)

func sealSecret(ctx context.Context, secrets core.SecretProvider, plaintext string) ([]byte, error) {
	if plaintext == "" {
		return []byte{}, nil
	}
	sealed, err := secrets.Encrypt(ctx, []byte(plaintext))
	if err != nil {
		return nil, fmt.Errorf("sqlstore: seal secret: %w", err)
	}
	return sealed, nil
}

// openSecret treats an empty column as an empty secret. Seeded sites ship
// without a consumer secret.
func openSecret(ctx context.Context, secrets core.SecretProvider, ciphertext []byte) (string, error) {
	if len(ciphertext) == 0 {
		return "", nil
	}
	opened, err := secrets.Decrypt(ctx, ciphertext)
	if err != nil {
		return "", fmt.Errorf("sqlstore: open secret: %w", err)
	}
	return string(opened), nil
}
