package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-oauth1/core"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// TokenStore keeps one access token per (user, site). Token secrets are
// sealed with the configured secret provider.
type TokenStore struct {
	db      *bun.DB
	repo    repository.Repository[*accessTokenRecord]
	secrets core.SecretProvider
}

func NewTokenStore(db *bun.DB, secrets core.SecretProvider) (*TokenStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	if secrets == nil {
		return nil, fmt.Errorf("sqlstore: secret provider is required")
	}
	repo := repository.NewRepository[*accessTokenRecord](db, accessTokenHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid access token repository wiring: %w", err)
		}
	}
	return &TokenStore{db: db, repo: repo, secrets: secrets}, nil
}

func (s *TokenStore) Get(ctx context.Context, userID string, siteID string) (core.AccessToken, bool, error) {
	if s == nil || s.db == nil {
		return core.AccessToken{}, false, fmt.Errorf("sqlstore: token store is not configured")
	}
	record, err := findAccessTokenTx(ctx, s.db, strings.TrimSpace(userID), strings.TrimSpace(siteID))
	if err != nil {
		return core.AccessToken{}, false, err
	}
	if record == nil {
		return core.AccessToken{}, false, nil
	}
	secret, err := openSecret(ctx, s.secrets, record.SecretCiphertext)
	if err != nil {
		return core.AccessToken{}, false, err
	}
	return core.AccessToken{
		Token:     record.Token,
		Secret:    secret,
		Extra:     copyStringMap(record.Extra),
		IssuedAt:  record.IssuedAt.UTC(),
		ExpiresAt: cloneTimePointer(record.ExpiresAt),
	}, true, nil
}

// Put replaces any token already stored for (user, site).
func (s *TokenStore) Put(ctx context.Context, userID string, siteID string, token core.AccessToken) error {
	if s == nil || s.db == nil || s.repo == nil {
		return fmt.Errorf("sqlstore: token store is not configured")
	}
	userID = strings.TrimSpace(userID)
	siteID = strings.TrimSpace(siteID)
	if userID == "" || siteID == "" {
		return fmt.Errorf("sqlstore: user id and site id are required")
	}
	if strings.TrimSpace(token.Token) == "" {
		return fmt.Errorf("sqlstore: access token is required")
	}
	sealed, err := sealSecret(ctx, s.secrets, token.Secret)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	issuedAt := token.IssuedAt.UTC()
	if token.IssuedAt.IsZero() {
		issuedAt = now
	}

	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		record, err := findAccessTokenTx(ctx, tx, userID, siteID)
		if err != nil {
			return err
		}
		if record == nil {
			_, createErr := s.repo.CreateTx(ctx, tx, &accessTokenRecord{
				ID:               uuid.NewString(),
				UserID:           userID,
				SiteID:           siteID,
				Token:            token.Token,
				SecretCiphertext: sealed,
				Extra:            nonNilStringMap(token.Extra),
				IssuedAt:         issuedAt,
				ExpiresAt:        cloneTimePointer(token.ExpiresAt),
				CreatedAt:        now,
				UpdatedAt:        now,
			})
			return createErr
		}

		record.Token = token.Token
		record.SecretCiphertext = sealed
		record.Extra = nonNilStringMap(token.Extra)
		record.IssuedAt = issuedAt
		record.ExpiresAt = cloneTimePointer(token.ExpiresAt)
		record.UpdatedAt = now
		_, updateErr := tx.NewUpdate().
			Model(record).
			Column("token", "secret_ciphertext", "extra", "issued_at", "expires_at", "updated_at").
			WherePK().
			Exec(ctx)
		return updateErr
	})
}

func (s *TokenStore) Delete(ctx context.Context, userID string, siteID string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: token store is not configured")
	}
	_, err := s.db.NewDelete().
		Model((*accessTokenRecord)(nil)).
		Where("user_id = ?", strings.TrimSpace(userID)).
		Where("site_id = ?", strings.TrimSpace(siteID)).
		Exec(ctx)
	return err
}

// ListByUser returns the site IDs the user holds access tokens for.
func (s *TokenStore) ListByUser(ctx context.Context, userID string) ([]string, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("sqlstore: token store is not configured")
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("user_id", "=", strings.TrimSpace(userID)),
		repository.OrderBy("site_id ASC"),
	)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(records))
	for _, record := range records {
		out = append(out, record.SiteID)
	}
	return out, nil
}

func findAccessTokenTx(ctx context.Context, db bun.IDB, userID string, siteID string) (*accessTokenRecord, error) {
	record := &accessTokenRecord{}
	err := db.NewSelect().
		Model(record).
		Where("?TableAlias.user_id = ?", userID).
		Where("?TableAlias.site_id = ?", siteID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return record, nil
}

func copyStringMap(in map[string]string) map[string]string {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]string, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}

func nonNilStringMap(in map[string]string) map[string]string {
	if len(in) == 0 {
		return map[string]string{}
	}
	return copyStringMap(in)
}

func cloneTimePointer(input *time.Time) *time.Time {
	if input == nil || input.IsZero() {
		return nil
	}
	value := input.UTC()
	return &value
}
