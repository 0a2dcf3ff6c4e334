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

type SiteDirectory struct {
	db      *bun.DB
	repo    repository.Repository[*siteRecord]
	secrets core.SecretProvider
}

func NewSiteDirectory(db *bun.DB, secrets core.SecretProvider) (*SiteDirectory, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	if secrets == nil {
		return nil, fmt.Errorf("sqlstore: secret provider is required")
	}
	repo := repository.NewRepository[*siteRecord](db, siteHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid site repository wiring: %w", err)
		}
	}
	return &SiteDirectory{db: db, repo: repo, secrets: secrets}, nil
}

func (d *SiteDirectory) GetByID(ctx context.Context, id string) (core.Site, error) {
	return d.selectOne(ctx, "?TableAlias.id = ?", strings.TrimSpace(id))
}

func (d *SiteDirectory) GetByKey(ctx context.Context, consumerKey string) (core.Site, error) {
	return d.selectOne(ctx, "?TableAlias.consumer_key = ?", strings.TrimSpace(consumerKey))
}

func (d *SiteDirectory) GetByName(ctx context.Context, name string) (core.Site, error) {
	return d.selectOne(ctx, "LOWER(?TableAlias.name) = ?", strings.ToLower(strings.TrimSpace(name)))
}

// Search matches substring case-insensitively and literally against site
// names. An empty substring lists every site.
func (d *SiteDirectory) Search(ctx context.Context, substring string) ([]core.Site, error) {
	if d == nil || d.repo == nil {
		return nil, fmt.Errorf("sqlstore: site directory is not configured")
	}
	pattern := "%" + escapeLike(strings.ToLower(strings.TrimSpace(substring))) + "%"
	records, _, err := d.repo.List(ctx,
		repository.SelectRawProcessor(func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where(`LOWER(?TableAlias.name) LIKE ? ESCAPE '\'`, pattern)
		}),
		repository.OrderBy("name ASC"),
	)
	if err != nil {
		return nil, err
	}
	out := make([]core.Site, 0, len(records))
	for _, record := range records {
		site, err := d.toDomain(ctx, record)
		if err != nil {
			return nil, err
		}
		out = append(out, site)
	}
	return out, nil
}

// Add assigns a UUID unless site.ID already holds one.
func (d *SiteDirectory) Add(ctx context.Context, site core.Site) (core.Site, error) {
	if d == nil || d.repo == nil {
		return core.Site{}, fmt.Errorf("sqlstore: site directory is not configured")
	}
	site.Name = strings.TrimSpace(site.Name)
	if err := site.Validate(); err != nil {
		return core.Site{}, err
	}
	if err := d.ensureNameFree(ctx, site.Name, ""); err != nil {
		return core.Site{}, err
	}

	now := time.Now().UTC()
	record, err := d.newRecord(ctx, site, now)
	if err != nil {
		return core.Site{}, err
	}
	if parseUUID(record.ID) == uuid.Nil {
		record.ID = uuid.NewString()
	}
	record.CreatedAt = now
	created, err := d.repo.Create(ctx, record)
	if err != nil {
		return core.Site{}, err
	}
	return siteFromRecord(created, site.ConsumerSecret), nil
}

func (d *SiteDirectory) Update(ctx context.Context, site core.Site) (core.Site, error) {
	if d == nil || d.repo == nil {
		return core.Site{}, fmt.Errorf("sqlstore: site directory is not configured")
	}
	site.ID = strings.TrimSpace(site.ID)
	site.Name = strings.TrimSpace(site.Name)
	if err := site.Validate(); err != nil {
		return core.Site{}, err
	}
	current, err := d.GetByID(ctx, site.ID)
	if err != nil {
		return core.Site{}, err
	}
	if err := d.ensureNameFree(ctx, site.Name, site.ID); err != nil {
		return core.Site{}, err
	}

	record, err := d.newRecord(ctx, site, time.Now().UTC())
	if err != nil {
		return core.Site{}, err
	}
	record.CreatedAt = current.CreatedAt
	updated, err := d.repo.Update(ctx, record, repository.UpdateByID(site.ID))
	if err != nil {
		return core.Site{}, err
	}
	return siteFromRecord(updated, site.ConsumerSecret), nil
}

// Delete removes the site and every access token issued for it.
func (d *SiteDirectory) Delete(ctx context.Context, id string) error {
	if d == nil || d.db == nil {
		return fmt.Errorf("sqlstore: site directory is not configured")
	}
	id = strings.TrimSpace(id)
	return d.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().
			Model((*accessTokenRecord)(nil)).
			Where("site_id = ?", id).
			Exec(ctx); err != nil {
			return err
		}
		_, err := tx.NewDelete().
			Model((*siteRecord)(nil)).
			Where("id = ?", id).
			Exec(ctx)
		return err
	})
}

func (d *SiteDirectory) selectOne(ctx context.Context, where string, value string) (core.Site, error) {
	if d == nil || d.db == nil {
		return core.Site{}, fmt.Errorf("sqlstore: site directory is not configured")
	}
	if value == "" {
		return core.Site{}, core.ErrSiteNotFound
	}
	record := &siteRecord{}
	err := d.db.NewSelect().
		Model(record).
		Where(where, value).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Site{}, core.ErrSiteNotFound
		}
		return core.Site{}, err
	}
	return d.toDomain(ctx, record)
}

func (d *SiteDirectory) ensureNameFree(ctx context.Context, name string, selfID string) error {
	existing, err := d.GetByName(ctx, name)
	if errors.Is(err, core.ErrSiteNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if existing.ID != selfID {
		return core.ErrSiteNameTaken
	}
	return nil
}

func (d *SiteDirectory) newRecord(ctx context.Context, site core.Site, now time.Time) (*siteRecord, error) {
	sealed, err := sealSecret(ctx, d.secrets, site.ConsumerSecret)
	if err != nil {
		return nil, err
	}
	return &siteRecord{
		ID:                       strings.TrimSpace(site.ID),
		Name:                     site.Name,
		RequestTokenURL:          strings.TrimSpace(site.RequestTokenURL),
		AuthorizeTokenURL:        strings.TrimSpace(site.AuthorizeTokenURL),
		AccessTokenURL:           strings.TrimSpace(site.AccessTokenURL),
		ConsumerKey:              strings.TrimSpace(site.ConsumerKey),
		ConsumerSecretCiphertext: sealed,
		Enabled:                  site.Enabled,
		UpdatedAt:                now,
	}, nil
}

func (d *SiteDirectory) toDomain(ctx context.Context, record *siteRecord) (core.Site, error) {
	secret, err := openSecret(ctx, d.secrets, record.ConsumerSecretCiphertext)
	if err != nil {
		return core.Site{}, err
	}
	return siteFromRecord(record, secret), nil
}

func siteFromRecord(record *siteRecord, consumerSecret string) core.Site {
	if record == nil {
		return core.Site{}
	}
	return core.Site{
		ID:                record.ID,
		Name:              record.Name,
		RequestTokenURL:   record.RequestTokenURL,
		AuthorizeTokenURL: record.AuthorizeTokenURL,
		AccessTokenURL:    record.AccessTokenURL,
		ConsumerKey:       record.ConsumerKey,
		ConsumerSecret:    consumerSecret,
		Enabled:           record.Enabled,
		CreatedAt:         record.CreatedAt,
		UpdatedAt:         record.UpdatedAt,
	}
}

func escapeLike(value string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return replacer.Replace(value)
}
