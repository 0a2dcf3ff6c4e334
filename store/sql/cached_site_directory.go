package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	repositorycache "github.com/goliatone/go-repository-cache/cache"
	"github.com/goliatone/go-oauth1/core"
)

const siteCacheKeyPrefix = "go-oauth1::site::v1"

// CachedSiteDirectory serves point lookups from a cache and invalidates every
// key of a site when it changes. Search always reads the base directory.
type CachedSiteDirectory struct {
	base  core.SiteDirectory
	cache repositorycache.CacheService
}

func NewCachedSiteDirectory(base core.SiteDirectory, cacheService repositorycache.CacheService) (*CachedSiteDirectory, error) {
	if base == nil {
		return nil, fmt.Errorf("sqlstore: base site directory is required")
	}
	if cacheService == nil {
		return nil, fmt.Errorf("sqlstore: site cache service is required")
	}
	return &CachedSiteDirectory{base: base, cache: cacheService}, nil
}

// SiteCacheKey builds go-oauth1::site::v1::<field>::<value>. Names are
// lowercased and values are URL-path escaped.
func SiteCacheKey(field string, value string) string {
	value = strings.TrimSpace(value)
	if field == "name" {
		value = strings.ToLower(value)
	}
	return strings.Join([]string{siteCacheKeyPrefix, field, url.PathEscape(value)}, "::")
}

func (d *CachedSiteDirectory) GetByID(ctx context.Context, id string) (core.Site, error) {
	return d.fetch(ctx, SiteCacheKey("id", id), func(ctx context.Context) (core.Site, error) {
		return d.base.GetByID(ctx, id)
	})
}

func (d *CachedSiteDirectory) GetByKey(ctx context.Context, consumerKey string) (core.Site, error) {
	return d.fetch(ctx, SiteCacheKey("key", consumerKey), func(ctx context.Context) (core.Site, error) {
		return d.base.GetByKey(ctx, consumerKey)
	})
}

func (d *CachedSiteDirectory) GetByName(ctx context.Context, name string) (core.Site, error) {
	return d.fetch(ctx, SiteCacheKey("name", name), func(ctx context.Context) (core.Site, error) {
		return d.base.GetByName(ctx, name)
	})
}

func (d *CachedSiteDirectory) Search(ctx context.Context, substring string) ([]core.Site, error) {
	if d == nil || d.base == nil {
		return nil, fmt.Errorf("sqlstore: cached site directory is not configured")
	}
	return d.base.Search(ctx, substring)
}

func (d *CachedSiteDirectory) Add(ctx context.Context, site core.Site) (core.Site, error) {
	if d == nil || d.base == nil || d.cache == nil {
		return core.Site{}, fmt.Errorf("sqlstore: cached site directory is not configured")
	}
	created, err := d.base.Add(ctx, site)
	if err != nil {
		return core.Site{}, err
	}
	return created, d.invalidate(ctx, created)
}

func (d *CachedSiteDirectory) Update(ctx context.Context, site core.Site) (core.Site, error) {
	if d == nil || d.base == nil || d.cache == nil {
		return core.Site{}, fmt.Errorf("sqlstore: cached site directory is not configured")
	}
	previous, prevErr := d.base.GetByID(ctx, site.ID)
	updated, err := d.base.Update(ctx, site)
	if err != nil {
		return core.Site{}, err
	}
	if prevErr == nil {
		if err := d.invalidate(ctx, previous); err != nil {
			return core.Site{}, err
		}
	}
	return updated, d.invalidate(ctx, updated)
}

func (d *CachedSiteDirectory) Delete(ctx context.Context, id string) error {
	if d == nil || d.base == nil || d.cache == nil {
		return fmt.Errorf("sqlstore: cached site directory is not configured")
	}
	previous, prevErr := d.base.GetByID(ctx, id)
	if prevErr != nil && !errors.Is(prevErr, core.ErrSiteNotFound) {
		return prevErr
	}
	if err := d.base.Delete(ctx, id); err != nil {
		return err
	}
	if prevErr != nil {
		return d.cache.Delete(ctx, SiteCacheKey("id", id))
	}
	return d.invalidate(ctx, previous)
}

func (d *CachedSiteDirectory) fetch(
	ctx context.Context,
	cacheKey string,
	load func(ctx context.Context) (core.Site, error),
) (core.Site, error) {
	if d == nil || d.base == nil || d.cache == nil {
		return core.Site{}, fmt.Errorf("sqlstore: cached site directory is not configured")
	}
	return repositorycache.GetOrFetch(ctx, d.cache, cacheKey, load)
}

func (d *CachedSiteDirectory) invalidate(ctx context.Context, site core.Site) error {
	keys := []string{
		SiteCacheKey("id", site.ID),
		SiteCacheKey("name", site.Name),
		SiteCacheKey("key", site.ConsumerKey),
	}
	for _, key := range keys {
		if err := d.cache.Delete(ctx, key); err != nil {
			return err
		}
	}
	return nil
}

var _ core.SiteDirectory = (*CachedSiteDirectory)(nil)
