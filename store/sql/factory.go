package sqlstore

import (
	"fmt"

	persistence "github.com/goliatone/go-persistence-bun"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
	"github.com/goliatone/go-oauth1/core"
	"github.com/uptrace/bun"
)

type RepositoryFactory struct {
	db      *bun.DB
	secrets core.SecretProvider
	cache   repositorycache.CacheService

	siteDirectory core.SiteDirectory
	tokenStore    *TokenStore
}

type FactoryOption func(*RepositoryFactory)

// WithSiteCache fronts the site directory with cacheService.
func WithSiteCache(cacheService repositorycache.CacheService) FactoryOption {
	return func(f *RepositoryFactory) {
		f.cache = cacheService
	}
}

func NewRepositoryFactory(secrets core.SecretProvider, opts ...FactoryOption) *RepositoryFactory {
	factory := &RepositoryFactory{secrets: secrets}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(factory)
	}
	return factory
}

func NewRepositoryFactoryFromPersistence(
	client *persistence.Client,
	secrets core.SecretProvider,
	opts ...FactoryOption,
) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory(secrets, opts...)
	if _, err := factory.BuildStores(client); err != nil {
		return nil, err
	}
	return factory, nil
}

func NewRepositoryFactoryFromDB(db *bun.DB, secrets core.SecretProvider, opts ...FactoryOption) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory(secrets, opts...)
	if _, err := factory.BuildStores(db); err != nil {
		return nil, err
	}
	return factory, nil
}

// BuildStores accepts a *bun.DB or anything exposing DB() *bun.DB, such as a
// go-persistence-bun client.
func (f *RepositoryFactory) BuildStores(persistenceClient any) (*RepositoryFactory, error) {
	if f == nil {
		return nil, fmt.Errorf("sqlstore: repository factory is nil")
	}
	if f.db == nil {
		db, err := resolveBunDB(persistenceClient)
		if err != nil {
			return nil, err
		}
		f.db = db
	}
	if f.siteDirectory != nil && f.tokenStore != nil {
		return f, nil
	}
	if err := f.initStores(); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *RepositoryFactory) SiteDirectory() core.SiteDirectory {
	if f == nil {
		return nil
	}
	return f.siteDirectory
}

func (f *RepositoryFactory) TokenStore() *TokenStore {
	if f == nil {
		return nil
	}
	return f.tokenStore
}

func (f *RepositoryFactory) DB() *bun.DB {
	if f == nil {
		return nil
	}
	return f.db
}

// ServiceOptions wires the SQL site directory and token store into a service.
func (f *RepositoryFactory) ServiceOptions() []core.Option {
	if f == nil {
		return nil
	}
	return []core.Option{
		core.WithSiteDirectory(f.siteDirectory),
		core.WithTokenStore(f.tokenStore),
	}
}

func (f *RepositoryFactory) initStores() error {
	directory, err := NewSiteDirectory(f.db, f.secrets)
	if err != nil {
		return err
	}
	tokens, err := NewTokenStore(f.db, f.secrets)
	if err != nil {
		return err
	}
	f.siteDirectory = directory
	if f.cache != nil {
		cached, err := NewCachedSiteDirectory(directory, f.cache)
		if err != nil {
			return err
		}
		f.siteDirectory = cached
	}
	f.tokenStore = tokens
	return nil
}

func resolveBunDB(candidate any) (*bun.DB, error) {
	switch typed := candidate.(type) {
	case nil:
		return nil, fmt.Errorf("sqlstore: persistence client is required")
	case *bun.DB:
		return typed, nil
	case interface{ DB() *bun.DB }:
		db := typed.DB()
		if db == nil {
			return nil, fmt.Errorf("sqlstore: persistence client returned nil bun db")
		}
		return db, nil
	default:
		return nil, fmt.Errorf("sqlstore: unsupported persistence client type %T", candidate)
	}
}
