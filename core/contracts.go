package core

import (
	"context"

	glog "github.com/goliatone/go-logger/glog"
)

// SiteDirectory stores provider registrations.
type SiteDirectory interface {
	GetByID(ctx context.Context, id string) (Site, error)
	GetByKey(ctx context.Context, consumerKey string) (Site, error)
	GetByName(ctx context.Context, name string) (Site, error)
	Search(ctx context.Context, substring string) ([]Site, error)
	Add(ctx context.Context, site Site) (Site, error)
	Update(ctx context.Context, site Site) (Site, error)
	Delete(ctx context.Context, id string) error
}

// TokenStore persists access tokens keyed by (user, site).
type TokenStore interface {
	Get(ctx context.Context, userID string, siteID string) (AccessToken, bool, error)
	Put(ctx context.Context, userID string, siteID string, token AccessToken) error
	Delete(ctx context.Context, userID string, siteID string) error
}

// SessionStore keeps the ephemeral flow state between the inbound hops of an
// authorization round-trip.
type SessionStore interface {
	Load(ctx context.Context, userID string, siteName string) (Session, bool, error)
	Save(ctx context.Context, session Session) error
	Delete(ctx context.Context, userID string, siteName string) error
}

// Consumer performs the OAuth 1.0a exchanges and signed requests for one site.
type Consumer interface {
	RequestToken(ctx context.Context, in RequestTokenInput) (RequestToken, error)
	AuthorizeURL(authorizeURL string, token RequestToken, callbackURL string) (string, error)
	AccessToken(ctx context.Context, in AccessTokenInput) (AccessToken, error)
	Get(ctx context.Context, rawURL string, token AccessToken, params map[string]string) (Response, error)
	Post(ctx context.Context, rawURL string, token AccessToken, params map[string]string) (Response, error)
}

type ConsumerFactory interface {
	ForSite(site Site) (Consumer, error)
}

type ConsumerFactoryFunc func(site Site) (Consumer, error)

func (fn ConsumerFactoryFunc) ForSite(site Site) (Consumer, error) {
	return fn(site)
}

type SecretProvider interface {
	Encrypt(ctx context.Context, plaintext []byte) ([]byte, error)
	Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error)
}

type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger
