package oauth1

import (
	"github.com/goliatone/go-oauth1/consumer"
	"github.com/goliatone/go-oauth1/core"
)

type Config = core.Config

type OAuthConfig = core.OAuthConfig

type Option = core.Option

type Service = core.Service

type ServiceDependencies = core.ServiceDependencies

type Authenticator = core.Authenticator

type Site = core.Site
type Session = core.Session
type SessionState = core.SessionState
type AccessToken = core.AccessToken
type RequestToken = core.RequestToken
type Response = core.Response
type SiteDirectory = core.SiteDirectory
type TokenStore = core.TokenStore
type SessionStore = core.SessionStore
type ConsumerFactory = core.ConsumerFactory
type SecretProvider = core.SecretProvider

type AuthenticateRequest = core.AuthenticateRequest

type AuthResult = core.AuthResult

type Callback = core.Callback

var (
	WithLogger          = core.WithLogger
	WithLoggerProvider  = core.WithLoggerProvider
	WithMetricsRecorder = core.WithMetricsRecorder
	WithErrorMapper     = core.WithErrorMapper
	WithConfigProvider  = core.WithConfigProvider
	WithOptionsResolver = core.WithOptionsResolver
	WithSiteDirectory   = core.WithSiteDirectory
	WithTokenStore      = core.WithTokenStore
	WithSessionStore    = core.WithSessionStore
	WithConsumerFactory = core.WithConsumerFactory
	WithClock           = core.WithClock

	CallbackFromQuery = core.CallbackFromQuery
)

func DefaultConfig() Config {
	return core.DefaultConfig()
}

// NewService builds a service that signs with the HTTP consumer unless a
// consumer factory is supplied through opts.
func NewService(cfg Config, opts ...Option) (*Service, error) {
	all := make([]Option, 0, len(opts)+1)
	all = append(all, core.WithConsumerFactory(consumer.NewFactory(cfg)))
	all = append(all, opts...)
	return core.NewService(cfg, all...)
}
