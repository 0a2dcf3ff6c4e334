package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	glog "github.com/goliatone/go-logger/glog"
	"golang.org/x/sync/singleflight"
)

type Service struct {
	config          Config
	logger          Logger
	loggerProvider  LoggerProvider
	metricsRecorder MetricsRecorder
	errorMapper     ErrorMapper
	configProvider  ConfigProvider
	optionsResolver OptionsResolver
	sites           SiteDirectory
	tokens          TokenStore
	sessions        SessionStore
	consumers       ConsumerFactory
	clock           func() time.Time

	// requestTokens collapses concurrent request-token fetches for one (user, site).
	requestTokens singleflight.Group
}

type ServiceDependencies struct {
	Logger          Logger
	LoggerProvider  LoggerProvider
	MetricsRecorder MetricsRecorder
	ErrorMapper     ErrorMapper
	ConfigProvider  ConfigProvider
	OptionsResolver OptionsResolver
	SiteDirectory   SiteDirectory
	TokenStore      TokenStore
	SessionStore    SessionStore
	ConsumerFactory ConsumerFactory
}

func NewService(cfg Config, opts ...Option) (*Service, error) {
	builder := defaultServiceBuilder(cfg)
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&builder)
	}

	provider, logger := glog.Resolve("oauth1", builder.loggerProvider, builder.logger)
	logger = glog.Ensure(logger)
	if provider != nil {
		if named := provider.GetLogger("oauth1"); named != nil {
			logger = glog.Ensure(named)
		}
	}

	if builder.metricsRecorder == nil {
		builder.metricsRecorder = NopMetricsRecorder{}
	}
	if builder.errorMapper == nil {
		builder.errorMapper = defaultErrorMapper
	}
	if builder.configProvider == nil {
		builder.configProvider = NewCfgxConfigProvider(nil)
	}
	if builder.optionsResolver == nil {
		builder.optionsResolver = GoOptionsResolver{}
	}
	if builder.sessionStore == nil {
		builder.sessionStore = NewMemorySessionStore(defaultSessionTTL)
	}
	if builder.clock == nil {
		builder.clock = func() time.Time {
			return time.Now().UTC()
		}
	}
	if builder.siteDirectory == nil {
		return nil, mapBuildError(builder.errorMapper, fmt.Errorf("core: site directory is required"))
	}
	if builder.tokenStore == nil {
		return nil, mapBuildError(builder.errorMapper, fmt.Errorf("core: token store is required"))
	}
	if builder.consumerFactory == nil {
		return nil, mapBuildError(builder.errorMapper, fmt.Errorf("core: consumer factory is required"))
	}

	defaults := DefaultConfig()
	loaded, err := builder.configProvider.Load(context.Background(), defaults)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}
	finalConfig, err := builder.optionsResolver.Resolve(defaults, loaded, builder.runtimeConfig)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}

	return &Service{
		config:          finalConfig,
		logger:          logger,
		loggerProvider:  provider,
		metricsRecorder: builder.metricsRecorder,
		errorMapper:     builder.errorMapper,
		configProvider:  builder.configProvider,
		optionsResolver: builder.optionsResolver,
		sites:           builder.siteDirectory,
		tokens:          builder.tokenStore,
		sessions:        builder.sessionStore,
		consumers:       builder.consumerFactory,
		clock:           builder.clock,
	}, nil
}

func mapBuildError(mapper ErrorMapper, err error) error {
	if err == nil {
		return nil
	}
	if mapper == nil {
		return err
	}
	mapped := mapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}

func (s *Service) Config() Config {
	if s == nil {
		return Config{}
	}
	return s.config
}

func (s *Service) Dependencies() ServiceDependencies {
	if s == nil {
		return ServiceDependencies{}
	}
	return ServiceDependencies{
		Logger:          s.logger,
		LoggerProvider:  s.loggerProvider,
		MetricsRecorder: s.metricsRecorder,
		ErrorMapper:     s.errorMapper,
		ConfigProvider:  s.configProvider,
		OptionsResolver: s.optionsResolver,
		SiteDirectory:   s.sites,
		TokenStore:      s.tokens,
		SessionStore:    s.sessions,
		ConsumerFactory: s.consumers,
	}
}

// Authenticator opens the OAuth session handle for (userID, siteName). It
// fails with a configuration error when the site is unknown or disabled and
// never touches the network.
func (s *Service) Authenticator(ctx context.Context, userID string, siteName string) (_ *Authenticator, err error) {
	if s == nil {
		return nil, fmt.Errorf("core: service is nil")
	}
	startedAt := time.Now()
	fields := map[string]any{"user_id": strings.TrimSpace(userID), "site_name": strings.TrimSpace(siteName)}
	defer func() {
		s.observeOperation(ctx, startedAt, "open_session", err, fields)
	}()

	userID = strings.TrimSpace(userID)
	siteName = strings.TrimSpace(siteName)
	if userID == "" {
		return nil, s.mapError(NewBadInputError("core: user id is required"))
	}
	if siteName == "" {
		return nil, s.mapError(NewBadInputError("core: site name is required"))
	}

	site, err := s.loadEnabledSite(ctx, siteName)
	if err != nil {
		return nil, s.mapError(err)
	}
	consumer, err := s.consumers.ForSite(site)
	if err != nil {
		return nil, s.mapError(err)
	}

	session, err := s.loadSession(ctx, userID, site)
	if err != nil {
		return nil, s.mapError(err)
	}
	fields["state"] = string(session.State)

	return &Authenticator{
		service:  s,
		site:     site,
		consumer: consumer,
		session:  session,
	}, nil
}

// Wipe removes the stored access token and the session state of a user for a
// site, whatever the site's enabled flag.
func (s *Service) Wipe(ctx context.Context, userID string, siteName string) (err error) {
	if s == nil {
		return fmt.Errorf("core: service is nil")
	}
	startedAt := time.Now()
	fields := map[string]any{"user_id": strings.TrimSpace(userID), "site_name": strings.TrimSpace(siteName)}
	defer func() {
		s.observeOperation(ctx, startedAt, "wipe", err, fields)
	}()

	site, err := s.sites.GetByName(ctx, strings.TrimSpace(siteName))
	if err != nil {
		if errors.Is(err, ErrSiteNotFound) {
			return s.mapError(NewConfigurationError(
				fmt.Sprintf("core: site %q is not configured", siteName),
				map[string]any{"site_name": siteName},
			))
		}
		return s.mapError(WrapPersistenceError(err, "core: load site"))
	}
	return s.mapError(s.wipeSession(ctx, strings.TrimSpace(userID), site))
}

func (s *Service) wipeSession(ctx context.Context, userID string, site Site) error {
	if err := s.tokens.Delete(ctx, userID, site.ID); err != nil {
		return WrapPersistenceError(err, "core: delete access token")
	}
	if err := s.sessions.Delete(ctx, userID, site.Name); err != nil {
		return WrapPersistenceError(err, "core: delete oauth session")
	}
	return nil
}

func (s *Service) loadEnabledSite(ctx context.Context, siteName string) (Site, error) {
	site, err := s.sites.GetByName(ctx, siteName)
	if err != nil {
		if errors.Is(err, ErrSiteNotFound) {
			return Site{}, NewConfigurationError(
				fmt.Sprintf("core: site %q is not configured", siteName),
				map[string]any{"site_name": siteName},
			)
		}
		return Site{}, WrapPersistenceError(err, "core: load site")
	}
	if !site.Enabled {
		return Site{}, NewConfigurationError(
			fmt.Sprintf("core: site %q is disabled", siteName),
			map[string]any{"site_name": siteName, "site_id": site.ID},
		)
	}
	return site, nil
}

// loadSession resolves the session from the session store first and falls
// back to the durable token store. Expired tokens are dropped on the way.
func (s *Service) loadSession(ctx context.Context, userID string, site Site) (Session, error) {
	now := s.now()
	session, found, err := s.sessions.Load(ctx, userID, site.Name)
	if err != nil {
		return Session{}, WrapPersistenceError(err, "core: load oauth session")
	}
	if !found || session.SiteID != site.ID {
		session = Session{
			UserID:   userID,
			SiteID:   site.ID,
			SiteName: site.Name,
			State:    SessionStateUnauthenticated,
		}
	}

	switch session.State {
	case SessionStateRequestTokenPending, SessionStateAuthorizationRedirected:
		if session.RequestToken.Expired(now, s.config.OAuth.RequestTokenTTL) {
			s.logDebug(ctx, "discarding expired request token", map[string]any{
				"user_id":   userID,
				"site_name": site.Name,
			})
			resetFlow(&session)
		}
	case SessionStateAuthenticated:
		if session.AccessToken.Expired(now) {
			if err := s.tokens.Delete(ctx, userID, site.ID); err != nil {
				return Session{}, WrapPersistenceError(err, "core: delete expired access token")
			}
			session.AccessToken = nil
			session.State = SessionStateUnauthenticated
		}
	}

	if session.State == SessionStateUnauthenticated && session.AccessToken == nil {
		token, ok, err := s.tokens.Get(ctx, userID, site.ID)
		if err != nil {
			return Session{}, WrapPersistenceError(err, "core: load access token")
		}
		if ok {
			if token.Expired(now) {
				if err := s.tokens.Delete(ctx, userID, site.ID); err != nil {
					return Session{}, WrapPersistenceError(err, "core: delete expired access token")
				}
			} else {
				session.AccessToken = &token
				session.RequestToken = nil
				session.State = SessionStateAuthenticated
			}
		}
	}
	return session, nil
}

func (s *Service) saveSession(ctx context.Context, session *Session) error {
	session.UpdatedAt = s.now()
	if err := s.sessions.Save(ctx, *session); err != nil {
		return WrapPersistenceError(err, "core: save oauth session")
	}
	return nil
}

func (s *Service) now() time.Time {
	if s == nil || s.clock == nil {
		return time.Now().UTC()
	}
	return s.clock().UTC()
}

func (s *Service) mapError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := AsRemoteRequestError(err); ok {
		return err
	}
	if s == nil || s.errorMapper == nil {
		return err
	}
	mapped := s.errorMapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}

func resetFlow(session *Session) {
	session.RequestToken = nil
	session.AuthorizeURL = ""
	if session.AccessToken != nil {
		session.State = SessionStateAuthenticated
		return
	}
	session.State = SessionStateUnauthenticated
}
