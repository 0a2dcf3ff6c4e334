package core

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"
)

type stubLogger struct{}

func (stubLogger) Trace(string, ...any) {}
func (stubLogger) Debug(string, ...any) {}
func (stubLogger) Info(string, ...any)  {}
func (stubLogger) Warn(string, ...any)  {}
func (stubLogger) Error(string, ...any) {}
func (stubLogger) Fatal(string, ...any) {}
func (s stubLogger) WithContext(context.Context) Logger {
	return s
}

type stubLoggerProvider struct {
	logger Logger
}

func (s stubLoggerProvider) GetLogger(string) Logger {
	return s.logger
}

type mapRawLoader struct {
	values map[string]any
}

func (l mapRawLoader) LoadRaw(context.Context) (map[string]any, error) {
	if len(l.values) == 0 {
		return map[string]any{}, nil
	}
	out := make(map[string]any, len(l.values))
	for key, value := range l.values {
		out[key] = value
	}
	return out, nil
}

// stubConsumer is a scripted provider. Counters let tests assert how many
// network calls a flow performed.
type stubConsumer struct {
	mu sync.Mutex

	requestTokenCalls int
	accessTokenCalls  int
	getCalls          int
	postCalls         int

	requestTokenDelay time.Duration
	requestTokenErr   error
	accessTokenErr    error
	accessExpiresAt   *time.Time
	response          Response
	responseErr       error

	lastRequestTokenInput RequestTokenInput
	lastAccessTokenInput  AccessTokenInput
	lastParams            map[string]string
	lastToken             AccessToken
}

func (c *stubConsumer) RequestToken(_ context.Context, in RequestTokenInput) (RequestToken, error) {
	if c.requestTokenDelay > 0 {
		time.Sleep(c.requestTokenDelay)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.requestTokenCalls++
	c.lastRequestTokenInput = in
	if c.requestTokenErr != nil {
		return RequestToken{}, c.requestTokenErr
	}
	return RequestToken{
		Token:             fmt.Sprintf("req-%d", c.requestTokenCalls),
		Secret:            "req-secret",
		CallbackConfirmed: true,
	}, nil
}

func (c *stubConsumer) AuthorizeURL(authorizeURL string, token RequestToken, callbackURL string) (string, error) {
	values := url.Values{"oauth_token": []string{token.Token}}
	if callbackURL != "" {
		values.Set("oauth_callback", callbackURL)
	}
	return authorizeURL + "?" + values.Encode(), nil
}

func (c *stubConsumer) AccessToken(_ context.Context, in AccessTokenInput) (AccessToken, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.accessTokenCalls++
	c.lastAccessTokenInput = in
	if c.accessTokenErr != nil {
		return AccessToken{}, c.accessTokenErr
	}
	return AccessToken{
		Token:     "acc-" + in.RequestToken.Token,
		Secret:    "acc-secret",
		ExpiresAt: c.accessExpiresAt,
	}, nil
}

func (c *stubConsumer) Get(_ context.Context, _ string, token AccessToken, params map[string]string) (Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.getCalls++
	c.lastToken = token
	c.lastParams = params
	return c.response, c.responseErr
}

func (c *stubConsumer) Post(_ context.Context, _ string, token AccessToken, params map[string]string) (Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.postCalls++
	c.lastToken = token
	c.lastParams = params
	return c.response, c.responseErr
}

func (c *stubConsumer) counts() (int, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.requestTokenCalls, c.accessTokenCalls
}

type failingTokenStore struct {
	*MemoryTokenStore
	putErr error
	getErr error
}

func (s failingTokenStore) Put(ctx context.Context, userID string, siteID string, token AccessToken) error {
	if s.putErr != nil {
		return s.putErr
	}
	return s.MemoryTokenStore.Put(ctx, userID, siteID, token)
}

func (s failingTokenStore) Get(ctx context.Context, userID string, siteID string) (AccessToken, bool, error) {
	if s.getErr != nil {
		return AccessToken{}, false, s.getErr
	}
	return s.MemoryTokenStore.Get(ctx, userID, siteID)
}

var errStoreDown = errors.New("store is down")

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func enabledSite(name string) Site {
	return Site{
		ID:                "site-" + name,
		Name:              name,
		RequestTokenURL:   "https://" + name + "/oauth/request_token",
		AuthorizeTokenURL: "https://" + name + "/oauth/authorize",
		AccessTokenURL:    "https://" + name + "/oauth/access_token",
		ConsumerKey:       "key-" + name,
		ConsumerSecret:    "secret-" + name,
		Enabled:           true,
	}
}

type serviceFixture struct {
	service  *Service
	consumer *stubConsumer
	sites    *MemorySiteDirectory
	tokens   *MemoryTokenStore
	sessions *MemorySessionStore
	clock    *testClock
}

func newServiceFixture(cfg Config, opts ...Option) (*serviceFixture, error) {
	fixture := &serviceFixture{
		consumer: &stubConsumer{},
		sites:    NewMemorySiteDirectory(enabledSite("example.com")),
		tokens:   NewMemoryTokenStore(),
		sessions: NewMemorySessionStore(0),
		clock:    newTestClock(),
	}
	base := []Option{
		WithLogger(stubLogger{}),
		WithSiteDirectory(fixture.sites),
		WithTokenStore(fixture.tokens),
		WithSessionStore(fixture.sessions),
		WithClock(fixture.clock.Now),
		WithConsumerFactory(ConsumerFactoryFunc(func(Site) (Consumer, error) {
			return fixture.consumer, nil
		})),
	}
	svc, err := NewService(cfg, append(base, opts...)...)
	if err != nil {
		return nil, err
	}
	fixture.service = svc
	return fixture, nil
}
