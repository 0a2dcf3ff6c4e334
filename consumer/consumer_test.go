package consumer

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goliatone/go-oauth1/core"
)

type fakeProvider struct {
	t              *testing.T
	consumerSecret string
	secrets        map[string]string

	mu       sync.Mutex
	requests []recordedRequest
	status   int
	body     string
}

type recordedRequest struct {
	method string
	path   string
	oauth  map[string]string
	params url.Values
}

func newFakeProvider(t *testing.T) (*fakeProvider, *httptest.Server) {
	t.Helper()
	provider := &fakeProvider{
		t:              t,
		consumerSecret: "consumer-secret",
		secrets:        map[string]string{"req-token": "req-secret", "acc-token": "acc-secret"},
	}
	server := httptest.NewServer(http.HandlerFunc(provider.serve))
	t.Cleanup(server.Close)
	return provider, server
}

func (p *fakeProvider) serve(w http.ResponseWriter, r *http.Request) {
	oauth := parseAuthorizationHeader(r.Header.Get("Authorization"))
	params := r.URL.Query()
	if r.Method == http.MethodPost {
		body, _ := io.ReadAll(r.Body)
		form, _ := url.ParseQuery(string(body))
		for key, values := range form {
			params[key] = values
		}
	}

	signing := map[string]string{}
	for key, value := range oauth {
		signing[key] = value
	}
	for key := range params {
		if _, ok := r.URL.Query()[key]; ok {
			continue
		}
		signing[key] = params.Get(key)
	}
	requestURL := "http://" + r.Host + r.URL.RequestURI()
	signer := Signer{ConsumerKey: oauth["oauth_consumer_key"], ConsumerSecret: p.consumerSecret}
	expected, err := signer.Sign(r.Method, requestURL, p.secrets[oauth["oauth_token"]], signing)
	if err != nil || expected != oauth["oauth_signature"] {
		http.Error(w, "invalid signature", http.StatusUnauthorized)
		return
	}

	p.mu.Lock()
	p.requests = append(p.requests, recordedRequest{method: r.Method, path: r.URL.Path, oauth: oauth, params: params})
	status, body := p.status, p.body
	p.mu.Unlock()

	if status != 0 {
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
		return
	}
	switch r.URL.Path {
	case "/request_token":
		_, _ = io.WriteString(w, "oauth_token=req-token&oauth_token_secret=req-secret&oauth_callback_confirmed=true")
	case "/access_token":
		_, _ = io.WriteString(w, "oauth_token=acc-token&oauth_token_secret=acc-secret&oauth_expires_in=3600&user_id=42")
	default:
		w.Header().Set("Content-Type", "text/plain")
		_, _ = io.WriteString(w, "ok:"+params.Get("q"))
	}
}

func (p *fakeProvider) last() recordedRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.requests) == 0 {
		p.t.Fatalf("expected a recorded request")
	}
	return p.requests[len(p.requests)-1]
}

func parseAuthorizationHeader(header string) map[string]string {
	out := map[string]string{}
	header = strings.TrimPrefix(strings.TrimSpace(header), "OAuth ")
	for _, part := range strings.Split(header, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		decoded, err := url.PathUnescape(strings.Trim(value, `"`))
		if err != nil {
			continue
		}
		out[key] = decoded
	}
	return out
}

func testSite(baseURL string) core.Site {
	return core.Site{
		ID:                "site-1",
		Name:              "example.com",
		RequestTokenURL:   baseURL + "/request_token",
		AuthorizeTokenURL: baseURL + "/authorize",
		AccessTokenURL:    baseURL + "/access_token",
		ConsumerKey:       "consumer-key",
		ConsumerSecret:    "consumer-secret",
		Enabled:           true,
	}
}

func fixedClock() time.Time {
	return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
}

func TestConsumer_RequestTokenSendsSignedCallback(t *testing.T) {
	provider, server := newFakeProvider(t)
	c, err := New(testSite(server.URL), WithClock(fixedClock), WithNonce(func() string { return "n1" }))
	if err != nil {
		t.Fatalf("new consumer: %v", err)
	}

	token, err := c.RequestToken(context.Background(), core.RequestTokenInput{
		URL:         server.URL + "/request_token",
		ExtraParams: map[string]string{"scope": "https://docs.example.com/feeds/"},
	})
	if err != nil {
		t.Fatalf("request token: %v", err)
	}
	if token.Token != "req-token" || token.Secret != "req-secret" || !token.CallbackConfirmed {
		t.Fatalf("unexpected request token %#v", token)
	}
	if !token.IssuedAt.Equal(fixedClock()) {
		t.Fatalf("expected issued at from clock, got %v", token.IssuedAt)
	}

	recorded := provider.last()
	if recorded.method != http.MethodPost {
		t.Fatalf("expected POST token request, got %s", recorded.method)
	}
	if recorded.oauth["oauth_callback"] != "oob" {
		t.Fatalf("expected oob callback, got %q", recorded.oauth["oauth_callback"])
	}
	if _, ok := recorded.oauth["oauth_token"]; ok {
		t.Fatalf("request token call must not carry oauth_token")
	}
	if recorded.params.Get("scope") != "https://docs.example.com/feeds/" {
		t.Fatalf("expected extra params in body, got %#v", recorded.params)
	}
}

func TestConsumer_RequestTokenUsesConfiguredCallbackAndGet(t *testing.T) {
	provider, server := newFakeProvider(t)
	c, err := New(testSite(server.URL), WithTokenRequestMethod("get"))
	if err != nil {
		t.Fatalf("new consumer: %v", err)
	}
	if _, err := c.RequestToken(context.Background(), core.RequestTokenInput{
		URL:         server.URL + "/request_token",
		CallbackURL: "https://app.example.com/oauth/callback?site=example.com",
	}); err != nil {
		t.Fatalf("request token: %v", err)
	}
	recorded := provider.last()
	if recorded.method != http.MethodGet {
		t.Fatalf("expected GET token request, got %s", recorded.method)
	}
	if recorded.oauth["oauth_callback"] != "https://app.example.com/oauth/callback?site=example.com" {
		t.Fatalf("unexpected callback %q", recorded.oauth["oauth_callback"])
	}
}

func TestConsumer_RequestTokenRejectionIsProtocolError(t *testing.T) {
	provider, server := newFakeProvider(t)
	provider.status = http.StatusUnauthorized
	provider.body = "oauth_problem=consumer_key_unknown"

	c, _ := New(testSite(server.URL))
	_, err := c.RequestToken(context.Background(), core.RequestTokenInput{URL: server.URL + "/request_token"})
	if err == nil || !core.IsProtocolError(err) {
		t.Fatalf("expected protocol error, got %v", err)
	}
}

func TestConsumer_MalformedTokenBodyIsProtocolError(t *testing.T) {
	provider, server := newFakeProvider(t)
	provider.status = http.StatusOK
	provider.body = "not a token response"

	c, _ := New(testSite(server.URL))
	_, err := c.RequestToken(context.Background(), core.RequestTokenInput{URL: server.URL + "/request_token"})
	if err == nil || !core.IsProtocolError(err) {
		t.Fatalf("expected protocol error, got %v", err)
	}
}

func TestConsumer_AccessTokenSignsWithRequestTokenAndVerifier(t *testing.T) {
	provider, server := newFakeProvider(t)
	c, _ := New(testSite(server.URL), WithClock(fixedClock))

	token, err := c.AccessToken(context.Background(), core.AccessTokenInput{
		URL:          server.URL + "/access_token",
		RequestToken: core.RequestToken{Token: "req-token", Secret: "req-secret"},
		Verifier:     "verifier-1",
	})
	if err != nil {
		t.Fatalf("access token: %v", err)
	}
	if token.Token != "acc-token" || token.Secret != "acc-secret" {
		t.Fatalf("unexpected access token %#v", token)
	}
	if token.ExpiresAt == nil || !token.ExpiresAt.Equal(fixedClock().Add(time.Hour)) {
		t.Fatalf("expected expiry from oauth_expires_in, got %v", token.ExpiresAt)
	}
	if token.Extra["user_id"] != "42" {
		t.Fatalf("expected extra provider params, got %#v", token.Extra)
	}

	recorded := provider.last()
	if recorded.oauth["oauth_token"] != "req-token" || recorded.oauth["oauth_verifier"] != "verifier-1" {
		t.Fatalf("unexpected oauth params %#v", recorded.oauth)
	}
}

func TestConsumer_AuthorizeURLCarriesTokenAndCallback(t *testing.T) {
	c, _ := New(testSite("https://provider.example.com"))
	got, err := c.AuthorizeURL(
		"https://provider.example.com/authorize?hd=default",
		core.RequestToken{Token: "req token"},
		"https://app.example.com/cb",
	)
	if err != nil {
		t.Fatalf("authorize url: %v", err)
	}
	parsed, err := url.Parse(got)
	if err != nil {
		t.Fatalf("parse authorize url: %v", err)
	}
	query := parsed.Query()
	if query.Get("oauth_token") != "req token" || query.Get("oauth_callback") != "https://app.example.com/cb" || query.Get("hd") != "default" {
		t.Fatalf("unexpected authorize url %q", got)
	}

	if _, err := c.AuthorizeURL("https://provider.example.com/authorize", core.RequestToken{}, ""); !core.IsProtocolError(err) {
		t.Fatalf("expected protocol error for missing token, got %v", err)
	}
}

func TestConsumer_GetAndPostSignWithAccessToken(t *testing.T) {
	provider, server := newFakeProvider(t)
	c, _ := New(testSite(server.URL))
	token := core.AccessToken{Token: "acc-token", Secret: "acc-secret"}

	response, err := c.Get(context.Background(), server.URL+"/feed?alt=csv", token, map[string]string{"q": "a b"})
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if response.Status != http.StatusOK || string(response.Body) != "ok:a b" {
		t.Fatalf("unexpected response %d %q", response.Status, string(response.Body))
	}
	if response.Headers["Content-Type"] != "text/plain" {
		t.Fatalf("expected flattened headers, got %#v", response.Headers)
	}
	if provider.last().params.Get("alt") != "csv" {
		t.Fatalf("expected original query to be kept")
	}

	response, err = c.Post(context.Background(), server.URL+"/feed", token, map[string]string{"q": "posted"})
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	if string(response.Body) != "ok:posted" {
		t.Fatalf("unexpected post body %q", string(response.Body))
	}
	if provider.last().method != http.MethodPost {
		t.Fatalf("expected POST request")
	}
}

func TestConsumer_NonSuccessStatusIsReturnedForSignedRequests(t *testing.T) {
	provider, server := newFakeProvider(t)
	provider.status = http.StatusForbidden
	provider.body = "denied"

	c, _ := New(testSite(server.URL))
	response, err := c.Get(context.Background(), server.URL+"/feed", core.AccessToken{Token: "acc-token", Secret: "acc-secret"}, nil)
	if err != nil {
		t.Fatalf("expected raw response, got %v", err)
	}
	if response.Status != http.StatusForbidden || string(response.Body) != "denied" {
		t.Fatalf("unexpected response %d %q", response.Status, string(response.Body))
	}
}

func TestConsumer_ResponseBodyLimit(t *testing.T) {
	provider, server := newFakeProvider(t)
	provider.status = http.StatusOK
	provider.body = strings.Repeat("x", 64)

	c, _ := New(testSite(server.URL), WithMaxResponseBodyBytes(16))
	_, err := c.Get(context.Background(), server.URL+"/feed", core.AccessToken{Token: "acc-token", Secret: "acc-secret"}, nil)
	if err == nil || !core.IsProtocolError(err) {
		t.Fatalf("expected body limit protocol error, got %v", err)
	}
}

func TestNew_RequiresConsumerKey(t *testing.T) {
	site := testSite("https://provider.example.com")
	site.ConsumerKey = " "
	if _, err := New(site); !core.IsConfigurationError(err) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestNewFactory_AppliesConfig(t *testing.T) {
	provider, server := newFakeProvider(t)
	cfg := core.DefaultConfig()
	cfg.OAuth.TokenRequestMethod = http.MethodGet

	built, err := NewFactory(cfg).ForSite(testSite(server.URL))
	if err != nil {
		t.Fatalf("factory: %v", err)
	}
	if _, err := built.RequestToken(context.Background(), core.RequestTokenInput{URL: server.URL + "/request_token"}); err != nil {
		t.Fatalf("request token: %v", err)
	}
	if provider.last().method != http.MethodGet {
		t.Fatalf("expected factory config to select GET")
	}
}
