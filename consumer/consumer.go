package consumer

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goliatone/go-oauth1/core"
)

const defaultTimeout = 30 * time.Second
const defaultMaxResponseBodyBytes int64 = 10 << 20 // 10 MiB

const (
	outOfBandCallback   = "oob"
	formContentType     = "application/x-www-form-urlencoded"
	maxErrorBodySnippet = 512
)

type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

type Option func(*Consumer)

func WithHTTPClient(client HTTPDoer) Option {
	return func(c *Consumer) {
		if client != nil {
			c.client = client
		}
	}
}

func WithTimeout(timeout time.Duration) Option {
	return func(c *Consumer) {
		c.timeout = timeout
	}
}

// WithTokenRequestMethod selects GET or POST for the token endpoints.
func WithTokenRequestMethod(method string) Option {
	return func(c *Consumer) {
		method = strings.ToUpper(strings.TrimSpace(method))
		if method == http.MethodGet || method == http.MethodPost {
			c.tokenMethod = method
		}
	}
}

func WithMaxResponseBodyBytes(limit int64) Option {
	return func(c *Consumer) {
		if limit > 0 {
			c.maxBodyBytes = limit
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *Consumer) {
		if now != nil {
			c.signer.Now = now
		}
	}
}

func WithNonce(nonce func() string) Option {
	return func(c *Consumer) {
		if nonce != nil {
			c.signer.Nonce = nonce
		}
	}
}

// Consumer talks OAuth 1.0a to the endpoints of one site.
type Consumer struct {
	site         core.Site
	signer       Signer
	client       HTTPDoer
	timeout      time.Duration
	tokenMethod  string
	maxBodyBytes int64
}

func New(site core.Site, opts ...Option) (*Consumer, error) {
	if strings.TrimSpace(site.ConsumerKey) == "" {
		return nil, core.NewConfigurationError("consumer: consumer key is required", map[string]any{
			"site_name": site.Name,
		})
	}
	c := &Consumer{
		site:         site,
		signer:       NewSigner(site.ConsumerKey, site.ConsumerSecret),
		client:       &http.Client{},
		timeout:      defaultTimeout,
		tokenMethod:  http.MethodPost,
		maxBodyBytes: defaultMaxResponseBodyBytes,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(c)
	}
	return c, nil
}

// NewFactory builds consumers configured from the service config.
func NewFactory(cfg core.Config, opts ...Option) core.ConsumerFactory {
	base := []Option{
		WithTimeout(cfg.OAuth.RequestTimeout),
		WithTokenRequestMethod(cfg.OAuth.TokenRequestMethod),
	}
	base = append(base, opts...)
	return core.ConsumerFactoryFunc(func(site core.Site) (core.Consumer, error) {
		return New(site, base...)
	})
}

func (c *Consumer) Signer() Signer {
	return c.signer
}

func (c *Consumer) RequestToken(ctx context.Context, in core.RequestTokenInput) (core.RequestToken, error) {
	callback := strings.TrimSpace(in.CallbackURL)
	if callback == "" {
		callback = outOfBandCallback
	}
	response, err := c.send(ctx, c.tokenMethod, in.URL, "", "", in.ExtraParams, map[string]string{
		"oauth_callback": callback,
	})
	if err != nil {
		return core.RequestToken{}, err
	}
	values, err := c.parseTokenResponse(response, "request token")
	if err != nil {
		return core.RequestToken{}, err
	}
	return core.RequestToken{
		Token:             values.Get("oauth_token"),
		Secret:            values.Get("oauth_token_secret"),
		CallbackConfirmed: strings.EqualFold(values.Get("oauth_callback_confirmed"), "true"),
		IssuedAt:          c.now(),
	}, nil
}

func (c *Consumer) AuthorizeURL(authorizeURL string, token core.RequestToken, callbackURL string) (string, error) {
	parsed, err := url.Parse(strings.TrimSpace(authorizeURL))
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return "", core.NewConfigurationError("consumer: authorize url is invalid", map[string]any{
			"site_name": c.site.Name,
		})
	}
	if strings.TrimSpace(token.Token) == "" {
		return "", core.NewProtocolError("consumer: request token is required", map[string]any{
			"site_name": c.site.Name,
		})
	}
	query := parsed.Query()
	query.Set("oauth_token", token.Token)
	if callback := strings.TrimSpace(callbackURL); callback != "" {
		query.Set("oauth_callback", callback)
	}
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}

func (c *Consumer) AccessToken(ctx context.Context, in core.AccessTokenInput) (core.AccessToken, error) {
	extra := map[string]string{}
	if verifier := strings.TrimSpace(in.Verifier); verifier != "" {
		extra["oauth_verifier"] = verifier
	}
	response, err := c.send(ctx, c.tokenMethod, in.URL, in.RequestToken.Token, in.RequestToken.Secret, nil, extra)
	if err != nil {
		return core.AccessToken{}, err
	}
	values, err := c.parseTokenResponse(response, "access token")
	if err != nil {
		return core.AccessToken{}, err
	}

	issuedAt := c.now()
	token := core.AccessToken{
		Token:    values.Get("oauth_token"),
		Secret:   values.Get("oauth_token_secret"),
		IssuedAt: issuedAt,
	}
	if raw := strings.TrimSpace(values.Get("oauth_expires_in")); raw != "" {
		seconds, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || seconds < 0 {
			return core.AccessToken{}, core.NewProtocolError("consumer: access token response has an invalid oauth_expires_in", map[string]any{
				"site_name": c.site.Name,
			})
		}
		expiresAt := issuedAt.Add(time.Duration(seconds) * time.Second)
		token.ExpiresAt = &expiresAt
	}
	for key := range values {
		switch key {
		case "oauth_token", "oauth_token_secret", "oauth_expires_in":
			continue
		}
		if token.Extra == nil {
			token.Extra = map[string]string{}
		}
		token.Extra[key] = values.Get(key)
	}
	return token, nil
}

func (c *Consumer) Get(ctx context.Context, rawURL string, token core.AccessToken, params map[string]string) (core.Response, error) {
	return c.send(ctx, http.MethodGet, rawURL, token.Token, token.Secret, params, nil)
}

func (c *Consumer) Post(ctx context.Context, rawURL string, token core.AccessToken, params map[string]string) (core.Response, error) {
	return c.send(ctx, http.MethodPost, rawURL, token.Token, token.Secret, params, nil)
}

// send signs and executes one request. params travel in the query for GET and
// in a form body for POST; protocol carries extra oauth_* values.
func (c *Consumer) send(
	ctx context.Context,
	method string,
	rawURL string,
	token string,
	tokenSecret string,
	params map[string]string,
	protocol map[string]string,
) (core.Response, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return core.Response{}, core.NewConfigurationError("consumer: request url is invalid", map[string]any{
			"site_name": c.site.Name,
			"url":       strings.TrimSpace(rawURL),
		})
	}

	form := url.Values{}
	signed := c.signer.ProtocolParams(token)
	for key, value := range protocol {
		signed[key] = value
	}
	if method == http.MethodGet {
		query := parsed.Query()
		for key, value := range params {
			query.Set(key, value)
		}
		parsed.RawQuery = query.Encode()
	} else {
		for key, value := range params {
			form.Set(key, value)
		}
	}

	signingParams := make(map[string]string, len(signed)+len(form))
	for key, value := range signed {
		signingParams[key] = value
	}
	for key := range form {
		signingParams[key] = form.Get(key)
	}
	signature, err := c.signer.Sign(method, parsed.String(), tokenSecret, signingParams)
	if err != nil {
		return core.Response{}, core.WrapProtocolError(err, "consumer: sign request", map[string]any{"site_name": c.site.Name})
	}
	signed["oauth_signature"] = signature

	requestCtx := ctx
	cancel := func() {}
	if c.timeout > 0 {
		requestCtx, cancel = context.WithTimeout(ctx, c.timeout)
	}
	defer cancel()

	var body io.Reader
	if method != http.MethodGet {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(requestCtx, method, parsed.String(), body)
	if err != nil {
		return core.Response{}, core.WrapProtocolError(err, "consumer: create http request", map[string]any{"site_name": c.site.Name})
	}
	req.Header.Set("Authorization", authorizationHeader(signed))
	if method != http.MethodGet {
		req.Header.Set("Content-Type", formContentType)
	}

	res, err := c.client.Do(req)
	if err != nil {
		return core.Response{}, core.WrapProtocolError(err, "consumer: execute http request", map[string]any{
			"site_name": c.site.Name,
			"method":    method,
		})
	}
	defer res.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(res.Body, c.maxBodyBytes+1))
	if err != nil {
		return core.Response{}, core.WrapProtocolError(err, "consumer: read response body", map[string]any{
			"site_name":   c.site.Name,
			"status_code": res.StatusCode,
		})
	}
	if int64(len(payload)) > c.maxBodyBytes {
		return core.Response{}, core.NewProtocolError(
			fmt.Sprintf("consumer: response body exceeds limit of %d bytes", c.maxBodyBytes),
			map[string]any{"site_name": c.site.Name, "status_code": res.StatusCode},
		)
	}
	return core.Response{
		Status:  res.StatusCode,
		Headers: flattenHeaders(res.Header),
		Body:    payload,
	}, nil
}

func (c *Consumer) parseTokenResponse(response core.Response, kind string) (url.Values, error) {
	if !response.OK() {
		return nil, core.NewProtocolError(
			fmt.Sprintf("consumer: %s request rejected with status %d", kind, response.Status),
			map[string]any{
				"site_name":   c.site.Name,
				"status_code": response.Status,
				"body":        snippet(response.Body),
			},
		)
	}
	values, err := url.ParseQuery(string(bytes.TrimSpace(response.Body)))
	if err != nil {
		return nil, core.WrapProtocolError(err, fmt.Sprintf("consumer: malformed %s response", kind), map[string]any{
			"site_name": c.site.Name,
		})
	}
	if strings.TrimSpace(values.Get("oauth_token")) == "" || values.Get("oauth_token_secret") == "" {
		return nil, core.NewProtocolError(fmt.Sprintf("consumer: malformed %s response", kind), map[string]any{
			"site_name": c.site.Name,
			"body":      snippet(response.Body),
		})
	}
	return values, nil
}

func (c *Consumer) now() time.Time {
	if c.signer.Now == nil {
		return time.Now().UTC()
	}
	return c.signer.Now().UTC()
}

func flattenHeaders(headers http.Header) map[string]string {
	if len(headers) == 0 {
		return map[string]string{}
	}
	flat := make(map[string]string, len(headers))
	for key, values := range headers {
		flat[key] = strings.Join(values, ",")
	}
	return flat
}

func snippet(body []byte) string {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > maxErrorBodySnippet {
		trimmed = trimmed[:maxErrorBodySnippet]
	}
	return string(trimmed)
}

var _ core.Consumer = (*Consumer)(nil)
