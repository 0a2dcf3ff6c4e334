package core

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	defaultRequestTokenTTL = 15 * time.Minute
	defaultRequestTimeout  = 30 * time.Second
)

type OAuthConfig struct {
	CallbackURL        string        `koanf:"callback_url" mapstructure:"callback_url"`
	RequestTokenTTL    time.Duration `koanf:"request_token_ttl" mapstructure:"request_token_ttl"`
	RequestTimeout     time.Duration `koanf:"request_timeout" mapstructure:"request_timeout"`
	TokenRequestMethod string        `koanf:"token_request_method" mapstructure:"token_request_method"`
}

type Config struct {
	ServiceName string      `koanf:"service_name" mapstructure:"service_name"`
	OAuth       OAuthConfig `koanf:"oauth" mapstructure:"oauth"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName: "oauth1",
		OAuth: OAuthConfig{
			RequestTokenTTL:    defaultRequestTokenTTL,
			RequestTimeout:     defaultRequestTimeout,
			TokenRequestMethod: http.MethodPost,
		},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	if c.OAuth.RequestTokenTTL < 0 {
		return fmt.Errorf("core: oauth.request_token_ttl must be >= 0")
	}
	if c.OAuth.RequestTimeout < 0 {
		return fmt.Errorf("core: oauth.request_timeout must be >= 0")
	}
	switch strings.ToUpper(strings.TrimSpace(c.OAuth.TokenRequestMethod)) {
	case "", http.MethodGet, http.MethodPost:
	default:
		return fmt.Errorf("core: oauth.token_request_method %q is invalid", c.OAuth.TokenRequestMethod)
	}
	if callback := strings.TrimSpace(c.OAuth.CallbackURL); callback != "" {
		parsed, err := url.Parse(callback)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return fmt.Errorf("core: oauth.callback_url is invalid")
		}
	}
	return nil
}
