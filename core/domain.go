package core

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

type SessionState string

const (
	SessionStateUnauthenticated         SessionState = "unauthenticated"
	SessionStateRequestTokenPending     SessionState = "request_token_pending"
	SessionStateAuthorizationRedirected SessionState = "authorization_redirected"
	SessionStateAuthenticated           SessionState = "authenticated"
)

// Site is a provider registration in the site directory.
type Site struct {
	ID                string
	Name              string
	RequestTokenURL   string
	AuthorizeTokenURL string
	AccessTokenURL    string
	ConsumerKey       string
	ConsumerSecret    string
	Enabled           bool
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (s Site) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return fmt.Errorf("core: site name is required")
	}
	for field, raw := range map[string]string{
		"request_token_url":   s.RequestTokenURL,
		"authorize_token_url": s.AuthorizeTokenURL,
		"access_token_url":    s.AccessTokenURL,
	} {
		if err := validateEndpoint(field, raw); err != nil {
			return err
		}
	}
	if strings.TrimSpace(s.ConsumerKey) == "" {
		return fmt.Errorf("core: site consumer key is required")
	}
	return nil
}

func validateEndpoint(field string, raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fmt.Errorf("core: site %s is required", field)
	}
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("core: site %s is invalid", field)
	}
	return nil
}

type RequestToken struct {
	Token             string
	Secret            string
	CallbackConfirmed bool
	IssuedAt          time.Time
}

func (t *RequestToken) Expired(now time.Time, ttl time.Duration) bool {
	if t == nil {
		return true
	}
	if ttl <= 0 || t.IssuedAt.IsZero() {
		return false
	}
	return now.After(t.IssuedAt.Add(ttl))
}

type AccessToken struct {
	Token     string
	Secret    string
	Extra     map[string]string
	IssuedAt  time.Time
	ExpiresAt *time.Time
}

func (t *AccessToken) Expired(now time.Time) bool {
	if t == nil {
		return true
	}
	if t.ExpiresAt == nil || t.ExpiresAt.IsZero() {
		return false
	}
	return !now.Before(*t.ExpiresAt)
}

// Session is the per (user, site) OAuth flow state kept in the session store.
type Session struct {
	UserID       string
	SiteID       string
	SiteName     string
	State        SessionState
	RequestToken *RequestToken
	AccessToken  *AccessToken
	Preserve     map[string]string
	ReturnURL    string
	AuthorizeURL string
	UpdatedAt    time.Time
}

type Response struct {
	Status  int
	Headers map[string]string
	Body    []byte
}

func (r Response) OK() bool {
	return r.Status >= 200 && r.Status < 300
}

type AuthStatus string

const (
	AuthStatusAuthenticated AuthStatus = "authenticated"
	AuthStatusSuspended     AuthStatus = "suspended"
)

// AuthResult is the outcome of Authenticate. A suspended result carries the
// provider URL the caller must redirect the user agent to.
type AuthResult struct {
	Status      AuthStatus
	RedirectURL string
	State       SessionState
}

func (r AuthResult) Suspended() bool {
	return r.Status == AuthStatusSuspended
}

// Callback holds the parameters the provider sends back after authorization.
type Callback struct {
	Token    string
	Verifier string
}

func CallbackFromQuery(values url.Values) *Callback {
	token := strings.TrimSpace(values.Get("oauth_token"))
	verifier := strings.TrimSpace(values.Get("oauth_verifier"))
	if token == "" && verifier == "" {
		return nil
	}
	return &Callback{Token: token, Verifier: verifier}
}

type AuthenticateRequest struct {
	ExtraParams map[string]string
	Preserve    map[string]string
	CurrentURL  string
	CallbackURL string
	Callback    *Callback
}

type RequestTokenInput struct {
	URL         string
	CallbackURL string
	ExtraParams map[string]string
}

type AccessTokenInput struct {
	URL          string
	RequestToken RequestToken
	Verifier     string
}

func cloneSite(site Site) Site {
	return site
}

func cloneRequestToken(token *RequestToken) *RequestToken {
	if token == nil {
		return nil
	}
	cloned := *token
	return &cloned
}

func cloneAccessToken(token *AccessToken) *AccessToken {
	if token == nil {
		return nil
	}
	cloned := *token
	cloned.Extra = copyStringMap(token.Extra)
	if token.ExpiresAt != nil {
		expiresAt := *token.ExpiresAt
		cloned.ExpiresAt = &expiresAt
	}
	return &cloned
}

func CloneSession(session Session) Session {
	cloned := session
	cloned.RequestToken = cloneRequestToken(session.RequestToken)
	cloned.AccessToken = cloneAccessToken(session.AccessToken)
	cloned.Preserve = copyStringMap(session.Preserve)
	return cloned
}

func copyStringMap(in map[string]string) map[string]string {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]string, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}
