package core

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// Authenticator is the OAuth session handle of one user for one site. It is
// obtained from Service.Authenticator and reloads its state from the session
// store on every flow step, so a fresh handle may be built per inbound hop.
type Authenticator struct {
	service  *Service
	site     Site
	consumer Consumer

	mu      sync.Mutex
	session Session
}

func (a *Authenticator) Site() Site {
	if a == nil {
		return Site{}
	}
	return cloneSite(a.site)
}

func (a *Authenticator) State() SessionState {
	if a == nil {
		return SessionStateUnauthenticated
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.session.State
}

func (a *Authenticator) Session() Session {
	if a == nil {
		return Session{}
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return CloneSession(a.session)
}

// Authenticate advances the flow by one step. A suspended result means the
// caller must send the user agent to RedirectURL and call Authenticate again
// with the provider callback parameters.
func (a *Authenticator) Authenticate(ctx context.Context, req AuthenticateRequest) (result AuthResult, err error) {
	if a == nil || a.service == nil {
		return AuthResult{}, fmt.Errorf("core: authenticator is not initialized")
	}
	s := a.service
	startedAt := time.Now()
	fields := a.fields()
	defer func() {
		fields["state"] = string(result.State)
		s.observeOperation(ctx, startedAt, "authenticate", err, fields)
	}()

	a.mu.Lock()
	defer a.mu.Unlock()

	session, err := s.loadSession(ctx, a.session.UserID, a.site)
	if err != nil {
		return AuthResult{}, s.mapError(err)
	}
	a.session = session

	if session.State == SessionStateAuthenticated {
		return a.result(), nil
	}

	if req.Callback != nil {
		session, err = a.exchange(ctx, *req.Callback)
		if err != nil {
			return a.result(), s.mapError(err)
		}
		a.session = session
		return a.result(), nil
	}

	session, err = a.begin(ctx, req)
	if err != nil {
		return a.result(), s.mapError(err)
	}
	a.session = session
	return a.result(), nil
}

// begin obtains (or reuses) a request token and records the authorization
// redirect. Concurrent calls for the same user and site share one flight.
func (a *Authenticator) begin(ctx context.Context, req AuthenticateRequest) (Session, error) {
	s := a.service
	key := tokenKey(a.session.UserID, a.site.ID) + "::begin"
	value, err, shared := s.requestTokens.Do(key, func() (any, error) {
		session, err := s.loadSession(ctx, a.session.UserID, a.site)
		if err != nil {
			return nil, err
		}
		if session.State == SessionStateAuthenticated {
			return session, nil
		}
		if len(req.Preserve) > 0 {
			session.Preserve = copyStringMap(req.Preserve)
		}
		if current := strings.TrimSpace(req.CurrentURL); current != "" {
			session.ReturnURL = current
		}
		callbackURL := a.callbackURL(req.CallbackURL)

		switch session.State {
		case SessionStateAuthorizationRedirected:
			if strings.TrimSpace(session.AuthorizeURL) != "" {
				s.logDebug(ctx, "reusing authorization redirect", a.fields())
				if err := s.saveSession(ctx, &session); err != nil {
					return nil, err
				}
				return session, nil
			}
		case SessionStateUnauthenticated:
			token, err := a.consumer.RequestToken(ctx, RequestTokenInput{
				URL:         a.site.RequestTokenURL,
				CallbackURL: callbackURL,
				ExtraParams: copyStringMap(req.ExtraParams),
			})
			if err != nil {
				return nil, asProtocolError(err, "core: request token exchange failed", a.site)
			}
			if token.IssuedAt.IsZero() {
				token.IssuedAt = s.now()
			}
			session.RequestToken = &token
			session.State = SessionStateRequestTokenPending
			if err := s.saveSession(ctx, &session); err != nil {
				return nil, err
			}
		}

		if session.RequestToken == nil {
			return nil, NewProtocolError("core: no pending request token", map[string]any{
				"site_name": a.site.Name,
			})
		}
		authorizeURL, err := a.consumer.AuthorizeURL(a.site.AuthorizeTokenURL, *session.RequestToken, callbackURL)
		if err != nil {
			return nil, asProtocolError(err, "core: build authorize url failed", a.site)
		}
		session.AuthorizeURL = authorizeURL
		session.State = SessionStateAuthorizationRedirected
		if err := s.saveSession(ctx, &session); err != nil {
			return nil, err
		}
		return session, nil
	})
	if err != nil {
		return Session{}, err
	}
	if shared {
		s.logDebug(ctx, "request token flight shared", a.fields())
	}
	return CloneSession(value.(Session)), nil
}

// exchange trades the pending request token for an access token once the
// provider has called back.
func (a *Authenticator) exchange(ctx context.Context, callback Callback) (Session, error) {
	s := a.service
	key := tokenKey(a.session.UserID, a.site.ID) + "::exchange"
	value, err, _ := s.requestTokens.Do(key, func() (any, error) {
		session, err := s.loadSession(ctx, a.session.UserID, a.site)
		if err != nil {
			return nil, err
		}
		if session.State == SessionStateAuthenticated {
			return session, nil
		}
		if session.RequestToken == nil {
			return nil, NewProtocolError("core: no pending request token", map[string]any{
				"site_name": a.site.Name,
			})
		}
		if strings.TrimSpace(callback.Token) != session.RequestToken.Token {
			return nil, NewProtocolError("core: callback token does not match the pending request token", map[string]any{
				"site_name": a.site.Name,
			})
		}

		token, err := a.consumer.AccessToken(ctx, AccessTokenInput{
			URL:          a.site.AccessTokenURL,
			RequestToken: *session.RequestToken,
			Verifier:     strings.TrimSpace(callback.Verifier),
		})
		if err != nil {
			resetFlow(&session)
			if saveErr := s.saveSession(ctx, &session); saveErr != nil {
				s.logError(ctx, "failed to reset oauth session", map[string]any{
					"site_name": a.site.Name,
					"error":     saveErr.Error(),
				})
			}
			return nil, asProtocolError(err, "core: access token exchange failed", a.site)
		}
		if token.IssuedAt.IsZero() {
			token.IssuedAt = s.now()
		}
		if err := s.tokens.Put(ctx, session.UserID, a.site.ID, token); err != nil {
			return nil, WrapPersistenceError(err, "core: store access token")
		}

		session.AccessToken = &token
		session.RequestToken = nil
		session.AuthorizeURL = ""
		session.State = SessionStateAuthenticated
		if err := s.saveSession(ctx, &session); err != nil {
			return nil, err
		}
		return session, nil
	})
	if err != nil {
		session, loadErr := s.loadSession(ctx, a.session.UserID, a.site)
		if loadErr == nil {
			a.session = session
		}
		return Session{}, err
	}
	return CloneSession(value.(Session)), nil
}

func (a *Authenticator) IsAuthorized() bool {
	if a == nil || a.service == nil {
		return false
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.session.State != SessionStateAuthenticated || a.session.AccessToken == nil {
		return false
	}
	return !a.session.AccessToken.Expired(a.service.now())
}

// Wipe forgets the access token and flow state of this handle.
func (a *Authenticator) Wipe(ctx context.Context) (err error) {
	if a == nil || a.service == nil {
		return fmt.Errorf("core: authenticator is not initialized")
	}
	s := a.service
	startedAt := time.Now()
	fields := a.fields()
	defer func() {
		s.observeOperation(ctx, startedAt, "wipe", err, fields)
	}()

	a.mu.Lock()
	defer a.mu.Unlock()
	if err := s.wipeSession(ctx, a.session.UserID, a.site); err != nil {
		return s.mapError(err)
	}
	a.session = Session{
		UserID:   a.session.UserID,
		SiteID:   a.site.ID,
		SiteName: a.site.Name,
		State:    SessionStateUnauthenticated,
	}
	return nil
}

// ReturnURL returns the URL recorded when the flow started. Preserved
// parameters are appended once and then cleared.
func (a *Authenticator) ReturnURL(ctx context.Context) (string, bool, error) {
	if a == nil || a.service == nil {
		return "", false, fmt.Errorf("core: authenticator is not initialized")
	}
	s := a.service
	a.mu.Lock()
	defer a.mu.Unlock()

	session, err := s.loadSession(ctx, a.session.UserID, a.site)
	if err != nil {
		return "", false, s.mapError(err)
	}
	a.session = session
	returnURL := strings.TrimSpace(session.ReturnURL)
	if returnURL == "" {
		return "", false, nil
	}
	if len(session.Preserve) == 0 {
		return returnURL, true, nil
	}

	values := url.Values{}
	for key, value := range session.Preserve {
		values.Set(key, value)
	}
	returnURL = appendQuery(returnURL, values.Encode())

	a.session.Preserve = nil
	if err := s.saveSession(ctx, &a.session); err != nil {
		return "", false, s.mapError(err)
	}
	return returnURL, true, nil
}

func (a *Authenticator) Get(ctx context.Context, rawURL string, params map[string]string) (Response, error) {
	return a.request(ctx, http.MethodGet, rawURL, params)
}

func (a *Authenticator) Post(ctx context.Context, rawURL string, params map[string]string) (Response, error) {
	return a.request(ctx, http.MethodPost, rawURL, params)
}

// GetCSV fetches rawURL and parses the body as CSV rows.
func (a *Authenticator) GetCSV(ctx context.Context, rawURL string, params map[string]string) ([][]string, error) {
	response, err := a.Get(ctx, rawURL, params)
	if err != nil {
		return nil, err
	}
	if response.Status != http.StatusOK {
		return nil, &RemoteRequestError{
			Status:  response.Status,
			Message: strings.TrimSpace(string(response.Body)),
		}
	}
	rows, err := parseCSV(response.Body)
	if err != nil {
		return nil, a.service.mapError(err)
	}
	return rows, nil
}

// GetCSVTable is GetCSV with the first row used as column names.
func (a *Authenticator) GetCSVTable(ctx context.Context, rawURL string, params map[string]string) ([]map[string]string, error) {
	rows, err := a.GetCSV(ctx, rawURL, params)
	if err != nil {
		return nil, err
	}
	table, err := csvTable(rows)
	if err != nil {
		return nil, a.service.mapError(err)
	}
	return table, nil
}

func (a *Authenticator) request(ctx context.Context, method string, rawURL string, params map[string]string) (response Response, err error) {
	if a == nil || a.service == nil {
		return Response{}, fmt.Errorf("core: authenticator is not initialized")
	}
	s := a.service
	startedAt := time.Now()
	fields := a.fields()
	fields["method"] = method
	defer func() {
		fields["http_status"] = response.Status
		s.observeOperation(ctx, startedAt, "signed_request", err, fields)
	}()

	a.mu.Lock()
	token := cloneAccessToken(a.session.AccessToken)
	authorized := a.session.State == SessionStateAuthenticated && token != nil && !token.Expired(s.now())
	a.mu.Unlock()
	if !authorized {
		return Response{}, s.mapError(NewProtocolError("core: not authorized", map[string]any{
			"site_name": a.site.Name,
		}))
	}

	if method == http.MethodPost {
		response, err = a.consumer.Post(ctx, rawURL, *token, copyStringMap(params))
	} else {
		response, err = a.consumer.Get(ctx, rawURL, *token, copyStringMap(params))
	}
	if err != nil {
		return Response{}, s.mapError(asProtocolError(err, "core: signed request failed", a.site))
	}
	return response, nil
}

func (a *Authenticator) callbackURL(override string) string {
	if override = strings.TrimSpace(override); override != "" {
		return override
	}
	base := strings.TrimSpace(a.service.config.OAuth.CallbackURL)
	if base == "" {
		return ""
	}
	return appendQuery(base, url.Values{"site": []string{a.site.Name}}.Encode())
}

func (a *Authenticator) result() AuthResult {
	if a.session.State == SessionStateAuthenticated {
		return AuthResult{Status: AuthStatusAuthenticated, State: a.session.State}
	}
	return AuthResult{
		Status:      AuthStatusSuspended,
		RedirectURL: a.session.AuthorizeURL,
		State:       a.session.State,
	}
}

func (a *Authenticator) fields() map[string]any {
	return map[string]any{
		"user_id":   a.session.UserID,
		"site_name": a.site.Name,
		"site_id":   a.site.ID,
	}
}

func asProtocolError(err error, message string, site Site) error {
	if err == nil {
		return nil
	}
	if IsProtocolError(err) || IsConfigurationError(err) || IsPersistenceError(err) {
		return err
	}
	return WrapProtocolError(err, message, map[string]any{"site_name": site.Name})
}

func appendQuery(rawURL string, query string) string {
	if query == "" {
		return rawURL
	}
	switch {
	case strings.HasSuffix(rawURL, "?"), strings.HasSuffix(rawURL, "&"):
		return rawURL + query
	case strings.Contains(rawURL, "?"):
		return rawURL + "&" + query
	default:
		return rawURL + "?" + query
	}
}
