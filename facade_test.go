package oauth1

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	gocmd "github.com/goliatone/go-command"
	oauthcommand "github.com/goliatone/go-oauth1/command"
	"github.com/goliatone/go-oauth1/core"
	oauthquery "github.com/goliatone/go-oauth1/query"
)

func TestNewFacade_RequiresService(t *testing.T) {
	if _, err := NewFacade(nil); err == nil {
		t.Fatalf("expected nil service to be rejected")
	}
	var facade *Facade
	if facade.Service() != nil || facade.Commands().Authenticate != nil || facade.Queries().GetSite != nil {
		t.Fatalf("expected nil facade accessors to return zero values")
	}
}

func TestNewFacade_WiresCommandsAndQueries(t *testing.T) {
	svc := newProviderService(t)
	facade, err := NewFacade(svc)
	if err != nil {
		t.Fatalf("new facade: %v", err)
	}
	commands := facade.Commands()
	if commands.Authenticate == nil || commands.Wipe == nil || commands.AddSite == nil ||
		commands.UpdateSite == nil || commands.DeleteSite == nil || commands.SeedSites == nil {
		t.Fatalf("expected command handlers to be wired: %#v", commands)
	}
	queries := facade.Queries()
	if queries.GetSite == nil || queries.SearchSites == nil || queries.IsAuthorized == nil || queries.ReturnURL == nil {
		t.Fatalf("expected query handlers to be wired: %#v", queries)
	}
	if facade.Service() != svc {
		t.Fatalf("expected facade to expose its service")
	}
}

func TestFacade_ThreeLeggedFlowAgainstProvider(t *testing.T) {
	provider := newFakeProvider(t)
	svc := newProviderService(t)
	facade, err := NewFacade(svc)
	if err != nil {
		t.Fatalf("new facade: %v", err)
	}
	ctx := context.Background()

	siteResult := gocmd.NewResult[core.Site]()
	if err := facade.Commands().AddSite.Execute(gocmd.ContextWithResult(ctx, siteResult), oauthcommand.AddSiteMessage{
		Site: core.Site{
			Name:              "docs.example.com",
			RequestTokenURL:   provider.URL + "/request_token",
			AuthorizeTokenURL: provider.URL + "/authorize",
			AccessTokenURL:    provider.URL + "/access_token",
			ConsumerKey:       "consumer-key",
			ConsumerSecret:    "consumer-secret",
			Enabled:           true,
		},
	}); err != nil {
		t.Fatalf("add site: %v", err)
	}
	added, ok := siteResult.Load()
	if !ok || added.ID == "" {
		t.Fatalf("expected stored site with id, got %#v ok=%v", added, ok)
	}

	site, err := facade.Queries().GetSite.Query(ctx, oauthquery.GetSiteMessage{ConsumerKey: "consumer-key"})
	if err != nil || site.ID != added.ID {
		t.Fatalf("get site by key: %#v err=%v", site, err)
	}

	begin := gocmd.NewResult[core.AuthResult]()
	if err := facade.Commands().Authenticate.Execute(gocmd.ContextWithResult(ctx, begin), oauthcommand.AuthenticateMessage{
		UserID:   "u1",
		SiteName: "docs.example.com",
		Request: core.AuthenticateRequest{
			CurrentURL: "https://app.example.com/report",
			Preserve:   map[string]string{"id": "7"},
		},
	}); err != nil {
		t.Fatalf("begin authenticate: %v", err)
	}
	suspended, _ := begin.Load()
	if !suspended.Suspended() {
		t.Fatalf("expected suspended result, got %#v", suspended)
	}
	redirect, err := url.Parse(suspended.RedirectURL)
	if err != nil || redirect.Query().Get("oauth_token") != "req-token" {
		t.Fatalf("unexpected redirect %q", suspended.RedirectURL)
	}

	authorized, err := facade.Queries().IsAuthorized.Query(ctx, oauthquery.IsAuthorizedMessage{UserID: "u1", SiteName: "docs.example.com"})
	if err != nil || authorized {
		t.Fatalf("expected not yet authorized, got %v err=%v", authorized, err)
	}

	callback := CallbackFromQuery(url.Values{"oauth_token": {"req-token"}, "oauth_verifier": {"verifier-1"}})
	done := gocmd.NewResult[core.AuthResult]()
	if err := facade.Commands().Authenticate.Execute(gocmd.ContextWithResult(ctx, done), oauthcommand.AuthenticateMessage{
		UserID:   "u1",
		SiteName: "docs.example.com",
		Request:  core.AuthenticateRequest{Callback: callback},
	}); err != nil {
		t.Fatalf("complete authenticate: %v", err)
	}
	final, _ := done.Load()
	if final.Suspended() || final.State != core.SessionStateAuthenticated {
		t.Fatalf("expected authenticated result, got %#v", final)
	}

	authorized, err = facade.Queries().IsAuthorized.Query(ctx, oauthquery.IsAuthorizedMessage{UserID: "u1", SiteName: "docs.example.com"})
	if err != nil || !authorized {
		t.Fatalf("expected authorized, got %v err=%v", authorized, err)
	}

	ret, err := facade.Queries().ReturnURL.Query(ctx, oauthquery.ReturnURLMessage{UserID: "u1", SiteName: "docs.example.com"})
	if err != nil || !ret.Found {
		t.Fatalf("return url: %#v err=%v", ret, err)
	}
	if !strings.HasPrefix(ret.URL, "https://app.example.com/report?") || !strings.Contains(ret.URL, "id=7") {
		t.Fatalf("unexpected return url %q", ret.URL)
	}

	auth, err := svc.Authenticator(ctx, "u1", "docs.example.com")
	if err != nil {
		t.Fatalf("authenticator: %v", err)
	}
	res, err := auth.Get(ctx, provider.URL+"/api/me", map[string]string{"fields": "name"})
	if err != nil || !res.OK() || string(res.Body) != "hello u1" {
		t.Fatalf("signed get: %#v err=%v", res, err)
	}

	if err := facade.Commands().Wipe.Execute(ctx, oauthcommand.WipeMessage{UserID: "u1", SiteName: "docs.example.com"}); err != nil {
		t.Fatalf("wipe: %v", err)
	}
	authorized, err = facade.Queries().IsAuthorized.Query(ctx, oauthquery.IsAuthorizedMessage{UserID: "u1", SiteName: "docs.example.com"})
	if err != nil || authorized {
		t.Fatalf("expected wipe to drop authorization, got %v err=%v", authorized, err)
	}
}

func TestFacade_SeedAndSearchSites(t *testing.T) {
	svc := newProviderService(t)
	facade, err := NewFacade(svc)
	if err != nil {
		t.Fatalf("new facade: %v", err)
	}
	ctx := context.Background()

	seeded := gocmd.NewResult[[]core.Site]()
	if err := facade.Commands().SeedSites.Execute(gocmd.ContextWithResult(ctx, seeded), oauthcommand.SeedSitesMessage{}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	sites, _ := seeded.Load()
	if len(sites) != len(core.DefaultSites()) {
		t.Fatalf("expected %d seeded sites, got %d", len(core.DefaultSites()), len(sites))
	}

	found, err := facade.Queries().SearchSites.Query(ctx, oauthquery.SearchSitesMessage{Substring: "GOOGLE"})
	if err != nil || len(found) != 2 {
		t.Fatalf("expected both google sites, got %#v err=%v", found, err)
	}

	// Seeded sites are disabled until an operator supplies credentials.
	err = facade.Commands().Authenticate.Execute(ctx, oauthcommand.AuthenticateMessage{UserID: "u1", SiteName: "google.com"})
	if err == nil {
		t.Fatalf("expected disabled seeded site to be rejected")
	}

	if err := facade.Commands().DeleteSite.Execute(ctx, oauthcommand.DeleteSiteMessage{SiteID: found[0].ID}); err != nil {
		t.Fatalf("delete site: %v", err)
	}
	if _, err := facade.Queries().GetSite.Query(ctx, oauthquery.GetSiteMessage{ID: found[0].ID}); err == nil {
		t.Fatalf("expected deleted site lookup to fail")
	}
}

func newProviderService(t *testing.T) *Service {
	t.Helper()
	cfg := DefaultConfig()
	cfg.OAuth.CallbackURL = "https://app.example.com/oauth/callback"
	svc, err := NewService(cfg,
		WithSiteDirectory(core.NewMemorySiteDirectory()),
		WithTokenStore(core.NewMemoryTokenStore()),
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

// newFakeProvider serves the three token endpoints and one protected
// resource. It checks that every request carries an OAuth signature.
func newFakeProvider(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	requireSigned := func(r *http.Request, token string) bool {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "OAuth ") || !strings.Contains(header, `oauth_signature=`) {
			t.Errorf("missing oauth authorization header on %s", r.URL.Path)
			return false
		}
		if !strings.Contains(header, `oauth_consumer_key="consumer-key"`) {
			t.Errorf("unexpected consumer key header %q", header)
			return false
		}
		if token != "" && !strings.Contains(header, `oauth_token="`+token+`"`) {
			t.Errorf("expected token %q in header %q", token, header)
			return false
		}
		return true
	}
	mux.HandleFunc("/request_token", func(w http.ResponseWriter, r *http.Request) {
		if !requireSigned(r, "") {
			http.Error(w, "unsigned", http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte("oauth_token=req-token&oauth_token_secret=req-secret&oauth_callback_confirmed=true"))
	})
	mux.HandleFunc("/access_token", func(w http.ResponseWriter, r *http.Request) {
		if !requireSigned(r, "req-token") {
			http.Error(w, "unsigned", http.StatusUnauthorized)
			return
		}
		if !strings.Contains(r.Header.Get("Authorization"), `oauth_verifier="verifier-1"`) {
			http.Error(w, "bad verifier", http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte("oauth_token=acc-token&oauth_token_secret=acc-secret&user_id=u1"))
	})
	mux.HandleFunc("/api/me", func(w http.ResponseWriter, r *http.Request) {
		if !requireSigned(r, "acc-token") {
			http.Error(w, "unsigned", http.StatusUnauthorized)
			return
		}
		if r.URL.Query().Get("fields") != "name" {
			http.Error(w, "missing fields", http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte("hello u1"))
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}
