package command

import (
	"context"
	"fmt"
	"testing"

	gocmd "github.com/goliatone/go-command"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-oauth1/core"
)

func TestAuthenticateCommand_ExecuteDelegatesAndStoresResult(t *testing.T) {
	expected := core.AuthResult{Status: core.AuthStatusSuspended, RedirectURL: "https://docs.example.com/authorize?oauth_token=req-1"}
	called := false

	svc := stubMutatingService{
		authenticateFn: func(_ context.Context, userID string, siteName string, req core.AuthenticateRequest) (core.AuthResult, error) {
			called = true
			if userID != "u1" || siteName != "docs.example.com" {
				t.Fatalf("unexpected authenticate target: %q %q", userID, siteName)
			}
			if req.CurrentURL != "https://app.example.com/report" {
				t.Fatalf("unexpected current url %q", req.CurrentURL)
			}
			return expected, nil
		},
	}

	cmd := NewAuthenticateCommand(svc)
	collector := gocmd.NewResult[core.AuthResult]()
	ctx := gocmd.ContextWithResult(context.Background(), collector)

	err := cmd.Execute(ctx, AuthenticateMessage{
		UserID:   "u1",
		SiteName: "docs.example.com",
		Request:  core.AuthenticateRequest{CurrentURL: "https://app.example.com/report"},
	})
	if err != nil {
		t.Fatalf("execute authenticate: %v", err)
	}
	if !called {
		t.Fatalf("expected authenticate service invocation")
	}
	result, ok := collector.Load()
	if !ok {
		t.Fatalf("expected result to be stored")
	}
	if !result.Suspended() || result.RedirectURL != expected.RedirectURL {
		t.Fatalf("unexpected result: %#v", result)
	}
}

func TestMutationCommands_DelegateToService(t *testing.T) {
	t.Run("wipe", func(t *testing.T) {
		called := false
		svc := stubMutatingService{
			wipeFn: func(_ context.Context, userID string, siteName string) error {
				called = true
				if userID != "u1" || siteName != "docs.example.com" {
					t.Fatalf("unexpected wipe payload: %q %q", userID, siteName)
				}
				return nil
			},
		}
		if err := NewWipeCommand(svc).Execute(context.Background(), WipeMessage{UserID: "u1", SiteName: "docs.example.com"}); err != nil {
			t.Fatalf("execute wipe: %v", err)
		}
		if !called {
			t.Fatalf("expected wipe invocation")
		}
	})

	t.Run("add site", func(t *testing.T) {
		svc := stubMutatingService{
			addSiteFn: func(_ context.Context, site core.Site) (core.Site, error) {
				site.ID = "site_1"
				return site, nil
			},
		}
		collector := gocmd.NewResult[core.Site]()
		ctx := gocmd.ContextWithResult(context.Background(), collector)
		if err := NewAddSiteCommand(svc).Execute(ctx, AddSiteMessage{Site: validSite()}); err != nil {
			t.Fatalf("execute add site: %v", err)
		}
		result, ok := collector.Load()
		if !ok || result.ID != "site_1" {
			t.Fatalf("unexpected stored site: %#v ok=%v", result, ok)
		}
	})

	t.Run("update site", func(t *testing.T) {
		called := false
		svc := stubMutatingService{
			updateSiteFn: func(_ context.Context, site core.Site) (core.Site, error) {
				called = true
				if site.ID != "site_1" || site.Enabled {
					t.Fatalf("unexpected update payload: %#v", site)
				}
				return site, nil
			},
		}
		site := validSite()
		site.ID = "site_1"
		if err := NewUpdateSiteCommand(svc).Execute(context.Background(), UpdateSiteMessage{Site: site}); err != nil {
			t.Fatalf("execute update site: %v", err)
		}
		if !called {
			t.Fatalf("expected update invocation")
		}
	})

	t.Run("delete site", func(t *testing.T) {
		var deleted string
		svc := stubMutatingService{
			deleteSiteFn: func(_ context.Context, id string) error {
				deleted = id
				return nil
			},
		}
		if err := NewDeleteSiteCommand(svc).Execute(context.Background(), DeleteSiteMessage{SiteID: "site_1"}); err != nil {
			t.Fatalf("execute delete site: %v", err)
		}
		if deleted != "site_1" {
			t.Fatalf("expected delete for site_1, got %q", deleted)
		}
	})

	t.Run("seed sites", func(t *testing.T) {
		svc := stubMutatingService{
			seedFn: func(context.Context) ([]core.Site, error) {
				return core.DefaultSites(), nil
			},
		}
		collector := gocmd.NewResult[[]core.Site]()
		ctx := gocmd.ContextWithResult(context.Background(), collector)
		if err := NewSeedSitesCommand(svc).Execute(ctx, SeedSitesMessage{}); err != nil {
			t.Fatalf("execute seed: %v", err)
		}
		result, ok := collector.Load()
		if !ok || len(result) != len(core.DefaultSites()) {
			t.Fatalf("unexpected seeded sites: %#v ok=%v", result, ok)
		}
	})
}

func TestAuthenticateCommand_PropagatesServiceError(t *testing.T) {
	expected := fmt.Errorf("boom")
	svc := stubMutatingService{
		authenticateFn: func(context.Context, string, string, core.AuthenticateRequest) (core.AuthResult, error) {
			return core.AuthResult{}, expected
		},
	}
	collector := gocmd.NewResult[core.AuthResult]()
	ctx := gocmd.ContextWithResult(context.Background(), collector)
	err := NewAuthenticateCommand(svc).Execute(ctx, AuthenticateMessage{UserID: "u1", SiteName: "docs.example.com"})
	if err != expected {
		t.Fatalf("expected service error, got %v", err)
	}
	if _, ok := collector.Load(); ok {
		t.Fatalf("expected no result to be stored on failure")
	}
}

func TestMessages_ValidateReturnsRichError(t *testing.T) {
	noID := validSite()
	invalid := validSite()
	invalid.AccessTokenURL = "not a url"

	cases := map[string]interface{ Validate() error }{
		"authenticate missing user": AuthenticateMessage{SiteName: "docs.example.com"},
		"authenticate missing site": AuthenticateMessage{UserID: "u1"},
		"authenticate empty token":  AuthenticateMessage{UserID: "u1", SiteName: "s", Request: core.AuthenticateRequest{Callback: &core.Callback{}}},
		"wipe missing site":         WipeMessage{UserID: "u1"},
		"add site invalid endpoint": AddSiteMessage{Site: invalid},
		"update site missing id":    UpdateSiteMessage{Site: noID},
		"delete site missing id":    DeleteSiteMessage{},
	}
	for name, msg := range cases {
		t.Run(name, func(t *testing.T) {
			err := msg.Validate()
			if err == nil {
				t.Fatalf("expected validation error")
			}
			var rich *goerrors.Error
			if !goerrors.As(err, &rich) {
				t.Fatalf("expected go-errors envelope, got %T", err)
			}
			if rich.TextCode != core.ErrorBadInput {
				t.Fatalf("expected %q text code, got %q", core.ErrorBadInput, rich.TextCode)
			}
		})
	}

	if err := (AddSiteMessage{Site: validSite()}).Validate(); err != nil {
		t.Fatalf("expected valid site message, got %v", err)
	}
	if err := (SeedSitesMessage{}).Validate(); err != nil {
		t.Fatalf("expected seed message to validate, got %v", err)
	}
}

func TestCommands_NilServiceReturnsRichError(t *testing.T) {
	var cmd *AuthenticateCommand
	err := cmd.Execute(context.Background(), AuthenticateMessage{})
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors envelope, got %T", err)
	}
	if rich.Category != goerrors.CategoryInternal || rich.TextCode != core.ErrorInternal {
		t.Fatalf("unexpected dependency error: %#v", rich)
	}

	if err := NewSeedSitesCommand(nil).Execute(context.Background(), SeedSitesMessage{}); err == nil {
		t.Fatalf("expected dependency error for nil service")
	}
}

func validSite() core.Site {
	return core.Site{
		Name:              "docs.example.com",
		RequestTokenURL:   "https://docs.example.com/oauth/request_token",
		AuthorizeTokenURL: "https://docs.example.com/oauth/authorize",
		AccessTokenURL:    "https://docs.example.com/oauth/access_token",
		ConsumerKey:       "key",
		ConsumerSecret:    "secret",
	}
}

type stubMutatingService struct {
	authenticateFn func(ctx context.Context, userID string, siteName string, req core.AuthenticateRequest) (core.AuthResult, error)
	wipeFn         func(ctx context.Context, userID string, siteName string) error
	addSiteFn      func(ctx context.Context, site core.Site) (core.Site, error)
	updateSiteFn   func(ctx context.Context, site core.Site) (core.Site, error)
	deleteSiteFn   func(ctx context.Context, id string) error
	seedFn         func(ctx context.Context) ([]core.Site, error)
}

func (s stubMutatingService) Authenticate(ctx context.Context, userID string, siteName string, req core.AuthenticateRequest) (core.AuthResult, error) {
	if s.authenticateFn == nil {
		return core.AuthResult{}, nil
	}
	return s.authenticateFn(ctx, userID, siteName, req)
}

func (s stubMutatingService) Wipe(ctx context.Context, userID string, siteName string) error {
	if s.wipeFn == nil {
		return nil
	}
	return s.wipeFn(ctx, userID, siteName)
}

func (s stubMutatingService) AddSite(ctx context.Context, site core.Site) (core.Site, error) {
	if s.addSiteFn == nil {
		return site, nil
	}
	return s.addSiteFn(ctx, site)
}

func (s stubMutatingService) UpdateSite(ctx context.Context, site core.Site) (core.Site, error) {
	if s.updateSiteFn == nil {
		return site, nil
	}
	return s.updateSiteFn(ctx, site)
}

func (s stubMutatingService) DeleteSite(ctx context.Context, id string) error {
	if s.deleteSiteFn == nil {
		return nil
	}
	return s.deleteSiteFn(ctx, id)
}

func (s stubMutatingService) SeedDefaultSites(ctx context.Context) ([]core.Site, error) {
	if s.seedFn == nil {
		return nil, nil
	}
	return s.seedFn(ctx)
}
