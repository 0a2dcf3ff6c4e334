package query

import (
	"context"
	"fmt"
	"testing"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-oauth1/core"
)

func TestGetSiteQuery_RoutesByLookupField(t *testing.T) {
	var calls []string
	reader := stubSiteReader{
		getFn: func(_ context.Context, id string) (core.Site, error) {
			calls = append(calls, "id:"+id)
			return core.Site{ID: id}, nil
		},
		byNameFn: func(_ context.Context, name string) (core.Site, error) {
			calls = append(calls, "name:"+name)
			return core.Site{Name: name}, nil
		},
		byKeyFn: func(_ context.Context, key string) (core.Site, error) {
			calls = append(calls, "key:"+key)
			return core.Site{ConsumerKey: key}, nil
		},
	}

	qry := NewGetSiteQuery(reader)
	ctx := context.Background()
	if _, err := qry.Query(ctx, GetSiteMessage{ID: "site_1"}); err != nil {
		t.Fatalf("query by id: %v", err)
	}
	if _, err := qry.Query(ctx, GetSiteMessage{Name: "docs.example.com"}); err != nil {
		t.Fatalf("query by name: %v", err)
	}
	site, err := qry.Query(ctx, GetSiteMessage{ConsumerKey: "key"})
	if err != nil {
		t.Fatalf("query by key: %v", err)
	}
	if site.ConsumerKey != "key" {
		t.Fatalf("unexpected site: %#v", site)
	}
	expected := []string{"id:site_1", "name:docs.example.com", "key:key"}
	if fmt.Sprint(calls) != fmt.Sprint(expected) {
		t.Fatalf("unexpected reader calls: %v", calls)
	}
}

func TestSearchSitesQuery_QueryDelegates(t *testing.T) {
	reader := stubSiteReader{
		searchFn: func(_ context.Context, substring string) ([]core.Site, error) {
			if substring != "docs" {
				t.Fatalf("unexpected substring %q", substring)
			}
			return []core.Site{{Name: "docs.example.com"}}, nil
		},
	}
	sites, err := NewSearchSitesQuery(reader).Query(context.Background(), SearchSitesMessage{Substring: "docs"})
	if err != nil {
		t.Fatalf("search sites: %v", err)
	}
	if len(sites) != 1 || sites[0].Name != "docs.example.com" {
		t.Fatalf("unexpected sites: %#v", sites)
	}
}

func TestSessionQueries_QueryDelegates(t *testing.T) {
	reader := stubSessionReader{
		authorizedFn: func(_ context.Context, userID string, siteName string) (bool, error) {
			return userID == "u1" && siteName == "docs.example.com", nil
		},
		returnURLFn: func(_ context.Context, userID string, _ string) (string, bool, error) {
			if userID != "u1" {
				return "", false, nil
			}
			return "https://app.example.com/report?id=7", true, nil
		},
	}

	authorized, err := NewIsAuthorizedQuery(reader).Query(context.Background(), IsAuthorizedMessage{UserID: "u1", SiteName: "docs.example.com"})
	if err != nil || !authorized {
		t.Fatalf("expected authorized, got %v err=%v", authorized, err)
	}

	result, err := NewReturnURLQuery(reader).Query(context.Background(), ReturnURLMessage{UserID: "u1", SiteName: "docs.example.com"})
	if err != nil {
		t.Fatalf("return url: %v", err)
	}
	if !result.Found || result.URL != "https://app.example.com/report?id=7" {
		t.Fatalf("unexpected return url result: %#v", result)
	}

	result, err = NewReturnURLQuery(reader).Query(context.Background(), ReturnURLMessage{UserID: "u2", SiteName: "docs.example.com"})
	if err != nil || result.Found {
		t.Fatalf("expected no return url, got %#v err=%v", result, err)
	}
}

func TestReturnURLQuery_PropagatesReaderError(t *testing.T) {
	expected := fmt.Errorf("store down")
	reader := stubSessionReader{
		returnURLFn: func(context.Context, string, string) (string, bool, error) {
			return "", false, expected
		},
	}
	_, err := NewReturnURLQuery(reader).Query(context.Background(), ReturnURLMessage{UserID: "u1", SiteName: "s"})
	if err != expected {
		t.Fatalf("expected reader error, got %v", err)
	}
}

func TestMessages_Validate(t *testing.T) {
	cases := map[string]interface{ Validate() error }{
		"get site without field":   GetSiteMessage{},
		"get site with two fields": GetSiteMessage{ID: "site_1", Name: "docs.example.com"},
		"authorized missing user":  IsAuthorizedMessage{SiteName: "docs.example.com"},
		"return url missing site":  ReturnURLMessage{UserID: "u1"},
	}
	for name, msg := range cases {
		t.Run(name, func(t *testing.T) {
			var rich *goerrors.Error
			if !goerrors.As(msg.Validate(), &rich) {
				t.Fatalf("expected go-errors envelope")
			}
			if rich.TextCode != core.ErrorBadInput {
				t.Fatalf("expected %q text code, got %q", core.ErrorBadInput, rich.TextCode)
			}
		})
	}
	if err := (GetSiteMessage{ConsumerKey: "key"}).Validate(); err != nil {
		t.Fatalf("expected valid get site message, got %v", err)
	}
}

func TestQueries_NilReaderReturnsRichError(t *testing.T) {
	var qry *GetSiteQuery
	_, err := qry.Query(context.Background(), GetSiteMessage{ID: "site_1"})
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) || rich.Category != goerrors.CategoryInternal {
		t.Fatalf("expected internal dependency error, got %v", err)
	}
	if _, err := NewIsAuthorizedQuery(nil).Query(context.Background(), IsAuthorizedMessage{}); err == nil {
		t.Fatalf("expected dependency error for nil reader")
	}
}

type stubSiteReader struct {
	getFn    func(ctx context.Context, id string) (core.Site, error)
	byNameFn func(ctx context.Context, name string) (core.Site, error)
	byKeyFn  func(ctx context.Context, key string) (core.Site, error)
	searchFn func(ctx context.Context, substring string) ([]core.Site, error)
}

func (s stubSiteReader) GetSite(ctx context.Context, id string) (core.Site, error) {
	if s.getFn == nil {
		return core.Site{}, nil
	}
	return s.getFn(ctx, id)
}

func (s stubSiteReader) GetSiteByName(ctx context.Context, name string) (core.Site, error) {
	if s.byNameFn == nil {
		return core.Site{}, nil
	}
	return s.byNameFn(ctx, name)
}

func (s stubSiteReader) GetSiteByKey(ctx context.Context, key string) (core.Site, error) {
	if s.byKeyFn == nil {
		return core.Site{}, nil
	}
	return s.byKeyFn(ctx, key)
}

func (s stubSiteReader) SearchSites(ctx context.Context, substring string) ([]core.Site, error) {
	if s.searchFn == nil {
		return nil, nil
	}
	return s.searchFn(ctx, substring)
}

type stubSessionReader struct {
	authorizedFn func(ctx context.Context, userID string, siteName string) (bool, error)
	returnURLFn  func(ctx context.Context, userID string, siteName string) (string, bool, error)
}

func (s stubSessionReader) IsAuthorized(ctx context.Context, userID string, siteName string) (bool, error) {
	if s.authorizedFn == nil {
		return false, nil
	}
	return s.authorizedFn(ctx, userID, siteName)
}

func (s stubSessionReader) ReturnURL(ctx context.Context, userID string, siteName string) (string, bool, error) {
	if s.returnURLFn == nil {
		return "", false, nil
	}
	return s.returnURLFn(ctx, userID, siteName)
}
