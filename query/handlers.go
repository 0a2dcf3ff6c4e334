package query

import (
	"context"
	"strings"

	"github.com/goliatone/go-oauth1/core"
)

type SiteReader interface {
	GetSite(ctx context.Context, id string) (core.Site, error)
	GetSiteByName(ctx context.Context, name string) (core.Site, error)
	GetSiteByKey(ctx context.Context, consumerKey string) (core.Site, error)
	SearchSites(ctx context.Context, substring string) ([]core.Site, error)
}

type SessionReader interface {
	IsAuthorized(ctx context.Context, userID string, siteName string) (bool, error)
	ReturnURL(ctx context.Context, userID string, siteName string) (string, bool, error)
}

type GetSiteQuery struct {
	reader SiteReader
}

func NewGetSiteQuery(reader SiteReader) *GetSiteQuery {
	return &GetSiteQuery{reader: reader}
}

func (q *GetSiteQuery) Query(ctx context.Context, msg GetSiteMessage) (core.Site, error) {
	if q == nil || q.reader == nil {
		return core.Site{}, queryDependencyError("query: site reader is required")
	}
	switch {
	case strings.TrimSpace(msg.ID) != "":
		return q.reader.GetSite(ctx, msg.ID)
	case strings.TrimSpace(msg.Name) != "":
		return q.reader.GetSiteByName(ctx, msg.Name)
	default:
		return q.reader.GetSiteByKey(ctx, msg.ConsumerKey)
	}
}

type SearchSitesQuery struct {
	reader SiteReader
}

func NewSearchSitesQuery(reader SiteReader) *SearchSitesQuery {
	return &SearchSitesQuery{reader: reader}
}

func (q *SearchSitesQuery) Query(ctx context.Context, msg SearchSitesMessage) ([]core.Site, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: site reader is required")
	}
	return q.reader.SearchSites(ctx, msg.Substring)
}

type IsAuthorizedQuery struct {
	reader SessionReader
}

func NewIsAuthorizedQuery(reader SessionReader) *IsAuthorizedQuery {
	return &IsAuthorizedQuery{reader: reader}
}

func (q *IsAuthorizedQuery) Query(ctx context.Context, msg IsAuthorizedMessage) (bool, error) {
	if q == nil || q.reader == nil {
		return false, queryDependencyError("query: session reader is required")
	}
	return q.reader.IsAuthorized(ctx, msg.UserID, msg.SiteName)
}

// ReturnURLQuery consumes the preserved parameters of the session, so two
// consecutive calls can return different URLs.
type ReturnURLQuery struct {
	reader SessionReader
}

func NewReturnURLQuery(reader SessionReader) *ReturnURLQuery {
	return &ReturnURLQuery{reader: reader}
}

func (q *ReturnURLQuery) Query(ctx context.Context, msg ReturnURLMessage) (ReturnURLResult, error) {
	if q == nil || q.reader == nil {
		return ReturnURLResult{}, queryDependencyError("query: session reader is required")
	}
	url, found, err := q.reader.ReturnURL(ctx, msg.UserID, msg.SiteName)
	if err != nil {
		return ReturnURLResult{}, err
	}
	return ReturnURLResult{URL: url, Found: found}, nil
}
