package query

import (
	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-oauth1/core"
)

var (
	_ gocmd.Querier[GetSiteMessage, core.Site]         = (*GetSiteQuery)(nil)
	_ gocmd.Querier[SearchSitesMessage, []core.Site]   = (*SearchSitesQuery)(nil)
	_ gocmd.Querier[IsAuthorizedMessage, bool]         = (*IsAuthorizedQuery)(nil)
	_ gocmd.Querier[ReturnURLMessage, ReturnURLResult] = (*ReturnURLQuery)(nil)
)
