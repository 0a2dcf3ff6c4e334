package sqlstore

import "github.com/goliatone/go-oauth1/core"

var (
	_ core.SiteDirectory = (*SiteDirectory)(nil)
	_ core.TokenStore    = (*TokenStore)(nil)
)
