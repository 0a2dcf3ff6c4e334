package command

import gocmd "github.com/goliatone/go-command"

var (
	_ gocmd.Commander[AuthenticateMessage] = (*AuthenticateCommand)(nil)
	_ gocmd.Commander[WipeMessage]         = (*WipeCommand)(nil)
	_ gocmd.Commander[AddSiteMessage]      = (*AddSiteCommand)(nil)
	_ gocmd.Commander[UpdateSiteMessage]   = (*UpdateSiteCommand)(nil)
	_ gocmd.Commander[DeleteSiteMessage]   = (*DeleteSiteCommand)(nil)
	_ gocmd.Commander[SeedSitesMessage]    = (*SeedSitesCommand)(nil)
)
