package oauth1

import (
	"fmt"

	oauthcommand "github.com/goliatone/go-oauth1/command"
	oauthquery "github.com/goliatone/go-oauth1/query"
)

type CommandQueryService interface {
	oauthcommand.MutatingService
	oauthquery.SiteReader
	oauthquery.SessionReader
}

type Commands struct {
	Authenticate *oauthcommand.AuthenticateCommand
	Wipe         *oauthcommand.WipeCommand
	AddSite      *oauthcommand.AddSiteCommand
	UpdateSite   *oauthcommand.UpdateSiteCommand
	DeleteSite   *oauthcommand.DeleteSiteCommand
	SeedSites    *oauthcommand.SeedSitesCommand
}

type Queries struct {
	GetSite      *oauthquery.GetSiteQuery
	SearchSites  *oauthquery.SearchSitesQuery
	IsAuthorized *oauthquery.IsAuthorizedQuery
	ReturnURL    *oauthquery.ReturnURLQuery
}

type Facade struct {
	service  CommandQueryService
	commands Commands
	queries  Queries
}

func NewFacade(service CommandQueryService) (*Facade, error) {
	if service == nil {
		return nil, fmt.Errorf("oauth1: command/query service is required")
	}
	return &Facade{
		service: service,
		commands: Commands{
			Authenticate: oauthcommand.NewAuthenticateCommand(service),
			Wipe:         oauthcommand.NewWipeCommand(service),
			AddSite:      oauthcommand.NewAddSiteCommand(service),
			UpdateSite:   oauthcommand.NewUpdateSiteCommand(service),
			DeleteSite:   oauthcommand.NewDeleteSiteCommand(service),
			SeedSites:    oauthcommand.NewSeedSitesCommand(service),
		},
		queries: Queries{
			GetSite:      oauthquery.NewGetSiteQuery(service),
			SearchSites:  oauthquery.NewSearchSitesQuery(service),
			IsAuthorized: oauthquery.NewIsAuthorizedQuery(service),
			ReturnURL:    oauthquery.NewReturnURLQuery(service),
		},
	}, nil
}

func (f *Facade) Commands() Commands {
	if f == nil {
		return Commands{}
	}
	return f.commands
}

func (f *Facade) Queries() Queries {
	if f == nil {
		return Queries{}
	}
	return f.queries
}

func (f *Facade) Service() CommandQueryService {
	if f == nil {
		return nil
	}
	return f.service
}
