package command

import (
	"strings"

	"github.com/goliatone/go-oauth1/core"
)

const (
	TypeAuthenticate = "oauth1.command.authenticate"
	TypeWipe         = "oauth1.command.wipe"
	TypeAddSite      = "oauth1.command.site.add"
	TypeUpdateSite   = "oauth1.command.site.update"
	TypeDeleteSite   = "oauth1.command.site.delete"
	TypeSeedSites    = "oauth1.command.site.seed"
)

type AuthenticateMessage struct {
	UserID   string
	SiteName string
	Request  core.AuthenticateRequest
}

func (AuthenticateMessage) Type() string { return TypeAuthenticate }

func (m AuthenticateMessage) Validate() error {
	if strings.TrimSpace(m.UserID) == "" {
		return commandValidationError("user_id", "user id is required")
	}
	if strings.TrimSpace(m.SiteName) == "" {
		return commandValidationError("site_name", "site name is required")
	}
	if m.Request.Callback != nil && strings.TrimSpace(m.Request.Callback.Token) == "" {
		return commandValidationError("callback.token", "callback token is required")
	}
	return nil
}

type WipeMessage struct {
	UserID   string
	SiteName string
}

func (WipeMessage) Type() string { return TypeWipe }

func (m WipeMessage) Validate() error {
	if strings.TrimSpace(m.UserID) == "" {
		return commandValidationError("user_id", "user id is required")
	}
	if strings.TrimSpace(m.SiteName) == "" {
		return commandValidationError("site_name", "site name is required")
	}
	return nil
}

type AddSiteMessage struct {
	Site core.Site
}

func (AddSiteMessage) Type() string { return TypeAddSite }

func (m AddSiteMessage) Validate() error {
	return commandWrapValidation(m.Site.Validate(), "command: invalid site")
}

type UpdateSiteMessage struct {
	Site core.Site
}

func (UpdateSiteMessage) Type() string { return TypeUpdateSite }

func (m UpdateSiteMessage) Validate() error {
	if strings.TrimSpace(m.Site.ID) == "" {
		return commandValidationError("id", "site id is required")
	}
	return commandWrapValidation(m.Site.Validate(), "command: invalid site")
}

type DeleteSiteMessage struct {
	SiteID string
}

func (DeleteSiteMessage) Type() string { return TypeDeleteSite }

func (m DeleteSiteMessage) Validate() error {
	if strings.TrimSpace(m.SiteID) == "" {
		return commandValidationError("id", "site id is required")
	}
	return nil
}

type SeedSitesMessage struct{}

func (SeedSitesMessage) Type() string { return TypeSeedSites }

func (SeedSitesMessage) Validate() error { return nil }
