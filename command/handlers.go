package command

import (
	"context"

	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-oauth1/core"
)

type MutatingService interface {
	Authenticate(ctx context.Context, userID string, siteName string, req core.AuthenticateRequest) (core.AuthResult, error)
	Wipe(ctx context.Context, userID string, siteName string) error
	AddSite(ctx context.Context, site core.Site) (core.Site, error)
	UpdateSite(ctx context.Context, site core.Site) (core.Site, error)
	DeleteSite(ctx context.Context, id string) error
	SeedDefaultSites(ctx context.Context) ([]core.Site, error)
}

type AuthenticateCommand struct {
	service MutatingService
}

func NewAuthenticateCommand(service MutatingService) *AuthenticateCommand {
	return &AuthenticateCommand{service: service}
}

// Execute stores the core.AuthResult in the context result collector. A
// suspended result is not an error.
func (c *AuthenticateCommand) Execute(ctx context.Context, msg AuthenticateMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: authenticate service is required")
	}
	out, err := c.service.Authenticate(ctx, msg.UserID, msg.SiteName, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type WipeCommand struct {
	service MutatingService
}

func NewWipeCommand(service MutatingService) *WipeCommand {
	return &WipeCommand{service: service}
}

func (c *WipeCommand) Execute(ctx context.Context, msg WipeMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: wipe service is required")
	}
	return c.service.Wipe(ctx, msg.UserID, msg.SiteName)
}

type AddSiteCommand struct {
	service MutatingService
}

func NewAddSiteCommand(service MutatingService) *AddSiteCommand {
	return &AddSiteCommand{service: service}
}

func (c *AddSiteCommand) Execute(ctx context.Context, msg AddSiteMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: site service is required")
	}
	out, err := c.service.AddSite(ctx, msg.Site)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type UpdateSiteCommand struct {
	service MutatingService
}

func NewUpdateSiteCommand(service MutatingService) *UpdateSiteCommand {
	return &UpdateSiteCommand{service: service}
}

func (c *UpdateSiteCommand) Execute(ctx context.Context, msg UpdateSiteMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: site service is required")
	}
	out, err := c.service.UpdateSite(ctx, msg.Site)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type DeleteSiteCommand struct {
	service MutatingService
}

func NewDeleteSiteCommand(service MutatingService) *DeleteSiteCommand {
	return &DeleteSiteCommand{service: service}
}

func (c *DeleteSiteCommand) Execute(ctx context.Context, msg DeleteSiteMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: site service is required")
	}
	return c.service.DeleteSite(ctx, msg.SiteID)
}

type SeedSitesCommand struct {
	service MutatingService
}

func NewSeedSitesCommand(service MutatingService) *SeedSitesCommand {
	return &SeedSitesCommand{service: service}
}

func (c *SeedSitesCommand) Execute(ctx context.Context, _ SeedSitesMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: site service is required")
	}
	out, err := c.service.SeedDefaultSites(ctx)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
