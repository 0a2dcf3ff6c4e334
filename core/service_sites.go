package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

func (s *Service) Sites() SiteDirectory {
	if s == nil {
		return nil
	}
	return s.sites
}

func (s *Service) AddSite(ctx context.Context, site Site) (_ Site, err error) {
	if s == nil {
		return Site{}, fmt.Errorf("core: service is nil")
	}
	startedAt := time.Now()
	fields := map[string]any{"site_name": strings.TrimSpace(site.Name)}
	defer func() {
		s.observeOperation(ctx, startedAt, "add_site", err, fields)
	}()

	site.Name = strings.TrimSpace(site.Name)
	if err := site.Validate(); err != nil {
		return Site{}, s.mapError(NewBadInputError(err.Error()))
	}
	created, err := s.sites.Add(ctx, site)
	if err != nil {
		return Site{}, s.mapError(directoryError(err, "core: add site"))
	}
	fields["site_id"] = created.ID
	return created, nil
}

func (s *Service) UpdateSite(ctx context.Context, site Site) (_ Site, err error) {
	if s == nil {
		return Site{}, fmt.Errorf("core: service is nil")
	}
	startedAt := time.Now()
	fields := map[string]any{"site_name": strings.TrimSpace(site.Name), "site_id": site.ID}
	defer func() {
		s.observeOperation(ctx, startedAt, "update_site", err, fields)
	}()

	if strings.TrimSpace(site.ID) == "" {
		return Site{}, s.mapError(NewBadInputError("core: site id is required"))
	}
	site.Name = strings.TrimSpace(site.Name)
	if err := site.Validate(); err != nil {
		return Site{}, s.mapError(NewBadInputError(err.Error()))
	}
	updated, err := s.sites.Update(ctx, site)
	if err != nil {
		return Site{}, s.mapError(directoryError(err, "core: update site"))
	}
	return updated, nil
}

func (s *Service) DeleteSite(ctx context.Context, id string) (err error) {
	if s == nil {
		return fmt.Errorf("core: service is nil")
	}
	startedAt := time.Now()
	fields := map[string]any{"site_id": strings.TrimSpace(id)}
	defer func() {
		s.observeOperation(ctx, startedAt, "delete_site", err, fields)
	}()

	if strings.TrimSpace(id) == "" {
		return s.mapError(NewBadInputError("core: site id is required"))
	}
	if err := s.sites.Delete(ctx, strings.TrimSpace(id)); err != nil {
		return s.mapError(directoryError(err, "core: delete site"))
	}
	return nil
}

func (s *Service) GetSite(ctx context.Context, id string) (Site, error) {
	if s == nil {
		return Site{}, fmt.Errorf("core: service is nil")
	}
	site, err := s.sites.GetByID(ctx, strings.TrimSpace(id))
	if err != nil {
		return Site{}, s.mapError(directoryError(err, "core: load site"))
	}
	return site, nil
}

func (s *Service) GetSiteByName(ctx context.Context, name string) (Site, error) {
	if s == nil {
		return Site{}, fmt.Errorf("core: service is nil")
	}
	site, err := s.sites.GetByName(ctx, strings.TrimSpace(name))
	if err != nil {
		return Site{}, s.mapError(directoryError(err, "core: load site"))
	}
	return site, nil
}

func (s *Service) GetSiteByKey(ctx context.Context, consumerKey string) (Site, error) {
	if s == nil {
		return Site{}, fmt.Errorf("core: service is nil")
	}
	site, err := s.sites.GetByKey(ctx, strings.TrimSpace(consumerKey))
	if err != nil {
		return Site{}, s.mapError(directoryError(err, "core: load site"))
	}
	return site, nil
}

func (s *Service) SearchSites(ctx context.Context, substring string) ([]Site, error) {
	if s == nil {
		return nil, fmt.Errorf("core: service is nil")
	}
	sites, err := s.sites.Search(ctx, strings.TrimSpace(substring))
	if err != nil {
		return nil, s.mapError(directoryError(err, "core: search sites"))
	}
	return sites, nil
}

// SeedDefaultSites registers the install-time sites that are missing.
func (s *Service) SeedDefaultSites(ctx context.Context) (_ []Site, err error) {
	if s == nil {
		return nil, fmt.Errorf("core: service is nil")
	}
	startedAt := time.Now()
	fields := map[string]any{}
	defer func() {
		s.observeOperation(ctx, startedAt, "seed_sites", err, fields)
	}()

	added, err := SeedDirectory(ctx, s.sites)
	fields["added"] = len(added)
	if err != nil {
		return added, s.mapError(err)
	}
	return added, nil
}

// Authenticate opens a session handle and advances its flow in one call.
func (s *Service) Authenticate(ctx context.Context, userID string, siteName string, req AuthenticateRequest) (AuthResult, error) {
	auth, err := s.Authenticator(ctx, userID, siteName)
	if err != nil {
		return AuthResult{}, err
	}
	return auth.Authenticate(ctx, req)
}

func (s *Service) IsAuthorized(ctx context.Context, userID string, siteName string) (bool, error) {
	auth, err := s.Authenticator(ctx, userID, siteName)
	if err != nil {
		return false, err
	}
	return auth.IsAuthorized(), nil
}

func (s *Service) ReturnURL(ctx context.Context, userID string, siteName string) (string, bool, error) {
	auth, err := s.Authenticator(ctx, userID, siteName)
	if err != nil {
		return "", false, err
	}
	return auth.ReturnURL(ctx)
}

func directoryError(err error, message string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrSiteNotFound), errors.Is(err, ErrSiteNameTaken):
		return err
	case IsPersistenceError(err), IsConfigurationError(err), hasTextCode(err, ErrorBadInput):
		return err
	}
	return WrapPersistenceError(err, message)
}
