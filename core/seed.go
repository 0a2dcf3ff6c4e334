package core

import (
	"context"
	"errors"
)

const (
	googleRequestTokenURL   = "https://www.google.com/accounts/OAuthGetRequestToken"
	googleAuthorizeTokenURL = "https://www.google.com/accounts/OAuthAuthorizeToken"
	googleAccessTokenURL    = "https://www.google.com/accounts/OAuthGetAccessToken"

	PlaceholderConsumerKey    = "<your consumer key>"
	PlaceholderConsumerSecret = "<your consumer secret>"
)

// DefaultSites returns the install-time directory entries. They ship disabled
// with placeholder credentials an operator must replace.
func DefaultSites() []Site {
	names := []string{"google.com", "googledocs.com"}
	sites := make([]Site, 0, len(names))
	for _, name := range names {
		sites = append(sites, Site{
			Name:              name,
			RequestTokenURL:   googleRequestTokenURL,
			AuthorizeTokenURL: googleAuthorizeTokenURL,
			AccessTokenURL:    googleAccessTokenURL,
			ConsumerKey:       PlaceholderConsumerKey,
			ConsumerSecret:    PlaceholderConsumerSecret,
			Enabled:           false,
		})
	}
	return sites
}

// SeedDirectory adds the default sites that are not registered yet.
func SeedDirectory(ctx context.Context, directory SiteDirectory) ([]Site, error) {
	if directory == nil {
		return nil, NewBadInputError("core: site directory is required")
	}
	added := []Site{}
	for _, site := range DefaultSites() {
		_, err := directory.GetByName(ctx, site.Name)
		if err == nil {
			continue
		}
		if !errors.Is(err, ErrSiteNotFound) {
			return added, WrapPersistenceError(err, "core: load seed site")
		}
		created, err := directory.Add(ctx, site)
		if err != nil {
			return added, WrapPersistenceError(err, "core: add seed site")
		}
		added = append(added, created)
	}
	return added, nil
}
