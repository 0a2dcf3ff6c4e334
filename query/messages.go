package query

import "strings"

const (
	TypeGetSite      = "oauth1.query.site.get"
	TypeSearchSites  = "oauth1.query.site.search"
	TypeIsAuthorized = "oauth1.query.authorized"
	TypeReturnURL    = "oauth1.query.return_url"
)

// GetSiteMessage looks a site up by exactly one of ID, Name or ConsumerKey.
type GetSiteMessage struct {
	ID          string
	Name        string
	ConsumerKey string
}

func (GetSiteMessage) Type() string { return TypeGetSite }

func (m GetSiteMessage) Validate() error {
	set := 0
	for _, value := range []string{m.ID, m.Name, m.ConsumerKey} {
		if strings.TrimSpace(value) != "" {
			set++
		}
	}
	switch set {
	case 0:
		return queryValidationError("id", "one of id, name or consumer key is required")
	case 1:
		return nil
	default:
		return queryInvalidInputError("query: only one of id, name or consumer key may be set")
	}
}

type SearchSitesMessage struct {
	Substring string
}

func (SearchSitesMessage) Type() string { return TypeSearchSites }

func (SearchSitesMessage) Validate() error { return nil }

type IsAuthorizedMessage struct {
	UserID   string
	SiteName string
}

func (IsAuthorizedMessage) Type() string { return TypeIsAuthorized }

func (m IsAuthorizedMessage) Validate() error {
	return validateUserSite(m.UserID, m.SiteName)
}

type ReturnURLMessage struct {
	UserID   string
	SiteName string
}

func (ReturnURLMessage) Type() string { return TypeReturnURL }

func (m ReturnURLMessage) Validate() error {
	return validateUserSite(m.UserID, m.SiteName)
}

type ReturnURLResult struct {
	URL   string
	Found bool
}

func validateUserSite(userID string, siteName string) error {
	if strings.TrimSpace(userID) == "" {
		return queryValidationError("user_id", "user id is required")
	}
	if strings.TrimSpace(siteName) == "" {
		return queryValidationError("site_name", "site name is required")
	}
	return nil
}
