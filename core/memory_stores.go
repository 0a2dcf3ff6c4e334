package core

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const defaultSessionTTL = 24 * time.Hour

type MemorySiteDirectory struct {
	mu    sync.RWMutex
	sites map[string]Site
}

func NewMemorySiteDirectory(sites ...Site) *MemorySiteDirectory {
	directory := &MemorySiteDirectory{sites: map[string]Site{}}
	for _, site := range sites {
		if strings.TrimSpace(site.ID) == "" {
			site.ID = uuid.NewString()
		}
		directory.sites[site.ID] = site
	}
	return directory
}

func (d *MemorySiteDirectory) GetByID(_ context.Context, id string) (Site, error) {
	if d == nil {
		return Site{}, fmt.Errorf("core: site directory is not configured")
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	site, ok := d.sites[strings.TrimSpace(id)]
	if !ok {
		return Site{}, ErrSiteNotFound
	}
	return cloneSite(site), nil
}

func (d *MemorySiteDirectory) GetByKey(_ context.Context, consumerKey string) (Site, error) {
	return d.find(func(site Site) bool {
		return site.ConsumerKey == strings.TrimSpace(consumerKey)
	})
}

func (d *MemorySiteDirectory) GetByName(_ context.Context, name string) (Site, error) {
	return d.find(func(site Site) bool {
		return strings.EqualFold(site.Name, strings.TrimSpace(name))
	})
}

func (d *MemorySiteDirectory) Search(_ context.Context, substring string) ([]Site, error) {
	if d == nil {
		return nil, fmt.Errorf("core: site directory is not configured")
	}
	needle := strings.ToLower(strings.TrimSpace(substring))
	d.mu.RLock()
	out := make([]Site, 0, len(d.sites))
	for _, site := range d.sites {
		if needle == "" || strings.Contains(strings.ToLower(site.Name), needle) {
			out = append(out, cloneSite(site))
		}
	}
	d.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (d *MemorySiteDirectory) Add(_ context.Context, site Site) (Site, error) {
	if d == nil {
		return Site{}, fmt.Errorf("core: site directory is not configured")
	}
	site.Name = strings.TrimSpace(site.Name)
	if err := site.Validate(); err != nil {
		return Site{}, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, existing := range d.sites {
		if strings.EqualFold(existing.Name, site.Name) {
			return Site{}, ErrSiteNameTaken
		}
	}
	if strings.TrimSpace(site.ID) == "" {
		site.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	site.CreatedAt = now
	site.UpdatedAt = now
	d.sites[site.ID] = site
	return cloneSite(site), nil
}

func (d *MemorySiteDirectory) Update(_ context.Context, site Site) (Site, error) {
	if d == nil {
		return Site{}, fmt.Errorf("core: site directory is not configured")
	}
	site.Name = strings.TrimSpace(site.Name)
	if err := site.Validate(); err != nil {
		return Site{}, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	current, ok := d.sites[site.ID]
	if !ok {
		return Site{}, ErrSiteNotFound
	}
	for id, existing := range d.sites {
		if id != site.ID && strings.EqualFold(existing.Name, site.Name) {
			return Site{}, ErrSiteNameTaken
		}
	}
	site.CreatedAt = current.CreatedAt
	site.UpdatedAt = time.Now().UTC()
	d.sites[site.ID] = site
	return cloneSite(site), nil
}

func (d *MemorySiteDirectory) Delete(_ context.Context, id string) error {
	if d == nil {
		return fmt.Errorf("core: site directory is not configured")
	}
	d.mu.Lock()
	delete(d.sites, strings.TrimSpace(id))
	d.mu.Unlock()
	return nil
}

func (d *MemorySiteDirectory) find(match func(Site) bool) (Site, error) {
	if d == nil {
		return Site{}, fmt.Errorf("core: site directory is not configured")
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, site := range d.sites {
		if match(site) {
			return cloneSite(site), nil
		}
	}
	return Site{}, ErrSiteNotFound
}

type MemoryTokenStore struct {
	mu     sync.Mutex
	tokens map[string]AccessToken
}

func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{tokens: map[string]AccessToken{}}
}

func (s *MemoryTokenStore) Get(_ context.Context, userID string, siteID string) (AccessToken, bool, error) {
	if s == nil {
		return AccessToken{}, false, fmt.Errorf("core: token store is not configured")
	}
	s.mu.Lock()
	token, ok := s.tokens[tokenKey(userID, siteID)]
	s.mu.Unlock()
	if !ok {
		return AccessToken{}, false, nil
	}
	return *cloneAccessToken(&token), true, nil
}

func (s *MemoryTokenStore) Put(_ context.Context, userID string, siteID string, token AccessToken) error {
	if s == nil {
		return fmt.Errorf("core: token store is not configured")
	}
	if strings.TrimSpace(userID) == "" || strings.TrimSpace(siteID) == "" {
		return fmt.Errorf("core: user id and site id are required")
	}
	s.mu.Lock()
	s.tokens[tokenKey(userID, siteID)] = *cloneAccessToken(&token)
	s.mu.Unlock()
	return nil
}

func (s *MemoryTokenStore) Delete(_ context.Context, userID string, siteID string) error {
	if s == nil {
		return fmt.Errorf("core: token store is not configured")
	}
	s.mu.Lock()
	delete(s.tokens, tokenKey(userID, siteID))
	s.mu.Unlock()
	return nil
}

func tokenKey(userID string, siteID string) string {
	return strings.TrimSpace(userID) + "::" + strings.TrimSpace(siteID)
}

type MemorySessionStore struct {
	mu       sync.Mutex
	ttl      time.Duration
	sessions map[string]memorySessionEntry
}

type memorySessionEntry struct {
	session   Session
	expiresAt time.Time
}

func NewMemorySessionStore(ttl time.Duration) *MemorySessionStore {
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	return &MemorySessionStore{
		ttl:      ttl,
		sessions: map[string]memorySessionEntry{},
	}
}

func (s *MemorySessionStore) Load(_ context.Context, userID string, siteName string) (Session, bool, error) {
	if s == nil {
		return Session{}, false, fmt.Errorf("core: session store is not configured")
	}
	key := tokenKey(userID, siteName)
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.sessions[key]
	if !ok {
		return Session{}, false, nil
	}
	if time.Now().UTC().After(entry.expiresAt) {
		delete(s.sessions, key)
		return Session{}, false, nil
	}
	return CloneSession(entry.session), true, nil
}

func (s *MemorySessionStore) Save(_ context.Context, session Session) error {
	if s == nil {
		return fmt.Errorf("core: session store is not configured")
	}
	if strings.TrimSpace(session.UserID) == "" || strings.TrimSpace(session.SiteName) == "" {
		return fmt.Errorf("core: session user id and site name are required")
	}
	s.mu.Lock()
	s.sessions[tokenKey(session.UserID, session.SiteName)] = memorySessionEntry{
		session:   CloneSession(session),
		expiresAt: time.Now().UTC().Add(s.ttl),
	}
	s.mu.Unlock()
	return nil
}

func (s *MemorySessionStore) Delete(_ context.Context, userID string, siteName string) error {
	if s == nil {
		return fmt.Errorf("core: session store is not configured")
	}
	s.mu.Lock()
	delete(s.sessions, tokenKey(userID, siteName))
	s.mu.Unlock()
	return nil
}

var (
	_ SiteDirectory = (*MemorySiteDirectory)(nil)
	_ TokenStore    = (*MemoryTokenStore)(nil)
	_ SessionStore  = (*MemorySessionStore)(nil)
)
