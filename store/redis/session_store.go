package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/goliatone/go-oauth1/core"
	"github.com/redis/go-redis/v9"
)

const (
	defaultKeyPrefix = "oauth1:session"
	defaultTTL       = 24 * time.Hour
)

type Option func(*SessionStore)

// WithKeyPrefix namespaces session keys, e.g. per deployment.
func WithKeyPrefix(prefix string) Option {
	return func(s *SessionStore) {
		if trimmed := strings.Trim(strings.TrimSpace(prefix), ":"); trimmed != "" {
			s.prefix = trimmed
		}
	}
}

func WithTTL(ttl time.Duration) Option {
	return func(s *SessionStore) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithSecretProvider seals session payloads, which can carry token secrets.
func WithSecretProvider(secrets core.SecretProvider) Option {
	return func(s *SessionStore) {
		s.secrets = secrets
	}
}

// SessionStore keeps OAuth flow sessions in Redis so every instance behind a
// load balancer sees the same flow state. Each save refreshes the TTL.
type SessionStore struct {
	client  redis.UniversalClient
	prefix  string
	ttl     time.Duration
	secrets core.SecretProvider
}

func NewSessionStore(client redis.UniversalClient, opts ...Option) (*SessionStore, error) {
	if client == nil {
		return nil, fmt.Errorf("redisstore: redis client is required")
	}
	store := &SessionStore{
		client: client,
		prefix: defaultKeyPrefix,
		ttl:    defaultTTL,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(store)
	}
	return store, nil
}

func (s *SessionStore) Key(userID string, siteName string) string {
	return strings.Join([]string{
		s.prefix,
		url.PathEscape(strings.TrimSpace(userID)),
		url.PathEscape(strings.ToLower(strings.TrimSpace(siteName))),
	}, ":")
}

func (s *SessionStore) Load(ctx context.Context, userID string, siteName string) (core.Session, bool, error) {
	payload, err := s.client.Get(ctx, s.Key(userID, siteName)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return core.Session{}, false, nil
		}
		return core.Session{}, false, fmt.Errorf("redisstore: load session: %w", err)
	}
	if s.secrets != nil {
		payload, err = s.secrets.Decrypt(ctx, payload)
		if err != nil {
			return core.Session{}, false, fmt.Errorf("redisstore: open session: %w", err)
		}
	}
	var session core.Session
	if err := json.Unmarshal(payload, &session); err != nil {
		return core.Session{}, false, fmt.Errorf("redisstore: decode session: %w", err)
	}
	return session, true, nil
}

func (s *SessionStore) Save(ctx context.Context, session core.Session) error {
	if strings.TrimSpace(session.UserID) == "" || strings.TrimSpace(session.SiteName) == "" {
		return fmt.Errorf("redisstore: session user id and site name are required")
	}
	payload, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("redisstore: encode session: %w", err)
	}
	if s.secrets != nil {
		payload, err = s.secrets.Encrypt(ctx, payload)
		if err != nil {
			return fmt.Errorf("redisstore: seal session: %w", err)
		}
	}
	if err := s.client.Set(ctx, s.Key(session.UserID, session.SiteName), payload, s.ttl).Err(); err != nil {
		return fmt.Errorf("redisstore: persist session: %w", err)
	}
	return nil
}

func (s *SessionStore) Delete(ctx context.Context, userID string, siteName string) error {
	if err := s.client.Del(ctx, s.Key(userID, siteName)).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("redisstore: delete session: %w", err)
	}
	return nil
}

var _ core.SessionStore = (*SessionStore)(nil)
