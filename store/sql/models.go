package sqlstore

import (
	"time"

	"github.com/uptrace/bun"
)

type siteRecord struct {
	bun.BaseModel `bun:"table:oauth_site_directory,alias:osd"`

	ID                       string    `bun:"id,pk"`
	Name                     string    `bun:"name,notnull"`
	RequestTokenURL          string    `bun:"request_token_url,notnull"`
	AuthorizeTokenURL        string    `bun:"authorize_token_url,notnull"`
	AccessTokenURL           string    `bun:"access_token_url,notnull"`
	ConsumerKey              string    `bun:"consumer_key,notnull"`
	ConsumerSecretCiphertext []byte    `bun:"consumer_secret_ciphertext,notnull"`
	Enabled                  bool      `bun:"enabled,notnull"`
	CreatedAt                time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt                time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type accessTokenRecord struct {
	bun.BaseModel `bun:"table:oauth_access_tokens,alias:oat"`

	ID               string            `bun:"id,pk"`
	UserID           string            `bun:"user_id,notnull"`
	SiteID           string            `bun:"site_id,notnull"`
	Token            string            `bun:"token,notnull"`
	SecretCiphertext []byte            `bun:"secret_ciphertext,notnull"`
	Extra            map[string]string `bun:"extra,type:jsonb,notnull"`
	IssuedAt         time.Time         `bun:"issued_at,notnull"`
	ExpiresAt        *time.Time        `bun:"expires_at,nullzero"`
	CreatedAt        time.Time         `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt        time.Time         `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}
