package consumer

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"fmt"
	"net"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/segmentio/ksuid"
)

const (
	SignatureMethod = "HMAC-SHA1"
	Version         = "1.0"
)

// Signer computes OAuth 1.0a HMAC-SHA1 signatures for one consumer.
type Signer struct {
	ConsumerKey    string
	ConsumerSecret string
	Now            func() time.Time
	Nonce          func() string
}

func NewSigner(consumerKey string, consumerSecret string) Signer {
	return Signer{
		ConsumerKey:    strings.TrimSpace(consumerKey),
		ConsumerSecret: consumerSecret,
		Now:            time.Now,
		Nonce:          defaultNonce,
	}
}

func defaultNonce() string {
	return ksuid.New().String()
}

// ProtocolParams returns the oauth_* parameters of one request. token may be
// empty for the request token call.
func (s Signer) ProtocolParams(token string) map[string]string {
	now := s.Now
	if now == nil {
		now = time.Now
	}
	nonce := s.Nonce
	if nonce == nil {
		nonce = defaultNonce
	}
	params := map[string]string{
		"oauth_consumer_key":     s.ConsumerKey,
		"oauth_nonce":            nonce(),
		"oauth_signature_method": SignatureMethod,
		"oauth_timestamp":        strconv.FormatInt(now().Unix(), 10),
		"oauth_version":          Version,
	}
	if token = strings.TrimSpace(token); token != "" {
		params["oauth_token"] = token
	}
	return params
}

// Sign returns the base64 HMAC-SHA1 signature of a request. Query parameters
// of rawURL are part of the signed parameter set.
func (s Signer) Sign(method string, rawURL string, tokenSecret string, params map[string]string) (string, error) {
	base, err := BaseString(method, rawURL, params)
	if err != nil {
		return "", err
	}
	key := PercentEncode(s.ConsumerSecret) + "&" + PercentEncode(tokenSecret)
	mac := hmac.New(sha1.New, []byte(key))
	mac.Write([]byte(base))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil)), nil
}

// BaseString builds METHOD&url&params with every component percent-encoded.
func BaseString(method string, rawURL string, params map[string]string) (string, error) {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", fmt.Errorf("consumer: invalid url: %w", err)
	}
	normalized, err := normalizeURL(parsed)
	if err != nil {
		return "", err
	}

	pairs := make([][2]string, 0, len(params)+len(parsed.Query()))
	for key, values := range parsed.Query() {
		for _, value := range values {
			pairs = append(pairs, [2]string{PercentEncode(key), PercentEncode(value)})
		}
	}
	for key, value := range params {
		if key == "oauth_signature" {
			continue
		}
		pairs = append(pairs, [2]string{PercentEncode(key), PercentEncode(value)})
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i][0] == pairs[j][0] {
			return pairs[i][1] < pairs[j][1]
		}
		return pairs[i][0] < pairs[j][0]
	})
	encoded := make([]string, 0, len(pairs))
	for _, pair := range pairs {
		encoded = append(encoded, pair[0]+"="+pair[1])
	}

	return strings.ToUpper(strings.TrimSpace(method)) + "&" +
		PercentEncode(normalized) + "&" +
		PercentEncode(strings.Join(encoded, "&")), nil
}

// NormalizeURL lowercases scheme and host, strips default ports and drops the
// query and fragment.
func NormalizeURL(rawURL string) (string, error) {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", fmt.Errorf("consumer: invalid url: %w", err)
	}
	return normalizeURL(parsed)
}

func normalizeURL(parsed *url.URL) (string, error) {
	if parsed == nil || parsed.Scheme == "" || parsed.Host == "" {
		return "", fmt.Errorf("consumer: absolute url is required")
	}
	scheme := strings.ToLower(parsed.Scheme)
	host := strings.ToLower(parsed.Hostname())
	port := parsed.Port()
	if (scheme == "http" && port == "80") || (scheme == "https" && port == "443") {
		port = ""
	}
	if port != "" {
		host = net.JoinHostPort(host, port)
	}
	path := parsed.EscapedPath()
	if path == "" {
		path = "/"
	}
	return scheme + "://" + host + path, nil
}

// PercentEncode encodes per RFC 3986: only ALPHA, DIGIT and -._~ stay literal.
func PercentEncode(value string) string {
	var builder strings.Builder
	builder.Grow(len(value))
	for i := 0; i < len(value); i++ {
		c := value[i]
		if isUnreserved(c) {
			builder.WriteByte(c)
			continue
		}
		fmt.Fprintf(&builder, "%%%02X", c)
	}
	return builder.String()
}

func isUnreserved(c byte) bool {
	switch {
	case 'A' <= c && c <= 'Z', 'a' <= c && c <= 'z', '0' <= c && c <= '9':
		return true
	case c == '-', c == '.', c == '_', c == '~':
		return true
	}
	return false
}

func authorizationHeader(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for key := range params {
		if strings.HasPrefix(key, "oauth_") {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		parts = append(parts, PercentEncode(key)+`="`+PercentEncode(params[key])+`"`)
	}
	return "OAuth " + strings.Join(parts, ", ")
}
