// Package oauth2 fetches OAuth2 access tokens through the ackhttp client so
// that requests can carry a bearer token.
package oauth2

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/perchrh/ackhttp/packages/http"
)

// GrantType represents the OAuth2 grant type
type GrantType string

const (
	// ClientCredentials is the client_credentials grant type
	ClientCredentials GrantType = "client_credentials"
	// Password is the password (resource owner) grant type
	Password GrantType = "password"
	// RefreshToken is the refresh_token grant type
	RefreshToken GrantType = "refresh_token"
)

// expiryLeeway treats a token as expired slightly early to absorb clock skew.
const expiryLeeway = 30 * time.Second

// Config holds OAuth2 configuration
type Config struct {
	TokenURL     string    `json:"tokenUrl" yaml:"tokenUrl"`
	ClientID     string    `json:"clientId,omitempty" yaml:"clientId,omitempty"`
	ClientSecret string    `json:"clientSecret,omitempty" yaml:"clientSecret,omitempty"`
	Scopes       []string  `json:"scopes,omitempty" yaml:"scopes,omitempty"`
	Username     string    `json:"username,omitempty" yaml:"username,omitempty"` // For password grant
	Password     string    `json:"password,omitempty" yaml:"password,omitempty"` // For password grant
	GrantType    GrantType `json:"grantType,omitempty" yaml:"grantType,omitempty"`
}

// Validate checks that the fields the grant needs are present.
func (c *Config) Validate() error {
	if c.TokenURL == "" {
		return fmt.Errorf("oauth2: tokenUrl is required")
	}
	switch c.GrantType {
	case "", ClientCredentials:
	case Password:
		if c.Username == "" {
			return fmt.Errorf("oauth2: password grant requires username")
		}
	default:
		return fmt.Errorf("oauth2: unsupported grant type %q", c.GrantType)
	}
	return nil
}

// Token represents an OAuth2 access token
type Token struct {
	AccessToken  string
	TokenType    string
	ExpiresIn    int
	RefreshToken string
	Scope        string
	ExpiresAt    time.Time
}

// IsExpired reports whether the token is past, or about to pass, its expiry.
// A token without an expiry never expires.
func (t *Token) IsExpired() bool {
	if t.ExpiresAt.IsZero() {
		return false
	}
	return time.Now().Add(expiryLeeway).After(t.ExpiresAt)
}

// AuthorizationHeader renders the token for the Authorization header.
func (t *Token) AuthorizationHeader() string {
	tokenType := t.TokenType
	if tokenType == "" || strings.EqualFold(tokenType, "bearer") {
		tokenType = "Bearer"
	}
	return tokenType + " " + t.AccessToken
}

// Provider handles OAuth2 token acquisition
type Provider struct {
	config *Config
	client *http.Client
	cache  *TokenCache
}

// NewProvider creates a provider that posts token requests through client
// and keeps tokens in cache (GlobalCache when nil).
func NewProvider(config *Config, client *http.Client, cache *TokenCache) *Provider {
	if cache == nil {
		cache = GlobalCache
	}
	return &Provider{
		config: config,
		client: client,
		cache:  cache,
	}
}

// GetToken returns a cached token when still valid, refreshes it when a
// refresh token is available, and otherwise fetches a new one.
func (p *Provider) GetToken(ctx context.Context) (*Token, error) {
	if err := p.config.Validate(); err != nil {
		return nil, err
	}

	cacheKey := p.getCacheKey()
	cached := p.cache.Get(cacheKey)
	if cached != nil && !cached.IsExpired() {
		return cached, nil
	}

	var (
		token *Token
		err   error
	)
	if cached != nil && cached.RefreshToken != "" {
		token, err = p.refresh(ctx, cached.RefreshToken)
	}
	if token == nil {
		token, err = p.fetchToken(ctx)
	}
	if err != nil {
		p.cache.Delete(cacheKey)
		return nil, err
	}

	p.cache.Set(cacheKey, token)
	return token, nil
}

func (p *Provider) getCacheKey() string {
	return fmt.Sprintf("%s:%s:%s:%s", p.config.TokenURL, p.config.ClientID, p.config.Username, strings.Join(p.config.Scopes, ","))
}

func (p *Provider) fetchToken(ctx context.Context) (*Token, error) {
	fields := map[string]string{}
	switch p.config.GrantType {
	case Password:
		fields["grant_type"] = string(Password)
		fields["username"] = p.config.Username
		fields["password"] = p.config.Password
	default:
		fields["grant_type"] = string(ClientCredentials)
	}
	if len(p.config.Scopes) > 0 {
		fields["scope"] = strings.Join(p.config.Scopes, " ")
	}
	return p.doTokenRequest(ctx, fields)
}

// refresh exchanges a refresh token. A rejected refresh yields (nil, nil) so
// the caller falls back to a full grant.
func (p *Provider) refresh(ctx context.Context, refreshToken string) (*Token, error) {
	token, err := p.doTokenRequest(ctx, map[string]string{
		"grant_type":    string(RefreshToken),
		"refresh_token": refreshToken,
	})
	if err != nil {
		return nil, nil
	}
	return token, nil
}

func (p *Provider) doTokenRequest(ctx context.Context, fields map[string]string) (*Token, error) {
	target, err := http.BuildURL(p.config.TokenURL, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("oauth2: %w", err)
	}

	headers := map[string]string{"Accept": "application/json"}
	if p.config.ClientID != "" && p.config.ClientSecret != "" {
		auth := base64.StdEncoding.EncodeToString([]byte(p.config.ClientID + ":" + p.config.ClientSecret))
		headers["Authorization"] = "Basic " + auth
	} else if p.config.ClientID != "" {
		fields["client_id"] = p.config.ClientID
	}

	o := p.client.PostFormSync(ctx, target, fields, headers)
	if err := o.Failure(); err != nil {
		if desc := o.JSON("error_description").String(); desc != "" {
			return nil, fmt.Errorf("oauth2: token request failed: %w: %s", err, desc)
		}
		return nil, fmt.Errorf("oauth2: token request failed: %w", err)
	}

	return parseToken(&o)
}

func parseToken(o *http.Outcome) (*Token, error) {
	doc := o.JSON("")
	if !doc.IsObject() {
		return nil, fmt.Errorf("oauth2: token response is not a JSON object")
	}

	token := &Token{
		AccessToken:  doc.Get("access_token").String(),
		TokenType:    doc.Get("token_type").String(),
		ExpiresIn:    int(doc.Get("expires_in").Int()),
		RefreshToken: doc.Get("refresh_token").String(),
		Scope:        doc.Get("scope").String(),
	}
	if token.AccessToken == "" {
		return nil, fmt.Errorf("oauth2: token response has no access_token")
	}
	if token.ExpiresIn > 0 {
		token.ExpiresAt = time.Now().Add(time.Duration(token.ExpiresIn) * time.Second)
	}
	return token, nil
}
