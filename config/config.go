package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jmcleod/authseal/oauth"
)

// DefaultPrefix is the environment variable prefix when none is given.
const DefaultPrefix = "AUTHSEAL"

const minPasswordLen = 32

// Provider holds the per-deployment settings for one identity provider.
// The URL fields are only needed for providers without a built-in
// descriptor, or to point a built-in one at a self-hosted instance.
type Provider struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string
	AuthorizeURL string
	TokenURL     string
	UserInfoURL  string
}

// Config is the environment-derived configuration.
type Config struct {
	// SessionPassword seals the session cookie and the ceremony cookies.
	SessionPassword string

	// SessionName is the session cookie name.
	SessionName string

	// SessionMaxAge is the session lifetime.
	SessionMaxAge time.Duration

	// Providers maps lowercase provider names to their settings.
	Providers map[string]Provider
}

// Load reads the configuration for the given prefix (DefaultPrefix when
// empty). Provider variables follow <PREFIX>_OAUTH_<PROVIDER>_<KEY>; the
// provider name may not contain underscores.
func Load(prefix string) Config {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	cfg := Config{
		SessionPassword: EnvString(prefix+"_SESSION_PASSWORD", ""),
		SessionName:     EnvString(prefix+"_SESSION_NAME", "session"),
		SessionMaxAge:   EnvDuration(prefix+"_SESSION_MAX_AGE", 7*24*time.Hour),
		Providers:       make(map[string]Provider),
	}

	oauthPrefix := prefix + "_OAUTH_"
	for _, kv := range os.Environ() {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(name, oauthPrefix) {
			continue
		}
		providerName, key, ok := strings.Cut(strings.TrimPrefix(name, oauthPrefix), "_")
		if !ok || providerName == "" {
			continue
		}
		id := strings.ToLower(providerName)
		p := cfg.Providers[id]
		switch key {
		case "CLIENT_ID":
			p.ClientID = value
		case "CLIENT_SECRET":
			p.ClientSecret = value
		case "REDIRECT_URL":
			p.RedirectURL = value
		case "SCOPE":
			p.Scopes = strings.Fields(value)
		case "AUTHORIZE_URL":
			p.AuthorizeURL = value
		case "TOKEN_URL":
			p.TokenURL = value
		case "USERINFO_URL":
			p.UserInfoURL = value
		default:
			continue
		}
		cfg.Providers[id] = p
	}
	return cfg
}

// Validate checks the configuration for production use.
func (c Config) Validate() error {
	if len(c.SessionPassword) < minPasswordLen {
		return fmt.Errorf("config: session password must be at least %d characters", minPasswordLen)
	}
	for name, p := range c.Providers {
		if p.ClientID == "" || p.ClientSecret == "" {
			return fmt.Errorf("config: provider %q is missing client credentials", name)
		}
		if _, ok := oauth.Lookup(name); !ok && (p.AuthorizeURL == "" || p.TokenURL == "") {
			return fmt.Errorf("config: provider %q has no built-in endpoints and none configured", name)
		}
	}
	return nil
}

// Descriptor resolves the flow descriptor for a configured provider:
// built-in descriptors are used as the base and any configured URLs or
// scopes override them.
func (c Config) Descriptor(name string) (oauth.Descriptor, bool) {
	p, configured := c.Providers[name]
	desc, builtin := oauth.Lookup(name)
	if !builtin {
		if !configured || p.AuthorizeURL == "" || p.TokenURL == "" {
			return oauth.Descriptor{}, false
		}
		desc = oauth.Descriptor{Name: name, PKCE: true}
	}
	if p.AuthorizeURL != "" {
		desc.Endpoint.AuthURL = p.AuthorizeURL
	}
	if p.TokenURL != "" {
		desc.Endpoint.TokenURL = p.TokenURL
	}
	if p.UserInfoURL != "" {
		desc.UserInfoURL = p.UserInfoURL
	}
	if len(p.Scopes) > 0 {
		desc.Scopes = p.Scopes
	}
	return desc, true
}

// Credentials returns the oauth credentials for a configured provider.
func (c Config) Credentials(name string) oauth.Credentials {
	p := c.Providers[name]
	return oauth.Credentials{
		ClientID:     p.ClientID,
		ClientSecret: p.ClientSecret,
		RedirectURL:  p.RedirectURL,
	}
}
