// Package oauth implements a generic OAuth2 authorization-code flow
// engine with CSRF-state and PKCE protection. The protocol logic is
// provider-agnostic; everything provider-specific (endpoint URLs, scope
// defaults, token-request shaping, user normalization) lives in a
// Descriptor, so dozens of providers share one state machine.
package oauth

import "golang.org/x/oauth2"

// Descriptor is the data that distinguishes one provider from another.
type Descriptor struct {
	// Name identifies the provider in routes, cookie names, and errors.
	Name string

	// Endpoint holds the authorize and token URLs. Its AuthStyle decides
	// whether client credentials travel in the request body or a Basic
	// auth header.
	Endpoint oauth2.Endpoint

	// Scopes requested by default; callers may override per flow.
	Scopes []string

	// AuthorizeParams are extra query parameters merged into the
	// authorization URL (e.g. access_type=offline).
	AuthorizeParams map[string]string

	// PKCE enables the S256 verifier/challenge pair for this provider.
	PKCE bool

	// UserInfoURL is fetched with the access token to obtain the raw
	// profile.
	UserInfoURL string

	// UserInfoHeaders are extra headers for the user-info request.
	UserInfoHeaders map[string]string

	// NormalizeUser maps the provider's raw profile object to the
	// application shape. When nil the raw profile is passed through.
	NormalizeUser func(raw map[string]any) map[string]any
}

// Credentials is the per-deployment half of a provider configuration.
type Credentials struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
}
