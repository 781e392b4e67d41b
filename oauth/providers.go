package oauth

import (
	"fmt"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

// Google returns a descriptor for Google sign-in. PKCE is on; Google
// recommends it even for confidential clients.
func Google() Descriptor {
	return Descriptor{
		Name:        "google",
		Endpoint:    endpoints.Google,
		Scopes:      []string{"openid", "email", "profile"},
		PKCE:        true,
		UserInfoURL: "https://openidconnect.googleapis.com/v1/userinfo",
		NormalizeUser: func(raw map[string]any) map[string]any {
			return map[string]any{
				"id":     raw["sub"],
				"name":   raw["name"],
				"email":  raw["email"],
				"avatar": raw["picture"],
			}
		},
	}
}

// GitHub returns a descriptor for GitHub sign-in.
func GitHub() Descriptor {
	return Descriptor{
		Name:        "github",
		Endpoint:    endpoints.GitHub,
		Scopes:      []string{"read:user", "user:email"},
		UserInfoURL: "https://api.github.com/user",
		UserInfoHeaders: map[string]string{
			"Accept": "application/vnd.github+json",
		},
		NormalizeUser: func(raw map[string]any) map[string]any {
			name := raw["name"]
			if name == nil {
				name = raw["login"]
			}
			return map[string]any{
				"id":     raw["id"],
				"name":   name,
				"email":  raw["email"],
				"avatar": raw["avatar_url"],
			}
		},
	}
}

// GitLab returns a descriptor for gitlab.com sign-in.
func GitLab() Descriptor {
	return Descriptor{
		Name:        "gitlab",
		Endpoint:    endpoints.GitLab,
		Scopes:      []string{"read_user"},
		PKCE:        true,
		UserInfoURL: "https://gitlab.com/api/v4/user",
		NormalizeUser: func(raw map[string]any) map[string]any {
			return map[string]any{
				"id":     raw["id"],
				"name":   raw["name"],
				"email":  raw["email"],
				"avatar": raw["avatar_url"],
			}
		},
	}
}

// Microsoft returns a descriptor for Microsoft identity platform sign-in
// using the common tenant.
func Microsoft() Descriptor {
	return Descriptor{
		Name:        "microsoft",
		Endpoint:    endpoints.AzureAD("common"),
		Scopes:      []string{"openid", "email", "profile", "User.Read"},
		PKCE:        true,
		UserInfoURL: "https://graph.microsoft.com/v1.0/me",
		NormalizeUser: func(raw map[string]any) map[string]any {
			email := raw["mail"]
			if email == nil {
				email = raw["userPrincipalName"]
			}
			return map[string]any{
				"id":    raw["id"],
				"name":  raw["displayName"],
				"email": email,
			}
		},
	}
}

// Discord returns a descriptor for Discord sign-in.
func Discord() Descriptor {
	return Descriptor{
		Name: "discord",
		Endpoint: oauth2.Endpoint{
			AuthURL:  "https://discord.com/oauth2/authorize",
			TokenURL: "https://discord.com/api/oauth2/token",
		},
		Scopes:      []string{"identify", "email"},
		PKCE:        true,
		UserInfoURL: "https://discord.com/api/users/@me",
		NormalizeUser: func(raw map[string]any) map[string]any {
			return map[string]any{
				"id":     raw["id"],
				"name":   raw["global_name"],
				"email":  raw["email"],
				"avatar": raw["avatar"],
			}
		},
	}
}

// Facebook returns a descriptor for Facebook sign-in.
func Facebook() Descriptor {
	return Descriptor{
		Name:        "facebook",
		Endpoint:    endpoints.Facebook,
		Scopes:      []string{"email", "public_profile"},
		UserInfoURL: "https://graph.facebook.com/v19.0/me?fields=id,name,email,picture",
		NormalizeUser: func(raw map[string]any) map[string]any {
			return map[string]any{
				"id":    raw["id"],
				"name":  raw["name"],
				"email": raw["email"],
			}
		},
	}
}

// Spotify returns a descriptor for Spotify sign-in.
func Spotify() Descriptor {
	return Descriptor{
		Name:        "spotify",
		Endpoint:    endpoints.Spotify,
		Scopes:      []string{"user-read-email"},
		PKCE:        true,
		UserInfoURL: "https://api.spotify.com/v1/me",
		NormalizeUser: func(raw map[string]any) map[string]any {
			return map[string]any{
				"id":    raw["id"],
				"name":  raw["display_name"],
				"email": raw["email"],
			}
		},
	}
}

// Auth0 returns a descriptor for an Auth0 tenant, identified by its
// domain (e.g. "example.us.auth0.com").
func Auth0(domain string) Descriptor {
	base := "https://" + strings.TrimSuffix(domain, "/")
	return Descriptor{
		Name: "auth0",
		Endpoint: oauth2.Endpoint{
			AuthURL:  base + "/authorize",
			TokenURL: base + "/oauth/token",
		},
		Scopes:      []string{"openid", "email", "profile"},
		PKCE:        true,
		UserInfoURL: base + "/userinfo",
		NormalizeUser: func(raw map[string]any) map[string]any {
			return map[string]any{
				"id":     raw["sub"],
				"name":   raw["name"],
				"email":  raw["email"],
				"avatar": raw["picture"],
			}
		},
	}
}

// Keycloak returns a descriptor for a Keycloak realm.
func Keycloak(baseURL, realm string) Descriptor {
	realmBase := fmt.Sprintf("%s/realms/%s/protocol/openid-connect",
		strings.TrimSuffix(baseURL, "/"), realm)
	return Descriptor{
		Name: "keycloak",
		Endpoint: oauth2.Endpoint{
			AuthURL:  realmBase + "/auth",
			TokenURL: realmBase + "/token",
		},
		Scopes:      []string{"openid", "email", "profile"},
		PKCE:        true,
		UserInfoURL: realmBase + "/userinfo",
		NormalizeUser: func(raw map[string]any) map[string]any {
			return map[string]any{
				"id":    raw["sub"],
				"name":  raw["name"],
				"email": raw["email"],
			}
		},
	}
}

// Lookup returns the descriptor registered under name, for providers
// that need no extra construction arguments.
func Lookup(name string) (Descriptor, bool) {
	switch strings.ToLower(name) {
	case "google":
		return Google(), true
	case "github":
		return GitHub(), true
	case "gitlab":
		return GitLab(), true
	case "microsoft":
		return Microsoft(), true
	case "discord":
		return Discord(), true
	case "facebook":
		return Facebook(), true
	case "spotify":
		return Spotify(), true
	default:
		return Descriptor{}, false
	}
}
