package webauthn

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	wa "github.com/go-webauthn/webauthn/webauthn"

	"github.com/jmcleod/authseal/internal/util"
	"github.com/jmcleod/authseal/singleuse"
)

const (
	defaultChallengeTTL = time.Minute
	maxBodySize         = 1 << 20
	maxNameLen          = 256
	attemptKeyPrefix    = "webauthn:"
)

// StoreFactory builds the single-use store holding pending challenges
// for one request/response pair.
type StoreFactory func(w http.ResponseWriter, r *http.Request) (singleuse.Store, error)

// ErrorHandler renders a ceremony failure. It owns the response.
type ErrorHandler func(w http.ResponseWriter, r *http.Request, err *Error)

// Config is shared by the registration and authentication engines.
type Config struct {
	// RPDisplayName is shown by the authenticator UI. Defaults to the
	// request hostname.
	RPDisplayName string

	// ChallengeTTL bounds how long a started ceremony stays verifiable
	// (default one minute).
	ChallengeTTL time.Duration

	// CookiePassword seals the default cookie-backed challenge store.
	CookiePassword string

	// Stores overrides the challenge store factory.
	Stores StoreFactory

	// Logger for ceremony events. Defaults to JSON on stderr.
	Logger *slog.Logger
}

func (c *Config) withDefaults() (Config, error) {
	out := *c
	if out.ChallengeTTL <= 0 {
		out.ChallengeTTL = defaultChallengeTTL
	}
	if out.Stores == nil {
		if out.CookiePassword == "" {
			return out, errors.New("webauthn: cookie password is required for the default challenge store")
		}
		password := out.CookiePassword
		out.Stores = func(w http.ResponseWriter, r *http.Request) (singleuse.Store, error) {
			return singleuse.NewCookieStore(w, r, password)
		}
	}
	if out.Logger == nil {
		out.Logger = slog.New(slog.NewJSONHandler(os.Stderr, nil))
	}
	return out, nil
}

// relyingParty builds the go-webauthn instance for the live request. The
// RP ID and origin come from the request itself, so one engine serves
// every hostname it is deployed behind.
func (c Config) relyingParty(r *http.Request) (*wa.WebAuthn, error) {
	name := c.RPDisplayName
	if name == "" {
		name = util.RequestHostname(r)
	}
	return wa.New(&wa.Config{
		RPDisplayName: name,
		RPID:          util.RequestHostname(r),
		RPOrigins:     []string{util.RequestOrigin(r)},
	})
}

// attempt is the challenge-store payload for one pending ceremony.
type attempt struct {
	Session     wa.SessionData `json:"session"`
	UserName    string         `json:"userName,omitempty"`
	DisplayName string         `json:"displayName,omitempty"`
}

func storeAttempt(ctx context.Context, store singleuse.Store, attemptID string, att attempt, ttl time.Duration) error {
	raw, err := json.Marshal(att)
	if err != nil {
		return err
	}
	return store.Put(ctx, attemptKeyPrefix+attemptID, raw, ttl)
}

// takeAttempt consumes the pending ceremony for attemptID, translating
// store failures into typed ceremony errors.
func takeAttempt(ctx context.Context, store singleuse.Store, attemptID string) (attempt, *Error) {
	raw, err := store.TakeOnce(ctx, attemptKeyPrefix+attemptID)
	if err != nil {
		if errors.Is(err, singleuse.ErrExpired) {
			return attempt{}, &Error{Kind: KindExpiredAttempt, Message: "ceremony attempt expired", Err: err}
		}
		return attempt{}, &Error{Kind: KindVerification, Message: "unknown or already used attempt", Err: err}
	}
	var att attempt
	if err := json.Unmarshal(raw, &att); err != nil {
		return attempt{}, &Error{Kind: KindVerification, Message: "corrupted attempt state", Err: err}
	}
	return att, nil
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func respondError(w http.ResponseWriter, _ *http.Request, werr *Error) {
	writeJSON(w, werr.Status(), map[string]string{
		"error":   werr.Kind.String(),
		"message": werr.Message,
	})
}
