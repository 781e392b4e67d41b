package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/jmcleod/authseal/internal/seal"
	"github.com/jmcleod/authseal/internal/util"
	"github.com/jmcleod/authseal/internal/uuid"
	"github.com/jmcleod/authseal/revocation"
)

const (
	defaultCookieName = "session"
	defaultMaxAge     = 7 * 24 * time.Hour

	// minPasswordLen is the minimum session password length. The
	// password seeds the HKDF that produces the AEAD key; enforcing a
	// floor keeps low-entropy secrets out of production.
	minPasswordLen = 32

	// maxCookieSize is the serialized-session budget. Browsers cap a
	// cookie at 4096 bytes including name and attributes; staying under
	// leaves room for both.
	maxCookieSize = 4096

	sealInfo = "authseal:session:v1"
)

// ErrTooLarge is returned when a session would exceed the cookie budget.
var ErrTooLarge = errors.New("session: serialized session exceeds cookie size budget")

// RevocationPolicy decides what an unreachable revocation store means for
// a session lookup. This is a deliberate, visible choice: FailOpen favors
// availability (an unreachable store revokes nothing), FailClosed favors
// strict revocation (an unreachable store rejects every session).
type RevocationPolicy int

const (
	FailOpen RevocationPolicy = iota
	FailClosed
)

// Config configures a Store.
type Config struct {
	// Password seals and unseals the session cookie. Required, at least
	// 32 characters.
	Password string

	// CookieName is the session cookie name (default "session").
	CookieName string

	// MaxAge is the session lifetime (default 7 days). The cookie
	// Max-Age matches it.
	MaxAge time.Duration

	// SameSite for the session cookie (default Lax).
	SameSite http.SameSite

	// CookiePath for the session cookie (default "/").
	CookiePath string

	// Revocation, when set, records cleared session identifiers and is
	// consulted on every read.
	Revocation revocation.Store

	// RevocationPolicy governs lookups when Revocation errors
	// (default FailOpen).
	RevocationPolicy RevocationPolicy
}

// Hook is a synchronous lifecycle callback. Fetch hooks may mutate the
// session (e.g. append computed fields) or abort with an error; clear
// hooks observe the session about to be destroyed.
type Hook func(r *http.Request, s Session) error

// Store reads and writes the sealed session cookie.
type Store struct {
	cfg        Config
	sealer     *seal.Sealer
	fetchHooks []Hook
	clearHooks []Hook
	logger     *slog.Logger
}

// Option configures the Store.
type Option func(*Store)

// WithLogger sets the structured logger for session lifecycle events.
// If not set, a default JSON logger writing to stderr is used.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// New creates a session Store.
func New(cfg Config, opts ...Option) (*Store, error) {
	if len(cfg.Password) < minPasswordLen {
		return nil, fmt.Errorf("session: password must be at least %d characters", minPasswordLen)
	}
	if cfg.CookieName == "" {
		cfg.CookieName = defaultCookieName
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = defaultMaxAge
	}
	if cfg.SameSite == 0 {
		cfg.SameSite = http.SameSiteLaxMode
	}
	if cfg.CookiePath == "" {
		cfg.CookiePath = "/"
	}
	sealer, err := seal.New(cfg.Password, sealInfo)
	if err != nil {
		return nil, err
	}
	st := &Store{
		cfg:    cfg,
		sealer: sealer,
	}
	for _, opt := range opts {
		opt(st)
	}
	if st.logger == nil {
		st.logger = slog.New(slog.NewJSONHandler(os.Stderr, nil))
	}
	return st, nil
}

// OnFetch registers a fetch hook. Hooks run in registration order when a
// caller requests the session for display; the first error aborts the
// remaining hooks and is surfaced instead of the session.
func (st *Store) OnFetch(h Hook) {
	st.fetchHooks = append(st.fetchHooks, h)
}

// OnClear registers a clear hook, run before the session is destroyed.
// A failing clear hook stops the remaining hooks but never blocks the
// clearing itself.
func (st *Store) OnClear(h Hook) {
	st.clearHooks = append(st.clearHooks, h)
}

// Get returns the session carried by the request. Every failure mode
// (missing cookie, corrupted or foreign ciphertext, rotated password,
// revoked identifier) yields an empty session, never an error. Unseal
// failures are deliberately indistinguishable from an absent session so
// the server leaks no cryptographic-failure signal and the client can
// simply re-authenticate.
func (st *Store) Get(r *http.Request) Session {
	cookie, err := r.Cookie(st.cfg.CookieName)
	if err != nil || cookie.Value == "" {
		return Session{}
	}
	plain, err := st.sealer.Unseal(cookie.Value)
	if err != nil {
		return Session{}
	}
	var s Session
	if err := json.Unmarshal(plain, &s); err != nil {
		return Session{}
	}
	if id := s.ID(); id != "" && st.IsRevoked(r.Context(), id) {
		return Session{}
	}
	return s
}

// Fetch returns the session after running the registered fetch hooks.
func (st *Store) Fetch(r *http.Request) (Session, error) {
	s := st.Get(r)
	for _, h := range st.fetchHooks {
		if err := h(r, s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Update deep-merges partial over the current session, reseals, and sets
// the cookie. A fresh session gets an identifier and a loggedInAt stamp.
func (st *Store) Update(w http.ResponseWriter, r *http.Request, partial Session) (Session, error) {
	current := st.Get(r)
	merged := Merge(current.Clone(), partial)
	return st.commit(w, r, merged)
}

// Replace overwrites the session with full, no merge.
func (st *Store) Replace(w http.ResponseWriter, r *http.Request, full Session) (Session, error) {
	return st.commit(w, r, full.Clone())
}

func (st *Store) commit(w http.ResponseWriter, r *http.Request, s Session) (Session, error) {
	if s.ID() == "" {
		s[fieldID] = uuid.New()
		if _, ok := s[FieldLoggedInAt]; !ok {
			s[FieldLoggedInAt] = time.Now().UnixMilli()
		}
	}
	plain, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("session: serializing: %w", err)
	}
	sealed, err := st.sealer.Seal(plain)
	if err != nil {
		return nil, err
	}
	if len(st.cfg.CookieName)+len(sealed) > maxCookieSize {
		return nil, ErrTooLarge
	}
	http.SetCookie(w, &http.Cookie{
		Name:     st.cfg.CookieName,
		Value:    sealed,
		Path:     st.cfg.CookiePath,
		MaxAge:   int(st.cfg.MaxAge / time.Second),
		HttpOnly: true,
		Secure:   util.RequestIsSecure(r),
		SameSite: st.cfg.SameSite,
	})
	return s, nil
}

// Clear destroys the session: clear hooks run first (their failure is
// reported but does not block the clearing), the cookie is deleted, and
// the session identifier is pushed to the revocation store if one is
// configured. Revocation write failures are surfaced to the caller.
func (st *Store) Clear(w http.ResponseWriter, r *http.Request) error {
	s := st.Get(r)

	var hookErr error
	for _, h := range st.clearHooks {
		if err := h(r, s); err != nil {
			hookErr = err
			break
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     st.cfg.CookieName,
		Value:    "",
		Path:     st.cfg.CookiePath,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   util.RequestIsSecure(r),
		SameSite: st.cfg.SameSite,
	})

	var revokeErr error
	if id := s.ID(); id != "" && st.cfg.Revocation != nil {
		revokeErr = st.cfg.Revocation.Revoke(r.Context(), id, time.Now())
		if revokeErr != nil {
			st.logger.LogAttrs(r.Context(), slog.LevelError, "session revocation write failed",
				slog.String("session_id", id),
				slog.String("error", revokeErr.Error()))
		} else {
			st.logger.LogAttrs(r.Context(), slog.LevelInfo, "session revoked",
				slog.String("session_id", id))
		}
	}

	return errors.Join(hookErr, revokeErr)
}

// IsRevoked reports whether the given session identifier has been
// revoked. With no revocation store configured it is always false. When
// the store cannot be consulted the configured RevocationPolicy decides:
// FailOpen treats the session as not revoked, FailClosed rejects it.
func (st *Store) IsRevoked(ctx context.Context, id string) bool {
	if st.cfg.Revocation == nil || id == "" {
		return false
	}
	revoked, err := st.cfg.Revocation.IsRevoked(ctx, id)
	if err != nil {
		st.logger.LogAttrs(ctx, slog.LevelWarn, "revocation store unavailable",
			slog.String("session_id", id),
			slog.String("policy", st.policyName()),
			slog.String("error", err.Error()))
		return st.cfg.RevocationPolicy == FailClosed
	}
	return revoked
}

func (st *Store) policyName() string {
	if st.cfg.RevocationPolicy == FailClosed {
		return "fail_closed"
	}
	return "fail_open"
}
