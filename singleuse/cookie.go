package singleuse

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/jmcleod/authseal/internal/seal"
	"github.com/jmcleod/authseal/internal/util"
)

const defaultCookiePrefix = "authseal-"

// CookieStore is a Store scoped to one request/response pair, carried
// entirely in sealed short-TTL cookies. Each key maps to one cookie; the
// sealed payload embeds its own expiry, so a client cannot stretch the TTL
// by replaying an old cookie. TakeOnce expires the cookie on the response,
// which is the strongest "delete" available in a cookie transport; true
// consume-once atomicity under racing requests requires an external Store
// such as the redis implementation.
type CookieStore struct {
	w        http.ResponseWriter
	r        *http.Request
	sealer   *seal.Sealer
	prefix   string
	path     string
	consumed map[string]bool
}

var _ Store = (*CookieStore)(nil)

// CookieOption configures a CookieStore.
type CookieOption func(*CookieStore)

// WithCookiePrefix overrides the cookie name prefix.
func WithCookiePrefix(prefix string) CookieOption {
	return func(s *CookieStore) {
		s.prefix = prefix
	}
}

// WithCookiePath overrides the cookie path (default "/").
func WithCookiePath(path string) CookieOption {
	return func(s *CookieStore) {
		s.path = path
	}
}

// NewCookieStore creates a Store over cookies on the given request and
// response, sealed under the provided password.
func NewCookieStore(w http.ResponseWriter, r *http.Request, password string, opts ...CookieOption) (*CookieStore, error) {
	sealer, err := seal.New(password, "authseal:singleuse:v1")
	if err != nil {
		return nil, err
	}
	s := &CookieStore{
		w:        w,
		r:        r,
		sealer:   sealer,
		prefix:   defaultCookiePrefix,
		path:     "/",
		consumed: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *CookieStore) Put(_ context.Context, key string, value []byte, ttl time.Duration) error {
	raw, err := encodeEntry(value, ttl)
	if err != nil {
		return err
	}
	sealed, err := s.sealer.Seal(raw)
	if err != nil {
		return err
	}
	http.SetCookie(s.w, &http.Cookie{
		Name:     s.cookieName(key),
		Value:    sealed,
		Path:     s.path,
		MaxAge:   int(ttl / time.Second),
		HttpOnly: true,
		Secure:   util.RequestIsSecure(s.r),
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

func (s *CookieStore) TakeOnce(_ context.Context, key string) ([]byte, error) {
	name := s.cookieName(key)
	if s.consumed[name] {
		return nil, ErrNotFound
	}
	s.consumed[name] = true

	cookie, err := s.r.Cookie(name)
	if err != nil || cookie.Value == "" {
		return nil, ErrNotFound
	}

	// Expire the cookie on the response regardless of outcome: the entry
	// is consumed the moment it is read.
	http.SetCookie(s.w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     s.path,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   util.RequestIsSecure(s.r),
		SameSite: http.SameSiteLaxMode,
	})

	raw, err := s.sealer.Unseal(cookie.Value)
	if err != nil {
		return nil, ErrNotFound
	}
	return decodeEntry(raw)
}

// cookieName maps a store key to a cookie-safe name.
func (s *CookieStore) cookieName(key string) string {
	sanitized := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '-'
		}
	}, key)
	return s.prefix + sanitized
}
