package oauth

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func oauth2Endpoint(base string) oauth2.Endpoint {
	return oauth2.Endpoint{
		AuthURL:   base + "/authorize",
		TokenURL:  base + "/token",
		AuthStyle: oauth2.AuthStyleInParams,
	}
}

const testCookiePassword = "oauth-flow-test-password-0123456789"

// fakeProvider is a canned identity provider: a token endpoint that
// records every exchange and a user-info endpoint serving a fixed
// profile.
type fakeProvider struct {
	server     *httptest.Server
	tokenCalls atomic.Int64
	lastCode   atomic.Value
	lastVerif  atomic.Value
}

func newFakeProvider(t *testing.T) *fakeProvider {
	t.Helper()
	p := &fakeProvider{}
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		p.tokenCalls.Add(1)
		require.NoError(t, r.ParseForm())
		p.lastCode.Store(r.FormValue("code"))
		p.lastVerif.Store(r.FormValue("code_verifier"))
		if r.FormValue("code") != "good-code" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"test-access-token","token_type":"Bearer"}`))
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer test-access-token", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"sub":"user-42","name":"Pat","email":"pat@example.com","extra":"kept-raw"}`))
	})
	p.server = httptest.NewServer(mux)
	t.Cleanup(p.server.Close)
	return p
}

func (p *fakeProvider) descriptor(pkce bool) Descriptor {
	return Descriptor{
		Name:        "testprov",
		Endpoint:    oauth2Endpoint(p.server.URL),
		PKCE:        pkce,
		Scopes:      []string{"profile"},
		UserInfoURL: p.server.URL + "/userinfo",
		NormalizeUser: func(raw map[string]any) map[string]any {
			return map[string]any{
				"id":    raw["sub"],
				"name":  raw["name"],
				"email": raw["email"],
			}
		},
	}
}

func newTestFlow(t *testing.T, p *fakeProvider, pkce bool, onOK SuccessHandler) *Flow {
	t.Helper()
	if onOK == nil {
		onOK = func(w http.ResponseWriter, _ *http.Request, _ Result) {
			w.WriteHeader(http.StatusNoContent)
		}
	}
	f, err := New(p.descriptor(pkce),
		Credentials{ClientID: "cid", ClientSecret: "secret", RedirectURL: "https://app.example.com/auth/testprov"},
		testCookiePassword, onOK,
		WithHTTPClient(p.server.Client()))
	require.NoError(t, err)
	return f
}

// startFlow performs the first leg and returns the redirect URL plus the
// cookies the browser would hold afterwards.
func startFlow(t *testing.T, f *Flow) (*url.URL, []*http.Cookie) {
	t.Helper()
	rec := httptest.NewRecorder()
	f.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/auth/testprov", nil))
	require.Equal(t, http.StatusFound, rec.Code)
	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	return loc, rec.Result().Cookies()
}

func callbackRequest(state string, cookies []*http.Cookie) *http.Request {
	r := httptest.NewRequest(http.MethodGet,
		"/auth/testprov?code=good-code&state="+url.QueryEscape(state), nil)
	for _, c := range cookies {
		if c.MaxAge >= 0 {
			r.AddCookie(c)
		}
	}
	return r
}

func TestStartRedirectCarriesStateAndChallenge(t *testing.T) {
	p := newFakeProvider(t)
	f := newTestFlow(t, p, true, nil)

	loc, cookies := startFlow(t, f)

	// ---- the authorize URL targets the provider with full PKCE ----
	assert.True(t, strings.HasPrefix(loc.String(), p.server.URL+"/authorize"))
	q := loc.Query()
	assert.Equal(t, "cid", q.Get("client_id"))
	assert.Equal(t, "code", q.Get("response_type"))
	assert.NotEmpty(t, q.Get("state"))
	assert.NotEmpty(t, q.Get("code_challenge"))
	assert.Equal(t, "S256", q.Get("code_challenge_method"))

	// ---- state and verifier each persist in their own sealed cookie ----
	require.Len(t, cookies, 2)
	names := []string{cookies[0].Name, cookies[1].Name}
	assert.Contains(t, names, "authseal-oauth-testprov-state")
	assert.Contains(t, names, "authseal-oauth-testprov-verifier")
	for _, c := range cookies {
		assert.True(t, c.HttpOnly)
		assert.NotContains(t, c.Value, q.Get("state"), "state must not be readable from the cookie")
	}
}

func TestCallbackCompletesAndNormalizesUser(t *testing.T) {
	p := newFakeProvider(t)
	var got Result
	f := newTestFlow(t, p, true, func(w http.ResponseWriter, _ *http.Request, res Result) {
		got = res
		w.WriteHeader(http.StatusNoContent)
	})

	loc, cookies := startFlow(t, f)
	rec := httptest.NewRecorder()
	f.ServeHTTP(rec, callbackRequest(loc.Query().Get("state"), cookies))

	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, int64(1), p.tokenCalls.Load())
	assert.Equal(t, "testprov", got.Provider)
	assert.Equal(t, "test-access-token", got.Token.AccessToken)
	assert.Equal(t, map[string]any{"id": "user-42", "name": "Pat", "email": "pat@example.com"}, got.User)
	assert.Equal(t, "kept-raw", got.RawUser["extra"])
}

func TestCallbackRejectsWrongStateBeforeExchange(t *testing.T) {
	p := newFakeProvider(t)
	f := newTestFlow(t, p, true, nil)

	_, cookies := startFlow(t, f)
	rec := httptest.NewRecorder()
	f.ServeHTTP(rec, callbackRequest("forged-state-value", cookies))

	// ---- rejected without ever contacting the token endpoint ----
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, int64(0), p.tokenCalls.Load())

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "invalid_state", body["error"])
}

func TestCallbackWithoutPendingAuthorization(t *testing.T) {
	p := newFakeProvider(t)
	f := newTestFlow(t, p, true, nil)

	rec := httptest.NewRecorder()
	f.ServeHTTP(rec, callbackRequest("whatever", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, int64(0), p.tokenCalls.Load())
}

func TestStateIsSingleUse(t *testing.T) {
	p := newFakeProvider(t)
	f := newTestFlow(t, p, true, nil)

	loc, cookies := startFlow(t, f)
	state := loc.Query().Get("state")

	first := httptest.NewRecorder()
	f.ServeHTTP(first, callbackRequest(state, cookies))
	require.Equal(t, http.StatusNoContent, first.Code)

	// The browser no longer holds the state cookie after the first
	// callback, so a replayed redirect URL finds nothing to match.
	second := httptest.NewRecorder()
	f.ServeHTTP(second, callbackRequest(state, nil))
	assert.Equal(t, http.StatusUnauthorized, second.Code)
	assert.Equal(t, int64(1), p.tokenCalls.Load())
}

func TestExchangeSendsMatchingVerifier(t *testing.T) {
	p := newFakeProvider(t)
	f := newTestFlow(t, p, true, nil)

	loc, cookies := startFlow(t, f)
	challenge := loc.Query().Get("code_challenge")

	rec := httptest.NewRecorder()
	f.ServeHTTP(rec, callbackRequest(loc.Query().Get("state"), cookies))
	require.Equal(t, http.StatusNoContent, rec.Code)

	// ---- S256(code_verifier) from the exchange equals the challenge ----
	verifier := p.lastVerif.Load().(string)
	require.NotEmpty(t, verifier)
	sum := sha256.Sum256([]byte(verifier))
	assert.Equal(t, challenge, base64.RawURLEncoding.EncodeToString(sum[:]))
}

func TestProviderErrorShortCircuits(t *testing.T) {
	p := newFakeProvider(t)
	f := newTestFlow(t, p, true, nil)

	rec := httptest.NewRecorder()
	f.ServeHTTP(rec, httptest.NewRequest(http.MethodGet,
		"/auth/testprov?error=access_denied&error_description=user+said+no", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, int64(0), p.tokenCalls.Load())

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "provider_error", body["error"])
}

func TestTokenExchangeFailureIsClassified(t *testing.T) {
	p := newFakeProvider(t)
	f := newTestFlow(t, p, true, nil)

	loc, cookies := startFlow(t, f)
	r := httptest.NewRequest(http.MethodGet,
		"/auth/testprov?code=bad-code&state="+url.QueryEscape(loc.Query().Get("state")), nil)
	for _, c := range cookies {
		r.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	f.ServeHTTP(rec, r)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, int64(1), p.tokenCalls.Load())

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "token_exchange_error", body["error"])
}

func TestMissingCredentials(t *testing.T) {
	p := newFakeProvider(t)
	f, err := New(p.descriptor(false), Credentials{}, testCookiePassword,
		func(w http.ResponseWriter, _ *http.Request, _ Result) {})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	f.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/auth/testprov", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestNonPKCEFlowOmitsChallenge(t *testing.T) {
	p := newFakeProvider(t)
	f := newTestFlow(t, p, false, nil)

	loc, cookies := startFlow(t, f)
	assert.Empty(t, loc.Query().Get("code_challenge"))
	require.Len(t, cookies, 1)
	assert.Equal(t, "authseal-oauth-testprov-state", cookies[0].Name)

	rec := httptest.NewRecorder()
	f.ServeHTTP(rec, callbackRequest(loc.Query().Get("state"), cookies))
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, p.lastVerif.Load().(string))
}

func TestCustomErrorHandler(t *testing.T) {
	p := newFakeProvider(t)
	f, err := New(p.descriptor(true),
		Credentials{ClientID: "cid", ClientSecret: "secret"},
		testCookiePassword,
		func(w http.ResponseWriter, _ *http.Request, _ Result) {},
		WithErrorHandler(func(w http.ResponseWriter, _ *http.Request, ferr *Error) {
			w.Header().Set("Location", "/login?error="+ferr.Kind.String())
			w.WriteHeader(http.StatusSeeOther)
		}))
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	f.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/auth/testprov?error=access_denied", nil))

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login?error=provider_error", rec.Header().Get("Location"))
}

func TestLookupKnowsBuiltinProviders(t *testing.T) {
	for _, name := range []string{"google", "github", "gitlab", "microsoft", "discord", "facebook", "spotify"} {
		d, ok := Lookup(name)
		require.True(t, ok, name)
		assert.Equal(t, name, d.Name)
		assert.NotEmpty(t, d.Endpoint.AuthURL, name)
		assert.NotEmpty(t, d.Endpoint.TokenURL, name)
	}
	_, ok := Lookup("nope")
	assert.False(t, ok)
}
