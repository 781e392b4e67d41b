package oauth

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"golang.org/x/oauth2"

	"github.com/jmcleod/authseal/internal/util"
	"github.com/jmcleod/authseal/singleuse"
)

const (
	defaultStateTTL = 10 * time.Minute
	stateLen        = 16
	maxUserInfoBody = 1 << 20
)

// Result is handed to the success callback after a completed flow.
type Result struct {
	// User is the normalized profile produced by the descriptor.
	User map[string]any

	// RawUser is the unmodified user-info response.
	RawUser map[string]any

	// Token is the full token set from the exchange.
	Token *oauth2.Token

	// Provider is the descriptor name.
	Provider string
}

// SuccessHandler completes the flow: typically it writes the user into
// the session and redirects. It owns the response.
type SuccessHandler func(w http.ResponseWriter, r *http.Request, res Result)

// ErrorHandler renders a flow failure. It owns the response.
type ErrorHandler func(w http.ResponseWriter, r *http.Request, err *Error)

// StoreFactory builds the single-use store backing state and verifier
// persistence for one request/response pair.
type StoreFactory func(w http.ResponseWriter, r *http.Request) (singleuse.Store, error)

// Flow drives the authorization-code dance for one provider. It is an
// http.Handler serving both phases on a single route: a request without
// a code or error parameter starts the flow, a request carrying one
// completes it.
type Flow struct {
	desc     Descriptor
	creds    Credentials
	scopes   []string
	stateTTL time.Duration
	client   *http.Client
	stores   StoreFactory
	onOK     SuccessHandler
	onErr    ErrorHandler
	logger   *slog.Logger
}

// FlowOption configures a Flow.
type FlowOption func(*Flow)

// WithScopes replaces the descriptor's default scopes.
func WithScopes(scopes ...string) FlowOption {
	return func(f *Flow) {
		f.scopes = scopes
	}
}

// WithStateTTL overrides how long a pending authorization stays valid
// (default 10 minutes).
func WithStateTTL(ttl time.Duration) FlowOption {
	return func(f *Flow) {
		f.stateTTL = ttl
	}
}

// WithHTTPClient sets the client used for the token exchange and the
// user-info fetch. Tests inject a counting or canned transport here.
func WithHTTPClient(c *http.Client) FlowOption {
	return func(f *Flow) {
		f.client = c
	}
}

// WithStore overrides the single-use store factory. The default keeps
// state and verifier in sealed cookies; deployments with shared
// infrastructure can point this at redis.
func WithStore(factory StoreFactory) FlowOption {
	return func(f *Flow) {
		f.stores = factory
	}
}

// WithErrorHandler replaces the default JSON error responder.
func WithErrorHandler(h ErrorHandler) FlowOption {
	return func(f *Flow) {
		f.onErr = h
	}
}

// WithLogger sets the structured logger for flow events.
func WithLogger(logger *slog.Logger) FlowOption {
	return func(f *Flow) {
		f.logger = logger
	}
}

// New creates a Flow for the provider. cookiePassword seals the default
// cookie-backed state store; pass any non-empty password and override
// the store via WithStore if cookies are not wanted.
func New(desc Descriptor, creds Credentials, cookiePassword string, onSuccess SuccessHandler, opts ...FlowOption) (*Flow, error) {
	if desc.Name == "" {
		return nil, errors.New("oauth: descriptor has no name")
	}
	if onSuccess == nil {
		return nil, errors.New("oauth: success handler is required")
	}
	f := &Flow{
		desc:     desc,
		creds:    creds,
		scopes:   desc.Scopes,
		stateTTL: defaultStateTTL,
		onOK:     onSuccess,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.stores == nil {
		if cookiePassword == "" {
			return nil, errors.New("oauth: cookie password is required for the default state store")
		}
		f.stores = func(w http.ResponseWriter, r *http.Request) (singleuse.Store, error) {
			return singleuse.NewCookieStore(w, r, cookiePassword)
		}
	}
	if f.onErr == nil {
		f.onErr = respondError
	}
	if f.logger == nil {
		f.logger = slog.New(slog.NewJSONHandler(os.Stderr, nil))
	}
	return f, nil
}

// ServeHTTP dispatches between the two phases of the flow.
func (f *Flow) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if f.creds.ClientID == "" || f.creds.ClientSecret == "" {
		f.fail(w, r, &Error{
			Kind:     KindMissingConfiguration,
			Provider: f.desc.Name,
			Message:  "client credentials are not configured",
		})
		return
	}

	q := r.URL.Query()
	if errCode := q.Get("error"); errCode != "" {
		f.fail(w, r, &Error{
			Kind:     KindProviderError,
			Provider: f.desc.Name,
			Message:  fmt.Sprintf("provider returned %q: %s", errCode, q.Get("error_description")),
		})
		return
	}
	if q.Get("code") != "" {
		f.callback(w, r)
		return
	}
	f.start(w, r)
}

// start issues the redirect to the provider, persisting the CSRF state
// and, for PKCE providers, the code verifier.
func (f *Flow) start(w http.ResponseWriter, r *http.Request) {
	store, err := f.stores(w, r)
	if err != nil {
		f.fail(w, r, &Error{Kind: KindMissingConfiguration, Provider: f.desc.Name, Message: "state store", Err: err})
		return
	}

	state := util.Base64URLEncode(util.MustRandomBytes(stateLen))
	if err := store.Put(r.Context(), f.stateKey(), []byte(state), f.stateTTL); err != nil {
		f.fail(w, r, &Error{Kind: KindMissingConfiguration, Provider: f.desc.Name, Message: "persisting state", Err: err})
		return
	}

	authOpts := make([]oauth2.AuthCodeOption, 0, len(f.desc.AuthorizeParams)+1)
	for k, v := range f.desc.AuthorizeParams {
		authOpts = append(authOpts, oauth2.SetAuthURLParam(k, v))
	}
	if f.desc.PKCE {
		verifier := oauth2.GenerateVerifier()
		if err := store.Put(r.Context(), f.verifierKey(), []byte(verifier), f.stateTTL); err != nil {
			f.fail(w, r, &Error{Kind: KindMissingConfiguration, Provider: f.desc.Name, Message: "persisting verifier", Err: err})
			return
		}
		authOpts = append(authOpts, oauth2.S256ChallengeOption(verifier))
	}

	f.logger.LogAttrs(r.Context(), slog.LevelInfo, "authorization flow started",
		slog.String("provider", f.desc.Name))
	http.Redirect(w, r, f.config(r).AuthCodeURL(state, authOpts...), http.StatusFound)
}

// callback validates state, exchanges the code, and fetches the user.
// State is consumed before any network call so a forged or replayed
// callback never reaches the token endpoint.
func (f *Flow) callback(w http.ResponseWriter, r *http.Request) {
	store, err := f.stores(w, r)
	if err != nil {
		f.fail(w, r, &Error{Kind: KindMissingConfiguration, Provider: f.desc.Name, Message: "state store", Err: err})
		return
	}

	expected, err := store.TakeOnce(r.Context(), f.stateKey())
	if err != nil {
		msg := "no pending authorization for this client"
		if errors.Is(err, singleuse.ErrExpired) {
			msg = "authorization attempt expired"
		}
		f.fail(w, r, &Error{Kind: KindInvalidState, Provider: f.desc.Name, Message: msg, Err: err})
		return
	}
	got := r.URL.Query().Get("state")
	if subtle.ConstantTimeCompare(expected, []byte(got)) != 1 {
		f.fail(w, r, &Error{Kind: KindInvalidState, Provider: f.desc.Name, Message: "state parameter mismatch"})
		return
	}

	var exchangeOpts []oauth2.AuthCodeOption
	if f.desc.PKCE {
		verifier, err := store.TakeOnce(r.Context(), f.verifierKey())
		if err != nil {
			f.fail(w, r, &Error{Kind: KindInvalidState, Provider: f.desc.Name, Message: "code verifier missing", Err: err})
			return
		}
		exchangeOpts = append(exchangeOpts, oauth2.VerifierOption(string(verifier)))
	}

	ctx := r.Context()
	if f.client != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, f.client)
	}
	token, err := f.config(r).Exchange(ctx, r.URL.Query().Get("code"), exchangeOpts...)
	if err != nil {
		msg := "token endpoint unreachable"
		var re *oauth2.RetrieveError
		if errors.As(err, &re) {
			msg = fmt.Sprintf("token endpoint rejected the code: %s", re.ErrorCode)
		}
		f.fail(w, r, &Error{Kind: KindTokenExchange, Provider: f.desc.Name, Message: msg, Err: err})
		return
	}

	raw, err := f.fetchUser(ctx, token)
	if err != nil {
		f.fail(w, r, &Error{Kind: KindUserFetch, Provider: f.desc.Name, Message: "fetching user profile", Err: err})
		return
	}

	user := raw
	if f.desc.NormalizeUser != nil {
		user = f.desc.NormalizeUser(raw)
	}

	f.logger.LogAttrs(r.Context(), slog.LevelInfo, "authorization flow completed",
		slog.String("provider", f.desc.Name))
	f.onOK(w, r, Result{User: user, RawUser: raw, Token: token, Provider: f.desc.Name})
}

func (f *Flow) fetchUser(ctx context.Context, token *oauth2.Token) (map[string]any, error) {
	if f.desc.UserInfoURL == "" {
		return map[string]any{}, nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.desc.UserInfoURL, nil)
	if err != nil {
		return nil, err
	}
	token.SetAuthHeader(req)
	for k, v := range f.desc.UserInfoHeaders {
		req.Header.Set(k, v)
	}
	client := f.client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("user-info endpoint returned %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxUserInfoBody))
	if err != nil {
		return nil, err
	}
	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decoding user profile: %w", err)
	}
	return raw, nil
}

// config builds the oauth2 configuration with the redirect URL resolved
// against the live request when the credentials leave it empty.
func (f *Flow) config(r *http.Request) *oauth2.Config {
	redirect := f.creds.RedirectURL
	if redirect == "" {
		redirect = util.RequestOrigin(r) + r.URL.Path
	}
	return &oauth2.Config{
		ClientID:     f.creds.ClientID,
		ClientSecret: f.creds.ClientSecret,
		Endpoint:     f.desc.Endpoint,
		RedirectURL:  redirect,
		Scopes:       f.scopes,
	}
}

func (f *Flow) stateKey() string {
	return "oauth:" + f.desc.Name + ":state"
}

func (f *Flow) verifierKey() string {
	return "oauth:" + f.desc.Name + ":verifier"
}

func (f *Flow) fail(w http.ResponseWriter, r *http.Request, ferr *Error) {
	f.logger.LogAttrs(r.Context(), slog.LevelWarn, "authorization flow failed",
		slog.String("provider", ferr.Provider),
		slog.String("kind", ferr.Kind.String()),
		slog.String("error", ferr.Error()))
	f.onErr(w, r, ferr)
}

func respondError(w http.ResponseWriter, _ *http.Request, ferr *Error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(ferr.Status())
	json.NewEncoder(w).Encode(map[string]string{ //nolint:errcheck
		"error":    ferr.Kind.String(),
		"provider": ferr.Provider,
	})
}
