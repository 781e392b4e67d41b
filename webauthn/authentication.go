package webauthn

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-webauthn/webauthn/protocol"
	wa "github.com/go-webauthn/webauthn/webauthn"

	"github.com/jmcleod/authseal/internal/uuid"
)

// LoginHandler completes a verified assertion. The caller persists
// info.NewCounter and writes the session. It owns the response.
type LoginHandler func(w http.ResponseWriter, r *http.Request, user User, info AuthenticationInfo)

// CredentialSource resolves credentials during authentication.
type CredentialSource interface {
	// CredentialsFor returns the credentials registered to an account,
	// used for the allow list of a named login.
	CredentialsFor(ctx context.Context, userName string) ([]Credential, error)

	// FindCredential resolves a discoverable (passkey) assertion: given
	// the credential ID and user handle asserted by the authenticator,
	// return the owning user with their credentials.
	FindCredential(ctx context.Context, credentialID, userHandle []byte) (User, error)
}

// Authentication drives the assertion ceremony on a single POST route.
// A begin body naming a user produces an allow-list login; one without a
// user name produces a discoverable (passkey) login.
type Authentication struct {
	cfg    Config
	source CredentialSource
	onOK   LoginHandler
	onErr  ErrorHandler
}

// AuthenticationOption configures an Authentication.
type AuthenticationOption func(*Authentication)

// WithAuthenticationErrorHandler replaces the default JSON error
// responder.
func WithAuthenticationErrorHandler(h ErrorHandler) AuthenticationOption {
	return func(a *Authentication) {
		a.onErr = h
	}
}

// NewAuthentication creates the authentication engine.
func NewAuthentication(cfg Config, source CredentialSource, onSuccess LoginHandler, opts ...AuthenticationOption) (*Authentication, error) {
	resolved, err := cfg.withDefaults()
	if err != nil {
		return nil, err
	}
	a := &Authentication{
		cfg:    resolved,
		source: source,
		onOK:   onSuccess,
		onErr:  respondError,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

type loginBeginResponse struct {
	AttemptID      string `json:"attemptId"`
	RequestOptions any    `json:"requestOptions"`
}

type loginRequest struct {
	Verify    bool            `json:"verify"`
	UserName  string          `json:"userName,omitempty"`
	AttemptID string          `json:"attemptId,omitempty"`
	Response  json.RawMessage `json:"response,omitempty"`
}

func (a *Authentication) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var body loginRequest
	if err := decodeJSON(w, r, &body); err != nil {
		a.fail(w, r, &Error{Kind: KindValidation, Message: "malformed request body", Err: err})
		return
	}
	if body.Verify {
		a.verify(w, r, body)
		return
	}
	a.begin(w, r, body)
}

func (a *Authentication) begin(w http.ResponseWriter, r *http.Request, body loginRequest) {
	rp, err := a.cfg.relyingParty(r)
	if err != nil {
		a.fail(w, r, &Error{Kind: KindMissingConfiguration, Message: "building relying party", Err: err})
		return
	}
	store, err := a.cfg.Stores(w, r)
	if err != nil {
		a.fail(w, r, &Error{Kind: KindMissingConfiguration, Message: "challenge store", Err: err})
		return
	}

	var (
		options *protocol.CredentialAssertion
		session *wa.SessionData
	)
	if body.UserName != "" {
		creds, err := a.source.CredentialsFor(r.Context(), body.UserName)
		if err != nil {
			a.fail(w, r, &Error{Kind: KindMissingConfiguration, Message: "listing credentials", Err: err})
			return
		}
		if len(creds) == 0 {
			a.fail(w, r, &Error{Kind: KindVerification, Message: "no credentials registered for this account"})
			return
		}
		options, session, err = rp.BeginLogin(libUser{User{Name: body.UserName, Credentials: creds}})
		if err != nil {
			a.fail(w, r, &Error{Kind: KindVerification, Message: "starting login", Err: err})
			return
		}
	} else {
		options, session, err = rp.BeginDiscoverableLogin()
		if err != nil {
			a.fail(w, r, &Error{Kind: KindVerification, Message: "starting discoverable login", Err: err})
			return
		}
	}

	attemptID := uuid.New()
	att := attempt{Session: *session, UserName: body.UserName}
	if err := storeAttempt(r.Context(), store, attemptID, att, a.cfg.ChallengeTTL); err != nil {
		a.fail(w, r, &Error{Kind: KindMissingConfiguration, Message: "persisting challenge", Err: err})
		return
	}

	a.cfg.Logger.LogAttrs(r.Context(), slog.LevelInfo, "login ceremony started",
		slog.String("attempt_id", attemptID),
		slog.Bool("discoverable", body.UserName == ""))
	writeJSON(w, http.StatusOK, loginBeginResponse{AttemptID: attemptID, RequestOptions: options})
}

func (a *Authentication) verify(w http.ResponseWriter, r *http.Request, body loginRequest) {
	if body.AttemptID == "" {
		a.fail(w, r, &Error{Kind: KindValidation, Message: "attemptId is required"})
		return
	}
	if len(body.Response) == 0 {
		a.fail(w, r, &Error{Kind: KindValidation, Message: "response is required"})
		return
	}
	rp, err := a.cfg.relyingParty(r)
	if err != nil {
		a.fail(w, r, &Error{Kind: KindMissingConfiguration, Message: "building relying party", Err: err})
		return
	}
	store, err := a.cfg.Stores(w, r)
	if err != nil {
		a.fail(w, r, &Error{Kind: KindMissingConfiguration, Message: "challenge store", Err: err})
		return
	}

	att, werr := takeAttempt(r.Context(), store, body.AttemptID)
	if werr != nil {
		a.fail(w, r, werr)
		return
	}

	var car protocol.CredentialAssertionResponse
	if err := json.Unmarshal(body.Response, &car); err != nil {
		a.fail(w, r, &Error{Kind: KindValidation, Message: "malformed authenticator response", Err: err})
		return
	}
	parsed, err := car.Parse()
	if err != nil {
		a.fail(w, r, &Error{Kind: KindValidation, Message: "malformed authenticator response", Err: err})
		return
	}

	var (
		user User
		cred *wa.Credential
	)
	if att.UserName != "" {
		creds, err := a.source.CredentialsFor(r.Context(), att.UserName)
		if err != nil {
			a.fail(w, r, &Error{Kind: KindMissingConfiguration, Message: "listing credentials", Err: err})
			return
		}
		user = User{Name: att.UserName, Credentials: creds}
		cred, err = rp.ValidateLogin(libUser{user}, att.Session, parsed)
		if err != nil {
			a.fail(w, r, &Error{Kind: KindVerification, Message: "assertion did not verify", Err: err})
			return
		}
	} else {
		handler := func(rawID, userHandle []byte) (wa.User, error) {
			found, err := a.source.FindCredential(r.Context(), rawID, userHandle)
			if err != nil {
				return nil, err
			}
			user = found
			return libUser{found}, nil
		}
		cred, err = rp.ValidateDiscoverableLogin(handler, att.Session, parsed)
		if err != nil {
			a.fail(w, r, &Error{Kind: KindVerification, Message: "assertion did not verify", Err: err})
			return
		}
	}

	info := AuthenticationInfo{
		CredentialID: cred.ID,
		UserName:     user.Name,
		NewCounter:   cred.Authenticator.SignCount,
		CloneWarning: cred.Authenticator.CloneWarning,
		UserHandle:   parsed.Response.UserHandle,
	}
	a.cfg.Logger.LogAttrs(r.Context(), slog.LevelInfo, "login ceremony completed",
		slog.String("attempt_id", body.AttemptID),
		slog.Bool("clone_warning", info.CloneWarning))
	a.onOK(w, r, user, info)
}

func (a *Authentication) fail(w http.ResponseWriter, r *http.Request, werr *Error) {
	a.cfg.Logger.LogAttrs(r.Context(), slog.LevelWarn, "login ceremony failed",
		slog.String("kind", werr.Kind.String()),
		slog.String("error", werr.Error()))
	a.onErr(w, r, werr)
}
