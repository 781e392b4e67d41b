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

// RegisterHandler completes a verified registration: typically it
// persists the credential and writes the session. It owns the response.
type RegisterHandler func(w http.ResponseWriter, r *http.Request, user User, cred Credential)

// CredentialLister returns the credentials already registered to an
// account, used to build the exclude list so an authenticator is not
// enrolled twice.
type CredentialLister func(ctx context.Context, userName string) ([]Credential, error)

// Registration drives the attestation ceremony on a single POST route.
// A body with verify=false starts a ceremony and returns creation
// options plus an attempt identifier; verify=true consumes the attempt
// and verifies the authenticator response against it.
type Registration struct {
	cfg   Config
	list  CredentialLister
	onOK  RegisterHandler
	onErr ErrorHandler
}

// RegistrationOption configures a Registration.
type RegistrationOption func(*Registration)

// WithExcludeCredentials supplies the lister backing the exclude list.
func WithExcludeCredentials(list CredentialLister) RegistrationOption {
	return func(reg *Registration) {
		reg.list = list
	}
}

// WithRegistrationErrorHandler replaces the default JSON error responder.
func WithRegistrationErrorHandler(h ErrorHandler) RegistrationOption {
	return func(reg *Registration) {
		reg.onErr = h
	}
}

// NewRegistration creates the registration engine.
func NewRegistration(cfg Config, onSuccess RegisterHandler, opts ...RegistrationOption) (*Registration, error) {
	resolved, err := cfg.withDefaults()
	if err != nil {
		return nil, err
	}
	reg := &Registration{
		cfg:   resolved,
		onOK:  onSuccess,
		onErr: respondError,
	}
	for _, opt := range opts {
		opt(reg)
	}
	return reg, nil
}

type registerRequest struct {
	Verify          bool            `json:"verify"`
	UserName        string          `json:"userName,omitempty"`
	UserDisplayName string          `json:"userDisplayName,omitempty"`
	AttemptID       string          `json:"attemptId,omitempty"`
	Response        json.RawMessage `json:"response,omitempty"`
}

type registrationBeginResponse struct {
	AttemptID       string `json:"attemptId"`
	CreationOptions any    `json:"creationOptions"`
}

func (reg *Registration) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var body registerRequest
	if err := decodeJSON(w, r, &body); err != nil {
		reg.fail(w, r, &Error{Kind: KindValidation, Message: "malformed request body", Err: err})
		return
	}
	if body.Verify {
		reg.verify(w, r, body)
		return
	}
	reg.begin(w, r, body)
}

func (reg *Registration) begin(w http.ResponseWriter, r *http.Request, body registerRequest) {
	if body.UserName == "" {
		reg.fail(w, r, &Error{Kind: KindValidation, Message: "userName is required"})
		return
	}
	if len(body.UserName) > maxNameLen || len(body.UserDisplayName) > maxNameLen {
		reg.fail(w, r, &Error{Kind: KindValidation, Message: "name exceeds maximum length"})
		return
	}
	rp, err := reg.cfg.relyingParty(r)
	if err != nil {
		reg.fail(w, r, &Error{Kind: KindMissingConfiguration, Message: "building relying party", Err: err})
		return
	}
	store, err := reg.cfg.Stores(w, r)
	if err != nil {
		reg.fail(w, r, &Error{Kind: KindMissingConfiguration, Message: "challenge store", Err: err})
		return
	}

	user := User{Name: body.UserName, DisplayName: body.UserDisplayName}
	var waOpts []wa.RegistrationOption
	if reg.list != nil {
		existing, err := reg.list(r.Context(), body.UserName)
		if err != nil {
			reg.fail(w, r, &Error{Kind: KindMissingConfiguration, Message: "listing credentials", Err: err})
			return
		}
		exclude := make([]protocol.CredentialDescriptor, len(existing))
		for i, c := range existing {
			exclude[i] = c.descriptor()
		}
		waOpts = append(waOpts, wa.WithExclusions(exclude))
	}

	options, session, err := rp.BeginRegistration(libUser{user}, waOpts...)
	if err != nil {
		reg.fail(w, r, &Error{Kind: KindVerification, Message: "starting registration", Err: err})
		return
	}

	attemptID := uuid.New()
	att := attempt{Session: *session, UserName: body.UserName, DisplayName: body.UserDisplayName}
	if err := storeAttempt(r.Context(), store, attemptID, att, reg.cfg.ChallengeTTL); err != nil {
		reg.fail(w, r, &Error{Kind: KindMissingConfiguration, Message: "persisting challenge", Err: err})
		return
	}

	reg.cfg.Logger.LogAttrs(r.Context(), slog.LevelInfo, "registration ceremony started",
		slog.String("attempt_id", attemptID))
	writeJSON(w, http.StatusOK, registrationBeginResponse{AttemptID: attemptID, CreationOptions: options})
}

func (reg *Registration) verify(w http.ResponseWriter, r *http.Request, body registerRequest) {
	if body.AttemptID == "" {
		reg.fail(w, r, &Error{Kind: KindValidation, Message: "attemptId is required"})
		return
	}
	if len(body.Response) == 0 {
		reg.fail(w, r, &Error{Kind: KindValidation, Message: "response is required"})
		return
	}
	rp, err := reg.cfg.relyingParty(r)
	if err != nil {
		reg.fail(w, r, &Error{Kind: KindMissingConfiguration, Message: "building relying party", Err: err})
		return
	}
	store, err := reg.cfg.Stores(w, r)
	if err != nil {
		reg.fail(w, r, &Error{Kind: KindMissingConfiguration, Message: "challenge store", Err: err})
		return
	}

	att, werr := takeAttempt(r.Context(), store, body.AttemptID)
	if werr != nil {
		reg.fail(w, r, werr)
		return
	}

	var ccr protocol.CredentialCreationResponse
	if err := json.Unmarshal(body.Response, &ccr); err != nil {
		reg.fail(w, r, &Error{Kind: KindValidation, Message: "malformed authenticator response", Err: err})
		return
	}
	parsed, err := ccr.Parse()
	if err != nil {
		reg.fail(w, r, &Error{Kind: KindValidation, Message: "malformed authenticator response", Err: err})
		return
	}

	user := User{Name: att.UserName, DisplayName: att.DisplayName}
	cred, err := rp.CreateCredential(libUser{user}, att.Session, parsed)
	if err != nil {
		reg.fail(w, r, &Error{Kind: KindVerification, Message: "attestation did not verify", Err: err})
		return
	}

	reg.cfg.Logger.LogAttrs(r.Context(), slog.LevelInfo, "registration ceremony completed",
		slog.String("attempt_id", body.AttemptID))
	reg.onOK(w, r, user, fromLibCredential(cred))
}

func (reg *Registration) fail(w http.ResponseWriter, r *http.Request, werr *Error) {
	reg.cfg.Logger.LogAttrs(r.Context(), slog.LevelWarn, "registration ceremony failed",
		slog.String("kind", werr.Kind.String()),
		slog.String("error", werr.Error()))
	reg.onErr(w, r, werr)
}
