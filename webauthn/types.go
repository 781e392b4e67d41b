// Package webauthn implements stateless-server WebAuthn registration and
// authentication ceremonies. The relying party is constructed per request
// from the live origin, pending challenges live in a single-use store
// (sealed cookies by default), and credential persistence stays with the
// caller through small callback interfaces.
package webauthn

import (
	"github.com/go-webauthn/webauthn/protocol"
	wa "github.com/go-webauthn/webauthn/webauthn"

	"github.com/jmcleod/authseal/internal/util"
)

// Credential is a registered authenticator key as the caller stores it.
type Credential struct {
	ID              []byte   `json:"id"`
	PublicKey       []byte   `json:"publicKey"`
	AttestationType string   `json:"attestationType,omitempty"`
	Transports      []string `json:"transports,omitempty"`
	Counter         uint32   `json:"counter"`
	BackedUp        bool     `json:"backedUp"`
}

// User identifies an account taking part in a ceremony.
type User struct {
	Name        string
	DisplayName string
	Credentials []Credential
}

// AuthenticationInfo describes a verified assertion. The caller must
// persist NewCounter to keep clone detection effective.
type AuthenticationInfo struct {
	CredentialID []byte
	UserName     string
	NewCounter   uint32
	CloneWarning bool
	UserHandle   []byte
}

// UserHandle derives the stable authenticator-side identifier for an
// account name. Hashing the normalized name keeps the handle constant
// across requests without a user database, and keeps the name itself off
// the authenticator.
func UserHandle(name string) []byte {
	return util.SHA256([]byte(util.Normalize(name)))
}

// libUser adapts User to the go-webauthn user interface.
type libUser struct {
	u User
}

func (l libUser) WebAuthnID() []byte {
	return UserHandle(l.u.Name)
}

func (l libUser) WebAuthnName() string {
	return l.u.Name
}

func (l libUser) WebAuthnDisplayName() string {
	if l.u.DisplayName != "" {
		return l.u.DisplayName
	}
	return l.u.Name
}

func (l libUser) WebAuthnCredentials() []wa.Credential {
	creds := make([]wa.Credential, len(l.u.Credentials))
	for i, c := range l.u.Credentials {
		creds[i] = c.toLib()
	}
	return creds
}

func (c Credential) toLib() wa.Credential {
	transports := make([]protocol.AuthenticatorTransport, len(c.Transports))
	for i, t := range c.Transports {
		transports[i] = protocol.AuthenticatorTransport(t)
	}
	return wa.Credential{
		ID:              c.ID,
		PublicKey:       c.PublicKey,
		AttestationType: c.AttestationType,
		Transport:       transports,
		Flags: wa.CredentialFlags{
			BackupState: c.BackedUp,
		},
		Authenticator: wa.Authenticator{
			SignCount: c.Counter,
		},
	}
}

func (c Credential) descriptor() protocol.CredentialDescriptor {
	transports := make([]protocol.AuthenticatorTransport, len(c.Transports))
	for i, t := range c.Transports {
		transports[i] = protocol.AuthenticatorTransport(t)
	}
	return protocol.CredentialDescriptor{
		Type:         protocol.PublicKeyCredentialType,
		CredentialID: c.ID,
		Transport:    transports,
	}
}

func fromLibCredential(cred *wa.Credential) Credential {
	transports := make([]string, len(cred.Transport))
	for i, t := range cred.Transport {
		transports[i] = string(t)
	}
	return Credential{
		ID:              cred.ID,
		PublicKey:       cred.PublicKey,
		AttestationType: cred.AttestationType,
		Transports:      transports,
		Counter:         cred.Authenticator.SignCount,
		BackedUp:        cred.Flags.BackupState,
	}
}
