package cmd

import (
	"bytes"
	"context"
	"errors"
	"sync"

	"github.com/jmcleod/authseal/webauthn"
)

// credentialStore keeps registered passkeys in memory. The demo server
// has no user database; a real deployment implements
// webauthn.CredentialSource over its own storage.
type credentialStore struct {
	mu    sync.Mutex
	users map[string][]webauthn.Credential
}

func newCredentialStore() *credentialStore {
	return &credentialStore{users: make(map[string][]webauthn.Credential)}
}

func (s *credentialStore) add(userName string, cred webauthn.Credential) {
	s.mu.Lock()
	s.users[userName] = append(s.users[userName], cred)
	s.mu.Unlock()
}

func (s *credentialStore) setCounter(userName string, credentialID []byte, counter uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, c := range s.users[userName] {
		if bytes.Equal(c.ID, credentialID) {
			s.users[userName][i].Counter = counter
			return
		}
	}
}

func (s *credentialStore) CredentialsFor(_ context.Context, userName string) ([]webauthn.Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.users[userName], nil
}

func (s *credentialStore) FindCredential(_ context.Context, credentialID, _ []byte) (webauthn.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for name, creds := range s.users {
		for _, c := range creds {
			if bytes.Equal(c.ID, credentialID) {
				return webauthn.User{Name: name, Credentials: creds}, nil
			}
		}
	}
	return webauthn.User{}, errors.New("credential not registered")
}
