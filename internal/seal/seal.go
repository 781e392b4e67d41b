// Package seal implements the versioned sealed-blob format used for the
// session cookie and the short-lived single-use cookies. A sealed token is
//
//	v1.<base64url(nonce || AES-256-GCM ciphertext)>
//
// keyed by a key derived from the configured password via HKDF-SHA256.
// The version prefix is bound into the AEAD as associated data, so a token
// re-labelled with a different version fails authentication.
package seal

import (
	"errors"
	"strings"

	"github.com/jmcleod/authseal/internal/util"
)

const versionPrefix = "v1."

// ErrInvalid is returned for any token that cannot be opened: wrong key,
// corrupted ciphertext, unknown version, or malformed encoding. Callers
// deliberately get no more detail than that.
var ErrInvalid = errors.New("seal: invalid or unauthentic token")

// Sealer seals and unseals byte blobs under a password-derived key.
type Sealer struct {
	key []byte
	aad []byte
}

// New derives a sealing key from password. The info string namespaces the
// derived key so that, for example, session cookies and single-use cookies
// sealed under the same password cannot be swapped for one another.
func New(password, info string) (*Sealer, error) {
	if password == "" {
		return nil, errors.New("seal: password must not be empty")
	}
	key, err := util.HKDF([]byte(util.Normalize(password)), nil, []byte(info))
	if err != nil {
		return nil, err
	}
	return &Sealer{
		key: key,
		aad: []byte(versionPrefix),
	}, nil
}

// Seal encrypts plain and returns the versioned token.
func (s *Sealer) Seal(plain []byte) (string, error) {
	ct, err := util.EncryptAES(plain, s.key, s.aad)
	if err != nil {
		return "", err
	}
	return versionPrefix + util.Base64URLEncode(ct), nil
}

// Unseal opens a token produced by Seal. Any failure yields ErrInvalid.
func (s *Sealer) Unseal(token string) ([]byte, error) {
	if !strings.HasPrefix(token, versionPrefix) {
		return nil, ErrInvalid
	}
	ct, err := util.Base64URLDecode(strings.TrimPrefix(token, versionPrefix))
	if err != nil {
		return nil, ErrInvalid
	}
	plain, err := util.DecryptAES(ct, s.key, s.aad)
	if err != nil {
		return nil, ErrInvalid
	}
	return plain, nil
}
