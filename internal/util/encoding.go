package util

import (
	"encoding/base64"

	"golang.org/x/text/unicode/norm"
)

// Normalize applies NFKD normalization so that visually identical
// user-supplied strings compare equal regardless of input method.
func Normalize(s string) string {
	return norm.NFKD.String(s)
}

// Base64URLEncode encodes using the unpadded URL-safe alphabet, the
// encoding required for OAuth state/PKCE values and WebAuthn ids.
func Base64URLEncode(b []byte) string {
	return base64.RawURLEncoding.EncodeToString(b)
}

func Base64URLDecode(s string) ([]byte, error) {
	return base64.RawURLEncoding.DecodeString(s)
}
