package util

import (
	"bytes"
	"testing"
)

func TestRandomBytes(t *testing.T) {
	b1, err := RandomBytes(32)
	if err != nil {
		t.Fatalf("RandomBytes failed: %v", err)
	}
	b2, err := RandomBytes(32)
	if err != nil {
		t.Fatalf("RandomBytes failed: %v", err)
	}
	if len(b1) != 32 {
		t.Errorf("expected 32 bytes, got %d", len(b1))
	}
	if bytes.Equal(b1, b2) {
		t.Error("two random draws should not be equal")
	}
}

func TestBase64URLRoundTrip(t *testing.T) {
	in := []byte{0xff, 0xfe, 0x00, 0x01, 0x7f}
	enc := Base64URLEncode(in)
	for _, c := range enc {
		if c == '+' || c == '/' || c == '=' {
			t.Errorf("encoding contains non-URL-safe character %q", c)
		}
	}
	out, err := Base64URLDecode(enc)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if !bytes.Equal(in, out) {
		t.Error("round trip mismatch")
	}
}

func TestSHA256Deterministic(t *testing.T) {
	a := SHA256([]byte("verifier"))
	b := SHA256([]byte("verifier"))
	if !bytes.Equal(a, b) {
		t.Error("SHA256 should be deterministic")
	}
	if len(a) != 32 {
		t.Errorf("expected 32-byte digest, got %d", len(a))
	}
}

func TestEncryptDecryptAES(t *testing.T) {
	key := MustRandomBytes(AESKeySize)
	plain := []byte(`{"user":{"id":1}}`)
	aad := []byte("v1")

	ct, err := EncryptAES(plain, key, aad)
	if err != nil {
		t.Fatalf("encrypt failed: %v", err)
	}

	out, err := DecryptAES(ct, key, aad)
	if err != nil {
		t.Fatalf("decrypt failed: %v", err)
	}
	if !bytes.Equal(plain, out) {
		t.Error("round trip mismatch")
	}

	// Wrong key must fail.
	otherKey := MustRandomBytes(AESKeySize)
	if _, err := DecryptAES(ct, otherKey, aad); err == nil {
		t.Error("decrypting with wrong key should fail")
	}

	// One flipped bit must fail.
	ct[len(ct)-1] ^= 0x01
	if _, err := DecryptAES(ct, key, aad); err == nil {
		t.Error("decrypting corrupted ciphertext should fail")
	}
}

func TestDecryptAESWrongAAD(t *testing.T) {
	key := MustRandomBytes(AESKeySize)
	ct, err := EncryptAES([]byte("data"), key, []byte("v1"))
	if err != nil {
		t.Fatalf("encrypt failed: %v", err)
	}
	if _, err := DecryptAES(ct, key, []byte("v2")); err == nil {
		t.Error("decrypting with different AAD should fail")
	}
}

func TestHKDFDeterministic(t *testing.T) {
	k1, err := HKDF([]byte("password"), nil, []byte("info"))
	if err != nil {
		t.Fatalf("HKDF failed: %v", err)
	}
	k2, err := HKDF([]byte("password"), nil, []byte("info"))
	if err != nil {
		t.Fatalf("HKDF failed: %v", err)
	}
	if !bytes.Equal(k1, k2) {
		t.Error("HKDF should be deterministic for same inputs")
	}
	k3, _ := HKDF([]byte("password"), nil, []byte("other"))
	if bytes.Equal(k1, k3) {
		t.Error("different info should produce different keys")
	}
}

func TestNormalize(t *testing.T) {
	// U+FB01 LATIN SMALL LIGATURE FI decomposes to "fi" under NFKD.
	if Normalize("ﬁ") != "fi" {
		t.Error("NFKD normalization not applied")
	}
}
