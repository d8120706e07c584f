// Package pairing implements the shared-secret TOTP/HMAC authenticator
// used to prove a connecting peer holds the secret exchanged out of band
// (typically via a QR code) during pairing.
package pairing

import (
	"crypto/hmac"
	"crypto/sha256"
	"errors"
)

// ErrAuth is returned by Verify when the supplied tag does not match.
var ErrAuth = errors.New("pairing: signature mismatch")

// Authenticator signs and verifies handshake messages using a secret
// established during pairing. The same secret is held by both peers;
// no key ever goes over the wire.
type Authenticator struct {
	secret []byte
}

// New builds an Authenticator around secret. The caller retains ownership
// of the slice it passes in; New makes its own copy.
func New(secret []byte) *Authenticator {
	cp := make([]byte, len(secret))
	copy(cp, secret)
	return &Authenticator{secret: cp}
}

// Generate returns the current TOTP code for this authenticator's secret,
// valid for the current 30-second window.
func (a *Authenticator) Generate() (string, error) {
	return totpNow(a.secret)
}

// Secret returns a copy of the underlying shared secret, for code that
// needs to persist or re-derive an Authenticator (storage.LevelDBStore).
func (a *Authenticator) Secret() []byte {
	cp := make([]byte, len(a.secret))
	copy(cp, a.secret)
	return cp
}

// Sign computes an HMAC-SHA256 tag over msg using key (the ASCII bytes of
// a TOTP code, per the handshake's key-derivation step).
func Sign(key, msg []byte) []byte {
	h := hmac.New(sha256.New, key)
	h.Write(msg)
	return h.Sum(nil)
}

// Verify reports whether tag is the correct HMAC-SHA256 signature of msg
// under key, using a constant-time comparison.
func Verify(key, msg, tag []byte) error {
	expected := Sign(key, msg)
	if !hmac.Equal(expected, tag) {
		return ErrAuth
	}
	return nil
}
