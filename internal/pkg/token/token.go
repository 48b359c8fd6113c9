// Package token issues confirmation secrets and signed management tokens for subscribers.
package token

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// confirmBytes is the amount of randomness in a confirmation token (256 bits).
const confirmBytes = 32

var (
	ErrMissingSecret = errors.New("token: signing secret is not configured")
	ErrMalformed     = errors.New("token: malformed management token")
	ErrBadSignature  = errors.New("token: management token signature mismatch")
)

// NewConfirmToken returns a fresh plaintext confirmation token and its hash.
// Only the hash may be persisted.
func NewConfirmToken() (plain string, hash string, err error) {
	buf := make([]byte, confirmBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", "", fmt.Errorf("token: read random: %w", err)
	}
	plain = base64.RawURLEncoding.EncodeToString(buf)
	return plain, Hash(plain), nil
}

// Hash is the one-way digest stored for a confirmation token.
func Hash(plain string) string {
	sum := sha256.Sum256([]byte(plain))
	return hex.EncodeToString(sum[:])
}

// Signer produces and checks "<id>.<signature>" management tokens.
type Signer struct {
	secret []byte
}

// NewSigner fails when secret is empty; there is no fallback key.
func NewSigner(secret string) (*Signer, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, ErrMissingSecret
	}
	return &Signer{secret: []byte(secret)}, nil
}

func (s *Signer) signature(id string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(id))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// Sign binds id to the signer's secret.
func (s *Signer) Sign(id string) (string, error) {
	if s == nil || len(s.secret) == 0 {
		return "", ErrMissingSecret
	}
	if id == "" || strings.Contains(id, ".") {
		return "", ErrMalformed
	}
	return id + "." + s.signature(id), nil
}

// Verify returns the subscriber id embedded in a valid token.
func (s *Signer) Verify(tok string) (string, error) {
	if s == nil || len(s.secret) == 0 {
		return "", ErrMissingSecret
	}
	id, sig, ok := strings.Cut(strings.TrimSpace(tok), ".")
	if !ok || id == "" || sig == "" || strings.Contains(sig, ".") {
		return "", ErrMalformed
	}
	expected := s.signature(id)
	if len(sig) != len(expected) || subtle.ConstantTimeCompare([]byte(sig), []byte(expected)) != 1 {
		return "", ErrBadSignature
	}
	return id, nil
}
