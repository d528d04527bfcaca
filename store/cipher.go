package store

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/nacl/secretbox"
)

// ErrSessionCookieTampered is returned when a stored session-cookie blob
// fails authentication on decrypt — either the encryption key changed or
// the ciphertext was corrupted/tampered with.
var ErrSessionCookieTampered = errors.New("store: session cookie ciphertext invalid")

// SessionCipher seals and opens a target's session-cookie blob at rest.
// A nil SessionCipher leaves the field in plaintext, which is the default
// for callers that have not configured an encryption key (e.g. tests).
type SessionCipher struct {
	key *[32]byte
}

// NewSessionCipher builds a SessionCipher from a 32-byte key, typically
// derived from the `store.session_key_hex` configuration value.
func NewSessionCipher(key [32]byte) *SessionCipher {
	k := key
	return &SessionCipher{key: &k}
}

// seal encrypts plaintext into a base64-encoded "nonce || box" blob.
func (c *SessionCipher) seal(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}
	var nonce [24]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return "", fmt.Errorf("store: session cookie nonce: %w", err)
	}
	sealed := secretbox.Seal(nonce[:], []byte(plaintext), &nonce, c.key)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// open decrypts a blob produced by seal.
func (c *SessionCipher) open(blob string) (string, error) {
	if blob == "" {
		return "", nil
	}
	raw, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		return "", fmt.Errorf("store: session cookie decode: %w", err)
	}
	if len(raw) < 24 {
		return "", ErrSessionCookieTampered
	}
	var nonce [24]byte
	copy(nonce[:], raw[:24])
	plain, ok := secretbox.Open(nil, raw[24:], &nonce, c.key)
	if !ok {
		return "", ErrSessionCookieTampered
	}
	return string(plain), nil
}

// sealCookie applies s's configured cipher, if any, else passes through.
func (s *Store) sealCookie(plaintext string) (string, error) {
	if s.cipher == nil {
		return plaintext, nil
	}
	return s.cipher.seal(plaintext)
}

// openCookie reverses sealCookie.
func (s *Store) openCookie(blob string) (string, error) {
	if s.cipher == nil {
		return blob, nil
	}
	return s.cipher.open(blob)
}
