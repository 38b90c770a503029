// Package verification implements the stateless email-confirmation token.
// A token is a reversible, tamper-evident encoding of the email under a
// purpose-scoped key; no database row tracks issued tokens, so a token stays
// valid until the protection key rotates.
package verification

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
)

// ErrInvalidToken is returned when a token is malformed, tampered with, or was
// produced under a different purpose context.
var ErrInvalidToken = errors.New("invalid verification token")

const purpose = "email-confirmation"

// Codec protects and resolves email-confirmation tokens with AES-256-GCM.
// The purpose string is bound as associated data, so tokens from any other
// protection context fail to resolve here.
type Codec struct {
	aead cipher.AEAD
}

// NewCodec derives a 256-bit key from the configured secret.
func NewCodec(secret string) (*Codec, error) {
	key := sha256.Sum256([]byte(purpose + ":" + secret))
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &Codec{aead: aead}, nil
}

// GenerateToken encodes the email into an opaque token. Encoding is
// non-deterministic (fresh nonce per call); resolution is deterministic.
func (c *Codec) GenerateToken(email string) (string, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	sealed := c.aead.Seal(nonce, nonce, []byte(email), []byte(purpose))
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// ResolveToken decodes a token back into the email it was bound to. Any
// single-byte mutation of the token fails with ErrInvalidToken.
func (c *Codec) ResolveToken(token string) (string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return "", ErrInvalidToken
	}
	ns := c.aead.NonceSize()
	if len(raw) < ns {
		return "", ErrInvalidToken
	}
	plain, err := c.aead.Open(nil, raw[:ns], raw[ns:], []byte(purpose))
	if err != nil {
		return "", ErrInvalidToken
	}
	return string(plain), nil
}
