package utils

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/nacl/secretbox"
)

const (
	secretPrefix = "sb1:"
	nonceSize    = 24
)

var ErrSecretCorrupted = errors.New("secret: cannot decrypt value")

// SecretBox seals short secrets (OAuth tokens) for storage at rest.
// A nil *SecretBox passes values through unchanged.
type SecretBox struct {
	key [32]byte
}

// NewSecretBox derives a 32-byte key from passphrase. An empty passphrase yields nil.
func NewSecretBox(passphrase string) *SecretBox {
	if strings.TrimSpace(passphrase) == "" {
		return nil
	}
	return &SecretBox{key: sha256.Sum256([]byte(passphrase))}
}

func (b *SecretBox) Seal(plain string) (string, error) {
	if b == nil || plain == "" {
		return plain, nil
	}
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return "", fmt.Errorf("secret nonce: %w", err)
	}
	sealed := secretbox.Seal(nonce[:], []byte(plain), &nonce, &b.key)
	return secretPrefix + base64.RawStdEncoding.EncodeToString(sealed), nil
}

// Open reverses Seal. Values without the sealed prefix are returned as-is so rows
// written before encryption was enabled stay readable.
func (b *SecretBox) Open(stored string) (string, error) {
	if !strings.HasPrefix(stored, secretPrefix) {
		return stored, nil
	}
	if b == nil {
		return "", ErrSecretCorrupted
	}
	raw, err := base64.RawStdEncoding.DecodeString(strings.TrimPrefix(stored, secretPrefix))
	if err != nil || len(raw) < nonceSize+secretbox.Overhead {
		return "", ErrSecretCorrupted
	}
	var nonce [nonceSize]byte
	copy(nonce[:], raw[:nonceSize])
	plain, ok := secretbox.Open(nil, raw[nonceSize:], &nonce, &b.key)
	if !ok {
		return "", ErrSecretCorrupted
	}
	return string(plain), nil
}
