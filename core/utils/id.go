package utils

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

const (
	runIDAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"
	RunIDLength   = 12
)

// NewRunID returns a short id used to correlate one batch sync across logs and audit rows.
func NewRunID() string {
	id, err := gonanoid.Generate(runIDAlphabet, RunIDLength)
	if err != nil {
		return ""
	}
	return id
}

// NewOAuthState returns n URL-safe random characters for the OAuth state parameter.
func NewOAuthState(n int) (string, error) {
	if n <= 0 {
		return "", fmt.Errorf("state length must be positive, got %d", n)
	}
	buf := make([]byte, base64.RawURLEncoding.DecodedLen(n)+1)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random state: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf)[:n], nil
}
