package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
)

// ErrInvalidTokenLength indicates a non-positive token length was requested.
var ErrInvalidTokenLength = errors.New("token length must be positive")

// RandomTokens generates session tokens from crypto/rand rendered in the
// URL-safe base64 alphabet.
type RandomTokens struct{}

// Generate returns a printable random token of exactly length characters.
func (RandomTokens) Generate(ctx context.Context, length int) (string, error) {
	if length <= 0 {
		return "", ErrInvalidTokenLength
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	// Every 3 random bytes encode to 4 characters.
	buf := make([]byte, (length*3+3)/4)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	token := base64.RawURLEncoding.EncodeToString(buf)
	return token[:length], nil
}
