package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"strings"
)

// ParseBearer extracts the token from "Bearer <token>".
// Returns ErrInvalidTokenFormat if format doesn't match.
func ParseBearer(header string) (string, error) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return "", ErrInvalidTokenFormat
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", ErrInvalidTokenFormat
	}
	return token, nil
}

// FormatBearer renders the authorization value for token.
func FormatBearer(token string) string {
	return "Bearer " + token
}

// Digest hashes token so comparisons run over fixed-length input.
func Digest(token string) []byte {
	sum := sha256.Sum256([]byte(token))
	return sum[:]
}

// VerifyDigest compares two digests in constant time.
func VerifyDigest(expected, computed []byte) bool {
	return hmac.Equal(expected, computed)
}
