package auth

import "errors"

// Authentication errors. Both map to UNAUTHENTICATED and never reveal the
// configured token.
var (
	ErrMissingToken       = errors.New("bearer token required in authorization metadata")
	ErrInvalidTokenFormat = errors.New("invalid authorization format")
	ErrInvalidToken       = errors.New("invalid token")
)
