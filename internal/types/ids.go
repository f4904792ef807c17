package types

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// SessionID identifies one in-progress edit session (UUIDv7).
type SessionID string

// NewSessionID generates a UUIDv7 session identifier.
// Panics on clock regression (uuid.Must); acceptable for ID generation.
func NewSessionID() SessionID {
	return SessionID(uuid.Must(uuid.NewV7()).String())
}

// ParseSessionID validates and converts a string to SessionID.
func ParseSessionID(s string) (SessionID, error) {
	if _, err := uuid.Parse(s); err != nil {
		return "", err
	}
	return SessionID(s), nil
}

// SessionIDTime extracts the timestamp embedded in a UUIDv7 session ID.
// Returns zero time for invalid UUIDs; caller should check IsZero().
func SessionIDTime(id SessionID) time.Time {
	u, err := uuid.Parse(string(id))
	if err != nil {
		return time.Time{}
	}
	sec, nsec := u.Time().UnixTime()
	return time.Unix(sec, nsec)
}

// ParseEntityID parses a stored-expression operand. Stored IDs are positive
// decimal integers without sign or leading zeros, so every ID has exactly one
// textual form and stored strings compare byte for byte.
func ParseEntityID(s string) (int64, bool) {
	if s == "" || strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return 0, false
	}
	if len(s) > 1 && s[0] == '0' {
		return 0, false
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// FormatEntityID renders an operand ID for stored expressions.
func FormatEntityID(id int64) string {
	return strconv.FormatInt(id, 10)
}
