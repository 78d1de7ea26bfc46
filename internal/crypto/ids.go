package crypto

import (
	"strings"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// NewID generates a time-ordered UUID v7 string for users and messages.
func NewID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// RandomSuffix returns the 16-character random component of a fresh ULID,
// lowercased, for use in generated file names.
func RandomSuffix() string {
	return strings.ToLower(ulid.Make().String()[10:])
}
