package uuid

import (
	"github.com/google/uuid"
)

// New generates a new UUID v4
func New() string {
	return uuid.New().String()
}

// Parse parses a UUID string
func Parse(s string) (uuid.UUID, error) {
	return uuid.Parse(s)
}
