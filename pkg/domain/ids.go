package domain

import "github.com/google/uuid"

// NewID returns a fresh random identifier for blocks, projects and orders.
func NewID() string {
	return uuid.NewString()
}

// ValidID reports whether id parses as a UUID.
func ValidID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
