package shared

import "github.com/google/uuid"

// NewID returns a fresh random identifier (a UUID string).
func NewID() string {
	return uuid.NewString()
}
