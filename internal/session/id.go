package session

import "github.com/google/uuid"

// NewID returns a random session identifier
func NewID() string {
	return uuid.NewString()
}
