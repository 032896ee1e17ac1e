package core

import "github.com/google/uuid"

// NewRequestID generates a fresh request identifier.
func NewRequestID() string {
	return uuid.NewString()
}

// NewSessionID generates a fresh session identifier.
func NewSessionID() string {
	return uuid.NewString()
}
