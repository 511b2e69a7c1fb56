package session

import "errors"

var (
	// ErrSessionNotFound is returned when an operation targets a missing session
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionExists is returned when creating a session whose id is already taken
	ErrSessionExists = errors.New("session already exists")
	// ErrTooManySessions is returned when the session limit is reached
	ErrTooManySessions = errors.New("too many sessions")
	// ErrInvalidTransition is returned when a status change violates the state machine
	ErrInvalidTransition = errors.New("invalid state transition")
)
