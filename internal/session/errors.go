package session

import (
	"errors"
	"strconv"
)

// notFoundError is returned when a session id is unknown or expired.
type notFoundError struct{ id string }

func (e notFoundError) Error() string { return "session not found: " + e.id }

// IsNotFound reports whether err indicates an unknown session.
func IsNotFound(err error) bool {
	var e notFoundError
	return errors.As(err, &e)
}

// ErrEmptyMessage is returned by Turn when the user message is blank.
var ErrEmptyMessage = errors.New("message content is required")

// fullError is returned when the store already holds its maximum of sessions.
type fullError struct{ max int }

func (e fullError) Error() string {
	return "too many sessions: limit is " + strconv.Itoa(e.max)
}

// IsFull reports whether err indicates the session cap was reached.
func IsFull(err error) bool {
	var e fullError
	return errors.As(err, &e)
}
