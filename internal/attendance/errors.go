package attendance

import "errors"

// Domain outcomes. Handlers compare with errors.Is and translate to HTTP;
// anything else coming out of this package is a persistence failure.
var (
	// ErrAlreadyActive is returned when a lecturer opens a session while
	// already owning an ACTIVE one.
	ErrAlreadyActive = errors.New("lecturer already has an active session")

	// ErrInvalidOrExpired covers unknown, closed and expired tokens alike.
	// Callers can not tell the three apart, so a replayed token leaks
	// nothing about whether its session ever existed.
	ErrInvalidOrExpired = errors.New("invalid or expired token")

	// ErrAlreadyMarked is returned when a student redeems a token twice for
	// the same session. Not retryable: the mark is already there.
	ErrAlreadyMarked = errors.New("attendance already marked for this session")

	// ErrSessionNotFound is returned for lookups of sessions that do not
	// exist or are not owned by the requesting lecturer.
	ErrSessionNotFound = errors.New("session not found")

	// ErrCourseNotFound is returned for courses that do not exist or are
	// not assigned to the requesting lecturer.
	ErrCourseNotFound = errors.New("course not found")
)
