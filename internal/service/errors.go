package service

import "errors"

var (
	// ErrNotFound is returned when a target or comment does not exist, or is
	// hidden from the caller
	ErrNotFound = errors.New("not found")
	// ErrForbidden is returned when the caller may not act on a comment
	ErrForbidden = errors.New("forbidden")
	// ErrUnauthenticated is returned when an operation needs a signed-in user
	ErrUnauthenticated = errors.New("authentication required")
)
