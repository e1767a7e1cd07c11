package types

import "errors"

var (
	// ErrInvalidInput marks caller mistakes: empty candidate sets, unknown tokens, malformed numbers.
	ErrInvalidInput = errors.New("invalid input")
	// ErrNotFound marks an unknown execution id.
	ErrNotFound = errors.New("not found")
	// ErrInvalidTransition marks a lifecycle operation the record's state does not allow.
	ErrInvalidTransition = errors.New("invalid transition")
)
