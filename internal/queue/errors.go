package queue

import "errors"

var (
	// ErrInvalidArgument marks a request rejected before any mutation.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrNotFound marks a reference to an entry that does not exist.
	ErrNotFound = errors.New("not found")
)
