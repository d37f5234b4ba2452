package database

import "errors"

var (
	// ErrEntryNotFound is returned when a queue entry does not exist.
	ErrEntryNotFound = errors.New("entry not found")

	// ErrAlreadyDone is returned by CompleteEntry when the entry was already
	// finished; no mutation took place.
	ErrAlreadyDone = errors.New("entry already done")
)
