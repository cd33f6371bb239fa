package store

import "errors"

// Common errors returned by store operations.
//
// These can be checked with errors.Is():
//
//	if errors.Is(err, store.ErrEmptyTitle) {
//	    // prompt for a title
//	}
var (
	// ErrEmptyTitle is returned when an add operation receives a title
	// that is empty after trimming.
	ErrEmptyTitle = errors.New("title must not be empty")

	// ErrUnknownProject is returned when an operation names a project
	// id that does not resolve to a non-deleted project.
	ErrUnknownProject = errors.New("unknown project")

	// ErrDuplicateTitle is recorded when a rename would collide with
	// another non-deleted sibling's title, case-insensitively.
	ErrDuplicateTitle = errors.New("title already in use")

	// ErrLocked is returned when a refresh from storage is requested
	// while a user edit session holds the store locked.
	ErrLocked = errors.New("store is locked by an edit session")

	// ErrClosed is returned when an operation runs against a store
	// that has been closed.
	ErrClosed = errors.New("store is closed")
)
