package app

import "errors"

// Error kinds matched with errors.Is at the handler boundary. Wrapped
// variants carry the underlying cause for the logs.
var (
	ErrInvalidInput    = errors.New("invalid input")
	ErrNotFound        = errors.New("image not found")
	ErrOwnerNotFound   = errors.New("user not found")
	ErrForbidden       = errors.New("requester is not the owner")
	ErrDuplicateEmail  = errors.New("user already exists")
	ErrStorage         = errors.New("object storage failure")
	ErrPersistence     = errors.New("metadata persistence failure")
	ErrMalformedRecord = errors.New("stored url does not match the storage layout")

	// errUnsupportedMedia never leaves the analyzer; it degrades to the
	// sentinel result.
	errUnsupportedMedia = errors.New("unsupported media kind")
)
