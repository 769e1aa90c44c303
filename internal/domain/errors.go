package domain

import "errors"

// Pipeline and store failures the rest of the service branches on. Collaborator
// errors are wrapped with one of these so the HTTP layer can map them to a
// user-visible message without inspecting internals.
var (
	ErrInvalidURL       = errors.New("invalid url")
	ErrFetchFailed      = errors.New("fetch failed")
	ErrFetchTimeout     = errors.New("fetch timed out")
	ErrExtractionFailed = errors.New("extraction failed")
	ErrNotFound         = errors.New("not found")
	ErrAlreadyExists    = errors.New("already exists")
	ErrInvalidTags      = errors.New("invalid tags")
	ErrBadCredentials   = errors.New("bad credentials")
)
