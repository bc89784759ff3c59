package domain

import "errors"

var (
	// ErrUnsupportedScheme is returned when a location uses a storage scheme with no backend
	ErrUnsupportedScheme = errors.New("unsupported storage scheme")

	// ErrInvalidLocation is returned when a location cannot be parsed
	ErrInvalidLocation = errors.New("invalid location")

	// ErrObjectNotFound is returned when an object does not exist in storage
	ErrObjectNotFound = errors.New("object not found")

	// ErrRunNotFound is returned when a run is not found in the run ledger
	ErrRunNotFound = errors.New("run not found")
)
