// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import "errors"

// Common sentinels across client layers.
var (
	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrUnauthorized indicates the backend rejected the bearer token.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrNoToken indicates no bearer token is held in storage.
	ErrNoToken = errors.New("no token (login required)")

	// ErrValidation indicates a request was rejected before reaching the network.
	ErrValidation = errors.New("validation")

	// ErrClosed indicates the component has been shut down.
	ErrClosed = errors.New("closed")
)
