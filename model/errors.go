package model

import "errors"

var (
	// ErrAuth indicates the credentials for a service are invalid or expired.
	ErrAuth = errors.New("authentication failed")

	// ErrTransient indicates a failure that may succeed if retried later, such as
	// a network error, rate limiting or a server-side failure.
	ErrTransient = errors.New("transient failure")

	// ErrNotFound indicates a track could not be resolved on a service's catalog.
	ErrNotFound = errors.New("track not found")
)
