package feed

import "errors"

var (
	// ErrNotFound means the parent or item is absent in the relational store
	ErrNotFound = errors.New("not found")
	// ErrUnauthorized means a write was attempted by a non-owner
	ErrUnauthorized = errors.New("unauthorized")
	// ErrStorageUnavailable means a relational transport failure; retryable
	ErrStorageUnavailable = errors.New("storage unavailable")
)
