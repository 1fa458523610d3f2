package domain

import "errors"

// Sentinel errors for domain operations
var (
	// ErrNetworkFailure indicates a commit was rejected or could not be delivered
	ErrNetworkFailure = errors.New("network request failed")

	// ErrServerOffline indicates the backend is unreachable
	ErrServerOffline = errors.New("server is unreachable")

	// ErrAuthFailed indicates authentication failed
	ErrAuthFailed = errors.New("authentication token is invalid")

	// ErrNotFound indicates the requested entity does not exist
	ErrNotFound = errors.New("entity not found")

	// ErrUnknownAction indicates an action name other than like or bookmark
	ErrUnknownAction = errors.New("unknown engagement action")
)
