package domain

import "errors"

// Sentinel errors for device and media operations
var (
	// ErrBackendUnavailable indicates the device, driver or tool behind a backend is absent
	ErrBackendUnavailable = errors.New("backend unavailable")

	// ErrAccessDenied indicates the device is present but locked or not trusted
	ErrAccessDenied = errors.New("device access denied")

	// ErrFetchFailed indicates an item could not be read from its backend
	ErrFetchFailed = errors.New("media fetch failed")

	// ErrInvalidIdentity indicates an identity string could not be decoded
	ErrInvalidIdentity = errors.New("invalid media identity")

	// ErrTimeout indicates a backend did not answer within its time budget
	ErrTimeout = errors.New("backend timed out")

	// ErrNotFound indicates a well-formed identity that is not in the current catalog
	ErrNotFound = errors.New("not in catalog")
)
