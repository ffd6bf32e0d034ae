package models

import "errors"

// Error taxonomy surfaced to API callers as structured kinds. Every error
// crossing a package boundary wraps one of these sentinels.
var (
	// ErrResolution means an adapter could not resolve an identifier into a
	// product. Surfaced to the caller, never retried.
	ErrResolution = errors.New("could not resolve identifier")

	// ErrUnsupportedPlatform is input validation: the platform name is not
	// one we have an adapter for.
	ErrUnsupportedPlatform = errors.New("unsupported platform")

	// ErrNotFound is an unknown product or card id.
	ErrNotFound = errors.New("not found")

	// ErrInvalidArgument covers negative prices, malformed time ranges and
	// similar caller mistakes.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrAdapterTimeout marks a per-unit adapter timeout during a polling
	// cycle. Recorded and deferred to the next cycle, never fatal to the
	// batch.
	ErrAdapterTimeout = errors.New("adapter timeout")
)
