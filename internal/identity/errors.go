package identity

import "errors"

var (
	errInvalidID = errors.New("identity: invalid id")

	// ErrNotInitialized names use of an endpoint before Bind completes. No
	// function in this package returns it: an Endpoint only exists once
	// Bind has succeeded.
	ErrNotInitialized = errors.New("identity: endpoint used before bind")
)
