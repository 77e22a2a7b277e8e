package stix

import "errors"

// Sentinel errors for object model operations.
// These errors can be used with errors.Is() for error checking.
var (
	// ErrUnmodifiableProperty indicates an overlay tried to change a property that
	// is fixed once an object is minted (id, type, spec_version, created,
	// created_by_ref). Callers that reconcile partial records treat this as a
	// signal to mint a fresh object rather than a failure.
	ErrUnmodifiableProperty = errors.New("unmodifiable property")

	// ErrInvalidProperty indicates a well-known property was given a value of the
	// wrong shape, e.g. a non-string name.
	ErrInvalidProperty = errors.New("invalid property value")

	// ErrInvalidID indicates an identifier does not have the "<type>--<uuid>" form.
	ErrInvalidID = errors.New("invalid identifier")
)
