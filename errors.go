package emb3d

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
)

// Error kinds categorize errors by their type.
const (
	// KindInput represents malformed or incomplete source data.
	KindInput = "input"

	// KindNotFound represents a record or file that does not exist.
	KindNotFound = "not_found"

	// KindValidation represents an output object that fails validation.
	KindValidation = "validation"

	// KindIO represents file system failures.
	KindIO = "io"

	// KindConfiguration represents errors related to configuration.
	KindConfiguration = "configuration"

	// KindInternal represents internal converter errors.
	KindInternal = "internal"
)

// ConvertError is a structured error type that wraps underlying errors with
// the pipeline stage that failed and the category of error.
//
// ConvertError implements the error interface and supports error unwrapping,
// making it compatible with errors.Is() and errors.As().
//
// Example usage:
//
//	err := &ConvertError{
//		Op:   "Converter.enrich",
//		Kind: KindNotFound,
//		Err:  enrich.ErrTargetNotFound,
//	}
type ConvertError struct {
	// Op is the operation that failed (e.g., "Converter.ingest").
	Op string

	// Kind categorizes the error (e.g., KindInput, KindIO).
	Kind string

	// Err is the underlying error that caused this error.
	Err error

	// Context provides additional context about the error (optional), such as
	// the source file or page being processed.
	Context map[string]any
}

// Error implements the error interface, returning a formatted error message
// that includes the operation, kind, and underlying error.
func (e *ConvertError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("emb3d: %s: %s", e.Op, e.Kind)
	}

	if len(e.Context) > 0 {
		return fmt.Sprintf("emb3d: %s (%s): %v [context: %+v]", e.Op, e.Kind, e.Err, e.Context)
	}

	return fmt.Sprintf("emb3d: %s (%s): %v", e.Op, e.Kind, e.Err)
}

// Unwrap returns the underlying error, allowing errors.Is() and errors.As()
// to work correctly with wrapped errors.
func (e *ConvertError) Unwrap() error {
	return e.Err
}

// Is implements error matching for ConvertError, allowing comparison based on
// the underlying error or the ConvertError itself.
func (e *ConvertError) Is(target error) bool {
	if target == nil {
		return false
	}

	// A target ConvertError matches on Kind, and on Op when it names one.
	if t, ok := target.(*ConvertError); ok {
		if t.Kind != "" && e.Kind == t.Kind {
			if t.Op == "" || e.Op == t.Op {
				return true
			}
		}
	}

	return errors.Is(e.Err, target)
}

// WithContext returns a new ConvertError with the provided context added.
//
// Example:
//
//	err := NewInputError("Converter.ingest", cause).WithContext(map[string]any{
//		"source": "mitigations_threat_mappings.json",
//	})
func (e *ConvertError) WithContext(ctx map[string]any) *ConvertError {
	newErr := *e
	newErr.Context = make(map[string]any, len(e.Context)+len(ctx))
	for k, v := range e.Context {
		newErr.Context[k] = v
	}
	for k, v := range ctx {
		newErr.Context[k] = v
	}
	return &newErr
}

// NewInputError creates a new ConvertError with KindInput.
func NewInputError(op string, err error) *ConvertError {
	return &ConvertError{Op: op, Kind: KindInput, Err: err}
}

// NewNotFoundError creates a new ConvertError with KindNotFound.
func NewNotFoundError(op string, err error) *ConvertError {
	return &ConvertError{Op: op, Kind: KindNotFound, Err: err}
}

// NewValidationError creates a new ConvertError with KindValidation.
func NewValidationError(op string, err error) *ConvertError {
	return &ConvertError{Op: op, Kind: KindValidation, Err: err}
}

// NewIOError creates a new ConvertError with KindIO.
func NewIOError(op string, err error) *ConvertError {
	return &ConvertError{Op: op, Kind: KindIO, Err: err}
}

// NewConfigurationError creates a new ConvertError with KindConfiguration.
func NewConfigurationError(op string, err error) *ConvertError {
	return &ConvertError{Op: op, Kind: KindConfiguration, Err: err}
}

// NewInternalError creates a new ConvertError with KindInternal.
func NewInternalError(op string, err error) *ConvertError {
	return &ConvertError{Op: op, Kind: KindInternal, Err: err}
}

// CloseWithLog attempts to close the provided resource and logs any error
// at warning level. This is intended for use in defer statements to ensure
// cleanup errors are not silently ignored.
//
// If logger is nil, slog.Default() is used.
//
//	defer emb3d.CloseWithLog(file, logger, "mapping source")
func CloseWithLog(closer io.Closer, logger *slog.Logger, name string) {
	if closer == nil {
		return
	}

	if logger == nil {
		logger = slog.Default()
	}

	if err := closer.Close(); err != nil {
		logger.Warn("failed to close resource",
			"resource", name,
			"error", err)
	}
}
