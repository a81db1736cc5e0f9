package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for lookups and creation conflicts. Callers check these
// with errors.Is; stores never signal "missing" as an empty result.
var (
	ErrSessionNotFound = errors.New("session not found")
	ErrMessageNotFound = errors.New("message not found")
	ErrAlreadyExists   = errors.New("already exists")
)

// ValidationError reports malformed input, rejected before any persistence.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s %s", e.Field, e.Reason)
}

// IsValidation reports whether err is a validation error.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// AIServiceError is a failure from the external responder. Retryable errors
// may prompt the UI to offer a manual resend; fatal errors are shown as-is.
type AIServiceError struct {
	Retryable bool
	Err       error
}

func (e *AIServiceError) Error() string {
	kind := "fatal"
	if e.Retryable {
		kind = "retryable"
	}
	return fmt.Sprintf("ai service error (%s): %v", kind, e.Err)
}

func (e *AIServiceError) Unwrap() error { return e.Err }

// TransportError is a push/pull delivery failure, recovered locally by the
// connection mode manager via fallback.
type TransportError struct {
	Mode string
	Err  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error (%s): %v", e.Mode, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
