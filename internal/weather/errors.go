package weather

import "errors"

var (
	// ErrNotFound signals that an identifier or filter matched nothing.
	ErrNotFound = errors.New("not found")

	// ErrConflict signals a uniqueness violation, e.g. a duplicate
	// (city, country) location or a duplicate (location, date) info.
	ErrConflict = errors.New("already exists")
)

// ValidationError reports malformed or out-of-policy input. It is surfaced
// to clients with its message and never retried.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func invalid(msg string) error {
	return &ValidationError{Message: msg}
}

// ConflictError reports a uniqueness violation with a message naming the
// resource that clashed. It matches ErrConflict in errors.Is checks.
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string { return e.Message }

func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

// CollaboratorError wraps a failure of an external provider (weather or
// video search) so the HTTP layer can distinguish it from internal errors.
type CollaboratorError struct {
	Provider string
	Err      error
}

func (e *CollaboratorError) Error() string {
	return e.Provider + ": " + e.Err.Error()
}

func (e *CollaboratorError) Unwrap() error { return e.Err }
