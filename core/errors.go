package core

import "github.com/pkg/errors"

var (
	ErrNotFound             = errors.New("not found")
	ErrForbidden            = errors.New("permission denied")
	ErrMissingRequiredField = errors.New("missing required field")
	// ErrUpstream is returned when a call to an external collaborator (calendar, file storage) failed.
	ErrUpstream = errors.New("upstream collaborator failure")
)

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string
	Error string
}

type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		return "validation failed"
	}
	return err.Err.Error()
}

func (err ValidationError) Unwrap() error { return err.Err }

type shutdown struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s shutdown) Error() string {
	return s.message
}

func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}
