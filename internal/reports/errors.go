package reports

import (
	"errors"
	"fmt"
)

// ErrStorage marks a failure to persist a report or its image. Callers
// surface it as a generic server error.
var ErrStorage = errors.New("storage failure")

// ValidationError identifies the offending submission field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func invalid(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}
