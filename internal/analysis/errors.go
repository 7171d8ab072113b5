package analysis

import (
	"errors"
	"fmt"
)

// Error kinds, matched with errors.Is
var (
	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
	ErrCollaborator  = errors.New("collaborator failure")
)

// ValidationError reports malformed input data; nothing was processed
type ValidationError struct {
	Index  int    // offending row or point, -1 when not tied to one
	Field  string // offending column or field
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Index >= 0 {
		return fmt.Sprintf("%v: %s at index %d: %s", ErrValidation, e.Field, e.Index, e.Reason)
	}
	return fmt.Sprintf("%v: %s: %s", ErrValidation, e.Field, e.Reason)
}

// Is lets errors.Is(err, ErrValidation) match
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// NewValidationError builds a ValidationError with a formatted reason
func NewValidationError(index int, field, format string, args ...interface{}) error {
	return &ValidationError{Index: index, Field: field, Reason: fmt.Sprintf(format, args...)}
}

// ConfigurationError reports an out-of-range parameter
type ConfigurationError struct {
	Param  string
	Value  interface{}
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%v: %s=%v: %s", ErrConfiguration, e.Param, e.Value, e.Reason)
}

// Is lets errors.Is(err, ErrConfiguration) match
func (e *ConfigurationError) Is(target error) bool { return target == ErrConfiguration }

// CollaboratorError wraps a failure of the road index or the geodesy adapter
type CollaboratorError struct {
	Collaborator string
	Err          error
}

func (e *CollaboratorError) Error() string {
	return fmt.Sprintf("%v: %s: %v", ErrCollaborator, e.Collaborator, e.Err)
}

// Is lets errors.Is(err, ErrCollaborator) match
func (e *CollaboratorError) Is(target error) bool { return target == ErrCollaborator }

func (e *CollaboratorError) Unwrap() error { return e.Err }

// WrapCollaborator tags err as a collaborator failure; nil stays nil
func WrapCollaborator(collaborator string, err error) error {
	if err == nil {
		return nil
	}
	var ce *CollaboratorError
	if errors.As(err, &ce) {
		return err
	}
	return &CollaboratorError{Collaborator: collaborator, Err: err}
}
