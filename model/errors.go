package model

import (
	"errors"
	"fmt"
)

// Sentinel errors for entity and relation validation.
var (
	ErrMissingRequiredProperty = errors.New("missing required property")
	ErrEndpointArity           = errors.New("endpoint must have exactly one member")
	ErrInconsistentEndpoint    = errors.New("endpoint members differ in source or entity type")
	ErrInvalidRole             = errors.New("role not valid for relation kind")
)

// ValidationError reports which entity type or relation kind failed and on
// which field. It unwraps to one of the sentinel errors above.
type ValidationError struct {
	Err     error
	Subject string
	Field   string
	Detail  string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	msg := fmt.Sprintf("%s: %s: %v", e.Subject, e.Field, e.Err)
	if e.Detail != "" {
		msg += " (" + e.Detail + ")"
	}
	return msg
}

// Unwrap returns the sentinel error.
func (e *ValidationError) Unwrap() error { return e.Err }

func missing(subject, field string) error {
	return &ValidationError{Err: ErrMissingRequiredProperty, Subject: subject, Field: field}
}
