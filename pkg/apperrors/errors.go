package apperrors

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// Domain error taxonomy. Every error carries the HTTP status it maps to so the
// handler boundary can translate without switching on concrete types.

// ValidationError aggregates one message per violated field.
type ValidationError struct {
	Fields map[string]string
}

func NewValidationError(fields map[string]string) *ValidationError {
	return &ValidationError{Fields: fields}
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for f, msg := range e.Fields {
		parts = append(parts, f+": "+msg)
	}
	sort.Strings(parts)
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) StatusCode() int { return http.StatusBadRequest }

// NotFoundError reports an absent entity.
type NotFoundError struct {
	Entity string
}

func NewNotFoundError(entity string) *NotFoundError { return &NotFoundError{Entity: entity} }

func (e *NotFoundError) Error() string   { return e.Entity + " not found" }
func (e *NotFoundError) StatusCode() int { return http.StatusNotFound }

// UnauthorizedError covers bad credentials, inactive accounts and
// invalid-or-expired tokens. The message is deliberately generic so responses
// never reveal whether an email is registered.
type UnauthorizedError struct {
	Reason string
}

func NewUnauthorizedError(reason string) *UnauthorizedError {
	return &UnauthorizedError{Reason: reason}
}

func (e *UnauthorizedError) Error() string   { return e.Reason }
func (e *UnauthorizedError) StatusCode() int { return http.StatusUnauthorized }

// ConflictError reports a uniqueness violation, e.g. duplicate email.
type ConflictError struct {
	Message string
}

func NewConflictError(msg string) *ConflictError { return &ConflictError{Message: msg} }

func (e *ConflictError) Error() string   { return e.Message }
func (e *ConflictError) StatusCode() int { return http.StatusConflict }

// MessagingError marks a transient broker failure. It is logged by the caller
// and never surfaced to the user of the business operation that triggered the
// publish.
type MessagingError struct {
	Op  string
	Err error
}

func NewMessagingError(op string, err error) *MessagingError {
	return &MessagingError{Op: op, Err: err}
}

func (e *MessagingError) Error() string { return fmt.Sprintf("messaging: %s: %v", e.Op, e.Err) }
func (e *MessagingError) Unwrap() error { return e.Err }

type statusCoder interface {
	StatusCode() int
}

// StatusCode maps a domain error to its HTTP status. Unknown errors map to 500.
func StatusCode(err error) int {
	var sc statusCoder
	if errors.As(err, &sc) {
		return sc.StatusCode()
	}
	return http.StatusInternalServerError
}

// Details returns per-field messages for validation errors, nil otherwise.
func Details(err error) map[string]string {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Fields
	}
	return nil
}
