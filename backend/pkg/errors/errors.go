package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

// ErrorType represents the category of error
type ErrorType string

const (
	// ErrorTypeSchema represents label registration and lookup errors
	ErrorTypeSchema ErrorType = "schema"
	// ErrorTypeBuilder represents invalid builder call sequences
	ErrorTypeBuilder ErrorType = "builder"
	// ErrorTypeGraph represents graph database errors
	ErrorTypeGraph ErrorType = "graph"
	// ErrorTypeConfig represents configuration errors
	ErrorTypeConfig ErrorType = "config"
)

// BaseError is the base error type with common fields
type BaseError struct {
	Type      ErrorType
	Message   string
	Timestamp time.Time
	Err       error // Wrapped error
}

// Error implements the error interface
func (e *BaseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap returns the wrapped error for error unwrapping
func (e *BaseError) Unwrap() error {
	return e.Err
}

// Category reports the error's type. Typed errors embedding *BaseError
// inherit it, which is what IsErrorType matches on.
func (e *BaseError) Category() ErrorType {
	return e.Type
}

// NewBaseError creates a new base error
func NewBaseError(errType ErrorType, message string, err error) *BaseError {
	return &BaseError{
		Type:      errType,
		Message:   message,
		Timestamp: time.Now(),
		Err:       err,
	}
}

// Schema Errors

// ErrSchemaNotFound is returned when a label was never registered
type ErrSchemaNotFound struct {
	*BaseError
	Label string
}

func NewSchemaNotFound(label string) *ErrSchemaNotFound {
	return &ErrSchemaNotFound{
		BaseError: NewBaseError(ErrorTypeSchema, fmt.Sprintf("label not registered: %s", label), nil),
		Label:     label,
	}
}

// ErrSchemaWrongKind is returned when a label resolves to a node where a
// relation was expected, or the other way round
type ErrSchemaWrongKind struct {
	*BaseError
	Label string
	Want  string
	Got   string
}

func NewSchemaWrongKind(label, want, got string) *ErrSchemaWrongKind {
	return &ErrSchemaWrongKind{
		BaseError: NewBaseError(ErrorTypeSchema, fmt.Sprintf("%s is a %s, not a %s", label, got, want), nil),
		Label:     label,
		Want:      want,
		Got:       got,
	}
}

// Builder Errors

// ErrBuilderUsage is returned when a builder operation is called with
// arguments it cannot compose
type ErrBuilderUsage struct {
	*BaseError
	Operation string
	Reason    string
}

func NewBuilderUsage(operation, reason string) *ErrBuilderUsage {
	return &ErrBuilderUsage{
		BaseError: NewBaseError(ErrorTypeBuilder, fmt.Sprintf("%s: %s", operation, reason), nil),
		Operation: operation,
		Reason:    reason,
	}
}

// Graph Errors

// ErrGraphConnectionFailed is returned when Neo4j connection fails
type ErrGraphConnectionFailed struct {
	*BaseError
	URI string
}

func NewGraphConnectionFailed(uri string, err error) *ErrGraphConnectionFailed {
	return &ErrGraphConnectionFailed{
		BaseError: NewBaseError(ErrorTypeGraph, fmt.Sprintf("failed to connect to Neo4j: %s", uri), err),
		URI:       uri,
	}
}

// ErrGraphQueryFailed is returned when a graph query fails
type ErrGraphQueryFailed struct {
	*BaseError
	Query string
}

func NewGraphQueryFailed(query string, err error) *ErrGraphQueryFailed {
	return &ErrGraphQueryFailed{
		BaseError: NewBaseError(ErrorTypeGraph, fmt.Sprintf("query failed: %s", query), err),
		Query:     query,
	}
}

// Config Errors

// ErrConfigMissingRequired is returned when a required config value is missing
type ErrConfigMissingRequired struct {
	*BaseError
	Field string
}

func NewConfigMissingRequired(field string) *ErrConfigMissingRequired {
	return &ErrConfigMissingRequired{
		BaseError: NewBaseError(ErrorTypeConfig, fmt.Sprintf("missing required config: %s", field), nil),
		Field:     field,
	}
}

// Helper functions

type categorized interface {
	Category() ErrorType
}

// IsErrorType checks if an error, or any error it wraps, is of a specific type
func IsErrorType(err error, errType ErrorType) bool {
	var c categorized
	if stderrors.As(err, &c) {
		return c.Category() == errType
	}
	return false
}

// IsRetryable checks if an error is retryable. Schema, builder and config
// errors are programmer errors and never are.
func IsRetryable(err error) bool {
	return IsErrorType(err, ErrorTypeGraph)
}
