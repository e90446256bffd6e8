package domain

import (
	"fmt"
	"strings"
)

// ErrorType categorizes failures across the answering pipeline.
type ErrorType string

const (
	// ErrTypeConfig indicates invalid static configuration such as chunking parameters.
	ErrTypeConfig ErrorType = "config"

	// ErrTypeEmbeddingUnavailable indicates the embedding model could not be loaded or reached.
	ErrTypeEmbeddingUnavailable ErrorType = "embedding_unavailable"

	// ErrTypeGeneration indicates the generation model failed, timed out or returned nothing.
	ErrTypeGeneration ErrorType = "generation"

	// ErrTypeMalformedCommand indicates a report command that could not be parsed.
	ErrTypeMalformedCommand ErrorType = "malformed_command"

	// ErrTypeOutOfRangeReport indicates a report number outside the current listing.
	ErrTypeOutOfRangeReport ErrorType = "out_of_range_report"

	// ErrTypeDocument indicates the reference document could not be loaded.
	ErrTypeDocument ErrorType = "document"

	// ErrTypeIndex indicates the vector index could not be built or queried.
	ErrTypeIndex ErrorType = "index"
)

// Sentinels for errors.Is. They match any *Error with the same Type.
var (
	ErrConfig               = &Error{Type: ErrTypeConfig}
	ErrEmbeddingUnavailable = &Error{Type: ErrTypeEmbeddingUnavailable}
	ErrGeneration           = &Error{Type: ErrTypeGeneration}
	ErrMalformedCommand     = &Error{Type: ErrTypeMalformedCommand}
	ErrOutOfRangeReport     = &Error{Type: ErrTypeOutOfRangeReport}
	ErrDocument             = &Error{Type: ErrTypeDocument}
	ErrIndex                = &Error{Type: ErrTypeIndex}
)

// Error is the typed error used by every component.
type Error struct {
	// Type categorizes the error
	Type ErrorType

	// Component names the part of the system that failed (e.g. "chunker", "openai")
	Component string

	// Message provides a human-readable description
	Message string

	// StatusCode for HTTP-related failures
	StatusCode int

	// Cause is the underlying error, if any
	Cause error
}

// Error implements the error interface.
func (e *Error) Error() string {
	var parts []string
	if e.Component != "" {
		parts = append(parts, e.Component)
	}
	if e.Message != "" {
		parts = append(parts, e.Message)
	} else {
		parts = append(parts, string(e.Type))
	}
	if e.StatusCode > 0 {
		parts = append(parts, fmt.Sprintf("status %d", e.StatusCode))
	}
	if e.Cause != nil {
		parts = append(parts, e.Cause.Error())
	}
	return strings.Join(parts, ": ")
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error of the same Type.
func (e *Error) Is(target error) bool {
	if te, ok := target.(*Error); ok {
		return e.Type == te.Type
	}
	return false
}

// NewConfigError creates a configuration error for the given field.
func NewConfigError(field, message string) *Error {
	return &Error{Type: ErrTypeConfig, Component: "config", Message: field + ": " + message}
}

// NewEmbeddingUnavailable creates an embedding error with an underlying cause.
func NewEmbeddingUnavailable(component, message string, cause error) *Error {
	return &Error{Type: ErrTypeEmbeddingUnavailable, Component: component, Message: message, Cause: cause}
}

// NewGenerationError creates a generation error with an underlying cause.
func NewGenerationError(component, message string, cause error) *Error {
	return &Error{Type: ErrTypeGeneration, Component: component, Message: message, Cause: cause}
}

// NewMalformedCommand reports a report command with the wrong shape.
func NewMalformedCommand(input string) *Error {
	return &Error{Type: ErrTypeMalformedCommand, Component: "dispatch", Message: fmt.Sprintf("malformed report command %q", input)}
}

// NewOutOfRangeReport reports a 1-based report number that does not exist.
func NewOutOfRangeReport(number, count int) *Error {
	return &Error{
		Type:      ErrTypeOutOfRangeReport,
		Component: "dispatch",
		Message:   fmt.Sprintf("report %d requested, %d available", number, count),
	}
}
