package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors used across all layers.
var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrValidation    = errors.New("validation error")
	ErrUnauthorized  = errors.New("unauthorized")

	// ErrNotConnected means a publish was attempted for a platform the
	// user has no active connection to.
	ErrNotConnected = errors.New("platform not connected")

	// ErrNoCredential means the user has no LLM credential configured.
	ErrNoCredential = errors.New("llm credential not configured")

	// ErrBadCallback means an OAuth callback arrived with missing or
	// undecodable parameters.
	ErrBadCallback = errors.New("invalid oauth callback")

	// ErrConfiguration means required process configuration is absent.
	// Fatal at startup, never recoverable at runtime.
	ErrConfiguration = errors.New("configuration error")
)

// GenerationError wraps an upstream LLM failure. The message carries the
// provider and model but never the API key.
type GenerationError struct {
	Provider LLMProvider
	Model    string
	Err      error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation failed (provider=%s model=%s): %v", e.Provider, e.Model, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// FieldError describes a validation error for a specific field.
type FieldError struct {
	Field   string
	Message string
}

// ValidationError contains a list of field-level validation errors.
type ValidationError struct {
	Errors []FieldError
}

func (e *ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return fmt.Sprintf("validation: %s — %s", e.Errors[0].Field, e.Errors[0].Message)
	}
	return fmt.Sprintf("validation: %d errors", len(e.Errors))
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// NewValidationError creates a ValidationError for a single field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Errors: []FieldError{{Field: field, Message: message}},
	}
}
