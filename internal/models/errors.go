package models

import (
	"errors"
	"fmt"
)

// ErrValidation represents a validation error with field and message.
type ErrValidation struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e ErrValidation) Error() string {
	return fmt.Sprintf("validation error on field %s: %s", e.Field, e.Message)
}

// Common validation errors for models.
var (
	// ErrKeyRequired indicates a user data row without a key.
	ErrKeyRequired = errors.New("key is required")

	// ErrNamespaceRequired indicates a user data row without a namespace.
	ErrNamespaceRequired = errors.New("namespace is required")
)
