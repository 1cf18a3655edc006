/*
errors.go - Error types for the materialization core

ERROR CATEGORIES:
  1. Validation errors - malformed input, nothing persisted
  2. Not-found errors  - referenced project/baseline absent
  3. Per-item errors   - carried inside a materialization Report, never
     aborting the batch

SEE ALSO:
  - taxonomy: ErrTaxonomyViolation / ViolationError
  - docstore: ErrNotFound, ErrConditionFailed
*/
package rubro

import (
	"errors"
	"fmt"
)

var (
	// ErrProjectNotFound is returned when a referenced project has no
	// metadata document.
	ErrProjectNotFound = errors.New("project not found")

	// ErrBaselineNotFound is returned when a referenced baseline document
	// is absent.
	ErrBaselineNotFound = errors.New("baseline not found")

	// ErrValidation is the sentinel for malformed request input.
	ErrValidation = errors.New("validation failed")
)

// FieldError names the offending field of a validation failure.
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func (e *FieldError) Unwrap() error { return ErrValidation }

// ItemError captures one failed estimate inside a materialization batch.
// Index is the estimate's position in the flattened labor+non-labor list.
type ItemError struct {
	Index   int
	RubroID string
	Err     error
}

func (e ItemError) Error() string {
	return fmt.Sprintf("estimate %d (%s): %v", e.Index, e.RubroID, e.Err)
}

func (e ItemError) Unwrap() error { return e.Err }
