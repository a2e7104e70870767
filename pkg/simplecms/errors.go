package simplecms

import (
	"errors"
	"fmt"
	"strings"
)

// Error types
var (
	// ErrNotFound is the parent of every "does not exist" error
	ErrNotFound = errors.New("not found")

	// ErrModelNotFound indicates a content model was not found
	ErrModelNotFound = fmt.Errorf("content model %w", ErrNotFound)

	// ErrItemNotFound indicates a content item was not found
	ErrItemNotFound = fmt.Errorf("content item %w", ErrNotFound)

	// ErrValidation indicates a model definition or data payload was rejected
	ErrValidation = errors.New("validation failed")

	// ErrConflict indicates a uniqueness violation reported by storage
	ErrConflict = errors.New("conflict")

	// ErrUnexpected indicates a failure no specific rule anticipated,
	// such as malformed stored JSON or an exhausted slug search.
	ErrUnexpected = errors.New("unexpected failure")
)

// ValidationError carries every violation found in one pass.
type ValidationError struct {
	Messages []string
}

func (e *ValidationError) Error() string {
	return strings.Join(e.Messages, "; ")
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// newValidationError returns nil when there is nothing to report.
func newValidationError(messages []string) error {
	if len(messages) == 0 {
		return nil
	}
	return &ValidationError{Messages: messages}
}

// ValidationMessages extracts the message list from err, if it carries one.
func ValidationMessages(err error) []string {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return verr.Messages
	}
	return nil
}

// ModelError represents an error related to content model operations
type ModelError struct {
	Slug string
	Op   string
	Err  error
}

func (e *ModelError) Error() string {
	return fmt.Sprintf("model operation %s failed for model %q: %v", e.Op, e.Slug, e.Err)
}

func (e *ModelError) Unwrap() error {
	return e.Err
}

// ItemError represents an error related to content item operations
type ItemError struct {
	ModelSlug string
	Slug      string
	Op        string
	Err       error
}

func (e *ItemError) Error() string {
	if e.Slug == "" {
		return fmt.Sprintf("item operation %s failed in model %q: %v", e.Op, e.ModelSlug, e.Err)
	}
	return fmt.Sprintf("item operation %s failed for %q in model %q: %v", e.Op, e.Slug, e.ModelSlug, e.Err)
}

func (e *ItemError) Unwrap() error {
	return e.Err
}
