package errors

import (
	"errors"
	"fmt"
)

// ErrorCategory identifies where in the per-symbol pipeline a failure
// occurred. Categories drive outcome reporting: every category except Config
// is contained within one symbol's analysis task.
type ErrorCategory string

const (
	// ErrorCategoryConfig is fatal at startup; no cycle runs.
	ErrorCategoryConfig ErrorCategory = "CONFIG"

	// Recoverable per-symbol categories.
	ErrorCategoryFetch      ErrorCategory = "FETCH"
	ErrorCategoryPrediction ErrorCategory = "PREDICTION"
	ErrorCategoryBalance    ErrorCategory = "BALANCE"
	ErrorCategoryOrder      ErrorCategory = "ORDER"

	// ErrorCategoryBracket marks a protective order that failed after a
	// filled entry. Recoverable at symbol level but business-critical: the
	// position is open and unprotected.
	ErrorCategoryBracket ErrorCategory = "BRACKET"
)

// BotError is a categorized error carrying the component and operation that
// produced it.
type BotError struct {
	Category   ErrorCategory
	Component  string
	Operation  string
	Message    string
	Underlying error
}

func (e *BotError) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("[%s:%s] %s: %s: %v", e.Category, e.Component, e.Operation, e.Message, e.Underlying)
	}
	return fmt.Sprintf("[%s:%s] %s: %s", e.Category, e.Component, e.Operation, e.Message)
}

func (e *BotError) Unwrap() error {
	return e.Underlying
}

// IsFatal reports whether the error must stop the process. Only
// configuration errors are fatal; everything else is contained within the
// symbol task that hit it.
func (e *BotError) IsFatal() bool {
	return e.Category == ErrorCategoryConfig
}

// IsCritical reports whether the error leaves an unprotected open position
// and must be surfaced at elevated severity.
func (e *BotError) IsCritical() bool {
	return e.Category == ErrorCategoryBracket
}

// New creates a categorized error without an underlying cause.
func New(category ErrorCategory, component, operation, message string) *BotError {
	return &BotError{
		Category:  category,
		Component: component,
		Operation: operation,
		Message:   message,
	}
}

// Wrap attaches category and origin to an existing error. Returns nil for a
// nil cause.
func Wrap(err error, category ErrorCategory, component, operation string) *BotError {
	if err == nil {
		return nil
	}
	return &BotError{
		Category:   category,
		Component:  component,
		Operation:  operation,
		Message:    "operation failed",
		Underlying: err,
	}
}

// CategoryOf extracts the category from err, unwrapping as needed. Returns
// an empty category for errors produced outside this package.
func CategoryOf(err error) ErrorCategory {
	var be *BotError
	if errors.As(err, &be) {
		return be.Category
	}
	return ""
}

func NewFetchError(component, operation string, err error) *BotError {
	return Wrap(err, ErrorCategoryFetch, component, operation)
}

func NewPredictionError(component, operation string, err error) *BotError {
	return Wrap(err, ErrorCategoryPrediction, component, operation)
}

func NewOrderError(component, operation string, err error) *BotError {
	return Wrap(err, ErrorCategoryOrder, component, operation)
}

func NewBracketError(component, operation string, err error) *BotError {
	return Wrap(err, ErrorCategoryBracket, component, operation)
}

func NewConfigError(component, operation, message string) *BotError {
	return New(ErrorCategoryConfig, component, operation, message)
}
