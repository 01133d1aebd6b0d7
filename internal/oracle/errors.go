package oracle

import (
	"context"
	"errors"
	"fmt"

	"proptoken/internal/oracle/models"
)

// ErrorCategory normalizes provider failures.
type ErrorCategory string

const (
	ErrorTimeout        ErrorCategory = "timeout"
	ErrorCancelled      ErrorCategory = "cancelled"
	ErrorProviderOutage ErrorCategory = "provider_outage"
	ErrorBadData        ErrorCategory = "bad_data"
	ErrorInternal       ErrorCategory = "internal"
)

const (
	KindProviderError = "EvidenceProviderError"
	KindEmptyEvidence = "EmptyEvidenceError"
)

// ProviderError wraps a probe failure. Any provider error fails the whole verification.
type ProviderError struct {
	Category   ErrorCategory
	Source     string
	Message    string
	Underlying error
}

func (e *ProviderError) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("provider %s [%s]: %s: %v", e.Source, e.Category, e.Message, e.Underlying)
	}
	return fmt.Sprintf("provider %s [%s]: %s", e.Source, e.Category, e.Message)
}

func (e *ProviderError) Unwrap() error { return e.Underlying }

func (e *ProviderError) Kind() string { return KindProviderError }

// NewProviderError classifies err, mapping context errors to timeout/cancelled.
func NewProviderError(source string, err error) *ProviderError {
	category := ErrorProviderOutage
	msg := "probe failed"
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		category, msg = ErrorTimeout, "probe timed out"
	case errors.Is(err, context.Canceled):
		category, msg = ErrorCancelled, "probe cancelled"
	}
	return &ProviderError{Category: category, Source: source, Message: msg, Underlying: err}
}

// ErrEmptyEvidence matches every EmptyEvidenceError via errors.Is.
var ErrEmptyEvidence = errors.New("empty evidence list")

// EmptyEvidenceError is returned when a category has nothing to aggregate.
type EmptyEvidenceError struct {
	Category models.Category
}

func (e *EmptyEvidenceError) Error() string {
	return fmt.Sprintf("cannot aggregate %s: empty evidence list", e.Category)
}

func (e *EmptyEvidenceError) Unwrap() error { return ErrEmptyEvidence }

func (e *EmptyEvidenceError) Kind() string { return KindEmptyEvidence }
