package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrQuotaExceeded           = errors.New("quota exceeded")
	ErrAllCredentialsExhausted = errors.New("all credentials exhausted")
	ErrRetryBudgetExceeded     = errors.New("retry budget exceeded")
	ErrMalformedResponse       = errors.New("malformed response")
	ErrValidation              = errors.New("validation error")
	ErrConfiguration           = errors.New("configuration error")
	ErrNotFound                = errors.New("not found")
	ErrTimeout                 = errors.New("timeout")
	ErrTransient               = errors.New("transient failure")
)

// Wrap builds an error message that includes pipeline context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// IsRetryable reports whether the error class warrants another attempt with
// the same credential after a backoff delay.
func IsRetryable(err error) bool {
	switch {
	case errors.Is(err, ErrTransient), errors.Is(err, ErrTimeout), errors.Is(err, ErrMalformedResponse):
		return true
	default:
		return false
	}
}

// FailureReason maps an error to the reason code recorded in the ledger.
func FailureReason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrAllCredentialsExhausted):
		return "credentials_exhausted"
	case errors.Is(err, ErrQuotaExceeded):
		return "quota"
	case errors.Is(err, ErrRetryBudgetExceeded):
		return "retry_budget"
	case errors.Is(err, ErrMalformedResponse):
		return "malformed_response"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	default:
		return "transient"
	}
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
