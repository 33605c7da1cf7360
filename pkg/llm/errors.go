package llm

import (
	"errors"
	"strings"

	"github.com/ekaya-inc/dataquay/pkg/apperrors"
)

// ClassifyError wraps a provider failure as an OracleError, classifying
// retryability from the error text. Providers do not expose a common
// structured error type, so string matching is the lowest common
// denominator.
func ClassifyError(err error) *apperrors.OracleError {
	if err == nil {
		return nil
	}
	var oracleErr *apperrors.OracleError
	if errors.As(err, &oracleErr) {
		return oracleErr
	}

	lower := strings.ToLower(err.Error())

	switch {
	case strings.Contains(lower, "401") || strings.Contains(lower, "unauthorized") ||
		strings.Contains(lower, "invalid api key"):
		return &apperrors.OracleError{Message: "authentication failed", Retryable: false, Cause: err}

	case strings.Contains(lower, "model") &&
		(strings.Contains(lower, "not found") || strings.Contains(lower, "does not exist")):
		return &apperrors.OracleError{Message: "model not found", Retryable: false, Cause: err}

	case strings.Contains(lower, "404"):
		return &apperrors.OracleError{Message: "endpoint not found", Retryable: false, Cause: err}

	case strings.Contains(lower, "429") || strings.Contains(lower, "rate limit") ||
		strings.Contains(lower, "overloaded"):
		return &apperrors.OracleError{Message: "rate limited", Retryable: true, Cause: err}

	case strings.Contains(lower, "connection refused") || strings.Contains(lower, "no such host"):
		return &apperrors.OracleError{Message: "connection failed", Retryable: true, Cause: err}

	case strings.Contains(lower, "timeout") || strings.Contains(lower, "deadline exceeded"):
		return &apperrors.OracleError{Message: "request timeout", Retryable: true, Cause: err}

	case strings.Contains(lower, "500") || strings.Contains(lower, "502") ||
		strings.Contains(lower, "503") || strings.Contains(lower, "504"):
		return &apperrors.OracleError{Message: "provider error", Retryable: true, Cause: err}

	default:
		return &apperrors.OracleError{Message: "oracle call failed", Retryable: false, Cause: err}
	}
}
