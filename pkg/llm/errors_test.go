package llm

import (
	"errors"
	"testing"

	"github.com/ekaya-inc/dataquay/pkg/apperrors"
)

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		message   string
		retryable bool
	}{
		{"unauthorized", errors.New("status 401 Unauthorized"), "authentication failed", false},
		{"invalid key", errors.New("invalid api key provided"), "authentication failed", false},
		{"model missing", errors.New("the model `gpt-9` does not exist"), "model not found", false},
		{"endpoint missing", errors.New("status 404"), "endpoint not found", false},
		{"rate limited", errors.New("429 Too Many Requests"), "rate limited", true},
		{"overloaded", errors.New("overloaded_error: try again"), "rate limited", true},
		{"connection", errors.New("dial tcp: connection refused"), "connection failed", true},
		{"dns", errors.New("lookup api.example.com: no such host"), "connection failed", true},
		{"timeout", errors.New("context deadline exceeded"), "request timeout", true},
		{"server error", errors.New("status 503 Service Unavailable"), "provider error", true},
		{"unknown", errors.New("something odd happened"), "oracle call failed", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifyError(tt.err)
			if got.Message != tt.message {
				t.Errorf("message = %q, want %q", got.Message, tt.message)
			}
			if got.Retryable != tt.retryable {
				t.Errorf("retryable = %v, want %v", got.Retryable, tt.retryable)
			}
			if !errors.Is(got, tt.err) {
				t.Error("classified error should wrap the cause")
			}
		})
	}
}

func TestClassifyErrorPassthrough(t *testing.T) {
	if ClassifyError(nil) != nil {
		t.Error("nil error should classify to nil")
	}

	original := &apperrors.OracleError{Message: "already classified", Retryable: true}
	if got := ClassifyError(original); got != original {
		t.Error("existing OracleError should pass through unchanged")
	}
}
