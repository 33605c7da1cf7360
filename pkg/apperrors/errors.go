// Package apperrors defines the error taxonomy shared across dataquay.
package apperrors

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound reports a referenced table or column missing from the
	// physical schema. Always fatal to the inspection that raised it.
	ErrNotFound = errors.New("not found")

	// ErrCacheMiss is the control-flow signal for an absent cache entry.
	// It is not a failure and must never be surfaced to callers of Ask.
	ErrCacheMiss = errors.New("cache miss")

	// ErrSourceClosed reports use of a data source after Close.
	ErrSourceClosed = errors.New("data source is closed")
)

// NotFoundError identifies the exact table or column that does not exist in
// the backend's raw schema. Available lists the valid alternatives when the
// missing identifier is a column.
type NotFoundError struct {
	Kind      string // "table" or "column"
	Name      string // "orders" or "orders.total"
	Available []string
}

func (e *NotFoundError) Error() string {
	if len(e.Available) == 0 {
		return fmt.Sprintf("%s %s doesn't exist", e.Kind, e.Name)
	}
	return fmt.Sprintf("%s %s doesn't exist. Available columns: %s",
		e.Kind, e.Name, strings.Join(e.Available, ", "))
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// NewTableNotFound builds a NotFoundError for a missing table.
func NewTableNotFound(table string) *NotFoundError {
	return &NotFoundError{Kind: "table", Name: table}
}

// NewColumnNotFound builds a NotFoundError for a missing column, listing the
// columns that do exist on the table.
func NewColumnNotFound(table, column string, available []string) *NotFoundError {
	return &NotFoundError{Kind: "column", Name: table + "." + column, Available: available}
}

// ExecutionError reports a query that failed at the backend (syntax,
// permission, timeout, connectivity, guard rejection). It is recoverable at
// the agent-loop level: the loop feeds it back to the reasoning oracle as a
// tool result instead of raising it to the caller.
type ExecutionError struct {
	Query string
	Cause error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("query execution failed: %v", e.Cause)
}

func (e *ExecutionError) Unwrap() error { return e.Cause }

// NewExecutionError wraps a backend failure with the query that caused it.
func NewExecutionError(query string, cause error) *ExecutionError {
	return &ExecutionError{Query: query, Cause: cause}
}

// OracleError reports a failed reasoning-oracle call. Fatal to the current
// Ask: the loop transitions to FAILED and returns the error text as the
// result's Text field.
type OracleError struct {
	Message   string
	Retryable bool
	Cause     error
}

func (e *OracleError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("oracle: %s: %v", e.Message, e.Cause)
	}
	return "oracle: " + e.Message
}

func (e *OracleError) Unwrap() error { return e.Cause }

// ConfigurationError reports malformed options or adapter misconfiguration.
// Fatal at construction or call time, never silently defaulted.
type ConfigurationError struct {
	Field   string
	Message string
}

func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return "configuration: " + e.Message
	}
	return fmt.Sprintf("configuration: %s: %s", e.Field, e.Message)
}

// NewConfigurationError builds a ConfigurationError for the given field.
func NewConfigurationError(field, message string) *ConfigurationError {
	return &ConfigurationError{Field: field, Message: message}
}

// IsNotFound reports whether err is (or wraps) a missing-identifier error.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsCacheMiss reports whether err is the cache-miss signal.
func IsCacheMiss(err error) bool { return errors.Is(err, ErrCacheMiss) }
