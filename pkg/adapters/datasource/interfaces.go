// Package datasource defines the contract every tabular backend adapter
// implements, plus the read-only query guard and the adapter registry.
// Concrete adapters live in the postgres, mssql, and sqlite subpackages.
package datasource

import (
	"context"

	"github.com/ekaya-inc/dataquay/pkg/apperrors"
	"github.com/ekaya-inc/dataquay/pkg/schema"
)

// DataSource is the uniform surface the inspector and agent loop use to
// talk to a backend. Implementations bound their own backend concurrency:
// queries and schema profiling draw from one per-instance semaphore.
type DataSource interface {
	// Name is the session-unique identifier for this source.
	Name() string

	// Type is the adapter kind, e.g. "postgres".
	Type() string

	// Execute runs a read-only query. Query failures (syntax errors,
	// unknown relations, timeouts) come back inside Result.Err, not as
	// the returned error; the error return is reserved for conditions
	// that make the source unusable, like a closed pool or a cancelled
	// context.
	Execute(ctx context.Context, query string) (*Result, error)

	// InspectRawSchema lists tables and their columns with backend
	// type names, without any value sampling or statistics.
	InspectRawSchema(ctx context.Context) (*schema.RawSchema, error)

	// QuoteIdentifier makes an identifier safe to splice into SQL for
	// this backend's dialect.
	QuoteIdentifier(name string) string

	// Close releases the connection pool. The source is unusable after.
	Close() error
}

// Column describes one result column.
type Column struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Table is a materialized query result.
type Table struct {
	Columns []Column         `json:"columns"`
	Rows    []map[string]any `json:"rows"`
}

// RowCount returns the number of materialized rows.
func (t *Table) RowCount() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// ColumnNames returns result column names in order.
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// Truncated returns a copy limited to the first limit rows, along with the
// number of rows dropped. limit <= 0 returns the table unchanged.
func (t *Table) Truncated(limit int) (*Table, int) {
	if t == nil || limit <= 0 || len(t.Rows) <= limit {
		return t, 0
	}
	return &Table{Columns: t.Columns, Rows: t.Rows[:limit]}, len(t.Rows) - limit
}

// Result is the outcome of one Execute call. Exactly one of Table and Err
// is set.
type Result struct {
	Table *Table
	// Err carries the backend failure for the query, if any. It is part
	// of the value so the agent loop can feed it back to the oracle
	// instead of aborting.
	Err *apperrors.ExecutionError
}

// Ok reports whether the query produced a table.
func (r *Result) Ok() bool { return r != nil && r.Err == nil }
