package schema

import (
	"fmt"
	"strings"
)

// SummaryMode selects how much detail a schema summary carries.
type SummaryMode string

const (
	// SummaryFull includes descriptions, sampled values, and statistics.
	SummaryFull SummaryMode = "full"
	// SummaryCompact includes names and types only.
	SummaryCompact SummaryMode = "compact"
)

// ValuesEllipsis marks a truncated enumeration in summaries and value lists.
const ValuesEllipsis = "..."

// FormatValues truncates a distinct-values list to at most max entries,
// appending an ellipsis marker when values were dropped.
func FormatValues(values []string, max int) []string {
	if max <= 0 || len(values) <= max {
		return append([]string(nil), values...)
	}
	out := make([]string, 0, max+1)
	out = append(out, values[:max]...)
	return append(out, ValuesEllipsis)
}

// Summarize renders a DatabaseSchema into prompt text describing the
// available tables and columns.
func Summarize(db *DatabaseSchema, mode SummaryMode) string {
	var b strings.Builder

	if db.Name != "" {
		fmt.Fprintf(&b, "Database: %s (%s)\n", db.Name, db.DBType)
	} else {
		fmt.Fprintf(&b, "Database type: %s\n", db.DBType)
	}
	if db.Description != "" {
		b.WriteString(db.Description)
		b.WriteString("\n")
	}

	for _, table := range db.OrderedTables() {
		b.WriteString("\n")
		if table.SchemaName != "" {
			fmt.Fprintf(&b, "Table %s.%s", table.SchemaName, table.Name)
		} else {
			fmt.Fprintf(&b, "Table %s", table.Name)
		}
		if mode == SummaryFull && table.Description != "" {
			fmt.Fprintf(&b, " -- %s", table.Description)
		}
		b.WriteString("\n")

		for _, col := range table.OrderedColumns() {
			fmt.Fprintf(&b, "  %s %s", col.Name, col.DataType)
			if mode == SummaryCompact {
				b.WriteString("\n")
				continue
			}
			if col.Description != "" {
				fmt.Fprintf(&b, " -- %s", col.Description)
			}
			if len(col.Values) > 0 {
				fmt.Fprintf(&b, " [values: %s]", strings.Join(col.Values, ", "))
			}
			if s := col.ValueStats; !s.IsZero() {
				b.WriteString(summarizeStats(s))
			}
			b.WriteString("\n")
		}
	}

	return strings.TrimRight(b.String(), "\n") + "\n"
}

// Summarizes renders multiple schemas, one block per source.
func Summarizes(dbs []*DatabaseSchema, mode SummaryMode) string {
	parts := make([]string, 0, len(dbs))
	for _, db := range dbs {
		parts = append(parts, Summarize(db, mode))
	}
	return strings.Join(parts, "\n")
}

func summarizeStats(s *ColumnValuesStats) string {
	var parts []string

	if s.DistinctCount != nil {
		parts = append(parts, fmt.Sprintf("distinct=%d", *s.DistinctCount))
	}
	if s.NullRate != nil {
		parts = append(parts, fmt.Sprintf("null_rate=%.2f", *s.NullRate))
	}
	if s.Min != nil && s.Max != nil {
		parts = append(parts, fmt.Sprintf("range=[%g, %g]", *s.Min, *s.Max))
	}
	if s.Mean != nil {
		parts = append(parts, fmt.Sprintf("mean=%g", *s.Mean))
	}
	if s.MinLength != nil && s.MaxLength != nil {
		parts = append(parts, fmt.Sprintf("len=[%d, %d]", *s.MinLength, *s.MaxLength))
	}
	if len(s.TopKValues) > 0 {
		top := make([]string, 0, len(s.TopKValues))
		for _, kv := range s.TopKValues {
			top = append(top, fmt.Sprintf("%s (%.0f%%)", kv.Value, kv.Frequency*100))
		}
		parts = append(parts, "top: "+strings.Join(top, ", "))
	}

	if len(parts) == 0 {
		return ""
	}
	return " {" + strings.Join(parts, "; ") + "}"
}
