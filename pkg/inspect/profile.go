package inspect

import (
	"context"
	"fmt"
	"strconv"

	"github.com/ekaya-inc/dataquay/pkg/adapters/datasource"
	"github.com/ekaya-inc/dataquay/pkg/config"
	"github.com/ekaya-inc/dataquay/pkg/schema"
)

// profiler issues the per-column profiling SQL through the adapter
// contract, so identifier quoting, row caps, and the concurrency gate all
// come from the source itself.
type profiler struct {
	source datasource.DataSource
}

type generalStats struct {
	NRows      int64
	NNonNull   int64
	NUnique    int64
	NullRate   float64
	UniqueRate float64
}

func (p *profiler) run(ctx context.Context, query string) (*datasource.Table, error) {
	result, err := p.source.Execute(ctx, query)
	if err != nil {
		return nil, err
	}
	if !result.Ok() {
		return nil, result.Err
	}
	return result.Table, nil
}

func (p *profiler) generalStats(ctx context.Context, table, column string) (*generalStats, error) {
	qt := p.source.QuoteIdentifier(table)
	qc := p.source.QuoteIdentifier(column)
	query := fmt.Sprintf(
		"SELECT COUNT(*) AS n_rows, COUNT(%s) AS n_non_null, COUNT(DISTINCT %s) AS n_unique FROM %s",
		qc, qc, qt)

	res, err := p.run(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("profile %s.%s: %w", table, column, err)
	}
	if len(res.Rows) == 0 {
		return nil, fmt.Errorf("profile %s.%s: empty stats result", table, column)
	}

	row := res.Rows[0]
	stats := &generalStats{
		NRows:    toInt64(row["n_rows"]),
		NNonNull: toInt64(row["n_non_null"]),
		NUnique:  toInt64(row["n_unique"]),
	}
	if stats.NRows > 0 {
		stats.NullRate = 1.0 - float64(stats.NNonNull)/float64(stats.NRows)
		stats.UniqueRate = float64(stats.NUnique) / float64(stats.NRows)
	}
	return stats, nil
}

// distinctValues fetches up to limit distinct non-null values, ordered for
// stable summaries.
func (p *profiler) distinctValues(ctx context.Context, table, column string, limit int) ([]string, error) {
	qt := p.source.QuoteIdentifier(table)
	qc := p.source.QuoteIdentifier(column)

	var query string
	if p.source.Type() == config.SourceTypeMSSQL {
		query = fmt.Sprintf(
			"SELECT DISTINCT TOP (%d) %s AS value FROM %s WHERE %s IS NOT NULL ORDER BY %s",
			limit, qc, qt, qc, qc)
	} else {
		query = fmt.Sprintf(
			"SELECT DISTINCT %s AS value FROM %s WHERE %s IS NOT NULL ORDER BY %s LIMIT %d",
			qc, qt, qc, qc, limit)
	}

	res, err := p.run(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("fetch distinct values of %s.%s: %w", table, column, err)
	}
	values := make([]string, 0, len(res.Rows))
	for _, row := range res.Rows {
		values = append(values, toString(row["value"]))
	}
	return values, nil
}

// topKValues fetches the k most frequent values with their frequency as a
// fraction of all rows.
func (p *profiler) topKValues(ctx context.Context, table, column string, k int, nRows int64) ([]schema.TopKValue, error) {
	qt := p.source.QuoteIdentifier(table)
	qc := p.source.QuoteIdentifier(column)

	var query string
	if p.source.Type() == config.SourceTypeMSSQL {
		query = fmt.Sprintf(
			"SELECT TOP (%d) %s AS value, COUNT(*) AS freq FROM %s WHERE %s IS NOT NULL GROUP BY %s ORDER BY COUNT(*) DESC",
			k, qc, qt, qc, qc)
	} else {
		query = fmt.Sprintf(
			"SELECT %s AS value, COUNT(*) AS freq FROM %s WHERE %s IS NOT NULL GROUP BY %s ORDER BY COUNT(*) DESC LIMIT %d",
			qc, qt, qc, qc, k)
	}

	res, err := p.run(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("fetch top values of %s.%s: %w", table, column, err)
	}
	values := make([]schema.TopKValue, 0, len(res.Rows))
	for _, row := range res.Rows {
		freq := 0.0
		if nRows > 0 {
			freq = float64(toInt64(row["freq"])) / float64(nRows)
		}
		values = append(values, schema.TopKValue{
			Value:     toString(row["value"]),
			Frequency: freq,
		})
	}
	return values, nil
}

func (p *profiler) numericStats(ctx context.Context, table, column string, stats *schema.ColumnValuesStats) error {
	qt := p.source.QuoteIdentifier(table)
	qc := p.source.QuoteIdentifier(column)
	query := fmt.Sprintf(
		"SELECT MIN(%s) AS min_value, MAX(%s) AS max_value, AVG(%s) AS mean_value FROM %s",
		qc, qc, qc, qt)

	res, err := p.run(ctx, query)
	if err != nil {
		return fmt.Errorf("numeric stats of %s.%s: %w", table, column, err)
	}
	if len(res.Rows) == 0 {
		return nil
	}
	row := res.Rows[0]
	stats.Min = toFloatPtr(row["min_value"])
	stats.Max = toFloatPtr(row["max_value"])
	stats.Mean = toFloatPtr(row["mean_value"])
	return nil
}

func (p *profiler) stringLengthStats(ctx context.Context, table, column string, stats *schema.ColumnValuesStats) error {
	qt := p.source.QuoteIdentifier(table)
	qc := p.source.QuoteIdentifier(column)

	lengthFn := "LENGTH"
	if p.source.Type() == config.SourceTypeMSSQL {
		lengthFn = "LEN"
	}
	query := fmt.Sprintf(
		"SELECT MIN(%[1]s(%[2]s)) AS min_length, MAX(%[1]s(%[2]s)) AS max_length, AVG(%[1]s(%[2]s)) AS avg_length FROM %[3]s WHERE %[2]s IS NOT NULL",
		lengthFn, qc, qt)

	res, err := p.run(ctx, query)
	if err != nil {
		return fmt.Errorf("string stats of %s.%s: %w", table, column, err)
	}
	if len(res.Rows) == 0 {
		return nil
	}
	row := res.Rows[0]
	stats.MinLength = toInt64Ptr(row["min_length"])
	stats.MaxLength = toInt64Ptr(row["max_length"])
	stats.AvgLength = toFloatPtr(row["avg_length"])
	return nil
}

// Drivers return numbers as int64, float64, strings, or []byte depending on
// backend and column type; coerce tolerantly.

func toInt64(v any) int64 {
	switch val := v.(type) {
	case int64:
		return val
	case int:
		return int64(val)
	case int32:
		return int64(val)
	case float64:
		return int64(val)
	case string:
		n, _ := strconv.ParseInt(val, 10, 64)
		return n
	case []byte:
		n, _ := strconv.ParseInt(string(val), 10, 64)
		return n
	default:
		return 0
	}
}

func toFloat(v any) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int64:
		return float64(val), true
	case int:
		return float64(val), true
	case int32:
		return float64(val), true
	case string:
		f, err := strconv.ParseFloat(val, 64)
		return f, err == nil
	case []byte:
		f, err := strconv.ParseFloat(string(val), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func toFloatPtr(v any) *float64 {
	if v == nil {
		return nil
	}
	f, ok := toFloat(v)
	if !ok {
		return nil
	}
	return &f
}

func toInt64Ptr(v any) *int64 {
	if v == nil {
		return nil
	}
	n := toInt64(v)
	return &n
}

func toString(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case []byte:
		return string(val)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", val)
	}
}
