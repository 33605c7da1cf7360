package inspect

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/dataquay/pkg/adapters/datasource"
	"github.com/ekaya-inc/dataquay/pkg/apperrors"
	"github.com/ekaya-inc/dataquay/pkg/cache"
	"github.com/ekaya-inc/dataquay/pkg/schema"
)

// columnProfile is the canned backend behavior for one column.
type columnProfile struct {
	nRows    int64
	nNonNull int64
	nUnique  int64
	distinct []string
	topK     []map[string]any
}

var profiles = map[string]columnProfile{
	"orders.id":         {nRows: 100, nNonNull: 100, nUnique: 100},
	"orders.status":     {nRows: 100, nNonNull: 90, nUnique: 3, distinct: []string{"delivered", "pending", "shipped"}, topK: []map[string]any{{"value": "pending", "freq": int64(60)}, {"value": "shipped", "freq": int64(25)}, {"value": "delivered", "freq": int64(5)}}},
	"orders.total":      {nRows: 100, nNonNull: 100, nUnique: 80},
	"orders.created_at": {nRows: 100, nNonNull: 100, nUnique: 100},
	"customers.id":      {nRows: 100, nNonNull: 100, nUnique: 100},
	"customers.email":   {nRows: 100, nNonNull: 100, nUnique: 100},
	"audit_log.id":      {nRows: 10, nNonNull: 10, nUnique: 10},
	"audit_log.action":  {nRows: 10, nNonNull: 10, nUnique: 5, distinct: []string{"login", "logout", "purchase"}, topK: []map[string]any{{"value": "login", "freq": int64(4)}, {"value": "logout", "freq": int64(3)}, {"value": "purchase", "freq": int64(3)}}},
}

func testRawSchema() *schema.RawSchema {
	raw := schema.NewRawSchema()
	raw.AddTable(&schema.RawTable{Name: "orders", Columns: []schema.RawColumn{
		{Name: "id", DataType: "INTEGER"},
		{Name: "status", DataType: "VARCHAR(20)"},
		{Name: "total", DataType: "NUMERIC(10,2)"},
		{Name: "created_at", DataType: "TIMESTAMP"},
	}})
	raw.AddTable(&schema.RawTable{Name: "customers", Columns: []schema.RawColumn{
		{Name: "id", DataType: "INTEGER"},
		{Name: "email", DataType: "TEXT"},
	}})
	raw.AddTable(&schema.RawTable{Name: "audit_log", Columns: []schema.RawColumn{
		{Name: "id", DataType: "INTEGER"},
		{Name: "action", DataType: "TEXT"},
	}})
	return raw
}

// queryTarget pulls the first quoted identifier (the column) and the quoted
// table after FROM out of a profiling query.
func queryTarget(q string) (table, column string) {
	if i := strings.Index(q, `"`); i >= 0 {
		rest := q[i+1:]
		column = rest[:strings.Index(rest, `"`)]
	}
	if i := strings.Index(q, `FROM "`); i >= 0 {
		rest := q[i+len(`FROM "`):]
		table = rest[:strings.Index(rest, `"`)]
	}
	return table, column
}

func rowsResult(rows ...map[string]any) (*datasource.Result, error) {
	return &datasource.Result{Table: &datasource.Table{Rows: rows}}, nil
}

func fakeSource(t *testing.T) *datasource.MockSource {
	t.Helper()
	return &datasource.MockSource{
		NameValue: "shop",
		TypeValue: "sqlite",
		InspectRawSchemaFunc: func(ctx context.Context) (*schema.RawSchema, error) {
			return testRawSchema(), nil
		},
		ExecuteFunc: func(ctx context.Context, q string) (*datasource.Result, error) {
			table, column := queryTarget(q)
			profile, ok := profiles[table+"."+column]
			require.True(t, ok, "unexpected profiling target in query: %s", q)

			switch {
			case strings.Contains(q, "n_unique"):
				return rowsResult(map[string]any{
					"n_rows":     profile.nRows,
					"n_non_null": profile.nNonNull,
					"n_unique":   profile.nUnique,
				})
			case strings.Contains(q, "SELECT DISTINCT"):
				rows := make([]map[string]any, len(profile.distinct))
				for i, v := range profile.distinct {
					rows[i] = map[string]any{"value": v}
				}
				return rowsResult(rows...)
			case strings.Contains(q, "GROUP BY"):
				return rowsResult(profile.topK...)
			case strings.Contains(q, "min_length"):
				return rowsResult(map[string]any{
					"min_length": int64(3), "max_length": int64(20), "avg_length": 8.5,
				})
			case strings.Contains(q, "min_value"):
				return rowsResult(map[string]any{
					"min_value": 1.5, "max_value": 99.0, "mean_value": 40.25,
				})
			default:
				t.Fatalf("unexpected profiling query: %s", q)
				return nil, nil
			}
		},
	}
}

func newTestInspector(t *testing.T, memo cache.Cache) (*Inspector, *datasource.MockSource) {
	t.Helper()
	src := fakeSource(t)
	return NewInspector(src, memo, zap.NewNop()), src
}

func TestInspectFullDict(t *testing.T) {
	ins, src := newTestInspector(t, nil)

	out, err := ins.Inspect(context.Background(), FullDict(), DefaultOptions())
	require.NoError(t, err)

	// Catalog order, every table, every column.
	var names []string
	for _, ts := range out.OrderedTables() {
		names = append(names, ts.Name)
	}
	assert.Equal(t, []string{"orders", "customers", "audit_log"}, names)

	orders := out.Tables["orders"]
	require.NotNil(t, orders)
	assert.Equal(t, []string{"id", "status", "total", "created_at"}, orders.ColumnOrder)
	assert.Equal(t, "VARCHAR(20)", orders.Columns["status"].DataType)

	// No sampling, no stats: nothing hits the backend beyond the catalog.
	assert.Empty(t, src.ExecuteCalls())
	assert.Equal(t, 1, src.InspectCallCount())
}

func TestInspectExplicitSelection(t *testing.T) {
	ins, _ := newTestInspector(t, nil)

	dict := NewSemanticDict().
		SelectColumns("orders", map[string]string{"status": "current order state"}).
		Describe("orders", "customer orders")

	out, err := ins.Inspect(context.Background(), dict, DefaultOptions())
	require.NoError(t, err)

	require.Len(t, out.Tables, 1)
	orders := out.Tables["orders"]
	require.NotNil(t, orders)
	assert.Equal(t, "customer orders", orders.Description)
	assert.Equal(t, []string{"status"}, orders.ColumnOrder)
	assert.Equal(t, "current order state", orders.Columns["status"].Description)
}

func TestInspectUnknownTable(t *testing.T) {
	ins, _ := newTestInspector(t, nil)

	dict := NewSemanticDict().SelectAll("shipments")
	_, err := ins.Inspect(context.Background(), dict, DefaultOptions())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "table shipments doesn't exist")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestInspectUnknownColumn(t *testing.T) {
	ins, _ := newTestInspector(t, nil)

	dict := NewSemanticDict().SelectColumns("orders", map[string]string{"discount": ""})
	_, err := ins.Inspect(context.Background(), dict, DefaultOptions())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "column orders.discount doesn't exist")
	assert.Contains(t, err.Error(), "Available columns:")
	assert.Contains(t, err.Error(), "status")
}

func TestTablesRegexAddsUnlistedTables(t *testing.T) {
	ins, _ := newTestInspector(t, nil)

	dict := NewSemanticDict().SelectColumns("orders", map[string]string{"status": ""})
	opts := DefaultOptions()
	opts.TablesRegex = "orders|customers"

	out, err := ins.Inspect(context.Background(), dict, opts)
	require.NoError(t, err)

	// The explicit entry wins over the regex match.
	require.Contains(t, out.Tables, "orders")
	assert.Equal(t, []string{"status"}, out.Tables["orders"].ColumnOrder)

	// The regex-added table carries all of its columns.
	require.Contains(t, out.Tables, "customers")
	assert.Equal(t, []string{"id", "email"}, out.Tables["customers"].ColumnOrder)

	assert.NotContains(t, out.Tables, "audit_log")
}

func TestTablesRegexMatchesWholeName(t *testing.T) {
	ins, _ := newTestInspector(t, nil)

	opts := DefaultOptions()
	opts.TablesRegex = "order" // prefix of "orders", not a full match

	out, err := ins.Inspect(context.Background(), NewSemanticDict(), opts)
	require.NoError(t, err)
	assert.Empty(t, out.Tables)
}

func TestColumnsRegexExtendsExplicitTables(t *testing.T) {
	ins, _ := newTestInspector(t, nil)

	dict := NewSemanticDict().
		SelectColumns("orders", map[string]string{"status": "state"}).
		SelectAll("customers")
	opts := DefaultOptions()
	opts.ColumnsRegex = "id|total"

	out, err := ins.Inspect(context.Background(), dict, opts)
	require.NoError(t, err)

	// Regex-matched columns join the explicit set, in physical order.
	assert.Equal(t, []string{"id", "status", "total"}, out.Tables["orders"].ColumnOrder)
	assert.Equal(t, "state", out.Tables["orders"].Columns["status"].Description)

	// "all" tables are never filtered by the columns regex.
	assert.Equal(t, []string{"id", "email"}, out.Tables["customers"].ColumnOrder)
}

func TestInspectBadRegex(t *testing.T) {
	ins, _ := newTestInspector(t, nil)

	opts := DefaultOptions()
	opts.TablesRegex = "["
	_, err := ins.Inspect(context.Background(), FullDict(), opts)
	require.Error(t, err)
	var confErr *apperrors.ConfigurationError
	require.ErrorAs(t, err, &confErr)
	assert.Equal(t, "tables_regex", confErr.Field)

	opts = DefaultOptions()
	opts.ColumnsRegex = "("
	_, err = ins.Inspect(context.Background(), FullDict(), opts)
	require.Error(t, err)
	require.ErrorAs(t, err, &confErr)
	assert.Equal(t, "columns_regex", confErr.Field)
}

func TestCategoricalSampling(t *testing.T) {
	ins, src := newTestInspector(t, nil)

	opts := DefaultOptions()
	opts.ValueSampling = SamplingCategoricalOnly

	out, err := ins.Inspect(context.Background(), FullDict(), opts)
	require.NoError(t, err)

	// Low-cardinality string columns get their full enumeration.
	status := out.Tables["orders"].Columns["status"]
	assert.Equal(t, []string{"delivered", "pending", "shipped"}, status.Values)
	action := out.Tables["audit_log"].Columns["action"]
	assert.Equal(t, []string{"login", "logout", "purchase"}, action.Values)

	// High-cardinality strings and non-string columns get none.
	assert.Empty(t, out.Tables["customers"].Columns["email"].Values)
	assert.Empty(t, out.Tables["orders"].Columns["total"].Values)
	assert.Empty(t, out.Tables["orders"].Columns["created_at"].Values)

	// Only the qualifying columns were enumerated.
	for _, q := range src.ExecuteCalls() {
		if strings.Contains(q, "SELECT DISTINCT") {
			_, column := queryTarget(q)
			assert.Contains(t, []string{"status", "action"}, column)
		}
	}
}

func TestTopPSampling(t *testing.T) {
	ins, src := newTestInspector(t, nil)

	opts := DefaultOptions()
	opts.ValueSampling = SamplingTopP

	out, err := ins.Inspect(context.Background(), FullDict(), opts)
	require.NoError(t, err)

	// Repetitive column: frequencies over all rows.
	status := out.Tables["orders"].Columns["status"]
	require.NotNil(t, status.ValueStats)
	require.Len(t, status.ValueStats.TopKValues, 3)
	assert.Equal(t, schema.TopKValue{Value: "pending", Frequency: 0.6}, status.ValueStats.TopKValues[0])
	assert.Equal(t, schema.TopKValue{Value: "shipped", Frequency: 0.25}, status.ValueStats.TopKValues[1])

	// Near-unique small table: sampled despite the unique rate.
	action := out.Tables["audit_log"].Columns["action"]
	require.NotNil(t, action.ValueStats)
	assert.Equal(t, "login", action.ValueStats.TopKValues[0].Value)

	// Identifiers, datetimes, and near-unique large columns are skipped.
	assert.Nil(t, out.Tables["orders"].Columns["id"].ValueStats)
	assert.Nil(t, out.Tables["orders"].Columns["created_at"].ValueStats)
	assert.Nil(t, out.Tables["orders"].Columns["total"].ValueStats)
	assert.Nil(t, out.Tables["customers"].Columns["email"].ValueStats)

	for _, q := range src.ExecuteCalls() {
		if strings.Contains(q, "GROUP BY") {
			_, column := queryTarget(q)
			assert.Contains(t, []string{"status", "action"}, column)
		}
	}
}

func TestInspectColumnStats(t *testing.T) {
	ins, _ := newTestInspector(t, nil)

	opts := DefaultOptions()
	opts.InspectColumnStats = true

	out, err := ins.Inspect(context.Background(), FullDict(), opts)
	require.NoError(t, err)

	status := out.Tables["orders"].Columns["status"]
	require.NotNil(t, status.ValueStats)
	require.NotNil(t, status.ValueStats.DistinctCount)
	assert.Equal(t, int64(3), *status.ValueStats.DistinctCount)
	require.NotNil(t, status.ValueStats.NullRate)
	assert.InDelta(t, 0.1, *status.ValueStats.NullRate, 1e-9)
	require.NotNil(t, status.ValueStats.UniqueRate)
	assert.InDelta(t, 0.03, *status.ValueStats.UniqueRate, 1e-9)

	// String columns get length stats, not numeric ones.
	require.NotNil(t, status.ValueStats.MinLength)
	assert.Equal(t, int64(3), *status.ValueStats.MinLength)
	assert.Nil(t, status.ValueStats.Min)

	// Numeric non-identifier columns get min/max/mean.
	total := out.Tables["orders"].Columns["total"]
	require.NotNil(t, total.ValueStats)
	require.NotNil(t, total.ValueStats.Min)
	assert.Equal(t, 1.5, *total.ValueStats.Min)
	assert.Equal(t, 99.0, *total.ValueStats.Max)
	assert.Equal(t, 40.25, *total.ValueStats.Mean)

	// Identifier columns keep counts but skip numeric summaries.
	id := out.Tables["orders"].Columns["id"]
	require.NotNil(t, id.ValueStats)
	assert.NotNil(t, id.ValueStats.DistinctCount)
	assert.Nil(t, id.ValueStats.Min)
}

func TestIntermediateCachingSkipsProfiledColumns(t *testing.T) {
	ctx := context.Background()
	memo := cache.NewMemoryCache()
	ins, src := newTestInspector(t, memo)

	opts := DefaultOptions()
	opts.InspectColumnStats = true
	opts.CacheIntermediateResults = true

	first, err := ins.Inspect(ctx, FullDict(), opts)
	require.NoError(t, err)
	firstCalls := len(src.ExecuteCalls())
	require.Positive(t, firstCalls)

	// Second run is served entirely from the intermediate cache.
	second, err := ins.Inspect(ctx, FullDict(), opts)
	require.NoError(t, err)
	assert.Equal(t, firstCalls, len(src.ExecuteCalls()))
	assert.Equal(t, first.Tables["orders"].Columns["total"].ValueStats,
		second.Tables["orders"].Columns["total"].ValueStats)

	// Different options profile from scratch.
	statsOff := DefaultOptions()
	statsOff.ValueSampling = SamplingCategoricalOnly
	statsOff.CacheIntermediateResults = true
	_, err = ins.Inspect(ctx, FullDict(), statsOff)
	require.NoError(t, err)
	assert.Greater(t, len(src.ExecuteCalls()), firstCalls)

	// Invalidation forces a full re-profile.
	before := len(src.ExecuteCalls())
	require.NoError(t, ins.Invalidate(ctx))
	_, err = ins.Inspect(ctx, FullDict(), opts)
	require.NoError(t, err)
	assert.Equal(t, before+firstCalls, len(src.ExecuteCalls()))
}

func TestInspectPropagatesExecutionErrors(t *testing.T) {
	src := fakeSource(t)
	src.ExecuteFunc = func(ctx context.Context, q string) (*datasource.Result, error) {
		return &datasource.Result{
			Err: apperrors.NewExecutionError(q, assert.AnError),
		}, nil
	}
	ins := NewInspector(src, nil, zap.NewNop())

	opts := DefaultOptions()
	opts.InspectColumnStats = true
	_, err := ins.Inspect(context.Background(), FullDict(), opts)
	require.Error(t, err)
	var execErr *apperrors.ExecutionError
	assert.ErrorAs(t, err, &execErr)
}
