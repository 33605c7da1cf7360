package schema

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatValuesTruncates(t *testing.T) {
	values := []string{"a", "b", "c", "d", "e"}

	got := FormatValues(values, 3)
	assert.Equal(t, []string{"a", "b", "c", ValuesEllipsis}, got)

	// Under the cap nothing changes.
	assert.Equal(t, values, FormatValues(values, 5))
	assert.Equal(t, values, FormatValues(values, 10))
}

func TestFormatValuesDoesNotAliasInput(t *testing.T) {
	values := []string{"x", "y"}
	got := FormatValues(values, 5)
	got[0] = "mutated"
	assert.Equal(t, "x", values[0])
}

func buildTestSchema() *DatabaseSchema {
	db := NewDatabaseSchema("sqlite", "shop")

	orders := &TableSchema{Name: "orders", Description: "customer orders"}
	orders.AddColumn(&ColumnSchema{Name: "id", DataType: "INTEGER"})
	orders.AddColumn(&ColumnSchema{
		Name:        "status",
		DataType:    "TEXT",
		Description: "current order state",
		Values:      []string{"delivered", "pending", "shipped"},
	})
	db.AddTable(orders)

	customers := &TableSchema{Name: "customers"}
	customers.AddColumn(&ColumnSchema{Name: "name", DataType: "TEXT"})
	db.AddTable(customers)

	return db
}

func TestSummarizeFull(t *testing.T) {
	out := Summarize(buildTestSchema(), SummaryFull)

	assert.Contains(t, out, "Database: shop (sqlite)")
	assert.Contains(t, out, "Table orders -- customer orders")
	assert.Contains(t, out, "status TEXT -- current order state")
	assert.Contains(t, out, "[values: delivered, pending, shipped]")
	assert.Contains(t, out, "Table customers")

	// Insertion order is preserved.
	assert.Less(t, strings.Index(out, "orders"), strings.Index(out, "customers"))
}

func TestSummarizeCompactOmitsAnnotations(t *testing.T) {
	out := Summarize(buildTestSchema(), SummaryCompact)

	assert.Contains(t, out, "status TEXT")
	assert.NotContains(t, out, "values:")
	assert.NotContains(t, out, "current order state")
}

func TestSummarizeStatsBlock(t *testing.T) {
	distinct := int64(3)
	nullRate := 0.25
	db := NewDatabaseSchema("postgres", "")
	table := &TableSchema{Name: "t"}
	table.AddColumn(&ColumnSchema{
		Name:     "amount",
		DataType: "numeric",
		ValueStats: &ColumnValuesStats{
			DistinctCount: &distinct,
			NullRate:      &nullRate,
			TopKValues: []TopKValue{
				{Value: "10", Frequency: 0.5},
			},
		},
	})
	db.AddTable(table)

	out := Summarize(db, SummaryFull)
	assert.Contains(t, out, "distinct=3")
	assert.Contains(t, out, "null_rate=0.25")
	assert.Contains(t, out, "10 (50%)")
}

func TestSummarizesJoinsSources(t *testing.T) {
	a := NewDatabaseSchema("sqlite", "a")
	b := NewDatabaseSchema("postgres", "b")
	out := Summarizes([]*DatabaseSchema{a, b}, SummaryCompact)

	assert.Contains(t, out, "Database: a (sqlite)")
	assert.Contains(t, out, "Database: b (postgres)")
}

func TestTableOrderingStable(t *testing.T) {
	db := NewDatabaseSchema("sqlite", "")
	for _, name := range []string{"zeta", "alpha", "mid"} {
		db.AddTable(&TableSchema{Name: name})
	}
	tables := db.OrderedTables()
	require.Len(t, tables, 3)
	assert.Equal(t, "zeta", tables[0].Name)
	assert.Equal(t, "alpha", tables[1].Name)
	assert.Equal(t, "mid", tables[2].Name)

	// Re-adding an existing table keeps its slot.
	db.AddTable(&TableSchema{Name: "alpha", Description: "updated"})
	tables = db.OrderedTables()
	require.Len(t, tables, 3)
	assert.Equal(t, "alpha", tables[1].Name)
	assert.Equal(t, "updated", tables[1].Description)
}

func TestRawTableLookup(t *testing.T) {
	table := &RawTable{
		Name: "orders",
		Columns: []RawColumn{
			{Name: "id", DataType: "INTEGER"},
			{Name: "status", DataType: "TEXT"},
		},
	}

	col, ok := table.Column("status")
	require.True(t, ok)
	assert.Equal(t, "TEXT", col.DataType)

	_, ok = table.Column("missing")
	assert.False(t, ok)
	assert.Equal(t, []string{"id", "status"}, table.ColumnNames())
}
