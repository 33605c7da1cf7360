package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/dataquay/pkg/apperrors"
	"github.com/ekaya-inc/dataquay/pkg/config"
)

func newTestSource(t *testing.T) *Source {
	t.Helper()
	src, err := NewInMemory(context.Background(), "memory", zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { src.Close() })
	return src
}

func registerOrders(t *testing.T, src *Source) {
	t.Helper()
	err := src.RegisterTable(context.Background(), "orders",
		[]string{"id", "status", "total"},
		[][]any{
			{1, "pending", 10.5},
			{2, "shipped", 20.0},
			{3, "pending", 7.25},
			{4, "delivered", 99.0},
			{5, "pending", 3.0},
		})
	require.NoError(t, err)
}

func TestRegisterTableAndQuery(t *testing.T) {
	ctx := context.Background()
	src := newTestSource(t)
	registerOrders(t, src)

	result, err := src.Execute(ctx, "SELECT status, COUNT(*) AS n FROM orders GROUP BY status ORDER BY status")
	require.NoError(t, err)
	require.True(t, result.Ok())

	require.Equal(t, 3, result.Table.RowCount())
	assert.Equal(t, []string{"status", "n"}, result.Table.ColumnNames())
	assert.Equal(t, "delivered", result.Table.Rows[0]["status"])
	assert.Equal(t, int64(3), result.Table.Rows[1]["n"])
}

func TestRegisterTableReplacesExisting(t *testing.T) {
	ctx := context.Background()
	src := newTestSource(t)
	registerOrders(t, src)

	err := src.RegisterTable(ctx, "orders", []string{"id"}, [][]any{{42}})
	require.NoError(t, err)

	result, err := src.Execute(ctx, "SELECT id FROM orders")
	require.NoError(t, err)
	require.True(t, result.Ok())
	require.Equal(t, 1, result.Table.RowCount())
	assert.Equal(t, int64(42), result.Table.Rows[0]["id"])
}

func TestRegisterTableValidation(t *testing.T) {
	ctx := context.Background()
	src := newTestSource(t)

	err := src.RegisterTable(ctx, "", []string{"a"}, nil)
	require.Error(t, err)

	err = src.RegisterTable(ctx, "t", nil, nil)
	require.Error(t, err)

	err = src.RegisterTable(ctx, "t", []string{"a", "b"}, [][]any{{1}})
	require.Error(t, err)
	var confErr *apperrors.ConfigurationError
	assert.ErrorAs(t, err, &confErr)
}

func TestExecuteRejectsWrites(t *testing.T) {
	src := newTestSource(t)
	registerOrders(t, src)

	result, err := src.Execute(context.Background(), "DROP TABLE orders")
	require.NoError(t, err)
	require.NotNil(t, result.Err)
	assert.False(t, result.Ok())
	assert.Equal(t, "DROP TABLE orders", result.Err.Query)

	// The table survives.
	check, err := src.Execute(context.Background(), "SELECT COUNT(*) AS n FROM orders")
	require.NoError(t, err)
	require.True(t, check.Ok())
	assert.Equal(t, int64(5), check.Table.Rows[0]["n"])
}

func TestExecuteQueryErrorIsValue(t *testing.T) {
	src := newTestSource(t)

	result, err := src.Execute(context.Background(), "SELECT * FROM no_such_table")
	require.NoError(t, err)
	require.NotNil(t, result.Err)
	assert.Contains(t, result.Err.Error(), "no_such_table")
}

func TestExecuteAppliesRowLimit(t *testing.T) {
	ctx := context.Background()
	raw, err := New(ctx, &config.SourceConfig{
		SourceType:   config.SourceTypeSQLite,
		Name:         "limited",
		Path:         ":memory:",
		LimitMaxRows: 2,
	}, zap.NewNop())
	require.NoError(t, err)
	src := raw.(*Source)
	defer src.Close()

	registerOrders(t, src)

	result, err := src.Execute(ctx, "SELECT id FROM orders ORDER BY id")
	require.NoError(t, err)
	require.True(t, result.Ok())
	assert.Equal(t, 2, result.Table.RowCount())

	// Statements that cannot be wrapped still run.
	pragma, err := src.Execute(ctx, "PRAGMA table_info(orders)")
	require.NoError(t, err)
	assert.True(t, pragma.Ok())
}

func TestInspectRawSchema(t *testing.T) {
	src := newTestSource(t)
	registerOrders(t, src)

	raw, err := src.InspectRawSchema(context.Background())
	require.NoError(t, err)

	table := raw.Tables["orders"]
	require.NotNil(t, table)
	assert.Contains(t, raw.TableNames(), "orders")
	require.Len(t, table.Columns, 3)
	assert.Equal(t, "id", table.Columns[0].Name)
	assert.Equal(t, "INTEGER", table.Columns[0].DataType)
	assert.Equal(t, "status", table.Columns[1].Name)
	assert.Equal(t, "TEXT", table.Columns[1].DataType)
	assert.Equal(t, "REAL", table.Columns[2].DataType)
}

func TestClosedSource(t *testing.T) {
	src := newTestSource(t)
	require.NoError(t, src.Close())
	require.NoError(t, src.Close()) // idempotent

	_, err := src.Execute(context.Background(), "SELECT 1")
	assert.ErrorIs(t, err, apperrors.ErrSourceClosed)

	_, err = src.InspectRawSchema(context.Background())
	assert.ErrorIs(t, err, apperrors.ErrSourceClosed)

	err = src.RegisterTable(context.Background(), "t", []string{"a"}, nil)
	assert.ErrorIs(t, err, apperrors.ErrSourceClosed)
}
