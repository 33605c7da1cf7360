package inspect

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSemanticDictFull(t *testing.T) {
	dict, err := ParseSemanticDict([]byte("full: true\n"))
	require.NoError(t, err)
	assert.True(t, dict.Full)
}

func TestParseSemanticDictTables(t *testing.T) {
	dict, err := ParseSemanticDict([]byte(`
tables:
  orders:
    description: customer orders
    columns:
      status: current order state
      total: order amount in USD
  customers: all
`))
	require.NoError(t, err)
	assert.False(t, dict.Full)
	require.Len(t, dict.Tables, 2)

	orders := dict.Tables["orders"]
	require.NotNil(t, orders)
	assert.False(t, orders.All)
	assert.Equal(t, "customer orders", orders.Description)
	assert.Equal(t, "current order state", orders.Columns["status"])
	assert.Equal(t, "order amount in USD", orders.Columns["total"])

	customers := dict.Tables["customers"]
	require.NotNil(t, customers)
	assert.True(t, customers.All)
}

func TestParseSemanticDictRejectsUnknownMarker(t *testing.T) {
	_, err := ParseSemanticDict([]byte("tables:\n  orders: everything\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"orders"`)
}

func TestParseSemanticDictBadYAML(t *testing.T) {
	_, err := ParseSemanticDict([]byte("tables: [not a mapping"))
	require.Error(t, err)
}

func TestSemanticDictBuilders(t *testing.T) {
	dict := NewSemanticDict().
		SelectAll("customers").
		SelectColumns("orders", map[string]string{"status": ""}).
		Describe("orders", "customer orders")

	assert.True(t, dict.Tables["customers"].All)
	assert.Equal(t, "customer orders", dict.Tables["orders"].Description)
	assert.Contains(t, dict.Tables["orders"].Columns, "status")
}

func TestSemanticDictCacheDiscriminant(t *testing.T) {
	assert.Equal(t, map[string]any{"full": true}, FullDict().CacheDiscriminant())

	dict := NewSemanticDict().SelectAll("customers")
	disc := dict.CacheDiscriminant()
	tables, ok := disc["tables"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "all", tables["customers"])
}
