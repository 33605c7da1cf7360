// Package schema holds the typed representation of an inspected database:
// catalogs, tables, columns, and per-column value statistics.
package schema

// TopKValue is one entry of a most-frequent-values profile.
type TopKValue struct {
	Value     string  `json:"value"`
	Frequency float64 `json:"frequency"` // fraction of non-null rows, 0.0-1.0
}

// ColumnValuesStats holds profiling information about a column. All fields
// are optional; nil means the statistic was not computed for this column.
type ColumnValuesStats struct {
	DistinctCount *int64   `json:"distinct_count,omitempty"`
	NullRate      *float64 `json:"null_rate,omitempty"`
	UniqueRate    *float64 `json:"unique_rate,omitempty"`

	// Numeric summary stats (numeric, non-identifier columns only)
	Min  *float64 `json:"min,omitempty"`
	Max  *float64 `json:"max,omitempty"`
	Mean *float64 `json:"mean,omitempty"`

	// String-length summary stats (string columns only)
	MinLength *int64   `json:"min_length,omitempty"`
	MaxLength *int64   `json:"max_length,omitempty"`
	AvgLength *float64 `json:"avg_length,omitempty"`

	TopKValues []TopKValue `json:"top_k_values_with_frequencies,omitempty"`
}

// IsZero reports whether no statistic was computed.
func (s *ColumnValuesStats) IsZero() bool {
	if s == nil {
		return true
	}
	return s.DistinctCount == nil && s.NullRate == nil && s.UniqueRate == nil &&
		s.Min == nil && s.Max == nil && s.Mean == nil &&
		s.MinLength == nil && s.MaxLength == nil && s.AvgLength == nil &&
		len(s.TopKValues) == 0
}

// ColumnSchema describes one inspected column. Immutable once constructed.
type ColumnSchema struct {
	Name        string `json:"name"`
	DataType    string `json:"dtype"`
	Description string `json:"description,omitempty"`

	// Values holds all distinct values for low-cardinality string columns.
	Values     []string           `json:"values,omitempty"`
	ValueStats *ColumnValuesStats `json:"value_stats,omitempty"`
}

// TableSchema describes one inspected table. Columns preserves insertion
// order so schema summaries are stable across runs.
type TableSchema struct {
	Name        string                   `json:"name"`
	SchemaName  string                   `json:"schema_name,omitempty"`
	Description string                   `json:"description,omitempty"`
	Columns     map[string]*ColumnSchema `json:"columns"`
	// ColumnOrder lists column names in physical order.
	ColumnOrder []string `json:"column_order,omitempty"`
}

// AddColumn records a column, keeping physical ordering.
func (t *TableSchema) AddColumn(col *ColumnSchema) {
	if t.Columns == nil {
		t.Columns = make(map[string]*ColumnSchema)
	}
	if _, exists := t.Columns[col.Name]; !exists {
		t.ColumnOrder = append(t.ColumnOrder, col.Name)
	}
	t.Columns[col.Name] = col
}

// OrderedColumns returns columns in physical order.
func (t *TableSchema) OrderedColumns() []*ColumnSchema {
	cols := make([]*ColumnSchema, 0, len(t.Columns))
	for _, name := range t.ColumnOrder {
		if c, ok := t.Columns[name]; ok {
			cols = append(cols, c)
		}
	}
	return cols
}

// DatabaseSchema is the result of one schema inspection. Produced fresh per
// inspection request but may be served from cache.
type DatabaseSchema struct {
	DBType      string                  `json:"db_type"`
	Name        string                  `json:"name,omitempty"`
	Description string                  `json:"description,omitempty"`
	Tables      map[string]*TableSchema `json:"tables"`
	TableOrder  []string                `json:"table_order,omitempty"`
}

// NewDatabaseSchema creates an empty schema for the given backend type.
func NewDatabaseSchema(dbType, name string) *DatabaseSchema {
	return &DatabaseSchema{
		DBType: dbType,
		Name:   name,
		Tables: make(map[string]*TableSchema),
	}
}

// AddTable records a table, keeping first-seen ordering.
func (d *DatabaseSchema) AddTable(table *TableSchema) {
	if d.Tables == nil {
		d.Tables = make(map[string]*TableSchema)
	}
	if _, exists := d.Tables[table.Name]; !exists {
		d.TableOrder = append(d.TableOrder, table.Name)
	}
	d.Tables[table.Name] = table
}

// OrderedTables returns tables in first-seen order.
func (d *DatabaseSchema) OrderedTables() []*TableSchema {
	tables := make([]*TableSchema, 0, len(d.Tables))
	for _, name := range d.TableOrder {
		if t, ok := d.Tables[name]; ok {
			tables = append(tables, t)
		}
	}
	return tables
}

// RawColumn is a physical column: name and declared type only.
type RawColumn struct {
	Name     string `json:"name"`
	DataType string `json:"data_type"`
}

// RawTable is a physical table with its columns in ordinal position order.
type RawTable struct {
	Name       string      `json:"name"`
	SchemaName string      `json:"schema_name,omitempty"`
	Columns    []RawColumn `json:"columns"`
}

// Column looks up a physical column by name.
func (t *RawTable) Column(name string) (RawColumn, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return RawColumn{}, false
}

// ColumnNames returns the physical column names in order.
func (t *RawTable) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// RawSchema is the unprofiled physical schema of a data source: table and
// column names with declared types, nothing else.
type RawSchema struct {
	Tables map[string]*RawTable `json:"tables"`
	// TableOrder preserves catalog ordering.
	TableOrder []string `json:"table_order,omitempty"`
}

// NewRawSchema creates an empty raw schema.
func NewRawSchema() *RawSchema {
	return &RawSchema{Tables: make(map[string]*RawTable)}
}

// AddTable records a physical table.
func (r *RawSchema) AddTable(table *RawTable) {
	if _, exists := r.Tables[table.Name]; !exists {
		r.TableOrder = append(r.TableOrder, table.Name)
	}
	r.Tables[table.Name] = table
}

// TableNames returns physical table names in catalog order.
func (r *RawSchema) TableNames() []string {
	return append([]string(nil), r.TableOrder...)
}
