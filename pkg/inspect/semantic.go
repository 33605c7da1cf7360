package inspect

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// TableEntry is the semantic annotation of one table: either "select every
// column" or an explicit column set with descriptions.
type TableEntry struct {
	// All selects every physical column of the table. When set, the
	// columns regex never filters this table.
	All bool `yaml:"-"`

	Description string `yaml:"description"`
	// Columns maps selected column names to their descriptions.
	Columns map[string]string `yaml:"columns"`
}

// SemanticDict names the tables and columns an inspection should cover and
// carries their human descriptions. Anything not selected, explicitly or
// through the regex options, is omitted from the result.
type SemanticDict struct {
	// Full selects every table with every column, ignoring Tables.
	Full bool

	Tables map[string]*TableEntry
}

// FullDict selects everything in the source.
func FullDict() *SemanticDict {
	return &SemanticDict{Full: true}
}

// NewSemanticDict builds an empty explicit dictionary.
func NewSemanticDict() *SemanticDict {
	return &SemanticDict{Tables: make(map[string]*TableEntry)}
}

// SelectAll marks a table for inspection with all its columns.
func (d *SemanticDict) SelectAll(table string) *SemanticDict {
	d.ensure()
	d.Tables[table] = &TableEntry{All: true}
	return d
}

// SelectColumns marks a table for inspection with an explicit column set.
// Descriptions may be empty.
func (d *SemanticDict) SelectColumns(table string, columns map[string]string) *SemanticDict {
	d.ensure()
	d.Tables[table] = &TableEntry{Columns: columns}
	return d
}

// Describe sets the table description on an existing entry.
func (d *SemanticDict) Describe(table, description string) *SemanticDict {
	d.ensure()
	entry, ok := d.Tables[table]
	if !ok {
		entry = &TableEntry{}
		d.Tables[table] = entry
	}
	entry.Description = description
	return d
}

func (d *SemanticDict) ensure() {
	if d.Tables == nil {
		d.Tables = make(map[string]*TableEntry)
	}
}

// CacheDiscriminant returns a stable representation for cache keys.
func (d *SemanticDict) CacheDiscriminant() map[string]any {
	if d.Full {
		return map[string]any{"full": true}
	}
	tables := make(map[string]any, len(d.Tables))
	for name, entry := range d.Tables {
		if entry.All {
			tables[name] = "all"
			continue
		}
		tables[name] = map[string]any{
			"description": entry.Description,
			"columns":     entry.Columns,
		}
	}
	return map[string]any{"tables": tables}
}

// semanticFile is the YAML document shape. A table value of the string
// "all" selects every column; "full" at the top level selects everything.
type semanticFile struct {
	Full   bool                 `yaml:"full"`
	Tables map[string]yaml.Node `yaml:"tables"`
}

// LoadSemanticDict reads a semantic dictionary from a YAML file.
//
//	full: true            # or:
//	tables:
//	  orders:
//	    description: customer orders
//	    columns:
//	      status: current order state
//	  customers: all
func LoadSemanticDict(path string) (*SemanticDict, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read semantic dictionary: %w", err)
	}
	return ParseSemanticDict(data)
}

// ParseSemanticDict decodes YAML semantic dictionary content.
func ParseSemanticDict(data []byte) (*SemanticDict, error) {
	var file semanticFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse semantic dictionary: %w", err)
	}
	if file.Full {
		return FullDict(), nil
	}

	dict := NewSemanticDict()
	for table, node := range file.Tables {
		if node.Kind == yaml.ScalarNode {
			var marker string
			if err := node.Decode(&marker); err != nil || marker != "all" {
				return nil, fmt.Errorf("table %q: expected \"all\" or a mapping", table)
			}
			dict.SelectAll(table)
			continue
		}
		entry := &TableEntry{}
		if err := node.Decode(entry); err != nil {
			return nil, fmt.Errorf("table %q: %w", table, err)
		}
		if entry.Columns == nil {
			entry.Columns = make(map[string]string)
		}
		dict.Tables[table] = entry
	}
	return dict, nil
}
