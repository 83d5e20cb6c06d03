package source

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
)

// Column is a named Value.
type Column struct {
	Name  string
	Value Value
}

// Table is an ordered set of equal-length named columns.
type Table struct {
	Columns []Column
}

// NewTable returns a table after checking names are unique and lengths agree.
func NewTable(columns ...Column) (*Table, error) {
	seen := make(map[string]struct{}, len(columns))
	for i, c := range columns {
		if c.Name == "" {
			return nil, fmt.Errorf("column %d has no name", i)
		}
		if _, dup := seen[c.Name]; dup {
			return nil, fmt.Errorf("duplicate column %q", c.Name)
		}
		seen[c.Name] = struct{}{}
		if c.Value.Len() != columns[0].Value.Len() {
			return nil, fmt.Errorf("column %q has %d rows, want %d", c.Name, c.Value.Len(), columns[0].Value.Len())
		}
	}
	return &Table{Columns: columns}, nil
}

// TableFromRecord wraps each column of rec; dictionary columns become
// categorical.
func TableFromRecord(rec arrow.Record) *Table {
	cols := make([]Column, rec.NumCols())
	for i := range cols {
		cols[i] = Column{Name: rec.ColumnName(i), Value: FromArrow(rec.Column(i))}
	}
	return &Table{Columns: cols}
}

// NumRows returns the row count, 0 for a table with no columns.
func (t *Table) NumRows() int {
	if len(t.Columns) == 0 {
		return 0
	}
	return t.Columns[0].Value.Len()
}

// Names returns the column names in order.
func (t *Table) Names() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// Column returns the column named name.
func (t *Table) Column(name string) (Column, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}
