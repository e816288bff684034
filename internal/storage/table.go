package storage

import (
	"fmt"
	"strings"

	"typeprobe/internal/schema"
)

// TableSpec describes a table created from an inferred schema.
type TableSpec struct {
	Name string `json:"name"`
	// DecimalPlaces is the scale used for fixed-point columns where the
	// backend needs one.
	DecimalPlaces int          `json:"decimal_places"`
	Columns       []ColumnSpec `json:"columns"`
}

// ColumnSpec is one column. Every column is nullable because blank values
// load as NULL.
type ColumnSpec struct {
	Name string      `json:"name"`
	Type schema.Rung `json:"type"`
}

// TableSpecFromSchema maps an inferred schema to a table definition.
func TableSpecFromSchema(name string, s schema.Schema, dp int) TableSpec {
	if dp < 0 {
		dp = 0
	}
	t := TableSpec{Name: name, DecimalPlaces: dp, Columns: make([]ColumnSpec, 0, s.Len())}
	for _, f := range s.Fields() {
		t.Columns = append(t.Columns, ColumnSpec{Name: f.Name, Type: f.Type})
	}
	return t
}

// ColumnNames returns the column names in table order.
func (t TableSpec) ColumnNames() []string {
	out := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		out[i] = c.Name
	}
	return out
}

// Validate reports structural problems a backend cannot create.
func (t TableSpec) Validate() error {
	if strings.TrimSpace(t.Name) == "" {
		return fmt.Errorf("table name is empty")
	}
	if len(t.Columns) == 0 {
		return fmt.Errorf("table %s: no columns", t.Name)
	}
	seen := make(map[string]bool, len(t.Columns))
	for _, c := range t.Columns {
		n := strings.ToLower(strings.TrimSpace(c.Name))
		if n == "" {
			return fmt.Errorf("table %s: column name is empty", t.Name)
		}
		if seen[n] {
			return fmt.Errorf("table %s: duplicate column %q", t.Name, c.Name)
		}
		seen[n] = true
		if !c.Type.Valid() {
			return fmt.Errorf("table %s: column %s: invalid type %d", t.Name, c.Name, c.Type)
		}
	}
	return nil
}

// SplitQualifiedName splits a schema-qualified name into (schema, table).
//
// Examples:
//   - "public.countries" => ("public", "countries")
//   - "countries"        => ("", "countries")
//
// Only a single dot is handled; anything else is treated as unqualified.
func SplitQualifiedName(name string) (schema string, table string) {
	name = strings.TrimSpace(name)
	parts := strings.Split(name, ".")
	if len(parts) != 2 {
		return "", name
	}
	return strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
}

// ChunkRows splits rows so that no chunk binds more than maxParams values
// for width columns. A chunk always holds at least one row.
func ChunkRows(rows [][]any, width, maxParams int) [][][]any {
	if len(rows) == 0 {
		return nil
	}
	per := len(rows)
	if width > 0 && maxParams > 0 {
		per = maxParams / width
		if per < 1 {
			per = 1
		}
	}
	out := make([][][]any, 0, (len(rows)+per-1)/per)
	for len(rows) > 0 {
		n := per
		if n > len(rows) {
			n = len(rows)
		}
		out = append(out, rows[:n:n])
		rows = rows[n:]
	}
	return out
}
