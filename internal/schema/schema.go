package schema

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Field is one column of a Schema.
type Field struct {
	Index  int    `json:"index"`
	Name   string `json:"name"`
	Header string `json:"header,omitempty"`
	Type   Rung   `json:"type"`
}

// Schema is an ordered list of fields. It is immutable once built; accessors
// return copies.
type Schema struct {
	fields []Field
}

// New builds a Schema from fields, renumbering Index by position.
func New(fields []Field) Schema {
	out := make([]Field, len(fields))
	copy(out, fields)
	for i := range out {
		out[i].Index = i
	}
	return Schema{fields: out}
}

// Len returns the number of fields.
func (s Schema) Len() int { return len(s.fields) }

// Fields returns a copy of the fields in column order.
func (s Schema) Fields() []Field {
	out := make([]Field, len(s.fields))
	copy(out, s.fields)
	return out
}

// Field returns the i-th field.
func (s Schema) Field(i int) Field { return s.fields[i] }

// Names returns the field names in column order.
func (s Schema) Names() []string {
	out := make([]string, len(s.fields))
	for i, f := range s.fields {
		out[i] = f.Name
	}
	return out
}

// Lookup finds a field by normalized name.
func (s Schema) Lookup(name string) (Field, bool) {
	for _, f := range s.fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

func (s Schema) MarshalJSON() ([]byte, error) {
	if s.fields == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(s.fields)
}

func (s *Schema) UnmarshalJSON(b []byte) error {
	var fields []Field
	if err := json.Unmarshal(b, &fields); err != nil {
		return err
	}
	*s = New(fields)
	return nil
}

// Builder accumulates samples for one file.
type Builder struct {
	fields []Field
	cols   []ColumnState
	oracle Oracle
	dp     int
}

// NewBuilder prepares one column per header token.
func NewBuilder(header []string, o Oracle, dp int) *Builder {
	names := uniqueNames(header)
	fields := make([]Field, len(header))
	for i, h := range header {
		fields[i] = Field{Index: i, Name: names[i], Header: h}
	}
	return &Builder{
		fields: fields,
		cols:   make([]ColumnState, len(header)),
		oracle: o,
		dp:     dp,
	}
}

// Observe classifies every value of row. Fields beyond the header width are
// ignored and missing trailing fields count as blank. It returns the number
// of columns whose rung changed.
func (b *Builder) Observe(row []string) int {
	widened := 0
	for i, v := range row {
		if i >= len(b.cols) {
			break
		}
		if b.cols[i].Observe(v, b.oracle, b.dp) {
			widened++
		}
	}
	return widened
}

// Columns returns a copy of the per-column state.
func (b *Builder) Columns() []ColumnState {
	out := make([]ColumnState, len(b.cols))
	copy(out, b.cols)
	return out
}

// Schema finalizes the current state.
func (b *Builder) Schema() Schema {
	out := make([]Field, len(b.fields))
	for i, f := range b.fields {
		f.Type = b.cols[i].Rung
		out[i] = f
	}
	return Schema{fields: out}
}

// Build infers a schema from a header and sampled rows in one call.
func Build(header []string, samples [][]string, o Oracle, dp int) Schema {
	b := NewBuilder(header, o, dp)
	for _, row := range samples {
		b.Observe(row)
	}
	return b.Schema()
}

// uniqueNames normalizes header tokens. Empty results become COLUMN_<n>
// (1-based) and repeats get _2, _3, ... in column order.
func uniqueNames(header []string) []string {
	out := make([]string, len(header))
	seen := make(map[string]bool, len(header))
	for i, h := range header {
		base := NormalizeFieldName(h)
		if base == "" {
			base = "COLUMN_" + strconv.Itoa(i+1)
		}
		name := base
		for n := 2; seen[name]; n++ {
			name = fmt.Sprintf("%s_%d", base, n)
		}
		seen[name] = true
		out[i] = name
	}
	return out
}
