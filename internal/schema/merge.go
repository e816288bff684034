package schema

// Consolidated folds several schemas that describe the same logical columns.
// Fields are keyed by name; a name keeps the widest rung any input gave it,
// and names first seen in a later input are appended in that order.
type Consolidated struct {
	fields []Field
	index  map[string]int
	inputs int
}

// NewConsolidated returns an empty consolidation.
func NewConsolidated() *Consolidated {
	return &Consolidated{index: make(map[string]int)}
}

// Merge consolidates other into base.
func Merge(base, other Schema) *Consolidated {
	c := NewConsolidated()
	c.Fold(base)
	c.Fold(other)
	return c
}

// Fold merges s into c. The widest rung wins, so a column that is Int32 in
// one file and Float64 in another ends up Float64.
func (c *Consolidated) Fold(s Schema) {
	c.inputs++
	for _, f := range s.fields {
		if i, ok := c.index[f.Name]; ok {
			c.fields[i].Type = Wider(c.fields[i].Type, f.Type)
			continue
		}
		f.Index = len(c.fields)
		c.index[f.Name] = f.Index
		c.fields = append(c.fields, f)
	}
}

// Inputs returns how many schemas were folded.
func (c *Consolidated) Inputs() int { return c.inputs }

// Schema returns the consolidated result.
func (c *Consolidated) Schema() Schema { return New(c.fields) }
