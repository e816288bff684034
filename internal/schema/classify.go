package schema

import "strings"

// Oracle decides whether a value can be held by a rung without losing
// information beyond dp decimal places.
type Oracle interface {
	IsRepresentable(value string, r Rung, dp int) bool
}

// OracleFunc adapts a plain function to Oracle.
type OracleFunc func(value string, r Rung, dp int) bool

func (f OracleFunc) IsRepresentable(value string, r Rung, dp int) bool { return f(value, r, dp) }

// ColumnState tracks the narrowest rung that has held every value seen so
// far. The zero value starts at Byte.
type ColumnState struct {
	Rung      Rung
	Observed  int // non-blank values
	Widenings int
}

// Observe feeds one value into the column. Blank values and Text columns are
// left alone. Otherwise the rung climbs one step at a time until the value
// fits or Text is reached. Values seen earlier are never re-checked.
//
// It reports whether the rung changed.
func (c *ColumnState) Observe(value string, o Oracle, dp int) bool {
	if strings.TrimSpace(value) == "" {
		return false
	}
	c.Observed++
	if c.Rung >= Text {
		return false
	}

	from := c.Rung
	for c.Rung < Text && !o.IsRepresentable(value, c.Rung, dp) {
		c.Rung = c.Rung.next()
	}
	if c.Rung != from {
		c.Widenings++
		return true
	}
	return false
}
