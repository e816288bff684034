package probe

import (
	"fmt"
	"sort"
	"strings"
)

const distinctCapPerColumn = 10000

// Uniqueness holds bounded distinct-count stats for a sample.
//
// Denominators are per column: a row counts toward a column only when that
// column has a non-blank value. TotalRows is informational.
type Uniqueness struct {
	TotalRows   int             `json:"total_rows"`
	PerColumn   map[string]int  `json:"per_column_total"`
	Distinct    map[string]int  `json:"per_column_distinct"`
	Capped      map[string]bool `json:"per_column_capped"`
	ColumnOrder []string        `json:"column_order"`
}

// uniquenessCounter accumulates Uniqueness one row at a time. Once a column
// reaches distinctCapPerColumn its set is released and it is marked capped.
type uniquenessCounter struct {
	u    Uniqueness
	sets []map[string]struct{}
}

func newUniquenessCounter(columns []string) *uniquenessCounter {
	c := &uniquenessCounter{
		u: Uniqueness{
			PerColumn:   make(map[string]int, len(columns)),
			Distinct:    make(map[string]int, len(columns)),
			Capped:      make(map[string]bool, len(columns)),
			ColumnOrder: append([]string(nil), columns...),
		},
		sets: make([]map[string]struct{}, len(columns)),
	}
	for i := range c.sets {
		c.sets[i] = make(map[string]struct{})
	}
	return c
}

func (c *uniquenessCounter) observe(row []string) {
	c.u.TotalRows++
	for i, col := range c.u.ColumnOrder {
		if i >= len(row) {
			break
		}
		v := strings.TrimSpace(row[i])
		if v == "" {
			continue
		}
		c.u.PerColumn[col]++
		if c.u.Capped[col] {
			continue
		}
		c.sets[i][v] = struct{}{}
		if len(c.sets[i]) >= distinctCapPerColumn {
			c.u.Capped[col] = true
			c.sets[i] = nil
		}
	}
}

func (c *uniquenessCounter) result() *Uniqueness {
	out := c.u
	out.Distinct = make(map[string]int, len(c.u.ColumnOrder))
	for i, col := range c.u.ColumnOrder {
		if c.u.Capped[col] {
			out.Distinct[col] = distinctCapPerColumn
			continue
		}
		out.Distinct[col] = len(c.sets[i])
	}
	return &out
}

// FormatUniquenessReport renders u as a tab-separated table, least unique
// columns first. Columns without any value are omitted.
func FormatUniquenessReport(u *Uniqueness) string {
	if u == nil || u.TotalRows <= 0 {
		return "uniqueness: no rows sampled"
	}

	type row struct {
		Col    string
		Dist   int
		Ratio  float64
		Capped bool
		Den    int
	}

	rows := make([]row, 0, len(u.ColumnOrder))
	for _, col := range u.ColumnOrder {
		den := u.PerColumn[col]
		if den <= 0 {
			continue
		}
		d := u.Distinct[col]
		rows = append(rows, row{Col: col, Dist: d, Ratio: float64(d) / float64(den), Capped: u.Capped[col], Den: den})
	}

	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Ratio == rows[j].Ratio {
			return rows[i].Col < rows[j].Col
		}
		return rows[i].Ratio < rows[j].Ratio
	})

	var b strings.Builder
	fmt.Fprintf(&b, "uniqueness report:\tsampled_rows=%d\n", u.TotalRows)
	fmt.Fprintf(&b, "%-15s\t%-7s\t%-7s\tratio\tcapped\n", "col", "unique", "rows")
	for _, r := range rows {
		fmt.Fprintf(&b, "%-15s\t%-7d\t%d\t%.1f%%\t%t\n", r.Col, r.Dist, r.Den, r.Ratio*100, r.Capped)
	}
	return strings.TrimRight(b.String(), "\n")
}

// KeyCandidates returns the columns whose sampled values were all present
// and all distinct, in column order. They are hints, not guarantees.
func KeyCandidates(u *Uniqueness) []string {
	if u == nil || u.TotalRows == 0 {
		return nil
	}
	var out []string
	for _, col := range u.ColumnOrder {
		if u.PerColumn[col] == u.TotalRows && u.Distinct[col] == u.TotalRows && !u.Capped[col] {
			out = append(out, col)
		}
	}
	return out
}
