// Package record decodes raw fields into typed values and pools the rows
// that carry them from the tokenizer to storage.
package record

import "sync"

// Row is a pooled positional row.
//
// Ownership contract:
//   - Exactly one goroutine owns a Row at a time.
//   - Sending a Row on a channel transfers ownership.
//   - The final consumer calls Free once nothing references r.V any more.
//
// On ctx cancellation a downstream stage may still be reading while the
// producer unwinds, so cancellation paths call Drop instead of Free.
type Row struct {
	V    []any
	Line int // physical line where the record started, if known
}

var rowPool sync.Pool

// GetRow returns a pooled Row with len(V) == colCount and every value nil.
func GetRow(colCount int) *Row {
	if v := rowPool.Get(); v != nil {
		r := v.(*Row)
		if cap(r.V) < colCount {
			r.V = make([]any, colCount)
		}
		r.V = r.V[:colCount]
		for i := range r.V {
			r.V[i] = nil
		}
		r.Line = 0
		return r
	}
	return &Row{V: make([]any, colCount)}
}

// Free returns the Row to the pool.
func (r *Row) Free() {
	rowPool.Put(r)
}

// Drop discards the Row without returning it to the pool.
func (r *Row) Drop() {
	r.V = nil
	r.Line = 0
}
