// Package transformer derives extra columns from decoded rows.
package transformer

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// RowHash computes a deterministic SHA-256 over selected values of a decoded
// row. Loaded into its own column it gives every row a stable, always
// non-null dedupe key, even when natural-key columns are NULL.
//
// Canonical form:
//   - values are joined in field order with Separator.
//   - nil is a single NUL byte, so NULL differs from "".
//   - integers, floats, *big.Int and decimal.Decimal use their shortest
//     decimal text; strings are used as-is unless TrimSpace is set.
//   - the result is lowercase hex (64 characters).
type RowHash struct {
	// Fields are the hashed column names, in hash order.
	Fields []string
	// IncludeFieldNames hashes "name=value" instead of "value".
	IncludeFieldNames bool
	// Separator defaults to ASCII Unit Separator (0x1f).
	Separator string
	TrimSpace bool

	idx []int
}

// NewRowHash hashes the given fields of rows laid out as columns. Empty
// fields means every column.
func NewRowHash(columns, fields []string) (*RowHash, error) {
	if len(fields) == 0 {
		fields = columns
	}
	h := &RowHash{Fields: append([]string(nil), fields...), Separator: "\x1f", idx: make([]int, len(fields))}
	for i, f := range fields {
		h.idx[i] = indexOf(columns, f)
		if h.idx[i] < 0 {
			return nil, fmt.Errorf("row hash: unknown column %q", f)
		}
	}
	return h, nil
}

// Sum returns the hex hash of vals, which must be laid out like the columns
// passed to NewRowHash.
func (h *RowHash) Sum(vals []any) string {
	sep := h.Separator
	if sep == "" {
		sep = "\x1f"
	}

	var (
		b       strings.Builder
		scratch [64]byte
	)
	b.Grow(len(h.idx) * 20)
	for i, idx := range h.idx {
		if i > 0 {
			b.WriteString(sep)
		}
		if h.IncludeFieldNames {
			b.WriteString(h.Fields[i])
			b.WriteByte('=')
		}
		var v any
		if idx < len(vals) {
			v = vals[idx]
		}
		appendCanonicalValue(&b, v, h.TrimSpace, &scratch)
	}

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

func indexOf(cols []string, name string) int {
	if name == "" {
		return -1
	}
	for i, c := range cols {
		if c == name {
			return i
		}
	}
	return -1
}

func appendCanonicalValue(b *strings.Builder, v any, trimSpace bool, scratch *[64]byte) {
	switch t := v.(type) {
	case nil:
		b.WriteByte('\x00')

	case string:
		if trimSpace && hasEdgeSpace(t) {
			t = strings.TrimSpace(t)
		}
		b.WriteString(t)

	case int8:
		b.Write(strconv.AppendInt(scratch[:0], int64(t), 10))
	case int16:
		b.Write(strconv.AppendInt(scratch[:0], int64(t), 10))
	case int32:
		b.Write(strconv.AppendInt(scratch[:0], int64(t), 10))
	case int64:
		b.Write(strconv.AppendInt(scratch[:0], t, 10))
	case int:
		b.Write(strconv.AppendInt(scratch[:0], int64(t), 10))

	case float32:
		b.Write(strconv.AppendFloat(scratch[:0], float64(t), 'g', -1, 32))
	case float64:
		b.Write(strconv.AppendFloat(scratch[:0], t, 'g', -1, 64))

	case *big.Int:
		if t == nil {
			b.WriteByte('\x00')
			return
		}
		b.WriteString(t.String())
	case decimal.Decimal:
		b.WriteString(t.String())

	default:
		fmt.Fprintf(b, "%v", t)
	}
}

func hasEdgeSpace(s string) bool {
	if s == "" {
		return false
	}
	return s[0] == ' ' || s[len(s)-1] == ' ' || s[0] == '\t' || s[len(s)-1] == '\t'
}
