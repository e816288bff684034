package record

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"typeprobe/internal/numeric"
	"typeprobe/internal/schema"
)

// ErrViolation is matched by *ViolationError.
var ErrViolation = errors.New("value does not fit inferred type")

// ViolationError reports a value that the sampled schema did not anticipate.
type ViolationError struct {
	Line   int         `json:"line"`
	Column string      `json:"column"`
	Value  string      `json:"value"`
	Type   schema.Rung `json:"type"`
}

func (e *ViolationError) Error() string {
	return fmt.Sprintf("line %d column %s: %q: %v %s", e.Line, e.Column, e.Value, ErrViolation, e.Type)
}

func (e *ViolationError) Is(target error) bool { return target == ErrViolation }

// Decode converts raw to the Go value for rung t:
// int8, int16, int32, int64, *big.Int, float32, float64, decimal.Decimal or
// string. Blank input decodes to nil.
func Decode(t schema.Rung, raw string) (any, error) {
	v := strings.TrimSpace(raw)
	if v == "" {
		return nil, nil
	}
	switch t {
	case schema.Byte:
		n, err := strconv.ParseInt(v, 10, 8)
		return int8(n), err
	case schema.Short:
		n, err := strconv.ParseInt(v, 10, 16)
		return int16(n), err
	case schema.Int32:
		n, err := strconv.ParseInt(v, 10, 32)
		return int32(n), err
	case schema.Int64:
		return strconv.ParseInt(v, 10, 64)
	case schema.BigInteger:
		n, ok := numeric.ParseBigInt(v)
		if !ok {
			return nil, fmt.Errorf("parse big integer %q", v)
		}
		return n, nil
	case schema.Float32:
		f, err := parseFinite(v, 32)
		return float32(f), err
	case schema.Float64:
		return parseFinite(v, 64)
	case schema.BigDecimal:
		return numeric.ParseDecimal(v)
	case schema.Text:
		return raw, nil
	}
	return nil, fmt.Errorf("decode: unknown type %s", t)
}

func parseFinite(v string, bits int) (float64, error) {
	f, err := strconv.ParseFloat(v, bits)
	if err != nil {
		return 0, err
	}
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, fmt.Errorf("parse float %q: not finite", v)
	}
	return f, nil
}

// Decoder turns rows of raw strings into typed rows for one schema.
type Decoder struct {
	fields []schema.Field
	oracle schema.Oracle
	dp     int
}

// NewDecoder returns a Decoder for s. Values are checked with o at dp
// decimal places before they are converted.
func NewDecoder(s schema.Schema, o schema.Oracle, dp int) *Decoder {
	return &Decoder{fields: s.Fields(), oracle: o, dp: dp}
}

// Width returns the number of columns.
func (d *Decoder) Width() int { return len(d.fields) }

// DecodeRow converts r.V in place. Elements must be nil or string. On the
// first value that does not fit its column it returns a *ViolationError and
// leaves r partially converted.
func (d *Decoder) DecodeRow(r *Row) error {
	for i, f := range d.fields {
		if i >= len(r.V) {
			break
		}
		raw, ok := r.V[i].(string)
		if !ok {
			continue
		}
		if !d.oracle.IsRepresentable(raw, f.Type, d.dp) {
			return &ViolationError{Line: r.Line, Column: f.Name, Value: raw, Type: f.Type}
		}
		v, err := Decode(f.Type, raw)
		if err != nil {
			return fmt.Errorf("line %d column %s: %w", r.Line, f.Name, err)
		}
		r.V[i] = v
	}
	return nil
}
