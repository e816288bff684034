// Package schema infers column names and value types for delimited files.
//
// Each column walks a fixed ladder of representations from the narrowest
// integer to free text, widening only when a sampled value does not fit.
package schema

import (
	"fmt"
	"strings"
)

// Rung is one step of the type ladder. Higher rungs are less restrictive.
type Rung uint8

const (
	Byte Rung = iota
	Short
	Int32
	Int64
	BigInteger
	Float32
	Float64
	BigDecimal
	Text
)

var rungNames = [...]string{
	Byte:       "byte",
	Short:      "short",
	Int32:      "int32",
	Int64:      "int64",
	BigInteger: "biginteger",
	Float32:    "float32",
	Float64:    "float64",
	BigDecimal: "bigdecimal",
	Text:       "text",
}

// Rungs lists the ladder in ascending order.
func Rungs() []Rung {
	return []Rung{Byte, Short, Int32, Int64, BigInteger, Float32, Float64, BigDecimal, Text}
}

func (r Rung) String() string {
	if int(r) < len(rungNames) {
		return rungNames[r]
	}
	return fmt.Sprintf("rung(%d)", uint8(r))
}

// Valid reports whether r is on the ladder.
func (r Rung) Valid() bool { return r <= Text }

// IsInteger reports whether r is one of the integer rungs.
func (r Rung) IsInteger() bool { return r <= BigInteger }

// IsFloat reports whether r is a binary floating point rung.
func (r Rung) IsFloat() bool { return r == Float32 || r == Float64 }

// next returns the rung directly above r. Text is its own successor.
func (r Rung) next() Rung {
	if r >= Text {
		return Text
	}
	return r + 1
}

// ParseRung is the inverse of Rung.String. Matching is case-insensitive.
func ParseRung(s string) (Rung, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, n := range rungNames {
		if n == s {
			return Rung(i), nil
		}
	}
	return Text, fmt.Errorf("schema: unknown type %q", s)
}

func (r Rung) MarshalText() ([]byte, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("schema: invalid type %d", uint8(r))
	}
	return []byte(r.String()), nil
}

func (r *Rung) UnmarshalText(b []byte) error {
	v, err := ParseRung(string(b))
	if err != nil {
		return err
	}
	*r = v
	return nil
}

// Wider returns the less restrictive of a and b.
func Wider(a, b Rung) Rung {
	if a > b {
		return a
	}
	return b
}
