// Package numeric decides whether a textual value fits a numeric type.
package numeric

import (
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"typeprobe/internal/schema"
)

// MaxDecimalPlaces is the largest dp the oracle honours; larger values are
// clamped. It matches the widest DECIMAL scale the storage backends accept.
const MaxDecimalPlaces = 38

// Oracle is the default schema.Oracle.
//
// Integer rungs require an exact base-10 integer that fits the width.
// Float rungs accept a value when the nearest binary float, printed back and
// rounded to dp places, equals the decimal value rounded the same way.
// NaN, infinities and hexadecimal forms are left to Text.
type Oracle struct{}

var _ schema.Oracle = Oracle{}

func (Oracle) IsRepresentable(value string, r schema.Rung, dp int) bool {
	v := strings.TrimSpace(value)
	if v == "" {
		return true
	}
	switch r {
	case schema.Byte:
		return fitsInt(v, 8)
	case schema.Short:
		return fitsInt(v, 16)
	case schema.Int32:
		return fitsInt(v, 32)
	case schema.Int64:
		return fitsInt(v, 64)
	case schema.BigInteger:
		_, ok := ParseBigInt(v)
		return ok
	case schema.Float32:
		return fitsFloat(v, 32, dp)
	case schema.Float64:
		return fitsFloat(v, 64, dp)
	case schema.BigDecimal:
		_, err := ParseDecimal(v)
		return err == nil
	case schema.Text:
		return true
	}
	return false
}

func fitsInt(v string, bits int) bool {
	_, err := strconv.ParseInt(v, 10, bits)
	return err == nil
}

// ParseBigInt parses an arbitrary precision base-10 integer.
func ParseBigInt(v string) (*big.Int, bool) {
	if strings.HasPrefix(v, "+") {
		v = v[1:]
	}
	if v == "" || strings.ContainsAny(v, "_") {
		return nil, false
	}
	return new(big.Int).SetString(v, 10)
}

// maxExponentSlack bounds how far an exponent may reach beyond the length of
// the literal. Rescaling and printing cost grows with |exponent|, so
// "1e999999999" must not get past parsing.
const maxExponentSlack = 400

// ParseDecimal parses an arbitrary precision decimal with an optional
// leading '+'. Literals whose exponent is far out of proportion to their
// length are rejected.
func ParseDecimal(v string) (decimal.Decimal, error) {
	v = strings.TrimPrefix(v, "+")
	d, err := decimal.NewFromString(v)
	if err != nil {
		return decimal.Decimal{}, err
	}
	if exp := int64(d.Exponent()); exp > int64(len(v)+maxExponentSlack) || -exp > int64(len(v)+maxExponentSlack) {
		return decimal.Decimal{}, fmt.Errorf("decimal %q: exponent %d out of range", v, exp)
	}
	return d, nil
}

func fitsFloat(v string, bits, dp int) bool {
	exact, err := decimal.NewFromString(strings.TrimPrefix(v, "+"))
	if err != nil {
		return false
	}
	f, err := strconv.ParseFloat(v, bits)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return false
	}
	dp = min(max(dp, 0), MaxDecimalPlaces)
	var back decimal.Decimal
	if bits == 32 {
		back = decimal.NewFromFloat32(float32(f))
	} else {
		back = decimal.NewFromFloat(f)
	}
	// Below 10^(-dp-1) the literal rounds to zero at dp.
	if int64(exact.Exponent())+int64(exact.NumDigits()) < int64(-dp-1) {
		return back.Round(int32(dp)).IsZero()
	}
	return back.Round(int32(dp)).Equal(exact.Round(int32(dp)))
}
