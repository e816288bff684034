package storage

import (
	"math/big"
	"strconv"

	"github.com/shopspring/decimal"
)

// DriverValue converts a decoded value to a type every database/sql and pgx
// driver accepts.
//
// Narrow integers widen to int64. float32 goes through its shortest decimal
// form so 1.1 stays 1.1 rather than 1.100000023841858. Arbitrary precision
// values are passed as their exact decimal text and left for the database to
// cast.
func DriverValue(v any) any {
	switch t := v.(type) {
	case nil:
		return nil
	case int8:
		return int64(t)
	case int16:
		return int64(t)
	case int32:
		return int64(t)
	case int:
		return int64(t)
	case float32:
		f, _ := strconv.ParseFloat(strconv.FormatFloat(float64(t), 'g', -1, 32), 64)
		return f
	case *big.Int:
		if t == nil {
			return nil
		}
		return t.String()
	case decimal.Decimal:
		return t.String()
	default:
		return v
	}
}

// DriverRow applies DriverValue to every value of row in place.
func DriverRow(row []any) []any {
	for i, v := range row {
		row[i] = DriverValue(v)
	}
	return row
}
