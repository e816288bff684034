package numeric

import (
	"strings"
	"testing"
	"time"

	"typeprobe/internal/schema"
)

// TestIsRepresentable checks the boundaries of every rung.
func TestIsRepresentable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		value string
		rung  schema.Rung
		dp    int
		want  bool
	}{
		{"byte max", "127", schema.Byte, 2, true},
		{"byte overflow", "128", schema.Byte, 2, false},
		{"byte min", "-128", schema.Byte, 2, true},
		{"byte rejects fraction", "1.0", schema.Byte, 2, false},
		{"short", "200", schema.Short, 2, true},
		{"short overflow", "40000", schema.Short, 2, false},
		{"int32", "2147483647", schema.Int32, 2, true},
		{"int32 overflow", "2147483648", schema.Int32, 2, false},
		{"int64", "9223372036854775807", schema.Int64, 2, true},
		{"int64 overflow", "9223372036854775808", schema.Int64, 2, false},
		{"biginteger", "123456789012345678901234567890", schema.BigInteger, 2, true},
		{"biginteger plus sign", "+42", schema.BigInteger, 2, true},
		{"biginteger rejects fraction", "1.5", schema.BigInteger, 2, false},
		{"float32 exact", "92.5", schema.Float32, 2, true},
		{"float32 within dp", "3.14159", schema.Float32, 2, true},
		{"float32 loses digits", "1.23456789", schema.Float32, 8, false},
		{"float64 keeps digits", "1.23456789", schema.Float64, 8, true},
		{"float32 overflow", "1e39", schema.Float32, 2, false},
		{"float64 exponent", "1e39", schema.Float64, 2, true},
		{"float64 overflow", "1e400", schema.Float64, 2, false},
		{"float rejects nan", "NaN", schema.Float64, 2, false},
		{"float rejects inf", "Inf", schema.Float64, 2, false},
		{"float rejects hex", "0x1p-2", schema.Float64, 2, false},
		{"bigdecimal", "1e400", schema.BigDecimal, 2, true},
		{"bigdecimal rejects words", "abc", schema.BigDecimal, 2, false},
		{"text accepts anything", "abc", schema.Text, 2, true},
		{"whitespace trimmed", " 12 ", schema.Byte, 2, true},
		{"float32 underflow rounds to zero", "1e-999999999", schema.Float32, 2, true},
		{"float64 tiny exponent with digits", "123e-999999999", schema.Float64, 2, true},
		{"float64 huge exponent", "1e999999999", schema.Float64, 2, false},
		{"float dp clamped", "1.5", schema.Float64, 1 << 30, true},
		{"bigdecimal long fraction", "0." + strings.Repeat("0", 600) + "1", schema.BigDecimal, 2, true},
		{"bigdecimal huge exponent", "1e999999999", schema.BigDecimal, 2, false},
		{"bigdecimal tiny exponent", "1e-999999999", schema.BigDecimal, 2, false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := Oracle{}.IsRepresentable(tt.value, tt.rung, tt.dp)
			if got != tt.want {
				t.Fatalf("IsRepresentable(%q, %s, %d) = %v, want %v", tt.value, tt.rung, tt.dp, got, tt.want)
			}
		})
	}
}

// TestCascadeExamples runs the classifier with the real oracle over the
// reference sequences.
func TestCascadeExamples(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		values []string
		dp     int
		want   schema.Rung
	}{
		{"small ints", []string{"1", "2", "3"}, 2, schema.Byte},
		{"needs short", []string{"1", "2", "200"}, 2, schema.Short},
		{"needs float", []string{"1", "92.5"}, 2, schema.Float32},
		{"needs big integer", []string{"1", "99999999999999999999"}, 2, schema.BigInteger},
		{"needs double", []string{"1", "1.23456789"}, 8, schema.Float64},
		{"needs big decimal", []string{"1", "1e400"}, 2, schema.BigDecimal},
		{"text", []string{"1", "n/a"}, 2, schema.Text},
		{"blanks ignored", []string{"", "  ", "7"}, 2, schema.Byte},
		{"all blank", []string{"", ""}, 2, schema.Byte},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var c schema.ColumnState
			for _, v := range tt.values {
				c.Observe(v, Oracle{}, tt.dp)
			}
			if c.Rung != tt.want {
				t.Fatalf("rung = %s, want %s", c.Rung, tt.want)
			}
		})
	}
}

// TestIsRepresentableExtremeExponents guards against rescaling by the literal
// exponent: every rung must answer promptly.
func TestIsRepresentableExtremeExponents(t *testing.T) {
	t.Parallel()

	values := []string{"1e-999999999", "-7.5e-2147483647", "1e999999999", "1e2147483647"}
	rungs := []schema.Rung{schema.Float32, schema.Float64, schema.BigDecimal}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for _, v := range values {
			for _, r := range rungs {
				Oracle{}.IsRepresentable(v, r, 2)
			}
			_, _ = ParseDecimal(v)
		}
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("IsRepresentable did not return within 5s for extreme exponents")
	}
}

func TestParseDecimalRejectsUnboundedExponent(t *testing.T) {
	t.Parallel()

	if _, err := ParseDecimal("1e999999999"); err == nil {
		t.Fatalf("ParseDecimal accepted an exponent far beyond the literal length")
	}
	d, err := ParseDecimal("+1e400")
	if err != nil || d.Exponent() != 400 {
		t.Fatalf("ParseDecimal(+1e400) = %v, %v", d, err)
	}
}

func TestParseBigInt(t *testing.T) {
	t.Parallel()

	if _, ok := ParseBigInt("1_000"); ok {
		t.Fatalf("ParseBigInt accepted underscores")
	}
	n, ok := ParseBigInt("-18446744073709551616")
	if !ok || n.String() != "-18446744073709551616" {
		t.Fatalf("ParseBigInt = %v, %v", n, ok)
	}
}
