// Package csv tokenizes delimited text into logical rows.
//
// The reader here is deliberately smaller than encoding/csv: a quote may open
// anywhere in a field, more than one quote character can be active, and rows
// whose field count falls short of the header are stitched together from the
// following physical lines.
package csv

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// Dialect describes the delimiter and the set of quote characters.
type Dialect struct {
	Delimiter rune
	Quotes    []rune
}

// DefaultDialect splits on commas and accepts both double and single quotes.
var DefaultDialect = Dialect{Delimiter: ',', Quotes: []rune{'"', '\''}}

// Validate reports whether the dialect can be tokenized unambiguously.
func (d Dialect) Validate() error {
	if d.Delimiter == 0 || d.Delimiter == utf8.RuneError || !utf8.ValidRune(d.Delimiter) {
		return errors.New("csv: invalid delimiter")
	}
	if d.Delimiter == '\r' || d.Delimiter == '\n' {
		return errors.New("csv: delimiter cannot be a line terminator")
	}
	for _, q := range d.Quotes {
		if q == d.Delimiter {
			return fmt.Errorf("csv: delimiter %q is also a quote character", q)
		}
		if q == '\r' || q == '\n' || !utf8.ValidRune(q) {
			return fmt.Errorf("csv: invalid quote character %q", q)
		}
	}
	return nil
}

func (d Dialect) isQuote(c rune) bool {
	for _, q := range d.Quotes {
		if c == q {
			return true
		}
	}
	return false
}

func (d Dialect) hasQuote(s string) bool {
	for _, q := range d.Quotes {
		if strings.ContainsRune(s, q) {
			return true
		}
	}
	return false
}

// scan walks s through the quote state machine. When emit is non-nil it
// receives every completed field. It returns the number of structural
// delimiters seen and whether s ends inside a quoted span.
//
// An unquoted '\n' ends the row; anything after it is ignored.
func (d Dialect) scan(s string, emit func(string)) (delims int, open bool) {
	var (
		buf   strings.Builder
		quote rune // 0 while unquoted
	)
	keep := emit != nil

	for i := 0; i < len(s); {
		c, w := utf8.DecodeRuneInString(s[i:])
		i += w

		if quote != 0 {
			if c != quote {
				if keep {
					buf.WriteRune(c)
				}
				continue
			}
			// A doubled quote inside the span is one literal quote.
			if next, nw := utf8.DecodeRuneInString(s[i:]); i < len(s) && next == quote {
				i += nw
				if keep {
					buf.WriteRune(c)
				}
				continue
			}
			quote = 0
			continue
		}

		switch {
		case c == d.Delimiter:
			delims++
			if keep {
				emit(buf.String())
				buf.Reset()
			}
		case d.isQuote(c):
			quote = c
		case c == '\r':
		case c == '\n':
			if keep {
				emit(buf.String())
			}
			return delims, false
		default:
			if keep {
				buf.WriteRune(c)
			}
		}
	}

	if keep {
		emit(buf.String())
	}
	return delims, quote != 0
}

// SplitFields splits one logical row into its fields. Quote characters that
// delimit a span are dropped, a doubled quote inside a span yields one literal
// quote, and '\r' outside quotes is discarded. A blank or whitespace-only
// row has no fields.
func (d Dialect) SplitFields(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	fields := make([]string, 0, 8)
	d.scan(s, func(f string) { fields = append(fields, f) })
	return fields
}

// CountDelimiters returns the number of delimiters outside quoted spans.
func (d Dialect) CountDelimiters(s string) int {
	if !d.hasQuote(s) {
		if i := strings.IndexByte(s, '\n'); i >= 0 {
			s = s[:i]
		}
		return strings.Count(s, string(d.Delimiter))
	}
	n, _ := d.scan(s, nil)
	return n
}

// CountFields returns the number of fields SplitFields would produce without
// allocating them.
func (d Dialect) CountFields(s string) int {
	if strings.TrimSpace(s) == "" {
		return 0
	}
	return d.CountDelimiters(s) + 1
}

// openQuote reports whether s ends inside a quoted span.
func (d Dialect) openQuote(s string) bool {
	if !d.hasQuote(s) {
		return false
	}
	_, open := d.scan(s, nil)
	return open
}
