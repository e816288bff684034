package csv

import (
	"io"
	"strings"
)

// Row is one logical record.
type Row []string

// Tokenizer assembles logical rows from physical lines.
//
// It does not own the underlying reader; whoever opened it closes it.
type Tokenizer struct {
	d     Dialect
	lr    *LineReader
	start int
}

// NewTokenizer returns a Tokenizer reading r with dialect d.
func NewTokenizer(r io.Reader, d Dialect) *Tokenizer {
	return &Tokenizer{d: d, lr: NewLineReader(r)}
}

// Next returns the next logical row.
//
// With expected >= 0, physical lines are appended while the quote-aware field
// count is below expected. Independently of the count, a line that ends
// inside a quoted span always pulls in the next one, joined with the
// terminator that ended it, so quoted "\r" and "\r\n" survive unchanged.
//
// Errors:
//   - io.EOF when the input is exhausted and nothing is pending.
//   - *TooManyFieldsError when joined lines overshoot expected.
//   - *UnterminatedQuoteError when input ends inside a quoted span.
//
// Edge cases:
//   - Blank lines between rows are skipped.
//   - A short row at end of input is returned as-is.
//   - A single physical line with more than expected fields is returned as-is.
func (t *Tokenizer) Next(expected int) (Row, error) {
	var s string
	for {
		line, err := t.lr.Next()
		if err != nil {
			return nil, err
		}
		if strings.TrimSpace(line) != "" {
			s = line
			break
		}
	}
	t.start = t.lr.Line()

	joins := 0
	for {
		if t.d.openQuote(s) {
			term := t.lr.Terminator()
			line, err := t.lr.Next()
			if err == io.EOF {
				return nil, &UnterminatedQuoteError{Line: t.start}
			}
			if err != nil {
				return nil, err
			}
			s += term + line
			joins++
			continue
		}
		if expected < 0 {
			break
		}

		n := t.d.CountFields(s)
		if n > expected && joins > 0 {
			return nil, &TooManyFieldsError{Line: t.start, Expected: expected, Got: n}
		}
		if n >= expected {
			break
		}
		line, err := t.lr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		s += line
		joins++
	}

	return Row(t.d.SplitFields(s)), nil
}

// Line reports the physical line on which the last returned row started.
func (t *Tokenizer) Line() int { return t.start }
