package csv

import (
	"errors"
	"fmt"
)

var (
	// ErrTooManyFields is matched by *TooManyFieldsError.
	ErrTooManyFields = errors.New("too many fields")
	// ErrUnterminatedQuote is matched by *UnterminatedQuoteError.
	ErrUnterminatedQuote = errors.New("unterminated quoted field at end of input")
)

// TooManyFieldsError is returned when stitching physical lines together to
// reach the expected field count overshoots it.
type TooManyFieldsError struct {
	Line     int // physical line where the row started
	Expected int
	Got      int
}

func (e *TooManyFieldsError) Error() string {
	return fmt.Sprintf("line %d: %v: expected %d, got %d", e.Line, ErrTooManyFields, e.Expected, e.Got)
}

func (e *TooManyFieldsError) Is(target error) bool { return target == ErrTooManyFields }

// UnterminatedQuoteError is returned when input ends inside a quoted span.
type UnterminatedQuoteError struct {
	Line int // physical line where the row started
}

func (e *UnterminatedQuoteError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, ErrUnterminatedQuote)
}

func (e *UnterminatedQuoteError) Is(target error) bool { return target == ErrUnterminatedQuote }
