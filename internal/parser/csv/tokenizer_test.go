package csv

import (
	"context"
	"errors"
	"io"
	"reflect"
	"strings"
	"testing"

	"typeprobe/internal/record"
)

func readAll(t *testing.T, in string, expected int) ([]Row, error) {
	t.Helper()
	tok := NewTokenizer(strings.NewReader(in), DefaultDialect)
	var rows []Row
	for {
		r, err := tok.Next(expected)
		if err == io.EOF {
			return rows, nil
		}
		if err != nil {
			return rows, err
		}
		rows = append(rows, r)
	}
}

// TestTokenizerNext covers row assembly from physical lines.
func TestTokenizerNext(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		in       string
		expected int
		want     []Row
	}{
		{
			name:     "one row per line",
			in:       "a,b\nc,d\n",
			expected: 2,
			want:     []Row{{"a", "b"}, {"c", "d"}},
		},
		{
			name:     "quoted newline reassembled",
			in:       "\"line1\nline2\",5\n",
			expected: 2,
			want:     []Row{{"line1\nline2", "5"}},
		},
		{
			name:     "quoted newline without expected count",
			in:       "\"x\ny\",1\n",
			expected: -1,
			want:     []Row{{"x\ny", "1"}},
		},
		{
			name:     "short row joined with next line",
			in:       "a,b\nc,d\n",
			expected: 3,
			want:     []Row{{"a", "bc", "d"}},
		},
		{
			name:     "short row at end of input",
			in:       "a,b\n",
			expected: 3,
			want:     []Row{{"a", "b"}},
		},
		{
			name:     "wide single line passes through",
			in:       "a,b,c\n",
			expected: 2,
			want:     []Row{{"a", "b", "c"}},
		},
		{
			name:     "blank lines skipped",
			in:       "\n  \na,b\n\n",
			expected: 2,
			want:     []Row{{"a", "b"}},
		},
		{
			name:     "crlf terminators",
			in:       "a,b\r\nc,d\r\n",
			expected: 2,
			want:     []Row{{"a", "b"}, {"c", "d"}},
		},
		{
			name:     "lone cr terminators",
			in:       "a,b\rc,d",
			expected: 2,
			want:     []Row{{"a", "b"}, {"c", "d"}},
		},
		{
			name:     "quoted lone cr kept",
			in:       "\"x\ry\",1\n",
			expected: 2,
			want:     []Row{{"x\ry", "1"}},
		},
		{
			name:     "quoted crlf kept",
			in:       "\"x\r\ny\",1\n",
			expected: 2,
			want:     []Row{{"x\r\ny", "1"}},
		},
		{
			name:     "quoted mixed terminators kept",
			in:       "\"a\rb\r\nc\nd\",1\r\ne,2",
			expected: 2,
			want:     []Row{{"a\rb\r\nc\nd", "1"}, {"e", "2"}},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := readAll(t, tt.in, tt.expected)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("rows = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLineReaderTerminator(t *testing.T) {
	t.Parallel()

	lr := NewLineReader(strings.NewReader("a\rb\r\nc\nd\r\re"))
	type step struct{ line, term string }
	want := []step{{"a", "\r"}, {"b", "\r\n"}, {"c", "\n"}, {"d", "\r"}, {"", "\r"}, {"e", ""}}
	for i, w := range want {
		got, err := lr.Next()
		if err != nil {
			t.Fatalf("line %d: %v", i+1, err)
		}
		if got != w.line || lr.Terminator() != w.term {
			t.Fatalf("line %d = %q/%q, want %q/%q", i+1, got, lr.Terminator(), w.line, w.term)
		}
	}
	if _, err := lr.Next(); err != io.EOF {
		t.Fatalf("expected io.EOF, got %v", err)
	}
}

func TestTokenizerTooManyFieldsAfterJoin(t *testing.T) {
	t.Parallel()

	_, err := readAll(t, "h1,h2\nx,y\na\nb,c,d\n", 2)
	var tm *TooManyFieldsError
	if !errors.As(err, &tm) {
		t.Fatalf("err = %v, want *TooManyFieldsError", err)
	}
	if !errors.Is(err, ErrTooManyFields) {
		t.Fatalf("errors.Is(err, ErrTooManyFields) = false")
	}
	if tm.Line != 3 || tm.Expected != 2 || tm.Got != 3 {
		t.Fatalf("got %+v, want line 3, expected 2, got 3", tm)
	}
}

func TestTokenizerUnterminatedQuote(t *testing.T) {
	t.Parallel()

	_, err := readAll(t, "a,b\nc,\"open\nstill open\n", 2)
	var uq *UnterminatedQuoteError
	if !errors.As(err, &uq) {
		t.Fatalf("err = %v, want *UnterminatedQuoteError", err)
	}
	if !errors.Is(err, ErrUnterminatedQuote) || uq.Line != 2 {
		t.Fatalf("got %+v, want line 2", uq)
	}
}

func TestTokenizerLine(t *testing.T) {
	t.Parallel()

	tok := NewTokenizer(strings.NewReader("h\n\"a\nb\"\nc\n"), DefaultDialect)
	var lines []int
	for {
		_, err := tok.Next(1)
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		lines = append(lines, tok.Line())
	}
	if want := []int{1, 2, 4}; !reflect.DeepEqual(lines, want) {
		t.Fatalf("lines = %v, want %v", lines, want)
	}
}

func TestCountLines(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want int64
	}{
		{"", 0},
		{"a", 1},
		{"a\nb\n", 2},
		{"a\nb", 2},
		{"a\r\nb\r\n", 2},
		{"a\rb", 2},
		{"\n\n", 2},
		{"a\r\r\n", 2},
	}
	for _, tt := range tests {
		got, err := CountLines(context.Background(), strings.NewReader(tt.in))
		if err != nil {
			t.Fatalf("CountLines(%q): %v", tt.in, err)
		}
		if got != tt.want {
			t.Fatalf("CountLines(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

type closeTracker struct {
	io.Reader
	closed bool
}

func (c *closeTracker) Close() error {
	c.closed = true
	return nil
}

// TestStreamRows verifies header skipping, nil blanks and that the source is
// always closed.
func TestStreamRows(t *testing.T) {
	t.Parallel()

	src := &closeTracker{Reader: strings.NewReader("id,name\n1, alice \n2,\nx\ny,z,w\n3,carol\n")}
	out := make(chan *record.Row, 16)
	var errLines []int

	err := StreamRows(context.Background(), src, 2,
		StreamOptions{Dialect: DefaultDialect, HasHeader: true, TrimSpace: true},
		out, func(line int, err error) { errLines = append(errLines, line) })
	if err != nil {
		t.Fatalf("StreamRows: %v", err)
	}
	close(out)

	var got [][]any
	for r := range out {
		got = append(got, append([]any(nil), r.V...))
		r.Free()
	}
	want := [][]any{{"1", "alice"}, {"2", nil}, {"3", "carol"}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("rows = %v, want %v", got, want)
	}
	if !reflect.DeepEqual(errLines, []int{4}) {
		t.Fatalf("error lines = %v, want [4]", errLines)
	}
	if !src.closed {
		t.Fatalf("source not closed")
	}
}

func TestStreamRowsClosesOnCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	src := &closeTracker{Reader: strings.NewReader("a\n1\n")}
	err := StreamRows(ctx, src, 1, StreamOptions{Dialect: DefaultDialect, HasHeader: true}, make(chan *record.Row), nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if !src.closed {
		t.Fatalf("source not closed")
	}
}
