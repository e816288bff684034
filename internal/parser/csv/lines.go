package csv

import (
	"bufio"
	"context"
	"io"
	"strings"
)

// LineReader yields physical lines. "\n", "\r\n" and a lone "\r" each end
// one line; the terminator is not part of the returned text but is kept for
// Terminator.
type LineReader struct {
	br       *bufio.Reader
	pending  []string
	lastTerm string // terminator of the final pending piece
	term     string
	line     int
}

// NewLineReader returns a LineReader over r.
func NewLineReader(r io.Reader) *LineReader {
	if br, ok := r.(*bufio.Reader); ok {
		return &LineReader{br: br}
	}
	return &LineReader{br: bufio.NewReaderSize(r, 64*1024)}
}

// Next returns the next line, or io.EOF once input is exhausted.
func (l *LineReader) Next() (string, error) {
	if len(l.pending) > 0 {
		s := l.pending[0]
		l.pending = l.pending[1:]
		l.term = "\r"
		if len(l.pending) == 0 {
			l.term = l.lastTerm
		}
		l.line++
		return s, nil
	}

	s, err := l.br.ReadString('\n')
	if s == "" && err != nil {
		l.term = ""
		return "", err
	}
	term := ""
	switch {
	case strings.HasSuffix(s, "\r\n"):
		term = "\r\n"
	case strings.HasSuffix(s, "\n"):
		term = "\n"
	case strings.HasSuffix(s, "\r"):
		term = "\r"
	}
	s = s[:len(s)-len(term)]
	if strings.IndexByte(s, '\r') >= 0 {
		parts := strings.Split(s, "\r")
		s, l.pending, l.lastTerm = parts[0], parts[1:], term
		term = "\r"
	}
	l.term = term
	l.line++
	return s, nil
}

// Terminator returns the line ending consumed with the last line returned by
// Next: "\n", "\r\n", "\r", or "" when input ended without one.
func (l *LineReader) Terminator() string { return l.term }

// Line returns the 1-based number of the last line returned by Next.
func (l *LineReader) Line() int { return l.line }

// CountLines counts physical lines in r using the same terminator rules as
// the tokenizer. A trailing terminator does not open an extra line.
func CountLines(ctx context.Context, r io.Reader) (int64, error) {
	br := bufio.NewReaderSize(r, 64*1024)
	var (
		n       int64
		partial bool // bytes seen since the last terminator
		prevCR  bool
	)
	buf := make([]byte, 32*1024)
	for {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		k, err := br.Read(buf)
		for _, b := range buf[:k] {
			switch b {
			case '\n':
				if !prevCR {
					n++
				}
				partial, prevCR = false, false
			case '\r':
				n++
				partial, prevCR = false, true
			default:
				partial, prevCR = true, false
			}
		}
		if err == io.EOF {
			if partial {
				n++
			}
			return n, nil
		}
		if err != nil {
			return n, err
		}
	}
}
