// Package file opens local delimited files as decoded UTF-8 streams.
package file

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"typeprobe/internal/parser/csv"
)

// DefaultEncoding is used when no encoding name is given.
const DefaultEncoding = "utf-8"

// Source is an opened, decoded file. Close releases the file handle.
type Source struct {
	io.Reader
	f *os.File
}

func (s *Source) Close() error { return s.f.Close() }

// LookupEncoding resolves a WHATWG or IANA encoding label.
func LookupEncoding(name string) (encoding.Encoding, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	if n == "" {
		n = DefaultEncoding
	}
	if e, err := htmlindex.Get(n); err == nil && e != nil {
		return e, nil
	}
	e, err := ianaindex.IANA.Encoding(n)
	if err != nil {
		return nil, fmt.Errorf("unknown encoding %q: %w", name, err)
	}
	if e == nil {
		return nil, fmt.Errorf("encoding %q is not supported", name)
	}
	return e, nil
}

// NewDecoder wraps r so it yields UTF-8. A leading byte order mark always
// wins over enc and is removed; invalid sequences become U+FFFD.
func NewDecoder(r io.Reader, enc encoding.Encoding) io.Reader {
	return transform.NewReader(r, unicode.BOMOverride(enc.NewDecoder()))
}

// Open opens path and decodes it from the named encoding.
func Open(path, encodingName string) (*Source, error) {
	enc, err := LookupEncoding(encodingName)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return &Source{
		Reader: NewDecoder(bufio.NewReaderSize(f, 256*1024), enc),
		f:      f,
	}, nil
}

// CountLines counts the physical lines of path after decoding. "\n", "\r\n"
// and a lone "\r" each end one line.
func CountLines(ctx context.Context, path, encodingName string) (int64, error) {
	src, err := Open(path, encodingName)
	if err != nil {
		return 0, err
	}
	defer src.Close()

	n, err := csv.CountLines(ctx, src)
	if err != nil {
		return n, fmt.Errorf("count lines %s: %w", path, err)
	}
	return n, nil
}
