package probe

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"typeprobe/internal/datasource/file"
	"typeprobe/internal/parser/csv"
)

// FieldLengthWarning reports physical lines whose field count differs from
// the header's. Counting is per physical line: every line of a record with an
// embedded line break is counted as mismatched, including the continuation
// lines, even when the logical record is well formed.
type FieldLengthWarning struct {
	Expected   int   `json:"expected"`
	Mismatched int64 `json:"mismatched"`
	FirstLine  int64 `json:"first_line"`
}

type scanResult struct {
	warning *FieldLengthWarning
	err     error
}

const scanChunkLines = 4096

// checkRectangular compares every non-blank data line of path with nf.
// Chunks of lines are counted on up to workers goroutines. The header is the
// first non-blank line and is skipped.
func checkRectangular(ctx context.Context, path, enc string, d csv.Dialect, nf, workers int) (*FieldLengthWarning, error) {
	src, err := file.Open(path, enc)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	var (
		mismatched atomic.Int64
		mu         sync.Mutex
		first      int64
	)
	note := func(line int64) {
		mismatched.Add(1)
		mu.Lock()
		if first == 0 || line < first {
			first = line
		}
		mu.Unlock()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	lr := csv.NewLineReader(src)
	header := true
	chunk := make([]string, 0, scanChunkLines)
	var chunkStart int64

	flush := func() {
		lines, base := chunk, chunkStart
		g.Go(func() error {
			for i, l := range lines {
				if strings.TrimSpace(l) == "" {
					continue
				}
				if d.CountFields(l) != nf {
					note(base + int64(i))
				}
			}
			return nil
		})
		chunk = make([]string, 0, scanChunkLines)
	}

	var readErr error
	for {
		if err := gctx.Err(); err != nil {
			readErr = err
			break
		}
		l, err := lr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			readErr = err
			break
		}
		if header {
			if strings.TrimSpace(l) != "" {
				header = false
			}
			continue
		}
		if len(chunk) == 0 {
			chunkStart = int64(lr.Line())
		}
		chunk = append(chunk, l)
		if len(chunk) == scanChunkLines {
			flush()
		}
	}
	if readErr == nil && len(chunk) > 0 {
		flush()
	}
	if err := g.Wait(); err != nil && readErr == nil {
		readErr = err
	}
	if readErr != nil {
		return nil, readErr
	}

	if n := mismatched.Load(); n > 0 {
		return &FieldLengthWarning{Expected: nf, Mismatched: n, FirstLine: first}, nil
	}
	return nil, nil
}
