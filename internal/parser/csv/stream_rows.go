package csv

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"typeprobe/internal/record"
)

// StreamOptions controls StreamRows.
type StreamOptions struct {
	Dialect   Dialect
	HasHeader bool
	TrimSpace bool
}

// StreamRows tokenizes src into pooled *record.Row values of the given width.
// Blank values are sent as nil, everything else as string. Rows that are too
// wide after line stitching are reported through onErr and skipped; any other
// tokenizer error ends the stream.
//
// NOTE on cancellation:
// On ctx cancellation in-flight rows are dropped, not freed, so a consumer
// still draining cannot observe a recycled row.
func StreamRows(
	ctx context.Context,
	src io.ReadCloser,
	width int,
	opt StreamOptions,
	out chan<- *record.Row,
	onErr func(line int, err error),
) error {
	defer src.Close()

	tok := NewTokenizer(src, opt.Dialect)

	if opt.HasHeader {
		if _, err := tok.Next(-1); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			if onErr != nil {
				onErr(tok.Line(), fmt.Errorf("read header: %w", err))
			}
			return err
		}
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		rec, err := tok.Next(width)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			if onErr != nil {
				onErr(tok.Line(), err)
			}
			if errors.Is(err, ErrTooManyFields) {
				continue
			}
			return err
		}

		row := record.GetRow(width)
		row.Line = tok.Line()
		for i := 0; i < width; i++ {
			if i >= len(rec) {
				row.V[i] = nil
				continue
			}
			v := rec[i]
			if opt.TrimSpace {
				v = strings.TrimSpace(v)
			}
			if strings.TrimSpace(v) == "" {
				row.V[i] = nil
			} else {
				row.V[i] = v
			}
		}

		select {
		case out <- row:
		case <-ctx.Done():
			row.Drop()
			return ctx.Err()
		}
	}
}
