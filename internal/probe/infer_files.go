package probe

import (
	"context"

	"golang.org/x/sync/errgroup"

	"typeprobe/internal/schema"
)

// InferFiles probes every path and folds the results into one schema.
//
// Files are probed concurrently, bounded by Options.Workers, but folded in
// path order so column order is deterministic. The first failure cancels the
// rest and is returned; no partial schema is returned.
func InferFiles(ctx context.Context, paths []string, opt Options) (schema.Schema, []*Report, error) {
	opt = opt.withDefaults()

	schemas := make([]schema.Schema, len(paths))
	reports := make([]*Report, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opt.Workers)
	for i, p := range paths {
		g.Go(func() error {
			s, rep, err := InferFile(gctx, p, opt)
			if err != nil {
				return err
			}
			schemas[i], reports[i] = s, rep
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return schema.Schema{}, nil, err
	}

	c := schema.NewConsolidated()
	for _, s := range schemas {
		c.Fold(s)
	}
	return c.Schema(), reports, nil
}
