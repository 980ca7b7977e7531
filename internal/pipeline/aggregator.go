// Package pipeline turns fetched entity data into published snapshots and
// tracks which entity the user is looking at.
package pipeline

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jondoveston/vmtop/internal/model"
)

// MetricsFetcher returns the raw series of one entity and never fails.
type MetricsFetcher interface {
	Metrics(ctx context.Context, id string) model.RawSeries
}

// Aggregator fetches and transforms the series of many entities at once.
type Aggregator struct {
	fetcher MetricsFetcher
	limit   int
	logger  *zap.Logger
}

// NewAggregator returns an Aggregator running at most maxConcurrency fetches
// at a time. Zero or less means no limit.
func NewAggregator(fetcher MetricsFetcher, maxConcurrency int, logger *zap.Logger) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Aggregator{
		fetcher: fetcher,
		limit:   maxConcurrency,
		logger:  logger,
	}
}

// Aggregate fetches every id and returns a snapshot holding a bundle for each
// of them. The snapshot is only built once all fetches have returned. Ids whose
// fetch failed, or that were skipped because ctx ended, map to an empty bundle.
func (a *Aggregator) Aggregate(ctx context.Context, ids []string) model.Snapshot {
	bundles := make([]model.ChartBundle, len(ids))

	var g errgroup.Group
	if a.limit > 0 {
		g.SetLimit(a.limit)
	}
	for i, id := range ids {
		g.Go(func() error {
			if ctx.Err() != nil {
				bundles[i] = model.EmptyBundle()
				return nil
			}
			bundles[i] = Transform(a.fetcher.Metrics(ctx, id))
			return nil
		})
	}
	_ = g.Wait()

	snap := make(model.Snapshot, len(ids))
	for i, id := range ids {
		snap[id] = bundles[i]
	}

	a.logger.Debug("aggregated snapshot", zap.Int("entities", len(ids)), zap.Bool("canceled", ctx.Err() != nil))
	return snap
}
