package pipeline

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jondoveston/vmtop/internal/model"
)

// ErrSuperseded is returned by Refresh when a newer refresh started before
// this one finished. The older cycle's result is dropped.
var ErrSuperseded = errors.New("refresh superseded")

// Fetcher is the never-failing view of a backend used by the Refresher.
type Fetcher interface {
	MetricsFetcher
	Entities(ctx context.Context) []string
}

// Refresher runs fetch cycles (list, then aggregate) and publishes each
// completed cycle to a Store. Starting a cycle cancels the one in flight.
type Refresher struct {
	fetcher    Fetcher
	aggregator *Aggregator
	store      *Store
	logger     *zap.Logger
	now        func() time.Time

	mu     sync.Mutex
	gen    uint64
	cancel context.CancelFunc
}

func NewRefresher(fetcher Fetcher, store *Store, maxConcurrency int, logger *zap.Logger) *Refresher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Refresher{
		fetcher:    fetcher,
		aggregator: NewAggregator(fetcher, maxConcurrency, logger),
		store:      store,
		logger:     logger,
		now:        time.Now,
	}
}

// Store returns the store results are published to.
func (r *Refresher) Store() *Store {
	return r.store
}

// Refresh runs one cycle and publishes it. It returns ErrSuperseded if a
// later Refresh call started meanwhile, or the context error if ctx ended;
// in both cases nothing is published.
func (r *Refresher) Refresh(ctx context.Context) (*Result, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	r.mu.Lock()
	if r.cancel != nil {
		r.cancel()
	}
	r.gen++
	gen := r.gen
	r.cancel = cancel
	r.mu.Unlock()

	start := r.now()
	ids := r.fetcher.Entities(ctx)
	snap := r.aggregator.Aggregate(ctx, ids)

	r.mu.Lock()
	defer r.mu.Unlock()

	if gen != r.gen {
		return nil, ErrSuperseded
	}
	r.cancel = nil
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res := &Result{Entities: ids, Snapshot: snap, FetchedAt: r.now()}
	r.store.Publish(res)

	r.logger.Debug("refreshed",
		zap.Int("entities", len(ids)),
		zap.Duration("duration", res.FetchedAt.Sub(start)),
	)
	return res, nil
}

// Run refreshes once immediately and then every interval until ctx ends.
func (r *Refresher) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	r.refreshAndLog(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			r.refreshAndLog(ctx)
		}
	}
}

func (r *Refresher) refreshAndLog(ctx context.Context) {
	if _, err := r.Refresh(ctx); err != nil && ctx.Err() == nil {
		r.logger.Debug("refresh not published", zap.Error(err))
	}
}

// Bundle returns the current chart bundle of the entity chosen by sel.
func (r *Refresher) Bundle(sel *Selection) (model.ChartBundle, bool) {
	return sel.Derive(r.store.Load().Snapshot)
}
