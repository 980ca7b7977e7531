package source

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/jondoveston/vmtop/internal/model"
)

// Fetcher wraps a Source and never fails: every error is logged, counted and
// replaced by the empty value of the result type.
type Fetcher struct {
	src     Source
	logger  *zap.Logger
	metrics *Metrics
	now     func() time.Time
}

func NewFetcher(src Source, logger *zap.Logger, metrics *Metrics) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	return &Fetcher{
		src:     src,
		logger:  logger,
		metrics: metrics,
		now:     time.Now,
	}
}

// Source returns the wrapped source.
func (f *Fetcher) Source() Source {
	return f.src
}

// Entities returns the entity ids in backend order, or an empty list.
func (f *Fetcher) Entities(ctx context.Context) []string {
	start := f.now()
	ids, err := f.src.Entities(ctx)
	if err != nil {
		f.fail(OpList, "", err)
		return []string{}
	}
	f.observe(OpList, start)
	if ids == nil {
		ids = []string{}
	}
	return ids
}

// Metrics returns the raw series for id, or an empty series.
func (f *Fetcher) Metrics(ctx context.Context, id string) model.RawSeries {
	if id == "" {
		f.fail(OpMetrics, id, invalidErr(OpMetrics, id, errEmptyID))
		return model.RawSeries{}
	}

	start := f.now()
	series, err := f.src.Metrics(ctx, id)
	if err != nil {
		f.fail(OpMetrics, id, err)
		return model.RawSeries{}
	}
	f.observe(OpMetrics, start)
	if series == nil {
		series = model.RawSeries{}
	}
	return series
}

// Services returns the service snapshot, or an empty map when the source
// has none or the fetch fails.
func (f *Fetcher) Services(ctx context.Context) map[string]model.ServiceStatus {
	ss, ok := f.src.(ServiceSource)
	if !ok {
		return map[string]model.ServiceStatus{}
	}

	start := f.now()
	services, err := ss.Services(ctx)
	if err != nil {
		f.fail(OpServices, "", err)
		return map[string]model.ServiceStatus{}
	}
	f.observe(OpServices, start)
	if services == nil {
		services = map[string]model.ServiceStatus{}
	}
	return services
}

func (f *Fetcher) observe(op string, start time.Time) {
	f.metrics.Duration.WithLabelValues(op).Observe(f.now().Sub(start).Seconds())
}

func (f *Fetcher) fail(op, entity string, err error) {
	kind := KindOf(err)
	f.metrics.Errors.WithLabelValues(op, string(kind)).Inc()

	fields := []zap.Field{
		zap.String("op", op),
		zap.String("kind", string(kind)),
		zap.Error(err),
	}
	if entity != "" {
		fields = append(fields, zap.String("entity", entity))
	}

	// A superseded refresh cancels its own requests; that is not worth a warning.
	if kind == KindCanceled {
		f.logger.Debug("fetch canceled", fields...)
		return
	}
	f.logger.Warn("fetch failed, using empty result", fields...)
}
