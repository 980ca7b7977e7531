package source

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/api"
	v1 "github.com/prometheus/client_golang/api/prometheus/v1"
	prom "github.com/prometheus/common/model"
	"go.uber.org/zap"

	"github.com/jondoveston/vmtop/internal/model"
)

// PrometheusOptions configures a PrometheusSource.
type PrometheusOptions struct {
	URL     string
	Job     string
	Window  time.Duration
	Step    time.Duration
	Timeout time.Duration
	Logger  *zap.Logger
}

// PrometheusSource discovers node_exporter targets through a Prometheus
// server and reads their recent history with range queries.
type PrometheusSource struct {
	api     v1.API
	url     *url.URL
	job     string
	window  time.Duration
	step    time.Duration
	timeout time.Duration
	logger  *zap.Logger
	now     func() time.Time
}

func NewPrometheusSource(opts PrometheusOptions) (*PrometheusSource, error) {
	u, err := url.Parse(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse prometheus url: %w", err)
	}
	client, err := api.NewClient(api.Config{
		Address: u.String(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus client: %w", err)
	}

	p := &PrometheusSource{
		api:     v1.NewAPI(client),
		url:     u,
		job:     opts.Job,
		window:  opts.Window,
		step:    opts.Step,
		timeout: opts.Timeout,
		logger:  opts.Logger,
		now:     time.Now,
	}
	if p.job == "" {
		p.job = "node_exporter"
	}
	if p.window <= 0 {
		p.window = 10 * time.Minute
	}
	if p.step <= 0 {
		p.step = 15 * time.Second
	}
	if p.timeout <= 0 {
		p.timeout = defaultTimeout
	}
	if p.logger == nil {
		p.logger = zap.NewNop()
	}
	return p, nil
}

// URL returns the server address.
func (p *PrometheusSource) URL() *url.URL {
	return p.url
}

// Check verifies the API answers and at least one target of the job exists.
func (p *PrometheusSource) Check(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	if _, err := p.query(ctx, "up"); err != nil {
		return fmt.Errorf("prometheus API query failed: %w", err)
	}
	vec, err := p.query(ctx, p.upQuery())
	if err != nil {
		return fmt.Errorf("%s job query failed: %w", p.job, err)
	}
	if len(vec) == 0 {
		return fmt.Errorf("no %s targets found in prometheus", p.job)
	}
	return nil
}

// Entities lists the instances of the job that are currently up.
func (p *PrometheusSource) Entities(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	vec, err := p.query(ctx, p.upQuery())
	if err != nil {
		return []string{}, networkErr(OpList, "", err)
	}

	nodes := make([]string, 0, len(vec))
	for _, s := range vec {
		if s.Value == 1 {
			nodes = append(nodes, string(s.Metric["instance"]))
		}
	}
	slices.Sort(nodes)
	return nodes, nil
}

// Metrics runs one range query per series and joins them on timestamp.
// The CPU series decides which timestamps exist; the others fill in 0 where
// they have no sample.
func (p *PrometheusSource) Metrics(ctx context.Context, id string) (model.RawSeries, error) {
	if id == "" {
		return model.RawSeries{}, invalidErr(OpMetrics, id, errEmptyID)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	end := p.now()
	r := v1.Range{Start: end.Add(-p.window), End: end, Step: p.step}

	sel := p.selector(id)
	queries := []string{
		`100 - (avg(rate(node_cpu_seconds_total{` + sel + `,mode="idle"}[1m])) * 100)`,
		`100 * (1 - sum(node_memory_MemAvailable_bytes{` + sel + `}) / sum(node_memory_MemTotal_bytes{` + sel + `}))`,
		`sum(rate(node_network_receive_bytes_total{` + sel + `,device!="lo"}[1m]))`,
		`sum(rate(node_network_transmit_bytes_total{` + sel + `,device!="lo"}[1m]))`,
	}

	columns := make([][]prom.SamplePair, len(queries))
	for i, q := range queries {
		pairs, err := p.queryRange(ctx, q, r)
		if err != nil {
			return model.RawSeries{}, networkErr(OpMetrics, id, err)
		}
		columns[i] = pairs
	}

	return zipColumns(columns), nil
}

func zipColumns(columns [][]prom.SamplePair) model.RawSeries {
	lookup := make([]map[prom.Time]float64, len(columns))
	for i := 1; i < len(columns); i++ {
		lookup[i] = make(map[prom.Time]float64, len(columns[i]))
		for _, sp := range columns[i] {
			lookup[i][sp.Timestamp] = float64(sp.Value)
		}
	}

	series := make(model.RawSeries, 0, len(columns[0]))
	for _, sp := range columns[0] {
		series = append(series, model.RawSample{
			MeasureTime: sp.Timestamp.Time().UTC().Format(time.RFC3339),
			CPUUsage:    float64(sp.Value),
			RAMUsage:    lookup[1][sp.Timestamp],
			NetRx:       lookup[2][sp.Timestamp],
			NetTx:       lookup[3][sp.Timestamp],
		})
	}
	return series
}

func (p *PrometheusSource) upQuery() string {
	return `up{job=` + strconv.Quote(p.job) + `}`
}

func (p *PrometheusSource) selector(instance string) string {
	return `job=` + strconv.Quote(p.job) + `,instance=` + strconv.Quote(instance)
}

func (p *PrometheusSource) query(ctx context.Context, q string) (prom.Vector, error) {
	result, warnings, err := p.api.Query(ctx, q, p.now())
	if err != nil {
		return nil, err
	}
	if len(warnings) > 0 {
		p.logger.Warn("prometheus warnings", zap.String("query", q), zap.Strings("warnings", warnings))
	}
	vec, ok := result.(prom.Vector)
	if !ok {
		return nil, fmt.Errorf("query %q returned %s, want vector", q, result.Type())
	}
	return vec, nil
}

func (p *PrometheusSource) queryRange(ctx context.Context, q string, r v1.Range) ([]prom.SamplePair, error) {
	result, warnings, err := p.api.QueryRange(ctx, q, r)
	if err != nil {
		return nil, err
	}
	if len(warnings) > 0 {
		p.logger.Warn("prometheus warnings", zap.String("query", q), zap.Strings("warnings", warnings))
	}
	matrix, ok := result.(prom.Matrix)
	if !ok {
		return nil, fmt.Errorf("query %q returned %s, want matrix", q, result.Type())
	}
	switch len(matrix) {
	case 0:
		return nil, nil
	case 1:
		return matrix[0].Values, nil
	default:
		return nil, errors.New("query " + strconv.Quote(q) + " returned more than one series")
	}
}
