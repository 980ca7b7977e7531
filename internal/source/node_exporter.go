package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"sync"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"

	"github.com/jondoveston/vmtop/internal/model"
)

// DefaultHistory is how many samples a NodeExporterSource keeps per instance.
const DefaultHistory = 60

// NodeExporterOptions configures a NodeExporterSource.
type NodeExporterOptions struct {
	URLs    []string
	Timeout time.Duration
	History int
	Client  *http.Client
}

// NodeExporterSource scrapes node_exporter endpoints directly. Counters only
// turn into rates between two scrapes, so each Metrics call appends at most
// one sample to a rolling per-instance history and returns that history.
type NodeExporterSource struct {
	instances map[string]*url.URL
	timeout   time.Duration
	history   int
	client    *http.Client
	now       func() time.Time

	mu    sync.Mutex
	nodes map[string]*nodeHistory
}

type nodeHistory struct {
	last    *nodeReading
	samples model.RawSeries
}

type nodeReading struct {
	at       time.Time
	cpuTotal float64
	cpuIdle  float64
	memUsed  float64
	rx       float64
	tx       float64
}

func NewNodeExporterSource(opts NodeExporterOptions) (*NodeExporterSource, error) {
	if len(opts.URLs) == 0 {
		return nil, errors.New("no node_exporter urls configured")
	}

	instances := make(map[string]*url.URL, len(opts.URLs))
	for _, raw := range opts.URLs {
		u, err := url.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("failed to parse node_exporter url %q: %w", raw, err)
		}
		if u.Host == "" {
			return nil, fmt.Errorf("node_exporter url %q has no host", raw)
		}
		instances[u.Host] = u
	}

	n := &NodeExporterSource{
		instances: instances,
		timeout:   opts.Timeout,
		history:   opts.History,
		client:    opts.Client,
		now:       time.Now,
		nodes:     make(map[string]*nodeHistory),
	}
	if n.timeout <= 0 {
		n.timeout = defaultTimeout
	}
	if n.history <= 0 {
		n.history = DefaultHistory
	}
	if n.client == nil {
		n.client = &http.Client{}
	}
	return n, nil
}

// Entities returns the configured instances (host:port), sorted.
func (n *NodeExporterSource) Entities(ctx context.Context) ([]string, error) {
	keys := make([]string, 0, len(n.instances))
	for k := range n.instances {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys, nil
}

// Check scrapes every instance once.
func (n *NodeExporterSource) Check(ctx context.Context) error {
	for host, u := range n.instances {
		if _, err := n.scrape(ctx, u); err != nil {
			return fmt.Errorf("node_exporter %s: %w", host, err)
		}
	}
	return nil
}

func (n *NodeExporterSource) Metrics(ctx context.Context, id string) (model.RawSeries, error) {
	if id == "" {
		return model.RawSeries{}, invalidErr(OpMetrics, id, errEmptyID)
	}
	u, ok := n.instances[id]
	if !ok {
		return model.RawSeries{}, invalidErr(OpMetrics, id, errors.New("unknown instance"))
	}

	families, err := n.scrape(ctx, u)
	if err != nil {
		if errors.Is(err, errExposition) {
			return model.RawSeries{}, decodeErr(OpMetrics, id, err)
		}
		return model.RawSeries{}, networkErr(OpMetrics, id, err)
	}
	reading := readingFrom(families, n.now())

	n.mu.Lock()
	defer n.mu.Unlock()

	h, ok := n.nodes[id]
	if !ok {
		h = &nodeHistory{}
		n.nodes[id] = h
	}
	if h.last != nil && !reading.at.After(h.last.at) {
		// an overlapping call already recorded a newer scrape
		return append(model.RawSeries{}, h.samples...), nil
	}
	if h.last != nil {
		if s, ok := h.last.sampleTo(reading); ok {
			h.samples = append(h.samples, s)
			if len(h.samples) > n.history {
				h.samples = slices.Delete(h.samples, 0, len(h.samples)-n.history)
			}
		}
	}
	h.last = reading

	return append(model.RawSeries{}, h.samples...), nil
}

var errExposition = errors.New("invalid exposition format")

func (n *NodeExporterSource) scrape(ctx context.Context, u *url.URL) (map[string]*dto.MetricFamily, error) {
	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Pragma", "no-cache")

	resp, err := n.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}

	var parser expfmt.TextParser
	families, err := parser.TextToMetricFamilies(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errExposition, err)
	}
	return families, nil
}

func readingFrom(families map[string]*dto.MetricFamily, at time.Time) *nodeReading {
	r := &nodeReading{at: at}

	for _, m := range families["node_cpu_seconds_total"].GetMetric() {
		v := metricValue(m)
		r.cpuTotal += v
		if label(m, "mode") == "idle" {
			r.cpuIdle += v
		}
	}

	total := sumValues(families["node_memory_MemTotal_bytes"])
	avail := sumValues(families["node_memory_MemAvailable_bytes"])
	if total > 0 {
		r.memUsed = 100 * (1 - avail/total)
	}

	r.rx = sumDevices(families["node_network_receive_bytes_total"])
	r.tx = sumDevices(families["node_network_transmit_bytes_total"])
	return r
}

// sampleTo turns two readings into one sample. Counters that went backwards
// were reset, so their delta is treated as 0.
func (prev *nodeReading) sampleTo(cur *nodeReading) (model.RawSample, bool) {
	interval := cur.at.Sub(prev.at).Seconds()
	if interval <= 0 {
		return model.RawSample{}, false
	}

	s := model.RawSample{
		MeasureTime: cur.at.UTC().Format(time.RFC3339),
		RAMUsage:    cur.memUsed,
	}
	if total := cur.cpuTotal - prev.cpuTotal; total > 0 {
		idle := max(cur.cpuIdle-prev.cpuIdle, 0)
		s.CPUUsage = min(max(100-100*idle/total, 0), 100)
	}
	s.NetRx = max(cur.rx-prev.rx, 0) / interval
	s.NetTx = max(cur.tx-prev.tx, 0) / interval
	return s, true
}

func metricValue(m *dto.Metric) float64 {
	switch {
	case m.Counter != nil:
		return m.GetCounter().GetValue()
	case m.Gauge != nil:
		return m.GetGauge().GetValue()
	default:
		return m.GetUntyped().GetValue()
	}
}

func label(m *dto.Metric, name string) string {
	for _, l := range m.GetLabel() {
		if l.GetName() == name {
			return l.GetValue()
		}
	}
	return ""
}

func sumValues(mf *dto.MetricFamily) float64 {
	total := 0.0
	for _, m := range mf.GetMetric() {
		total += metricValue(m)
	}
	return total
}

func sumDevices(mf *dto.MetricFamily) float64 {
	total := 0.0
	for _, m := range mf.GetMetric() {
		if label(m, "device") == "lo" {
			continue
		}
		total += metricValue(m)
	}
	return total
}
