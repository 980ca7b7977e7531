package source

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jondoveston/vmtop/internal/model"
)

const upVector = `{"status":"success","data":{"resultType":"vector","result":[
	{"metric":{"__name__":"up","instance":"b:9100","job":"node_exporter"},"value":[1700000100,"1"]},
	{"metric":{"__name__":"up","instance":"a:9100","job":"node_exporter"},"value":[1700000100,"1"]},
	{"metric":{"__name__":"up","instance":"c:9100","job":"node_exporter"},"value":[1700000100,"0"]}
]}}`

const emptyVector = `{"status":"success","data":{"resultType":"vector","result":[]}}`

func matrix(values ...string) string {
	return `{"status":"success","data":{"resultType":"matrix","result":[{"metric":{},"values":[` +
		strings.Join(values, ",") + `]}]}}`
}

type promStub struct {
	mu      sync.Mutex
	queries []string
	vector  string
	ranges  map[string]string
}

func (s *promStub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	q := r.Form.Get("query")

	s.mu.Lock()
	s.queries = append(s.queries, q)
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	switch r.URL.Path {
	case "/api/v1/query":
		if q == "up" {
			_, _ = w.Write([]byte(upVector))
			return
		}
		_, _ = w.Write([]byte(s.vector))
	case "/api/v1/query_range":
		for needle, body := range s.ranges {
			if strings.Contains(q, needle) {
				_, _ = w.Write([]byte(body))
				return
			}
		}
		_, _ = w.Write([]byte(`{"status":"success","data":{"resultType":"matrix","result":[]}}`))
	default:
		http.NotFound(w, r)
	}
}

func (s *promStub) seen() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.queries...)
}

func newTestPrometheusSource(t *testing.T, stub *promStub) *PrometheusSource {
	t.Helper()
	srv := httptest.NewServer(stub)
	t.Cleanup(srv.Close)

	p, err := NewPrometheusSource(PrometheusOptions{URL: srv.URL, Timeout: time.Second})
	require.NoError(t, err)
	p.now = func() time.Time { return time.Unix(1700000100, 0) }
	return p
}

func TestNewPrometheusSource_Defaults(t *testing.T) {
	p, err := NewPrometheusSource(PrometheusOptions{URL: "http://localhost:9090"})
	require.NoError(t, err)
	assert.Equal(t, "node_exporter", p.job)
	assert.Equal(t, 10*time.Minute, p.window)
	assert.Equal(t, 15*time.Second, p.step)
	assert.Equal(t, "localhost:9090", p.URL().Host)
}

func TestPrometheusSource_Entities(t *testing.T) {
	stub := &promStub{vector: upVector}
	p := newTestPrometheusSource(t, stub)

	got, err := p.Entities(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a:9100", "b:9100"}, got)
	assert.Equal(t, []string{`up{job="node_exporter"}`}, stub.seen())
}

func TestPrometheusSource_Check(t *testing.T) {
	p := newTestPrometheusSource(t, &promStub{vector: upVector})
	assert.NoError(t, p.Check(context.Background()))

	p = newTestPrometheusSource(t, &promStub{vector: emptyVector})
	err := p.Check(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no node_exporter targets")
}

func TestPrometheusSource_Metrics(t *testing.T) {
	stub := &promStub{ranges: map[string]string{
		"node_cpu_seconds_total":            matrix(`[1700000000,"12.5"]`, `[1700000015,"20"]`),
		"node_memory_MemAvailable_bytes":    matrix(`[1700000000,"40"]`, `[1700000015,"41"]`),
		"node_network_receive_bytes_total":  matrix(`[1700000000,"1000"]`, `[1700000015,"2000"]`),
		"node_network_transmit_bytes_total": matrix(`[1700000015,"300"]`),
	}}
	p := newTestPrometheusSource(t, stub)

	got, err := p.Metrics(context.Background(), "a:9100")
	require.NoError(t, err)
	assert.Equal(t, model.RawSeries{
		{MeasureTime: "2023-11-14T22:13:20Z", CPUUsage: 12.5, RAMUsage: 40, NetRx: 1000, NetTx: 0},
		{MeasureTime: "2023-11-14T22:13:35Z", CPUUsage: 20, RAMUsage: 41, NetRx: 2000, NetTx: 300},
	}, got)

	require.Len(t, stub.seen(), 4)
	for _, q := range stub.seen() {
		assert.Contains(t, q, `job="node_exporter",instance="a:9100"`)
	}
}

func TestPrometheusSource_MetricsEscapesInstance(t *testing.T) {
	stub := &promStub{}
	p := newTestPrometheusSource(t, stub)

	got, err := p.Metrics(context.Background(), `evil"} or vector(1) #`)
	require.NoError(t, err)
	assert.Empty(t, got)
	require.NotEmpty(t, stub.seen())
	assert.Contains(t, stub.seen()[0], `instance="evil\"} or vector(1) #"`)
}

func TestPrometheusSource_MetricsErrors(t *testing.T) {
	p := newTestPrometheusSource(t, &promStub{})
	_, err := p.Metrics(context.Background(), "")
	assert.True(t, IsKind(err, KindInvalid))

	two := fmt.Sprintf(`{"status":"success","data":{"resultType":"matrix","result":[%s,%s]}}`,
		`{"metric":{"cpu":"0"},"values":[[1700000000,"1"]]}`,
		`{"metric":{"cpu":"1"},"values":[[1700000000,"2"]]}`)
	p = newTestPrometheusSource(t, &promStub{ranges: map[string]string{"node_cpu_seconds_total": two}})
	got, err := p.Metrics(context.Background(), "a:9100")
	require.Error(t, err)
	assert.True(t, IsKind(err, KindNetwork))
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestPrometheusSource_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	p, err := NewPrometheusSource(PrometheusOptions{URL: srv.URL, Timeout: time.Second})
	require.NoError(t, err)

	got, err := p.Entities(context.Background())
	require.Error(t, err)
	assert.True(t, IsKind(err, KindNetwork))
	assert.Empty(t, got)
	assert.Error(t, p.Check(context.Background()))
}
