package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jondoveston/vmtop/internal/model"
)

func newTestHTTPSource(t *testing.T, handler http.HandlerFunc) *HTTPSource {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	s, err := NewHTTPSource(HTTPOptions{BaseURL: srv.URL, Resource: "vm", Timeout: time.Second})
	require.NoError(t, err)
	return s
}

func TestNewHTTPSource(t *testing.T) {
	tests := []struct {
		name    string
		baseURL string
		wantErr bool
	}{
		{name: "valid", baseURL: "http://127.0.0.1:5000"},
		{name: "with path", baseURL: "http://example.com/api/"},
		{name: "missing scheme", baseURL: "127.0.0.1:5000", wantErr: true},
		{name: "empty", baseURL: "", wantErr: true},
		{name: "unparsable", baseURL: "http://[::1", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewHTTPSource(HTTPOptions{BaseURL: tt.baseURL, Resource: "vm"})
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, defaultTimeout, s.timeout)
		})
	}
}

func TestHTTPSource_Endpoint(t *testing.T) {
	s, err := NewHTTPSource(HTTPOptions{BaseURL: "http://example.com/api/", Resource: "vm"})
	require.NoError(t, err)

	assert.Equal(t, "http://example.com/api/vmlist", s.endpoint("vmlist", nil))
	assert.Equal(t, "http://example.com/api/vminfo?name=a+b%26c%3Dd", s.endpoint("vminfo", map[string][]string{"name": {"a b&c=d"}}))
}

func TestHTTPSource_Entities(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		want     []string
		wantKind Kind
	}{
		{name: "json list", status: 200, body: `["vm1","vm2"]`, want: []string{"vm1", "vm2"}},
		{name: "python repr", status: 200, body: `['vm1', 'vm2']`, want: []string{"vm1", "vm2"}},
		{name: "order kept", status: 200, body: `["c","a","b"]`, want: []string{"c", "a", "b"}},
		{name: "empty list", status: 200, body: `[]`, want: []string{}},
		{name: "numbers become ids", status: 200, body: `[101, "vm2"]`, want: []string{"101", "vm2"}},
		{name: "empty ids dropped", status: 200, body: `["vm1", "", null]`, want: []string{"vm1"}},
		{name: "server error", status: 500, body: `oops`, wantKind: KindNetwork},
		{name: "not found", status: 404, body: ``, wantKind: KindNetwork},
		{name: "object instead of list", status: 200, body: `{"vm1": 1}`, wantKind: KindDecode},
		{name: "code", status: 200, body: `(function(){return ['vm1']})()`, wantKind: KindDecode},
		{name: "nested list", status: 200, body: `[["vm1"]]`, wantKind: KindDecode},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestHTTPSource(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/vmlist", r.URL.Path)
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			got, err := s.Entities(context.Background())
			if tt.wantKind != "" {
				require.Error(t, err)
				assert.True(t, IsKind(err, tt.wantKind), "got %v", err)
				assert.NotNil(t, got)
				assert.Empty(t, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestHTTPSource_RequestHeaders(t *testing.T) {
	s := newTestHTTPSource(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "no-cache", r.Header.Get("Cache-Control"))
		assert.Equal(t, "no-cache", r.Header.Get("Pragma"))
		_, _ = w.Write([]byte(`[]`))
	})

	_, err := s.Entities(context.Background())
	require.NoError(t, err)
}

func TestHTTPSource_Metrics(t *testing.T) {
	names := make(chan string, 1)
	s := newTestHTTPSource(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/vminfo", r.URL.Path)
		names <- r.URL.Query().Get("name")
		_, _ = w.Write([]byte(`[
			{"measuretime": "2024-01-01T00:00:00Z", "cpuusage": 10, "ramusage": 20, "netrx": 1, "nettx": 2},
			{'measuretime': 1704067260, 'cpuusage': '15.5', 'ramusage': None, 'extra': True},
		]`))
	})

	got, err := s.Metrics(context.Background(), "web 1&x=y")
	require.NoError(t, err)
	assert.Equal(t, "web 1&x=y", <-names)
	assert.Equal(t, model.RawSeries{
		{MeasureTime: "2024-01-01T00:00:00Z", CPUUsage: 10, RAMUsage: 20, NetRx: 1, NetTx: 2},
		{MeasureTime: "1704067260", CPUUsage: 15.5},
	}, got)
}

func TestHTTPSource_MetricsErrors(t *testing.T) {
	tests := []struct {
		name     string
		id       string
		status   int
		body     string
		wantKind Kind
	}{
		{name: "empty id", id: "", wantKind: KindInvalid},
		{name: "server error", id: "vm1", status: 503, wantKind: KindNetwork},
		{name: "not a list", id: "vm1", status: 200, body: `{"cpuusage": 1}`, wantKind: KindDecode},
		{name: "garbage", id: "vm1", status: 200, body: `<html>`, wantKind: KindDecode},
		{name: "element not an object", id: "vm1", status: 200, body: `[1, 2]`, wantKind: KindDecode},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var hits atomic.Int32
			s := newTestHTTPSource(t, func(w http.ResponseWriter, r *http.Request) {
				hits.Add(1)
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			got, err := s.Metrics(context.Background(), tt.id)
			require.Error(t, err)
			assert.True(t, IsKind(err, tt.wantKind), "got %v", err)
			assert.NotNil(t, got)
			assert.Empty(t, got)
			if tt.wantKind == KindInvalid {
				assert.Zero(t, hits.Load())
			}
		})
	}
}

func TestHTTPSource_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(release) })

	s, err := NewHTTPSource(HTTPOptions{BaseURL: srv.URL, Resource: "vm", Timeout: 50 * time.Millisecond})
	require.NoError(t, err)

	start := time.Now()
	_, err = s.Metrics(context.Background(), "vm1")
	require.Error(t, err)
	assert.True(t, IsKind(err, KindNetwork))
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestHTTPSource_Canceled(t *testing.T) {
	s := newTestHTTPSource(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Entities(ctx)
	require.Error(t, err)
	assert.True(t, IsKind(err, KindCanceled))
}

func TestHTTPSource_Services(t *testing.T) {
	s := newTestHTTPSource(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/services", r.URL.Path)
		_, _ = w.Write([]byte(`{
			"web": {"id": 1, "name": "web", "flagsPerRound": 2, "noisesPerRound": 3, "havocsPerRound": 1, "weightFactor": 1.5, "github": "https://github.com/x/web"},
			'db': {'id': 2, 'name': 'db', 'weightFactor': 2, 'unknown': 'ignored'}
		}`))
	})

	got, err := s.Services(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]model.ServiceStatus{
		"web": {ID: 1, Name: "web", FlagsPerRound: 2, NoisesPerRound: 3, HavocsPerRound: 1, WeightFactor: 1.5, GitHub: "https://github.com/x/web"},
		"db":  {ID: 2, Name: "db", WeightFactor: 2},
	}, got)
}

func TestHTTPSource_ServicesErrors(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantKind Kind
	}{
		{name: "server error", status: 500, wantKind: KindNetwork},
		{name: "list instead of map", status: 200, body: `[]`, wantKind: KindDecode},
		{name: "code", status: 200, body: `alert(1)`, wantKind: KindDecode},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestHTTPSource(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			got, err := s.Services(context.Background())
			require.Error(t, err)
			assert.True(t, IsKind(err, tt.wantKind), "got %v", err)
			assert.NotNil(t, got)
			assert.Empty(t, got)
		})
	}
}
