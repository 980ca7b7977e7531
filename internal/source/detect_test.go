package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestURLVariants(t *testing.T) {
	tests := []struct {
		name  string
		base  string
		port  string
		paths []string
		want  []string
	}{
		{
			name:  "bare host",
			base:  "http://node1",
			port:  "9100",
			paths: []string{"/metrics"},
			want: []string{
				"http://node1:9100",
				"http://node1:9100/metrics",
				"https://node1:9100",
				"https://node1:9100/metrics",
			},
		},
		{
			name: "explicit port first",
			base: "https://prom.example:8443/prom",
			port: "9090",
			want: []string{
				"https://prom.example:8443/prom",
				"https://prom.example:9090/prom",
				"http://prom.example:8443/prom",
				"http://prom.example:9090/prom",
			},
		},
		{
			name:  "no duplicate paths or ports",
			base:  "http://node1:9100/metrics",
			port:  "9100",
			paths: []string{"/metrics"},
			want: []string{
				"http://node1:9100/metrics",
				"https://node1:9100/metrics",
			},
		},
		{
			name: "ipv6",
			base: "http://[::1]:5000",
			port: "9090",
			want: []string{
				"http://[::1]:5000",
				"http://[::1]:9090",
				"https://[::1]:5000",
				"https://[::1]:9090",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			base, err := url.Parse(tt.base)
			require.NoError(t, err)

			var got []string
			for _, u := range urlVariants(base, tt.port, tt.paths) {
				got = append(got, u.String())
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNew(t *testing.T) {
	tests := []struct {
		name     string
		opts     Options
		wantType Source
		wantName string
		wantErr  bool
	}{
		{
			name:     "default is http",
			opts:     Options{HTTP: HTTPOptions{BaseURL: "http://127.0.0.1:5000", Resource: "vm"}},
			wantType: &HTTPSource{},
			wantName: "http 127.0.0.1:5000",
		},
		{
			name:     "prometheus falls back to base url",
			opts:     Options{Backend: BackendPrometheus, HTTP: HTTPOptions{BaseURL: "http://prom:9090"}},
			wantType: &PrometheusSource{},
			wantName: "prometheus prom:9090",
		},
		{
			name: "node exporter",
			opts: Options{
				Backend:      BackendNodeExporter,
				NodeExporter: NodeExporterOptions{URLs: []string{"http://n1:9100/metrics", "http://n2:9100/metrics"}},
			},
			wantType: &NodeExporterSource{},
			wantName: "node_exporter",
		},
		{
			name:    "unknown backend",
			opts:    Options{Backend: "carrier-pigeon"},
			wantErr: true,
		},
		{
			name:    "bad base url",
			opts:    Options{Backend: BackendHTTP, HTTP: HTTPOptions{BaseURL: "nope"}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src, name, err := New(context.Background(), tt.opts)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.IsType(t, tt.wantType, src)
			assert.Equal(t, tt.wantName, name)
		})
	}
}

func TestNew_AutoFindsNodeExporter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/") {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(exposition(1, 1, 1, 1)))
	}))
	t.Cleanup(srv.Close)

	src, name, err := New(context.Background(), Options{
		Backend:      BackendAuto,
		HTTP:         HTTPOptions{BaseURL: srv.URL, Resource: "vm", Timeout: 500 * time.Millisecond},
		Prometheus:   PrometheusOptions{Timeout: 500 * time.Millisecond},
		NodeExporter: NodeExporterOptions{Timeout: 500 * time.Millisecond},
	})
	require.NoError(t, err)
	assert.IsType(t, &NodeExporterSource{}, src)
	assert.Equal(t, "node_exporter "+hostOf(t, srv.URL), name)
}

func TestNew_AutoFallsBackToHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/vmlist" {
			_, _ = w.Write([]byte(`["vm1"]`))
			return
		}
		http.NotFound(w, r)
	}))
	t.Cleanup(srv.Close)

	src, name, err := New(context.Background(), Options{
		Backend:      BackendAuto,
		HTTP:         HTTPOptions{BaseURL: srv.URL, Resource: "vm", Timeout: 500 * time.Millisecond},
		Prometheus:   PrometheusOptions{Timeout: 500 * time.Millisecond},
		NodeExporter: NodeExporterOptions{Timeout: 500 * time.Millisecond},
	})
	require.NoError(t, err)
	assert.IsType(t, &HTTPSource{}, src)
	assert.Equal(t, "http "+hostOf(t, srv.URL), name)

	ids, err := src.Entities(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"vm1"}, ids)
}
