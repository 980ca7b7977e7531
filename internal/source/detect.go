package source

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"slices"

	"go.uber.org/zap"
)

// Backend kinds accepted by New.
const (
	BackendHTTP         = "http"
	BackendPrometheus   = "prometheus"
	BackendNodeExporter = "node_exporter"
	BackendAuto         = "auto"
)

// Backends lists every kind New understands.
var Backends = []string{BackendHTTP, BackendPrometheus, BackendNodeExporter, BackendAuto}

// Options selects and configures a backend.
type Options struct {
	Backend      string
	HTTP         HTTPOptions
	Prometheus   PrometheusOptions
	NodeExporter NodeExporterOptions
	Logger       *zap.Logger
}

// New builds the configured backend. For BackendAuto it probes Prometheus,
// then node_exporter, around the base URL and settles on the plain HTTP
// backend when neither answers. The returned name describes what was picked.
func New(ctx context.Context, opts Options) (Source, string, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	switch opts.Backend {
	case BackendHTTP, "":
		s, err := NewHTTPSource(opts.HTTP)
		if err != nil {
			return nil, "", err
		}
		return s, BackendHTTP + " " + s.base.Host, nil

	case BackendPrometheus:
		po := opts.Prometheus
		if po.URL == "" {
			po.URL = opts.HTTP.BaseURL
		}
		po.Logger = logger
		s, err := NewPrometheusSource(po)
		if err != nil {
			return nil, "", err
		}
		return s, BackendPrometheus + " " + s.url.Host, nil

	case BackendNodeExporter:
		no := opts.NodeExporter
		if len(no.URLs) == 0 {
			no.URLs = []string{opts.HTTP.BaseURL}
		}
		s, err := NewNodeExporterSource(no)
		if err != nil {
			return nil, "", err
		}
		return s, BackendNodeExporter, nil

	case BackendAuto:
		return detect(ctx, opts, logger)

	default:
		return nil, "", fmt.Errorf("unknown backend %q (want one of %v)", opts.Backend, Backends)
	}
}

func detect(ctx context.Context, opts Options, logger *zap.Logger) (Source, string, error) {
	base, err := url.Parse(opts.HTTP.BaseURL)
	if err != nil {
		return nil, "", fmt.Errorf("failed to parse base url: %w", err)
	}

	for _, candidate := range urlVariants(base, "9090", nil) {
		logger.Info("trying prometheus backend", zap.Stringer("url", candidate))
		po := opts.Prometheus
		po.URL = candidate.String()
		po.Logger = logger
		ps, err := NewPrometheusSource(po)
		if err != nil {
			logger.Debug("failed to create prometheus client", zap.Error(err))
			continue
		}
		if err := ps.Check(ctx); err != nil {
			logger.Debug("prometheus check failed", zap.Error(err))
			continue
		}
		logger.Info("found prometheus backend", zap.Stringer("url", candidate))
		return ps, BackendPrometheus + " " + candidate.Host, nil
	}

	for _, candidate := range urlVariants(base, "9100", []string{"/metrics"}) {
		logger.Info("trying node_exporter backend", zap.Stringer("url", candidate))
		no := opts.NodeExporter
		no.URLs = []string{candidate.String()}
		ns, err := NewNodeExporterSource(no)
		if err != nil {
			logger.Debug("failed to create node_exporter client", zap.Error(err))
			continue
		}
		if err := ns.Check(ctx); err != nil {
			logger.Debug("node_exporter check failed", zap.Error(err))
			continue
		}
		logger.Info("found node_exporter backend", zap.Stringer("url", candidate))
		return ns, BackendNodeExporter + " " + candidate.Host, nil
	}

	logger.Info("no metrics backend detected, using http", zap.String("url", opts.HTTP.BaseURL))
	hs, err := NewHTTPSource(opts.HTTP)
	if err != nil {
		return nil, "", err
	}
	return hs, BackendHTTP + " " + hs.base.Host, nil
}

// urlVariants lists the addresses worth probing for one backend: the base
// scheme before the other one, the base port before the backend's well-known
// port, and the base path before the extra paths.
func urlVariants(base *url.URL, wellKnownPort string, extraPaths []string) []*url.URL {
	schemes := []string{"http", "https"}
	if base.Scheme == "https" {
		schemes = []string{"https", "http"}
	}

	ports := []string{wellKnownPort}
	if p := base.Port(); p != "" && p != wellKnownPort {
		ports = []string{p, wellKnownPort}
	}

	paths := []string{base.Path}
	for _, p := range extraPaths {
		if !slices.Contains(paths, p) {
			paths = append(paths, p)
		}
	}

	var variants []*url.URL
	for _, scheme := range schemes {
		for _, port := range ports {
			for _, path := range paths {
				variants = append(variants, &url.URL{
					Scheme: scheme,
					Host:   net.JoinHostPort(base.Hostname(), port),
					Path:   path,
				})
			}
		}
	}
	return variants
}
