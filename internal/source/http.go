package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jondoveston/vmtop/internal/model"
)

const (
	defaultTimeout = 5 * time.Second
	maxBodyBytes   = 32 << 20
)

// HTTPOptions configures an HTTPSource.
type HTTPOptions struct {
	BaseURL  string
	Resource string
	Timeout  time.Duration
	// Client defaults to a plain http.Client; the per-request timeout is
	// applied through the request context either way.
	Client *http.Client
}

// HTTPSource reads entities from a backend exposing
// GET /{resource}list and GET /{resource}info?name={id}.
type HTTPSource struct {
	base     *url.URL
	resource string
	timeout  time.Duration
	client   *http.Client
}

func NewHTTPSource(opts HTTPOptions) (*HTTPSource, error) {
	base, err := url.Parse(opts.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("base url %q must include scheme and host", opts.BaseURL)
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	client := opts.Client
	if client == nil {
		client = &http.Client{}
	}

	return &HTTPSource{
		base:     base,
		resource: opts.Resource,
		timeout:  timeout,
		client:   client,
	}, nil
}

// Entities fetches the current entity list.
func (s *HTTPSource) Entities(ctx context.Context) ([]string, error) {
	body, err := s.get(ctx, s.resource+"list", nil)
	if err != nil {
		return []string{}, networkErr(OpList, "", err)
	}
	ids, err := decodeEntityList(body)
	if err != nil {
		return []string{}, decodeErr(OpList, "", err)
	}
	return ids, nil
}

// Metrics fetches the raw series of one entity.
func (s *HTTPSource) Metrics(ctx context.Context, id string) (model.RawSeries, error) {
	if id == "" {
		return model.RawSeries{}, invalidErr(OpMetrics, id, errEmptyID)
	}
	body, err := s.get(ctx, s.resource+"info", url.Values{"name": {id}})
	if err != nil {
		return model.RawSeries{}, networkErr(OpMetrics, id, err)
	}
	series, err := decodeSeries(body)
	if err != nil {
		return model.RawSeries{}, decodeErr(OpMetrics, id, err)
	}
	return series, nil
}

// Services fetches the service snapshot keyed by service name.
func (s *HTTPSource) Services(ctx context.Context) (map[string]model.ServiceStatus, error) {
	body, err := s.get(ctx, "services", nil)
	if err != nil {
		return map[string]model.ServiceStatus{}, networkErr(OpServices, "", err)
	}
	services, err := decodeServices(body)
	if err != nil {
		return map[string]model.ServiceStatus{}, decodeErr(OpServices, "", err)
	}
	return services, nil
}

// Check verifies the list endpoint answers with an array.
func (s *HTTPSource) Check(ctx context.Context) error {
	_, err := s.Entities(ctx)
	return err
}

func (s *HTTPSource) endpoint(name string, query url.Values) string {
	u := *s.base
	u.Path = strings.TrimRight(u.Path, "/") + "/" + name
	u.RawPath = ""
	u.RawQuery = query.Encode()
	return u.String()
}

func (s *HTTPSource) get(ctx context.Context, name string, query url.Values) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.endpoint(name, query), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Pragma", "no-cache")
	req.Header.Set("Accept", "application/json, text/plain;q=0.9, */*;q=0.1")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// drain so the connection can be reused
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return body, nil
}
