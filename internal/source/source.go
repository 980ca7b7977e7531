// Package source talks to the backends that know which entities exist and
// what their samples look like.
//
// A Source returns typed results and *FetchError values. The Fetcher wraps a
// Source and turns every failure into an empty result, logging it and
// counting it, so callers always get something renderable.
package source

import (
	"context"

	"github.com/jondoveston/vmtop/internal/model"
)

// Source discovers entities and fetches their raw samples.
type Source interface {
	Entities(ctx context.Context) ([]string, error)
	Metrics(ctx context.Context, id string) (model.RawSeries, error)
}

// ServiceSource is implemented by backends that expose a service snapshot.
type ServiceSource interface {
	Services(ctx context.Context) (map[string]model.ServiceStatus, error)
}

// Checker is implemented by backends that can verify they are reachable.
type Checker interface {
	Check(ctx context.Context) error
}
