package source

import (
	"context"
	"errors"
	"fmt"
)

// Kind classifies why a fetch failed.
type Kind string

const (
	// KindNetwork covers requests that could not complete, including non-2xx replies.
	KindNetwork Kind = "network"
	// KindDecode covers bodies that are not a data literal of the expected shape.
	KindDecode Kind = "decode"
	// KindInvalid covers requests rejected before any I/O (empty or unknown id).
	KindInvalid Kind = "invalid"
	// KindCanceled covers requests abandoned because their context ended.
	KindCanceled Kind = "canceled"
)

// Fetch operations, used in errors, logs and metric labels.
const (
	OpList     = "list"
	OpMetrics  = "metrics"
	OpServices = "services"
)

var errEmptyID = errors.New("empty entity id")

// FetchError is the error type returned by every Source.
type FetchError struct {
	Kind   Kind
	Op     string
	Entity string
	Err    error
}

func (e *FetchError) Error() string {
	if e.Entity != "" {
		return fmt.Sprintf("%s %s %q: %v", e.Kind, e.Op, e.Entity, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Kind, e.Op, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

func networkErr(op, entity string, err error) *FetchError {
	kind := KindNetwork
	if errors.Is(err, context.Canceled) {
		kind = KindCanceled
	}
	return &FetchError{Kind: kind, Op: op, Entity: entity, Err: err}
}

func decodeErr(op, entity string, err error) *FetchError {
	return &FetchError{Kind: KindDecode, Op: op, Entity: entity, Err: err}
}

func invalidErr(op, entity string, err error) *FetchError {
	return &FetchError{Kind: KindInvalid, Op: op, Entity: entity, Err: err}
}

// KindOf reports the Kind of err. Errors not produced by a Source are
// treated as network failures.
func KindOf(err error) Kind {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Kind
	}
	if errors.Is(err, context.Canceled) {
		return KindCanceled
	}
	return KindNetwork
}

// IsKind reports whether err is a FetchError of the given kind.
func IsKind(err error, kind Kind) bool {
	if err == nil {
		return false
	}
	return KindOf(err) == kind
}
