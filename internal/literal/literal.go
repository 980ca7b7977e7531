// Package literal decodes backend response bodies into plain Go values.
//
// Well-formed JSON takes a strict fast path. Anything else goes through a small
// recursive-descent parser that understands data literals only: arrays,
// objects, strings, numbers, booleans and null. It also tolerates the loose
// forms some backends emit (single-quoted strings, bare object keys, trailing
// commas, Python's True/False/None). Identifiers in value position, calls and
// operators are syntax errors; nothing in the input is ever evaluated.
//
// Decoded values use the same Go types as encoding/json: nil, bool, float64,
// string, []any and map[string]any.
package literal

import (
	"bytes"
	"errors"
	"fmt"

	jsoniter "github.com/json-iterator/go"
)

// MaxDepth bounds array/object nesting in the loose parser.
const MaxDepth = 512

// ErrShape is returned by ParseArray and ParseObject when the body is a valid
// literal of the wrong kind.
var ErrShape = errors.New("literal: unexpected shape")

var strict = jsoniter.ConfigCompatibleWithStandardLibrary

// SyntaxError reports where the loose parser gave up.
type SyntaxError struct {
	Offset int
	Msg    string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("literal: %s at offset %d", e.Msg, e.Offset)
}

// Parse decodes body into a data value.
func Parse(body []byte) (any, error) {
	src := bytes.TrimSpace(body)
	if len(src) == 0 {
		return nil, &SyntaxError{Offset: 0, Msg: "empty input"}
	}

	var v any
	if err := strict.Unmarshal(src, &v); err == nil {
		return v, nil
	}

	p := &parser{src: src}
	return p.parseDocument()
}

// ParseArray decodes body and requires an array. On any failure it returns an
// empty, non-nil slice together with the error.
func ParseArray(body []byte) ([]any, error) {
	v, err := Parse(body)
	if err != nil {
		return []any{}, err
	}
	arr, ok := v.([]any)
	if !ok {
		return []any{}, fmt.Errorf("%w: want array, got %s", ErrShape, kindOf(v))
	}
	return arr, nil
}

// ParseObject decodes body and requires an object. On any failure it returns
// an empty, non-nil map together with the error.
func ParseObject(body []byte) (map[string]any, error) {
	v, err := Parse(body)
	if err != nil {
		return map[string]any{}, err
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return map[string]any{}, fmt.Errorf("%w: want object, got %s", ErrShape, kindOf(v))
	}
	return obj, nil
}

func kindOf(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case float64:
		return "number"
	case string:
		return "string"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}
