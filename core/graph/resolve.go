package graph

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/artpar/datalayer/ports"
)

// DefaultMaxDepth bounds the nesting of resolved references.
const DefaultMaxDepth = 64

// Resolution errors.
var (
	ErrReferenceCycle = errors.New("reference cycle")
	ErrMaxDepth       = errors.New("maximum reference depth exceeded")
)

// Resolver replaces reference tokens with the documents they point to.
//
// A reference that re-enters a document already on the current resolution
// path fails with ErrReferenceCycle. Documents referenced from several
// places are fetched and resolved once per occurrence.
type Resolver struct {
	driver   ports.Driver
	maxDepth int
}

// NewResolver creates a resolver reading documents from driver.
// A maxDepth <= 0 uses DefaultMaxDepth.
func NewResolver(driver ports.Driver, maxDepth int) *Resolver {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	return &Resolver{driver: driver, maxDepth: maxDepth}
}

// Resolve returns a copy of body with every reference token replaced by
// its fully resolved document, and the number of references fetched.
func (r *Resolver) Resolve(ctx context.Context, body map[string]any) (map[string]any, int, error) {
	var count int
	out, err := r.resolveMap(ctx, body, nil, &count)
	if err != nil {
		return nil, count, err
	}
	return out, count, nil
}

// ResolveDocument resolves body, the document stored under key. key is the
// first entry of the resolution path, so references back to it are cycles.
func (r *Resolver) ResolveDocument(ctx context.Context, key string, body map[string]any) (map[string]any, int, error) {
	var count int
	out, err := r.resolveMap(ctx, body, []string{key}, &count)
	if err != nil {
		return nil, count, err
	}
	return out, count, nil
}

// Fetch loads the document stored under ref ("{schema_path}:{identity}")
// and resolves it. ref itself counts as the first entry of the path.
func (r *Resolver) Fetch(ctx context.Context, ref string) (map[string]any, int, error) {
	count := 0
	out, err := r.fetch(ctx, ref, nil, &count)
	return out, count, err
}

func (r *Resolver) fetch(ctx context.Context, key string, visiting []string, count *int) (map[string]any, error) {
	if slices.Contains(visiting, key) {
		return nil, fmt.Errorf("%w: %s", ErrReferenceCycle, key)
	}
	if len(visiting) >= r.maxDepth {
		return nil, fmt.Errorf("%w: %s at depth %d", ErrMaxDepth, key, len(visiting))
	}

	doc, err := r.driver.FindByRef(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", key, err)
	}
	*count++

	return r.resolveMap(ctx, doc, append(slices.Clone(visiting), key), count)
}

func (r *Resolver) resolveMap(ctx context.Context, m map[string]any, visiting []string, count *int) (map[string]any, error) {
	out := make(map[string]any, len(m))
	for k, v := range m {
		rv, err := r.resolveValue(ctx, v, visiting, count)
		if err != nil {
			return nil, err
		}
		out[k] = rv
	}
	return out, nil
}

func (r *Resolver) resolveValue(ctx context.Context, v any, visiting []string, count *int) (any, error) {
	switch x := v.(type) {
	case string:
		schemaPath, identity, ok := ports.ParseRef(x)
		if !ok {
			return x, nil
		}
		return r.fetch(ctx, ports.DocumentKey(schemaPath, identity), visiting, count)

	case map[string]any:
		return r.resolveMap(ctx, x, visiting, count)

	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			re, err := r.resolveValue(ctx, e, visiting, count)
			if err != nil {
				return nil, err
			}
			out[i] = re
		}
		return out, nil

	default:
		return v, nil
	}
}
