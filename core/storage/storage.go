// Package storage stores and retrieves object graphs through a driver.
//
// Store normalizes an object graph into documents and index entries and
// hands them to the driver in one Save call. The Find operations fetch
// documents, resolve their reference tokens and decode the result into
// objects, or into the model bound to the schema.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/artpar/datalayer/core/graph"
	"github.com/artpar/datalayer/core/object"
	"github.com/artpar/datalayer/core/registry"
	"github.com/artpar/datalayer/core/schema"
	"github.com/artpar/datalayer/ports"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ErrMissingIdentity is returned by Store when the root schema declares no
// _id and no fallback reference is given.
var ErrMissingIdentity = errors.New("object has no identity and no fallback reference")

// Config configures a Layer.
type Config struct {
	// IDs generates blank _id values. Defaults to random UUIDs.
	IDs ports.IDGenerator

	// Models maps schema names to model constructors used when decoding.
	Models *object.Models

	// Metrics receives operation measurements. Defaults to no-op.
	Metrics ports.Metrics

	// MaxDepth bounds reference resolution. Defaults to graph.DefaultMaxDepth.
	MaxDepth int

	// Logger for storage operations.
	Logger zerolog.Logger
}

// Layer is the storage entry point.
type Layer struct {
	reg        *registry.Registry
	driver     ports.Driver
	models     *object.Models
	normalizer *graph.Normalizer
	resolver   *graph.Resolver
	metrics    ports.Metrics
	logger     zerolog.Logger
}

// New creates a storage layer over driver.
func New(reg *registry.Registry, driver ports.Driver, cfg Config) *Layer {
	if cfg.IDs == nil {
		cfg.IDs = ports.IDFunc(uuid.NewString)
	}
	if cfg.Metrics == nil {
		cfg.Metrics = ports.NopMetrics{}
	}
	if cfg.Models == nil {
		cfg.Models = object.NewModels()
	}

	return &Layer{
		reg:        reg,
		driver:     driver,
		models:     cfg.Models,
		normalizer: graph.NewNormalizer(cfg.IDs),
		resolver:   graph.NewResolver(driver, cfg.MaxDepth),
		metrics:    cfg.Metrics,
		logger:     cfg.Logger,
	}
}

// Registry returns the schema registry of the layer.
func (l *Layer) Registry() *registry.Registry { return l.reg }

// Models returns the model bindings used when decoding.
func (l *Layer) Models() *object.Models { return l.models }

// Store persists the graph rooted at m and returns the saved identities,
// children before their owners.
//
// A root without identity is saved under fallbackRef, which is then
// required. Blank ids and versions are assigned on the objects themselves.
func (l *Layer) Store(ctx context.Context, m object.Model, fallbackRef string) (ids []string, err error) {
	defer l.observe("store", time.Now(), &err)

	obj := m.Base()
	if !obj.Definition().HasIdentity() && fallbackRef == "" {
		return nil, fmt.Errorf("store %s: %w", obj.Path(), ErrMissingIdentity)
	}

	res, err := l.normalizer.Normalize(obj)
	if err != nil {
		return nil, fmt.Errorf("normalize %s: %w", obj.Path(), err)
	}

	docs := res.Documents
	if res.Identity == "" {
		docs = append(docs, ports.Document{SchemaPath: res.SchemaPath, Identity: fallbackRef, Body: res.Body})
	}

	ids, err = l.driver.Save(ctx, docs, res.Entries)
	if err != nil {
		var verr *ports.UniqueViolationError
		if errors.As(err, &verr) {
			schemaPath, _, _ := strings.Cut(verr.Key, ":")
			l.metrics.UniqueViolation(schemaPath, verr.Attr)
			l.logger.Warn().
				Str("schema", obj.Path()).
				Str("attr", verr.Attr).
				Str("value", verr.Value).
				Str("owner", verr.Owner).
				Msg("unique constraint violation")
		}
		return nil, fmt.Errorf("store %s: %w", obj.Path(), err)
	}

	l.countSaved(docs, res.Entries)
	l.logger.Debug().
		Str("schema", obj.Path()).
		Int("documents", len(docs)).
		Int("indexes", len(res.Entries)).
		Strs("ids", ids).
		Msg("stored object graph")

	return ids, nil
}

// FindByRef fetches the object stored under "{schemaPath}:{identity}" with
// all references resolved. It returns nil and no error when the schema
// declares no identity.
func (l *Layer) FindByRef(ctx context.Context, schemaPath, identity string) (m object.Model, err error) {
	defer l.observe("find_by_ref", time.Now(), &err)

	schemaPath = strings.ToLower(schemaPath)
	def, err := l.reg.Definition(schemaPath)
	if err != nil {
		return nil, err
	}
	if !def.HasIdentity() {
		return nil, nil
	}

	key := ports.DocumentKey(schemaPath, identity)
	body, err := l.driver.FindByRef(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", key, err)
	}
	return l.decode(ctx, schemaPath, key, body)
}

// FindAllBy fetches every object of schemaPath whose indexed attr equals
// value. attr may name the attribute with or without its reserved prefix;
// an attribute the schema does not declare matches nothing. A version of
// "" or ports.AllVersions disables version filtering.
//
// Index members whose document no longer exists are skipped.
func (l *Layer) FindAllBy(ctx context.Context, schemaPath, attr string, value any, version string) (ms []object.Model, err error) {
	defer l.observe("find_all_by", time.Now(), &err)

	schemaPath = strings.ToLower(schemaPath)
	def, err := l.reg.Definition(schemaPath)
	if err != nil {
		return nil, err
	}

	name, ok := indexedName(def, attr)
	if !ok {
		return nil, nil
	}
	if version == "" {
		version = ports.AllVersions
	}

	ids, err := l.driver.FindIDBy(ctx, ports.IndexPrefix(schemaPath, name), ports.IndexValue(value), version)
	if err != nil {
		return nil, fmt.Errorf("find %s by %s: %w", schemaPath, name, err)
	}

	ms = make([]object.Model, 0, len(ids))
	for _, id := range ids {
		key := ports.DocumentKey(schemaPath, id)
		body, err := l.driver.FindByRef(ctx, key)
		if errors.Is(err, ports.ErrNotFound) {
			l.logger.Debug().Str("schema", schemaPath).Str("id", id).Msg("skipping stale index member")
			continue
		}
		if err != nil {
			return nil, err
		}

		m, err := l.decode(ctx, schemaPath, key, body)
		if err != nil {
			return nil, err
		}
		ms = append(ms, m)
	}

	l.logger.Debug().
		Str("schema", schemaPath).
		Str("attr", name).
		Strs("ids", ids).
		Msg("found objects by index")

	return ms, nil
}

// FindOneBy returns the first match of FindAllBy, or an error wrapping
// ports.ErrNotFound.
func (l *Layer) FindOneBy(ctx context.Context, schemaPath, attr string, value any, version string) (object.Model, error) {
	ms, err := l.FindAllBy(ctx, schemaPath, attr, value, version)
	if err != nil {
		return nil, err
	}
	if len(ms) == 0 {
		return nil, fmt.Errorf("%w: %s with %s=%v", ports.ErrNotFound, schemaPath, attr, value)
	}
	return ms[0], nil
}

// Delete removes the documents of schemaPath stored under identities.
// Referenced documents are left in place.
func (l *Layer) Delete(ctx context.Context, schemaPath string, identities ...string) (err error) {
	defer l.observe("delete", time.Now(), &err)

	schemaPath = strings.ToLower(schemaPath)
	refs := make([]string, len(identities))
	for i, id := range identities {
		refs[i] = ports.DocumentKey(schemaPath, id)
	}

	if err := l.driver.Delete(ctx, refs); err != nil {
		return fmt.Errorf("delete %s: %w", schemaPath, err)
	}

	l.logger.Debug().Str("schema", schemaPath).Strs("ids", identities).Msg("deleted objects")
	return nil
}

// decode resolves the references of body, stored under key, and builds
// the object.
func (l *Layer) decode(ctx context.Context, schemaPath, key string, body map[string]any) (object.Model, error) {
	resolved, n, err := l.resolver.ResolveDocument(ctx, key, body)
	l.metrics.ReferencesResolved(n)
	if err != nil {
		return nil, err
	}
	return object.Decode(l.reg, l.models, schemaPath, resolved)
}

func (l *Layer) countSaved(docs []ports.Document, entries []ports.IndexEntry) {
	perSchema := make(map[string]int)
	for _, d := range docs {
		perSchema[d.SchemaPath]++
	}
	for path, n := range perSchema {
		l.metrics.DocumentsSaved(path, n)
	}

	clear(perSchema)
	for _, e := range entries {
		if ports.Indexed(e) {
			perSchema[e.SchemaPath]++
		}
	}
	for path, n := range perSchema {
		l.metrics.IndexEntriesSaved(path, n)
	}
}

func (l *Layer) observe(op string, start time.Time, err *error) {
	l.metrics.ObserveOperation(op, time.Since(start), *err)
}

// indexedName maps attr to its declared name, preferring the reserved form.
func indexedName(def *schema.Definition, attr string) (string, bool) {
	if !schema.IsReserved(attr) {
		if _, ok := def.Attribute(schema.ReservedPrefix + attr); ok {
			return schema.ReservedPrefix + attr, true
		}
	}
	if _, ok := def.Attribute(attr); ok {
		return attr, true
	}
	return "", false
}
