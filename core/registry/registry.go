// Package registry caches parsed schema definitions by name.
// Schemas are loaded lazily through a ports.SchemaLoader and never
// invalidated; nested definitions are addressed by schema path.
package registry

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/artpar/datalayer/core/schema"
	"github.com/artpar/datalayer/ports"
)

// Registry manages loaded schemas and their capability tables.
type Registry struct {
	mu sync.RWMutex

	loader ports.SchemaLoader

	// root schemas by lowercase name
	schemas map[string]*schema.Definition

	// capability tables by schema path
	caps map[string]*schema.Capabilities
}

// New creates a new registry. loader may be nil, in which case only
// schemas added with Set are known.
func New(loader ports.SchemaLoader) *Registry {
	return &Registry{
		loader:  loader,
		schemas: make(map[string]*schema.Definition),
		caps:    make(map[string]*schema.Capabilities),
	}
}

// Set parses raw (JSON or YAML) and stores it under name, replacing any
// previous definition.
func (r *Registry) Set(name string, raw []byte) error {
	def, err := schema.Parse(raw)
	if err != nil {
		return fmt.Errorf("schema %q: %w", name, err)
	}
	r.SetDefinition(name, def)
	return nil
}

// SetMap stores an already decoded schema document under name.
func (r *Registry) SetMap(name string, raw map[string]any) error {
	def, err := schema.FromMap(raw)
	if err != nil {
		return fmt.Errorf("schema %q: %w", name, err)
	}
	r.SetDefinition(name, def)
	return nil
}

// SetDefinition stores a parsed definition under name.
func (r *Registry) SetDefinition(name string, def *schema.Definition) {
	name = strings.ToLower(name)

	r.mu.Lock()
	defer r.mu.Unlock()

	r.schemas[name] = def
	for path := range r.caps {
		if schema.RootName(path) == name {
			delete(r.caps, path)
		}
	}
}

// Get returns the root schema registered under name, loading it on first use.
func (r *Registry) Get(name string) (*schema.Definition, error) {
	name = strings.ToLower(name)

	r.mu.RLock()
	def, ok := r.schemas[name]
	r.mu.RUnlock()
	if ok {
		return def, nil
	}

	if r.loader == nil {
		return nil, fmt.Errorf("%w: %s", schema.ErrSchemaNotFound, name)
	}

	raw, err := r.loader.Load(name)
	if err != nil {
		return nil, fmt.Errorf("load schema %q: %w", name, err)
	}
	def, err = schema.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("schema %q: %w", name, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// A concurrent load of the same name may have won; keep the first.
	if existing, ok := r.schemas[name]; ok {
		return existing, nil
	}
	r.schemas[name] = def
	return def, nil
}

// Definition resolves a schema path to its definition.
//
// Paths are a root schema name optionally followed by "/definitions/{def}"
// or "/properties/{attr}" segments; the latter address inline objects.
func (r *Registry) Definition(path string) (*schema.Definition, error) {
	segments := strings.Split(strings.ToLower(path), "/")
	if segments[0] == "" || len(segments)%2 != 1 {
		return nil, fmt.Errorf("%w: malformed schema path %q", schema.ErrInvalidSchema, path)
	}

	def, err := r.Get(segments[0])
	if err != nil {
		return nil, err
	}

	for i := 1; i < len(segments); i += 2 {
		kind, name := segments[i], segments[i+1]
		switch kind {
		case "definitions":
			sub, ok := def.Definitions[name]
			if !ok {
				return nil, fmt.Errorf("%w: %s", schema.ErrSchemaNotFound, path)
			}
			def = sub
		case "properties":
			attr, ok := findProperty(def, name)
			if !ok {
				return nil, fmt.Errorf("%w: %s", schema.ErrSchemaNotFound, path)
			}
			obj := inlineObject(attr)
			if obj == nil {
				return nil, fmt.Errorf("%w: %s", schema.ErrSchemaNotFound, path)
			}
			def = obj
		default:
			return nil, fmt.Errorf("%w: malformed schema path %q", schema.ErrInvalidSchema, path)
		}
	}

	return def, nil
}

// findProperty matches attribute names case-insensitively since paths are lowercased.
func findProperty(def *schema.Definition, name string) (schema.Attribute, bool) {
	if attr, ok := def.Attribute(name); ok {
		return attr, true
	}
	for _, n := range def.Names() {
		if strings.EqualFold(n, name) {
			return def.Properties[n], true
		}
	}
	return schema.Attribute{}, false
}

// inlineObject returns the inline definition of an object attribute, or of
// the items of a homogeneous array of inline objects.
func inlineObject(attr schema.Attribute) *schema.Definition {
	switch attr.Type {
	case schema.AttrObject:
		return attr.Object
	case schema.AttrArray:
		if !attr.Tuple && len(attr.Items) == 1 && attr.Items[0].Type == schema.AttrObject {
			return attr.Items[0].Object
		}
	}
	return nil
}

// Capabilities returns the capability table of the schema at path.
// Tables are built once per path.
func (r *Registry) Capabilities(path string) (*schema.Capabilities, error) {
	path = strings.ToLower(path)

	r.mu.RLock()
	caps, ok := r.caps[path]
	r.mu.RUnlock()
	if ok {
		return caps, nil
	}

	def, err := r.Definition(path)
	if err != nil {
		return nil, err
	}
	caps = schema.BuildCapabilities(path, def)

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.caps[path]; ok {
		return existing, nil
	}
	r.caps[path] = caps
	return caps, nil
}

// List returns the names of all loaded schemas.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.schemas))
	for name := range r.schemas {
		names = append(names, name)
	}

	// Sort by name for consistent ordering
	sort.Strings(names)

	return names
}
