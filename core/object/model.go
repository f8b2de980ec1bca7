package object

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/artpar/datalayer/core/registry"
	"github.com/artpar/datalayer/core/schema"
)

// Model is implemented by types that add behavior on top of a schema
// object. *Object is itself a Model.
type Model interface {
	Base() *Object
}

// Constructor wraps a decoded object in a Model.
type Constructor func(*Object) Model

// Models maps schema names to the constructors bound to them.
type Models struct {
	mu    sync.RWMutex
	ctors map[string]Constructor
}

// NewModels creates an empty binding table.
func NewModels() *Models {
	return &Models{ctors: make(map[string]Constructor)}
}

// Bind binds ctor to the schema name, replacing any previous binding.
func (m *Models) Bind(name string, ctor Constructor) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ctors[strings.ToLower(name)] = ctor
}

// Lookup returns the constructor bound to name.
func (m *Models) Lookup(name string) (Constructor, bool) {
	if m == nil {
		return nil, false
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	ctor, ok := m.ctors[strings.ToLower(name)]
	return ctor, ok
}

// Wrap returns obj wrapped by the constructor bound to its schema, or obj
// itself when none is bound.
func (m *Models) Wrap(obj *Object) Model {
	if ctor, ok := m.Lookup(obj.Path()); ok {
		return ctor(obj)
	}
	return obj
}

// Decode builds an object of the schema at path from data, which may be
// JSON text ([]byte or string) or an already decoded map. When a
// constructor is bound to path the result is the bound Model.
func Decode(reg *registry.Registry, models *Models, path string, data any) (Model, error) {
	var fields map[string]any

	switch x := data.(type) {
	case nil:
	case map[string]any:
		fields = x
	case []byte:
		if err := json.Unmarshal(x, &fields); err != nil {
			return nil, fmt.Errorf("%w: decode %s: %v", schema.ErrInvalidValue, path, err)
		}
	case string:
		if err := json.Unmarshal([]byte(x), &fields); err != nil {
			return nil, fmt.Errorf("%w: decode %s: %v", schema.ErrInvalidValue, path, err)
		}
	default:
		return nil, fmt.Errorf("%w: cannot decode %T into %s", schema.ErrInvalidValue, data, path)
	}

	obj, err := New(reg, path, fields)
	if err != nil {
		return nil, err
	}
	return models.Wrap(obj), nil
}
