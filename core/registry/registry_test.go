package registry

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/artpar/datalayer/core/schema"
)

// fakeLoader serves schemas from memory and counts loads.
type fakeLoader struct {
	docs  map[string]string
	calls atomic.Int32
}

func (l *fakeLoader) Load(name string) ([]byte, error) {
	l.calls.Add(1)
	doc, ok := l.docs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", schema.ErrSchemaNotFound, name)
	}
	return []byte(doc), nil
}

const flowSchema = `{
	"properties": {
		"_id": { "type": "string" },
		"start": { "$ref": "#/definitions/step" },
		"meta": { "type": "object", "properties": { "owner": { "type": "string" } } }
	},
	"definitions": {
		"Step": {
			"properties": {
				"name": { "type": "string" },
				"next": { "$ref": "#/definitions/step" }
			}
		}
	}
}`

func newTestRegistry() (*Registry, *fakeLoader) {
	loader := &fakeLoader{docs: map[string]string{
		"flow":     flowSchema,
		"callback": `{"properties": {"_id": {"type": "string"}, "url": {"type": "string"}}}`,
		"broken":   `{"properties": `,
	}}
	return New(loader), loader
}

func TestNew(t *testing.T) {
	r := New(nil)
	if r == nil {
		t.Fatal("New() returned nil")
	}
	if r.schemas == nil || r.caps == nil {
		t.Error("maps not initialized")
	}
}

func TestGet_LazyAndIdempotent(t *testing.T) {
	r, loader := newTestRegistry()

	first, err := r.Get("Flow")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	second, err := r.Get("flow")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	if first != second {
		t.Error("second Get should return the cached definition")
	}
	if n := loader.calls.Load(); n != 1 {
		t.Errorf("loader called %d times, want 1", n)
	}
}

func TestGet_Errors(t *testing.T) {
	r, _ := newTestRegistry()

	if _, err := r.Get("missing"); !errors.Is(err, schema.ErrSchemaNotFound) {
		t.Errorf("Get(missing) error = %v, want ErrSchemaNotFound", err)
	}
	if _, err := r.Get("broken"); !errors.Is(err, schema.ErrInvalidSchema) {
		t.Errorf("Get(broken) error = %v, want ErrInvalidSchema", err)
	}

	empty := New(nil)
	if _, err := empty.Get("flow"); !errors.Is(err, schema.ErrSchemaNotFound) {
		t.Errorf("Get without loader error = %v, want ErrSchemaNotFound", err)
	}
}

func TestSet(t *testing.T) {
	r := New(nil)

	if err := r.Set("Role", []byte(`{"properties": {"name": {"type": "string"}}}`)); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	def, err := r.Get("role")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if _, ok := def.Attribute("name"); !ok {
		t.Error("role should declare name")
	}

	if err := r.Set("bad", []byte("{")); !errors.Is(err, schema.ErrInvalidSchema) {
		t.Errorf("Set(bad) error = %v, want ErrInvalidSchema", err)
	}

	if err := r.SetMap("tag", map[string]any{"properties": map[string]any{"_label": map[string]any{"type": "string"}}}); err != nil {
		t.Fatalf("SetMap failed: %v", err)
	}

	names := r.List()
	if len(names) != 2 || names[0] != "role" || names[1] != "tag" {
		t.Errorf("List() = %v, want [role tag]", names)
	}
}

func TestDefinition(t *testing.T) {
	r, _ := newTestRegistry()

	tests := []struct {
		path string
		attr string
		err  error
	}{
		{"flow", "start", nil},
		{"flow/definitions/step", "next", nil},
		{"Flow/Definitions/Step", "next", nil},
		{"flow/properties/meta", "owner", nil},
		{"flow/definitions/missing", "", schema.ErrSchemaNotFound},
		{"flow/properties/start", "", schema.ErrSchemaNotFound},
		{"flow/definitions", "", schema.ErrInvalidSchema},
		{"flow/other/step", "", schema.ErrInvalidSchema},
		{"", "", schema.ErrInvalidSchema},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			def, err := r.Definition(tt.path)
			if tt.err != nil {
				if !errors.Is(err, tt.err) {
					t.Errorf("Definition(%q) error = %v, want %v", tt.path, err, tt.err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Definition(%q) failed: %v", tt.path, err)
			}
			if _, ok := def.Attribute(tt.attr); !ok {
				t.Errorf("definition %q should declare %q", tt.path, tt.attr)
			}
		})
	}
}

func TestCapabilities_Cached(t *testing.T) {
	r, _ := newTestRegistry()

	caps, err := r.Capabilities("flow/definitions/step")
	if err != nil {
		t.Fatalf("Capabilities failed: %v", err)
	}
	next, ok := caps.Get("next")
	if !ok || next.Schema != "flow/definitions/step" {
		t.Errorf("next capability = %+v", next)
	}

	again, _ := r.Capabilities("flow/definitions/step")
	if caps != again {
		t.Error("capabilities should be built once per path")
	}

	// Replacing the schema drops its tables.
	if err := r.Set("flow", []byte(`{"properties": {"x": {"type": "string"}}}`)); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if _, err := r.Capabilities("flow/definitions/step"); !errors.Is(err, schema.ErrSchemaNotFound) {
		t.Errorf("stale capabilities served: %v", err)
	}
}

func TestGet_Concurrent(t *testing.T) {
	r, _ := newTestRegistry()

	var wg sync.WaitGroup
	defs := make([]*schema.Definition, 20)
	for i := range defs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			def, err := r.Get("callback")
			if err != nil {
				t.Errorf("Get failed: %v", err)
				return
			}
			defs[i] = def
		}(i)
	}
	wg.Wait()

	for i := 1; i < len(defs); i++ {
		if defs[i] != defs[0] {
			t.Fatal("concurrent loads should converge on one definition")
		}
	}
}
