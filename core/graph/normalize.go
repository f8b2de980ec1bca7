// Package graph converts between nested object graphs and flat documents.
//
// Normalization walks an object graph and replaces every nested object that
// carries an identity with a reference token, collecting one document per
// identity-bearing object plus the index entries of their reserved
// attributes. Resolution is the inverse: it replaces reference tokens in a
// plain body with the documents they point to.
package graph

import (
	"fmt"

	"github.com/artpar/datalayer/core/object"
	"github.com/artpar/datalayer/core/schema"
	"github.com/artpar/datalayer/core/validation"
	"github.com/artpar/datalayer/ports"
)

// Result is the output of normalizing one object graph.
type Result struct {
	// SchemaPath and Identity locate the root object. Identity is empty
	// when the root schema declares no _id.
	SchemaPath string
	Identity   string

	// Body is the plain JSON of the root with nested identities replaced
	// by reference tokens.
	Body map[string]any

	// Documents holds every identity-bearing object of the graph, children
	// before their owners.
	Documents []ports.Document
	Entries   []ports.IndexEntry
}

// Token returns the reference token of the root, or "" without identity.
func (r *Result) Token() string {
	if r.Identity == "" {
		return ""
	}
	return ports.RefToken(r.SchemaPath, r.Identity)
}

// Normalizer flattens object graphs.
type Normalizer struct {
	ids ports.IDGenerator
}

// NewNormalizer creates a normalizer that draws blank ids from ids.
func NewNormalizer(ids ports.IDGenerator) *Normalizer {
	return &Normalizer{ids: ids}
}

// Normalize flattens the graph rooted at obj.
//
// Blank ids are generated and blank versions set to "latest" on the objects
// themselves, so normalizing the same graph again yields the same identities.
// An object reached again while it is still being walked is written as its
// reference token; without an identity that fails with ErrReferenceCycle.
func (n *Normalizer) Normalize(obj *object.Object) (*Result, error) {
	w := &walker{
		ids:    n.ids,
		res:    &Result{SchemaPath: obj.Path()},
		active: make(map[*object.Object]bool),
	}

	identity, body, err := w.walk(obj)
	if err != nil {
		return nil, err
	}

	w.res.Identity = identity
	w.res.Body = body
	return w.res, nil
}

// walker holds the state of one Normalize call.
type walker struct {
	ids    ports.IDGenerator
	res    *Result
	active map[*object.Object]bool
}

func (w *walker) walk(obj *object.Object) (string, map[string]any, error) {
	identity, err := ensureIdentity(obj, w.ids)
	if err != nil {
		return "", nil, err
	}

	w.active[obj] = true
	defer delete(w.active, obj)

	body := make(map[string]any, len(obj.Names()))
	for _, name := range obj.Names() {
		v := obj.MustGet(name)

		if identity != "" && schema.IsReserved(name) && !blank(v) {
			w.res.Entries = append(w.res.Entries, ports.IndexEntry{
				SchemaPath: obj.Path(),
				Attr:       name,
				Value:      v,
				Identity:   identity,
			})
		}

		pv, err := w.value(v)
		if err != nil {
			return "", nil, err
		}
		body[name] = pv
	}

	if identity != "" {
		w.res.Documents = append(w.res.Documents, ports.Document{
			SchemaPath: obj.Path(),
			Identity:   identity,
			Body:       body,
		})
	}

	return identity, body, nil
}

func (w *walker) value(v any) (any, error) {
	switch x := v.(type) {
	case *object.Object:
		if x == nil {
			return nil, nil
		}
		if w.active[x] {
			if identity := x.Identity(); identity != "" {
				return ports.RefToken(x.Path(), identity), nil
			}
			return nil, fmt.Errorf("%w: %s has no identity", ErrReferenceCycle, x.Path())
		}
		identity, body, err := w.walk(x)
		if err != nil {
			return nil, err
		}
		if identity != "" {
			return ports.RefToken(x.Path(), identity), nil
		}
		return body, nil

	case *object.Array:
		items := x.Backing()
		out := make([]any, len(items))
		for i, item := range items {
			pv, err := w.value(item)
			if err != nil {
				return nil, err
			}
			out[i] = pv
		}
		return out, nil

	default:
		return validation.Copy(v), nil
	}
}

// ensureIdentity assigns a blank id and version and returns the composite
// identity, or "" when the schema declares no _id.
func ensureIdentity(obj *object.Object, ids ports.IDGenerator) (string, error) {
	def := obj.Definition()
	if !def.HasIdentity() {
		return "", nil
	}

	if obj.ID() == "" {
		if err := obj.Set(schema.IDAttr, ids.New()); err != nil {
			return "", fmt.Errorf("assign id to %s: %w", obj.Path(), err)
		}
	}
	if def.HasVersion() && obj.Version() == "" {
		if err := obj.Set(schema.VersionAttr, schema.LatestVersion); err != nil {
			return "", fmt.Errorf("assign version to %s: %w", obj.Path(), err)
		}
	}

	return obj.Identity(), nil
}

// blank reports values that are never indexed. Nested objects and arrays
// are not index values either.
func blank(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return x == ""
	case *object.Object, *object.Array, map[string]any, []any:
		return true
	}
	return false
}
