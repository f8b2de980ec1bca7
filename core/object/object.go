// Package object implements schema-driven objects and arrays.
//
// An Object holds a value for every attribute its schema declares and is
// never partially populated. Values are scalars, nested *Object values for
// references and inline objects, or *Array values for array attributes.
// All mutation goes through type-checked Set calls; a failed Set leaves
// the object unchanged.
package object

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/artpar/datalayer/core/registry"
	"github.com/artpar/datalayer/core/schema"
	"github.com/artpar/datalayer/core/validation"
)

// Object is a validated instance of one schema path.
type Object struct {
	reg    *registry.Registry
	path   string
	def    *schema.Definition
	caps   *schema.Capabilities
	values map[string]any

	// schema paths from the outermost constructed object down to this one
	chain []string
}

// New constructs an object of the schema at path, filling every declared
// attribute from fields or its default. Keys of fields may use the
// reserved form without its leading "_" ("id" for "_id").
func New(reg *registry.Registry, path string, fields map[string]any) (*Object, error) {
	return construct(reg, strings.ToLower(path), fields, nil)
}

func construct(reg *registry.Registry, path string, fields map[string]any, chain []string) (*Object, error) {
	def, err := reg.Definition(path)
	if err != nil {
		return nil, err
	}
	caps, err := reg.Capabilities(path)
	if err != nil {
		return nil, err
	}

	o := &Object{
		reg:    reg,
		path:   path,
		def:    def,
		caps:   caps,
		values: make(map[string]any, len(def.Properties)),
		chain:  append(slices.Clone(chain), path),
	}

	input, err := o.resolveFields(fields)
	if err != nil {
		return nil, err
	}

	for _, name := range def.Names() {
		attr := def.Properties[name]
		v, present := input[name]

		val, err := o.build(attr, v, present)
		if err != nil {
			return nil, err
		}
		o.values[name] = val
	}

	return o, nil
}

// resolveFields maps input keys to declared attribute names.
// A direct name wins over the reserved form of the same attribute.
func (o *Object) resolveFields(fields map[string]any) (map[string]any, error) {
	input := make(map[string]any, len(fields))
	direct := make(map[string]bool, len(fields))

	for key, v := range fields {
		name, ok := o.def.Lookup(key)
		if !ok {
			return nil, fmt.Errorf("%w: %s.%s", schema.ErrUnknownAttribute, o.path, key)
		}
		if prev, seen := direct[name]; seen && (prev || key != name) {
			continue
		}
		input[name] = v
		direct[name] = key == name
	}

	return input, nil
}

func (o *Object) build(attr schema.Attribute, v any, present bool) (any, error) {
	switch attr.Type {
	case schema.AttrScalar:
		if !present || v == nil {
			return validation.Default(attr), nil
		}
		return o.check(attr, v)

	case schema.AttrRef, schema.AttrObject:
		if !present {
			v = nil
		}
		return o.nested(attr, v, true)

	case schema.AttrArray:
		arr, err := newArray(o, attr)
		if err != nil {
			return nil, err
		}
		if !present || v == nil {
			v = validation.Default(attr)
		}
		if err := arr.assign(v); err != nil {
			return nil, err
		}
		return arr, nil

	default:
		return nil, fmt.Errorf("%w: %s.%s", schema.ErrUnknownProperty, o.path, attr.Name)
	}
}

// childPath returns the schema path of a reference or inline object attribute.
func (o *Object) childPath(attr schema.Attribute) string {
	if attr.Type == schema.AttrRef {
		return schema.ResolveRef(schema.RootName(o.path), attr.Ref)
	}
	return o.path + "/properties/" + strings.ToLower(attr.Name)
}

// nested builds the value of a reference or inline object. A nil value
// constructs an empty object, except that a guarded reference back to a
// schema already being constructed stays nil so recursive schemas terminate.
func (o *Object) nested(attr schema.Attribute, v any, guard bool) (any, error) {
	path := o.childPath(attr)

	switch x := v.(type) {
	case nil:
		if guard && attr.Type == schema.AttrRef && slices.Contains(o.chain, path) {
			return nil, nil
		}
		return construct(o.reg, path, nil, o.chain)

	case map[string]any:
		return construct(o.reg, path, x, o.chain)

	case Model:
		child := x.Base()
		if child == nil {
			return o.nested(attr, nil, guard)
		}
		if child.path != path {
			return nil, &schema.ValueError{
				Path:   o.path,
				Attr:   attr.Name,
				Value:  child.path,
				Reason: fmt.Sprintf("expects an object of schema %s, got %s", path, child.path),
			}
		}
		return child, nil

	default:
		return nil, &schema.ValueError{Path: o.path, Attr: attr.Name, Want: "object", Value: v}
	}
}

func (o *Object) check(attr schema.Attribute, v any) (any, error) {
	val, err := validation.Check(attr, v)
	if err != nil {
		var verr *schema.ValueError
		if errors.As(err, &verr) {
			verr.Path = o.path
		}
		return nil, err
	}

	// ":" separates id and version in composite identities.
	if s, ok := val.(string); ok && schema.IsIdentity(attr.Name) && strings.Contains(s, ":") {
		return nil, &schema.ValueError{Path: o.path, Attr: attr.Name, Value: s, Reason: `must not contain ":"`}
	}
	return val, nil
}

// Path returns the schema path of the object.
func (o *Object) Path() string { return o.path }

// Name returns the root schema name of the object.
func (o *Object) Name() string { return schema.RootName(o.path) }

// Definition returns the schema definition of the object.
func (o *Object) Definition() *schema.Definition { return o.def }

// Capabilities returns the capability table of the object's schema.
func (o *Object) Capabilities() *schema.Capabilities { return o.caps }

// Registry returns the registry the object was built from.
func (o *Object) Registry() *registry.Registry { return o.reg }

// Base returns o. It makes *Object a Model.
func (o *Object) Base() *Object { return o }

// Names returns the declared attribute names in sorted order.
func (o *Object) Names() []string { return o.def.Names() }

// Get returns the value of an attribute: a scalar, a nested *Object (nil
// for an unset recursive reference) or an *Array.
func (o *Object) Get(name string) (any, error) {
	n, ok := o.def.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", schema.ErrUnknownAttribute, o.path, name)
	}
	return o.values[n], nil
}

// MustGet returns the value of an attribute and panics if it is not declared.
func (o *Object) MustGet(name string) any {
	v, err := o.Get(name)
	if err != nil {
		panic(err)
	}
	return v
}

// Set validates value against the attribute and stores it.
// Reference and object attributes accept a Model of the matching schema or
// a map of fields; array attributes accept a list in their plain form.
func (o *Object) Set(name string, value any) error {
	n, ok := o.def.Lookup(name)
	if !ok {
		return fmt.Errorf("%w: %s.%s", schema.ErrUnknownAttribute, o.path, name)
	}
	attr := o.def.Properties[n]

	var (
		v   any
		err error
	)

	switch attr.Type {
	case schema.AttrScalar:
		v, err = o.check(attr, value)

	case schema.AttrRef, schema.AttrObject:
		v, err = o.nested(attr, value, true)

	case schema.AttrArray:
		var arr *Array
		arr, err = newArray(o, attr)
		if err == nil {
			err = arr.assign(value)
		}
		v = arr

	default:
		err = fmt.Errorf("%w: %s.%s", schema.ErrUnknownProperty, o.path, attr.Name)
	}

	if err != nil {
		return err
	}

	o.values[n] = v
	return nil
}

// Array returns the array bound to an array attribute.
func (o *Object) Array(name string) (*Array, error) {
	n, ok := o.def.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", schema.ErrUnknownAttribute, o.path, name)
	}
	arr, ok := o.values[n].(*Array)
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s is not an array", schema.ErrUnsupportedOperation, o.path, n)
	}
	return arr, nil
}

// ID returns the _id value, or "" when the schema declares none.
func (o *Object) ID() string {
	return o.stringValue(schema.IDAttr)
}

// Version returns the _version value, or "" when the schema declares none.
func (o *Object) Version() string {
	if !o.def.HasVersion() {
		return ""
	}
	return o.stringValue(schema.VersionAttr)
}

// Identity returns the composite identity "{id}:{version}", or "{id}" when
// no version is declared. It is empty until an id is assigned.
func (o *Object) Identity() string {
	id := o.ID()
	if id == "" {
		return ""
	}
	if o.def.HasVersion() {
		return id + ":" + o.Version()
	}
	return id
}

func (o *Object) stringValue(name string) string {
	v, ok := o.values[name]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// Plain returns the plain JSON form of the object, recursing through
// nested objects and arrays. An object reached again inside itself is
// written as nil.
func (o *Object) Plain() map[string]any {
	return o.plain(make(map[*Object]bool))
}

func (o *Object) plain(active map[*Object]bool) map[string]any {
	active[o] = true
	defer delete(active, o)

	out := make(map[string]any, len(o.values))
	for name, v := range o.values {
		out[name] = plain(v, active)
	}
	return out
}

func plain(v any, active map[*Object]bool) any {
	switch x := v.(type) {
	case *Object:
		if x == nil || active[x] {
			return nil
		}
		return x.plain(active)
	case *Array:
		return x.plain(active)
	default:
		return validation.Copy(v)
	}
}

// Serialize returns the JSON body of the object. Keys are sorted, so equal
// objects serialize to equal bytes.
func (o *Object) Serialize() ([]byte, error) {
	return json.Marshal(o.Plain())
}

// MarshalJSON implements json.Marshaler.
func (o *Object) MarshalJSON() ([]byte, error) {
	return o.Serialize()
}
