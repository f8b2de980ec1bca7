package object

import (
	"fmt"
	"iter"
	"slices"

	"github.com/artpar/datalayer/core/schema"
	"github.com/artpar/datalayer/core/validation"
)

// Array is the value of an array attribute.
//
// Homogeneous arrays hold one backing slot per element. Tuple arrays hold
// groups of Width slots, one per item spec; elements are those groups.
type Array struct {
	owner *Object
	attr  schema.Attribute
	items []any
}

func newArray(owner *Object, attr schema.Attribute) (*Array, error) {
	for _, item := range attr.Items {
		switch item.Type {
		case schema.AttrArray:
			return nil, fmt.Errorf("%w: %s.%s", schema.ErrNestedArrayUnsupported, owner.path, attr.Name)
		case schema.AttrObject:
			if attr.Tuple {
				return nil, fmt.Errorf("%w: %s.%s: inline objects in tuples", schema.ErrUnknownProperty, owner.path, attr.Name)
			}
		case schema.AttrUnknown:
			return nil, fmt.Errorf("%w: %s.%s", schema.ErrUnknownProperty, owner.path, attr.Name)
		}
	}
	if len(attr.Items) == 0 {
		return nil, fmt.Errorf("%w: %s.%s declares no items", schema.ErrUnknownProperty, owner.path, attr.Name)
	}
	return &Array{owner: owner, attr: attr}, nil
}

// Attribute returns the array attribute this array is bound to.
func (a *Array) Attribute() schema.Attribute { return a.attr }

// Tuple reports whether elements are fixed-width groups.
func (a *Array) Tuple() bool { return a.attr.Tuple }

// Width returns the number of backing slots per element.
func (a *Array) Width() int { return a.attr.Width() }

// Len returns the number of elements. For tuples that is the number of
// groups, not the backing size.
func (a *Array) Len() int { return len(a.items) / a.Width() }

// Count is Len.
func (a *Array) Count() int { return a.Len() }

// Get returns element i. Tuple elements are returned as a new []any group.
func (a *Array) Get(i int) (any, error) {
	if err := a.bounds(i); err != nil {
		return nil, err
	}
	if !a.Tuple() {
		return a.items[i], nil
	}
	w := a.Width()
	return slices.Clone(a.items[i*w : i*w+w]), nil
}

// Set replaces element i. A tuple element takes a []any of at most Width
// fields; missing fields are filled with their defaults.
func (a *Array) Set(i int, value any) error {
	if err := a.bounds(i); err != nil {
		return err
	}

	if !a.Tuple() {
		v, err := a.item(0, value)
		if err != nil {
			return err
		}
		a.items[i] = v
		return nil
	}

	fields, ok := value.([]any)
	if !ok {
		return a.valueError(value, "tuple elements must be lists")
	}
	group, err := a.group(fields)
	if err != nil {
		return err
	}
	copy(a.items[i*a.Width():], group)
	return nil
}

// Delete removes element i.
func (a *Array) Delete(i int) error {
	if err := a.bounds(i); err != nil {
		return err
	}
	w := a.Width()
	a.items = slices.Delete(a.items, i*w, i*w+w)
	return nil
}

// Append adds one element. Homogeneous arrays take at most one value; a
// missing value appends the item default (an empty object for references).
// Tuple arrays take up to Width fields and back-fill the rest.
func (a *Array) Append(values ...any) error {
	if a.Tuple() {
		group, err := a.group(values)
		if err != nil {
			return err
		}
		a.items = append(a.items, group...)
		return nil
	}

	if len(values) > 1 {
		return a.valueError(values, "append takes one value")
	}
	var value any
	if len(values) == 1 {
		value = values[0]
	}
	v, err := a.item(0, value)
	if err != nil {
		return err
	}
	a.items = append(a.items, v)
	return nil
}

// All iterates over the elements in order. Each call starts from the first
// element.
func (a *Array) All() iter.Seq2[int, any] {
	return func(yield func(int, any) bool) {
		for i := 0; i < a.Len(); i++ {
			v, err := a.Get(i)
			if err != nil {
				return
			}
			if !yield(i, v) {
				return
			}
		}
	}
}

// Backing returns a copy of the backing slots. Tuple groups are flattened.
func (a *Array) Backing() []any {
	return slices.Clone(a.items)
}

// Plain returns the plain JSON form of the array: the backing slots with
// nested objects in their plain form.
func (a *Array) Plain() []any {
	return a.plain(make(map[*Object]bool))
}

func (a *Array) plain(active map[*Object]bool) []any {
	out := make([]any, len(a.items))
	for i, v := range a.items {
		out[i] = plain(v, active)
	}
	return out
}

// assign replaces the content of the array with a plain list or another
// array bound to the same attribute. Tuple lists are consumed in groups of
// Width; a short final group is back-filled.
func (a *Array) assign(value any) error {
	var list []any
	switch x := value.(type) {
	case nil:
	case []any:
		list = x
	case *Array:
		list = x.items
	default:
		return a.valueError(value, "expects a list")
	}

	var items []any
	if a.Tuple() {
		w := a.Width()
		for start := 0; start < len(list); start += w {
			group, err := a.group(list[start:min(start+w, len(list))])
			if err != nil {
				return err
			}
			items = append(items, group...)
		}
	} else {
		for _, v := range list {
			item, err := a.item(0, v)
			if err != nil {
				return err
			}
			items = append(items, item)
		}
	}

	a.items = items
	return nil
}

// group builds one tuple element from up to Width fields.
func (a *Array) group(fields []any) ([]any, error) {
	w := a.Width()
	if len(fields) > w {
		return nil, a.valueError(fields, fmt.Sprintf("tuple takes at most %d fields", w))
	}

	group := make([]any, w)
	for pos := range w {
		var v any
		if pos < len(fields) {
			v = fields[pos]
		}
		item, err := a.item(pos, v)
		if err != nil {
			return nil, err
		}
		group[pos] = item
	}
	return group, nil
}

// item validates a value against the item spec at pos.
func (a *Array) item(pos int, v any) (any, error) {
	spec := a.attr.Items[pos]
	spec.Name = a.attr.Name

	switch spec.Type {
	case schema.AttrRef, schema.AttrObject:
		return a.owner.nested(spec, v, false)
	case schema.AttrScalar:
		if v == nil {
			return validation.Default(spec), nil
		}
		return a.owner.check(spec, v)
	case schema.AttrArray:
		return nil, fmt.Errorf("%w: %s.%s", schema.ErrNestedArrayUnsupported, a.owner.path, a.attr.Name)
	default:
		return nil, fmt.Errorf("%w: %s.%s", schema.ErrUnknownProperty, a.owner.path, a.attr.Name)
	}
}

func (a *Array) bounds(i int) error {
	if i < 0 || i >= a.Len() {
		return fmt.Errorf("%w: %s.%s[%d], length %d", schema.ErrIndexOutOfBounds, a.owner.path, a.attr.Name, i, a.Len())
	}
	return nil
}

func (a *Array) valueError(v any, reason string) error {
	return &schema.ValueError{Path: a.owner.path, Attr: a.attr.Name, Value: v, Reason: reason}
}
