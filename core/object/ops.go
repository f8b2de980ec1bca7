package object

import (
	"fmt"

	"github.com/artpar/datalayer/core/schema"
)

// ArrayOp runs op on the array attribute name through the capability table.
//
//	len                 -> int
//	get    index        -> element
//	set    index value  -> nil
//	append fields...    -> nil
//	remove index        -> nil
//
// Operations the table does not list fail with schema.ErrUnsupportedOperation,
// as does any operation on a non-array attribute.
func (o *Object) ArrayOp(name string, op schema.ArrayOp, args ...any) (any, error) {
	n, ok := o.def.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", schema.ErrUnknownAttribute, o.path, name)
	}
	if !o.caps.Supports(n, op) {
		return nil, fmt.Errorf("%w: %s on %s.%s", schema.ErrUnsupportedOperation, op, o.path, n)
	}

	arr, err := o.Array(n)
	if err != nil {
		return nil, err
	}

	switch op {
	case schema.OpLen:
		return arr.Len(), nil

	case schema.OpGet:
		i, err := indexArg(args, 1)
		if err != nil {
			return nil, err
		}
		return arr.Get(i)

	case schema.OpSet:
		i, err := indexArg(args, 2)
		if err != nil {
			return nil, err
		}
		return nil, arr.Set(i, args[1])

	case schema.OpAppend:
		return nil, arr.Append(args...)

	case schema.OpRemove:
		i, err := indexArg(args, 1)
		if err != nil {
			return nil, err
		}
		return nil, arr.Delete(i)
	}

	return nil, fmt.Errorf("%w: %s", schema.ErrUnsupportedOperation, op)
}

func indexArg(args []any, want int) (int, error) {
	if len(args) != want {
		return 0, fmt.Errorf("%w: expected %d arguments, got %d", schema.ErrInvalidValue, want, len(args))
	}
	switch i := args[0].(type) {
	case int:
		return i, nil
	case int64:
		return int(i), nil
	case float64:
		if i == float64(int(i)) {
			return int(i), nil
		}
	}
	return 0, fmt.Errorf("%w: index %v is not an integer", schema.ErrInvalidValue, args[0])
}

// Append appends one element to the array attribute name.
func (o *Object) Append(name string, values ...any) error {
	_, err := o.ArrayOp(name, schema.OpAppend, values...)
	return err
}

// Item returns element i of the array attribute name.
func (o *Object) Item(name string, i int) (any, error) {
	return o.ArrayOp(name, schema.OpGet, i)
}

// Remove deletes element i of the array attribute name.
func (o *Object) Remove(name string, i int) error {
	_, err := o.ArrayOp(name, schema.OpRemove, i)
	return err
}

// Len returns the length of the array attribute name.
func (o *Object) Len(name string) (int, error) {
	v, err := o.ArrayOp(name, schema.OpLen)
	if err != nil {
		return 0, err
	}
	return v.(int), nil
}
