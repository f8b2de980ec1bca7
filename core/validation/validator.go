// Package validation maps schema attributes to runtime value kinds.
// It computes defaults and checks candidate values before they are stored
// on an object.
package validation

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"

	"github.com/artpar/datalayer/core/schema"
)

// KindOf returns the runtime kind of attr. Only scalar attributes have one.
func KindOf(attr schema.Attribute) (schema.Kind, bool) {
	if attr.Type != schema.AttrScalar {
		return "", false
	}
	return attr.Kind, true
}

// Zero returns the zero value of kind.
func Zero(kind schema.Kind) any {
	switch kind {
	case schema.KindString:
		return ""
	case schema.KindInteger:
		return int64(0)
	case schema.KindNumber:
		return float64(0)
	case schema.KindBoolean:
		return false
	case schema.KindMap:
		return map[string]any{}
	case schema.KindArray:
		return []any{}
	default:
		return nil
	}
}

// Default returns the default value of a scalar or array attribute.
// A declared default wins over the kind zero value. Reference and
// object attributes have no scalar default and return nil.
func Default(attr schema.Attribute) any {
	switch attr.Type {
	case schema.AttrScalar:
		if attr.HasDefault {
			if v, err := Coerce(attr.Kind, attr.Default); err == nil {
				return Copy(v)
			}
			return Copy(attr.Default)
		}
		return Zero(attr.Kind)
	case schema.AttrArray:
		if list, ok := attr.Default.([]any); ok && attr.HasDefault {
			return Copy(list)
		}
		return []any{}
	default:
		return nil
	}
}

// Check validates value against a scalar attribute and returns the
// normalized value. Failures are *schema.ValueError.
func Check(attr schema.Attribute, value any) (any, error) {
	kind, ok := KindOf(attr)
	if !ok {
		return nil, &schema.ValueError{Attr: attr.Name, Value: value, Reason: fmt.Sprintf("%s attribute holds no scalar value", attr.Type)}
	}

	v, err := Coerce(kind, value)
	if err != nil {
		return nil, &schema.ValueError{Attr: attr.Name, Want: string(kind), Value: value}
	}

	if len(attr.Enum) > 0 && !inEnum(kind, attr.Enum, v) {
		return nil, &schema.ValueError{Attr: attr.Name, Value: value, Reason: fmt.Sprintf("value %v is not one of %v", value, attr.Enum)}
	}

	return v, nil
}

// Coerce normalizes value to kind. Integers become int64, numbers
// float64. An integral float64 is accepted as an integer, since decoded
// JSON carries every number as float64.
func Coerce(kind schema.Kind, value any) (any, error) {
	switch kind {
	case schema.KindString:
		if s, ok := value.(string); ok {
			return s, nil
		}

	case schema.KindInteger:
		if n, ok := toInt(value); ok {
			return n, nil
		}

	case schema.KindNumber:
		if f, ok := toFloat(value); ok {
			return f, nil
		}

	case schema.KindBoolean:
		if b, ok := value.(bool); ok {
			return b, nil
		}

	case schema.KindNull:
		if value == nil {
			return nil, nil
		}

	case schema.KindMap:
		if m, ok := value.(map[string]any); ok {
			return m, nil
		}
	}

	return nil, fmt.Errorf("%w: %v (%T) is not %s", schema.ErrTypeMismatch, value, value, kind)
}

func toInt(value any) (int64, bool) {
	switch n := value.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint:
		return int64(n), uint64(n) <= math.MaxInt64
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		return int64(n), n <= math.MaxInt64
	case float32:
		return toInt(float64(n))
	case float64:
		if n != math.Trunc(n) || math.IsInf(n, 0) || n >= math.MaxInt64 || n < math.MinInt64 {
			return 0, false
		}
		return int64(n), true
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	}
	return 0, false
}

func toFloat(value any) (float64, bool) {
	switch n := value.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	if i, ok := toInt(value); ok {
		return float64(i), true
	}
	return 0, false
}

func inEnum(kind schema.Kind, enum []any, v any) bool {
	for _, e := range enum {
		ev, err := Coerce(kind, e)
		if err != nil {
			continue
		}
		if reflect.DeepEqual(ev, v) {
			return true
		}
	}
	return false
}

// Copy deep-copies plain JSON values so defaults are never shared.
func Copy(v any) any {
	switch x := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(x))
		for k, e := range x {
			m[k] = Copy(e)
		}
		return m
	case []any:
		l := make([]any, len(x))
		for i, e := range x {
			l[i] = Copy(e)
		}
		return l
	default:
		return v
	}
}
