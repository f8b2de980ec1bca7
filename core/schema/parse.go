package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"reflect"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// ParseFile parses a definition from a JSON or YAML file.
func ParseFile(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file %s: %w", path, err)
	}

	return Parse(data)
}

// Parse parses a definition from JSON or YAML bytes.
// Documents starting with '{' are decoded as JSON, anything else as YAML.
func Parse(data []byte) (*Definition, error) {
	var raw map[string]any

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty document", ErrInvalidSchema)
	}

	if trimmed[0] == '{' {
		if err := json.Unmarshal(trimmed, &raw); err != nil {
			return nil, fmt.Errorf("%w: parse json: %v", ErrInvalidSchema, err)
		}
	} else {
		if err := yaml.Unmarshal(trimmed, &raw); err != nil {
			return nil, fmt.Errorf("%w: parse yaml: %v", ErrInvalidSchema, err)
		}
	}

	if raw == nil {
		return nil, fmt.Errorf("%w: document is not an object", ErrInvalidSchema)
	}

	return FromMap(raw)
}

// FromMap builds a definition from a decoded document.
func FromMap(raw map[string]any) (*Definition, error) {
	def := &Definition{
		ID:          stringOf(raw["$id"]),
		Title:       stringOf(raw["title"]),
		Description: stringOf(raw["description"]),
		Properties:  make(map[string]Attribute),
		Definitions: make(map[string]*Definition),
	}

	if props, ok := raw["properties"]; ok {
		m, ok := props.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: properties must be an object", ErrInvalidSchema)
		}
		for name, spec := range m {
			attr, err := parseAttribute(name, spec)
			if err != nil {
				return nil, err
			}
			def.Properties[name] = attr
		}
	}

	if defs, ok := raw["definitions"]; ok {
		m, ok := defs.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: definitions must be an object", ErrInvalidSchema)
		}
		for name, spec := range m {
			sub, ok := spec.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("%w: definition %q must be an object", ErrInvalidSchema, name)
			}
			d, err := FromMap(sub)
			if err != nil {
				return nil, fmt.Errorf("definition %q: %w", name, err)
			}
			def.Definitions[strings.ToLower(name)] = d
		}
	}

	if req, ok := raw["required"].([]any); ok {
		for _, r := range req {
			if s, ok := r.(string); ok {
				def.Required = append(def.Required, s)
			}
		}
	}

	def.names = sortedNames(def.Properties)
	return def, nil
}

// parseAttribute parses a single property spec.
func parseAttribute(name string, spec any) (Attribute, error) {
	m, ok := spec.(map[string]any)
	if !ok {
		return Attribute{}, fmt.Errorf("%w: property %q must be an object", ErrInvalidSchema, name)
	}

	attr := Attribute{
		Name:        name,
		Description: stringOf(m["description"]),
	}

	if d, ok := m["default"]; ok {
		attr.Default = d
		attr.HasDefault = true
	}
	if e, ok := m["enum"].([]any); ok {
		attr.Enum = e
	}

	if ref, ok := m["$ref"].(string); ok {
		attr.Type = AttrRef
		attr.Ref = ref
		return attr, nil
	}

	typ, ok := m["type"].(string)
	if !ok {
		return attr, nil
	}

	switch Kind(typ) {
	case KindString, KindInteger, KindNumber, KindBoolean, KindNull:
		attr.Type = AttrScalar
		attr.Kind = Kind(typ)

	case KindMap:
		props, ok := m["properties"]
		if !ok {
			attr.Type = AttrScalar
			attr.Kind = KindMap
			break
		}
		obj, err := FromMap(map[string]any{"properties": props})
		if err != nil {
			return Attribute{}, fmt.Errorf("property %q: %w", name, err)
		}
		attr.Type = AttrObject
		attr.Object = obj

	case KindArray:
		attr.Type = AttrArray
		switch items := m["items"].(type) {
		case map[string]any:
			item, err := parseAttribute(name, items)
			if err != nil {
				return Attribute{}, err
			}
			attr.Items = []Attribute{item}
		case []any:
			if len(items) == 0 {
				return Attribute{}, fmt.Errorf("%w: property %q declares an empty tuple", ErrInvalidSchema, name)
			}
			for _, it := range items {
				item, err := parseAttribute(name, it)
				if err != nil {
					return Attribute{}, err
				}
				attr.Items = append(attr.Items, item)
			}
			attr.Tuple = true
		default:
			return Attribute{}, fmt.Errorf("%w: array property %q requires items", ErrInvalidSchema, name)
		}

	default:
		attr.Raw = typ
	}

	return attr, nil
}

// Validate reports attributes that cannot be turned into values.
func Validate(def *Definition) error {
	var errs []string
	collect(def, "", &errs)

	names := make([]string, 0, len(def.Definitions))
	for name := range def.Definitions {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		collect(def.Definitions[name], "definitions/"+name+".", &errs)
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: validation errors:\n  - %s", ErrInvalidSchema, strings.Join(errs, "\n  - "))
	}

	return nil
}

func collect(def *Definition, prefix string, errs *[]string) {
	for _, name := range def.Names() {
		attr := def.Properties[name]
		if err := validateAttribute(attr); err != "" {
			*errs = append(*errs, prefix+err)
		}
		if attr.Type == AttrObject {
			collect(attr.Object, prefix+name+".", errs)
		}
	}
}

func validateAttribute(attr Attribute) string {
	switch attr.Type {
	case AttrUnknown:
		if attr.Raw != "" {
			return fmt.Sprintf("attribute %q: unknown type %q", attr.Name, attr.Raw)
		}
		return fmt.Sprintf("attribute %q: neither $ref nor type declared", attr.Name)
	case AttrArray:
		for _, item := range attr.Items {
			if item.Type == AttrArray {
				return fmt.Sprintf("attribute %q: nested arrays are not supported", attr.Name)
			}
			if msg := validateAttribute(item); msg != "" {
				return msg
			}
		}
	case AttrScalar:
		if attr.Kind == KindString && len(attr.Enum) > 0 && attr.HasDefault {
			if !containsValue(attr.Enum, attr.Default) {
				return fmt.Sprintf("attribute %q: default %v is not a valid enum value", attr.Name, attr.Default)
			}
		}
	}
	return ""
}

func containsValue(values []any, v any) bool {
	for _, x := range values {
		if reflect.DeepEqual(x, v) {
			return true
		}
	}
	return false
}

func stringOf(v any) string {
	s, _ := v.(string)
	return s
}
