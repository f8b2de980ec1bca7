package schema

import (
	"sort"
	"strings"
)

// Reserved attribute names.
const (
	ReservedPrefix = "_"
	IDAttr         = "_id"
	VersionAttr    = "_version"

	// LatestVersion is assigned to a blank _version during normalization.
	LatestVersion = "latest"
)

// AttrType tags the variant held by an Attribute.
type AttrType int

const (
	AttrUnknown AttrType = iota
	AttrScalar
	AttrRef
	AttrArray
	AttrObject
)

func (t AttrType) String() string {
	switch t {
	case AttrScalar:
		return "scalar"
	case AttrRef:
		return "ref"
	case AttrArray:
		return "array"
	case AttrObject:
		return "object"
	default:
		return "unknown"
	}
}

// Kind is the runtime value kind of a scalar attribute.
type Kind string

const (
	KindString  Kind = "string"
	KindInteger Kind = "integer"
	KindNumber  Kind = "number"
	KindBoolean Kind = "boolean"
	KindNull    Kind = "null"

	// KindMap is a free-form object without declared properties.
	KindMap Kind = "object"

	// KindArray is only seen on array item specs, which are rejected.
	KindArray Kind = "array"
)

// Attribute is one property of a definition.
type Attribute struct {
	Name        string
	Type        AttrType
	Description string

	// Kind is set for AttrScalar.
	Kind Kind

	// Ref is the reference as declared, for AttrRef.
	Ref string

	// Items holds the item specs of an AttrArray. Tuple arrays declare
	// more than one spec, or a list with a single spec.
	Items []Attribute
	Tuple bool

	// Object is the inline definition of an AttrObject.
	Object *Definition

	Default    any
	HasDefault bool
	Enum       []any

	// Raw is the declared type name when it could not be resolved.
	Raw string
}

// Width returns the number of backing slots used by one array element.
func (a Attribute) Width() int {
	if !a.Tuple {
		return 1
	}
	return len(a.Items)
}

// Definition is a parsed structural schema.
type Definition struct {
	ID          string
	Title       string
	Description string
	Properties  map[string]Attribute
	Definitions map[string]*Definition
	Required    []string

	names []string
}

// Attribute returns the attribute declared under name.
func (d *Definition) Attribute(name string) (Attribute, bool) {
	a, ok := d.Properties[name]
	return a, ok
}

// Lookup resolves name directly or through its reserved form.
// It returns the declared attribute name.
func (d *Definition) Lookup(name string) (string, bool) {
	if _, ok := d.Properties[name]; ok {
		return name, true
	}
	if !IsReserved(name) {
		if _, ok := d.Properties[ReservedPrefix+name]; ok {
			return ReservedPrefix + name, true
		}
	}
	return "", false
}

// Names returns the declared attribute names in sorted order.
func (d *Definition) Names() []string {
	if d.names != nil {
		return d.names
	}
	return sortedNames(d.Properties)
}

func sortedNames(props map[string]Attribute) []string {
	names := make([]string, 0, len(props))
	for name := range props {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// HasIdentity reports whether the definition declares _id.
func (d *Definition) HasIdentity() bool {
	_, ok := d.Properties[IDAttr]
	return ok
}

// HasVersion reports whether the definition declares both _id and _version.
// A version without an id carries no identity.
func (d *Definition) HasVersion() bool {
	_, ok := d.Properties[VersionAttr]
	return ok && d.HasIdentity()
}

// IsReserved reports whether name is a reserved attribute name.
func IsReserved(name string) bool {
	return strings.HasPrefix(name, ReservedPrefix)
}

// IsIdentity reports whether name is one of the identity attributes.
func IsIdentity(name string) bool {
	return name == IDAttr || name == VersionAttr
}

// ResolveRef turns a declared reference into a schema path.
// Anchors ("#/definitions/x") resolve against root, the root schema name.
func ResolveRef(root, ref string) string {
	if strings.HasPrefix(ref, "#") {
		return strings.ToLower(root + strings.TrimPrefix(ref, "#"))
	}
	ref = strings.TrimSuffix(ref, ".json")
	return strings.ToLower(ref)
}

// RootName returns the root schema name of a schema path.
func RootName(path string) string {
	if i := strings.Index(path, "/"); i >= 0 {
		return path[:i]
	}
	return path
}

// SplitPath splits "name/definitions/def" into its schema name and definition.
// The definition is empty for a root schema path.
func SplitPath(path string) (name, def string, err error) {
	parts := strings.Split(strings.ToLower(path), "/")
	if len(parts) == 1 {
		return parts[0], "", nil
	}
	if len(parts) != 3 || parts[1] != "definitions" || parts[0] == "" || parts[2] == "" {
		return "", "", ErrInvalidSchema
	}
	return parts[0], parts[2], nil
}
