package schema

// ArrayOp names an operation on an array attribute.
type ArrayOp string

const (
	OpLen    ArrayOp = "len"
	OpGet    ArrayOp = "get"
	OpSet    ArrayOp = "set"
	OpAppend ArrayOp = "append"
	OpRemove ArrayOp = "remove"

	// Declared for completeness. Arrays reject them with ErrUnsupportedOperation.
	OpSlice    ArrayOp = "slice"
	OpInsert   ArrayOp = "insert"
	OpPop      ArrayOp = "pop"
	OpSort     ArrayOp = "sort"
	OpReverse  ArrayOp = "reverse"
	OpIndex    ArrayOp = "index"
	OpContains ArrayOp = "contains"
)

// SupportedArrayOps lists the operations every array attribute exposes.
var SupportedArrayOps = []ArrayOp{OpLen, OpGet, OpSet, OpAppend, OpRemove}

// Capability describes what an object can do with one attribute.
type Capability struct {
	Name      string    `json:"name"`
	Type      string    `json:"type"`
	Kind      Kind      `json:"kind,omitempty"`
	Reserved  bool      `json:"reserved,omitempty"`
	Schema    string    `json:"schema,omitempty"`
	Items     []string  `json:"items,omitempty"`
	Tuple     bool      `json:"tuple,omitempty"`
	Width     int       `json:"width,omitempty"`
	ArrayOps  []ArrayOp `json:"array_ops,omitempty"`
	Attribute Attribute `json:"-"`
}

// Capabilities is the capability table of one schema path.
type Capabilities struct {
	Path       string       `json:"path"`
	Identity   bool         `json:"identity"`
	Version    bool         `json:"version"`
	Attributes []Capability `json:"attributes"`
	byName     map[string]int
}

// Get returns the capability of a declared attribute name.
func (c *Capabilities) Get(name string) (Capability, bool) {
	i, ok := c.byName[name]
	if !ok {
		return Capability{}, false
	}
	return c.Attributes[i], true
}

// Supports reports whether the array attribute name supports op.
func (c *Capabilities) Supports(name string, op ArrayOp) bool {
	cp, ok := c.Get(name)
	if !ok {
		return false
	}
	for _, o := range cp.ArrayOps {
		if o == op {
			return true
		}
	}
	return false
}

// BuildCapabilities derives the capability table of def located at path.
func BuildCapabilities(path string, def *Definition) *Capabilities {
	root := RootName(path)
	caps := &Capabilities{
		Path:     path,
		Identity: def.HasIdentity(),
		Version:  def.HasVersion(),
		byName:   make(map[string]int, len(def.Properties)),
	}

	for _, name := range def.Names() {
		attr := def.Properties[name]
		cp := Capability{
			Name:      name,
			Type:      attr.Type.String(),
			Kind:      attr.Kind,
			Reserved:  IsReserved(name),
			Attribute: attr,
		}

		switch attr.Type {
		case AttrRef:
			cp.Schema = ResolveRef(root, attr.Ref)
		case AttrObject:
			cp.Schema = path + "/properties/" + name
		case AttrArray:
			cp.Tuple = attr.Tuple
			cp.Width = attr.Width()
			cp.ArrayOps = SupportedArrayOps
			for _, item := range attr.Items {
				cp.Items = append(cp.Items, describeItem(root, item))
			}
		}

		caps.byName[name] = len(caps.Attributes)
		caps.Attributes = append(caps.Attributes, cp)
	}

	return caps
}

func describeItem(root string, item Attribute) string {
	switch item.Type {
	case AttrRef:
		return "ref:" + ResolveRef(root, item.Ref)
	case AttrScalar:
		return string(item.Kind)
	case AttrObject:
		return "object"
	case AttrArray:
		return "array"
	default:
		return "unknown"
	}
}
