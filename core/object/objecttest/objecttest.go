// Package objecttest provides schemas and models shared by tests of the
// object, graph and storage packages.
//
// Usage:
//
//	reg := objecttest.Registry()
//	node, err := object.New(reg, "node", nil)
package objecttest

import (
	"github.com/artpar/datalayer/core/object"
	"github.com/artpar/datalayer/core/registry"
)

// =============================================================================
// Schemas
// =============================================================================

// Node declares identity, version, a reserved name and arrays of
// references to definitions and to the callback schema.
const Node = `{
	"title": "Node",
	"type": "object",
	"properties": {
		"_id":        { "type": "string" },
		"_version":   { "type": "string" },
		"_name":      { "type": "string" },
		"tags":       { "type": "array", "items": { "$ref": "#/definitions/tag" } },
		"parameters": { "type": "array", "items": { "$ref": "#/definitions/parameter" } },
		"ports":      { "type": "array", "items": { "$ref": "#/definitions/port" } }
	},
	"definitions": {
		"port": {
			"type": "object",
			"properties": {
				"name":       { "type": "string" },
				"direction":  { "type": "string", "enum": ["in", "out"] },
				"protocol":   { "type": "string" },
				"tags":       { "type": "array", "items": { "$ref": "#/definitions/tag" } },
				"parameters": { "type": "array", "items": { "$ref": "#/definitions/parameter" } },
				"callback":   { "$ref": "callback" }
			}
		},
		"parameter": {
			"type": "object",
			"properties": {
				"name": { "type": "string" },
				"data": { "type": "object" }
			}
		},
		"tag": {
			"type": "object",
			"properties": {
				"name":  { "type": "string" },
				"value": { "type": "string" }
			}
		}
	}
}`

// Callback is referenced from node ports. Its tags carry their own identity.
const Callback = `{
	"title": "Callback",
	"type": "object",
	"properties": {
		"_id":        { "type": "string" },
		"_version":   { "type": "string" },
		"_name":      { "type": "string" },
		"tags":       { "type": "array", "items": { "$ref": "#/definitions/tag" } },
		"parameters": { "type": "array", "items": { "$ref": "#/definitions/parameter" } },
		"code":       { "type": "string" },
		"libraries":  { "type": "array", "items": { "type": "string" } }
	},
	"definitions": {
		"parameter": {
			"type": "object",
			"properties": {
				"name": { "type": "string" },
				"data": { "type": "object" }
			}
		},
		"tag": {
			"type": "object",
			"properties": {
				"_id":   { "type": "string" },
				"name":  { "type": "string" },
				"value": { "type": "string" }
			}
		}
	}
}`

// Flow nests definitions three levels deep and has an inline object.
const Flow = `{
	"title": "Flow",
	"type": "object",
	"properties": {
		"_id":    { "type": "string" },
		"nodes":  { "type": "array", "items": { "$ref": "#/definitions/node" } },
		"layers": { "type": "array", "items": { "type": "string" } }
	},
	"definitions": {
		"node": {
			"type": "object",
			"properties": {
				"class": { "type": "string" },
				"name":  { "type": "string" },
				"links": { "type": "array", "items": { "$ref": "#/definitions/link" } }
			}
		},
		"link": {
			"type": "object",
			"properties": {
				"from": { "type": "string" },
				"to": {
					"type": "object",
					"properties": {
						"node": { "type": "string" },
						"port": { "type": "string" }
					}
				},
				"linktype": { "type": "string" }
			}
		}
	}
}`

// User has an identity and a unique reserved email.
const User = `{
	"title": "user",
	"type": "object",
	"properties": {
		"_id":        { "type": "string" },
		"_email":     { "type": "string" },
		"login":      { "type": "string" },
		"first":      { "type": "string" },
		"super_user": { "type": "boolean" },
		"level":      { "type": "integer", "default": 1 },
		"roles":      { "type": "array", "items": { "$ref": "role.json" } }
	}
}`

// Role carries no identity and a two-field tuple array.
const Role = `{
	"title": "role",
	"type": "object",
	"properties": {
		"name": { "type": "string" },
		"permissions": {
			"type": "array",
			"items": [ { "type": "string" }, { "type": "string" } ]
		}
	}
}`

// Tree references itself.
const Tree = `{
	"title": "tree",
	"type": "object",
	"properties": {
		"_id":      { "type": "string" },
		"label":    { "type": "string" },
		"parent":   { "$ref": "tree" },
		"children": { "type": "array", "items": { "$ref": "tree" } }
	}
}`

// Schemas maps schema names to their sources.
var Schemas = map[string]string{
	"node":     Node,
	"callback": Callback,
	"flow":     Flow,
	"user":     User,
	"role":     Role,
	"tree":     Tree,
}

// Registry returns a registry holding all test schemas.
func Registry() *registry.Registry {
	reg := registry.New(nil)
	for name, src := range Schemas {
		if err := reg.Set(name, []byte(src)); err != nil {
			panic(err)
		}
	}
	return reg
}

// =============================================================================
// Models
// =============================================================================

// NodeModel adds layout helpers to node objects. Layout is kept in a
// parameter named "visual".
type NodeModel struct {
	*object.Object
}

// NewNode wraps obj.
func NewNode(obj *object.Object) object.Model {
	return &NodeModel{Object: obj}
}

// Models returns a binding table with NodeModel bound to "node".
func Models() *object.Models {
	m := object.NewModels()
	m.Bind("node", NewNode)
	return m
}

// Move sets the position of the node.
func (n *NodeModel) Move(x, y float64) error {
	data, err := n.visual()
	if err != nil {
		return err
	}
	data["position"] = map[string]any{"x": x, "y": y}
	return nil
}

// SetColor sets the color of the node.
func (n *NodeModel) SetColor(color string) error {
	data, err := n.visual()
	if err != nil {
		return err
	}
	data["color"] = color
	return nil
}

// Position returns the node position, (0, 0) when unset.
func (n *NodeModel) Position() (x, y float64) {
	data := n.lookup()
	pos, _ := data["position"].(map[string]any)
	x, _ = pos["x"].(float64)
	y, _ = pos["y"].(float64)
	return x, y
}

// Color returns the node color, black when unset.
func (n *NodeModel) Color() string {
	if c, ok := n.lookup()["color"].(string); ok {
		return c
	}
	return "#000000"
}

func (n *NodeModel) lookup() map[string]any {
	params, err := n.Array("parameters")
	if err != nil {
		return nil
	}
	for _, v := range params.All() {
		p := v.(*object.Object)
		if p.MustGet("name") == "visual" {
			data, _ := p.MustGet("data").(map[string]any)
			return data
		}
	}
	return nil
}

// visual returns the data map of the "visual" parameter, creating it.
func (n *NodeModel) visual() (map[string]any, error) {
	if data := n.lookup(); data != nil {
		return data, nil
	}
	if err := n.Append("parameters", map[string]any{"name": "visual", "data": map[string]any{}}); err != nil {
		return nil, err
	}
	return n.lookup(), nil
}
