// Package openapi generates OpenAPI 3.0 documents describing the object
// routes of each schema known to a registry.
package openapi

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/artpar/datalayer/core/registry"
	"github.com/artpar/datalayer/core/schema"
)

// Spec represents an OpenAPI 3.0 specification.
type Spec struct {
	OpenAPI    string              `json:"openapi"`
	Info       Info                `json:"info"`
	Paths      map[string]PathItem `json:"paths"`
	Components Components          `json:"components"`
	Tags       []Tag               `json:"tags,omitempty"`
}

// Info provides API metadata.
type Info struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Version     string `json:"version"`
}

// PathItem contains operations for a path.
type PathItem struct {
	Get    *Operation `json:"get,omitempty"`
	Post   *Operation `json:"post,omitempty"`
	Delete *Operation `json:"delete,omitempty"`
}

// Operation represents an API operation.
type Operation struct {
	Tags        []string            `json:"tags,omitempty"`
	Summary     string              `json:"summary,omitempty"`
	OperationID string              `json:"operationId,omitempty"`
	Parameters  []Parameter         `json:"parameters,omitempty"`
	RequestBody *RequestBody        `json:"requestBody,omitempty"`
	Responses   map[string]Response `json:"responses"`
}

// Parameter represents an API parameter.
type Parameter struct {
	Name        string  `json:"name"`
	In          string  `json:"in"` // path, query
	Description string  `json:"description,omitempty"`
	Required    bool    `json:"required,omitempty"`
	Schema      *Schema `json:"schema,omitempty"`
}

// RequestBody represents a request body.
type RequestBody struct {
	Required bool                 `json:"required,omitempty"`
	Content  map[string]MediaType `json:"content"`
}

// Response represents an API response.
type Response struct {
	Description string               `json:"description"`
	Content     map[string]MediaType `json:"content,omitempty"`
}

// MediaType represents a media type.
type MediaType struct {
	Schema *Schema `json:"schema,omitempty"`
}

// Schema represents a JSON Schema.
type Schema struct {
	Type        string             `json:"type,omitempty"`
	Description string             `json:"description,omitempty"`
	Properties  map[string]*Schema `json:"properties,omitempty"`
	Items       *Schema            `json:"items,omitempty"`
	Enum        []string           `json:"enum,omitempty"`
	Ref         string             `json:"$ref,omitempty"`
	Nullable    bool               `json:"nullable,omitempty"`
	Default     any                `json:"default,omitempty"`
	OneOf       []*Schema          `json:"oneOf,omitempty"`
}

// Components holds reusable schemas.
type Components struct {
	Schemas map[string]*Schema `json:"schemas,omitempty"`
}

// Tag groups the operations of one schema.
type Tag struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Lister enumerates schema names that may not be loaded yet.
type Lister interface {
	List() ([]string, error)
}

// Generator creates OpenAPI specs from registry schemas.
type Generator struct {
	reg    *registry.Registry
	lister Lister
	info   Info
}

// NewGenerator creates a generator over reg. When lister is nil only the
// schemas already loaded into reg are described.
func NewGenerator(reg *registry.Registry, lister Lister) *Generator {
	return &Generator{
		reg:    reg,
		lister: lister,
		info: Info{
			Title:       "Data Layer API",
			Version:     "1.0.0",
			Description: "Object routes generated from the loaded schemas",
		},
	}
}

// SetInfo sets the API info.
func (g *Generator) SetInfo(info Info) {
	g.info = info
}

// Generate creates the OpenAPI specification. Listed schemas are loaded
// into the registry as a side effect.
func (g *Generator) Generate() (*Spec, error) {
	names := g.reg.List()
	if g.lister != nil {
		listed, err := g.lister.List()
		if err != nil {
			return nil, fmt.Errorf("list schemas: %w", err)
		}
		names = listed
	}
	sort.Strings(names)

	spec := &Spec{
		OpenAPI:    "3.0.3",
		Info:       g.info,
		Paths:      make(map[string]PathItem),
		Components: Components{Schemas: make(map[string]*Schema)},
		Tags:       make([]Tag, 0, len(names)),
	}

	for _, name := range names {
		def, err := g.reg.Get(name)
		if err != nil {
			return nil, err
		}
		g.addSchema(spec, strings.ToLower(name), def)
	}
	return spec, nil
}

// addSchema adds the component and object routes of one root schema.
func (g *Generator) addSchema(spec *Spec, name string, def *schema.Definition) {
	spec.Tags = append(spec.Tags, Tag{Name: name, Description: def.Description})
	spec.Components.Schemas[name] = definitionSchema(def)

	ref := &Schema{Ref: "#/components/schemas/" + name}
	base := "/objects/" + name

	params := []Parameter{
		{Name: "attr", In: "query", Required: true, Description: "Indexed attribute", Schema: &Schema{Type: "string"}},
		{Name: "value", In: "query", Required: true, Description: "Value to match", Schema: &Schema{Type: "string"}},
	}
	if def.HasVersion() {
		params = append(params, Parameter{Name: "version", In: "query", Description: `Version to match, or "all"`, Schema: &Schema{Type: "string"}})
	}

	var post []Parameter
	if !def.HasIdentity() {
		post = []Parameter{{Name: "ref", In: "query", Required: true, Description: "Identity to store the object under", Schema: &Schema{Type: "string"}}}
	}

	spec.Paths[base] = PathItem{
		Post: &Operation{
			Tags:        []string{name},
			Summary:     "Store " + name,
			OperationID: "store" + title(name),
			Parameters:  post,
			RequestBody: &RequestBody{
				Required: true,
				Content:  map[string]MediaType{"application/json": {Schema: ref}},
			},
			Responses: map[string]Response{
				"201": {Description: "Identities of the stored documents, children first"},
				"400": {Description: "Malformed JSON body"},
				"409": {Description: "Reserved value owned by another object"},
				"422": {Description: "Value rejected by the schema"},
			},
		},
		Get: &Operation{
			Tags:        []string{name},
			Summary:     "Find " + name + " objects by reserved attribute",
			OperationID: "find" + title(name),
			Parameters:  params,
			Responses: map[string]Response{
				"200": {Description: "Matching objects", Content: resourceContent(&Schema{Type: "array", Items: ref})},
				"400": {Description: "Missing attr or value"},
			},
		},
	}

	if !def.HasIdentity() {
		return
	}

	id := []Parameter{{Name: "id", In: "path", Required: true, Description: "Identity, id:version for versioned schemas", Schema: &Schema{Type: "string"}}}
	spec.Paths[base+"/{id}"] = PathItem{
		Get: &Operation{
			Tags:        []string{name},
			Summary:     "Get " + name + " by identity",
			OperationID: "get" + title(name),
			Parameters:  id,
			Responses: map[string]Response{
				"200": {Description: "Object with references resolved", Content: resourceContent(ref)},
				"404": {Description: "No document under this identity"},
			},
		},
		Delete: &Operation{
			Tags:        []string{name},
			Summary:     "Delete " + name,
			OperationID: "delete" + title(name),
			Parameters:  id,
			Responses: map[string]Response{
				"204": {Description: "Deleted"},
				"404": {Description: "No document under this identity"},
			},
		},
	}
}

func resourceContent(attrs *Schema) map[string]MediaType {
	return map[string]MediaType{
		"application/vnd.api+json": {Schema: &Schema{
			Type:       "object",
			Properties: map[string]*Schema{"data": attrs},
		}},
	}
}

func definitionSchema(def *schema.Definition) *Schema {
	s := &Schema{
		Type:        "object",
		Description: def.Description,
		Properties:  make(map[string]*Schema, len(def.Properties)),
	}
	for _, name := range def.Names() {
		s.Properties[name] = attributeSchema(def.Properties[name])
	}
	return s
}

func attributeSchema(attr schema.Attribute) *Schema {
	var s *Schema

	switch attr.Type {
	case schema.AttrScalar:
		s = scalarSchema(attr.Kind)
	case schema.AttrRef:
		s = &Schema{Type: "object", Description: "Reference to " + attr.Ref}
	case schema.AttrObject:
		s = definitionSchema(attr.Object)
	case schema.AttrArray:
		s = &Schema{Type: "array"}
		switch {
		case len(attr.Items) == 1:
			s.Items = attributeSchema(attr.Items[0])
		case len(attr.Items) > 1:
			// Tuples are flattened into consecutive slots.
			items := &Schema{}
			for _, item := range attr.Items {
				items.OneOf = append(items.OneOf, attributeSchema(item))
			}
			s.Items = items
		}
	default:
		s = &Schema{}
	}

	if attr.Description != "" {
		s.Description = attr.Description
	}
	if attr.HasDefault {
		s.Default = attr.Default
	}
	for _, v := range attr.Enum {
		s.Enum = append(s.Enum, fmt.Sprint(v))
	}
	return s
}

func scalarSchema(kind schema.Kind) *Schema {
	switch kind {
	case schema.KindNull:
		return &Schema{Nullable: true}
	case schema.KindMap:
		return &Schema{Type: "object"}
	default:
		return &Schema{Type: string(kind)}
	}
}

func title(name string) string {
	if name == "" {
		return ""
	}
	return strings.ToUpper(name[:1]) + name[1:]
}

// ToJSON converts the spec to JSON.
func (spec *Spec) ToJSON() ([]byte, error) {
	return json.MarshalIndent(spec, "", "  ")
}
