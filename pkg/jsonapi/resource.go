package jsonapi

import "slices"

// ResourceBuilder assembles a Resource.
type ResourceBuilder struct {
	resource Resource
}

// NewResource creates a new ResourceBuilder with the given type and ID.
func NewResource(resourceType, id string) *ResourceBuilder {
	return &ResourceBuilder{
		resource: Resource{
			Type:       resourceType,
			ID:         id,
			Attributes: make(map[string]any),
		},
	}
}

// Attr adds an attribute to the resource.
func (b *ResourceBuilder) Attr(key string, value any) *ResourceBuilder {
	b.resource.Attributes[key] = value
	return b
}

// Attrs adds multiple attributes to the resource.
// "id" and "type" are top-level members and are skipped.
func (b *ResourceBuilder) Attrs(attrs map[string]any) *ResourceBuilder {
	for k, v := range attrs {
		if k == "id" || k == "type" {
			continue
		}
		b.resource.Attributes[k] = v
	}
	return b
}

// References adds a relationship for an attribute holding one or more
// stored documents. Empty relationships are not added.
func (b *ResourceBuilder) References(name string, ids ...ResourceIdentifier) *ResourceBuilder {
	if len(ids) == 0 {
		return b
	}
	if b.resource.Relationships == nil {
		b.resource.Relationships = make(map[string]Relationship)
	}

	if prev, ok := b.resource.Relationships[name]; ok {
		switch d := prev.Data.(type) {
		case ResourceIdentifier:
			ids = append([]ResourceIdentifier{d}, ids...)
		case []ResourceIdentifier:
			ids = append(slices.Clone(d), ids...)
		}
	}

	if len(ids) == 1 {
		b.resource.Relationships[name] = Relationship{Data: ids[0]}
	} else {
		b.resource.Relationships[name] = Relationship{Data: ids}
	}
	return b
}

// Link sets the self link for the resource.
func (b *ResourceBuilder) Link(self string) *ResourceBuilder {
	b.resource.Links = &Links{Self: self}
	return b
}

// Build returns the constructed Resource.
func (b *ResourceBuilder) Build() Resource {
	return b.resource
}
