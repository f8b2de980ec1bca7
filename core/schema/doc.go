/*
Package schema defines the structural definitions that drive schema objects.

A definition is a JSON Schema style document. Only the subset needed to shape
objects is interpreted: named properties, nested "definitions", references,
arrays and defaults.

# Definition

A minimal definition in JSON:

	{
	  "title": "node",
	  "type": "object",
	  "properties": {
	    "_id":      { "type": "string" },
	    "_version": { "type": "string" },
	    "name":     { "type": "string" },
	    "ports":    { "type": "array", "items": { "$ref": "#/definitions/port" } }
	  },
	  "definitions": {
	    "port": {
	      "type": "object",
	      "properties": {
	        "name":     { "type": "string" },
	        "callback": { "$ref": "callback" }
	      }
	    }
	  }
	}

YAML sources with the same shape are accepted as well.

# Attributes

Every property is parsed into an Attribute, a closed variant:

  - AttrScalar: string, integer, number, boolean, null or a free-form object
  - AttrRef:    a reference to another definition ("callback", "#/definitions/port")
  - AttrArray:  homogeneous (one item spec) or tuple (an ordered list of N item specs)
  - AttrObject: an inline object with its own properties

Properties that match none of these are kept as AttrUnknown and rejected when an
object is built from the definition. Definition.Validate reports them up front.

# Reserved Attributes

Attribute names starting with an underscore are reserved. They are indexed by
the storage layer and can be addressed without the underscore. Two reserved
names carry identity:

  - _id:      unique token of an instance
  - _version: version token, "latest" when blank

# Paths

A schema path names a definition inside the registry: "node" for a root
schema, "node/definitions/port" for a nested definition. Anchor references
("#/definitions/port") always resolve against the root schema name.
*/
package schema
