// Package jsonschema defines the subset of JSON Schema used for tool
// parameters and structured LLM outputs.
package jsonschema

import (
	"encoding/json"
	"sort"
)

// Schema is a JSON Schema node. Only the fields the model APIs understand
// are modeled; anything else goes through Extras.
type Schema struct {
	Type                 string             `json:"type,omitempty"`
	Description          string             `json:"description,omitempty"`
	Properties           map[string]*Schema `json:"properties,omitempty"`
	Items                *Schema            `json:"items,omitempty"`
	Required             []string           `json:"required,omitempty"`
	Enum                 []string           `json:"enum,omitempty"`
	AnyOf                []*Schema          `json:"anyOf,omitempty"`
	Defs                 map[string]*Schema `json:"$defs,omitempty"`
	Ref                  string             `json:"$ref,omitempty"`
	AdditionalProperties *bool              `json:"additionalProperties,omitempty"`
}

// Object is a convenience constructor for an object schema.
func Object(properties map[string]*Schema) *Schema {
	return &Schema{Type: "object", Properties: properties}
}

// String is a convenience constructor for a string schema.
func String(description string) *Schema {
	return &Schema{Type: "string", Description: description}
}

// Array is a convenience constructor for an array schema.
func Array(items *Schema) *Schema {
	return &Schema{Type: "array", Items: items}
}

// EnforceStrict rewrites the schema in place so it satisfies the strict
// structured-output rules: every object forbids additional properties and
// requires all of its declared properties, recursively through properties,
// items, anyOf branches and $defs.
func (s *Schema) EnforceStrict() *Schema {
	if s == nil {
		return nil
	}
	if s.Type == "object" {
		f := false
		s.AdditionalProperties = &f
		required := make([]string, 0, len(s.Properties))
		for name := range s.Properties {
			required = append(required, name)
		}
		sort.Strings(required)
		s.Required = required
	}
	for _, p := range s.Properties {
		p.EnforceStrict()
	}
	s.Items.EnforceStrict()
	for _, branch := range s.AnyOf {
		branch.EnforceStrict()
	}
	for _, def := range s.Defs {
		def.EnforceStrict()
	}
	return s
}

// MarshalStrict enforces strictness and returns the serialized schema.
func (s *Schema) MarshalStrict() (json.RawMessage, error) {
	return json.Marshal(s.EnforceStrict())
}
