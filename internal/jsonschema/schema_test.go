package jsonschema

import (
	"encoding/json"
	"testing"
)

func TestEnforceStrict_TopLevelObject(t *testing.T) {
	s := Object(map[string]*Schema{
		"name":  String("role name"),
		"notes": String("freeform notes"),
	})
	s.EnforceStrict()

	if s.AdditionalProperties == nil || *s.AdditionalProperties {
		t.Error("additionalProperties must be false on strict objects")
	}
	if len(s.Required) != 2 || s.Required[0] != "name" || s.Required[1] != "notes" {
		t.Errorf("required must list every property, got %v", s.Required)
	}
}

func TestEnforceStrict_Recursive(t *testing.T) {
	nested := Object(map[string]*Schema{"id": String("")})
	s := Object(map[string]*Schema{
		"items": Array(nested),
	})
	s.Defs = map[string]*Schema{
		"Step": Object(map[string]*Schema{"description": String("")}),
	}
	s.EnforceStrict()

	if nested.AdditionalProperties == nil || *nested.AdditionalProperties {
		t.Error("array item objects must also be strict")
	}
	def := s.Defs["Step"]
	if def.AdditionalProperties == nil || *def.AdditionalProperties {
		t.Error("$defs objects must also be strict")
	}
	if len(def.Required) != 1 || def.Required[0] != "description" {
		t.Errorf("def required wrong: %v", def.Required)
	}
}

func TestMarshalStrict_RoundTrip(t *testing.T) {
	s := Object(map[string]*Schema{"query": String("search terms")})
	raw, err := s.MarshalStrict()
	if err != nil {
		t.Fatalf("MarshalStrict: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if ap, ok := decoded["additionalProperties"].(bool); !ok || ap {
		t.Errorf("serialized schema missing additionalProperties=false: %v", decoded)
	}
}
