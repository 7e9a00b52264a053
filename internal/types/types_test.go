package types

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestFieldType_Valid(t *testing.T) {
	for _, ft := range FieldTypes {
		if !ft.Valid() {
			t.Errorf("Expected %s valid", ft)
		}
	}
	if FieldType("").Valid() {
		t.Error("Expected empty type invalid")
	}
	if FieldType("Text").Valid() {
		t.Error("Expected type matching to be case-sensitive")
	}
}

func TestSchema_Clone_Isolation(t *testing.T) {
	original := Schema{
		ID:   "01HCLONETEST0000000000000X",
		Name: "Buttons",
		Fields: []Field{
			{ID: "f-1", Name: "Width", Type: FieldTypeNumber, Config: map[string]any{"min": 0}},
		},
	}

	clone := original.Clone()
	clone.Name = "Changed"
	clone.Fields[0].Name = "Height"
	clone.Fields[0].Config["min"] = 10

	if original.Name != "Buttons" {
		t.Errorf("Expected original name untouched, got %q", original.Name)
	}
	if original.Fields[0].Name != "Width" {
		t.Errorf("Expected original field untouched, got %q", original.Fields[0].Name)
	}
	if original.Fields[0].Config["min"] != 0 {
		t.Errorf("Expected original config untouched, got %v", original.Fields[0].Config["min"])
	}
}

func TestField_Clone_DeepConfig(t *testing.T) {
	f := Field{
		ID:   "f-kind",
		Name: "Kind",
		Type: FieldTypeSelect,
		Config: map[string]any{
			"options": []any{"primary", "ghost"},
			"display": map[string]any{"columns": 2},
		},
	}

	clone := f.Clone()
	clone.Config["options"].([]any)[0] = "mutated"
	clone.Config["display"].(map[string]any)["columns"] = 9

	if got := f.Config["options"].([]any)[0]; got != "primary" {
		t.Errorf("Expected nested slice unshared, got %v", got)
	}
	if got := f.Config["display"].(map[string]any)["columns"]; got != 2 {
		t.Errorf("Expected nested map unshared, got %v", got)
	}
}

func TestSchema_FieldLookups(t *testing.T) {
	s := Schema{
		Fields: []Field{
			{ID: "f-a", Name: "A"},
			{ID: "f-b", Name: "B"},
		},
	}

	if i := s.FieldIndex("f-b"); i != 1 {
		t.Errorf("Expected index 1, got %d", i)
	}
	if i := s.FieldIndex("f-missing"); i != -1 {
		t.Errorf("Expected -1 for missing field, got %d", i)
	}

	f, ok := s.FieldByID("f-a")
	if !ok || f.Name != "A" {
		t.Errorf("Expected field A, got %+v (ok=%v)", f, ok)
	}
	if _, ok := s.FieldByID("f-missing"); ok {
		t.Error("Expected missing field lookup to report not found")
	}
}

func TestSchema_MarshalJSON_NilFields(t *testing.T) {
	data, err := json.Marshal(Schema{ID: "01HMARSHALTEST00000000000X", Name: "Empty"})
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if !strings.Contains(string(data), `"fields":[]`) {
		t.Errorf("Expected nil fields to marshal as [], got %s", data)
	}
}

func TestSchemaList_MarshalJSON_NilSchemas(t *testing.T) {
	data, err := json.Marshal(SchemaList{})
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if !strings.Contains(string(data), `"schemas":[]`) {
		t.Errorf("Expected nil schemas to marshal as [], got %s", data)
	}
}
