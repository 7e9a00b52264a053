package types

import (
	"encoding/json"
	"time"
)

// FieldType classifies a field definition. The set is closed; anything
// outside it is rejected at validation time.
type FieldType string

const (
	FieldTypeText     FieldType = "text"
	FieldTypeNumber   FieldType = "number"
	FieldTypeSelect   FieldType = "select"
	FieldTypeCheckbox FieldType = "checkbox"
	FieldTypeTextarea FieldType = "textarea"
	FieldTypeDate     FieldType = "date"
)

// FieldTypes lists every valid field type, in display order.
var FieldTypes = []FieldType{
	FieldTypeText,
	FieldTypeNumber,
	FieldTypeSelect,
	FieldTypeCheckbox,
	FieldTypeTextarea,
	FieldTypeDate,
}

// Valid reports whether t is a member of the closed field-type set.
func (t FieldType) Valid() bool {
	for _, ft := range FieldTypes {
		if t == ft {
			return true
		}
	}
	return false
}

// Field is one typed, configurable attribute definition within a Schema.
// Config carries the type-specific settings (select options, number ranges,
// date formats) as an opaque blob; the core never interprets it.
type Field struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	Type         FieldType      `json:"type"`
	Config       map[string]any `json:"config,omitempty"`
	Required     bool           `json:"required"`
	HelpText     string         `json:"help_text,omitempty"`
	DisplayOrder int            `json:"display_order"`
	Active       bool           `json:"active"`
}

// Clone returns a deep copy of the field, including its config blob.
// The config is JSON-shaped, so nested maps and slices are copied all the
// way down; two clones never alias.
func (f Field) Clone() Field {
	out := f
	if f.Config != nil {
		out.Config = cloneConfigValue(f.Config).(map[string]any)
	}
	return out
}

func cloneConfigValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = cloneConfigValue(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = cloneConfigValue(val)
		}
		return out
	default:
		return v
	}
}

// Schema is a named, ordered collection of field definitions describing one
// component kind. UpdatedAt doubles as the optimistic-concurrency token:
// every successful mutation moves it strictly forward.
type Schema struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Fields      []Field   `json:"fields"`
	IsDefault   bool      `json:"is_default"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Clone returns a deep copy of the schema and its fields.
func (s Schema) Clone() Schema {
	out := s
	if s.Fields != nil {
		out.Fields = make([]Field, len(s.Fields))
		for i, f := range s.Fields {
			out.Fields[i] = f.Clone()
		}
	}
	return out
}

// FieldIndex returns the position of the field with the given ID, or -1.
func (s Schema) FieldIndex(fieldID string) int {
	for i, f := range s.Fields {
		if f.ID == fieldID {
			return i
		}
	}
	return -1
}

// FieldByID returns the field with the given ID, if present.
func (s Schema) FieldByID(fieldID string) (Field, bool) {
	if i := s.FieldIndex(fieldID); i >= 0 {
		return s.Fields[i], true
	}
	return Field{}, false
}

// NewSchema is the input type for creating schemas (without generated fields).
type NewSchema struct {
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Fields      []Field `json:"fields"`
	IsDefault   bool    `json:"is_default,omitempty"`
}

// SchemaPatch is a partial update to a schema. Nil pointers mean "leave
// unchanged". BaseVersion is the UpdatedAt the client's edit was derived
// from; the store rejects the patch with a version conflict when the stored
// row is newer, unless Force is set (the keep_local conflict resolution).
type SchemaPatch struct {
	Name        *string   `json:"name,omitempty"`
	Description *string   `json:"description,omitempty"`
	Fields      *[]Field  `json:"fields,omitempty"`
	IsDefault   *bool     `json:"is_default,omitempty"`
	Active      *bool     `json:"active,omitempty"`
	BaseVersion time.Time `json:"base_version"`
	Force       bool      `json:"force,omitempty"`
}

// SchemaList is the response payload for schema listing.
type SchemaList struct {
	Schemas []Schema `json:"schemas"`
	Total   int      `json:"total"`
}

// HealthResponse reports service health.
type HealthResponse struct {
	Status      string `json:"status"`
	Version     string `json:"version"`
	SchemaCount int64  `json:"schema_count"`
	StorePath   string `json:"store_path,omitempty"`
}

// MarshalJSON ensures a nil field slice marshals as [] not null.
func (s Schema) MarshalJSON() ([]byte, error) {
	if s.Fields == nil {
		s.Fields = []Field{}
	}
	type Alias Schema
	return json.Marshal(Alias(s))
}

// MarshalJSON ensures a nil schema slice marshals as [] not null.
func (l SchemaList) MarshalJSON() ([]byte, error) {
	if l.Schemas == nil {
		l.Schemas = []Schema{}
	}
	type Alias SchemaList
	return json.Marshal(Alias(l))
}
