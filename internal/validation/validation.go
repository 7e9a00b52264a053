package validation

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/draftworks/schemadesk/internal/types"
)

const (
	MaxNameLength        = 120
	MaxDescriptionLength = 2000
	MaxHelpTextLength    = 500
	MaxFieldsPerSchema   = 200
)

// ValidationError represents a single field validation failure.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// Collector accumulates validation errors without failing on first.
type Collector struct {
	errors []ValidationError
}

// Add appends a validation error to the collector if non-nil.
func (c *Collector) Add(err *ValidationError) {
	if err != nil {
		c.errors = append(c.errors, *err)
	}
}

// HasErrors returns true if the collector has accumulated any errors.
func (c *Collector) HasErrors() bool {
	return len(c.errors) > 0
}

// Errors returns all accumulated validation errors.
func (c *Collector) Errors() []ValidationError {
	return c.errors
}

// Messages returns the accumulated errors as "field: message" strings.
func (c *Collector) Messages() []string {
	out := make([]string, len(c.errors))
	for i, e := range c.errors {
		out[i] = e.Field + ": " + e.Message
	}
	return out
}

// ValidateRequired returns an error if the value is empty or whitespace-only.
func ValidateRequired(field, value string) *ValidationError {
	if strings.TrimSpace(value) == "" {
		return &ValidationError{
			Field:   field,
			Message: "is required",
		}
	}
	return nil
}

// ValidateMaxLength returns an error if the value exceeds max runes.
func ValidateMaxLength(field, value string, max int) *ValidationError {
	if utf8.RuneCountInString(value) > max {
		return &ValidationError{
			Field:   field,
			Message: fmt.Sprintf("exceeds maximum length of %d characters", max),
		}
	}
	return nil
}

// ValidateUTF8 returns an error if the value is not valid UTF-8.
func ValidateUTF8(field, value string) *ValidationError {
	if !utf8.ValidString(value) {
		return &ValidationError{
			Field:   field,
			Message: "must be valid UTF-8",
		}
	}
	return nil
}

// ValidateULID returns an error if the value is not a valid ULID format.
// ULIDs are 26 characters using Crockford Base32 (excludes I, L, O, U).
func ValidateULID(field, value string) *ValidationError {
	if len(value) != 26 {
		return &ValidationError{
			Field:   field,
			Message: "must be a valid ULID (26 characters)",
		}
	}

	const crockfordBase32 = "0123456789ABCDEFGHJKMNPQRSTVWXYZ"
	for _, r := range value {
		upper := strings.ToUpper(string(r))
		if !strings.Contains(crockfordBase32, upper) {
			return &ValidationError{
				Field:   field,
				Message: "must be a valid ULID (invalid character)",
			}
		}
	}
	return nil
}

// ValidateFieldType returns an error if the value is not a known field type.
func ValidateFieldType(field string, t types.FieldType) *ValidationError {
	if !t.Valid() {
		names := make([]string, len(types.FieldTypes))
		for i, ft := range types.FieldTypes {
			names[i] = string(ft)
		}
		return &ValidationError{
			Field:   field,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(names, ", ")),
		}
	}
	return nil
}

// ValidateField checks a single field definition. The prefix identifies the
// field in error messages, e.g. "fields[3]".
func ValidateField(prefix string, f types.Field) []ValidationError {
	var c Collector
	c.Add(ValidateRequired(prefix+".name", f.Name))
	c.Add(ValidateUTF8(prefix+".name", f.Name))
	c.Add(ValidateMaxLength(prefix+".name", f.Name, MaxNameLength))
	c.Add(ValidateFieldType(prefix+".type", f.Type))
	c.Add(ValidateMaxLength(prefix+".help_text", f.HelpText, MaxHelpTextLength))
	return c.Errors()
}

// ValidateFields checks every field and enforces case-insensitive name
// uniqueness across the whole set.
func ValidateFields(fields []types.Field) []ValidationError {
	var c Collector

	if len(fields) > MaxFieldsPerSchema {
		c.Add(&ValidationError{
			Field:   "fields",
			Message: fmt.Sprintf("exceeds maximum of %d fields", MaxFieldsPerSchema),
		})
	}

	seen := make(map[string]int, len(fields))
	for i, f := range fields {
		prefix := fmt.Sprintf("fields[%d]", i)
		for _, e := range ValidateField(prefix, f) {
			c.Add(&e)
		}

		key := strings.ToLower(strings.TrimSpace(f.Name))
		if key == "" {
			continue
		}
		if first, dup := seen[key]; dup {
			c.Add(&ValidationError{
				Field:   prefix + ".name",
				Message: fmt.Sprintf("duplicates field name at index %d (names are case-insensitively unique)", first),
			})
			continue
		}
		seen[key] = i
	}

	return c.Errors()
}

// ValidateNewSchema checks a schema creation request.
func ValidateNewSchema(s types.NewSchema) []ValidationError {
	var c Collector
	c.Add(ValidateRequired("name", s.Name))
	c.Add(ValidateUTF8("name", s.Name))
	c.Add(ValidateMaxLength("name", s.Name, MaxNameLength))
	c.Add(ValidateMaxLength("description", s.Description, MaxDescriptionLength))
	for _, e := range ValidateFields(s.Fields) {
		c.Add(&e)
	}
	return c.Errors()
}

// ValidateSchemaPatch checks a schema update request.
func ValidateSchemaPatch(p types.SchemaPatch) []ValidationError {
	var c Collector
	if p.Name != nil {
		c.Add(ValidateRequired("name", *p.Name))
		c.Add(ValidateUTF8("name", *p.Name))
		c.Add(ValidateMaxLength("name", *p.Name, MaxNameLength))
	}
	if p.Description != nil {
		c.Add(ValidateMaxLength("description", *p.Description, MaxDescriptionLength))
	}
	if p.Fields != nil {
		for _, e := range ValidateFields(*p.Fields) {
			c.Add(&e)
		}
	}
	if p.BaseVersion.IsZero() && !p.Force {
		c.Add(&ValidationError{
			Field:   "base_version",
			Message: "is required",
		})
	}
	return c.Errors()
}
