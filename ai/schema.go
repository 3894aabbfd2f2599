/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package ai

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// SchemaType is a type of JSON value described by JSONSchema.
type SchemaType string

// Schema types.
const (
	SchemaTypeObject  SchemaType = "object"
	SchemaTypeArray   SchemaType = "array"
	SchemaTypeString  SchemaType = "string"
	SchemaTypeNumber  SchemaType = "number"
	SchemaTypeBoolean SchemaType = "boolean"
)

// JSONSchema describes the shape of the object to generate (a subset of JSON Schema).
type JSONSchema struct {
	Type        SchemaType             `json:"type" yaml:"type" validate:"required,oneof=object array string number boolean"`
	Properties  map[string]*JSONSchema `json:"properties,omitempty" yaml:"properties,omitempty" validate:"omitempty,dive,required"`
	Items       *JSONSchema            `json:"items,omitempty" yaml:"items,omitempty"`
	Required    []string               `json:"required,omitempty" yaml:"required,omitempty" validate:"omitempty,dive,required"`
	Description string                 `json:"description,omitempty" yaml:"description,omitempty"`
	// Enum holds allowed string or number values.
	Enum []interface{} `json:"enum,omitempty" yaml:"enum,omitempty"`
}

// Validate checks the schema and all its nested schemas.
func (s *JSONSchema) Validate() error {
	if err := validate.Struct(s); err != nil {
		return fmt.Errorf("invalid schema: %w", err)
	}
	return s.checkRefs("")
}

// checkRefs verifies what the validator tags cannot express: required names refer to declared properties,
// and enum values are strings or numbers.
func (s *JSONSchema) checkRefs(path string) error {
	for _, name := range s.Required {
		if _, ok := s.Properties[name]; !ok {
			return fmt.Errorf("invalid schema: %srequired property %q is not declared", path, name)
		}
	}
	for _, v := range s.Enum {
		switch v.(type) {
		case string, float64, float32, int, int64, int32, uint, uint64, uint32:
		default:
			return fmt.Errorf("invalid schema: %senum value %v should be a string or a number", path, v)
		}
	}
	names := make([]string, 0, len(s.Properties))
	for name := range s.Properties {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := s.Properties[name].checkRefs(path + name + "."); err != nil {
			return err
		}
	}
	if s.Items != nil {
		return s.Items.checkRefs(path + "items.")
	}
	return nil
}

// LoadSchemaFromFile reads a schema from a JSON or YAML file.
func LoadSchemaFromFile(path string) (*JSONSchema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema file: %w", err)
	}
	var schema JSONSchema
	if err = yaml.Unmarshal(data, &schema); err != nil {
		return nil, fmt.Errorf("decode schema file %s: %w", path, err)
	}
	if err = schema.Validate(); err != nil {
		return nil, err
	}
	return &schema, nil
}
