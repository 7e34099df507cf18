// Package jsonschema derives JSON Schema documents from Go types via
// reflection. The schemas are used both to constrain structured LLM
// output and to advertise tool parameters.
package jsonschema

import (
	"reflect"
	"strings"
)

// Schema is a JSON Schema document, restricted to the subset needed for
// structured output and tool parameter descriptions.
type Schema struct {
	Type                 string             `json:"type,omitempty"`
	Description          string             `json:"description,omitempty"`
	Required             []string           `json:"required,omitempty"`
	Properties           map[string]*Schema `json:"properties,omitempty"`
	Items                *Schema            `json:"items,omitempty"`
	AdditionalProperties any                `json:"additionalProperties,omitempty"`
	Enum                 []any              `json:"enum,omitempty"`
}

// Generate derives a schema from the type T.
//
// Field behavior is controlled by the `json` tag (property name, skipping)
// and the `jsonschema` tag: the token "required" marks the property
// required, a token "enum=a|b|c" restricts allowed values, and any other
// token becomes the property description.
//
// Example:
//
//	type Decision struct {
//	    Next string `json:"next" jsonschema:"required,enum=researcher|market|FINISH,name of the next agent"`
//	}
func Generate[T any]() *Schema {
	return fromType(reflect.TypeFor[T](), make(map[reflect.Type]bool))
}

func fromType(t reflect.Type, visiting map[reflect.Type]bool) *Schema {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	switch t.Kind() {
	case reflect.String:
		return &Schema{Type: "string"}
	case reflect.Bool:
		return &Schema{Type: "boolean"}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return &Schema{Type: "integer"}
	case reflect.Float32, reflect.Float64:
		return &Schema{Type: "number"}
	case reflect.Slice, reflect.Array:
		return &Schema{Type: "array", Items: fromType(t.Elem(), visiting)}
	case reflect.Map:
		return &Schema{Type: "object", AdditionalProperties: fromType(t.Elem(), visiting)}
	case reflect.Struct:
		// Break recursion on self-referential types with an open object.
		if visiting[t] {
			return &Schema{Type: "object"}
		}
		visiting[t] = true
		defer delete(visiting, t)
		return fromStruct(t, visiting)
	case reflect.Interface:
		return &Schema{}
	default:
		return &Schema{Type: "string"}
	}
}

func fromStruct(t reflect.Type, visiting map[reflect.Type]bool) *Schema {
	schema := &Schema{
		Type:                 "object",
		Properties:           make(map[string]*Schema),
		AdditionalProperties: false,
	}

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		if field.Anonymous {
			embedded := fromStruct(field.Type, visiting)
			for name, prop := range embedded.Properties {
				schema.Properties[name] = prop
			}
			schema.Required = append(schema.Required, embedded.Required...)
			continue
		}

		name := propertyName(field)
		if name == "-" {
			continue
		}

		property := fromType(field.Type, visiting)
		required := applySchemaTag(property, field.Tag.Get("jsonschema"))
		schema.Properties[name] = property
		if required {
			schema.Required = append(schema.Required, name)
		}
	}

	return schema
}

func propertyName(field reflect.StructField) string {
	tag := field.Tag.Get("json")
	if tag == "" {
		return field.Name
	}
	name, _, _ := strings.Cut(tag, ",")
	if name == "" {
		return field.Name
	}
	return name
}

// applySchemaTag mutates the property per the jsonschema tag and reports
// whether the field is required.
func applySchemaTag(property *Schema, tag string) bool {
	required := false
	for _, token := range strings.Split(tag, ",") {
		token = strings.TrimSpace(token)
		switch {
		case token == "":
		case token == "required":
			required = true
		case strings.HasPrefix(token, "enum="):
			for _, value := range strings.Split(strings.TrimPrefix(token, "enum="), "|") {
				property.Enum = append(property.Enum, value)
			}
		default:
			if property.Description == "" {
				property.Description = token
			} else {
				property.Description += ", " + token
			}
		}
	}
	return required
}
