package util

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// ValidationError describes the first argument that failed schema validation.
type ValidationError struct {
	Field   string `json:"field"`
	Value   any    `json:"value"`
	Message string `json:"message"`
}

// Error implements the error interface for ValidationError.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// CreateSchema derives an object JSON schema from a Go struct using reflection.
// Supported tags: json (name, omitempty), description, enum (comma separated).
// Nested structs become nested object schemas.
func CreateSchema(structType any) map[string]any {
	t := reflect.TypeOf(structType)
	if t == nil {
		return map[string]any{"type": "object", "properties": map[string]any{}}
	}
	return objectSchema(t)
}

func objectSchema(t reflect.Type) map[string]any {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return map[string]any{"type": "object", "properties": map[string]any{}}
	}

	properties := make(map[string]any)
	required := make([]string, 0)

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}

		jsonTag := field.Tag.Get("json")
		if jsonTag == "-" {
			continue
		}

		name := field.Name
		if n, _, _ := strings.Cut(jsonTag, ","); n != "" {
			name = n
		}

		properties[name] = fieldSchema(field)

		if !hasOmitEmpty(jsonTag) && field.Type.Kind() != reflect.Ptr {
			required = append(required, name)
		}
	}

	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		sort.Strings(required)
		schema["required"] = required
	}
	return schema
}

func fieldSchema(field reflect.StructField) map[string]any {
	ft := field.Type
	for ft.Kind() == reflect.Ptr {
		ft = ft.Elem()
	}

	var s map[string]any
	if ft.Kind() == reflect.Struct {
		s = objectSchema(ft)
	} else {
		s = map[string]any{"type": jsonType(ft)}
	}
	if ft.Kind() == reflect.Slice || ft.Kind() == reflect.Array {
		s["items"] = map[string]any{"type": jsonType(ft.Elem())}
	}
	if d := field.Tag.Get("description"); d != "" {
		s["description"] = d
	}
	if e := field.Tag.Get("enum"); e != "" {
		values := strings.Split(e, ",")
		enum := make([]any, len(values))
		for i, v := range values {
			enum[i] = strings.TrimSpace(v)
		}
		s["enum"] = enum
	}
	return s
}

// ValidateParameters validates params against a JSON schema map. An empty
// schema accepts anything. The first violation is returned as *ValidationError.
func ValidateParameters(params map[string]any, schema map[string]any) error {
	if len(schema) == 0 {
		return nil
	}
	if params == nil {
		params = map[string]any{}
	}

	result, err := gojsonschema.Validate(gojsonschema.NewGoLoader(schema), gojsonschema.NewGoLoader(params))
	if err != nil {
		return fmt.Errorf("invalid parameter schema: %w", err)
	}
	if result.Valid() {
		return nil
	}

	first := result.Errors()[0]
	field := first.Field()
	if first.Type() == "required" {
		if p, ok := first.Details()["property"].(string); ok {
			field = p
		}
	}
	return &ValidationError{
		Field:   field,
		Value:   first.Value(),
		Message: first.Description(),
	}
}

func jsonType(t reflect.Type) string {
	switch t.Kind() {
	case reflect.String:
		return "string"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return "integer"
	case reflect.Float32, reflect.Float64:
		return "number"
	case reflect.Bool:
		return "boolean"
	case reflect.Slice, reflect.Array:
		return "array"
	case reflect.Map, reflect.Struct:
		return "object"
	case reflect.Ptr:
		return jsonType(t.Elem())
	default:
		return "string"
	}
}

func hasOmitEmpty(tag string) bool {
	parts := strings.Split(tag, ",")
	for _, part := range parts[1:] {
		if strings.TrimSpace(part) == "omitempty" {
			return true
		}
	}
	return false
}
