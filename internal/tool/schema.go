package tool

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// FieldType is the JSON type of one argument
type FieldType string

const (
	TypeString  FieldType = "string"
	TypeInteger FieldType = "integer"
	TypeNumber  FieldType = "number"
	TypeBoolean FieldType = "boolean"
	TypeObject  FieldType = "object"
	TypeArray   FieldType = "array"
)

// Field describes one named argument
type Field struct {
	Name        string
	Type        FieldType
	Description string
	Required    bool
	Enum        []string
}

// Schema is the ordered argument list of a tool.
// Raw, when set, replaces the generated JSON schema sent to the model
// (used for MCP tools whose schemas are richer than a flat field list).
type Schema struct {
	Fields []Field
	Raw    map[string]any
}

// NewSchema builds a schema from fields in declaration order
func NewSchema(fields ...Field) Schema {
	return Schema{Fields: fields}
}

// JSONSchema renders the schema in the function-calling format
func (s Schema) JSONSchema() map[string]any {
	if s.Raw != nil {
		return s.Raw
	}

	props := make(map[string]any, len(s.Fields))
	required := make([]string, 0)
	for _, f := range s.Fields {
		prop := map[string]any{"type": string(f.Type)}
		if f.Description != "" {
			prop["description"] = f.Description
		}
		if len(f.Enum) > 0 {
			prop["enum"] = f.Enum
		}
		props[f.Name] = prop
		if f.Required {
			required = append(required, f.Name)
		}
	}

	out := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		out["required"] = required
	}
	return out
}

// Parse decodes a raw JSON object and validates it against the schema.
// Empty input is treated as an empty object.
func (s Schema) Parse(raw json.RawMessage) (Arguments, error) {
	values := map[string]any{}
	if trimmed := bytes.TrimSpace(raw); len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null")) {
		dec := json.NewDecoder(bytes.NewReader(trimmed))
		dec.UseNumber()
		if err := dec.Decode(&values); err != nil {
			return nil, kindErrorf(ErrInvalidToolArguments, "arguments are not a JSON object: %v", err)
		}
	}
	return s.Validate(values)
}

// Validate checks required fields and coerces primitive values to their declared types.
// Unknown fields are passed through untouched.
func (s Schema) Validate(values map[string]any) (Arguments, error) {
	args := make(Arguments, len(values))
	for k, v := range values {
		args[k] = v
	}

	for _, f := range s.Fields {
		v, ok := values[f.Name]
		if !ok || v == nil {
			if f.Required {
				return nil, kindErrorf(ErrInvalidToolArguments, "missing required field %q", f.Name)
			}
			delete(args, f.Name)
			continue
		}

		coerced, err := coerce(f.Type, v)
		if err != nil {
			return nil, kindErrorf(ErrInvalidToolArguments, "field %q: %v", f.Name, err)
		}
		if len(f.Enum) > 0 && !inEnum(f.Enum, coerced) {
			return nil, kindErrorf(ErrInvalidToolArguments, "field %q: %v is not one of %s", f.Name, coerced, strings.Join(f.Enum, ", "))
		}
		args[f.Name] = coerced
	}

	return args, nil
}

type coercionError struct {
	want FieldType
	got  any
}

func (e *coercionError) Error() string {
	return "cannot use " + describe(e.got) + " as " + string(e.want)
}

func describe(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "value"
	}
	return string(b)
}

func coerce(t FieldType, v any) (any, error) {
	switch t {
	case TypeString:
		switch x := v.(type) {
		case string:
			return x, nil
		case json.Number:
			return x.String(), nil
		case float64:
			return strconv.FormatFloat(x, 'f', -1, 64), nil
		case bool:
			return strconv.FormatBool(x), nil
		}
	case TypeInteger:
		switch x := v.(type) {
		case json.Number:
			return parseInteger(x.String())
		case float64:
			if x == math.Trunc(x) && !math.IsInf(x, 0) {
				return int64(x), nil
			}
		case int:
			return int64(x), nil
		case int64:
			return x, nil
		case string:
			return parseInteger(strings.TrimSpace(x))
		}
	case TypeNumber:
		switch x := v.(type) {
		case json.Number:
			return x.Float64()
		case float64:
			return x, nil
		case int:
			return float64(x), nil
		case int64:
			return float64(x), nil
		case string:
			return strconv.ParseFloat(strings.TrimSpace(x), 64)
		}
	case TypeBoolean:
		switch x := v.(type) {
		case bool:
			return x, nil
		case string:
			return strconv.ParseBool(strings.TrimSpace(x))
		}
	case TypeObject:
		if x, ok := v.(map[string]any); ok {
			return x, nil
		}
	case TypeArray:
		if x, ok := v.([]any); ok {
			return x, nil
		}
	default:
		return v, nil
	}
	return nil, &coercionError{want: t, got: v}
}

// parseInteger accepts "5000" as well as integral floats such as "5000.0" or "5e3"
func parseInteger(s string) (any, error) {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != math.Trunc(f) || math.Abs(f) > math.MaxInt64 {
		return nil, &coercionError{want: TypeInteger, got: s}
	}
	return int64(f), nil
}

func inEnum(enum []string, v any) bool {
	s, ok := v.(string)
	if !ok {
		return false
	}
	for _, e := range enum {
		if e == s {
			return true
		}
	}
	return false
}

// Arguments are validated tool arguments keyed by field name
type Arguments map[string]any

// String returns a string argument or "" when absent
func (a Arguments) String(name string) string {
	s, _ := a[name].(string)
	return s
}

// Int returns an integer argument or 0 when absent
func (a Arguments) Int(name string) int64 {
	n, _ := a[name].(int64)
	return n
}

// Float returns a number argument or 0 when absent
func (a Arguments) Float(name string) float64 {
	f, _ := a[name].(float64)
	return f
}

// Bool returns a boolean argument or false when absent
func (a Arguments) Bool(name string) bool {
	b, _ := a[name].(bool)
	return b
}

// Has reports whether the argument was supplied
func (a Arguments) Has(name string) bool {
	_, ok := a[name]
	return ok
}
