package tool

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchema_ParseCoercion(t *testing.T) {
	s := NewSchema(
		Field{Name: "s", Type: TypeString},
		Field{Name: "i", Type: TypeInteger},
		Field{Name: "n", Type: TypeNumber},
		Field{Name: "b", Type: TypeBoolean},
	)

	tests := []struct {
		name string
		raw  string
		want Arguments
	}{
		{"native types", `{"s":"x","i":7,"n":1.5,"b":true}`, Arguments{"s": "x", "i": int64(7), "n": 1.5, "b": true}},
		{"strings to primitives", `{"i":"42","n":"0.25","b":"false"}`, Arguments{"i": int64(42), "n": 0.25, "b": false}},
		{"number to string", `{"s":12}`, Arguments{"s": "12"}},
		{"integral float", `{"i":5000.0}`, Arguments{"i": int64(5000)}},
		{"large integer keeps precision", `{"i":9007199254740993}`, Arguments{"i": int64(9007199254740993)}},
		{"empty input", ``, Arguments{}},
		{"null optional dropped", `{"s":null}`, Arguments{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.Parse([]byte(tt.raw))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSchema_ParseRejects(t *testing.T) {
	s := NewSchema(
		Field{Name: "i", Type: TypeInteger, Required: true},
		Field{Name: "mode", Type: TypeString, Enum: []string{"fast", "safe"}},
	)

	for _, raw := range []string{
		`{}`,
		`{"i":1.5}`,
		`{"i":true}`,
		`{"i":1,"mode":"yolo"}`,
		`[1,2]`,
		`not json`,
	} {
		_, err := s.Parse([]byte(raw))
		assert.True(t, errors.Is(err, ErrInvalidToolArguments), "input %s: %v", raw, err)
	}
}

func TestSchema_JSONSchema(t *testing.T) {
	s := NewSchema(
		Field{Name: "url", Type: TypeString, Description: "page", Required: true},
	)

	js := s.JSONSchema()
	assert.Equal(t, "object", js["type"])
	assert.Equal(t, []string{"url"}, js["required"])

	props := js["properties"].(map[string]any)
	assert.Equal(t, map[string]any{"type": "string", "description": "page"}, props["url"])

	raw := Schema{Raw: map[string]any{"type": "object"}}
	assert.Equal(t, map[string]any{"type": "object"}, raw.JSONSchema())
}

func TestSchema_NoFieldsOmitsRequired(t *testing.T) {
	js := NewSchema().JSONSchema()
	_, ok := js["required"]
	assert.False(t, ok)
}
