package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateSchemaRequiredProperty(t *testing.T) {
	schema := map[string]any{
		"type":       "object",
		"properties": map[string]any{"name": map[string]any{"type": "string"}},
		"required":   []any{"name"},
	}
	result := ValidateSchema(schema, map[string]any{})
	assert.False(t, result.IsValid)
	require.NotEmpty(t, result.Errors)
	assert.Equal(t, CodeMissingRequiredProperty, result.Errors[0].ErrorCode)
}

func TestValidateSchemaStringLength(t *testing.T) {
	schema := map[string]any{"type": "string", "minLength": 5}
	result := ValidateSchema(schema, "hi")
	assert.False(t, result.IsValid)
	assert.Equal(t, CodeStringTooShort, result.Errors[0].ErrorCode)
}

func TestValidateSchemaValidPasses(t *testing.T) {
	schema := map[string]any{"type": "number", "minimum": 0, "maximum": 10}
	result := ValidateSchema(schema, 5)
	assert.True(t, result.IsValid)
	assert.Empty(t, result.Errors)
}

func TestValidateJSONTextInvalidJSON(t *testing.T) {
	schema := map[string]any{"type": "object"}
	result := ValidateJSONText(schema, "{not json")
	assert.False(t, result.IsValid)
	assert.Equal(t, CodeInvalidJSON, result.Errors[0].ErrorCode)
}

func TestMergeAnyInvalidMakesInvalidAndConcatenates(t *testing.T) {
	a := valid()
	b := invalid(FieldError{FieldPath: "$.x", ErrorCode: CodeTypeMismatch})
	merged := Merge(a, b)
	assert.False(t, merged.IsValid)
	assert.Len(t, merged.Errors, 1)
}

type alwaysFailValidator struct{}

func (alwaysFailValidator) Name() string { return "always_fail" }
func (alwaysFailValidator) Validate(data any) Result {
	return invalid(FieldError{FieldPath: "$", ErrorCode: CodeCustomValidationError, Message: "nope"})
}

func TestCustomValidatorRegistry(t *testing.T) {
	reg := NewRegistry()
	reg.Register(alwaysFailValidator{})

	result := reg.Validate("always_fail", nil)
	assert.False(t, result.IsValid)

	unknown := reg.Validate("missing", nil)
	assert.Equal(t, CodeUnknownValidator, unknown.Errors[0].ErrorCode)
}
