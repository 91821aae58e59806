package validation

import (
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/xeipuuv/gojsonschema"
)

// ValidateSchema checks data against the JSON-Schema subset named in §4.8
// (types, minLength/maxLength, pattern, minimum/maximum, properties,
// required, items), backed by gojsonschema and remapped onto the coded
// error list so callers never depend on that library's own vocabulary.
func ValidateSchema(schema map[string]any, data any) Result {
	schemaBytes, err := json.Marshal(schema)
	if err != nil {
		return invalid(FieldError{FieldPath: "$", Message: err.Error(), ErrorCode: CodeInvalidSchema})
	}

	schemaLoader := gojsonschema.NewBytesLoader(schemaBytes)
	docLoader := gojsonschema.NewGoLoader(data)

	result, err := gojsonschema.Validate(schemaLoader, docLoader)
	if err != nil {
		return invalid(FieldError{FieldPath: "$", Message: err.Error(), ErrorCode: CodeInvalidSchema})
	}

	if result.Valid() {
		return valid()
	}

	var out []FieldError
	for _, e := range result.Errors() {
		out = append(out, FieldError{
			FieldPath: "$" + fieldSuffix(e.Field()),
			Message:   e.Description(),
			ErrorCode: codeFor(e),
			Expected:  e.Details()["expected"],
			Actual:    e.Details()["given"],
		})
	}
	return invalid(out...)
}

func fieldSuffix(field string) string {
	if field == "" || field == "(root)" {
		return ""
	}
	return "." + field
}

// codeFor maps a gojsonschema result error's Type() onto §4.8's coded list.
func codeFor(e gojsonschema.ResultError) ErrorCode {
	switch e.Type() {
	case "invalid_type":
		return CodeTypeMismatch
	case "string_gte":
		return CodeStringTooShort
	case "string_lte":
		return CodeStringTooLong
	case "pattern":
		return CodePatternMismatch
	case "number_gte", "number_gt":
		return CodeNumberTooSmall
	case "number_lte", "number_lt":
		return CodeNumberTooLarge
	case "required":
		return CodeMissingRequiredProperty
	default:
		return CodeCustomValidationError
	}
}

// ValidateJSONText parses text as JSON, surfacing INVALID_JSON on parse
// failure before schema validation ever runs.
func ValidateJSONText(schema map[string]any, text string) Result {
	var data any
	if err := json.Unmarshal([]byte(text), &data); err != nil {
		return invalid(FieldError{FieldPath: "$", Message: err.Error(), ErrorCode: CodeInvalidJSON})
	}
	return ValidateSchema(schema, data)
}

// CompileRegex validates a pattern string ahead of use, surfacing
// INVALID_REGEX_PATTERN rather than panicking inside a validator.
func CompileRegex(pattern string) (*regexp.Regexp, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", CodeInvalidRegexPattern, err)
	}
	return re, nil
}
