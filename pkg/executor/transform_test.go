package executor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunTransformUppercaseLowercase(t *testing.T) {
	out, err := RunTransform("uppercase", []any{"hello"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "HELLO", out)

	out, err = RunTransform("lowercase", []any{"WORLD"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "world", out)
}

func TestRunTransformConcat(t *testing.T) {
	out, err := RunTransform("concat", []any{"a", "b", "c"}, map[string]any{"separator": "-"})
	require.NoError(t, err)
	assert.Equal(t, "a-b-c", out)
}

func TestRunTransformTemplate(t *testing.T) {
	out, err := RunTransform("template", []any{"Ada"}, map[string]any{"template": "hello {0}"})
	require.NoError(t, err)
	assert.Equal(t, "hello Ada", out)
}

func TestRunTransformJSONExtractFromStringInput(t *testing.T) {
	out, err := RunTransform("json_extract", []any{`{"user":{"name":"Ada"}}`}, map[string]any{"path": "user.name"})
	require.NoError(t, err)
	assert.Equal(t, "Ada", out)
}

func TestRunTransformJSONExtractMissingPathYieldsNil(t *testing.T) {
	out, err := RunTransform("json_extract", []any{`{"user":{}}`}, map[string]any{"path": "user.name"})
	require.NoError(t, err)
	assert.Nil(t, out)
}

func TestRunTransformUnknownNameErrors(t *testing.T) {
	_, err := RunTransform("does-not-exist", nil, nil)
	assert.Error(t, err)
}
