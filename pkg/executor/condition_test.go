package executor

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustExpr(t *testing.T, v any) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

func TestEvaluateConditionVarAndComparison(t *testing.T) {
	vars := map[string]any{"research": map[string]any{"score": 0.9}}
	expr := mustExpr(t, map[string]any{"gte": []any{map[string]any{"var": "research.score"}, 0.5}})

	ok, err := evaluateCondition(expr, vars)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestEvaluateConditionAndOr(t *testing.T) {
	vars := map[string]any{"a": true, "b": false}
	expr := mustExpr(t, map[string]any{"or": []any{
		map[string]any{"and": []any{map[string]any{"var": "a"}, map[string]any{"var": "b"}}},
		map[string]any{"var": "a"},
	}})

	ok, err := evaluateCondition(expr, vars)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestEvaluateConditionNot(t *testing.T) {
	expr := mustExpr(t, map[string]any{"not": map[string]any{"eq": []any{1, 2}}})
	ok, err := evaluateCondition(expr, map[string]any{})
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestEvaluateConditionMissingVarResolvesNil(t *testing.T) {
	expr := mustExpr(t, map[string]any{"eq": []any{map[string]any{"var": "missing.path"}, nil}})
	ok, err := evaluateCondition(expr, map[string]any{"present": 1})
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestEvaluateConditionNonBooleanResultErrors(t *testing.T) {
	expr := mustExpr(t, map[string]any{"var": "x"})
	_, err := evaluateCondition(expr, map[string]any{"x": "not-a-bool"})
	assert.Error(t, err)
}

func TestEvaluateConditionNumericComparisonRejectsNonNumeric(t *testing.T) {
	expr := mustExpr(t, map[string]any{"gt": []any{"abc", 1}})
	_, err := evaluateCondition(expr, map[string]any{})
	assert.Error(t, err)
}
