package executor

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/graphbit-dev/graphbit/pkg/ids"
)

// TransformFunc is a pure, non-blocking named transformation (§4.5: "the
// spec mandates only that transforms are pure and must not block on I/O").
type TransformFunc func(inputs []any, params map[string]any) (any, error)

// transformRegistry is the built-in set of named transforms (§C).
var transformRegistry = map[string]TransformFunc{
	"uppercase":    transformUppercase,
	"lowercase":    transformLowercase,
	"json_extract": transformJSONExtract,
	"concat":       transformConcat,
	"template":     transformTemplate,
}

// RunTransform dispatches to a registered named transform.
func RunTransform(name string, inputs []any, params map[string]any) (any, error) {
	fn, ok := transformRegistry[name]
	if !ok {
		return nil, ids.NewErrorf(ids.KindWorkflowExecution, "unknown transform %q", name)
	}
	return fn(inputs, params)
}

func transformUppercase(inputs []any, _ map[string]any) (any, error) {
	return strings.ToUpper(fmt.Sprint(firstOrEmpty(inputs))), nil
}

func transformLowercase(inputs []any, _ map[string]any) (any, error) {
	return strings.ToLower(fmt.Sprint(firstOrEmpty(inputs))), nil
}

// transformJSONExtract reads params["path"], a dot-separated path, out of
// the first input (parsed as JSON if it's a string).
func transformJSONExtract(inputs []any, params map[string]any) (any, error) {
	path, _ := params["path"].(string)
	if path == "" {
		return nil, ids.NewError(ids.KindWorkflowExecution, `json_extract requires a "path" param`)
	}

	var doc any = firstOrEmpty(inputs)
	if s, ok := doc.(string); ok {
		var parsed any
		if err := json.Unmarshal([]byte(s), &parsed); err == nil {
			doc = parsed
		}
	}

	cur := doc
	for _, seg := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, nil
		}
		cur = m[seg]
	}
	return cur, nil
}

// transformConcat joins every input's string form with params["separator"]
// (default "").
func transformConcat(inputs []any, params map[string]any) (any, error) {
	sep, _ := params["separator"].(string)
	parts := make([]string, len(inputs))
	for i, in := range inputs {
		parts[i] = fmt.Sprint(in)
	}
	return strings.Join(parts, sep), nil
}

// transformTemplate substitutes {0}, {1}, ... placeholders in
// params["template"] with the string form of each input in order.
func transformTemplate(inputs []any, params map[string]any) (any, error) {
	tpl, _ := params["template"].(string)
	out := tpl
	for i, in := range inputs {
		placeholder := fmt.Sprintf("{%d}", i)
		out = strings.ReplaceAll(out, placeholder, fmt.Sprint(in))
	}
	return out, nil
}

func firstOrEmpty(inputs []any) any {
	if len(inputs) == 0 {
		return ""
	}
	return inputs[0]
}
