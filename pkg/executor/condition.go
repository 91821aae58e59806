package executor

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/graphbit-dev/graphbit/pkg/ids"
)

// evaluateCondition interprets a JSON-predicate mini-language document
// against vars, resolving the §9 Open Question on condition expressions
// (DESIGN.md decision 2). Supported forms:
//
//	{"var": "node.field"}          resolves a dotted path against vars
//	{"eq": [a, b]}, {"ne": [a, b]}
//	{"gt": [a, b]}, {"gte": [a, b]}, {"lt": [a, b]}, {"lte": [a, b]}
//	{"and": [expr, ...]}, {"or": [expr, ...]}, {"not": expr}
//
// literal JSON values (bool/number/string) evaluate to themselves.
func evaluateCondition(expr json.RawMessage, vars map[string]any) (bool, error) {
	var node any
	if err := json.Unmarshal(expr, &node); err != nil {
		return false, ids.Wrap(ids.KindWorkflowExecution, "parse condition expression", err)
	}
	v, err := evalNode(node, vars)
	if err != nil {
		return false, err
	}
	b, ok := v.(bool)
	if !ok {
		return false, ids.NewErrorf(ids.KindWorkflowExecution, "condition expression did not resolve to a boolean: %v", v)
	}
	return b, nil
}

func evalNode(node any, vars map[string]any) (any, error) {
	obj, ok := node.(map[string]any)
	if !ok {
		return node, nil // literal
	}
	if len(obj) != 1 {
		return nil, ids.NewErrorf(ids.KindWorkflowExecution, "condition node must have exactly one operator, got %d", len(obj))
	}

	for op, arg := range obj {
		switch op {
		case "var":
			path, ok := arg.(string)
			if !ok {
				return nil, ids.NewError(ids.KindWorkflowExecution, `"var" requires a string path`)
			}
			return resolvePath(path, vars), nil
		case "not":
			v, err := evalNode(arg, vars)
			if err != nil {
				return nil, err
			}
			b, _ := v.(bool)
			return !b, nil
		case "and", "or":
			items, ok := arg.([]any)
			if !ok {
				return nil, ids.NewErrorf(ids.KindWorkflowExecution, "%q requires an array of expressions", op)
			}
			result := op == "and"
			for _, item := range items {
				v, err := evalNode(item, vars)
				if err != nil {
					return nil, err
				}
				b, _ := v.(bool)
				if op == "and" {
					result = result && b
				} else {
					result = result || b
				}
			}
			return result, nil
		case "eq", "ne", "gt", "gte", "lt", "lte":
			pair, ok := arg.([]any)
			if !ok || len(pair) != 2 {
				return nil, ids.NewErrorf(ids.KindWorkflowExecution, "%q requires a two-element array", op)
			}
			lhs, err := evalNode(pair[0], vars)
			if err != nil {
				return nil, err
			}
			rhs, err := evalNode(pair[1], vars)
			if err != nil {
				return nil, err
			}
			return compare(op, lhs, rhs)
		default:
			return nil, ids.NewErrorf(ids.KindWorkflowExecution, "unknown condition operator %q", op)
		}
	}
	panic("unreachable")
}

func compare(op string, lhs, rhs any) (bool, error) {
	if op == "eq" {
		return fmt.Sprint(lhs) == fmt.Sprint(rhs), nil
	}
	if op == "ne" {
		return fmt.Sprint(lhs) != fmt.Sprint(rhs), nil
	}

	lf, lok := toFloat(lhs)
	rf, rok := toFloat(rhs)
	if !lok || !rok {
		return false, ids.NewErrorf(ids.KindWorkflowExecution, "%q requires numeric operands, got %v and %v", op, lhs, rhs)
	}
	switch op {
	case "gt":
		return lf > rf, nil
	case "gte":
		return lf >= rf, nil
	case "lt":
		return lf < rf, nil
	case "lte":
		return lf <= rf, nil
	}
	return false, ids.NewErrorf(ids.KindWorkflowExecution, "unknown comparison operator %q", op)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// resolvePath walks a dotted path ("node.field") through nested
// map[string]any values, returning nil when any segment is absent.
func resolvePath(path string, vars map[string]any) any {
	segments := strings.Split(path, ".")
	var cur any = vars
	for _, seg := range segments {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur, ok = m[seg]
		if !ok {
			return nil
		}
	}
	return cur
}
