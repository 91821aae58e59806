package tool

import (
	"context"
	"encoding/json"

	"github.com/invopop/jsonschema"
)

// RegisterTyped derives meta.Parameters from a Go struct's JSON-Schema
// representation (via invopop/jsonschema) rather than requiring the caller
// to hand-write one, then registers the tool as usual. fn receives params
// already decoded into a fresh *T.
func RegisterTyped[T any](m *Manager, name, description, category string, fn func(ctx context.Context, params *T) (any, error)) error {
	reflector := &jsonschema.Reflector{DoNotReference: true, ExpandedStruct: true}
	schema := reflector.Reflect(new(T))

	paramSchema, err := marshalParams(schema)
	if err != nil {
		return err
	}

	meta := Metadata{
		Name:        name,
		Description: description,
		Category:    category,
		Parameters:  paramSchema,
		Function: func(ctx context.Context, params map[string]any) (any, error) {
			raw, err := json.Marshal(params)
			if err != nil {
				return nil, err
			}
			var typed T
			if err := json.Unmarshal(raw, &typed); err != nil {
				return nil, err
			}
			return fn(ctx, &typed)
		},
	}
	return m.RegisterTool(meta)
}
