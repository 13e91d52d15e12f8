package router

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// schemaCache compiles each tool's InputSchema once and reuses it across
// calls, mirroring pkg/pluginsdk's ValidateConfig idiom.
var schemaCache sync.Map

func compiledSchema(toolName string, schema map[string]any) (*jsonschema.Schema, error) {
	raw, err := json.Marshal(schema)
	if err != nil {
		return nil, err
	}
	key := toolName + ":" + string(raw)
	if cached, ok := schemaCache.Load(key); ok {
		if compiled, ok := cached.(*jsonschema.Schema); ok {
			return compiled, nil
		}
	}
	compiled, err := jsonschema.CompileString(toolName+".schema.json", string(raw))
	if err != nil {
		return nil, err
	}
	schemaCache.Store(key, compiled)
	return compiled, nil
}

// checkArgsSize rejects an args payload larger than MaxArgsBytes once
// JSON-encoded, the same bound the teacher's tool_registry.go guards against.
func checkArgsSize(tool string, args map[string]any) error {
	raw, err := json.Marshal(args)
	if err != nil {
		return Errorf("invalid_args", "cannot encode args for %s: %v", tool, err)
	}
	if len(raw) > MaxArgsBytes {
		return Errorf("invalid_args", "args for %s exceed %d bytes", tool, MaxArgsBytes)
	}
	return nil
}

// validateArgs checks args against spec.InputSchema, a no-op when the spec
// declares no schema (the twins' read-only list/get tools declare none and
// surface their own invalid_args errors instead).
func validateArgs(spec ToolSpec, args map[string]any) error {
	if len(spec.InputSchema) == 0 {
		return nil
	}
	compiled, err := compiledSchema(spec.Name, spec.InputSchema)
	if err != nil {
		return Errorf("invalid_schema", "tool %s has an invalid input schema: %v", spec.Name, err)
	}

	payload, err := json.Marshal(args)
	if err != nil {
		return Errorf("invalid_args", "cannot encode args for %s: %v", spec.Name, err)
	}
	var decoded any
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return Errorf("invalid_args", "cannot decode args for %s: %v", spec.Name, err)
	}
	if err := compiled.Validate(decoded); err != nil {
		return Errorf("invalid_args", "%s", fmt.Sprintf("args for %s failed validation: %v", spec.Name, err))
	}
	return nil
}
