package router

// RequiredSchema builds a minimal JSON Schema asserting args is an object
// carrying every name in fields, for ToolSpec.InputSchema on tools whose
// handler would otherwise fail silently on a missing required field.
func RequiredSchema(fields ...string) map[string]any {
	return map[string]any{
		"type":     "object",
		"required": fields,
	}
}
