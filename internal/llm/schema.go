package llm

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// BuildTranscriptionJSONSchema returns the JSON-Schema the model answer must satisfy.
// It is sent with the prompt and used locally to validate.
func BuildTranscriptionJSONSchema() map[string]any {
	line := map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"code":        map[string]any{"type": "string"},
			"description": map[string]any{"type": "string"},
			"quantity":    map[string]any{"type": "string", "pattern": `^-?[0-9][0-9 .,]*$`},
			"unit":        map[string]any{"type": "string", "maxLength": 20},
			"order_ref":   map[string]any{"type": "string"},
		},
		"required": []string{"description", "quantity"},
	}
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"text":          map[string]any{"type": "string"},
			"document_type": map[string]any{"type": "string", "enum": []string{"delivery", "order", "invoice", "unknown"}},
			"lines":         map[string]any{"type": "array", "items": line},
		},
		"required": []string{"text"},
	}
}

// ValidateJSONAgainstSchema validates data against schemaMap.
func ValidateJSONAgainstSchema(schemaMap map[string]any, data []byte) error {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", bytes.NewReader(b)); err != nil {
		return fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("schema.json")
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal data: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("json does not match schema: %w", err)
	}
	return nil
}
