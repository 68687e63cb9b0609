package review

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// editSchema constrains a review-edit payload to the known record fields
// with JSON-representable value kinds; amounts may arrive as numbers or
// strings, dates as strings.
var editSchema = map[string]any{
	"type":                 "object",
	"additionalProperties": false,
	"properties": map[string]any{
		FieldVendorName:        map[string]any{"type": []string{"string", "null"}},
		FieldTotalAmount:       map[string]any{"type": []string{"number", "string", "null"}},
		FieldTxDate:            map[string]any{"type": []string{"string", "null"}},
		FieldTextExcerpt:       map[string]any{"type": []string{"string", "null"}},
		FieldSuggestedCategory: map[string]any{"type": []string{"string", "null"}},
		FieldExpenseArticle:    map[string]any{"type": []string{"string", "null"}},
		FieldDeductible:        map[string]any{"type": []string{"boolean", "null"}},
	},
}

// DecodeEdit validates an incoming review-edit document against the edit
// schema and decodes it into diff input.
func DecodeEdit(payload []byte) (map[string]any, error) {
	if err := validateJSONAgainstSchema(editSchema, payload); err != nil {
		return nil, err
	}
	var edit map[string]any
	if err := json.Unmarshal(payload, &edit); err != nil {
		return nil, fmt.Errorf("unmarshal edit: %w", err)
	}
	return edit, nil
}

// validateJSONAgainstSchema validates data against schemaMap.
func validateJSONAgainstSchema(schemaMap map[string]any, data []byte) error {
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
