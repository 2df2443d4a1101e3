package export

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ResultSchema returns the JSON schema (draft 2020-12 subset) of the
// document written by MarshalResult.
func ResultSchema() map[string]any {
	props := map[string]any{
		"id":                 map[string]any{"type": "string", "minLength": 1},
		"file_name":          map[string]any{"type": "string"},
		"date":               nullableField(map[string]any{"type": "string", "pattern": `^\d{4}-\d{2}-\d{2}$`}),
		"amount":             nullableField(decimalProp()),
		"vendor":             nullableField(map[string]any{"type": "string", "minLength": 1}),
		"currency":           map[string]any{"type": "string", "pattern": `^[A-Z]{3}$`},
		"description":        map[string]any{"type": "string", "minLength": 1},
		"confidence":         map[string]any{"type": "number", "minimum": 0.0, "maximum": 1.0},
		"ocr_used":           map[string]any{"type": "boolean"},
		"acquisition_method": map[string]any{"type": "string", "enum": []string{"pdf-text", "pdf-ocr", "image-ocr"}},
		"page_count":         map[string]any{"type": "integer", "minimum": 0},
		"content_hash":       map[string]any{"type": "string"},
		"processing_time_ms": map[string]any{"type": "integer", "minimum": 0},
		"raw_text":           map[string]any{"type": "string"},
	}
	required := []string{"id", "date", "amount", "vendor", "currency", "description", "confidence", "ocr_used", "acquisition_method"}

	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties":           props,
		"required":             required,
	}
}

// nullableField wraps a value schema as {"value": ..., "confidence": ...} or null.
func nullableField(value map[string]any) map[string]any {
	return map[string]any{
		"oneOf": []any{
			map[string]any{"type": "null"},
			map[string]any{
				"type":                 "object",
				"additionalProperties": false,
				"properties": map[string]any{
					"value":      value,
					"confidence": map[string]any{"type": "number", "minimum": 0.0, "maximum": 1.0},
					"snippet":    map[string]any{"type": "string"},
				},
				"required": []string{"value", "confidence"},
			},
		},
	}
}

func decimalProp() map[string]any {
	return map[string]any{
		"type":    "string",
		"pattern": `^\d+\.\d{2}$`,
	}
}

var (
	compileOnce    sync.Once
	compiledSchema *jsonschema.Schema
	compileErr     error
)

func resultSchema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		compiledSchema, compileErr = compileSchema(ResultSchema())
	})
	return compiledSchema, compileErr
}

func compileSchema(schemaMap map[string]any) (*jsonschema.Schema, error) {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("result.json", bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("result.json")
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return schema, nil
}

// ValidateResultJSON validates data against ResultSchema.
func ValidateResultJSON(data []byte) error {
	schema, err := resultSchema()
	if err != nil {
		return err
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
