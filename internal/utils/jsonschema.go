package utils

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// JSONSchemaValidator handles validation against JSON schemas
type JSONSchemaValidator struct {
	schemas map[string]*gojsonschema.Schema
}

// NewJSONSchemaValidator creates a new JSONSchemaValidator
func NewJSONSchemaValidator() *JSONSchemaValidator {
	return &JSONSchemaValidator{
		schemas: make(map[string]*gojsonschema.Schema),
	}
}

// LoadSchema loads and compiles a JSON schema
func (v *JSONSchemaValidator) LoadSchema(name, schema string) error {
	schemaLoader := gojsonschema.NewStringLoader(schema)
	compiledSchema, err := gojsonschema.NewSchema(schemaLoader)
	if err != nil {
		return fmt.Errorf("failed to compile schema %s: %w", name, err)
	}

	v.schemas[name] = compiledSchema
	return nil
}

// ValidateAgainstSchema validates data against a named schema
func (v *JSONSchemaValidator) ValidateAgainstSchema(name string, data interface{}) error {
	schema, ok := v.schemas[name]
	if !ok {
		return fmt.Errorf("schema %s not found", name)
	}

	// Convert data to JSON
	jsonData, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal data: %w", err)
	}

	// Create document loader
	documentLoader := gojsonschema.NewBytesLoader(jsonData)

	// Validate
	result, err := schema.Validate(documentLoader)
	if err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	if !result.Valid() {
		messages := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			messages = append(messages, desc.String())
		}
		return fmt.Errorf("%w: %s", ErrValidation, strings.Join(messages, "; "))
	}

	return nil
}

// RuleSpecSchemaName is the registered name of the rule DSL envelope schema
const RuleSpecSchemaName = "rule_spec"

// RuleSpecSchema is the JSON schema for the rule DSL envelope. Type-specific
// field requirements are enforced separately by models.RuleSpec.Validate.
const RuleSpecSchema = `{
  "type": "object",
  "required": ["type", "scope", "metric", "severity", "messageTemplate"],
  "properties": {
    "type": {
      "type": "string",
      "enum": ["absolute_threshold", "out_of_schedule", "baseline_relative", "budget_window"]
    },
    "scope": {
      "type": "object",
      "properties": {
        "sedeId": {"type": "string"},
        "sector": {"type": "string"}
      }
    },
    "metric": {"type": "string", "minLength": 1},
    "severity": {
      "type": "string",
      "enum": ["low", "medium", "high", "critical"]
    },
    "messageTemplate": {"type": "string", "minLength": 1},
    "condition": {
      "type": "object",
      "properties": {
        "gt": {"type": "number"},
        "gte": {"type": "number"},
        "lt": {"type": "number"},
        "lte": {"type": "number"}
      }
    },
    "schedule": {
      "type": "object",
      "required": ["allowed"],
      "properties": {
        "allowed": {
          "type": "array",
          "items": {
            "type": "object",
            "required": ["from", "to"],
            "properties": {
              "from": {"type": "string"},
              "to": {"type": "string"}
            }
          }
        }
      }
    },
    "baseline": {
      "type": "object",
      "required": ["tolerance_pct"],
      "properties": {
        "tolerance_pct": {"type": "number", "exclusiveMinimum": 0}
      }
    },
    "budget": {
      "type": "object",
      "required": ["amount", "period"],
      "properties": {
        "amount": {"type": "number", "exclusiveMinimum": 0},
        "period": {"type": "string", "enum": ["daily", "weekly", "monthly"]}
      }
    }
  }
}`

// NewRuleSpecValidator returns a validator preloaded with the rule DSL schema
func NewRuleSpecValidator() (*JSONSchemaValidator, error) {
	v := NewJSONSchemaValidator()
	if err := v.LoadSchema(RuleSpecSchemaName, RuleSpecSchema); err != nil {
		return nil, err
	}
	return v, nil
}
