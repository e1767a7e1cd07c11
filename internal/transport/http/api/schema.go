package apihttp

import (
	"encoding/json"
	"fmt"
	"strings"

	"payguard/internal/types"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/tidwall/gjson"
)

const candidateSchemaDefs = `
  "$defs": {
    "amount": {"type": ["number", "string"]},
    "candidate": {
      "type": "object",
      "required": ["id", "block_offset", "estimated_output_usd", "gas_cost_usd", "mev_risk_score"],
      "properties": {
        "id": {"type": "string", "minLength": 1},
        "block_offset": {"type": "integer", "minimum": 0},
        "estimated_output_usd": {"$ref": "#/$defs/amount"},
        "gas_cost_usd": {"$ref": "#/$defs/amount"},
        "mev_risk_score": {"type": "integer", "minimum": 0, "maximum": 100},
        "price_impact_percent": {"$ref": "#/$defs/amount"},
        "mempool_snapshot": {
          "type": "object",
          "properties": {
            "bots_detected": {"type": "integer", "minimum": 0},
            "pending_tx_count": {"type": "integer", "minimum": 0}
          }
        }
      }
    }
  }`

const recommendSchemaJSON = `{
  "type": "object",
  "required": ["candidates"],
  "properties": {
    "candidates": {"type": "array", "minItems": 1, "items": {"$ref": "#/$defs/candidate"}},
    "priority": {"type": "string"},
    "risk_tolerance": {"type": "string"}
  },` + candidateSchemaDefs + `
}`

const executionSchemaJSON = `{
  "type": "object",
  "required": ["mode", "payroll", "netting"],
  "properties": {
    "mode": {"type": "string", "minLength": 1},
    "payroll": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["amount", "from_token", "to_token"],
        "properties": {
          "amount": {"$ref": "#/$defs/amount"},
          "from_token": {"type": "string", "minLength": 1},
          "to_token": {"type": "string", "minLength": 1}
        }
      }
    },
    "netting": {
      "type": "object",
      "required": ["netted_transactions", "gas_savings_usd", "netted_gas_cost", "execution_time_estimate"],
      "properties": {
        "netted_transactions": {"type": "integer", "minimum": 0},
        "gas_savings_usd": {"$ref": "#/$defs/amount"},
        "netted_gas_cost": {"$ref": "#/$defs/amount"},
        "execution_time_estimate": {"type": "integer", "minimum": 0}
      }
    },
    "candidate": {"$ref": "#/$defs/candidate"}
  },` + candidateSchemaDefs + `
}`

var (
	recommendSchema = mustCompileSchema("recommend.json", recommendSchemaJSON)
	executionSchema = mustCompileSchema("execution.json", executionSchemaJSON)
)

func mustCompileSchema(name, raw string) *jsonschema.Schema {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, strings.NewReader(raw)); err != nil {
		panic(fmt.Sprintf("add schema %s: %v", name, err))
	}
	return compiler.MustCompile(name)
}

// validateBody checks raw is a JSON object that satisfies schema. Errors wrap
// types.ErrInvalidInput.
func validateBody(schema *jsonschema.Schema, raw []byte) error {
	if len(raw) == 0 {
		return fmt.Errorf("%w: request body is empty", types.ErrInvalidInput)
	}
	if !gjson.ValidBytes(raw) {
		return fmt.Errorf("%w: request body is not valid JSON", types.ErrInvalidInput)
	}
	if !gjson.ParseBytes(raw).IsObject() {
		return fmt.Errorf("%w: request body must be a JSON object", types.ErrInvalidInput)
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("%w: %v", types.ErrInvalidInput, err)
	}
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("%w: %s", types.ErrInvalidInput, schemaMessage(err))
	}
	return nil
}

// schemaMessage flattens a validation error to its deepest causes.
func schemaMessage(err error) string {
	verr, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return err.Error()
	}
	var parts []string
	var walk func(e *jsonschema.ValidationError)
	walk = func(e *jsonschema.ValidationError) {
		if len(e.Causes) == 0 {
			loc := e.InstanceLocation
			if loc == "" {
				loc = "/"
			}
			parts = append(parts, loc+": "+e.Message)
			return
		}
		for _, c := range e.Causes {
			walk(c)
		}
	}
	walk(verr)
	return strings.Join(parts, "; ")
}
