// Package validation checks definition documents before execution: JSON
// Schema validation of the step list, then semantic checks the schema
// cannot express.
package validation

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/rendis/weave/pkg/schema"
)

// stepsSchemaJSON is the JSON Schema for a workflow step list. Embedded as
// a constant to avoid filesystem dependencies. Unrecognized step types are
// legal here (the parser skips them); the semantic pass warns about them.
const stepsSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "$id": "https://weave.dev/schemas/steps.json",
  "type": "array",
  "minItems": 1,
  "items": { "$ref": "#/$defs/step" },
  "$defs": {
    "step": {
      "type": "object",
      "required": ["type"],
      "properties": {
        "id": { "type": "string", "minLength": 1 },
        "type": { "type": "string", "minLength": 1 },
        "next": { "type": "string" },
        "trueNext": { "type": "string" },
        "falseNext": { "type": "string" }
      },
      "additionalProperties": {
        "type": ["string", "number", "boolean", "object", "array", "null"]
      }
    }
  }
}`

// JSONSchemaValidator validates step lists and seed inputs using JSON
// Schema Draft 2020-12. It is safe for concurrent use.
type JSONSchemaValidator struct {
	stepsSchema *jsonschema.Schema

	// mu guards the cache for dynamic input-schema compilation.
	mu    sync.RWMutex
	cache map[string]*jsonschema.Schema
}

// NewJSONSchemaValidator creates a validator with the steps schema
// pre-compiled.
func NewJSONSchemaValidator() (*JSONSchemaValidator, error) {
	c := jsonschema.NewCompiler()
	c.AssertFormat()

	schemaDoc, err := jsonschema.UnmarshalJSON(strings.NewReader(stepsSchemaJSON))
	if err != nil {
		return nil, fmt.Errorf("unmarshal steps schema: %w", err)
	}
	if err := c.AddResource("https://weave.dev/schemas/steps.json", schemaDoc); err != nil {
		return nil, fmt.Errorf("add steps schema resource: %w", err)
	}
	compiled, err := c.Compile("https://weave.dev/schemas/steps.json")
	if err != nil {
		return nil, fmt.Errorf("compile steps schema: %w", err)
	}

	return &JSONSchemaValidator{
		stepsSchema: compiled,
		cache:       make(map[string]*jsonschema.Schema),
	}, nil
}

// ValidateSteps validates the decoded step list of one workflow block.
func (v *JSONSchemaValidator) ValidateSteps(records []schema.StepRecord) error {
	if len(records) == 0 {
		return schema.NewError(schema.ErrCodeValidation, "workflow has no steps")
	}
	doc, err := toJSONValue(records)
	if err != nil {
		return schema.NewError(schema.ErrCodeValidation, "failed to serialize steps").WithCause(err)
	}
	if err := v.stepsSchema.Validate(doc); err != nil {
		return toWeaveError(err)
	}
	return nil
}

// ValidateInput validates seed variables against a JSON Schema provided as
// raw bytes. The compiled schema is cached for subsequent calls.
func (v *JSONSchemaValidator) ValidateInput(input map[string]any, inputSchema []byte) error {
	if len(inputSchema) == 0 {
		return nil
	}
	if input == nil {
		input = map[string]any{}
	}

	compiled, err := v.getOrCompile(inputSchema)
	if err != nil {
		return schema.NewError(schema.ErrCodeValidation, "invalid input schema").WithCause(err)
	}

	doc, err := toJSONValue(input)
	if err != nil {
		return schema.NewError(schema.ErrCodeValidation, "failed to serialize input").WithCause(err)
	}
	if err := compiled.Validate(doc); err != nil {
		return toWeaveError(err)
	}
	return nil
}

// getOrCompile returns a cached compiled schema or compiles and caches a new one.
func (v *JSONSchemaValidator) getOrCompile(schemaBytes []byte) (*jsonschema.Schema, error) {
	key := string(schemaBytes)

	v.mu.RLock()
	if cached, ok := v.cache[key]; ok {
		v.mu.RUnlock()
		return cached, nil
	}
	v.mu.RUnlock()

	v.mu.Lock()
	defer v.mu.Unlock()

	// Double-check after acquiring write lock.
	if cached, ok := v.cache[key]; ok {
		return cached, nil
	}

	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(key))
	if err != nil {
		return nil, fmt.Errorf("unmarshal schema: %w", err)
	}

	// Each dynamic schema gets a unique URL to avoid compiler collisions.
	url := fmt.Sprintf("weave://input-schema/%d", len(v.cache))
	c := jsonschema.NewCompiler()
	c.AssertFormat()
	if err := c.AddResource(url, doc); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	compiled, err := c.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}

	v.cache[key] = compiled
	return compiled, nil
}

// toJSONValue round-trips a Go value through JSON encoding/decoding so that
// numeric values become json.Number (required by the jsonschema library).
func toJSONValue(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return jsonschema.UnmarshalJSON(strings.NewReader(string(b)))
}

// toWeaveError converts a jsonschema.ValidationError into a WeaveError
// with the leaf violations collected into details.
func toWeaveError(err error) *schema.WeaveError {
	verr, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return schema.NewError(schema.ErrCodeValidation, err.Error())
	}

	violations := collectViolations(verr)
	if len(violations) == 0 {
		return schema.NewError(schema.ErrCodeValidation, verr.Error())
	}
	if len(violations) == 1 {
		return schema.NewError(schema.ErrCodeValidation, violations[0]).
			WithDetails(map[string]any{"violations": violations})
	}

	msg := fmt.Sprintf("validation failed with %d errors", len(violations))
	return schema.NewError(schema.ErrCodeValidation, msg).
		WithDetails(map[string]any{"violations": violations})
}

// collectViolations walks a ValidationError tree and collects leaf error
// messages with their instance locations.
func collectViolations(verr *jsonschema.ValidationError) []string {
	if len(verr.Causes) == 0 {
		loc := "/"
		if len(verr.InstanceLocation) > 0 {
			loc = "/" + strings.Join(verr.InstanceLocation, "/")
		}
		return []string{fmt.Sprintf("%s: %s", loc, verr.Error())}
	}

	var violations []string
	for _, cause := range verr.Causes {
		violations = append(violations, collectViolations(cause)...)
	}
	return violations
}
