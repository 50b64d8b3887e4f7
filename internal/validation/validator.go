package validation

import (
	"github.com/rendis/weave/internal/graph"
	"github.com/rendis/weave/pkg/schema"
)

// DocumentValidator runs the full validation pipeline over a definition
// document: block extraction, JSON Schema validation, then semantics.
type DocumentValidator struct {
	js *JSONSchemaValidator
}

// NewDocumentValidator creates a DocumentValidator.
func NewDocumentValidator() (*DocumentValidator, error) {
	js, err := NewJSONSchemaValidator()
	if err != nil {
		return nil, err
	}
	return &DocumentValidator{js: js}, nil
}

// ValidateSource validates the workflow selected by block (name, index, or
// "" for the first) in a definition document. The result aggregates every
// issue found instead of failing on the first.
func (v *DocumentValidator) ValidateSource(source, block string) *schema.ValidationResult {
	result := &schema.ValidationResult{}

	blocks, err := graph.ExtractBlocks(source)
	if err != nil {
		result.AddError("document", CodeParseFailed, err.Error())
		return result
	}
	selected, err := graph.SelectBlock(blocks, block)
	if err != nil {
		result.AddError("document", CodeParseFailed, err.Error())
		return result
	}

	if err := v.js.ValidateSteps(selected.Records); err != nil {
		result.AddError("steps", schema.ErrCodeValidation, err.Error())
		return result
	}

	result.Merge(CheckSemantics(selected.Records))
	return result
}

// ValidateInput validates seed variables against an optional JSON Schema.
func (v *DocumentValidator) ValidateInput(input map[string]any, inputSchema []byte) error {
	return v.js.ValidateInput(input, inputSchema)
}
