package expressions

import (
	"context"

	"github.com/rendis/weave/pkg/schema"
)

// Conditions dispatches branch condition evaluation to the configured
// language. The zero language is the built-in comparison syntax; "expr" and
// "cel" hand the raw condition to the corresponding engine with the
// execution's variables as environment.
type Conditions struct {
	expr *ExprEngine
	cel  *CELEngine
}

// NewConditions constructs the condition dispatcher with both engines ready.
func NewConditions() (*Conditions, error) {
	celEngine, err := NewCELEngine()
	if err != nil {
		return nil, err
	}
	return &Conditions{
		expr: NewExprEngine(),
		cel:  celEngine,
	}, nil
}

// Evaluate evaluates condition in the given language against vars and
// reduces the result to a boolean.
func (c *Conditions) Evaluate(ctx context.Context, language, condition string, vars map[string]any) (bool, error) {
	switch language {
	case "", "simple":
		return EvaluateSimple(condition, vars)
	case "expr":
		out, err := c.expr.Evaluate(ctx, condition, vars)
		if err != nil {
			return false, err
		}
		return toBool(condition, out)
	case "cel":
		out, err := c.cel.Evaluate(ctx, condition, vars)
		if err != nil {
			return false, err
		}
		return toBool(condition, out)
	default:
		return false, schema.NewErrorf(schema.ErrCodeValidation,
			"unknown condition language %q", language)
	}
}

func toBool(condition string, out any) (bool, error) {
	b, ok := out.(bool)
	if !ok {
		return false, schema.NewErrorf(schema.ErrCodeExecution,
			"condition %q evaluated to %T, want bool", condition, out)
	}
	return b, nil
}
