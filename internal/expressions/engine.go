package expressions

import "context"

// Engine evaluates an expression against workflow data. Two condition
// engines (expr, CEL) and one transform engine (jq) implement it.
type Engine interface {
	Name() string
	Evaluate(ctx context.Context, expression string, data any) (any, error)
}
