package handlers

import (
	"context"
	"regexp"
	"strconv"
	"time"

	"github.com/rendis/weave/internal/expressions"
	"github.com/rendis/weave/internal/graph"
	"github.com/rendis/weave/pkg/schema"
)

// BuiltinDeps carries the shared evaluators the control-flow handlers use.
type BuiltinDeps struct {
	Conditions *expressions.Conditions
	Expr       *expressions.ExprEngine
}

// Builtins returns the handlers for the in-core node types.
func Builtins(deps BuiltinDeps) []Handler {
	return []Handler{
		&variableHandler{expr: deps.Expr},
		&setHandler{expr: deps.Expr},
		&branchHandler{typ: graph.NodeIf, conds: deps.Conditions},
		&branchHandler{typ: graph.NodeWhile, conds: deps.Conditions},
		&waitHandler{},
		&logHandler{},
	}
}

// arithmeticExpr matches resolved values that are worth handing to the
// expression engine: numbers combined with arithmetic operators. Plain
// text like "hello world" never qualifies and is stored verbatim.
var arithmeticExpr = regexp.MustCompile(`^\s*-?[\d.]+(\s*[-+*/%]\s*-?[\d.]+)+\s*$`)

// coerceValue turns a resolved string into the value stored in the
// variable map: numbers become float64, arithmetic is evaluated, and
// everything else stays a string.
func coerceValue(resolved string, engine *expressions.ExprEngine) any {
	if n, err := strconv.ParseFloat(resolved, 64); err == nil {
		return n
	}
	if engine != nil && arithmeticExpr.MatchString(resolved) {
		if out, err := engine.Evaluate(context.Background(), resolved, nil); err == nil {
			return out
		}
	}
	return resolved
}

type variableHandler struct {
	expr *expressions.ExprEngine
}

func (h *variableHandler) Type() graph.NodeType { return graph.NodeVariable }

func (h *variableHandler) Execute(ctx context.Context, node *graph.Node, ec *Context) (Outcome, error) {
	cfg := node.Config.(*graph.VariableConfig)
	value := coerceValue(ec.Resolve(cfg.Value), h.expr)
	ec.SetVar(cfg.Name, value)
	ec.Logf(node, schema.LogStatusInfo, "variable %s initialized", cfg.Name)
	return Continue, nil
}

type setHandler struct {
	expr *expressions.ExprEngine
}

func (h *setHandler) Type() graph.NodeType { return graph.NodeSet }

func (h *setHandler) Execute(ctx context.Context, node *graph.Node, ec *Context) (Outcome, error) {
	cfg := node.Config.(*graph.SetConfig)
	value := coerceValue(ec.Resolve(cfg.Value), h.expr)
	ec.SetVar(cfg.Name, value)
	ec.Logf(node, schema.LogStatusInfo, "variable %s updated", cfg.Name)
	return Continue, nil
}

type branchHandler struct {
	typ   graph.NodeType
	conds *expressions.Conditions
}

func (h *branchHandler) Type() graph.NodeType { return h.typ }

func (h *branchHandler) Execute(ctx context.Context, node *graph.Node, ec *Context) (Outcome, error) {
	cfg := node.Config.(*graph.BranchConfig)
	result, err := h.conds.Evaluate(ctx, cfg.Language, cfg.Condition, ec.Variables)
	if err != nil {
		return Continue, schema.NewErrorf(schema.ErrCodeExecution, "evaluate condition: %s", err.Error()).WithNode(node.ID).WithCause(err)
	}
	ec.Logf(node, schema.LogStatusInfo, "condition %q evaluated to %t", cfg.Condition, result)
	return Outcome{Branch: result}, nil
}

type waitHandler struct{}

func (h *waitHandler) Type() graph.NodeType { return graph.NodeWait }

func (h *waitHandler) Execute(ctx context.Context, node *graph.Node, ec *Context) (Outcome, error) {
	cfg := node.Config.(*graph.WaitConfig)
	raw := ec.Resolve(cfg.Duration)

	d, err := time.ParseDuration(raw)
	if err != nil {
		// Bare numbers are seconds.
		if secs, nerr := strconv.ParseFloat(raw, 64); nerr == nil {
			d = time.Duration(secs * float64(time.Second))
		} else {
			return Continue, schema.NewErrorf(schema.ErrCodeValidation, "invalid wait duration %q", raw).WithNode(node.ID)
		}
	}
	if d < 0 {
		return Continue, schema.NewErrorf(schema.ErrCodeValidation, "negative wait duration %q", raw).WithNode(node.ID)
	}

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return Continue, schema.NewError(schema.ErrCodeCancelled, "wait interrupted").WithNode(node.ID)
	case <-timer.C:
	}
	ec.Logf(node, schema.LogStatusInfo, "waited %s", d)
	return Continue, nil
}

type logHandler struct{}

func (h *logHandler) Type() graph.NodeType { return graph.NodeLog }

func (h *logHandler) Execute(ctx context.Context, node *graph.Node, ec *Context) (Outcome, error) {
	cfg := node.Config.(*graph.LogConfig)
	ec.Log(node, schema.LogStatusInfo, ec.Resolve(cfg.Message))
	return Continue, nil
}
