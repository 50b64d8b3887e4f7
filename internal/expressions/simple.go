package expressions

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/rendis/weave/pkg/schema"
)

// operators is the detection order for the built-in condition syntax.
// "<=" and ">=" come before "<" and ">" so they are not mis-split.
var operators = []string{"==", "!=", "<=", ">=", "<", ">", "contains"}

// EvaluateSimple parses and evaluates a built-in binary comparison such as
// "{{count}} <= 10" or `"abc" contains "b"`. Both sides are template-resolved
// before comparison; one layer of surrounding quotes is stripped. When both
// sides parse as floats the comparison is numeric, otherwise lexicographic.
// "contains" tests JSON array membership when the left side is an array,
// substring containment otherwise.
func EvaluateSimple(condition string, vars map[string]any) (bool, error) {
	op, left, right, err := splitCondition(condition)
	if err != nil {
		return false, err
	}

	lhs := unquote(strings.TrimSpace(Resolve(left, vars)))
	rhs := unquote(strings.TrimSpace(Resolve(right, vars)))

	if op == "contains" {
		return evalContains(lhs, rhs), nil
	}

	lf, lok := parseFloat(lhs)
	rf, rok := parseFloat(rhs)
	if lok && rok {
		return compareFloats(op, lf, rf), nil
	}
	return compareStrings(op, lhs, rhs), nil
}

// splitCondition finds the first operator, in priority order, that splits
// the raw condition into exactly two parts.
func splitCondition(condition string) (op, left, right string, err error) {
	for _, candidate := range operators {
		parts := strings.Split(condition, candidate)
		if len(parts) == 2 {
			return candidate, parts[0], parts[1], nil
		}
	}
	return "", "", "", schema.NewErrorf(schema.ErrCodeExecution,
		"condition %q has no recognizable operator", condition)
}

func unquote(s string) string {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}

func parseFloat(s string) (float64, bool) {
	f, err := strconv.ParseFloat(s, 64)
	return f, err == nil
}

func compareFloats(op string, l, r float64) bool {
	switch op {
	case "==":
		return l == r
	case "!=":
		return l != r
	case "<=":
		return l <= r
	case ">=":
		return l >= r
	case "<":
		return l < r
	default:
		return l > r
	}
}

func compareStrings(op, l, r string) bool {
	switch op {
	case "==":
		return l == r
	case "!=":
		return l != r
	case "<=":
		return l <= r
	case ">=":
		return l >= r
	case "<":
		return l < r
	default:
		return l > r
	}
}

// evalContains tests array membership when lhs parses as a JSON array,
// substring containment otherwise.
func evalContains(lhs, rhs string) bool {
	var arr []any
	if err := json.Unmarshal([]byte(lhs), &arr); err == nil {
		for _, item := range arr {
			if unquote(Stringify(item)) == rhs {
				return true
			}
		}
		return false
	}
	return strings.Contains(lhs, rhs)
}
