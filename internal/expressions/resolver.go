// Package expressions resolves {{...}} templates against a variable store
// and evaluates branch conditions in one of three languages: the built-in
// comparison syntax, expr, and CEL. A jq engine backs transform nodes.
package expressions

import (
	"encoding/json"
	"strconv"
	"strings"
)

// maxResolvePasses caps the fixed-point loop so templates that keep
// producing new placeholders cannot spin forever.
const maxResolvePasses = 10

// Resolve replaces {{...}} placeholders in template with values from vars.
// Supported forms:
//
//	{{name}}                  bare variable
//	{{name.a.b}}              path into a JSON-parseable variable
//	{{name.items[0].x}}       bracket index, numeric literal
//	{{name.items[idx].x}}     bracket index resolved from another variable
//	{{expr:json}}             result re-escaped for a JSON string literal
//
// Placeholders that cannot be resolved are left untouched. Resolution
// iterates to a fixed point so placeholders nested inside resolved values
// are expanded too.
func Resolve(template string, vars map[string]any) string {
	out := template
	for pass := 0; pass < maxResolvePasses; pass++ {
		next := resolveOnce(out, vars)
		if next == out {
			break
		}
		out = next
	}
	return out
}

// resolveOnce performs a single substitution pass.
func resolveOnce(input string, vars map[string]any) string {
	var result strings.Builder
	result.Grow(len(input))

	i := 0
	for i < len(input) {
		idx := strings.Index(input[i:], "{{")
		if idx == -1 {
			result.WriteString(input[i:])
			break
		}
		result.WriteString(input[i : i+idx])
		start := i + idx + 2

		end := strings.Index(input[start:], "}}")
		if end == -1 {
			// Unterminated placeholder: emit the rest verbatim.
			result.WriteString(input[i+idx:])
			break
		}
		end += start

		token := input[i+idx : end+2]
		expr := strings.TrimSpace(input[start:end])

		if resolved, ok := resolveExpr(expr, vars); ok {
			result.WriteString(resolved)
		} else {
			result.WriteString(token)
		}
		i = end + 2
	}

	return result.String()
}

// resolveExpr resolves one placeholder expression. The second return is
// false when the placeholder must be left untouched.
func resolveExpr(expr string, vars map[string]any) (string, bool) {
	jsonEscape := false
	if strings.HasSuffix(expr, ":json") {
		jsonEscape = true
		expr = strings.TrimSuffix(expr, ":json")
	}
	if expr == "" {
		return "", false
	}

	var value any
	if !strings.ContainsAny(expr, ".[") {
		v, ok := vars[expr]
		if !ok {
			return "", false
		}
		value = v
	} else {
		v, ok := resolvePath(expr, vars)
		if !ok {
			return "", false
		}
		value = v
	}

	s := Stringify(value)
	if jsonEscape {
		s = escapeForJSON(s)
	}
	return s, true
}

// resolvePath fetches the root variable, parses its value as JSON, and
// navigates the remaining dot segments and bracket indices.
func resolvePath(expr string, vars map[string]any) (any, bool) {
	segs, ok := splitPath(expr)
	if !ok || len(segs) == 0 {
		return nil, false
	}

	rootVal, ok := vars[segs[0].key]
	if !ok {
		return nil, false
	}

	raw := Stringify(rootVal)
	raw = stripJSONFence(raw)

	var current any
	if err := json.Unmarshal([]byte(raw), &current); err != nil {
		return nil, false
	}

	for _, seg := range segs[1:] {
		if seg.isIndex {
			arr, ok := current.([]any)
			if !ok {
				return nil, false
			}
			idx, ok := seg.resolveIndex(vars)
			if !ok || idx < 0 || idx >= len(arr) {
				return nil, false
			}
			current = arr[idx]
			continue
		}

		obj, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = obj[seg.key]
		if !ok {
			return nil, false
		}
	}

	return current, true
}

// pathSeg is one step of a path: a key, a literal index, or a variable index.
type pathSeg struct {
	key      string
	isIndex  bool
	index    int
	indexVar string
}

func (s pathSeg) resolveIndex(vars map[string]any) (int, bool) {
	if s.indexVar == "" {
		return s.index, true
	}
	v, ok := vars[s.indexVar]
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimSpace(Stringify(v)))
	if err != nil {
		return 0, false
	}
	return n, true
}

// splitPath tokenizes "var.items[0].name" into path segments.
func splitPath(expr string) ([]pathSeg, bool) {
	var segs []pathSeg
	i := 0
	for i < len(expr) {
		switch expr[i] {
		case '.':
			i++
		case '[':
			close := strings.IndexByte(expr[i:], ']')
			if close == -1 {
				return nil, false
			}
			inner := strings.TrimSpace(expr[i+1 : i+close])
			if inner == "" {
				return nil, false
			}
			if n, err := strconv.Atoi(inner); err == nil {
				segs = append(segs, pathSeg{isIndex: true, index: n})
			} else {
				segs = append(segs, pathSeg{isIndex: true, indexVar: inner})
			}
			i += close + 1
		default:
			j := i
			for j < len(expr) && expr[j] != '.' && expr[j] != '[' {
				j++
			}
			segs = append(segs, pathSeg{key: expr[i:j]})
			i = j
		}
	}
	if len(segs) == 0 || segs[0].isIndex {
		return nil, false
	}
	return segs, true
}

// stripJSONFence removes a fenced ```json wrapper if the whole value is one.
func stripJSONFence(s string) string {
	t := strings.TrimSpace(s)
	if !strings.HasPrefix(t, "```") {
		return s
	}
	t = strings.TrimPrefix(t, "```json")
	t = strings.TrimPrefix(t, "```")
	end := strings.LastIndex(t, "```")
	if end == -1 {
		return s
	}
	return strings.TrimSpace(t[:end])
}

// Stringify renders a resolved value for substitution: strings directly,
// numbers without a trailing exponent, composites as compact JSON.
func Stringify(v any) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case bool:
		return strconv.FormatBool(val)
	case json.RawMessage:
		return string(val)
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

// escapeForJSON re-escapes a value for safe embedding inside a JSON string
// literal: the :json suffix.
func escapeForJSON(s string) string {
	b, err := json.Marshal(s)
	if err != nil {
		return s
	}
	return string(b[1 : len(b)-1])
}
