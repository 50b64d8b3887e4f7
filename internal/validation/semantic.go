package validation

import (
	"fmt"

	"github.com/rendis/weave/internal/graph"
	"github.com/rendis/weave/pkg/schema"
)

// Issue codes emitted by the semantic pass.
const (
	CodeParseFailed     = "PARSE_FAILED"
	CodeUnknownType     = "UNKNOWN_TYPE"
	CodeUnreachableNode = "UNREACHABLE_NODE"
)

// CheckSemantics runs the checks JSON Schema cannot express: a full parse
// (duplicate ids, dangling successors, branch shape, loop targets), plus
// warnings for skipped step types and unreachable nodes.
func CheckSemantics(records []schema.StepRecord) *schema.ValidationResult {
	result := &schema.ValidationResult{}

	for i, r := range records {
		if !graph.KnownType(r.Type) {
			result.AddWarning(fmt.Sprintf("steps[%d]", i), CodeUnknownType,
				fmt.Sprintf("step type %q is not recognized and will be skipped", r.Type))
		}
	}

	wf, err := graph.Parse(records)
	if err != nil {
		result.AddError("steps", CodeParseFailed, err.Error())
		return result
	}

	for _, id := range unreachableNodes(wf) {
		result.AddWarning(fmt.Sprintf("steps[%s]", id), CodeUnreachableNode,
			fmt.Sprintf("node %q can never execute", id))
	}
	return result
}

// unreachableNodes returns node ids not reachable from the start node, in
// declaration order.
func unreachableNodes(wf *graph.Workflow) []string {
	reached := map[string]bool{wf.StartNode: true}
	queue := []string{wf.StartNode}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, e := range wf.Edges {
			if e.From == id && !reached[e.To] {
				reached[e.To] = true
				queue = append(queue, e.To)
			}
		}
	}

	var unreached []string
	for id := range wf.Nodes {
		if !reached[id] {
			unreached = append(unreached, id)
		}
	}
	// Declaration order keeps output stable.
	for i := 0; i < len(unreached); i++ {
		for j := i + 1; j < len(unreached); j++ {
			if wf.Position(unreached[j]) < wf.Position(unreached[i]) {
				unreached[i], unreached[j] = unreached[j], unreached[i]
			}
		}
	}
	return unreached
}
