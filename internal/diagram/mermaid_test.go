package diagram

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/weave/internal/graph"
	"github.com/rendis/weave/pkg/schema"
)

func parseSteps(t *testing.T, records []schema.StepRecord) *graph.Workflow {
	t.Helper()
	wf, err := graph.Parse(records)
	require.NoError(t, err)
	return wf
}

func TestRenderMermaidLinear(t *testing.T) {
	wf := parseSteps(t, []schema.StepRecord{
		{ID: "a", Type: "log", Props: map[string]string{"message": "start"}},
		{ID: "b", Type: "log", Props: map[string]string{"message": "done"}},
	})

	out := RenderMermaid("demo", wf)

	assert.True(t, strings.HasPrefix(out, "graph TD\n"))
	assert.Contains(t, out, "%% demo")
	assert.Contains(t, out, `a["log: start"]`)
	assert.Contains(t, out, `b["log: done"]`)
	assert.Contains(t, out, "a --> b")
	assert.Contains(t, out, "class a start")
}

func TestRenderMermaidBranchShapesAndLabels(t *testing.T) {
	wf := parseSteps(t, []schema.StepRecord{
		{ID: "check", Type: "if", Props: map[string]string{"condition": "x > 1"}, TrueNext: "yes", FalseNext: "no"},
		{ID: "yes", Type: "log", Props: map[string]string{"message": "big"}},
		{ID: "no", Type: "wait", Props: map[string]string{"duration": "1s"}},
	})

	out := RenderMermaid("", wf)

	assert.Contains(t, out, `check{"if: x > 1"}`)
	assert.Contains(t, out, `no(["wait: no"])`)
	assert.Contains(t, out, "check -->|true| yes")
	assert.Contains(t, out, "check -->|false| no")
	assert.NotContains(t, out, "%%")
}

func TestRenderMermaidSafeIDs(t *testing.T) {
	wf := parseSteps(t, []schema.StepRecord{
		{ID: "step.one", Type: "log", Props: map[string]string{"message": "hi"}},
		{ID: "step-two", Type: "log", Props: map[string]string{"message": "bye"}},
	})

	out := RenderMermaid("", wf)

	assert.Contains(t, out, "step_one")
	assert.Contains(t, out, "step_two")
	assert.Contains(t, out, "step_one --> step_two")
}

func TestRenderMermaidNodeOrder(t *testing.T) {
	wf := parseSteps(t, []schema.StepRecord{
		{ID: "first", Type: "log", Props: map[string]string{"message": "1"}},
		{ID: "second", Type: "log", Props: map[string]string{"message": "2"}},
		{ID: "third", Type: "log", Props: map[string]string{"message": "3"}},
	})

	out := RenderMermaid("", wf)

	assert.Less(t, strings.Index(out, "first["), strings.Index(out, "second["))
	assert.Less(t, strings.Index(out, "second["), strings.Index(out, "third["))
}
