package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/weave/pkg/schema"
)

// --- helpers ---

func rec(id, typ string, props map[string]string) schema.StepRecord {
	if props == nil {
		props = map[string]string{}
	}
	return schema.StepRecord{ID: id, Type: typ, Props: props}
}

func seq(id string, next string) schema.StepRecord {
	r := rec(id, "log", map[string]string{"message": id})
	r.Next = next
	return r
}

func branch(id, typ, trueNext, falseNext string) schema.StepRecord {
	r := rec(id, typ, map[string]string{"condition": "1 == 1"})
	r.TrueNext = trueNext
	r.FalseNext = falseNext
	return r
}

func edgeSet(wf *Workflow) map[Edge]bool {
	m := make(map[Edge]bool, len(wf.Edges))
	for _, e := range wf.Edges {
		m[e] = true
	}
	return m
}

// --- parsing ---

func TestParse_LinearFallthrough(t *testing.T) {
	wf, err := Parse([]schema.StepRecord{
		rec("a", "log", map[string]string{"message": "a"}),
		rec("b", "log", map[string]string{"message": "b"}),
		rec("c", "log", map[string]string{"message": "c"}),
	})
	require.NoError(t, err)

	assert.Equal(t, "a", wf.StartNode)
	assert.Len(t, wf.Nodes, 3)
	assert.Equal(t, []string{"b"}, wf.Outgoing("a", LabelNone))
	assert.Equal(t, []string{"c"}, wf.Outgoing("b", LabelNone))
	assert.Empty(t, wf.Outgoing("c", LabelNone))
}

func TestParse_ExplicitNextMatchesFallthrough(t *testing.T) {
	implicit, err := Parse([]schema.StepRecord{
		rec("a", "log", map[string]string{"message": "a"}),
		rec("b", "log", map[string]string{"message": "b"}),
	})
	require.NoError(t, err)

	explicit, err := Parse([]schema.StepRecord{
		seq("a", "b"),
		rec("b", "log", map[string]string{"message": "b"}),
	})
	require.NoError(t, err)

	assert.Equal(t, edgeSet(implicit), edgeSet(explicit))
}

func TestParse_EndSentinelTerminates(t *testing.T) {
	wf, err := Parse([]schema.StepRecord{
		seq("a", "end"),
		rec("b", "log", map[string]string{"message": "b"}),
	})
	require.NoError(t, err)

	assert.Empty(t, wf.Outgoing("a", LabelNone))
}

func TestParse_UnknownTypeSkipped(t *testing.T) {
	wf, err := Parse([]schema.StepRecord{
		rec("a", "log", map[string]string{"message": "a"}),
		rec("x", "hologram", nil),
		rec("b", "log", map[string]string{"message": "b"}),
	})
	require.NoError(t, err)

	assert.Len(t, wf.Nodes, 2)
	assert.NotContains(t, wf.Nodes, "x")
	// Fallthrough must jump over the skipped record.
	assert.Equal(t, []string{"b"}, wf.Outgoing("a", LabelNone))
}

func TestParse_DanglingReferenceFails(t *testing.T) {
	_, err := Parse([]schema.StepRecord{seq("a", "ghost")})
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeMalformed, schema.CodeOf(err))
}

func TestParse_EmptyListFails(t *testing.T) {
	_, err := Parse(nil)
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeMalformed, schema.CodeOf(err))
}

func TestParse_OnlyUnknownTypesFails(t *testing.T) {
	_, err := Parse([]schema.StepRecord{rec("x", "hologram", nil)})
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeMalformed, schema.CodeOf(err))
}

func TestParse_BranchEdges(t *testing.T) {
	wf, err := Parse([]schema.StepRecord{
		branch("check", "if", "yes", "no"),
		rec("yes", "log", map[string]string{"message": "y"}),
		rec("no", "log", map[string]string{"message": "n"}),
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"yes"}, wf.Outgoing("check", LabelTrue))
	assert.Equal(t, []string{"no"}, wf.Outgoing("check", LabelFalse))
}

func TestParse_BranchFalseDefaultsToNextRecord(t *testing.T) {
	wf, err := Parse([]schema.StepRecord{
		branch("check", "if", "done", ""),
		rec("fallback", "log", map[string]string{"message": "f"}),
		rec("done", "log", map[string]string{"message": "d"}),
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"fallback"}, wf.Outgoing("check", LabelFalse))
}

func TestParse_BranchMissingTrueNextFails(t *testing.T) {
	_, err := Parse([]schema.StepRecord{
		branch("check", "if", "", ""),
		rec("after", "log", map[string]string{"message": "a"}),
	})
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeMalformed, schema.CodeOf(err))
	assert.Contains(t, err.Error(), "trueNext")
}

func TestParse_BranchEndSentinel(t *testing.T) {
	wf, err := Parse([]schema.StepRecord{
		branch("check", "while", "body", "end"),
		seq("body", "check"),
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"body"}, wf.Outgoing("check", LabelTrue))
	assert.Empty(t, wf.Outgoing("check", LabelFalse))
}

func TestParse_DuplicateIDFails(t *testing.T) {
	_, err := Parse([]schema.StepRecord{
		rec("a", "log", map[string]string{"message": "1"}),
		rec("a", "log", map[string]string{"message": "2"}),
	})
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeMalformed, schema.CodeOf(err))
}

func TestParse_GeneratedIDs(t *testing.T) {
	wf, err := Parse([]schema.StepRecord{
		rec("", "log", map[string]string{"message": "a"}),
		rec("", "log", map[string]string{"message": "b"}),
	})
	require.NoError(t, err)

	assert.Equal(t, "step-0", wf.StartNode)
	assert.Equal(t, []string{"step-1"}, wf.Outgoing("step-0", LabelNone))
}

func TestParse_InvalidConfigFails(t *testing.T) {
	_, err := Parse([]schema.StepRecord{rec("c", "command", nil)})
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeMalformed, schema.CodeOf(err))
	assert.Contains(t, err.Error(), "prompt")
}

// --- back-edge validation ---

func TestParse_BackEdgeToWhileAllowed(t *testing.T) {
	_, err := Parse([]schema.StepRecord{
		branch("loop", "while", "body", "end"),
		seq("body", "loop"),
	})
	require.NoError(t, err)
}

func TestParse_BackEdgeToNonWhileFails(t *testing.T) {
	_, err := Parse([]schema.StepRecord{
		rec("a", "log", map[string]string{"message": "a"}),
		seq("b", "a"),
	})
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeMalformed, schema.CodeOf(err))
	assert.Contains(t, err.Error(), "loop targets")
}

// --- block extraction ---

func TestExtractBlocks_RawJSON(t *testing.T) {
	blocks, err := ExtractBlocks(`[{"id":"a","type":"log","message":"hi"}]`)
	require.NoError(t, err)
	require.Len(t, blocks, 1)
	assert.Len(t, blocks[0].Records, 1)
}

func TestExtractBlocks_Fenced(t *testing.T) {
	source := "notes before\n```workflow\n" +
		`{"name":"deploy","steps":[{"id":"a","type":"log","message":"hi"}]}` +
		"\n```\nmore notes\n```workflow\n" +
		`[{"id":"b","type":"log","message":"bye"}]` +
		"\n```\n"

	blocks, err := ExtractBlocks(source)
	require.NoError(t, err)
	require.Len(t, blocks, 2)
	assert.Equal(t, "deploy", blocks[0].Name)

	byName, err := SelectBlock(blocks, "deploy")
	require.NoError(t, err)
	assert.Equal(t, "a", byName.Records[0].ID)

	byIndex, err := SelectBlock(blocks, "1")
	require.NoError(t, err)
	assert.Equal(t, "b", byIndex.Records[0].ID)
}

func TestExtractBlocks_NoneFound(t *testing.T) {
	_, err := ExtractBlocks("just prose, no definitions")
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeMalformed, schema.CodeOf(err))
}

func TestSelectBlock_MissingName(t *testing.T) {
	blocks := []Block{{Name: "one"}}
	_, err := SelectBlock(blocks, "two")
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeMalformed, schema.CodeOf(err))
}

func TestParseDocument(t *testing.T) {
	wf, err := ParseDocument(`[{"id":"a","type":"log","message":"hi"}]`, "")
	require.NoError(t, err)
	assert.Equal(t, "a", wf.StartNode)
}
