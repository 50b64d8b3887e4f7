package graph

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/rendis/weave/pkg/schema"
)

// Block is one workflow definition extracted from a source document.
type Block struct {
	Name    string
	Records []schema.StepRecord
}

// blockDoc is the object form of a definition block.
type blockDoc struct {
	Name  string              `json:"name"`
	Steps []schema.StepRecord `json:"steps"`
}

// ExtractBlocks pulls workflow definitions out of a source document.
// A document is either raw JSON (one block) or prose containing fenced
// ```workflow code blocks. Each block is a JSON array of step records or an
// object {"name": ..., "steps": [...]}.
func ExtractBlocks(source string) ([]Block, error) {
	trimmed := strings.TrimSpace(source)
	if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") {
		b, err := decodeBlock(trimmed)
		if err != nil {
			return nil, err
		}
		return []Block{b}, nil
	}

	var blocks []Block
	rest := source
	for {
		start := strings.Index(rest, "```workflow")
		if start == -1 {
			break
		}
		body := rest[start+len("```workflow"):]
		end := strings.Index(body, "```")
		if end == -1 {
			return nil, schema.NewError(schema.ErrCodeMalformed, "unterminated workflow block")
		}
		b, err := decodeBlock(strings.TrimSpace(body[:end]))
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, b)
		rest = body[end+3:]
	}

	if len(blocks) == 0 {
		return nil, schema.NewError(schema.ErrCodeMalformed, "no workflow block found")
	}
	return blocks, nil
}

func decodeBlock(body string) (Block, error) {
	if strings.HasPrefix(body, "[") {
		var records []schema.StepRecord
		if err := json.Unmarshal([]byte(body), &records); err != nil {
			return Block{}, schema.NewErrorf(schema.ErrCodeMalformed, "invalid workflow block: %s", err.Error()).WithCause(err)
		}
		return Block{Records: records}, nil
	}

	var doc blockDoc
	if err := json.Unmarshal([]byte(body), &doc); err != nil {
		return Block{}, schema.NewErrorf(schema.ErrCodeMalformed, "invalid workflow block: %s", err.Error()).WithCause(err)
	}
	return Block{Name: doc.Name, Records: doc.Steps}, nil
}

// SelectBlock picks a block by name, by decimal index, or the first block
// when ref is empty.
func SelectBlock(blocks []Block, ref string) (Block, error) {
	if ref == "" {
		if len(blocks) == 0 {
			return Block{}, schema.NewError(schema.ErrCodeMalformed, "no workflow block found")
		}
		return blocks[0], nil
	}

	for _, b := range blocks {
		if b.Name == ref {
			return b, nil
		}
	}
	if idx, err := strconv.Atoi(ref); err == nil && idx >= 0 && idx < len(blocks) {
		return blocks[idx], nil
	}
	return Block{}, schema.NewErrorf(schema.ErrCodeMalformed, "workflow %q not found in definition", ref)
}

// ParseDocument extracts, selects, and parses a workflow in one call.
func ParseDocument(source, ref string) (*Workflow, error) {
	blocks, err := ExtractBlocks(source)
	if err != nil {
		return nil, err
	}
	block, err := SelectBlock(blocks, ref)
	if err != nil {
		return nil, err
	}
	return Parse(block.Records)
}

// Parse builds a Workflow from an ordered list of step records.
//
// Pass 1 materializes nodes, silently skipping records whose type is not
// recognized. Pass 2 materializes edges. Omitting a successor on a node
// never means termination: the edge falls through to the next materialized
// record in source order, and only the explicit "end" sentinel suppresses
// it. A successor referencing an unknown node id is a parse failure.
func Parse(records []schema.StepRecord) (*Workflow, error) {
	if len(records) == 0 {
		return nil, schema.NewError(schema.ErrCodeMalformed, "workflow has no steps")
	}

	wf := &Workflow{
		Nodes: make(map[string]*Node),
		order: make(map[string]int),
	}

	// Pass 1: nodes. kept[i] holds the node id materialized from records[i],
	// or "" when the record was skipped.
	kept := make([]string, len(records))
	pos := 0
	for i, rec := range records {
		typ := NodeType(rec.Type)
		if !knownTypes[typ] {
			continue
		}

		id := rec.ID
		if id == "" {
			id = "step-" + strconv.Itoa(i)
		}
		if _, dup := wf.Nodes[id]; dup {
			return nil, schema.NewErrorf(schema.ErrCodeMalformed, "duplicate node id %q", id)
		}

		props := rec.Props
		if props == nil {
			props = map[string]string{}
		}
		cfg, err := buildConfig(typ, props)
		if err != nil {
			return nil, schema.NewErrorf(schema.ErrCodeMalformed, "node %q: %s", id, err.Error()).WithCause(err)
		}

		wf.Nodes[id] = &Node{ID: id, Type: typ, Props: props, Config: cfg}
		wf.order[id] = pos
		kept[i] = id
		if wf.StartNode == "" {
			wf.StartNode = id
		}
		pos++
	}

	if len(wf.Nodes) == 0 {
		return nil, schema.NewError(schema.ErrCodeMalformed, "workflow has no recognized steps")
	}

	// Pass 2: edges.
	for i, rec := range records {
		id := kept[i]
		if id == "" {
			continue
		}
		node := wf.Nodes[id]

		if node.IsBranch() {
			if rec.TrueNext == "" {
				return nil, schema.NewErrorf(schema.ErrCodeMalformed, "branch node %q is missing trueNext", id)
			}
			if err := wf.addEdge(id, rec.TrueNext, LabelTrue); err != nil {
				return nil, err
			}

			falseNext := rec.FalseNext
			if falseNext == "" {
				falseNext = fallthroughTarget(kept, i, id)
			}
			if err := wf.addEdge(id, falseNext, LabelFalse); err != nil {
				return nil, err
			}
			continue
		}

		next := rec.Next
		if next == "" {
			next = fallthroughTarget(kept, i, id)
		}
		if err := wf.addEdge(id, next, LabelNone); err != nil {
			return nil, err
		}
	}

	if err := wf.checkBackEdges(); err != nil {
		return nil, err
	}
	return wf, nil
}

// fallthroughTarget returns the id of the next materialized record after
// index i, or "" when none exists or it would self-loop.
func fallthroughTarget(kept []string, i int, self string) string {
	for j := i + 1; j < len(kept); j++ {
		if kept[j] != "" {
			if kept[j] == self {
				return ""
			}
			return kept[j]
		}
	}
	return ""
}

// addEdge appends an edge unless target is empty or the end sentinel.
// A target referencing an unknown node is a parse failure.
func (w *Workflow) addEdge(from, to, label string) error {
	if to == "" || to == schema.EndSentinel {
		return nil
	}
	if _, ok := w.Nodes[to]; !ok {
		return schema.NewErrorf(schema.ErrCodeMalformed, "node %q references unknown node %q", from, to)
	}
	w.Edges = append(w.Edges, Edge{From: from, To: to, Label: label})
	return nil
}

// checkBackEdges enforces that only while nodes are legal loop targets: an
// edge pointing at the source node itself or at an earlier-declared node
// must land on a while node.
func (w *Workflow) checkBackEdges() error {
	for _, e := range w.Edges {
		if w.order[e.To] > w.order[e.From] {
			continue
		}
		if w.Nodes[e.To].Type != NodeWhile {
			return schema.NewErrorf(schema.ErrCodeMalformed,
				"edge %s -> %s loops back to a %s node; only while nodes may be loop targets",
				e.From, e.To, w.Nodes[e.To].Type)
		}
	}
	return nil
}
