// Package diagram renders parsed workflow graphs as Mermaid flowcharts.
package diagram

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rendis/weave/internal/graph"
)

// RenderMermaid renders a workflow as a Mermaid flowchart string. Nodes
// appear in declaration order; branch edges carry their true/false labels.
func RenderMermaid(title string, wf *graph.Workflow) string {
	var b strings.Builder

	b.WriteString("graph TD\n")
	if title != "" {
		b.WriteString(fmt.Sprintf("    %%%% %s\n", title))
	}

	for _, node := range orderedNodes(wf) {
		b.WriteString(fmt.Sprintf("    %s\n", mermaidNodeDef(node)))
	}

	for _, edge := range wf.Edges {
		label := ""
		if edge.Label != "" {
			label = fmt.Sprintf("|%s|", edge.Label)
		}
		b.WriteString(fmt.Sprintf("    %s -->%s %s\n",
			mermaidSafeID(edge.From), label, mermaidSafeID(edge.To)))
	}

	if wf.StartNode != "" {
		b.WriteString(fmt.Sprintf("\n    class %s start\n", mermaidSafeID(wf.StartNode)))
		b.WriteString("    classDef start fill:#2d6a2d,stroke:#1a4a1a,color:#fff\n")
	}

	return b.String()
}

func orderedNodes(wf *graph.Workflow) []*graph.Node {
	nodes := make([]*graph.Node, 0, len(wf.Nodes))
	for _, n := range wf.Nodes {
		nodes = append(nodes, n)
	}
	sort.Slice(nodes, func(i, j int) bool {
		return wf.Position(nodes[i].ID) < wf.Position(nodes[j].ID)
	})
	return nodes
}

// mermaidNodeDef returns a Mermaid node definition with the appropriate shape.
func mermaidNodeDef(node *graph.Node) string {
	id := mermaidSafeID(node.ID)
	label := nodeLabel(node)

	switch node.Type {
	case graph.NodeIf, graph.NodeWhile:
		return fmt.Sprintf("%s{%q}", id, label)
	case graph.NodeCommand, graph.NodeReview:
		return fmt.Sprintf("%s{{%q}}", id, label)
	case graph.NodeWait:
		return fmt.Sprintf("%s([%q])", id, label)
	case graph.NodeWorkflow:
		return fmt.Sprintf("%s[[%q]]", id, label)
	default:
		return fmt.Sprintf("%s[%q]", id, label)
	}
}

// nodeLabel picks the most descriptive property for the node kind,
// falling back to "type: id".
func nodeLabel(node *graph.Node) string {
	var detail string
	switch node.Type {
	case graph.NodeIf, graph.NodeWhile:
		detail = node.Prop("condition", "")
	case graph.NodeVariable, graph.NodeSet:
		detail = node.Prop("name", "")
	case graph.NodeLog:
		detail = node.Prop("message", "")
	case graph.NodeWorkflow:
		detail = node.Prop("path", "")
	case graph.NodeMCPTool:
		detail = node.Prop("tool", "")
	}

	label := string(node.Type) + ": " + node.ID
	if detail != "" {
		label = string(node.Type) + ": " + detail
	}
	return firstLine(label)
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

// mermaidSafeID converts a node ID to a Mermaid-safe identifier.
// Replaces dots and dashes with underscores.
func mermaidSafeID(id string) string {
	r := strings.NewReplacer(".", "_", "-", "_", " ", "_", "/", "_")
	return r.Replace(id)
}
