// Package graph holds the parsed workflow definition model: typed nodes,
// labeled edges, and the two-pass parser that builds them from ordered
// step records.
package graph

// NodeType enumerates the recognized kinds of workflow steps.
type NodeType string

const (
	NodeVariable    NodeType = "variable"
	NodeSet         NodeType = "set"
	NodeIf          NodeType = "if"
	NodeWhile       NodeType = "while"
	NodeWait        NodeType = "wait"
	NodeLog         NodeType = "log"
	NodeCommand     NodeType = "command"
	NodeReview      NodeType = "review"
	NodeHTTPRequest NodeType = "http_request"
	NodeReadFile    NodeType = "read_file"
	NodeWriteFile   NodeType = "write_file"
	NodeMCPTool     NodeType = "mcp_tool"
	NodeUserPrompt  NodeType = "user_prompt"
	NodeWorkflow    NodeType = "workflow"
	NodeTransform   NodeType = "transform"
)

// knownTypes is the set of node types the parser materializes. Records with
// any other type are skipped so newer definitions still load on older engines.
var knownTypes = map[NodeType]bool{
	NodeVariable:    true,
	NodeSet:         true,
	NodeIf:          true,
	NodeWhile:       true,
	NodeWait:        true,
	NodeLog:         true,
	NodeCommand:     true,
	NodeReview:      true,
	NodeHTTPRequest: true,
	NodeReadFile:    true,
	NodeWriteFile:   true,
	NodeMCPTool:     true,
	NodeUserPrompt:  true,
	NodeWorkflow:    true,
	NodeTransform:   true,
}

// branchTypes are the node types carrying true/false labeled edges.
var branchTypes = map[NodeType]bool{
	NodeIf:    true,
	NodeWhile: true,
}

// KnownType reports whether the parser materializes records of this type.
func KnownType(t string) bool {
	return knownTypes[NodeType(t)]
}

// IsBranchType reports whether the type carries true/false labeled edges.
func IsBranchType(t string) bool {
	return branchTypes[NodeType(t)]
}

// Edge labels. Sequential nodes use LabelNone; branch nodes use true/false.
const (
	LabelNone  = ""
	LabelTrue  = "true"
	LabelFalse = "false"
)

// Node is one typed step in a workflow graph. Immutable after parse.
type Node struct {
	ID     string
	Type   NodeType
	Props  map[string]string
	Config Config
}

// IsBranch reports whether the node routes on a boolean condition.
func (n *Node) IsBranch() bool {
	return branchTypes[n.Type]
}

// Prop returns a raw property value, or def when absent.
func (n *Node) Prop(key, def string) string {
	if v, ok := n.Props[key]; ok {
		return v
	}
	return def
}

// Edge is a directed link between two nodes, optionally labeled with a
// branch outcome.
type Edge struct {
	From  string
	To    string
	Label string
}

// Workflow is a parsed, executable graph.
type Workflow struct {
	Nodes     map[string]*Node
	Edges     []Edge
	StartNode string

	// order maps node IDs to their declaration index; used for the
	// fallthrough rule and back-edge validation.
	order map[string]int
}

// Outgoing returns the targets of all edges leaving nodeID whose label
// matches, in declaration order.
func (w *Workflow) Outgoing(nodeID, label string) []string {
	var targets []string
	for _, e := range w.Edges {
		if e.From == nodeID && e.Label == label {
			targets = append(targets, e.To)
		}
	}
	return targets
}

// Position returns the declaration index of a node, or -1 if unknown.
func (w *Workflow) Position(nodeID string) int {
	if i, ok := w.order[nodeID]; ok {
		return i
	}
	return -1
}
