package schema

import "time"

// ExecutionLog is one append-only entry in an execution's log stream.
type ExecutionLog struct {
	NodeID    string    `json:"node_id"`
	NodeType  string    `json:"node_type"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	Status    LogStatus `json:"status"`
	Input     string    `json:"input,omitempty"`
	Output    string    `json:"output,omitempty"`
}
