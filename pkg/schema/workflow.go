package schema

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// StepRecord is one entry in the ordered definition list a workflow is
// parsed from. Beyond the routing fields, every property value is a plain
// string at this layer; typed interpretation happens inside handlers.
type StepRecord struct {
	ID        string            `json:"id,omitempty"`
	Type      string            `json:"type"`
	Next      string            `json:"next,omitempty"`
	TrueNext  string            `json:"trueNext,omitempty"`
	FalseNext string            `json:"falseNext,omitempty"`
	Props     map[string]string `json:"-"`
}

// EndSentinel is the reserved successor value meaning "terminate, no edge".
const EndSentinel = "end"

// routing field names excluded from Props.
var recordFields = map[string]bool{
	"id": true, "type": true, "next": true, "trueNext": true, "falseNext": true,
}

// UnmarshalJSON decodes a step record, coercing every non-routing scalar
// property to its string form. Object and array property values are kept as
// compact JSON text so handlers can re-parse them.
func (r *StepRecord) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	get := func(key string) (string, error) {
		v, ok := raw[key]
		if !ok {
			return "", nil
		}
		var s string
		if err := json.Unmarshal(v, &s); err != nil {
			return "", fmt.Errorf("field %q must be a string", key)
		}
		return s, nil
	}

	var err error
	if r.ID, err = get("id"); err != nil {
		return err
	}
	if r.Type, err = get("type"); err != nil {
		return err
	}
	if r.Next, err = get("next"); err != nil {
		return err
	}
	if r.TrueNext, err = get("trueNext"); err != nil {
		return err
	}
	if r.FalseNext, err = get("falseNext"); err != nil {
		return err
	}

	r.Props = make(map[string]string)
	for key, v := range raw {
		if recordFields[key] {
			continue
		}
		r.Props[key] = coerceString(v)
	}
	return nil
}

// MarshalJSON emits the record with properties inlined next to the routing fields.
func (r StepRecord) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(r.Props)+5)
	for k, v := range r.Props {
		out[k] = v
	}
	if r.ID != "" {
		out["id"] = r.ID
	}
	out["type"] = r.Type
	if r.Next != "" {
		out["next"] = r.Next
	}
	if r.TrueNext != "" {
		out["trueNext"] = r.TrueNext
	}
	if r.FalseNext != "" {
		out["falseNext"] = r.FalseNext
	}
	return json.Marshal(out)
}

// coerceString renders a raw JSON value as a plain string: strings lose
// their quotes, scalars keep their literal text, composites stay JSON.
func coerceString(v json.RawMessage) string {
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		return s
	}
	var f float64
	if err := json.Unmarshal(v, &f); err == nil {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	var b bool
	if err := json.Unmarshal(v, &b); err == nil {
		return strconv.FormatBool(b)
	}
	return string(v)
}

// ExecutionStatus is the lifecycle state of a persisted execution record.
type ExecutionStatus string

const (
	ExecutionStatusRunning   ExecutionStatus = "running"
	ExecutionStatusCompleted ExecutionStatus = "completed"
	ExecutionStatusError     ExecutionStatus = "error"
	ExecutionStatusCancelled ExecutionStatus = "cancelled"
)

// LogStatus classifies a single execution log entry.
type LogStatus string

const (
	LogStatusInfo    LogStatus = "info"
	LogStatusSuccess LogStatus = "success"
	LogStatusError   LogStatus = "error"
)
