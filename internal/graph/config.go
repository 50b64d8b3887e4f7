package graph

import (
	"fmt"
	"net/http"
	"strings"
)

// Config is the typed configuration variant of a node, decoded from the raw
// property map at parse time. Property values may still contain {{...}}
// templates; validation here is structural (required fields, literal enums),
// not value-level.
type Config interface {
	Validate() error
}

// VariableConfig declares a variable with an initial (template-resolvable) value.
type VariableConfig struct {
	Name  string
	Value string
}

func (c VariableConfig) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("variable node requires 'name'")
	}
	return nil
}

// SetConfig assigns the resolved (and, when it forms an expression,
// evaluated) value to a variable.
type SetConfig struct {
	Name  string
	Value string
}

func (c SetConfig) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("set node requires 'name'")
	}
	return nil
}

// BranchConfig is shared by if and while nodes.
type BranchConfig struct {
	Condition string
	Language  string // simple (default), expr, cel
}

func (c BranchConfig) Validate() error {
	if c.Condition == "" {
		return fmt.Errorf("branch node requires 'condition'")
	}
	switch c.Language {
	case "", "simple", "expr", "cel":
		return nil
	default:
		return fmt.Errorf("unknown condition language %q", c.Language)
	}
}

// WaitConfig pauses execution for a duration such as "500ms" or "2s".
type WaitConfig struct {
	Duration string
}

func (c WaitConfig) Validate() error {
	if c.Duration == "" {
		return fmt.Errorf("wait node requires 'duration'")
	}
	return nil
}

// LogConfig writes a template-resolved message to the execution log.
type LogConfig struct {
	Message string
}

func (c LogConfig) Validate() error {
	if c.Message == "" {
		return fmt.Errorf("log node requires 'message'")
	}
	return nil
}

// CommandConfig runs an LLM prompt through the command collaborator.
type CommandConfig struct {
	Prompt string
	Model  string
	Tools  []string
	Output string // variable receiving the response (default "response")
	Attach string // optional variable whose value is appended to the prompt
}

func (c CommandConfig) Validate() error {
	if c.Prompt == "" {
		return fmt.Errorf("command node requires 'prompt'")
	}
	return nil
}

// ReviewConfig asks the user to accept the previous command output or send
// it back with feedback, triggering regeneration.
type ReviewConfig struct {
	Message string
}

func (c ReviewConfig) Validate() error { return nil }

// HTTPRequestConfig issues an HTTP request.
type HTTPRequestConfig struct {
	URL     string
	Method  string
	Headers string // JSON object, template-resolvable
	Body    string
	Output  string // variable receiving the response body (default "response")
}

func (c HTTPRequestConfig) Validate() error {
	if c.URL == "" {
		return fmt.Errorf("http_request node requires 'url'")
	}
	if c.Method != "" {
		switch strings.ToUpper(c.Method) {
		case http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch,
			http.MethodDelete, http.MethodHead, http.MethodOptions:
		default:
			return fmt.Errorf("http_request node has unknown method %q", c.Method)
		}
	}
	return nil
}

// ReadFileConfig reads a file into a variable.
type ReadFileConfig struct {
	Path   string
	Output string // default "content"
}

func (c ReadFileConfig) Validate() error {
	if c.Path == "" {
		return fmt.Errorf("read_file node requires 'path'")
	}
	return nil
}

// WriteFileConfig writes resolved content to a file.
type WriteFileConfig struct {
	Path    string
	Content string
	Mode    string // overwrite (default), append, create
}

func (c WriteFileConfig) Validate() error {
	if c.Path == "" {
		return fmt.Errorf("write_file node requires 'path'")
	}
	switch c.Mode {
	case "", "overwrite", "append", "create":
		return nil
	default:
		return fmt.Errorf("write_file node has unknown mode %q", c.Mode)
	}
}

// MCPToolConfig calls a tool on a configured MCP server.
type MCPToolConfig struct {
	Server string
	Tool   string
	Args   string // JSON object, template-resolvable
	Output string // default "result"
}

func (c MCPToolConfig) Validate() error {
	if c.Server == "" {
		return fmt.Errorf("mcp_tool node requires 'server'")
	}
	if c.Tool == "" {
		return fmt.Errorf("mcp_tool node requires 'tool'")
	}
	return nil
}

// UserPromptConfig asks the user for input through the prompt collaborator.
type UserPromptConfig struct {
	Kind    string // text (default), confirm, select
	Message string
	Options string // JSON array for select prompts
	Output  string // default "answer"
}

func (c UserPromptConfig) Validate() error {
	if c.Message == "" {
		return fmt.Errorf("user_prompt node requires 'message'")
	}
	switch c.Kind {
	case "", "text", "confirm", "select":
		return nil
	default:
		return fmt.Errorf("user_prompt node has unknown kind %q", c.Kind)
	}
}

// WorkflowConfig invokes a sub-workflow with explicit variable boundaries.
type WorkflowConfig struct {
	Path   string // definition reference, optionally "path#name"
	Input  string // JSON object or comma-separated key=value pairs
	Output string // same two syntaxes
	Prefix string // applied by the copy-all fallback
}

func (c WorkflowConfig) Validate() error {
	if c.Path == "" {
		return fmt.Errorf("workflow node requires 'path'")
	}
	return nil
}

// TransformConfig runs a jq query over the JSON value of a variable.
type TransformConfig struct {
	Input  string // source variable name
	Query  string // jq expression
	Output string // default: overwrite the input variable
}

func (c TransformConfig) Validate() error {
	if c.Input == "" {
		return fmt.Errorf("transform node requires 'input'")
	}
	if c.Query == "" {
		return fmt.Errorf("transform node requires 'query'")
	}
	return nil
}

// buildConfig decodes the typed config for a recognized node type.
func buildConfig(typ NodeType, props map[string]string) (Config, error) {
	get := func(key string) string { return props[key] }

	var cfg Config
	switch typ {
	case NodeVariable:
		cfg = &VariableConfig{Name: get("name"), Value: get("value")}
	case NodeSet:
		cfg = &SetConfig{Name: get("name"), Value: get("value")}
	case NodeIf, NodeWhile:
		cfg = &BranchConfig{Condition: get("condition"), Language: get("language")}
	case NodeWait:
		cfg = &WaitConfig{Duration: get("duration")}
	case NodeLog:
		cfg = &LogConfig{Message: get("message")}
	case NodeCommand:
		cfg = &CommandConfig{
			Prompt: get("prompt"),
			Model:  get("model"),
			Tools:  splitList(get("tools")),
			Output: get("output"),
			Attach: get("attach"),
		}
	case NodeReview:
		cfg = &ReviewConfig{Message: get("message")}
	case NodeHTTPRequest:
		cfg = &HTTPRequestConfig{
			URL:     get("url"),
			Method:  get("method"),
			Headers: get("headers"),
			Body:    get("body"),
			Output:  get("output"),
		}
	case NodeReadFile:
		cfg = &ReadFileConfig{Path: get("path"), Output: get("output")}
	case NodeWriteFile:
		cfg = &WriteFileConfig{Path: get("path"), Content: get("content"), Mode: get("mode")}
	case NodeMCPTool:
		cfg = &MCPToolConfig{
			Server: get("server"),
			Tool:   get("tool"),
			Args:   get("args"),
			Output: get("output"),
		}
	case NodeUserPrompt:
		cfg = &UserPromptConfig{
			Kind:    get("kind"),
			Message: get("message"),
			Options: get("options"),
			Output:  get("output"),
		}
	case NodeWorkflow:
		cfg = &WorkflowConfig{
			Path:   get("path"),
			Input:  get("input"),
			Output: get("output"),
			Prefix: get("prefix"),
		}
	case NodeTransform:
		cfg = &TransformConfig{Input: get("input"), Query: get("query"), Output: get("output")}
	default:
		return nil, fmt.Errorf("no config for node type %q", typ)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// splitList splits a comma-separated property into trimmed entries.
func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
