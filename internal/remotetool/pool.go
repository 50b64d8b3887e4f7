// Package remotetool connects mcp_tool nodes to external MCP servers over
// stdio. Clients are dialed lazily, initialized once, and reused for the
// life of the pool.
package remotetool

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/rendis/weave/pkg/schema"
)

// ServerConfig describes one configured MCP server.
type ServerConfig struct {
	Name    string   `json:"name"`
	Command string   `json:"command"`
	Args    []string `json:"args,omitempty"`
	Env     []string `json:"env,omitempty"`
}

// Pool manages stdio MCP clients keyed by server name. It implements the
// handlers.ToolCaller contract.
type Pool struct {
	servers map[string]ServerConfig
	logger  *slog.Logger

	mu      sync.Mutex
	clients map[string]*client.Client
}

// NewPool creates a pool over the given server configs.
func NewPool(servers []ServerConfig, logger *slog.Logger) *Pool {
	if logger == nil {
		logger = slog.Default()
	}
	byName := make(map[string]ServerConfig, len(servers))
	for _, s := range servers {
		byName[s.Name] = s
	}
	return &Pool{
		servers: byName,
		logger:  logger,
		clients: make(map[string]*client.Client),
	}
}

// Call invokes toolName on the named server and returns the concatenated
// text content of the result.
func (p *Pool) Call(ctx context.Context, serverRef, toolName string, args map[string]any) (string, bool, error) {
	c, err := p.acquire(ctx, serverRef)
	if err != nil {
		return "", false, err
	}

	req := mcp.CallToolRequest{}
	req.Params.Name = toolName
	req.Params.Arguments = args

	result, err := c.CallTool(ctx, req)
	if err != nil {
		// Drop the client so the next call redials a possibly dead server.
		p.evict(serverRef)
		return "", false, schema.NewErrorf(schema.ErrCodeTool, "call tool %s on %s: %s", toolName, serverRef, err.Error()).WithCause(err)
	}

	return textContent(result), result.IsError, nil
}

// acquire returns a connected, initialized client for the server.
func (p *Pool) acquire(ctx context.Context, serverRef string) (*client.Client, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if c, ok := p.clients[serverRef]; ok {
		return c, nil
	}

	cfg, ok := p.servers[serverRef]
	if !ok {
		return nil, schema.NewErrorf(schema.ErrCodeNotFound, "mcp server %q not configured", serverRef)
	}

	c, err := client.NewStdioMCPClient(cfg.Command, cfg.Env, cfg.Args...)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeTool, "start mcp server %s: %s", serverRef, err.Error()).WithCause(err)
	}

	initReq := mcp.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcp.Implementation{Name: "weave", Version: "1.0.0"}
	if _, err := c.Initialize(ctx, initReq); err != nil {
		_ = c.Close()
		return nil, schema.NewErrorf(schema.ErrCodeTool, "initialize mcp server %s: %s", serverRef, err.Error()).WithCause(err)
	}

	p.logger.Info("mcp server connected", "server", serverRef, "command", cfg.Command)
	p.clients[serverRef] = c
	return c, nil
}

func (p *Pool) evict(serverRef string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if c, ok := p.clients[serverRef]; ok {
		_ = c.Close()
		delete(p.clients, serverRef)
	}
}

// Close shuts down every connected client.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var errs []string
	for name, c := range p.clients {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", name, err))
		}
		delete(p.clients, name)
	}
	if len(errs) > 0 {
		return fmt.Errorf("close mcp clients: %s", strings.Join(errs, "; "))
	}
	return nil
}

// textContent concatenates the text parts of a tool result.
func textContent(result *mcp.CallToolResult) string {
	var b strings.Builder
	for _, content := range result.Content {
		if tc, ok := mcp.AsTextContent(content); ok {
			if b.Len() > 0 {
				b.WriteString("\n")
			}
			b.WriteString(tc.Text)
		}
	}
	return b.String()
}
