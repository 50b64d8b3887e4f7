package mcp

import (
	"context"
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/server"
	"github.com/rendis/weave/internal/engine"
	"github.com/rendis/weave/internal/handlers"
	"github.com/rendis/weave/internal/history"
	"github.com/rendis/weave/internal/validation"
)

// WeaveServerDeps holds the dependencies for creating a WeaveServer.
type WeaveServerDeps struct {
	Interpreter engine.Interpreter
	Loader      handlers.DefinitionLoader
	Recorder    history.Recorder
	Validator   *validation.DocumentValidator
	Logger      *slog.Logger
}

// WeaveServer wraps an MCP server with weave-specific tool handlers.
type WeaveServer struct {
	interp    engine.Interpreter
	loader    handlers.DefinitionLoader
	recorder  history.Recorder
	validator *validation.DocumentValidator
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// NewWeaveServer creates a new WeaveServer with all 3 tools registered.
func NewWeaveServer(deps WeaveServerDeps) *WeaveServer {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}

	s := &WeaveServer{
		interp:    deps.Interpreter,
		loader:    deps.Loader,
		recorder:  deps.Recorder,
		validator: deps.Validator,
		logger:    logger,
	}

	mcpSrv := server.NewMCPServer(
		"weave",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithRecovery(),
		server.WithInstructions("Weave executes workflow definitions written as step lists in markdown documents. Use weave.run to execute a workflow by reference, weave.validate to check a definition without running it, and weave.history to inspect past executions."),
	)

	mcpSrv.AddTools(s.tools()...)
	s.mcpServer = mcpSrv
	return s
}

// Serve starts the stdio transport and blocks until ctx is cancelled or stdin closes.
func (s *WeaveServer) Serve(ctx context.Context) error {
	stdio := server.NewStdioServer(s.mcpServer)
	return stdio.Listen(ctx, os.Stdin, os.Stdout)
}

// MCPServer returns the underlying MCPServer for testing or custom transports.
func (s *WeaveServer) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// tools returns the 3 registered MCP tools as ServerTool entries.
func (s *WeaveServer) tools() []server.ServerTool {
	return []server.ServerTool{
		{Tool: runTool(), Handler: s.handleRun},
		{Tool: validateTool(), Handler: s.handleValidate},
		{Tool: historyTool(), Handler: s.handleHistory},
	}
}
