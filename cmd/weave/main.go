package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rendis/weave/internal/diagram"
	"github.com/rendis/weave/internal/engine"
	"github.com/rendis/weave/internal/expressions"
	"github.com/rendis/weave/internal/graph"
	"github.com/rendis/weave/internal/handlers"
	"github.com/rendis/weave/internal/history"
	"github.com/rendis/weave/internal/logging"
	"github.com/rendis/weave/internal/remotetool"
	"github.com/rendis/weave/internal/scheduler"
	"github.com/rendis/weave/internal/validation"
	"github.com/rendis/weave/pkg/mcp"
	"github.com/rendis/weave/pkg/schema"
)

const version = "1.0.0"

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cfg := loadConfig()

	var err error
	switch os.Args[1] {
	case "run":
		err = cmdRun(cfg, os.Args[2:])
	case "validate":
		err = cmdValidate(cfg, os.Args[2:])
	case "diagram":
		err = cmdDiagram(cfg, os.Args[2:])
	case "history":
		err = cmdHistory(cfg, os.Args[2:])
	case "schedule":
		err = cmdSchedule(cfg, os.Args[2:])
	case "serve":
		err = cmdServe(cfg, os.Args[2:])
	case "version":
		fmt.Println("weave " + version)
	default:
		usage()
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: weave <command> [args]

commands:
  run <path[#block]>       execute a workflow definition
  validate <path[#block]>  validate a workflow definition
  diagram <path[#block]>   print a Mermaid flowchart of a definition
  history list|show|prune  inspect past executions
  schedule                 run configured cron jobs until interrupted
  serve                    expose the engine as an MCP server over stdio
  version                  print the version`)
}

func newLogger(cfg Config) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.LogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var inner slog.Handler
	if cfg.LogJSON {
		inner = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		inner = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(logging.NewCorrelationHandler(inner))
}

// app bundles the wired execution stack.
type app struct {
	interp   engine.Interpreter
	loader   handlers.DefinitionLoader
	recorder history.Recorder
	pool     *remotetool.Pool
	logger   *slog.Logger
}

func buildApp(cfg Config) (*app, error) {
	logger := newLogger(cfg)

	recorder, err := history.NewLibSQLRecorder("file:" + cfg.DBPath)
	if err != nil {
		return nil, err
	}
	if err := recorder.Migrate(context.Background()); err != nil {
		_ = recorder.Close()
		return nil, err
	}

	conds, err := expressions.NewConditions()
	if err != nil {
		_ = recorder.Close()
		return nil, err
	}

	pool := remotetool.NewPool(cfg.Servers, logger)
	store := &handlers.LocalFileStore{Base: cfg.BasePath}
	loader := &handlers.LocalDefinitionLoader{Base: cfg.BasePath}
	prompter := NewTerminalPrompter()

	registry := handlers.NewRegistry()
	all := handlers.Builtins(handlers.BuiltinDeps{Conditions: conds, Expr: expressions.NewExprEngine()})
	all = append(all,
		&handlers.CommandHandler{Runner: &ExecRunner{Command: cfg.CommandRunner}},
		&handlers.ReviewHandler{Prompter: prompter},
		&handlers.UserPromptHandler{Prompter: prompter},
		&handlers.MCPToolHandler{Caller: pool},
		&handlers.ReadFileHandler{Store: store},
		&handlers.WriteFileHandler{Store: store},
		handlers.NewHTTPRequestHandler(handlers.HTTPConfig{}, nil),
		&handlers.TransformHandler{JQ: expressions.NewGoJQEngine()},
	)
	for _, h := range all {
		if err := registry.Register(h); err != nil {
			_ = recorder.Close()
			return nil, err
		}
	}

	interp, err := engine.New(registry, loader, recorder, logger, engine.Options{
		MaxIterations:     cfg.MaxIterations,
		MaxLoopIterations: cfg.MaxLoopIterations,
	})
	if err != nil {
		_ = recorder.Close()
		return nil, err
	}

	return &app{interp: interp, loader: loader, recorder: recorder, pool: pool, logger: logger}, nil
}

func (a *app) close() {
	_ = a.pool.Close()
	_ = a.recorder.Close()
}

// runRef loads and executes a definition by "path#block" reference.
func (a *app) runRef(ctx context.Context, ref string, seed map[string]any) (*engine.Result, error) {
	path, block, _ := strings.Cut(ref, "#")
	source, err := a.loader.Load(ctx, path)
	if err != nil {
		return nil, err
	}
	return a.interp.RunSource(ctx, ref, source, block, seed)
}

// RunRef satisfies scheduler.WorkflowRunner.
func (a *app) RunRef(ctx context.Context, ref string, seed map[string]any) error {
	_, err := a.runRef(ctx, ref, seed)
	return err
}

func cmdRun(cfg Config, args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	seed := map[string]any{}
	fs.Func("var", "seed variable as name=value (repeatable)", func(s string) error {
		name, value, ok := strings.Cut(s, "=")
		if !ok {
			return fmt.Errorf("--var wants name=value, got %q", s)
		}
		seed[name] = value
		return nil
	})
	quiet := fs.Bool("quiet", false, "suppress the step log, print only the summary")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("run wants exactly one definition reference")
	}

	a, err := buildApp(cfg)
	if err != nil {
		return err
	}
	defer a.close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, runErr := a.runRef(ctx, fs.Arg(0), seed)
	if res != nil {
		if !*quiet {
			for _, entry := range res.Logs {
				fmt.Printf("[%s] %-8s %s\n", entry.Status, entry.NodeID, entry.Message)
			}
		}
		fmt.Printf("execution %s: %s (%s)\n", res.ExecutionID, res.Status, res.CompletedAt.Sub(res.StartedAt).Round(1e6))
	}
	return runErr
}

func cmdValidate(cfg Config, args []string) error {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("validate wants exactly one definition reference")
	}

	path, block, _ := strings.Cut(fs.Arg(0), "#")
	source, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	v, err := validation.NewDocumentValidator()
	if err != nil {
		return err
	}

	result := v.ValidateSource(string(source), block)
	for _, issue := range result.Warnings {
		fmt.Printf("warning %s: %s\n", issue.Path, issue.Message)
	}
	for _, issue := range result.Errors {
		fmt.Printf("error %s: %s\n", issue.Path, issue.Message)
	}
	if !result.Valid() {
		return fmt.Errorf("%d validation errors", len(result.Errors))
	}
	fmt.Println("ok")
	return nil
}

func cmdDiagram(cfg Config, args []string) error {
	fs := flag.NewFlagSet("diagram", flag.ExitOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("diagram wants exactly one definition reference")
	}

	path, block, _ := strings.Cut(fs.Arg(0), "#")
	source, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	wf, err := graph.ParseDocument(string(source), block)
	if err != nil {
		return err
	}

	fmt.Print(diagram.RenderMermaid(fs.Arg(0), wf))
	return nil
}

func cmdHistory(cfg Config, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("history wants list, show, or prune")
	}

	recorder, err := history.NewLibSQLRecorder("file:" + cfg.DBPath)
	if err != nil {
		return err
	}
	defer recorder.Close()
	ctx := context.Background()
	if err := recorder.Migrate(ctx); err != nil {
		return err
	}

	switch args[0] {
	case "list":
		fs := flag.NewFlagSet("history list", flag.ExitOnError)
		workflow := fs.String("workflow", "", "filter by workflow reference")
		status := fs.String("status", "", "filter by status")
		limit := fs.Int("limit", 20, "max rows")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		recs, err := recorder.List(ctx, history.Filter{
			WorkflowRef: *workflow,
			Status:      schema.ExecutionStatus(*status),
			Limit:       *limit,
		})
		if err != nil {
			return err
		}
		for _, rec := range recs {
			fmt.Printf("%s  %-9s  %s  %s\n", rec.ID, rec.Status, rec.StartedAt.Format("2006-01-02 15:04:05"), rec.WorkflowRef)
		}
		return nil

	case "show":
		if len(args) != 2 {
			return fmt.Errorf("history show wants an execution id")
		}
		rec, err := recorder.Get(ctx, args[1])
		if err != nil {
			return err
		}
		fmt.Printf("execution %s  %s  %s\n", rec.ID, rec.Status, rec.WorkflowRef)
		if rec.Error != "" {
			fmt.Println("error:", rec.Error)
		}
		for _, step := range rec.Steps {
			fmt.Printf("[%s] %-8s %s\n", step.Status, step.NodeID, step.Message)
		}
		return nil

	case "prune":
		fs := flag.NewFlagSet("history prune", flag.ExitOnError)
		keep := fs.Int("keep", cfg.HistoryKeep, "executions to keep")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		n, err := recorder.Prune(ctx, *keep)
		if err != nil {
			return err
		}
		fmt.Printf("pruned %d executions\n", n)
		return recorder.Vacuum(ctx)

	default:
		return fmt.Errorf("unknown history subcommand %q", args[0])
	}
}

func cmdServe(cfg Config, args []string) error {
	a, err := buildApp(cfg)
	if err != nil {
		return err
	}
	defer a.close()

	validator, err := validation.NewDocumentValidator()
	if err != nil {
		return err
	}

	srv := mcp.NewWeaveServer(mcp.WeaveServerDeps{
		Interpreter: a.interp,
		Loader:      a.loader,
		Recorder:    a.recorder,
		Validator:   validator,
		Logger:      a.logger,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return srv.Serve(ctx)
}

func cmdSchedule(cfg Config, args []string) error {
	if len(cfg.Jobs) == 0 {
		return fmt.Errorf("no jobs configured in settings.json")
	}

	a, err := buildApp(cfg)
	if err != nil {
		return err
	}
	defer a.close()

	sched, err := scheduler.NewScheduler(cfg.Jobs, a, a.logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := sched.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	sched.Stop()
	return nil
}
