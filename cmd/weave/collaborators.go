package main

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/rendis/weave/pkg/schema"
)

// ExecRunner serves command nodes by invoking an external program: the
// prompt goes to stdin, the response comes back on stdout. Model and tool
// hints are passed through the environment.
type ExecRunner struct {
	Command []string
}

func (r *ExecRunner) Run(ctx context.Context, prompt, model string, tools []string) (string, error) {
	if len(r.Command) == 0 {
		return "", schema.NewError(schema.ErrCodeExecution, "no command runner configured (set command_runner in settings.json)")
	}

	cmd := exec.CommandContext(ctx, r.Command[0], r.Command[1:]...)
	cmd.Stdin = strings.NewReader(prompt)
	cmd.Env = append(os.Environ(),
		"WEAVE_MODEL="+model,
		"WEAVE_TOOLS="+strings.Join(tools, ","),
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return "", schema.NewErrorf(schema.ErrCodeHandlerFailed, "command runner: %s", msg).WithCause(err)
	}
	return strings.TrimSpace(stdout.String()), nil
}

// TerminalPrompter serves review and user_prompt nodes on the terminal. An
// EOF (ctrl-d) answer counts as a dismissal.
type TerminalPrompter struct {
	In  io.Reader
	Out io.Writer
}

func NewTerminalPrompter() *TerminalPrompter {
	return &TerminalPrompter{In: os.Stdin, Out: os.Stdout}
}

func (p *TerminalPrompter) Prompt(ctx context.Context, kind string, params map[string]string) (*string, error) {
	switch kind {
	case "review":
		fmt.Fprintln(p.Out, "--- output ---")
		fmt.Fprintln(p.Out, params["output"])
		fmt.Fprintln(p.Out, "--------------")
		if msg := params["message"]; msg != "" {
			fmt.Fprintln(p.Out, msg)
		}
		fmt.Fprint(p.Out, "feedback (empty to accept): ")
	case "confirm":
		fmt.Fprintf(p.Out, "%s [y/N]: ", params["message"])
	case "select":
		fmt.Fprintln(p.Out, params["message"])
		if opts := params["options"]; opts != "" {
			fmt.Fprintln(p.Out, "options:", opts)
		}
		fmt.Fprint(p.Out, "> ")
	default:
		fmt.Fprintf(p.Out, "%s: ", params["message"])
	}

	reader := bufio.NewReader(p.In)
	line, err := reader.ReadString('\n')
	if err != nil && line == "" {
		// EOF with nothing typed: the user dismissed the prompt.
		return nil, nil
	}
	answer := strings.TrimRight(line, "\r\n")
	return &answer, nil
}
