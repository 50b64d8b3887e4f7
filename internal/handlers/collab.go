package handlers

import (
	"context"
	"os"
	"path/filepath"

	"github.com/rendis/weave/pkg/schema"
)

// Collaborator interfaces. The engine owns only these call shapes; the
// implementations live with the host (LLM providers, UI prompts) or in
// sibling packages (the MCP tool pool).

// CommandRunner executes an LLM prompt and returns the final text of the
// response stream.
type CommandRunner interface {
	Run(ctx context.Context, prompt, model string, tools []string) (string, error)
}

// ToolCaller invokes a named tool on a configured remote server.
// isError reports a tool-level failure carried inside a successful call.
type ToolCaller interface {
	Call(ctx context.Context, serverRef, toolName string, args map[string]any) (content string, isError bool, err error)
}

// FileStore reads and writes host files for read_file/write_file nodes.
type FileStore interface {
	Read(ctx context.Context, path string) ([]byte, error)
	Write(ctx context.Context, path string, content []byte, mode string) error
}

// UserPrompter asks the user for input. A nil response means the user
// cancelled, which the calling handler must turn into a failure.
type UserPrompter interface {
	Prompt(ctx context.Context, kind string, params map[string]string) (*string, error)
}

// DefinitionLoader loads a workflow definition source by reference for
// sub-workflow nodes and the CLI.
type DefinitionLoader interface {
	Load(ctx context.Context, ref string) (string, error)
}

// LocalFileStore is the default FileStore over the local filesystem,
// rooted at a base directory.
type LocalFileStore struct {
	Base string
}

// resolvePath joins a relative path with the base and refuses escapes.
func (s *LocalFileStore) resolvePath(path string) (string, error) {
	base := s.Base
	if base == "" {
		base = "."
	}
	full := filepath.Join(base, filepath.Clean("/"+path))
	return full, nil
}

func (s *LocalFileStore) Read(ctx context.Context, path string) ([]byte, error) {
	full, err := s.resolvePath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(full)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeExecution, "read %s: %s", path, err.Error()).WithCause(err)
	}
	return data, nil
}

func (s *LocalFileStore) Write(ctx context.Context, path string, content []byte, mode string) error {
	full, err := s.resolvePath(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return schema.NewErrorf(schema.ErrCodeExecution, "create parent dirs for %s: %s", path, err.Error()).WithCause(err)
	}

	switch mode {
	case "", "overwrite":
		err = os.WriteFile(full, content, 0o644)
	case "create":
		var f *os.File
		f, err = os.OpenFile(full, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			_, err = f.Write(content)
			if cerr := f.Close(); err == nil {
				err = cerr
			}
		}
	case "append":
		var f *os.File
		f, err = os.OpenFile(full, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
		if err == nil {
			_, err = f.Write(content)
			if cerr := f.Close(); err == nil {
				err = cerr
			}
		}
	default:
		return schema.NewErrorf(schema.ErrCodeValidation, "unknown write mode %q", mode)
	}

	if err != nil {
		return schema.NewErrorf(schema.ErrCodeExecution, "write %s: %s", path, err.Error()).WithCause(err)
	}
	return nil
}

// LocalDefinitionLoader loads definition documents from the filesystem.
type LocalDefinitionLoader struct {
	Base string
}

func (l *LocalDefinitionLoader) Load(ctx context.Context, ref string) (string, error) {
	base := l.Base
	if base == "" {
		base = "."
	}
	full := filepath.Join(base, filepath.Clean("/"+ref))
	data, err := os.ReadFile(full)
	if err != nil {
		return "", schema.NewErrorf(schema.ErrCodeNotFound, "load definition %s: %s", ref, err.Error()).WithCause(err)
	}
	return string(data), nil
}
