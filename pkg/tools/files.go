package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/pkg/errors"

	agent "github.com/Protocol-Lattice/toolloop"
	"github.com/Protocol-Lattice/toolloop/pkg/toolcall"
)

// Workspace resolves tool paths. With a Root, relative paths are joined to it
// and paths leaving it are rejected; without one they are used as given.
type Workspace struct {
	Root string
}

func (w Workspace) resolve(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", errors.New("path is empty")
	}
	if w.Root == "" {
		return filepath.Clean(path), nil
	}
	root, err := filepath.Abs(w.Root)
	if err != nil {
		return "", errors.Wrap(err, "resolve workspace root")
	}
	full := path
	if !filepath.IsAbs(full) {
		full = filepath.Join(root, full)
	}
	full = filepath.Clean(full)
	rel, err := filepath.Rel(root, full)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", errors.Errorf("path %q is outside the workspace", path)
	}
	return full, nil
}

// ReadFileTool returns the content of a file.
type ReadFileTool struct{ Workspace }

func (t *ReadFileTool) Spec() agent.ToolSpec {
	return agent.ToolSpec{
		Name:        "read_file",
		Description: "Read the content of a specified file.",
		Signature:   "read_file(path: str) -> str",
		Examples:    []string{`@read_file("README.md")`},
	}
}

func (t *ReadFileTool) Invoke(_ context.Context, req agent.ToolRequest) (any, error) {
	args, err := toolcall.ParseArguments(req.Arguments)
	if err != nil {
		return nil, err
	}
	path, err := args.String("path", 0)
	if err != nil {
		return nil, err
	}
	return t.read(path)
}

func (w Workspace) read(path string) (string, error) {
	full, err := w.resolve(path)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(full)
	if err != nil {
		return "", errors.WithStack(err)
	}
	return string(data), nil
}

// ReadFilesTool returns the content of several files, each under a "# path"
// header. A file that cannot be read reports its error in place of content.
type ReadFilesTool struct{ Workspace }

func (t *ReadFilesTool) Spec() agent.ToolSpec {
	return agent.ToolSpec{
		Name:        "read_files",
		Description: "Read and return the contents of multiple files.",
		Signature:   "read_files(*paths: str) -> str",
		Examples:    []string{`@read_files("go.mod", "README.md")`},
	}
}

func (t *ReadFilesTool) Invoke(_ context.Context, req agent.ToolRequest) (any, error) {
	args, err := toolcall.ParseArguments(req.Arguments)
	if err != nil {
		return nil, err
	}
	paths := make([]string, 0, len(args.Positional))
	for _, v := range args.Positional {
		p, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("%w: expected file paths, got %T", toolcall.ErrInvalidArguments, v)
		}
		paths = append(paths, p)
	}
	if v, ok := args.Keyword["paths"]; ok {
		more, err := stringList(v)
		if err != nil {
			return nil, err
		}
		paths = append(paths, more...)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("%w: no paths given", toolcall.ErrInvalidArguments)
	}

	var b strings.Builder
	for _, path := range paths {
		fmt.Fprintf(&b, "\n# %s\n", path)
		content, err := t.read(path)
		if err != nil {
			fmt.Fprintf(&b, "error: %v\n", err)
			continue
		}
		b.WriteString(content)
	}
	return b.String(), nil
}

// WriteFileTool writes content to a file, creating parent directories.
type WriteFileTool struct{ Workspace }

func (t *WriteFileTool) Spec() agent.ToolSpec {
	return agent.ToolSpec{
		Name:        "write_file",
		Description: "Write content to a specified file. Parent directories are created.",
		Signature:   "write_file(path: str, content: str) -> str",
		Examples:    []string{`@write_file("notes/todo.txt", """buy milk""")`},
	}
}

func (t *WriteFileTool) Invoke(_ context.Context, req agent.ToolRequest) (any, error) {
	args, err := toolcall.ParseArguments(req.Arguments)
	if err != nil {
		return nil, err
	}
	path, err := args.String("path", 0)
	if err != nil {
		return nil, err
	}
	content, err := args.String("content", 1)
	if err != nil {
		return nil, err
	}
	full, err := t.resolve(path)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return nil, errors.WithStack(err)
	}
	if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
		return nil, errors.WithStack(err)
	}
	abs, err := filepath.Abs(full)
	if err != nil {
		abs = full
	}
	return "Content written to " + filepath.ToSlash(abs), nil
}

// ListDirTool lists the entries of a directory, directories suffixed with "/"
// and symlinks with "@".
type ListDirTool struct{ Workspace }

var defaultIgnore = []string{"__pycache__", "node_modules"}

func (t *ListDirTool) Spec() agent.ToolSpec {
	return agent.ToolSpec{
		Name:        "list_dir",
		Description: "List files and directories in the given path.",
		Signature:   `list_dir(path: str = ".", show_hidden: bool = False, ignore: list[str] = ["__pycache__", "node_modules"]) -> str`,
	}
}

func (t *ListDirTool) Invoke(_ context.Context, req agent.ToolRequest) (any, error) {
	args, err := toolcall.ParseArguments(req.Arguments)
	if err != nil {
		return nil, err
	}
	path, err := args.StringOr("path", 0, ".")
	if err != nil {
		return nil, err
	}
	showHidden, err := args.BoolOr("show_hidden", 1, false)
	if err != nil {
		return nil, err
	}
	ignore := defaultIgnore
	if v, ok := args.Get("ignore", 2); ok {
		ignore, err = stringList(v)
		if err != nil {
			return nil, err
		}
	}
	full, err := t.resolve(path)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(full)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if !showHidden && strings.HasPrefix(name, ".") {
			continue
		}
		if slices.Contains(ignore, name) {
			continue
		}
		item := filepath.ToSlash(filepath.Join(path, name))
		switch {
		case e.Type()&os.ModeSymlink != 0:
			item += "@"
		case e.IsDir():
			item += "/"
		}
		lines = append(lines, item)
	}
	return strings.Join(lines, "\n"), nil
}

func stringList(v any) ([]string, error) {
	items, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: expected a list of strings, got %T", toolcall.ErrInvalidArguments, v)
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("%w: expected a list of strings, got element %T", toolcall.ErrInvalidArguments, item)
		}
		out = append(out, s)
	}
	return out, nil
}
