package tools

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"

	pkgerrors "github.com/pkg/errors"

	agent "github.com/Protocol-Lattice/toolloop"
	"github.com/Protocol-Lattice/toolloop/pkg/toolcall"
)

// DefaultBashTimeout bounds a command when BashTool.Timeout is zero.
const DefaultBashTimeout = 2 * time.Minute

// ErrBashTimedOut is returned when a command outlives its timeout.
var ErrBashTimedOut = errors.New("bash command timed out")

// BashTool runs a shell command. It executes arbitrary commands; only
// register it for trusted agents.
type BashTool struct {
	Workspace
	Timeout time.Duration
}

func (t *BashTool) Spec() agent.ToolSpec {
	return agent.ToolSpec{
		Name:        "bash",
		Description: "Execute a bash command and return its output. A failing command returns its exit status and stderr.",
		Signature:   "bash(cmd: str) -> str",
		Examples:    []string{`@bash("ls -la")`},
	}
}

func (t *BashTool) Invoke(ctx context.Context, req agent.ToolRequest) (any, error) {
	args, err := toolcall.ParseArguments(req.Arguments)
	if err != nil {
		return nil, err
	}
	command, err := args.String("cmd", 0)
	if err != nil {
		return nil, err
	}

	timeout := t.Timeout
	if timeout <= 0 {
		timeout = DefaultBashTimeout
	}
	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(timeoutCtx, "bash", "-c", command)
	if t.Root != "" {
		cmd.Dir = t.Root
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err = cmd.Run()
	if errors.Is(timeoutCtx.Err(), context.DeadlineExceeded) {
		return nil, pkgerrors.WithStack(fmt.Errorf("%w: command=%q timeout=%s", ErrBashTimedOut, command, timeout))
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return fmt.Sprintf("exit status %d\n%s", exitErr.ExitCode(), stderr.String()), nil
	}
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "run %q", command)
	}
	return stdout.String(), nil
}
