package fcs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"

	"github.com/banshee-data/bpm-calibrate/internal/monitoring"
)

// DefaultProgram is the control client looked up on PATH.
const DefaultProgram = "fcs_client"

// ExecDispatcher runs the control client as a child process.
type ExecDispatcher struct {
	Program string
}

// NewExecDispatcher returns a dispatcher for program, or DefaultProgram
// when program is empty.
func NewExecDispatcher(program string) *ExecDispatcher {
	if program == "" {
		program = DefaultProgram
	}
	return &ExecDispatcher{Program: program}
}

// Run executes cmd and discards its output.
func (e *ExecDispatcher) Run(ctx context.Context, cmd Command) error {
	return e.exec(ctx, cmd, io.Discard)
}

// Stream executes cmd and copies its standard output to w.
func (e *ExecDispatcher) Stream(ctx context.Context, cmd Command, w io.Writer) error {
	return e.exec(ctx, cmd, w)
}

func (e *ExecDispatcher) exec(ctx context.Context, cmd Command, stdout io.Writer) error {
	monitoring.Debugf("exec %s %s", e.Program, cmd)

	c := exec.CommandContext(ctx, e.Program, cmd.Args...)
	var stderr bytes.Buffer
	c.Stdout = stdout
	c.Stderr = &stderr

	err := c.Run()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%s interrupted: %w", cmd.Stage, ctxErr)
	}
	if err == nil {
		return nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return &HardwareCommandError{
			Stage:    cmd.Stage,
			ExitCode: exitErr.ExitCode(),
			Stderr:   stderr.String(),
		}
	}
	return fmt.Errorf("start %s for %s: %w", e.Program, cmd.Stage, err)
}
