// Package fcs dispatches argument vectors to the front-end control client
// that configures the BPM logic device and RF front end.
package fcs

import (
	"context"
	"fmt"
	"io"
	"strings"
)

// Stage identifies which hardware step a command belongs to.
type Stage int

const (
	StageLogicDevice Stage = iota
	StageRFFrontend
	StageTrigger
	StageReadCurve
)

func (s Stage) String() string {
	switch s {
	case StageLogicDevice:
		return "logic_device"
	case StageRFFrontend:
		return "rf_frontend"
	case StageTrigger:
		return "trigger"
	case StageReadCurve:
		return "read_curve"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}

// Command is one invocation of the control client. Args excludes the
// program name and must be passed through in order.
type Command struct {
	Stage Stage
	Args  []string
}

func (c Command) String() string {
	return strings.Join(c.Args, " ")
}

// Dispatcher executes commands. Run and Stream block until the command
// has finished or ctx is done.
type Dispatcher interface {
	Run(ctx context.Context, cmd Command) error
	// Stream writes the command's standard output to w.
	Stream(ctx context.Context, cmd Command, w io.Writer) error
}

// HardwareCommandError reports a control client invocation that exited
// with a non-zero status.
type HardwareCommandError struct {
	Stage    Stage
	ExitCode int
	Stderr   string
}

func (e *HardwareCommandError) Error() string {
	msg := fmt.Sprintf("%s command failed with exit code %d", e.Stage, e.ExitCode)
	if s := strings.TrimSpace(e.Stderr); s != "" {
		msg += ": " + s
	}
	return msg
}
