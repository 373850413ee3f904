package fcs

import (
	"context"
	"fmt"
	"io"
	"os"
)

// DebugPayload stands in for a capture when no hardware is attached.
const DebugPayload = "10 11 -9 80\n54 5 6 98\n"

// DryRunDispatcher prints each command instead of executing it.
type DryRunDispatcher struct {
	Program string
	Out     io.Writer
	Payload []byte
}

// NewDryRunDispatcher returns a dispatcher that prints to stdout and
// streams DebugPayload for every read.
func NewDryRunDispatcher(program string) *DryRunDispatcher {
	if program == "" {
		program = DefaultProgram
	}
	return &DryRunDispatcher{Program: program, Out: os.Stdout, Payload: []byte(DebugPayload)}
}

func (d *DryRunDispatcher) Run(ctx context.Context, cmd Command) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	fmt.Fprintf(d.Out, "[DRY-RUN] Would execute: %s %s\n", d.Program, cmd)
	return nil
}

func (d *DryRunDispatcher) Stream(ctx context.Context, cmd Command, w io.Writer) error {
	if err := d.Run(ctx, cmd); err != nil {
		return err
	}
	_, err := w.Write(d.Payload)
	return err
}
