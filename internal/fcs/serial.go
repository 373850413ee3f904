package fcs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.bug.st/serial"

	"github.com/banshee-data/bpm-calibrate/internal/monitoring"
)

// PortOptions describes the serial connection to an RF front-end
// controller attached over USB.
type PortOptions struct {
	BaudRate int    `json:"baud_rate" yaml:"baud_rate"`
	DataBits int    `json:"data_bits" yaml:"data_bits"`
	StopBits int    `json:"stop_bits" yaml:"stop_bits"`
	Parity   string `json:"parity" yaml:"parity"`
}

// Normalize validates the options and applies defaults for any unset values.
func (o PortOptions) Normalize() (PortOptions, error) {
	opts := o

	if opts.BaudRate <= 0 {
		opts.BaudRate = 115200
	}

	if opts.DataBits == 0 {
		opts.DataBits = 8
	}
	if opts.DataBits < 5 || opts.DataBits > 8 {
		return opts, fmt.Errorf("invalid data bits %d: must be between 5 and 8", opts.DataBits)
	}

	if opts.StopBits == 0 {
		opts.StopBits = 1
	}
	if opts.StopBits != 1 && opts.StopBits != 2 {
		return opts, fmt.Errorf("invalid stop bits %d: supported values are 1 or 2", opts.StopBits)
	}

	switch strings.TrimSpace(strings.ToUpper(opts.Parity)) {
	case "", "N", "NONE":
		opts.Parity = "N"
	case "E", "EVEN":
		opts.Parity = "E"
	case "O", "ODD":
		opts.Parity = "O"
	default:
		return opts, fmt.Errorf("unsupported parity %q: expected N, E, or O", opts.Parity)
	}

	return opts, nil
}

// SerialMode converts the options into the mode go.bug.st/serial expects.
func (o PortOptions) SerialMode() (*serial.Mode, error) {
	opts, err := o.Normalize()
	if err != nil {
		return nil, err
	}

	mode := &serial.Mode{
		BaudRate: opts.BaudRate,
		DataBits: opts.DataBits,
		StopBits: serial.OneStopBit,
		Parity:   serial.NoParity,
	}
	if opts.StopBits == 2 {
		mode.StopBits = serial.TwoStopBits
	}
	switch opts.Parity {
	case "E":
		mode.Parity = serial.EvenParity
	case "O":
		mode.Parity = serial.OddParity
	}
	return mode, nil
}

// readPollInterval bounds how long a read blocks on ports that support
// read timeouts, so a cancelled context is noticed between reads.
const readPollInterval = 100 * time.Millisecond

// ErrLinkInterrupted is returned by a SerialDispatcher after a command was
// cancelled while waiting for its reply. The reply may still arrive, so the
// link can no longer pair commands with replies.
var ErrLinkInterrupted = errors.New("serial link interrupted while awaiting a reply")

type readTimeouter interface {
	SetReadTimeout(t time.Duration) error
}

// SerialDispatcher drives a bench adapter that accepts the fcs_client
// argv as one text line per command and answers with any output lines
// followed by "OK" or "ERR <code> [message]".
//
// A cancelled context interrupts a pending reply. Ports with read timeouts
// are polled; other ports are closed.
type SerialDispatcher struct {
	mu      sync.Mutex
	port    io.ReadWriteCloser
	polling bool
	pending []byte
	broken  error
}

// NewSerialDispatcher wraps an already open port.
func NewSerialDispatcher(port io.ReadWriteCloser) *SerialDispatcher {
	s := &SerialDispatcher{port: port}
	if p, ok := port.(readTimeouter); ok {
		if err := p.SetReadTimeout(readPollInterval); err != nil {
			monitoring.Logf("serial read timeout unavailable, cancellation closes the port: %v", err)
		} else {
			s.polling = true
		}
	}
	return s
}

// OpenSerial opens the serial device at path.
func OpenSerial(path string, opts PortOptions) (*SerialDispatcher, error) {
	mode, err := opts.SerialMode()
	if err != nil {
		return nil, err
	}
	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", path, err)
	}
	return NewSerialDispatcher(port), nil
}

func (s *SerialDispatcher) Run(ctx context.Context, cmd Command) error {
	return s.Stream(ctx, cmd, io.Discard)
}

func (s *SerialDispatcher) Stream(ctx context.Context, cmd Command, w io.Writer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.broken != nil {
		return fmt.Errorf("%s command: %w", cmd.Stage, s.broken)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if !s.polling {
		stop := context.AfterFunc(ctx, func() { s.port.Close() })
		defer func() {
			if !stop() {
				s.broken = ErrLinkInterrupted
			}
		}()
	}

	if _, err := io.WriteString(s.port, cmd.String()+"\n"); err != nil {
		return fmt.Errorf("write %s command: %w", cmd.Stage, err)
	}

	for {
		line, err := s.readLine(ctx)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				s.broken = ErrLinkInterrupted
				monitoring.Logf("%s reply abandoned: %v", cmd.Stage, ctxErr)
				return ctxErr
			}
			return fmt.Errorf("read %s reply: %w", cmd.Stage, err)
		}
		reply := strings.TrimRight(line, "\r")
		switch {
		case reply == "OK":
			return nil
		case reply == "ERR" || strings.HasPrefix(reply, "ERR "):
			return replyError(cmd.Stage, reply)
		}
		if _, err := io.WriteString(w, reply+"\n"); err != nil {
			return fmt.Errorf("copy %s output: %w", cmd.Stage, err)
		}
	}
}

// readLine returns the next line without its newline. A read that times
// out returns no bytes and no error, which only re-checks ctx.
func (s *SerialDispatcher) readLine(ctx context.Context) (string, error) {
	buf := make([]byte, 256)
	for {
		if i := bytes.IndexByte(s.pending, '\n'); i >= 0 {
			line := string(s.pending[:i])
			s.pending = s.pending[i+1:]
			return line, nil
		}
		if err := ctx.Err(); err != nil {
			return "", err
		}
		n, err := s.port.Read(buf)
		s.pending = append(s.pending, buf[:n]...)
		if err != nil {
			return "", err
		}
	}
}

// Close closes the underlying port.
func (s *SerialDispatcher) Close() error {
	return s.port.Close()
}

func replyError(stage Stage, reply string) error {
	fields := strings.Fields(reply)
	code := 1
	msg := ""
	if len(fields) > 1 {
		if n, err := strconv.Atoi(fields[1]); err == nil && n != 0 {
			code = n
			msg = strings.Join(fields[2:], " ")
		} else {
			msg = strings.Join(fields[1:], " ")
		}
	}
	return &HardwareCommandError{Stage: stage, ExitCode: code, Stderr: msg}
}

// Router sends RF front-end commands to one dispatcher and everything
// else to another.
type Router struct {
	LogicDevice Dispatcher
	RFFrontend  Dispatcher
}

func (r *Router) pick(stage Stage) Dispatcher {
	if stage == StageRFFrontend && r.RFFrontend != nil {
		return r.RFFrontend
	}
	return r.LogicDevice
}

func (r *Router) Run(ctx context.Context, cmd Command) error {
	return r.pick(cmd.Stage).Run(ctx, cmd)
}

func (r *Router) Stream(ctx context.Context, cmd Command, w io.Writer) error {
	return r.pick(cmd.Stage).Stream(ctx, cmd, w)
}
