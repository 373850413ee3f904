// Package experiment runs a single BPM acquisition from configuration to
// signed artifact and metadata document.
package experiment

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"time"

	"github.com/banshee-data/bpm-calibrate/internal/bpm"
	"github.com/banshee-data/bpm-calibrate/internal/fcs"
	"github.com/banshee-data/bpm-calibrate/internal/fsutil"
	"github.com/banshee-data/bpm-calibrate/internal/metadata"
	"github.com/banshee-data/bpm-calibrate/internal/monitoring"
	"github.com/banshee-data/bpm-calibrate/internal/timeutil"
)

// DefaultSettleDelay gives the RF front-end controller time to notice the
// previous connection has closed.
const DefaultSettleDelay = 200 * time.Millisecond

// ErrCancelled is returned when a run stops because its context was
// cancelled or the trigger timed out.
var ErrCancelled = errors.New("run cancelled")

// State is a step of the acquisition state machine.
type State int

const (
	ConfiguredIdle State = iota
	LogicDevicePushed
	RFFrontendPushed
	Acquiring
	Captured
	Signed
	MetadataWritten
	Done
)

var stateNames = [...]string{
	ConfiguredIdle:    "configured_idle",
	LogicDevicePushed: "logic_device_pushed",
	RFFrontendPushed:  "rf_frontend_pushed",
	Acquiring:         "acquiring",
	Captured:          "captured",
	Signed:            "signed",
	MetadataWritten:   "metadata_written",
	Done:              "done",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// RunError describes a failed run. HardwareTouched is false only when the
// run failed before the first hardware command was dispatched.
type RunError struct {
	State           State
	Datapath        bpm.Datapath
	HardwareTouched bool
	Err             error
}

func (e *RunError) Error() string {
	where := "before dispatch"
	if e.HardwareTouched {
		where = "after dispatch"
	}
	return fmt.Sprintf("%s run failed in state %s (%s): %v", e.Datapath, e.State, where, e.Err)
}

func (e *RunError) Unwrap() error { return e.Err }

// Pipeline holds the collaborators of an acquisition run.
type Pipeline struct {
	Dispatcher fcs.Dispatcher
	FS         fsutil.FileSystem
	Clock      timeutil.Clock
	FPGAHost   string
	RFFEHost   string
	// SettleDelay follows the RF front-end push.
	SettleDelay time.Duration
	// TriggerTimeout bounds the blocking trigger. Zero waits forever.
	TriggerTimeout time.Duration
}

// Result describes a completed run.
type Result struct {
	Datapath     bpm.Datapath
	ArtifactPath string
	MetadataPath string
	Signature    string
	Start        time.Time
	Bytes        int
	Derived      bpm.Derived
}

type run struct {
	p        *Pipeline
	dp       bpm.Datapath
	state    State
	touched  bool
	created  []string
	artifact string
	document string
}

// Run executes one acquisition for dp and writes its artifact to
// artifactPath. Configuration errors and path collisions are reported
// before any hardware is touched. On failure every file the run created
// is removed.
func (p *Pipeline) Run(ctx context.Context, cfg *metadata.Record, dp bpm.Datapath, artifactPath string) (*Result, error) {
	r := &run{p: p, dp: dp, artifact: artifactPath, document: metadata.DocumentPath(artifactPath)}

	derived, err := bpm.Derive(cfg, dp)
	if err != nil {
		return nil, r.fail(fmt.Errorf("derive parameters: %w", err))
	}
	settings, err := bpm.Resolve(cfg)
	if err != nil {
		return nil, r.fail(fmt.Errorf("resolve settings: %w", err))
	}
	logic := bpm.LogicDeviceArgs(settings, derived, p.FPGAHost)
	rffe := bpm.RFFrontendArgs(settings, p.RFFEHost)
	trigger := bpm.TriggerArgs(p.FPGAHost)
	readCurve := bpm.ReadCurveArgs(derived, p.FPGAHost)

	for _, path := range []string{r.artifact, r.document} {
		if p.FS.Exists(path) {
			return nil, r.fail(fmt.Errorf("%w: %s", fsutil.ErrPathExists, path))
		}
	}
	if err := p.FS.MkdirAll(filepath.Dir(artifactPath), 0755); err != nil {
		return nil, r.fail(fmt.Errorf("create output directory: %w", err))
	}
	if err := ctx.Err(); err != nil {
		return nil, r.fail(cancelled(err))
	}

	r.touched = true
	if err := p.Dispatcher.Run(ctx, logic); err != nil {
		return nil, r.fail(dispatchError(ctx, err))
	}
	if err := r.advance(ctx, LogicDevicePushed); err != nil {
		return nil, err
	}

	if err := p.Dispatcher.Run(ctx, rffe); err != nil {
		return nil, r.fail(dispatchError(ctx, err))
	}
	if err := r.advance(ctx, RFFrontendPushed); err != nil {
		return nil, err
	}
	if err := p.Clock.Sleep(ctx, p.settleDelay()); err != nil {
		return nil, r.fail(cancelled(err))
	}

	// The start time is taken before the trigger because the trigger
	// blocks for the whole acquisition.
	start := p.Clock.Now()
	if err := r.advance(ctx, Acquiring); err != nil {
		return nil, err
	}
	if err := p.trigger(ctx, trigger); err != nil {
		return nil, r.fail(err)
	}

	n, err := r.capture(ctx, readCurve)
	if err != nil {
		return nil, r.fail(err)
	}
	if err := r.advance(ctx, Captured); err != nil {
		return nil, err
	}

	data, err := p.FS.ReadFile(r.artifact)
	if err != nil {
		return nil, r.fail(fmt.Errorf("read back artifact: %w", err))
	}
	signature := settings.Digest.Sum(data)
	if err := r.advance(ctx, Signed); err != nil {
		return nil, err
	}

	lines := metadata.Synthesize(cfg, metadata.AutoFields{
		ArtifactPath:    r.artifact,
		Signature:       signature,
		DecimationRatio: strconv.Itoa(derived.DecimationRatio),
		Start:           start,
		Layout:          derived.Layout,
	})
	if err := metadata.WriteDocument(p.FS, r.document, lines); err != nil {
		return nil, r.fail(err)
	}
	r.created = append(r.created, r.document)
	if err := r.advance(ctx, MetadataWritten); err != nil {
		return nil, err
	}
	r.state = Done

	monitoring.Logf("%s capture complete: %s (%d bytes, %s %s)", dp, r.artifact, n, settings.Digest, signature)
	return &Result{
		Datapath:     dp,
		ArtifactPath: r.artifact,
		MetadataPath: r.document,
		Signature:    signature,
		Start:        start,
		Bytes:        n,
		Derived:      derived,
	}, nil
}

func (p *Pipeline) settleDelay() time.Duration {
	if p.SettleDelay > 0 {
		return p.SettleDelay
	}
	return DefaultSettleDelay
}

func (p *Pipeline) trigger(ctx context.Context, cmd fcs.Command) error {
	tctx := ctx
	if p.TriggerTimeout > 0 {
		var cancel context.CancelFunc
		tctx, cancel = context.WithTimeout(ctx, p.TriggerTimeout)
		defer cancel()
	}
	if err := p.Dispatcher.Run(tctx, cmd); err != nil {
		if tctx.Err() != nil && ctx.Err() == nil {
			return fmt.Errorf("%w: trigger timed out after %s", ErrCancelled, p.TriggerTimeout)
		}
		return dispatchError(ctx, err)
	}
	return nil
}

// capture streams the read-curve output into a freshly created artifact.
func (r *run) capture(ctx context.Context, cmd fcs.Command) (int, error) {
	w, err := r.p.FS.CreateExclusive(r.artifact)
	if err != nil {
		return 0, fmt.Errorf("create artifact: %w", err)
	}
	r.created = append(r.created, r.artifact)

	cw := &countingWriter{w: w}
	streamErr := r.p.Dispatcher.Stream(ctx, cmd, cw)
	closeErr := w.Close()
	if streamErr != nil {
		return 0, dispatchError(ctx, streamErr)
	}
	if closeErr != nil {
		return 0, fmt.Errorf("close artifact: %w", closeErr)
	}
	return cw.n, nil
}

func (r *run) advance(ctx context.Context, next State) error {
	if err := ctx.Err(); err != nil {
		return r.fail(cancelled(err))
	}
	monitoring.Debugf("%s: %s -> %s", r.dp, r.state, next)
	r.state = next
	return nil
}

func (r *run) fail(err error) error {
	for i := len(r.created) - 1; i >= 0; i-- {
		if rmErr := r.p.FS.Remove(r.created[i]); rmErr != nil {
			monitoring.Logf("cleanup %s: %v", r.created[i], rmErr)
		}
	}
	r.created = nil
	return &RunError{State: r.state, Datapath: r.dp, HardwareTouched: r.touched, Err: err}
}

func cancelled(cause error) error {
	return fmt.Errorf("%w: %w", ErrCancelled, cause)
}

func dispatchError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return cancelled(ctx.Err())
	}
	return err
}

type countingWriter struct {
	w io.Writer
	n int
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += n
	return n, err
}
