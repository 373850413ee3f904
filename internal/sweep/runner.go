package sweep

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/banshee-data/bpm-calibrate/internal/bpm"
	"github.com/banshee-data/bpm-calibrate/internal/capture"
	"github.com/banshee-data/bpm-calibrate/internal/experiment"
	"github.com/banshee-data/bpm-calibrate/internal/fcs"
	"github.com/banshee-data/bpm-calibrate/internal/metadata"
	"github.com/banshee-data/bpm-calibrate/internal/monitoring"
)

// ErrorPolicy decides what a sweep does when a point fails.
type ErrorPolicy string

const (
	// PolicyAbort stops the sweep at the first failed point.
	PolicyAbort ErrorPolicy = "abort"
	// PolicySkip logs the failure and moves to the next point.
	PolicySkip ErrorPolicy = "skip"
)

// ParseErrorPolicy accepts "abort" or "skip".
func ParseErrorPolicy(s string) (ErrorPolicy, error) {
	switch ErrorPolicy(s) {
	case PolicyAbort, PolicySkip:
		return ErrorPolicy(s), nil
	}
	return "", &bpm.ChoiceError{Field: "error policy", Value: s, Choices: []string{string(PolicyAbort), string(PolicySkip)}}
}

// RunRecord is the ledger entry for one pipeline run, successful or not.
type RunRecord struct {
	SweepID         string
	Point           string
	Namespace       string
	Index           int
	Datapath        string
	ArtifactPath    string
	Signature       string
	Start           time.Time
	Finished        time.Time
	State           string
	Stage           string
	ExitCode        int
	HardwareTouched bool
	Error           string
	Stats           []capture.ColumnStats
}

// Recorder persists run records.
type Recorder interface {
	RecordRun(ctx context.Context, rec RunRecord) error
}

// Runner executes the pipeline for every datapath of every point.
type Runner struct {
	Pipeline  *experiment.Pipeline
	OutDir    string
	Datapaths []bpm.Datapath
	Policy    ErrorPolicy
	MaxIndex  int
	// Recorder is optional.
	Recorder Recorder
	SweepID  string
	// Now stamps ledger records; it defaults to the pipeline clock.
	Now func() time.Time
}

// Summary counts what a sweep did.
type Summary struct {
	Points    int
	Completed int
	Skipped   int
	Results   []*experiment.Result
	Failures  []error
}

// Run executes points in order. Each point gets a fresh sequence index in
// its namespace, so an interrupted sweep resumes by appending runs. With
// PolicySkip a failed point is logged and the sweep continues; a
// cancellation always stops it.
func (r *Runner) Run(ctx context.Context, base *metadata.Record, points []Point) (*Summary, error) {
	if len(r.Datapaths) == 0 {
		return nil, errors.New("sweep has no datapaths")
	}
	policy := r.Policy
	if policy == "" {
		policy = PolicyAbort
	}

	sum := &Summary{Points: len(points)}
	for i, pt := range points {
		if err := ctx.Err(); err != nil {
			return sum, fmt.Errorf("%w before point %d: %w", experiment.ErrCancelled, i+1, err)
		}

		monitoring.Logf("Run #%d: %s", i+1, pt)
		err := r.runPoint(ctx, base, pt, sum)
		if err == nil {
			sum.Completed++
			continue
		}

		err = fmt.Errorf("point %d (%s): %w", i+1, pt, err)
		sum.Failures = append(sum.Failures, err)
		if policy == PolicyAbort || errors.Is(err, experiment.ErrCancelled) {
			return sum, err
		}
		sum.Skipped++
		monitoring.Logf("skipping: %v", err)
	}
	return sum, nil
}

func (r *Runner) runPoint(ctx context.Context, base *metadata.Record, pt Point, sum *Summary) error {
	cfg := pt.Apply(base)
	dir := filepath.Join(r.OutDir, pt.Namespace())

	alloc, err := experiment.Allocate(r.Pipeline.FS, dir, bpm.DatapathTags(r.Datapaths), r.MaxIndex)
	if err != nil {
		return err
	}

	for _, dp := range r.Datapaths {
		path := alloc.Paths[dp.Tag()]
		res, runErr := r.Pipeline.Run(ctx, cfg, dp, path)
		r.record(ctx, pt, alloc.Index, dp, path, res, runErr)
		if runErr != nil {
			return runErr
		}
		monitoring.Logf("  %s done. Results in: %s", dp, res.ArtifactPath)
		sum.Results = append(sum.Results, res)
	}
	return nil
}

func (r *Runner) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return r.Pipeline.Clock.Now()
}

func (r *Runner) record(ctx context.Context, pt Point, index int, dp bpm.Datapath, path string, res *experiment.Result, runErr error) {
	if r.Recorder == nil {
		return
	}
	rec := RunRecord{
		SweepID:      r.SweepID,
		Point:        pt.String(),
		Namespace:    pt.Namespace(),
		Index:        index,
		Datapath:     dp.Tag(),
		ArtifactPath: path,
		Finished:     r.now(),
		State:        experiment.Done.String(),
	}
	if res != nil {
		rec.Signature = res.Signature
		rec.Start = res.Start
		rec.Stats = r.summarize(res.ArtifactPath)
	}
	if runErr != nil {
		rec.Error = runErr.Error()
		var re *experiment.RunError
		if errors.As(runErr, &re) {
			rec.State = re.State.String()
			rec.HardwareTouched = re.HardwareTouched
		}
		var hce *fcs.HardwareCommandError
		if errors.As(runErr, &hce) {
			rec.Stage = hce.Stage.String()
			rec.ExitCode = hce.ExitCode
		}
	}
	// The ledger write must survive a cancelled sweep context.
	if err := r.Recorder.RecordRun(context.WithoutCancel(ctx), rec); err != nil {
		monitoring.Logf("ledger: record %s run: %v", dp, err)
	}
}

func (r *Runner) summarize(path string) []capture.ColumnStats {
	data, err := r.Pipeline.FS.ReadFile(path)
	if err != nil {
		monitoring.Debugf("summary of %s: %v", path, err)
		return nil
	}
	tbl, err := capture.Parse(data)
	if err != nil {
		monitoring.Debugf("summary of %s: %v", path, err)
		return nil
	}
	return capture.Summarize(tbl)
}
