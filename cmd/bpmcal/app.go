package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/banshee-data/bpm-calibrate/internal/bpm"
	"github.com/banshee-data/bpm-calibrate/internal/config"
	"github.com/banshee-data/bpm-calibrate/internal/db"
	"github.com/banshee-data/bpm-calibrate/internal/experiment"
	"github.com/banshee-data/bpm-calibrate/internal/fcs"
	"github.com/banshee-data/bpm-calibrate/internal/fsutil"
	"github.com/banshee-data/bpm-calibrate/internal/metadata"
	"github.com/banshee-data/bpm-calibrate/internal/monitoring"
	"github.com/banshee-data/bpm-calibrate/internal/sweep"
	"github.com/banshee-data/bpm-calibrate/internal/timeutil"
)

// session is everything a run, sweep or phase sweep needs, resolved from
// flags, bench settings and the experiment configuration.
type session struct {
	opts       *options
	settings   *config.Settings
	configPath string
	outDir     string
	cfg        *metadata.Record
	board      bpm.BoardVersion
	fs         fsutil.FileSystem
	pipeline   *experiment.Pipeline
	ledger     *db.DB
	lock       *experiment.Lock
	closers    []io.Closer
}

// loadSettings applies the --settings flag.
func loadSettings(opts *options) (*config.Settings, error) {
	s, err := config.LoadOrDefault(opts.settingsPath)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// loadExperiment reads the configuration file and its board version.
func loadExperiment(fs fsutil.FileSystem, path string) (*metadata.Record, bpm.BoardVersion, error) {
	cfg, err := metadata.ParseFile(fs, path)
	if err != nil {
		return nil, 0, err
	}
	v, err := cfg.Get(bpm.KeyBoardVersion)
	if err != nil {
		return nil, 0, err
	}
	board, err := bpm.ParseBoardVersion(bpm.FirstToken(v))
	if err != nil {
		return nil, 0, err
	}
	return cfg, board, nil
}

// openSession validates the inputs, claims outDir and opens the ledger.
// The caller must Close the session.
func openSession(opts *options, stdout io.Writer, configPath, outDir string) (*session, error) {
	settings, err := loadSettings(opts)
	if err != nil {
		return nil, err
	}

	s := &session{
		opts:       opts,
		settings:   settings,
		configPath: configPath,
		outDir:     outDir,
		fs:         fsutil.OSFileSystem{},
	}
	if s.cfg, s.board, err = loadExperiment(s.fs, configPath); err != nil {
		return nil, err
	}

	dispatcher, err := s.dispatcher(stdout)
	if err != nil {
		s.Close()
		return nil, err
	}

	fpgaHost := settings.GetFPGAHost()
	if opts.fpgaHost != "" {
		fpgaHost = opts.fpgaHost
	}
	rffeHost := settings.GetRFFEHost(s.board)
	if opts.rffeHost != "" {
		rffeHost = opts.rffeHost
	}
	s.pipeline = &experiment.Pipeline{
		Dispatcher:     dispatcher,
		FS:             s.fs,
		Clock:          timeutil.RealClock{},
		FPGAHost:       fpgaHost,
		RFFEHost:       rffeHost,
		SettleDelay:    settings.GetSettleDelay(),
		TriggerTimeout: settings.GetTriggerTimeout(),
	}

	if s.lock, err = experiment.LockDir(s.fs, outDir); err != nil {
		s.Close()
		return nil, err
	}

	if !opts.noLedger {
		path := ledgerPath(opts, settings, outDir)
		if s.ledger, err = db.NewDB(path); err != nil {
			s.Close()
			return nil, fmt.Errorf("open ledger: %w", err)
		}
		monitoring.Debugf("ledger: %s", path)
	}
	return s, nil
}

// dispatcher picks the hardware transport. A serial RF front end gets its
// own dispatcher behind a router; the logic device always goes through
// fcs_client.
func (s *session) dispatcher(stdout io.Writer) (fcs.Dispatcher, error) {
	program := s.settings.GetFCSClient()
	if s.opts.dryRun {
		d := fcs.NewDryRunDispatcher(program)
		d.Out = stdout
		return d, nil
	}

	logic := fcs.NewExecDispatcher(program)
	if s.settings.GetRFFETransport() != config.TransportSerial {
		return logic, nil
	}
	port := s.settings.GetSerialPort()
	rffe, err := fcs.OpenSerial(port, s.settings.GetSerialOptions())
	if err != nil {
		return nil, fmt.Errorf("open RF front-end port %s: %w", port, err)
	}
	s.closers = append(s.closers, rffe)
	monitoring.Logf("RF front end on serial port %s", port)
	return &fcs.Router{LogicDevice: logic, RFFrontend: rffe}, nil
}

// ledgerPath resolves the ledger location: the flag, then settings, with
// relative paths taken from outDir.
func ledgerPath(opts *options, settings *config.Settings, outDir string) string {
	if opts.ledgerPath != "" {
		return opts.ledgerPath
	}
	path := settings.GetLedgerPath()
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(outDir, path)
}

// runner returns a sweep runner wired to the session.
func (s *session) runner() *sweep.Runner {
	r := &sweep.Runner{
		Pipeline:  s.pipeline,
		OutDir:    s.outDir,
		Datapaths: s.settings.GetDatapaths(),
		Policy:    s.settings.GetErrorPolicy(),
		MaxIndex:  s.settings.GetMaxIndex(),
	}
	if s.ledger != nil {
		r.Recorder = s.ledger
	}
	return r
}

// execute runs points under a signal-aware context and records the sweep
// in the ledger.
func (s *session) execute(ctx context.Context, stdout io.Writer, kind, params string, points []sweep.Point) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	r := s.runner()
	var entry *db.Sweep
	if s.ledger != nil {
		entry = &db.Sweep{
			Kind:       kind,
			OutDir:     s.outDir,
			ConfigPath: s.configPath,
			Params:     params,
			Points:     len(points),
			Started:    time.Now().UTC(),
		}
		if err := s.ledger.StartSweep(ctx, entry); err != nil {
			return err
		}
		r.SweepID = entry.ID
	}

	sum, runErr := r.Run(ctx, s.cfg, points)

	if entry != nil {
		if err := s.ledger.FinishSweep(context.WithoutCancel(ctx), entry.ID, sum, time.Now().UTC(), runErr); err != nil {
			monitoring.Logf("ledger: finish sweep %s: %v", entry.ID, err)
		}
	}
	printSummary(stdout, sum)

	if errors.Is(runErr, experiment.ErrCancelled) {
		return fmt.Errorf("interrupted: %w", runErr)
	}
	return runErr
}

func printSummary(w io.Writer, sum *sweep.Summary) {
	if sum == nil {
		return
	}
	for _, res := range sum.Results {
		fmt.Fprintf(w, "Running %s datapath... done. Results in: %s\n", res.Datapath, res.ArtifactPath)
	}
	fmt.Fprintf(w, "%d of %d points completed", sum.Completed, sum.Points)
	if sum.Skipped > 0 {
		fmt.Fprintf(w, ", %d skipped", sum.Skipped)
	}
	fmt.Fprintln(w)
	for _, err := range sum.Failures {
		fmt.Fprintf(w, "  failed: %v\n", err)
	}
}

// Close releases the output directory and closes the ledger and any
// serial port.
func (s *session) Close() error {
	var errs []error
	for _, c := range s.closers {
		errs = append(errs, c.Close())
	}
	if s.ledger != nil {
		errs = append(errs, s.ledger.Close())
	}
	if s.lock != nil {
		errs = append(errs, s.lock.Release())
	}
	return errors.Join(errs...)
}
