// bpmcal configures a BPM front end through fcs_client, acquires raw,
// turn-by-turn and fast-orbit-feedback captures, and writes each capture
// with a signed metadata document.
//
// Usage:
//
//	bpmcal run         <config> <outdir>
//	bpmcal sweep       <config> <outdir> [--range 0:30:7] [--no-budget]
//	bpmcal phase-sweep <config> <outdir> [--phases 20:59:1]
//	bpmcal show        <config>
//	bpmcal verify      <metadata>...
//	bpmcal history     <outdir>
//	bpmcal plot        <artifact> -o capture.png
//	bpmcal serve       <outdir> [--listen :8080]
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/banshee-data/bpm-calibrate/internal/monitoring"
	"github.com/banshee-data/bpm-calibrate/internal/version"
)

// options are the persistent flags shared by every subcommand.
type options struct {
	settingsPath string
	verbose      bool
	dryRun       bool
	fpgaHost     string
	rffeHost     string
	ledgerPath   string
	noLedger     bool
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "bpmcal",
		Short: "Calibration runner for BPM RF front ends",
		Long: "bpmcal pushes an experiment configuration to the BPM logic device and RF\n" +
			"front end, triggers acquisitions, and stores every capture next to a signed\n" +
			"metadata document. Sweeps repeat this over attenuator and phase settings.",
		Version:       version.String(),
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			HiddenDefaultCmd: true,
		},
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			monitoring.SetVerbose(opts.verbose)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&opts.settingsPath, "settings", "", "bench settings file (YAML or JSON); defaults to ./bpmcal.yaml when present")
	pf.BoolVarP(&opts.verbose, "verbose", "v", false, "log command vectors and state transitions")
	pf.BoolVar(&opts.dryRun, "dry-run", false, "print hardware commands instead of running them and write a fixture capture")
	pf.StringVar(&opts.fpgaHost, "fpga-host", "", "logic device host (overrides settings)")
	pf.StringVar(&opts.rffeHost, "rffe-host", "", "RF front-end host (overrides settings and the board profile)")
	pf.StringVar(&opts.ledgerPath, "ledger", "", "run ledger database (default <outdir>/bpmcal.db)")
	pf.BoolVar(&opts.noLedger, "no-ledger", false, "do not record runs in the ledger")

	root.AddCommand(
		newRunCmd(opts),
		newSweepCmd(opts),
		newPhaseSweepCmd(opts),
		newShowCmd(opts),
		newVerifyCmd(opts),
		newHistoryCmd(opts),
		newPlotCmd(opts),
		newServeCmd(opts),
	)
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
