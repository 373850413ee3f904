package main

import (
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/banshee-data/bpm-calibrate/internal/bpm"
	"github.com/banshee-data/bpm-calibrate/internal/fsutil"
)

func newShowCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "show <config>",
		Short: "Print the experiment settings and the derived acquisition parameters",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := loadSettings(opts)
			if err != nil {
				return err
			}
			cfg, board, err := loadExperiment(fsutil.OSFileSystem{}, args[0])
			if err != nil {
				return err
			}
			if _, err := bpm.Resolve(cfg); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Experiment settings:")
			lines := cfg.Lines()
			sort.Strings(lines)
			for _, line := range lines {
				fmt.Fprint(out, "  "+line)
			}

			rffeHost := settings.GetRFFEHost(board)
			if opts.rffeHost != "" {
				rffeHost = opts.rffeHost
			}
			fpgaHost := settings.GetFPGAHost()
			if opts.fpgaHost != "" {
				fpgaHost = opts.fpgaHost
			}
			fmt.Fprintf(out, "\nBoard %s: FPGA host %s, RFFE host %s\n\n", board, fpgaHost, rffeHost)

			w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintf(w, "Datapath\tChannel\tDecimation\tSamples\tLayout\tPhase offset\tClock divider\n")
			fmt.Fprintf(w, "--------\t-------\t----------\t-------\t------\t------------\t-------------\n")
			for _, dp := range settings.GetDatapaths() {
				d, err := bpm.Derive(cfg, dp)
				if err != nil {
					return fmt.Errorf("%s: %w", dp, err)
				}
				fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%s\t%d\t%d\n",
					dp, d.Channel, d.DecimationRatio, d.Samples, d.Layout, d.PhaseOffset, d.ClockDivider)
			}
			return w.Flush()
		},
	}
}
