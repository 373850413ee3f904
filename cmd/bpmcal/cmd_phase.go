package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/banshee-data/bpm-calibrate/internal/sweep"
)

func newPhaseSweepCmd(opts *options) *cobra.Command {
	var phases string
	cmd := &cobra.Command{
		Use:   "phase-sweep <config> <outdir>",
		Short: "Sweep the DSP deswitching phase with RFFE switching on",
		Long: "phase-sweep forces RFFE switching on and runs every datapath for each\n" +
			"deswitching phase, with DSP pulse shaping off and then on. Runs land in\n" +
			"<outdir>/sausaging_<p>/.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(opts, cmd.OutOrStdout(), args[0], args[1])
			if err != nil {
				return err
			}
			defer s.Close()

			r := s.settings.GetPhaseRange()
			if phases != "" {
				if r, err = sweep.ParseIntRangeSpec(phases); err != nil {
					return err
				}
			}
			points, err := sweep.EnumeratePhases(r.Values())
			if err != nil {
				return err
			}
			return s.execute(cmd.Context(), cmd.OutOrStdout(), "phase-sweep", fmt.Sprintf("phases=%s", r), points)
		},
	}
	cmd.Flags().StringVar(&phases, "phases", "", "deswitching phases min:max:step (default from settings, 20:59:1)")
	return cmd
}
