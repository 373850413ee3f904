package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/banshee-data/bpm-calibrate/internal/bpm"
	"github.com/banshee-data/bpm-calibrate/internal/config"
	"github.com/banshee-data/bpm-calibrate/internal/fsutil"
	"github.com/banshee-data/bpm-calibrate/internal/metadata"
	"github.com/banshee-data/bpm-calibrate/internal/sweep"
)

type sweepFlags struct {
	rangeSpec string
	maxPower  float64
	noBudget  bool
	list      bool
}

func newSweepCmd(opts *options) *cobra.Command {
	f := &sweepFlags{}
	cmd := &cobra.Command{
		Use:   "sweep <config> <outdir>",
		Short: "Sweep RFFE switching, DSP pulse shaping and attenuators",
		Long: "sweep runs every datapath for each combination of RFFE switching, DSP\n" +
			"pulse shaping and attenuator values. Combinations that would drive any\n" +
			"front-end stage above its threshold for the configured carrier power are\n" +
			"skipped. Runs land in <outdir>/switching_<s>_sausaging_<p>/.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := loadSettings(opts)
			if err != nil {
				return err
			}
			cfg, board, err := loadExperiment(fsutil.OSFileSystem{}, args[0])
			if err != nil {
				return err
			}
			points, params, err := attenuatorPoints(settings, cfg, board, cmd, f)
			if err != nil {
				return err
			}
			if f.list {
				for i, pt := range points {
					fmt.Fprintf(cmd.OutOrStdout(), "Run #%d: %s\n", i+1, pt)
				}
				return nil
			}

			s, err := openSession(opts, cmd.OutOrStdout(), args[0], args[1])
			if err != nil {
				return err
			}
			defer s.Close()
			return s.execute(cmd.Context(), cmd.OutOrStdout(), "sweep", params, points)
		},
	}
	cmd.Flags().StringVar(&f.rangeSpec, "range", "", "attenuation values as min:max:step or a comma list (default from the board profile)")
	cmd.Flags().Float64Var(&f.maxPower, "max-power", 0, "carrier power in dBm (default "+bpm.KeyCarrierMaxPower+")")
	cmd.Flags().BoolVar(&f.noBudget, "no-budget", false, "run every combination regardless of the power budget")
	cmd.Flags().BoolVar(&f.list, "list", false, "print the sweep points and exit")
	return cmd
}

// attenuatorPoints builds the sweep plan from the board profile, the
// configuration and the flags.
func attenuatorPoints(settings *config.Settings, cfg *metadata.Record, version bpm.BoardVersion, cmd *cobra.Command, f *sweepFlags) ([]sweep.Point, string, error) {
	stages, err := bpm.Attenuators(cfg)
	if err != nil {
		return nil, "", err
	}

	board := settings.Board(version)
	if len(stages) != len(board.Gains) {
		return nil, "", fmt.Errorf("%s has %d attenuator stages, %s lists %d",
			version, len(board.Gains), bpm.KeyAttenuators, len(stages))
	}

	var values []float64
	if f.rangeSpec != "" {
		if values, err = sweep.ParseParamList(f.rangeSpec); err != nil {
			return nil, "", err
		}
	} else if values, err = board.AttenuationValues(); err != nil {
		return nil, "", fmt.Errorf("%s: %w", version, err)
	}

	plan := sweep.Plan{Stages: sweep.UniformStages(values, len(stages))}
	params := fmt.Sprintf("%s stages=%d values=%v", version, len(stages), values)
	if !f.noBudget {
		maxPower := f.maxPower
		if !cmd.Flags().Changed("max-power") {
			if maxPower, err = bpm.FloatField(cfg, bpm.KeyCarrierMaxPower); err != nil {
				return nil, "", err
			}
		}
		plan.Budget = board.Budget(maxPower)
		params += fmt.Sprintf(" maxpower=%g", maxPower)
	}

	points, err := sweep.Enumerate(plan)
	if err != nil {
		return nil, "", err
	}
	return points, params, nil
}
