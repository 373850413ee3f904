package main

import (
	"github.com/spf13/cobra"

	"github.com/banshee-data/bpm-calibrate/internal/sweep"
)

func newRunCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "run <config> <outdir>",
		Short: "Acquire every datapath once with the configuration as written",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(opts, cmd.OutOrStdout(), args[0], args[1])
			if err != nil {
				return err
			}
			defer s.Close()
			return s.execute(cmd.Context(), cmd.OutOrStdout(), "run", "", []sweep.Point{sweep.SinglePoint{}})
		},
	}
}
