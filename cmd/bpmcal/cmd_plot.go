package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/banshee-data/bpm-calibrate/internal/capture"
	"github.com/banshee-data/bpm-calibrate/internal/monitoring"
)

func newPlotCmd(_ *options) *cobra.Command {
	var (
		output    string
		maxPoints int
	)
	cmd := &cobra.Command{
		Use:   "plot <artifact>",
		Short: "Render a capture as a PNG and print per-channel statistics",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("read capture: %w", err)
			}
			tbl, err := capture.Parse(data)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}

			out := cmd.OutOrStdout()
			for _, cs := range capture.Summarize(tbl) {
				fmt.Fprintf(out, "ch %d: mean %.3f std %.3f min %g max %g rms %.3f\n",
					cs.Column, cs.Mean, cs.StdDev, cs.Min, cs.Max, cs.RMS)
			}

			if output == "" {
				output = strings.TrimSuffix(path, filepath.Ext(path)) + ".png"
			}
			f, err := os.Create(output)
			if err != nil {
				return err
			}
			opts := capture.PlotOptions{Title: filepath.Base(path), MaxPoints: maxPoints}
			if err := capture.Plot(tbl, opts, f); err != nil {
				f.Close()
				os.Remove(output)
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			monitoring.Logf("wrote %s", output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "PNG path (default <artifact>.png)")
	cmd.Flags().IntVar(&maxPoints, "max-points", 5000, "decimate long captures to at most this many points per channel; 0 draws all")
	return cmd
}
