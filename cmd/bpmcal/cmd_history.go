package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/banshee-data/bpm-calibrate/internal/db"
)

func newHistoryCmd(opts *options) *cobra.Command {
	var (
		sweepID    string
		failedOnly bool
		limit      int
		sweepsOnly bool
	)
	cmd := &cobra.Command{
		Use:   "history <outdir>",
		Short: "List sweeps and runs recorded in the ledger",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := loadSettings(opts)
			if err != nil {
				return err
			}
			ledger, err := db.NewDB(ledgerPath(opts, settings, args[0]))
			if err != nil {
				return err
			}
			defer ledger.Close()

			ctx := cmd.Context()
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)

			if sweepsOnly {
				sweeps, err := ledger.ListSweeps(ctx, limit)
				if err != nil {
					return err
				}
				fmt.Fprintf(w, "Sweep\tKind\tStatus\tPoints\tCompleted\tSkipped\tStarted\n")
				fmt.Fprintf(w, "-----\t----\t------\t------\t---------\t-------\t-------\n")
				for _, s := range sweeps {
					fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%s\n",
						s.ID, s.Kind, s.Status, s.Points, s.Completed, s.Skipped, formatTime(s.Started))
				}
				return w.Flush()
			}

			runs, err := ledger.ListRuns(ctx, db.RunQuery{SweepID: sweepID, FailedOnly: failedOnly, Limit: limit})
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "Finished\tDatapath\tIndex\tState\tStage\tExit\tArtifact\n")
			fmt.Fprintf(w, "--------\t--------\t-----\t-----\t-----\t----\t--------\n")
			for _, r := range runs {
				stage := r.Stage
				if stage == "" {
					stage = "-"
				}
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t%d\t%s\n",
					formatTime(r.Finished), r.Datapath, r.Index, r.State, stage, r.ExitCode, r.ArtifactPath)
			}
			if err := w.Flush(); err != nil {
				return err
			}
			if failedOnly {
				for _, r := range runs {
					fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", r.ArtifactPath, r.Error)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&sweepID, "sweep", "", "only runs of this sweep")
	cmd.Flags().BoolVar(&failedOnly, "failed", false, "only runs that did not finish")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum rows (default 100 runs or 20 sweeps)")
	cmd.Flags().BoolVar(&sweepsOnly, "sweeps", false, "list sweeps instead of runs")
	return cmd
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format(time.DateTime)
}
