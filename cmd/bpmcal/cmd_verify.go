package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/banshee-data/bpm-calibrate/internal/experiment"
	"github.com/banshee-data/bpm-calibrate/internal/fsutil"
)

func newVerifyCmd(_ *options) *cobra.Command {
	return &cobra.Command{
		Use:   "verify <metadata>...",
		Short: "Check artifacts against the signatures in their metadata documents",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			failed := 0
			for _, path := range args {
				sig, err := experiment.Verify(fsutil.OSFileSystem{}, path)
				if err != nil {
					fmt.Fprintf(out, "FAIL %s: %v\n", path, err)
					failed++
					continue
				}
				fmt.Fprintf(out, "OK   %s %s\n", path, sig)
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d documents failed verification", failed, len(args))
			}
			return nil
		},
	}
}
