package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/OFFIS-RIT/motifs/internal/pipeline"
)

var timeDeltasPercentile float64

var timeDeltasCmd = &cobra.Command{
	Use:   "time-deltas",
	Short: "Report a percentile of the log reaction time deltas",
	Long: `Compute the log time delta between every pair of consecutive comments of a
session and print the requested percentile over all sessions. The value can be
passed to "build --max-log-delta".`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		p, pool, err := openPipeline(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		deltas, err := p.ReactionTimeDeltas(ctx)
		if err != nil {
			return err
		}
		v, err := pipeline.DeltaPercentile(deltas, timeDeltasPercentile)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "deltas: %d\np%g: %.6f\n", len(deltas), timeDeltasPercentile, v)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(timeDeltasCmd)

	timeDeltasCmd.Flags().Float64Var(&timeDeltasPercentile, "percentile", 95, "Percentile in [0, 100]")
}
