package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/OFFIS-RIT/motifs/internal/pipeline"
)

var (
	mineSizes    []int
	mineCutProbs []string
	mineSeed     uint64
	mineLeaseTTL time.Duration
)

var mineCmd = &cobra.Command{
	Use:   "mine",
	Short: "Mine the motifs of every stored true graph",
	Long: `Sample the motifs of every stored true session graph, flavor them and store
both. Only one miner runs at a time.

Cut probabilities are given per motif size, one value per search depth:
  motifs mine --size 3 --cut-prob 3=0,0.2,0.5 --seed 42`,
	RunE: runMine,
}

func init() {
	rootCmd.AddCommand(mineCmd)

	mineCmd.Flags().IntSliceVar(&mineSizes, "size", nil, "Motif sizes to mine (default 3,4)")
	mineCmd.Flags().StringArrayVar(&mineCutProbs, "cut-prob", nil, "Cut probabilities per size, e.g. 3=0,0.5,0.5")
	mineCmd.Flags().Uint64Var(&mineSeed, "seed", 0, "Seed for reproducible sampling")
	mineCmd.Flags().DurationVar(&mineLeaseTTL, "lease-ttl", 5*time.Minute, "TTL of the mining lock")
}

func mineOptions(cmd *cobra.Command) (pipeline.MineOptions, error) {
	cuts, err := parseCutProbabilities(mineCutProbs)
	if err != nil {
		return pipeline.MineOptions{}, err
	}
	opts := pipeline.MineOptions{
		Sizes:            mineSizes,
		CutProbabilities: cuts,
		LeaseTTL:         mineLeaseTTL,
	}
	if cmd.Flags().Changed("seed") {
		seed := mineSeed
		opts.Seed = &seed
	}
	return opts, nil
}

func runMine(cmd *cobra.Command, args []string) error {
	opts, err := mineOptions(cmd)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	p, pool, err := openPipeline(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	res, err := p.MineMotifs(ctx, opts)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "mined %d plain and %d flavored motifs, skipped %d graphs\n", len(res.Plain), len(res.Flavored), len(res.Failures))
	for _, f := range res.Failures {
		fmt.Fprintf(out, "  %v\n", f)
	}
	return nil
}
