package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/OFFIS-RIT/motifs/internal/queue"
)

var (
	enqueueSnapshotPrefix string
	enqueueMaxLogDelta    float64
)

var enqueueCmd = &cobra.Command{
	Use:   "enqueue",
	Short: "Queue a job for the worker",
}

var enqueueBuildCmd = &cobra.Command{
	Use:   "build",
	Short: "Queue a graph build job",
	RunE: func(cmd *cobra.Command, args []string) error {
		msg := &queue.BuildJobMsg{
			Shuffle:        buildShuffle,
			SnapshotPrefix: enqueueSnapshotPrefix,
		}
		if enqueueMaxLogDelta > 0 {
			delta := enqueueMaxLogDelta
			msg.MaxLogDelta = &delta
		}
		return publish(cmd, queue.BuildQueue, func(ch queue.Publisher) (string, error) {
			return queue.PublishBuildJob(cmd.Context(), ch, msg)
		})
	},
}

var enqueueMineCmd = &cobra.Command{
	Use:   "mine",
	Short: "Queue a motif mining job",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := mineOptions(cmd)
		if err != nil {
			return err
		}
		msg := &queue.MineJobMsg{
			Sizes:            opts.Sizes,
			CutProbabilities: opts.CutProbabilities,
			Seed:             opts.Seed,
		}
		return publish(cmd, queue.MineQueue, func(ch queue.Publisher) (string, error) {
			return queue.PublishMineJob(cmd.Context(), ch, msg)
		})
	},
}

func publish(cmd *cobra.Command, queueName string, fn func(ch queue.Publisher) (string, error)) error {
	conn, err := queue.Init(queue.ConfigFromEnv())
	if err != nil {
		return err
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open channel: %w", err)
	}
	defer ch.Close()
	if err := queue.SetupQueues(ch, queue.Queues); err != nil {
		return err
	}

	id, err := fn(ch)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "queued %s job %s\n", queueName, id)
	return nil
}

func init() {
	rootCmd.AddCommand(enqueueCmd)
	enqueueCmd.AddCommand(enqueueBuildCmd)
	enqueueCmd.AddCommand(enqueueMineCmd)

	enqueueBuildCmd.Flags().BoolVar(&buildShuffle, "shuffle", false, "Shuffle the comments of every session")
	enqueueBuildCmd.Flags().StringVar(&enqueueSnapshotPrefix, "snapshot-prefix", "", "Upload a DOT snapshot of every build step below this bucket prefix")
	enqueueBuildCmd.Flags().Float64Var(&enqueueMaxLogDelta, "max-log-delta", 0, "Drop edges to events more than this log time delta older")

	enqueueMineCmd.Flags().IntSliceVar(&mineSizes, "size", nil, "Motif sizes to mine (default 3,4)")
	enqueueMineCmd.Flags().StringArrayVar(&mineCutProbs, "cut-prob", nil, "Cut probabilities per size, e.g. 3=0,0.5,0.5")
	enqueueMineCmd.Flags().Uint64Var(&mineSeed, "seed", 0, "Seed for reproducible sampling")
}
