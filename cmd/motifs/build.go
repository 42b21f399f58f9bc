package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/OFFIS-RIT/motifs/internal/pipeline"
	"github.com/OFFIS-RIT/motifs/internal/snapshot"
	"github.com/OFFIS-RIT/motifs/internal/storage"
	"github.com/OFFIS-RIT/motifs/pkg/logger"
	"github.com/OFFIS-RIT/motifs/pkg/role"
	"github.com/OFFIS-RIT/motifs/pkg/session"
)

var (
	buildShuffle         bool
	buildSnapshotDir     string
	buildSnapshotPrefix  string
	buildMaxLogDelta     float64
	buildDeltaPercentile float64
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build and store the graph of every session",
	Long: `Build the interaction graph of every session from its labeled comments
and store it together with its summary features.

With --shuffle the comments of every session are put in random order and the
graphs are stored as shuffled graphs.

Edges can be limited to reactions that came soon enough after their target,
either with a fixed log time delta (--max-log-delta) or with a percentile of
all observed deltas (--delta-percentile).`,
	RunE: runBuild,
}

func init() {
	rootCmd.AddCommand(buildCmd)

	buildCmd.Flags().BoolVar(&buildShuffle, "shuffle", false, "Shuffle the comments of every session")
	buildCmd.Flags().StringVar(&buildSnapshotDir, "snapshot-dir", "", "Write a DOT snapshot of every build step to this directory")
	buildCmd.Flags().StringVar(&buildSnapshotPrefix, "snapshot-s3-prefix", "", "Upload a DOT snapshot of every build step below this bucket prefix")
	buildCmd.Flags().Float64Var(&buildMaxLogDelta, "max-log-delta", 0, "Drop edges to events more than this log time delta older")
	buildCmd.Flags().Float64Var(&buildDeltaPercentile, "delta-percentile", 0, "Use this percentile of all log time deltas as --max-log-delta")
	buildCmd.MarkFlagsMutuallyExclusive("snapshot-dir", "snapshot-s3-prefix")
	buildCmd.MarkFlagsMutuallyExclusive("max-log-delta", "delta-percentile")
}

// buildSnapshotter returns the snapshot target chosen by the flags, nil if
// none. Existing snapshots in a bucket prefix are removed first.
func buildSnapshotter(ctx context.Context) (session.Snapshotter, error) {
	switch {
	case buildSnapshotDir != "":
		dir, err := snapshot.NewDir(buildSnapshotDir)
		if err != nil {
			return nil, err
		}
		return dir, nil
	case buildSnapshotPrefix != "":
		cfg := storage.S3ConfigFromEnv()
		client, err := storage.NewS3Client(ctx, cfg)
		if err != nil {
			return nil, err
		}
		bucket, err := storage.NewBucket(client, cfg.Bucket)
		if err != nil {
			return nil, err
		}
		snaps := snapshot.NewBucket(ctx, bucket, buildSnapshotPrefix)
		if err := snaps.Clear(); err != nil {
			return nil, fmt.Errorf("failed to clear snapshots below %s: %w", buildSnapshotPrefix, err)
		}
		return snaps, nil
	default:
		return nil, nil
	}
}

func runBuild(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	p, pool, err := openPipeline(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	opts := pipeline.BuildOptions{Shuffle: buildShuffle}
	if opts.Snapshots, err = buildSnapshotter(ctx); err != nil {
		return err
	}

	cutoff := buildMaxLogDelta
	if buildDeltaPercentile > 0 {
		deltas, err := p.ReactionTimeDeltas(ctx)
		if err != nil {
			return err
		}
		if cutoff, err = pipeline.DeltaPercentile(deltas, buildDeltaPercentile); err != nil {
			return err
		}
		logger.Info("Limiting edges by reaction time", "percentile", buildDeltaPercentile, "max_log_delta", cutoff)
	}
	if cutoff > 0 {
		opts.Policy = role.WithinTimeDelta(cutoff)
	}

	res, err := p.BuildSessionGraphs(ctx, opts)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "built %d session graphs, skipped %d\n", len(res.Graphs), len(res.Failures))
	for _, f := range res.Failures {
		fmt.Fprintf(out, "  %v\n", f)
	}
	return nil
}
