package queue

import (
	"context"
	"fmt"

	"github.com/OFFIS-RIT/motifs/internal/pipeline"
	"github.com/OFFIS-RIT/motifs/internal/snapshot"
	"github.com/OFFIS-RIT/motifs/internal/storage"
	"github.com/OFFIS-RIT/motifs/pkg/logger"
)

// Runner runs the batch jobs. *pipeline.Pipeline implements it.
type Runner interface {
	BuildSessionGraphs(ctx context.Context, opts pipeline.BuildOptions) (*pipeline.BuildResult, error)
	MineMotifs(ctx context.Context, opts pipeline.MineOptions) (*pipeline.MineResult, error)
}

type Processor struct {
	runner Runner
	bucket *storage.Bucket
}

// NewProcessor returns a Processor. bucket may be nil, in which case build
// jobs asking for snapshots run without them.
func NewProcessor(runner Runner, bucket *storage.Bucket) *Processor {
	return &Processor{runner: runner, bucket: bucket}
}

// Process dispatches a message by the queue it arrived on.
func (p *Processor) Process(ctx context.Context, queueName string, body []byte) error {
	switch queueName {
	case BuildQueue:
		return p.ProcessBuildMessage(ctx, body)
	case MineQueue:
		return p.ProcessMineMessage(ctx, body)
	default:
		return fmt.Errorf("%w: unknown queue %q", ErrInvalidMessage, queueName)
	}
}

func (p *Processor) ProcessBuildMessage(ctx context.Context, body []byte) error {
	msg, err := DecodeBuildJob(body)
	if err != nil {
		return err
	}
	opts := msg.Options()

	if msg.SnapshotPrefix != "" {
		if p.bucket == nil {
			logger.Warn("[Queue] No bucket configured, building without snapshots", "correlation_id", msg.CorrelationID)
		} else {
			snaps := snapshot.NewBucket(ctx, p.bucket, msg.SnapshotPrefix)
			if err := snaps.Clear(); err != nil {
				return fmt.Errorf("failed to clear snapshots below %s: %w", msg.SnapshotPrefix, err)
			}
			opts.Snapshots = snaps
		}
	}

	logger.Info("[Queue] Building session graphs", "correlation_id", msg.CorrelationID, "shuffle", msg.Shuffle)
	res, err := p.runner.BuildSessionGraphs(ctx, opts)
	if err != nil {
		return err
	}
	if len(res.Failures) > 0 {
		logger.Warn("[Queue] Some sessions were skipped", "correlation_id", msg.CorrelationID, "failed", len(res.Failures))
	}
	logger.Info("[Queue] Built session graphs", "correlation_id", msg.CorrelationID, "graphs", len(res.Graphs))
	return nil
}

func (p *Processor) ProcessMineMessage(ctx context.Context, body []byte) error {
	msg, err := DecodeMineJob(body)
	if err != nil {
		return err
	}

	logger.Info("[Queue] Mining motifs", "correlation_id", msg.CorrelationID, "sizes", msg.Sizes)
	res, err := p.runner.MineMotifs(ctx, msg.Options())
	if err != nil {
		return err
	}
	logger.Info("[Queue] Mined motifs", "correlation_id", msg.CorrelationID, "plain", len(res.Plain), "flavored", len(res.Flavored))
	return nil
}
