package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-playground/validator"
	"github.com/google/uuid"

	"github.com/OFFIS-RIT/motifs/internal/pipeline"
	"github.com/OFFIS-RIT/motifs/pkg/role"
)

// ErrInvalidMessage marks a message that can never be processed. It is
// dead-lettered without retries.
var ErrInvalidMessage = errors.New("queue: invalid message")

var validate = validator.New()

// BuildJobMsg asks the worker to rebuild every session graph.
type BuildJobMsg struct {
	CorrelationID string `json:"correlation_id"`
	Shuffle       bool   `json:"shuffle"`
	// SnapshotPrefix uploads every build step below this bucket prefix.
	SnapshotPrefix string `json:"snapshot_prefix,omitempty" validate:"omitempty,max=512"`
	// MaxLogDelta drops edges to events older than this log time delta.
	MaxLogDelta *float64 `json:"max_log_delta,omitempty" validate:"omitempty,gt=0"`
}

// MineJobMsg asks the worker to mine the stored true graphs.
type MineJobMsg struct {
	CorrelationID    string            `json:"correlation_id"`
	Sizes            []int             `json:"sizes,omitempty" validate:"omitempty,dive,min=3,max=4"`
	CutProbabilities map[int][]float64 `json:"cut_probabilities,omitempty" validate:"omitempty,dive,dive,min=0,max=1"`
	Seed             *uint64           `json:"seed,omitempty"`
}

func (m *BuildJobMsg) Options() pipeline.BuildOptions {
	opts := pipeline.BuildOptions{Shuffle: m.Shuffle}
	if m.MaxLogDelta != nil {
		opts.Policy = role.WithinTimeDelta(*m.MaxLogDelta)
	}
	return opts
}

func (m *MineJobMsg) Options() pipeline.MineOptions {
	return pipeline.MineOptions{
		Sizes:            m.Sizes,
		CutProbabilities: m.CutProbabilities,
		Seed:             m.Seed,
	}
}

func decode(body []byte, v any) error {
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidMessage, err)
	}
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidMessage, err)
	}
	return nil
}

func DecodeBuildJob(body []byte) (*BuildJobMsg, error) {
	msg := new(BuildJobMsg)
	if err := decode(body, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

func DecodeMineJob(body []byte) (*MineJobMsg, error) {
	msg := new(MineJobMsg)
	if err := decode(body, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

func publishJob(ctx context.Context, ch Publisher, queueName string, correlationID *string, msg any) (string, error) {
	if *correlationID == "" {
		*correlationID = uuid.NewString()
	}
	if err := validate.Struct(msg); err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidMessage, err)
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return "", err
	}
	if err := PublishFIFO(ctx, ch, queueName, data); err != nil {
		return "", err
	}
	return *correlationID, nil
}

// PublishBuildJob validates msg and enqueues it. It returns the correlation
// id, generated if msg has none.
func PublishBuildJob(ctx context.Context, ch Publisher, msg *BuildJobMsg) (string, error) {
	return publishJob(ctx, ch, BuildQueue, &msg.CorrelationID, msg)
}

// PublishMineJob validates msg and enqueues it. It returns the correlation
// id, generated if msg has none.
func PublishMineJob(ctx context.Context, ch Publisher, msg *MineJobMsg) (string, error) {
	return publishJob(ctx, ch, MineQueue, &msg.CorrelationID, msg)
}
