package pipeline

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"gonum.org/v1/gonum/stat"

	"github.com/OFFIS-RIT/motifs/pkg/common"
	"github.com/OFFIS-RIT/motifs/pkg/logger"
	"github.com/OFFIS-RIT/motifs/pkg/session"
	"github.com/OFFIS-RIT/motifs/pkg/store"
)

var (
	ErrNoDeltas          = errors.New("pipeline: no time deltas")
	ErrPercentileOutside = errors.New("pipeline: percentile must be within [0, 100]")
)

// ReactionTimeDeltas returns the log time deltas between consecutive
// comments of every session, in comment order. Pairs missing a timestamp are
// skipped.
func (p *Pipeline) ReactionTimeDeltas(ctx context.Context) ([]float64, error) {
	comments, err := retryLoad(ctx, p, func(ctx context.Context) ([]common.Comment, error) {
		return p.store.QueryComments(ctx, false)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load comments: %w", err)
	}

	units := store.GroupComments(comments)
	ids := make([]int64, 0, len(units))
	for id := range units {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	var deltas []float64
	for _, id := range ids {
		d, err := commentDeltas(units[id])
		if err != nil {
			logger.Warn("[Pipeline] Skipping time deltas of session", "unit_id", id, "err", err)
			continue
		}
		deltas = append(deltas, d...)
	}
	return deltas, nil
}

func commentDeltas(comments []common.Comment) ([]float64, error) {
	var deltas []float64
	for i := 1; i < len(comments); i++ {
		if comments[i-1].CreatedAt == nil || comments[i].CreatedAt == nil {
			continue
		}
		prev, err := session.EventFromComment(comments[i-1])
		if err != nil {
			return nil, err
		}
		cur, err := session.EventFromComment(comments[i])
		if err != nil {
			return nil, err
		}
		d, err := cur.TimeDelta(prev)
		if err != nil {
			return nil, err
		}
		deltas = append(deltas, d)
	}
	return deltas, nil
}

// DeltaPercentile returns the pct-th percentile of deltas with linear
// interpolation of the empirical distribution. deltas is not modified.
func DeltaPercentile(deltas []float64, pct float64) (float64, error) {
	if len(deltas) == 0 {
		return 0, ErrNoDeltas
	}
	if !(pct >= 0 && pct <= 100) {
		return 0, fmt.Errorf("%w: got %v", ErrPercentileOutside, pct)
	}
	sorted := slices.Clone(deltas)
	slices.Sort(sorted)
	return stat.Quantile(pct/100, stat.LinInterp, sorted, nil), nil
}
