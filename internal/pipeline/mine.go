package pipeline

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/OFFIS-RIT/motifs/internal/util"
	"github.com/OFFIS-RIT/motifs/pkg/flavor"
	"github.com/OFFIS-RIT/motifs/pkg/leaselock"
	"github.com/OFFIS-RIT/motifs/pkg/logger"
	"github.com/OFFIS-RIT/motifs/pkg/motif"
	"github.com/OFFIS-RIT/motifs/pkg/session"
)

type MineOptions struct {
	// Sizes defaults to motif.Sizes.
	Sizes []int
	// CutProbabilities per motif size. Sizes without an entry are enumerated
	// exhaustively.
	CutProbabilities map[int][]float64
	// Seed makes the randomized cuts reproducible.
	Seed *uint64
	// LeaseTTL of the mining lock.
	LeaseTTL time.Duration
}

type MineResult struct {
	Plain    []*motif.PlainMotif
	Flavored []*flavor.FlavoredMotif
	Failures []SessionFailure
}

func (o MineOptions) sizes() []int {
	if len(o.Sizes) == 0 {
		return motif.Sizes
	}
	return o.Sizes
}

func (o MineOptions) samplerOptions(size int) []motif.SamplerOption {
	var opts []motif.SamplerOption
	if cut, ok := o.CutProbabilities[size]; ok {
		opts = append(opts, motif.WithCutProbabilities(cut))
	}
	if o.Seed != nil {
		opts = append(opts, motif.WithSeed(*o.Seed))
	}
	return opts
}

// validate rejects unusable sizes and cut probabilities before any graph is
// loaded.
func (o MineOptions) validate() error {
	for _, size := range o.sizes() {
		if _, err := motif.NewSampler(size, o.samplerOptions(size)...); err != nil {
			return err
		}
	}
	return nil
}

// MineMotifs discovers the plain motifs of every stored true graph, flavors
// them and stores both. Only one miner runs at a time when a Locker is set.
func (p *Pipeline) MineMotifs(ctx context.Context, opts MineOptions) (*MineResult, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if p.locker == nil {
		return p.mine(ctx, opts)
	}

	var res *MineResult
	err := p.locker.WithLease(ctx, MiningLockKey, leaselock.Options{TTL: opts.LeaseTTL}, func(ctx context.Context) error {
		var err error
		res, err = p.mine(ctx, opts)
		return err
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (p *Pipeline) mine(ctx context.Context, opts MineOptions) (*MineResult, error) {
	graphs, err := retryLoad(ctx, p, func(ctx context.Context) ([]*session.Graph, error) {
		return p.store.QuerySessionGraphs(ctx, true)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load session graphs: %w", err)
	}

	logger.Info("[Pipeline] Mining motifs", "graphs", len(graphs), "sizes", opts.sizes())

	found := make([][]*motif.PlainMotif, len(graphs))
	errs := make([]error, len(graphs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.parallel)
	for i, sg := range graphs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			for _, size := range opts.sizes() {
				motifs, err := motif.Discover(sg, size, opts.samplerOptions(size)...)
				if err != nil {
					errs[i] = err
					return nil
				}
				found[i] = append(found[i], motifs...)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	res := &MineResult{}
	for i, sg := range graphs {
		if errs[i] != nil {
			logger.Warn("[Pipeline] Skipping graph", "unit_id", sg.UnitID, "err", errs[i])
			res.Failures = append(res.Failures, SessionFailure{UnitID: sg.UnitID, Err: errs[i]})
			continue
		}
		res.Plain = append(res.Plain, found[i]...)
	}

	flavored, err := flavor.FlavorAll(res.Plain)
	if err != nil {
		logger.Warn("[Pipeline] Failed to flavor some motifs", "err", err)
	}
	res.Flavored = flavored

	err = util.RetryErrWithBackoff(ctx, p.retries, p.backoff, func(ctx context.Context) error {
		return p.store.InsertPlainMotifs(ctx, res.Plain)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to store plain motifs: %w", err)
	}
	err = util.RetryErrWithBackoff(ctx, p.retries, p.backoff, func(ctx context.Context) error {
		return p.store.InsertFlavoredMotifs(ctx, res.Flavored)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to store flavored motifs: %w", err)
	}

	logger.Info("[Pipeline] Mined motifs", "plain", len(res.Plain), "flavored", len(res.Flavored), "failed", len(res.Failures))
	return res, nil
}
