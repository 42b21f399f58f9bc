// Package pipeline runs the batch jobs of the motif system: building the
// session graphs from the labeled comments and mining them for motifs.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/OFFIS-RIT/motifs/internal/util"
	"github.com/OFFIS-RIT/motifs/pkg/common"
	"github.com/OFFIS-RIT/motifs/pkg/leaselock"
	"github.com/OFFIS-RIT/motifs/pkg/logger"
	"github.com/OFFIS-RIT/motifs/pkg/role"
	"github.com/OFFIS-RIT/motifs/pkg/session"
	"github.com/OFFIS-RIT/motifs/pkg/store"
)

// MiningLockKey guards motif mining so that two workers never mine the same
// graphs at once.
const MiningLockKey = "motif_mining"

// Locker runs fn while holding a named lock.
type Locker interface {
	WithLease(ctx context.Context, key string, opts leaselock.Options, fn func(ctx context.Context) error) error
}

type Pipeline struct {
	store    store.Storage
	locker   Locker
	parallel int
	retries  int
	backoff  time.Duration
}

type Option func(*Pipeline)

// WithParallelism bounds the number of sessions processed at once.
func WithParallelism(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.parallel = n
		}
	}
}

// WithRetries retries every storage call up to n times, pausing backoff
// before the first retry and doubling the pause after that.
func WithRetries(n int, backoff time.Duration) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.retries = n
		}
		p.backoff = backoff
	}
}

func WithLocker(l Locker) Option {
	return func(p *Pipeline) {
		p.locker = l
	}
}

func New(st store.Storage, opts ...Option) *Pipeline {
	p := &Pipeline{
		store:    st,
		parallel: runtime.NumCPU(),
		retries:  3,
		backoff:  time.Second,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// SessionFailure records a session skipped by a batch job.
type SessionFailure struct {
	UnitID int64
	Err    error
}

func (f SessionFailure) Error() string {
	return fmt.Sprintf("unit %d: %v", f.UnitID, f.Err)
}

func (f SessionFailure) Unwrap() error { return f.Err }

// FailuresError joins failures into one error, nil when there are none.
func FailuresError(failures []SessionFailure) error {
	errs := make([]error, len(failures))
	for i, f := range failures {
		errs[i] = f
	}
	return errors.Join(errs...)
}

type BuildOptions struct {
	// Shuffle randomizes the comment order within every session. The graphs
	// are stored as shuffled graphs, the null model of the true ones.
	Shuffle bool
	// Snapshots, if set, records every step of every build. It must be safe
	// for concurrent use.
	Snapshots session.Snapshotter
	// Policy filters synthesized edges. Nil admits all of them.
	Policy role.EdgePolicy
}

type BuildResult struct {
	Graphs   []*session.Graph
	Failures []SessionFailure
}

func retryLoad[T any](ctx context.Context, p *Pipeline, fn func(ctx context.Context) (T, error)) (T, error) {
	return util.RetryWithBackoff(ctx, p.retries, p.backoff, fn)
}

// BuildSessionGraphs builds the graph of every session and stores them. A
// session that cannot be built is logged and skipped; its failure is part of
// the result.
func (p *Pipeline) BuildSessionGraphs(ctx context.Context, opts BuildOptions) (*BuildResult, error) {
	sessions, err := retryLoad(ctx, p, p.store.QuerySessions)
	if err != nil {
		return nil, fmt.Errorf("failed to load sessions: %w", err)
	}
	comments, err := retryLoad(ctx, p, func(ctx context.Context) ([]common.Comment, error) {
		return p.store.QueryComments(ctx, opts.Shuffle)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load comments: %w", err)
	}
	byUnit := store.GroupComments(comments)

	logger.Info("[Pipeline] Building session graphs", "sessions", len(sessions), "comments", len(comments), "shuffle", opts.Shuffle)

	var builderOpts []session.BuilderOption
	if opts.Snapshots != nil {
		builderOpts = append(builderOpts, session.WithSnapshotter(opts.Snapshots))
	}
	if opts.Policy != nil {
		builderOpts = append(builderOpts, session.WithEdgePolicy(opts.Policy))
	}

	graphs := make([]*session.Graph, len(sessions))
	errs := make([]error, len(sessions))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.parallel)
	for i, s := range sessions {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			graphs[i], errs[i] = buildSession(s, byUnit[s.UnitID], !opts.Shuffle, builderOpts)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	res := &BuildResult{}
	for i, s := range sessions {
		if errs[i] != nil {
			logger.Warn("[Pipeline] Skipping session", "unit_id", s.UnitID, "err", errs[i])
			res.Failures = append(res.Failures, SessionFailure{UnitID: s.UnitID, Err: errs[i]})
			continue
		}
		res.Graphs = append(res.Graphs, graphs[i])
	}

	err = util.RetryErrWithBackoff(ctx, p.retries, p.backoff, func(ctx context.Context) error {
		return p.store.InsertSessionGraphs(ctx, res.Graphs)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to store session graphs: %w", err)
	}

	logger.Info("[Pipeline] Built session graphs", "graphs", len(res.Graphs), "failed", len(res.Failures))
	return res, nil
}

func buildSession(s common.Session, comments []common.Comment, isTrue bool, opts []session.BuilderOption) (*session.Graph, error) {
	if len(comments) == 0 {
		return nil, session.ErrNoComments
	}
	events := make([]*role.Event, 0, len(comments))
	for _, c := range comments {
		ev, err := session.EventFromComment(c)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return session.Build(s, events, isTrue, opts...)
}
