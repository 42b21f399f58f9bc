package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/OFFIS-RIT/motifs/pkg/common"
	"github.com/OFFIS-RIT/motifs/pkg/flavor"
	"github.com/OFFIS-RIT/motifs/pkg/leaselock"
	"github.com/OFFIS-RIT/motifs/pkg/motif"
	"github.com/OFFIS-RIT/motifs/pkg/role"
	"github.com/OFFIS-RIT/motifs/pkg/session"
	"github.com/OFFIS-RIT/motifs/pkg/store"
)

// memStore is an in-memory store.Storage.
type memStore struct {
	mu sync.Mutex

	sessions []common.Session
	comments []common.Comment

	graphs   []*session.Graph
	plain    []*motif.PlainMotif
	flavored []*flavor.FlavoredMotif

	failInserts int
	inserts     int
	lastShuffle bool
}

var _ store.Storage = (*memStore)(nil)

func (m *memStore) QuerySessions(ctx context.Context) ([]common.Session, error) {
	return m.sessions, nil
}

func (m *memStore) QueryComments(ctx context.Context, shuffle bool) ([]common.Comment, error) {
	m.lastShuffle = shuffle
	return m.comments, nil
}

func (m *memStore) InsertSessionGraphs(ctx context.Context, graphs []*session.Graph) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inserts++
	if m.failInserts > 0 {
		m.failInserts--
		return errors.New("connection reset")
	}
	m.graphs = append(m.graphs, graphs...)
	return nil
}

func (m *memStore) QuerySessionGraphs(ctx context.Context, trueOnly bool) ([]*session.Graph, error) {
	var out []*session.Graph
	for _, g := range m.graphs {
		if g.IsTrueGraph || !trueOnly {
			out = append(out, g)
		}
	}
	return out, nil
}

func (m *memStore) QuerySessionGraph(ctx context.Context, unitID int64, isTrue bool) (*session.Graph, error) {
	for _, g := range m.graphs {
		if g.UnitID == unitID && g.IsTrueGraph == isTrue {
			return g, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *memStore) QuerySimilarSessions(ctx context.Context, unitID int64, limit int) ([]store.SimilarSession, error) {
	return nil, nil
}

func (m *memStore) InsertPlainMotifs(ctx context.Context, motifs []*motif.PlainMotif) error {
	m.plain = append(m.plain, motifs...)
	return nil
}

func (m *memStore) InsertFlavoredMotifs(ctx context.Context, motifs []*flavor.FlavoredMotif) error {
	m.flavored = append(m.flavored, motifs...)
	return nil
}

func (m *memStore) QueryMotifsByHash(ctx context.Context, hash string) (*store.MotifMatches, error) {
	return &store.MotifMatches{}, nil
}

var base = time.Date(2024, 4, 1, 10, 0, 0, 0, time.UTC)

func at(minutes int) *time.Time {
	ts := base.Add(time.Duration(minutes) * time.Minute)
	return &ts
}

func comment(unit int64, author, label string, minutes int) common.Comment {
	return common.Comment{
		UnitID:    unit,
		CommentID: uuid.New(),
		Author:    author,
		CreatedAt: at(minutes),
		Role:      label,
		Severity:  1,
	}
}

func fixture() *memStore {
	sess := func(id int64) common.Session {
		return common.Session{UnitID: id, PostedAt: base, OwnerUserName: "owner", TopicVector: make([]int, 10)}
	}
	return &memStore{
		sessions: []common.Session{sess(1), sess(2), sess(3), sess(4)},
		comments: []common.Comment{
			comment(1, "b1", "bully", 1),
			comment(1, "b2", "bully_assistant", 2),
			comment(1, "d1", "aggressive_defender", 5),
			comment(2, "b1", "bully", 1),
			comment(2, "x", "troll", 2),
			comment(3, "b1", "bully", 1),
			comment(3, "v1", "aggressive_victim", 3),
		},
	}
}

func fastPipeline(st store.Storage, opts ...Option) *Pipeline {
	return New(st, append([]Option{WithParallelism(2), WithRetries(3, time.Millisecond)}, opts...)...)
}

func TestBuildSessionGraphsSkipsFailures(t *testing.T) {
	st := fixture()
	res, err := fastPipeline(st).BuildSessionGraphs(context.Background(), BuildOptions{})
	require.NoError(t, err)
	require.False(t, st.lastShuffle)

	require.Len(t, res.Graphs, 2)
	require.Equal(t, int64(1), res.Graphs[0].UnitID)
	require.Equal(t, int64(3), res.Graphs[1].UnitID)
	for _, g := range res.Graphs {
		require.True(t, g.IsTrueGraph)
	}
	require.Equal(t, 4, res.Graphs[0].Len())

	require.Len(t, res.Failures, 2)
	require.Equal(t, int64(2), res.Failures[0].UnitID)
	require.ErrorIs(t, res.Failures[0].Err, role.ErrUnknownRole)
	require.Equal(t, int64(4), res.Failures[1].UnitID)
	require.ErrorIs(t, res.Failures[1].Err, session.ErrNoComments)
	require.ErrorIs(t, FailuresError(res.Failures), session.ErrNoComments)

	require.Len(t, st.graphs, 2)
}

func TestBuildSessionGraphsShuffled(t *testing.T) {
	st := fixture()
	res, err := fastPipeline(st).BuildSessionGraphs(context.Background(), BuildOptions{Shuffle: true})
	require.NoError(t, err)
	require.True(t, st.lastShuffle)
	for _, g := range res.Graphs {
		require.False(t, g.IsTrueGraph)
	}
}

func TestBuildSessionGraphsRetriesInsert(t *testing.T) {
	st := fixture()
	st.failInserts = 2
	_, err := fastPipeline(st).BuildSessionGraphs(context.Background(), BuildOptions{})
	require.NoError(t, err)
	require.Equal(t, 3, st.inserts)

	st = fixture()
	st.failInserts = 5
	_, err = fastPipeline(st).BuildSessionGraphs(context.Background(), BuildOptions{})
	require.ErrorContains(t, err, "connection reset")
}

func TestBuildSessionGraphsEdgePolicy(t *testing.T) {
	st := fixture()
	// every reaction in unit 1 comes at least a minute after its target
	res, err := fastPipeline(st).BuildSessionGraphs(context.Background(), BuildOptions{
		Policy: role.WithinTimeDelta(120),
	})
	require.NoError(t, err)
	withAll := res.Graphs[0].Size()

	st = fixture()
	res, err = fastPipeline(st).BuildSessionGraphs(context.Background(), BuildOptions{
		Policy: role.WithinTimeDelta(1),
	})
	require.NoError(t, err)
	require.Less(t, res.Graphs[0].Size(), withAll)
}

type countingSnapshotter struct {
	mu    sync.Mutex
	units map[int64]int
}

func (c *countingSnapshotter) Snapshot(g *session.Graph, step int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.units[g.UnitID]++
	return nil
}

func TestBuildSessionGraphsSnapshots(t *testing.T) {
	snap := &countingSnapshotter{units: map[int64]int{}}
	_, err := fastPipeline(fixture()).BuildSessionGraphs(context.Background(), BuildOptions{Snapshots: snap})
	require.NoError(t, err)
	require.Positive(t, snap.units[1])
	require.Positive(t, snap.units[3])
}

func TestBuildSessionGraphsCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := fastPipeline(fixture()).BuildSessionGraphs(ctx, BuildOptions{})
	require.ErrorIs(t, err, context.Canceled)
}

type recordingLocker struct {
	keys []string
	err  error
}

func (l *recordingLocker) WithLease(ctx context.Context, key string, opts leaselock.Options, fn func(ctx context.Context) error) error {
	l.keys = append(l.keys, key)
	if l.err != nil {
		return l.err
	}
	return fn(ctx)
}

func TestMineMotifs(t *testing.T) {
	st := fixture()
	p := fastPipeline(st)
	_, err := p.BuildSessionGraphs(context.Background(), BuildOptions{})
	require.NoError(t, err)
	_, err = p.BuildSessionGraphs(context.Background(), BuildOptions{Shuffle: true})
	require.NoError(t, err)

	locker := &recordingLocker{}
	p = fastPipeline(st, WithLocker(locker))
	res, err := p.MineMotifs(context.Background(), MineOptions{})
	require.NoError(t, err)
	require.Equal(t, []string{MiningLockKey}, locker.keys)
	require.Empty(t, res.Failures)

	require.NotEmpty(t, res.Plain)
	units := map[int64]bool{}
	for _, m := range res.Plain {
		units[m.UnitID] = true
	}
	require.Equal(t, map[int64]bool{1: true, 3: true}, units)
	require.Len(t, res.Flavored, 6*len(res.Plain))
	require.Equal(t, res.Plain, st.plain)
	require.Equal(t, res.Flavored, st.flavored)
}

func TestMineMotifsBusy(t *testing.T) {
	st := fixture()
	p := fastPipeline(st, WithLocker(&recordingLocker{err: leaselock.ErrBusy}))
	_, err := p.MineMotifs(context.Background(), MineOptions{})
	require.ErrorIs(t, err, leaselock.ErrBusy)
	require.Empty(t, st.plain)
}

func TestMineMotifsValidatesOptions(t *testing.T) {
	p := fastPipeline(fixture())
	_, err := p.MineMotifs(context.Background(), MineOptions{Sizes: []int{5}})
	require.ErrorIs(t, err, motif.ErrUnsupportedSize)

	_, err = p.MineMotifs(context.Background(), MineOptions{
		Sizes:            []int{3},
		CutProbabilities: map[int][]float64{3: {0, 0}},
	})
	require.ErrorIs(t, err, motif.ErrInvalidCutProbability)
}

func TestMineMotifsFullCutFindsNothing(t *testing.T) {
	st := fixture()
	p := fastPipeline(st)
	_, err := p.BuildSessionGraphs(context.Background(), BuildOptions{})
	require.NoError(t, err)

	seed := uint64(1)
	res, err := p.MineMotifs(context.Background(), MineOptions{
		Sizes:            []int{3},
		CutProbabilities: map[int][]float64{3: {1, 0, 0}},
		Seed:             &seed,
	})
	require.NoError(t, err)
	require.Empty(t, res.Plain)
	require.Empty(t, res.Flavored)
}
