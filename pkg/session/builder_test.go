package session

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/OFFIS-RIT/motifs/pkg/common"
	"github.com/OFFIS-RIT/motifs/pkg/role"
)

func sessionComments(t *testing.T) []*role.Event {
	return []*role.Event{
		event(t, "main_victim", role.MainVictim, 0),
		event(t, "agg_victim_1", role.AggressiveVictim, 1),
		event(t, "bully_1", role.Bully, 1),
		event(t, "bully_2", role.Bully, 1),
		event(t, "non_agg_defender_1", role.NonAggressiveDefenderSupport, 1),
		event(t, "agg_defender_1", role.AggressiveDefender, 1),
	}
}

func TestBuilderAllRoles(t *testing.T) {
	g := New(basicSession(), true)
	b := NewBuilder(g)
	for _, ev := range sessionComments(t) {
		require.NoError(t, b.Add(ev))
	}

	require.Len(t, b.Known(role.BucketBully), 2)
	require.Len(t, b.Known(role.BucketVictim), 2)
	require.Len(t, b.Known(role.BucketDefender), 2)

	s := g.Summarize()
	require.Equal(t, 6, s.NumNodes)
	require.Equal(t, 10, s.NumEdges)
	require.Equal(t, 2, s.NumVictims)
	require.Equal(t, 2, s.NumBullies)
	require.Equal(t, 2, s.NumDefenders)
	require.Equal(t, 1, s.NumNonAggDefenders)
	require.Equal(t, 1, s.NumAggDefenders)
	require.Equal(t, 0, s.NumNonAggVictims)
	require.Equal(t, 1, s.NumAggVictims)

	require.Equal(t, 3.0, s.MainVictimInDeg)
	require.Equal(t, 1.0, s.MainVictimOutDeg)
	require.InDelta(t, 3.0, s.VictimAvgInDeg, 1e-9)
	require.InDelta(t, 1.0, s.VictimAvgOutDeg, 1e-9)
	require.InDelta(t, 1.0, s.BullyAvgInDeg, 1e-9)
	require.InDelta(t, 2.0, s.BullyAvgOutDeg, 1e-9)
}

func TestBuilderEdgeTypes(t *testing.T) {
	g := New(basicSession(), true)
	b := NewBuilder(g)
	for _, ev := range sessionComments(t) {
		require.NoError(t, b.Add(ev))
	}

	mv := id("main_victim", role.MainVictim)
	av := id("agg_victim_1", role.AggressiveVictim)
	b1 := id("bully_1", role.Bully)
	nd := id("non_agg_defender_1", role.NonAggressiveDefenderSupport)
	ad := id("agg_defender_1", role.AggressiveDefender)

	tests := []struct {
		u, v role.Identity
		want string
	}{
		{b1, mv, "bully->victim"},
		{b1, av, "bully->victim"},
		{nd, mv, "non_aggressive_defender:support_of_the_victim->victim"},
		{ad, b1, "aggressive_defender->victim"},
		{mv, ad, "victim->aggressive_defender"},
		{av, ad, "victim->aggressive_defender"},
	}
	for _, tt := range tests {
		e, ok := g.Edge(tt.u, tt.v)
		require.True(t, ok, "%s -> %s", tt.u, tt.v)
		require.Equal(t, tt.want, e.Type)
		require.Equal(t, 1.0, e.Weight)
	}

	// the aggressive victim arrived before any bully
	_, ok := g.Edge(av, b1)
	require.False(t, ok)
}

func TestBuildEndToEnd(t *testing.T) {
	events := []*role.Event{
		event(t, "bully_1", role.Bully, 1),
		event(t, "bully_2", role.Bully, 1),
	}
	g, err := Build(basicSession(), events, true)
	require.NoError(t, err)

	s := g.Summarize()
	require.Equal(t, 3, s.NumNodes)
	require.Equal(t, 2, s.NumEdges)
	require.Equal(t, 2.0, s.MainVictimInDeg)
	require.Equal(t, 0.0, s.MainVictimOutDeg)
	require.Equal(t, 1.0, s.BullyAvgOutDeg)

	mv, ok := g.MainVictim()
	require.True(t, ok)
	require.Equal(t, "main_victim", mv.Author)
	n, _ := g.Node(mv)
	require.NotNil(t, n.Timestamp)
	require.True(t, n.Timestamp.Equal(basicSession().PostedAt))
}

func TestOrderSensitivity(t *testing.T) {
	bullyFirst := New(basicSession(), true)
	b := NewBuilder(bullyFirst)
	require.NoError(t, b.Add(event(t, "bully_1", role.Bully, 1)))
	require.NoError(t, b.Add(event(t, "victim_1", role.NonAggressiveVictim, 1)))
	require.Zero(t, bullyFirst.Size())

	victimFirst := New(basicSession(), true)
	b = NewBuilder(victimFirst)
	require.NoError(t, b.Add(event(t, "victim_1", role.NonAggressiveVictim, 1)))
	require.NoError(t, b.Add(event(t, "bully_1", role.Bully, 1)))
	require.Equal(t, 1, victimFirst.Size())
	e, ok := victimFirst.Edge(id("bully_1", role.Bully), id("victim_1", role.NonAggressiveVictim))
	require.True(t, ok)
	require.Equal(t, "bully->victim", e.Type)
}

func TestRepeatedAuthorAccumulates(t *testing.T) {
	events := []*role.Event{
		event(t, "bully_1", role.Bully, 1.5),
		event(t, "bully_1", role.Bully, 2.0),
	}
	g, err := Build(basicSession(), events, true)
	require.NoError(t, err)
	require.Equal(t, 2, g.Len())
	require.Equal(t, 1, g.Size())

	e, ok := g.Edge(id("bully_1", role.Bully), id("main_victim", role.MainVictim))
	require.True(t, ok)
	require.Equal(t, 3.5, e.Weight)
}

func TestBystandersAreSkipped(t *testing.T) {
	events := []*role.Event{
		event(t, "watcher", role.PassiveBystander, 0),
		event(t, "bully_1", role.Bully, 1),
	}
	g, err := Build(basicSession(), events, true)
	require.NoError(t, err)
	require.Equal(t, 2, g.Len())
	require.False(t, g.HasNode(id("watcher", role.PassiveBystander)))
}

func TestBuildUnknownRole(t *testing.T) {
	ev, err := EventFromComment(common.Comment{
		UnitID:    123,
		CommentID: uuid.New(),
		Author:    "troll",
		Role:      "lurker",
		Severity:  1,
	})
	require.NoError(t, err)
	require.Equal(t, role.Unknown, ev.Role)

	_, err = Build(basicSession(), []*role.Event{ev}, true)
	require.ErrorIs(t, err, role.ErrUnknownRole)
	require.Contains(t, err.Error(), "unit 123")
	require.Contains(t, err.Error(), "troll")
}

func TestEventFromCommentInvalidSeverity(t *testing.T) {
	_, err := EventFromComment(common.Comment{UnitID: 1, Author: "a", Role: "bully", Severity: 4})
	require.ErrorIs(t, err, role.ErrInvalidSeverity)
}

func TestBuildDuplicateMainVictim(t *testing.T) {
	events := []*role.Event{event(t, "impostor", role.MainVictim, 0)}
	_, err := Build(basicSession(), events, true)
	require.ErrorIs(t, err, ErrDuplicateMainVictim)

	// the owner showing up again as main victim is the same node
	events = []*role.Event{event(t, "main_victim", role.MainVictim, 0)}
	g, err := Build(basicSession(), events, true)
	require.NoError(t, err)
	require.Equal(t, 1, g.Len())
}

func TestEdgePolicyGatesEdges(t *testing.T) {
	var asked int
	deny := func(actor, target *role.Event) bool {
		asked++
		return false
	}
	events := []*role.Event{
		event(t, "bully_1", role.Bully, 1),
		event(t, "agg_defender_1", role.AggressiveDefender, 1),
	}
	g, err := Build(basicSession(), events, true, WithEdgePolicy(deny))
	require.NoError(t, err)
	require.Equal(t, 3, g.Len())
	require.Zero(t, g.Size())
	// bully->main victim, defender->bully, main victim->defender
	require.Equal(t, 3, asked)
}

type recordingSnapshotter struct {
	steps []int
	sizes [][2]int
	err   error
}

func (r *recordingSnapshotter) Snapshot(g *Graph, step int) error {
	r.steps = append(r.steps, step)
	r.sizes = append(r.sizes, [2]int{g.Len(), g.Size()})
	return r.err
}

func TestSnapshotAfterEveryMutation(t *testing.T) {
	snap := &recordingSnapshotter{}
	events := []*role.Event{
		event(t, "bully_1", role.Bully, 1),
		event(t, "bully_1", role.Bully, 1),
	}
	_, err := Build(basicSession(), events, true, WithSnapshotter(snap))
	require.NoError(t, err)

	// main victim node, bully node, edge, accumulated edge
	require.Equal(t, []int{0, 1, 2, 3}, snap.steps)
	require.Equal(t, [][2]int{{1, 0}, {2, 0}, {2, 1}, {2, 1}}, snap.sizes)
}

func TestSnapshotErrorsDoNotAbort(t *testing.T) {
	snap := &recordingSnapshotter{err: errors.New("disk full")}
	events := []*role.Event{event(t, "bully_1", role.Bully, 1)}
	g, err := Build(basicSession(), events, true, WithSnapshotter(snap))
	require.NoError(t, err)
	require.Equal(t, 1, g.Size())
	require.Len(t, snap.steps, 3)
}
