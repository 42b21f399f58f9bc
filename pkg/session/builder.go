package session

import (
	"fmt"

	"github.com/OFFIS-RIT/motifs/pkg/common"
	"github.com/OFFIS-RIT/motifs/pkg/logger"
	"github.com/OFFIS-RIT/motifs/pkg/role"
)

// Snapshotter observes the graph after every node or edge mutation. step
// starts at 0 and grows by one per call.
type Snapshotter interface {
	Snapshot(g *Graph, step int) error
}

// edgeRule describes the edges synthesized when an event of a role arrives.
// Out edges point from the new node to every known node of outTo; In edges
// point from every known node of inFrom to the new node.
type edgeRule struct {
	outTo   role.Bucket
	outType string
	inFrom  role.Bucket
	inType  string
}

var edgeRules = map[role.Role]edgeRule{
	role.AggressiveVictim: {
		outTo:   role.BucketBully,
		outType: "aggressive_victim->bully",
	},
	role.NonAggressiveDefenderDirect: {
		outTo:   role.BucketBully,
		outType: "non_aggressive_defender:direct_to_the_bully->bully",
	},
	role.Bully: {
		outTo:   role.BucketVictim,
		outType: "bully->victim",
	},
	role.BullyAssistant: {
		outTo:   role.BucketVictim,
		outType: "bully_assistant->victim",
	},
	role.NonAggressiveDefenderSupport: {
		outTo:   role.BucketVictim,
		outType: "non_aggressive_defender:support_of_the_victim->victim",
	},
	// the aggressive defender attacks bullies on behalf of the victims
	role.AggressiveDefender: {
		outTo:   role.BucketBully,
		outType: "aggressive_defender->victim",
		inFrom:  role.BucketVictim,
		inType:  "victim->aggressive_defender",
	},
	role.MainVictim:          {},
	role.NonAggressiveVictim: {},
	role.PassiveBystander:    {},
}

// Builder feeds role events into a Graph in order. Only nodes added by
// earlier events are eligible edge targets, so the event order decides the
// graph shape.
type Builder struct {
	graph  *Graph
	policy role.EdgePolicy
	snap   Snapshotter
	step   int

	known    map[role.Bucket][]*role.Event
	existing map[role.Identity]struct{}
}

type BuilderOption func(*Builder)

// WithSnapshotter registers s to observe every mutation.
func WithSnapshotter(s Snapshotter) BuilderOption {
	return func(b *Builder) {
		b.snap = s
	}
}

// WithEdgePolicy replaces the default role.PermitAll edge gate.
func WithEdgePolicy(p role.EdgePolicy) BuilderOption {
	return func(b *Builder) {
		if p != nil {
			b.policy = p
		}
	}
}

func NewBuilder(g *Graph, opts ...BuilderOption) *Builder {
	b := &Builder{
		graph:    g,
		policy:   role.PermitAll,
		known:    make(map[role.Bucket][]*role.Event),
		existing: make(map[role.Identity]struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Builder) Graph() *Graph { return b.graph }

// Add admits ev as a node and synthesizes its edges.
func (b *Builder) Add(ev *role.Event) error {
	if err := b.AddNode(ev); err != nil {
		return err
	}
	return b.AddEdges(ev)
}

// AddNode admits ev to the graph. Bystanders are ignored and a known identity
// is a no-op.
func (b *Builder) AddNode(ev *role.Event) error {
	if !ev.Role.Valid() {
		return fmt.Errorf("%w: %q by %q", role.ErrUnknownRole, ev.Role, ev.AuthorName)
	}
	bucket := ev.Role.Bucket()
	if bucket == role.BucketNone {
		return nil
	}

	id := ev.Identity()
	if _, ok := b.existing[id]; ok {
		return nil
	}
	if _, err := b.graph.AddNode(ev); err != nil {
		return err
	}
	b.existing[id] = struct{}{}
	b.known[bucket] = append(b.known[bucket], ev)
	b.snapshot()
	return nil
}

// AddEdges connects ev to the nodes added before it according to its role.
func (b *Builder) AddEdges(ev *role.Event) error {
	rule, ok := edgeRules[ev.Role]
	if !ok {
		return fmt.Errorf("%w: %q by %q", role.ErrUnknownRole, ev.Role, ev.AuthorName)
	}
	id := ev.Identity()

	if rule.outType != "" {
		for _, target := range b.known[rule.outTo] {
			if !b.policy(ev, target) {
				continue
			}
			if err := b.graph.AddEdge(id, target.Identity(), ev.Severity(), rule.outType); err != nil {
				return err
			}
			b.snapshot()
		}
	}
	if rule.inType != "" {
		for _, source := range b.known[rule.inFrom] {
			if !b.policy(ev, source) {
				continue
			}
			if err := b.graph.AddEdge(source.Identity(), id, ev.Severity(), rule.inType); err != nil {
				return err
			}
			b.snapshot()
		}
	}
	return nil
}

// Known returns the events admitted for bucket in arrival order.
func (b *Builder) Known(bucket role.Bucket) []*role.Event {
	return b.known[bucket]
}

func (b *Builder) snapshot() {
	if b.snap == nil {
		return
	}
	if err := b.snap.Snapshot(b.graph, b.step); err != nil {
		logger.Warn("[Session] Failed to take graph snapshot", "unit_id", b.graph.UnitID, "step", b.step, "err", err)
	}
	b.step++
}

// MainVictimEvent creates the event of the session owner, who is the main
// victim of every session graph.
func MainVictimEvent(s common.Session) *role.Event {
	posted := s.PostedAt
	return &role.Event{
		UnitID:     s.UnitID,
		AuthorName: s.OwnerUserName,
		Role:       role.MainVictim,
		Timestamp:  &posted,
	}
}

// Build creates the graph of s from events, which must already be in the
// desired order. The main victim is synthesized from the session owner and
// added first.
func Build(s common.Session, events []*role.Event, isTrueGraph bool, opts ...BuilderOption) (*Graph, error) {
	b := NewBuilder(New(s, isTrueGraph), opts...)

	if err := b.AddNode(MainVictimEvent(s)); err != nil {
		return nil, fmt.Errorf("failed to add main victim of unit %d: %w", s.UnitID, err)
	}
	for _, ev := range events {
		if err := b.Add(ev); err != nil {
			return nil, fmt.Errorf("failed to build unit %d at %s: %w", s.UnitID, ev, err)
		}
	}
	return b.Graph(), nil
}

// EventFromComment converts a labeled comment. An unrecognized role label is
// kept as role.Unknown so the build of its session fails with context.
func EventFromComment(c common.Comment) (*role.Event, error) {
	r, err := role.ParseRole(c.Role)
	if err != nil {
		logger.Warn("[Session] Unrecognized role label", "unit_id", c.UnitID, "role", c.Role)
		r = role.Unknown
	}
	ev, err := role.NewEvent(c.UnitID, c.CommentID, c.Author, r, c.Severity, c.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("comment %s of unit %d: %w", c.CommentID, c.UnitID, err)
	}
	return ev, nil
}
