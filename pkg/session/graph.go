// Package session builds and summarizes the directed interaction graph of
// one social-media session.
//
// A Graph is keyed by role.Identity: the same author acting in the same role
// is a single node no matter how many comments they wrote. All structural
// mutation goes through AddNode and AddEdge, which enforce the graph
// invariants: at most one main victim, edges only between existing nodes,
// and repeated edges accumulating weight instead of duplicating.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"time"

	"github.com/OFFIS-RIT/motifs/pkg/common"
	"github.com/OFFIS-RIT/motifs/pkg/digraph"
	"github.com/OFFIS-RIT/motifs/pkg/role"
)

var (
	ErrDuplicateMainVictim = errors.New("session: main victim is already set")
	ErrMissingEndpoint     = errors.New("session: edge endpoint is not part of the graph")
	ErrNoComments          = errors.New("session: session has no comments")
)

// Node holds the attributes of one author-in-role.
type Node struct {
	Author    string     `json:"author"`
	Type      role.Role  `json:"type"`
	Layer     float64    `json:"layer"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
}

// Edge holds the accumulated weight of all reactions from one node to another
// and the type of the first reaction that created it.
type Edge struct {
	Weight float64 `json:"weight"`
	Type   string  `json:"type"`
}

// Graph is the interaction graph of one session.
type Graph struct {
	UnitID              int64
	OwnerUsername       string
	OwnerComment        string
	NumLikes            int
	NumBullyingComments int
	NumComments         int
	TopicVector         []int
	IsTrueGraph         bool

	g          *digraph.Graph[role.Identity, Node, Edge]
	mainVictim *role.Identity
}

// New creates an empty graph carrying the metadata of s.
func New(s common.Session, isTrueGraph bool) *Graph {
	return &Graph{
		UnitID:              s.UnitID,
		OwnerUsername:       s.OwnerUserName,
		OwnerComment:        s.OwnerComment,
		NumLikes:            s.NumLikes,
		NumBullyingComments: s.NumBullyingComments,
		NumComments:         s.NumComments,
		TopicVector:         append([]int(nil), s.TopicVector...),
		IsTrueGraph:         isTrueGraph,
		g:                   digraph.New[role.Identity, Node, Edge](),
	}
}

// AddNode adds the author-in-role of ev. Adding an identity that is already
// present is a no-op, except for the main victim: a graph holds exactly one
// and any second attempt fails with ErrDuplicateMainVictim.
func (s *Graph) AddNode(ev *role.Event) (bool, error) {
	if !ev.Role.Valid() {
		return false, fmt.Errorf("%w: %q", role.ErrUnknownRole, ev.Role)
	}
	id := ev.Identity()
	if ev.Role == role.MainVictim {
		if s.mainVictim != nil {
			return false, fmt.Errorf("%w: have %s, got %s", ErrDuplicateMainVictim, s.mainVictim.Author, id.Author)
		}
		s.mainVictim = &id
	}

	_, added := s.g.AddNode(id, Node{
		Author:    ev.AuthorName,
		Type:      ev.Role,
		Layer:     ev.Role.Layer(),
		Timestamp: ev.Timestamp,
	})
	return added, nil
}

// AddEdge records a reaction from u to v. If the edge already exists its
// weight grows by weight and its type is kept.
func (s *Graph) AddEdge(u, v role.Identity, weight float64, edgeType string) error {
	if !s.g.HasNode(u) || !s.g.HasNode(v) {
		return fmt.Errorf("%w: %s -> %s", ErrMissingEndpoint, u, v)
	}
	return s.g.UpdateEdge(u, v, func(cur Edge, exists bool) Edge {
		if exists {
			cur.Weight += weight
			return cur
		}
		return Edge{Weight: weight, Type: edgeType}
	})
}

// MainVictim returns the identity of the main victim, if one was added.
func (s *Graph) MainVictim() (role.Identity, bool) {
	if s.mainVictim == nil {
		return role.Identity{}, false
	}
	return *s.mainVictim, true
}

func (s *Graph) Len() int  { return s.g.Len() }
func (s *Graph) Size() int { return s.g.Size() }

func (s *Graph) HasNode(id role.Identity) bool        { return s.g.HasNode(id) }
func (s *Graph) Node(id role.Identity) (Node, bool)   { return s.g.Node(id) }
func (s *Graph) Edge(u, v role.Identity) (Edge, bool) { return s.g.Edge(u, v) }

func (s *Graph) KeyAt(i int) role.Identity { return s.g.KeyAt(i) }
func (s *Graph) NodeAt(i int) Node         { return s.g.NodeAt(i) }
func (s *Graph) Degree(i int) int          { return s.g.Degree(i) }
func (s *Graph) HasArc(i, j int) bool      { return s.g.HasArc(i, j) }
func (s *Graph) Neighbors(i int) []int     { return s.g.Neighbors(i) }

func (s *Graph) Out(i int) iter.Seq2[int, Edge] { return s.g.Out(i) }
func (s *Graph) In(i int) iter.Seq2[int, Edge]  { return s.g.In(i) }

func (s *Graph) Nodes() iter.Seq2[role.Identity, Node] { return s.g.Nodes() }
func (s *Graph) Arcs() iter.Seq[digraph.Arc[Edge]]     { return s.g.Arcs() }

// Induced returns a copy of the subgraph induced by the node indices, keyed
// 0..k-1 in ascending index order.
func (s *Graph) Induced(indices []int) (*digraph.Graph[int, Node, Edge], error) {
	return s.g.Induced(indices)
}

// Members returns the identities in bucket b in insertion order.
func (s *Graph) Members(b role.Bucket) []role.Identity {
	var out []role.Identity
	for id := range s.g.Nodes() {
		if id.Role.Bucket() == b {
			out = append(out, id)
		}
	}
	return out
}

func (s *Graph) Victims() []role.Identity   { return s.Members(role.BucketVictim) }
func (s *Graph) Bullies() []role.Identity   { return s.Members(role.BucketBully) }
func (s *Graph) Defenders() []role.Identity { return s.Members(role.BucketDefender) }

type graphJSON struct {
	UnitID              int64                                     `json:"unit_id"`
	OwnerUsername       string                                    `json:"owner_username"`
	OwnerComment        string                                    `json:"owner_comment"`
	NumLikes            int                                       `json:"num_likes"`
	NumBullyingComments int                                       `json:"num_bullying_comments"`
	NumComments         int                                       `json:"num_comments"`
	TopicVector         []int                                     `json:"topic_vector"`
	IsTrueGraph         bool                                      `json:"is_true_graph"`
	Graph               *digraph.Graph[role.Identity, Node, Edge] `json:"graph"`
}

func (s *Graph) MarshalJSON() ([]byte, error) {
	return json.Marshal(graphJSON{
		UnitID:              s.UnitID,
		OwnerUsername:       s.OwnerUsername,
		OwnerComment:        s.OwnerComment,
		NumLikes:            s.NumLikes,
		NumBullyingComments: s.NumBullyingComments,
		NumComments:         s.NumComments,
		TopicVector:         s.TopicVector,
		IsTrueGraph:         s.IsTrueGraph,
		Graph:               s.g,
	})
}

// UnmarshalJSON restores a persisted graph. The structure is replayed through
// AddNode and AddEdge so a corrupted document cannot break the invariants.
func (s *Graph) UnmarshalJSON(data []byte) error {
	var doc graphJSON
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	if doc.Graph == nil {
		doc.Graph = digraph.New[role.Identity, Node, Edge]()
	}

	restored := &Graph{
		UnitID:              doc.UnitID,
		OwnerUsername:       doc.OwnerUsername,
		OwnerComment:        doc.OwnerComment,
		NumLikes:            doc.NumLikes,
		NumBullyingComments: doc.NumBullyingComments,
		NumComments:         doc.NumComments,
		TopicVector:         doc.TopicVector,
		IsTrueGraph:         doc.IsTrueGraph,
		g:                   digraph.New[role.Identity, Node, Edge](),
	}
	for id, n := range doc.Graph.Nodes() {
		if id.Role != n.Type {
			return fmt.Errorf("node %s has type %s", id, n.Type)
		}
		if _, err := restored.AddNode(&role.Event{
			UnitID:     doc.UnitID,
			AuthorName: id.Author,
			Role:       id.Role,
			Timestamp:  n.Timestamp,
		}); err != nil {
			return fmt.Errorf("failed to restore node %s: %w", id, err)
		}
	}
	for a := range doc.Graph.Arcs() {
		u, v := doc.Graph.KeyAt(a.From), doc.Graph.KeyAt(a.To)
		if err := restored.AddEdge(u, v, a.Attr.Weight, a.Attr.Type); err != nil {
			return fmt.Errorf("failed to restore edge: %w", err)
		}
	}

	*s = *restored
	return nil
}
