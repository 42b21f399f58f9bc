// Package motif finds the small recurring subgraph patterns of a session
// graph.
//
// Discover samples connected induced subgraphs of a fixed size, groups them
// by isomorphism class and keeps one materialized PlainMotif per class with
// the number of sampled instances that fell into it.
package motif

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/OFFIS-RIT/motifs/pkg/digraph"
	"github.com/OFFIS-RIT/motifs/pkg/logger"
	"github.com/OFFIS-RIT/motifs/pkg/session"
	"github.com/OFFIS-RIT/motifs/pkg/wlhash"
)

// Sizes are the motif sizes mined per session.
var Sizes = []int{3, 4}

// PlainMotif is the first sampled instance of an isomorphism class within a
// session, with its structure-only fingerprint.
type PlainMotif struct {
	ID       uuid.UUID                                       `json:"plain_motif_id"`
	UnitID   int64                                           `json:"unit_id"`
	Size     int                                             `json:"size"`
	IsoClass int                                             `json:"iso_class"`
	Graph    *digraph.Graph[int, session.Node, session.Edge] `json:"graph"`
	Hash     string                                          `json:"motif_hash"`
	Count    int                                             `json:"count"`
}

// Hash returns the structure-only fingerprint of a motif graph.
func Hash(g *digraph.Graph[int, session.Node, session.Edge]) string {
	return wlhash.Hash[session.Node, session.Edge](g, wlhash.Options[session.Node, session.Edge]{})
}

// Discover samples the motifs of one size in g. An empty result is not an
// error.
func Discover(g *session.Graph, size int, opts ...SamplerOption) ([]*PlainMotif, error) {
	sampler, err := NewSampler(size, opts...)
	if err != nil {
		return nil, err
	}

	var motifs []*PlainMotif
	byClass := make(map[int]*PlainMotif)
	for inst := range sampler.Enumerate(g) {
		if m, ok := byClass[inst.IsoClass]; ok {
			m.Count++
			continue
		}

		sub, err := g.Induced(inst.Vertices)
		if err != nil {
			return nil, fmt.Errorf("failed to materialize motif of unit %d: %w", g.UnitID, err)
		}
		m := &PlainMotif{
			ID:       uuid.New(),
			UnitID:   g.UnitID,
			Size:     size,
			IsoClass: inst.IsoClass,
			Graph:    sub,
			Hash:     Hash(sub),
			Count:    1,
		}
		byClass[inst.IsoClass] = m
		motifs = append(motifs, m)
	}

	if len(motifs) == 0 {
		logger.Warn("[Motif] Failed to find any motifs", "unit_id", g.UnitID, "size", size)
	}
	return motifs, nil
}

// DiscoverAll runs Discover for every size in Sizes. Cut probabilities given
// through opts must fit every size, so callers mining with cuts should call
// Discover per size instead.
func DiscoverAll(g *session.Graph, opts ...SamplerOption) ([]*PlainMotif, error) {
	var all []*PlainMotif
	for _, size := range Sizes {
		motifs, err := Discover(g, size, opts...)
		if err != nil {
			return nil, err
		}
		all = append(all, motifs...)
	}
	return all, nil
}
