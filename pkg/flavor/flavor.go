// Package flavor abstracts plain motifs to coarser node and edge labels so
// patterns from different sessions can be compared.
//
// A flavor pair (node flavor, edge flavor) remaps every node role to a small
// integer and every edge weight to a bucket index, then fingerprints the
// result using exactly those two labels.
package flavor

import (
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/google/uuid"

	"github.com/OFFIS-RIT/motifs/pkg/digraph"
	"github.com/OFFIS-RIT/motifs/pkg/motif"
	"github.com/OFFIS-RIT/motifs/pkg/role"
	"github.com/OFFIS-RIT/motifs/pkg/session"
	"github.com/OFFIS-RIT/motifs/pkg/wlhash"
)

var (
	ErrUnknownRoleFlavor = errors.New("flavor: role has no flavor mapping")
	ErrUnknownFlavor     = errors.New("flavor: unknown flavor")
)

type NodeFlavor string

const (
	NodeFine   NodeFlavor = "fine"
	NodeCoarse NodeFlavor = "coarse"
)

type EdgeFlavor string

const (
	EdgeFine       EdgeFlavor = "fine"
	EdgeCoarse     EdgeFlavor = "coarse"
	EdgeUnweighted EdgeFlavor = "unweighted"
)

var (
	NodeFlavors = []NodeFlavor{NodeFine, NodeCoarse}
	EdgeFlavors = []EdgeFlavor{EdgeFine, EdgeCoarse, EdgeUnweighted}
)

// roleFlavors maps every graph role to its fine and coarse class. Gaps in the
// coarse classes leave room for intermediate classes.
var roleFlavors = map[role.Role]struct{ fine, coarse int }{
	role.MainVictim:                   {fine: 0, coarse: 0},
	role.NonAggressiveVictim:          {fine: 1, coarse: 0},
	role.AggressiveVictim:             {fine: 2, coarse: 0},
	role.AggressiveDefender:           {fine: 3, coarse: 3},
	role.NonAggressiveDefenderDirect:  {fine: 4, coarse: 3},
	role.NonAggressiveDefenderSupport: {fine: 4, coarse: 3},
	role.Bully:                        {fine: 5, coarse: 5},
	role.BullyAssistant:               {fine: 6, coarse: 5},
}

// weightBins are the right-open bucket boundaries per edge flavor.
var weightBins = map[EdgeFlavor][]float64{
	EdgeFine:       {1, 2, 3},
	EdgeCoarse:     {3},
	EdgeUnweighted: {1},
}

// MapRole returns the class of r under nf.
func MapRole(r role.Role, nf NodeFlavor) (int, error) {
	m, ok := roleFlavors[r]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownRoleFlavor, r)
	}
	switch nf {
	case NodeFine:
		return m.fine, nil
	case NodeCoarse:
		return m.coarse, nil
	default:
		return 0, fmt.Errorf("%w: node flavor %q", ErrUnknownFlavor, nf)
	}
}

// BinWeight returns the bucket of w under ef. Buckets start at 1: a weight
// below the first boundary lands in bucket 1 and every boundary at or below
// w adds one.
func BinWeight(w float64, ef EdgeFlavor) (int, error) {
	bins, ok := weightBins[ef]
	if !ok {
		return 0, fmt.Errorf("%w: edge flavor %q", ErrUnknownFlavor, ef)
	}
	i := sort.Search(len(bins), func(i int) bool { return bins[i] > w })
	return i + 1, nil
}

// Node is a motif node with its remapped role class.
type Node struct {
	session.Node
	MappedType int `json:"mapped_type"`
}

// Edge is a motif edge with its weight bucket.
type Edge struct {
	session.Edge
	BinnedWeight int `json:"binned_weight"`
}

// FlavoredMotif is one plain motif seen under one flavor pair.
type FlavoredMotif struct {
	ID           uuid.UUID                       `json:"flavored_motif_id"`
	PlainMotifID uuid.UUID                       `json:"plain_motif_id"`
	NodeFlavor   NodeFlavor                      `json:"node_flavor"`
	EdgeFlavor   EdgeFlavor                      `json:"edge_flavor"`
	Graph        *digraph.Graph[int, Node, Edge] `json:"graph"`
	Hash         string                          `json:"motif_hash"`
}

func hashOptions() wlhash.Options[Node, Edge] {
	return wlhash.Options[Node, Edge]{
		NodeLabel: func(n Node) string { return strconv.Itoa(n.MappedType) },
		EdgeLabel: func(e Edge) string { return strconv.Itoa(e.BinnedWeight) },
	}
}

// FromPlainMotif remaps a copy of the plain motif graph. The plain motif is
// left untouched.
func FromPlainMotif(pm *motif.PlainMotif, nf NodeFlavor, ef EdgeFlavor) (*FlavoredMotif, error) {
	g, err := digraph.Map(pm.Graph,
		func(n session.Node) (Node, error) {
			mapped, err := MapRole(n.Type, nf)
			if err != nil {
				return Node{}, err
			}
			return Node{Node: n, MappedType: mapped}, nil
		},
		func(e session.Edge) (Edge, error) {
			bin, err := BinWeight(e.Weight, ef)
			if err != nil {
				return Edge{}, err
			}
			return Edge{Edge: e, BinnedWeight: bin}, nil
		},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to flavor motif %s as %s/%s: %w", pm.ID, nf, ef, err)
	}

	return &FlavoredMotif{
		ID:           uuid.New(),
		PlainMotifID: pm.ID,
		NodeFlavor:   nf,
		EdgeFlavor:   ef,
		Graph:        g,
		Hash:         wlhash.Hash[Node, Edge](g, hashOptions()),
	}, nil
}

// Flavor returns the plain motif under every node and edge flavor pair, node
// flavor major.
func Flavor(pm *motif.PlainMotif) ([]*FlavoredMotif, error) {
	out := make([]*FlavoredMotif, 0, len(NodeFlavors)*len(EdgeFlavors))
	for _, nf := range NodeFlavors {
		for _, ef := range EdgeFlavors {
			fm, err := FromPlainMotif(pm, nf, ef)
			if err != nil {
				return nil, err
			}
			out = append(out, fm)
		}
	}
	return out, nil
}

// FlavorAll flavors every plain motif. A motif that fails is skipped and its
// error joined into the returned error; the others are still flavored.
func FlavorAll(plains []*motif.PlainMotif) ([]*FlavoredMotif, error) {
	var (
		out  []*FlavoredMotif
		errs []error
	)
	for _, pm := range plains {
		fms, err := Flavor(pm)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out = append(out, fms...)
	}
	return out, errors.Join(errs...)
}
