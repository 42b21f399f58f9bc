package motif

import (
	"errors"
	"fmt"
	"iter"
	"math/rand/v2"
	"slices"
)

const (
	MinSize = 3
	MaxSize = 4
)

var (
	ErrUnsupportedSize       = errors.New("motif: size must be 3 or 4")
	ErrInvalidCutProbability = errors.New("motif: invalid cut probabilities")
)

// Graph is what the sampler needs from a graph: dense node indices, the
// undirected neighborhood of a node in ascending order and arc lookup.
type Graph interface {
	Len() int
	Neighbors(i int) []int
	HasArc(i, j int) bool
}

// Instance is one sampled connected induced subgraph.
type Instance struct {
	// Vertices in ascending order.
	Vertices []int
	IsoClass int
}

// Sampler enumerates connected induced subgraphs with the RAND-ESU
// algorithm. With all cut probabilities at zero every subgraph of the
// requested size is visited exactly once. A cut probability p at depth d
// drops each branch at that depth with probability p.
type Sampler struct {
	size int
	cut  []float64
	rng  *rand.Rand
}

type SamplerOption func(*Sampler)

// WithCutProbabilities sets one cut probability per search depth. The slice
// must have one entry per node of the motif size.
func WithCutProbabilities(p []float64) SamplerOption {
	return func(s *Sampler) {
		s.cut = slices.Clone(p)
	}
}

// WithSeed makes the randomized cuts reproducible.
func WithSeed(seed uint64) SamplerOption {
	return func(s *Sampler) {
		s.rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	}
}

func NewSampler(size int, opts ...SamplerOption) (*Sampler, error) {
	if size < MinSize || size > MaxSize {
		return nil, fmt.Errorf("%w: got %d", ErrUnsupportedSize, size)
	}
	s := &Sampler{size: size}
	for _, opt := range opts {
		opt(s)
	}
	if s.cut == nil {
		s.cut = make([]float64, size)
	}
	if len(s.cut) != size {
		return nil, fmt.Errorf("%w: need %d values, got %d", ErrInvalidCutProbability, size, len(s.cut))
	}
	for _, p := range s.cut {
		if !(p >= 0 && p <= 1) {
			return nil, fmt.Errorf("%w: %v is not in [0, 1]", ErrInvalidCutProbability, p)
		}
	}
	if s.rng == nil {
		s.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return s, nil
}

func (s *Sampler) Size() int { return s.size }

func (s *Sampler) keep(depth int) bool {
	p := s.cut[depth]
	if p == 0 {
		return true
	}
	return s.rng.Float64() >= p
}

// Enumerate yields the sampled subgraphs of g lazily. The sequence is not
// safe for concurrent use with other sequences of the same Sampler.
func (s *Sampler) Enumerate(g Graph) iter.Seq[Instance] {
	table := tableFor(s.size)
	return func(yield func(Instance) bool) {
		for v := range g.Len() {
			if !s.keep(0) {
				continue
			}
			var ext []int
			for _, u := range g.Neighbors(v) {
				if u > v {
					ext = append(ext, u)
				}
			}
			if !s.extend(g, table, []int{v}, ext, v, yield) {
				return
			}
		}
	}
}

// extend grows sub by one vertex from ext at a time. It returns false once
// the consumer stopped the iteration.
func (s *Sampler) extend(g Graph, table *isoTable, sub, ext []int, root int, yield func(Instance) bool) bool {
	if len(sub) == s.size {
		vertices := slices.Clone(sub)
		slices.Sort(vertices)
		return yield(Instance{Vertices: vertices, IsoClass: table.classify(g, vertices)})
	}

	depth := len(sub)
	ext = slices.Clone(ext)
	for len(ext) > 0 {
		w := ext[0]
		ext = ext[1:]
		if !s.keep(depth) {
			continue
		}

		next := slices.Clone(ext)
		for _, u := range g.Neighbors(w) {
			if u > root && exclusive(g, sub, u) {
				next = append(next, u)
			}
		}
		if !s.extend(g, table, append(slices.Clone(sub), w), next, root, yield) {
			return false
		}
	}
	return true
}

// exclusive reports whether u is neither in sub nor adjacent to any vertex
// of sub.
func exclusive(g Graph, sub []int, u int) bool {
	for _, v := range sub {
		if u == v || g.HasArc(u, v) || g.HasArc(v, u) {
			return false
		}
	}
	return true
}
