package motif

import (
	"slices"
	"sync"
)

// isoTable maps the adjacency code of a k-node digraph to its isomorphism
// class. Bit i*k+j of a code is set when the arc i->j exists. Classes are
// numbered densely by ascending canonical code, where the canonical code of a
// graph is the smallest code over all renumberings of its nodes.
type isoTable struct {
	size    int
	classes []int16
	count   int
}

var (
	isoOnce   [MaxSize + 1]sync.Once
	isoTables [MaxSize + 1]*isoTable
)

func tableFor(size int) *isoTable {
	isoOnce[size].Do(func() {
		isoTables[size] = buildIsoTable(size)
	})
	return isoTables[size]
}

func buildIsoTable(k int) *isoTable {
	perms := permutations(k)
	n := 1 << (k * k)

	var diag int
	for i := range k {
		diag |= 1 << (i*k + i)
	}

	canon := make([]int, n)
	var distinct []int
	for code := range n {
		if code&diag != 0 {
			canon[code] = -1
			continue
		}
		best := code
		for _, p := range perms {
			best = min(best, permute(code, p, k))
		}
		canon[code] = best
		if best == code {
			distinct = append(distinct, code)
		}
	}
	slices.Sort(distinct)

	classOf := make(map[int]int16, len(distinct))
	for i, c := range distinct {
		classOf[c] = int16(i)
	}
	t := &isoTable{size: k, classes: make([]int16, n), count: len(distinct)}
	for code, c := range canon {
		if c < 0 {
			t.classes[code] = -1
			continue
		}
		t.classes[code] = classOf[c]
	}
	return t
}

// permute renumbers node i to p[i].
func permute(code int, p []int, k int) int {
	out := 0
	for i := range k {
		for j := range k {
			if code&(1<<(i*k+j)) != 0 {
				out |= 1 << (p[i]*k + p[j])
			}
		}
	}
	return out
}

func permutations(k int) [][]int {
	var out [][]int
	var rec func(cur []int, used []bool)
	rec = func(cur []int, used []bool) {
		if len(cur) == k {
			out = append(out, slices.Clone(cur))
			return
		}
		for v := range k {
			if used[v] {
				continue
			}
			used[v] = true
			rec(append(cur, v), used)
			used[v] = false
		}
	}
	rec(make([]int, 0, k), make([]bool, k))
	return out
}

// adjacency is the part of a graph needed to classify a vertex set.
type adjacency interface {
	HasArc(i, j int) bool
}

// classify returns the isomorphism class of the subgraph induced by vertices.
func (t *isoTable) classify(g adjacency, vertices []int) int {
	code := 0
	for i, u := range vertices {
		for j, v := range vertices {
			if i != j && g.HasArc(u, v) {
				code |= 1 << (i*t.size + j)
			}
		}
	}
	return int(t.classes[code])
}

// NumClasses returns the number of isomorphism classes of digraphs on size
// nodes, including disconnected ones.
func NumClasses(size int) int {
	if size < MinSize || size > MaxSize {
		return 0
	}
	return tableFor(size).count
}
