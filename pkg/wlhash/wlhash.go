// Package wlhash computes Weisfeiler-Lehman fingerprints of attributed
// directed graphs.
//
// Two graphs that are equal up to a renumbering of their nodes always produce
// the same fingerprint. Graphs that differ in structure or in the selected
// labels produce different fingerprints with high probability; the hash is a
// practical fingerprint, not a complete isomorphism invariant.
package wlhash

import (
	"encoding/hex"
	"iter"
	"slices"
	"strconv"
	"strings"

	"golang.org/x/crypto/blake2b"
)

const (
	DefaultIterations = 3
	DefaultDigestSize = 16
)

// Graph is the read-only view the hasher needs. Nodes are addressed by index
// in [0, Len()). Out yields successor indices with their arc attributes.
type Graph[N any, E any] interface {
	Len() int
	NodeAt(i int) N
	Degree(i int) int
	Out(i int) iter.Seq2[int, E]
}

// Options select the labels that take part in the hash. A nil NodeLabel or
// EdgeLabel means the attribute is not used.
type Options[N any, E any] struct {
	NodeLabel  func(N) string
	EdgeLabel  func(E) string
	Iterations int
	// DigestSize is the digest width in bytes, between 1 and 64.
	DigestSize int
}

func (o Options[N, E]) normalize() Options[N, E] {
	if o.Iterations <= 0 {
		o.Iterations = DefaultIterations
	}
	if o.DigestSize < 1 || o.DigestSize > blake2b.Size {
		o.DigestSize = DefaultDigestSize
	}
	return o
}

type labelCount struct {
	label string
	count int
}

// Hash returns the hex encoded fingerprint of g.
func Hash[N any, E any](g Graph[N, E], opts Options[N, E]) string {
	opts = opts.normalize()

	labels := initialLabels(g, opts)
	var counts []labelCount
	for range opts.Iterations {
		labels = refine(g, labels, opts)
		counts = append(counts, histogram(labels)...)
	}
	return digest(serialize(counts), opts.DigestSize)
}

func initialLabels[N any, E any](g Graph[N, E], opts Options[N, E]) []string {
	labels := make([]string, g.Len())
	for i := range labels {
		switch {
		case opts.NodeLabel != nil:
			labels[i] = opts.NodeLabel(g.NodeAt(i))
		case opts.EdgeLabel != nil:
			labels[i] = ""
		default:
			labels[i] = strconv.Itoa(g.Degree(i))
		}
	}
	return labels
}

// refine performs one round: each node label becomes the digest of its own
// label followed by the sorted labels of its successors, each prefixed with
// the arc label.
func refine[N any, E any](g Graph[N, E], labels []string, opts Options[N, E]) []string {
	next := make([]string, len(labels))
	var nbrs []string
	for i := range labels {
		nbrs = nbrs[:0]
		for j, e := range g.Out(i) {
			prefix := ""
			if opts.EdgeLabel != nil {
				prefix = opts.EdgeLabel(e)
			}
			nbrs = append(nbrs, prefix+labels[j])
		}
		slices.Sort(nbrs)
		next[i] = digest(labels[i]+strings.Join(nbrs, ""), opts.DigestSize)
	}
	return next
}

func histogram(labels []string) []labelCount {
	seen := make(map[string]int, len(labels))
	for _, l := range labels {
		seen[l]++
	}
	out := make([]labelCount, 0, len(seen))
	for l, n := range seen {
		out = append(out, labelCount{label: l, count: n})
	}
	slices.SortFunc(out, func(a, b labelCount) int { return strings.Compare(a.label, b.label) })
	return out
}

// serialize renders the accumulated histogram as a tuple of pairs:
// (('<digest>', <count>), ...). A single pair keeps a trailing comma and an
// empty list is "()". Fingerprints persisted by earlier tooling use this form.
func serialize(counts []labelCount) string {
	var sb strings.Builder
	sb.WriteByte('(')
	for i, c := range counts {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("('")
		sb.WriteString(c.label)
		sb.WriteString("', ")
		sb.WriteString(strconv.Itoa(c.count))
		sb.WriteByte(')')
	}
	if len(counts) == 1 {
		sb.WriteByte(',')
	}
	sb.WriteByte(')')
	return sb.String()
}

func digest(s string, size int) string {
	// size is always within range after normalize
	h, err := blake2b.New(size, nil)
	if err != nil {
		panic(err)
	}
	h.Write([]byte(s))
	return hex.EncodeToString(h.Sum(nil))
}
