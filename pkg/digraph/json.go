package digraph

import (
	"encoding/json"
	"fmt"
)

type jsonNode[K comparable, N any] struct {
	ID   K `json:"id"`
	Attr N `json:"attr"`
}

type jsonLink[K comparable, E any] struct {
	Source K `json:"source"`
	Target K `json:"target"`
	Attr   E `json:"attr"`
}

type jsonGraph[K comparable, N any, E any] struct {
	Directed bool             `json:"directed"`
	Nodes    []jsonNode[K, N] `json:"nodes"`
	Links    []jsonLink[K, E] `json:"links"`
}

// MarshalJSON encodes g in node-link form, preserving insertion order.
func (g *Graph[K, N, E]) MarshalJSON() ([]byte, error) {
	doc := jsonGraph[K, N, E]{
		Directed: true,
		Nodes:    make([]jsonNode[K, N], 0, len(g.nodes)),
		Links:    make([]jsonLink[K, E], 0, len(g.arcs)),
	}
	for i, k := range g.keys {
		doc.Nodes = append(doc.Nodes, jsonNode[K, N]{ID: k, Attr: g.nodes[i]})
	}
	for _, a := range g.arcs {
		doc.Links = append(doc.Links, jsonLink[K, E]{
			Source: g.keys[a.From],
			Target: g.keys[a.To],
			Attr:   a.Attr,
		})
	}
	return json.Marshal(doc)
}

func (g *Graph[K, N, E]) UnmarshalJSON(data []byte) error {
	var doc jsonGraph[K, N, E]
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}

	*g = *New[K, N, E]()
	for _, n := range doc.Nodes {
		if _, added := g.AddNode(n.ID, n.Attr); !added {
			return fmt.Errorf("%w: %v", ErrDuplicateNode, n.ID)
		}
	}
	for _, l := range doc.Links {
		if err := g.SetEdge(l.Source, l.Target, l.Attr); err != nil {
			return err
		}
	}
	return nil
}
