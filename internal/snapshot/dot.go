package snapshot

import (
	"fmt"
	"strconv"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/encoding"
	"gonum.org/v1/gonum/graph/encoding/dot"
	"gonum.org/v1/gonum/graph/simple"

	"github.com/OFFIS-RIT/motifs/pkg/role"
	"github.com/OFFIS-RIT/motifs/pkg/session"
)

type nodeStyle struct {
	shape, color string
}

var nodeStyles = map[role.Role]nodeStyle{
	role.MainVictim:                   {"diamond", "lightgreen"},
	role.AggressiveVictim:             {"square", "lightblue"},
	role.NonAggressiveVictim:          {"square", "teal"},
	role.Bully:                        {"circle", "orange"},
	role.BullyAssistant:               {"circle", "coral"},
	role.AggressiveDefender:           {"pentagon", "orchid"},
	role.NonAggressiveDefenderDirect:  {"pentagon", "lightpink"},
	role.NonAggressiveDefenderSupport: {"pentagon", "lightpink"},
}

var edgeColors = map[string]string{
	"aggressive_defender->victim":                           "orchid",
	"aggressive_victim->bully":                              "green",
	"non_aggressive_defender:support_of_the_victim->victim": "blue",
	"non_aggressive_defender:direct_to_the_bully->bully":    "green",
	"bully->victim":                                         "orange",
	"bully_assistant->victim":                               "orange",
	"victim->aggressive_defender":                           "orchid",
}

type dotNode struct {
	id   int64
	node session.Node
}

func (n dotNode) ID() int64     { return n.id }
func (n dotNode) DOTID() string { return "n" + strconv.FormatInt(n.id, 10) }

func (n dotNode) Attributes() []encoding.Attribute {
	attrs := []encoding.Attribute{
		{Key: "label", Value: strconv.Quote(n.node.Author)},
		{Key: "role", Value: strconv.Quote(n.node.Type.String())},
		{Key: "layer", Value: strconv.FormatFloat(n.node.Layer, 'f', -1, 64)},
	}
	if style, ok := nodeStyles[n.node.Type]; ok {
		attrs = append(attrs,
			encoding.Attribute{Key: "shape", Value: style.shape},
			encoding.Attribute{Key: "style", Value: "filled"},
			encoding.Attribute{Key: "fillcolor", Value: style.color},
		)
	}
	return attrs
}

type dotEdge struct {
	from, to graph.Node
	edge     session.Edge
}

func (e dotEdge) From() graph.Node         { return e.from }
func (e dotEdge) To() graph.Node           { return e.to }
func (e dotEdge) ReversedEdge() graph.Edge { return dotEdge{from: e.to, to: e.from, edge: e.edge} }

func (e dotEdge) Attributes() []encoding.Attribute {
	weight := strconv.FormatFloat(e.edge.Weight, 'f', -1, 64)
	attrs := []encoding.Attribute{
		{Key: "label", Value: strconv.Quote(weight)},
		{Key: "weight", Value: weight},
		{Key: "penwidth", Value: strconv.FormatFloat(min(1+e.edge.Weight, 8), 'f', -1, 64)},
		{Key: "type", Value: strconv.Quote(e.edge.Type)},
	}
	if color, ok := edgeColors[e.edge.Type]; ok {
		attrs = append(attrs, encoding.Attribute{Key: "color", Value: color})
	}
	return attrs
}

// Render encodes g in Graphviz DOT. Node n<i> is the i-th node added to g.
func Render(g *session.Graph) ([]byte, error) {
	dg := simple.NewDirectedGraph()
	nodes := make([]dotNode, g.Len())
	for i := range g.Len() {
		nodes[i] = dotNode{id: int64(i), node: g.NodeAt(i)}
		dg.AddNode(nodes[i])
	}
	for a := range g.Arcs() {
		// simple graphs cannot hold loops and the builder never creates one
		if a.From == a.To {
			continue
		}
		dg.SetEdge(dotEdge{from: nodes[a.From], to: nodes[a.To], edge: a.Attr})
	}

	out, err := dot.Marshal(dg, fmt.Sprintf("unit_%d", g.UnitID), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to render graph of unit %d: %w", g.UnitID, err)
	}
	return out, nil
}
