// Package dag holds the gonum graph a saga definition is laid out on.
package dag

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/encoding"
	"gonum.org/v1/gonum/graph/encoding/dot"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

// Graph is a directed graph whose nodes and edges carry DOT attributes.
type Graph struct {
	*simple.DirectedGraph
	attrs encoding.Attributes
}

func New() *Graph {
	return &Graph{DirectedGraph: simple.NewDirectedGraph()}
}

// NewNode returns a new attributed node that has not been added to the graph.
func (g *Graph) NewNode() *Node {
	return &Node{Node: g.DirectedGraph.NewNode()}
}

// AddLabeledNode adds a node carrying the given name and label attributes
// and returns its ID.
func (g *Graph) AddLabeledNode(name, label string) (int64, error) {
	n := g.NewNode()
	if err := n.SetAttribute(encoding.Attribute{Key: "name", Value: fmt.Sprintf("%q", name)}); err != nil {
		return 0, err
	}
	if err := n.SetAttribute(encoding.Attribute{Key: "label", Value: fmt.Sprintf("%q", label)}); err != nil {
		return 0, err
	}
	g.AddNode(n)
	return n.ID(), nil
}

// Link adds an edge from -> to. Both nodes must already exist.
func (g *Graph) Link(from, to int64) error {
	f := g.Node(from)
	if f == nil {
		return fmt.Errorf("node %d does not exist", from)
	}
	t := g.Node(to)
	if t == nil {
		return fmt.Errorf("node %d does not exist", to)
	}
	g.SetEdge(g.NewEdge(f, t))
	return nil
}

// Order returns the node IDs in topological order. Ties are broken by node
// ID so the result is deterministic.
func (g *Graph) Order() ([]int64, error) {
	sorted, err := topo.SortStabilized(g, func(nodes []graph.Node) {
		sort.Slice(nodes, func(i, j int) bool {
			return nodes[i].ID() < nodes[j].ID()
		})
	})
	if err != nil {
		return nil, fmt.Errorf("topological sort failed (cycle detected?): %w", err)
	}

	order := make([]int64, len(sorted))
	for i, n := range sorted {
		order[i] = n.ID()
	}
	return order, nil
}

// DOTAttributers implements dot.Attributers for graph-level attributes.
func (g *Graph) DOTAttributers() (encoding.Attributer, encoding.Attributer, encoding.Attributer) {
	return &g.attrs, &encoding.Attributes{}, &encoding.Attributes{}
}

func (g *Graph) Attributes() []encoding.Attribute {
	return g.attrs.Attributes()
}

func (g *Graph) SetAttribute(attr encoding.Attribute) error {
	return g.attrs.SetAttribute(attr)
}

// ExportToDot exports the graph to Graphviz .dot format.
func (g *Graph) ExportToDot(name string) (string, error) {
	data, err := dot.Marshal(g, name, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to export graph to DOT format: %v", err)
	}
	return string(data), nil
}

func (g *Graph) NewEdge(from, to graph.Node) graph.Edge {
	return &edge{Edge: g.DirectedGraph.NewEdge(from, to)}
}

type Node struct {
	graph.Node
	attrs encoding.Attributes
}

func (n *Node) Attributes() []encoding.Attribute {
	return n.attrs.Attributes()
}

func (n *Node) SetAttribute(attr encoding.Attribute) error {
	return n.attrs.SetAttribute(attr)
}

type edge struct {
	graph.Edge
	attrs encoding.Attributes
}

func (e *edge) Attributes() []encoding.Attribute {
	return e.attrs.Attributes()
}

func (e *edge) SetAttribute(attr encoding.Attribute) error {
	return e.attrs.SetAttribute(attr)
}
