package routegraph

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/sakhatrans/routegraph/model"
)

// A node of the route graph: one stop, with its canonical city.
type Node struct {
	ID   string   `json:"id"`
	Name string   `json:"name"`
	Lat  *float64 `json:"lat,omitempty"`
	Lon  *float64 `json:"lon,omitempty"`
	City string   `json:"city"`
}

// A directed weighted edge. Endpoints are stop identifiers, resolved
// through the graph's node map on demand; edges never hold node
// pointers, which keeps the graph free of ownership cycles and
// serializable as plain JSON.
type Edge struct {
	From    string          `json:"from"`
	To      string          `json:"to"`
	Segment model.Segment   `json:"segment"`
	Weight  float64         `json:"weight"`
	Flights []*model.Flight `json:"flights,omitempty"`
}

func segmentVirtual(s model.Segment) bool {
	return strings.HasPrefix(s.RouteID, "virtual-route-")
}

// Reports whether the node is a synthesized stop.
func (n *Node) Virtual() bool {
	return strings.HasPrefix(n.ID, "virtual-stop-")
}

// The directed weighted multigraph over one dataset. Immutable once
// published: readers share the instance without locks.
type Graph struct {
	Nodes     map[string]*Node    `json:"nodes"`
	Adjacency map[string][]*Edge  `json:"adjacency"`
	Metadata  model.GraphMetadata `json:"metadata"`
}

func NewGraph() *Graph {
	return &Graph{
		Nodes:     map[string]*Node{},
		Adjacency: map[string][]*Edge{},
	}
}

func (g *Graph) AddNode(n *Node) {
	g.Nodes[n.ID] = n
	if _, found := g.Adjacency[n.ID]; !found {
		g.Adjacency[n.ID] = []*Edge{}
	}
}

// Adds an edge. Both endpoints must already be nodes; the edge is
// appended to the source's adjacency list, preserving insertion
// order.
func (g *Graph) AddEdge(e *Edge) error {
	if _, found := g.Nodes[e.From]; !found {
		return fmt.Errorf("edge %s->%s: unknown source node", e.From, e.To)
	}
	if _, found := g.Nodes[e.To]; !found {
		return fmt.Errorf("edge %s->%s: unknown target node", e.From, e.To)
	}
	g.Adjacency[e.From] = append(g.Adjacency[e.From], e)
	return nil
}

func (g *Graph) NodeCount() int {
	return len(g.Nodes)
}

func (g *Graph) EdgeCount() int {
	n := 0
	for _, edges := range g.Adjacency {
		n += len(edges)
	}
	return n
}

// Drops adjacency entries that reference nodes no longer present:
// whole lists keyed by missing nodes, and individual edges whose
// target is missing. Returns the number of edges removed.
func (g *Graph) Synchronize() int {
	removed := 0
	for from, edges := range g.Adjacency {
		if _, found := g.Nodes[from]; !found {
			removed += len(edges)
			delete(g.Adjacency, from)
			continue
		}
		kept := edges[:0]
		for _, e := range edges {
			if _, found := g.Nodes[e.To]; found {
				kept = append(kept, e)
			} else {
				removed++
			}
		}
		g.Adjacency[from] = kept
	}
	// Every node owns an adjacency entry, even an empty one, so the
	// two maps stay keyed identically.
	for id := range g.Nodes {
		if _, found := g.Adjacency[id]; !found {
			g.Adjacency[id] = []*Edge{}
		}
	}
	return removed
}

// Checks the structural invariants: adjacency and node maps share
// keys, every edge connects existing nodes, every weight is a finite
// positive number, and every virtual edge has a reciprocal.
func (g *Graph) Validate() error {
	for from := range g.Adjacency {
		if _, found := g.Nodes[from]; !found {
			return fmt.Errorf("adjacency key %q has no node", from)
		}
	}
	for id := range g.Nodes {
		if _, found := g.Adjacency[id]; !found {
			return fmt.Errorf("node %q has no adjacency entry", id)
		}
	}

	for from, edges := range g.Adjacency {
		for _, e := range edges {
			if e.From != from {
				return fmt.Errorf("edge %s->%s filed under %q", e.From, e.To, from)
			}
			if _, found := g.Nodes[e.To]; !found {
				return fmt.Errorf("edge %s->%s: target is not a node", e.From, e.To)
			}
			if !validWeight(e.Weight) {
				return fmt.Errorf("edge %s->%s: invalid weight %v", e.From, e.To, e.Weight)
			}
			if segmentVirtual(e.Segment) && !g.hasEdge(e.To, e.From) {
				return fmt.Errorf("virtual edge %s->%s has no reciprocal", e.From, e.To)
			}
		}
	}
	return nil
}

// Iterates every edge and fails on the first weight that is not a
// finite number greater than zero. Run as the last step of a build.
func (g *Graph) AuditWeights() error {
	for _, edges := range g.Adjacency {
		for _, e := range edges {
			if !validWeight(e.Weight) {
				return fmt.Errorf("weight audit: edge %s->%s has weight %v", e.From, e.To, e.Weight)
			}
		}
	}
	return nil
}

func (g *Graph) hasEdge(from, to string) bool {
	for _, e := range g.Adjacency[from] {
		if e.To == to {
			return true
		}
	}
	return false
}

// Outgoing edges of a node, in insertion order.
func (g *Graph) OutEdges(id string) []*Edge {
	return g.Adjacency[id]
}

// All node IDs whose canonical city matches. Real stops come before
// virtual ones so routing prefers physical infrastructure.
func (g *Graph) NodesInCity(city string) []*Node {
	real := []*Node{}
	virtual := []*Node{}
	for _, n := range g.Nodes {
		if n.City != city {
			continue
		}
		if n.Virtual() {
			virtual = append(virtual, n)
		} else {
			real = append(real, n)
		}
	}
	sort.Slice(real, func(i, j int) bool { return real[i].ID < real[j].ID })
	sort.Slice(virtual, func(i, j int) bool { return virtual[i].ID < virtual[j].ID })
	return append(real, virtual...)
}

func validWeight(w float64) bool {
	return !math.IsNaN(w) && !math.IsInf(w, 0) && w > 0
}
