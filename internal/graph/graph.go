// Package graph builds a sparse, directed cost graph over Turf zones and
// searches it for cheap routes.
//
// Edge cost is meters of straight-line travel per point of expected value
// at the destination, so cheap edges lead into valuable, nearby zones:
//
//	cost(u→v) = distance(u, v) / value(v)
//
// The cost model is asymmetric; cost(u→v) and cost(v→u) generally differ.
//
// A Graph is immutable once built. Search state lives in a table allocated
// per call, so read-only traversal (rendering, export) is always safe and
// concurrent searches never observe each other's state.
package graph

import (
	"errors"
	"fmt"
	"math"

	"turf-assistant/internal/models"
)

// Sentinel errors returned by graph construction and search.
var (
	// ErrNodeNotFound indicates the node does not belong to the graph.
	ErrNodeNotFound = errors.New("graph: node not found")

	// ErrSelfLoop indicates an edge from a node to itself.
	ErrSelfLoop = errors.New("graph: self-loop edges are not allowed")

	// ErrBadCost indicates a negative or non-finite edge cost.
	ErrBadCost = errors.New("graph: edge cost must be finite and non-negative")

	// ErrBadConnectedness indicates a non-positive connectedness threshold.
	ErrBadConnectedness = errors.New("graph: connectedness must be positive")

	// ErrUnreachable indicates the frontier emptied before reaching the target.
	ErrUnreachable = errors.New("graph: target unreachable")

	// ErrNoPath indicates the predecessor chain from target to start is broken.
	ErrNoPath = errors.New("graph: no path")
)

// Edge is a directed arc owned by its source node.
type Edge struct {
	To             *Node
	Cost           float64
	DistanceMeters float64
}

// Node wraps one zone inside a graph and owns its outgoing edges.
type Node struct {
	index int
	zone  models.Zone
	edges []Edge

	value    float64
	hasValue bool
}

// Index returns the node's position in insertion order.
func (n *Node) Index() int { return n.index }

// Zone returns the wrapped zone.
func (n *Node) Zone() *models.Zone { return &n.zone }

// Name returns the zone name.
func (n *Node) Name() string { return n.zone.Name }

// Value returns the zone value used for incoming edge costs. ok is false when
// the estimator had insufficient data and no fallback was configured.
func (n *Node) Value() (v float64, ok bool) { return n.value, n.hasValue }

// Edges returns the outgoing edges. Callers must not modify the slice.
func (n *Node) Edges() []Edge { return n.edges }

func (n *Node) String() string {
	return fmt.Sprintf("Node: %s", n.zone.Name)
}

// Graph owns an ordered collection of nodes.
type Graph struct {
	nodes  []*Node
	byName map[string]*Node
	stats  BuildStats
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{byName: make(map[string]*Node)}
}

// AddNode appends a node for zone and returns it. The zone is copied.
func (g *Graph) AddNode(zone models.Zone) *Node {
	n := &Node{index: len(g.nodes), zone: zone}
	g.nodes = append(g.nodes, n)
	if _, exists := g.byName[zone.Name]; !exists {
		g.byName[zone.Name] = n
	}
	return n
}

// AddEdge adds a directed edge from → to.
func (g *Graph) AddEdge(from, to *Node, cost, distanceMeters float64) error {
	if !g.owns(from) || !g.owns(to) {
		return ErrNodeNotFound
	}
	if from == to {
		return fmt.Errorf("%w: %s", ErrSelfLoop, from.Name())
	}
	if math.IsNaN(cost) || math.IsInf(cost, 0) || cost < 0 {
		return fmt.Errorf("%w: %s→%s cost=%v", ErrBadCost, from.Name(), to.Name(), cost)
	}
	from.edges = append(from.edges, Edge{To: to, Cost: cost, DistanceMeters: distanceMeters})
	return nil
}

// Nodes returns the nodes in insertion order. Callers must not modify the slice.
func (g *Graph) Nodes() []*Node { return g.nodes }

// Len returns the number of nodes.
func (g *Graph) Len() int { return len(g.nodes) }

// EdgeCount returns the total number of directed edges.
func (g *Graph) EdgeCount() int {
	total := 0
	for _, n := range g.nodes {
		total += len(n.edges)
	}
	return total
}

// NodeByName returns the first node whose zone has the given name.
func (g *Graph) NodeByName(name string) (*Node, error) {
	n, ok := g.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNodeNotFound, name)
	}
	return n, nil
}

// Stats returns the statistics recorded by Build; zero for hand-built graphs.
func (g *Graph) Stats() BuildStats { return g.stats }

func (g *Graph) owns(n *Node) bool {
	return n != nil && n.index >= 0 && n.index < len(g.nodes) && g.nodes[n.index] == n
}
