package graph

import (
	"container/heap"
	"fmt"
	"log"
	"math"
)

// Leg is one traversed edge of a path.
type Leg struct {
	From           *Node
	To             *Node
	Cost           float64
	DistanceMeters float64
}

// Path is an ordered route, start first and target last.
type Path struct {
	Nodes          []*Node
	Legs           []Leg
	Cost           float64
	DistanceMeters float64
}

// Names returns the zone names along the path.
func (p *Path) Names() []string {
	names := make([]string, len(p.Nodes))
	for i, n := range p.Nodes {
		names[i] = n.Name()
	}
	return names
}

// Contains reports whether n is visited by the path.
func (p *Path) Contains(n *Node) bool {
	for _, pn := range p.Nodes {
		if pn == n {
			return true
		}
	}
	return false
}

func singleNodePath(n *Node) *Path {
	return &Path{Nodes: []*Node{n}, Legs: []Leg{}}
}

// pathFromLegs rebuilds nodes and totals from an ordered leg sequence.
func pathFromLegs(start *Node, legs []Leg) *Path {
	p := &Path{Nodes: make([]*Node, 0, len(legs)+1), Legs: legs}
	p.Nodes = append(p.Nodes, start)
	for _, l := range legs {
		p.Nodes = append(p.Nodes, l.To)
		p.Cost += l.Cost
		p.DistanceMeters += l.DistanceMeters
	}
	return p
}

// searchState is the per-call transient table, indexed by node index.
type searchState struct {
	cost     []float64
	visited  []bool
	prev     []int
	prevEdge []*Edge
	pq       frontier
}

func newSearchState(n int) *searchState {
	st := &searchState{
		cost:     make([]float64, n),
		visited:  make([]bool, n),
		prev:     make([]int, n),
		prevEdge: make([]*Edge, n),
		pq:       make(frontier, 0, n),
	}
	for i := 0; i < n; i++ {
		st.cost[i] = math.Inf(1)
		st.prev[i] = -1
	}
	return st
}

// ShortestPath returns a minimum-cost path from start to target.
//
// It is Dijkstra with lazy decrease-key: improved nodes are pushed again and
// stale frontier entries are skipped on pop. Ties on cost are broken by node
// index. Returns ErrUnreachable when no directed path exists.
func ShortestPath(g *Graph, start, target *Node) (*Path, error) {
	path, expanded, err := shortestPath(g, start, target)
	if err != nil {
		return nil, err
	}
	log.Printf("[SEARCH] Path found: from=%s to=%s nodes=%d cost=%.3f distance=%.0f expanded=%d",
		start.Name(), target.Name(), len(path.Nodes), path.Cost, path.DistanceMeters, expanded)
	return path, nil
}

// shortestPath is ShortestPath without logging; it also returns the number
// of nodes expanded.
func shortestPath(g *Graph, start, target *Node) (*Path, int, error) {
	if !g.owns(start) || !g.owns(target) {
		return nil, 0, ErrNodeNotFound
	}
	if start == target {
		return singleNodePath(start), 0, nil
	}

	st := newSearchState(len(g.nodes))
	st.cost[start.index] = 0
	heap.Push(&st.pq, frontierItem{index: start.index, cost: 0})

	popped := 0
	for st.pq.Len() > 0 {
		item := heap.Pop(&st.pq).(frontierItem)
		if st.visited[item.index] || item.cost != st.cost[item.index] {
			continue
		}
		popped++

		if item.index == target.index {
			path, err := st.reconstruct(g, start, target)
			if err != nil {
				return nil, popped, err
			}
			return path, popped, nil
		}

		st.visited[item.index] = true
		cur := g.nodes[item.index]
		for k := range cur.edges {
			e := &cur.edges[k]
			next := e.To.index
			if st.visited[next] {
				continue
			}
			candidate := st.cost[item.index] + e.Cost
			if candidate < st.cost[next] {
				st.cost[next] = candidate
				st.prev[next] = item.index
				st.prevEdge[next] = e
				heap.Push(&st.pq, frontierItem{index: next, cost: candidate})
			}
		}
	}

	return nil, popped, fmt.Errorf("%w: %s -> %s", ErrUnreachable, start.Name(), target.Name())
}

// reconstruct walks predecessors back from target and reverses them.
func (st *searchState) reconstruct(g *Graph, start, target *Node) (*Path, error) {
	var reversed []Leg
	cur := target.index
	for cur != start.index {
		p := st.prev[cur]
		if p < 0 || len(reversed) >= len(g.nodes) {
			return nil, fmt.Errorf("%w: %s -> %s", ErrNoPath, start.Name(), target.Name())
		}
		e := st.prevEdge[cur]
		reversed = append(reversed, Leg{
			From:           g.nodes[p],
			To:             g.nodes[cur],
			Cost:           e.Cost,
			DistanceMeters: e.DistanceMeters,
		})
		cur = p
	}

	legs := make([]Leg, len(reversed))
	for i, l := range reversed {
		legs[len(reversed)-1-i] = l
	}

	path := pathFromLegs(start, legs)
	// total cost is the target's final tentative cost
	path.Cost = st.cost[target.index]
	return path, nil
}

type frontierItem struct {
	index int
	cost  float64
}

// frontier is a min-heap ordered by cost, then node index.
type frontier []frontierItem

func (f frontier) Len() int { return len(f) }

func (f frontier) Less(i, j int) bool {
	if f[i].cost != f[j].cost {
		return f[i].cost < f[j].cost
	}
	return f[i].index < f[j].index
}

func (f frontier) Swap(i, j int) { f[i], f[j] = f[j], f[i] }

func (f *frontier) Push(x any) { *f = append(*f, x.(frontierItem)) }

func (f *frontier) Pop() any {
	old := *f
	n := len(old)
	item := old[n-1]
	*f = old[:n-1]
	return item
}
