package graph

import (
	"log"

	"turf-assistant/internal/distance"
)

// ExtendPath pads the shortest start→target path with detours while the
// total distance stays within maxDistance meters.
//
// This is a greedy heuristic, not an optimal one. Path nodes are scanned in
// order and, for each, graph nodes in insertion order; the first off-path
// candidate whose straight-line distance fits the remaining budget and whose
// detour (path node → candidate → next path node, or back to the target when
// detouring from the end) keeps the total within budget is spliced in. It
// never compares candidates by value. Scanning stops when no candidate fits.
//
// A (path node, candidate) pair is tried at most once per call. The rejoin
// node is not part of that key: a pair rejected before a later splice changed
// the path node's successor is not retried against the new successor.
//
// The returned distance never exceeds maxDistance unless the shortest path
// alone already does, in which case the shortest path is returned unchanged.
func ExtendPath(g *Graph, start, target *Node, maxDistance float64) (*Path, error) {
	path, _, err := shortestPath(g, start, target)
	if err != nil {
		return nil, err
	}

	base := path.DistanceMeters
	log.Printf("[SEARCH] Extending path: from=%s to=%s base_distance=%.0f max_distance=%.0f",
		start.Name(), target.Name(), base, maxDistance)

	// keyed by (path node, candidate); the rejoin node is ignored
	tried := make(map[[2]int]bool)
	detours := 0
	for path.DistanceMeters < maxDistance {
		next, ok := extendOnce(g, path, maxDistance, tried)
		if !ok {
			break
		}
		path = next
		detours++
	}

	log.Printf("[SEARCH] Extended path: detours=%d nodes=%d distance=%.0f (+%.0f) cost=%.3f",
		detours, len(path.Nodes), path.DistanceMeters, path.DistanceMeters-base, path.Cost)
	return path, nil
}

// extendOnce splices in the first detour that fits the budget.
func extendOnce(g *Graph, path *Path, maxDistance float64, tried map[[2]int]bool) (*Path, bool) {
	onPath := make(map[int]bool, len(path.Nodes))
	for _, n := range path.Nodes {
		onPath[n.index] = true
	}
	remaining := maxDistance - path.DistanceMeters

	for pos, pn := range path.Nodes {
		for _, cand := range g.nodes {
			key := [2]int{pn.index, cand.index}
			if onPath[cand.index] || tried[key] {
				continue
			}
			tried[key] = true

			// straight-line distance is a lower bound on any graph route
			if distance.Haversine(pn.zone.Coords, cand.zone.Coords) >= remaining {
				continue
			}

			spliced, ok := detourVia(g, path, pos, cand)
			if !ok || spliced.DistanceMeters > maxDistance {
				continue
			}
			return spliced, true
		}
	}
	return nil, false
}

// detourVia replaces the leg leaving path.Nodes[pos] with a route through cand.
// From the final node the detour returns to it, so the target stays last.
func detourVia(g *Graph, path *Path, pos int, cand *Node) (*Path, bool) {
	from := path.Nodes[pos]
	rejoin := from
	last := pos == len(path.Nodes)-1
	if !last {
		rejoin = path.Nodes[pos+1]
	}

	out, _, err := shortestPath(g, from, cand)
	if err != nil {
		return nil, false
	}
	back, _, err := shortestPath(g, cand, rejoin)
	if err != nil {
		return nil, false
	}

	legs := make([]Leg, 0, len(path.Legs)+len(out.Legs)+len(back.Legs))
	legs = append(legs, path.Legs[:pos]...)
	legs = append(legs, out.Legs...)
	legs = append(legs, back.Legs...)
	if !last {
		legs = append(legs, path.Legs[pos+1:]...)
	}

	return pathFromLegs(path.Nodes[0], legs), true
}
