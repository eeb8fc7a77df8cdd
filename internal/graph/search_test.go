package graph

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShortestPathPrefersCheaperRoute(t *testing.T) {
	g, n := diamond(t, true)

	path, err := ShortestPath(g, n["A"], n["D"])
	require.NoError(t, err)

	assert.Equal(t, 2.0, path.Cost)
	assert.Equal(t, []string{"A", "C", "D"}, path.Names())
	assert.Equal(t, 200.0, path.DistanceMeters)
	requireContiguous(t, path)
}

func TestShortestPathUnreachable(t *testing.T) {
	g, n := diamond(t, false)

	path, err := ShortestPath(g, n["A"], n["D"])
	assert.Nil(t, path)
	assert.True(t, errors.Is(err, ErrUnreachable))
}

func TestShortestPathRespectsDirection(t *testing.T) {
	g, n := diamond(t, true)

	_, err := ShortestPath(g, n["D"], n["A"])
	assert.ErrorIs(t, err, ErrUnreachable)
}

func TestShortestPathStartIsTarget(t *testing.T) {
	g, n := diamond(t, true)

	path, err := ShortestPath(g, n["A"], n["A"])
	require.NoError(t, err)

	assert.Equal(t, []string{"A"}, path.Names())
	assert.Equal(t, 0.0, path.Cost)
	assert.Equal(t, 0.0, path.DistanceMeters)
	assert.Empty(t, path.Legs)
}

func TestShortestPathIdempotent(t *testing.T) {
	g, n := diamond(t, true)

	first, err := ShortestPath(g, n["A"], n["D"])
	require.NoError(t, err)
	second, err := ShortestPath(g, n["A"], n["D"])
	require.NoError(t, err)

	assert.Equal(t, first.Names(), second.Names())
	assert.Equal(t, first.Cost, second.Cost)
	assert.Equal(t, first.DistanceMeters, second.DistanceMeters)

	// An unreachable query in between must not leak state into the next one
	_, err = ShortestPath(g, n["D"], n["A"])
	require.ErrorIs(t, err, ErrUnreachable)
	third, err := ShortestPath(g, n["A"], n["D"])
	require.NoError(t, err)
	assert.Equal(t, first.Names(), third.Names())
}

func TestShortestPathImprovesQueuedNode(t *testing.T) {
	// B is queued at 5 via A, then improved to 2 via C; the stale entry is skipped
	g := New()
	a := g.AddNode(zoneAt("A", 58.400, 15.55))
	b := g.AddNode(zoneAt("B", 58.401, 15.55))
	c := g.AddNode(zoneAt("C", 58.402, 15.55))
	d := g.AddNode(zoneAt("D", 58.403, 15.55))
	require.NoError(t, g.AddEdge(a, b, 5, 500))
	require.NoError(t, g.AddEdge(a, c, 1, 100))
	require.NoError(t, g.AddEdge(c, b, 1, 100))
	require.NoError(t, g.AddEdge(b, d, 1, 100))

	path, err := ShortestPath(g, a, d)
	require.NoError(t, err)

	assert.Equal(t, 3.0, path.Cost)
	assert.Equal(t, []string{"A", "C", "B", "D"}, path.Names())
	assert.Equal(t, 300.0, path.DistanceMeters)
}

func TestShortestPathEqualCostOptima(t *testing.T) {
	g := New()
	a := g.AddNode(zoneAt("A", 58.400, 15.55))
	b := g.AddNode(zoneAt("B", 58.401, 15.55))
	c := g.AddNode(zoneAt("C", 58.402, 15.55))
	d := g.AddNode(zoneAt("D", 58.403, 15.55))
	require.NoError(t, g.AddEdge(a, b, 1, 100))
	require.NoError(t, g.AddEdge(a, c, 1, 100))
	require.NoError(t, g.AddEdge(b, d, 1, 100))
	require.NoError(t, g.AddEdge(c, d, 1, 100))

	path, err := ShortestPath(g, a, d)
	require.NoError(t, err)

	assert.Equal(t, 2.0, path.Cost)
	assert.Len(t, path.Nodes, 3)
	requireContiguous(t, path)
}

func TestShortestPathForeignNode(t *testing.T) {
	g, n := diamond(t, true)
	other, _ := diamond(t, true)

	_, err := ShortestPath(g, n["A"], other.Nodes()[3])
	assert.ErrorIs(t, err, ErrNodeNotFound)

	_, err = ShortestPath(g, nil, n["A"])
	assert.ErrorIs(t, err, ErrNodeNotFound)
}

func TestShortestPathConcurrentSearches(t *testing.T) {
	zones := gridZones(5, 5)
	g, err := Build(zones, testInstant, uniformValues(zones, 100))
	require.NoError(t, err)

	start, target := g.Nodes()[0], g.Nodes()[24]
	want, err := ShortestPath(g, start, target)
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([]*Path, 8)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p, err := ShortestPath(g, start, target)
			if err == nil {
				results[i] = p
			}
		}()
	}
	wg.Wait()

	for _, p := range results {
		require.NotNil(t, p)
		assert.Equal(t, want.Cost, p.Cost)
		assert.Equal(t, want.Names(), p.Names())
	}
}

func TestReconstructBrokenChain(t *testing.T) {
	g, n := diamond(t, true)

	st := newSearchState(g.Len())
	st.cost[n["D"].Index()] = 2

	_, err := st.reconstruct(g, n["A"], n["D"])
	assert.ErrorIs(t, err, ErrNoPath)
}

func TestPathContains(t *testing.T) {
	g, n := diamond(t, true)

	path, err := ShortestPath(g, n["A"], n["D"])
	require.NoError(t, err)

	assert.True(t, path.Contains(n["C"]))
	assert.False(t, path.Contains(n["B"]))
}
