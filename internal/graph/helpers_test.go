package graph

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"turf-assistant/internal/models"
	"turf-assistant/internal/value"
)

var testInstant = time.Date(2024, 5, 20, 18, 0, 0, 0, time.UTC)

// stubValuer returns fixed values by zone name; unknown zones have no data
type stubValuer map[string]float64

func (s stubValuer) ZoneValue(z *models.Zone, _ time.Time) (float64, error) {
	v, ok := s[z.Name]
	if !ok {
		return 0, value.ErrInsufficientData
	}
	return v, nil
}

func zoneAt(name string, lat, lon float64) models.Zone {
	return models.Zone{Name: name, Coords: models.Coordinate{Lat: lat, Lon: lon}}
}

// diamond builds A→B=2, B→D=3, A→C=1, C→D=1 with distance = 100*cost
func diamond(t *testing.T, withEdgesIntoD bool) (*Graph, map[string]*Node) {
	t.Helper()
	g := New()
	nodes := map[string]*Node{}
	for i, name := range []string{"A", "B", "C", "D"} {
		nodes[name] = g.AddNode(zoneAt(name, 58.40+float64(i)*0.001, 15.55))
	}

	add := func(from, to string, cost float64) {
		require.NoError(t, g.AddEdge(nodes[from], nodes[to], cost, cost*100))
	}
	add("A", "B", 2)
	add("A", "C", 1)
	if withEdgesIntoD {
		add("B", "D", 3)
		add("C", "D", 1)
	}
	return g, nodes
}

// gridZones lays out rows*cols zones spaced 0.001 degrees apart (~111m north-south)
func gridZones(rows, cols int) []models.Zone {
	zones := make([]models.Zone, 0, rows*cols)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			zones = append(zones, zoneAt(
				string(rune('a'+r))+string(rune('0'+c)),
				58.40+float64(r)*0.001,
				15.55+float64(c)*0.0019,
			))
		}
	}
	return zones
}

func uniformValues(zones []models.Zone, v float64) stubValuer {
	vals := stubValuer{}
	for _, z := range zones {
		vals[z.Name] = v
	}
	return vals
}

// valueOf returns the node's value, failing the test when it has none
func valueOf(t *testing.T, n *Node) float64 {
	t.Helper()
	v, ok := n.Value()
	require.True(t, ok, "node %s has no value", n.Name())
	return v
}

func requireContiguous(t *testing.T, p *Path) {
	t.Helper()
	require.Len(t, p.Legs, len(p.Nodes)-1)
	total := 0.0
	for i, l := range p.Legs {
		require.Same(t, p.Nodes[i], l.From)
		require.Same(t, p.Nodes[i+1], l.To)
		total += l.DistanceMeters
	}
	require.InDelta(t, total, p.DistanceMeters, 1e-6)
}
