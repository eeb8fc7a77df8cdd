// Package export renders graphs and routes as GeoJSON for map viewers.
package export

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"turf-assistant/internal/graph"
	"turf-assistant/internal/models"
)

// Feature kinds set in the "kind" property
const (
	KindZone     = "zone"
	KindEdge     = "edge"
	KindRoute    = "route"
	KindBikeLeg  = "bike_leg"
	geometryPt   = "Point"
	geometryLine = "LineString"
)

// FeatureCollection is a GeoJSON feature collection
type FeatureCollection struct {
	Type     string    `json:"type"`
	RunID    string    `json:"run_id,omitempty"`
	Features []Feature `json:"features"`
}

// Feature is a GeoJSON feature
type Feature struct {
	Type       string         `json:"type"`
	Geometry   Geometry       `json:"geometry"`
	Properties map[string]any `json:"properties"`
}

// Geometry holds either a Point ([lon, lat]) or a LineString ([[lon, lat], ...])
type Geometry struct {
	Type        string `json:"type"`
	Coordinates any    `json:"coordinates"`
}

func position(c models.Coordinate) [2]float64 {
	return [2]float64{c.Lon, c.Lat}
}

func line(coords ...models.Coordinate) Geometry {
	positions := make([][2]float64, len(coords))
	for i, c := range coords {
		positions[i] = position(c)
	}
	return Geometry{Type: geometryLine, Coordinates: positions}
}

// GeoJSON renders every zone as a Point, every edge as a LineString and, when
// path is non-nil, the route as one LineString. Bike routes, when given, are
// added as one LineString per leg.
func GeoJSON(g *graph.Graph, path *graph.Path, bike []*models.BikeRoute) FeatureCollection {
	fc := FeatureCollection{Type: "FeatureCollection", Features: []Feature{}}

	onRoute := map[int]bool{}
	if path != nil {
		for _, n := range path.Nodes {
			onRoute[n.Index()] = true
		}
	}

	for _, n := range g.Nodes() {
		z := n.Zone()
		props := map[string]any{
			"kind":     KindZone,
			"name":     z.Name,
			"tp":       z.TakeoverPoints,
			"pph":      z.PointsPerHour,
			"on_route": onRoute[n.Index()],
		}
		if v, ok := n.Value(); ok {
			props["value"] = v
		}
		fc.Features = append(fc.Features, Feature{
			Type:       "Feature",
			Geometry:   Geometry{Type: geometryPt, Coordinates: position(z.Coords)},
			Properties: props,
		})
	}

	for _, n := range g.Nodes() {
		for _, e := range n.Edges() {
			fc.Features = append(fc.Features, Feature{
				Type:     "Feature",
				Geometry: line(n.Zone().Coords, e.To.Zone().Coords),
				Properties: map[string]any{
					"kind":     KindEdge,
					"from":     n.Name(),
					"to":       e.To.Name(),
					"cost":     e.Cost,
					"distance": e.DistanceMeters,
				},
			})
		}
	}

	if path != nil {
		coords := make([]models.Coordinate, len(path.Nodes))
		for i, n := range path.Nodes {
			coords[i] = n.Zone().Coords
		}
		fc.Features = append(fc.Features, Feature{
			Type:     "Feature",
			Geometry: line(coords...),
			Properties: map[string]any{
				"kind":     KindRoute,
				"zones":    path.Names(),
				"cost":     path.Cost,
				"distance": path.DistanceMeters,
			},
		})
	}

	for i, r := range bike {
		if r == nil || len(r.Points) < 2 {
			continue
		}
		fc.Features = append(fc.Features, Feature{
			Type:     "Feature",
			Geometry: line(r.Points...),
			Properties: map[string]any{
				"kind":     KindBikeLeg,
				"leg":      i,
				"distance": r.DistanceMeters,
				"duration": r.Duration.Seconds(),
			},
		})
	}

	return fc
}

// WriteFile writes fc to filename atomically
func WriteFile(filename string, fc FeatureCollection) error {
	data, err := json.MarshalIndent(fc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal geojson: %w", err)
	}

	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	tmpFile := filename + ".tmp"
	if err := os.WriteFile(tmpFile, data, 0644); err != nil {
		return fmt.Errorf("failed to write geojson: %w", err)
	}
	if err := os.Rename(tmpFile, filename); err != nil {
		os.Remove(tmpFile)
		return fmt.Errorf("failed to save geojson: %w", err)
	}

	log.Printf("[EXPORT] Wrote %s: features=%d", filename, len(fc.Features))
	return nil
}
