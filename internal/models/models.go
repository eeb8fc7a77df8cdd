package models

import (
	"math"
	"time"
)

// Coordinate represents a geographic point in degrees
type Coordinate struct {
	Lat float64 `json:"latitude"`
	Lon float64 `json:"longitude"`
}

// Add returns the component-wise sum of two coordinates
func (c Coordinate) Add(o Coordinate) Coordinate {
	return Coordinate{Lat: c.Lat + o.Lat, Lon: c.Lon + o.Lon}
}

// Sub returns the component-wise difference of two coordinates
func (c Coordinate) Sub(o Coordinate) Coordinate {
	return Coordinate{Lat: c.Lat - o.Lat, Lon: c.Lon - o.Lon}
}

// Scale multiplies both components by s
func (c Coordinate) Scale(s float64) Coordinate {
	return Coordinate{Lat: c.Lat * s, Lon: c.Lon * s}
}

// Equal reports whether both components match exactly
func (c Coordinate) Equal(o Coordinate) bool {
	return c.Lat == o.Lat && c.Lon == o.Lon
}

// Midpoint returns the component-wise midpoint, good enough for centering a map
func (c Coordinate) Midpoint(o Coordinate) Coordinate {
	return c.Add(o).Scale(0.5)
}

// RoundCoordinate rounds a coordinate component to 5 decimal places (~1m precision)
func RoundCoordinate(v float64) float64 {
	return math.Round(v*100000) / 100000
}

// Rounded returns the coordinate with both components rounded for cache keys
func (c Coordinate) Rounded() Coordinate {
	return Coordinate{Lat: RoundCoordinate(c.Lat), Lon: RoundCoordinate(c.Lon)}
}

// BoundingBox is the rectangle used to query zones
type BoundingBox struct {
	NorthEast Coordinate `json:"northEast"`
	SouthWest Coordinate `json:"southWest"`
}

// Center returns the middle of the box
func (b BoundingBox) Center() Coordinate {
	return b.NorthEast.Midpoint(b.SouthWest)
}

// Contains reports whether c lies inside the box (inclusive)
func (b BoundingBox) Contains(c Coordinate) bool {
	return c.Lat <= b.NorthEast.Lat && c.Lat >= b.SouthWest.Lat &&
		c.Lon <= b.NorthEast.Lon && c.Lon >= b.SouthWest.Lon
}

// User represents a Turf player
type User struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// VisitRecord is one historical takeover or assist on a zone
type VisitRecord struct {
	Holder    string        `json:"holder"`
	Points    int           `json:"points"`
	Duration  time.Duration `json:"duration"`
	Timestamp time.Time     `json:"timestamp"`
}

// NeutralHolder is the holder name of the synthetic record that opens a round
const NeutralHolder = "neutral"

// IsAssist reports whether the record is a non-holding event
func (v VisitRecord) IsAssist() bool {
	return v.Duration <= 0
}

// IsNeutral reports whether the record is the synthetic round-opening record
func (v VisitRecord) IsNeutral() bool {
	return v.Holder == NeutralHolder && v.Points == 0 && v.Duration == 0
}

// History is the chronologically ordered visit log of a zone for one round
type History struct {
	ZoneName string        `json:"zone_name"`
	RoundID  int           `json:"round_id"`
	Records  []VisitRecord `json:"records"`
}

// Zone represents a capturable Turf zone
type Zone struct {
	ID             int64      `json:"id"`
	Name           string     `json:"name"`
	Coords         Coordinate `json:"coords"`
	TakeoverPoints int        `json:"takeover_points"`
	PointsPerHour  int        `json:"points_per_hour"`
	CreatedAt      time.Time  `json:"created_at"`
	TotalTakeovers int        `json:"total_takeovers"`
	CurrentOwner   *User      `json:"current_owner,omitempty"`

	// History is nil until a visit source has been consulted for this zone
	History *History `json:"history,omitempty"`
}

// WithHistory returns a copy of the zone with the given history attached
func (z Zone) WithHistory(h *History) Zone {
	z.History = h
	return z
}

// Round is one monthly scoring period
type Round struct {
	ID    int       `json:"id"`
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Contains reports whether t falls inside the round
func (r Round) Contains(t time.Time) bool {
	return !t.Before(r.Start) && !t.After(r.End)
}

// BikeRoute is a cycling route between two coordinates from a routing service
type BikeRoute struct {
	From           Coordinate    `json:"from"`
	To             Coordinate    `json:"to"`
	DistanceMeters float64       `json:"distance_meters"`
	Duration       time.Duration `json:"duration"`
	Ascend         float64       `json:"ascend"`
	Descend        float64       `json:"descend"`
	Points         []Coordinate  `json:"points"`
}
