package graph

import (
	"errors"
	"fmt"
	"log"
	"math"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"turf-assistant/internal/distance"
	"turf-assistant/internal/models"
	"turf-assistant/internal/value"
)

// DefaultConnectedness is the default maximum cost per edge.
const DefaultConnectedness = 3.0

// Valuer estimates the value of holding a zone at an instant.
type Valuer interface {
	ZoneValue(zone *models.Zone, t time.Time) (float64, error)
}

// BuildStats summarises one Build call.
type BuildStats struct {
	Zones             int
	PairsConsidered   int
	EdgesKept         int
	PrunedByThreshold int
	RejectedByValue   int
	ZonesWithoutValue int
	Connectedness     float64
	At                time.Time
	Duration          time.Duration
}

type buildOptions struct {
	connectedness float64
	workers       int
	fallback      *float64
	debug         bool
}

// BuildOption configures Build.
type BuildOption func(*buildOptions)

// WithConnectedness sets the pruning threshold; edges costing more are dropped.
func WithConnectedness(k float64) BuildOption {
	return func(o *buildOptions) { o.connectedness = k }
}

// WithWorkers bounds the number of goroutines evaluating source rows.
func WithWorkers(n int) BuildOption {
	return func(o *buildOptions) { o.workers = n }
}

// WithFallbackValue substitutes v for zones whose value cannot be estimated
// from their history. Without it such zones get no incoming edges.
func WithFallbackValue(v float64) BuildOption {
	return func(o *buildOptions) { o.fallback = &v }
}

// WithDebugLogging logs every rejected edge.
func WithDebugLogging() BuildOption {
	return func(o *buildOptions) { o.debug = true }
}

type rowStats struct {
	considered int
	kept       int
	pruned     int
	rejected   int
}

// Build creates one node per zone, in input order, and connects every ordered
// pair (u, v) whose cost distance/value(v) is within the connectedness threshold.
//
// Rows are evaluated concurrently; each worker writes only its own source
// node's edge list, so the result is identical for any worker count.
// Any estimator error other than value.ErrInsufficientData aborts the build.
func Build(zones []models.Zone, at time.Time, valuer Valuer, opts ...BuildOption) (*Graph, error) {
	start := time.Now()

	cfg := buildOptions{
		connectedness: DefaultConnectedness,
		workers:       runtime.GOMAXPROCS(0),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if !(cfg.connectedness > 0) {
		return nil, fmt.Errorf("%w: %v", ErrBadConnectedness, cfg.connectedness)
	}
	if cfg.workers < 1 {
		cfg.workers = 1
	}

	g := New()
	for _, z := range zones {
		g.AddNode(z)
	}

	withoutValue := 0
	for _, n := range g.nodes {
		v, err := valuer.ZoneValue(&n.zone, at)
		switch {
		case err == nil:
			n.value, n.hasValue = v, true
		case errors.Is(err, value.ErrInsufficientData):
			if cfg.fallback != nil {
				n.value, n.hasValue = *cfg.fallback, true
				log.Printf("[GRAPH] Zone %s has no holding events, using fallback value %.1f", n.Name(), *cfg.fallback)
			} else {
				withoutValue++
				log.Printf("[GRAPH] Zone %s has no holding events, excluding incoming edges", n.Name())
			}
		default:
			return nil, fmt.Errorf("graph: value of zone %q: %w", n.Name(), err)
		}
	}

	rows := make([]rowStats, len(g.nodes))
	var eg errgroup.Group
	eg.SetLimit(cfg.workers)
	for i := range g.nodes {
		eg.Go(func() error {
			rows[i] = g.buildRow(g.nodes[i], cfg)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	stats := BuildStats{
		Zones:             len(g.nodes),
		ZonesWithoutValue: withoutValue,
		Connectedness:     cfg.connectedness,
		At:                at,
	}
	for _, r := range rows {
		stats.PairsConsidered += r.considered
		stats.EdgesKept += r.kept
		stats.PrunedByThreshold += r.pruned
		stats.RejectedByValue += r.rejected
	}
	stats.Duration = time.Since(start)
	g.stats = stats

	log.Printf("[GRAPH] Built graph: zones=%d edges=%d pruned=%d rejected=%d no_value=%d connectedness=%.2f duration=%v",
		stats.Zones, stats.EdgesKept, stats.PrunedByThreshold, stats.RejectedByValue, stats.ZonesWithoutValue,
		stats.Connectedness, stats.Duration)

	return g, nil
}

// buildRow computes the outgoing edges of u. It only writes u.edges.
func (g *Graph) buildRow(u *Node, cfg buildOptions) rowStats {
	var rs rowStats
	for _, v := range g.nodes {
		if u == v {
			continue
		}
		rs.considered++

		if !v.hasValue || !(v.value > 0) || math.IsInf(v.value, 0) {
			rs.rejected++
			if cfg.debug {
				log.Printf("[GRAPH] debug: rejected %s→%s value=%v has_value=%v", u.Name(), v.Name(), v.value, v.hasValue)
			}
			continue
		}

		d := distance.Haversine(u.zone.Coords, v.zone.Coords)
		cost := d / v.value
		if math.IsNaN(cost) || math.IsInf(cost, 0) || cost < 0 {
			rs.rejected++
			if cfg.debug {
				log.Printf("[GRAPH] debug: rejected %s→%s cost=%v", u.Name(), v.Name(), cost)
			}
			continue
		}

		if cost > cfg.connectedness {
			rs.pruned++
			continue
		}

		u.edges = append(u.edges, Edge{To: v, Cost: cost, DistanceMeters: d})
		rs.kept++
	}
	return rs
}
