// Package metrics exposes Prometheus metrics for graph builds and route searches.
package metrics

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"turf-assistant/internal/graph"
)

// SearchKind labels a search by the operation that ran it
type SearchKind string

const (
	SearchShortest SearchKind = "shortest"
	SearchExtended SearchKind = "extended"
)

// Search results used as label values
const (
	ResultOK          = "ok"
	ResultUnreachable = "unreachable"
	ResultError       = "error"
)

// Collector bundles the planner's Prometheus metrics.
type Collector struct {
	gatherer prometheus.Gatherer

	GraphBuilds    prometheus.Counter
	GraphEdges     *prometheus.CounterVec
	BuildDurations prometheus.Histogram

	Searches        *prometheus.CounterVec
	SearchDurations *prometheus.HistogramVec
}

// NewCollector registers the metrics against reg, defaulting to the global
// Prometheus registry when nil. Registering twice against the same registry
// returns the already registered collectors.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	builds, err := register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "turf_graph_builds_total",
		Help: "Total number of zone graphs built.",
	}), "turf_graph_builds_total")
	if err != nil {
		return nil, err
	}

	edges, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "turf_graph_edges_total",
		Help: "Candidate edges evaluated while building graphs, labeled by outcome.",
	}, []string{"outcome"}), "turf_graph_edges_total")
	if err != nil {
		return nil, err
	}

	buildDurations, err := register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "turf_graph_build_duration_seconds",
		Help:    "Graph build latency in seconds.",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	}), "turf_graph_build_duration_seconds")
	if err != nil {
		return nil, err
	}

	searches, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "turf_searches_total",
		Help: "Total number of route searches, labeled by kind and result.",
	}, []string{"kind", "result"}), "turf_searches_total")
	if err != nil {
		return nil, err
	}

	searchDurations, err := register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "turf_search_duration_seconds",
		Help:    "Route search latency in seconds.",
		Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
	}, []string{"kind"}), "turf_search_duration_seconds")
	if err != nil {
		return nil, err
	}

	return &Collector{
		gatherer:        gatherer,
		GraphBuilds:     builds,
		GraphEdges:      edges,
		BuildDurations:  buildDurations,
		Searches:        searches,
		SearchDurations: searchDurations,
	}, nil
}

// ObserveBuild records one completed graph build.
func (c *Collector) ObserveBuild(stats graph.BuildStats) {
	if c == nil {
		return
	}
	c.GraphBuilds.Inc()
	c.GraphEdges.WithLabelValues("kept").Add(float64(stats.EdgesKept))
	c.GraphEdges.WithLabelValues("pruned").Add(float64(stats.PrunedByThreshold))
	c.GraphEdges.WithLabelValues("rejected").Add(float64(stats.RejectedByValue))
	c.BuildDurations.Observe(stats.Duration.Seconds())
}

// ObserveSearch records one search and classifies its outcome from err.
func (c *Collector) ObserveSearch(kind SearchKind, err error, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.Searches.WithLabelValues(string(kind), SearchResult(err)).Inc()
	c.SearchDurations.WithLabelValues(string(kind)).Observe(elapsed.Seconds())
}

// SearchResult maps a search error to its result label.
func SearchResult(err error) string {
	switch {
	case err == nil:
		return ResultOK
	case errors.Is(err, graph.ErrUnreachable):
		return ResultUnreachable
	default:
		return ResultError
	}
}

// Handler exposes a ready-to-use /metrics handler.
func (c *Collector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

func register[T prometheus.Collector](reg prometheus.Registerer, c T, name string) (T, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
			var zero T
			return zero, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		var zero T
		return zero, err
	}
	return c, nil
}
