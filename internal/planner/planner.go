// Package planner ties the collaborators together: it loads the zones of an
// area with their previous-round histories, builds the cost graph and runs
// the requested search.
package planner

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"turf-assistant/internal/distance"
	"turf-assistant/internal/graph"
	"turf-assistant/internal/metrics"
	"turf-assistant/internal/models"
	"turf-assistant/internal/rounds"
	"turf-assistant/internal/tracing"
	"turf-assistant/internal/turf"
	"turf-assistant/internal/value"
	"turf-assistant/internal/zundin"
)

// DefaultHistoryWorkers bounds concurrent visit log requests
const DefaultHistoryWorkers = 4

// Planner loads areas and plans routes through them.
type Planner struct {
	zones          turf.ZoneSource
	visits         zundin.VisitHistorySource
	clock          *rounds.Clock
	valuer         graph.Valuer
	metrics        *metrics.Collector
	bike           distance.BikeRouter
	historyWorkers int
}

// Option configures a Planner.
type Option func(*Planner)

// WithValuer replaces the default mean-hold estimator.
func WithValuer(v graph.Valuer) Option {
	return func(p *Planner) { p.valuer = v }
}

// WithMetrics records builds and searches on c.
func WithMetrics(c *metrics.Collector) Option {
	return func(p *Planner) { p.metrics = c }
}

// WithBikeRouter enables bike route annotation of planned paths.
func WithBikeRouter(r distance.BikeRouter) Option {
	return func(p *Planner) { p.bike = r }
}

// WithHistoryWorkers bounds concurrent visit log requests during LoadArea.
func WithHistoryWorkers(n int) Option {
	return func(p *Planner) { p.historyWorkers = n }
}

// New creates a planner.
func New(zones turf.ZoneSource, visits zundin.VisitHistorySource, clock *rounds.Clock, opts ...Option) *Planner {
	p := &Planner{
		zones:          zones,
		visits:         visits,
		clock:          clock,
		valuer:         value.NewEstimator(),
		historyWorkers: DefaultHistoryWorkers,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.historyWorkers < 1 {
		p.historyWorkers = 1
	}
	return p
}

// Area is a loaded set of zones with histories attached.
type Area struct {
	Box models.BoundingBox
	// Round contains the planning instant; HistoryRound is the round the
	// attached histories come from
	Round        models.Round
	HistoryRound models.Round
	Zones        []models.Zone
}

// LoadArea fetches the zones inside box and attaches to each the visit log of
// the round before the one containing at. Every history starts with the
// round's neutral record. A zone whose log cannot be fetched keeps only the
// neutral record, so it is valued as having insufficient data.
func (p *Planner) LoadArea(ctx context.Context, box models.BoundingBox, at time.Time) (area *Area, err error) {
	start := time.Now()

	current := p.clock.RoundAt(at)
	previous := p.clock.Previous(current)

	ctx, span := tracing.Start(ctx, "planner.LoadArea",
		attribute.Int("round", current.ID),
		attribute.Int("history_round", previous.ID),
	)
	defer func() { tracing.End(span, err) }()

	zones, err := p.zones.FetchZonesInArea(ctx, box)
	if err != nil {
		return nil, fmt.Errorf("planner: list zones: %w", err)
	}
	span.SetAttributes(attribute.Int("zones", len(zones)))
	log.Printf("[PLANNER] Loading area: zones=%d round=%d history_round=%d", len(zones), current.ID, previous.ID)

	loaded := make([]models.Zone, len(zones))
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(p.historyWorkers)
	for i := range zones {
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return err
			}
			records := []models.VisitRecord{rounds.NeutralRecord(previous)}
			visits, err := p.visits.FetchVisits(egCtx, zones[i].Name, previous.ID)
			switch {
			case err == nil:
				records = append(records, visits...)
			case egCtx.Err() != nil:
				return egCtx.Err()
			default:
				log.Printf("[ERROR] Visit history unavailable: zone=%s round=%d err=%v", zones[i].Name, previous.ID, err)
			}
			loaded[i] = zones[i].WithHistory(&models.History{
				ZoneName: zones[i].Name,
				RoundID:  previous.ID,
				Records:  records,
			})
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, fmt.Errorf("planner: load histories: %w", err)
	}

	withHolds := lo.CountBy(loaded, func(z models.Zone) bool {
		return len(value.NewStats(z.History).Holds()) > 0
	})
	span.SetAttributes(attribute.Int("zones_with_holds", withHolds))
	log.Printf("[TIMING] Area loaded in %v: zones=%d with_holds=%d", time.Since(start), len(loaded), withHolds)

	return &Area{
		Box:          box,
		Round:        current,
		HistoryRound: previous,
		Zones:        loaded,
	}, nil
}

// PlanRequest describes one route query over a loaded area.
type PlanRequest struct {
	Area *Area
	At   time.Time
	From string
	To   string

	// MaxDistance in meters; positive values extend the path up to this budget
	MaxDistance float64

	// Connectedness defaults to graph.DefaultConnectedness when zero
	Connectedness float64
	Workers       int
	FallbackValue *float64
	Debug         bool

	// WidenOnUnreachable rebuilds once with doubled connectedness when the
	// target cannot be reached
	WidenOnUnreachable bool

	// BikeRoutes annotates each leg with a bike route; needs WithBikeRouter
	BikeRoutes bool
}

// Plan is the result of a route query.
type Plan struct {
	// RunID identifies the query in logs, traces and exports
	RunID string

	Graph         *graph.Graph
	Path          *graph.Path
	Extended      bool
	Connectedness float64

	// BikeRoutes has one entry per path leg when requested
	BikeRoutes         []*models.BikeRoute
	BikeDistanceMeters float64
}

// Plan builds the graph for the request's area and searches it.
func (p *Planner) Plan(ctx context.Context, req PlanRequest) (_ *Plan, err error) {
	if req.Area == nil {
		return nil, errors.New("planner: no area loaded")
	}
	k := req.Connectedness
	if k == 0 {
		k = graph.DefaultConnectedness
	}

	runID := uuid.NewString()
	ctx, span := tracing.Start(ctx, "planner.Plan",
		attribute.String("run_id", runID),
		attribute.String("from", req.From),
		attribute.String("to", req.To),
		attribute.Float64("max_distance", req.MaxDistance),
	)
	defer func() { tracing.End(span, err) }()
	log.Printf("[PLANNER] Plan %s: from=%s to=%s max_distance=%.0f", runID, req.From, req.To, req.MaxDistance)

	plan, err := p.search(ctx, req, k)
	if err != nil && req.WidenOnUnreachable && errors.Is(err, graph.ErrUnreachable) {
		log.Printf("[PLANNER] Target unreachable at connectedness=%.2f, retrying with %.2f", k, 2*k)
		plan, err = p.search(ctx, req, 2*k)
	}
	if err != nil {
		return nil, err
	}
	plan.RunID = runID

	if req.BikeRoutes {
		if err := p.annotate(ctx, plan); err != nil {
			return nil, err
		}
	}

	span.SetAttributes(
		attribute.Int("nodes", len(plan.Path.Nodes)),
		attribute.Float64("cost", plan.Path.Cost),
		attribute.Float64("distance", plan.Path.DistanceMeters),
	)
	return plan, nil
}

func (p *Planner) search(ctx context.Context, req PlanRequest, k float64) (_ *Plan, err error) {
	_, span := tracing.Start(ctx, "planner.search", attribute.Float64("connectedness", k))
	defer func() { tracing.End(span, err) }()

	opts := []graph.BuildOption{graph.WithConnectedness(k)}
	if req.Workers > 0 {
		opts = append(opts, graph.WithWorkers(req.Workers))
	}
	if req.FallbackValue != nil {
		opts = append(opts, graph.WithFallbackValue(*req.FallbackValue))
	}
	if req.Debug {
		opts = append(opts, graph.WithDebugLogging())
	}

	g, err := graph.Build(req.Area.Zones, req.At, p.valuer, opts...)
	if err != nil {
		return nil, fmt.Errorf("planner: build graph: %w", err)
	}
	p.metrics.ObserveBuild(g.Stats())
	span.SetAttributes(attribute.Int("edges", g.EdgeCount()))

	from, err := g.NodeByName(req.From)
	if err != nil {
		return nil, fmt.Errorf("planner: start zone: %w", err)
	}
	to, err := g.NodeByName(req.To)
	if err != nil {
		return nil, fmt.Errorf("planner: target zone: %w", err)
	}

	kind := metrics.SearchShortest
	started := time.Now()
	var path *graph.Path
	if req.MaxDistance > 0 {
		kind = metrics.SearchExtended
		path, err = graph.ExtendPath(g, from, to, req.MaxDistance)
	} else {
		path, err = graph.ShortestPath(g, from, to)
	}
	p.metrics.ObserveSearch(kind, err, time.Since(started))
	if err != nil {
		return nil, fmt.Errorf("planner: %s search: %w", kind, err)
	}

	return &Plan{
		Graph:         g,
		Path:          path,
		Extended:      kind == metrics.SearchExtended,
		Connectedness: k,
	}, nil
}

func (p *Planner) annotate(ctx context.Context, plan *Plan) (err error) {
	if p.bike == nil {
		return errors.New("planner: bike routes requested without a bike router")
	}

	ctx, span := tracing.Start(ctx, "planner.annotate", attribute.Int("legs", len(plan.Path.Legs)))
	defer func() { tracing.End(span, err) }()

	plan.BikeRoutes = make([]*models.BikeRoute, 0, len(plan.Path.Legs))
	for _, leg := range plan.Path.Legs {
		route, err := p.bike.GetBikeRoute(ctx, leg.From.Zone().Coords, leg.To.Zone().Coords)
		if err != nil {
			return fmt.Errorf("planner: bike route %s -> %s: %w", leg.From.Name(), leg.To.Name(), err)
		}
		plan.BikeRoutes = append(plan.BikeRoutes, route)
		plan.BikeDistanceMeters += route.DistanceMeters
	}

	log.Printf("[PLANNER] Bike routes: legs=%d distance=%.0f straight=%.0f",
		len(plan.BikeRoutes), plan.BikeDistanceMeters, plan.Path.DistanceMeters)
	return nil
}
