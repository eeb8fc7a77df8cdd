package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"
	_ "time/tzdata"

	"turf-assistant/internal/database"
	"turf-assistant/internal/distance"
	"turf-assistant/internal/export"
	"turf-assistant/internal/graph"
	"turf-assistant/internal/metrics"
	"turf-assistant/internal/models"
	"turf-assistant/internal/planner"
	"turf-assistant/internal/rounds"
	"turf-assistant/internal/server"
	"turf-assistant/internal/sqlite"
	"turf-assistant/internal/tracing"
	"turf-assistant/internal/turf"
	"turf-assistant/internal/zundin"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

type options struct {
	box           models.BoundingBox
	from          string
	to            string
	maxDistance   float64
	connectedness float64
	workers       int
	fallback      float64
	widen         bool
	geojson       string
	metricsAddr   string
	bike          bool
	debug         bool
}

func parseOptions(args []string) (*options, error) {
	fs := flag.NewFlagSet("turfroute", flag.ContinueOnError)
	var (
		opts   options
		ne, sw string
	)
	fs.StringVar(&ne, "ne", "", "north-east corner of the area as lat,lon")
	fs.StringVar(&sw, "sw", "", "south-west corner of the area as lat,lon")
	fs.StringVar(&opts.from, "from", "", "start zone name")
	fs.StringVar(&opts.to, "to", "", "target zone name")
	fs.Float64Var(&opts.maxDistance, "max-distance", 0, "extend the route up to this many meters (0 = shortest path only)")
	fs.Float64Var(&opts.connectedness, "connectedness", graph.DefaultConnectedness, "maximum edge cost (meters per point of zone value)")
	fs.IntVar(&opts.workers, "workers", 0, "graph build workers (0 = GOMAXPROCS)")
	fs.Float64Var(&opts.fallback, "fallback", 0, "value for zones without hold history (0 = unreachable)")
	fs.BoolVar(&opts.widen, "widen", false, "retry once with doubled connectedness when the target is unreachable")
	fs.StringVar(&opts.geojson, "geojson", "", "write zones, edges and route as GeoJSON to this file")
	fs.StringVar(&opts.metricsAddr, "metrics-addr", "", "serve /metrics and /api/v1/health on this address until interrupted")
	fs.BoolVar(&opts.bike, "bike", false, "annotate legs with GraphHopper bike routes")
	fs.BoolVar(&opts.debug, "debug", false, "log rejected edges while building the graph")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if ne == "" || sw == "" {
		return nil, errors.New("-ne and -sw are required")
	}
	if opts.from == "" || opts.to == "" {
		return nil, errors.New("-from and -to are required")
	}

	var err error
	if opts.box.NorthEast, err = parseCoordinate(ne); err != nil {
		return nil, fmt.Errorf("-ne: %w", err)
	}
	if opts.box.SouthWest, err = parseCoordinate(sw); err != nil {
		return nil, fmt.Errorf("-sw: %w", err)
	}
	if opts.box.NorthEast.Lat < opts.box.SouthWest.Lat || opts.box.NorthEast.Lon < opts.box.SouthWest.Lon {
		return nil, errors.New("-ne must be north-east of -sw")
	}
	if opts.maxDistance < 0 {
		return nil, errors.New("-max-distance must not be negative")
	}
	if opts.connectedness <= 0 {
		return nil, errors.New("-connectedness must be positive")
	}

	return &opts, nil
}

func parseCoordinate(s string) (models.Coordinate, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return models.Coordinate{}, fmt.Errorf("invalid coordinate %q, want lat,lon", s)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return models.Coordinate{}, fmt.Errorf("invalid latitude %q: %w", parts[0], err)
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return models.Coordinate{}, fmt.Errorf("invalid longitude %q: %w", parts[1], err)
	}
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return models.Coordinate{}, fmt.Errorf("coordinate %q out of range", s)
	}
	return models.Coordinate{Lat: lat, Lon: lon}, nil
}

func run(args []string, out io.Writer) error {
	opts, err := parseOptions(args)
	if err != nil {
		return err
	}

	cfg, err := database.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	dbPath := getEnv("TURF_DB_PATH", cfg.DatabasePath)
	graphHopperKey := getEnv("GRAPHHOPPER_KEY", cfg.GraphHopperKey)
	timezone := getEnv("TURF_TIMEZONE", cfg.Timezone)

	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return fmt.Errorf("invalid timezone %q: %w", timezone, err)
	}
	clock := rounds.NewClock(loc)

	store, err := sqlite.New(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open cache: %w", err)
	}
	defer store.Close()

	collector, err := metrics.NewCollector(nil)
	if err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}

	plannerOpts := []planner.Option{planner.WithMetrics(collector)}
	if opts.bike {
		if graphHopperKey == "" {
			return errors.New("-bike needs GRAPHHOPPER_KEY or graphhopper_key in the config file")
		}
		plannerOpts = append(plannerOpts, planner.WithBikeRouter(distance.NewGraphHopperRouter(graphHopperKey, store.Routes())))
	}

	p := planner.New(
		turf.NewClient(getEnv("TURF_API_URL", turf.DefaultBaseURL), store.Zones(), clock),
		zundin.NewScraper(getEnv("ZUNDIN_URL", zundin.DefaultBaseURL), store.Visits(), clock),
		clock,
		plannerOpts...,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Init(ctx, tracing.ConfigFromEnv())
	if err != nil {
		return fmt.Errorf("failed to init tracing: %w", err)
	}
	defer tracing.ShutdownWithTimeout(context.Background(), shutdownTracing)

	now := time.Now()
	area, err := p.LoadArea(ctx, opts.box, now)
	if err != nil {
		return err
	}

	req := planner.PlanRequest{
		Area:               area,
		At:                 now,
		From:               opts.from,
		To:                 opts.to,
		MaxDistance:        opts.maxDistance,
		Connectedness:      opts.connectedness,
		Workers:            opts.workers,
		Debug:              opts.debug,
		WidenOnUnreachable: opts.widen,
		BikeRoutes:         opts.bike,
	}
	if opts.fallback > 0 {
		req.FallbackValue = &opts.fallback
	}

	plan, err := p.Plan(ctx, req)
	if err != nil {
		return err
	}
	printPlan(out, plan)

	if opts.geojson != "" {
		fc := export.GeoJSON(plan.Graph, plan.Path, plan.BikeRoutes)
		fc.RunID = plan.RunID
		if err := export.WriteFile(opts.geojson, fc); err != nil {
			return err
		}
	}

	if opts.metricsAddr == "" {
		return nil
	}
	return serveMetrics(opts.metricsAddr, collector, store)
}

func printPlan(out io.Writer, plan *planner.Plan) {
	mode := "shortest"
	if plan.Extended {
		mode = "extended"
	}
	fmt.Fprintf(out, "Run %s\n", plan.RunID)
	fmt.Fprintf(out, "Route (%s, connectedness %.2f): %d zones\n", mode, plan.Connectedness, len(plan.Path.Nodes))

	var cumulative float64
	for i, n := range plan.Path.Nodes {
		if i > 0 {
			cumulative += plan.Path.Legs[i-1].DistanceMeters
		}
		fmt.Fprintf(out, "%3d  %-30s %8.0f m\n", i+1, n.Name(), cumulative)
	}

	fmt.Fprintf(out, "Total: %.0f m, cost %.3f\n", plan.Path.DistanceMeters, plan.Path.Cost)
	if len(plan.BikeRoutes) > 0 {
		fmt.Fprintf(out, "By bike: %.0f m\n", plan.BikeDistanceMeters)
	}
}

func serveMetrics(addr string, collector *metrics.Collector, store database.DataStore) error {
	srv, err := server.New(server.Config{
		Addr:    addr,
		Metrics: collector,
		Store:   store,
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	actualAddr, err := srv.Start()
	if err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	log.Printf("Metrics available at http://%s/metrics", actualAddr)

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	sig := <-shutdown
	log.Printf("Received signal %v, starting graceful shutdown", sig)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("could not gracefully shutdown the server: %w", err)
	}

	log.Println("Server stopped")
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
