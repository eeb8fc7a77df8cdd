package planner

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"turf-assistant/internal/graph"
	"turf-assistant/internal/metrics"
	"turf-assistant/internal/models"
	"turf-assistant/internal/rounds"
	"turf-assistant/internal/testutil"
)

// at falls in round 167; histories come from round 166 (April 2024)
var at = time.Date(2024, 5, 20, 18, 0, 0, 0, time.UTC)

var area = models.BoundingBox{
	NorthEast: models.Coordinate{Lat: 58.41, Lon: 15.57},
	SouthWest: models.Coordinate{Lat: 58.39, Lon: 15.54},
}

func gridZones(rows, cols int, spacing float64) []models.Zone {
	var zones []models.Zone
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			zones = append(zones, models.Zone{
				ID:             int64(len(zones) + 1),
				Name:           fmt.Sprintf("%c%d", 'a'+r, c),
				Coords:         models.Coordinate{Lat: 58.40 + float64(r)*spacing, Lon: 15.55 + float64(c)*spacing*1.9},
				TakeoverPoints: 100,
				PointsPerHour:  10,
			})
		}
	}
	return zones
}

func holdLog(d time.Duration) []models.VisitRecord {
	return []models.VisitRecord{
		{Holder: "lindholmen", Points: 100, Duration: d, Timestamp: time.Date(2024, 4, 10, 15, 0, 0, 0, time.UTC)},
	}
}

// newFixture returns a planner over zones where every zone was held for 2h, valued 120
func newFixture(t *testing.T, zones []models.Zone, opts ...Option) (*Planner, *testutil.FakeVisitSource, *metrics.Collector) {
	t.Helper()
	visits := testutil.NewFakeVisitSource()
	for _, z := range zones {
		visits.SetLog(z.Name, holdLog(2*time.Hour))
	}
	collector, err := metrics.NewCollector(prometheus.NewRegistry())
	require.NoError(t, err)

	opts = append([]Option{WithMetrics(collector)}, opts...)
	p := New(&testutil.FakeZoneSource{Zones: zones}, visits, rounds.NewClock(time.UTC), opts...)
	return p, visits, collector
}

func TestLoadAreaAttachesPreviousRoundHistory(t *testing.T) {
	zones := gridZones(2, 2, 0.001)
	p, visits, _ := newFixture(t, zones)

	loaded, err := p.LoadArea(context.Background(), area, at)
	require.NoError(t, err)

	assert.Equal(t, 167, loaded.Round.ID)
	assert.Equal(t, 166, loaded.HistoryRound.ID)
	require.Len(t, loaded.Zones, len(zones))

	for i, z := range loaded.Zones {
		assert.Equal(t, zones[i].Name, z.Name, "input order is kept")
		require.NotNil(t, z.History)
		assert.Equal(t, 166, z.History.RoundID)
		require.Len(t, z.History.Records, 2)
		assert.Equal(t, rounds.NeutralHolder, z.History.Records[0].Holder)
		assert.Equal(t, loaded.HistoryRound.Start, z.History.Records[0].Timestamp)

		round, ok := visits.RequestedRound(z.Name)
		require.True(t, ok)
		assert.Equal(t, 166, round)
	}
}

func TestLoadAreaDegradesOnScrapeFailure(t *testing.T) {
	zones := gridZones(1, 3, 0.001)
	p, visits, _ := newFixture(t, zones)
	visits.SetError("a1", errors.New("zundin down"))

	loaded, err := p.LoadArea(context.Background(), area, at)
	require.NoError(t, err)

	failed := loaded.Zones[1]
	require.NotNil(t, failed.History)
	require.Len(t, failed.History.Records, 1)
	assert.Equal(t, rounds.NeutralHolder, failed.History.Records[0].Holder)
}

func TestLoadAreaZoneSourceError(t *testing.T) {
	p := New(&testutil.FakeZoneSource{Err: errors.New("turf down")}, testutil.NewFakeVisitSource(), rounds.NewClock(time.UTC))

	loaded, err := p.LoadArea(context.Background(), area, at)
	assert.Nil(t, loaded)
	assert.ErrorContains(t, err, "turf down")
}

func TestLoadAreaCancelled(t *testing.T) {
	p, _, _ := newFixture(t, gridZones(3, 3, 0.001))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.LoadArea(ctx, area, at)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPlanShortest(t *testing.T) {
	p, _, collector := newFixture(t, gridZones(3, 3, 0.001))
	loaded, err := p.LoadArea(context.Background(), area, at)
	require.NoError(t, err)

	plan, err := p.Plan(context.Background(), PlanRequest{Area: loaded, At: at, From: "a0", To: "c2"})
	require.NoError(t, err)

	names := plan.Path.Names()
	assert.Equal(t, "a0", names[0])
	assert.Equal(t, "c2", names[len(names)-1])
	assert.False(t, plan.Extended)
	assert.Equal(t, graph.DefaultConnectedness, plan.Connectedness)
	v, ok := plan.Graph.Nodes()[0].Value()
	require.True(t, ok)
	assert.InDelta(t, 120.0, v, 1e-9)

	assert.Equal(t, 1.0, promtest.ToFloat64(collector.GraphBuilds))
	assert.Equal(t, 1.0, promtest.ToFloat64(collector.Searches.WithLabelValues("shortest", "ok")))
}

func TestPlanExtended(t *testing.T) {
	p, _, collector := newFixture(t, gridZones(3, 3, 0.001))
	loaded, err := p.LoadArea(context.Background(), area, at)
	require.NoError(t, err)

	plan, err := p.Plan(context.Background(), PlanRequest{Area: loaded, At: at, From: "a0", To: "c2", MaxDistance: 1200})
	require.NoError(t, err)

	assert.True(t, plan.Extended)
	assert.LessOrEqual(t, plan.Path.DistanceMeters, 1200.0)
	assert.Greater(t, len(plan.Path.Nodes), 2)
	assert.Equal(t, 1.0, promtest.ToFloat64(collector.Searches.WithLabelValues("extended", "ok")))
}

func TestPlanUnknownZone(t *testing.T) {
	p, _, _ := newFixture(t, gridZones(2, 2, 0.001))
	loaded, err := p.LoadArea(context.Background(), area, at)
	require.NoError(t, err)

	_, err = p.Plan(context.Background(), PlanRequest{Area: loaded, At: at, From: "a0", To: "Atlantis"})
	assert.ErrorIs(t, err, graph.ErrNodeNotFound)
}

func TestPlanWithoutArea(t *testing.T) {
	p, _, _ := newFixture(t, nil)
	_, err := p.Plan(context.Background(), PlanRequest{From: "a0", To: "a1"})
	assert.Error(t, err)
}

// two zones ~550m apart valued 120: cost ~4.6, above the default threshold
func sparsePair() []models.Zone {
	return gridZones(1, 2, 0.005)
}

func TestPlanUnreachable(t *testing.T) {
	p, _, collector := newFixture(t, sparsePair())
	loaded, err := p.LoadArea(context.Background(), area, at)
	require.NoError(t, err)

	_, err = p.Plan(context.Background(), PlanRequest{Area: loaded, At: at, From: "a0", To: "a1"})
	assert.ErrorIs(t, err, graph.ErrUnreachable)
	assert.Equal(t, 1.0, promtest.ToFloat64(collector.Searches.WithLabelValues("shortest", "unreachable")))
}

func TestPlanWidensOnUnreachable(t *testing.T) {
	p, _, collector := newFixture(t, sparsePair())
	loaded, err := p.LoadArea(context.Background(), area, at)
	require.NoError(t, err)

	plan, err := p.Plan(context.Background(), PlanRequest{
		Area: loaded, At: at, From: "a0", To: "a1", WidenOnUnreachable: true,
	})
	require.NoError(t, err)

	assert.Equal(t, 2*graph.DefaultConnectedness, plan.Connectedness)
	assert.Equal(t, []string{"a0", "a1"}, plan.Path.Names())
	assert.Equal(t, 2.0, promtest.ToFloat64(collector.GraphBuilds))
	assert.Equal(t, 1.0, promtest.ToFloat64(collector.Searches.WithLabelValues("shortest", "unreachable")))
	assert.Equal(t, 1.0, promtest.ToFloat64(collector.Searches.WithLabelValues("shortest", "ok")))
}

func TestPlanZoneWithoutHoldsIsUnreachable(t *testing.T) {
	zones := gridZones(1, 2, 0.001)
	p, visits, _ := newFixture(t, zones)
	visits.SetLog("a1", nil)

	loaded, err := p.LoadArea(context.Background(), area, at)
	require.NoError(t, err)

	_, err = p.Plan(context.Background(), PlanRequest{Area: loaded, At: at, From: "a0", To: "a1"})
	assert.ErrorIs(t, err, graph.ErrUnreachable)

	fallback := 120.0
	plan, err := p.Plan(context.Background(), PlanRequest{Area: loaded, At: at, From: "a0", To: "a1", FallbackValue: &fallback})
	require.NoError(t, err)
	assert.Equal(t, []string{"a0", "a1"}, plan.Path.Names())
}

func TestPlanBikeRoutes(t *testing.T) {
	bike := &testutil.FakeBikeRouter{MetersPerRoute: 250}
	p, _, _ := newFixture(t, gridZones(3, 3, 0.001), WithBikeRouter(bike))
	loaded, err := p.LoadArea(context.Background(), area, at)
	require.NoError(t, err)

	plan, err := p.Plan(context.Background(), PlanRequest{Area: loaded, At: at, From: "a0", To: "c2", BikeRoutes: true})
	require.NoError(t, err)

	require.Len(t, plan.BikeRoutes, len(plan.Path.Legs))
	assert.Equal(t, 250*float64(len(plan.Path.Legs)), plan.BikeDistanceMeters)
	assert.Equal(t, len(plan.Path.Legs), bike.Calls())
	for i, leg := range plan.Path.Legs {
		assert.Equal(t, leg.From.Zone().Coords, plan.BikeRoutes[i].From)
		assert.Equal(t, leg.To.Zone().Coords, plan.BikeRoutes[i].To)
	}
}

func TestPlanBikeRouteFailure(t *testing.T) {
	bike := &testutil.FakeBikeRouter{Err: errors.New("quota exceeded")}
	p, _, _ := newFixture(t, gridZones(2, 2, 0.001), WithBikeRouter(bike))
	loaded, err := p.LoadArea(context.Background(), area, at)
	require.NoError(t, err)

	_, err = p.Plan(context.Background(), PlanRequest{Area: loaded, At: at, From: "a0", To: "b1", BikeRoutes: true})
	assert.ErrorContains(t, err, "quota exceeded")
}

func TestPlanBikeRoutesWithoutRouter(t *testing.T) {
	p, _, _ := newFixture(t, gridZones(2, 2, 0.001))
	loaded, err := p.LoadArea(context.Background(), area, at)
	require.NoError(t, err)

	_, err = p.Plan(context.Background(), PlanRequest{Area: loaded, At: at, From: "a0", To: "b1", BikeRoutes: true})
	assert.Error(t, err)
}

func recordSpans(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	rec := tracetest.NewSpanRecorder()
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec)))
	t.Cleanup(func() { otel.SetTracerProvider(prev) })
	return rec
}

func TestPlanTracesRun(t *testing.T) {
	rec := recordSpans(t)
	p, _, _ := newFixture(t, gridZones(2, 2, 0.001))

	loaded, err := p.LoadArea(context.Background(), area, at)
	require.NoError(t, err)
	plan, err := p.Plan(context.Background(), PlanRequest{Area: loaded, At: at, From: "a0", To: "b1"})
	require.NoError(t, err)

	_, err = uuid.Parse(plan.RunID)
	assert.NoError(t, err)

	spans := map[string]sdktrace.ReadOnlySpan{}
	for _, s := range rec.Ended() {
		spans[s.Name()] = s
	}
	require.Contains(t, spans, "planner.LoadArea")
	require.Contains(t, spans, "planner.Plan")
	require.Contains(t, spans, "planner.search")

	planSpan := spans["planner.Plan"]
	assert.Equal(t, planSpan.SpanContext().SpanID(), spans["planner.search"].Parent().SpanID())

	attrs := map[string]string{}
	for _, kv := range planSpan.Attributes() {
		attrs[string(kv.Key)] = kv.Value.Emit()
	}
	assert.Equal(t, plan.RunID, attrs["run_id"])
	assert.Equal(t, "a0", attrs["from"])
	assert.Equal(t, "b1", attrs["to"])
}

func TestPlanTracesFailure(t *testing.T) {
	rec := recordSpans(t)
	p, _, _ := newFixture(t, sparsePair())

	loaded, err := p.LoadArea(context.Background(), area, at)
	require.NoError(t, err)
	_, err = p.Plan(context.Background(), PlanRequest{Area: loaded, At: at, From: "a0", To: "a1"})
	require.ErrorIs(t, err, graph.ErrUnreachable)

	for _, s := range rec.Ended() {
		if s.Name() == "planner.Plan" || s.Name() == "planner.search" {
			assert.Equal(t, codes.Error, s.Status().Code, s.Name())
		}
	}
}
