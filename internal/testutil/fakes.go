package testutil

import (
	"context"
	"sync"
	"time"

	"turf-assistant/internal/models"
)

// FakeZoneSource returns a fixed zone listing
type FakeZoneSource struct {
	mu    sync.Mutex
	Zones []models.Zone
	Err   error
	calls int
}

func (f *FakeZoneSource) FetchZonesInArea(ctx context.Context, box models.BoundingBox) ([]models.Zone, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.Err != nil {
		return nil, f.Err
	}
	return append([]models.Zone(nil), f.Zones...), nil
}

// Calls returns the number of listings requested
func (f *FakeZoneSource) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// FakeVisitSource serves visit logs by zone name and records requested rounds
type FakeVisitSource struct {
	mu     sync.Mutex
	logs   map[string][]models.VisitRecord
	errs   map[string]error
	rounds map[string]int
}

func NewFakeVisitSource() *FakeVisitSource {
	return &FakeVisitSource{
		logs:   make(map[string][]models.VisitRecord),
		errs:   make(map[string]error),
		rounds: make(map[string]int),
	}
}

// SetLog sets the log returned for zoneName
func (f *FakeVisitSource) SetLog(zoneName string, records []models.VisitRecord) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logs[zoneName] = records
}

// SetError makes requests for zoneName fail with err
func (f *FakeVisitSource) SetError(zoneName string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[zoneName] = err
}

func (f *FakeVisitSource) FetchVisits(ctx context.Context, zoneName string, roundID int) ([]models.VisitRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rounds[zoneName] = roundID
	if err := f.errs[zoneName]; err != nil {
		return nil, err
	}
	return append([]models.VisitRecord{}, f.logs[zoneName]...), nil
}

// RequestedRound returns the round last requested for zoneName, and whether any was
func (f *FakeVisitSource) RequestedRound(zoneName string) (int, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rounds[zoneName]
	return r, ok
}

// FakeBikeRouter returns straight two-point routes of a fixed length
type FakeBikeRouter struct {
	mu             sync.Mutex
	MetersPerRoute float64
	Err            error
	calls          int
}

func (f *FakeBikeRouter) GetBikeRoute(ctx context.Context, from, to models.Coordinate) (*models.BikeRoute, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.Err != nil {
		return nil, f.Err
	}
	return &models.BikeRoute{
		From:           from,
		To:             to,
		DistanceMeters: f.MetersPerRoute,
		Duration:       time.Duration(f.MetersPerRoute/5) * time.Second,
		Points:         []models.Coordinate{from, to},
	}, nil
}

// Calls returns the number of routes requested
func (f *FakeBikeRouter) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}
