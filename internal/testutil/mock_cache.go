package testutil

import (
	"context"
	"fmt"
	"sync"

	"turf-assistant/internal/database"
	"turf-assistant/internal/models"
)

// MockRouteCache is an in-memory RouteCacheRepository for testing
type MockRouteCache struct {
	mu      sync.Mutex
	entries map[string]*models.BikeRoute
}

func NewMockRouteCache() *MockRouteCache {
	return &MockRouteCache{
		entries: make(map[string]*models.BikeRoute),
	}
}

func (c *MockRouteCache) cacheKey(from, to models.Coordinate) string {
	return fmt.Sprintf("%.5f,%.5f->%.5f,%.5f",
		models.RoundCoordinate(from.Lat), models.RoundCoordinate(from.Lon),
		models.RoundCoordinate(to.Lat), models.RoundCoordinate(to.Lon))
}

func (c *MockRouteCache) Get(ctx context.Context, from, to models.Coordinate) (*models.BikeRoute, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if route, ok := c.entries[c.cacheKey(from, to)]; ok {
		return route, nil
	}
	return nil, nil
}

func (c *MockRouteCache) Set(ctx context.Context, route *models.BikeRoute) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[c.cacheKey(route.From, route.To)] = route
	return nil
}

func (c *MockRouteCache) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*models.BikeRoute)
	return nil
}

// Count returns the number of cached routes
func (c *MockRouteCache) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// MockZoneCache is an in-memory ZoneCacheRepository for testing
type MockZoneCache struct {
	mu      sync.Mutex
	entries map[string][]models.Zone
}

func NewMockZoneCache() *MockZoneCache {
	return &MockZoneCache{
		entries: make(map[string][]models.Zone),
	}
}

func (c *MockZoneCache) cacheKey(box models.BoundingBox, roundID int) string {
	ne, sw := box.NorthEast.Rounded(), box.SouthWest.Rounded()
	return fmt.Sprintf("%d:%.5f,%.5f:%.5f,%.5f", roundID, ne.Lat, ne.Lon, sw.Lat, sw.Lon)
}

func (c *MockZoneCache) Get(ctx context.Context, box models.BoundingBox, roundID int) ([]models.Zone, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	zones, ok := c.entries[c.cacheKey(box, roundID)]
	if !ok {
		return nil, database.ErrNotFound
	}
	return append([]models.Zone(nil), zones...), nil
}

func (c *MockZoneCache) Set(ctx context.Context, box models.BoundingBox, roundID int, zones []models.Zone) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[c.cacheKey(box, roundID)] = append([]models.Zone(nil), zones...)
	return nil
}

func (c *MockZoneCache) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string][]models.Zone)
	return nil
}

// MockVisitCache is an in-memory VisitCacheRepository for testing
type MockVisitCache struct {
	mu      sync.Mutex
	entries map[string][]models.VisitRecord
}

func NewMockVisitCache() *MockVisitCache {
	return &MockVisitCache{
		entries: make(map[string][]models.VisitRecord),
	}
}

func (c *MockVisitCache) cacheKey(zoneName string, roundID int) string {
	return fmt.Sprintf("%d:%s", roundID, zoneName)
}

func (c *MockVisitCache) Get(ctx context.Context, zoneName string, roundID int) ([]models.VisitRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	records, ok := c.entries[c.cacheKey(zoneName, roundID)]
	if !ok {
		return nil, database.ErrNotFound
	}
	return append([]models.VisitRecord{}, records...), nil
}

func (c *MockVisitCache) Set(ctx context.Context, zoneName string, roundID int, records []models.VisitRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[c.cacheKey(zoneName, roundID)] = append([]models.VisitRecord{}, records...)
	return nil
}

func (c *MockVisitCache) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string][]models.VisitRecord)
	return nil
}

// Count returns the number of cached visit logs
func (c *MockVisitCache) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
