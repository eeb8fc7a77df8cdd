package database

import (
	"context"

	"turf-assistant/internal/models"
)

// DataStore is the interface for the on-disk cache of collaborator data
type DataStore interface {
	Close() error
	HealthCheck(ctx context.Context) error
	Zones() ZoneCacheRepository
	Visits() VisitCacheRepository
	Routes() RouteCacheRepository
}

// ZoneCacheRepository caches zone listings per bounding box and round
type ZoneCacheRepository interface {
	// Get returns ErrNotFound when the area has not been cached for the round
	Get(ctx context.Context, box models.BoundingBox, roundID int) ([]models.Zone, error)
	Set(ctx context.Context, box models.BoundingBox, roundID int, zones []models.Zone) error
	Clear(ctx context.Context) error
}

// VisitCacheRepository caches scraped visit logs per zone and round
type VisitCacheRepository interface {
	// Get returns ErrNotFound when the zone has never been scraped for the round.
	// A cached empty log is returned as an empty, non-nil slice.
	Get(ctx context.Context, zoneName string, roundID int) ([]models.VisitRecord, error)
	Set(ctx context.Context, zoneName string, roundID int, records []models.VisitRecord) error
	Clear(ctx context.Context) error
}

// RouteCacheRepository caches bike routes by rounded coordinate pair
type RouteCacheRepository interface {
	Get(ctx context.Context, from, to models.Coordinate) (*models.BikeRoute, error)
	Set(ctx context.Context, route *models.BikeRoute) error
	Clear(ctx context.Context) error
}
