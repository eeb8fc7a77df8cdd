package turf

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"turf-assistant/internal/database"
	"turf-assistant/internal/models"
	"turf-assistant/internal/rounds"
)

// DefaultBaseURL is the public Turf API
const DefaultBaseURL = "https://api.turfgame.com"

// TimeLayout is the timestamp format used by the Turf API
const TimeLayout = "2006-01-02T15:04:05-0700"

// ZoneSource provides the zones inside an area
type ZoneSource interface {
	FetchZonesInArea(ctx context.Context, box models.BoundingBox) ([]models.Zone, error)
}

// ErrTurfRequestFailed is returned when the Turf API cannot list an area
type ErrTurfRequestFailed struct {
	Area   models.BoundingBox
	Reason string
}

func (e *ErrTurfRequestFailed) Error() string {
	return fmt.Sprintf("turf request failed for area %.5f,%.5f:%.5f,%.5f - %s",
		e.Area.NorthEast.Lat, e.Area.NorthEast.Lon, e.Area.SouthWest.Lat, e.Area.SouthWest.Lon, e.Reason)
}

type apiClient struct {
	baseURL     string
	httpClient  *http.Client
	rateLimiter *time.Ticker
	cache       database.ZoneCacheRepository
	clock       *rounds.Clock
	now         func() time.Time
}

type apiCoordinate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type areaRequest struct {
	NorthEast apiCoordinate `json:"northEast"`
	SouthWest apiCoordinate `json:"southWest"`
}

type zoneResponse struct {
	ID             int64   `json:"id"`
	Name           string  `json:"name"`
	Latitude       float64 `json:"latitude"`
	Longitude      float64 `json:"longitude"`
	TakeoverPoints int     `json:"takeoverPoints"`
	PointsPerHour  int     `json:"pointsPerHour"`
	DateCreated    string  `json:"dateCreated"`
	TotalTakeovers int     `json:"totalTakeovers"`
	CurrentOwner   *struct {
		ID   int64  `json:"id"`
		Name string `json:"name"`
	} `json:"currentOwner"`
}

// NewClient creates a rate-limited Turf API client. Listings are cached per
// area and current round when cache is non-nil.
func NewClient(baseURL string, cache database.ZoneCacheRepository, clock *rounds.Clock) ZoneSource {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &apiClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		rateLimiter: time.NewTicker(1 * time.Second),
		cache:       cache,
		clock:       clock,
		now:         time.Now,
	}
}

func (c *apiClient) FetchZonesInArea(ctx context.Context, box models.BoundingBox) ([]models.Zone, error) {
	roundID := c.clock.RoundAt(c.now()).ID

	if c.cache != nil {
		zones, err := c.cache.Get(ctx, box, roundID)
		if err == nil {
			log.Printf("[TURF] Zone cache hit: round=%d zones=%d", roundID, len(zones))
			return zones, nil
		}
		if !errors.Is(err, database.ErrNotFound) {
			log.Printf("[ERROR] Zone cache lookup failed: round=%d err=%v", roundID, err)
		}
	}

	select {
	case <-c.rateLimiter.C:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	payload := []areaRequest{{
		NorthEast: apiCoordinate{Latitude: box.NorthEast.Lat, Longitude: box.NorthEast.Lon},
		SouthWest: apiCoordinate{Latitude: box.SouthWest.Lat, Longitude: box.SouthWest.Lon},
	}}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, &ErrTurfRequestFailed{Area: box, Reason: err.Error()}
	}

	queryURL := c.baseURL + "/v4/zones"
	log.Printf("[TURF] Request: url=%s ne=%.5f,%.5f sw=%.5f,%.5f", queryURL,
		box.NorthEast.Lat, box.NorthEast.Lon, box.SouthWest.Lat, box.SouthWest.Lon)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, queryURL, bytes.NewReader(body))
	if err != nil {
		log.Printf("[ERROR] Failed to create turf request: err=%v", err)
		return nil, &ErrTurfRequestFailed{Area: box, Reason: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "TurfAssistant/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Printf("[ERROR] Turf API request failed: err=%v", err)
		return nil, &ErrTurfRequestFailed{Area: box, Reason: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		log.Printf("[ERROR] Turf API error: status=%d body=%s", resp.StatusCode, string(respBody))
		return nil, &ErrTurfRequestFailed{
			Area:   box,
			Reason: fmt.Sprintf("HTTP %d: %s", resp.StatusCode, string(respBody)),
		}
	}

	var results []zoneResponse
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		log.Printf("[ERROR] Failed to decode turf response: err=%v", err)
		return nil, &ErrTurfRequestFailed{Area: box, Reason: err.Error()}
	}

	zones := make([]models.Zone, 0, len(results))
	for _, r := range results {
		zones = append(zones, r.toZone())
	}
	log.Printf("[TURF] Response: round=%d zones=%d", roundID, len(zones))

	if c.cache != nil {
		if err := c.cache.Set(ctx, box, roundID, zones); err != nil {
			log.Printf("[ERROR] Failed to cache zones: round=%d err=%v", roundID, err)
		}
	}

	return zones, nil
}

func (r zoneResponse) toZone() models.Zone {
	z := models.Zone{
		ID:             r.ID,
		Name:           r.Name,
		Coords:         models.Coordinate{Lat: r.Latitude, Lon: r.Longitude},
		TakeoverPoints: r.TakeoverPoints,
		PointsPerHour:  r.PointsPerHour,
		TotalTakeovers: r.TotalTakeovers,
	}
	if r.DateCreated != "" {
		created, err := time.Parse(TimeLayout, r.DateCreated)
		if err != nil {
			log.Printf("[TURF] Ignoring invalid dateCreated: zone=%s value=%q", r.Name, r.DateCreated)
		} else {
			z.CreatedAt = created
		}
	}
	if r.CurrentOwner != nil {
		z.CurrentOwner = &models.User{ID: r.CurrentOwner.ID, Name: r.CurrentOwner.Name}
	}
	return z
}
