package distance

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"

	"turf-assistant/internal/database"
	"turf-assistant/internal/models"
)

// BikeRouter provides cycling routes between coordinates
type BikeRouter interface {
	GetBikeRoute(ctx context.Context, from, to models.Coordinate) (*models.BikeRoute, error)
}

// ErrRouteFailed is returned when the routing service cannot produce a route
type ErrRouteFailed struct {
	From   models.Coordinate
	To     models.Coordinate
	Reason string
}

func (e *ErrRouteFailed) Error() string {
	return fmt.Sprintf("bike route failed: %s", e.Reason)
}

type graphHopperRouter struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	cache      database.RouteCacheRepository
}

type graphHopperRequest struct {
	Points        [][2]float64 `json:"points"`
	Profile       string       `json:"profile"`
	PointsEncoded bool         `json:"points_encoded"`
}

type graphHopperResponse struct {
	Paths []struct {
		Distance float64 `json:"distance"`
		Time     int64   `json:"time"`
		Ascend   float64 `json:"ascend"`
		Descend  float64 `json:"descend"`
		Points   struct {
			Coordinates [][]float64 `json:"coordinates"`
		} `json:"points"`
	} `json:"paths"`
	Message string `json:"message"`
}

// NewGraphHopperRouter creates a GraphHopper bike router with caching
func NewGraphHopperRouter(apiKey string, cache database.RouteCacheRepository) BikeRouter {
	return &graphHopperRouter{
		baseURL: "https://graphhopper.com",
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		cache: cache,
	}
}

func (r *graphHopperRouter) GetBikeRoute(ctx context.Context, from, to models.Coordinate) (*models.BikeRoute, error) {
	if from.Rounded().Equal(to.Rounded()) {
		return &models.BikeRoute{From: from, To: to, Points: []models.Coordinate{from}}, nil
	}

	cached, err := r.cache.Get(ctx, from, to)
	if err != nil {
		return nil, err
	}
	if cached != nil {
		return cached, nil
	}

	log.Printf("[GRAPHHOPPER] Cache miss: from=(%.6f,%.6f) to=(%.6f,%.6f)", from.Lat, from.Lon, to.Lat, to.Lon)

	// GraphHopper expects [lon, lat]
	payload := graphHopperRequest{
		Points:        [][2]float64{{from.Lon, from.Lat}, {to.Lon, to.Lat}},
		Profile:       "bike",
		PointsEncoded: false,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, &ErrRouteFailed{From: from, To: to, Reason: err.Error()}
	}

	queryURL := fmt.Sprintf("%s/api/1/route?key=%s", r.baseURL, url.QueryEscape(r.apiKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, queryURL, bytes.NewReader(body))
	if err != nil {
		return nil, &ErrRouteFailed{From: from, To: to, Reason: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		log.Printf("[ERROR] GraphHopper request failed: err=%v", err)
		return nil, &ErrRouteFailed{From: from, To: to, Reason: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		log.Printf("[ERROR] GraphHopper API error: status=%d body=%s", resp.StatusCode, string(respBody))
		return nil, &ErrRouteFailed{
			From:   from,
			To:     to,
			Reason: fmt.Sprintf("HTTP %d: %s", resp.StatusCode, string(respBody)),
		}
	}

	var ghResp graphHopperResponse
	if err := json.NewDecoder(resp.Body).Decode(&ghResp); err != nil {
		return nil, &ErrRouteFailed{From: from, To: to, Reason: err.Error()}
	}
	if len(ghResp.Paths) == 0 {
		return nil, &ErrRouteFailed{From: from, To: to, Reason: "no paths returned"}
	}

	path := ghResp.Paths[0]
	route := &models.BikeRoute{
		From:           from,
		To:             to,
		DistanceMeters: path.Distance,
		Duration:       time.Duration(path.Time) * time.Millisecond,
		Ascend:         path.Ascend,
		Descend:        path.Descend,
		Points:         make([]models.Coordinate, 0, len(path.Points.Coordinates)),
	}
	for _, p := range path.Points.Coordinates {
		if len(p) < 2 {
			continue
		}
		route.Points = append(route.Points, models.Coordinate{Lat: p[1], Lon: p[0]})
	}

	if err := r.cache.Set(ctx, route); err != nil {
		return nil, err
	}

	log.Printf("[GRAPHHOPPER] Route calculated: distance=%.0f duration=%v points=%d", route.DistanceMeters, route.Duration, len(route.Points))
	return route, nil
}
