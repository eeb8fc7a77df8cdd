// Package zundin scrapes per-round takeover logs from the zundin statistics site.
package zundin

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"

	"turf-assistant/internal/database"
	"turf-assistant/internal/models"
	"turf-assistant/internal/rounds"
)

// DefaultBaseURL is the public zundin site
const DefaultBaseURL = "https://frut.zundin.se"

// VisitHistorySource provides the visit log of a zone for a round
type VisitHistorySource interface {
	FetchVisits(ctx context.Context, zoneName string, roundID int) ([]models.VisitRecord, error)
}

// ErrScrapeFailed is returned when a takeover log cannot be fetched or parsed
type ErrScrapeFailed struct {
	Zone    string
	RoundID int
	Reason  string
}

func (e *ErrScrapeFailed) Error() string {
	return fmt.Sprintf("zundin scrape failed for zone %s round %d - %s", e.Zone, e.RoundID, e.Reason)
}

type scraper struct {
	baseURL    string
	httpClient *http.Client
	cache      database.VisitCacheRepository
	clock      *rounds.Clock
	now        func() time.Time
}

// NewScraper creates a zundin scraper. Logs of finished rounds are cached
// when cache is non-nil; the clock's location is used for timestamps.
func NewScraper(baseURL string, cache database.VisitCacheRepository, clock *rounds.Clock) VisitHistorySource {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &scraper{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		cache: cache,
		clock: clock,
		now:   time.Now,
	}
}

func (s *scraper) FetchVisits(ctx context.Context, zoneName string, roundID int) ([]models.VisitRecord, error) {
	if s.cache != nil {
		records, err := s.cache.Get(ctx, zoneName, roundID)
		if err == nil {
			log.Printf("[ZUNDIN] Cache hit: zone=%s round=%d records=%d", zoneName, roundID, len(records))
			return records, nil
		}
		if !errors.Is(err, database.ErrNotFound) {
			log.Printf("[ERROR] Visit cache lookup failed: zone=%s round=%d err=%v", zoneName, roundID, err)
		}
	}

	queryURL := fmt.Sprintf("%s/zone.php?zonename=%s&roundid=%d", s.baseURL, url.QueryEscape(zoneName), roundID)
	log.Printf("[ZUNDIN] Request: zone=%s round=%d url=%s", zoneName, roundID, queryURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, queryURL, nil)
	if err != nil {
		log.Printf("[ERROR] Failed to create zundin request: zone=%s err=%v", zoneName, err)
		return nil, &ErrScrapeFailed{Zone: zoneName, RoundID: roundID, Reason: err.Error()}
	}
	req.Header.Set("User-Agent", "TurfAssistant/1.0")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		log.Printf("[ERROR] Zundin request failed: zone=%s err=%v", zoneName, err)
		return nil, &ErrScrapeFailed{Zone: zoneName, RoundID: roundID, Reason: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		log.Printf("[ERROR] Zundin error: zone=%s status=%d body=%s", zoneName, resp.StatusCode, string(body))
		return nil, &ErrScrapeFailed{
			Zone:    zoneName,
			RoundID: roundID,
			Reason:  fmt.Sprintf("HTTP %d: %s", resp.StatusCode, string(body)),
		}
	}

	records, err := ParseTakeovers(resp.Body, s.clock.Location())
	if err != nil {
		log.Printf("[ERROR] Failed to parse takeover table: zone=%s round=%d err=%v", zoneName, roundID, err)
		return nil, &ErrScrapeFailed{Zone: zoneName, RoundID: roundID, Reason: err.Error()}
	}
	log.Printf("[ZUNDIN] Response: zone=%s round=%d records=%d", zoneName, roundID, len(records))

	// only finished rounds are cached
	if s.cache != nil && s.now().After(s.clock.Round(roundID).End) {
		if err := s.cache.Set(ctx, zoneName, roundID, records); err != nil {
			log.Printf("[ERROR] Failed to cache visits: zone=%s round=%d err=%v", zoneName, roundID, err)
		}
	}

	return records, nil
}
