// Package value estimates how many points holding a zone is worth.
//
// A zone's value is its takeover bonus plus the points it accrues per hour
// times the expected hold duration, estimated from the zone's visit log:
//
//	value = takeover_points + points_per_hour * hold_seconds / 3600
//
// Only holding events (duration > 0) contribute to the hold estimate.
// Assists are kept on the Stats for inspection but never averaged.
package value

import (
	"errors"
	"fmt"
	"time"

	"github.com/samber/lo"

	"turf-assistant/internal/models"
)

// Method selects the hold-time estimation strategy
type Method string

const (
	// MethodMean averages the hold durations of all holding events
	MethodMean Method = "mean"

	// MethodFourier is reserved for a frequency-domain estimator and is not built
	MethodFourier Method = "fourier"
)

var (
	// ErrInsufficientData means the log has no holding events to estimate from
	ErrInsufficientData = errors.New("value: insufficient data, no holding events")

	// ErrNotImplemented means the requested method is declared but not built
	ErrNotImplemented = errors.New("value: estimation method not implemented")

	// ErrUnknownMethod means the method identifier is not recognised at all
	ErrUnknownMethod = errors.New("value: unknown estimation method")

	// ErrStatsNotSet means a value was requested before history was attached
	ErrStatsNotSet = errors.New("value: zone stats not set")
)

// Stats holds the partitioned visit log for one zone
type Stats struct {
	zoneName string
	roundID  int
	holds    []models.VisitRecord
	assists  []models.VisitRecord
}

// NewStats partitions a zone history into holding and assist events
func NewStats(h *models.History) *Stats {
	if h == nil {
		return &Stats{}
	}
	return &Stats{
		zoneName: h.ZoneName,
		roundID:  h.RoundID,
		holds: lo.Filter(h.Records, func(v models.VisitRecord, _ int) bool {
			return !v.IsAssist()
		}),
		assists: lo.Filter(h.Records, func(v models.VisitRecord, _ int) bool {
			return v.IsAssist()
		}),
	}
}

// ZoneName returns the zone the stats were built for
func (s *Stats) ZoneName() string { return s.zoneName }

// RoundID returns the round the visit log belongs to
func (s *Stats) RoundID() int { return s.roundID }

// Holds returns a copy of the holding events
func (s *Stats) Holds() []models.VisitRecord {
	return append([]models.VisitRecord(nil), s.holds...)
}

// Assists returns a copy of the assist events
func (s *Stats) Assists() []models.VisitRecord {
	return append([]models.VisitRecord(nil), s.assists...)
}

// EstimateHoldSeconds estimates how long a capture is typically held
func (s *Stats) EstimateHoldSeconds(method Method) (float64, error) {
	switch method {
	case MethodMean:
		if len(s.holds) == 0 {
			return 0, fmt.Errorf("%w: zone %q", ErrInsufficientData, s.zoneName)
		}
		total := lo.SumBy(s.holds, func(v models.VisitRecord) float64 {
			return v.Duration.Seconds()
		})
		return total / float64(len(s.holds)), nil
	case MethodFourier:
		return 0, fmt.Errorf("%w: %s", ErrNotImplemented, method)
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownMethod, method)
	}
}

// HoursPerWeek is the number of HourOfWeekHistogram bins
const HoursPerWeek = 7 * 24

// events returns takeovers then assists, without the neutral record
func (s *Stats) events() []models.VisitRecord {
	all := append(append([]models.VisitRecord(nil), s.holds...), s.assists...)
	return lo.Reject(all, func(v models.VisitRecord, _ int) bool { return v.IsNeutral() })
}

// mondayFirst maps time.Weekday to 0 for Monday through 6 for Sunday
func mondayFirst(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

// HourOfWeekHistogram counts takeovers and assists by hour of the week,
// bin weekday*24 + hour with Monday 00:00 in bin 0
func (s *Stats) HourOfWeekHistogram() [HoursPerWeek]int {
	var hist [HoursPerWeek]int
	for _, v := range s.events() {
		hist[mondayFirst(v.Timestamp)*24+v.Timestamp.Hour()]++
	}
	return hist
}

// WeekdayHistogram counts takeovers and assists by day of week, Monday first
func (s *Stats) WeekdayHistogram() [7]int {
	var hist [7]int
	for _, v := range s.events() {
		hist[mondayFirst(v.Timestamp)]++
	}
	return hist
}

// Estimator computes zone values from attached histories
type Estimator struct {
	// Method defaults to MethodMean when empty
	Method Method
}

// NewEstimator creates an estimator using the mean hold time
func NewEstimator() *Estimator {
	return &Estimator{Method: MethodMean}
}

// ZoneValue returns the expected points for capturing the zone at t and
// holding it for its typical duration
func (e *Estimator) ZoneValue(zone *models.Zone, t time.Time) (float64, error) {
	if zone.History == nil {
		return 0, fmt.Errorf("%w: zone %q", ErrStatsNotSet, zone.Name)
	}

	method := e.Method
	if method == "" {
		method = MethodMean
	}

	holdSeconds, err := NewStats(zone.History).EstimateHoldSeconds(method)
	if err != nil {
		return 0, err
	}

	return float64(zone.TakeoverPoints) + float64(zone.PointsPerHour)*holdSeconds/3600, nil
}
