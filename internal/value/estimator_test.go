package value

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"turf-assistant/internal/models"
)

var roundStart = time.Date(2024, 5, 5, 12, 0, 0, 0, time.UTC) // a Sunday

func sampleHistory() *models.History {
	return &models.History{
		ZoneName: "Resecentrum",
		RoundID:  167,
		Records: []models.VisitRecord{
			{Holder: "neutral", Timestamp: roundStart},
			{Holder: "l355", Points: 125, Duration: 2 * time.Hour, Timestamp: roundStart.Add(1 * time.Hour)},
			{Holder: "bob", Points: 65, Timestamp: roundStart.Add(1 * time.Hour)},
			{Holder: "alice", Points: 125, Duration: 4 * time.Hour, Timestamp: roundStart.Add(3 * time.Hour)},
			{Holder: "carol", Points: 125, Duration: 6 * time.Hour, Timestamp: roundStart.Add(24*time.Hour + 7*time.Hour)},
		},
	}
}

func TestNewStatsPartitions(t *testing.T) {
	stats := NewStats(sampleHistory())

	assert.Len(t, stats.Holds(), 3)
	assert.Len(t, stats.Assists(), 2)
	assert.Equal(t, "Resecentrum", stats.ZoneName())
	assert.Equal(t, 167, stats.RoundID())

	for _, v := range stats.Holds() {
		assert.False(t, v.IsAssist())
	}
}

func TestEstimateHoldSecondsMean(t *testing.T) {
	stats := NewStats(sampleHistory())

	secs, err := stats.EstimateHoldSeconds(MethodMean)
	require.NoError(t, err)

	// (2h + 4h + 6h) / 3 = 4h
	assert.InDelta(t, 4*3600.0, secs, 1e-9)
}

func TestEstimateHoldSecondsOnlyAssists(t *testing.T) {
	stats := NewStats(&models.History{
		ZoneName: "Kullen",
		Records: []models.VisitRecord{
			{Holder: "neutral", Timestamp: roundStart},
			{Holder: "bob", Points: 65, Timestamp: roundStart.Add(time.Hour)},
		},
	})

	_, err := stats.EstimateHoldSeconds(MethodMean)
	assert.True(t, errors.Is(err, ErrInsufficientData))
}

func TestEstimateHoldSecondsEmptyHistory(t *testing.T) {
	_, err := NewStats(&models.History{ZoneName: "New"}).EstimateHoldSeconds(MethodMean)
	assert.ErrorIs(t, err, ErrInsufficientData)

	_, err = NewStats(nil).EstimateHoldSeconds(MethodMean)
	assert.ErrorIs(t, err, ErrInsufficientData)
}

func TestEstimateHoldSecondsFourierNotImplemented(t *testing.T) {
	_, err := NewStats(sampleHistory()).EstimateHoldSeconds(MethodFourier)
	assert.ErrorIs(t, err, ErrNotImplemented)
}

func TestEstimateHoldSecondsUnknownMethod(t *testing.T) {
	_, err := NewStats(sampleHistory()).EstimateHoldSeconds(Method("median"))
	assert.ErrorIs(t, err, ErrUnknownMethod)
	assert.NotErrorIs(t, err, ErrNotImplemented)
}

func TestZoneValue(t *testing.T) {
	zone := &models.Zone{
		Name:           "Resecentrum",
		TakeoverPoints: 125,
		PointsPerHour:  6,
		History:        sampleHistory(),
	}

	v, err := NewEstimator().ZoneValue(zone, roundStart)
	require.NoError(t, err)

	// 125 + 6 * 4h
	assert.InDelta(t, 149.0, v, 1e-9)
}

func TestZoneValueDeterministic(t *testing.T) {
	zone := &models.Zone{Name: "Resecentrum", TakeoverPoints: 185, PointsPerHour: 9, History: sampleHistory()}
	est := NewEstimator()
	at := roundStart.Add(48 * time.Hour)

	first, err := est.ZoneValue(zone, at)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := est.ZoneValue(zone, at)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestZoneValueStatsNotSet(t *testing.T) {
	_, err := NewEstimator().ZoneValue(&models.Zone{Name: "Bare"}, roundStart)
	assert.ErrorIs(t, err, ErrStatsNotSet)
}

func TestZoneValueZeroEstimatorUsesMean(t *testing.T) {
	zone := &models.Zone{Name: "Resecentrum", TakeoverPoints: 125, PointsPerHour: 6, History: sampleHistory()}

	var est Estimator
	v, err := est.ZoneValue(zone, roundStart)
	require.NoError(t, err)
	assert.InDelta(t, 149.0, v, 1e-9)
}

func TestZoneValueFourierEstimator(t *testing.T) {
	zone := &models.Zone{Name: "Resecentrum", History: sampleHistory()}

	_, err := (&Estimator{Method: MethodFourier}).ZoneValue(zone, roundStart)
	assert.ErrorIs(t, err, ErrNotImplemented)
}

func sum(bins []int) int {
	total := 0
	for _, b := range bins {
		total += b
	}
	return total
}

func TestHourOfWeekHistogram(t *testing.T) {
	hist := NewStats(sampleHistory()).HourOfWeekHistogram()

	// Sunday 13:00 has a takeover and an assist
	assert.Equal(t, 2, hist[6*24+13])
	assert.Equal(t, 1, hist[6*24+15])
	// Monday 19:00
	assert.Equal(t, 1, hist[0*24+19])
	// the neutral record at Sunday 12:00 is not an event
	assert.Zero(t, hist[6*24+12])
	assert.Equal(t, 4, sum(hist[:]))
}

func TestWeekdayHistogram(t *testing.T) {
	hist := NewStats(sampleHistory()).WeekdayHistogram()

	assert.Equal(t, 3, hist[6]) // Sunday: two takeovers and one assist
	assert.Equal(t, 1, hist[0]) // Monday
	assert.Equal(t, 4, sum(hist[:]))
}

func TestHistogramsCountAssists(t *testing.T) {
	monday := time.Date(2024, 5, 6, 9, 30, 0, 0, time.UTC)
	stats := NewStats(&models.History{
		ZoneName: "Kullen",
		Records: []models.VisitRecord{
			{Holder: "neutral", Timestamp: roundStart},
			{Holder: "bob", Points: 65, Timestamp: monday},
			{Holder: "bob", Points: 65, Timestamp: monday.Add(time.Minute)},
		},
	})

	assert.Equal(t, 2, stats.HourOfWeekHistogram()[9])
	assert.Equal(t, 2, stats.WeekdayHistogram()[0])
}

func TestHistogramsEmpty(t *testing.T) {
	stats := NewStats(nil)
	hourly := stats.HourOfWeekHistogram()
	weekday := stats.WeekdayHistogram()
	assert.Zero(t, sum(hourly[:]))
	assert.Zero(t, sum(weekday[:]))
}
