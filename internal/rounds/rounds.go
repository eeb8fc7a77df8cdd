// Package rounds maps instants to monthly Turf rounds.
//
// Round 1 started in July 2010. Every round starts on the first Sunday of its
// month at 12:00 local time and ends one second before the next round starts.
package rounds

import (
	"time"

	"turf-assistant/internal/models"
)

// NeutralHolder is the holder name of the synthetic record that opens a round
const NeutralHolder = models.NeutralHolder

const (
	firstRoundYear  = 2010
	firstRoundMonth = time.July
	startHour       = 12
)

// Clock computes rounds in a fixed location
type Clock struct {
	loc *time.Location
}

// NewClock creates a clock for loc; nil means UTC
func NewClock(loc *time.Location) *Clock {
	if loc == nil {
		loc = time.UTC
	}
	return &Clock{loc: loc}
}

// Location returns the clock's location
func (c *Clock) Location() *time.Location {
	return c.loc
}

// RoundAt returns the round containing t
func (c *Clock) RoundAt(t time.Time) models.Round {
	t = t.In(c.loc)
	id := 1 + 12*(t.Year()-firstRoundYear) + int(t.Month()-firstRoundMonth)
	if t.Before(c.startOf(t.Year(), t.Month())) {
		id--
	}
	return c.Round(id)
}

// Round returns the round with the given id
func (c *Clock) Round(id int) models.Round {
	year, month := monthOf(id)
	nextYear, nextMonth := monthOf(id + 1)
	return models.Round{
		ID:    id,
		Start: c.startOf(year, month),
		End:   c.startOf(nextYear, nextMonth).Add(-time.Second),
	}
}

// Previous returns the round before r
func (c *Clock) Previous(r models.Round) models.Round {
	return c.Round(r.ID - 1)
}

// NeutralRecord returns the zero-value visit that marks the start of r,
// when the zone is reset and held by nobody
func NeutralRecord(r models.Round) models.VisitRecord {
	return models.VisitRecord{
		Holder:    NeutralHolder,
		Points:    0,
		Duration:  0,
		Timestamp: r.Start,
	}
}

// startOf returns the first Sunday of the month at 12:00
func (c *Clock) startOf(year int, month time.Month) time.Time {
	first := time.Date(year, month, 1, startHour, 0, 0, 0, c.loc)
	offset := (7 - int(first.Weekday())) % 7
	return first.AddDate(0, 0, offset)
}

func monthOf(id int) (int, time.Month) {
	m := int(firstRoundMonth-1) + id - 1
	year := firstRoundYear + floorDiv(m, 12)
	return year, time.Month(m-floorDiv(m, 12)*12) + 1
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
