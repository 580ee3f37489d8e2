// Package events stores calendar events and expands recurring ones into occurrences.
package events

import (
	"sort"
	"time"

	"github.com/aura-community/backend/internal/models"
)

const (
	// DefaultHorizonMonths bounds open-ended series past the queried range.
	DefaultHorizonMonths = 12
	// DefaultMaxSteps caps the number of candidate dates examined per event.
	DefaultMaxSteps = 10000
)

// Expander turns stored events into the occurrences that fall in a closed window.
// The zero value uses the defaults.
type Expander struct {
	HorizonMonths int
	MaxSteps      int
	// Location is the community time zone. Weekly steps keep their wall-clock time
	// and monthly clamping uses the local date there. Nil steps in each event's own zone.
	Location *time.Location
}

// NewExpander returns an Expander; non-positive arguments select the defaults.
func NewExpander(horizonMonths, maxSteps int) Expander {
	return Expander{HorizonMonths: horizonMonths, MaxSteps: maxSteps}
}

func (x Expander) horizon() int {
	if x.HorizonMonths <= 0 {
		return DefaultHorizonMonths
	}
	return x.HorizonMonths
}

// In returns a copy of x that steps in loc.
func (x Expander) In(loc *time.Location) Expander {
	x.Location = loc
	return x
}

func (x Expander) local(t time.Time) time.Time {
	if x.Location == nil {
		return t
	}
	return t.In(x.Location)
}

func (x Expander) maxSteps() int {
	if x.MaxSteps <= 0 {
		return DefaultMaxSteps
	}
	return x.MaxSteps
}

// Expand returns the occurrences of e whose date lies in [rangeStart, rangeEnd].
// Recurring series stop at RecurrenceEnd (inclusive) or, when unset, HorizonMonths after rangeEnd.
func (x Expander) Expand(e *models.Event, rangeStart, rangeEnd time.Time) []models.EventOccurrence {
	if e == nil || rangeEnd.Before(rangeStart) {
		return nil
	}
	duration := e.Duration()
	start := x.local(e.StartTime)

	if e.Recurrence != models.RecurrenceWeekly && e.Recurrence != models.RecurrenceMonthly {
		if inRange(start, rangeStart, rangeEnd) {
			return []models.EventOccurrence{newOccurrence(e, start, duration)}
		}
		return nil
	}

	effectiveEnd := rangeEnd.AddDate(0, x.horizon(), 0)
	if e.RecurrenceEnd != nil {
		effectiveEnd = *e.RecurrenceEnd
	}

	var out []models.EventOccurrence
	n := skipIndex(start, e.Recurrence, rangeStart)
	for steps := 0; steps < x.maxSteps(); steps++ {
		date := nthOccurrence(start, e.Recurrence, n)
		if date.After(rangeEnd) || date.After(effectiveEnd) {
			break
		}
		if !date.Before(rangeStart) {
			out = append(out, newOccurrence(e, date, duration))
		}
		n++
	}
	return out
}

// ExpandAll expands every event and orders the result by occurrence date, then
// by series start, title and id so equal dates always sort the same way.
func (x Expander) ExpandAll(events []*models.Event, rangeStart, rangeEnd time.Time) []models.EventOccurrence {
	var out []models.EventOccurrence
	for _, e := range events {
		out = append(out, x.Expand(e, rangeStart, rangeEnd)...)
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.OccurrenceDate.Equal(b.OccurrenceDate) {
			return a.OccurrenceDate.Before(b.OccurrenceDate)
		}
		if !a.Event.StartTime.Equal(b.Event.StartTime) {
			return a.Event.StartTime.Before(b.Event.StartTime)
		}
		if a.Event.Title != b.Event.Title {
			return a.Event.Title < b.Event.Title
		}
		return a.Event.ID.String() < b.Event.ID.String()
	})
	return out
}

func newOccurrence(e *models.Event, date time.Time, d time.Duration) models.EventOccurrence {
	return models.EventOccurrence{Event: e, OccurrenceDate: date, OccurrenceEnd: date.Add(d)}
}

func inRange(t, start, end time.Time) bool {
	return !t.Before(start) && !t.After(end)
}

// nthOccurrence is always computed from the series start so monthly clamping never drifts.
// Steps are calendar steps in start's zone, so the wall-clock time survives DST changes.
func nthOccurrence(start time.Time, rec models.Recurrence, n int) time.Time {
	if rec == models.RecurrenceMonthly {
		return AddMonthsClamped(start, n)
	}
	return start.AddDate(0, 0, 7*n)
}

// skipIndex is an occurrence index at or before the first one that can reach rangeStart.
func skipIndex(start time.Time, rec models.Recurrence, rangeStart time.Time) int {
	if !rangeStart.After(start) {
		return 0
	}
	var n int
	if rec == models.RecurrenceMonthly {
		sy, sm, _ := start.Date()
		ry, rm, _ := rangeStart.In(start.Location()).Date()
		n = (ry-sy)*12 + int(rm-sm) - 1
	} else {
		n = int(rangeStart.Sub(start)/(7*24*time.Hour)) - 1
	}
	if n < 0 {
		return 0
	}
	return n
}

// AddMonthsClamped adds n calendar months to t, clamping the day to the last day
// of the target month (Jan 31 + 1 month = Feb 28 or 29).
func AddMonthsClamped(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m+time.Month(n), 1, 0, 0, 0, 0, t.Location())
	if last := daysIn(first.Year(), first.Month(), t.Location()); d > last {
		d = last
	}
	return time.Date(first.Year(), first.Month(), d, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

func daysIn(year int, month time.Month, loc *time.Location) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, loc).Day()
}

// MonthRange returns the closed window covering one calendar month in loc.
func MonthRange(year int, month time.Month, loc *time.Location) (time.Time, time.Time) {
	start := time.Date(year, month, 1, 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 1, 0).Add(-time.Nanosecond)
}
