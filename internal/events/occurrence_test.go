package events

import (
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aura-community/backend/internal/models"
)

func date(y int, m time.Month, d, h int) time.Time {
	return time.Date(y, m, d, h, 0, 0, 0, time.UTC)
}

func newEvent(title string, start time.Time, rec models.Recurrence, until *time.Time) *models.Event {
	return &models.Event{
		ID:            uuid.New(),
		Title:         title,
		StartTime:     start,
		EndTime:       start.Add(90 * time.Minute),
		Recurrence:    rec,
		RecurrenceEnd: until,
	}
}

func dates(occ []models.EventOccurrence) []time.Time {
	out := make([]time.Time, len(occ))
	for i, o := range occ {
		out[i] = o.OccurrenceDate
	}
	return out
}

func TestExpand_NonRecurring(t *testing.T) {
	start := date(2025, time.March, 10, 18)
	e := newEvent("Kickoff", start, models.RecurrenceNone, nil)
	x := Expander{}

	tests := []struct {
		name      string
		from, to  time.Time
		wantCount int
	}{
		{"inside", date(2025, time.March, 1, 0), date(2025, time.March, 31, 0), 1},
		{"on range start", start, date(2025, time.April, 1, 0), 1},
		{"on range end", date(2025, time.March, 1, 0), start, 1},
		{"before range", date(2025, time.March, 11, 0), date(2025, time.April, 1, 0), 0},
		{"after range", date(2025, time.February, 1, 0), date(2025, time.March, 10, 17), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := x.Expand(e, tt.from, tt.to)
			require.Len(t, got, tt.wantCount)
			if tt.wantCount == 1 {
				assert.Equal(t, start, got[0].OccurrenceDate)
				assert.Equal(t, start.Add(90*time.Minute), got[0].OccurrenceEnd)
			}
		})
	}
}

func TestExpand_WeeklyFourWeekWindow(t *testing.T) {
	start := date(2025, time.January, 6, 19)
	e := newEvent("Weekly call", start, models.RecurrenceWeekly, nil)

	got := Expander{}.Expand(e, start, start.AddDate(0, 0, 28).Add(-time.Nanosecond))

	require.Len(t, got, 4)
	for i := 1; i < len(got); i++ {
		assert.Equal(t, 7*24*time.Hour, got[i].OccurrenceDate.Sub(got[i-1].OccurrenceDate))
	}
	assert.Equal(t, start, got[0].OccurrenceDate)
}

func TestExpand_WeeklyWindowFarFromStart(t *testing.T) {
	start := date(2015, time.January, 5, 9)
	e := newEvent("Standup", start, models.RecurrenceWeekly, nil)

	from, to := MonthRange(2025, time.June, time.UTC)
	got := Expander{MaxSteps: 10}.Expand(e, from, to)

	// June 2025 has five Mondays.
	require.Len(t, got, 5)
	assert.Equal(t, date(2025, time.June, 2, 9), got[0].OccurrenceDate)
	assert.Equal(t, date(2025, time.June, 30, 9), got[4].OccurrenceDate)
}

func TestExpand_MonthlyStopsAtRecurrenceEnd(t *testing.T) {
	start := date(2025, time.January, 15, 12)
	until := start.AddDate(0, 2, 0)
	e := newEvent("Town hall", start, models.RecurrenceMonthly, &until)

	got := Expander{}.Expand(e, start, start.AddDate(1, 0, 0))

	assert.Equal(t, []time.Time{
		start,
		date(2025, time.February, 15, 12),
		date(2025, time.March, 15, 12),
	}, dates(got))
}

func TestExpand_MonthlyClampsWithoutDrift(t *testing.T) {
	start := date(2024, time.January, 31, 10)
	e := newEvent("Month end", start, models.RecurrenceMonthly, nil)

	got := Expander{}.Expand(e, start, date(2024, time.May, 31, 23))

	assert.Equal(t, []time.Time{
		date(2024, time.January, 31, 10),
		date(2024, time.February, 29, 10),
		date(2024, time.March, 31, 10),
		date(2024, time.April, 30, 10),
		date(2024, time.May, 31, 10),
	}, dates(got))
}

func TestExpand_MonthlySkipsToWindow(t *testing.T) {
	start := date(2020, time.August, 31, 8)
	e := newEvent("Review", start, models.RecurrenceMonthly, nil)

	from, to := MonthRange(2025, time.February, time.UTC)
	got := Expander{MaxSteps: 3}.Expand(e, from, to)

	assert.Equal(t, []time.Time{date(2025, time.February, 28, 8)}, dates(got))
}

func TestExpand_RecurrenceEndBeforeWindow(t *testing.T) {
	start := date(2025, time.January, 1, 8)
	until := date(2025, time.January, 20, 0)
	e := newEvent("Short run", start, models.RecurrenceWeekly, &until)

	from, to := MonthRange(2025, time.February, time.UTC)
	assert.Empty(t, Expander{}.Expand(e, from, to))
}

func TestExpand_StartsAfterWindow(t *testing.T) {
	e := newEvent("Later", date(2026, time.January, 1, 8), models.RecurrenceWeekly, nil)
	from, to := MonthRange(2025, time.December, time.UTC)
	assert.Empty(t, Expander{}.Expand(e, from, to))
}

func TestExpand_OpenSeriesStopsAtRangeEnd(t *testing.T) {
	start := date(2025, time.January, 1, 8)
	e := newEvent("Open", start, models.RecurrenceWeekly, nil)
	got := Expander{HorizonMonths: 1}.Expand(e, start, start.AddDate(0, 0, 14))
	assert.Len(t, got, 3)
}

func TestExpand_MaxStepsCapsWork(t *testing.T) {
	start := date(2025, time.January, 1, 8)
	e := newEvent("Capped", start, models.RecurrenceWeekly, nil)
	got := Expander{MaxSteps: 2}.Expand(e, start, start.AddDate(1, 0, 0))
	assert.Len(t, got, 2)
}

func TestExpand_InvertedRange(t *testing.T) {
	e := newEvent("x", date(2025, time.January, 1, 8), models.RecurrenceNone, nil)
	assert.Nil(t, Expander{}.Expand(e, date(2025, time.February, 1, 0), date(2025, time.January, 1, 0)))
	assert.Nil(t, Expander{}.Expand(nil, date(2025, time.January, 1, 0), date(2025, time.February, 1, 0)))
}

func TestExpandAll_DeterministicOrder(t *testing.T) {
	day := date(2025, time.March, 3, 18)
	weekly := newEvent("Weekly", day.AddDate(0, 0, -7), models.RecurrenceWeekly, nil)
	alpha := newEvent("Alpha", day, models.RecurrenceNone, nil)
	beta := newEvent("Beta", day, models.RecurrenceNone, nil)
	early := newEvent("Early", date(2025, time.March, 1, 9), models.RecurrenceNone, nil)

	from, to := MonthRange(2025, time.March, time.UTC)
	want := []string{"Early", "Weekly", "Alpha", "Beta"}
	for _, in := range [][]*models.Event{
		{beta, alpha, weekly, early},
		{early, weekly, alpha, beta},
		{alpha, early, beta, weekly},
	} {
		got := Expander{}.ExpandAll(in, from, to)
		var titles []string
		for _, o := range got[:4] {
			titles = append(titles, o.Event.Title)
		}
		assert.Equal(t, want, titles)
	}
}

func TestExpandAll_TieBreaksOnID(t *testing.T) {
	day := date(2025, time.March, 3, 18)
	a := newEvent("Same", day, models.RecurrenceNone, nil)
	b := newEvent("Same", day, models.RecurrenceNone, nil)
	a.ID = uuid.MustParse("00000000-0000-0000-0000-000000000001")
	b.ID = uuid.MustParse("00000000-0000-0000-0000-000000000002")

	from, to := MonthRange(2025, time.March, time.UTC)
	got := Expander{}.ExpandAll([]*models.Event{b, a}, from, to)
	require.Len(t, got, 2)
	assert.Equal(t, a.ID, got[0].Event.ID)
}

func TestAddMonthsClamped(t *testing.T) {
	assert.Equal(t, date(2023, time.February, 28, 0), AddMonthsClamped(date(2023, time.January, 31, 0), 1))
	assert.Equal(t, date(2024, time.February, 29, 0), AddMonthsClamped(date(2024, time.January, 30, 0), 1))
	assert.Equal(t, date(2025, time.January, 31, 0), AddMonthsClamped(date(2024, time.December, 31, 0), 1))
	assert.Equal(t, date(2024, time.November, 30, 0), AddMonthsClamped(date(2024, time.August, 31, 0), 3))
}

func TestMonthRange(t *testing.T) {
	from, to := MonthRange(2025, time.February, time.UTC)
	assert.Equal(t, date(2025, time.February, 1, 0), from)
	assert.Equal(t, date(2025, time.March, 1, 0).Add(-time.Nanosecond), to)
}

func newYork(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	return loc
}

func localDates(occ []models.EventOccurrence) []string {
	out := make([]string, len(occ))
	for i, o := range occ {
		out[i] = o.OccurrenceDate.Format(time.RFC3339)
	}
	return out
}

func TestExpand_CommunityTimeZone(t *testing.T) {
	ny := newYork(t)
	tests := []struct {
		name     string
		start    time.Time
		rec      models.Recurrence
		year     int
		from, to time.Month
		want     []string
	}{
		{
			name:  "weekly keeps wall clock across spring forward",
			start: time.Date(2025, time.March, 4, 18, 0, 0, 0, ny),
			rec:   models.RecurrenceWeekly,
			year:  2025, from: time.March, to: time.March,
			want: []string{
				"2025-03-04T18:00:00-05:00",
				"2025-03-11T18:00:00-04:00",
				"2025-03-18T18:00:00-04:00",
				"2025-03-25T18:00:00-04:00",
			},
		},
		{
			name:  "weekly keeps wall clock across fall back",
			start: time.Date(2025, time.October, 28, 18, 0, 0, 0, ny),
			rec:   models.RecurrenceWeekly,
			year:  2025, from: time.November, to: time.November,
			want: []string{
				"2025-11-04T18:00:00-05:00",
				"2025-11-11T18:00:00-05:00",
				"2025-11-18T18:00:00-05:00",
				"2025-11-25T18:00:00-05:00",
			},
		},
		{
			name:  "monthly clamps on the local date",
			start: time.Date(2025, time.January, 30, 20, 0, 0, 0, ny),
			rec:   models.RecurrenceMonthly,
			year:  2025, from: time.February, to: time.February,
			want: []string{"2025-02-28T20:00:00-05:00"},
		},
		{
			name:  "monthly returns to the series day",
			start: time.Date(2025, time.January, 30, 20, 0, 0, 0, ny),
			rec:   models.RecurrenceMonthly,
			year:  2025, from: time.January, to: time.March,
			want: []string{
				"2025-01-30T20:00:00-05:00",
				"2025-02-28T20:00:00-05:00",
				"2025-03-30T20:00:00-04:00",
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Stored the way the database hands it back.
			e := newEvent("Meetup", tt.start.UTC(), tt.rec, nil)
			from, _ := MonthRange(tt.year, tt.from, ny)
			_, to := MonthRange(tt.year, tt.to, ny)

			got := Expander{}.In(ny).Expand(e, from, to)

			assert.Equal(t, tt.want, localDates(got))
			for _, o := range got {
				assert.Equal(t, 90*time.Minute, o.OccurrenceEnd.Sub(o.OccurrenceDate))
			}
		})
	}
}

func TestExpand_NoLocationUsesEventZone(t *testing.T) {
	ny := newYork(t)
	// 20:00 New York on Jan 30 is Jan 31 in UTC, so the series clamps on the UTC date.
	e := newEvent("Meetup", time.Date(2025, time.January, 30, 20, 0, 0, 0, ny).UTC(), models.RecurrenceMonthly, nil)

	got := Expander{}.Expand(e, date(2025, time.February, 1, 0), date(2025, time.February, 28, 23))

	assert.Equal(t, []string{"2025-02-28T01:00:00Z"}, localDates(got))
}
