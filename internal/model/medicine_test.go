package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMedicineActiveOn(t *testing.T) {
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC)

	daily := &Medicine{Frequency: FrequencyDaily, StartDate: start, EndDate: &end}
	assert.True(t, daily.ActiveOn(time.Date(2026, 3, 15, 9, 0, 0, 0, time.UTC)))
	assert.False(t, daily.ActiveOn(time.Date(2026, 2, 28, 9, 0, 0, 0, time.UTC)))
	assert.False(t, daily.ActiveOn(time.Date(2026, 4, 2, 9, 0, 0, 0, time.UTC)))

	weekly := &Medicine{
		Frequency: FrequencyWeekly,
		StartDate: start,
		Weekdays:  []int64{int64(time.Monday)},
	}
	// 2026-03-02 is a Monday.
	assert.True(t, weekly.ActiveOn(time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)))
	assert.False(t, weekly.ActiveOn(time.Date(2026, 3, 3, 9, 0, 0, 0, time.UTC)))

	everyThird := &Medicine{
		Frequency:    FrequencyCustom,
		StartDate:    start,
		IntervalDays: 3,
	}
	assert.True(t, everyThird.ActiveOn(start))
	assert.False(t, everyThird.ActiveOn(start.AddDate(0, 0, 1)))
	assert.True(t, everyThird.ActiveOn(start.AddDate(0, 0, 6)))
}

func TestMedicineSnoozed(t *testing.T) {
	now := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	until := now.Add(time.Hour)

	m := &Medicine{SnoozedUntil: &until}
	assert.True(t, m.Snoozed(now))
	assert.False(t, m.Snoozed(until.Add(time.Minute)))

	assert.False(t, (&Medicine{}).Snoozed(now))
}

func TestMedicineDoseTimes(t *testing.T) {
	m := &Medicine{Times: []string{"08:00", "20:30"}}
	day := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	times, err := m.DoseTimes(day, time.UTC)
	require.NoError(t, err)
	require.Len(t, times, 2)
	assert.True(t, times[0].Equal(time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)))
	assert.True(t, times[1].Equal(time.Date(2026, 3, 10, 20, 30, 0, 0, time.UTC)))

	bad := &Medicine{Times: []string{"8am"}}
	_, err = bad.DoseTimes(day, time.UTC)
	assert.Error(t, err)
}

func TestReminderOverdue(t *testing.T) {
	at := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	grace := time.Hour

	pending := &Reminder{Status: ReminderStatusPending, RemindAt: at}
	assert.False(t, pending.Overdue(at.Add(30*time.Minute), grace))
	assert.True(t, pending.Overdue(at.Add(2*time.Hour), grace))

	taken := &Reminder{Status: ReminderStatusTaken, RemindAt: at}
	assert.False(t, taken.Overdue(at.Add(2*time.Hour), grace))
}

func TestReminderResponseDelay(t *testing.T) {
	at := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	responded := at.Add(20 * time.Minute)

	r := &Reminder{RemindAt: at, RespondedAt: &responded}
	assert.Equal(t, 20*time.Minute, r.ResponseDelay())

	assert.Zero(t, (&Reminder{RemindAt: at}).ResponseDelay())
}
