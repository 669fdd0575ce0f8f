package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

type FrequencyType string

const (
	FrequencyDaily  FrequencyType = "daily"
	FrequencyWeekly FrequencyType = "weekly"
	FrequencyCustom FrequencyType = "custom"
)

// Medicine is a registered medication with its dosing schedule. The
// taken/missed counters are mutated only by the scheduling engine, through
// atomic increments in the store.
type Medicine struct {
	Base
	PatientID    uuid.UUID      `db:"patient_id" json:"patient_id"`
	Name         string         `db:"name" json:"name"`
	Dosage       string         `db:"dosage" json:"dosage"`
	Frequency    FrequencyType  `db:"frequency" json:"frequency"`
	Times        pq.StringArray `db:"times" json:"times"`
	Weekdays     pq.Int64Array  `db:"weekdays" json:"weekdays,omitempty"`
	IntervalDays int            `db:"interval_days" json:"interval_days,omitempty"`
	StartDate    time.Time      `db:"start_date" json:"start_date"`
	EndDate      *time.Time     `db:"end_date" json:"end_date,omitempty"`
	SnoozedUntil *time.Time     `db:"snoozed_until" json:"snoozed_until,omitempty"`
	TakenCount   int64          `db:"taken_count" json:"taken_count"`
	MissedCount  int64          `db:"missed_count" json:"missed_count"`
}

// ActiveOn reports whether the medicine schedule covers the given day.
func (m *Medicine) ActiveOn(day time.Time) bool {
	d := day.Truncate(24 * time.Hour)
	if d.Before(m.StartDate.Truncate(24 * time.Hour)) {
		return false
	}
	if m.EndDate != nil && d.After(m.EndDate.Truncate(24*time.Hour)) {
		return false
	}

	switch m.Frequency {
	case FrequencyWeekly:
		wd := int64(day.Weekday())
		for _, w := range m.Weekdays {
			if w == wd {
				return true
			}
		}
		return false
	case FrequencyCustom:
		if m.IntervalDays <= 0 {
			return false
		}
		days := int(d.Sub(m.StartDate.Truncate(24*time.Hour)).Hours() / 24)
		return days%m.IntervalDays == 0
	default:
		return true
	}
}

// Snoozed reports whether reminders for the medicine are suppressed at t.
func (m *Medicine) Snoozed(t time.Time) bool {
	return m.SnoozedUntil != nil && t.Before(*m.SnoozedUntil)
}

// DoseTimes resolves the configured times-of-day ("15:04" strings) against
// the given day, in the given location.
func (m *Medicine) DoseTimes(day time.Time, loc *time.Location) ([]time.Time, error) {
	times := make([]time.Time, 0, len(m.Times))
	for _, s := range m.Times {
		tod, err := time.Parse("15:04", s)
		if err != nil {
			return nil, fmt.Errorf("invalid time of day %q: %w", s, err)
		}
		times = append(times, time.Date(day.Year(), day.Month(), day.Day(),
			tod.Hour(), tod.Minute(), 0, 0, loc))
	}
	return times, nil
}

// CreateMedicineRequest carries both binding and validate tags: gin checks
// the former at the edge, the service re-checks the latter so non-HTTP
// callers get the same guarantees.
type CreateMedicineRequest struct {
	Name         string     `json:"name" binding:"required,max=200" validate:"required,max=200"`
	Dosage       string     `json:"dosage" binding:"required,max=100" validate:"required,max=100"`
	Frequency    string     `json:"frequency" binding:"required,oneof=daily weekly custom" validate:"required,oneof=daily weekly custom"`
	Times        []string   `json:"times" binding:"required,min=1,dive,len=5" validate:"required,min=1,dive,len=5"`
	Weekdays     []int64    `json:"weekdays" binding:"omitempty,dive,min=0,max=6" validate:"omitempty,dive,min=0,max=6"`
	IntervalDays int        `json:"interval_days" binding:"omitempty,min=1" validate:"omitempty,min=1"`
	StartDate    time.Time  `json:"start_date" binding:"required" validate:"required"`
	EndDate      *time.Time `json:"end_date"`
}

type UpdateMedicineRequest struct {
	Name    *string    `json:"name"`
	Dosage  *string    `json:"dosage"`
	Times   []string   `json:"times"`
	EndDate *time.Time `json:"end_date"`
}

type SnoozeRequest struct {
	Until time.Time `json:"until" binding:"required"`
}

// AdherenceStats is the derived taken/(taken+missed) summary for a medicine.
type AdherenceStats struct {
	MedicineID    uuid.UUID  `json:"medicine_id"`
	TakenCount    int64      `json:"taken_count"`
	MissedCount   int64      `json:"missed_count"`
	AdherenceRate float64    `json:"adherence_rate"`
	LatestRisk    *float64   `json:"latest_risk,omitempty"`
	AnalyzedAt    *time.Time `json:"analyzed_at,omitempty"`
}
