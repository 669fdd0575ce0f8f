package model

import (
	"time"

	"github.com/google/uuid"
)

type ReminderStatus string

const (
	ReminderStatusPending ReminderStatus = "pending"
	ReminderStatusTaken   ReminderStatus = "taken"
	ReminderStatusMissed  ReminderStatus = "missed"
)

// Reminder is a single scheduled dose instance. Pre-reminders are ordinary
// reminder records a few minutes ahead of the dose they warn about.
//
// RespondedAt is null exactly while the reminder is pending. A missed
// reminder can be recycled back to pending at a shifted time; the row keeps
// RescheduledCount and LastMissedAt so the most recent miss survives the
// recycle.
type Reminder struct {
	Base
	MedicineID       uuid.UUID      `db:"medicine_id" json:"medicine_id"`
	PatientID        uuid.UUID      `db:"patient_id" json:"patient_id"`
	RemindAt         time.Time      `db:"remind_at" json:"remind_at"`
	Status           ReminderStatus `db:"status" json:"status"`
	RespondedAt      *time.Time     `db:"responded_at" json:"responded_at,omitempty"`
	IsPreReminder    bool           `db:"is_pre_reminder" json:"is_pre_reminder"`
	RescheduledCount int            `db:"rescheduled_count" json:"rescheduled_count"`
	LastMissedAt     *time.Time     `db:"last_missed_at" json:"last_missed_at,omitempty"`
	NotificationID   *string        `db:"notification_id" json:"notification_id,omitempty"`
}

// Overdue reports whether a pending reminder has aged past the grace window.
func (r *Reminder) Overdue(now time.Time, grace time.Duration) bool {
	return r.Status == ReminderStatusPending && now.Sub(r.RemindAt) > grace
}

// ResponseDelay returns how late the response was relative to the scheduled
// time. Zero when the reminder has not been responded to.
func (r *Reminder) ResponseDelay() time.Duration {
	if r.RespondedAt == nil {
		return 0
	}
	return r.RespondedAt.Sub(r.RemindAt)
}

type ReminderFilters struct {
	PatientID  uuid.UUID
	MedicineID uuid.UUID
	Status     ReminderStatus
	From       time.Time
	To         time.Time
	Limit      int
}
