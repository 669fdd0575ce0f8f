package model

import (
	"time"

	"github.com/google/uuid"
)

const (
	NotificationTypeDoseDue       = "dose_due"
	NotificationTypePreReminder   = "pre_reminder"
	NotificationTypeRescheduled   = "dose_rescheduled"
	NotificationTypeCaregiverMiss = "caregiver_missed_doses"
)

// NotificationEvent is the payload published to the reminders channel.
type NotificationEvent struct {
	ID         uuid.UUID `json:"id"`
	Type       string    `json:"type"`
	PatientID  uuid.UUID `json:"patient_id"`
	MedicineID uuid.UUID `json:"medicine_id"`
	ReminderID uuid.UUID `json:"reminder_id,omitempty"`
	RemindAt   time.Time `json:"remind_at,omitempty"`
	Note       string    `json:"note,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}
