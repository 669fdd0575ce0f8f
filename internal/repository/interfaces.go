package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/medtrack/adherence-api/internal/model"
)

// CounterField names a medicine aggregate counter.
type CounterField string

const (
	CounterTaken  CounterField = "taken_count"
	CounterMissed CounterField = "missed_count"
)

// All repository interfaces in one file
type (
	// ReminderRepository handles reminder persistence. Status transitions
	// are conditional updates: they succeed only when the row is still in
	// the expected state, so concurrent transitions on the same reminder
	// serialize at the store.
	ReminderRepository interface {
		Create(ctx context.Context, reminder *model.Reminder) error
		// CreateIfAbsent inserts unless a reminder already exists for the
		// same (patient, medicine, remind_at) triple. Returns whether a row
		// was inserted.
		CreateIfAbsent(ctx context.Context, reminder *model.Reminder) (bool, error)
		Get(ctx context.Context, id uuid.UUID) (*model.Reminder, error)
		GetForPatient(ctx context.Context, id, patientID uuid.UUID) (*model.Reminder, error)
		List(ctx context.Context, filters *model.ReminderFilters) ([]*model.Reminder, error)
		// MarkStatus transitions from->to and stamps responded_at. Returns
		// false when the row was not in the `from` state.
		MarkStatus(ctx context.Context, id uuid.UUID, from, to model.ReminderStatus, respondedAt time.Time) (bool, error)
		// Recycle moves a missed reminder back to pending at a new time,
		// clearing responded_at and recording the miss. Returns false when
		// the row is no longer missed.
		Recycle(ctx context.Context, id uuid.UUID, newTime, missedAt time.Time) (bool, error)
		ListPendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]*model.Reminder, error)
		ListPendingAfter(ctx context.Context, medicineID uuid.UUID, after time.Time) ([]*model.Reminder, error)
		// ShiftPendingAfter moves every pending reminder of the medicine
		// later than `after` forward by delta. Returns rows affected.
		ShiftPendingAfter(ctx context.Context, medicineID uuid.UUID, after time.Time, delta time.Duration) (int64, error)
		ListRecentTaken(ctx context.Context, patientID, medicineID uuid.UUID, limit int) ([]*model.Reminder, error)
		DeleteForMedicine(ctx context.Context, medicineID uuid.UUID) error
	}

	MedicineRepository interface {
		Create(ctx context.Context, medicine *model.Medicine) error
		Get(ctx context.Context, id uuid.UUID) (*model.Medicine, error)
		GetForPatient(ctx context.Context, id, patientID uuid.UUID) (*model.Medicine, error)
		Update(ctx context.Context, medicine *model.Medicine) error
		Delete(ctx context.Context, id uuid.UUID) error
		List(ctx context.Context, patientID uuid.UUID) ([]*model.Medicine, error)
		ListActive(ctx context.Context, day time.Time) ([]*model.Medicine, error)
		// IncrementCounter atomically bumps a counter and returns the new
		// value.
		IncrementCounter(ctx context.Context, id uuid.UUID, field CounterField) (int64, error)
		UpdateSnooze(ctx context.Context, id uuid.UUID, until *time.Time) error
	}

	AdherenceRepository interface {
		Upsert(ctx context.Context, record *model.AdherenceRecord) error
		Get(ctx context.Context, patientID, medicineID uuid.UUID) (*model.AdherenceRecord, error)
	}

	PatientRepository interface {
		Create(ctx context.Context, patient *model.Patient) error
		Get(ctx context.Context, id uuid.UUID) (*model.Patient, error)
		GetByEmail(ctx context.Context, email string) (*model.Patient, error)
		Update(ctx context.Context, patient *model.Patient) error
	}
)
