package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/medtrack/adherence-api/internal/model"
	apperrors "github.com/medtrack/adherence-api/pkg/errors"
)

func (r *reminderRepository) Create(ctx context.Context, reminder *model.Reminder) error {
	query := `
		INSERT INTO reminders (
			id, medicine_id, patient_id, remind_at, status,
			is_pre_reminder, rescheduled_count, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	reminder.ID = uuid.New()
	reminder.CreatedAt = time.Now()
	reminder.UpdatedAt = time.Now()

	_, err := r.db.ExecContext(ctx, query,
		reminder.ID,
		reminder.MedicineID,
		reminder.PatientID,
		reminder.RemindAt,
		reminder.Status,
		reminder.IsPreReminder,
		reminder.RescheduledCount,
		reminder.CreatedAt,
		reminder.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create reminder: %w", err)
	}
	return nil
}

func (r *reminderRepository) CreateIfAbsent(ctx context.Context, reminder *model.Reminder) (bool, error) {
	query := `
		INSERT INTO reminders (
			id, medicine_id, patient_id, remind_at, status,
			is_pre_reminder, rescheduled_count, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (patient_id, medicine_id, remind_at) DO NOTHING
	`
	reminder.ID = uuid.New()
	reminder.CreatedAt = time.Now()
	reminder.UpdatedAt = time.Now()

	result, err := r.db.ExecContext(ctx, query,
		reminder.ID,
		reminder.MedicineID,
		reminder.PatientID,
		reminder.RemindAt,
		reminder.Status,
		reminder.IsPreReminder,
		reminder.RescheduledCount,
		reminder.CreatedAt,
		reminder.UpdatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to create reminder: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows > 0, nil
}

const reminderColumns = `
	id, medicine_id, patient_id, remind_at, status, responded_at,
	is_pre_reminder, rescheduled_count, last_missed_at, notification_id,
	created_at, updated_at
`

func (r *reminderRepository) Get(ctx context.Context, id uuid.UUID) (*model.Reminder, error) {
	query := `SELECT ` + reminderColumns + ` FROM reminders WHERE id = $1`

	var reminder model.Reminder
	err := r.db.GetContext(ctx, &reminder, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("reminder", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get reminder: %w", err)
	}
	return &reminder, nil
}

func (r *reminderRepository) GetForPatient(ctx context.Context, id, patientID uuid.UUID) (*model.Reminder, error) {
	query := `SELECT ` + reminderColumns + ` FROM reminders WHERE id = $1 AND patient_id = $2`

	var reminder model.Reminder
	err := r.db.GetContext(ctx, &reminder, query, id, patientID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("reminder", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get reminder: %w", err)
	}
	return &reminder, nil
}

func (r *reminderRepository) List(ctx context.Context, filters *model.ReminderFilters) ([]*model.Reminder, error) {
	query := `SELECT ` + reminderColumns + ` FROM reminders WHERE patient_id = $1`
	args := []interface{}{filters.PatientID}
	argCount := 2

	if filters.MedicineID != uuid.Nil {
		query += fmt.Sprintf(" AND medicine_id = $%d", argCount)
		args = append(args, filters.MedicineID)
		argCount++
	}

	if filters.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argCount)
		args = append(args, filters.Status)
		argCount++
	}

	if !filters.From.IsZero() {
		query += fmt.Sprintf(" AND remind_at >= $%d", argCount)
		args = append(args, filters.From)
		argCount++
	}

	if !filters.To.IsZero() {
		query += fmt.Sprintf(" AND remind_at <= $%d", argCount)
		args = append(args, filters.To)
		argCount++
	}

	query += " ORDER BY remind_at ASC"

	if filters.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argCount)
		args = append(args, filters.Limit)
	}

	var reminders []*model.Reminder
	err := r.db.SelectContext(ctx, &reminders, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list reminders: %w", err)
	}
	return reminders, nil
}

func (r *reminderRepository) MarkStatus(ctx context.Context, id uuid.UUID, from, to model.ReminderStatus, respondedAt time.Time) (bool, error) {
	query := `
		UPDATE reminders
		SET status = $1, responded_at = $2, updated_at = $3
		WHERE id = $4 AND status = $5
	`
	result, err := r.db.ExecContext(ctx, query, to, respondedAt, time.Now(), id, from)
	if err != nil {
		return false, fmt.Errorf("failed to update reminder status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows > 0, nil
}

func (r *reminderRepository) Recycle(ctx context.Context, id uuid.UUID, newTime, missedAt time.Time) (bool, error) {
	query := `
		UPDATE reminders
		SET remind_at = $1, status = $2, responded_at = NULL,
			rescheduled_count = rescheduled_count + 1,
			last_missed_at = $3, updated_at = $4
		WHERE id = $5 AND status = $6
	`
	result, err := r.db.ExecContext(ctx, query,
		newTime, model.ReminderStatusPending, missedAt, time.Now(),
		id, model.ReminderStatusMissed,
	)
	if err != nil {
		// The generator creates upcoming slots ahead of time, so the target
		// (patient, medicine, remind_at) triple may already exist.
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return false, apperrors.Conflict("reminder slot already scheduled", err)
		}
		return false, fmt.Errorf("failed to recycle reminder: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows > 0, nil
}

func (r *reminderRepository) ListPendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]*model.Reminder, error) {
	query := `
		SELECT ` + reminderColumns + `
		FROM reminders
		WHERE status = $1 AND remind_at < $2
		ORDER BY remind_at ASC
		LIMIT $3
	`
	var reminders []*model.Reminder
	err := r.db.SelectContext(ctx, &reminders, query, model.ReminderStatusPending, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list overdue reminders: %w", err)
	}
	return reminders, nil
}

func (r *reminderRepository) ListPendingAfter(ctx context.Context, medicineID uuid.UUID, after time.Time) ([]*model.Reminder, error) {
	query := `
		SELECT ` + reminderColumns + `
		FROM reminders
		WHERE medicine_id = $1 AND status = $2 AND remind_at > $3
		ORDER BY remind_at ASC
	`
	var reminders []*model.Reminder
	err := r.db.SelectContext(ctx, &reminders, query, medicineID, model.ReminderStatusPending, after)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending reminders: %w", err)
	}
	return reminders, nil
}

func (r *reminderRepository) ShiftPendingAfter(ctx context.Context, medicineID uuid.UUID, after time.Time, delta time.Duration) (int64, error) {
	query := `
		UPDATE reminders
		SET remind_at = remind_at + $1::interval, updated_at = $2
		WHERE medicine_id = $3 AND status = $4 AND remind_at > $5
	`
	interval := fmt.Sprintf("%d seconds", int64(delta.Seconds()))
	result, err := r.db.ExecContext(ctx, query,
		interval, time.Now(), medicineID, model.ReminderStatusPending, after)
	if err != nil {
		return 0, fmt.Errorf("failed to shift pending reminders: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows, nil
}

func (r *reminderRepository) ListRecentTaken(ctx context.Context, patientID, medicineID uuid.UUID, limit int) ([]*model.Reminder, error) {
	query := `
		SELECT ` + reminderColumns + `
		FROM reminders
		WHERE patient_id = $1 AND medicine_id = $2
			AND status = $3 AND responded_at IS NOT NULL
		ORDER BY responded_at DESC
		LIMIT $4
	`
	var reminders []*model.Reminder
	err := r.db.SelectContext(ctx, &reminders, query, patientID, medicineID, model.ReminderStatusTaken, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list taken reminders: %w", err)
	}
	return reminders, nil
}

func (r *reminderRepository) DeleteForMedicine(ctx context.Context, medicineID uuid.UUID) error {
	query := `DELETE FROM reminders WHERE medicine_id = $1`
	if _, err := r.db.ExecContext(ctx, query, medicineID); err != nil {
		return fmt.Errorf("failed to delete reminders: %w", err)
	}
	return nil
}
