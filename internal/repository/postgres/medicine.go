package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/medtrack/adherence-api/internal/model"
	"github.com/medtrack/adherence-api/internal/repository"
	apperrors "github.com/medtrack/adherence-api/pkg/errors"
)

const medicineColumns = `
	id, patient_id, name, dosage, frequency, times, weekdays, interval_days,
	start_date, end_date, snoozed_until, taken_count, missed_count,
	created_at, updated_at
`

func (r *medicineRepository) Create(ctx context.Context, medicine *model.Medicine) error {
	query := `
		INSERT INTO medicines (
			id, patient_id, name, dosage, frequency, times, weekdays,
			interval_days, start_date, end_date, taken_count, missed_count,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, 0, 0, $11, $12)
	`
	medicine.ID = uuid.New()
	medicine.CreatedAt = time.Now()
	medicine.UpdatedAt = time.Now()

	_, err := r.db.ExecContext(ctx, query,
		medicine.ID,
		medicine.PatientID,
		medicine.Name,
		medicine.Dosage,
		medicine.Frequency,
		medicine.Times,
		medicine.Weekdays,
		medicine.IntervalDays,
		medicine.StartDate,
		medicine.EndDate,
		medicine.CreatedAt,
		medicine.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create medicine: %w", err)
	}
	return nil
}

func (r *medicineRepository) Get(ctx context.Context, id uuid.UUID) (*model.Medicine, error) {
	query := `SELECT ` + medicineColumns + ` FROM medicines WHERE id = $1`

	var medicine model.Medicine
	err := r.db.GetContext(ctx, &medicine, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("medicine", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get medicine: %w", err)
	}
	return &medicine, nil
}

func (r *medicineRepository) GetForPatient(ctx context.Context, id, patientID uuid.UUID) (*model.Medicine, error) {
	query := `SELECT ` + medicineColumns + ` FROM medicines WHERE id = $1 AND patient_id = $2`

	var medicine model.Medicine
	err := r.db.GetContext(ctx, &medicine, query, id, patientID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("medicine", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get medicine: %w", err)
	}
	return &medicine, nil
}

func (r *medicineRepository) Update(ctx context.Context, medicine *model.Medicine) error {
	query := `
		UPDATE medicines
		SET name = $1, dosage = $2, frequency = $3, times = $4,
			weekdays = $5, interval_days = $6, start_date = $7, end_date = $8,
			updated_at = $9
		WHERE id = $10
	`
	medicine.UpdatedAt = time.Now()

	result, err := r.db.ExecContext(ctx, query,
		medicine.Name,
		medicine.Dosage,
		medicine.Frequency,
		medicine.Times,
		medicine.Weekdays,
		medicine.IntervalDays,
		medicine.StartDate,
		medicine.EndDate,
		medicine.UpdatedAt,
		medicine.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update medicine: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return apperrors.NotFound("medicine", nil)
	}
	return nil
}

func (r *medicineRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM medicines WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete medicine: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return apperrors.NotFound("medicine", nil)
	}
	return nil
}

func (r *medicineRepository) List(ctx context.Context, patientID uuid.UUID) ([]*model.Medicine, error) {
	query := `SELECT ` + medicineColumns + ` FROM medicines WHERE patient_id = $1 ORDER BY created_at ASC`

	var medicines []*model.Medicine
	err := r.db.SelectContext(ctx, &medicines, query, patientID)
	if err != nil {
		return nil, fmt.Errorf("failed to list medicines: %w", err)
	}
	return medicines, nil
}

func (r *medicineRepository) ListActive(ctx context.Context, day time.Time) ([]*model.Medicine, error) {
	query := `
		SELECT ` + medicineColumns + `
		FROM medicines
		WHERE start_date <= $1 AND (end_date IS NULL OR end_date >= $1)
		ORDER BY created_at ASC
	`
	var medicines []*model.Medicine
	err := r.db.SelectContext(ctx, &medicines, query, day)
	if err != nil {
		return nil, fmt.Errorf("failed to list active medicines: %w", err)
	}
	return medicines, nil
}

func (r *medicineRepository) IncrementCounter(ctx context.Context, id uuid.UUID, field repository.CounterField) (int64, error) {
	var query string
	switch field {
	case repository.CounterTaken:
		query = `UPDATE medicines SET taken_count = taken_count + 1, updated_at = $1 WHERE id = $2 RETURNING taken_count`
	case repository.CounterMissed:
		query = `UPDATE medicines SET missed_count = missed_count + 1, updated_at = $1 WHERE id = $2 RETURNING missed_count`
	default:
		return 0, fmt.Errorf("unknown counter field: %s", field)
	}

	var count int64
	err := r.db.GetContext(ctx, &count, query, time.Now(), id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, apperrors.NotFound("medicine", err)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to increment %s: %w", field, err)
	}
	return count, nil
}

func (r *medicineRepository) UpdateSnooze(ctx context.Context, id uuid.UUID, until *time.Time) error {
	query := `UPDATE medicines SET snoozed_until = $1, updated_at = $2 WHERE id = $3`

	result, err := r.db.ExecContext(ctx, query, until, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to update snooze: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return apperrors.NotFound("medicine", nil)
	}
	return nil
}
