package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/medtrack/adherence-api/internal/model"
	apperrors "github.com/medtrack/adherence-api/pkg/errors"
)

const patientColumns = `
	id, name, email, password_hash, timezone, caregiver_email,
	last_login_at, created_at, updated_at
`

func (r *patientRepository) Create(ctx context.Context, patient *model.Patient) error {
	query := `
		INSERT INTO patients (
			id, name, email, password_hash, timezone, caregiver_email,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	patient.ID = uuid.New()
	patient.CreatedAt = time.Now()
	patient.UpdatedAt = time.Now()

	_, err := r.db.ExecContext(ctx, query,
		patient.ID,
		patient.Name,
		patient.Email,
		patient.PasswordHash,
		patient.Timezone,
		patient.CaregiverEmail,
		patient.CreatedAt,
		patient.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create patient: %w", err)
	}
	return nil
}

func (r *patientRepository) Get(ctx context.Context, id uuid.UUID) (*model.Patient, error) {
	query := `SELECT ` + patientColumns + ` FROM patients WHERE id = $1`

	var patient model.Patient
	err := r.db.GetContext(ctx, &patient, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("patient", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get patient: %w", err)
	}
	return &patient, nil
}

func (r *patientRepository) GetByEmail(ctx context.Context, email string) (*model.Patient, error) {
	query := `SELECT ` + patientColumns + ` FROM patients WHERE email = $1`

	var patient model.Patient
	err := r.db.GetContext(ctx, &patient, query, email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("patient", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get patient by email: %w", err)
	}
	return &patient, nil
}

func (r *patientRepository) Update(ctx context.Context, patient *model.Patient) error {
	query := `
		UPDATE patients
		SET name = $1, timezone = $2, caregiver_email = $3,
			last_login_at = $4, updated_at = $5
		WHERE id = $6
	`
	patient.UpdatedAt = time.Now()

	result, err := r.db.ExecContext(ctx, query,
		patient.Name,
		patient.Timezone,
		patient.CaregiverEmail,
		patient.LastLoginAt,
		patient.UpdatedAt,
		patient.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update patient: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return apperrors.NotFound("patient", nil)
	}
	return nil
}
