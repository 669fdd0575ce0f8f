package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/medtrack/adherence-api/internal/model"
	apperrors "github.com/medtrack/adherence-api/pkg/errors"
)

func (r *adherenceRepository) Upsert(ctx context.Context, record *model.AdherenceRecord) error {
	query := `
		INSERT INTO adherence_records (patient_id, medicine_id, risk_score, analyzed_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (patient_id, medicine_id)
		DO UPDATE SET risk_score = EXCLUDED.risk_score, analyzed_at = EXCLUDED.analyzed_at
	`
	_, err := r.db.ExecContext(ctx, query,
		record.PatientID,
		record.MedicineID,
		record.RiskScore,
		record.AnalyzedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert adherence record: %w", err)
	}
	return nil
}

func (r *adherenceRepository) Get(ctx context.Context, patientID, medicineID uuid.UUID) (*model.AdherenceRecord, error) {
	query := `
		SELECT patient_id, medicine_id, risk_score, analyzed_at
		FROM adherence_records
		WHERE patient_id = $1 AND medicine_id = $2
	`
	var record model.AdherenceRecord
	err := r.db.GetContext(ctx, &record, query, patientID, medicineID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("adherence record", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get adherence record: %w", err)
	}
	return &record, nil
}
