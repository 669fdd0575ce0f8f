package model

import (
	"time"

	"github.com/google/uuid"
)

// AdherenceRecord is the upsert-only risk cache per (patient, medicine).
// The engine overwrites it on every missed-dose evaluation; last writer
// wins, the record is advisory.
type AdherenceRecord struct {
	PatientID  uuid.UUID `db:"patient_id" json:"patient_id"`
	MedicineID uuid.UUID `db:"medicine_id" json:"medicine_id"`
	RiskScore  float64   `db:"risk_score" json:"risk_score"`
	AnalyzedAt time.Time `db:"analyzed_at" json:"analyzed_at"`
}
