package postgres

import (
	"github.com/jmoiron/sqlx"

	"github.com/medtrack/adherence-api/internal/repository"
)

type reminderRepository struct {
	db *sqlx.DB
}

type medicineRepository struct {
	db *sqlx.DB
}

type adherenceRepository struct {
	db *sqlx.DB
}

type patientRepository struct {
	db *sqlx.DB
}

func NewReminderRepository(db *sqlx.DB) repository.ReminderRepository {
	return &reminderRepository{db: db}
}

func NewMedicineRepository(db *sqlx.DB) repository.MedicineRepository {
	return &medicineRepository{db: db}
}

func NewAdherenceRepository(db *sqlx.DB) repository.AdherenceRepository {
	return &adherenceRepository{db: db}
}

func NewPatientRepository(db *sqlx.DB) repository.PatientRepository {
	return &patientRepository{db: db}
}
