package medicine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/medtrack/adherence-api/internal/model"
	"github.com/medtrack/adherence-api/internal/repository"
	apperrors "github.com/medtrack/adherence-api/pkg/errors"
	"github.com/medtrack/adherence-api/pkg/logger"
	"github.com/medtrack/adherence-api/pkg/validator"
)

// Service manages medicine records. Deleting a medicine cascades to its
// reminders; the aggregate counters belong to the scheduling engine and are
// never touched here.
type Service struct {
	repo      repository.MedicineRepository
	reminders repository.ReminderRepository
	adherence repository.AdherenceRepository
	validate  *validator.Validator
	logger    *logger.Logger
}

func NewService(
	repo repository.MedicineRepository,
	reminders repository.ReminderRepository,
	adherence repository.AdherenceRepository,
	logger *logger.Logger,
) *Service {
	return &Service{
		repo:      repo,
		reminders: reminders,
		adherence: adherence,
		validate:  validator.New(),
		logger:    logger,
	}
}

func (s *Service) CreateMedicine(ctx context.Context, patientID uuid.UUID, req *model.CreateMedicineRequest) (*model.Medicine, error) {
	if err := s.validate.Validate(req); err != nil {
		return nil, apperrors.BadRequest(err.Error(), err)
	}

	medicine := &model.Medicine{
		PatientID:    patientID,
		Name:         req.Name,
		Dosage:       req.Dosage,
		Frequency:    model.FrequencyType(req.Frequency),
		Times:        req.Times,
		Weekdays:     req.Weekdays,
		IntervalDays: req.IntervalDays,
		StartDate:    req.StartDate,
		EndDate:      req.EndDate,
	}

	if err := s.validateSchedule(medicine); err != nil {
		return nil, apperrors.BadRequest(err.Error(), err)
	}

	if err := s.repo.Create(ctx, medicine); err != nil {
		return nil, fmt.Errorf("failed to create medicine: %w", err)
	}
	return medicine, nil
}

func (s *Service) GetMedicine(ctx context.Context, patientID, id uuid.UUID) (*model.Medicine, error) {
	return s.repo.GetForPatient(ctx, id, patientID)
}

func (s *Service) ListMedicines(ctx context.Context, patientID uuid.UUID) ([]*model.Medicine, error) {
	medicines, err := s.repo.List(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("failed to list medicines: %w", err)
	}
	return medicines, nil
}

func (s *Service) UpdateMedicine(ctx context.Context, patientID, id uuid.UUID, req *model.UpdateMedicineRequest) (*model.Medicine, error) {
	medicine, err := s.repo.GetForPatient(ctx, id, patientID)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		medicine.Name = *req.Name
	}
	if req.Dosage != nil {
		medicine.Dosage = *req.Dosage
	}
	if req.Times != nil {
		medicine.Times = req.Times
	}
	if req.EndDate != nil {
		medicine.EndDate = req.EndDate
	}

	if err := s.validateSchedule(medicine); err != nil {
		return nil, apperrors.BadRequest(err.Error(), err)
	}

	if err := s.repo.Update(ctx, medicine); err != nil {
		return nil, fmt.Errorf("failed to update medicine: %w", err)
	}
	return medicine, nil
}

func (s *Service) DeleteMedicine(ctx context.Context, patientID, id uuid.UUID) error {
	if _, err := s.repo.GetForPatient(ctx, id, patientID); err != nil {
		return err
	}

	if err := s.reminders.DeleteForMedicine(ctx, id); err != nil {
		return fmt.Errorf("failed to delete reminders: %w", err)
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete medicine: %w", err)
	}
	return nil
}

func (s *Service) Snooze(ctx context.Context, patientID, id uuid.UUID, until time.Time) (*model.Medicine, error) {
	medicine, err := s.repo.GetForPatient(ctx, id, patientID)
	if err != nil {
		return nil, err
	}

	if until.Before(time.Now()) {
		return nil, apperrors.BadRequest("snooze time must be in the future", nil)
	}

	if err := s.repo.UpdateSnooze(ctx, id, &until); err != nil {
		return nil, fmt.Errorf("failed to snooze medicine: %w", err)
	}
	medicine.SnoozedUntil = &until
	return medicine, nil
}

func (s *Service) Unsnooze(ctx context.Context, patientID, id uuid.UUID) (*model.Medicine, error) {
	medicine, err := s.repo.GetForPatient(ctx, id, patientID)
	if err != nil {
		return nil, err
	}

	if err := s.repo.UpdateSnooze(ctx, id, nil); err != nil {
		return nil, fmt.Errorf("failed to clear snooze: %w", err)
	}
	medicine.SnoozedUntil = nil
	return medicine, nil
}

// AdherenceStats returns the lifetime taken/(taken+missed) ratio plus the
// latest engine risk score. The counters are the canonical adherence
// source; the risk score is a reporting-only snapshot from the analytics
// cache.
func (s *Service) AdherenceStats(ctx context.Context, patientID, id uuid.UUID) (*model.AdherenceStats, error) {
	medicine, err := s.repo.GetForPatient(ctx, id, patientID)
	if err != nil {
		return nil, err
	}

	stats := &model.AdherenceStats{
		MedicineID:  medicine.ID,
		TakenCount:  medicine.TakenCount,
		MissedCount: medicine.MissedCount,
	}
	if resolved := medicine.TakenCount + medicine.MissedCount; resolved > 0 {
		stats.AdherenceRate = float64(medicine.TakenCount) / float64(resolved)
	}

	record, err := s.adherence.Get(ctx, patientID, id)
	if err != nil {
		if !apperrors.IsNotFound(err) {
			s.logger.Error(err, "failed to load adherence record",
				"medicine_id", id.String())
		}
		return stats, nil
	}
	stats.LatestRisk = &record.RiskScore
	stats.AnalyzedAt = &record.AnalyzedAt

	return stats, nil
}

func (s *Service) validateSchedule(medicine *model.Medicine) error {
	if len(medicine.Times) == 0 {
		return fmt.Errorf("at least one dose time is required")
	}
	for _, t := range medicine.Times {
		if _, err := time.Parse("15:04", t); err != nil {
			return fmt.Errorf("invalid dose time %q, expected HH:MM", t)
		}
	}

	switch medicine.Frequency {
	case model.FrequencyWeekly:
		if len(medicine.Weekdays) == 0 {
			return fmt.Errorf("weekly schedule requires at least one weekday")
		}
	case model.FrequencyCustom:
		if medicine.IntervalDays < 1 {
			return fmt.Errorf("custom schedule requires interval_days >= 1")
		}
	case model.FrequencyDaily:
	default:
		return fmt.Errorf("unknown frequency %q", medicine.Frequency)
	}

	if medicine.EndDate != nil && medicine.EndDate.Before(medicine.StartDate) {
		return fmt.Errorf("end date cannot be before start date")
	}
	return nil
}
