package notification

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/medtrack/adherence-api/internal/email"
	"github.com/medtrack/adherence-api/internal/model"
	"github.com/medtrack/adherence-api/internal/repository"
	"github.com/medtrack/adherence-api/pkg/logger"
	"github.com/medtrack/adherence-api/pkg/messaging"
	"github.com/medtrack/adherence-api/pkg/metrics"
)

const (
	remindersChannel = "reminders"
	dispatchTimeout  = 10 * time.Second
)

// Service is the notification dispatcher. Every method is fire-and-forget:
// delivery runs on its own goroutine with a detached context, and failures
// are logged and swallowed. Notification problems must never affect
// reminder state.
type Service struct {
	broker   messaging.Broker
	emailSvc email.Service
	patients repository.PatientRepository
	logger   *logger.Logger
	metrics  *metrics.Metrics
}

func NewService(
	broker messaging.Broker,
	emailSvc email.Service,
	patients repository.PatientRepository,
	logger *logger.Logger,
	m *metrics.Metrics,
) *Service {
	return &Service{
		broker:   broker,
		emailSvc: emailSvc,
		patients: patients,
		logger:   logger,
		metrics:  m,
	}
}

func (s *Service) NotifyReschedule(ctx context.Context, reminder *model.Reminder, newTime time.Time, note string) {
	event := &model.NotificationEvent{
		ID:         uuid.New(),
		Type:       model.NotificationTypeRescheduled,
		PatientID:  reminder.PatientID,
		MedicineID: reminder.MedicineID,
		ReminderID: reminder.ID,
		RemindAt:   newTime,
		Note:       note,
		CreatedAt:  time.Now(),
	}
	s.publish(event)
}

func (s *Service) NotifyPreReminder(ctx context.Context, reminder *model.Reminder) {
	event := &model.NotificationEvent{
		ID:         uuid.New(),
		Type:       model.NotificationTypePreReminder,
		PatientID:  reminder.PatientID,
		MedicineID: reminder.MedicineID,
		ReminderID: reminder.ID,
		RemindAt:   reminder.RemindAt,
		CreatedAt:  time.Now(),
	}
	s.publish(event)
}

func (s *Service) NotifyCaregiver(ctx context.Context, medicine *model.Medicine, missedCount int64) {
	event := &model.NotificationEvent{
		ID:         uuid.New(),
		Type:       model.NotificationTypeCaregiverMiss,
		PatientID:  medicine.PatientID,
		MedicineID: medicine.ID,
		Note:       fmt.Sprintf("%s has been missed %d times", medicine.Name, missedCount),
		CreatedAt:  time.Now(),
	}
	s.publish(event)

	go func() {
		dctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
		defer cancel()

		patient, err := s.patients.Get(dctx, medicine.PatientID)
		if err != nil {
			s.logger.Error(err, "failed to load patient for caregiver email",
				"patient_id", medicine.PatientID.String())
			return
		}
		if patient.CaregiverEmail == nil || *patient.CaregiverEmail == "" {
			return
		}

		subject := fmt.Sprintf("Missed doses of %s", medicine.Name)
		body := fmt.Sprintf(
			"%s has missed %d doses of %s (%s). You may want to check in.",
			patient.Name, missedCount, medicine.Name, medicine.Dosage,
		)
		if err := s.emailSvc.SendCustom(dctx, *patient.CaregiverEmail, subject, body); err != nil {
			s.metrics.NotificationFailures.Inc()
			s.logger.Error(err, "failed to send caregiver email",
				"patient_id", patient.ID.String())
		}
	}()
}

// publish pushes the event to the reminders channel on a detached goroutine.
func (s *Service) publish(event *model.NotificationEvent) {
	go func() {
		dctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
		defer cancel()

		if err := s.broker.Publish(dctx, remindersChannel, event); err != nil {
			s.metrics.NotificationFailures.Inc()
			s.logger.Error(err, "failed to publish notification event",
				"event_type", event.Type,
				"patient_id", event.PatientID.String())
		}
	}()
}
