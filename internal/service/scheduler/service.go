package scheduler

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/medtrack/adherence-api/internal/config"
	"github.com/medtrack/adherence-api/internal/model"
	"github.com/medtrack/adherence-api/internal/repository"
	apperrors "github.com/medtrack/adherence-api/pkg/errors"
	"github.com/medtrack/adherence-api/pkg/logger"
	"github.com/medtrack/adherence-api/pkg/metrics"
)

// NeutralRisk is the fixed fallback used whenever the predictor is
// unavailable. Predictor failures never abort the surrounding operation.
const NeutralRisk = 0.5

// RiskPredictor estimates the probability in [0,1] that a dose in the given
// context (hour of day, weekday, minutes of delay) will be missed.
type RiskPredictor interface {
	Predict(ctx context.Context, hour, weekday int, delayMinutes float64) (float64, error)
}

// Dispatcher pushes alerts to the outside world. All methods are
// best-effort: implementations must not block the caller and must swallow
// their own failures.
type Dispatcher interface {
	NotifyReschedule(ctx context.Context, reminder *model.Reminder, newTime time.Time, note string)
	NotifyPreReminder(ctx context.Context, reminder *model.Reminder)
	NotifyCaregiver(ctx context.Context, medicine *model.Medicine, missedCount int64)
}

// Policy carries the scheduling knobs. The thresholds and offsets are
// configuration, not constants.
type Policy struct {
	HighRiskThreshold     float64
	ModerateRiskThreshold float64
	PreReminderLead       time.Duration
	HighRiskDelay         time.Duration
	ModerateRiskDelay     time.Duration
	GraceWindow           time.Duration
	RetryWindow           time.Duration
	RetryDelay            time.Duration
	HabitWindow           int
	HabitLateThreshold    time.Duration
	CaregiverAlertEvery   int64
	PredictTimeout        time.Duration
}

// DefaultPolicy returns the stock policy values.
func DefaultPolicy() Policy {
	return Policy{
		HighRiskThreshold:     0.75,
		ModerateRiskThreshold: 0.5,
		PreReminderLead:       15 * time.Minute,
		HighRiskDelay:         30 * time.Minute,
		ModerateRiskDelay:     15 * time.Minute,
		GraceWindow:           time.Hour,
		RetryWindow:           time.Hour,
		RetryDelay:            30 * time.Minute,
		HabitWindow:           5,
		HabitLateThreshold:    15 * time.Minute,
		CaregiverAlertEvery:   3,
		PredictTimeout:        3 * time.Second,
	}
}

// PolicyFromConfig maps the scheduler config section onto a Policy.
func PolicyFromConfig(cfg config.SchedulerConfig, predictTimeout time.Duration) Policy {
	return Policy{
		HighRiskThreshold:     cfg.HighRiskThreshold,
		ModerateRiskThreshold: cfg.ModerateRiskThreshold,
		PreReminderLead:       cfg.PreReminderLead,
		HighRiskDelay:         cfg.HighRiskDelay,
		ModerateRiskDelay:     cfg.ModerateRiskDelay,
		GraceWindow:           cfg.GraceWindow,
		RetryWindow:           cfg.RetryWindow,
		RetryDelay:            cfg.RetryDelay,
		HabitWindow:           cfg.HabitWindow,
		HabitLateThreshold:    cfg.HabitLateThreshold,
		CaregiverAlertEvery:   cfg.CaregiverAlertEvery,
		PredictTimeout:        predictTimeout,
	}
}

// Service is the adaptive scheduling engine. It owns every reminder
// lifecycle transition, risk-based pre-reminder injection, missed-dose
// rescheduling, and habit-based time shifting.
//
// The engine holds no state of its own between invocations: every decision
// re-reads current store state, and same-record races are resolved by the
// store's conditional updates.
type Service struct {
	reminders  repository.ReminderRepository
	medicines  repository.MedicineRepository
	adherence  repository.AdherenceRepository
	predictor  RiskPredictor
	dispatcher Dispatcher
	policy     Policy
	metrics    *metrics.Metrics
	logger     *logger.Logger
	now        func() time.Time
}

func NewService(
	reminders repository.ReminderRepository,
	medicines repository.MedicineRepository,
	adherence repository.AdherenceRepository,
	predictor RiskPredictor,
	dispatcher Dispatcher,
	policy Policy,
	logger *logger.Logger,
	m *metrics.Metrics,
) *Service {
	return &Service{
		reminders:  reminders,
		medicines:  medicines,
		adherence:  adherence,
		predictor:  predictor,
		dispatcher: dispatcher,
		policy:     policy,
		metrics:    m,
		logger:     logger,
		now:        time.Now,
	}
}

// MarkTaken transitions a pending reminder to taken. Repeat calls on an
// already-terminal reminder are no-op successes returning the stored record;
// counters are bumped at most once per transition.
func (s *Service) MarkTaken(ctx context.Context, patientID, reminderID uuid.UUID) (*model.Reminder, error) {
	reminder, err := s.reminders.GetForPatient(ctx, reminderID, patientID)
	if err != nil {
		return nil, err
	}

	if reminder.Status != model.ReminderStatusPending {
		return reminder, nil
	}

	now := s.now()
	ok, err := s.reminders.MarkStatus(ctx, reminder.ID, model.ReminderStatusPending, model.ReminderStatusTaken, now)
	if err != nil {
		return nil, fmt.Errorf("failed to mark reminder taken: %w", err)
	}
	if !ok {
		// Lost the race against another transition; return current state.
		return s.reminders.GetForPatient(ctx, reminderID, patientID)
	}

	reminder.Status = model.ReminderStatusTaken
	reminder.RespondedAt = &now
	s.metrics.DosesTaken.Inc()

	if _, err := s.medicines.IncrementCounter(ctx, reminder.MedicineID, repository.CounterTaken); err != nil {
		s.logger.Error(err, "failed to increment taken count",
			"medicine_id", reminder.MedicineID.String())
	}

	if err := s.applyHabitShift(ctx, reminder); err != nil {
		s.logger.Error(err, "habit learning failed",
			"reminder_id", reminder.ID.String())
	}

	return reminder, nil
}

// MarkMissed transitions a pending reminder to missed and runs the
// missed-dose handling: risk evaluation, pre-reminder injection, recycling
// the dose to a new time, and analytics upsert.
func (s *Service) MarkMissed(ctx context.Context, patientID, reminderID uuid.UUID) (*model.Reminder, error) {
	reminder, err := s.reminders.GetForPatient(ctx, reminderID, patientID)
	if err != nil {
		return nil, err
	}

	if reminder.Status != model.ReminderStatusPending {
		return reminder, nil
	}

	now := s.now()
	ok, err := s.reminders.MarkStatus(ctx, reminder.ID, model.ReminderStatusPending, model.ReminderStatusMissed, now)
	if err != nil {
		return nil, fmt.Errorf("failed to mark reminder missed: %w", err)
	}
	if !ok {
		return s.reminders.GetForPatient(ctx, reminderID, patientID)
	}

	reminder.Status = model.ReminderStatusMissed
	reminder.RespondedAt = &now

	s.recordMiss(ctx, reminder)
	s.handleMissedDose(ctx, reminder, now)

	return s.reminders.GetForPatient(ctx, reminderID, patientID)
}

// SweepOverdue force-transitions pending reminders older than the grace
// window to missed and runs missed-dose handling on each. Returns the number
// of reminders swept.
func (s *Service) SweepOverdue(ctx context.Context, batchSize int) (int, error) {
	now := s.now()
	cutoff := now.Add(-s.policy.GraceWindow)

	overdue, err := s.reminders.ListPendingBefore(ctx, cutoff, batchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to list overdue reminders: %w", err)
	}

	swept := 0
	for _, reminder := range overdue {
		ok, err := s.reminders.MarkStatus(ctx, reminder.ID, model.ReminderStatusPending, model.ReminderStatusMissed, now)
		if err != nil {
			s.logger.Error(err, "failed to sweep reminder", "reminder_id", reminder.ID.String())
			continue
		}
		if !ok {
			// Someone responded between the list and the update.
			continue
		}

		reminder.Status = model.ReminderStatusMissed
		respondedAt := now
		reminder.RespondedAt = &respondedAt

		s.recordMiss(ctx, reminder)
		s.handleMissedDose(ctx, reminder, now)
		swept++
	}

	return swept, nil
}

// recordMiss bumps the medicine miss counter and raises the caregiver alert
// on every Nth miss.
func (s *Service) recordMiss(ctx context.Context, reminder *model.Reminder) {
	s.metrics.DosesMissed.Inc()

	count, err := s.medicines.IncrementCounter(ctx, reminder.MedicineID, repository.CounterMissed)
	if err != nil {
		s.logger.Error(err, "failed to increment missed count",
			"medicine_id", reminder.MedicineID.String())
		return
	}

	if s.policy.CaregiverAlertEvery > 0 && count > 0 && count%s.policy.CaregiverAlertEvery == 0 {
		medicine, err := s.medicines.Get(ctx, reminder.MedicineID)
		if err != nil {
			s.logger.Error(err, "failed to load medicine for caregiver alert",
				"medicine_id", reminder.MedicineID.String())
			return
		}
		s.dispatcher.NotifyCaregiver(ctx, medicine, count)
	}
}

// handleMissedDose runs the ordered miss pipeline: risk evaluation,
// pre-reminder injection, recycling the dose to a risk-adjusted time,
// analytics upsert, retroactive arming, and the reschedule notification.
func (s *Service) handleMissedDose(ctx context.Context, reminder *model.Reminder, missedAt time.Time) {
	delay := missedAt.Sub(reminder.RemindAt).Minutes()
	if delay < 0 {
		delay = 0
	}

	risk := s.predictRisk(ctx, reminder.RemindAt, delay)

	// A missed dose can still arm a near-future pre-reminder; the injection
	// itself rejects windows already in the past.
	s.injectPreReminder(ctx, reminder, risk)

	newTime := s.rescheduleTime(reminder.RemindAt, risk, s.now())

	ok, err := s.reminders.Recycle(ctx, reminder.ID, newTime, missedAt)
	switch {
	case apperrors.IsConflict(err):
		// The target slot already exists, normally because the generator
		// materialized it ahead of time. The record stays missed and the
		// existing reminder covers the retry; the rest of the pipeline
		// still runs.
		s.logger.Info("recycle slot already scheduled",
			"reminder_id", reminder.ID.String(),
			"remind_at", newTime.Format(time.RFC3339))
	case err != nil:
		s.logger.Error(err, "failed to recycle missed reminder",
			"reminder_id", reminder.ID.String())
		return
	case !ok:
		// Another actor already resolved the record.
		return
	default:
		s.metrics.DosesRescheduled.Inc()
	}

	record := &model.AdherenceRecord{
		PatientID:  reminder.PatientID,
		MedicineID: reminder.MedicineID,
		RiskScore:  clampRisk(risk),
		AnalyzedAt: s.now(),
	}
	if err := s.adherence.Upsert(ctx, record); err != nil {
		s.logger.Error(err, "failed to upsert adherence record",
			"medicine_id", reminder.MedicineID.String())
	}

	s.armFutureDoses(ctx, reminder, risk)

	note := fmt.Sprintf("dose rescheduled after miss (risk %.2f)", clampRisk(risk))
	s.dispatcher.NotifyReschedule(ctx, reminder, newTime, note)
}

// rescheduleTime computes the recycled dose time from the miss risk.
func (s *Service) rescheduleTime(scheduled time.Time, risk float64, now time.Time) time.Time {
	switch {
	case risk > s.policy.HighRiskThreshold:
		return scheduled.Add(s.policy.HighRiskDelay)
	case risk > s.policy.ModerateRiskThreshold:
		return scheduled.Add(s.policy.ModerateRiskDelay)
	default:
		// Low risk: retry shortly if the dose window just passed, otherwise
		// fall through to the same time-of-day tomorrow.
		if now.Sub(scheduled) < s.policy.RetryWindow {
			return now.Add(s.policy.RetryDelay)
		}
		return nextDaySameTime(now, scheduled)
	}
}

// injectPreReminder creates an independent early-warning reminder ahead of a
// risky dose. The (patient, medicine, time) triple is unique in the store,
// so duplicate injections collapse to one record.
func (s *Service) injectPreReminder(ctx context.Context, reminder *model.Reminder, risk float64) {
	if risk <= s.policy.HighRiskThreshold {
		return
	}

	at := reminder.RemindAt.Add(-s.policy.PreReminderLead)
	if !at.After(s.now()) {
		return
	}

	pre := &model.Reminder{
		MedicineID:    reminder.MedicineID,
		PatientID:     reminder.PatientID,
		RemindAt:      at,
		Status:        model.ReminderStatusPending,
		IsPreReminder: true,
	}

	created, err := s.reminders.CreateIfAbsent(ctx, pre)
	if err != nil {
		s.logger.Error(err, "failed to inject pre-reminder",
			"medicine_id", reminder.MedicineID.String())
		return
	}
	if !created {
		return
	}

	s.metrics.PreRemindersInjected.Inc()
	s.dispatcher.NotifyPreReminder(ctx, pre)
}

// armFutureDoses re-applies pre-reminder injection to the medicine's other
// currently-pending future reminders, so a pattern of misses retroactively
// arms upcoming doses.
func (s *Service) armFutureDoses(ctx context.Context, reminder *model.Reminder, risk float64) {
	if risk <= s.policy.HighRiskThreshold {
		return
	}

	pending, err := s.reminders.ListPendingAfter(ctx, reminder.MedicineID, s.now())
	if err != nil {
		s.logger.Error(err, "failed to list future doses",
			"medicine_id", reminder.MedicineID.String())
		return
	}

	for _, future := range pending {
		if future.ID == reminder.ID || future.IsPreReminder {
			continue
		}
		s.injectPreReminder(ctx, future, risk)
	}
}

// applyHabitShift learns a per-medicine lateness habit from recent taken
// doses and shifts the remaining schedule forward when the patient is
// consistently late.
func (s *Service) applyHabitShift(ctx context.Context, reminder *model.Reminder) error {
	recent, err := s.reminders.ListRecentTaken(ctx, reminder.PatientID, reminder.MedicineID, s.policy.HabitWindow)
	if err != nil {
		return fmt.Errorf("failed to list recent taken reminders: %w", err)
	}

	// Samples may not yet include the transition that triggered us; count
	// it as the newest sample without growing past the configured window.
	samples := recent
	seen := false
	for _, r := range recent {
		if r.ID == reminder.ID {
			seen = true
			break
		}
	}
	if !seen {
		samples = append([]*model.Reminder{reminder}, recent...)
		if s.policy.HabitWindow > 0 && len(samples) > s.policy.HabitWindow {
			samples = samples[:s.policy.HabitWindow]
		}
	}

	if len(samples) < 3 {
		return nil
	}

	var total time.Duration
	for _, r := range samples {
		total += r.ResponseDelay()
	}
	avg := total / time.Duration(len(samples))

	if avg < s.policy.HabitLateThreshold {
		return nil
	}

	shifted, err := s.reminders.ShiftPendingAfter(ctx, reminder.MedicineID, s.now(), avg)
	if err != nil {
		return fmt.Errorf("failed to shift pending reminders: %w", err)
	}
	if shifted > 0 {
		s.metrics.HabitShifts.Inc()
		s.logger.Info("applied habit shift",
			"medicine_id", reminder.MedicineID.String(),
			"shift", avg.String(),
			"reminders", shifted)
	}
	return nil
}

// CreateDoseReminder creates a pending reminder for a dose and evaluates
// risk-based pre-reminder injection for it. Duplicate (patient, medicine,
// time) slots are suppressed. Returns whether a reminder was created.
func (s *Service) CreateDoseReminder(ctx context.Context, medicine *model.Medicine, at time.Time) (bool, error) {
	reminder := &model.Reminder{
		MedicineID: medicine.ID,
		PatientID:  medicine.PatientID,
		RemindAt:   at,
		Status:     model.ReminderStatusPending,
	}

	created, err := s.reminders.CreateIfAbsent(ctx, reminder)
	if err != nil {
		return false, fmt.Errorf("failed to create dose reminder: %w", err)
	}
	if !created {
		return false, nil
	}
	s.metrics.RemindersCreated.Inc()

	risk := s.predictRisk(ctx, at, 0)
	s.injectPreReminder(ctx, reminder, risk)

	return true, nil
}

// predictRisk queries the predictor with a bounded wait and falls back to
// the neutral value on any failure.
func (s *Service) predictRisk(ctx context.Context, at time.Time, delayMinutes float64) float64 {
	pctx := ctx
	if s.policy.PredictTimeout > 0 {
		var cancel context.CancelFunc
		pctx, cancel = context.WithTimeout(ctx, s.policy.PredictTimeout)
		defer cancel()
	}

	risk, err := s.predictor.Predict(pctx, at.Hour(), int(at.Weekday()), delayMinutes)
	if err != nil {
		s.metrics.PredictorFallbacks.Inc()
		s.logger.Warn("risk predictor unavailable, using neutral risk",
			"error", err.Error())
		return NeutralRisk
	}
	if math.IsNaN(risk) || math.IsInf(risk, 0) {
		s.metrics.PredictorFallbacks.Inc()
		return NeutralRisk
	}
	return clampRisk(risk)
}

func clampRisk(risk float64) float64 {
	if math.IsNaN(risk) || math.IsInf(risk, 0) {
		return NeutralRisk
	}
	return math.Max(0, math.Min(1, risk))
}
