package scheduler

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medtrack/adherence-api/internal/model"
	apperrors "github.com/medtrack/adherence-api/pkg/errors"
	"github.com/medtrack/adherence-api/pkg/logger"
	"github.com/medtrack/adherence-api/pkg/metrics"
)

type testEnv struct {
	svc        *Service
	reminders  *fakeReminderRepo
	medicines  *fakeMedicineRepo
	adherence  *fakeAdherenceRepo
	predictor  *fakePredictor
	dispatcher *fakeDispatcher
}

func newTestEnv(risk float64) *testEnv {
	env := &testEnv{
		reminders:  newFakeReminderRepo(),
		medicines:  newFakeMedicineRepo(),
		adherence:  newFakeAdherenceRepo(),
		predictor:  &fakePredictor{risk: risk},
		dispatcher: &fakeDispatcher{},
	}
	env.svc = NewService(
		env.reminders,
		env.medicines,
		env.adherence,
		env.predictor,
		env.dispatcher,
		DefaultPolicy(),
		logger.NewLogger(&logger.Config{Level: logger.ErrorLevel, Output: io.Discard}),
		metrics.NewNop(),
	)
	return env
}

func (env *testEnv) freeze(now time.Time) {
	env.svc.now = func() time.Time { return now }
}

func (env *testEnv) newMedicine() *model.Medicine {
	return env.medicines.add(&model.Medicine{
		PatientID: uuid.New(),
		Name:      "Metformin",
		Dosage:    "500mg",
		Frequency: model.FrequencyDaily,
		Times:     []string{"08:00"},
		StartDate: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	})
}

func (env *testEnv) newPending(m *model.Medicine, at time.Time) *model.Reminder {
	return env.reminders.add(&model.Reminder{
		MedicineID: m.ID,
		PatientID:  m.PatientID,
		RemindAt:   at,
		Status:     model.ReminderStatusPending,
	})
}

var doseTime = time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)

func TestMarkTakenIsIdempotent(t *testing.T) {
	env := newTestEnv(0.2)
	env.freeze(doseTime.Add(5 * time.Minute))

	m := env.newMedicine()
	r := env.newPending(m, doseTime)

	first, err := env.svc.MarkTaken(context.Background(), m.PatientID, r.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ReminderStatusTaken, first.Status)
	require.NotNil(t, first.RespondedAt)

	second, err := env.svc.MarkTaken(context.Background(), m.PatientID, r.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ReminderStatusTaken, second.Status)

	stored, err := env.medicines.Get(context.Background(), m.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stored.TakenCount, "repeat calls must not double-count")
}

func TestMarkTakenUnknownReminder(t *testing.T) {
	env := newTestEnv(0.2)

	_, err := env.svc.MarkTaken(context.Background(), uuid.New(), uuid.New())
	assert.True(t, apperrors.IsNotFound(err))
}

func TestMarkTakenWrongPatient(t *testing.T) {
	env := newTestEnv(0.2)
	env.freeze(doseTime)

	m := env.newMedicine()
	r := env.newPending(m, doseTime)

	_, err := env.svc.MarkTaken(context.Background(), uuid.New(), r.ID)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestMarkMissedHighRiskRecyclesAndArmsFutureDoses(t *testing.T) {
	env := newTestEnv(0.9)
	now := doseTime.Add(20 * time.Minute)
	env.freeze(now)

	m := env.newMedicine()
	missed := env.newPending(m, doseTime)
	future := env.newPending(m, doseTime.Add(12*time.Hour))

	got, err := env.svc.MarkMissed(context.Background(), m.PatientID, missed.ID)
	require.NoError(t, err)

	// Recycled in place: back to pending at the high-risk offset, history kept.
	assert.Equal(t, model.ReminderStatusPending, got.Status)
	assert.True(t, got.RemindAt.Equal(doseTime.Add(30*time.Minute)))
	assert.Equal(t, 1, got.RescheduledCount)
	require.NotNil(t, got.LastMissedAt)
	assert.True(t, got.LastMissedAt.Equal(now))
	assert.Nil(t, got.RespondedAt)

	stored, err := env.medicines.Get(context.Background(), m.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stored.MissedCount)

	record, err := env.adherence.Get(context.Background(), m.PatientID, m.ID)
	require.NoError(t, err)
	assert.InDelta(t, 0.9, record.RiskScore, 1e-9)

	// The future dose got an early warning 15 minutes ahead.
	require.Len(t, env.dispatcher.preReminders, 1)
	pre := env.dispatcher.preReminders[0]
	assert.True(t, pre.IsPreReminder)
	assert.True(t, pre.RemindAt.Equal(future.RemindAt.Add(-15*time.Minute)))

	require.Len(t, env.dispatcher.reschedules, 1)
	assert.True(t, env.dispatcher.reschedules[0].Equal(doseTime.Add(30*time.Minute)))
}

func TestMarkMissedModerateRisk(t *testing.T) {
	env := newTestEnv(0.6)
	env.freeze(doseTime.Add(20 * time.Minute))

	m := env.newMedicine()
	r := env.newPending(m, doseTime)

	got, err := env.svc.MarkMissed(context.Background(), m.PatientID, r.ID)
	require.NoError(t, err)

	assert.True(t, got.RemindAt.Equal(doseTime.Add(15*time.Minute)))
	assert.Empty(t, env.dispatcher.preReminders)
}

func TestMarkMissedLowRiskShortlyAfterDose(t *testing.T) {
	env := newTestEnv(0.3)
	now := doseTime.Add(20 * time.Minute)
	env.freeze(now)

	m := env.newMedicine()
	r := env.newPending(m, doseTime)

	got, err := env.svc.MarkMissed(context.Background(), m.PatientID, r.ID)
	require.NoError(t, err)

	assert.True(t, got.RemindAt.Equal(now.Add(30*time.Minute)))
}

func TestMarkMissedLowRiskLongAfterDose(t *testing.T) {
	env := newTestEnv(0.3)
	env.freeze(doseTime.Add(2 * time.Hour))

	m := env.newMedicine()
	r := env.newPending(m, doseTime)

	got, err := env.svc.MarkMissed(context.Background(), m.PatientID, r.ID)
	require.NoError(t, err)

	// Same time of day, next calendar day.
	want := time.Date(2026, 3, 11, 8, 0, 0, 0, time.UTC)
	assert.True(t, got.RemindAt.Equal(want))
}

func TestMarkMissedRecycleCollidesWithScheduledSlot(t *testing.T) {
	env := newTestEnv(0.3)
	env.freeze(doseTime.Add(2 * time.Hour))

	m := env.newMedicine()
	r := env.newPending(m, doseTime)
	// Tomorrow's dose is already on the schedule at the same time of day,
	// which is exactly where the low-risk branch recycles to.
	nextDay := env.newPending(m, doseTime.Add(24*time.Hour))

	got, err := env.svc.MarkMissed(context.Background(), m.PatientID, r.ID)
	require.NoError(t, err)

	// The record stays missed; the existing reminder covers the retry.
	assert.Equal(t, model.ReminderStatusMissed, got.Status)
	assert.Equal(t, 0, got.RescheduledCount)

	// The rest of the miss handling still runs: analytics, notification,
	// miss counter.
	record, err := env.adherence.Get(context.Background(), m.PatientID, m.ID)
	require.NoError(t, err)
	assert.InDelta(t, 0.3, record.RiskScore, 1e-9)

	require.Len(t, env.dispatcher.reschedules, 1)
	assert.True(t, env.dispatcher.reschedules[0].Equal(nextDay.RemindAt))

	stored, err := env.medicines.Get(context.Background(), m.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stored.MissedCount)
}

func TestMarkMissedIsIdempotentForResolvedReminders(t *testing.T) {
	env := newTestEnv(0.2)
	env.freeze(doseTime.Add(5 * time.Minute))

	m := env.newMedicine()
	r := env.newPending(m, doseTime)

	_, err := env.svc.MarkTaken(context.Background(), m.PatientID, r.ID)
	require.NoError(t, err)

	got, err := env.svc.MarkMissed(context.Background(), m.PatientID, r.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ReminderStatusTaken, got.Status)

	stored, err := env.medicines.Get(context.Background(), m.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), stored.MissedCount)
}

func TestPredictorFailureFallsBackToNeutralRisk(t *testing.T) {
	env := newTestEnv(0)
	env.predictor.err = errors.New("predictor down")
	now := doseTime.Add(20 * time.Minute)
	env.freeze(now)

	m := env.newMedicine()
	r := env.newPending(m, doseTime)
	env.newPending(m, doseTime.Add(12*time.Hour))

	got, err := env.svc.MarkMissed(context.Background(), m.PatientID, r.ID)
	require.NoError(t, err)

	// Neutral risk is not above either threshold: low-risk retry, no
	// pre-reminder injection anywhere.
	assert.True(t, got.RemindAt.Equal(now.Add(30*time.Minute)))
	assert.Empty(t, env.dispatcher.preReminders)

	record, err := env.adherence.Get(context.Background(), m.PatientID, m.ID)
	require.NoError(t, err)
	assert.InDelta(t, NeutralRisk, record.RiskScore, 1e-9)
}

func TestRescheduleTimeBoundaries(t *testing.T) {
	env := newTestEnv(0)

	tests := []struct {
		name string
		risk float64
		now  time.Time
		want time.Time
	}{
		{"just above high threshold", 0.76, doseTime.Add(10 * time.Minute), doseTime.Add(30 * time.Minute)},
		{"exactly high threshold is moderate", 0.75, doseTime.Add(10 * time.Minute), doseTime.Add(15 * time.Minute)},
		{"moderate", 0.6, doseTime.Add(10 * time.Minute), doseTime.Add(15 * time.Minute)},
		{"exactly moderate threshold is low", 0.5, doseTime.Add(10 * time.Minute), doseTime.Add(10 * time.Minute).Add(30 * time.Minute)},
		{"low risk within retry window", 0.3, doseTime.Add(20 * time.Minute), doseTime.Add(50 * time.Minute)},
		{"low risk past retry window", 0.3, doseTime.Add(2 * time.Hour), time.Date(2026, 3, 11, 8, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := env.svc.rescheduleTime(doseTime, tt.risk, tt.now)
			assert.True(t, got.Equal(tt.want), "got %v, want %v", got, tt.want)
		})
	}
}

func TestPreReminderInjectionDeduplicates(t *testing.T) {
	env := newTestEnv(0.9)
	env.freeze(doseTime.Add(-2 * time.Hour))

	m := env.newMedicine()
	r := env.newPending(m, doseTime)

	env.svc.injectPreReminder(context.Background(), r, 0.9)
	env.svc.injectPreReminder(context.Background(), r, 0.9)

	pending, err := env.reminders.ListPendingAfter(context.Background(), m.ID, doseTime.Add(-3*time.Hour))
	require.NoError(t, err)

	var pres int
	for _, p := range pending {
		if p.IsPreReminder {
			pres++
			assert.True(t, p.RemindAt.Equal(doseTime.Add(-15*time.Minute)))
		}
	}
	assert.Equal(t, 1, pres)
	assert.Len(t, env.dispatcher.preReminders, 1)
}

func TestPreReminderNotInjectedInThePast(t *testing.T) {
	env := newTestEnv(0.9)
	env.freeze(doseTime.Add(-10 * time.Minute))

	m := env.newMedicine()
	r := env.newPending(m, doseTime)

	// The lead window already started; injection would fire immediately.
	env.svc.injectPreReminder(context.Background(), r, 0.9)
	assert.Empty(t, env.dispatcher.preReminders)
}

func TestCreateDoseReminderInjectsPreReminderForRiskySlot(t *testing.T) {
	env := newTestEnv(0.9)
	env.freeze(doseTime.Add(-6 * time.Hour))

	m := env.newMedicine()

	created, err := env.svc.CreateDoseReminder(context.Background(), m, doseTime)
	require.NoError(t, err)
	assert.True(t, created)

	pending, err := env.reminders.ListPendingAfter(context.Background(), m.ID, doseTime.Add(-7*time.Hour))
	require.NoError(t, err)
	require.Len(t, pending, 2)

	times := map[bool]time.Time{}
	for _, p := range pending {
		times[p.IsPreReminder] = p.RemindAt
	}
	assert.True(t, times[false].Equal(doseTime))
	assert.True(t, times[true].Equal(doseTime.Add(-15*time.Minute)))

	// Same slot again is a no-op.
	created, err = env.svc.CreateDoseReminder(context.Background(), m, doseTime)
	require.NoError(t, err)
	assert.False(t, created)
}

func TestHabitShiftAppliedWhenConsistentlyLate(t *testing.T) {
	env := newTestEnv(0.2)

	m := env.newMedicine()

	// Two historical doses taken 20 and 25 minutes late.
	for _, delay := range []time.Duration{20 * time.Minute, 25 * time.Minute} {
		at := doseTime.Add(-48 * time.Hour)
		responded := at.Add(delay)
		env.reminders.add(&model.Reminder{
			MedicineID:  m.ID,
			PatientID:   m.PatientID,
			RemindAt:    at,
			Status:      model.ReminderStatusTaken,
			RespondedAt: &responded,
		})
	}

	r := env.newPending(m, doseTime)
	future := env.newPending(m, doseTime.Add(24*time.Hour))
	env.freeze(doseTime.Add(18 * time.Minute))

	_, err := env.svc.MarkTaken(context.Background(), m.PatientID, r.ID)
	require.NoError(t, err)

	// avg(20, 25, 18) = 21 minutes, past the 15 minute threshold.
	shifted, err := env.reminders.Get(context.Background(), future.ID)
	require.NoError(t, err)
	assert.True(t, shifted.RemindAt.Equal(future.RemindAt.Add(21*time.Minute)),
		"got %v", shifted.RemindAt)
}

func TestHabitShiftSkippedWhenRoughlyPunctual(t *testing.T) {
	env := newTestEnv(0.2)

	m := env.newMedicine()

	for _, delay := range []time.Duration{5 * time.Minute, 3 * time.Minute} {
		at := doseTime.Add(-48 * time.Hour)
		responded := at.Add(delay)
		env.reminders.add(&model.Reminder{
			MedicineID:  m.ID,
			PatientID:   m.PatientID,
			RemindAt:    at,
			Status:      model.ReminderStatusTaken,
			RespondedAt: &responded,
		})
	}

	r := env.newPending(m, doseTime)
	future := env.newPending(m, doseTime.Add(24*time.Hour))
	env.freeze(doseTime.Add(10 * time.Minute))

	_, err := env.svc.MarkTaken(context.Background(), m.PatientID, r.ID)
	require.NoError(t, err)

	unchanged, err := env.reminders.Get(context.Background(), future.ID)
	require.NoError(t, err)
	assert.True(t, unchanged.RemindAt.Equal(future.RemindAt))
}

func TestHabitShiftNeedsEnoughSamples(t *testing.T) {
	env := newTestEnv(0.2)

	m := env.newMedicine()

	// One historical dose, 40 minutes late: two samples total, below the
	// three-sample minimum.
	at := doseTime.Add(-24 * time.Hour)
	responded := at.Add(40 * time.Minute)
	env.reminders.add(&model.Reminder{
		MedicineID:  m.ID,
		PatientID:   m.PatientID,
		RemindAt:    at,
		Status:      model.ReminderStatusTaken,
		RespondedAt: &responded,
	})

	r := env.newPending(m, doseTime)
	future := env.newPending(m, doseTime.Add(24*time.Hour))
	env.freeze(doseTime.Add(45 * time.Minute))

	_, err := env.svc.MarkTaken(context.Background(), m.PatientID, r.ID)
	require.NoError(t, err)

	unchanged, err := env.reminders.Get(context.Background(), future.ID)
	require.NoError(t, err)
	assert.True(t, unchanged.RemindAt.Equal(future.RemindAt))
}

func TestHabitShiftWindowHoldsWhenTriggerUnseen(t *testing.T) {
	env := newTestEnv(0.2)

	m := env.newMedicine()

	// Five stored samples fill the window; the oldest is an outlier that
	// must fall out when the triggering dose is counted on top of them.
	delays := []time.Duration{
		20 * time.Minute,
		20 * time.Minute,
		20 * time.Minute,
		20 * time.Minute,
		110 * time.Minute,
	}
	for i, delay := range delays {
		at := doseTime.Add(-time.Duration(i+1) * 24 * time.Hour)
		responded := at.Add(delay)
		env.reminders.add(&model.Reminder{
			MedicineID:  m.ID,
			PatientID:   m.PatientID,
			RemindAt:    at,
			Status:      model.ReminderStatusTaken,
			RespondedAt: &responded,
		})
	}

	future := env.newPending(m, doseTime.Add(24*time.Hour))
	env.freeze(doseTime.Add(time.Minute))

	// A transition the store read has not caught up with yet.
	responded := doseTime.Add(20 * time.Minute)
	trigger := &model.Reminder{
		Base:        model.Base{ID: uuid.New()},
		MedicineID:  m.ID,
		PatientID:   m.PatientID,
		RemindAt:    doseTime,
		Status:      model.ReminderStatusTaken,
		RespondedAt: &responded,
	}
	require.NoError(t, env.svc.applyHabitShift(context.Background(), trigger))

	// The five newest samples average 20 minutes; keeping all six would
	// give 35 and shift the schedule too far.
	shifted, err := env.reminders.Get(context.Background(), future.ID)
	require.NoError(t, err)
	assert.True(t, shifted.RemindAt.Equal(future.RemindAt.Add(20*time.Minute)),
		"got %v", shifted.RemindAt)
}

func TestSweepOverdueResolvesAgedPending(t *testing.T) {
	env := newTestEnv(0.3)
	now := doseTime.Add(3 * time.Hour)
	env.freeze(now)

	m := env.newMedicine()
	// The first two are past the 1h grace window; the third is inside it.
	overdueA := env.newPending(m, doseTime)
	overdueB := env.newPending(m, doseTime.Add(30*time.Minute))
	fresh := env.newPending(m, now.Add(-10*time.Minute))

	swept, err := env.svc.SweepOverdue(context.Background(), 100)
	require.NoError(t, err)
	assert.Equal(t, 2, swept)

	for _, id := range []uuid.UUID{overdueA.ID, overdueB.ID} {
		r, err := env.reminders.Get(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, model.ReminderStatusPending, r.Status, "swept reminders recycle to pending")
		assert.Equal(t, 1, r.RescheduledCount)
	}

	untouched, err := env.reminders.Get(context.Background(), fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, untouched.RescheduledCount)

	stored, err := env.medicines.Get(context.Background(), m.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stored.MissedCount)
}

func TestCaregiverAlertOnEveryThirdMiss(t *testing.T) {
	env := newTestEnv(0.3)
	env.freeze(doseTime.Add(20 * time.Minute))

	m := env.newMedicine()
	for i := 0; i < 3; i++ {
		// Distinct times of day so recycled slots never collide.
		at := doseTime.Add(time.Duration(-i)*24*time.Hour + time.Duration(i)*time.Minute)
		r := env.newPending(m, at)
		_, err := env.svc.MarkMissed(context.Background(), m.PatientID, r.ID)
		require.NoError(t, err)
	}

	require.Len(t, env.dispatcher.caregiver, 1)
	assert.Equal(t, int64(3), env.dispatcher.caregiver[0])
}
