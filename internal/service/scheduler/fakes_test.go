package scheduler

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/medtrack/adherence-api/internal/model"
	"github.com/medtrack/adherence-api/internal/repository"
	apperrors "github.com/medtrack/adherence-api/pkg/errors"
)

// In-memory repositories mirroring the store's conditional-update
// semantics, so the engine's concurrency behavior is testable without
// Postgres.

type fakeReminderRepo struct {
	mu   sync.Mutex
	byID map[uuid.UUID]*model.Reminder
}

func newFakeReminderRepo() *fakeReminderRepo {
	return &fakeReminderRepo{byID: make(map[uuid.UUID]*model.Reminder)}
}

func (f *fakeReminderRepo) add(r *model.Reminder) *model.Reminder {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	cp := *r
	f.byID[cp.ID] = &cp
	ret := cp
	return &ret
}

func (f *fakeReminderRepo) Create(ctx context.Context, r *model.Reminder) error {
	f.add(r)
	return nil
}

func (f *fakeReminderRepo) CreateIfAbsent(ctx context.Context, r *model.Reminder) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.byID {
		if existing.PatientID == r.PatientID &&
			existing.MedicineID == r.MedicineID &&
			existing.RemindAt.Equal(r.RemindAt) {
			return false, nil
		}
	}
	r.ID = uuid.New()
	cp := *r
	f.byID[cp.ID] = &cp
	return true, nil
}

func (f *fakeReminderRepo) Get(ctx context.Context, id uuid.UUID) (*model.Reminder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.byID[id]
	if !ok {
		return nil, apperrors.NotFound("reminder", nil)
	}
	cp := *r
	return &cp, nil
}

func (f *fakeReminderRepo) GetForPatient(ctx context.Context, id, patientID uuid.UUID) (*model.Reminder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.byID[id]
	if !ok || r.PatientID != patientID {
		return nil, apperrors.NotFound("reminder", nil)
	}
	cp := *r
	return &cp, nil
}

func (f *fakeReminderRepo) List(ctx context.Context, filters *model.ReminderFilters) ([]*model.Reminder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.Reminder
	for _, r := range f.byID {
		if r.PatientID != filters.PatientID {
			continue
		}
		if filters.MedicineID != uuid.Nil && r.MedicineID != filters.MedicineID {
			continue
		}
		if filters.Status != "" && r.Status != filters.Status {
			continue
		}
		cp := *r
		out = append(out, &cp)
	}
	return out, nil
}

func (f *fakeReminderRepo) MarkStatus(ctx context.Context, id uuid.UUID, from, to model.ReminderStatus, respondedAt time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.byID[id]
	if !ok || r.Status != from {
		return false, nil
	}
	r.Status = to
	at := respondedAt
	r.RespondedAt = &at
	return true, nil
}

func (f *fakeReminderRepo) Recycle(ctx context.Context, id uuid.UUID, newTime, missedAt time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.byID[id]
	if !ok || r.Status != model.ReminderStatusMissed {
		return false, nil
	}
	for _, other := range f.byID {
		if other.ID != id && other.PatientID == r.PatientID &&
			other.MedicineID == r.MedicineID && other.RemindAt.Equal(newTime) {
			return false, apperrors.Conflict("reminder slot already scheduled", nil)
		}
	}
	r.RemindAt = newTime
	r.Status = model.ReminderStatusPending
	r.RespondedAt = nil
	r.RescheduledCount++
	at := missedAt
	r.LastMissedAt = &at
	return true, nil
}

func (f *fakeReminderRepo) ListPendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]*model.Reminder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.Reminder
	for _, r := range f.byID {
		if r.Status == model.ReminderStatusPending && r.RemindAt.Before(cutoff) {
			cp := *r
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RemindAt.Before(out[j].RemindAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeReminderRepo) ListPendingAfter(ctx context.Context, medicineID uuid.UUID, after time.Time) ([]*model.Reminder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.Reminder
	for _, r := range f.byID {
		if r.MedicineID == medicineID && r.Status == model.ReminderStatusPending && r.RemindAt.After(after) {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeReminderRepo) ShiftPendingAfter(ctx context.Context, medicineID uuid.UUID, after time.Time, delta time.Duration) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var shifted int64
	for _, r := range f.byID {
		if r.MedicineID == medicineID && r.Status == model.ReminderStatusPending && r.RemindAt.After(after) {
			r.RemindAt = r.RemindAt.Add(delta)
			shifted++
		}
	}
	return shifted, nil
}

func (f *fakeReminderRepo) ListRecentTaken(ctx context.Context, patientID, medicineID uuid.UUID, limit int) ([]*model.Reminder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.Reminder
	for _, r := range f.byID {
		if r.PatientID == patientID && r.MedicineID == medicineID &&
			r.Status == model.ReminderStatusTaken && r.RespondedAt != nil {
			cp := *r
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RespondedAt.After(*out[j].RespondedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeReminderRepo) DeleteForMedicine(ctx context.Context, medicineID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, r := range f.byID {
		if r.MedicineID == medicineID {
			delete(f.byID, id)
		}
	}
	return nil
}

type fakeMedicineRepo struct {
	mu   sync.Mutex
	byID map[uuid.UUID]*model.Medicine
}

func newFakeMedicineRepo() *fakeMedicineRepo {
	return &fakeMedicineRepo{byID: make(map[uuid.UUID]*model.Medicine)}
}

func (f *fakeMedicineRepo) add(m *model.Medicine) *model.Medicine {
	f.mu.Lock()
	defer f.mu.Unlock()
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	cp := *m
	f.byID[cp.ID] = &cp
	return &cp
}

func (f *fakeMedicineRepo) Create(ctx context.Context, m *model.Medicine) error {
	f.add(m)
	return nil
}

func (f *fakeMedicineRepo) Get(ctx context.Context, id uuid.UUID) (*model.Medicine, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.byID[id]
	if !ok {
		return nil, apperrors.NotFound("medicine", nil)
	}
	cp := *m
	return &cp, nil
}

func (f *fakeMedicineRepo) GetForPatient(ctx context.Context, id, patientID uuid.UUID) (*model.Medicine, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.byID[id]
	if !ok || m.PatientID != patientID {
		return nil, apperrors.NotFound("medicine", nil)
	}
	cp := *m
	return &cp, nil
}

func (f *fakeMedicineRepo) Update(ctx context.Context, m *model.Medicine) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *m
	f.byID[cp.ID] = &cp
	return nil
}

func (f *fakeMedicineRepo) Delete(ctx context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.byID, id)
	return nil
}

func (f *fakeMedicineRepo) List(ctx context.Context, patientID uuid.UUID) ([]*model.Medicine, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.Medicine
	for _, m := range f.byID {
		if m.PatientID == patientID {
			cp := *m
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeMedicineRepo) ListActive(ctx context.Context, day time.Time) ([]*model.Medicine, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.Medicine
	for _, m := range f.byID {
		cp := *m
		out = append(out, &cp)
	}
	return out, nil
}

func (f *fakeMedicineRepo) IncrementCounter(ctx context.Context, id uuid.UUID, field repository.CounterField) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.byID[id]
	if !ok {
		return 0, apperrors.NotFound("medicine", nil)
	}
	switch field {
	case repository.CounterTaken:
		m.TakenCount++
		return m.TakenCount, nil
	default:
		m.MissedCount++
		return m.MissedCount, nil
	}
}

func (f *fakeMedicineRepo) UpdateSnooze(ctx context.Context, id uuid.UUID, until *time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.byID[id]
	if !ok {
		return apperrors.NotFound("medicine", nil)
	}
	m.SnoozedUntil = until
	return nil
}

type fakeAdherenceRepo struct {
	mu      sync.Mutex
	records map[[2]uuid.UUID]*model.AdherenceRecord
}

func newFakeAdherenceRepo() *fakeAdherenceRepo {
	return &fakeAdherenceRepo{records: make(map[[2]uuid.UUID]*model.AdherenceRecord)}
}

func (f *fakeAdherenceRepo) Upsert(ctx context.Context, record *model.AdherenceRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *record
	f.records[[2]uuid.UUID{record.PatientID, record.MedicineID}] = &cp
	return nil
}

func (f *fakeAdherenceRepo) Get(ctx context.Context, patientID, medicineID uuid.UUID) (*model.AdherenceRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.records[[2]uuid.UUID{patientID, medicineID}]
	if !ok {
		return nil, apperrors.NotFound("adherence record", nil)
	}
	cp := *r
	return &cp, nil
}

type fakePredictor struct {
	mu    sync.Mutex
	risk  float64
	err   error
	calls int
}

func (f *fakePredictor) Predict(ctx context.Context, hour, weekday int, delayMinutes float64) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return 0, f.err
	}
	return f.risk, nil
}

type fakeDispatcher struct {
	mu           sync.Mutex
	reschedules  []time.Time
	preReminders []*model.Reminder
	caregiver    []int64
}

func (f *fakeDispatcher) NotifyReschedule(ctx context.Context, reminder *model.Reminder, newTime time.Time, note string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reschedules = append(f.reschedules, newTime)
}

func (f *fakeDispatcher) NotifyPreReminder(ctx context.Context, reminder *model.Reminder) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *reminder
	f.preReminders = append(f.preReminders, &cp)
}

func (f *fakeDispatcher) NotifyCaregiver(ctx context.Context, medicine *model.Medicine, missedCount int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.caregiver = append(f.caregiver, missedCount)
}
