package scheduler

import (
	"context"
	"fmt"
	"time"
)

// nextDaySameTime returns the scheduled time-of-day on the calendar day
// after now, in the scheduled time's location.
func nextDaySameTime(now, scheduled time.Time) time.Time {
	next := now.In(scheduled.Location()).AddDate(0, 0, 1)
	return time.Date(next.Year(), next.Month(), next.Day(),
		scheduled.Hour(), scheduled.Minute(), scheduled.Second(), 0,
		scheduled.Location())
}

// GenerateForDay materializes the day's reminders from every active
// medicine schedule. Generation is idempotent: slots that already exist are
// skipped, so the loop can run as often as the worker likes. Returns the
// number of reminders created.
func (s *Service) GenerateForDay(ctx context.Context, day time.Time) (int, error) {
	medicines, err := s.medicines.ListActive(ctx, day)
	if err != nil {
		return 0, fmt.Errorf("failed to list active medicines: %w", err)
	}

	now := s.now()
	created := 0
	for _, medicine := range medicines {
		if !medicine.ActiveOn(day) {
			continue
		}
		if medicine.Snoozed(now) {
			continue
		}

		doseTimes, err := medicine.DoseTimes(day, day.Location())
		if err != nil {
			s.logger.Error(err, "skipping medicine with invalid schedule",
				"medicine_id", medicine.ID.String())
			continue
		}

		for _, at := range doseTimes {
			if at.Before(now) {
				continue
			}
			ok, err := s.CreateDoseReminder(ctx, medicine, at)
			if err != nil {
				s.logger.Error(err, "failed to create dose reminder",
					"medicine_id", medicine.ID.String())
				continue
			}
			if ok {
				created++
			}
		}
	}

	return created, nil
}
