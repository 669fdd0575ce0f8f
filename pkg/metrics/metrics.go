package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the scheduling engine and worker metrics.
type Metrics struct {
	RemindersCreated     prometheus.Counter
	PreRemindersInjected prometheus.Counter
	DosesTaken           prometheus.Counter
	DosesMissed          prometheus.Counter
	DosesRescheduled     prometheus.Counter
	HabitShifts          prometheus.Counter
	PredictorFallbacks   prometheus.Counter
	NotificationFailures prometheus.Counter
	SweepDuration        prometheus.Histogram
	SweepBatchSize       prometheus.Gauge
}

// New creates and registers all engine metrics under the given namespace.
func New(namespace string) *Metrics {
	return &Metrics{
		RemindersCreated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reminders_created_total",
			Help:      "Total number of reminders created",
		}),
		PreRemindersInjected: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pre_reminders_injected_total",
			Help:      "Total number of risk-based pre-reminders injected",
		}),
		DosesTaken: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "doses_taken_total",
			Help:      "Total number of reminders marked taken",
		}),
		DosesMissed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "doses_missed_total",
			Help:      "Total number of reminders marked missed",
		}),
		DosesRescheduled: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "doses_rescheduled_total",
			Help:      "Total number of missed doses recycled to a new time",
		}),
		HabitShifts: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "habit_shifts_total",
			Help:      "Total number of habit-based schedule shifts applied",
		}),
		PredictorFallbacks: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "predictor_fallbacks_total",
			Help:      "Total number of risk predictions that fell back to the neutral value",
		}),
		NotificationFailures: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notification_failures_total",
			Help:      "Total number of failed notification dispatches",
		}),
		SweepDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sweep_duration_seconds",
			Help:      "Time spent sweeping overdue reminders",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}),
		SweepBatchSize: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sweep_batch_size",
			Help:      "Number of overdue reminders picked up by the last sweep",
		}),
	}
}

// NewNop returns unregistered metrics, for tests.
func NewNop() *Metrics {
	return &Metrics{
		RemindersCreated:     prometheus.NewCounter(prometheus.CounterOpts{Name: "nop_reminders_created_total"}),
		PreRemindersInjected: prometheus.NewCounter(prometheus.CounterOpts{Name: "nop_pre_reminders_injected_total"}),
		DosesTaken:           prometheus.NewCounter(prometheus.CounterOpts{Name: "nop_doses_taken_total"}),
		DosesMissed:          prometheus.NewCounter(prometheus.CounterOpts{Name: "nop_doses_missed_total"}),
		DosesRescheduled:     prometheus.NewCounter(prometheus.CounterOpts{Name: "nop_doses_rescheduled_total"}),
		HabitShifts:          prometheus.NewCounter(prometheus.CounterOpts{Name: "nop_habit_shifts_total"}),
		PredictorFallbacks:   prometheus.NewCounter(prometheus.CounterOpts{Name: "nop_predictor_fallbacks_total"}),
		NotificationFailures: prometheus.NewCounter(prometheus.CounterOpts{Name: "nop_notification_failures_total"}),
		SweepDuration:        prometheus.NewHistogram(prometheus.HistogramOpts{Name: "nop_sweep_duration_seconds"}),
		SweepBatchSize:       prometheus.NewGauge(prometheus.GaugeOpts{Name: "nop_sweep_batch_size"}),
	}
}
