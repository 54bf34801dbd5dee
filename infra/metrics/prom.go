package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/chronoplan/chronoplan/core/metrics"
)

// PromSink records scheduler events in Prometheus metrics.
type PromSink struct {
	solves      *prometheus.CounterVec
	solveTime   *prometheus.HistogramVec
	makespan    prometheus.Gauge
	fallbacks   prometheus.Counter
	forced      prometheus.Counter
	reschedules prometheus.Counter
}

// NewPromSink registers scheduler metrics on the default Prometheus
// registerer. The metrics server is started separately with StartPromServer.
func NewPromSink() (coremetrics.MetricsSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (coremetrics.MetricsSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	solves := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "schedule_solves_total",
		Help: "Total number of scheduling runs by solve status",
	}, []string{"status"})
	solveTime := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "schedule_solve_seconds",
		Help:    "Wall-clock time spent computing a schedule",
		Buckets: prometheus.DefBuckets,
	}, []string{"status"})
	makespan := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "schedule_makespan_minutes",
		Help: "Makespan of the most recent schedule",
	})
	fallbacks := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "schedule_fallbacks_total",
		Help: "Scheduling runs resolved by the sequential fallback",
	})
	forced := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "schedule_forced_tasks_total",
		Help: "Tasks force-scheduled due to circular dependencies",
	})
	reschedules := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "schedule_reschedules_total",
		Help: "Incremental schedule updates after completion events",
	})

	s := &PromSink{
		solves:      solves,
		solveTime:   solveTime,
		makespan:    makespan,
		fallbacks:   fallbacks,
		forced:      forced,
		reschedules: reschedules,
	}
	for _, c := range []prometheus.Collector{solves, solveTime, makespan, fallbacks, forced, reschedules} {
		if err := reg.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				return nil, err
			}
		}
	}
	return s, nil
}

// RecordSolve increments the solve counter and observes the solve duration.
func (s *PromSink) RecordSolve(ev coremetrics.SolveEvent) error {
	s.solves.WithLabelValues(ev.Status).Inc()
	s.solveTime.WithLabelValues(ev.Status).Observe(ev.Duration.Seconds())
	s.makespan.Set(ev.Makespan.Minutes())
	return nil
}

// RecordFallback counts fallback runs and force-scheduled tasks.
func (s *PromSink) RecordFallback(ev coremetrics.FallbackEvent) error {
	s.fallbacks.Inc()
	s.forced.Add(float64(ev.Forced))
	return nil
}

// RecordReschedule counts incremental updates.
func (s *PromSink) RecordReschedule(coremetrics.RescheduleEvent) error {
	s.reschedules.Inc()
	return nil
}
