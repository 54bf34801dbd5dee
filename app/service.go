package app

import (
	"context"
	"fmt"
	"sync"

	"github.com/chronoplan/chronoplan/config"
	corecal "github.com/chronoplan/chronoplan/core/calendar"
	coremetrics "github.com/chronoplan/chronoplan/core/metrics"
	"github.com/chronoplan/chronoplan/core/model"
	"github.com/chronoplan/chronoplan/core/schedule"
	"github.com/chronoplan/chronoplan/infra/calendar"
	"github.com/chronoplan/chronoplan/infra/logger"
	"github.com/chronoplan/chronoplan/infra/metrics"
	"github.com/chronoplan/chronoplan/infra/mqtt"
	"github.com/chronoplan/chronoplan/internal/eventbus"
)

// Service wires the solver to its calendar, messaging and metrics
// collaborators and keeps the latest schedule for incremental updates.
type Service struct {
	Solver *schedule.Solver

	cfg     *config.Config
	writer  corecal.EventWriter
	client  *mqtt.PahoClient
	bus     *eventbus.Bus[mqtt.Completion]
	log     logger.Logger
	closers []func()

	mu    sync.Mutex
	tasks map[string]model.Task
	last  schedule.Result
}

// New creates a Service from the configuration.
func New(ctx context.Context, cfg *config.Config) (*Service, error) {
	logg := logger.New("service")

	var sinks []coremetrics.MetricsSink
	var closers []func()
	if cfg.Metrics.PromEnabled {
		sink, err := metrics.NewPromSink()
		if err != nil {
			return nil, fmt.Errorf("prom sink: %w", err)
		}
		sinks = append(sinks, sink)
	}
	if cfg.Metrics.InfluxEnabled {
		sink := metrics.NewInfluxSinkWithFallback(cfg.Metrics.InfluxURL, cfg.Metrics.InfluxToken, cfg.Metrics.InfluxOrg, cfg.Metrics.InfluxBucket)
		if is, ok := sink.(*metrics.InfluxSink); ok {
			closers = append(closers, is.Close)
		}
		sinks = append(sinks, sink)
	}
	var sink coremetrics.MetricsSink
	switch len(sinks) {
	case 0:
		sink = coremetrics.NopSink{}
	case 1:
		sink = sinks[0]
	default:
		sink = metrics.NewMultiSink(sinks...)
	}

	var busy corecal.BusySource = corecal.NopSource{}
	var writer corecal.EventWriter
	if cfg.Calendar.Enabled {
		srv, err := calendar.NewService(ctx, cfg.Calendar)
		if err != nil {
			return nil, fmt.Errorf("calendar: %w", err)
		}
		gc := calendar.NewGoogleClient(srv, cfg.Calendar.CalendarID)
		busy = gc
		writer = gc
	}

	var client *mqtt.PahoClient
	if cfg.MQTT.Enabled {
		c, err := mqtt.NewPahoClient(cfg.MQTT)
		if err != nil {
			return nil, fmt.Errorf("mqtt client: %w", err)
		}
		client = c
		closers = append(closers, c.Disconnect)
	}

	solver := schedule.NewSolver(cfg.Schedule, busy, sink, logg)
	return &Service{
		Solver:  solver,
		cfg:     cfg,
		writer:  writer,
		client:  client,
		bus:     eventbus.New[mqtt.Completion](),
		log:     logg,
		closers: closers,
		tasks:   make(map[string]model.Task),
	}, nil
}

// Plan runs one scheduling pass and distributes the result to the configured
// outputs. The result is retained for later incremental updates.
func (s *Service) Plan(ctx context.Context, tasks []model.Task, estimates []model.DurationEstimate, constraints []string) (schedule.Result, error) {
	res, err := s.Solver.Schedule(ctx, tasks, estimates, constraints)
	if err != nil {
		return schedule.Result{}, err
	}

	s.mu.Lock()
	s.tasks = make(map[string]model.Task, len(tasks))
	for _, t := range tasks {
		s.tasks[model.NormalizeID(t.ID)] = t
	}
	s.last = res
	s.mu.Unlock()

	s.publish(res)
	if s.writer != nil {
		s.pushCalendar(ctx, res)
	}
	return res, nil
}

// Run starts the metrics endpoint and the completion listener, then blocks
// until the context is canceled.
func (s *Service) Run(ctx context.Context) error {
	if s.cfg.Metrics.PromEnabled {
		go func() {
			if err := metrics.StartPromServer(ctx, s.cfg.Metrics.PromAddr); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}
	if s.client != nil {
		if err := s.client.SubscribeCompletions(s.bus.Publish); err != nil {
			return fmt.Errorf("subscribe completions: %w", err)
		}
	}

	events := s.bus.Subscribe()
	defer s.bus.Unsubscribe(events)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			s.handleCompletion(ev)
		}
	}
}

// handleCompletion shifts the retained schedule by the completion's duration
// delta and republishes it.
func (s *Service) handleCompletion(ev mqtt.Completion) {
	s.mu.Lock()
	current := s.last
	s.mu.Unlock()
	if len(current.Tasks) == 0 {
		s.log.Warnf("completion for %s with no active schedule", ev.TaskID)
		return
	}

	updated := s.Solver.UpdateSchedule(current.Tasks, ev.TaskID, ev.ActualMinutes)

	s.mu.Lock()
	s.last.Tasks = updated
	current = s.last
	s.mu.Unlock()

	s.publish(current)
}

// Close releases external connections.
func (s *Service) Close() {
	for _, c := range s.closers {
		c()
	}
}

func (s *Service) publish(res schedule.Result) {
	if s.client == nil {
		return
	}
	payload := mqtt.SchedulePayload{
		RunID:           res.RunID,
		Status:          res.Status.String(),
		MakespanMinutes: res.Makespan.Minutes(),
		Tasks:           res.Tasks,
	}
	if err := s.client.PublishSchedule(payload); err != nil {
		s.log.Errorf("publish schedule: %v", err)
	}
}

// pushCalendar mirrors the schedule into the calendar. Failures are logged
// per entry so one bad event does not block the rest.
func (s *Service) pushCalendar(ctx context.Context, res schedule.Result) {
	s.mu.Lock()
	tasks := s.tasks
	s.mu.Unlock()
	for _, entry := range res.Tasks {
		task, ok := tasks[entry.TaskID]
		if !ok {
			task = model.Task{ID: entry.TaskID, Title: entry.TaskID}
		}
		if err := s.writer.CreateEvent(ctx, task, entry); err != nil {
			s.log.Errorf("calendar event for %s: %v", entry.TaskID, err)
		}
	}
}
