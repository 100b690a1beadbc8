package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"

	"github.com/NGUYENTHANHDATHH/Forecast-sub000/internal/ingest"
)

const defaultInterval = time.Hour

// Runner is the ingestion cycle the scheduler drives.
type Runner interface {
	RunCycle(ctx context.Context) (ingest.CycleReport, error)
}

// Scheduler periodically runs the ingestion cycle.
type Scheduler struct {
	scheduler    *gocron.Scheduler
	runner       Runner
	interval     time.Duration
	runOnStartup bool
	// timeout bounds a single cycle
	timeout time.Duration
	logger  *zap.Logger
}

// New creates a new Scheduler. With runOnStartup the first cycle runs
// immediately, otherwise after one interval.
func New(runner Runner, interval time.Duration, runOnStartup bool, logger *zap.Logger) *Scheduler {
	if interval <= 0 {
		interval = defaultInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := gocron.NewScheduler(time.UTC)
	s.SingletonModeAll()
	return &Scheduler{
		scheduler:    s,
		runner:       runner,
		interval:     interval,
		runOnStartup: runOnStartup,
		timeout:      interval,
		logger:       logger.Named("scheduler"),
	}
}

// Start schedules the periodic job and starts the underlying scheduler.
func (s *Scheduler) Start() error {
	job := s.scheduler.Every(s.interval)
	if !s.runOnStartup {
		job = job.WaitForSchedule()
	}
	if _, err := job.Do(s.run); err != nil {
		return err
	}

	s.scheduler.StartAsync()
	s.logger.Info("ingestion scheduled", zap.Duration("interval", s.interval), zap.Bool("runOnStartup", s.runOnStartup))
	return nil
}

func (s *Scheduler) run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	s.logger.Info("running ingestion cycle")
	if _, err := s.runner.RunCycle(ctx); err != nil {
		if errors.Is(err, ingest.ErrCycleRunning) {
			s.logger.Info("skipping tick, a cycle is already running")
			return
		}
		s.logger.Error("ingestion cycle failed", zap.Error(err))
		return
	}
	s.logger.Info("completed ingestion cycle")
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
