package scheduler

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"elapsed_tracker/internal/app" // For TickResult
)

// Ticker is the unit of work run on every tick.
type Ticker interface {
	Tick(ctx context.Context) app.TickResult
}

// TickScheduler owns the single recurring timer that drives the tracker.
type TickScheduler struct {
	cronEngine *cron.Cron
	tracker    Ticker
	logger     *logrus.Entry
	tickSpec   string

	mu      sync.Mutex
	running bool
	stopped bool
	ctx     context.Context
	cancel  context.CancelFunc
}

func NewTickScheduler(
	tracker Ticker,
	logger *logrus.Entry,
	tickSpec string, // e.g., "@every 1m"
) *TickScheduler {
	cronLogger := cron.PrintfLogger(logger)
	opts := []cron.Option{cron.WithChain(cron.Recover(cronLogger))}
	if logger.Logger.IsLevelEnabled(logrus.DebugLevel) {
		opts = append(opts, cron.WithLogger(cron.VerbosePrintfLogger(logger)))
	}
	return &TickScheduler{
		cronEngine: cron.New(opts...),
		tracker:    tracker,
		logger:     logger,
		tickSpec:   tickSpec,
	}
}

// Start registers the recurring job and then runs one tick immediately. The
// immediate tick runs outside the lock so a concurrent Stop can cancel it.
func (s *TickScheduler) Start() error {
	s.mu.Lock()
	if s.running || s.stopped {
		s.mu.Unlock()
		return fmt.Errorf("tick scheduler already started")
	}

	s.logger.WithField("tick_spec", s.tickSpec).Info("Starting tick scheduler...")
	s.ctx, s.cancel = context.WithCancel(context.Background())

	if _, err := s.cronEngine.AddFunc(s.tickSpec, s.runTick); err != nil {
		s.cancel()
		s.mu.Unlock()
		return fmt.Errorf("could not add tick job %q: %w", s.tickSpec, err)
	}

	s.cronEngine.Start()
	s.running = true
	s.mu.Unlock()

	s.runTick()
	s.logger.Info("Tick scheduler started.")
	return nil
}

func (s *TickScheduler) runTick() {
	res := s.tracker.Tick(s.ctx)
	s.logger.WithFields(logrus.Fields{
		"breakdown":   res.Reading.Breakdown.String(),
		"hour_bucket": res.Reading.HourBucket,
		"crossed":     res.Crossed,
	}).Debug("Tick")
}

// Stop cancels in-flight work and waits for running jobs to return.
func (s *TickScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}

	s.logger.Info("Stopping tick scheduler...")
	s.cancel()
	ctx := s.cronEngine.Stop() // Stops the scheduler from adding new jobs, waits for running jobs.
	<-ctx.Done()               // Wait for graceful shutdown
	s.running = false
	s.stopped = true
	s.logger.Info("Tick scheduler gracefully stopped.")
}

// Run starts the scheduler, blocks until ctx is done and always stops it.
func (s *TickScheduler) Run(ctx context.Context) error {
	if err := s.Start(); err != nil {
		return err
	}
	defer s.Stop()
	<-ctx.Done()
	return nil
}
