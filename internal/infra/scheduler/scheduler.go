package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"order_reminder_service/internal/app"
)

// Sweeper runs one dispatch pass.
type Sweeper interface {
	Run(ctx context.Context) (app.SweepResult, error)
}

// SweepScheduler triggers the dispatch sweep on a cron schedule. Runs never overlap: a tick
// that fires while the previous sweep is still going is skipped.
type SweepScheduler struct {
	cronEngine *cron.Cron
	sweeper    Sweeper
	logger     *logrus.Entry
	cronSpec   string
	runTimeout time.Duration

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
}

func NewSweepScheduler(sweeper Sweeper, logger *logrus.Entry, cronSpec string, runTimeout time.Duration) *SweepScheduler {
	log := logger.WithField("component", "sweep_scheduler")
	cl := cronLogger{log}
	return &SweepScheduler{
		cronEngine: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		sweeper:    sweeper,
		logger:     log,
		cronSpec:   cronSpec,
		runTimeout: runTimeout,
	}
}

// Start registers the sweep job and starts the cron engine.
func (s *SweepScheduler) Start() error {
	s.logger.WithField("spec", s.cronSpec).Info("Starting sweep scheduler...")

	s.mu.Lock()
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.mu.Unlock()

	if _, err := s.cronEngine.AddFunc(s.cronSpec, func() { s.RunOnce(s.baseContext()) }); err != nil {
		return fmt.Errorf("could not add sweep cron job %q: %w", s.cronSpec, err)
	}
	s.cronEngine.Start()
	s.logger.Info("Sweep scheduler started.")
	return nil
}

// RunOnce performs a single sweep bounded by the run timeout.
func (s *SweepScheduler) RunOnce(parent context.Context) {
	ctx, cancel := context.WithTimeout(parent, s.runTimeout)
	defer cancel()
	if _, err := s.sweeper.Run(ctx); err != nil {
		s.logger.WithError(err).Error("Dispatch sweep failed")
	}
}

// Stop cancels a running sweep and waits for it to return.
func (s *SweepScheduler) Stop() {
	s.logger.Info("Stopping sweep scheduler...")
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()
	ctx := s.cronEngine.Stop() // Stops the scheduler from adding new jobs, waits for running jobs.
	<-ctx.Done()
	s.logger.Info("Sweep scheduler gracefully stopped.")
}

func (s *SweepScheduler) baseContext() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctx == nil {
		return context.Background()
	}
	return s.ctx
}

// cronLogger adapts logrus to cron.Logger.
type cronLogger struct {
	entry *logrus.Entry
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.entry.WithFields(fields(keysAndValues)).Debug(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.entry.WithError(err).WithFields(fields(keysAndValues)).Error(msg)
}

func fields(kv []interface{}) logrus.Fields {
	f := make(logrus.Fields, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		f[fmt.Sprint(kv[i])] = kv[i+1]
	}
	return f
}
