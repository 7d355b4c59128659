package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/bobby-s-dev/pinkweather/internal/device"
)

const cycleTimeout = 60 * time.Second

// Cycler is the device runtime woken on every tick.
type Cycler interface {
	Cycle(ctx context.Context) (device.Report, error)
}

type Scheduler struct {
	cycler Cycler
	logger *zap.Logger
	spec   string
	cron   *cron.Cron
	entry  cron.EntryID

	mu         sync.Mutex
	running    bool
	lastRun    time.Time
	lastReport *device.Report
	skipped    int
}

// cronLogger routes cron's own logging through zap.
type cronLogger struct {
	sugar *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.sugar.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.sugar.Errorw(msg, append(keysAndValues, "error", err)...)
}

// NewScheduler registers the cycle under a cron spec such as "@every 10m"
// or "*/15 * * * *". A tick that fires while a cycle is still running is
// skipped.
func NewScheduler(cycler Cycler, spec string, logger *zap.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	cl := cronLogger{sugar: logger.Named("cron").Sugar()}
	s := &Scheduler{
		cycler: cycler,
		logger: logger,
		spec:   spec,
		cron:   cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl))),
	}

	id, err := s.cron.AddFunc(spec, s.runCycle)
	if err != nil {
		return nil, fmt.Errorf("invalid refresh schedule %q: %w", spec, err)
	}
	s.entry = id
	return s, nil
}

func (s *Scheduler) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	s.cron.Start()
	s.logger.Info("Scheduler started",
		zap.String("schedule", s.spec),
		zap.Time("next_run", s.cron.Entry(s.entry).Next))

	// Run immediately on start
	go s.runCycle()
}

func (s *Scheduler) runCycle() {
	s.mu.Lock()
	s.lastRun = time.Now()
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), cycleTimeout)
	defer cancel()

	rep, err := s.cycler.Cycle(ctx)
	if errors.Is(err, device.ErrBusy) {
		s.mu.Lock()
		s.skipped++
		s.mu.Unlock()
		s.logger.Debug("Skipping wake, previous cycle still running")
		return
	}
	if err != nil {
		s.logger.Error("Scheduled cycle failed", zap.Error(err))
		return
	}

	s.mu.Lock()
	s.lastReport = &rep
	s.mu.Unlock()
}

// Stop halts the schedule and waits for a running cycle to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	s.logger.Info("Stopping scheduler")
	<-s.cron.Stop().Done()
}

func (s *Scheduler) ForceRun() {
	s.logger.Info("Manually triggering device cycle")
	go s.runCycle()
}

// LastReport returns the most recent finished cycle, if any.
func (s *Scheduler) LastReport() (device.Report, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastReport == nil {
		return device.Report{}, false
	}
	return *s.lastReport, true
}

func (s *Scheduler) GetStatus() map[string]interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := map[string]interface{}{
		"running":  s.running,
		"schedule": s.spec,
		"last_run": s.lastRun,
		"next_run": s.cron.Entry(s.entry).Next,
		"skipped":  s.skipped,
	}
	if s.lastReport != nil {
		status["last_report"] = *s.lastReport
	}
	return status
}
