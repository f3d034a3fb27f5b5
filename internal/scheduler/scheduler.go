// Package scheduler drives recurring ingestion runs on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/deskpilot-io/deskpilot/internal/email/inbound/postmaster"
)

// Runner is the unit of scheduled work.
type Runner interface {
	RunOnce(ctx context.Context) (postmaster.Summary, error)
}

// Scheduler executes the ingestion runner on a cron schedule. Overlapping
// runs against the same mailbox are tolerated by the audit log's dedup
// handling, but within one Scheduler a run is skipped while the previous one
// is still active.
type Scheduler struct {
	cron     *cron.Cron
	runner   Runner
	schedule string
	timeout  time.Duration
	logger   *log.Logger

	mu      sync.Mutex
	running bool
}

// New builds a Scheduler. The schedule accepts standard cron expressions and
// descriptors like "@every 2m".
func New(runner Runner, schedule string, timeout time.Duration, logger *log.Logger) *Scheduler {
	if logger == nil {
		logger = log.Default()
	}
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &Scheduler{
		cron:     cron.New(),
		runner:   runner,
		schedule: schedule,
		timeout:  timeout,
		logger:   logger,
	}
}

// Start registers the job and starts the cron loop.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.schedule, s.run); err != nil {
		return fmt.Errorf("failed to schedule ingestion: %w", err)
	}
	s.cron.Start()
	s.logger.Printf("scheduler: ingestion scheduled at %q", s.schedule)
	return nil
}

// Stop halts the cron loop and waits for a running job to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Scheduler) run() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		s.logger.Printf("scheduler: previous ingestion run still active, skipping")
		return
	}
	s.running = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	summary, err := s.runner.RunOnce(ctx)
	if err != nil {
		s.logger.Printf("scheduler: ingestion run failed: %v (partial counts: %+v)", err, summary)
		return
	}
	s.logger.Printf("scheduler: ingestion run done: fetched=%d created=%d replies=%d skipped=%d errors=%d",
		summary.Fetched, summary.Created, summary.Replies, summary.Skipped, summary.Errors)
}
