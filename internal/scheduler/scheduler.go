// Package scheduler provides cron-based background jobs for counselbot,
// currently the idle-session eviction sweep.
package scheduler

import (
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/modubank/counselbot/internal/store"
)

// Scheduler wraps a cron runner.
type Scheduler struct {
	cron *cron.Cron
}

// NewScheduler creates and starts a cron scheduler using the standard
// 5-field expression format, with panic recovery on jobs.
func NewScheduler() *Scheduler {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	c := cron.New(cron.WithParser(parser), cron.WithChain(cron.Recover(cron.DefaultLogger)))
	c.Start()
	return &Scheduler{cron: c}
}

// AddJob schedules a task using the provided cron expression.
func (s *Scheduler) AddJob(expr string, task func()) error {
	_, err := s.cron.AddFunc(expr, task)
	return err
}

// ScheduleSessionEviction runs the idle-session sweep on the given cron
// expression. Sessions idle longer than ttl are discarded; a turn arriving
// for an evicted session surfaces as session-not-found to the caller.
func (s *Scheduler) ScheduleSessionEviction(expr string, st store.Store, ttl time.Duration) error {
	return s.AddJob(expr, func() {
		evicted := st.EvictIdle(ttl)
		slog.Debug("Session eviction sweep finished", "evicted", evicted, "ttl", ttl)
	})
}

// Stop stops the scheduler and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	s.cron.Stop()
}
