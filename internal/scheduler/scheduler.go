// Package scheduler drives the periodic jobs this system runs outside the
// per-tick pipeline: polling raw news into enriched articles, polling
// enriched articles into summaries. It wraps robfig/cron/v3 the way the
// teacher's scheduler package does (a Job interface with Name/Run, a
// SkipIfStillRunning chain so a slow poll never overlaps itself), but the
// teacher's own Scheduler/cron-wiring file is not part of this retrieval and
// is reconstructed here from the Job implementations it drove.
package scheduler

import (
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Job is a unit of periodic work. Name identifies it in logs and in the
// manual-trigger registry; Run executes one cycle.
type Job interface {
	Name() string
	Run() error
}

// Scheduler runs a fixed set of Jobs on cron schedules, never running two
// instances of the same job concurrently.
type Scheduler struct {
	cron *cron.Cron
	log  zerolog.Logger

	jobs    map[string]Job
	entries map[string]cron.EntryID
}

// New builds an empty Scheduler.
func New(log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron: cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger))),
		log:  log.With().Str("component", "scheduler").Logger(),

		jobs:    make(map[string]Job),
		entries: make(map[string]cron.EntryID),
	}
}

// AddJob registers job to run on the given standard five-field cron
// expression (e.g. "*/5 * * * *" for every five minutes).
func (s *Scheduler) AddJob(spec string, job Job) error {
	id, err := s.cron.AddFunc(spec, func() {
		jobLog := s.log.With().Str("job", job.Name()).Logger()
		jobLog.Info().Msg("job starting")
		if err := job.Run(); err != nil {
			jobLog.Error().Err(err).Msg("job failed")
			return
		}
		jobLog.Info().Msg("job completed")
	})
	if err != nil {
		return fmt.Errorf("scheduler: add job %s: %w", job.Name(), err)
	}

	s.jobs[job.Name()] = job
	s.entries[job.Name()] = id
	return nil
}

// TriggerNow runs the named job synchronously, outside its cron schedule.
// It is used by the manual-trigger HTTP endpoint; the caller decides whether
// to run it in its own goroutine.
func (s *Scheduler) TriggerNow(name string) error {
	job, ok := s.jobs[name]
	if !ok {
		return fmt.Errorf("scheduler: unknown job %q", name)
	}
	return job.Run()
}

// Jobs returns the names of every registered job, for listing in an ops
// surface.
func (s *Scheduler) Jobs() []string {
	names := make([]string, 0, len(s.jobs))
	for name := range s.jobs {
		names = append(names, name)
	}
	return names
}

// Start begins running registered jobs on their schedules. Non-blocking.
func (s *Scheduler) Start() {
	s.log.Info().Int("jobs", len(s.jobs)).Msg("scheduler starting")
	s.cron.Start()
}

// Stop cancels future runs and waits for any in-flight job to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info().Msg("scheduler stopped")
}
