package scheduler

import (
	"context"
	"time"
)

// pollTimeout bounds a single poll cycle so a stuck downstream dependency
// cannot wedge the cron entry forever; SkipIfStillRunning only protects
// against overlap, not against a hang.
const pollTimeout = 2 * time.Minute

// poller is satisfied by both news.Enricher and summarizer.Summarizer.
type poller interface {
	PollOnce(ctx context.Context) error
}

// PollJob adapts a PollOnce(ctx) poll loop into a scheduler.Job.
type PollJob struct {
	name   string
	target poller
}

// NewPollJob wraps target under name for registration with a Scheduler.
func NewPollJob(name string, target poller) *PollJob {
	return &PollJob{name: name, target: target}
}

// Name implements Job.
func (j *PollJob) Name() string { return j.name }

// Run implements Job, bounding the poll with pollTimeout.
func (j *PollJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), pollTimeout)
	defer cancel()
	return j.target.PollOnce(ctx)
}
