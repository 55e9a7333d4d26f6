package scheduler

import (
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeJob struct {
	name string
	err  error
	runs int
}

func (j *fakeJob) Name() string { return j.name }
func (j *fakeJob) Run() error {
	j.runs++
	return j.err
}

func TestScheduler_AddJobRegistersForManualTrigger(t *testing.T) {
	s := New(zerolog.Nop())
	job := &fakeJob{name: "news_poll"}

	require.NoError(t, s.AddJob("*/5 * * * *", job))

	assert.Equal(t, []string{"news_poll"}, s.Jobs())
}

func TestScheduler_TriggerNowRunsTheJobOnce(t *testing.T) {
	s := New(zerolog.Nop())
	job := &fakeJob{name: "summarizer_poll"}
	require.NoError(t, s.AddJob("*/1 * * * *", job))

	require.NoError(t, s.TriggerNow("summarizer_poll"))

	assert.Equal(t, 1, job.runs)
}

func TestScheduler_TriggerNowPropagatesJobError(t *testing.T) {
	s := New(zerolog.Nop())
	job := &fakeJob{name: "flaky", err: errors.New("downstream unavailable")}
	require.NoError(t, s.AddJob("*/1 * * * *", job))

	err := s.TriggerNow("flaky")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "downstream unavailable")
}

func TestScheduler_TriggerNowRejectsUnknownJob(t *testing.T) {
	s := New(zerolog.Nop())

	err := s.TriggerNow("does_not_exist")

	require.Error(t, err)
}

func TestScheduler_AddJobRejectsInvalidCronSpec(t *testing.T) {
	s := New(zerolog.Nop())
	job := &fakeJob{name: "bad_spec"}

	err := s.AddJob("not a cron spec", job)

	assert.Error(t, err)
}
