package server

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeScheduler struct {
	jobs     []string
	triggerErr error
	triggered  string
}

func (f *fakeScheduler) Jobs() []string { return f.jobs }
func (f *fakeScheduler) TriggerNow(name string) error {
	f.triggered = name
	return f.triggerErr
}

type fakeCheck struct {
	name string
	err  error
}

func (c *fakeCheck) Name() string                        { return c.name }
func (c *fakeCheck) Healthy(ctx context.Context) error { return c.err }

func TestServer_HealthzAlwaysOK(t *testing.T) {
	s := New(Config{Log: zerolog.Nop(), Port: 0})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	s.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestServer_ReadyzReflectsFailingCheck(t *testing.T) {
	s := New(Config{
		Log: zerolog.Nop(),
		Checks: []HealthChecker{
			&fakeCheck{name: "document_store"},
			&fakeCheck{name: "broker", err: errors.New("unreachable")},
		},
	})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	s.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestServer_ListJobsReturnsSchedulerJobs(t *testing.T) {
	sched := &fakeScheduler{jobs: []string{"news_poll", "summarizer_poll"}}
	s := New(Config{Log: zerolog.Nop(), Scheduler: sched})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/jobs", nil)
	s.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "news_poll")
}

func TestServer_TriggerJobCallsSchedulerWithURLParam(t *testing.T) {
	sched := &fakeScheduler{}
	s := New(Config{Log: zerolog.Nop(), Scheduler: sched})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/jobs/news_poll/trigger", nil)
	s.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "news_poll", sched.triggered)
}

func TestServer_TriggerJobReturnsBadRequestOnUnknownJob(t *testing.T) {
	sched := &fakeScheduler{triggerErr: errors.New("unknown job")}
	s := New(Config{Log: zerolog.Nop(), Scheduler: sched})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/jobs/missing/trigger", nil)
	s.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_TriggerJobWithoutSchedulerIsUnavailable(t *testing.T) {
	s := New(Config{Log: zerolog.Nop()})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/jobs/anything/trigger", nil)
	s.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
