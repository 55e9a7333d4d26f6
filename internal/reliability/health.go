// Package reliability implements this system's health and backup services:
// a readiness check on pipeline lag and agent-router queue saturation, a
// metrics snapshot that also reports the dedup-store count, plus periodic
// S3 backup of the local
// snapshot/cache files. Uses a component-scoped logger and an on-demand
// metrics struct, with process-level CPU/memory figures from
// shirou/gopsutil.
package reliability

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// PipelineLagReporter is satisfied by *pipeline.Runtime.
type PipelineLagReporter interface {
	Lag() time.Duration
}

// DedupSizeReporter is satisfied by *dedup.Store.
type DedupSizeReporter interface {
	InsertCount() int64
}

// QueueDepthReporter is satisfied by *agentrouter.Router.
type QueueDepthReporter interface {
	QueueDepth() (inFlight, size int64)
}

// Thresholds configures when each signal trips the health check from
// healthy to degraded.
type Thresholds struct {
	MaxPipelineLag   time.Duration // default 5 minutes
	MaxQueueSaturation float64     // default 0.9 (inFlight/size)
}

// Monitor reports system health as a single HealthChecker the ops server
// exposes at /readyz, plus a Metrics snapshot for logging/diagnostics.
type Monitor struct {
	pipeline PipelineLagReporter
	dedup    DedupSizeReporter
	router   QueueDepthReporter
	log      zerolog.Logger

	thresholds Thresholds
}

// New builds a Monitor. Any of pipeline/dedup/router may be nil if that
// component isn't running in this process (e.g. a backfill-only deployment
// with no agent router).
func New(pipeline PipelineLagReporter, dedup DedupSizeReporter, router QueueDepthReporter, thresholds Thresholds, log zerolog.Logger) *Monitor {
	if thresholds.MaxPipelineLag <= 0 {
		thresholds.MaxPipelineLag = 5 * time.Minute
	}
	if thresholds.MaxQueueSaturation <= 0 {
		thresholds.MaxQueueSaturation = 0.9
	}
	return &Monitor{
		pipeline:   pipeline,
		dedup:      dedup,
		router:     router,
		thresholds: thresholds,
		log:        log.With().Str("component", "health_monitor").Logger(),
	}
}

// Name implements server.HealthChecker.
func (m *Monitor) Name() string { return "pipeline" }

// Healthy implements server.HealthChecker: it reports the first tripped
// signal as an error, or nil if every signal is within its threshold.
func (m *Monitor) Healthy(ctx context.Context) error {
	if m.pipeline != nil {
		if lag := m.pipeline.Lag(); lag > m.thresholds.MaxPipelineLag {
			return fmt.Errorf("pipeline lag %s exceeds threshold %s", lag, m.thresholds.MaxPipelineLag)
		}
	}
	if m.router != nil {
		inFlight, size := m.router.QueueDepth()
		if size > 0 && float64(inFlight)/float64(size) >= m.thresholds.MaxQueueSaturation {
			return fmt.Errorf("agent router queue saturated: %d/%d in flight", inFlight, size)
		}
	}
	return nil
}

// Metrics is a point-in-time snapshot of every tracked signal, intended for
// periodic structured logging rather than the pass/fail Healthy check.
type Metrics struct {
	PipelineLag          time.Duration `json:"pipeline_lag_ms"`
	DedupInsertCount     int64         `json:"dedup_insert_count"`
	RouterQueueInFlight  int64         `json:"router_queue_in_flight"`
	RouterQueueSize      int64         `json:"router_queue_size"`
	ProcessCPUPercent    float64       `json:"process_cpu_percent"`
	ProcessMemUsedMB     float64       `json:"process_mem_used_mb"`
}

// Collect gathers a Metrics snapshot. gopsutil calls fail closed to zero
// values rather than propagating an error: host metrics are informational,
// never gating for readiness.
func (m *Monitor) Collect(ctx context.Context) Metrics {
	var metrics Metrics

	if m.pipeline != nil {
		metrics.PipelineLag = m.pipeline.Lag()
	}
	if m.dedup != nil {
		metrics.DedupInsertCount = m.dedup.InsertCount()
	}
	if m.router != nil {
		metrics.RouterQueueInFlight, metrics.RouterQueueSize = m.router.QueueDepth()
	}

	if percents, err := cpu.PercentWithContext(ctx, 100*time.Millisecond, false); err == nil && len(percents) > 0 {
		metrics.ProcessCPUPercent = percents[0]
	} else if err != nil {
		m.log.Debug().Err(err).Msg("cpu.Percent unavailable")
	}

	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		metrics.ProcessMemUsedMB = float64(vm.Used) / 1024 / 1024
	} else {
		m.log.Debug().Err(err).Msg("mem.VirtualMemory unavailable")
	}

	return metrics
}
