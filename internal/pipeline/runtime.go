// Package pipeline implements PipelineRuntime: a typed-stream runtime over
// pluggable Subjects (CSV replay, live broker-API poll), folding candles
// through IndicatorEngine's sliding window, fanning the resulting
// IndicatorSnapshot/TradeSignal pairs out to CSV, document-store, and
// topic-broker sinks, with a crash-recoverable filesystem snapshot taken
// every 60 seconds.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/marketintel/internal/apperr"
	"github.com/aristath/marketintel/internal/events"
	"github.com/aristath/marketintel/internal/modules/indicators"
	"github.com/aristath/marketintel/internal/modules/signalgen"
)

const defaultSnapshotInterval = 60 * time.Second

// Config configures a Runtime's snapshot cadence and file location.
type Config struct {
	SnapshotPath     string
	SnapshotInterval time.Duration
}

// Runtime drives one Subject through one Engine, writing every emission to
// the configured sinks and publishing a KindWindowEmitted event per
// observed candle.
type Runtime struct {
	engine    *indicators.Engine
	generator *signalgen.Generator
	subject   Subject
	sinks     []Sink
	signalSinks []SignalSink
	bus       *events.Manager
	log       zerolog.Logger

	snapshotPath     string
	snapshotInterval time.Duration

	stop chan struct{}
	done chan struct{}

	lastEmitUnixNano atomic.Int64
}

// New constructs a Runtime. generator may be nil to disable signal
// generation (snapshot-only deployments, e.g. feature backfills).
func New(engine *indicators.Engine, generator *signalgen.Generator, subject Subject, bus *events.Manager, cfg Config, log zerolog.Logger) *Runtime {
	if cfg.SnapshotInterval <= 0 {
		cfg.SnapshotInterval = defaultSnapshotInterval
	}
	return &Runtime{
		engine: engine, generator: generator, subject: subject, bus: bus,
		log:              log.With().Str("component", "pipeline_runtime").Logger(),
		snapshotPath:     cfg.SnapshotPath,
		snapshotInterval: cfg.SnapshotInterval,
		stop:             make(chan struct{}),
		done:             make(chan struct{}),
	}
}

// Lag reports how long it has been since the last window emission, for
// health/monitoring reporting. Zero if no window has been emitted yet.
func (r *Runtime) Lag() time.Duration {
	last := r.lastEmitUnixNano.Load()
	if last == 0 {
		return 0
	}
	return time.Since(time.Unix(0, last))
}

// AddSink registers a snapshot sink.
func (r *Runtime) AddSink(s Sink) { r.sinks = append(r.sinks, s) }

// AddSignalSink registers a trade-signal sink.
func (r *Runtime) AddSignalSink(s SignalSink) { r.signalSinks = append(r.signalSinks, s) }

// Recover loads the snapshot file (if any) and replays it into the engine.
// A corrupt snapshot is logged, reported on the event bus, and discarded
// rather than propagated: the runtime restarts its window build from
// scratch.
func (r *Runtime) Recover() error {
	if r.snapshotPath == "" {
		return nil
	}
	state, err := loadSnapshot(r.snapshotPath)
	if err != nil {
		if errors.Is(err, apperr.ErrSnapshotCorrupt) {
			r.log.Warn().Err(err).Msg("snapshot corrupt, clearing state and restarting build")
			r.bus.Publish(events.Event{Kind: events.KindSnapshotCorrupt, Message: err.Error(), OccurredAt: time.Now()})
			return nil
		}
		return fmt.Errorf("pipeline: recover snapshot: %w", err)
	}
	r.engine.Restore(state.Windows)
	return nil
}

// Run drains the subject until it's exhausted (backtest EOF) or ctx is
// cancelled, snapshotting state every snapshotInterval in the background.
func (r *Runtime) Run(ctx context.Context) error {
	go r.snapshotLoop(ctx)
	defer func() {
		close(r.stop)
		<-r.done
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		candle, ok, err := r.subject.Next(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			r.log.Warn().Err(err).Msg("subject read failed, continuing")
			continue
		}
		if !ok {
			return nil
		}

		snap := r.engine.Observe(candle)
		r.lastEmitUnixNano.Store(time.Now().UnixNano())

		for _, sink := range r.sinks {
			if err := sink.Write(ctx, snap); err != nil {
				r.log.Warn().Err(err).Str("ticker", candle.Ticker).Msg("sink write failed")
			}
		}
		r.bus.Publish(events.Event{
			Kind: events.KindWindowEmitted, Ticker: candle.Ticker, OccurredAt: time.Now(),
			Data: map[string]any{"snapshot": snap},
		})

		if r.generator != nil {
			signal := r.generator.Generate(candle.Ticker, snap)
			for _, sink := range r.signalSinks {
				if err := sink.Write(ctx, signal); err != nil {
					r.log.Warn().Err(err).Str("ticker", candle.Ticker).Msg("signal sink write failed")
				}
			}
		}
	}
}

func (r *Runtime) snapshotLoop(ctx context.Context) {
	defer close(r.done)
	if r.snapshotPath == "" {
		<-r.stop
		return
	}

	ticker := time.NewTicker(r.snapshotInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.flushSnapshot()
		case <-ctx.Done():
			r.flushSnapshot()
			return
		case <-r.stop:
			r.flushSnapshot()
			return
		}
	}
}

func (r *Runtime) flushSnapshot() {
	windows := make(map[string][]indicators.Row)
	for _, t := range r.engine.Tickers() {
		windows[t] = r.engine.Rows(t)
	}
	if err := saveSnapshot(r.snapshotPath, snapshotState{Windows: windows}); err != nil {
		r.log.Warn().Err(err).Msg("snapshot flush failed")
	}
}
