// Package agentrouter dispatches a routing decision (which specialist
// agents to run, for which ticker) through a fan-out/join graph, gated by a
// global concurrency semaphore and a per-ticker mutex so the same ticker
// never runs two analyses at once. A sentiment conflict between the
// technical signal and news/twitter sentiment suppresses publication
// instead of emitting a contradictory analysis.
package agentrouter

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"github.com/aristath/marketintel/internal/broker"
	"github.com/aristath/marketintel/internal/events"
	"github.com/aristath/marketintel/internal/model"
)

// Graph runs the fan-out-to-specialists, join, and explainability steps for
// a single ticker and returns the joined result. Implementations use pool
// to offload any blocking per-agent work.
type Graph interface {
	Run(ctx context.Context, pool *Pool, ticker string, decision model.RoutingDecision) (GraphResult, error)
}

// Config controls Router's dispatch gates and shutdown behavior.
type Config struct {
	MaxConcurrent  int
	WorkerPoolSize int
	DrainTimeout   time.Duration
}

// Router is AgentRouter: it bounds total concurrent ticker dispatches with
// a global semaphore, prevents two concurrent dispatches for the same
// ticker with a per-ticker mutex, and vetoes publication of any result its
// ConflictPolicy flags.
type Router struct {
	graph    Graph
	policy   ConflictPolicy
	pool     *Pool
	producer *broker.Producer
	bus      *events.Manager
	log      zerolog.Logger

	global       *semaphore.Weighted
	tickerLocks  sync.Map // ticker -> *sync.Mutex
	drainTimeout time.Duration

	wg sync.WaitGroup
}

// New builds a Router. producer publishes accepted GraphResult.Payload
// values to the stock_analysis topic; bus receives KindConflictDetected
// when the policy vetoes a result.
func New(graph Graph, producer *broker.Producer, bus *events.Manager, cfg Config, log zerolog.Logger) *Router {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 3
	}
	if cfg.WorkerPoolSize <= 0 {
		cfg.WorkerPoolSize = 5
	}
	if cfg.DrainTimeout <= 0 {
		cfg.DrainTimeout = 60 * time.Second
	}
	return &Router{
		graph:        graph,
		policy:       SentimentConflictPolicy{},
		pool:         NewPool(cfg.WorkerPoolSize),
		producer:     producer,
		bus:          bus,
		log:          log.With().Str("component", "agent_router").Logger(),
		global:       semaphore.NewWeighted(int64(cfg.MaxConcurrent)),
		drainTimeout: cfg.DrainTimeout,
	}
}

// WithConflictPolicy overrides the default SentimentConflictPolicy.
func (r *Router) WithConflictPolicy(p ConflictPolicy) { r.policy = p }

// QueueDepth reports how many worker-pool slots are currently occupied
// against its total width, for health/monitoring reporting.
func (r *Router) QueueDepth() (inFlight, size int64) {
	return r.pool.InFlight(), r.pool.Size()
}

func (r *Router) tickerLock(ticker string) *sync.Mutex {
	v, _ := r.tickerLocks.LoadOrStore(ticker, &sync.Mutex{})
	return v.(*sync.Mutex)
}

// Dispatch runs decision's graph for ticker in a new goroutine, gated by
// the global semaphore and the ticker's own mutex, and publishes the
// result unless ConflictPolicy vetoes it. Dispatch returns once it holds a
// global semaphore slot and has started the goroutine; the ticker's mutex
// is taken inside that goroutine. It does not wait for the analysis to
// complete; call Shutdown to wait for drain.
func (r *Router) Dispatch(ctx context.Context, ticker string, decision model.RoutingDecision) error {
	if err := r.global.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("agentrouter: acquire global slot for %s: %w", ticker, err)
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer r.global.Release(1)

		lock := r.tickerLock(ticker)
		lock.Lock()
		defer lock.Unlock()

		r.run(ctx, ticker, decision)
	}()
	return nil
}

func (r *Router) run(ctx context.Context, ticker string, decision model.RoutingDecision) {
	result, err := r.graph.Run(ctx, r.pool, ticker, decision)
	if err != nil {
		r.log.Error().Err(err).Str("ticker", ticker).Msg("graph run failed")
		return
	}

	if conflict, reason := r.policy.Check(result); conflict {
		r.log.Warn().Str("ticker", ticker).Str("reason", reason).Msg("suppressing publish: conflict detected")
		r.bus.Publish(events.Event{
			Kind:    events.KindConflictDetected,
			Ticker:  ticker,
			Message: reason,
		})
		return
	}

	if r.producer == nil {
		return
	}
	if err := r.producer.Publish(ctx, ticker, result.Payload); err != nil {
		r.log.Error().Err(err).Str("ticker", ticker).Msg("publish analysis failed")
	}
}

// Shutdown waits for all in-flight dispatches to finish, up to the
// configured drain timeout.
func (r *Router) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	timeout := time.NewTimer(r.drainTimeout)
	defer timeout.Stop()

	select {
	case <-done:
		return nil
	case <-timeout.C:
		return fmt.Errorf("agentrouter: shutdown drain timed out after %s", r.drainTimeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}
