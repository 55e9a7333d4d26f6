package agentrouter

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/marketintel/internal/events"
	"github.com/aristath/marketintel/internal/model"
)

type fakeGraph struct {
	mu          sync.Mutex
	concurrent  int
	maxObserved int
	delay       time.Duration
	result      func(ticker string) GraphResult
}

func (g *fakeGraph) Run(ctx context.Context, pool *Pool, ticker string, decision model.RoutingDecision) (GraphResult, error) {
	g.mu.Lock()
	g.concurrent++
	if g.concurrent > g.maxObserved {
		g.maxObserved = g.concurrent
	}
	g.mu.Unlock()

	if g.delay > 0 {
		time.Sleep(g.delay)
	}

	g.mu.Lock()
	g.concurrent--
	g.mu.Unlock()

	if g.result != nil {
		return g.result(ticker), nil
	}
	return GraphResult{Ticker: ticker, TechnicalAction: model.ActionHold}, nil
}

func TestDispatch_BoundsConcurrencyByMaxConcurrent(t *testing.T) {
	graph := &fakeGraph{delay: 30 * time.Millisecond}
	bus := events.New(zerolog.Nop())
	r := New(graph, nil, bus, Config{MaxConcurrent: 2, WorkerPoolSize: 5, DrainTimeout: 5 * time.Second}, zerolog.Nop())

	for i := 0; i < 6; i++ {
		ticker := string(rune('A' + i))
		require.NoError(t, r.Dispatch(context.Background(), ticker, model.RoutingDecision{}))
	}

	require.NoError(t, r.Shutdown(context.Background()))

	graph.mu.Lock()
	defer graph.mu.Unlock()
	assert.LessOrEqual(t, graph.maxObserved, 2)
}

func TestDispatch_SameTickerNeverRunsConcurrently(t *testing.T) {
	var concurrent int32
	var maxObserved int32

	slowGraph := graphFunc(func(ctx context.Context, pool *Pool, ticker string, decision model.RoutingDecision) (GraphResult, error) {
		n := atomic.AddInt32(&concurrent, 1)
		for {
			cur := atomic.LoadInt32(&maxObserved)
			if n <= cur || atomic.CompareAndSwapInt32(&maxObserved, cur, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		atomic.AddInt32(&concurrent, -1)
		return GraphResult{Ticker: ticker, TechnicalAction: model.ActionHold}, nil
	})

	bus := events.New(zerolog.Nop())
	r := New(slowGraph, nil, bus, Config{MaxConcurrent: 5, WorkerPoolSize: 5, DrainTimeout: 5 * time.Second}, zerolog.Nop())

	for i := 0; i < 4; i++ {
		require.NoError(t, r.Dispatch(context.Background(), "SAME", model.RoutingDecision{}))
	}
	require.NoError(t, r.Shutdown(context.Background()))

	assert.Equal(t, int32(1), atomic.LoadInt32(&maxObserved))
}

type graphFunc func(ctx context.Context, pool *Pool, ticker string, decision model.RoutingDecision) (GraphResult, error)

func (f graphFunc) Run(ctx context.Context, pool *Pool, ticker string, decision model.RoutingDecision) (GraphResult, error) {
	return f(ctx, pool, ticker, decision)
}

func TestDispatch_ConflictSuppressesPublishAndPublishesEvent(t *testing.T) {
	graph := graphFunc(func(ctx context.Context, pool *Pool, ticker string, decision model.RoutingDecision) (GraphResult, error) {
		return GraphResult{
			Ticker:          ticker,
			TechnicalAction: model.ActionBuy,
			NewsSentiment:   model.SentimentNegative,
			Payload:         "should not publish",
		}, nil
	})

	bus := events.New(zerolog.Nop())
	ch, unsubscribe := bus.Subscribe()
	defer unsubscribe()

	r := New(graph, nil, bus, Config{MaxConcurrent: 1, WorkerPoolSize: 1, DrainTimeout: 5 * time.Second}, zerolog.Nop())
	require.NoError(t, r.Dispatch(context.Background(), "AAPL", model.RoutingDecision{}))
	require.NoError(t, r.Shutdown(context.Background()))

	select {
	case ev := <-ch:
		assert.Equal(t, events.KindConflictDetected, ev.Kind)
		assert.Equal(t, "AAPL", ev.Ticker)
		assert.Contains(t, ev.Message, "bearish")
	case <-time.After(time.Second):
		t.Fatal("expected a conflict event")
	}
}

func TestShutdown_TimesOutWhenDispatchNeverFinishes(t *testing.T) {
	block := make(chan struct{})
	graph := graphFunc(func(ctx context.Context, pool *Pool, ticker string, decision model.RoutingDecision) (GraphResult, error) {
		<-block
		return GraphResult{Ticker: ticker, TechnicalAction: model.ActionHold}, nil
	})

	bus := events.New(zerolog.Nop())
	r := New(graph, nil, bus, Config{MaxConcurrent: 1, WorkerPoolSize: 1, DrainTimeout: 30 * time.Millisecond}, zerolog.Nop())
	require.NoError(t, r.Dispatch(context.Background(), "AAPL", model.RoutingDecision{}))

	err := r.Shutdown(context.Background())
	assert.Error(t, err)
	close(block)
}
