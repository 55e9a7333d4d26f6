package pipeline

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/marketintel/internal/broker"
	"github.com/aristath/marketintel/internal/events"
	"github.com/aristath/marketintel/internal/model"
	"github.com/aristath/marketintel/internal/store/document"
)

// Sink receives every IndicatorSnapshot PipelineRuntime emits: CSV,
// document insert, and document upsert sinks all implement it.
type Sink interface {
	Write(ctx context.Context, snap model.IndicatorSnapshot) error
}

// SignalSink receives the TradeSignal SignalGenerator derives from each
// snapshot; the topic-broker sink publishes the derived signal, not the
// raw snapshot.
type SignalSink interface {
	Write(ctx context.Context, signal model.TradeSignal) error
}

var csvHeader = []string{
	"ticker", "window_end", "close", "open", "high", "low", "volume",
	"rsi", "sma20", "sma50", "std20", "vwap", "atr14", "cmo", "crsi",
}

// CSVSink appends one row per snapshot to a CSV file, flushing after every
// write so a crash loses at most the in-flight row.
type CSVSink struct {
	mu     sync.Mutex
	file   *os.File
	writer *csv.Writer
}

// NewCSVSink opens (creating if needed) path for append, writing a header
// if the file is new.
func NewCSVSink(path string) (*CSVSink, error) {
	existing, statErr := os.Stat(path)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("pipeline: open csv sink %s: %w", path, err)
	}
	w := csv.NewWriter(f)
	if statErr != nil || existing.Size() == 0 {
		if err := w.Write(csvHeader); err != nil {
			f.Close()
			return nil, fmt.Errorf("pipeline: write csv header %s: %w", path, err)
		}
		w.Flush()
	}
	return &CSVSink{file: f, writer: w}, nil
}

// Write appends snap as one CSV row.
func (s *CSVSink) Write(_ context.Context, snap model.IndicatorSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := []string{
		snap.Ticker, snap.WindowEnd.Format(time.RFC3339),
		strconv.FormatFloat(snap.Close, 'f', -1, 64), strconv.FormatFloat(snap.Open, 'f', -1, 64),
		strconv.FormatFloat(snap.High, 'f', -1, 64), strconv.FormatFloat(snap.Low, 'f', -1, 64),
		strconv.FormatFloat(snap.Volume, 'f', -1, 64),
		strconv.FormatFloat(snap.RSI, 'f', -1, 64), strconv.FormatFloat(snap.SMA20, 'f', -1, 64),
		strconv.FormatFloat(snap.SMA50, 'f', -1, 64), strconv.FormatFloat(snap.Std20, 'f', -1, 64),
		strconv.FormatFloat(snap.VWAP, 'f', -1, 64), strconv.FormatFloat(snap.ATR14, 'f', -1, 64),
		strconv.FormatFloat(snap.CMO, 'f', -1, 64), strconv.FormatFloat(snap.CRSI, 'f', -1, 64),
	}
	if err := s.writer.Write(row); err != nil {
		return fmt.Errorf("pipeline: write csv row: %w", err)
	}
	s.writer.Flush()
	return s.writer.Error()
}

// Close flushes and closes the underlying file.
func (s *CSVSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writer.Flush()
	return s.file.Close()
}

// DocumentInsertSink appends every snapshot to the indicators collection
// without a key, preserving full history (as opposed to DocumentUpsertSink's
// latest-state-per-ticker view). Intended for backtest runs that want a
// complete replay trail.
type DocumentInsertSink struct {
	store *document.Store
}

// NewDocumentInsertSink constructs a DocumentInsertSink over store.
func NewDocumentInsertSink(store *document.Store) *DocumentInsertSink {
	return &DocumentInsertSink{store: store}
}

// Write inserts snap as a new row.
func (s *DocumentInsertSink) Write(ctx context.Context, snap model.IndicatorSnapshot) error {
	if err := s.store.Insert(ctx, document.TableIndicators, snap); err != nil {
		return fmt.Errorf("pipeline: insert indicator snapshot: %w", err)
	}
	return nil
}

// DocumentUpsertSink keeps the indicators collection's latest-per-ticker row
// current. Rather than being called synchronously in the runtime's hot
// path, it subscribes to the event bus's KindWindowEmitted notifications
// and upserts asynchronously via a keyed upsert.
type DocumentUpsertSink struct {
	store       *document.Store
	unsubscribe func()
	log         zerolog.Logger
}

// NewDocumentUpsertSink subscribes to bus and starts the consuming
// goroutine. Call Close to unsubscribe and stop it.
func NewDocumentUpsertSink(store *document.Store, bus *events.Manager, log zerolog.Logger) *DocumentUpsertSink {
	s := &DocumentUpsertSink{store: store, log: log.With().Str("component", "indicator_upsert_sink").Logger()}
	ch, unsubscribe := bus.Subscribe()
	s.unsubscribe = unsubscribe
	go s.consume(ch)
	return s
}

func (s *DocumentUpsertSink) consume(ch <-chan events.Event) {
	for ev := range ch {
		if ev.Kind != events.KindWindowEmitted {
			continue
		}
		snap, ok := ev.Data["snapshot"].(model.IndicatorSnapshot)
		if !ok {
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := s.store.Upsert(ctx, document.TableIndicators, snap.Ticker, snap); err != nil {
			s.log.Warn().Err(err).Str("ticker", snap.Ticker).Msg("upsert indicator snapshot failed")
		}
		cancel()
	}
}

// Write upserts snap into the indicators collection directly, keyed by
// ticker, so DocumentUpsertSink also satisfies Sink for runtimes that
// drive it synchronously instead of through the shared bus.
func (s *DocumentUpsertSink) Write(ctx context.Context, snap model.IndicatorSnapshot) error {
	return s.store.Upsert(ctx, document.TableIndicators, snap.Ticker, snap)
}

// Close unsubscribes from the event bus.
func (s *DocumentUpsertSink) Close() { s.unsubscribe() }

// BrokerSignalSink publishes each TradeSignal to the trade_signals topic,
// keyed by ticker.
type BrokerSignalSink struct {
	producer *broker.Producer
}

// NewBrokerSignalSink constructs a BrokerSignalSink over producer.
func NewBrokerSignalSink(producer *broker.Producer) *BrokerSignalSink {
	return &BrokerSignalSink{producer: producer}
}

// Write publishes signal.
func (s *BrokerSignalSink) Write(ctx context.Context, signal model.TradeSignal) error {
	if err := s.producer.Publish(ctx, signal.Ticker, signal); err != nil {
		return fmt.Errorf("pipeline: publish trade signal: %w", err)
	}
	return nil
}
