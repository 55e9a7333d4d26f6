package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/marketintel/internal/apperr"
	"github.com/aristath/marketintel/internal/events"
	"github.com/aristath/marketintel/internal/model"
	"github.com/aristath/marketintel/internal/modules/indicators"
	"github.com/aristath/marketintel/internal/modules/signalgen"
)

func TestCSVSubject_ParsesRowsInOrder(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "candles.csv")
	content := "ticker,timestamp,open,high,low,close,volume\n" +
		"ACME,2026-01-02T09:00:00Z,100,101,99,100.5,1000\n" +
		"ACME,2026-01-02T09:05:00Z,100.5,102,100,101.5,1200\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	subject, err := NewCSVSubject(path)
	require.NoError(t, err)
	defer subject.Close()

	ctx := context.Background()

	candle, ok, err := subject.Next(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "ACME", candle.Ticker)
	assert.Equal(t, 100.5, candle.Close)

	candle, ok, err = subject.Next(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 101.5, candle.Close)

	_, ok, err = subject.Next(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSaveLoadSnapshot_RoundTrips(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "snapshot.msgpack")

	state := snapshotState{Windows: map[string][]indicators.Row{
		"ACME": {
			{Ticker: "ACME", Timestamp: time.Unix(1000, 0).UTC(), Close: 100},
			{Ticker: "ACME", Timestamp: time.Unix(2000, 0).UTC(), Close: 101},
		},
	}}

	require.NoError(t, saveSnapshot(path, state))

	loaded, err := loadSnapshot(path)
	require.NoError(t, err)
	require.Len(t, loaded.Windows["ACME"], 2)
	assert.Equal(t, 101.0, loaded.Windows["ACME"][1].Close)
}

func TestLoadSnapshot_MissingFileReturnsEmptyState(t *testing.T) {
	state, err := loadSnapshot(filepath.Join(t.TempDir(), "absent.msgpack"))
	require.NoError(t, err)
	assert.Empty(t, state.Windows)
}

func TestLoadSnapshot_DetectsRowTickerMismatchAsCorrupt(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "snapshot.msgpack")

	state := snapshotState{Windows: map[string][]indicators.Row{
		"ACME": {{Ticker: "WRONG", Timestamp: time.Unix(1000, 0).UTC(), Close: 100}},
	}}
	require.NoError(t, saveSnapshot(path, state))

	_, err := loadSnapshot(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrSnapshotCorrupt)
}

func TestLoadSnapshot_GarbageBytesAreReportedAsCorrupt(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "snapshot.msgpack")
	require.NoError(t, os.WriteFile(path, []byte{0xff, 0x00, 0x01, 0x02}, 0o644))

	_, err := loadSnapshot(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrSnapshotCorrupt)
}

type fakeSubject struct {
	candles []model.Candle
	idx     int
}

func (f *fakeSubject) Next(ctx context.Context) (model.Candle, bool, error) {
	if f.idx >= len(f.candles) {
		return model.Candle{}, false, nil
	}
	c := f.candles[f.idx]
	f.idx++
	return c, true, nil
}

func (f *fakeSubject) Close() error { return nil }

type captureSink struct {
	snapshots []model.IndicatorSnapshot
}

func (c *captureSink) Write(_ context.Context, snap model.IndicatorSnapshot) error {
	c.snapshots = append(c.snapshots, snap)
	return nil
}

type captureSignalSink struct {
	signals []model.TradeSignal
}

func (c *captureSignalSink) Write(_ context.Context, signal model.TradeSignal) error {
	c.signals = append(c.signals, signal)
	return nil
}

func TestRuntime_EmitsSnapshotAndSignalPerCandleThenExitsOnEOF(t *testing.T) {
	engine := indicators.New(indicators.Config{})
	generator := signalgen.New(signalgen.Config{})
	subject := &fakeSubject{candles: []model.Candle{
		{Ticker: "ACME", Timestamp: time.Unix(1000, 0).UTC(), Open: 100, High: 101, Low: 99, Close: 100.5, Volume: 1000},
		{Ticker: "ACME", Timestamp: time.Unix(1300, 0).UTC(), Open: 100.5, High: 102, Low: 100, Close: 101.5, Volume: 1200},
	}}
	bus := events.New(zerolog.Nop())
	sub, unsubscribe := bus.Subscribe()
	defer unsubscribe()

	snapSink := &captureSink{}
	signalSink := &captureSignalSink{}

	rt := New(engine, generator, subject, bus, Config{}, zerolog.Nop())
	rt.AddSink(snapSink)
	rt.AddSignalSink(signalSink)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	err := rt.Run(ctx)
	require.NoError(t, err)

	assert.Len(t, snapSink.snapshots, 2)
	assert.Len(t, signalSink.signals, 2)
	assert.Equal(t, "ACME", snapSink.snapshots[0].Ticker)

	select {
	case ev := <-sub:
		assert.Equal(t, events.KindWindowEmitted, ev.Kind)
	default:
		t.Fatal("expected a KindWindowEmitted event on the bus")
	}
}

func TestRuntime_Recover_ClearsStateOnCorruptSnapshotWithoutError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "snapshot.msgpack")
	require.NoError(t, os.WriteFile(path, []byte{0xff, 0x00}, 0o644))

	engine := indicators.New(indicators.Config{})
	bus := events.New(zerolog.Nop())
	sub, unsubscribe := bus.Subscribe()
	defer unsubscribe()

	rt := New(engine, nil, &fakeSubject{}, bus, Config{SnapshotPath: path}, zerolog.Nop())
	require.NoError(t, rt.Recover())

	select {
	case ev := <-sub:
		assert.Equal(t, events.KindSnapshotCorrupt, ev.Kind)
	case <-time.After(time.Second):
		t.Fatal("expected a KindSnapshotCorrupt event")
	}
}
