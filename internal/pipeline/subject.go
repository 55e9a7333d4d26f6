package pipeline

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/marketintel/internal/clients/marketdata"
	"github.com/aristath/marketintel/internal/model"
	"github.com/aristath/marketintel/internal/modules/market_hours"
)

// Subject is a pluggable candle source: CSV replay for backtests, or a live
// poll of the broker's market-data API.
type Subject interface {
	// Next returns the next candle. ok is false once the subject is
	// exhausted (CSV EOF); live subjects never report ok=false.
	Next(ctx context.Context) (candle model.Candle, ok bool, err error)
	Close() error
}

// CSVSubject replays OHLCV rows from a CSV file in file order, one row per
// Next call. Header: ticker,timestamp,open,high,low,close,volume.
type CSVSubject struct {
	file   *os.File
	reader *csv.Reader
}

// NewCSVSubject opens path and discards its header row.
func NewCSVSubject(path string) (*CSVSubject, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("pipeline: open csv subject %s: %w", path, err)
	}
	r := csv.NewReader(f)
	if _, err := r.Read(); err != nil {
		f.Close()
		return nil, fmt.Errorf("pipeline: read csv header %s: %w", path, err)
	}
	return &CSVSubject{file: f, reader: r}, nil
}

// Next reads and parses the next row.
func (s *CSVSubject) Next(ctx context.Context) (model.Candle, bool, error) {
	record, err := s.reader.Read()
	if err == io.EOF {
		return model.Candle{}, false, nil
	}
	if err != nil {
		return model.Candle{}, false, fmt.Errorf("pipeline: read csv row: %w", err)
	}
	candle, err := parseCSVRow(record)
	if err != nil {
		return model.Candle{}, false, err
	}
	return candle, true, nil
}

// Close releases the underlying file handle.
func (s *CSVSubject) Close() error { return s.file.Close() }

func parseCSVRow(record []string) (model.Candle, error) {
	if len(record) < 7 {
		return model.Candle{}, fmt.Errorf("pipeline: csv row has %d fields, want 7", len(record))
	}
	ts, err := time.Parse(time.RFC3339, record[1])
	if err != nil {
		return model.Candle{}, fmt.Errorf("pipeline: parse csv timestamp %q: %w", record[1], err)
	}
	floats := make([]float64, 5)
	for i, field := range record[2:7] {
		v, err := strconv.ParseFloat(field, 64)
		if err != nil {
			return model.Candle{}, fmt.Errorf("pipeline: parse csv field %q: %w", field, err)
		}
		floats[i] = v
	}
	return model.Candle{
		Ticker: record[0], Timestamp: ts,
		Open: floats[0], High: floats[1], Low: floats[2], Close: floats[3], Volume: floats[4],
	}, nil
}

const liveGateSleep = 60 * time.Second

// LiveSubject round-robins a fixed ticker list, polling the market-data API
// once per Next call, gated by market_hours.IsMarketOpen for the configured
// exchange (that exchange's own session hours, weekends and holidays):
// while the exchange is closed it sleeps 60s and retries. No fixed
// local-time window such as 09:00-15:45 is applied.
type LiveSubject struct {
	client      *marketdata.Client
	marketHours *market_hours.MarketHoursService
	exchange    string
	tickers     []string
	idx         int
	log         zerolog.Logger
}

// NewLiveSubject constructs a LiveSubject over tickers, gated against
// exchange's trading hours.
func NewLiveSubject(client *marketdata.Client, marketHours *market_hours.MarketHoursService, exchange string, tickers []string, log zerolog.Logger) *LiveSubject {
	return &LiveSubject{
		client: client, marketHours: marketHours, exchange: exchange, tickers: tickers,
		log: log.With().Str("component", "live_subject").Logger(),
	}
}

// Next blocks (sleeping outside trading hours) until it can poll the next
// ticker in rotation, then returns its latest candle.
func (s *LiveSubject) Next(ctx context.Context) (model.Candle, bool, error) {
	if len(s.tickers) == 0 {
		return model.Candle{}, true, fmt.Errorf("pipeline: live subject has no tickers configured")
	}
	for {
		if !s.marketHours.IsMarketOpen(s.exchange, time.Now()) {
			s.log.Debug().Msg("outside trading hours, sleeping")
			select {
			case <-time.After(liveGateSleep):
				continue
			case <-ctx.Done():
				return model.Candle{}, true, ctx.Err()
			}
		}

		ticker := s.tickers[s.idx]
		s.idx = (s.idx + 1) % len(s.tickers)

		candle, err := s.client.LatestCandle(ctx, ticker)
		if err != nil {
			return model.Candle{}, true, err
		}
		return candle, true, nil
	}
}

// Close is a no-op: LiveSubject owns no file handles.
func (s *LiveSubject) Close() error { return nil }
