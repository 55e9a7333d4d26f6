package orchestrator

import (
	"encoding/csv"
	"fmt"
	"os"
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/aristath/marketintel/internal/model"
)

const defaultFuzzyThreshold = 0.90

// Instrument is one row of the local ticker universe CSV: tradingsymbol,
// company name. No exchange column: this system tracks a single universe.
type Instrument struct {
	Ticker string
	Name   string
}

// RemoteResolver is consulted when neither local fuzzy-match tier clears
// the confidence threshold. A nil RemoteResolver simply leaves the query
// unresolved.
type RemoteResolver interface {
	Resolve(query string) (ticker, companyName string, ok bool)
}

// InstrumentIndex resolves free-text company names or ticker symbols to the
// local instrument universe via normalized Levenshtein similarity, falling
// back to a RemoteResolver.
type InstrumentIndex struct {
	instruments    []Instrument
	fuzzyThreshold float64
	remote         RemoteResolver
}

// LoadInstrumentIndex reads a CSV file with a "ticker,name" header into an
// InstrumentIndex.
func LoadInstrumentIndex(path string, fuzzyThreshold float64, remote RemoteResolver) (*InstrumentIndex, error) {
	if fuzzyThreshold <= 0 {
		fuzzyThreshold = defaultFuzzyThreshold
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: open instrument universe %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("orchestrator: read instrument universe %s: %w", path, err)
	}
	if len(rows) == 0 {
		return &InstrumentIndex{fuzzyThreshold: fuzzyThreshold, remote: remote}, nil
	}

	instruments := make([]Instrument, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if len(row) < 2 {
			continue
		}
		instruments = append(instruments, Instrument{Ticker: strings.ToUpper(strings.TrimSpace(row[0])), Name: strings.ToUpper(strings.TrimSpace(row[1]))})
	}

	return &InstrumentIndex{instruments: instruments, fuzzyThreshold: fuzzyThreshold, remote: remote}, nil
}

// similarity normalizes Levenshtein edit distance into a 0..1 score: 1 means
// identical strings, 0 means completely dissimilar.
func similarity(a, b string) float64 {
	maxLen := len(a)
	if len(b) > maxLen {
		maxLen = len(b)
	}
	if maxLen == 0 {
		return 1.0
	}
	dist := levenshtein.ComputeDistance(a, b)
	return 1.0 - float64(dist)/float64(maxLen)
}

// Resolve matches query against company names first, then ticker symbols,
// then the remote resolver, in that order: local-name, then local-ticker,
// then remote-search cascade.
func (idx *InstrumentIndex) Resolve(query string) model.ResolvedTicker {
	q := strings.ToUpper(strings.TrimSpace(query))

	bestTicker, bestScore := "", 0.0
	bestName := ""
	for _, inst := range idx.instruments {
		if s := similarity(q, inst.Name); s > bestScore {
			bestScore, bestTicker, bestName = s, inst.Ticker, inst.Name
		}
	}
	if bestScore >= idx.fuzzyThreshold {
		return model.ResolvedTicker{Query: query, Ticker: bestTicker, CompanyName: bestName, MatchType: model.MatchLocalName, Confidence: bestScore}
	}

	bestTicker, bestScore = "", 0.0
	bestName = ""
	for _, inst := range idx.instruments {
		if s := similarity(q, inst.Ticker); s > bestScore {
			bestScore, bestTicker, bestName = s, inst.Ticker, inst.Name
		}
	}
	if bestScore >= idx.fuzzyThreshold {
		return model.ResolvedTicker{Query: query, Ticker: bestTicker, CompanyName: bestName, MatchType: model.MatchLocalTicker, Confidence: bestScore}
	}

	if idx.remote != nil {
		if ticker, name, ok := idx.remote.Resolve(query); ok {
			return model.ResolvedTicker{Query: query, Ticker: ticker, CompanyName: name, MatchType: model.MatchRemote, Confidence: 1.0}
		}
	}

	return model.ResolvedTicker{Query: query, MatchType: model.MatchUnresolved}
}

// ResolveAll resolves every query, in order.
func (idx *InstrumentIndex) ResolveAll(queries []string) []model.ResolvedTicker {
	out := make([]model.ResolvedTicker, len(queries))
	for i, q := range queries {
		out[i] = idx.Resolve(q)
	}
	return out
}
