package orchestrator

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/marketintel/internal/model"
)

func writeInstrumentsCSV(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "instruments.csv")
	content := "ticker,name\nRELIANCE,RELIANCE INDUSTRIES LIMITED\nTCS,TATA CONSULTANCY SERVICES\nINFY,INFOSYS LIMITED\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestResolve_MatchesByFuzzyCompanyName(t *testing.T) {
	idx, err := LoadInstrumentIndex(writeInstrumentsCSV(t), 0.8, nil)
	require.NoError(t, err)

	result := idx.Resolve("Reliance Industries Ltd")

	assert.Equal(t, "RELIANCE", result.Ticker)
	assert.Equal(t, model.MatchLocalName, result.MatchType)
	assert.GreaterOrEqual(t, result.Confidence, 0.8)
}

func TestResolve_MatchesByTickerWhenNameMisses(t *testing.T) {
	idx, err := LoadInstrumentIndex(writeInstrumentsCSV(t), 0.8, nil)
	require.NoError(t, err)

	result := idx.Resolve("INFY")

	assert.Equal(t, "INFY", result.Ticker)
}

type fakeRemote struct {
	ticker, name string
	ok           bool
}

func (f fakeRemote) Resolve(query string) (string, string, bool) { return f.ticker, f.name, f.ok }

func TestResolve_FallsBackToRemoteResolverWhenLocalMissesThreshold(t *testing.T) {
	idx, err := LoadInstrumentIndex(writeInstrumentsCSV(t), 0.95, fakeRemote{ticker: "ZOMATO", name: "ZOMATO LTD", ok: true})
	require.NoError(t, err)

	result := idx.Resolve("some completely unrelated query string")

	assert.Equal(t, "ZOMATO", result.Ticker)
	assert.Equal(t, model.MatchRemote, result.MatchType)
}

func TestResolve_ReturnsUnresolvedWhenNoMatchAndNoRemote(t *testing.T) {
	idx, err := LoadInstrumentIndex(writeInstrumentsCSV(t), 0.95, nil)
	require.NoError(t, err)

	result := idx.Resolve("")

	assert.Equal(t, model.MatchUnresolved, result.MatchType)
	assert.Empty(t, result.Ticker)
}
