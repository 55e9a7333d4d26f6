package agents

import (
	"context"
	"fmt"

	"github.com/aristath/marketintel/internal/model"
	"github.com/aristath/marketintel/internal/modules/indicators"
	"github.com/aristath/marketintel/internal/modules/signalgen"
)

// TechnicalOutput is TechnicalSpecialist's payload: the engine's current
// window snapshot plus the trade signal SignalGenerator derives from it.
type TechnicalOutput struct {
	Snapshot model.IndicatorSnapshot `json:"snapshot"`
	Signal   model.TradeSignal       `json:"signal"`
}

// TechnicalSpecialist reads IndicatorEngine's current window state for a
// ticker and runs it through SignalGenerator, mirroring how PipelineRuntime
// derives a TradeSignal per emission, but on demand rather than per candle.
type TechnicalSpecialist struct {
	engine    *indicators.Engine
	generator *signalgen.Generator
}

// NewTechnicalSpecialist builds a TechnicalSpecialist over a shared engine
// and generator.
func NewTechnicalSpecialist(engine *indicators.Engine, generator *signalgen.Generator) *TechnicalSpecialist {
	return &TechnicalSpecialist{engine: engine, generator: generator}
}

// Name implements Specialist.
func (s *TechnicalSpecialist) Name() string { return "technical" }

// Run implements Specialist.
func (s *TechnicalSpecialist) Run(ctx context.Context, ticker string) (any, error) {
	snap, ok := s.engine.LatestSnapshot(ticker)
	if !ok {
		return nil, fmt.Errorf("technical: no window state for %s", ticker)
	}
	signal := s.generator.Generate(ticker, snap)
	return TechnicalOutput{Snapshot: snap, Signal: signal}, nil
}
