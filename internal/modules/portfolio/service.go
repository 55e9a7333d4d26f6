// Package portfolio implements PortfolioService: transactional
// read-modify-write over a user's holdings with weighted-average cost
// basis, sector-exposure normalization, and wealth-conservation bookkeeping.
// Uses the same construction idiom as this codebase's other services
// (interface-injected collaborators, a component-scoped logger), here over
// a document store instead of a SQL ledger.
package portfolio

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aristath/marketintel/internal/model"
	"github.com/aristath/marketintel/internal/modules/explain"
	"github.com/aristath/marketintel/internal/store/document"
)

// Service is PortfolioService. It serializes applies per portfolio_id with
// an in-process mutex (the required single-writer policy) and
// persists through the shared document store, exactly as
// internal/modules/agentrouter.Router serializes per-ticker dispatches.
type Service struct {
	store *document.Store
	log   zerolog.Logger

	locks sync.Map // portfolio_id -> *sync.Mutex
}

// New builds a Service over store.
func New(store *document.Store, log zerolog.Logger) *Service {
	return &Service{
		store: store,
		log:   log.With().Str("component", "portfolio_service").Logger(),
	}
}

func (s *Service) lock(portfolioID string) *sync.Mutex {
	v, _ := s.locks.LoadOrStore(portfolioID, &sync.Mutex{})
	return v.(*sync.Mutex)
}

// Initialize creates a new portfolio for userID with the given starting cash
// and holdings, computing initial weights and sector exposures the same way
// a later Apply call would. Holdings passed in should already carry
// Quantity/AvgCost/CurrentPrice/Sector/Beta; MarketValue/UnrealizedPnL are
// (re)computed here.
func (s *Service) Initialize(ctx context.Context, userID string, cash float64, currency string, holdings []model.Holding) (model.Portfolio, error) {
	normalized := make([]model.Holding, len(holdings))
	copy(normalized, holdings)

	holdingsValue := 0.0
	for i := range normalized {
		normalized[i].Recompute()
		holdingsValue += normalized[i].MarketValue
	}
	totalValue := cash + holdingsValue

	sectorExposure := make(map[string]float64)
	for i := range normalized {
		if totalValue > 0 {
			normalized[i].Weight = normalized[i].MarketValue / totalValue
		}
		if normalized[i].Sector != "" {
			sectorExposure[normalized[i].Sector] += normalized[i].MarketValue
		}
	}
	normalizedSectors := make(map[string]float64, len(sectorExposure))
	if totalValue > 0 {
		for sector, value := range sectorExposure {
			normalizedSectors[sector] = value / totalValue
		}
	}

	if currency == "" {
		currency = "USD"
	}

	portfolio := model.Portfolio{
		PortfolioID:     uuid.NewString(),
		UserID:          userID,
		Cash:            cash,
		TotalValue:      totalValue,
		Currency:        currency,
		PortfolioBeta:   1.0,
		SectorExposures: normalizedSectors,
		Holdings:        normalized,
		LastUpdated:     time.Now().UTC(),
	}

	if err := s.store.Upsert(ctx, document.TablePortfolios, portfolio.PortfolioID, portfolio); err != nil {
		return model.Portfolio{}, fmt.Errorf("portfolio: initialize %s: %w", userID, err)
	}

	s.log.Info().Str("user_id", userID).Str("portfolio_id", portfolio.PortfolioID).
		Float64("total_value", totalValue).Msg("portfolio initialized")
	return portfolio, nil
}

// Apply runs the full read-modify-write sequence for a single transaction
// against portfolioID, atomically with respect to any other Apply call for
// the same portfolio_id.
func (s *Service) Apply(ctx context.Context, portfolioID string, txn model.Transaction, defaults NewHoldingDefaults) (model.Portfolio, error) {
	lock := s.lock(portfolioID)
	lock.Lock()
	defer lock.Unlock()

	portfolio, found, err := s.Get(ctx, portfolioID)
	if err != nil {
		return model.Portfolio{}, fmt.Errorf("portfolio: apply: load %s: %w", portfolioID, err)
	}
	if !found {
		return model.Portfolio{}, fmt.Errorf("portfolio: apply: portfolio %s not found", portfolioID)
	}

	if txn.TransactionID == "" {
		txn.TransactionID = uuid.NewString()
	}
	if txn.Timestamp.IsZero() {
		txn.Timestamp = time.Now().UTC()
	}
	txn.PortfolioID = portfolioID

	updated, err := applyTransaction(portfolio, txn, defaults)
	if err != nil {
		return model.Portfolio{}, err
	}
	updated.LastUpdated = time.Now().UTC()

	if err := s.store.Insert(ctx, document.TableTransactions, txn); err != nil {
		return model.Portfolio{}, fmt.Errorf("portfolio: apply: record transaction: %w", err)
	}
	if err := s.store.Upsert(ctx, document.TablePortfolios, portfolioID, updated); err != nil {
		return model.Portfolio{}, fmt.Errorf("portfolio: apply: persist %s: %w", portfolioID, err)
	}

	s.log.Info().Str("portfolio_id", portfolioID).Str("ticker", txn.Ticker).
		Str("action", string(txn.Action)).Float64("quantity", txn.Quantity).
		Float64("cash", updated.Cash).Float64("total_value", updated.TotalValue).
		Msg("transaction applied")
	return updated, nil
}

// Get fetches a portfolio by its portfolio_id.
func (s *Service) Get(ctx context.Context, portfolioID string) (model.Portfolio, bool, error) {
	rec, found, err := document.Get[model.Portfolio](ctx, s.store, document.TablePortfolios, portfolioID)
	if err != nil {
		return model.Portfolio{}, false, fmt.Errorf("portfolio: get %s: %w", portfolioID, err)
	}
	if !found {
		return model.Portfolio{}, false, nil
	}
	return *rec, true, nil
}

// GetByUser looks a portfolio up by its owning user_id rather than its own
// id, for callers (the explainability tool, HTTP handlers) that only know
// the user.
func (s *Service) GetByUser(ctx context.Context, userID string) (model.Portfolio, bool, error) {
	const sql = "SELECT * FROM type::table($table) WHERE user_id = $user_id LIMIT 1"
	rows, err := document.Query[model.Portfolio](ctx, s.store, sql, map[string]any{
		"table":   document.TablePortfolios,
		"user_id": userID,
	})
	if err != nil {
		return model.Portfolio{}, false, fmt.Errorf("portfolio: get by user %s: %w", userID, err)
	}
	if len(rows) == 0 {
		return model.Portfolio{}, false, nil
	}
	return rows[0], true, nil
}

// GetPortfolio implements explain.PortfolioLookup, adapting the full
// Portfolio into the minimal view the get_portfolio tool reports.
func (s *Service) GetPortfolio(ctx context.Context, userID string) (explain.PortfolioView, bool, error) {
	p, found, err := s.GetByUser(ctx, userID)
	if err != nil || !found {
		return explain.PortfolioView{}, false, err
	}

	items := make([]explain.PortfolioItem, len(p.Holdings))
	for i, h := range p.Holdings {
		items[i] = explain.PortfolioItem{Ticker: h.Ticker, Quantity: h.Quantity, AvgCost: h.AvgCost}
	}
	return explain.PortfolioView{UserID: p.UserID, Holdings: items}, true, nil
}
