// Package model holds the shared data types that flow between the news
// enrichment pipeline, the indicator/signal pipeline, and the multi-agent
// orchestrator: articles and story clusters, candles and indicator
// snapshots, trade signals, and portfolio state.
package model

import "time"

// SentimentLabel classifies the polarity of a piece of financial text.
type SentimentLabel string

const (
	SentimentPositive SentimentLabel = "positive"
	SentimentNegative SentimentLabel = "negative"
	SentimentNeutral  SentimentLabel = "neutral"
)

// Confidence buckets the reliability of a classification.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// LiquidityImpact buckets how strongly a piece of news is expected to move
// trading liquidity/price action.
type LiquidityImpact string

const (
	ImpactHighPositive     LiquidityImpact = "HIGH_POSITIVE"
	ImpactModeratePositive LiquidityImpact = "MODERATE_POSITIVE"
	ImpactHighNegative     LiquidityImpact = "HIGH_NEGATIVE"
	ImpactModerateNegative LiquidityImpact = "MODERATE_NEGATIVE"
	ImpactNeutral          LiquidityImpact = "NEUTRAL"
)

// ContentQuality flags how trustworthy an extracted article body is.
type ContentQuality string

const (
	ContentGood ContentQuality = "good"
	ContentFair ContentQuality = "fair"
	ContentPoor ContentQuality = "poor"
)

// Sentiment is the classification result attached to an Article.
type Sentiment struct {
	Label          SentimentLabel     `json:"label"`
	Score          float64            `json:"score"`
	Confidence     Confidence         `json:"confidence"`
	ClassScores    map[string]float64 `json:"class_scores"`
}

// Article is a single piece of scraped and enriched financial news.
//
// Lifecycle: created by the scraper with Processed=false, enriched by
// NewsEnricher (Processed=true), then optionally summarized by
// LLMSummarizer (Summarized=true). Immutable after Summarized==true.
type Article struct {
	ArticleID      string          `json:"article_id"`
	Title          string          `json:"title"`
	OriginalURL    string          `json:"original_url"`
	CanonicalURL   string          `json:"canonical_url"`
	CompanyCode    string          `json:"company_code"`
	FactorType     string          `json:"factor_type"`
	PublishedAt    time.Time       `json:"published_at"`
	ScrapedAt      time.Time       `json:"scraped_at"`
	FetchedAt      time.Time       `json:"fetched_at"`
	Content        string          `json:"content"`
	ContentHash    string          `json:"content_hash"`
	ContentQuality ContentQuality  `json:"content_quality"`
	PublisherName  string          `json:"publisher_name"`
	Author         string          `json:"author"`
	PublisherIcon  string          `json:"publisher_icon"`
	Sentiment      Sentiment       `json:"sentiment"`
	LiquidityImpact LiquidityImpact `json:"liquidity_impact"`
	CriticalEvents []string        `json:"critical_events"`
	Decisions      []string        `json:"decisions"`
	ClusterID      string          `json:"cluster_id"`
	Processed      bool            `json:"processed"`
	ProcessedAt    *time.Time      `json:"processed_at,omitempty"`
	Summarized     bool            `json:"summarized"`
}

// StoryCluster groups multiple articles from different publishers that
// report on the same underlying story, as detected by fuzzy title matching.
type StoryCluster struct {
	ClusterID   string    `json:"cluster_id"`
	Title       string    `json:"title"`
	Company     string    `json:"company"`
	FactorType  string    `json:"factor_type"`
	PublishedAt time.Time `json:"published_at"`

	Sources    map[string]struct{} `json:"-"`
	URLs       map[string]struct{} `json:"-"`
	Publishers []string            `json:"publishers"`

	ArticleCount int `json:"article_count"`

	Sentiment       Sentiment       `json:"sentiment"`
	LiquidityImpact LiquidityImpact `json:"liquidity_impact"`
	CriticalEvents  []string        `json:"critical_events"`

	FirstSeen   time.Time `json:"first_seen"`
	LastUpdated time.Time `json:"last_updated"`
}

// AppendArticle folds a newly matched article's publisher/source/sentiment
// signal into the cluster, preserving the invariant that ArticleCount grows
// by exactly 1 and Publishers grows by exactly 1 per ingested article.
func (c *StoryCluster) AppendArticle(a Article, now time.Time) {
	if c.Sources == nil {
		c.Sources = make(map[string]struct{})
	}
	if c.URLs == nil {
		c.URLs = make(map[string]struct{})
	}
	c.Sources[a.PublisherName] = struct{}{}
	c.URLs[a.CanonicalURL] = struct{}{}
	c.Publishers = append(c.Publishers, a.PublisherName)
	c.ArticleCount++
	c.LastUpdated = now
}

// Candle is a single OHLCV bar for a ticker at a point in time. It is the
// source-of-truth input for all indicator state.
type Candle struct {
	Ticker    string    `json:"ticker"`
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
}

// Pair is a fixed two-value tuple, used for Bollinger bands and day-change
// (abs, pct) results.
type Pair [2]float64

// Triplet is a fixed three-value tuple, used for MACD, Klinger, and Keltner
// results.
type Triplet [3]float64

// IndicatorSnapshot is the per-ticker window-end row emitted by
// IndicatorEngine.
type IndicatorSnapshot struct {
	Ticker    string    `json:"ticker"`
	WindowEnd time.Time `json:"window_end"`

	Close  float64 `json:"close"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Volume float64 `json:"volume"`

	MACD    Triplet `json:"macd_triplet"`
	RSI     float64 `json:"rsi"`
	ADL     float64 `json:"adl"`
	SMA20   float64 `json:"sma20"`
	SMA50   float64 `json:"sma50"`
	Std20   float64 `json:"std20"`
	BB      Pair    `json:"bb_pair"`
	VWAP    float64 `json:"vwap"`
	ATR14   float64 `json:"atr14"`
	CMO     float64 `json:"cmo"`
	CRSI    float64 `json:"crsi"`
	Klinger Triplet `json:"klinger_triplet"`
	Keltner Triplet `json:"keltner_triplet"`

	DayChange Pair `json:"day_change_pair"`

	WindowMinLow    float64 `json:"-"`
	WindowMaxHigh   float64 `json:"-"`
	WindowAvgVolume float64 `json:"-"`
}

// Action is a trade signal recommendation.
type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
	ActionHold Action = "HOLD"
)

// TradeSignal is derived from an IndicatorSnapshot by SignalGenerator and is
// both published to the trade_signals topic and persisted to the document
// store. Field order/naming mirrors the bit-stable JSON schema the topic
// contract requires.
type TradeSignal struct {
	Ticker    string  `json:"ticker"`
	Date      string  `json:"date"`
	ClosePrice float64 `json:"close_price"`
	OpenPrice  float64 `json:"open_price"`
	Volume     float64 `json:"volume"`
	HighPrice  float64 `json:"high_price"`
	LowPrice   float64 `json:"low_price"`

	Action         Action  `json:"action"`
	StopLoss       float64 `json:"stop_loss"`
	TakeProfit     float64 `json:"take_profit"`
	SignalStrength int     `json:"signal_strength"`
	LimitOrder     float64 `json:"limit_order"`
	CurrentPrice   float64 `json:"current_price"`

	RSI        float64 `json:"rsi"`
	MACD       float64 `json:"macd"`
	MACDSignal float64 `json:"macd_signal"`
	MACDHist   float64 `json:"macd_hist"`
	VWAP       float64 `json:"vwap"`
	BolBands   Pair    `json:"bol_bands"`
	SMA        Pair    `json:"sma"`
	CRSI       float64 `json:"crsi"`
	Klinger    Triplet `json:"klinger"`
	Keltner    Triplet `json:"keltner"`
	CMO        float64 `json:"cmo"`

	Reason string `json:"reason"`

	AbsChange float64 `json:"abs_change"`
	PctChange float64 `json:"pct_change"`
}

// TransactionAction enumerates the kinds of ledger entries a portfolio
// accepts.
type TransactionAction string

const (
	TxnBuy      TransactionAction = "BUY"
	TxnSell     TransactionAction = "SELL"
	TxnDividend TransactionAction = "DIVIDEND"
	TxnSplit    TransactionAction = "SPLIT"
)

// Holding is a single position within a Portfolio.
type Holding struct {
	Ticker        string  `json:"ticker"`
	Quantity      float64 `json:"quantity"`
	AvgCost       float64 `json:"avg_cost"`
	CurrentPrice  float64 `json:"current_price"`
	MarketValue   float64 `json:"market_value"`
	UnrealizedPnL float64 `json:"unrealized_pnl"`
	Weight        float64 `json:"weight"`
	Beta          float64 `json:"beta"`
	Sector        string  `json:"sector"`
}

// Recompute refreshes MarketValue and UnrealizedPnL from Quantity,
// CurrentPrice, and AvgCost.
func (h *Holding) Recompute() {
	h.MarketValue = h.Quantity * h.CurrentPrice
	h.UnrealizedPnL = h.MarketValue - h.Quantity*h.AvgCost
}

// Portfolio is a user's aggregate position across tickers plus cash.
//
// Invariant (Wealth Conservation): TotalValue == Cash + Σ holding.MarketValue;
// Σ holding.Weight + (Cash/TotalValue) == 1.0 within ε.
type Portfolio struct {
	PortfolioID      string             `json:"portfolio_id"`
	UserID           string             `json:"user_id"`
	Cash             float64            `json:"cash"`
	TotalValue       float64            `json:"total_value"`
	Currency         string             `json:"currency"`
	PortfolioBeta    float64            `json:"portfolio_beta"`
	SectorExposures  map[string]float64 `json:"sector_exposures"`
	Holdings         []Holding          `json:"holdings"`
	LastUpdated      time.Time          `json:"last_updated"`
}

// Transaction is an immutable ledger entry recording a mutation applied to a
// Portfolio.
type Transaction struct {
	TransactionID string            `json:"transaction_id"`
	PortfolioID   string            `json:"portfolio_id"`
	Ticker        string            `json:"ticker"`
	Action        TransactionAction `json:"action"`
	Quantity      float64           `json:"quantity"`
	Price         float64           `json:"price"`
	Fees          float64           `json:"fees"`
	Timestamp     time.Time         `json:"timestamp"`
}

// SummarizedNews is the structured LLM-summarized output published to the
// summarized_news topic.
type SummarizedNews struct {
	ArticleID           string          `json:"article_id"`
	Title               string          `json:"title"`
	URL                 string          `json:"url"`
	Company             string          `json:"company"`
	SentimentLabel      SentimentLabel  `json:"sentiment_label"`
	SentimentScore      float64         `json:"sentiment_score"`
	SentimentConfidence Confidence      `json:"sentiment_confidence"`
	FinancialMetrics    FinancialMetrics `json:"financial_metrics"`
	ImpactAssessment    string          `json:"impact_assessment"`
	LiquidityImpact     LiquidityImpact `json:"liquidity_impact"`
	Summary             string          `json:"summary"`
	KeyPoints           []string        `json:"key_points"`
	PublisherName       string          `json:"publisher_name"`
	PublisherIcon       string          `json:"publisher_icon"`
	Author              string          `json:"author"`
	PublishedAt         time.Time       `json:"published_at"`
	Decisions           []string        `json:"decisions"`
}

// FinancialMetrics is the nested structured-JSON block an LLM summarization
// must produce.
type FinancialMetrics struct {
	RevenueImpact    string  `json:"revenue_impact"`
	StockPriceImpact string  `json:"stock_price_impact"`
	Confidence       float64 `json:"confidence"`
}

// MessageType distinguishes the origin of a query Orchestrator parses: a
// terminal/API request versus a Kafka-triggered signal that short-circuits
// the LLM routing call entirely.
type MessageType string

const (
	MessageTerminal      MessageType = "terminal"
	MessageTechnicalKafka MessageType = "technical_kafka"
	MessageNewsKafka      MessageType = "news_kafka"
)

// RoutingDecision is Orchestrator's parsed execution plan: which specialist
// agents to run, over what ticker(s), timeframe, and interval.
type RoutingDecision struct {
	Tickers         []string  `json:"tickers"`
	TimeframeHours  int       `json:"timeframe_hours"`
	Interval        string    `json:"interval"`
	StartDate       time.Time `json:"start_date"`
	EndDate         time.Time `json:"end_date"`
	RunNews         bool      `json:"run_news"`
	RunTwitter      bool      `json:"run_twitter"`
	RunTechnical    bool      `json:"run_technical"`
	RunFundamental  bool      `json:"run_fundamental"`
	RunMonteCarlo   bool      `json:"run_montecarlo"`
}

// TickerMatchType records which resolution tier produced a ResolvedTicker.
type TickerMatchType string

const (
	MatchLocalName   TickerMatchType = "local_name_fuzzy"
	MatchLocalTicker TickerMatchType = "local_ticker_fuzzy"
	MatchRemote      TickerMatchType = "remote"
	MatchUnresolved  TickerMatchType = "unresolved"
)

// ResolvedTicker is the outcome of resolving a free-text company name or
// ticker symbol against the local instrument universe (and, failing that,
// a remote lookup).
type ResolvedTicker struct {
	Query       string          `json:"query"`
	Ticker      string          `json:"ticker"`
	CompanyName string          `json:"company_name"`
	MatchType   TickerMatchType `json:"match_type"`
	Confidence  float64         `json:"confidence"`
}
