// Package config loads and validates process configuration from the
// environment, using a getEnv/getEnvAsX + Load()/Validate() pattern.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is the full set of knobs this module's components read at startup.
type Config struct {
	// Ambient
	LogLevel string
	DataDir  string
	Port     string
	DevMode  bool

	// Broker (MessagingAdapters)
	BrokerBootstrapAddr string
	TopicRawArticles     string
	TopicTradeSignals    string
	TopicSummarizedNews  string
	TopicStockAnalysis   string

	// Document store (MessagingAdapters)
	DocumentStoreURI  string
	DocumentStoreUser string
	DocumentStorePass string
	DocumentStoreNS   string
	DocumentStoreDB   string

	// KV store (DedupStore)
	KVAddr string
	KVDB   int

	// LLM provider
	LLMAPIKey         string
	LLMDecisionAPIKey string
	LLMSentimentModel string
	LLMSummaryModel   string
	LLMDecisionModel  string
	LLMExplainModel   string

	// DedupStore
	DedupTTL              time.Duration
	TitleSimilarityThresh float64
	MaxFuzzyScan          int
	BloomCapacity         uint
	BloomFalsePositive    float64

	// ArticleFetcher
	MaxConcurrentFetches int
	PerHostFetchCap      int
	FetchConnectTimeout  time.Duration
	FetchTotalTimeout    time.Duration
	HeadlessNavTimeout   time.Duration

	// NewsEnricher
	EnricherBatchSize  int
	EnricherConcurrency int
	EnricherPollPeriod time.Duration

	// LLMSummarizer
	SummarizerWorkers   int
	SummarizerQueueSize int
	RateLimitRPM        int
	SummarizerMaxRetries int

	// IndicatorEngine / PipelineRuntime
	WindowDuration      time.Duration
	WindowHop           time.Duration
	ThreadPoolSize      int
	SnapshotInterval    time.Duration
	LiveMode            bool
	TradingHourExchange string

	// AgentRouter
	MaxConcurrentAgents int
	AgentWorkerPoolSize int
	RouterDrainTimeout  time.Duration

	// ExplainabilityAgent / Orchestrator
	MaxToolIterations int
	TickerFuzzyThresh float64
	InstrumentsPath   string
	TrackedTickers    []string
	MarketDataURL     string
	MarketDataTimeout time.Duration

	// BackupService
	AWSRegion       string
	BackupBucket    string
	BackupPrefix    string
	BackupRetention time.Duration
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	v := getEnv(key, "")
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvAsUint(key string, fallback uint) uint {
	v := getEnv(key, "")
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return fallback
	}
	return uint(n)
}

func getEnvAsFloat(key string, fallback float64) float64 {
	v := getEnv(key, "")
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func getEnvAsBool(key string, fallback bool) bool {
	v := strings.ToLower(getEnv(key, ""))
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func getEnvAsSlice(key string, fallback []string) []string {
	v := getEnv(key, "")
	if v == "" {
		return fallback
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	v := getEnv(key, "")
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

// resolveDataDir applies a directory-fallback order: DATA_DIR if set,
// otherwise ../data relative to the binary, then ./data.
func resolveDataDir() string {
	if v, ok := os.LookupEnv("DATA_DIR"); ok && v != "" {
		return v
	}
	for _, candidate := range []string{"../data", "./data"} {
		if info, err := os.Stat(candidate); err == nil && info.IsDir() {
			return candidate
		}
	}
	return "./data"
}

// Load reads .env (if present) and the environment into a Config, then
// validates it.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		LogLevel: getEnv("LOG_LEVEL", "info"),
		DataDir:  resolveDataDir(),
		Port:     getEnv("PORT", "8080"),
		DevMode:  getEnvAsBool("DEV_MODE", false),

		BrokerBootstrapAddr: getEnv("BROKER_BOOTSTRAP_ADDR", "localhost:9092"),
		TopicRawArticles:    getEnv("TOPIC_RAW_ARTICLES", "raw_articles"),
		TopicTradeSignals:   getEnv("TOPIC_TRADE_SIGNALS", "trade_signals"),
		TopicSummarizedNews: getEnv("TOPIC_SUMMARIZED_NEWS", "summarized_news"),
		TopicStockAnalysis:  getEnv("TOPIC_STOCK_ANALYSIS", "stock_analysis"),

		DocumentStoreURI:  getEnv("DOCSTORE_URI", "ws://localhost:8000/rpc"),
		DocumentStoreUser: getEnv("DOCSTORE_USER", "root"),
		DocumentStorePass: getEnv("DOCSTORE_PASS", ""),
		DocumentStoreNS:   getEnv("DOCSTORE_NS", "marketintel"),
		DocumentStoreDB:   getEnv("DOCSTORE_DB", "pipeline"),

		KVAddr: getEnv("KV_ADDR", "localhost:6379"),
		KVDB:   getEnvAsInt("KV_DB", 0),

		LLMAPIKey:         getEnv("LLM_API_KEY", ""),
		LLMDecisionAPIKey: getEnv("LLM_DECISION_API_KEY", ""),
		LLMSentimentModel: getEnv("LLM_SENTIMENT_MODEL", "gemini-1.5-flash"),
		LLMSummaryModel:   getEnv("LLM_SUMMARY_MODEL", "gemini-1.5-flash"),
		LLMDecisionModel:  getEnv("LLM_DECISION_MODEL", "gemini-1.5-flash"),
		LLMExplainModel:   getEnv("LLM_EXPLAIN_MODEL", "gemini-1.5-pro"),

		DedupTTL:              getEnvAsDuration("DEDUP_TTL", 24*time.Hour),
		TitleSimilarityThresh: getEnvAsFloat("TITLE_SIMILARITY_THRESHOLD", 0.65),
		MaxFuzzyScan:          getEnvAsInt("MAX_FUZZY_SCAN", 200),
		BloomCapacity:         getEnvAsUint("BLOOM_CAPACITY", 10_000_000),
		BloomFalsePositive:    getEnvAsFloat("BLOOM_FP_RATE", 0.0001),

		MaxConcurrentFetches: getEnvAsInt("MAX_CONCURRENT_FETCHES", 20),
		PerHostFetchCap:      getEnvAsInt("PER_HOST_FETCH_CAP", 5),
		FetchConnectTimeout:  getEnvAsDuration("FETCH_CONNECT_TIMEOUT", 10*time.Second),
		FetchTotalTimeout:    getEnvAsDuration("FETCH_TOTAL_TIMEOUT", 30*time.Second),
		HeadlessNavTimeout:   getEnvAsDuration("HEADLESS_NAV_TIMEOUT", 30*time.Second),

		EnricherBatchSize:   getEnvAsInt("ENRICHER_BATCH_SIZE", 50),
		EnricherConcurrency: getEnvAsInt("ENRICHER_CONCURRENCY", 20),
		EnricherPollPeriod:  getEnvAsDuration("ENRICHER_POLL_PERIOD", 15*time.Second),

		SummarizerWorkers:    getEnvAsInt("SUMMARIZER_WORKERS", 10),
		SummarizerQueueSize:  getEnvAsInt("SUMMARIZER_QUEUE_SIZE", 100),
		RateLimitRPM:         getEnvAsInt("RATE_LIMIT_RPM", 60),
		SummarizerMaxRetries: getEnvAsInt("SUMMARIZER_MAX_RETRIES", 3),

		WindowDuration:      getEnvAsDuration("WINDOW_DURATION", 900*time.Minute),
		WindowHop:           getEnvAsDuration("WINDOW_HOP", 5*time.Minute),
		ThreadPoolSize:      getEnvAsInt("THREAD_POOL_SIZE", 5),
		SnapshotInterval:    getEnvAsDuration("SNAPSHOT_INTERVAL", 60*time.Second),
		LiveMode:            getEnvAsBool("LIVE_MODE", false),
		TradingHourExchange: getEnv("TRADING_HOUR_EXCHANGE", "NASDAQ"),

		MaxConcurrentAgents: getEnvAsInt("MAX_CONCURRENT", 3),
		AgentWorkerPoolSize: getEnvAsInt("AGENT_WORKER_POOL_SIZE", 5),
		RouterDrainTimeout:  getEnvAsDuration("ROUTER_DRAIN_TIMEOUT", 60*time.Second),

		MaxToolIterations: getEnvAsInt("MAX_TOOL_ITERATIONS", 5),
		TickerFuzzyThresh: getEnvAsFloat("TICKER_FUZZY_THRESHOLD", 0.90),
		InstrumentsPath:   getEnv("INSTRUMENTS_CSV_PATH", "data/instruments.csv"),
		TrackedTickers:    getEnvAsSlice("TRACKED_TICKERS", []string{}),
		MarketDataURL:     getEnv("MARKET_DATA_URL", "http://localhost:8090"),
		MarketDataTimeout: getEnvAsDuration("MARKET_DATA_TIMEOUT", 10*time.Second),

		AWSRegion:       getEnv("AWS_REGION", "us-east-1"),
		BackupBucket:    getEnv("BACKUP_BUCKET", ""),
		BackupPrefix:    getEnv("BACKUP_PREFIX", "marketintel/"),
		BackupRetention: getEnvAsDuration("BACKUP_RETENTION", 30*24*time.Hour),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate surfaces fatal configuration problems at startup rather than
// letting a component fail obscurely later.
func (c *Config) Validate() error {
	if c.BrokerBootstrapAddr == "" {
		return fmt.Errorf("config: BROKER_BOOTSTRAP_ADDR is required")
	}
	if c.DocumentStoreURI == "" {
		return fmt.Errorf("config: DOCSTORE_URI is required")
	}
	if c.KVAddr == "" {
		return fmt.Errorf("config: KV_ADDR is required")
	}
	if c.MaxConcurrentAgents <= 0 {
		return fmt.Errorf("config: MAX_CONCURRENT must be positive")
	}
	if c.WindowDuration <= 0 || c.WindowHop <= 0 {
		return fmt.Errorf("config: WINDOW_DURATION and WINDOW_HOP must be positive")
	}
	if c.TitleSimilarityThresh <= 0 || c.TitleSimilarityThresh > 1 {
		return fmt.Errorf("config: TITLE_SIMILARITY_THRESHOLD must be in (0,1]")
	}
	return nil
}
