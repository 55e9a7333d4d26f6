package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/rs/zerolog"

	"github.com/aristath/marketintel/internal/broker"
	"github.com/aristath/marketintel/internal/clients/marketdata"
	"github.com/aristath/marketintel/internal/config"
	"github.com/aristath/marketintel/internal/database"
	"github.com/aristath/marketintel/internal/events"
	"github.com/aristath/marketintel/internal/llm"
	"github.com/aristath/marketintel/internal/model"
	"github.com/aristath/marketintel/internal/modules/agentrouter"
	"github.com/aristath/marketintel/internal/modules/agents"
	"github.com/aristath/marketintel/internal/modules/dedup"
	"github.com/aristath/marketintel/internal/modules/explain"
	"github.com/aristath/marketintel/internal/modules/fetch"
	"github.com/aristath/marketintel/internal/modules/indicators"
	"github.com/aristath/marketintel/internal/modules/market_hours"
	"github.com/aristath/marketintel/internal/modules/news"
	"github.com/aristath/marketintel/internal/modules/orchestrator"
	"github.com/aristath/marketintel/internal/modules/portfolio"
	"github.com/aristath/marketintel/internal/modules/sentiment"
	"github.com/aristath/marketintel/internal/modules/signalgen"
	"github.com/aristath/marketintel/internal/modules/summarizer"
	"github.com/aristath/marketintel/internal/pipeline"
	"github.com/aristath/marketintel/internal/reliability"
	"github.com/aristath/marketintel/internal/scheduler"
	"github.com/aristath/marketintel/internal/server"
	"github.com/aristath/marketintel/internal/store/document"
	"github.com/aristath/marketintel/internal/store/kv"
	"github.com/aristath/marketintel/pkg/logger"
)

func main() {
	log := logger.New(logger.Config{Level: "info", Pretty: true})
	log.Info().Msg("starting market intelligence pipeline")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	log = logger.New(logger.Config{Level: cfg.LogLevel, Pretty: cfg.DevMode})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := events.New(log)

	docStore, err := document.New(ctx, document.Config{
		Address:   cfg.DocumentStoreURI,
		Username:  cfg.DocumentStoreUser,
		Password:  cfg.DocumentStorePass,
		Namespace: cfg.DocumentStoreNS,
		Database:  cfg.DocumentStoreDB,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to document store")
	}

	kvClient, err := kv.New(kv.Config{Addr: cfg.KVAddr, DB: cfg.KVDB})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to kv store")
	}

	// Local SQLite, used as a rebuildable spill target for the dedup bloom
	// filter and backed up by the backup job; window snapshots are written
	// to their own msgpack file, not to this database.
	localDB, err := database.New(database.Config{
		Path:    cfg.DataDir + "/local.db",
		Profile: database.ProfileCache,
		Name:    "local",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open local database")
	}
	defer localDB.Close()
	if err := localDB.Migrate(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to migrate local database")
	}

	dedupStore := dedup.New(ctx, kvClient, dedup.Config{
		TTL:              cfg.DedupTTL,
		SimilarityThresh: cfg.TitleSimilarityThresh,
		MaxFuzzyScan:     cfg.MaxFuzzyScan,
		BloomCapacity:    cfg.BloomCapacity,
		BloomFPRate:      cfg.BloomFalsePositive,
		LocalSpill:       localDB,
	}, log)

	// Broker producers, one per outbound topic.
	summarizedNewsProducer := broker.NewProducer(cfg.BrokerBootstrapAddr, cfg.TopicSummarizedNews, log)
	defer summarizedNewsProducer.Close()
	tradeSignalsProducer := broker.NewProducer(cfg.BrokerBootstrapAddr, cfg.TopicTradeSignals, log)
	defer tradeSignalsProducer.Close()
	stockAnalysisProducer := broker.NewProducer(cfg.BrokerBootstrapAddr, cfg.TopicStockAnalysis, log)
	defer stockAnalysisProducer.Close()

	// LLM clients, one per concern so each can be bound to its own model
	// and, for the decision/routing path, its own API key.
	sentimentLLM, err := llm.New(ctx, llm.Config{APIKey: cfg.LLMAPIKey, Model: cfg.LLMSentimentModel})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build sentiment llm client")
	}
	summaryLLM, err := llm.New(ctx, llm.Config{APIKey: cfg.LLMAPIKey, Model: cfg.LLMSummaryModel})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build summary llm client")
	}
	decisionAPIKey := cfg.LLMDecisionAPIKey
	if decisionAPIKey == "" {
		decisionAPIKey = cfg.LLMAPIKey
	}
	decisionLLM, err := llm.New(ctx, llm.Config{APIKey: decisionAPIKey, Model: cfg.LLMDecisionModel})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build decision llm client")
	}
	explainLLM, err := llm.New(ctx, llm.Config{APIKey: cfg.LLMAPIKey, Model: cfg.LLMExplainModel})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build explain llm client")
	}

	sentimentSvc := sentiment.New(sentimentLLM)

	fetcher := fetch.New(fetch.Config{
		PerHostCap:      cfg.PerHostFetchCap,
		GlobalCap:       cfg.MaxConcurrentFetches,
		ConnectTimeout:  cfg.FetchConnectTimeout,
		TotalTimeout:    cfg.FetchTotalTimeout,
		HeadlessTimeout: cfg.HeadlessNavTimeout,
	}, log)

	enricher := news.New(docStore, dedupStore, fetcher, sentimentSvc, news.Config{
		BatchSize:   cfg.EnricherBatchSize,
		Concurrency: cfg.EnricherConcurrency,
	}, log)

	summarizerSvc := summarizer.New(docStore, summaryLLM, summarizedNewsProducer, summarizer.Config{
		Workers:    cfg.SummarizerWorkers,
		QueueDepth: cfg.SummarizerQueueSize,
		RPM:        cfg.RateLimitRPM,
		Retries:    cfg.SummarizerMaxRetries,
	}, log)
	defer summarizerSvc.Close()

	// Indicator engine, signal generator, and the pipeline runtime driving
	// them over a live market-data feed.
	engine := indicators.New(indicators.Config{
		WindowDuration: cfg.WindowDuration,
		WindowHop:      cfg.WindowHop,
	})
	generator := signalgen.New(signalgen.Config{})

	marketHours := market_hours.NewMarketHoursService()
	marketDataClient := marketdata.New(cfg.MarketDataURL, cfg.MarketDataTimeout, log)

	if len(cfg.TrackedTickers) == 0 {
		log.Warn().Msg("no tracked tickers configured, live subject will be idle")
	}
	subject := pipeline.NewLiveSubject(marketDataClient, marketHours, cfg.TradingHourExchange, cfg.TrackedTickers, log)

	runtime := pipeline.New(engine, generator, subject, bus, pipeline.Config{
		SnapshotPath:     cfg.DataDir + "/window_snapshot.msgpack",
		SnapshotInterval: cfg.SnapshotInterval,
	}, log)
	// DocumentUpsertSink subscribes to bus on construction; it is not added
	// as a synchronous sink too, or every snapshot would upsert twice.
	pipeline.NewDocumentUpsertSink(docStore, bus, log)
	runtime.AddSignalSink(pipeline.NewBrokerSignalSink(tradeSignalsProducer))
	if err := runtime.Recover(); err != nil {
		log.Warn().Err(err).Msg("pipeline snapshot recovery failed, starting cold")
	}
	go func() {
		if err := runtime.Run(ctx); err != nil && ctx.Err() == nil {
			log.Error().Err(err).Msg("pipeline runtime stopped")
		}
	}()

	// Instrument universe, specialist roster, and the orchestrator/router
	// pair that dispatches analyses for resolved tickers.
	instruments, err := orchestrator.LoadInstrumentIndex(cfg.InstrumentsPath, cfg.TickerFuzzyThresh, nil)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load instrument universe")
	}
	orch := orchestrator.New(decisionLLM, instruments, log)

	portfolioSvc := portfolio.New(docStore, log)
	explainAgent := explain.New(explainLLM, portfolioSvc, log)

	specialistGraph := agents.NewGraph(
		agents.NewTechnicalSpecialist(engine, generator),
		agents.NewNewsSpecialist(docStore),
		agents.NewTwitterSpecialist(docStore),
		agents.NewFundamentalSpecialist(engine),
		agents.NewMonteCarloSpecialist(engine),
		explainAgent,
		log,
	)

	router := agentrouter.New(specialistGraph, stockAnalysisProducer, bus, agentrouter.Config{
		MaxConcurrent:  cfg.MaxConcurrentAgents,
		WorkerPoolSize: cfg.AgentWorkerPoolSize,
		DrainTimeout:   cfg.RouterDrainTimeout,
	}, log)

	// Drive the orchestrator/router pair from trade signals the pipeline
	// publishes: each signal names a ticker to analyze.
	tradeSignalConsumer := broker.NewConsumer(cfg.BrokerBootstrapAddr, cfg.TopicTradeSignals, "agent-router", log)
	defer tradeSignalConsumer.Close()
	go func() {
		err := tradeSignalConsumer.Run(ctx, func(ctx context.Context, key string, value json.RawMessage) error {
			var signal model.TradeSignal
			if err := json.Unmarshal(value, &signal); err != nil {
				return fmt.Errorf("decode trade signal: %w", err)
			}
			decision, err := orch.ParseQuery(ctx, "", model.MessageTechnicalKafka, &orchestrator.KafkaTrigger{Ticker: signal.Ticker})
			if err != nil {
				return fmt.Errorf("parse trade signal routing: %w", err)
			}
			if len(decision.Tickers) != 1 {
				return nil
			}
			return router.Dispatch(ctx, decision.Tickers[0], decision)
		})
		if err != nil && ctx.Err() == nil {
			log.Error().Err(err).Msg("trade signal consumer stopped")
		}
	}()

	// Scheduler: polling jobs for the news enrichment and summarization
	// loops, plus periodic backup of the crash-recoverable local state.
	sched := scheduler.New(log)
	sched.Start()
	defer sched.Stop()

	if err := sched.AddJob(fmt.Sprintf("@every %s", cfg.EnricherPollPeriod), scheduler.NewPollJob("news_enrich", enricher)); err != nil {
		log.Fatal().Err(err).Msg("failed to register news enrich job")
	}
	if err := sched.AddJob("@every 15s", scheduler.NewPollJob("summarize", summarizerSvc)); err != nil {
		log.Fatal().Err(err).Msg("failed to register summarize job")
	}

	backupSvc := newBackupService(cfg, []reliability.Source{
		{Name: "local", DB: localDB},
		{Name: "window_snapshot", Path: cfg.DataDir + "/window_snapshot.msgpack"},
	}, log)
	if err := sched.AddJob("@every 1h", backupSvc); err != nil {
		log.Fatal().Err(err).Msg("failed to register backup job")
	}

	// Health monitor and HTTP ops surface.
	monitor := reliability.New(runtime, dedupStore, router, reliability.Thresholds{}, log)

	port, err := strconv.Atoi(cfg.Port)
	if err != nil {
		log.Fatal().Err(err).Str("port", cfg.Port).Msg("invalid PORT value")
	}

	srv := server.New(server.Config{
		Log:              log,
		Port:             port,
		Scheduler:        sched,
		Bus:              bus,
		Checks:           []server.HealthChecker{monitor},
		DevMode:          cfg.DevMode,
		ExplainMCPServer: explainAgent.MCPServer(),
	})

	go func() {
		if err := srv.Start(); err != nil {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()
	log.Info().Int("port", port).Msg("server started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("stopped")
}

// newBackupService resolves an aws.Config from the process environment
// (region only; credentials come from the default SDK chain, e.g.
// environment variables or an attached instance role) and builds a
// reliability.BackupService over sources.
func newBackupService(cfg *config.Config, sources []reliability.Source, log zerolog.Logger) *reliability.BackupService {
	return reliability.NewBackupService(reliability.Config{
		AWS:       aws.Config{Region: cfg.AWSRegion},
		Bucket:    cfg.BackupBucket,
		Prefix:    cfg.BackupPrefix,
		Retention: cfg.BackupRetention,
	}, sources, log)
}
