// Package summarizer implements LLMSummarizer: a worker pool draining a
// bounded queue of unsummarized articles, rate-limited by one limiter
// shared across all workers, calling
// the LLM for a strict-JSON summary and persisting the result.
package summarizer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/aristath/marketintel/internal/broker"
	"github.com/aristath/marketintel/internal/llm"
	"github.com/aristath/marketintel/internal/model"
	"github.com/aristath/marketintel/internal/store/document"
)

const (
	defaultWorkers    = 10
	defaultQueueDepth = 100
	defaultBatchSize  = 50
	defaultRPM        = 60
	defaultRetries    = 3
	minContentLen     = 100
)

type llmResponse struct {
	IsRelevant       bool                   `json:"is_relevant"`
	RelevanceReason  string                 `json:"relevance_reason"`
	Summary          string                 `json:"summary"`
	KeyPoints        []string               `json:"key_points"`
	FinancialMetrics model.FinancialMetrics `json:"financial_metrics"`
	ImpactAssessment string                 `json:"impact_assessment"`
}

// Summarizer owns the worker pool and bounded job queue.
type Summarizer struct {
	store    *document.Store
	llm      *llm.Client
	producer *broker.Producer
	log      zerolog.Logger

	workers   int
	batchSize int
	retries   int
	limiter   *rate.Limiter

	queue chan model.Article
	wg    sync.WaitGroup
}

// Config configures worker count, queue depth, batch size, and RPM.
type Config struct {
	Workers    int
	QueueDepth int
	BatchSize  int
	RPM        int
	Retries    int
}

// New constructs a Summarizer and starts its worker pool.
func New(store *document.Store, client *llm.Client, producer *broker.Producer, cfg Config, log zerolog.Logger) *Summarizer {
	if cfg.Workers <= 0 {
		cfg.Workers = defaultWorkers
	}
	if cfg.QueueDepth <= 0 {
		cfg.QueueDepth = defaultQueueDepth
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if cfg.RPM <= 0 {
		cfg.RPM = defaultRPM
	}
	if cfg.Retries <= 0 {
		cfg.Retries = defaultRetries
	}

	s := &Summarizer{
		store: store, llm: client, producer: producer,
		log:       log.With().Str("component", "llm_summarizer").Logger(),
		workers:   cfg.Workers,
		batchSize: cfg.BatchSize,
		retries:   cfg.Retries,
		limiter:   rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RPM)), 1),
		queue:     make(chan model.Article, cfg.QueueDepth),
	}

	for i := 0; i < s.workers; i++ {
		s.wg.Add(1)
		go s.worker()
	}
	return s
}

// Close stops accepting new jobs and waits for the workers to drain.
func (s *Summarizer) Close() {
	close(s.queue)
	s.wg.Wait()
}

// PollOnce fetches up to batchSize unsummarized articles and enqueues them;
// a full queue blocks the poller, providing backpressure.
func (s *Summarizer) PollOnce(ctx context.Context) error {
	rows, err := document.Query[model.Article](ctx, s.store,
		"SELECT * FROM type::table($table) WHERE summarized = false LIMIT $limit",
		map[string]any{"table": document.TableEnrichedArticles, "limit": s.batchSize})
	if err != nil {
		return fmt.Errorf("summarizer: poll enriched articles: %w", err)
	}
	for _, article := range rows {
		select {
		case s.queue <- article:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (s *Summarizer) worker() {
	defer s.wg.Done()
	ctx := context.Background()
	for article := range s.queue {
		if err := s.limiter.Wait(ctx); err != nil {
			s.log.Warn().Err(err).Msg("rate limiter wait failed")
			continue
		}
		if err := s.process(ctx, article); err != nil {
			s.log.Warn().Err(err).Str("article_id", article.ArticleID).Msg("summarization failed")
		}
	}
}

func (s *Summarizer) process(ctx context.Context, article model.Article) error {
	if len(article.Content) < minContentLen {
		return s.markSummarized(ctx, article)
	}

	resp, err := s.summarizeWithRetry(ctx, article)
	if err != nil {
		return s.persistFallback(ctx, article)
	}

	if !resp.IsRelevant {
		return s.markSummarized(ctx, article)
	}

	summary := model.SummarizedNews{
		ArticleID: article.ArticleID, Title: article.Title, URL: article.CanonicalURL,
		Company: article.CompanyCode, SentimentLabel: article.Sentiment.Label,
		SentimentScore: article.Sentiment.Score, SentimentConfidence: article.Sentiment.Confidence,
		FinancialMetrics: resp.FinancialMetrics, ImpactAssessment: resp.ImpactAssessment,
		LiquidityImpact: article.LiquidityImpact, Summary: resp.Summary, KeyPoints: resp.KeyPoints,
		PublisherName: article.PublisherName, PublisherIcon: article.PublisherIcon,
		Author: article.Author, PublishedAt: article.PublishedAt, Decisions: article.Decisions,
	}

	if err := s.store.Upsert(ctx, document.TableSummarize, article.ArticleID, summary); err != nil {
		return fmt.Errorf("summarizer: upsert summary: %w", err)
	}
	if err := s.producer.Publish(ctx, article.CompanyCode, summary); err != nil {
		s.log.Warn().Err(err).Msg("publish summarized_news failed")
	}

	return s.markSummarized(ctx, article)
}

func (s *Summarizer) summarizeWithRetry(ctx context.Context, article model.Article) (llmResponse, error) {
	prompt := buildPrompt(article)
	var lastErr error
	for attempt := 0; attempt < s.retries; attempt++ {
		var resp llmResponse
		if err := s.llm.GenerateJSON(ctx, prompt, &resp); err == nil {
			return resp, nil
		} else {
			lastErr = err
		}
	}
	return llmResponse{}, fmt.Errorf("summarizer: exhausted %d attempts: %w", s.retries, lastErr)
}

func buildPrompt(article model.Article) string {
	return fmt.Sprintf(`Summarize this financial news article for a trading desk. Respond with strict JSON:
{"is_relevant": <bool>, "relevance_reason": "<str>", "summary": "<str>", "key_points": ["<str>", ...],
"financial_metrics": {"revenue_impact": "<str>", "stock_price_impact": "<str>", "confidence": <0..1>},
"impact_assessment": "<str>"}

Company: %s
Title: %s
Content: %s`, article.CompanyCode, article.Title, article.Content)
}

// persistFallback is called when the LLM call exhausts its retry budget: a
// minimal fallback summary is stored so the article is not reprocessed
// indefinitely.
func (s *Summarizer) persistFallback(ctx context.Context, article model.Article) error {
	fallback := model.SummarizedNews{
		ArticleID: article.ArticleID, Title: article.Title, URL: article.CanonicalURL,
		Company: article.CompanyCode, SentimentLabel: article.Sentiment.Label,
		SentimentScore: article.Sentiment.Score, SentimentConfidence: article.Sentiment.Confidence,
		ImpactAssessment: "unavailable: summarization failed",
		LiquidityImpact:  article.LiquidityImpact,
		Summary:          article.Title,
		PublisherName:    article.PublisherName, PublisherIcon: article.PublisherIcon,
		Author: article.Author, PublishedAt: article.PublishedAt, Decisions: article.Decisions,
	}
	if err := s.store.Upsert(ctx, document.TableSummarize, article.ArticleID, fallback); err != nil {
		return fmt.Errorf("summarizer: persist fallback: %w", err)
	}
	return s.markSummarized(ctx, article)
}

func (s *Summarizer) markSummarized(ctx context.Context, article model.Article) error {
	article.Summarized = true
	if err := s.store.Upsert(ctx, document.TableEnrichedArticles, article.ArticleID, article); err != nil {
		return fmt.Errorf("summarizer: mark summarized: %w", err)
	}
	return nil
}
