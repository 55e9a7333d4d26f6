// Package news implements NewsEnricher: the control loop that polls
// unprocessed raw articles and runs them through dedup, fetch, sentiment,
// feature extraction, and cluster upsert.
package news

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/marketintel/internal/model"
	"github.com/aristath/marketintel/internal/modules/dedup"
	"github.com/aristath/marketintel/internal/modules/fetch"
	"github.com/aristath/marketintel/internal/modules/sentiment"
	"github.com/aristath/marketintel/internal/store/document"
)

// RawArticle is the scraper-written input row this loop polls, matching the
// raw_articles collection schema.
type RawArticle struct {
	ArticleID   string    `json:"article_id"`
	URL         string    `json:"url"`
	Title       string    `json:"title"`
	Source      string    `json:"source"`
	PublishedAt time.Time `json:"published_at"`
	Company     string    `json:"company"`
	FactorType  string    `json:"factor_type"`
	ScrapedAt   time.Time `json:"scraped_at"`
	Processed   bool      `json:"processed"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
}

const (
	defaultBatchSize   = 50
	defaultConcurrency = 20
)

// Enricher owns the poll loop.
type Enricher struct {
	store     *document.Store
	dedup     *dedup.Store
	fetcher   *fetch.Fetcher
	sentiment *sentiment.Service
	log       zerolog.Logger

	batchSize   int
	concurrency int
}

// Config configures batch size and concurrency width.
type Config struct {
	BatchSize   int
	Concurrency int
}

// New constructs an Enricher.
func New(store *document.Store, dedupStore *dedup.Store, fetcher *fetch.Fetcher, sentimentSvc *sentiment.Service, cfg Config, log zerolog.Logger) *Enricher {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}
	return &Enricher{
		store: store, dedup: dedupStore, fetcher: fetcher, sentiment: sentimentSvc,
		log: log.With().Str("component", "news_enricher").Logger(),
		batchSize: cfg.BatchSize, concurrency: cfg.Concurrency,
	}
}

// PollOnce fetches up to batchSize unprocessed rows and processes them
// concurrently under a semaphore of width concurrency.
func (e *Enricher) PollOnce(ctx context.Context) error {
	rows, err := document.Query[RawArticle](ctx, e.store,
		"SELECT * FROM type::table($table) WHERE processed = false LIMIT $limit",
		map[string]any{"table": document.TableRawArticles, "limit": e.batchSize})
	if err != nil {
		return fmt.Errorf("news: poll raw articles: %w", err)
	}

	sem := make(chan struct{}, e.concurrency)
	done := make(chan struct{}, len(rows))
	for _, row := range rows {
		row := row
		sem <- struct{}{}
		go func() {
			defer func() { <-sem; done <- struct{}{} }()
			if err := e.processArticle(ctx, row); err != nil {
				e.log.Warn().Err(err).Str("article_id", row.ArticleID).Msg("article processing failed, leaving unprocessed")
			}
		}()
	}
	for range rows {
		<-done
	}
	return nil
}

// processArticle runs the per-article dedup/fetch/sentiment/feature/cluster
// pipeline. Any failure leaves processed=false so the next poll retries; idempotency
// is guaranteed by url-unique upsert.
func (e *Enricher) processArticle(ctx context.Context, raw RawArticle) error {
	result, err := e.dedup.CheckAndReserve(ctx, raw.URL, raw.Title, "", raw.Company, raw.PublishedAt)
	if err != nil {
		return fmt.Errorf("news: dedup check: %w", err)
	}
	if result.Verdict == dedup.VerdictURLDup {
		return e.markProcessed(ctx, raw)
	}

	fetched := e.fetcher.Fetch(ctx, raw.URL)

	contentDup, contentHash, err := e.dedup.CheckContent(ctx, fetched.Content)
	if err != nil {
		return fmt.Errorf("news: content dedup check: %w", err)
	}
	if contentDup {
		return e.markProcessed(ctx, raw)
	}

	if result.Verdict == dedup.VerdictTitleDup {
		if err := e.appendToCluster(ctx, raw, fetched, result.ExistingClusterID); err != nil {
			return err
		}
		return e.markProcessed(ctx, raw)
	}

	sent, err := e.sentiment.Classify(ctx, raw.Title, fetched.Content)
	if err != nil {
		return fmt.Errorf("news: classify sentiment: %w", err)
	}

	impact := liquidityImpact(sent)
	events := scanCriticalEvents(fetched.Content)
	decisions := decisionTags(sent, impact, events, raw.FactorType)
	cid := clusterID(raw.Company, raw.FactorType, raw.PublishedAt, raw.Title)

	article := model.Article{
		ArticleID: articleID(dedup.NormalizeURL(raw.URL)), Title: raw.Title,
		OriginalURL: raw.URL, CanonicalURL: fetched.FinalURL, CompanyCode: raw.Company,
		FactorType: raw.FactorType, PublishedAt: raw.PublishedAt, ScrapedAt: raw.ScrapedAt,
		FetchedAt: time.Now().UTC(), Content: fetched.Content, ContentHash: contentHash,
		ContentQuality: contentQuality(fetched.Content), PublisherName: fetched.PublisherName,
		Author: fetched.Author, PublisherIcon: fetched.PublisherIcon, Sentiment: sent,
		LiquidityImpact: impact, CriticalEvents: events, Decisions: decisions, ClusterID: cid,
		Processed: true,
	}

	if err := e.dedup.RegisterTitle(ctx, raw.Title, raw.Company, raw.PublishedAt, cid); err != nil {
		e.log.Warn().Err(err).Msg("title registration failed")
	}

	if err := e.store.Upsert(ctx, document.TableEnrichedArticles, article.ArticleID, article); err != nil {
		return fmt.Errorf("news: upsert article: %w", err)
	}

	if err := e.upsertCluster(ctx, article); err != nil {
		return err
	}

	return e.markProcessed(ctx, raw)
}

func (e *Enricher) appendToCluster(ctx context.Context, raw RawArticle, fetched fetch.Result, clusterID string) error {
	cluster, found, err := document.Get[model.StoryCluster](ctx, e.store, document.TableStoryClusters, clusterID)
	if err != nil {
		return fmt.Errorf("news: load cluster: %w", err)
	}
	if !found {
		return nil
	}
	cluster.AppendArticle(model.Article{PublisherName: fetched.PublisherName, CanonicalURL: fetched.FinalURL}, time.Now().UTC())
	return e.store.Upsert(ctx, document.TableStoryClusters, clusterID, cluster)
}

func (e *Enricher) upsertCluster(ctx context.Context, article model.Article) error {
	existing, found, err := document.Get[model.StoryCluster](ctx, e.store, document.TableStoryClusters, article.ClusterID)
	if err != nil {
		return fmt.Errorf("news: load cluster for upsert: %w", err)
	}
	now := time.Now().UTC()
	if !found {
		cluster := model.StoryCluster{
			ClusterID: article.ClusterID, Title: article.Title, Company: article.CompanyCode,
			FactorType: article.FactorType, PublishedAt: article.PublishedAt,
			Sentiment: article.Sentiment, LiquidityImpact: article.LiquidityImpact,
			CriticalEvents: article.CriticalEvents, FirstSeen: now, LastUpdated: now,
		}
		cluster.AppendArticle(article, now)
		return e.store.Upsert(ctx, document.TableStoryClusters, article.ClusterID, cluster)
	}
	existing.AppendArticle(article, now)
	return e.store.Upsert(ctx, document.TableStoryClusters, article.ClusterID, existing)
}

func (e *Enricher) markProcessed(ctx context.Context, raw RawArticle) error {
	now := time.Now().UTC()
	raw.Processed = true
	raw.ProcessedAt = &now
	return e.store.Upsert(ctx, document.TableRawArticles, raw.ArticleID, raw)
}
