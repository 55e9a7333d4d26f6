// Package document wraps a SurrealDB connection exposing this system's
// collections: raw_articles, enriched_articles, story_clusters,
// summarize, url_registry, indicators, universe_collection, portfolios,
// transactions. Grounded on bobmcallan-vire's internal/storage/surrealdb
// manager/store shape (connect, SignIn, Use, per-collection Store types).
package document

import (
	"context"
	"fmt"

	"github.com/surrealdb/surrealdb.go"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

// Collection names. The first nine are this system's core collections;
// TableTwitterSentiment backs the twitter specialist's cache tier and
// follows the same schemaless shape.
const (
	TableRawArticles      = "raw_articles"
	TableEnrichedArticles = "enriched_articles"
	TableStoryClusters    = "story_clusters"
	TableSummarize        = "summarize"
	TableURLRegistry      = "url_registry"
	TableIndicators       = "indicators"
	TableUniverse         = "universe_collection"
	TablePortfolios       = "portfolios"
	TableTransactions     = "transactions"
	TableTwitterSentiment = "twitter_sentiment"
)

var tables = []string{
	TableRawArticles, TableEnrichedArticles, TableStoryClusters, TableSummarize,
	TableURLRegistry, TableIndicators, TableUniverse, TablePortfolios, TableTransactions,
	TableTwitterSentiment,
}

// Config configures the SurrealDB connection.
type Config struct {
	Address   string
	Username  string
	Password  string
	Namespace string
	Database  string
}

// Store is a thin SurrealDB-backed document store shared by every
// component that reads or writes one of the collections above.
type Store struct {
	db *surrealdb.DB
}

// New connects, signs in, selects namespace/database, and ensures every
// schemaless table the module depends on exists.
func New(ctx context.Context, cfg Config) (*Store, error) {
	db, err := surrealdb.New(cfg.Address)
	if err != nil {
		return nil, fmt.Errorf("document: connect %s: %w", cfg.Address, err)
	}

	if _, err := db.SignIn(ctx, map[string]any{
		"user": cfg.Username,
		"pass": cfg.Password,
	}); err != nil {
		return nil, fmt.Errorf("document: sign in: %w", err)
	}

	if err := db.Use(ctx, cfg.Namespace, cfg.Database); err != nil {
		return nil, fmt.Errorf("document: select namespace/database: %w", err)
	}

	for _, table := range tables {
		sql := fmt.Sprintf("DEFINE TABLE IF NOT EXISTS %s SCHEMALESS", table)
		if _, err := surrealdb.Query[any](ctx, db, sql, nil); err != nil {
			return nil, fmt.Errorf("document: define table %s: %w", table, err)
		}
	}

	return &Store{db: db}, nil
}

// Close releases the underlying connection.
func (s *Store) Close(ctx context.Context) error {
	return s.db.Close(ctx)
}

// Upsert writes record under table/id, replacing any existing content. Used
// everywhere a keyed upsert sink is called for (enriched_articles by
// url_hash, story_clusters by cluster_id, universe_collection by ticker,
// portfolios by portfolio_id).
func (s *Store) Upsert(ctx context.Context, table, id string, record any) error {
	rid := surrealmodels.NewRecordID(table, id)
	const sql = "UPSERT $rid CONTENT $record"
	vars := map[string]any{"rid": rid, "record": record}
	if _, err := surrealdb.Query[any](ctx, s.db, sql, vars); err != nil {
		return fmt.Errorf("document: upsert %s/%s: %w", table, id, err)
	}
	return nil
}

// Insert appends record to table without an explicit id (plain-insert sink,
// used for transactions and raw, append-only inserts).
func (s *Store) Insert(ctx context.Context, table string, record any) error {
	const sql = "CREATE type::table($table) CONTENT $record"
	vars := map[string]any{"table": table, "record": record}
	if _, err := surrealdb.Query[any](ctx, s.db, sql, vars); err != nil {
		return fmt.Errorf("document: insert %s: %w", table, err)
	}
	return nil
}

// Get fetches the record addressed by table/id and returns it as *T.
// Returns (nil, false, nil) if the record does not exist.
func Get[T any](ctx context.Context, s *Store, table, id string) (*T, bool, error) {
	rid := surrealmodels.NewRecordID(table, id)
	rec, err := surrealdb.Select[T](ctx, s.db, rid)
	if err != nil {
		return nil, false, fmt.Errorf("document: get %s/%s: %w", table, id, err)
	}
	if rec == nil {
		return nil, false, nil
	}
	return rec, true, nil
}

// Query runs an arbitrary SurrealQL query with bound vars and returns the
// first statement's result rows.
func Query[T any](ctx context.Context, s *Store, sql string, vars map[string]any) ([]T, error) {
	results, err := surrealdb.Query[[]T](ctx, s.db, sql, vars)
	if err != nil {
		return nil, fmt.Errorf("document: query: %w", err)
	}
	if results == nil || len(*results) == 0 {
		return nil, nil
	}
	return (*results)[0].Result, nil
}

// Delete removes the record addressed by table/id. Missing records are not
// an error.
func (s *Store) Delete(ctx context.Context, table, id string) error {
	rid := surrealmodels.NewRecordID(table, id)
	if _, err := surrealdb.Delete[any](ctx, s.db, rid); err != nil {
		return fmt.Errorf("document: delete %s/%s: %w", table, id, err)
	}
	return nil
}
