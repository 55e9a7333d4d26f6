// Package dedup implements DedupStore: multi-layer URL/content/fuzzy-title
// deduplication over a 24h sliding window, bloom-filter fast path, and
// periodic persistence.
package dedup

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/agnivade/levenshtein"
	"github.com/bits-and-blooms/bloom/v3"
	"github.com/rs/zerolog"

	"github.com/aristath/marketintel/internal/apperr"
	"github.com/aristath/marketintel/internal/database"
	"github.com/aristath/marketintel/internal/store/kv"
)

// Verdict is the outcome of a CheckAndReserve call.
type Verdict string

const (
	VerdictNew        Verdict = "NEW"
	VerdictURLDup      Verdict = "URL_DUP"
	VerdictContentDup  Verdict = "CONTENT_DUP"
	VerdictTitleDup    Verdict = "TITLE_DUP"
)

const bloomKVKey = "url_bloom_filter"

// trackingParams are stripped from URLs before hashing during normalization.
var trackingParams = map[string]struct{}{
	"utm_source": {}, "utm_medium": {}, "utm_campaign": {}, "utm_term": {}, "utm_content": {},
	"ref": {}, "source": {}, "fbclid": {}, "gclid": {}, "cid": {}, "soc_src": {}, "src": {}, "ig_cid": {},
}

var punctuationRe = regexp.MustCompile(`[^\w\s]`)
var whitespaceRe = regexp.MustCompile(`\s+`)

// Result is the full outcome of CheckAndReserve.
type Result struct {
	Verdict          Verdict
	URLHash          string
	ContentHash      string
	ExistingClusterID string
}

// Store is DedupStore: Redis-backed exact hashes + sorted sets, fronted by
// an in-process bloom filter fast path.
type Store struct {
	kv         *kv.Client
	localSpill *database.DB
	log        zerolog.Logger

	ttl               time.Duration
	similarityThresh  float64
	maxFuzzyScan      int
	flushEveryN       int64

	mu     sync.Mutex
	bloom  *bloom.BloomFilter
	inserts int64
}

// Config configures a Store. LocalSpill, if set, receives a copy of every
// bloom flush in its bloom_spill table, so a Redis outage can rebuild the
// filter locally instead of starting fresh and re-admitting duplicates.
type Config struct {
	TTL              time.Duration
	SimilarityThresh float64
	MaxFuzzyScan     int
	BloomCapacity    uint
	BloomFPRate      float64
	FlushEveryN      int64
	LocalSpill       *database.DB
}

// New constructs a Store, loading the bloom filter from the KV backend if
// present; on load failure it falls back to a fresh filter, since the
// downstream KV/registry layer remains the source of truth.
func New(ctx context.Context, client *kv.Client, cfg Config, log zerolog.Logger) *Store {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	thresh := cfg.SimilarityThresh
	if thresh <= 0 {
		thresh = 0.65
	}
	maxScan := cfg.MaxFuzzyScan
	if maxScan <= 0 {
		maxScan = 200
	}
	flushEvery := cfg.FlushEveryN
	if flushEvery <= 0 {
		flushEvery = 500
	}
	capacity := cfg.BloomCapacity
	if capacity == 0 {
		capacity = 10_000_000
	}
	fpRate := cfg.BloomFPRate
	if fpRate <= 0 {
		fpRate = 0.0001
	}

	s := &Store{
		kv:               client,
		localSpill:       cfg.LocalSpill,
		log:              log.With().Str("component", "dedup_store").Logger(),
		ttl:              ttl,
		similarityThresh: thresh,
		maxFuzzyScan:     maxScan,
		flushEveryN:      flushEvery,
		bloom:            bloom.NewWithEstimates(capacity, fpRate),
	}

	if raw, err := client.GetBytes(ctx, bloomKVKey); err == nil && len(raw) > 0 {
		if filter, err := loadBloom(raw); err == nil {
			s.bloom = filter
		} else {
			s.log.Warn().Err(err).Msg("bloom filter load failed, starting fresh")
		}
	} else if s.localSpill != nil {
		if filter, err := s.loadLocalSpill(ctx); err == nil && filter != nil {
			s.bloom = filter
			s.log.Info().Msg("bloom filter recovered from local spill")
		}
	}

	return s
}

// NormalizeURL lowercases the host, strips the fragment and tracking
// params, and trims a trailing slash from the path.
func NormalizeURL(raw string) string {
	parsed, err := url.Parse(raw)
	if err != nil {
		return raw
	}

	query := parsed.Query()
	filtered := url.Values{}
	for k, v := range query {
		if _, tracked := trackingParams[strings.ToLower(k)]; tracked {
			continue
		}
		filtered[k] = v
	}

	scheme := parsed.Scheme
	if scheme == "" {
		scheme = "https"
	}

	normalized := url.URL{
		Scheme:   scheme,
		Host:     strings.ToLower(parsed.Host),
		Path:     strings.TrimSuffix(parsed.Path, "/"),
		RawQuery: filtered.Encode(),
	}
	return normalized.String()
}

// ComputeURLHash returns the MD5 hash of the normalized URL.
func ComputeURLHash(raw string) string {
	return md5Hex(NormalizeURL(raw))
}

// ComputeContentHash returns the MD5 hash of the first 1000 characters of
// content, or "" if content is under 100 characters.
func ComputeContentHash(content string) string {
	if len(content) < 100 {
		return ""
	}
	limit := 1000
	if len(content) < limit {
		limit = len(content)
	}
	return md5Hex(content[:limit])
}

func md5Hex(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

// NormalizeTitle lowercases, strips punctuation, and collapses whitespace.
func NormalizeTitle(title string) string {
	lower := strings.ToLower(title)
	stripped := punctuationRe.ReplaceAllString(lower, " ")
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(stripped, " "))
}

// CheckAndReserve runs the three dedup layers in order. On a miss the URL
// layer reserves its key with SETNX after an existence check, and the
// content layer reserves its key with a single SETNX (so of two concurrent
// duplicates of the same content the first writer wins). The title layer
// only scans; registering a title is RegisterTitle's job.
func (s *Store) CheckAndReserve(ctx context.Context, rawURL, title, content, company string, publishedAt time.Time) (Result, error) {
	urlHash := ComputeURLHash(rawURL)

	urlDup, err := s.checkURL(ctx, urlHash)
	if err != nil {
		// Registry error: treat as NEW but log; at-least-once is acceptable,
		// downstream is idempotent by URL uniqueness.
		s.log.Warn().Err(err).Str("url", rawURL).Msg("url dedup check failed, treating as new")
	} else if urlDup {
		return Result{Verdict: VerdictURLDup, URLHash: urlHash}, nil
	}

	var contentHash string
	if len(content) >= 100 {
		contentHash = ComputeContentHash(content)
		contentDup, err := s.checkContent(ctx, contentHash)
		if err != nil {
			s.log.Warn().Err(err).Msg("content dedup check failed, treating as new")
		} else if contentDup {
			return Result{Verdict: VerdictContentDup, URLHash: urlHash, ContentHash: contentHash}, nil
		}
	}

	existingCluster, err := s.checkTitle(ctx, title, company, publishedAt)
	if err != nil {
		s.log.Warn().Err(err).Msg("title dedup check failed, treating as new")
	} else if existingCluster != "" {
		return Result{Verdict: VerdictTitleDup, URLHash: urlHash, ContentHash: contentHash, ExistingClusterID: existingCluster}, nil
	}

	return Result{Verdict: VerdictNew, URLHash: urlHash, ContentHash: contentHash}, nil
}

func (s *Store) checkURL(ctx context.Context, urlHash string) (bool, error) {
	if s.bloomNegative(urlHash) {
		// Bloom says definitely not present: still reserve the exact key so
		// future bloom-positive lookups find it, but skip the KV existence
		// round trip.
		s.reserveURL(ctx, urlHash)
		return false, nil
	}

	key := "url:" + urlHash
	exists, err := s.kv.Exists(ctx, key)
	if err != nil {
		return false, fmt.Errorf("dedup: check url: %w", err)
	}
	if exists {
		return true, nil
	}
	s.reserveURL(ctx, urlHash)
	return false, nil
}

func (s *Store) reserveURL(ctx context.Context, urlHash string) {
	key := "url:" + urlHash
	if _, err := s.kv.SetNX(ctx, key, "1", s.ttl); err != nil {
		s.log.Warn().Err(err).Msg("url reservation failed")
	}
	s.addToBloom(urlHash)
}

// CheckContent runs the content-hash layer standalone, for callers (like
// NewsEnricher) that only learn an article's content after a fetch that
// happens between the URL check and the content check.
func (s *Store) CheckContent(ctx context.Context, content string) (dup bool, contentHash string, err error) {
	if len(content) < 100 {
		return false, "", nil
	}
	contentHash = ComputeContentHash(content)
	dup, err = s.checkContent(ctx, contentHash)
	return dup, contentHash, err
}

func (s *Store) checkContent(ctx context.Context, contentHash string) (bool, error) {
	key := "content:" + contentHash
	ok, err := s.kv.SetNX(ctx, key, "1", s.ttl)
	if err != nil {
		return false, fmt.Errorf("dedup: check content: %w", err)
	}
	// SetNX returns true when THIS call set the key (i.e. it was not a
	// duplicate); false means it already existed.
	return !ok, nil
}

func (s *Store) checkTitle(ctx context.Context, title, company string, publishedAt time.Time) (string, error) {
	normalized := NormalizeTitle(title)
	if len(normalized) < 10 {
		return "", nil
	}

	day := publishedAt.UTC().Format("2006-01-02")
	key := fmt.Sprintf("titles:%s:%s", company, day)

	members, err := s.kv.ZRangeRecent(ctx, key, int64(s.maxFuzzyScan))
	if err != nil {
		return "", fmt.Errorf("dedup: scan titles: %w", err)
	}

	for _, stored := range members {
		parts := strings.SplitN(stored, "|", 2)
		if len(parts) != 2 {
			continue
		}
		storedTitle, clusterID := parts[0], parts[1]
		if similarityRatio(normalized, storedTitle) >= s.similarityThresh {
			return clusterID, nil
		}
	}
	return "", nil
}

// RegisterTitle adds title to the fuzzy-matching index for (company, day),
// to be called after processing a non-duplicate article.
func (s *Store) RegisterTitle(ctx context.Context, title, company string, publishedAt time.Time, clusterID string) error {
	normalized := NormalizeTitle(title)
	if len(normalized) < 10 {
		return nil
	}
	day := publishedAt.UTC().Format("2006-01-02")
	key := fmt.Sprintf("titles:%s:%s", company, day)
	member := normalized + "|" + clusterID
	score := float64(time.Now().UTC().Unix())
	if err := s.kv.ZAddTimestamped(ctx, key, member, score, s.ttl); err != nil {
		return fmt.Errorf("dedup: register title: %w", err)
	}
	return nil
}

// similarityRatio is Levenshtein ratio = 1 - edit_distance/max_len.
func similarityRatio(a, b string) float64 {
	if a == "" && b == "" {
		return 1
	}
	maxLen := len(a)
	if len(b) > maxLen {
		maxLen = len(b)
	}
	if maxLen == 0 {
		return 1
	}
	dist := levenshtein.ComputeDistance(a, b)
	return 1 - float64(dist)/float64(maxLen)
}

func (s *Store) bloomNegative(urlHash string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.bloom.Test([]byte(urlHash))
}

func (s *Store) addToBloom(urlHash string) {
	s.mu.Lock()
	s.bloom.Add([]byte(urlHash))
	s.mu.Unlock()

	if atomic.AddInt64(&s.inserts, 1)%s.flushEveryN == 0 {
		if err := s.FlushBloom(context.Background()); err != nil {
			s.log.Warn().Err(err).Msg("bloom flush failed")
		}
	}
}

// InsertCount returns the number of URLs added to the bloom filter since
// process start, for health/monitoring reporting.
func (s *Store) InsertCount() int64 {
	return atomic.LoadInt64(&s.inserts)
}

// FlushBloom serializes the bloom filter and persists it to the KV
// backend, plus a local spill copy if one is configured. Best-effort: a
// flush failure never blocks ingestion, since the KV/registry layer
// remains authoritative.
func (s *Store) FlushBloom(ctx context.Context) error {
	s.mu.Lock()
	raw, err := serializeBloom(s.bloom)
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("dedup: serialize bloom: %w", err)
	}
	if err := s.kv.SetBytes(ctx, bloomKVKey, raw); err != nil {
		return fmt.Errorf("dedup: persist bloom: %w", err)
	}
	if s.localSpill != nil {
		if _, err := s.localSpill.Conn().ExecContext(ctx,
			`INSERT INTO bloom_spill (name, payload, written_at) VALUES (?, ?, ?)
			 ON CONFLICT(name) DO UPDATE SET payload = excluded.payload, written_at = excluded.written_at`,
			bloomKVKey, raw, time.Now().Unix()); err != nil {
			s.log.Warn().Err(err).Msg("local bloom spill failed")
		}
	}
	return nil
}

// loadLocalSpill reads the most recent bloom_spill row back into a filter,
// used to recover state without re-admitting duplicates when the KV
// backend comes up empty (fresh Redis instance, flushed database).
func (s *Store) loadLocalSpill(ctx context.Context) (*bloom.BloomFilter, error) {
	var raw []byte
	err := s.localSpill.Conn().QueryRowContext(ctx,
		`SELECT payload FROM bloom_spill WHERE name = ?`, bloomKVKey).Scan(&raw)
	if err != nil {
		return nil, fmt.Errorf("dedup: read local spill: %w", err)
	}
	return loadBloom(raw)
}

func serializeBloom(filter *bloom.BloomFilter) ([]byte, error) {
	data, err := filter.MarshalBinary()
	if err != nil {
		return nil, err
	}
	return data, nil
}

func loadBloom(raw []byte) (*bloom.BloomFilter, error) {
	filter := &bloom.BloomFilter{}
	if err := filter.UnmarshalBinary(raw); err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrSnapshotCorrupt, err)
	}
	return filter, nil
}
