// Package fetch implements ArticleFetcher's three-tier fetch policy:
// redirect-decoder, static HTTP+HTML extraction, and headless-browser
// fallback.
package fetch

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/chromedp"
	"github.com/rs/zerolog"
)

// Result is the contract ArticleFetcher returns. It never errors to the
// caller; empty Content is a valid outcome.
type Result struct {
	Content       string
	FinalURL      string
	PublisherName string
	Author        string
	PublishedDate time.Time
	PublisherIcon string
}

const maxContentLen = 5000
const minAcceptableLen = 200

// aggregatorHosts serve opaque redirect URLs that need tier-1 decoding
// before a canonical URL is known.
var aggregatorHosts = map[string]struct{}{
	"news.google.com": {},
	"t.co":            {},
}

var whitespaceRe = regexp.MustCompile(`\s+`)
var urlInTextRe = regexp.MustCompile(`https?://\S+`)

// Config configures fetch tier limits.
type Config struct {
	PerHostCap     int
	GlobalCap      int
	ConnectTimeout time.Duration
	TotalTimeout   time.Duration
	HeadlessTimeout time.Duration
}

// Fetcher implements the three-tier fetch policy over a shared HTTP client
// with a bounded global + per-host concurrency cap.
type Fetcher struct {
	client *http.Client
	cfg    Config
	log    zerolog.Logger

	globalSem chan struct{}
	hostMu    sync.Mutex
	hostSems  map[string]chan struct{}
}

// New constructs a Fetcher.
func New(cfg Config, log zerolog.Logger) *Fetcher {
	if cfg.PerHostCap <= 0 {
		cfg.PerHostCap = 5
	}
	if cfg.GlobalCap <= 0 {
		cfg.GlobalCap = 20
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}
	if cfg.TotalTimeout <= 0 {
		cfg.TotalTimeout = 30 * time.Second
	}
	if cfg.HeadlessTimeout <= 0 {
		cfg.HeadlessTimeout = 30 * time.Second
	}

	transport := &http.Transport{
		MaxIdleConnsPerHost: cfg.PerHostCap,
		DialContext: (&net.Dialer{Timeout: cfg.ConnectTimeout}).DialContext,
	}

	return &Fetcher{
		client:    &http.Client{Timeout: cfg.TotalTimeout, Transport: transport},
		cfg:       cfg,
		log:       log.With().Str("component", "article_fetcher").Logger(),
		globalSem: make(chan struct{}, cfg.GlobalCap),
		hostSems:  make(map[string]chan struct{}),
	}
}

// Fetch resolves rawURL through the three tiers and returns whatever it
// managed to extract. It never returns an error: a fully-empty Result is a
// valid, deliberate outcome.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) Result {
	resolved := rawURL
	if isAggregatorHost(rawURL) {
		if decoded, err := f.decodeAggregatorRedirect(ctx, rawURL); err == nil && decoded != "" {
			resolved = decoded
		} else if err != nil {
			f.log.Debug().Err(err).Str("url", rawURL).Msg("aggregator decode failed, trying raw url")
		}
	}

	result := f.fetchHTTP(ctx, resolved)
	if len(result.Content) >= minAcceptableLen {
		return clean(result)
	}

	headless := f.fetchHeadless(ctx, resolved)
	if len(headless.Content) > len(result.Content) {
		return clean(headless)
	}
	return clean(result)
}

func isAggregatorHost(rawURL string) bool {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	_, ok := aggregatorHosts[strings.ToLower(parsed.Host)]
	return ok
}

// decodeAggregatorRedirect follows redirects without reading the body, to
// resolve the canonical URL an aggregator link points to.
func (f *Fetcher) decodeAggregatorRedirect(ctx context.Context, rawURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("fetch: build decode request: %w", err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch: decode redirect: %w", err)
	}
	defer resp.Body.Close()
	return resp.Request.URL.String(), nil
}

func (f *Fetcher) acquire(host string) func() {
	f.globalSem <- struct{}{}

	f.hostMu.Lock()
	sem, ok := f.hostSems[host]
	if !ok {
		sem = make(chan struct{}, f.cfg.PerHostCap)
		f.hostSems[host] = sem
	}
	f.hostMu.Unlock()
	sem <- struct{}{}

	return func() {
		<-sem
		<-f.globalSem
	}
}

// fetchHTTP is tier 2: static HTTP fetch + goquery extraction of the body
// and of OpenGraph/meta tags (site name, author, icon). JSON-LD blocks are
// not parsed, and PublishedDate is left unset.
func (f *Fetcher) fetchHTTP(ctx context.Context, rawURL string) Result {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return Result{}
	}
	release := f.acquire(parsed.Host)
	defer release()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return Result{FinalURL: rawURL}
	}
	resp, err := f.client.Do(req)
	if err != nil {
		f.log.Debug().Err(err).Str("url", rawURL).Msg("http fetch failed")
		return Result{FinalURL: rawURL}
	}
	defer resp.Body.Close()

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return Result{FinalURL: resp.Request.URL.String()}
	}

	return Result{
		FinalURL:      resp.Request.URL.String(),
		Content:       extractBody(doc),
		PublisherName: extractMeta(doc, "og:site_name", "application-name"),
		Author:        extractMeta(doc, "author", "article:author"),
		PublisherIcon: extractIcon(doc),
	}
}

func extractMeta(doc *goquery.Document, props ...string) string {
	for _, prop := range props {
		if v, ok := doc.Find(fmt.Sprintf(`meta[property="%s"]`, prop)).Attr("content"); ok && v != "" {
			return v
		}
		if v, ok := doc.Find(fmt.Sprintf(`meta[name="%s"]`, prop)).Attr("content"); ok && v != "" {
			return v
		}
	}
	return ""
}

func extractIcon(doc *goquery.Document) string {
	if href, ok := doc.Find(`link[rel="icon"]`).Attr("href"); ok {
		return href
	}
	if href, ok := doc.Find(`link[rel="shortcut icon"]`).Attr("href"); ok {
		return href
	}
	return ""
}

// bodySelectors is a priority-ordered list of selectors tried for article
// body extraction before falling back to the page's overall text.
var bodySelectors = []string{
	"article", "div.article-body", "div.story-body", "div[itemprop=articleBody]", "main",
}

func extractBody(doc *goquery.Document) string {
	for _, sel := range bodySelectors {
		if text := strings.TrimSpace(doc.Find(sel).First().Text()); len(text) >= minAcceptableLen {
			return text
		}
	}
	return strings.TrimSpace(doc.Find("body").Text())
}

// fetchHeadless is tier 3: headless-browser navigation for JS-only pages,
// bounded at HeadlessTimeout: it navigates, pauses a fixed 500ms, then
// reads the rendered HTML. It does not wait for network idle and has no
// separate DOMContentLoaded fallback.
func (f *Fetcher) fetchHeadless(ctx context.Context, rawURL string) Result {
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, chromedp.DefaultExecAllocatorOptions[:]...)
	defer allocCancel()

	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	defer browserCancel()

	timeoutCtx, cancel := context.WithTimeout(browserCtx, f.cfg.HeadlessTimeout)
	defer cancel()

	var html, finalURL string
	err := chromedp.Run(timeoutCtx,
		chromedp.Navigate(rawURL),
		chromedp.Sleep(500*time.Millisecond),
		chromedp.Location(&finalURL),
		chromedp.OuterHTML("html", &html),
	)
	if err != nil {
		f.log.Debug().Err(err).Str("url", rawURL).Msg("headless fetch failed")
		return Result{FinalURL: rawURL}
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return Result{FinalURL: finalURL}
	}

	return Result{
		FinalURL:      finalURL,
		Content:       extractBody(doc),
		PublisherName: extractMeta(doc, "og:site_name", "application-name"),
		Author:        extractMeta(doc, "author", "article:author"),
		PublisherIcon: extractIcon(doc),
	}
}

// clean clamps content to maxContentLen, normalizes whitespace, and strips
// embedded URLs, per the ArticleFetcher contract.
func clean(r Result) Result {
	text := urlInTextRe.ReplaceAllString(r.Content, "")
	text = whitespaceRe.ReplaceAllString(text, " ")
	text = strings.TrimSpace(text)
	if len(text) > maxContentLen {
		text = text[:maxContentLen]
	}
	r.Content = text
	return r
}
