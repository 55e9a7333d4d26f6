// Package apperr defines sentinel errors for the pipeline's failure classes
// so components can branch on them with errors.Is instead of string
// matching. ErrSnapshotCorrupt, ErrInsufficientHoldings and
// ErrCashConstraint are returned by the pipeline, dedup and portfolio
// packages; the other sentinels are declared here but no package returns
// them.
package apperr

import "errors"

var (
	// ErrDuplicate denotes an article already seen under its URL hash,
	// content hash, or a fuzzy-matching title.
	ErrDuplicate = errors.New("article is a duplicate")

	// ErrFetchFailed denotes that all fetch tiers (decoder, HTTP, headless
	// browser) failed to retrieve an article body.
	ErrFetchFailed = errors.New("article fetch failed on all tiers")

	// ErrSentimentUnavailable denotes a sentiment LLM call that could not be
	// completed after retries.
	ErrSentimentUnavailable = errors.New("sentiment classification unavailable")

	// ErrLLMTimeout denotes an LLM call that exceeded its deadline.
	ErrLLMTimeout = errors.New("llm call timed out")

	// ErrLLMMalformed denotes an LLM response that could not be parsed into
	// the expected structured schema.
	ErrLLMMalformed = errors.New("llm response malformed")

	// ErrWindowLate denotes an event that arrived after the watermark of the
	// window it would belong to.
	ErrWindowLate = errors.New("event arrived after window watermark")

	// ErrSnapshotCorrupt is returned when a window-state snapshot fails to
	// decode on recovery.
	ErrSnapshotCorrupt = errors.New("window snapshot corrupt")

	// ErrInsufficientHoldings is returned by PortfolioService on a SELL that
	// would take a holding's quantity negative.
	ErrInsufficientHoldings = errors.New("insufficient holdings for sell")

	// ErrCashConstraint is returned by PortfolioService on a BUY that would
	// take the cash balance negative.
	ErrCashConstraint = errors.New("insufficient cash for buy")

	// ErrAgentBudgetExceeded denotes a dispatch whose global concurrency
	// slot could not be acquired before the dispatch deadline.
	ErrAgentBudgetExceeded = errors.New("agent dispatch budget exceeded")

	// ErrRouteUnresolved denotes a query for which neither the LLM decision
	// nor the fallback regex resolved a ticker or intent.
	ErrRouteUnresolved = errors.New("could not resolve a route for query")
)
