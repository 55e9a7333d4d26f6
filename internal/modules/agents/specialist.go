// Package agents implements the specialist roster AgentRouter's graph fans
// out to: news, twitter, technical, fundamental, and montecarlo. Each
// specialist is deterministic and data-available: it reads from state
// already produced by this module (indicator windows, story clusters,
// cached sentiment) rather than calling out to an LLM or an external data
// vendor.
package agents

import "context"

// Specialist is one named analysis an AgentRouter graph may fan out to for
// a single ticker. Output is an opaque payload the graph joins into its
// GraphResult; callers that need a typed view type-assert it themselves.
type Specialist interface {
	Name() string
	Run(ctx context.Context, ticker string) (any, error)
}
