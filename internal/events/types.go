package events

import "time"

// Kind enumerates the cross-component notifications this module's services
// publish.
type Kind string

const (
	// KindClusterCreated fires when NewsEnricher creates a brand-new
	// StoryCluster (as opposed to appending to an existing one).
	KindClusterCreated Kind = "cluster_created"

	// KindClusterAppended fires when a fuzzy-title match appends a
	// publisher to an existing StoryCluster.
	KindClusterAppended Kind = "cluster_appended"

	// KindConflictDetected fires when AgentRouter's ConflictPolicy vetoes
	// publication of an analysis.
	KindConflictDetected Kind = "conflict_detected"

	// KindWindowEmitted fires once per (ticker, window_end) IndicatorEngine
	// emission.
	KindWindowEmitted Kind = "window_emitted"

	// KindSnapshotCorrupt fires when PipelineRuntime detects and recovers
	// from a corrupt window-state snapshot.
	KindSnapshotCorrupt Kind = "snapshot_corrupt"
)

// Event is a single notification published on the bus.
type Event struct {
	Kind      Kind
	Ticker    string
	Message   string
	Data      map[string]any
	OccurredAt time.Time
}
