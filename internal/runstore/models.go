// Package runstore persists pipeline run records as JSON files, one per run,
// and reads them back for history and comparison. A written file is the
// durable source of truth for its run, independent of the process that
// created it.
package runstore

import (
	"time"

	"github.com/nnennaai/nai/internal/module"
)

// LatencyMetrics is the per-step timing breakdown of a run, in seconds
// rounded to 3 decimals.
type LatencyMetrics struct {
	TotalSeconds    float64 `json:"total_seconds"`
	EmbedSeconds    float64 `json:"embed_seconds"`
	RetrieveSeconds float64 `json:"retrieve_seconds"`
	GenerateSeconds float64 `json:"generate_seconds"`
}

// RetrievalMetrics summarizes the retrieval step. AvgScore is 0 when
// nothing was retrieved.
type RetrievalMetrics struct {
	NumContexts int     `json:"num_contexts"`
	AvgScore    float64 `json:"avg_score"`
}

// RunMetrics is the metrics block of a run record. EstimatedCost is nil when
// an external cost-tracking integration is active; cost display is deferred
// to that backend.
type RunMetrics struct {
	Latency          LatencyMetrics        `json:"latency"`
	Retrieval        RetrievalMetrics      `json:"retrieval"`
	Generator        module.GeneratorUsage `json:"generator"`
	EstimatedCost    *float64              `json:"estimated_cost"`
	TelemetryEnabled bool                  `json:"telemetry_enabled"`
}

// TraceStep is one entry of a run's append-only step log, consumed only for
// display and debugging.
type TraceStep struct {
	Step            string         `json:"step"`
	Timestamp       time.Time      `json:"timestamp"`
	Data            map[string]any `json:"data"`
	DurationSeconds *float64       `json:"duration_seconds,omitempty"`
}

// RunResult is the output of one pipeline invocation. Constructed once at
// the end of a successful run; failed runs produce no record.
type RunResult struct {
	RunID           string           `json:"run_id"`
	Query           string           `json:"query"`
	Answer          string           `json:"answer"`
	Contexts        []module.Context `json:"contexts"`
	Metrics         RunMetrics       `json:"metrics"`
	Trace           []TraceStep      `json:"trace"`
	DurationSeconds float64          `json:"duration_seconds"`
	Timestamp       time.Time        `json:"timestamp"`
}
