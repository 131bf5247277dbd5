// Package store persists completed run results for later review. The
// store is append-only: a run is recorded once when the engine returns
// and never rewritten, so the stored trace stays a faithful record of
// what the run actually did.
package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/walvekarn/agentic-compliance-agent-sub001/core"
)

// defaultListLimit bounds List when the caller passes no limit.
const defaultListLimit = 50

// RunStore is the persistence contract for completed runs.
// Record returns core.ErrDuplicateRun when the run ID is already
// stored; Get returns core.ErrRunNotFound for unknown IDs. List
// returns the most recent runs first.
type RunStore interface {
	Record(ctx context.Context, result *core.RunResult) error
	Get(ctx context.Context, runID string) (*core.RunResult, error)
	List(ctx context.Context, limit int) ([]RunSummary, error)
	Close() error
}

// RunSummary is the listing view of a stored run.
type RunSummary struct {
	RunID      string         `json:"run_id"`
	Status     core.RunStatus `json:"status"`
	Steps      int            `json:"steps"`
	Confidence float64        `json:"confidence"`
	Timestamp  string         `json:"timestamp"`
}

// New builds the store selected by cfg.Backend. The redis backend
// dials and pings the server before returning so a bad URL fails at
// startup instead of on the first Record.
func New(cfg core.StoreConfig, logger core.Logger) (RunStore, error) {
	switch strings.ToLower(cfg.Backend) {
	case "", "memory":
		return NewMemoryStore(logger), nil
	case "redis":
		return dialRedis(cfg, logger)
	case "sqlite":
		return NewSQLiteStore(cfg.SQLitePath, logger)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}

func summarize(result *core.RunResult) RunSummary {
	return RunSummary{
		RunID:      result.RunID,
		Status:     result.Status,
		Steps:      len(result.StepOutputs),
		Confidence: result.ConfidenceScore,
		Timestamp:  result.Timestamp,
	}
}

func validateRecord(result *core.RunResult) error {
	if result == nil {
		return fmt.Errorf("run result cannot be nil")
	}
	if result.RunID == "" {
		return fmt.Errorf("run ID cannot be empty")
	}
	return nil
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	return limit
}
