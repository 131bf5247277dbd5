package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/walvekarn/agentic-compliance-agent-sub001/core"
	"github.com/walvekarn/agentic-compliance-agent-sub001/telemetry"
)

// MemoryStore implements RunStore in process memory. Runs are kept as
// serialized JSON so a caller mutating its RunResult after Record
// cannot change what was stored. Safe for concurrent use.
type MemoryStore struct {
	mu     sync.RWMutex
	runs   map[string][]byte
	order  []string
	logger core.Logger
}

// NewMemoryStore creates an empty in-memory run store.
func NewMemoryStore(logger core.Logger) *MemoryStore {
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	return &MemoryStore{
		runs:   make(map[string][]byte),
		logger: logger,
	}
}

// Record stores a completed run. Returns core.ErrDuplicateRun when the
// run ID is already present.
func (s *MemoryStore) Record(ctx context.Context, result *core.RunResult) error {
	if err := validateRecord(result); err != nil {
		return err
	}

	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to serialize run: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.runs[result.RunID]; exists {
		return fmt.Errorf("%w: %s", core.ErrDuplicateRun, result.RunID)
	}
	s.runs[result.RunID] = data
	s.order = append(s.order, result.RunID)

	telemetry.Counter(telemetry.MetricStoreOperations,
		"module", telemetry.ModuleStore, "backend", "memory", "operation", "record")
	s.logger.Info("Run recorded", map[string]interface{}{
		"operation": "store_record",
		"backend":   "memory",
		"run_id":    result.RunID,
		"status":    string(result.Status),
	})
	return nil
}

// Get retrieves a stored run by ID.
func (s *MemoryStore) Get(ctx context.Context, runID string) (*core.RunResult, error) {
	if runID == "" {
		return nil, fmt.Errorf("run ID cannot be empty")
	}

	s.mu.RLock()
	data, exists := s.runs[runID]
	s.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("%w: %s", core.ErrRunNotFound, runID)
	}

	var result core.RunResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to deserialize run: %w", err)
	}
	return &result, nil
}

// List returns summaries of the most recently recorded runs.
func (s *MemoryStore) List(ctx context.Context, limit int) ([]RunSummary, error) {
	limit = normalizeLimit(limit)

	s.mu.RLock()
	defer s.mu.RUnlock()

	summaries := make([]RunSummary, 0, limit)
	for i := len(s.order) - 1; i >= 0 && len(summaries) < limit; i-- {
		var result core.RunResult
		if err := json.Unmarshal(s.runs[s.order[i]], &result); err != nil {
			return nil, fmt.Errorf("failed to deserialize run: %w", err)
		}
		summaries = append(summaries, summarize(&result))
	}
	return summaries, nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error {
	return nil
}
