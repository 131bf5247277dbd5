package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/walvekarn/agentic-compliance-agent-sub001/core"
	"github.com/walvekarn/agentic-compliance-agent-sub001/telemetry"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id     TEXT PRIMARY KEY,
	status     TEXT NOT NULL,
	confidence REAL NOT NULL,
	steps      INTEGER NOT NULL,
	created_at TEXT NOT NULL,
	payload    TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);
`

// SQLiteStore implements RunStore on a local SQLite database. The full
// RunResult is kept as a JSON payload column; the summary columns exist
// so List never has to deserialize whole traces.
type SQLiteStore struct {
	db     *sql.DB
	logger core.Logger
}

// NewSQLiteStore opens (creating if needed) the database at path and
// ensures the schema. An empty path falls back to complyagent.db in the
// working directory; ":memory:" gives a throwaway database.
func NewSQLiteStore(path string, logger core.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	if path == "" {
		path = "complyagent.db"
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database %q: %w", path, err)
	}
	// SQLite allows a single writer, and with :memory: every pool
	// connection would get its own empty database.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize sqlite schema: %w", err)
	}
	return &SQLiteStore{db: db, logger: logger}, nil
}

// Record inserts a completed run. Returns core.ErrDuplicateRun when the
// run ID is already present.
func (s *SQLiteStore) Record(ctx context.Context, result *core.RunResult) error {
	if err := validateRecord(result); err != nil {
		return err
	}

	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to serialize run: %w", err)
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO runs (run_id, status, confidence, steps, created_at, payload)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		result.RunID, string(result.Status), result.ConfidenceScore,
		len(result.StepOutputs), result.Timestamp, string(payload))
	if err != nil {
		return s.fail("record", result.RunID, err)
	}
	inserted, err := res.RowsAffected()
	if err != nil {
		return s.fail("record", result.RunID, err)
	}
	if inserted == 0 {
		return fmt.Errorf("%w: %s", core.ErrDuplicateRun, result.RunID)
	}

	telemetry.Counter(telemetry.MetricStoreOperations,
		"module", telemetry.ModuleStore, "backend", "sqlite", "operation", "record")
	s.logger.Info("Run recorded", map[string]interface{}{
		"operation": "store_record",
		"backend":   "sqlite",
		"run_id":    result.RunID,
		"status":    string(result.Status),
	})
	return nil
}

// Get retrieves a stored run by ID.
func (s *SQLiteStore) Get(ctx context.Context, runID string) (*core.RunResult, error) {
	if runID == "" {
		return nil, fmt.Errorf("run ID cannot be empty")
	}

	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM runs WHERE run_id = ?`, runID).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", core.ErrRunNotFound, runID)
	}
	if err != nil {
		return nil, s.fail("get", runID, err)
	}

	var result core.RunResult
	if err := json.Unmarshal([]byte(payload), &result); err != nil {
		return nil, fmt.Errorf("failed to deserialize run: %w", err)
	}
	return &result, nil
}

// List returns summaries for the most recent runs.
func (s *SQLiteStore) List(ctx context.Context, limit int) ([]RunSummary, error) {
	limit = normalizeLimit(limit)

	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, status, confidence, steps, created_at
		 FROM runs ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, s.fail("list", "", err)
	}
	defer rows.Close()

	var summaries []RunSummary
	for rows.Next() {
		var summary RunSummary
		var status string
		if err := rows.Scan(&summary.RunID, &status, &summary.Confidence, &summary.Steps, &summary.Timestamp); err != nil {
			return nil, s.fail("list", "", err)
		}
		summary.Status = core.RunStatus(status)
		summaries = append(summaries, summary)
	}
	if err := rows.Err(); err != nil {
		return nil, s.fail("list", "", err)
	}
	return summaries, nil
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) fail(operation, runID string, err error) error {
	telemetry.Counter(telemetry.MetricStoreErrors,
		"module", telemetry.ModuleStore, "backend", "sqlite", "operation", operation)
	s.logger.Error("Store operation failed", map[string]interface{}{
		"operation": "store_" + operation,
		"backend":   "sqlite",
		"run_id":    runID,
		"error":     err.Error(),
	})
	return fmt.Errorf("sqlite %s failed: %w", operation, err)
}
