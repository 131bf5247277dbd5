package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/walvekarn/agentic-compliance-agent-sub001/core"
	"github.com/walvekarn/agentic-compliance-agent-sub001/resilience"
	"github.com/walvekarn/agentic-compliance-agent-sub001/telemetry"
)

const (
	redisRunKeyPrefix = "compliance:run:"
	redisIndexKey     = "compliance:runs"
	redisDialTimeout  = 5 * time.Second
)

// RedisStore implements RunStore on Redis. Each run lives in its own
// key under the retention TTL; an LPUSH index keeps recency order for
// List. Transient command failures are retried with backoff; the hard
// outcomes (duplicate, not found) are never retried.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	retry  *resilience.RetryConfig
	logger core.Logger
}

// NewRedisStore wraps an already connected client. A non-positive ttl
// falls back to 30 days.
func NewRedisStore(client *redis.Client, ttl time.Duration, logger core.Logger) *RedisStore {
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	return &RedisStore{
		client: client,
		ttl:    ttl,
		retry: &resilience.RetryConfig{
			MaxAttempts:   3,
			InitialDelay:  50 * time.Millisecond,
			MaxDelay:      500 * time.Millisecond,
			BackoffFactor: 2.0,
			JitterEnabled: true,
		},
		logger: logger,
	}
}

// dialRedis connects and pings so a bad URL fails at construction.
func dialRedis(cfg core.StoreConfig, logger core.Logger) (*RedisStore, error) {
	options, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL %q: %w", cfg.RedisURL, err)
	}
	client := redis.NewClient(options)

	ctx, cancel := context.WithTimeout(context.Background(), redisDialTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", options.Addr, err)
	}
	return NewRedisStore(client, cfg.RetentionTTL, logger), nil
}

func runKey(runID string) string {
	return redisRunKeyPrefix + runID
}

// Record stores a completed run under its own key and pushes the ID
// onto the recency index. Returns core.ErrDuplicateRun when the key
// already exists.
func (s *RedisStore) Record(ctx context.Context, result *core.RunResult) error {
	if err := validateRecord(result); err != nil {
		return err
	}

	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to serialize run: %w", err)
	}

	var set bool
	err = resilience.Retry(ctx, s.retry, func() error {
		ok, setErr := s.client.SetNX(ctx, runKey(result.RunID), data, s.ttl).Result()
		if setErr != nil {
			return setErr
		}
		set = ok
		return nil
	})
	if err != nil {
		return s.fail("record", result.RunID, err)
	}
	if !set {
		return fmt.Errorf("%w: %s", core.ErrDuplicateRun, result.RunID)
	}

	err = resilience.Retry(ctx, s.retry, func() error {
		_, pipeErr := s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.LPush(ctx, redisIndexKey, result.RunID)
			pipe.Expire(ctx, redisIndexKey, s.ttl)
			return nil
		})
		return pipeErr
	})
	if err != nil {
		return s.fail("record", result.RunID, err)
	}

	telemetry.Counter(telemetry.MetricStoreOperations,
		"module", telemetry.ModuleStore, "backend", "redis", "operation", "record")
	s.logger.Info("Run recorded", map[string]interface{}{
		"operation": "store_record",
		"backend":   "redis",
		"run_id":    result.RunID,
		"status":    string(result.Status),
	})
	return nil
}

// Get retrieves a stored run by ID.
func (s *RedisStore) Get(ctx context.Context, runID string) (*core.RunResult, error) {
	if runID == "" {
		return nil, fmt.Errorf("run ID cannot be empty")
	}

	var data string
	missing := false
	err := resilience.Retry(ctx, s.retry, func() error {
		value, getErr := s.client.Get(ctx, runKey(runID)).Result()
		if getErr == redis.Nil {
			missing = true
			return nil
		}
		if getErr != nil {
			return getErr
		}
		missing = false
		data = value
		return nil
	})
	if err != nil {
		return nil, s.fail("get", runID, err)
	}
	if missing {
		return nil, fmt.Errorf("%w: %s", core.ErrRunNotFound, runID)
	}

	var result core.RunResult
	if err := json.Unmarshal([]byte(data), &result); err != nil {
		return nil, fmt.Errorf("failed to deserialize run: %w", err)
	}
	return &result, nil
}

// List returns summaries for the most recent runs. Index entries whose
// run key has already expired are skipped, so a page may come back
// shorter than limit near the retention boundary.
func (s *RedisStore) List(ctx context.Context, limit int) ([]RunSummary, error) {
	limit = normalizeLimit(limit)

	var ids []string
	err := resilience.Retry(ctx, s.retry, func() error {
		values, rangeErr := s.client.LRange(ctx, redisIndexKey, 0, int64(limit)-1).Result()
		if rangeErr != nil {
			return rangeErr
		}
		ids = values
		return nil
	})
	if err != nil {
		return nil, s.fail("list", "", err)
	}

	summaries := make([]RunSummary, 0, len(ids))
	for _, id := range ids {
		data, getErr := s.client.Get(ctx, runKey(id)).Result()
		if getErr == redis.Nil {
			continue
		}
		if getErr != nil {
			return nil, s.fail("list", id, getErr)
		}
		var result core.RunResult
		if err := json.Unmarshal([]byte(data), &result); err != nil {
			return nil, fmt.Errorf("failed to deserialize run: %w", err)
		}
		summaries = append(summaries, summarize(&result))
	}
	return summaries, nil
}

// Close releases the underlying client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) fail(operation, runID string, err error) error {
	telemetry.Counter(telemetry.MetricStoreErrors,
		"module", telemetry.ModuleStore, "backend", "redis", "operation", operation)
	s.logger.Error("Store operation failed", map[string]interface{}{
		"operation": "store_" + operation,
		"backend":   "redis",
		"run_id":    runID,
		"error":     err.Error(),
	})
	return fmt.Errorf("redis %s failed: %w", operation, err)
}
