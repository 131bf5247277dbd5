package core

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration for the assistant. Values resolve in
// precedence order: defaults, then environment, then functional options
// (including WithConfigFile, applied in the order given).
type Config struct {
	Engine       EngineConfig       `json:"engine" yaml:"engine"`
	Provider     ProviderConfig     `json:"provider" yaml:"provider"`
	Gate         GateConfig         `json:"gate" yaml:"gate"`
	Breaker      BreakerConfig      `json:"breaker" yaml:"breaker"`
	Capabilities CapabilitiesConfig `json:"capabilities" yaml:"capabilities"`
	Store        StoreConfig        `json:"store" yaml:"store"`
	Telemetry    TelemetryConfig    `json:"telemetry" yaml:"telemetry"`
	Logging      LoggingConfig      `json:"logging" yaml:"logging"`
}

// EngineConfig bounds the plan-execute-reflect loop. The timeout hierarchy
// invariant overall >= secondary >= per_call is enforced by Validate.
type EngineConfig struct {
	MaxIterations     int           `json:"max_iterations" yaml:"max_iterations" env:"COMPLY_MAX_ITERATIONS" default:"10"`
	MaxRetriesPerStep int           `json:"max_retries_per_step" yaml:"max_retries_per_step" env:"COMPLY_MAX_RETRIES_PER_STEP" default:"2"`
	MinPlanSteps      int           `json:"min_plan_steps" yaml:"min_plan_steps" env:"COMPLY_MIN_PLAN_STEPS" default:"3"`
	MaxPlanSteps      int           `json:"max_plan_steps" yaml:"max_plan_steps" env:"COMPLY_MAX_PLAN_STEPS" default:"7"`
	PerCallTimeout    time.Duration `json:"per_call_timeout" yaml:"per_call_timeout" env:"COMPLY_PER_CALL_TIMEOUT" default:"30s"`
	SecondaryTimeout  time.Duration `json:"secondary_timeout" yaml:"secondary_timeout" env:"COMPLY_SECONDARY_TIMEOUT" default:"2m"`
	OverallTimeout    time.Duration `json:"overall_timeout" yaml:"overall_timeout" env:"COMPLY_OVERALL_TIMEOUT" default:"5m"`
	RevisionThreshold float64       `json:"revision_threshold" yaml:"revision_threshold" env:"COMPLY_REVISION_THRESHOLD" default:"0.70"`
	ExecuteConfirmed  bool          `json:"execute_confirmed" yaml:"execute_confirmed" env:"COMPLY_EXECUTE_CONFIRMED" default:"false"`
}

// ProviderConfig selects and tunes the reasoning provider.
type ProviderConfig struct {
	Provider    string        `json:"provider" yaml:"provider" env:"COMPLY_PROVIDER" default:"auto"`
	APIKey      string        `json:"-" yaml:"api_key" env:"COMPLY_API_KEY"`
	BaseURL     string        `json:"base_url" yaml:"base_url" env:"COMPLY_BASE_URL"`
	Model       string        `json:"model" yaml:"model" env:"COMPLY_MODEL"`
	Temperature float32       `json:"temperature" yaml:"temperature" env:"COMPLY_TEMPERATURE" default:"0.3"`
	MaxTokens   int           `json:"max_tokens" yaml:"max_tokens" env:"COMPLY_MAX_TOKENS" default:"2000"`
	MaxRetries  int           `json:"max_retries" yaml:"max_retries" env:"COMPLY_PROVIDER_MAX_RETRIES" default:"3"`
	Timeout     time.Duration `json:"timeout" yaml:"timeout" env:"COMPLY_PROVIDER_TIMEOUT" default:"60s"`
}

// GateConfig bounds in-flight external calls across all concurrent runs.
type GateConfig struct {
	MaxConcurrent int `json:"max_concurrent" yaml:"max_concurrent" env:"COMPLY_GATE_MAX_CONCURRENT" default:"8"`
}

// BreakerConfig tunes the circuit breaker wrapping provider calls.
type BreakerConfig struct {
	Enabled       bool          `json:"enabled" yaml:"enabled" env:"COMPLY_BREAKER_ENABLED" default:"true"`
	Threshold     int           `json:"threshold" yaml:"threshold" env:"COMPLY_BREAKER_THRESHOLD" default:"5"`
	ResetTimeout  time.Duration `json:"reset_timeout" yaml:"reset_timeout" env:"COMPLY_BREAKER_RESET_TIMEOUT" default:"30s"`
	HalfOpenLimit int           `json:"half_open_limit" yaml:"half_open_limit" env:"COMPLY_BREAKER_HALF_OPEN_LIMIT" default:"1"`
}

// CapabilitiesConfig configures the built-in capability modules.
type CapabilitiesConfig struct {
	WebhookURL   string `json:"webhook_url" yaml:"webhook_url" env:"COMPLY_WEBHOOK_URL"`
	TagTablePath string `json:"tag_table_path" yaml:"tag_table_path" env:"COMPLY_TAG_TABLE"`
}

// StoreConfig selects the run store backend used by the caller.
type StoreConfig struct {
	Backend      string        `json:"backend" yaml:"backend" env:"COMPLY_STORE_BACKEND" default:"memory"`
	RedisURL     string        `json:"redis_url" yaml:"redis_url" env:"COMPLY_REDIS_URL" default:"redis://localhost:6379"`
	SQLitePath   string        `json:"sqlite_path" yaml:"sqlite_path" env:"COMPLY_SQLITE_PATH" default:"complyagent.db"`
	RetentionTTL time.Duration `json:"retention_ttl" yaml:"retention_ttl" env:"COMPLY_RETENTION_TTL" default:"720h"`
}

// TelemetryConfig enables tracing and metrics export.
type TelemetryConfig struct {
	Enabled     bool   `json:"enabled" yaml:"enabled" env:"COMPLY_TELEMETRY_ENABLED" default:"false"`
	Endpoint    string `json:"endpoint" yaml:"endpoint" env:"COMPLY_OTEL_ENDPOINT"`
	ServiceName string `json:"service_name" yaml:"service_name" env:"COMPLY_SERVICE_NAME" default:"complyagent"`
	UseStdout   bool   `json:"use_stdout" yaml:"use_stdout" env:"COMPLY_TELEMETRY_STDOUT" default:"false"`
}

// LoggingConfig configures the production logger.
type LoggingConfig struct {
	Level  string `json:"level" yaml:"level" env:"COMPLY_LOG_LEVEL" default:"INFO"`
	Format string `json:"format" yaml:"format" env:"COMPLY_LOG_FORMAT"`
}

// DefaultConfig returns the configuration defaults.
func DefaultConfig() *Config {
	return &Config{
		Engine: EngineConfig{
			MaxIterations:     10,
			MaxRetriesPerStep: 2,
			MinPlanSteps:      3,
			MaxPlanSteps:      7,
			PerCallTimeout:    30 * time.Second,
			SecondaryTimeout:  2 * time.Minute,
			OverallTimeout:    5 * time.Minute,
			RevisionThreshold: 0.70,
		},
		Provider: ProviderConfig{
			Provider:    "auto",
			Temperature: 0.3,
			MaxTokens:   2000,
			MaxRetries:  3,
			Timeout:     60 * time.Second,
		},
		Gate: GateConfig{
			MaxConcurrent: 8,
		},
		Breaker: BreakerConfig{
			Enabled:       true,
			Threshold:     5,
			ResetTimeout:  30 * time.Second,
			HalfOpenLimit: 1,
		},
		Store: StoreConfig{
			Backend:      "memory",
			RedisURL:     "redis://localhost:6379",
			SQLitePath:   "complyagent.db",
			RetentionTTL: 720 * time.Hour,
		},
		Telemetry: TelemetryConfig{
			Enabled:     false,
			ServiceName: "complyagent",
		},
		Logging: LoggingConfig{
			Level: "INFO",
		},
	}
}

// LoadFromEnv loads configuration from environment variables.
// Only set variables override; parse failures are returned, not ignored.
func (c *Config) LoadFromEnv() error {
	if v := os.Getenv("COMPLY_MAX_ITERATIONS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid COMPLY_MAX_ITERATIONS: %w", err)
		}
		c.Engine.MaxIterations = n
	}
	if v := os.Getenv("COMPLY_MAX_RETRIES_PER_STEP"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid COMPLY_MAX_RETRIES_PER_STEP: %w", err)
		}
		c.Engine.MaxRetriesPerStep = n
	}
	if v := os.Getenv("COMPLY_PER_CALL_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid COMPLY_PER_CALL_TIMEOUT: %w", err)
		}
		c.Engine.PerCallTimeout = d
	}
	if v := os.Getenv("COMPLY_SECONDARY_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid COMPLY_SECONDARY_TIMEOUT: %w", err)
		}
		c.Engine.SecondaryTimeout = d
	}
	if v := os.Getenv("COMPLY_OVERALL_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid COMPLY_OVERALL_TIMEOUT: %w", err)
		}
		c.Engine.OverallTimeout = d
	}
	if v := os.Getenv("COMPLY_REVISION_THRESHOLD"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid COMPLY_REVISION_THRESHOLD: %w", err)
		}
		c.Engine.RevisionThreshold = f
	}
	if v := os.Getenv("COMPLY_EXECUTE_CONFIRMED"); v != "" {
		c.Engine.ExecuteConfirmed = v == "true"
	}

	if v := os.Getenv("COMPLY_PROVIDER"); v != "" {
		c.Provider.Provider = v
	}
	if v := os.Getenv("COMPLY_API_KEY"); v != "" {
		c.Provider.APIKey = v
	}
	if v := os.Getenv("COMPLY_BASE_URL"); v != "" {
		c.Provider.BaseURL = v
	}
	if v := os.Getenv("COMPLY_MODEL"); v != "" {
		c.Provider.Model = v
	}
	if v := os.Getenv("COMPLY_PROVIDER_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid COMPLY_PROVIDER_TIMEOUT: %w", err)
		}
		c.Provider.Timeout = d
	}

	if v := os.Getenv("COMPLY_GATE_MAX_CONCURRENT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid COMPLY_GATE_MAX_CONCURRENT: %w", err)
		}
		c.Gate.MaxConcurrent = n
	}

	if v := os.Getenv("COMPLY_BREAKER_ENABLED"); v != "" {
		c.Breaker.Enabled = v == "true"
	}
	if v := os.Getenv("COMPLY_BREAKER_THRESHOLD"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid COMPLY_BREAKER_THRESHOLD: %w", err)
		}
		c.Breaker.Threshold = n
	}

	if v := os.Getenv("COMPLY_WEBHOOK_URL"); v != "" {
		c.Capabilities.WebhookURL = v
	}
	if v := os.Getenv("COMPLY_TAG_TABLE"); v != "" {
		c.Capabilities.TagTablePath = v
	}

	if v := os.Getenv("COMPLY_STORE_BACKEND"); v != "" {
		c.Store.Backend = v
	}
	if v := os.Getenv("COMPLY_REDIS_URL"); v != "" {
		c.Store.RedisURL = v
	} else if v := os.Getenv("REDIS_URL"); v != "" {
		c.Store.RedisURL = v
	}
	if v := os.Getenv("COMPLY_SQLITE_PATH"); v != "" {
		c.Store.SQLitePath = v
	}

	if v := os.Getenv("COMPLY_TELEMETRY_ENABLED"); v != "" {
		c.Telemetry.Enabled = v == "true"
	}
	if v := os.Getenv("COMPLY_OTEL_ENDPOINT"); v != "" {
		c.Telemetry.Endpoint = v
	}
	if v := os.Getenv("COMPLY_SERVICE_NAME"); v != "" {
		c.Telemetry.ServiceName = v
	}

	if v := os.Getenv("COMPLY_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("COMPLY_LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}
	return nil
}

// Validate checks configuration invariants.
func (c *Config) Validate() error {
	e := c.Engine
	if e.MaxIterations < 1 {
		return fmt.Errorf("%w: max_iterations must be >= 1, got %d", ErrInvalidConfiguration, e.MaxIterations)
	}
	if e.MaxRetriesPerStep < 0 {
		return fmt.Errorf("%w: max_retries_per_step must be >= 0, got %d", ErrInvalidConfiguration, e.MaxRetriesPerStep)
	}
	if e.MinPlanSteps < 1 || e.MaxPlanSteps < e.MinPlanSteps {
		return fmt.Errorf("%w: plan step bounds [%d, %d] invalid", ErrInvalidConfiguration, e.MinPlanSteps, e.MaxPlanSteps)
	}
	if e.PerCallTimeout <= 0 || e.SecondaryTimeout <= 0 || e.OverallTimeout <= 0 {
		return fmt.Errorf("%w: timeouts must be positive", ErrInvalidConfiguration)
	}
	// Timeout hierarchy: overall >= secondary >= per_call.
	if e.SecondaryTimeout < e.PerCallTimeout {
		return fmt.Errorf("%w: secondary_timeout %s < per_call_timeout %s", ErrInvalidConfiguration, e.SecondaryTimeout, e.PerCallTimeout)
	}
	if e.OverallTimeout < e.SecondaryTimeout {
		return fmt.Errorf("%w: overall_timeout %s < secondary_timeout %s", ErrInvalidConfiguration, e.OverallTimeout, e.SecondaryTimeout)
	}
	if e.RevisionThreshold < 0 || e.RevisionThreshold > 1 {
		return fmt.Errorf("%w: revision_threshold must be in [0,1], got %g", ErrInvalidConfiguration, e.RevisionThreshold)
	}
	if c.Gate.MaxConcurrent < 1 {
		return fmt.Errorf("%w: gate max_concurrent must be >= 1, got %d", ErrInvalidConfiguration, c.Gate.MaxConcurrent)
	}
	switch c.Store.Backend {
	case "memory", "redis", "sqlite":
	default:
		return fmt.Errorf("%w: unknown store backend %q", ErrInvalidConfiguration, c.Store.Backend)
	}
	if c.Store.Backend == "redis" && c.Store.RedisURL == "" {
		return fmt.Errorf("%w: redis backend requires redis_url", ErrMissingConfiguration)
	}
	if c.Store.Backend == "sqlite" && c.Store.SQLitePath == "" {
		return fmt.Errorf("%w: sqlite backend requires sqlite_path", ErrMissingConfiguration)
	}
	return nil
}

// Option configures a Config
type Option func(*Config) error

// NewConfig creates a validated Config from defaults, environment, and options.
func NewConfig(opts ...Option) (*Config, error) {
	cfg := DefaultConfig()

	if err := cfg.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load env config: %w", err)
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// fileConfig mirrors Config for YAML parsing. Durations are strings
// ("30s", "2m") and scalars are pointers so unset fields leave the
// current value alone.
type fileConfig struct {
	Engine struct {
		MaxIterations     *int     `yaml:"max_iterations"`
		MaxRetriesPerStep *int     `yaml:"max_retries_per_step"`
		MinPlanSteps      *int     `yaml:"min_plan_steps"`
		MaxPlanSteps      *int     `yaml:"max_plan_steps"`
		PerCallTimeout    string   `yaml:"per_call_timeout"`
		SecondaryTimeout  string   `yaml:"secondary_timeout"`
		OverallTimeout    string   `yaml:"overall_timeout"`
		RevisionThreshold *float64 `yaml:"revision_threshold"`
		ExecuteConfirmed  *bool    `yaml:"execute_confirmed"`
	} `yaml:"engine"`
	Provider struct {
		Provider    string   `yaml:"provider"`
		APIKey      string   `yaml:"api_key"`
		BaseURL     string   `yaml:"base_url"`
		Model       string   `yaml:"model"`
		Temperature *float32 `yaml:"temperature"`
		MaxTokens   *int     `yaml:"max_tokens"`
		MaxRetries  *int     `yaml:"max_retries"`
		Timeout     string   `yaml:"timeout"`
	} `yaml:"provider"`
	Gate struct {
		MaxConcurrent *int `yaml:"max_concurrent"`
	} `yaml:"gate"`
	Breaker struct {
		Enabled       *bool  `yaml:"enabled"`
		Threshold     *int   `yaml:"threshold"`
		ResetTimeout  string `yaml:"reset_timeout"`
		HalfOpenLimit *int   `yaml:"half_open_limit"`
	} `yaml:"breaker"`
	Capabilities struct {
		WebhookURL   string `yaml:"webhook_url"`
		TagTablePath string `yaml:"tag_table_path"`
	} `yaml:"capabilities"`
	Store struct {
		Backend      string `yaml:"backend"`
		RedisURL     string `yaml:"redis_url"`
		SQLitePath   string `yaml:"sqlite_path"`
		RetentionTTL string `yaml:"retention_ttl"`
	} `yaml:"store"`
	Telemetry struct {
		Enabled     *bool  `yaml:"enabled"`
		Endpoint    string `yaml:"endpoint"`
		ServiceName string `yaml:"service_name"`
		UseStdout   *bool  `yaml:"use_stdout"`
	} `yaml:"telemetry"`
	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`
}

// LoadFromFile overlays a YAML configuration file onto the current values.
func (c *Config) LoadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	setDuration := func(target *time.Duration, raw, field string) error {
		if raw == "" {
			return nil
		}
		d, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("invalid %s in %s: %w", field, path, err)
		}
		*target = d
		return nil
	}

	if fc.Engine.MaxIterations != nil {
		c.Engine.MaxIterations = *fc.Engine.MaxIterations
	}
	if fc.Engine.MaxRetriesPerStep != nil {
		c.Engine.MaxRetriesPerStep = *fc.Engine.MaxRetriesPerStep
	}
	if fc.Engine.MinPlanSteps != nil {
		c.Engine.MinPlanSteps = *fc.Engine.MinPlanSteps
	}
	if fc.Engine.MaxPlanSteps != nil {
		c.Engine.MaxPlanSteps = *fc.Engine.MaxPlanSteps
	}
	if err := setDuration(&c.Engine.PerCallTimeout, fc.Engine.PerCallTimeout, "engine.per_call_timeout"); err != nil {
		return err
	}
	if err := setDuration(&c.Engine.SecondaryTimeout, fc.Engine.SecondaryTimeout, "engine.secondary_timeout"); err != nil {
		return err
	}
	if err := setDuration(&c.Engine.OverallTimeout, fc.Engine.OverallTimeout, "engine.overall_timeout"); err != nil {
		return err
	}
	if fc.Engine.RevisionThreshold != nil {
		c.Engine.RevisionThreshold = *fc.Engine.RevisionThreshold
	}
	if fc.Engine.ExecuteConfirmed != nil {
		c.Engine.ExecuteConfirmed = *fc.Engine.ExecuteConfirmed
	}

	if fc.Provider.Provider != "" {
		c.Provider.Provider = fc.Provider.Provider
	}
	if fc.Provider.APIKey != "" {
		c.Provider.APIKey = fc.Provider.APIKey
	}
	if fc.Provider.BaseURL != "" {
		c.Provider.BaseURL = fc.Provider.BaseURL
	}
	if fc.Provider.Model != "" {
		c.Provider.Model = fc.Provider.Model
	}
	if fc.Provider.Temperature != nil {
		c.Provider.Temperature = *fc.Provider.Temperature
	}
	if fc.Provider.MaxTokens != nil {
		c.Provider.MaxTokens = *fc.Provider.MaxTokens
	}
	if fc.Provider.MaxRetries != nil {
		c.Provider.MaxRetries = *fc.Provider.MaxRetries
	}
	if err := setDuration(&c.Provider.Timeout, fc.Provider.Timeout, "provider.timeout"); err != nil {
		return err
	}

	if fc.Gate.MaxConcurrent != nil {
		c.Gate.MaxConcurrent = *fc.Gate.MaxConcurrent
	}

	if fc.Breaker.Enabled != nil {
		c.Breaker.Enabled = *fc.Breaker.Enabled
	}
	if fc.Breaker.Threshold != nil {
		c.Breaker.Threshold = *fc.Breaker.Threshold
	}
	if err := setDuration(&c.Breaker.ResetTimeout, fc.Breaker.ResetTimeout, "breaker.reset_timeout"); err != nil {
		return err
	}
	if fc.Breaker.HalfOpenLimit != nil {
		c.Breaker.HalfOpenLimit = *fc.Breaker.HalfOpenLimit
	}

	if fc.Capabilities.WebhookURL != "" {
		c.Capabilities.WebhookURL = fc.Capabilities.WebhookURL
	}
	if fc.Capabilities.TagTablePath != "" {
		c.Capabilities.TagTablePath = fc.Capabilities.TagTablePath
	}

	if fc.Store.Backend != "" {
		c.Store.Backend = fc.Store.Backend
	}
	if fc.Store.RedisURL != "" {
		c.Store.RedisURL = fc.Store.RedisURL
	}
	if fc.Store.SQLitePath != "" {
		c.Store.SQLitePath = fc.Store.SQLitePath
	}
	if err := setDuration(&c.Store.RetentionTTL, fc.Store.RetentionTTL, "store.retention_ttl"); err != nil {
		return err
	}

	if fc.Telemetry.Enabled != nil {
		c.Telemetry.Enabled = *fc.Telemetry.Enabled
	}
	if fc.Telemetry.Endpoint != "" {
		c.Telemetry.Endpoint = fc.Telemetry.Endpoint
	}
	if fc.Telemetry.ServiceName != "" {
		c.Telemetry.ServiceName = fc.Telemetry.ServiceName
	}
	if fc.Telemetry.UseStdout != nil {
		c.Telemetry.UseStdout = *fc.Telemetry.UseStdout
	}

	if fc.Logging.Level != "" {
		c.Logging.Level = fc.Logging.Level
	}
	if fc.Logging.Format != "" {
		c.Logging.Format = fc.Logging.Format
	}
	return nil
}

// WithConfigFile loads a YAML configuration file over the current values.
func WithConfigFile(path string) Option {
	return func(c *Config) error {
		return c.LoadFromFile(path)
	}
}

// WithMaxIterations sets the global iteration budget
func WithMaxIterations(n int) Option {
	return func(c *Config) error {
		c.Engine.MaxIterations = n
		return nil
	}
}

// WithMaxRetriesPerStep sets the per-step retry budget
func WithMaxRetriesPerStep(n int) Option {
	return func(c *Config) error {
		c.Engine.MaxRetriesPerStep = n
		return nil
	}
}

// WithTimeouts sets the full timeout hierarchy at once
func WithTimeouts(perCall, secondary, overall time.Duration) Option {
	return func(c *Config) error {
		c.Engine.PerCallTimeout = perCall
		c.Engine.SecondaryTimeout = secondary
		c.Engine.OverallTimeout = overall
		return nil
	}
}

// WithRevisionThreshold sets the aggregate quality bar for plan revision
func WithRevisionThreshold(t float64) Option {
	return func(c *Config) error {
		c.Engine.RevisionThreshold = t
		return nil
	}
}

// WithExecuteConfirmed allows side-effecting capabilities for this process
func WithExecuteConfirmed(confirmed bool) Option {
	return func(c *Config) error {
		c.Engine.ExecuteConfirmed = confirmed
		return nil
	}
}

// WithProvider selects the reasoning provider by name
func WithProvider(name string) Option {
	return func(c *Config) error {
		c.Provider.Provider = name
		return nil
	}
}

// WithAPIKey sets the provider API key
func WithAPIKey(key string) Option {
	return func(c *Config) error {
		c.Provider.APIKey = key
		return nil
	}
}

// WithModel sets the provider model
func WithModel(model string) Option {
	return func(c *Config) error {
		c.Provider.Model = model
		return nil
	}
}

// WithGateLimit caps concurrent external calls across runs
func WithGateLimit(n int) Option {
	return func(c *Config) error {
		c.Gate.MaxConcurrent = n
		return nil
	}
}

// WithCircuitBreaker tunes the provider circuit breaker
func WithCircuitBreaker(threshold int, resetTimeout time.Duration) Option {
	return func(c *Config) error {
		c.Breaker.Enabled = true
		c.Breaker.Threshold = threshold
		c.Breaker.ResetTimeout = resetTimeout
		return nil
	}
}

// WithWebhookURL sets the outbound notification endpoint
func WithWebhookURL(url string) Option {
	return func(c *Config) error {
		c.Capabilities.WebhookURL = url
		return nil
	}
}

// WithStoreBackend selects the run store backend
func WithStoreBackend(backend string) Option {
	return func(c *Config) error {
		c.Store.Backend = backend
		return nil
	}
}

// WithRedisURL sets the redis connection URL
func WithRedisURL(url string) Option {
	return func(c *Config) error {
		c.Store.RedisURL = url
		return nil
	}
}

// WithSQLitePath sets the sqlite database path
func WithSQLitePath(path string) Option {
	return func(c *Config) error {
		c.Store.SQLitePath = path
		return nil
	}
}

// WithTelemetry enables trace and metric export
func WithTelemetry(enabled bool, endpoint string) Option {
	return func(c *Config) error {
		c.Telemetry.Enabled = enabled
		c.Telemetry.Endpoint = endpoint
		return nil
	}
}

// WithLogLevel sets the logging level
func WithLogLevel(level string) Option {
	return func(c *Config) error {
		c.Logging.Level = level
		return nil
	}
}
