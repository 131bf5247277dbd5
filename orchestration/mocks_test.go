package orchestration

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/walvekarn/agentic-compliance-agent-sub001/core"
)

// scripted is one canned provider reply.
type scripted struct {
	content string
	err     error
}

// scriptedClient implements core.AIClient for testing. It replays its
// replies in order and repeats the last one when the script runs out.
type scriptedClient struct {
	mu      sync.Mutex
	replies []scripted
	calls   int
	prompts []string
	options []*core.AIOptions
}

func newScriptedClient(replies ...scripted) *scriptedClient {
	return &scriptedClient{replies: replies}
}

func (c *scriptedClient) GenerateResponse(ctx context.Context, prompt string, options *core.AIOptions) (*core.AIResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prompts = append(c.prompts, prompt)
	c.options = append(c.options, options)
	idx := c.calls
	c.calls++
	if len(c.replies) == 0 {
		return &core.AIResponse{Content: "{}"}, nil
	}
	if idx >= len(c.replies) {
		idx = len(c.replies) - 1
	}
	reply := c.replies[idx]
	if reply.err != nil {
		return nil, reply.err
	}
	return &core.AIResponse{
		Content: reply.content,
		Usage:   core.TokenUsage{PromptTokens: 100, CompletionTokens: 50, TotalTokens: 150},
	}, nil
}

func (c *scriptedClient) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func (c *scriptedClient) promptAt(i int) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i < 0 || i >= len(c.prompts) {
		return ""
	}
	return c.prompts[i]
}

// routedClient implements core.AIClient for engine tests. It dispatches
// on the system prompt each component sends, with one reply queue per
// phase, so a full run can be scripted without counting global call
// order.
type routedClient struct {
	mu        sync.Mutex
	plans     []scripted
	steps     []scripted
	refls     []scripted
	synths    []scripted
	planCalls int
	stepCalls int
	reflCalls int
	synthCall int
	prompts   []string
}

func (c *routedClient) GenerateResponse(ctx context.Context, prompt string, options *core.AIOptions) (*core.AIResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prompts = append(c.prompts, prompt)

	system := ""
	if options != nil {
		system = options.SystemPrompt
	}
	var reply scripted
	switch system {
	case plannerSystemPrompt:
		reply = takeScripted(c.plans, &c.planCalls)
	case executorSystemPrompt:
		reply = takeScripted(c.steps, &c.stepCalls)
	case reflectorSystemPrompt:
		reply = takeScripted(c.refls, &c.reflCalls)
	case synthesisSystemPrompt:
		reply = takeScripted(c.synths, &c.synthCall)
	default:
		return nil, fmt.Errorf("unexpected system prompt: %q", system)
	}
	if reply.err != nil {
		return nil, reply.err
	}
	return &core.AIResponse{Content: reply.content}, nil
}

func takeScripted(queue []scripted, count *int) scripted {
	idx := *count
	*count++
	if len(queue) == 0 {
		return scripted{content: "{}"}
	}
	if idx >= len(queue) {
		idx = len(queue) - 1
	}
	return queue[idx]
}

func (c *routedClient) stepCallCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stepCalls
}

func (c *routedClient) reflCallCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reflCalls
}

func (c *routedClient) promptsContaining(substr string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, p := range c.prompts {
		if strings.Contains(p, substr) {
			n++
		}
	}
	return n
}

// blockingClient implements core.AIClient for gate tests. Each call
// signals started and then waits for release or context cancellation.
type blockingClient struct {
	started chan struct{}
	release chan struct{}
}

func newBlockingClient() *blockingClient {
	return &blockingClient{
		started: make(chan struct{}, 64),
		release: make(chan struct{}),
	}
}

func (c *blockingClient) GenerateResponse(ctx context.Context, prompt string, options *core.AIOptions) (*core.AIResponse, error) {
	c.started <- struct{}{}
	select {
	case <-c.release:
		return &core.AIResponse{Content: "ok"}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// stubCapability implements core.CapabilityModule for testing.
type stubCapability struct {
	name   string
	tags   []string
	side   core.SideEffectClass
	result *core.CapabilityResult
	err    error

	mu      sync.Mutex
	invoked int
}

func (s *stubCapability) Name() string { return s.name }

func (s *stubCapability) Metadata() core.CapabilityMetadata {
	side := s.side
	if side == "" {
		side = core.SideEffectReadOnly
	}
	return core.CapabilityMetadata{
		Name:        s.name,
		Description: "stub capability",
		Tags:        s.tags,
		SideEffect:  side,
	}
}

func (s *stubCapability) Invoke(ctx context.Context, req core.CapabilityRequest) (*core.CapabilityResult, error) {
	s.mu.Lock()
	s.invoked++
	s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	if s.result != nil {
		return s.result, nil
	}
	return &core.CapabilityResult{
		Capability: s.name,
		Success:    true,
		Summary:    s.name + " ran",
	}, nil
}

func (s *stubCapability) invocations() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.invoked
}

// fakePlanner implements Planner for engine tests.
type fakePlanner struct {
	plans [][]core.Step
	errs  []error
	calls int
	hints [][]string
}

func (f *fakePlanner) Plan(ctx context.Context, task core.Task, entity core.EntityContext, hints []string) ([]core.Step, error) {
	idx := f.calls
	f.calls++
	f.hints = append(f.hints, hints)
	if idx < len(f.errs) && f.errs[idx] != nil {
		return nil, f.errs[idx]
	}
	if len(f.plans) == 0 {
		return nil, core.ErrPlanningFailed
	}
	if idx >= len(f.plans) {
		idx = len(f.plans) - 1
	}
	return f.plans[idx], nil
}

// fakeExecutor implements Executor for engine tests. The script
// receives the step and the 1-based attempt number for that step ID.
type fakeExecutor struct {
	script   func(step core.Step, attempt int) *core.StepResult
	executed []core.Step
	attempts map[string]int
}

func (f *fakeExecutor) ExecuteStep(ctx context.Context, step core.Step, rc *RunContext) *core.StepResult {
	if f.attempts == nil {
		f.attempts = make(map[string]int)
	}
	f.attempts[step.ID]++
	f.executed = append(f.executed, step)
	if f.script != nil {
		return f.script(step, f.attempts[step.ID])
	}
	return successResult(step.ID, "output for "+step.ID, 0.9)
}

// fakeReflector implements Reflector for engine tests.
type fakeReflector struct {
	script    func(step core.Step, result *core.StepResult) *core.Reflection
	reflected []string
}

func (f *fakeReflector) Reflect(ctx context.Context, step core.Step, result *core.StepResult) *core.Reflection {
	f.reflected = append(f.reflected, step.ID)
	if f.script != nil {
		return f.script(step, result)
	}
	return passingReflection(step.ID, 0.9)
}

// recordingLogger implements core.Logger for testing, capturing entries
// for assertion.
type recordingLogger struct {
	mu      sync.Mutex
	entries []logEntry
}

type logEntry struct {
	level  string
	msg    string
	fields map[string]interface{}
}

func (l *recordingLogger) log(level, msg string, fields map[string]interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, logEntry{level: level, msg: msg, fields: fields})
}

func (l *recordingLogger) Info(msg string, fields map[string]interface{})  { l.log("INFO", msg, fields) }
func (l *recordingLogger) Error(msg string, fields map[string]interface{}) { l.log("ERROR", msg, fields) }
func (l *recordingLogger) Warn(msg string, fields map[string]interface{})  { l.log("WARN", msg, fields) }
func (l *recordingLogger) Debug(msg string, fields map[string]interface{}) { l.log("DEBUG", msg, fields) }

func (l *recordingLogger) has(level, msg string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range l.entries {
		if e.level == level && e.msg == msg {
			return true
		}
	}
	return false
}

// Payload builders keep test JSON in one place.

func planResponse(descriptions ...string) string {
	var b strings.Builder
	b.WriteString(`{"steps":[`)
	for i, desc := range descriptions {
		if i > 0 {
			b.WriteString(",")
		}
		fmt.Fprintf(&b, `{"step_id":"step-%d","description":%q,"rationale":"needed","expected_outcome":"done"}`, i+1, desc)
	}
	b.WriteString(`]}`)
	return b.String()
}

func stepResponse(output string, confidence float64) string {
	return fmt.Sprintf(`{"output":%q,"findings":["finding A"],"risks":["risk A"],"confidence":%g}`, output, confidence)
}

func reflectionResponse(score float64, requiresRetry bool, issues ...string) string {
	quoted := make([]string, 0, len(issues))
	for _, issue := range issues {
		quoted = append(quoted, fmt.Sprintf("%q", issue))
	}
	return fmt.Sprintf(`{"correctness":%g,"completeness":%g,"risk_awareness":%g,"hallucination_risk":0.1,"actionability":%g,"confidence":%g,"issues":[%s],"suggestions":[],"missing_data":[],"requires_retry":%t}`,
		score, score, score, score, score, strings.Join(quoted, ","), requiresRetry)
}

// Result and reflection builders for tests that bypass the provider.

func successResult(stepID, output string, confidence float64) *core.StepResult {
	now := time.Now().UTC()
	return &core.StepResult{
		StepID:           stepID,
		Status:           core.StepStatusSuccess,
		Output:           output,
		Findings:         []string{"finding for " + stepID},
		Risks:            []string{},
		Confidence:       confidence,
		CapabilitiesUsed: []string{},
		StartTime:        now,
		EndTime:          now,
	}
}

func failedResult(stepID string, kind core.ErrorKind, msg string) *core.StepResult {
	now := time.Now().UTC()
	return &core.StepResult{
		StepID:           stepID,
		Status:           core.StepStatusFailure,
		Findings:         []string{},
		Risks:            []string{},
		CapabilitiesUsed: []string{},
		Errors: []core.StepError{
			{Kind: kind, Message: msg, Source: "test", OccurredAt: now},
		},
		StartTime: now,
		EndTime:   now,
	}
}

func passingReflection(stepID string, quality float64) *core.Reflection {
	return &core.Reflection{
		StepID:             stepID,
		CorrectnessScore:   quality,
		CompletenessScore:  quality,
		RiskAwarenessScore: quality,
		HallucinationRisk:  0.1,
		ActionabilityScore: quality,
		OverallQuality:     quality,
		ConfidenceScore:    quality,
		Issues:             []string{},
		Suggestions:        []string{},
		MissingData:        []string{},
	}
}

func testPlan(ids ...string) []core.Step {
	steps := make([]core.Step, 0, len(ids))
	for _, id := range ids {
		steps = append(steps, core.Step{
			ID:              id,
			Description:     "analyze " + id,
			Rationale:       "required",
			ExpectedOutcome: "findings for " + id,
		})
	}
	return steps
}

// testConfig returns a validated config with short timeouts for tests.
func testConfig() *core.Config {
	cfg := core.DefaultConfig()
	cfg.Engine.MaxIterations = 10
	cfg.Engine.MaxRetriesPerStep = 2
	cfg.Engine.MinPlanSteps = 1
	cfg.Engine.MaxPlanSteps = 10
	cfg.Engine.PerCallTimeout = 2 * time.Second
	cfg.Engine.SecondaryTimeout = 5 * time.Second
	cfg.Engine.OverallTimeout = 10 * time.Second
	return cfg
}

// newTestEngine wires an Engine from fakes without going through
// provider-backed component construction.
func newTestEngine(cfg *core.Config, planner Planner, executor Executor, reflector Reflector, client core.AIClient) *Engine {
	if cfg == nil {
		cfg = testConfig()
	}
	if client == nil {
		client = newScriptedClient(scripted{content: "synthesized recommendation"})
	}
	return &Engine{
		config:    cfg.Engine,
		planner:   planner,
		executor:  executor,
		reflector: reflector,
		retry:     newRetryController(cfg.Engine.MaxRetriesPerStep, nil),
		revision:  newRevisionController(cfg.Engine.RevisionThreshold, nil),
		client:    client,
		logger:    &core.NoOpLogger{},
		telemetry: &core.NoOpTelemetry{},
	}
}
