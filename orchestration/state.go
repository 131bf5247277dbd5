package orchestration

import (
	"fmt"

	"github.com/walvekarn/agentic-compliance-agent-sub001/core"
)

// RunState is the lifecycle phase of a run.
type RunState string

const (
	StateInit            RunState = "INIT"
	StatePlanning        RunState = "PLANNING"
	StateExecuting       RunState = "EXECUTING"
	StateRetry           RunState = "RETRY"
	StateAggregateReview RunState = "AGGREGATE_REVIEW"
	StateRevisePlan      RunState = "REVISE_PLAN"
	StateFinalize        RunState = "FINALIZE"
	StateDone            RunState = "DONE"
	StateAborted         RunState = "ABORTED"
)

// IsTerminal reports whether no further transitions are possible.
func (s RunState) IsTerminal() bool {
	return s == StateDone || s == StateAborted
}

// isAllowedTransition is the single source of truth for the run state
// machine. EXECUTING self-transitions once per step; EXECUTING and RETRY
// alternate within one step's retry sub-cycle; AGGREGATE_REVIEW loops back
// through REVISE_PLAN at most once per run (the engine enforces the
// at-most-once part, the table only shapes the path).
func isAllowedTransition(from, to RunState) bool {
	if to == StateAborted {
		return !from.IsTerminal()
	}
	switch from {
	case StateInit:
		return to == StatePlanning
	case StatePlanning:
		return to == StateExecuting
	case StateExecuting:
		return to == StateExecuting || to == StateRetry || to == StateAggregateReview
	case StateRetry:
		return to == StateExecuting
	case StateAggregateReview:
		return to == StateRevisePlan || to == StateFinalize
	case StateRevisePlan:
		return to == StateExecuting
	case StateFinalize:
		return to == StateDone
	default:
		return false
	}
}

// stateMachine tracks one run's lifecycle state. A run is driven by a
// single goroutine, so no locking is needed.
type stateMachine struct {
	state  RunState
	runID  string
	logger core.Logger
}

func newStateMachine(runID string, logger core.Logger) *stateMachine {
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	return &stateMachine{state: StateInit, runID: runID, logger: logger}
}

func (m *stateMachine) current() RunState {
	return m.state
}

// transition moves the machine to the requested state. A disallowed
// transition is an engine bug: the state is left unchanged and an
// unrecoverable error is returned for the run loop to surface as a
// degraded result rather than a panic.
func (m *stateMachine) transition(to RunState) error {
	if !isAllowedTransition(m.state, to) {
		return fmt.Errorf("%w: disallowed transition %s -> %s", core.ErrUnrecoverable, m.state, to)
	}
	m.logger.Debug("Run state transition", map[string]interface{}{
		"operation": "state_transition",
		"run_id":    m.runID,
		"from":      string(m.state),
		"to":        string(to),
	})
	m.state = to
	return nil
}
