package orchestration

import (
	"time"

	"github.com/walvekarn/agentic-compliance-agent-sub001/core"
)

// traceRecorder builds the append-only execution trace of a run. Every
// attempt is recorded; retries mark their predecessor Revised and plan
// revisions mark the whole prior trace Superseded, so the full history
// stays auditable while active() yields the surviving view.
type traceRecorder struct {
	trace *core.ExecutionTrace
}

func newTraceRecorder(runID string, plan []core.Step) *traceRecorder {
	return &traceRecorder{
		trace: &core.ExecutionTrace{
			RunID:       runID,
			InitialPlan: append([]core.Step(nil), plan...),
			Records:     []core.TraceRecord{},
			StartedAt:   time.Now().UTC(),
		},
	}
}

// record appends one attempt and returns its index so a later retry can
// mark it revised.
func (r *traceRecorder) record(step core.Step, result *core.StepResult, reflection *core.Reflection) int {
	r.trace.Records = append(r.trace.Records, core.TraceRecord{
		Step:       step,
		Result:     result,
		Reflection: reflection,
	})
	return len(r.trace.Records) - 1
}

// markRevised flags the record at index as replaced by a same-step
// retry.
func (r *traceRecorder) markRevised(index int) {
	if index < 0 || index >= len(r.trace.Records) {
		return
	}
	r.trace.Records[index].Revised = true
}

// supersedeAll flags every record so far as belonging to the
// pre-revision plan.
func (r *traceRecorder) supersedeAll() {
	for i := range r.trace.Records {
		r.trace.Records[i].Superseded = true
	}
}

func (r *traceRecorder) setInitialPlan(plan []core.Step) {
	r.trace.InitialPlan = append([]core.Step(nil), plan...)
}

func (r *traceRecorder) setRevisedPlan(plan []core.Step) {
	r.trace.RevisedPlan = append([]core.Step(nil), plan...)
}

// active returns the records that still represent the run: not
// superseded by a plan revision and not replaced by a retry.
func (r *traceRecorder) active() []core.TraceRecord {
	var records []core.TraceRecord
	for _, record := range r.trace.Records {
		if record.Superseded || record.Revised {
			continue
		}
		records = append(records, record)
	}
	return records
}

// finalize stamps the outcome onto the trace.
func (r *traceRecorder) finalize(status core.RunStatus, recommendation string, confidence float64) {
	r.trace.Status = status
	r.trace.FinalRecommendation = recommendation
	r.trace.FinalConfidence = confidence
	r.trace.CompletedAt = time.Now().UTC()
}
