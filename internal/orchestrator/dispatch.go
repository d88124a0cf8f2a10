package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ashureev/tutorlabs/internal/metrics"
	"github.com/ashureev/tutorlabs/internal/specialist"
)

// Results holds the outcome of the specialists dispatched in one turn. A
// called specialist whose output is nil failed.
type Results struct {
	called  []specialist.Kind
	outputs map[specialist.Kind]specialist.Output
}

func newResults() *Results {
	return &Results{outputs: make(map[specialist.Kind]specialist.Output)}
}

func (r *Results) set(k specialist.Kind, out specialist.Output) {
	r.called = append(r.called, k)
	if out != nil {
		r.outputs[k] = out
	}
}

// Called returns the names of every dispatched specialist, in order.
func (r *Results) Called() []string {
	out := make([]string, len(r.called))
	for i, k := range r.called {
		out[i] = k.String()
	}
	return out
}

// Get returns the output of k, or nil when it failed or was not called.
func (r *Results) Get(k specialist.Kind) specialist.Output {
	return r.outputs[k]
}

// Empty reports whether no specialist produced output.
func (r *Results) Empty() bool { return len(r.outputs) == 0 }

// Evaluator returns the evaluator output, if any.
func (r *Results) Evaluator() *specialist.EvaluatorOutput {
	out, _ := r.outputs[specialist.Evaluator].(*specialist.EvaluatorOutput)
	return out
}

// Explainer returns the explainer output, if any.
func (r *Results) Explainer() *specialist.ExplainerOutput {
	out, _ := r.outputs[specialist.Explainer].(*specialist.ExplainerOutput)
	return out
}

// Assessor returns the assessor output, if any.
func (r *Results) Assessor() *specialist.AssessorOutput {
	out, _ := r.outputs[specialist.Assessor].(*specialist.AssessorOutput)
	return out
}

// TopicSteering returns the topic steering output, if any.
func (r *Results) TopicSteering() *specialist.TopicSteeringOutput {
	out, _ := r.outputs[specialist.TopicSteering].(*specialist.TopicSteeringOutput)
	return out
}

// PlanAdapter returns the plan adapter output, if any.
func (r *Results) PlanAdapter() *specialist.PlanAdapterOutput {
	out, _ := r.outputs[specialist.PlanAdapter].(*specialist.PlanAdapterOutput)
	return out
}

// Dispatch runs the specialists of d against clones of base. Failures
// never escape: a failed specialist simply has no output.
func (o *Orchestrator) Dispatch(ctx context.Context, base *specialist.Context, d Decision) *Results {
	contexts := make([]*specialist.Context, len(d.Specialists))
	for i, k := range d.Specialists {
		in := base.Clone()
		if req, ok := d.Requirements[k]; ok {
			in.Hints.Requirements = req
		}
		contexts[i] = in
	}

	if d.Strategy == StrategyParallel {
		return o.runParallel(ctx, d.Specialists, contexts)
	}
	return o.runSequential(ctx, d.Specialists, contexts)
}

func (o *Orchestrator) runParallel(ctx context.Context, kinds []specialist.Kind, contexts []*specialist.Context) *Results {
	outputs := make([]specialist.Output, len(kinds))
	var wg sync.WaitGroup
	for i, k := range kinds {
		wg.Add(1)
		go func(i int, k specialist.Kind) {
			defer wg.Done()
			outputs[i], _ = o.invoke(ctx, k, contexts[i])
		}(i, k)
	}
	wg.Wait()

	res := newResults()
	for i, k := range kinds {
		res.set(k, outputs[i])
	}
	return res
}

func (o *Orchestrator) runSequential(ctx context.Context, kinds []specialist.Kind, contexts []*specialist.Context) *Results {
	res := newResults()
	for i, k := range kinds {
		in := contexts[i]
		if k == specialist.Explainer {
			if ev := res.Evaluator(); ev != nil && !ev.IsCorrect {
				in.Hints.IsClarification = true
				in.Hints.MasteryLevel = string(ev.MasterySignal)
			}
		}
		out, _ := o.invoke(ctx, k, in)
		res.set(k, out)
	}
	return res
}

// invoke runs one specialist, recovering panics and recording the call.
func (o *Orchestrator) invoke(ctx context.Context, k specialist.Kind, in *specialist.Context) (out specialist.Output, err error) {
	start := time.Now()
	var prompt string
	defer func() {
		if r := recover(); r != nil {
			out = nil
			err = &specialist.ExecutionError{Agent: k, Err: fmt.Errorf("panic: %v", r)}
		}
		o.observe(in, k, prompt, out, err, time.Since(start))
	}()

	agent := o.specialists.Get(k)
	if agent == nil {
		return nil, &specialist.ExecutionError{Agent: k, Err: errors.New("no specialist registered")}
	}
	out, prompt, err = agent.Execute(ctx, in)
	if err != nil {
		return nil, err
	}
	if out == nil || out.Kind() != k {
		return nil, &specialist.OutputError{Agent: k, Err: fmt.Errorf("unexpected output %T", out)}
	}
	return out, nil
}

// observe logs, records and counts one specialist invocation.
func (o *Orchestrator) observe(in *specialist.Context, k specialist.Kind, prompt string, out specialist.Output, err error, d time.Duration) {
	entry := AgentLogEntry{
		SessionID:    in.SessionID,
		TurnID:       in.TurnID,
		Agent:        k.String(),
		InputSummary: inputSummary(k, in),
		DurationMS:   d.Milliseconds(),
		Prompt:       prompt,
		Model:        o.model,
	}

	var te *specialist.TimeoutError
	switch {
	case err == nil:
		entry.Event = EventCompleted
		entry.Output = out.Summary()
		entry.Reasoning = out.Reasoning()
		o.metrics.ObserveSpecialist(k.String(), metrics.OutcomeSuccess, d)
	case errors.As(err, &te):
		entry.Event = EventTimeout
		entry.Metadata = map[string]any{"error": err.Error()}
		o.metrics.ObserveSpecialist(k.String(), metrics.OutcomeTimeout, d)
		o.logger.Warn("Specialist timed out", "agent", k.String(), "turn_id", in.TurnID, "duration_ms", d.Milliseconds())
	default:
		entry.Event = EventFailed
		entry.Metadata = map[string]any{"error": err.Error()}
		o.metrics.ObserveSpecialist(k.String(), metrics.OutcomeFailed, d)
		o.logger.Warn("Specialist failed", "agent", k.String(), "turn_id", in.TurnID, "error", err)
	}
	o.agentLog.Record(entry)
}

func inputSummary(k specialist.Kind, in *specialist.Context) string {
	if k == specialist.Safety {
		return "Check: " + in.StudentMessage
	}
	concept := in.CurrentConcept
	if concept == "" {
		concept = "lesson"
	}
	return "Context: " + concept
}
