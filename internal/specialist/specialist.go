// Package specialist implements the single-purpose reasoning agents of
// the tutor. Each one renders a prompt from a Context, asks the model
// for JSON matching its output schema, validates the answer and returns
// a typed Output.
package specialist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/ashureev/tutorlabs/internal/llm"
)

// DefaultTimeout bounds a single specialist call.
const DefaultTimeout = 30 * time.Second

// Specialist is the uniform contract of all agents. Execute also returns
// the prompt it rendered for this call, empty if none was built, so the
// caller can log it next to the result.
type Specialist interface {
	Kind() Kind
	Execute(ctx context.Context, in *Context) (out Output, prompt string, err error)
}

// Options are the shared dependencies of the built-in specialists.
type Options struct {
	Client  llm.Completer
	Timeout time.Duration
	Logger  *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// definition is what differs between specialists.
type definition[O any] struct {
	kind       Kind
	schemaName string
	build      func(in *Context) (string, error)
	// shape adds enum and range constraints to the inferred schema.
	shape func(s *jsonschema.Schema) error
}

// agent runs a definition against the completion client.
type agent[O any, P interface {
	*O
	Output
}] struct {
	def      definition[O]
	client   llm.Completer
	timeout  time.Duration
	effort   llm.ReasoningEffort
	schema   *jsonschema.Schema
	resolved *jsonschema.Resolved
	logger   *slog.Logger
}

func newAgent[O any, P interface {
	*O
	Output
}](def definition[O], opts Options) (Specialist, error) {
	opts = opts.withDefaults()
	if opts.Client == nil {
		return nil, fmt.Errorf("specialist %s: nil completion client", def.kind)
	}
	schema, err := StrictSchema[O]()
	if err != nil {
		return nil, fmt.Errorf("specialist %s: %w", def.kind, err)
	}
	if def.shape != nil {
		if err := def.shape(schema); err != nil {
			return nil, fmt.Errorf("specialist %s: %w", def.kind, err)
		}
	}
	resolved, err := schema.Resolve(nil)
	if err != nil {
		return nil, fmt.Errorf("specialist %s: resolve schema: %w", def.kind, err)
	}
	return &agent[O, P]{
		def:      def,
		client:   opts.Client,
		timeout:  opts.Timeout,
		effort:   DefaultEffort(def.kind),
		schema:   schema,
		resolved: resolved,
		logger:   opts.Logger,
	}, nil
}

func (a *agent[O, P]) Kind() Kind { return a.def.kind }

// Execute renders the prompt, calls the model under the specialist
// timeout and validates the answer.
func (a *agent[O, P]) Execute(ctx context.Context, in *Context) (Output, string, error) {
	start := time.Now()
	kind := a.def.kind
	a.logger.Debug("Agent started", "agent", kind.String(), "turn_id", in.TurnID, "current_step", in.CurrentStep)

	prompt, err := a.def.build(in)
	if err != nil {
		return nil, "", a.failed(in, start, &ExecutionError{Agent: kind, Err: err})
	}

	callCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	res, err := a.client.Complete(callCtx, llm.Request{
		Prompt:     prompt,
		Effort:     a.effort,
		Schema:     a.schema,
		SchemaName: a.def.schemaName,
		Caller:     "agent:" + kind.String(),
		TurnID:     in.TurnID,
	})
	if err != nil {
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) || errors.Is(err, llm.ErrTimeout) {
			a.logger.Warn("Agent timed out",
				"agent", kind.String(),
				"turn_id", in.TurnID,
				"timeout", a.timeout,
				"duration_ms", time.Since(start).Milliseconds(),
			)
			return nil, prompt, &TimeoutError{Agent: kind, Timeout: a.timeout}
		}
		return nil, prompt, a.failed(in, start, &ExecutionError{Agent: kind, Err: err})
	}

	out, err := a.decode(res.Parsed)
	if err != nil {
		return nil, prompt, a.failed(in, start, &OutputError{Agent: kind, Err: err})
	}

	a.logger.Info("Agent completed",
		"agent", kind.String(),
		"turn_id", in.TurnID,
		"duration_ms", time.Since(start).Milliseconds(),
		"summary", out.Summary(),
	)
	return out, prompt, nil
}

func (a *agent[O, P]) decode(raw json.RawMessage) (P, error) {
	out := P(new(O))
	if err := DecodeStrict(raw, a.resolved, out); err != nil {
		var zero P
		return zero, err
	}
	return out, nil
}

func (a *agent[O, P]) failed(in *Context, start time.Time, err error) error {
	a.logger.Warn("Agent failed",
		"agent", a.def.kind.String(),
		"turn_id", in.TurnID,
		"duration_ms", time.Since(start).Milliseconds(),
		"error", err,
	)
	return err
}

// Func adapts a function to the Specialist interface. It is how tests
// and alternative backends plug into the registry.
type Func struct {
	K  Kind
	Fn func(ctx context.Context, in *Context) (Output, error)
}

func (f Func) Kind() Kind { return f.K }

// Execute calls f.Fn. Func builds no prompt.
func (f Func) Execute(ctx context.Context, in *Context) (Output, string, error) {
	out, err := f.Fn(ctx, in)
	return out, "", err
}

// Registry holds exactly one specialist per Kind.
type Registry struct {
	agents [kindCount]Specialist
}

// NewRegistry builds the six model-backed specialists.
func NewRegistry(opts Options) (*Registry, error) {
	builders := [kindCount]func(Options) (Specialist, error){
		Safety:        NewSafety,
		Explainer:     NewExplainer,
		Evaluator:     NewEvaluator,
		Assessor:      NewAssessor,
		TopicSteering: NewTopicSteering,
		PlanAdapter:   NewPlanAdapter,
	}
	r := &Registry{}
	for k, build := range builders {
		s, err := build(opts)
		if err != nil {
			return nil, err
		}
		r.agents[k] = s
	}
	return r, nil
}

// NewRegistryOf builds a registry from explicit specialists. Kinds not
// provided are left empty and Get returns nil for them.
func NewRegistryOf(specs ...Specialist) *Registry {
	r := &Registry{}
	for _, s := range specs {
		r.Set(s)
	}
	return r
}

// Get returns the specialist for k, or nil.
func (r *Registry) Get(k Kind) Specialist {
	if k < 0 || k >= kindCount {
		return nil
	}
	return r.agents[k]
}

// Set installs s under its own kind, replacing any previous one.
func (r *Registry) Set(s Specialist) {
	k := s.Kind()
	if k < 0 || k >= kindCount {
		return
	}
	r.agents[k] = s
}
