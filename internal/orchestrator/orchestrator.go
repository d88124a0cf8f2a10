// Package orchestrator runs the turn pipeline of the tutor: safety gate,
// decision, specialist dispatch, state update, reply composition and turn
// summary. It is the only writer of session state.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"

	"github.com/ashureev/tutorlabs/internal/domain"
	"github.com/ashureev/tutorlabs/internal/llm"
	"github.com/ashureev/tutorlabs/internal/metrics"
	"github.com/ashureev/tutorlabs/internal/prompt"
	"github.com/ashureev/tutorlabs/internal/specialist"
)

// Fixed replies.
const (
	ApologyResponse  = "I apologize, but I had a moment of confusion. Could you please repeat that?"
	BlockedResponse  = "Let's keep our conversation focused on learning. How can I help you with the lesson?"
	DefaultWelcome   = "Welcome! Let's start learning together."
	orchestratorName = "orchestrator"
)

// SessionSaver persists a session at the end of a turn.
type SessionSaver interface {
	Save(ctx context.Context, s *domain.Session) error
}

// TurnResult is what a caller gets back for one student message.
type TurnResult struct {
	Response          string   `json:"response"`
	Intent            string   `json:"intent"`
	SpecialistsCalled []string `json:"specialists_called"`
	StateChanged      bool     `json:"state_changed"`
}

// Options configures an Orchestrator.
type Options struct {
	Specialists *specialist.Registry
	Client      llm.Completer
	Sessions    SessionSaver
	AgentLog    *AgentLog
	Metrics     *metrics.Metrics
	Logger      *slog.Logger
	// Model labels agent log entries.
	Model string
	// EnableParallel allows parallel dispatch. When false every decision
	// runs sequentially.
	EnableParallel bool
}

// Orchestrator processes turns. It holds no per-session state; callers
// must serialize turns of the same session.
type Orchestrator struct {
	specialists    *specialist.Registry
	client         llm.Completer
	sessions       SessionSaver
	agentLog       *AgentLog
	metrics        *metrics.Metrics
	logger         *slog.Logger
	model          string
	enableParallel bool
	decisionSchema schemaPair
	intentSchema   schemaPair
}

// New validates opts and builds an Orchestrator.
func New(opts Options) (*Orchestrator, error) {
	if opts.Specialists == nil {
		return nil, errors.New("orchestrator: nil specialist registry")
	}
	for _, k := range append([]specialist.Kind{specialist.Safety}, specialist.DispatchableKinds()...) {
		if opts.Specialists.Get(k) == nil {
			return nil, fmt.Errorf("orchestrator: no %s specialist", k)
		}
	}
	if opts.Client == nil {
		return nil, errors.New("orchestrator: nil completion client")
	}
	if opts.Sessions == nil {
		return nil, errors.New("orchestrator: nil session store")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.AgentLog == nil {
		opts.AgentLog = NewAgentLog(DefaultAgentLogSize)
	}
	ds, err := decisionSchema()
	if err != nil {
		return nil, fmt.Errorf("orchestrator: decision schema: %w", err)
	}
	is, err := intentSchema()
	if err != nil {
		return nil, fmt.Errorf("orchestrator: intent schema: %w", err)
	}
	return &Orchestrator{
		specialists:    opts.Specialists,
		client:         opts.Client,
		sessions:       opts.Sessions,
		agentLog:       opts.AgentLog,
		metrics:        opts.Metrics,
		logger:         opts.Logger,
		model:          opts.Model,
		enableParallel: opts.EnableParallel,
		decisionSchema: ds,
		intentSchema:   is,
	}, nil
}

// AgentLog returns the agent execution log.
func (o *Orchestrator) AgentLog() *AgentLog { return o.agentLog }

// ProcessTurn runs one student message through the pipeline. It never
// fails: any error becomes the apology reply and session is left exactly
// as it was. On success session holds the new state, already saved.
func (o *Orchestrator) ProcessTurn(ctx context.Context, session *domain.Session, message string) (result TurnResult) {
	start := time.Now()
	turnID := fmt.Sprintf("turn_%d", session.TurnCount+1)
	logger := o.logger.With("session_id", session.SessionID, "turn_id", turnID)

	o.agentLog.Record(AgentLogEntry{
		SessionID:    session.SessionID,
		TurnID:       turnID,
		Agent:        orchestratorName,
		Event:        EventTurnStarted,
		InputSummary: "Student: " + message,
		Metadata: map[string]any{
			"current_step": session.CurrentStep,
			"turn_count":   session.TurnCount,
		},
	})

	defer func() {
		if r := recover(); r != nil {
			logger.Error("Turn panicked", "panic", r, "stack", string(debug.Stack()))
			result = o.failTurn(logger, session.SessionID, turnID, start, fmt.Errorf("panic: %v", r))
		}
		o.metrics.ObserveTurn(result.Intent, time.Since(start))
	}()

	work := session.Clone()
	res, err := o.runTurn(ctx, work, message, turnID, logger)
	if err != nil {
		return o.failTurn(logger, session.SessionID, turnID, start, err)
	}
	*session = *work

	logger.Info("Turn completed",
		"intent", res.Intent,
		"specialists", res.SpecialistsCalled,
		"state_changed", res.StateChanged,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	o.agentLog.Record(AgentLogEntry{
		SessionID:  session.SessionID,
		TurnID:     turnID,
		Agent:      orchestratorName,
		Event:      EventTurnCompleted,
		Output:     map[string]any{"specialists_called": res.SpecialistsCalled},
		DurationMS: time.Since(start).Milliseconds(),
		Metadata:   map[string]any{"intent": res.Intent, "state_changed": res.StateChanged},
	})
	return res
}

func (o *Orchestrator) runTurn(ctx context.Context, s *domain.Session, message, turnID string, logger *slog.Logger) (TurnResult, error) {
	s.TurnCount++
	s.AddMessage(domain.RoleStudent, message)
	base := buildContext(s, message, turnID)

	verdict, err := o.checkSafety(ctx, base)
	if err != nil {
		return TurnResult{}, fmt.Errorf("safety check: %w", err)
	}
	if !verdict.IsSafe {
		reply := blockTurn(s, verdict)
		if err := o.sessions.Save(ctx, s); err != nil {
			return TurnResult{}, fmt.Errorf("save session: %w", err)
		}
		logger.Warn("Message blocked by safety check", "violation", verdict.Violation(), "should_warn", verdict.ShouldWarn)
		o.agentLog.Record(AgentLogEntry{
			SessionID: s.SessionID,
			TurnID:    turnID,
			Agent:     orchestratorName,
			Event:     EventBlocked,
			Output:    verdict.Summary(),
			Reasoning: verdict.Reasoning(),
		})
		return TurnResult{
			Response:          reply,
			Intent:            string(IntentUnsafe),
			SpecialistsCalled: []string{specialist.Safety.String()},
			StateChanged:      true,
		}, nil
	}

	decision, err := o.decide(ctx, s, base, logger)
	if err != nil {
		return TurnResult{}, err
	}

	results := o.Dispatch(ctx, base, decision)
	changed := ApplyUpdates(s, results)

	reply := o.compose(ctx, s, base, decision.Intent, results, logger)
	s.AddMessage(domain.RoleTeacher, reply)

	facts := turnFacts(results)
	summary, err := o.summarizeTurn(ctx, s.TurnCount, base, decision.Intent, facts, reply)
	if err != nil {
		logger.Warn("Turn summary failed, using fallback", "error", err)
		o.metrics.SummaryFallback()
		summary = FallbackSummary(decision.Intent, base.CurrentConcept, results.Evaluator())
	}
	updateSessionSummary(s, base.CurrentConcept, summary, results)

	if err := o.sessions.Save(ctx, s); err != nil {
		return TurnResult{}, fmt.Errorf("save session: %w", err)
	}
	return TurnResult{
		Response:          reply,
		Intent:            string(decision.Intent),
		SpecialistsCalled: results.Called(),
		StateChanged:      changed,
	}, nil
}

// checkSafety runs the mandatory safety specialist. Its failure is a turn
// failure, never a verdict.
func (o *Orchestrator) checkSafety(ctx context.Context, base *specialist.Context) (*specialist.SafetyOutput, error) {
	out, err := o.invoke(ctx, specialist.Safety, base.Clone())
	if err != nil {
		return nil, err
	}
	verdict, ok := out.(*specialist.SafetyOutput)
	if !ok {
		return nil, fmt.Errorf("unexpected safety output %T", out)
	}
	return verdict, nil
}

// blockTurn records a safety violation and returns the reply.
func blockTurn(s *domain.Session, verdict *specialist.SafetyOutput) string {
	s.SafetyFlags = append(s.SafetyFlags, verdict.Violation())
	if verdict.ShouldWarn {
		s.WarningCount++
	}
	if g := verdict.Guidance; g != nil && strings.TrimSpace(*g) != "" {
		return *g
	}
	return BlockedResponse
}

// decide produces the turn decision, falling back to intent
// classification and the rule table when the primary call fails.
func (o *Orchestrator) decide(ctx context.Context, s *domain.Session, base *specialist.Context, logger *slog.Logger) (Decision, error) {
	start := time.Now()
	d, rendered, err := o.generateDecision(ctx, s, base)
	event := EventDecisionMade
	if err != nil {
		logger.Warn("Decision generation failed, using fallback", "error", err)
		o.metrics.DecisionFallback()
		intent, cerr := o.classifyIntent(ctx, s, base)
		if cerr != nil {
			return Decision{}, cerr
		}
		d = FallbackDecision(intent)
		event = EventDecisionFallback
	}
	if enforceDependencies(&d) {
		logger.Warn("Decision corrected to run evaluator then explainer sequentially",
			"specialists", d.SpecialistNames(),
		)
	}
	if !o.enableParallel {
		d.Strategy = StrategySequential
	}

	logger.Info("Orchestrator decision",
		"intent", string(d.Intent),
		"confidence", d.Confidence,
		"specialists", d.SpecialistNames(),
		"strategy", string(d.Strategy),
		"fallback", d.Fallback,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	o.agentLog.Record(AgentLogEntry{
		SessionID: base.SessionID,
		TurnID:    base.TurnID,
		Agent:     orchestratorName,
		Event:     event,
		Output: map[string]any{
			"intent":             string(d.Intent),
			"confidence":         d.Confidence,
			"specialists":        d.SpecialistNames(),
			"execution_strategy": string(d.Strategy),
		},
		Reasoning:  d.Reasoning,
		DurationMS: time.Since(start).Milliseconds(),
		Prompt:     rendered,
		Model:      o.model,
		Metadata: map[string]any{
			"overall_strategy": d.OverallStrategy,
			"expected_outcome": d.ExpectedOutcome,
			"has_requirements": len(d.Requirements) > 0,
		},
	})
	return d, nil
}

// compose returns the final reply, falling back to the templated one.
func (o *Orchestrator) compose(ctx context.Context, s *domain.Session, base *specialist.Context, intent Intent, res *Results, logger *slog.Logger) string {
	start := time.Now()
	reply, rendered, err := o.composeReply(ctx, s, base, intent, res)
	if err != nil {
		if !res.Empty() {
			logger.Warn("Response composition failed, using fallback", "error", err)
		}
		o.metrics.ComposerFallback()
		reply = FallbackResponse(s, intent)
	}
	o.agentLog.Record(AgentLogEntry{
		SessionID:  base.SessionID,
		TurnID:     base.TurnID,
		Agent:      orchestratorName,
		Event:      EventResponseComposed,
		Output:     map[string]any{"response": truncate(reply, 200)},
		Reasoning:  fmt.Sprintf("Composed from %d specialist outputs", len(res.outputs)),
		DurationMS: time.Since(start).Milliseconds(),
		Prompt:     rendered,
		Model:      o.model,
		Metadata:   map[string]any{"response_length": len(reply), "fallback": err != nil},
	})
	return reply
}

func (o *Orchestrator) failTurn(logger *slog.Logger, sessionID, turnID string, start time.Time, err error) TurnResult {
	logger.Error("Turn failed", "error", err, "duration_ms", time.Since(start).Milliseconds())
	o.agentLog.Record(AgentLogEntry{
		SessionID:  sessionID,
		TurnID:     turnID,
		Agent:      orchestratorName,
		Event:      EventTurnFailed,
		DurationMS: time.Since(start).Milliseconds(),
		Metadata:   map[string]any{"error": err.Error()},
	})
	return TurnResult{
		Response:          ApologyResponse,
		Intent:            string(IntentError),
		SpecialistsCalled: []string{},
		StateChanged:      false,
	}
}

// GenerateWelcomeMessage greets the student at the start of a session. It
// never fails.
func (o *Orchestrator) GenerateWelcomeMessage(ctx context.Context, s *domain.Session) string {
	if s.Topic == nil {
		return DefaultWelcome
	}
	text, err := prompt.Render(prompt.Welcome, prompt.WelcomeData{
		Grade:             s.Student.Grade,
		TopicName:         s.Topic.TopicName,
		Subject:           s.Topic.Subject,
		Objectives:        s.Topic.Guidelines.LearningObjectives,
		LanguageLevel:     string(s.Student.LanguageLevel),
		PreferredExamples: s.Student.PreferredExamples,
	})
	if err != nil {
		o.logger.Warn("Welcome prompt failed", "session_id", s.SessionID, "error", err)
		return DefaultWelcome
	}
	res, err := o.client.Complete(ctx, llm.Request{
		Prompt: text,
		Effort: llm.EffortNone,
		Caller: "orchestrator:welcome",
	})
	if err != nil {
		o.logger.Warn("Welcome message failed", "session_id", s.SessionID, "error", err)
		return DefaultWelcome
	}
	if msg := strings.TrimSpace(res.Text); msg != "" {
		return msg
	}
	return DefaultWelcome
}
