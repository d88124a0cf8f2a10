package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/ashureev/tutorlabs/internal/domain"
	"github.com/ashureev/tutorlabs/internal/llm"
	"github.com/ashureev/tutorlabs/internal/prompt"
	"github.com/ashureev/tutorlabs/internal/specialist"
)

// Intent is the classified purpose of a student message.
type Intent string

// Intents. IntentError is never produced by classification; it only marks
// failed turns.
const (
	IntentAnswer       Intent = "answer"
	IntentQuestion     Intent = "question"
	IntentConfusion    Intent = "confusion"
	IntentOffTopic     Intent = "off_topic"
	IntentUnsafe       Intent = "unsafe"
	IntentContinuation Intent = "continuation"
	IntentError        Intent = "error"
)

var classifiableIntents = []string{
	string(IntentAnswer), string(IntentQuestion), string(IntentConfusion),
	string(IntentOffTopic), string(IntentUnsafe), string(IntentContinuation),
}

// Strategy is how the dispatcher runs the selected specialists.
type Strategy string

// Execution strategies. The model may also answer "conditional", which
// runs sequentially.
const (
	StrategySequential Strategy = "sequential"
	StrategyParallel   Strategy = "parallel"
)

var decisionStrategies = []string{string(StrategySequential), string(StrategyParallel), "conditional"}

// Decision is the per-turn plan: what the student meant, which
// specialists to call, how, and with what guidance.
type Decision struct {
	Intent          Intent
	Confidence      float64
	Reasoning       string
	Specialists     []specialist.Kind
	Strategy        Strategy
	Requirements    map[specialist.Kind]specialist.Requirements
	OverallStrategy string
	ExpectedOutcome string
	// Fallback is set when the decision came from the rule table.
	Fallback bool
}

// SpecialistNames returns the wire names of the selected specialists.
func (d Decision) SpecialistNames() []string {
	out := make([]string, len(d.Specialists))
	for i, k := range d.Specialists {
		out[i] = k.String()
	}
	return out
}

// fallbackRoutes is the intent to specialist table of the rule based path.
var fallbackRoutes = map[Intent]specialist.Kind{
	IntentAnswer:       specialist.Evaluator,
	IntentQuestion:     specialist.Explainer,
	IntentConfusion:    specialist.Explainer,
	IntentOffTopic:     specialist.TopicSteering,
	IntentContinuation: specialist.Assessor,
}

// FallbackDecision builds the minimal decision used when the primary
// decision call fails. It carries no requirements and runs sequentially.
func FallbackDecision(intent Intent) Decision {
	kind, ok := fallbackRoutes[intent]
	if !ok {
		kind = specialist.Explainer
	}
	return Decision{
		Intent:          intent,
		Confidence:      0.8,
		Reasoning:       "Fallback decision based on intent classification",
		Specialists:     []specialist.Kind{kind},
		Strategy:        StrategySequential,
		Requirements:    map[specialist.Kind]specialist.Requirements{},
		OverallStrategy: fmt.Sprintf("Respond to %s with %s", intent, kind),
		ExpectedOutcome: "understanding_gained",
		Fallback:        true,
	}
}

// decisionWire is the structured output of the decision call.
type decisionWire struct {
	Intent                    string                                `json:"intent"`
	IntentConfidence          float64                               `json:"intent_confidence"`
	MiniPlanReasoning         string                                `json:"mini_plan_reasoning"`
	SpecialistsToCall         []string                              `json:"specialists_to_call"`
	ExecutionStrategy         string                                `json:"execution_strategy"`
	ExplainerRequirements     *specialist.ExplainerRequirements     `json:"explainer_requirements"`
	EvaluatorRequirements     *specialist.EvaluatorRequirements     `json:"evaluator_requirements"`
	AssessorRequirements      *specialist.AssessorRequirements      `json:"assessor_requirements"`
	TopicSteeringRequirements *specialist.TopicSteeringRequirements `json:"topic_steering_requirements"`
	PlanAdapterRequirements   *specialist.PlanAdapterRequirements   `json:"plan_adapter_requirements"`
	OverallStrategy           string                                `json:"overall_strategy"`
	ExpectedOutcome           string                                `json:"expected_outcome"`
}

// intentWire is the structured output of the intent classifier.
type intentWire struct {
	Intent     string  `json:"intent"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
}

type schemaPair struct {
	schema   *jsonschema.Schema
	resolved *jsonschema.Resolved
}

func decisionSchema() (schemaPair, error) {
	s, err := specialist.StrictSchema[decisionWire]()
	if err != nil {
		return schemaPair{}, err
	}
	enums := []struct {
		values []string
		path   []string
	}{
		{classifiableIntents, []string{"intent"}},
		{decisionStrategies, []string{"execution_strategy"}},
		{specialist.TriggerReasons, []string{"explainer_requirements", "trigger_reason"}},
		{specialist.ExplanationApproaches, []string{"explainer_requirements", "recommended_approach"}},
		{specialist.LengthGuidances, []string{"explainer_requirements", "length_guidance"}},
		{specialist.ToneGuidances, []string{"explainer_requirements", "tone_guidance"}},
		{specialist.EvaluationFocuses, []string{"evaluator_requirements", "evaluation_focus"}},
		{specialist.ExpectedMasteryLevels, []string{"evaluator_requirements", "expected_mastery_level"}},
		{specialist.QuestionPurposes, []string{"assessor_requirements", "question_purpose"}},
		{specialist.DifficultyLevels, []string{"assessor_requirements", "difficulty_level"}},
		{specialist.ExpectedTimes, []string{"assessor_requirements", "expected_time_to_answer"}},
		{specialist.OffTopicSeverities, []string{"topic_steering_requirements", "off_topic_severity"}},
		{specialist.FirmnessLevels, []string{"topic_steering_requirements", "firmness_level"}},
		{specialist.AdaptationTriggers, []string{"plan_adapter_requirements", "adaptation_trigger"}},
		{specialist.Urgencies, []string{"plan_adapter_requirements", "urgency"}},
	}
	for _, e := range enums {
		if err := specialist.SetEnum(s, e.values, e.path...); err != nil {
			return schemaPair{}, err
		}
	}
	if err := specialist.SetRange(s, 0, 1, "intent_confidence"); err != nil {
		return schemaPair{}, err
	}
	if items := s.Properties["specialists_to_call"].Items; items != nil {
		names := specialist.DispatchableNames()
		items.Enum = make([]any, len(names))
		for i, n := range names {
			items.Enum[i] = n
		}
	}
	return resolve(s)
}

func intentSchema() (schemaPair, error) {
	s, err := specialist.StrictSchema[intentWire]()
	if err != nil {
		return schemaPair{}, err
	}
	if err := specialist.SetEnum(s, classifiableIntents, "intent"); err != nil {
		return schemaPair{}, err
	}
	if err := specialist.SetRange(s, 0, 1, "confidence"); err != nil {
		return schemaPair{}, err
	}
	return resolve(s)
}

func resolve(s *jsonschema.Schema) (schemaPair, error) {
	r, err := s.Resolve(nil)
	if err != nil {
		return schemaPair{}, fmt.Errorf("resolve schema: %w", err)
	}
	return schemaPair{schema: s, resolved: r}, nil
}

// toDecision converts and sanitizes the model's answer. Unknown or
// repeated specialists are dropped and requirements for specialists that
// were not selected are ignored.
func (w *decisionWire) toDecision() (Decision, error) {
	d := Decision{
		Intent:          Intent(w.Intent),
		Confidence:      w.IntentConfidence,
		Reasoning:       w.MiniPlanReasoning,
		Strategy:        StrategySequential,
		Requirements:    make(map[specialist.Kind]specialist.Requirements),
		OverallStrategy: w.OverallStrategy,
		ExpectedOutcome: w.ExpectedOutcome,
	}
	if !slices.Contains(classifiableIntents, w.Intent) {
		return Decision{}, fmt.Errorf("unknown intent %q", w.Intent)
	}
	for _, name := range w.SpecialistsToCall {
		k, ok := specialist.ParseKind(name)
		if !ok || !k.Dispatchable() || slices.Contains(d.Specialists, k) {
			continue
		}
		d.Specialists = append(d.Specialists, k)
	}
	if len(d.Specialists) == 0 {
		return Decision{}, errors.New("decision selected no specialists")
	}
	if Strategy(w.ExecutionStrategy) == StrategyParallel {
		d.Strategy = StrategyParallel
	}

	candidates := []specialist.Requirements{
		w.ExplainerRequirements,
		w.EvaluatorRequirements,
		w.AssessorRequirements,
		w.TopicSteeringRequirements,
		w.PlanAdapterRequirements,
	}
	for _, req := range candidates {
		if isNilRequirements(req) || !slices.Contains(d.Specialists, req.For()) {
			continue
		}
		d.Requirements[req.For()] = req
	}
	return d, nil
}

// isNilRequirements catches typed nil pointers stored in the interface.
func isNilRequirements(r specialist.Requirements) bool {
	switch v := r.(type) {
	case nil:
		return true
	case *specialist.ExplainerRequirements:
		return v == nil
	case *specialist.EvaluatorRequirements:
		return v == nil
	case *specialist.AssessorRequirements:
		return v == nil
	case *specialist.TopicSteeringRequirements:
		return v == nil
	case *specialist.PlanAdapterRequirements:
		return v == nil
	}
	return false
}

// enforceDependencies fixes plans the dispatcher cannot honour. An
// explainer that follows an evaluator needs its verdict, so the pair runs
// sequentially with the evaluator first. It reports whether d changed.
func enforceDependencies(d *Decision) bool {
	ev := slices.Index(d.Specialists, specialist.Evaluator)
	ex := slices.Index(d.Specialists, specialist.Explainer)
	if ev < 0 || ex < 0 {
		return false
	}
	changed := false
	if d.Strategy != StrategySequential {
		d.Strategy = StrategySequential
		changed = true
	}
	if ex < ev {
		d.Specialists[ex], d.Specialists[ev] = d.Specialists[ev], d.Specialists[ex]
		changed = true
	}
	return changed
}

// decisionEffort raises reasoning effort when the session shows signs of
// difficulty.
func decisionEffort(s *domain.Session) llm.ReasoningEffort {
	switch {
	case len(s.Misconceptions) > 2,
		s.Summary.ProgressTrend == domain.TrendStruggling,
		len(s.Summary.StuckPoints) > 2,
		s.TurnCount > 15:
		return llm.EffortMedium
	default:
		return llm.EffortLow
	}
}

// generateDecision is the primary decision path: one structured call.
func (o *Orchestrator) generateDecision(ctx context.Context, s *domain.Session, in *specialist.Context) (Decision, string, error) {
	var lastQuestion *domain.Question
	if s.AwaitingResponse {
		lastQuestion = s.CurrentQuestion
	}
	text, err := prompt.Render(prompt.Decision, prompt.DecisionData{
		StudentMessage:     in.StudentMessage,
		TopicName:          in.Hints.TopicName,
		CurrentConcept:     in.CurrentConcept,
		Step:               s.CurrentStepInfo(),
		AwaitingResponse:   s.AwaitingResponse,
		LastQuestion:       lastQuestion,
		SessionNarrative:   in.Hints.SessionNarrative,
		RecentConversation: s.RecentMessages(6),
		Mastery:            in.Hints.Mastery,
		Misconceptions:     in.Hints.Misconceptions,
		ProgressTrend:      string(s.Summary.ProgressTrend),
		StuckPoints:        s.Summary.StuckPoints,
		ExamplesUsed:       s.Summary.ExamplesUsed,
		AnalogiesUsed:      s.Summary.AnalogiesUsed,
		Grade:              in.StudentGrade,
		LanguageLevel:      in.LanguageLevel,
		PreferredExamples:  in.Hints.PreferredExamples,
		Capabilities:       specialist.Capabilities(),
	})
	if err != nil {
		return Decision{}, "", err
	}

	res, err := o.client.Complete(ctx, llm.Request{
		Prompt:     text,
		Effort:     decisionEffort(s),
		Schema:     o.decisionSchema.schema,
		SchemaName: "OrchestratorDecision",
		Caller:     "orchestrator:decision",
		TurnID:     in.TurnID,
	})
	if err != nil {
		return Decision{}, text, err
	}
	var wire decisionWire
	if err := specialist.DecodeStrict(res.Parsed, o.decisionSchema.resolved, &wire); err != nil {
		return Decision{}, text, err
	}
	d, err := wire.toDecision()
	return d, text, err
}

// classifyIntent is the cheap single-field call of the fallback path.
func (o *Orchestrator) classifyIntent(ctx context.Context, s *domain.Session, in *specialist.Context) (Intent, error) {
	text, err := prompt.Render(prompt.IntentClassifier, prompt.IntentData{
		TopicName:           in.Hints.TopicName,
		CurrentConcept:      in.CurrentConcept,
		StepType:            string(in.Hints.StepType),
		AwaitingResponse:    s.AwaitingResponse,
		ConversationSummary: in.Hints.SessionNarrative,
		StudentMessage:      in.StudentMessage,
	})
	if err != nil {
		return "", err
	}
	res, err := o.client.Complete(ctx, llm.Request{
		Prompt:     text,
		Effort:     llm.EffortNone,
		Schema:     o.intentSchema.schema,
		SchemaName: "IntentClassification",
		Caller:     "orchestrator:intent",
		TurnID:     in.TurnID,
	})
	if err != nil {
		return "", fmt.Errorf("classify intent: %w", err)
	}
	var wire intentWire
	if err := specialist.DecodeStrict(res.Parsed, o.intentSchema.resolved, &wire); err != nil {
		return "", fmt.Errorf("classify intent: %w", err)
	}
	return Intent(strings.TrimSpace(wire.Intent)), nil
}
