package specialist

// Output is the validated result of one specialist call. The six output
// types below are the only implementations.
type Output interface {
	Kind() Kind
	// Summary is a short structured view for the agent execution log.
	Summary() map[string]any
	// Reasoning is the specialist's own free-text rationale, if any.
	Reasoning() string
	isOutput()
}

// SafetyOutput is the verdict of the safety check.
type SafetyOutput struct {
	IsSafe        bool    `json:"is_safe"`
	ViolationType *string `json:"violation_type"`
	Guidance      *string `json:"guidance"`
	ShouldWarn    bool    `json:"should_warn"`
	Rationale     string  `json:"reasoning"`
}

// ExplainerOutput is teaching content.
type ExplainerOutput struct {
	Explanation string   `json:"explanation"`
	Examples    []string `json:"examples"`
	Analogies   []string `json:"analogies"`
	KeyPoints   []string `json:"key_points"`
	Rationale   string   `json:"reasoning"`
}

// MasterySignal is the evaluator's coarse read on understanding.
type MasterySignal string

// Mastery signals.
const (
	SignalStrong           MasterySignal = "strong"
	SignalAdequate         MasterySignal = "adequate"
	SignalNeedsRemediation MasterySignal = "needs_remediation"
)

// EvaluatorOutput grades a student's answer.
type EvaluatorOutput struct {
	IsCorrect         bool          `json:"is_correct"`
	Score             float64       `json:"score"`
	Feedback          string        `json:"feedback"`
	Misconceptions    []string      `json:"misconceptions"`
	MasterySignal     MasterySignal `json:"mastery_signal"`
	ExplanationNeeded bool          `json:"explanation_needed"`
	Rationale         string        `json:"reasoning"`
}

// AssessorOutput is a new check question.
type AssessorOutput struct {
	Question       string   `json:"question"`
	ExpectedAnswer string   `json:"expected_answer"`
	Rubric         string   `json:"rubric"`
	Hints          []string `json:"hints"`
	Rationale      string   `json:"reasoning"`
}

// TopicSteeringOutput redirects an off-topic message.
type TopicSteeringOutput struct {
	BriefResponse   *string `json:"brief_response"`
	RedirectMessage string  `json:"redirect_message"`
	Severity        string  `json:"severity"`
	Rationale       string  `json:"reasoning"`
}

// PlanAdapterOutput recommends study plan changes.
type PlanAdapterOutput struct {
	AdjustedSteps     []int  `json:"adjusted_steps"`
	RemediationNeeded bool   `json:"remediation_needed"`
	SkipSteps         []int  `json:"skip_steps"`
	Rationale         string `json:"rationale"`
	NewPace           string `json:"new_pace"`
	Notes             string `json:"reasoning"`
}

func (*SafetyOutput) Kind() Kind        { return Safety }
func (*ExplainerOutput) Kind() Kind     { return Explainer }
func (*EvaluatorOutput) Kind() Kind     { return Evaluator }
func (*AssessorOutput) Kind() Kind      { return Assessor }
func (*TopicSteeringOutput) Kind() Kind { return TopicSteering }
func (*PlanAdapterOutput) Kind() Kind   { return PlanAdapter }

func (*SafetyOutput) isOutput()        {}
func (*ExplainerOutput) isOutput()     {}
func (*EvaluatorOutput) isOutput()     {}
func (*AssessorOutput) isOutput()      {}
func (*TopicSteeringOutput) isOutput() {}
func (*PlanAdapterOutput) isOutput()   {}

func (o *SafetyOutput) Reasoning() string        { return o.Rationale }
func (o *ExplainerOutput) Reasoning() string     { return o.Rationale }
func (o *EvaluatorOutput) Reasoning() string     { return o.Rationale }
func (o *AssessorOutput) Reasoning() string      { return o.Rationale }
func (o *TopicSteeringOutput) Reasoning() string { return o.Rationale }
func (o *PlanAdapterOutput) Reasoning() string   { return o.Notes }

// Violation returns the violation type, or "unknown" when the model
// flagged the message without naming one.
func (o *SafetyOutput) Violation() string {
	if v := deref(o.ViolationType); v != "" {
		return v
	}
	return "unknown"
}

func (o *SafetyOutput) Summary() map[string]any {
	return map[string]any{
		"is_safe":        o.IsSafe,
		"violation_type": deref(o.ViolationType),
		"should_warn":    o.ShouldWarn,
	}
}

func (o *ExplainerOutput) Summary() map[string]any {
	return map[string]any{
		"type":             "explanation",
		"examples_count":   len(o.Examples),
		"analogies_count":  len(o.Analogies),
		"key_points_count": len(o.KeyPoints),
	}
}

func (o *EvaluatorOutput) Summary() map[string]any {
	return map[string]any{
		"is_correct":           o.IsCorrect,
		"score":                o.Score,
		"mastery_signal":       string(o.MasterySignal),
		"misconceptions_count": len(o.Misconceptions),
	}
}

func (o *AssessorOutput) Summary() map[string]any {
	return map[string]any{
		"question_length": len(o.Question),
		"hints_count":     len(o.Hints),
	}
}

func (o *TopicSteeringOutput) Summary() map[string]any {
	return map[string]any{
		"severity":     o.Severity,
		"acknowledged": deref(o.BriefResponse) != "",
	}
}

func (o *PlanAdapterOutput) Summary() map[string]any {
	return map[string]any{
		"remediation_needed": o.RemediationNeeded,
		"skip_steps":         len(o.SkipSteps),
		"adjusted_steps":     len(o.AdjustedSteps),
		"new_pace":           o.NewPace,
	}
}
