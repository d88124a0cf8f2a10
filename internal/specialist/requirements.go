package specialist

// Requirements is the guidance the decision engine hands to one
// specialist. It is a closed set: only the five types in this file
// implement it.
type Requirements interface {
	For() Kind
	isRequirements()
}

// ExplainerRequirements steers an explanation.
type ExplainerRequirements struct {
	TriggerReason          string   `json:"trigger_reason"`
	TriggerDetails         string   `json:"trigger_details"`
	FocusArea              string   `json:"focus_area"`
	StudentConfusionPoint  *string  `json:"student_confusion_point"`
	RecommendedApproach    string   `json:"recommended_approach"`
	AvoidApproaches        []string `json:"avoid_approaches"`
	LengthGuidance         string   `json:"length_guidance"`
	IncludeCheckQuestion   bool     `json:"include_check_question"`
	ToneGuidance           string   `json:"tone_guidance"`
	SessionNarrative       string   `json:"session_narrative"`
	RecentStudentResponses []string `json:"recent_student_responses"`
	FailedExplanations     []string `json:"failed_explanations"`
}

// EvaluatorRequirements steers answer evaluation.
type EvaluatorRequirements struct {
	EvaluationFocus              string   `json:"evaluation_focus"`
	ConceptsJustTaught           []string `json:"concepts_just_taught"`
	ExpectedMasteryLevel         string   `json:"expected_mastery_level"`
	BeLenient                    bool     `json:"be_lenient"`
	LookForSpecificMisconception *string  `json:"look_for_specific_misconception"`
}

// AssessorRequirements steers question generation.
type AssessorRequirements struct {
	QuestionPurpose      string   `json:"question_purpose"`
	DifficultyLevel      string   `json:"difficulty_level"`
	ConceptsToTest       []string `json:"concepts_to_test"`
	AvoidQuestionTypes   []string `json:"avoid_question_types"`
	ExpectedTimeToAnswer string   `json:"expected_time_to_answer"`
}

// TopicSteeringRequirements steers an off-topic redirect.
type TopicSteeringRequirements struct {
	OffTopicSeverity   string `json:"off_topic_severity"`
	AcknowledgeMessage bool   `json:"acknowledge_message"`
	FirmnessLevel      string `json:"firmness_level"`
}

// PlanAdapterRequirements steers plan adaptation.
type PlanAdapterRequirements struct {
	AdaptationTrigger   string `json:"adaptation_trigger"`
	Urgency             string `json:"urgency"`
	ConsiderSkipping    bool   `json:"consider_skipping"`
	ConsiderRemediation bool   `json:"consider_remediation"`
}

func (*ExplainerRequirements) For() Kind     { return Explainer }
func (*EvaluatorRequirements) For() Kind     { return Evaluator }
func (*AssessorRequirements) For() Kind      { return Assessor }
func (*TopicSteeringRequirements) For() Kind { return TopicSteering }
func (*PlanAdapterRequirements) For() Kind   { return PlanAdapter }

func (*ExplainerRequirements) isRequirements()     {}
func (*EvaluatorRequirements) isRequirements()     {}
func (*AssessorRequirements) isRequirements()      {}
func (*TopicSteeringRequirements) isRequirements() {}
func (*PlanAdapterRequirements) isRequirements()   {}

// Allowed values of the enumerated requirement fields. They are also
// written into the decision schema.
var (
	TriggerReasons = []string{
		"initial_explanation", "wrong_answer", "explicit_confusion", "implicit_confusion",
		"clarification_request", "deeper_dive", "remediation",
	}
	ExplanationApproaches = []string{
		"different_analogy", "step_by_step", "visual_description", "connect_to_known",
		"contrast_with_wrong", "simpler_language", "concrete_example_first",
	}
	LengthGuidances       = []string{"brief", "moderate", "thorough"}
	ToneGuidances         = []string{"encouraging", "celebratory", "neutral", "patient"}
	EvaluationFocuses     = []string{"correctness_only", "deep_understanding", "misconception_detection", "partial_credit"}
	ExpectedMasteryLevels = []string{"recognition", "basic_application", "deep_understanding"}
	QuestionPurposes      = []string{"quick_check", "probe_depth", "identify_gaps", "build_confidence", "challenge"}
	DifficultyLevels      = []string{"easy", "medium", "hard"}
	ExpectedTimes         = []string{"quick", "moderate", "extended"}
	OffTopicSeverities    = []string{"mild", "moderate", "severe"}
	FirmnessLevels        = []string{"gentle", "firm", "strict"}
	AdaptationTriggers    = []string{"repeated_failure", "rapid_mastery", "disengagement", "pace_mismatch"}
	Urgencies             = []string{"low", "medium", "high"}
)

// clarificationTriggers switch the explainer into clarification mode.
var clarificationTriggers = map[string]bool{
	"clarification_request": true,
	"explicit_confusion":    true,
	"implicit_confusion":    true,
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
