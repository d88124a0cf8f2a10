package prompt

import "github.com/ashureev/tutorlabs/internal/domain"

// SafetyData feeds the Safety template.
type SafetyData struct {
	Message string
	Context string
}

// ExplainerData feeds the first-pass Explainer template.
type ExplainerData struct {
	Concept              string
	ContentHint          string
	Grade                int
	LanguageLevel        string
	PreferredExamples    []string
	CommonMisconceptions []string
	PreviousExamples     []string
}

// ClarificationData feeds the Clarification template.
type ClarificationData struct {
	Concept             string
	StudentMessage      string
	PreviousExplanation string
	MasteryLevel        string
	Grade               int
	LanguageLevel       string
	PreferredExamples   []string
}

// ExplainerEnrichedData feeds the Explainer template used when the
// decision engine supplied requirements.
type ExplainerEnrichedData struct {
	TriggerReason        string
	TriggerDetails       string
	FocusArea            string
	ConfusionPoint       string
	RecommendedApproach  string
	AvoidApproaches      []string
	SessionNarrative     string
	RecentResponses      []string
	FailedExplanations   []string
	LengthGuidance       string
	ToneGuidance         string
	IncludeCheckQuestion bool
	Clarification        bool
	Grade                int
	LanguageLevel        string
	PreferredExamples    []string
}

// AssessorData feeds the Assessor template.
type AssessorData struct {
	Concept            string
	QuestionType       string
	QuestionCount      int
	Difficulty         string
	Purpose            string
	ConceptsToTest     []string
	AvoidQuestionTypes []string
	ExpectedTime       string
	PreviousQuestions  []string
	Grade              int
	LanguageLevel      string
}

// EvaluatorData feeds the Evaluator template.
type EvaluatorData struct {
	Concept              string
	Question             string
	ExpectedAnswer       string
	Rubric               string
	StudentResponse      string
	Focus                string
	ExpectedMasteryLevel string
	BeLenient            bool
	LookFor              string
	ConceptsJustTaught   []string
}

// TopicSteeringData feeds the TopicSteering template.
type TopicSteeringData struct {
	CurrentTopic    string
	Message         string
	LessonContext   string
	HasRequirements bool
	Severity        string
	Acknowledge     bool
	Firmness        string
}

// PlanAdapterData feeds the PlanAdapter template.
type PlanAdapterData struct {
	CurrentPlan         []string
	Mastery             map[string]float64
	StuckPoints         []string
	Pace                string
	Misconceptions      []string
	RecentPerformance   string
	HasRequirements     bool
	Trigger             string
	Urgency             string
	ConsiderSkipping    bool
	ConsiderRemediation bool
}

// DecisionData feeds the orchestrator Decision template.
type DecisionData struct {
	StudentMessage     string
	TopicName          string
	CurrentConcept     string
	Step               *domain.StudyPlanStep
	AwaitingResponse   bool
	LastQuestion       *domain.Question
	SessionNarrative   string
	RecentConversation []domain.Message
	Mastery            map[string]float64
	Misconceptions     []string
	ProgressTrend      string
	StuckPoints        []string
	ExamplesUsed       []string
	AnalogiesUsed      []string
	Grade              int
	LanguageLevel      string
	PreferredExamples  []string
	Capabilities       string
}

// IntentData feeds the IntentClassifier template.
type IntentData struct {
	TopicName           string
	CurrentConcept      string
	StepType            string
	AwaitingResponse    bool
	ConversationSummary string
	StudentMessage      string
}

// ComposerData feeds the Composer template.
type ComposerData struct {
	Grade             int
	LanguageLevel     string
	TopicName         string
	CurrentConcept    string
	StudentMessage    string
	Intent            string
	SpecialistOutputs string
}

// TurnSummaryData feeds the TurnSummary template.
type TurnSummaryData struct {
	Turn           int
	StudentMessage string
	Intent         string
	WhatHappened   string
	Response       string
}

// WelcomeData feeds the Welcome template.
type WelcomeData struct {
	Grade             int
	TopicName         string
	Subject           string
	Objectives        []string
	LanguageLevel     string
	PreferredExamples []string
}
