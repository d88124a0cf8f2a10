package domain

// StepType is the kind of activity a study plan step asks for.
type StepType string

// Step types.
const (
	StepExplain  StepType = "explain"
	StepCheck    StepType = "check"
	StepPractice StepType = "practice"
)

// Valid reports whether t is a known step type.
func (t StepType) Valid() bool {
	switch t {
	case StepExplain, StepCheck, StepPractice:
		return true
	}
	return false
}

// StudyPlanStep is one entry of a topic's study plan.
type StudyPlanStep struct {
	StepID        int      `json:"step_id"`
	Type          StepType `json:"type"`
	Concept       string   `json:"concept"`
	ContentHint   string   `json:"content_hint,omitempty"`
	QuestionType  string   `json:"question_type,omitempty"`
	QuestionCount int      `json:"question_count,omitempty"`
}

// StudyPlan is the ordered, read-only sequence of steps for a topic.
type StudyPlan struct {
	Steps []StudyPlanStep `json:"steps"`
}

// Step returns the step with id n, or nil when there is none.
func (p StudyPlan) Step(n int) *StudyPlanStep {
	for i := range p.Steps {
		if p.Steps[i].StepID == n {
			return &p.Steps[i]
		}
	}
	return nil
}

// Concepts returns the distinct plan concepts in order.
func (p StudyPlan) Concepts() []string {
	var out []string
	for _, s := range p.Steps {
		out = appendUnique(out, s.Concept)
	}
	return out
}

// TopicGuidelines carries teaching guidance for a topic.
type TopicGuidelines struct {
	LearningObjectives   []string `json:"learning_objectives"`
	RequiredDepth        string   `json:"required_depth,omitempty"`
	PrerequisiteConcepts []string `json:"prerequisite_concepts,omitempty"`
	CommonMisconceptions []string `json:"common_misconceptions,omitempty"`
	TeachingApproach     string   `json:"teaching_approach,omitempty"`
}

// Topic is one curriculum entry. Topics are loaded from JSON and never
// modified at runtime.
type Topic struct {
	TopicID    string          `json:"topic_id"`
	TopicName  string          `json:"topic_name"`
	Subject    string          `json:"subject"`
	GradeLevel int             `json:"grade_level"`
	Guidelines TopicGuidelines `json:"guidelines"`
	StudyPlan  StudyPlan       `json:"study_plan"`
}
