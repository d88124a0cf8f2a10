package domain

import (
	"math"
	"sort"
	"time"
)

// StateView is the compact session state pushed to clients after every
// turn.
type StateView struct {
	SessionID          string             `json:"session_id"`
	CurrentStep        int                `json:"current_step"`
	TotalSteps         int                `json:"total_steps"`
	CurrentConcept     string             `json:"current_concept,omitempty"`
	ProgressPercentage float64            `json:"progress_percentage"`
	MasteryEstimates   map[string]float64 `json:"mastery_estimates"`
	IsComplete         bool               `json:"is_complete"`
}

// LastConceptTaught is the most recent concept the explainer covered, or
// the concept under the cursor when nothing has been taught yet.
func (s *Session) LastConceptTaught() string {
	if n := len(s.Summary.ConceptsTaught); n > 0 {
		return s.Summary.ConceptsTaught[n-1]
	}
	return s.CurrentConcept()
}

// State returns the compact view of s.
func (s *Session) State() StateView {
	mastery := make(map[string]float64, len(s.Mastery))
	for k, v := range s.Mastery {
		mastery[k] = v
	}
	return StateView{
		SessionID:          s.SessionID,
		CurrentStep:        s.CurrentStep,
		TotalSteps:         s.TotalSteps(),
		CurrentConcept:     s.LastConceptTaught(),
		ProgressPercentage: s.ProgressPercentage(),
		MasteryEstimates:   mastery,
		IsComplete:         s.IsComplete(),
	}
}

// DetailedState is the full transparency view of a session.
type DetailedState struct {
	SessionID string `json:"session_id"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
	TurnCount int    `json:"turn_count"`

	Topic     *TopicView     `json:"topic"`
	StudyPlan *StudyPlanView `json:"study_plan"`

	CurrentStep        int      `json:"current_step"`
	TotalSteps         int      `json:"total_steps"`
	ProgressPercentage float64  `json:"progress_percentage"`
	IsComplete         bool     `json:"is_complete"`
	ConceptsCovered    []string `json:"concepts_covered"`
	LastConceptTaught  string   `json:"last_concept_taught"`

	StudentProfile StudentProfileView `json:"student_profile"`

	AwaitingResponse bool          `json:"awaiting_response"`
	LastQuestion     *QuestionView `json:"last_question"`

	MasteryItems   []MasteryItem `json:"mastery_items"`
	OverallMastery float64       `json:"overall_mastery"`

	Misconceptions []MisconceptionView `json:"misconceptions"`
	WeakAreas      []string            `json:"weak_areas"`

	SessionSummary SessionSummary `json:"session_summary"`
	Behavioral     BehavioralView `json:"behavioral"`

	ConversationHistory []MessageView `json:"conversation_history"`
}

// TopicView describes the topic of a detailed state.
type TopicView struct {
	TopicID              string   `json:"topic_id"`
	TopicName            string   `json:"topic_name"`
	Subject              string   `json:"subject"`
	GradeLevel           int      `json:"grade_level"`
	LearningObjectives   []string `json:"learning_objectives"`
	CommonMisconceptions []string `json:"common_misconceptions"`
}

// StudyPlanView lists the plan steps with their progress flags.
type StudyPlanView struct {
	TotalSteps int        `json:"total_steps"`
	Steps      []StepView `json:"steps"`
}

// StepView is one plan step.
type StepView struct {
	StepID      int      `json:"step_id"`
	Type        StepType `json:"type"`
	Concept     string   `json:"concept"`
	ContentHint string   `json:"content_hint,omitempty"`
	IsCurrent   bool     `json:"is_current"`
	IsCompleted bool     `json:"is_completed"`
}

// StudentProfileView is the student context plus the adapted pace.
type StudentProfileView struct {
	Grade             int           `json:"grade"`
	Board             string        `json:"board"`
	LanguageLevel     LanguageLevel `json:"language_level"`
	PreferredExamples []string      `json:"preferred_examples"`
	PacePreference    Pace          `json:"pace_preference"`
}

// QuestionView hides the hint texts but reports how many exist.
type QuestionView struct {
	QuestionText   string `json:"question_text"`
	ExpectedAnswer string `json:"expected_answer"`
	Concept        string `json:"concept"`
	HintsAvailable int    `json:"hints_available"`
	HintsUsed      int    `json:"hints_used"`
}

// MasteryItem is one concept score with its label.
type MasteryItem struct {
	Concept string  `json:"concept"`
	Score   float64 `json:"score"`
	Level   string  `json:"level"`
}

// MisconceptionView is a misconception with a formatted timestamp.
type MisconceptionView struct {
	Concept     string `json:"concept"`
	Description string `json:"description"`
	DetectedAt  string `json:"detected_at"`
	Resolved    bool   `json:"resolved"`
}

// BehavioralView groups the behaviour counters.
type BehavioralView struct {
	OffTopicCount int      `json:"off_topic_count"`
	WarningCount  int      `json:"warning_count"`
	SafetyFlags   []string `json:"safety_flags"`
}

// MessageView is a history entry with a formatted timestamp.
type MessageView struct {
	Role      Role   `json:"role"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
}

// Detailed builds the full state view of s.
func (s *Session) Detailed() DetailedState {
	d := DetailedState{
		SessionID:          s.SessionID,
		CreatedAt:          s.CreatedAt.Format(time.RFC3339),
		UpdatedAt:          s.UpdatedAt.Format(time.RFC3339),
		TurnCount:          s.TurnCount,
		CurrentStep:        s.CurrentStep,
		TotalSteps:         s.TotalSteps(),
		ProgressPercentage: round(s.ProgressPercentage(), 1),
		IsComplete:         s.IsComplete(),
		ConceptsCovered:    s.conceptsCovered(),
		LastConceptTaught:  s.LastConceptTaught(),
		StudentProfile: StudentProfileView{
			Grade:             s.Student.Grade,
			Board:             s.Student.Board,
			LanguageLevel:     s.Student.LanguageLevel,
			PreferredExamples: cloneSlice(s.Student.PreferredExamples),
			PacePreference:    s.PacePreference,
		},
		AwaitingResponse: s.AwaitingResponse,
		OverallMastery:   round(s.OverallMastery(), 2),
		WeakAreas:        nonNil(cloneSlice(s.WeakAreas)),
		SessionSummary:   s.Clone().Summary,
		Behavioral: BehavioralView{
			OffTopicCount: s.OffTopicCount,
			WarningCount:  s.WarningCount,
			SafetyFlags:   nonNil(cloneSlice(s.SafetyFlags)),
		},
	}

	if t := s.Topic; t != nil {
		d.Topic = &TopicView{
			TopicID:              t.TopicID,
			TopicName:            t.TopicName,
			Subject:              t.Subject,
			GradeLevel:           t.GradeLevel,
			LearningObjectives:   nonNil(cloneSlice(t.Guidelines.LearningObjectives)),
			CommonMisconceptions: nonNil(cloneSlice(t.Guidelines.CommonMisconceptions)),
		}
		plan := &StudyPlanView{TotalSteps: len(t.StudyPlan.Steps)}
		for _, step := range t.StudyPlan.Steps {
			plan.Steps = append(plan.Steps, StepView{
				StepID:      step.StepID,
				Type:        step.Type,
				Concept:     step.Concept,
				ContentHint: step.ContentHint,
				IsCurrent:   step.StepID == s.CurrentStep,
				IsCompleted: step.StepID < s.CurrentStep,
			})
		}
		d.StudyPlan = plan
	}

	if q := s.CurrentQuestion; q != nil {
		d.LastQuestion = &QuestionView{
			QuestionText:   q.Question,
			ExpectedAnswer: q.ExpectedAnswer,
			Concept:        s.CurrentConcept(),
			HintsAvailable: len(q.Hints),
			HintsUsed:      q.HintsUsed,
		}
	}

	concepts := make([]string, 0, len(s.Mastery))
	for c := range s.Mastery {
		concepts = append(concepts, c)
	}
	sort.Strings(concepts)
	d.MasteryItems = make([]MasteryItem, 0, len(concepts))
	for _, c := range concepts {
		score := s.Mastery[c]
		d.MasteryItems = append(d.MasteryItems, MasteryItem{
			Concept: c,
			Score:   round(score, 2),
			Level:   detailedLevel(score),
		})
	}

	d.Misconceptions = make([]MisconceptionView, 0, len(s.Misconceptions))
	for _, m := range s.Misconceptions {
		d.Misconceptions = append(d.Misconceptions, MisconceptionView{
			Concept:     m.Concept,
			Description: m.Description,
			DetectedAt:  m.DetectedAt.Format(time.RFC3339),
			Resolved:    m.Resolved,
		})
	}

	d.ConversationHistory = make([]MessageView, 0, len(s.ConversationHistory))
	for _, msg := range s.ConversationHistory {
		d.ConversationHistory = append(d.ConversationHistory, MessageView{
			Role:      msg.Role,
			Content:   msg.Content,
			Timestamp: msg.Timestamp.Format(time.RFC3339),
		})
	}
	return d
}

// conceptsCovered lists the concepts of completed steps.
func (s *Session) conceptsCovered() []string {
	out := []string{}
	if s.Topic == nil {
		return out
	}
	for _, step := range s.Topic.StudyPlan.Steps {
		if step.StepID < s.CurrentStep {
			out = appendUnique(out, step.Concept)
		}
	}
	return out
}

// detailedLevel is MasteryLevel with a separate label for untouched
// concepts.
func detailedLevel(score float64) string {
	if score <= 0 {
		return "not_started"
	}
	return MasteryLevel(score)
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

func nonNil(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}
