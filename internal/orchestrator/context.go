package orchestrator

import (
	"strings"

	"github.com/ashureev/tutorlabs/internal/domain"
	"github.com/ashureev/tutorlabs/internal/specialist"
)

const (
	narrativeEntries   = 5
	emptyNarrative     = "Session just started."
	previousQuestionsN = 5
)

// buildContext snapshots the session into the base specialist context of
// a turn. It only reads from s.
func buildContext(s *domain.Session, message, turnID string) *specialist.Context {
	in := &specialist.Context{
		SessionID:      s.SessionID,
		TurnID:         turnID,
		StudentMessage: message,
		CurrentStep:    s.CurrentStep,
		StudentGrade:   s.Student.Grade,
		LanguageLevel:  string(s.Student.LanguageLevel),
	}
	h := &in.Hints
	h.StepType = domain.StepExplain
	if step := s.CurrentStepInfo(); step != nil {
		in.CurrentConcept = step.Concept
		h.StepType = step.Type
		h.ContentHint = step.ContentHint
		h.QuestionType = step.QuestionType
		h.QuestionCount = step.QuestionCount
	}
	if s.Topic != nil {
		h.TopicName = s.Topic.TopicName
		h.Subject = s.Topic.Subject
		h.CommonMisconceptions = append([]string(nil), s.Topic.Guidelines.CommonMisconceptions...)
		h.PlanSteps = append([]domain.StudyPlanStep(nil), s.Topic.StudyPlan.Steps...)
	}
	h.PreferredExamples = append([]string(nil), s.Student.PreferredExamples...)
	h.Mastery = make(map[string]float64, len(s.Mastery))
	for c, m := range s.Mastery {
		h.Mastery[c] = m
	}
	for _, m := range s.Misconceptions {
		h.Misconceptions = append(h.Misconceptions, m.Description)
	}
	h.AwaitingResponse = s.AwaitingResponse
	if s.CurrentQuestion != nil {
		q := *s.CurrentQuestion
		q.Hints = append([]string(nil), q.Hints...)
		h.CurrentQuestion = &q
	}

	h.PreviousExamples = append(append([]string(nil), s.Summary.ExamplesUsed...), s.Summary.AnalogiesUsed...)
	h.PreviousQuestions = previousQuestions(s)
	h.PreviousExplanation = lastTeacherMessage(s)
	h.StuckPoints = append([]string(nil), s.Summary.StuckPoints...)
	h.SessionNarrative = sessionNarrative(s)
	h.Pace = s.PacePreference
	return in
}

// sessionNarrative joins the last few timeline entries.
func sessionNarrative(s *domain.Session) string {
	recent := s.Summary.RecentTimeline(narrativeEntries)
	if len(recent) == 0 {
		return emptyNarrative
	}
	return strings.Join(recent, " → ")
}

func lastTeacherMessage(s *domain.Session) string {
	for i := len(s.ConversationHistory) - 1; i >= 0; i-- {
		if m := s.ConversationHistory[i]; m.Role == domain.RoleTeacher {
			return m.Content
		}
	}
	return ""
}

// previousQuestions lists recent tutor messages that asked something, so
// the assessor avoids repeating itself.
func previousQuestions(s *domain.Session) []string {
	var out []string
	for i := len(s.ConversationHistory) - 1; i >= 0 && len(out) < previousQuestionsN; i-- {
		m := s.ConversationHistory[i]
		if m.Role == domain.RoleTeacher && strings.Contains(m.Content, "?") {
			out = append(out, m.Content)
		}
	}
	return out
}
