package specialist

import (
	"maps"
	"slices"

	"github.com/ashureev/tutorlabs/internal/domain"
)

// Context is the per-call input of a specialist. The turn pipeline builds
// one base Context per turn and hands every specialist its own Clone.
type Context struct {
	SessionID      string
	TurnID         string
	StudentMessage string
	CurrentStep    int
	CurrentConcept string
	StudentGrade   int
	LanguageLevel  string
	Hints          Hints
}

// Hints are the turn-scoped facts a specialist may draw on.
type Hints struct {
	TopicName            string
	Subject              string
	StepType             domain.StepType
	ContentHint          string
	QuestionType         string
	QuestionCount        int
	PreferredExamples    []string
	Mastery              map[string]float64
	Misconceptions       []string
	CommonMisconceptions []string
	AwaitingResponse     bool
	CurrentQuestion      *domain.Question

	PreviousExamples    []string
	PreviousQuestions   []string
	PreviousExplanation string
	StuckPoints         []string
	SessionNarrative    string
	PlanSteps           []domain.StudyPlanStep
	Pace                domain.Pace

	// Set by the dispatcher.
	Requirements    Requirements
	IsClarification bool
	MasteryLevel    string
}

// Clone returns a deep copy.
func (c *Context) Clone() *Context {
	out := *c
	h := &out.Hints
	h.PreferredExamples = slices.Clone(c.Hints.PreferredExamples)
	h.Mastery = maps.Clone(c.Hints.Mastery)
	h.Misconceptions = slices.Clone(c.Hints.Misconceptions)
	h.CommonMisconceptions = slices.Clone(c.Hints.CommonMisconceptions)
	h.PreviousExamples = slices.Clone(c.Hints.PreviousExamples)
	h.PreviousQuestions = slices.Clone(c.Hints.PreviousQuestions)
	h.StuckPoints = slices.Clone(c.Hints.StuckPoints)
	h.PlanSteps = slices.Clone(c.Hints.PlanSteps)
	if c.Hints.CurrentQuestion != nil {
		q := *c.Hints.CurrentQuestion
		q.Hints = slices.Clone(q.Hints)
		h.CurrentQuestion = &q
	}
	return &out
}

// concept returns the current concept or a neutral placeholder.
func (c *Context) concept() string {
	if c.CurrentConcept != "" {
		return c.CurrentConcept
	}
	return "the topic"
}

func (c *Context) preferredExamples() []string {
	if len(c.Hints.PreferredExamples) == 0 {
		return []string{"food", "sports"}
	}
	return c.Hints.PreferredExamples
}
