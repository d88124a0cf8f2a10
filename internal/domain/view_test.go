package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionState(t *testing.T) {
	s := NewSession(testTopic(), DefaultStudentContext())
	s.CurrentStep = 2
	s.Mastery["fractions"] = 0.6

	st := s.State()
	assert.Equal(t, s.SessionID, st.SessionID)
	assert.Equal(t, 3, st.TotalSteps)
	assert.Equal(t, "fractions", st.CurrentConcept)
	assert.InDelta(t, 33.33, st.ProgressPercentage, 0.01)
	assert.False(t, st.IsComplete)

	st.MasteryEstimates["fractions"] = 0
	assert.InDelta(t, 0.6, s.Mastery["fractions"], 1e-9)
}

func TestLastConceptTaught(t *testing.T) {
	s := NewSession(testTopic(), DefaultStudentContext())
	assert.Equal(t, "fractions", s.LastConceptTaught())
	s.Summary.AddConceptTaught("equivalent_fractions")
	assert.Equal(t, "equivalent_fractions", s.LastConceptTaught())
}

func TestSessionDetailed(t *testing.T) {
	s := NewSession(testTopic(), DefaultStudentContext())
	s.CurrentStep = 3
	s.Mastery["fractions"] = 0.756
	s.SetQuestion(Question{Question: "1/2 of 8?", ExpectedAnswer: "4", Hints: []string{"split", "count"}})
	s.AddMisconception("fractions", "adds denominators")
	s.AddMessage(RoleStudent, "hello")

	d := s.Detailed()
	require.NotNil(t, d.Topic)
	require.NotNil(t, d.StudyPlan)
	assert.Equal(t, "fractions_basics", d.Topic.TopicID)
	require.Len(t, d.StudyPlan.Steps, 3)
	assert.True(t, d.StudyPlan.Steps[0].IsCompleted)
	assert.True(t, d.StudyPlan.Steps[2].IsCurrent)
	assert.False(t, d.StudyPlan.Steps[2].IsCompleted)
	assert.Equal(t, []string{"fractions"}, d.ConceptsCovered)
	assert.InDelta(t, 66.7, d.ProgressPercentage, 1e-9)

	require.NotNil(t, d.LastQuestion)
	assert.Equal(t, 2, d.LastQuestion.HintsAvailable)
	assert.Equal(t, "equivalent_fractions", d.LastQuestion.Concept)

	require.Len(t, d.MasteryItems, 2)
	assert.Equal(t, MasteryItem{Concept: "equivalent_fractions", Score: 0, Level: "not_started"}, d.MasteryItems[0])
	assert.Equal(t, MasteryItem{Concept: "fractions", Score: 0.76, Level: "strong"}, d.MasteryItems[1])

	require.Len(t, d.Misconceptions, 1)
	assert.Equal(t, []string{"fractions"}, d.WeakAreas)
	require.Len(t, d.ConversationHistory, 1)
	assert.Equal(t, RoleStudent, d.ConversationHistory[0].Role)
	assert.NotNil(t, d.Behavioral.SafetyFlags)
}

func TestSessionDetailed_NoTopic(t *testing.T) {
	s := NewSession(nil, DefaultStudentContext())
	d := s.Detailed()
	assert.Nil(t, d.Topic)
	assert.Nil(t, d.StudyPlan)
	assert.Empty(t, d.MasteryItems)
	assert.Equal(t, []string{}, d.ConceptsCovered)
}
