package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testTopic() *Topic {
	return &Topic{
		TopicID:   "fractions_basics",
		TopicName: "Fractions",
		Subject:   "Mathematics",
		StudyPlan: StudyPlan{Steps: []StudyPlanStep{
			{StepID: 1, Type: StepExplain, Concept: "fractions"},
			{StepID: 2, Type: StepCheck, Concept: "fractions"},
			{StepID: 3, Type: StepExplain, Concept: "equivalent_fractions"},
		}},
	}
}

func TestNextMastery(t *testing.T) {
	tests := []struct {
		name    string
		m       float64
		correct bool
		conf    float64
		want    float64
	}{
		{"correct from half", 0.5, true, 0.9, 0.59},
		{"incorrect from half", 0.5, false, 0.9, 0.455},
		{"correct from 0.4", 0.4, true, 0.9, 0.508},
		{"correct at ceiling", 1.0, true, 1.0, 1.0},
		{"incorrect at floor", 0.0, false, 1.0, 0.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, NextMastery(tt.m, tt.correct, tt.conf), 1e-9)
		})
	}
}

func TestUpdateMasteryStaysInBounds(t *testing.T) {
	s := NewSession(testTopic(), StudentContext{})
	for i := 0; i < 50; i++ {
		s.UpdateMastery("fractions", i%3 != 0, 1.0)
		m := s.Mastery["fractions"]
		require.GreaterOrEqual(t, m, 0.0)
		require.LessOrEqual(t, m, 1.0)
	}
}

func TestUpdateMasteryDefaultsUnknownConcept(t *testing.T) {
	s := NewSession(testTopic(), StudentContext{})
	got := s.UpdateMastery("decimals", true, 0.9)
	assert.InDelta(t, 0.59, got, 1e-9)
}

func TestNewSession(t *testing.T) {
	s := NewSession(testTopic(), StudentContext{Grade: 40})

	assert.True(t, strings.HasPrefix(s.SessionID, "sess_"))
	assert.Len(t, s.SessionID, len("sess_")+12)
	assert.Equal(t, 1, s.CurrentStep)
	assert.Equal(t, map[string]float64{"fractions": 0, "equivalent_fractions": 0}, s.Mastery)
	assert.Equal(t, 5, s.Student.Grade)
	assert.Equal(t, "CBSE", s.Student.Board)
	assert.Equal(t, TrendSteady, s.Summary.ProgressTrend)
	assert.False(t, s.AwaitingResponse)
	assert.Nil(t, s.CurrentQuestion)
}

func TestStepCursor(t *testing.T) {
	s := NewSession(testTopic(), StudentContext{})

	assert.Equal(t, "fractions", s.CurrentConcept())
	assert.InDelta(t, 0, s.ProgressPercentage(), 1e-9)
	assert.True(t, s.AdvanceStep())
	assert.True(t, s.AdvanceStep())
	assert.Equal(t, 3, s.CurrentStep)
	assert.False(t, s.AdvanceStep(), "advance on last step is a no-op")
	assert.Equal(t, 3, s.CurrentStep)
	assert.False(t, s.IsComplete())

	s.CurrentStep = 4
	assert.True(t, s.IsComplete())
	assert.Nil(t, s.CurrentStepInfo())
	assert.InDelta(t, 100, s.ProgressPercentage(), 1e-9)

	s.CurrentStep = 9
	assert.InDelta(t, 100, s.ProgressPercentage(), 1e-9)
}

func TestQuestionInvariant(t *testing.T) {
	s := NewSession(testTopic(), StudentContext{})

	s.SetQuestion(Question{Question: "What is 1/2 of 4?", ExpectedAnswer: "2"})
	assert.True(t, s.AwaitingResponse)
	assert.NotNil(t, s.CurrentQuestion)

	s.ClearQuestion()
	assert.False(t, s.AwaitingResponse)
	assert.Nil(t, s.CurrentQuestion)
}

func TestAddMessageTrimsHistory(t *testing.T) {
	s := NewSession(testTopic(), StudentContext{})
	s.MaxHistory = 3
	for _, msg := range []string{"a", "b", "c", "d", "e"} {
		s.AddMessage(RoleStudent, msg)
	}

	require.Len(t, s.ConversationHistory, 3)
	assert.Equal(t, "c", s.ConversationHistory[0].Content)
	assert.Equal(t, "e", s.ConversationHistory[2].Content)
}

func TestSummaryTimelineBounded(t *testing.T) {
	var sum SessionSummary
	for i := 1; i <= 35; i++ {
		sum.AddTurnSummary(i, "did something")
	}

	require.Len(t, sum.TurnTimeline, MaxTimelineEntries)
	assert.Equal(t, "Turn 6: did something", sum.TurnTimeline[0])
	assert.Equal(t, "Turn 35: did something", sum.TurnTimeline[29])
}

func TestSummaryDeduplicates(t *testing.T) {
	var sum SessionSummary
	sum.AddExamples("pizza slices", "pizza slices", "chocolate bar")
	sum.AddAnalogies("sharing cake", "sharing cake")
	sum.AddStuckPoint("fractions: difficulty")
	sum.AddStuckPoint("fractions: difficulty")

	assert.Equal(t, []string{"pizza slices", "chocolate bar"}, sum.ExamplesUsed)
	assert.Equal(t, []string{"sharing cake"}, sum.AnalogiesUsed)
	assert.Equal(t, []string{"fractions: difficulty"}, sum.StuckPoints)
}

func TestAddMisconceptionMarksWeakArea(t *testing.T) {
	s := NewSession(testTopic(), StudentContext{})
	s.AddMisconception("fractions", "bigger denominator means bigger fraction")
	s.AddMisconception("fractions", "adds denominators")

	require.Len(t, s.Misconceptions, 2)
	assert.False(t, s.Misconceptions[0].Resolved)
	assert.Equal(t, "adds denominators", s.Misconceptions[1].Description)
	assert.Equal(t, []string{"fractions"}, s.WeakAreas)
}

func TestOverallMastery(t *testing.T) {
	s := NewSession(testTopic(), StudentContext{})
	s.Mastery["fractions"] = 0.8
	s.Mastery["equivalent_fractions"] = 0.4

	assert.InDelta(t, 0.6, s.OverallMastery(), 1e-9)
}

func TestCloneIsDeep(t *testing.T) {
	s := NewSession(testTopic(), StudentContext{})
	s.SetQuestion(Question{Question: "q", Hints: []string{"h1"}})
	s.Summary.AddTurnSummary(1, "start")

	c := s.Clone()
	c.Mastery["fractions"] = 0.9
	c.CurrentQuestion.Hints[0] = "changed"
	c.Summary.AddTurnSummary(2, "more")
	c.SafetyFlags = append(c.SafetyFlags, "x")

	assert.InDelta(t, 0, s.Mastery["fractions"], 1e-9)
	assert.Equal(t, "h1", s.CurrentQuestion.Hints[0])
	assert.Len(t, s.Summary.TurnTimeline, 1)
	assert.Empty(t, s.SafetyFlags)
	assert.Same(t, s.Topic, c.Topic)
}

func TestMasteryLevel(t *testing.T) {
	assert.Equal(t, "mastered", MasteryLevel(0.95))
	assert.Equal(t, "strong", MasteryLevel(0.7))
	assert.Equal(t, "adequate", MasteryLevel(0.5))
	assert.Equal(t, "developing", MasteryLevel(0.3))
	assert.Equal(t, "needs_work", MasteryLevel(0.1))
}
