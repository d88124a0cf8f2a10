package prompt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashureev/tutorlabs/internal/domain"
)

func TestEveryTemplateParses(t *testing.T) {
	for name := range sources {
		_, ok := templates[name]
		assert.True(t, ok, "template %s not parsed", name)
	}
}

func TestRenderDecision(t *testing.T) {
	out, err := Render(Decision, DecisionData{
		StudentMessage:   "is it 3/4?",
		TopicName:        "Fractions",
		CurrentConcept:   "comparing_fractions",
		Step:             &domain.StudyPlanStep{StepID: 6, Type: domain.StepCheck, Concept: "comparing_fractions"},
		AwaitingResponse: true,
		LastQuestion:     &domain.Question{Question: "Which is bigger, 3/4 or 2/4?", ExpectedAnswer: "3/4"},
		SessionNarrative: "Session just started.",
		Mastery:          map[string]float64{"b": 0.25, "a": 0.5},
		ProgressTrend:    "steady",
		Grade:            5,
		LanguageLevel:    "simple",
		Capabilities:     "- explainer: explains",
	})
	require.NoError(t, err)

	assert.Contains(t, out, `Student's message: "is it 3/4?"`)
	assert.Contains(t, out, "Current step: Step 6: check - comparing_fractions")
	assert.Contains(t, out, "Question: Which is bigger, 3/4 or 2/4?")
	assert.Contains(t, out, "  a: 0.5\n  b: 0.2")
	assert.Contains(t, out, "No conversation yet")
}

func TestRenderEvaluatorWithoutRequirements(t *testing.T) {
	out, err := Render(Evaluator, EvaluatorData{
		Concept:         "fractions",
		StudentResponse: "2",
	})
	require.NoError(t, err)
	assert.Contains(t, out, "Question asked: None")
	assert.NotContains(t, out, "Evaluation focus")
}

func TestRenderUnknownTemplate(t *testing.T) {
	_, err := Render("nope", nil)
	require.Error(t, err)
}

func TestRenderMissingFieldFails(t *testing.T) {
	_, err := Render(Safety, struct{ Message string }{Message: "hi"})
	require.Error(t, err)
}

func TestBullets(t *testing.T) {
	assert.Equal(t, "None", Bullets(nil))
	assert.Equal(t, "- a\n- b", Bullets([]string{"a", "b"}))
}

func TestClip(t *testing.T) {
	assert.Equal(t, "héllo", Clip(10, "héllo"))
	assert.Equal(t, "hé", Clip(2, "héllo"))
}
