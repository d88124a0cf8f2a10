package orchestrator

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashureev/tutorlabs/internal/domain"
	"github.com/ashureev/tutorlabs/internal/specialist"
)

func resultsOf(outs ...specialist.Output) *Results {
	r := newResults()
	for _, o := range outs {
		r.set(o.Kind(), o)
	}
	return r
}

func TestBuildContext(t *testing.T) {
	s := awaitingSession()
	s.AddMisconception("fractions", "adds denominators")
	s.AddMessage(domain.RoleTeacher, "What is half of 8?")
	s.Summary.AddTurnSummary(1, "Started")

	in := buildContext(s, "4", "turn_2")
	assert.Equal(t, "turn_2", in.TurnID)
	assert.Equal(t, "fractions", in.CurrentConcept)
	assert.Equal(t, domain.StepCheck, in.Hints.StepType)
	assert.Equal(t, "Fractions", in.Hints.TopicName)
	assert.Equal(t, []string{"adds denominators"}, in.Hints.Misconceptions)
	assert.Equal(t, []string{"bigger denominator means bigger fraction"}, in.Hints.CommonMisconceptions)
	assert.True(t, in.Hints.AwaitingResponse)
	require.NotNil(t, in.Hints.CurrentQuestion)
	assert.Equal(t, "What is half of 8?", in.Hints.CurrentQuestion.Question)
	assert.Equal(t, "What is half of 8?", in.Hints.PreviousExplanation)
	assert.Equal(t, []string{"What is half of 8?"}, in.Hints.PreviousQuestions)
	assert.Equal(t, "Turn 1: Started", in.Hints.SessionNarrative)

	in.Hints.Mastery["fractions"] = 0.99
	assert.InDelta(t, 0.4, s.Mastery["fractions"], 1e-9)
}

func TestSessionNarrative(t *testing.T) {
	s := awaitingSession()
	assert.Equal(t, "Session just started.", sessionNarrative(s))
	for i := 1; i <= 7; i++ {
		s.Summary.AddTurnSummary(i, "x")
	}
	n := sessionNarrative(s)
	assert.True(t, strings.HasPrefix(n, "Turn 3: x → Turn 4: x"))
	assert.Equal(t, 4, strings.Count(n, " → "))
}

func TestApplyUpdates(t *testing.T) {
	t.Run("evaluator then assessor", func(t *testing.T) {
		s := awaitingSession()
		changed := ApplyUpdates(s, resultsOf(
			&specialist.AssessorOutput{Question: "Next?", ExpectedAnswer: "yes", Hints: []string{"h"}},
			&specialist.EvaluatorOutput{IsCorrect: true, Score: 0.9},
		))
		assert.True(t, changed)
		require.NotNil(t, s.CurrentQuestion)
		assert.Equal(t, "Next?", s.CurrentQuestion.Question)
		assert.True(t, s.AwaitingResponse)
		assert.Equal(t, 2, s.CurrentStep)
	})

	t.Run("advance is a no-op on the last step", func(t *testing.T) {
		s := awaitingSession()
		s.CurrentStep = 2
		ApplyUpdates(s, resultsOf(&specialist.EvaluatorOutput{IsCorrect: true, Score: 1}))
		assert.Equal(t, 2, s.CurrentStep)
		assert.InDelta(t, 0.2, s.Mastery["equivalent_fractions"], 1e-9)
	})

	t.Run("plan adapter sets pace", func(t *testing.T) {
		s := awaitingSession()
		assert.True(t, ApplyUpdates(s, resultsOf(&specialist.PlanAdapterOutput{NewPace: "fast"})))
		assert.Equal(t, domain.PaceFast, s.PacePreference)
		assert.False(t, ApplyUpdates(s, resultsOf(&specialist.PlanAdapterOutput{NewPace: "warp"})))
	})

	t.Run("explainer alone changes nothing", func(t *testing.T) {
		s := awaitingSession()
		assert.False(t, ApplyUpdates(s, resultsOf(&specialist.ExplainerOutput{Explanation: "x"})))
		assert.True(t, s.AwaitingResponse)
	})

	t.Run("mastery stays in bounds", func(t *testing.T) {
		s := awaitingSession()
		for i := 0; i < 50; i++ {
			s.SetQuestion(domain.Question{Question: "q"})
			ApplyUpdates(s, resultsOf(&specialist.EvaluatorOutput{IsCorrect: i%2 == 0, Score: 1}))
			for _, m := range s.Mastery {
				assert.GreaterOrEqual(t, m, 0.0)
				assert.LessOrEqual(t, m, 1.0)
			}
			assert.Equal(t, s.CurrentQuestion != nil, s.AwaitingResponse)
		}
	})
}

func TestFormatOutputs(t *testing.T) {
	ack := "Cool game!"
	got := FormatOutputs(resultsOf(
		&specialist.EvaluatorOutput{IsCorrect: false, Feedback: "Close", Misconceptions: []string{"a", "b"}},
		&specialist.ExplainerOutput{Explanation: "Because", Examples: []string{"pizza", "cake"}},
		&specialist.AssessorOutput{Question: "2+2?"},
		&specialist.TopicSteeringOutput{BriefResponse: &ack, RedirectMessage: "Back to it"},
	))
	want := "--- EVALUATOR ---\nIs Correct: false\nFeedback: Close\nMisconceptions: a, b\n\n" +
		"--- EXPLAINER ---\nExplanation: Because\nExamples: pizza; cake\n\n" +
		"--- ASSESSOR ---\nQuestion: 2+2?\n\n" +
		"--- TOPIC_STEERING ---\nAcknowledgment: Cool game!\nRedirect: Back to it\n\n"
	assert.Equal(t, want, got)
}

func TestFallbackResponse(t *testing.T) {
	s := domain.NewSession(testTopic(), domain.DefaultStudentContext())
	assert.Equal(t, "Let me ask you a question about fractions to check your understanding.", FallbackResponse(s, IntentContinuation))
	s.CurrentStep = 2
	assert.Equal(t, "Great! Let's continue learning about equivalent_fractions.", FallbackResponse(s, IntentContinuation))
	assert.Equal(t, "I understand this can be tricky. Let me explain equivalent_fractions in a different way.", FallbackResponse(s, IntentConfusion))
	assert.Equal(t, "That's a great question! Let me help clarify.", FallbackResponse(s, IntentQuestion))
	assert.Equal(t, "Let's keep going with our lesson. What would you like to learn about next?", FallbackResponse(s, IntentAnswer))
	s.CurrentStep = 3
	assert.Equal(t, "Let's continue with our lesson!", FallbackResponse(s, IntentContinuation))
	assert.Equal(t, "I understand this can be tricky. Let me explain the topic in a different way.", FallbackResponse(s, IntentConfusion))
}

func TestTurnFactsAndFallbackSummary(t *testing.T) {
	wrong := &specialist.EvaluatorOutput{IsCorrect: false}
	res := resultsOf(wrong, &specialist.ExplainerOutput{Examples: []string{"pizza"}}, &specialist.AssessorOutput{}, &specialist.TopicSteeringOutput{})
	assert.Equal(t, []string{
		"incorrect answer, misconception: error",
		"explained with examples: pizza",
		"asked a check question",
		"redirected off-topic message",
	}, turnFacts(res))
	assert.Equal(t, []string{"correct answer (score: 85%)"}, turnFacts(resultsOf(&specialist.EvaluatorOutput{IsCorrect: true, Score: 0.85})))

	assert.Equal(t, "Student struggled with equivalent fractions, needed clarification", FallbackSummary(IntentAnswer, "equivalent_fractions", wrong))
	assert.Equal(t, "Student answered correctly about fractions", FallbackSummary(IntentAnswer, "fractions", &specialist.EvaluatorOutput{IsCorrect: true}))
	assert.Equal(t, "Student asked question about the topic, tutor explained", FallbackSummary(IntentQuestion, "", nil))
	assert.Equal(t, "Student confused about fractions, tutor clarified", FallbackSummary(IntentConfusion, "fractions", nil))
	assert.Equal(t, "Student went off-topic, redirected to lesson", FallbackSummary(IntentOffTopic, "fractions", nil))
	assert.Equal(t, "Continued lesson on fractions", FallbackSummary(IntentContinuation, "fractions", nil))
	assert.Equal(t, "Discussed fractions", FallbackSummary(IntentUnsafe, "fractions", nil))
}

func TestCleanSummary(t *testing.T) {
	assert.Equal(t, "Explained halves", cleanSummary(`  "Explained halves"  `))
	long := cleanSummary(strings.Repeat("a", 150))
	assert.Len(t, long, 100)
	assert.True(t, strings.HasSuffix(long, "..."))
}

func TestNextTrend(t *testing.T) {
	correct := &specialist.EvaluatorOutput{IsCorrect: true, Score: 0.9}
	weak := &specialist.EvaluatorOutput{IsCorrect: true, Score: 0.5}
	wrong := &specialist.EvaluatorOutput{IsCorrect: false}

	assert.Equal(t, domain.TrendImproving, NextTrend(domain.TrendSteady, correct, 0.7, true))
	assert.Equal(t, domain.TrendSteady, NextTrend(domain.TrendImproving, correct, 0.5, true))
	assert.Equal(t, domain.TrendImproving, NextTrend(domain.TrendImproving, weak, 0.7, true))
	assert.Equal(t, domain.TrendStruggling, NextTrend(domain.TrendSteady, wrong, 0.3, true))
	assert.Equal(t, domain.TrendSteady, NextTrend(domain.TrendStruggling, wrong, 0.5, true))
	assert.Equal(t, domain.TrendImproving, NextTrend(domain.TrendImproving, wrong, 0.1, false))
}

func TestUpdateSessionSummaryDedupes(t *testing.T) {
	s := awaitingSession()
	s.TurnCount = 1
	ex := &specialist.ExplainerOutput{Examples: []string{"pizza"}, Analogies: []string{"pie"}}
	updateSessionSummary(s, "fractions", "first", resultsOf(ex))
	s.TurnCount = 2
	updateSessionSummary(s, "fractions", "second", resultsOf(ex))

	assert.Equal(t, []string{"Turn 1: first", "Turn 2: second"}, s.Summary.TurnTimeline)
	assert.Equal(t, []string{"pizza"}, s.Summary.ExamplesUsed)
	assert.Equal(t, []string{"pie"}, s.Summary.AnalogiesUsed)
	assert.Equal(t, []string{"fractions"}, s.Summary.ConceptsTaught)

	updateSessionSummary(s, "fractions", "third", resultsOf(&specialist.EvaluatorOutput{IsCorrect: false}))
	assert.Empty(t, s.Summary.StuckPoints, "no feedback, no stuck point")
	updateSessionSummary(s, "fractions", "fourth", resultsOf(&specialist.EvaluatorOutput{IsCorrect: false, Feedback: "hmm"}))
	assert.Equal(t, []string{"fractions: difficulty"}, s.Summary.StuckPoints)
}

func TestAgentLog(t *testing.T) {
	l := NewAgentLog(3)
	for i, agent := range []string{"safety", "explainer", "evaluator", "explainer"} {
		l.Record(AgentLogEntry{SessionID: "s1", TurnID: "turn_" + string(rune('1'+i)), Agent: agent, Event: EventCompleted})
	}
	l.Record(AgentLogEntry{SessionID: "s2", Agent: "safety", InputSummary: strings.Repeat("x", 300)})

	all := l.Query("s1", AgentLogFilter{})
	require.Len(t, all, 3)
	assert.Equal(t, "explainer", all[0].Agent)
	assert.Equal(t, "turn_2", all[0].TurnID)

	assert.Len(t, l.Query("s1", AgentLogFilter{Agent: "explainer"}), 2)
	assert.Len(t, l.Query("s1", AgentLogFilter{TurnID: "turn_3"}), 1)
	recent := l.Recent("s1", 1)
	require.Len(t, recent, 1)
	assert.Equal(t, "turn_4", recent[0].TurnID)

	s2 := l.Query("s2", AgentLogFilter{})
	require.Len(t, s2, 1)
	assert.Len(t, s2[0].InputSummary, maxInputSummary+3)
	assert.False(t, s2[0].Timestamp.IsZero())

	l.Forget("s1")
	assert.Empty(t, l.Query("s1", AgentLogFilter{}))
}
