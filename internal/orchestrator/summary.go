package orchestrator

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/ashureev/tutorlabs/internal/domain"
	"github.com/ashureev/tutorlabs/internal/llm"
	"github.com/ashureev/tutorlabs/internal/prompt"
	"github.com/ashureev/tutorlabs/internal/specialist"
)

const maxSummaryLen = 100

// turnFacts lists what the specialists did this turn, in the short form
// used by the summary prompt and the fallback summary.
func turnFacts(res *Results) []string {
	var parts []string
	if ev := res.Evaluator(); ev != nil {
		if ev.IsCorrect {
			parts = append(parts, fmt.Sprintf("correct answer (score: %d%%)", int(math.Round(ev.Score*100))))
		} else {
			misc := "error"
			if len(ev.Misconceptions) > 0 {
				misc = ev.Misconceptions[0]
			}
			parts = append(parts, "incorrect answer, misconception: "+misc)
		}
	}
	if ex := res.Explainer(); ex != nil && len(ex.Examples) > 0 {
		parts = append(parts, "explained with examples: "+ex.Examples[0])
	}
	if res.Assessor() != nil {
		parts = append(parts, "asked a check question")
	}
	if res.TopicSteering() != nil {
		parts = append(parts, "redirected off-topic message")
	}
	return parts
}

// summarizeTurn asks for a one sentence narrative of the turn.
func (o *Orchestrator) summarizeTurn(ctx context.Context, turn int, in *specialist.Context, intent Intent, facts []string, reply string) (string, error) {
	happened := "continued lesson"
	if len(facts) > 0 {
		happened = strings.Join(facts, "; ")
	}
	text, err := prompt.Render(prompt.TurnSummary, prompt.TurnSummaryData{
		Turn:           turn,
		StudentMessage: in.StudentMessage,
		Intent:         string(intent),
		WhatHappened:   happened,
		Response:       reply,
	})
	if err != nil {
		return "", err
	}
	res, err := o.client.Complete(ctx, llm.Request{
		Prompt: text,
		Effort: llm.EffortNone,
		Caller: "orchestrator:turn_summary",
		TurnID: in.TurnID,
	})
	if err != nil {
		return "", fmt.Errorf("summarize turn: %w", err)
	}
	summary := cleanSummary(res.Text)
	if summary == "" {
		return "", fmt.Errorf("summarize turn: empty summary")
	}
	return summary, nil
}

func cleanSummary(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, `"`)
	s = strings.Trim(s, `'`)
	if r := []rune(s); len(r) > maxSummaryLen {
		s = string(r[:maxSummaryLen-3]) + "..."
	}
	return s
}

// FallbackSummary is the rule based turn summary.
func FallbackSummary(intent Intent, concept string, ev *specialist.EvaluatorOutput) string {
	c := "the topic"
	if concept != "" {
		c = strings.ReplaceAll(concept, "_", " ")
	}
	switch intent {
	case IntentAnswer:
		if ev != nil && ev.IsCorrect {
			return "Student answered correctly about " + c
		}
		return fmt.Sprintf("Student struggled with %s, needed clarification", c)
	case IntentQuestion:
		return fmt.Sprintf("Student asked question about %s, tutor explained", c)
	case IntentConfusion:
		return fmt.Sprintf("Student confused about %s, tutor clarified", c)
	case IntentOffTopic:
		return "Student went off-topic, redirected to lesson"
	case IntentContinuation:
		return "Continued lesson on " + c
	default:
		return "Discussed " + c
	}
}

// updateSessionSummary records the turn in the rolling memory.
func updateSessionSummary(s *domain.Session, concept, summary string, res *Results) {
	sum := &s.Summary
	sum.AddTurnSummary(s.TurnCount, summary)

	if ex := res.Explainer(); ex != nil {
		sum.AddExamples(ex.Examples...)
		sum.AddAnalogies(ex.Analogies...)
		sum.AddConceptTaught(concept)
	}
	if ev := res.Evaluator(); ev != nil && !ev.IsCorrect && ev.Feedback != "" {
		c := concept
		if c == "" {
			c = "unknown"
		}
		point := "difficulty"
		if len(ev.Misconceptions) > 0 {
			point = ev.Misconceptions[0]
		}
		sum.AddStuckPoint(c + ": " + point)
	}
	if ev := res.Evaluator(); ev != nil {
		sum.ProgressTrend = NextTrend(sum.ProgressTrend, ev, s.OverallMastery(), len(s.Mastery) > 0)
	}
}

// NextTrend compares the latest evaluation with the average mastery.
// Without mastery data the trend is kept.
func NextTrend(current domain.Trend, ev *specialist.EvaluatorOutput, avgMastery float64, hasMastery bool) domain.Trend {
	if !hasMastery {
		return current
	}
	if ev.IsCorrect {
		switch {
		case ev.Score >= 0.8 && avgMastery >= 0.6:
			return domain.TrendImproving
		case avgMastery < 0.6:
			return domain.TrendSteady
		}
		return current
	}
	if avgMastery < 0.4 {
		return domain.TrendStruggling
	}
	return domain.TrendSteady
}
