package orchestrator

import (
	"github.com/ashureev/tutorlabs/internal/domain"
	"github.com/ashureev/tutorlabs/internal/specialist"
)

// applyOrder fixes the order outputs are applied in. The evaluator clears
// the question slot before the assessor fills it.
var applyOrder = []specialist.Kind{
	specialist.Evaluator,
	specialist.Assessor,
	specialist.TopicSteering,
	specialist.PlanAdapter,
	specialist.Explainer,
}

// ApplyUpdates folds specialist outputs into s and reports whether any
// pedagogical state changed.
func ApplyUpdates(s *domain.Session, res *Results) bool {
	changed := false
	for _, k := range applyOrder {
		out := res.Get(k)
		if out == nil {
			continue
		}
		switch o := out.(type) {
		case *specialist.EvaluatorOutput:
			applyEvaluation(s, o)
			changed = true
		case *specialist.AssessorOutput:
			s.SetQuestion(domain.Question{
				Question:       o.Question,
				ExpectedAnswer: o.ExpectedAnswer,
				Rubric:         o.Rubric,
				Hints:          append([]string(nil), o.Hints...),
			})
			changed = true
		case *specialist.TopicSteeringOutput:
			s.OffTopicCount++
			changed = true
		case *specialist.PlanAdapterOutput:
			if pace := domain.Pace(o.NewPace); pace.Valid() {
				s.PacePreference = pace
				changed = true
			}
		case *specialist.ExplainerOutput, *specialist.SafetyOutput:
			// Teaching content only reaches the composer and summarizer.
		}
	}
	return changed
}

func applyEvaluation(s *domain.Session, ev *specialist.EvaluatorOutput) {
	concept := s.CurrentConcept()
	if concept == "" {
		concept = "unknown"
	}
	s.UpdateMastery(concept, ev.IsCorrect, ev.Score)
	for _, m := range ev.Misconceptions {
		s.AddMisconception(concept, m)
	}
	s.ClearQuestion()
	if ev.IsCorrect {
		s.AdvanceStep()
	}
}
