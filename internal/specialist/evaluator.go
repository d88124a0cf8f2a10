package specialist

import (
	"github.com/google/jsonschema-go/jsonschema"

	"github.com/ashureev/tutorlabs/internal/prompt"
)

// NewEvaluator builds the answer evaluator.
func NewEvaluator(opts Options) (Specialist, error) {
	return newAgent[EvaluatorOutput](definition[EvaluatorOutput]{
		kind:       Evaluator,
		schemaName: "EvaluatorOutput",
		build:      buildEvaluatorPrompt,
		shape: func(s *jsonschema.Schema) error {
			if err := SetRange(s, 0, 1, "score"); err != nil {
				return err
			}
			return SetEnum(s, []string{
				string(SignalStrong), string(SignalAdequate), string(SignalNeedsRemediation),
			}, "mastery_signal")
		},
	}, opts)
}

func buildEvaluatorPrompt(in *Context) (string, error) {
	d := prompt.EvaluatorData{
		Concept:         in.concept(),
		StudentResponse: in.StudentMessage,
	}
	if q := in.Hints.CurrentQuestion; q != nil {
		d.Question = q.Question
		d.ExpectedAnswer = q.ExpectedAnswer
		d.Rubric = q.Rubric
	}
	if req, ok := in.Hints.Requirements.(*EvaluatorRequirements); ok && req != nil {
		d.Focus = valueOr(req.EvaluationFocus, "correctness_only")
		d.ExpectedMasteryLevel = valueOr(req.ExpectedMasteryLevel, "basic_application")
		d.BeLenient = req.BeLenient
		d.LookFor = deref(req.LookForSpecificMisconception)
		d.ConceptsJustTaught = req.ConceptsJustTaught
	}
	return prompt.Render(prompt.Evaluator, d)
}
