package specialist

import (
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/ashureev/tutorlabs/internal/domain"
	"github.com/ashureev/tutorlabs/internal/prompt"
)

// NewPlanAdapter builds the study plan adapter.
func NewPlanAdapter(opts Options) (Specialist, error) {
	return newAgent[PlanAdapterOutput](definition[PlanAdapterOutput]{
		kind:       PlanAdapter,
		schemaName: "PlanAdapterOutput",
		build:      buildPlanAdapterPrompt,
		shape: func(s *jsonschema.Schema) error {
			return SetEnum(s, []string{
				string(domain.PaceSlow), string(domain.PaceNormal), string(domain.PaceFast),
			}, "new_pace")
		},
	}, opts)
}

func buildPlanAdapterPrompt(in *Context) (string, error) {
	plan := make([]string, 0, len(in.Hints.PlanSteps))
	for _, step := range in.Hints.PlanSteps {
		marker := ""
		if step.StepID == in.CurrentStep {
			marker = " (current)"
		}
		plan = append(plan, fmt.Sprintf("Step %d: %s - %s%s", step.StepID, step.Type, step.Concept, marker))
	}
	pace := string(in.Hints.Pace)
	if pace == "" {
		pace = string(domain.PaceNormal)
	}
	d := prompt.PlanAdapterData{
		CurrentPlan:       plan,
		Mastery:           in.Hints.Mastery,
		StuckPoints:       in.Hints.StuckPoints,
		Pace:              pace,
		Misconceptions:    in.Hints.Misconceptions,
		RecentPerformance: valueOr(in.Hints.SessionNarrative, "No turns yet"),
	}
	if req, ok := in.Hints.Requirements.(*PlanAdapterRequirements); ok && req != nil {
		d.HasRequirements = true
		d.Trigger = valueOr(req.AdaptationTrigger, "pace_mismatch")
		d.Urgency = valueOr(req.Urgency, "low")
		d.ConsiderSkipping = req.ConsiderSkipping
		d.ConsiderRemediation = req.ConsiderRemediation
	}
	return prompt.Render(prompt.PlanAdapter, d)
}
