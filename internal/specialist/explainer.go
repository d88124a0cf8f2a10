package specialist

import (
	"github.com/ashureev/tutorlabs/internal/prompt"
)

// NewExplainer builds the explainer. It produces first explanations,
// clarifications and re-teaching, depending on what the context asks for.
func NewExplainer(opts Options) (Specialist, error) {
	return newAgent[ExplainerOutput](definition[ExplainerOutput]{
		kind:       Explainer,
		schemaName: "ExplainerOutput",
		build:      buildExplainerPrompt,
	}, opts)
}

func buildExplainerPrompt(in *Context) (string, error) {
	if req, ok := in.Hints.Requirements.(*ExplainerRequirements); ok && req != nil {
		return prompt.Render(prompt.ExplainerEnriched, enrichedExplainerData(in, req))
	}
	if in.Hints.IsClarification {
		level := in.Hints.MasteryLevel
		if level == "" {
			level = "developing"
		}
		return prompt.Render(prompt.Clarification, prompt.ClarificationData{
			Concept:             in.concept(),
			StudentMessage:      in.StudentMessage,
			PreviousExplanation: in.Hints.PreviousExplanation,
			MasteryLevel:        level,
			Grade:               in.StudentGrade,
			LanguageLevel:       in.LanguageLevel,
			PreferredExamples:   in.preferredExamples(),
		})
	}
	return prompt.Render(prompt.Explainer, prompt.ExplainerData{
		Concept:              in.concept(),
		ContentHint:          in.Hints.ContentHint,
		Grade:                in.StudentGrade,
		LanguageLevel:        in.LanguageLevel,
		PreferredExamples:    in.preferredExamples(),
		CommonMisconceptions: in.Hints.CommonMisconceptions,
		PreviousExamples:     in.Hints.PreviousExamples,
	})
}

func enrichedExplainerData(in *Context, req *ExplainerRequirements) prompt.ExplainerEnrichedData {
	d := prompt.ExplainerEnrichedData{
		TriggerReason:        valueOr(req.TriggerReason, "unknown"),
		TriggerDetails:       req.TriggerDetails,
		FocusArea:            valueOr(req.FocusArea, "the concept"),
		ConfusionPoint:       deref(req.StudentConfusionPoint),
		RecommendedApproach:  valueOr(req.RecommendedApproach, "step_by_step"),
		AvoidApproaches:      req.AvoidApproaches,
		SessionNarrative:     valueOr(req.SessionNarrative, in.Hints.SessionNarrative),
		RecentResponses:      req.RecentStudentResponses,
		FailedExplanations:   req.FailedExplanations,
		LengthGuidance:       valueOr(req.LengthGuidance, "moderate"),
		ToneGuidance:         valueOr(req.ToneGuidance, "encouraging"),
		IncludeCheckQuestion: req.IncludeCheckQuestion,
		Clarification:        clarificationTriggers[req.TriggerReason] || in.Hints.IsClarification,
		Grade:                in.StudentGrade,
		LanguageLevel:        in.LanguageLevel,
		PreferredExamples:    in.preferredExamples(),
	}
	if d.SessionNarrative == "" {
		d.SessionNarrative = "Session in progress"
	}
	return d
}

func valueOr(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
