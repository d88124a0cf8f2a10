package specialist

import (
	"fmt"

	"github.com/ashureev/tutorlabs/internal/llm"
)

// Kind identifies one of the fixed specialists.
type Kind int

// Specialist kinds. Safety always runs first and is never chosen by the
// decision engine; the others are dispatchable.
const (
	Safety Kind = iota
	Explainer
	Evaluator
	Assessor
	TopicSteering
	PlanAdapter

	kindCount
)

var kindNames = [kindCount]string{
	Safety:        "safety",
	Explainer:     "explainer",
	Evaluator:     "evaluator",
	Assessor:      "assessor",
	TopicSteering: "topic_steering",
	PlanAdapter:   "plan_adapter",
}

func (k Kind) String() string {
	if k < 0 || k >= kindCount {
		return fmt.Sprintf("kind(%d)", int(k))
	}
	return kindNames[k]
}

// ParseKind maps a wire name to a Kind.
func ParseKind(s string) (Kind, bool) {
	for k, name := range kindNames {
		if name == s {
			return Kind(k), true
		}
	}
	return 0, false
}

// Dispatchable reports whether the decision engine may select k.
func (k Kind) Dispatchable() bool {
	return k > Safety && k < kindCount
}

// DispatchableKinds lists the kinds the decision engine may select.
func DispatchableKinds() []Kind {
	return []Kind{Explainer, Evaluator, Assessor, TopicSteering, PlanAdapter}
}

// DispatchableNames lists the wire names of DispatchableKinds.
func DispatchableNames() []string {
	kinds := DispatchableKinds()
	out := make([]string, len(kinds))
	for i, k := range kinds {
		out[i] = k.String()
	}
	return out
}

// DefaultEffort is the reasoning effort each specialist runs with.
func DefaultEffort(k Kind) llm.ReasoningEffort {
	switch k {
	case Evaluator, PlanAdapter:
		return llm.EffortMedium
	case Explainer:
		return llm.EffortLow
	default:
		return llm.EffortNone
	}
}

// Capabilities describes the dispatchable specialists for the decision prompt.
func Capabilities() string {
	return `- explainer: generate explanations, clarifications and teaching content
- evaluator: assess student responses, detect misconceptions, estimate mastery
- assessor: generate practice questions and assessments
- topic_steering: handle off-topic messages and redirect to the lesson
- plan_adapter: adjust the study plan based on progress signals`
}
