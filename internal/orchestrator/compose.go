package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ashureev/tutorlabs/internal/domain"
	"github.com/ashureev/tutorlabs/internal/llm"
	"github.com/ashureev/tutorlabs/internal/prompt"
	"github.com/ashureev/tutorlabs/internal/specialist"
)

var errEmptyReply = errors.New("composer returned an empty reply")

// composeReply renders the synthesis prompt and asks for a free-text
// reply. It fails when nothing usable came back, leaving the fallback to
// the caller.
func (o *Orchestrator) composeReply(ctx context.Context, s *domain.Session, in *specialist.Context, intent Intent, res *Results) (reply, rendered string, err error) {
	outputs := FormatOutputs(res)
	if strings.TrimSpace(outputs) == "" {
		return "", "", errors.New("no specialist output to compose")
	}
	topic := in.Hints.TopicName
	if topic == "" {
		topic = "the topic"
	}
	concept := in.CurrentConcept
	if concept == "" {
		concept = "the topic"
	}
	rendered, err = prompt.Render(prompt.Composer, prompt.ComposerData{
		Grade:             s.Student.Grade,
		LanguageLevel:     string(s.Student.LanguageLevel),
		TopicName:         topic,
		CurrentConcept:    concept,
		StudentMessage:    in.StudentMessage,
		Intent:            string(intent),
		SpecialistOutputs: outputs,
	})
	if err != nil {
		return "", "", err
	}
	result, err := o.client.Complete(ctx, llm.Request{
		Prompt: rendered,
		Effort: llm.EffortLow,
		Caller: "orchestrator:composer",
		TurnID: in.TurnID,
	})
	if err != nil {
		return "", rendered, fmt.Errorf("compose reply: %w", err)
	}
	reply = strings.TrimSpace(result.Text)
	if reply == "" {
		return "", rendered, errEmptyReply
	}
	return reply, rendered, nil
}

// FormatOutputs renders the key fields of every present output as
// "--- NAME ---" sections in dispatch order.
func FormatOutputs(res *Results) string {
	var b strings.Builder
	for _, k := range res.called {
		out := res.Get(k)
		if out == nil {
			continue
		}
		fmt.Fprintf(&b, "--- %s ---\n", strings.ToUpper(k.String()))
		switch o := out.(type) {
		case *specialist.EvaluatorOutput:
			fmt.Fprintf(&b, "Is Correct: %t\n", o.IsCorrect)
			fmt.Fprintf(&b, "Feedback: %s\n", o.Feedback)
			if len(o.Misconceptions) > 0 {
				fmt.Fprintf(&b, "Misconceptions: %s\n", strings.Join(o.Misconceptions, ", "))
			}
		case *specialist.ExplainerOutput:
			fmt.Fprintf(&b, "Explanation: %s\n", o.Explanation)
			if len(o.Examples) > 0 {
				fmt.Fprintf(&b, "Examples: %s\n", strings.Join(o.Examples, "; "))
			}
		case *specialist.AssessorOutput:
			fmt.Fprintf(&b, "Question: %s\n", o.Question)
		case *specialist.TopicSteeringOutput:
			if o.BriefResponse != nil && *o.BriefResponse != "" {
				fmt.Fprintf(&b, "Acknowledgment: %s\n", *o.BriefResponse)
			}
			fmt.Fprintf(&b, "Redirect: %s\n", o.RedirectMessage)
		case *specialist.PlanAdapterOutput, *specialist.SafetyOutput:
		}
		b.WriteString("\n")
	}
	return b.String()
}

// FallbackResponse is the deterministic reply used when no specialist
// produced output or composition failed. It is never empty.
func FallbackResponse(s *domain.Session, intent Intent) string {
	step := s.CurrentStepInfo()
	concept := "the topic"
	if step != nil {
		concept = step.Concept
	}
	switch intent {
	case IntentContinuation:
		switch {
		case step == nil:
			return "Let's continue with our lesson!"
		case step.Type == domain.StepExplain:
			return fmt.Sprintf("Great! Let's continue learning about %s.", concept)
		default:
			return fmt.Sprintf("Let me ask you a question about %s to check your understanding.", concept)
		}
	case IntentConfusion:
		return fmt.Sprintf("I understand this can be tricky. Let me explain %s in a different way.", concept)
	case IntentQuestion:
		return "That's a great question! Let me help clarify."
	default:
		return "Let's keep going with our lesson. What would you like to learn about next?"
	}
}
