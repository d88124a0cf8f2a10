package specialist

import (
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/ashureev/tutorlabs/internal/prompt"
)

// NewTopicSteering builds the off-topic redirector.
func NewTopicSteering(opts Options) (Specialist, error) {
	return newAgent[TopicSteeringOutput](definition[TopicSteeringOutput]{
		kind:       TopicSteering,
		schemaName: "TopicSteeringOutput",
		build:      buildTopicSteeringPrompt,
		shape: func(s *jsonschema.Schema) error {
			return SetEnum(s, []string{"low", "medium", "high"}, "severity")
		},
	}, opts)
}

func buildTopicSteeringPrompt(in *Context) (string, error) {
	topic := in.Hints.TopicName
	if topic == "" {
		topic = "the lesson"
	}
	lesson := fmt.Sprintf("Step %d", in.CurrentStep)
	if in.Hints.StepType != "" {
		lesson += fmt.Sprintf(" (%s)", in.Hints.StepType)
	}
	if in.CurrentConcept != "" {
		lesson += " on " + in.CurrentConcept
	}
	d := prompt.TopicSteeringData{
		CurrentTopic:  topic,
		Message:       in.StudentMessage,
		LessonContext: lesson,
	}
	if req, ok := in.Hints.Requirements.(*TopicSteeringRequirements); ok && req != nil {
		d.HasRequirements = true
		d.Severity = valueOr(req.OffTopicSeverity, "mild")
		d.Acknowledge = req.AcknowledgeMessage
		d.Firmness = valueOr(req.FirmnessLevel, "gentle")
	}
	return prompt.Render(prompt.TopicSteering, d)
}
