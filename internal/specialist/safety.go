package specialist

import (
	"fmt"

	"github.com/ashureev/tutorlabs/internal/prompt"
)

// NewSafety builds the safety checker. It runs before anything else on
// every turn.
func NewSafety(opts Options) (Specialist, error) {
	return newAgent[SafetyOutput](definition[SafetyOutput]{
		kind:       Safety,
		schemaName: "SafetyOutput",
		build:      buildSafetyPrompt,
	}, opts)
}

func buildSafetyPrompt(in *Context) (string, error) {
	topic := in.Hints.TopicName
	if topic == "" {
		topic = "a school subject"
	}
	return prompt.Render(prompt.Safety, prompt.SafetyData{
		Message: in.StudentMessage,
		Context: fmt.Sprintf("Tutoring session on %s with a Grade %d student", topic, in.StudentGrade),
	})
}
