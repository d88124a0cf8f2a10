package specialist

import (
	"github.com/ashureev/tutorlabs/internal/prompt"
)

// NewAssessor builds the question generator.
func NewAssessor(opts Options) (Specialist, error) {
	return newAgent[AssessorOutput](definition[AssessorOutput]{
		kind:       Assessor,
		schemaName: "AssessorOutput",
		build:      buildAssessorPrompt,
	}, opts)
}

func buildAssessorPrompt(in *Context) (string, error) {
	count := in.Hints.QuestionCount
	if count <= 0 {
		count = 1
	}
	d := prompt.AssessorData{
		Concept:           in.concept(),
		QuestionType:      in.Hints.QuestionType,
		QuestionCount:     count,
		Difficulty:        "medium",
		PreviousQuestions: in.Hints.PreviousQuestions,
		Grade:             in.StudentGrade,
		LanguageLevel:     in.LanguageLevel,
	}
	if req, ok := in.Hints.Requirements.(*AssessorRequirements); ok && req != nil {
		d.Difficulty = valueOr(req.DifficultyLevel, d.Difficulty)
		d.Purpose = valueOr(req.QuestionPurpose, "quick_check")
		d.ConceptsToTest = req.ConceptsToTest
		if len(d.ConceptsToTest) == 0 {
			d.ConceptsToTest = []string{d.Concept}
		}
		d.AvoidQuestionTypes = req.AvoidQuestionTypes
		d.ExpectedTime = valueOr(req.ExpectedTimeToAnswer, "quick")
	}
	return prompt.Render(prompt.Assessor, d)
}
