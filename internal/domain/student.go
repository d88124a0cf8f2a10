package domain

// LanguageLevel controls vocabulary in generated explanations.
type LanguageLevel string

// Language levels.
const (
	LanguageSimple   LanguageLevel = "simple"
	LanguageStandard LanguageLevel = "standard"
	LanguageAdvanced LanguageLevel = "advanced"
)

// StudentContext is the learner profile attached to a session.
type StudentContext struct {
	Grade             int           `json:"grade"`
	Board             string        `json:"board"`
	LanguageLevel     LanguageLevel `json:"language_level"`
	PreferredExamples []string      `json:"preferred_examples"`
}

// DefaultStudentContext returns the profile used when the client sends none.
func DefaultStudentContext() StudentContext {
	return StudentContext{
		Grade:             5,
		Board:             "CBSE",
		LanguageLevel:     LanguageStandard,
		PreferredExamples: []string{"food", "sports", "games"},
	}
}

// Normalize fills missing fields with defaults and clamps the grade.
func (c StudentContext) Normalize() StudentContext {
	d := DefaultStudentContext()
	if c.Grade < 1 || c.Grade > 12 {
		c.Grade = d.Grade
	}
	if c.Board == "" {
		c.Board = d.Board
	}
	switch c.LanguageLevel {
	case LanguageSimple, LanguageStandard, LanguageAdvanced:
	default:
		c.LanguageLevel = d.LanguageLevel
	}
	if len(c.PreferredExamples) == 0 {
		c.PreferredExamples = d.PreferredExamples
	}
	return c
}
