// Package prompt renders the prompts sent to the completion model.
// Every template is parsed once at startup and rendered with a typed
// data struct; a missing field fails rendering instead of producing a
// prompt with a hole in it.
package prompt

import (
	"bytes"
	"fmt"
	"sort"
	"strings"
	"text/template"

	"github.com/ashureev/tutorlabs/internal/domain"
)

// Name identifies a template.
type Name string

// Template names.
const (
	Safety            Name = "safety"
	Explainer         Name = "explainer"
	ExplainerEnriched Name = "explainer_enriched"
	Clarification     Name = "clarification"
	Assessor          Name = "assessor"
	Evaluator         Name = "evaluator"
	TopicSteering     Name = "topic_steering"
	PlanAdapter       Name = "plan_adapter"
	Decision          Name = "orchestrator_decision"
	IntentClassifier  Name = "intent_classifier"
	Composer          Name = "response_composer"
	TurnSummary       Name = "turn_summary"
	Welcome           Name = "welcome_message"
)

var funcs = template.FuncMap{
	"bullets":  Bullets,
	"join":     strings.Join,
	"dflt":     orDefault,
	"mastery":  FormatMastery,
	"history":  FormatHistory,
	"clip":     Clip,
	"stepInfo": FormatStep,
}

var templates = func() map[Name]*template.Template {
	out := make(map[Name]*template.Template, len(sources))
	for name, src := range sources {
		out[name] = template.Must(template.New(string(name)).
			Option("missingkey=error").
			Funcs(funcs).
			Parse(strings.TrimSpace(src)))
	}
	return out
}()

// Render executes the named template with data.
func Render(name Name, data any) (string, error) {
	tmpl, ok := templates[name]
	if !ok {
		return "", fmt.Errorf("prompt: unknown template %q", name)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("prompt: render %s: %w", name, err)
	}
	return buf.String(), nil
}

// Bullets formats items as a dash list, or "None" when empty.
func Bullets(items []string) string {
	if len(items) == 0 {
		return "None"
	}
	lines := make([]string, len(items))
	for i, item := range items {
		lines[i] = "- " + item
	}
	return strings.Join(lines, "\n")
}

// FormatMastery lists concept scores in a stable order.
func FormatMastery(mastery map[string]float64) string {
	if len(mastery) == 0 {
		return "No mastery data yet"
	}
	concepts := make([]string, 0, len(mastery))
	for c := range mastery {
		concepts = append(concepts, c)
	}
	sort.Strings(concepts)
	lines := make([]string, len(concepts))
	for i, c := range concepts {
		lines[i] = fmt.Sprintf("  %s: %.1f", c, mastery[c])
	}
	return strings.Join(lines, "\n")
}

// FormatHistory renders the conversation window as "Role: content" lines.
func FormatHistory(msgs []domain.Message) string {
	if len(msgs) == 0 {
		return "No conversation yet"
	}
	lines := make([]string, len(msgs))
	for i, m := range msgs {
		role := "Student"
		if m.Role == domain.RoleTeacher {
			role = "Tutor"
		}
		lines[i] = role + ": " + m.Content
	}
	return strings.Join(lines, "\n")
}

// FormatStep renders a study plan step for prompts.
func FormatStep(step *domain.StudyPlanStep) string {
	if step == nil {
		return "Unknown step"
	}
	return fmt.Sprintf("Step %d: %s - %s", step.StepID, step.Type, step.Concept)
}

// Clip shortens s to at most n runes.
func Clip(n int, s string) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func orDefault(def, s string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
