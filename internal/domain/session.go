// Package domain holds the tutoring session model: topics, study plans,
// student profiles, mastery and the conversation window.
package domain

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultMaxHistory is the conversation window kept on a session.
const DefaultMaxHistory = 10

// MaxTimelineEntries bounds the rolling turn narrative.
const MaxTimelineEntries = 30

// Role identifies who sent a conversation message.
type Role string

// Conversation roles.
const (
	RoleStudent Role = "student"
	RoleTeacher Role = "teacher"
)

// Message is one entry of the bounded conversation history.
type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Misconception is a misunderstanding detected by the evaluator.
type Misconception struct {
	Concept     string    `json:"concept"`
	Description string    `json:"description"`
	DetectedAt  time.Time `json:"detected_at"`
	Resolved    bool      `json:"resolved"`
}

// Question is the check question the student is expected to answer.
type Question struct {
	Question       string   `json:"question"`
	ExpectedAnswer string   `json:"expected_answer"`
	Rubric         string   `json:"rubric"`
	Hints          []string `json:"hints"`
	HintsUsed      int      `json:"hints_used"`
}

// Trend is the coarse direction of a student's progress.
type Trend string

// Progress trends.
const (
	TrendImproving  Trend = "improving"
	TrendSteady     Trend = "steady"
	TrendStruggling Trend = "struggling"
)

// Pace is the tempo the plan adapter asked for.
type Pace string

// Paces.
const (
	PaceSlow   Pace = "slow"
	PaceNormal Pace = "normal"
	PaceFast   Pace = "fast"
)

// Valid reports whether p is one of the known paces.
func (p Pace) Valid() bool {
	switch p {
	case PaceSlow, PaceNormal, PaceFast:
		return true
	}
	return false
}

// SessionSummary is the rolling memory the decision engine reads.
type SessionSummary struct {
	TurnTimeline   []string `json:"turn_timeline"`
	ExamplesUsed   []string `json:"examples_used"`
	AnalogiesUsed  []string `json:"analogies_used"`
	StuckPoints    []string `json:"stuck_points"`
	ConceptsTaught []string `json:"concepts_taught"`
	ProgressTrend  Trend    `json:"progress_trend"`
}

// Session is the aggregate root of one tutoring conversation.
// It is mutated only by the turn pipeline.
type Session struct {
	SessionID string    `json:"session_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	TurnCount int       `json:"turn_count"`

	Topic       *Topic         `json:"topic,omitempty"`
	CurrentStep int            `json:"current_step"`
	Student     StudentContext `json:"student_context"`

	Mastery        map[string]float64 `json:"mastery"`
	Misconceptions []Misconception    `json:"misconceptions"`
	WeakAreas      []string           `json:"weak_areas"`
	PacePreference Pace               `json:"pace_preference"`

	CurrentQuestion  *Question `json:"current_question,omitempty"`
	AwaitingResponse bool      `json:"awaiting_response"`

	Summary SessionSummary `json:"session_summary"`

	OffTopicCount int      `json:"off_topic_count"`
	WarningCount  int      `json:"warning_count"`
	SafetyFlags   []string `json:"safety_flags"`

	ConversationHistory []Message `json:"conversation_history"`
	MaxHistory          int       `json:"max_history"`
}

// NewSessionID returns an opaque id of the form sess_<12 hex>.
func NewSessionID() string {
	return "sess_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

// NewSession starts a session against topic. Every plan concept starts
// at zero mastery and the cursor points at the first step.
func NewSession(topic *Topic, student StudentContext) *Session {
	now := time.Now().UTC()
	s := &Session{
		SessionID:      NewSessionID(),
		CreatedAt:      now,
		UpdatedAt:      now,
		Topic:          topic,
		CurrentStep:    1,
		Student:        student.Normalize(),
		Mastery:        make(map[string]float64),
		PacePreference: PaceNormal,
		Summary:        SessionSummary{ProgressTrend: TrendSteady},
		MaxHistory:     DefaultMaxHistory,
	}
	if topic != nil {
		for _, step := range topic.StudyPlan.Steps {
			s.Mastery[step.Concept] = 0.0
		}
	}
	return s
}

// Touch bumps the update timestamp.
func (s *Session) Touch() {
	s.UpdatedAt = time.Now().UTC()
}

// AddMessage appends to the conversation window, dropping the oldest
// entries beyond MaxHistory.
func (s *Session) AddMessage(role Role, content string) {
	s.ConversationHistory = append(s.ConversationHistory, Message{
		Role:      role,
		Content:   content,
		Timestamp: time.Now().UTC(),
	})
	limit := s.MaxHistory
	if limit <= 0 {
		limit = DefaultMaxHistory
	}
	if n := len(s.ConversationHistory); n > limit {
		s.ConversationHistory = append([]Message(nil), s.ConversationHistory[n-limit:]...)
	}
	s.Touch()
}

// RecentMessages returns the last n history entries.
func (s *Session) RecentMessages(n int) []Message {
	if n >= len(s.ConversationHistory) {
		return s.ConversationHistory
	}
	return s.ConversationHistory[len(s.ConversationHistory)-n:]
}

// TotalSteps returns the number of study plan steps.
func (s *Session) TotalSteps() int {
	if s.Topic == nil {
		return 0
	}
	return len(s.Topic.StudyPlan.Steps)
}

// CurrentStepInfo returns the step under the cursor, or nil when the
// plan is finished or absent.
func (s *Session) CurrentStepInfo() *StudyPlanStep {
	if s.Topic == nil {
		return nil
	}
	return s.Topic.StudyPlan.Step(s.CurrentStep)
}

// CurrentConcept returns the concept of the current step, or "".
func (s *Session) CurrentConcept() string {
	if step := s.CurrentStepInfo(); step != nil {
		return step.Concept
	}
	return ""
}

// AdvanceStep moves the cursor forward. It is a no-op on the last step.
func (s *Session) AdvanceStep() bool {
	if s.CurrentStep < s.TotalSteps() {
		s.CurrentStep++
		return true
	}
	return false
}

// IsComplete reports whether the cursor is beyond the last step.
func (s *Session) IsComplete() bool {
	return s.CurrentStep > s.TotalSteps()
}

// ProgressPercentage is the share of completed steps, capped at 100.
func (s *Session) ProgressPercentage() float64 {
	total := s.TotalSteps()
	if total == 0 {
		return 0
	}
	pct := float64(s.CurrentStep-1) / float64(total) * 100
	if pct > 100 {
		return 100
	}
	if pct < 0 {
		return 0
	}
	return pct
}

// OverallMastery is the unweighted mean over all concepts.
func (s *Session) OverallMastery() float64 {
	if len(s.Mastery) == 0 {
		return 0
	}
	var sum float64
	for _, m := range s.Mastery {
		sum += m
	}
	return sum / float64(len(s.Mastery))
}

// SetQuestion installs a current question and marks the session as
// awaiting a response.
func (s *Session) SetQuestion(q Question) {
	s.CurrentQuestion = &q
	s.AwaitingResponse = true
}

// ClearQuestion drops the current question together with the awaiting flag.
func (s *Session) ClearQuestion() {
	s.CurrentQuestion = nil
	s.AwaitingResponse = false
}

// AddMisconception records an unresolved misconception and marks the
// concept as a weak area.
func (s *Session) AddMisconception(concept, description string) {
	s.Misconceptions = append(s.Misconceptions, Misconception{
		Concept:     concept,
		Description: description,
		DetectedAt:  time.Now().UTC(),
	})
	s.WeakAreas = appendUnique(s.WeakAreas, concept)
}

// AddTurnSummary appends "Turn n: summary" to the timeline, keeping the
// most recent MaxTimelineEntries.
func (s *SessionSummary) AddTurnSummary(turn int, summary string) {
	s.TurnTimeline = append(s.TurnTimeline, "Turn "+strconv.Itoa(turn)+": "+summary)
	if n := len(s.TurnTimeline); n > MaxTimelineEntries {
		s.TurnTimeline = append([]string(nil), s.TurnTimeline[n-MaxTimelineEntries:]...)
	}
}

// AddExamples merges examples, skipping ones already used.
func (s *SessionSummary) AddExamples(examples ...string) {
	for _, e := range examples {
		s.ExamplesUsed = appendUnique(s.ExamplesUsed, e)
	}
}

// AddAnalogies merges analogies, skipping ones already used.
func (s *SessionSummary) AddAnalogies(analogies ...string) {
	for _, a := range analogies {
		s.AnalogiesUsed = appendUnique(s.AnalogiesUsed, a)
	}
}

// AddStuckPoint records a stuck point once.
func (s *SessionSummary) AddStuckPoint(point string) {
	s.StuckPoints = appendUnique(s.StuckPoints, point)
}

// AddConceptTaught records a concept once.
func (s *SessionSummary) AddConceptTaught(concept string) {
	s.ConceptsTaught = appendUnique(s.ConceptsTaught, concept)
}

// RecentTimeline returns the last n timeline entries.
func (s *SessionSummary) RecentTimeline(n int) []string {
	if n >= len(s.TurnTimeline) {
		return s.TurnTimeline
	}
	return s.TurnTimeline[len(s.TurnTimeline)-n:]
}

// Clone returns a deep copy. The topic is shared since it is read-only.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	c.Mastery = make(map[string]float64, len(s.Mastery))
	for k, v := range s.Mastery {
		c.Mastery[k] = v
	}
	c.Misconceptions = cloneSlice(s.Misconceptions)
	c.WeakAreas = cloneSlice(s.WeakAreas)
	c.SafetyFlags = cloneSlice(s.SafetyFlags)
	c.ConversationHistory = cloneSlice(s.ConversationHistory)
	c.Student.PreferredExamples = cloneSlice(s.Student.PreferredExamples)
	if s.CurrentQuestion != nil {
		q := *s.CurrentQuestion
		q.Hints = cloneSlice(q.Hints)
		c.CurrentQuestion = &q
	}
	c.Summary = SessionSummary{
		TurnTimeline:   cloneSlice(s.Summary.TurnTimeline),
		ExamplesUsed:   cloneSlice(s.Summary.ExamplesUsed),
		AnalogiesUsed:  cloneSlice(s.Summary.AnalogiesUsed),
		StuckPoints:    cloneSlice(s.Summary.StuckPoints),
		ConceptsTaught: cloneSlice(s.Summary.ConceptsTaught),
		ProgressTrend:  s.Summary.ProgressTrend,
	}
	return &c
}

func cloneSlice[T any](in []T) []T {
	if in == nil {
		return nil
	}
	out := make([]T, len(in))
	copy(out, in)
	return out
}

func appendUnique(list []string, v string) []string {
	if v == "" {
		return list
	}
	for _, existing := range list {
		if existing == v {
			return list
		}
	}
	return append(list, v)
}
