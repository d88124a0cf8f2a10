package prompt

var sources = map[Name]string{
	Safety: `
Analyze this message for safety or policy violations in an educational setting.

Message: "{{.Message}}"
Context: {{.Context}}

Check for:
- Inappropriate language
- Harmful content
- Sharing of personal information
- Bullying or harassment
- Deliberate attempts to derail the lesson

Set violation_type and guidance to null when the message is safe.
When it is unsafe, guidance is a short, kind message shown to the student.
`,

	Explainer: `
Generate an explanation of the concept "{{.Concept}}" for a Grade {{.Grade}} student.

Student context:
- Language level: {{.LanguageLevel}}
- Preferred examples: {{join .PreferredExamples ", "}}

Teaching guidance:
- Content hint: {{dflt "None" .ContentHint}}
- Common misconceptions to address:
{{bullets .CommonMisconceptions}}

Examples already used (do not repeat them):
{{bullets .PreviousExamples}}

Use clear language, include a relatable example or analogy, highlight the
key points and end with a short check for understanding.
`,

	Clarification: `
The student needs clarification on "{{.Concept}}".

Their confusion or question: "{{.StudentMessage}}"

Previous explanation given:
{{dflt "None" .PreviousExplanation}}

Current mastery level: {{.MasteryLevel}}
Grade: {{.Grade}}, language level: {{.LanguageLevel}}
Preferred examples: {{join .PreferredExamples ", "}}

Explain the concept a different way: use a new analogy, break it into
smaller steps and address the specific confusion directly.
`,

	ExplainerEnriched: `
You are explaining a concept following strategic requirements from the lesson orchestrator.

## Your task
Why you are being called: {{.TriggerReason}}
{{.TriggerDetails}}
{{- if .Clarification}}
This is a clarification. The student has already met this concept: address their confusion directly,
come at it from a different angle than before and keep it shorter than a first explanation.
{{- end}}

Focus area: {{.FocusArea}}
{{- if .ConfusionPoint}}
Student's confusion: {{.ConfusionPoint}}
{{- end}}

## Strategy
Recommended approach: {{.RecommendedApproach}}
{{- if .AvoidApproaches}}
Avoid these approaches: {{join .AvoidApproaches ", "}}
{{- end}}
{{- if .FailedExplanations}}
Explanations that did not work:
{{bullets .FailedExplanations}}
{{- end}}

## Session so far
{{.SessionNarrative}}

Recent student responses:
{{bullets .RecentResponses}}

## Constraints
- Length: {{.LengthGuidance}} (brief = 2-3 sentences, moderate = a paragraph, thorough = several paragraphs)
- Tone: {{.ToneGuidance}}
- Include a check question: {{.IncludeCheckQuestion}}

## Student profile
- Grade: {{.Grade}}
- Language level: {{.LanguageLevel}}
- Likes examples from: {{join .PreferredExamples ", "}}
`,

	Assessor: `
Generate a {{dflt "conceptual" .QuestionType}} question to assess understanding of "{{.Concept}}".

Student context:
- Grade: {{.Grade}}
- Language level: {{.LanguageLevel}}

Difficulty: {{.Difficulty}}
Question count: {{.QuestionCount}}
{{- if .Purpose}}
Purpose: {{.Purpose}}
Expected time to answer: {{.ExpectedTime}}
Concepts to test: {{join .ConceptsToTest ", "}}
{{- if .AvoidQuestionTypes}}
Avoid question types: {{join .AvoidQuestionTypes ", "}}
{{- end}}
{{- end}}

Previous questions (do not repeat them):
{{bullets .PreviousQuestions}}

The question must be age appropriate, unambiguous and have a definite
correct answer. Provide hints for a struggling student.
`,

	Evaluator: `
Evaluate the student's response to a question about "{{.Concept}}".

Question asked: {{dflt "None" .Question}}
Expected answer: {{dflt "None" .ExpectedAnswer}}
Rubric: {{dflt "None" .Rubric}}

Student's response: "{{.StudentResponse}}"
{{- if .Focus}}

Evaluation focus: {{.Focus}}
Expected mastery level: {{.ExpectedMasteryLevel}}
Be lenient: {{.BeLenient}}
{{- if .LookFor}}
Check specifically for this misconception: {{.LookFor}}
{{- end}}
{{- if .ConceptsJustTaught}}
Concepts just taught: {{join .ConceptsJustTaught ", "}}
{{- end}}
{{- end}}

Decide whether the answer is correct, score it between 0.0 and 1.0, give
constructive feedback, list any misconceptions it reveals and choose a
mastery signal of strong, adequate or needs_remediation.
`,

	TopicSteering: `
The student sent an off-topic message during a lesson on "{{.CurrentTopic}}".

Off-topic message: "{{.Message}}"
Lesson context: {{.LessonContext}}
{{- if .HasRequirements}}

Severity: {{.Severity}}
Acknowledge the message: {{.Acknowledge}}
Firmness: {{.Firmness}}
{{- end}}

Write a brief, friendly reply that acknowledges the message when
appropriate and gently brings the student back to the lesson.
`,

	PlanAdapter: `
Analyze the student's progress and recommend study plan adjustments.

Current plan:
{{bullets .CurrentPlan}}

Student progress:
- Mastery:
{{mastery .Mastery}}
- Stuck points:
{{bullets .StuckPoints}}
- Current pace: {{.Pace}}
- Misconceptions:
{{bullets .Misconceptions}}

Recent performance: {{.RecentPerformance}}
{{- if .HasRequirements}}

Adaptation trigger: {{.Trigger}}
Urgency: {{.Urgency}}
Consider skipping steps: {{.ConsiderSkipping}}
Consider remediation: {{.ConsiderRemediation}}
{{- end}}

Decide whether to slow down or speed up, which step ids need remediation
and which can be skipped.
`,

	Decision: `
You are the Teacher Orchestrator of an AI tutoring system.
Make ONE strategic decision for this turn: classify the student's intent,
choose which specialists to call and give each of them specific requirements.

## Current situation
Student's message: "{{.StudentMessage}}"
Topic: {{.TopicName}}
Current concept: {{dflt "Unknown" .CurrentConcept}}
Current step: {{stepInfo .Step}}
Awaiting response to question: {{.AwaitingResponse}}
{{- with .LastQuestion}}
Question: {{.Question}}
Expected: {{.ExpectedAnswer}}
{{- end}}

## Session context
What has happened so far:
{{.SessionNarrative}}

Recent conversation:
{{history .RecentConversation}}

Student's mastery:
{{mastery .Mastery}}

Detected misconceptions:
{{bullets .Misconceptions}}

Progress trend: {{.ProgressTrend}}
Stuck points:
{{bullets .StuckPoints}}

## Already tried (avoid repetition)
Examples:
{{bullets .ExamplesUsed}}
Analogies:
{{bullets .AnalogiesUsed}}

## Student profile
- Grade: {{.Grade}}
- Language level: {{.LanguageLevel}}
- Preferred examples: {{join .PreferredExamples ", "}}

## Available specialists
{{.Capabilities}}

## Your decision
1. intent: answer, question, confusion, off_topic or continuation.
2. specialists_to_call: at least one specialist that handles the intent.
3. execution_strategy: use sequential when a specialist depends on another
   one's result (an explanation after evaluating a wrong answer), parallel otherwise.
4. requirements: fill the requirements object of every specialist you call
   and set the others to null. Be specific and actionable: name the exact
   focus, the approach to use and what to avoid.
5. overall_strategy and expected_outcome for the turn.
`,

	IntentClassifier: `
You are analyzing a student message in a tutoring session.

Current context:
- Topic: {{.TopicName}}
- Current concept: {{dflt "Unknown" .CurrentConcept}}
- Current step type: {{dflt "unknown" .StepType}}
- Awaiting response to question: {{.AwaitingResponse}}
- Recent conversation summary: {{.ConversationSummary}}

Student's message: "{{.StudentMessage}}"

Classify the intent as ONE of:
- answer: answering a question or responding to what was asked
- question: asking for clarification or help about the topic
- confusion: saying they do not understand or need another explanation
- off_topic: unrelated to the lesson
- unsafe: inappropriate, harmful or policy-violating content
- continuation: ready to proceed (yes, ok, continue) or an empty reply

When a response is awaited and the message looks like an attempt to answer,
classify it as answer. Questions about the current topic are question, not off_topic.
`,

	Composer: `
You are composing a tutor reply from specialist outputs.

Student context:
- Grade: {{.Grade}}
- Language level: {{.LanguageLevel}}
- Topic: {{.TopicName}}
- Current concept: {{dflt "Unknown" .CurrentConcept}}

Student's message: "{{.StudentMessage}}"
Detected intent: {{.Intent}}

Specialist outputs:
{{.SpecialistOutputs}}

Write ONE natural reply in a warm, encouraging tone using {{.LanguageLevel}}
language. Be constructive with feedback, keep explanations clear, and if a
question is provided put it naturally at the end. Do not mention the
specialists, do not repeat yourself and keep it short.
`,

	TurnSummary: `
Summarize this tutoring turn in ONE concise sentence (max 80 characters).
Focus on what happened and the outcome.

Turn {{.Turn}}:
Student said: "{{clip 150 .StudentMessage}}"
Intent: {{.Intent}}
What happened: {{.WhatHappened}}
Tutor replied: "{{clip 200 .Response}}"

Examples:
- Explained fractions using pizza slices
- Student answered 1/4 vs 1/2 correctly
- Student went off-topic, gently redirected

Summary:
`,

	Welcome: `
You are a friendly tutor starting a session with a Grade {{.Grade}} student.

Topic: {{.TopicName}}
Subject: {{.Subject}}
Learning objectives:
{{bullets .Objectives}}

Student preferences:
- Language level: {{.LanguageLevel}}
- Preferred examples: {{join .PreferredExamples ", "}}

Write a warm welcome of 2-3 sentences that greets the student, introduces
the topic, previews what they will learn and asks if they are ready to
begin. Use {{.LanguageLevel}} language. Do not use emojis.
`,
}
