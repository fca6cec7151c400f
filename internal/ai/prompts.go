package ai

import (
	"fmt"
	"strings"
)

// Prompt builders. Each one pins the exact JSON shape the matching schema
// validator expects; the model is configured for JSON output but the shape
// itself is enforced service-side.

func PlanPrompt(role, company, level, experience string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are an expert interview coach. Build an interview preparation plan for a candidate targeting the role of %q at %q.", role, company)
	if level != "" {
		fmt.Fprintf(&b, " Seniority level: %s.", level)
	}
	if experience != "" {
		fmt.Fprintf(&b, " Candidate experience: %s.", experience)
	}
	b.WriteString(`
Respond with a single JSON object, no prose, in exactly this shape:
{
  "study_topics": [{"title": string, "category": string, "priority": "high"|"medium"|"low", "resources": [string]}],
  "prepared_questions": [{"question": string, "answer": string, "category": string}],
  "practice_problems": [{"title": string, "statement": string, "difficulty": string, "hint": string}],
  "story_bank": [{"title": string, "situation": string, "action": string, "result": string}]
}
Every array must be non-empty.`)
	return b.String()
}

func MoreLearningPrompt(role, company string, existingTitles []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Generate additional study topics and prepared questions for a candidate targeting %q at %q.", role, company)
	if len(existingTitles) > 0 {
		fmt.Fprintf(&b, " Avoid duplicating these existing items: %s.", strings.Join(existingTitles, "; "))
	}
	b.WriteString(`
Respond with a single JSON object:
{
  "study_topics": [{"title": string, "category": string, "priority": "high"|"medium"|"low", "resources": [string]}],
  "prepared_questions": [{"question": string, "answer": string, "category": string}]
}`)
	return b.String()
}

func MorePracticePrompt(role, company string, existingTitles []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Generate additional practice problems for a candidate targeting %q at %q.", role, company)
	if len(existingTitles) > 0 {
		fmt.Fprintf(&b, " Avoid duplicating these existing items: %s.", strings.Join(existingTitles, "; "))
	}
	b.WriteString(`
Respond with a single JSON object:
{
  "practice_problems": [{"title": string, "statement": string, "difficulty": string, "hint": string}]
}`)
	return b.String()
}

func OpeningPrompt(role, company, interviewType, difficulty, resumeText string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are conducting a %s mock interview (difficulty: %s) for the role of %q at %q.", interviewType, difficulty, role, company)
	if resumeText != "" {
		fmt.Fprintf(&b, "\nCandidate resume:\n%s\n", clip(resumeText, 6000))
	}
	b.WriteString(`
Greet the candidate briefly and ask the first question. Respond with a single JSON object:
{"opening": string, "first_question": string}`)
	return b.String()
}

func NextQuestionPrompt(interviewType, difficulty, transcript string) string {
	return fmt.Sprintf(`You are conducting a %s mock interview (difficulty: %s). The conversation so far:
%s
Ask the single next question, reacting naturally to the candidate's last answer. Respond with a single JSON object:
{"next_question": string}`, interviewType, difficulty, transcript)
}

func WarningPrompt(interviewType, transcript string) string {
	return fmt.Sprintf(`You are observing a %s mock interview. The conversation so far:
%s
The candidate appears to be drifting off-topic or underperforming. Write one short, encouraging redirect suggestion. Respond with a single JSON object:
{"warning": string}`, interviewType, transcript)
}

func FeedbackPrompt(interviewType, difficulty, transcript string) string {
	return fmt.Sprintf(`The following %s mock interview (difficulty: %s) has ended:
%s
Write a structured feedback report. Respond with a single JSON object:
{
  "overall_score": number (0-100),
  "summary": string,
  "content_scores": [{"dimension": string, "score": number, "rationale": string}],
  "communication": {"clarity": number, "conciseness": number, "confidence": number, "filler_remark": string},
  "exemplars": [{"question": string, "answer": string}] (one or two entries),
  "strengths": [string],
  "improvements": [string]
}`, interviewType, difficulty, transcript)
}

func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
