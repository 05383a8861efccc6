package simplify

import (
	"fmt"
	"strings"

	"github.com/AkhilKas/patient-comm-assistant/internal/readability"
)

const SystemPrompt = `You are a helpful medical communication assistant. Your job is to help patients understand their medical information by explaining it in simple, clear language.

Guidelines:
- Use simple words that an 8th grader can understand
- Avoid medical jargon - if you must use a medical term, explain it
- Use short sentences (under 20 words when possible)
- Be warm and reassuring, but accurate
- Use "you" and "your" to speak directly to the patient
- Break complex information into small, digestible pieces
- Use everyday comparisons when helpful
- Never change medication names, dosages, or other numbers`

const simplifyPromptTemplate = `Please simplify the following medical text so that a patient with an 8th-grade reading level can easily understand it.

Keep all the important medical information but explain it in plain, simple language. If there are medical terms, briefly explain what they mean. Keep every medication name, dosage, and number exactly as written.

Medical text to simplify:
---
%s
---

Simplified version:`

func simplifyPrompt(text string) string {
	return fmt.Sprintf(simplifyPromptTemplate, text)
}

// refinePrompt feeds back which readability gate the previous draft missed
// and by how much, plus any source facts the draft dropped.
func refinePrompt(original, draft string, metrics readability.Metrics, targetGrade, minEase float64, missing []string) string {
	var feedback []string

	if metrics.AvgGradeLevel > targetGrade {
		feedback = append(feedback, fmt.Sprintf(
			"- The text reads at grade level %.1f; it needs to come down by %.1f grades to reach %.0f. Use shorter sentences and simpler words.",
			metrics.AvgGradeLevel, metrics.AvgGradeLevel-targetGrade, targetGrade))
	}
	if metrics.FleschReadingEase < minEase {
		feedback = append(feedback, fmt.Sprintf(
			"- The reading ease score is %.1f; it needs to rise by %.1f points to reach %.0f.",
			metrics.FleschReadingEase, minEase-metrics.FleschReadingEase, minEase))
	}
	if len(missing) > 0 {
		feedback = append(feedback, fmt.Sprintf(
			"- These medication names or numbers from the original are missing and must appear exactly as written: %s",
			strings.Join(missing, ", ")))
	}

	return fmt.Sprintf(`Your previous simplification of a medical text needs another pass.

Problems with the previous version:
%s

Original medical text:
---
%s
---

Previous version:
---
%s
---

Rewrite the previous version fixing the problems above. Keep all medical facts, medication names, and dosages exactly as in the original.

Improved version:`, strings.Join(feedback, "\n"), original, draft)
}

const answerPromptTemplate = `A patient is asking a question about their medical care. Use the following information from their medical documents to answer their question in simple, easy-to-understand language. Answer only from the information provided; do not add facts of your own.

Patient's question: %s

Relevant information from their medical records:
---
%s
---

Please answer the patient's question using the information above. Remember to:
- Use simple language (8th-grade reading level)
- Be clear and direct
- If the information doesn't fully answer their question, say so
- Include any important warnings or things they should watch for

Answer:`

// AnswerPrompt builds the grounded question-answering prompt used by the
// query orchestrator.
func AnswerPrompt(question, context string) string {
	return fmt.Sprintf(answerPromptTemplate, question, context)
}
