package llm

import (
	"fmt"
	"strings"
	"time"
)

// AnalysisSystemPrompt instructs the engine to extract report metrics as JSON.
const AnalysisSystemPrompt = `You are a credit report extraction engine.

Extract structured credit metrics from raw credit report text and return valid JSON only, matching the provided schema.

Rules:
- Output JSON only. No markdown, no commentary.
- Do not guess. If a value is not present use null and add the field to quality.missingFields.
- Every metric must include evidence: a short snippet from the source text and a page number when available.
- Prefer numbers over adjectives. Convert $ and % to numeric values.
- When values conflict, prefer the summary section and record a warning in quality.warnings.
- Never output utilization above 100%.
- Redact PII (full SSN, full account numbers, DOB, full address) with "***" in evidence snippets.
- Compute derived fields when inputs exist (overallUtilizationPct = creditUsed / creditLimit * 100).
- Rank impactRanking 1..N by severity, recency and scoring weight (payment history > utilization > derogatories > inquiries > age/mix).`

// LetterSystemPrompt frames the letter drafting call.
const LetterSystemPrompt = "You draft professional credit dispute letters."

// BuildAnalysisUserPrompt wraps report text for the extraction call.
func BuildAnalysisUserPrompt(text string) string {
	return "Extract structured data from this credit report text:\n\n---\n" + text + "\n---"
}

// BuildLetterPrompt asks for a plain-text dispute letter to bureau covering
// findings, dated today.
func BuildLetterPrompt(bureau string, findings []byte, today time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Draft a formal dispute letter for %s based on these findings: %s.\n\n", bureau, string(findings))
	fmt.Fprintf(&b, "Date the letter %s.\n", today.Format("January 2, 2006"))
	b.WriteString(`Include:
- A professional header with placeholders for name and address.
- Each disputed item with a clear reason (for example "The balance is incorrect" or "I have no knowledge of this account").
- A demand for investigation under the FCRA.
- A professional sign-off.

Keep the tone formal but firm. Plain text only, no markdown.`)
	return b.String()
}
