// Package report turns raw scan output into a written security report by
// asking a hosted language model. The model is an opaque text-in/text-out
// collaborator: one request per report, no retries, no streaming.
package report

import (
	"context"
	"fmt"

	"neti/internal/domain"
)

// Analyzer writes a report for raw scan results
type Analyzer interface {
	// Analyze returns the report, or an error envelope. apiKey may be empty
	// when the analyzer has a configured fallback.
	Analyze(ctx context.Context, apiKey, results string) domain.AnalysisResult
}

// MissingAPIKeyMessage is reported when neither the request nor the
// environment supplies a key
const MissingAPIKeyMessage = "API key is required"

const promptTemplate = `You are a cybersecurity expert and network analyst.
Your task is to analyze the following network scan results and provide a professional and easy-to-understand report.

Raw Scan Results:
---
%s
---

Your report should include:
1.  **Executive Summary:** A brief summary of the most important findings.
2.  **Detailed Findings:** A detailed explanation of each finding, including potential risks and their impact.
3.  **Recommendations:** Concrete steps that can be taken to remediate identified security issues.
4.  **Risk Level:** Classification of the risk level (Critical, High, Medium, Low) for each finding.

Use Markdown format for your report.
`

// Prompt renders the fixed instruction template around results
func Prompt(results string) string {
	return fmt.Sprintf(promptTemplate, results)
}
