package evaluator

import (
	"fmt"
	"strings"

	"github.com/inventcures/virtual-tumor-board-sub003/internal/domain"
)

// previousAttemptLimit bounds the prior extraction echoed back to the oracle.
const previousAttemptLimit = 3000

// BuildOptimizedPrompt augments basePrompt with the evaluation feedback of a
// previous attempt. The output depends only on its inputs.
func BuildOptimizedPrompt(basePrompt string, feedback domain.EvaluationFeedback, previous domain.ExtractedClinicalData, iteration int, target float64) string {
	var b strings.Builder
	b.WriteString(basePrompt)

	fmt.Fprintf(&b, "\n\n--- REFINEMENT (attempt %d) ---\n", iteration+1)
	fmt.Fprintf(&b, "The previous extraction scored %.2f; the target is %.2f.\n", feedback.OverallScore, target)

	writeIssues(&b, "CRITICAL ISSUES (must fix)", feedback.IssuesWithSeverity(domain.SeverityCritical))
	writeIssues(&b, "MAJOR ISSUES", feedback.IssuesWithSeverity(domain.SeverityMajor))
	writeIssues(&b, "OTHER ISSUES", feedback.IssuesWithSeverity(domain.SeverityMinor))

	if len(feedback.MissingFields) > 0 {
		b.WriteString("\nMISSING FIELDS:\n")
		for _, f := range feedback.MissingFields {
			fmt.Fprintf(&b, "- %s\n", f)
		}
	}
	if len(feedback.PriorityFields) > 0 {
		names := make([]string, len(feedback.PriorityFields))
		for i, f := range feedback.PriorityFields {
			names[i] = string(f)
		}
		fmt.Fprintf(&b, "\nPrioritize: %s\n", strings.Join(names, ", "))
	}
	for _, s := range feedback.Suggestions {
		fmt.Fprintf(&b, "Suggestion: %s\n", s)
	}

	b.WriteString("\nPREVIOUS ATTEMPT:\n")
	b.WriteString(Truncate(previous.JSON(), previousAttemptLimit))
	b.WriteString("\n\nRe-extract the document and return a corrected, complete JSON object. ")
	b.WriteString("Address every issue listed above and fill in missing fields when the document states them. ")
	b.WriteString("Match source values exactly as written; never invent values that are not in the document.\n")
	return b.String()
}

func writeIssues(b *strings.Builder, heading string, issues []domain.Issue) {
	if len(issues) == 0 {
		return
	}
	fmt.Fprintf(b, "\n%s:\n", heading)
	for _, is := range issues {
		fmt.Fprintf(b, "- [%s] %s\n", is.Field, is.Description)
	}
}
