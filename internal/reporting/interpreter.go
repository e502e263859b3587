// Package reporting renders generation results and validation reports for
// terminals, browsers and CI systems.
package reporting

import (
	"fmt"
	"strings"

	"github.com/spboyer/aemforge/internal/models"
)

// InterpretScore returns a plain-language label for a 0-100 score.
func InterpretScore(score int) string {
	switch {
	case score >= 90:
		return "Excellent (90+)"
	case score >= models.PassThreshold:
		return "Good (70-89)"
	case score >= 50:
		return "Needs Work (50-69)"
	default:
		return "Poor (<50)"
	}
}

// InterpretCategory explains what a weak category score usually means.
func InterpretCategory(c models.Category, score int) string {
	if score >= models.PassThreshold {
		return "OK"
	}
	switch c {
	case models.CategoryCompleteness:
		return "artifacts are missing, contain placeholders or do not compile"
	case models.CategoryBestPractices:
		return "the component deviates from Sling model and HTL conventions"
	case models.CategoryPerformance:
		return "markup or scripts carry avoidable runtime cost"
	case models.CategoryAccessibility:
		return "authors or visitors may be missing labels and ARIA hints"
	case models.CategorySecurity:
		return "the code contains patterns that need a security review"
	default:
		return "below threshold"
	}
}

// FormatSummary produces a plain-language summary of a job result.
func FormatSummary(res *models.JobResult) string {
	var b strings.Builder

	b.WriteString("=== Component ===\n\n")
	fmt.Fprintf(&b, "Name:      %s\n", res.ComponentName)
	if res.ComponentType != "" {
		fmt.Fprintf(&b, "Type:      %s\n", res.ComponentType)
	}
	fmt.Fprintf(&b, "Artifacts: %d\n", len(res.Bundle.Paths()))

	v := res.Validation
	if v == nil {
		b.WriteString("\nValidation was skipped.\n")
		return b.String()
	}

	b.WriteString("\n=== Interpretation ===\n\n")
	fmt.Fprintf(&b, "Overall Score: %d (%s)\n", v.Score, InterpretScore(v.Score))
	fmt.Fprintf(&b, "Verdict:       %s\n", v.Status)

	var weak []string
	for _, c := range models.Categories {
		if s := v.Categories[c]; s < models.PassThreshold {
			weak = append(weak, fmt.Sprintf("  ✗ %s (%d): %s", c, s, InterpretCategory(c, s)))
		}
	}
	if len(weak) > 0 {
		b.WriteString("\nWeak categories:\n")
		b.WriteString(strings.Join(weak, "\n"))
		b.WriteString("\n")
	}

	writeList(&b, "Issues", v.Issues)
	writeList(&b, "Suggestions", v.Suggestions)
	return b.String()
}

func writeList(b *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "\n%s:\n", title)
	for _, it := range items {
		fmt.Fprintf(b, "  - %s\n", it)
	}
}
