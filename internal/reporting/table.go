package reporting

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
	"github.com/spboyer/aemforge/internal/models"
)

var (
	headingStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5B8DEF"))
	passStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#3FB950"))
	failStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF6B6B"))
	unknownStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#AAAAAA"))
)

const (
	colCategory = 16
	colScore    = 7
	colWeight   = 8
)

// StatusBadge renders a verdict, coloured when color is set.
func StatusBadge(s models.ValidationStatus, color bool) string {
	if !color {
		return string(s)
	}
	switch s {
	case models.ValidationPass:
		return passStyle.Render(string(s))
	case models.ValidationFail:
		return failStyle.Render(string(s))
	default:
		return unknownStyle.Render(string(s))
	}
}

// WriteScorecard prints the category table of a validation report.
func WriteScorecard(w io.Writer, title string, v *models.ValidationReport, color bool) {
	heading := title
	if color {
		heading = headingStyle.Render(title)
	}
	fmt.Fprintf(w, "\n%s\n\n", heading) //nolint:errcheck

	totalWidth := colCategory + colScore + colWeight + 10
	fmt.Fprintf(w, "%s  %s  %s  %s\n", //nolint:errcheck
		padRight("Category", colCategory),
		padRight("Score", colScore),
		padRight("Weight", colWeight),
		"Status")
	fmt.Fprintf(w, "%s\n", strings.Repeat("─", totalWidth)) //nolint:errcheck

	for _, c := range models.Categories {
		score := v.Categories[c]
		mark := "✅"
		if score < models.PassThreshold {
			mark = "❌"
		}
		fmt.Fprintf(w, "%s  %s  %s  %s\n", //nolint:errcheck
			padRight(string(c), colCategory),
			padRight(fmt.Sprintf("%d", score), colScore),
			padRight(fmt.Sprintf("%d%%", models.CategoryWeights[c]), colWeight),
			mark)
	}
	fmt.Fprintf(w, "%s\n", strings.Repeat("─", totalWidth)) //nolint:errcheck
	overall := fmt.Sprintf("%d  %s", v.Score, StatusBadge(v.Status, color))
	fmt.Fprintf(w, "%s  %s\n\n", padRight("Overall", colCategory), overall) //nolint:errcheck

	for _, issue := range v.Issues {
		fmt.Fprintf(w, "  ⚠️  %s\n", issue) //nolint:errcheck
	}
	for _, s := range v.Suggestions {
		fmt.Fprintf(w, "  💡 %s\n", s) //nolint:errcheck
	}
}

// padRight pads s with spaces so its terminal display width reaches width.
func padRight(s string, width int) string {
	sw := runewidth.StringWidth(s)
	if sw >= width {
		return s
	}
	return s + strings.Repeat(" ", width-sw)
}
