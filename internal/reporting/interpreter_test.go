package reporting

import (
	"strings"
	"testing"

	"github.com/spboyer/aemforge/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestInterpretScore(t *testing.T) {
	tests := []struct {
		score int
		want  string
	}{
		{100, "Excellent (90+)"},
		{90, "Excellent (90+)"},
		{89, "Good (70-89)"},
		{70, "Good (70-89)"},
		{69, "Needs Work (50-69)"},
		{50, "Needs Work (50-69)"},
		{49, "Poor (<50)"},
		{0, "Poor (<50)"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, InterpretScore(tt.score), "score %d", tt.score)
	}
}

func TestInterpretCategory(t *testing.T) {
	assert.Equal(t, "OK", InterpretCategory(models.CategorySecurity, 70))
	for _, c := range models.Categories {
		got := InterpretCategory(c, 10)
		assert.NotEqual(t, "OK", got, c)
		assert.NotEqual(t, "below threshold", got, c)
	}
}

func TestFormatSummary(t *testing.T) {
	out := FormatSummary(newTestResult())

	assert.Contains(t, out, "Name:      hero-banner")
	assert.Contains(t, out, "Type:      banner")
	assert.Contains(t, out, "Artifacts: 3")
	assert.Contains(t, out, "Overall Score: 64 (Needs Work (50-69))")
	assert.Contains(t, out, "Verdict:       FAIL")
	assert.Contains(t, out, "✗ best-practices (60)")
	assert.NotContains(t, out, "✗ performance")
	assert.Contains(t, out, "  - Missing required file: dialog\n")
	assert.Contains(t, out, "Suggestions:\n  - Add ARIA attributes for accessibility\n")
}

func TestFormatSummary_NoValidation(t *testing.T) {
	res := newTestResult()
	res.Validation = nil

	out := FormatSummary(res)
	assert.True(t, strings.HasSuffix(out, "Validation was skipped.\n"))
	assert.NotContains(t, out, "Interpretation")
}
