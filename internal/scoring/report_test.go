package scoring

import (
	"testing"

	"github.com/spboyer/aemforge/internal/models"
	"github.com/stretchr/testify/assert"
)

func intPtr(v int) *int { return &v }

func TestBackfill(t *testing.T) {
	tests := []struct {
		name    string
		opinion *models.ReviewOpinion
		want    *models.ValidationReport
	}{
		{
			name:    "nil opinion",
			opinion: nil,
			want: &models.ValidationReport{
				Status:      models.ValidationUnknown,
				Score:       50,
				Issues:      []string{},
				Suggestions: []string{},
				Categories: map[models.Category]int{
					models.CategoryCompleteness: 50, models.CategoryBestPractices: 50, models.CategoryPerformance: 50,
					models.CategoryAccessibility: 50, models.CategorySecurity: 50,
				},
			},
		},
		{
			name: "partial opinion",
			opinion: &models.ReviewOpinion{
				Status:     "pass",
				Score:      intPtr(120),
				Issues:     []string{"a", "a", "b"},
				Categories: map[models.Category]int{models.CategorySecurity: -5, models.CategoryPerformance: 90},
			},
			want: &models.ValidationReport{
				Status:      models.ValidationPass,
				Score:       100,
				Issues:      []string{"a", "b"},
				Suggestions: []string{},
				Categories: map[models.Category]int{
					models.CategoryCompleteness: 50, models.CategoryBestPractices: 50, models.CategoryPerformance: 90,
					models.CategoryAccessibility: 50, models.CategorySecurity: 0,
				},
			},
		},
		{
			name:    "unknown verdict",
			opinion: &models.ReviewOpinion{Status: "MAYBE", Score: intPtr(10)},
			want: &models.ValidationReport{
				Status:      models.ValidationUnknown,
				Score:       10,
				Issues:      []string{},
				Suggestions: []string{},
				Categories: map[models.Category]int{
					models.CategoryCompleteness: 50, models.CategoryBestPractices: 50, models.CategoryPerformance: 50,
					models.CategoryAccessibility: 50, models.CategorySecurity: 50,
				},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Backfill(tt.opinion))
		})
	}
}

func TestMerge(t *testing.T) {
	a := &models.ValidationReport{
		Score:       91,
		Issues:      []string{"x", "y"},
		Suggestions: []string{"s1"},
		Categories: map[models.Category]int{
			models.CategoryCompleteness: 100, models.CategoryBestPractices: 81, models.CategoryPerformance: 70,
			models.CategoryAccessibility: 60,
		},
	}
	b := &models.ValidationReport{
		Score:       40,
		Issues:      []string{"y", "z"},
		Suggestions: []string{"s2", "s1"},
		Categories: map[models.Category]int{
			models.CategoryCompleteness: 50, models.CategoryBestPractices: 80, models.CategoryPerformance: 71,
			models.CategoryAccessibility: 60, models.CategorySecurity: 30,
		},
	}

	ab := Merge(a, b)
	assert.Equal(t, 65, ab.Score)
	assert.Equal(t, models.ValidationFail, ab.Status)
	assert.Equal(t, []string{"x", "y", "z"}, ab.Issues)
	assert.Equal(t, []string{"s1", "s2"}, ab.Suggestions)
	assert.Equal(t, map[models.Category]int{
		models.CategoryCompleteness:  75,
		models.CategoryBestPractices: 80,
		models.CategoryPerformance:   70,
		models.CategoryAccessibility: 60,
		models.CategorySecurity:      15,
	}, ab.Categories)

	ba := Merge(b, a)
	assert.Equal(t, ab.Score, ba.Score)
	assert.Equal(t, ab.Categories, ba.Categories)
	assert.ElementsMatch(t, ab.Issues, ba.Issues)
	assert.Equal(t, []string{"y", "z", "x"}, ba.Issues)
}

func TestMerge_StatusThreshold(t *testing.T) {
	pass := Merge(&models.ValidationReport{Score: 70}, &models.ValidationReport{Score: 71})
	assert.Equal(t, models.ValidationPass, pass.Status)

	fail := Merge(&models.ValidationReport{Score: 70}, &models.ValidationReport{Score: 69})
	assert.Equal(t, 69, fail.Score)
	assert.Equal(t, models.ValidationFail, fail.Status)
}

func TestDedupe(t *testing.T) {
	assert.Equal(t, []string{}, dedupe(nil))
	assert.Equal(t, []string{"b", "a"}, dedupe([]string{"b", "a", "b", "a"}))
}
