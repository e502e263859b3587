package scoring

import (
	"slices"
	"strings"

	"github.com/spboyer/aemforge/internal/models"
)

// secondaryDefault fills categories and the score a reviewer left out.
const secondaryDefault = 50

// scorecard accumulates deltas and messages for one rubric run.
type scorecard struct {
	categories  map[models.Category]int
	issues      []string
	suggestions []string
}

func newScorecard() *scorecard {
	s := &scorecard{categories: map[models.Category]int{}}
	for _, c := range models.Categories {
		s.categories[c] = 100
	}
	return s
}

func (s *scorecard) add(c models.Category, delta int) {
	s.categories[c] += delta
}

func (s *scorecard) issue(msg string) {
	s.issues = append(s.issues, msg)
}

// apply runs rule against content and reports whether the rule passed.
func (s *scorecard) apply(rule *Rule, content string) bool {
	matched := rule.Matches(content)
	delta := rule.Absent
	if matched {
		delta = rule.Present
	}
	s.add(rule.Category, delta)
	if delta < 0 {
		if rule.Issue != "" {
			s.issues = append(s.issues, rule.Issue)
		}
		if rule.Suggestion != "" {
			s.suggestions = append(s.suggestions, rule.Suggestion)
		}
	}
	return matched
}

func (s *scorecard) report() *models.ValidationReport {
	cats := make(map[models.Category]int, len(s.categories))
	for c, v := range s.categories {
		cats[c] = models.ClampScore(v)
	}
	score := models.WeightedScore(cats)
	return &models.ValidationReport{
		Status:      models.StatusFor(score),
		Score:       score,
		Issues:      dedupe(s.issues),
		Suggestions: dedupe(s.suggestions),
		Categories:  cats,
	}
}

// Backfill turns a possibly partial reviewer opinion into a complete report:
// missing categories and score become 50, missing lists become empty and an
// unrecognised verdict becomes UNKNOWN.
func Backfill(op *models.ReviewOpinion) *models.ValidationReport {
	if op == nil {
		op = &models.ReviewOpinion{}
	}

	cats := make(map[models.Category]int, len(models.Categories))
	for _, c := range models.Categories {
		v, ok := op.Categories[c]
		if !ok {
			v = secondaryDefault
		}
		cats[c] = models.ClampScore(v)
	}

	score := secondaryDefault
	if op.Score != nil {
		score = models.ClampScore(*op.Score)
	}

	status := models.ValidationUnknown
	switch s := models.ValidationStatus(strings.ToUpper(strings.TrimSpace(op.Status))); s {
	case models.ValidationPass, models.ValidationFail:
		status = s
	}

	return &models.ValidationReport{
		Status:      status,
		Score:       score,
		Issues:      dedupe(op.Issues),
		Suggestions: dedupe(op.Suggestions),
		Categories:  cats,
	}
}

// Merge combines two reports: issues and suggestions are the ordered union
// (a first), categories and score are floor averages with missing
// categories counted as 0, and the status is derived from the merged score.
func Merge(a, b *models.ValidationReport) *models.ValidationReport {
	if a == nil {
		a = &models.ValidationReport{}
	}
	if b == nil {
		b = &models.ValidationReport{}
	}

	cats := make(map[models.Category]int, len(models.Categories))
	for _, c := range models.Categories {
		cats[c] = (a.Categories[c] + b.Categories[c]) / 2
	}
	score := (a.Score + b.Score) / 2

	return &models.ValidationReport{
		Status:      models.StatusFor(score),
		Score:       score,
		Issues:      dedupe(slices.Concat(a.Issues, b.Issues)),
		Suggestions: dedupe(slices.Concat(a.Suggestions, b.Suggestions)),
		Categories:  cats,
	}
}

// dedupe removes repeated strings, keeping first occurrences in order. The
// result is never nil.
func dedupe(items []string) []string {
	out := make([]string, 0, len(items))
	seen := make(map[string]bool, len(items))
	for _, it := range items {
		if seen[it] {
			continue
		}
		seen[it] = true
		out = append(out, it)
	}
	return out
}
