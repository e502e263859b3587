package models

// ValidationStatus is the verdict of a validation report.
type ValidationStatus string

const (
	ValidationPass    ValidationStatus = "PASS"
	ValidationFail    ValidationStatus = "FAIL"
	ValidationUnknown ValidationStatus = "UNKNOWN"
)

// PassThreshold is the minimum overall score for a PASS verdict.
const PassThreshold = 70

// Category is a rubric scoring dimension.
type Category string

const (
	CategoryCompleteness  Category = "completeness"
	CategoryBestPractices Category = "best-practices"
	CategoryPerformance   Category = "performance"
	CategoryAccessibility Category = "accessibility"
	CategorySecurity      Category = "security"
)

// Categories is the fixed category set in reporting order.
var Categories = []Category{
	CategoryCompleteness,
	CategoryBestPractices,
	CategoryPerformance,
	CategoryAccessibility,
	CategorySecurity,
}

// CategoryWeights are percentages; they sum to 100.
var CategoryWeights = map[Category]int{
	CategoryCompleteness:  30,
	CategoryBestPractices: 25,
	CategoryPerformance:   15,
	CategoryAccessibility: 15,
	CategorySecurity:      15,
}

// ValidationReport is the scored assessment of an artifact bundle.
type ValidationReport struct {
	Status      ValidationStatus `json:"status"`
	Score       int              `json:"score"`
	Issues      []string         `json:"issues"`
	Suggestions []string         `json:"suggestions"`
	Categories  map[Category]int `json:"categories"`
}

// StatusFor derives the verdict from an overall score.
func StatusFor(score int) ValidationStatus {
	if score >= PassThreshold {
		return ValidationPass
	}
	return ValidationFail
}

// WeightedScore combines category scores with CategoryWeights, rounding down.
// Missing categories count as zero.
func WeightedScore(categories map[Category]int) int {
	total := 0
	for _, c := range Categories {
		total += categories[c] * CategoryWeights[c]
	}
	return total / 100
}

// ClampScore bounds a score to 0..100.
func ClampScore(v int) int {
	return max(0, min(100, v))
}

// ReviewOpinion is a secondary reviewer's assessment as received.
// Nil or missing fields were absent from the reviewer's output.
type ReviewOpinion struct {
	Status      string           `json:"status,omitempty"`
	Score       *int             `json:"score,omitempty"`
	Issues      []string         `json:"issues,omitempty"`
	Suggestions []string         `json:"suggestions,omitempty"`
	Categories  map[Category]int `json:"categories,omitempty"`
}
