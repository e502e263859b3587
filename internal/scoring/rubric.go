// Package scoring rates generated artifact bundles against a data-driven
// rubric and merges the result with an optional secondary review.
package scoring

import (
	"fmt"
	"os"
	"regexp"
	"slices"
	"strings"

	"github.com/spboyer/aemforge/internal/models"
	"github.com/spboyer/aemforge/internal/validation"
	"gopkg.in/yaml.v3"
)

// Rule is one pattern check. When Pattern matches (and Unless, if set, does
// not) the rule passes and Present is added to Category; otherwise Absent is
// added. Issue and Suggestion are reported only when the applied delta is
// negative.
type Rule struct {
	Name              string          `yaml:"name"`
	Pattern           string          `yaml:"pattern"`
	Unless            string          `yaml:"unless,omitempty"`
	Category          models.Category `yaml:"category"`
	Present           int             `yaml:"present,omitempty"`
	Absent            int             `yaml:"absent,omitempty"`
	Issue             string          `yaml:"issue,omitempty"`
	Suggestion        string          `yaml:"suggestion,omitempty"`
	CountsTowardBonus bool            `yaml:"counts_toward_bonus,omitempty"`

	re     *regexp.Regexp
	unless *regexp.Regexp
}

func (r *Rule) compile() error {
	re, err := regexp.Compile(r.Pattern)
	if err != nil {
		return fmt.Errorf("rule %q: invalid pattern: %w", r.Name, err)
	}
	r.re = re
	r.unless = nil
	if r.Unless != "" {
		if r.unless, err = regexp.Compile(r.Unless); err != nil {
			return fmt.Errorf("rule %q: invalid unless pattern: %w", r.Name, err)
		}
	}
	return nil
}

// Matches reports whether the rule passes on content.
func (r *Rule) Matches(content string) bool {
	if !r.re.MatchString(content) {
		return false
	}
	return r.unless == nil || !r.unless.MatchString(content)
}

// CheckGroup runs rules against one artifact, addressed by its logical path
// (see models.Path). Groups are skipped when the artifact is absent.
type CheckGroup struct {
	Artifact string `yaml:"artifact"`
	Rules    []Rule `yaml:"rules"`
	// BonusPoints are added to BonusCategory when at least BonusThreshold
	// bonus-counting rules pass. A zero threshold disables the bonus.
	BonusThreshold int             `yaml:"bonus_threshold,omitempty"`
	BonusCategory  models.Category `yaml:"bonus_category,omitempty"`
	BonusPoints    int             `yaml:"bonus_points,omitempty"`
}

// Rubric is the complete rule set of the deterministic scorer.
type Rubric struct {
	RequiredArtifacts   []string `yaml:"required_artifacts"`
	RequiredPenalty     int      `yaml:"required_penalty"`
	PlaceholderPenalty  int      `yaml:"placeholder_penalty"`
	PlaceholderPatterns []string `yaml:"placeholder_patterns"`
	// UnbalancedPenalty is taken from completeness for every code artifact
	// with unbalanced braces or parentheses.
	UnbalancedPenalty int          `yaml:"unbalanced_penalty"`
	Groups            []CheckGroup `yaml:"groups"`
	// Security rules run once over the concatenated text of all artifacts.
	Security []Rule `yaml:"security"`

	placeholders []*regexp.Regexp
}

const (
	issueXSS    = "Potential XSS vulnerability: avoid innerHTML"
	issueEval   = "Security risk: avoid eval() function"
	issueSecret = "Hardcoded secret found: move credentials to OSGi configuration"
	issueSQL    = "Possible SQL injection: query built by string concatenation"
)

// DefaultRubric returns the built-in rubric.
func DefaultRubric() *Rubric {
	r := &Rubric{
		RequiredArtifacts:  []string{models.ArtifactModel, models.ArtifactTemplate, models.ArtifactDialog},
		RequiredPenalty:    25,
		PlaceholderPenalty: 15,
		PlaceholderPatterns: []string{
			`TODO`,
			`FIXME`,
			`// Add .* here`,
			`/\* .* code here \*/`,
			`\.\.\.`,
			`placeholder`,
			`implement here`,
			`fill in`,
		},
		UnbalancedPenalty: 30,
		Groups: []CheckGroup{
			{
				Artifact: models.ArtifactTemplate,
				Rules: []Rule{
					{Name: "sling-model-binding", Pattern: `data-sly-use`, Category: models.CategoryBestPractices, Absent: -15,
						Issue: "HTL missing data-sly-use directive for Sling Model integration", CountsTowardBonus: true},
					{Name: "aria-attributes", Pattern: `aria-\w+`, Category: models.CategoryAccessibility, Absent: -10,
						Suggestion: "Add ARIA attributes for better accessibility", CountsTowardBonus: true},
					{Name: "conditional-rendering", Pattern: `data-sly-test|data-sly-if`, Category: models.CategoryBestPractices, Absent: -5,
						Suggestion: "Consider adding conditional rendering with data-sly-test", CountsTowardBonus: true},
					{Name: "styling-hooks", Pattern: `class=|id=`, Category: models.CategoryPerformance, Absent: -5,
						Suggestion: "Add CSS classes for styling", CountsTowardBonus: true},
				},
				BonusThreshold: 3,
				BonusCategory:  models.CategoryBestPractices,
				BonusPoints:    5,
			},
			{
				Artifact: models.ArtifactModel,
				Rules: []Rule{
					{Name: "model-annotation", Pattern: `@Model`, Category: models.CategoryBestPractices, Absent: -20,
						Issue: "Sling Model missing @Model annotation", CountsTowardBonus: true},
					{Name: "injection", Pattern: `@Inject|@ValueMapValue`, Category: models.CategoryBestPractices, Absent: -10,
						Suggestion: "Consider using dependency injection (@Inject, @ValueMapValue)", CountsTowardBonus: true},
					{Name: "null-safety", Pattern: `StringUtils\.isNotBlank|Optional|null`, Category: models.CategorySecurity, Absent: -15,
						Issue: "Missing null safety checks in Sling Model", CountsTowardBonus: true},
					{Name: "post-construct", Pattern: `@PostConstruct`, Category: models.CategoryBestPractices, Present: 5,
						CountsTowardBonus: true},
					{Name: "resource-resolver-closed", Pattern: `ResourceResolver`, Unless: `try\s*\(`, Category: models.CategorySecurity, Present: -10,
						Suggestion: "Use try-with-resources for ResourceResolver"},
				},
				BonusThreshold: 3,
				BonusCategory:  models.CategoryCompleteness,
				BonusPoints:    5,
			},
			{
				Artifact: models.ArtifactDialog,
				Rules: []Rule{
					{Name: "granite-ui", Pattern: `granite/ui/components`, Category: models.CategoryBestPractices, Present: 5, Absent: -10,
						Suggestion: "Use Granite UI components in dialog"},
					{Name: "field-labels", Pattern: `fieldLabel`, Category: models.CategoryAccessibility, Present: 5, Absent: -10,
						Suggestion: "Add field labels for accessibility"},
				},
			},
			{
				Artifact: models.Path(models.GroupClientlib, models.ClientlibStyle),
				Rules: []Rule{
					{Name: "responsive-styles", Pattern: `@media|responsive`, Category: models.CategoryAccessibility, Present: 5, Absent: -5,
						Suggestion: "Consider responsive design in CSS"},
					{Name: "interaction-states", Pattern: `:focus|:hover`, Category: models.CategoryAccessibility, Present: 5},
				},
			},
			{
				Artifact: models.Path(models.GroupClientlib, models.ClientlibScript),
				Rules: []Rule{
					{Name: "event-listeners", Pattern: `addEventListener`, Category: models.CategoryBestPractices, Present: 5},
					{Name: "console-logging", Pattern: `console\.log`, Category: models.CategoryPerformance, Present: -5,
						Suggestion: "Remove console.log statements in production code"},
				},
			},
		},
		Security: []Rule{
			{Name: "inner-html", Pattern: `innerHTML`, Category: models.CategorySecurity, Present: -20, Issue: issueXSS},
			{Name: "eval", Pattern: `eval\(`, Category: models.CategorySecurity, Present: -25, Issue: issueEval},
			{Name: "hardcoded-secret", Pattern: `(?i)(password|passwd|secret|api[_-]?key|token)\s*[:=]\s*["'][^"']{4,}["']`,
				Category: models.CategorySecurity, Present: -25, Issue: issueSecret},
			{Name: "sql-concatenation", Pattern: `(?i)(select|insert|update|delete)\s[^;"']*["']\s*\+`,
				Category: models.CategorySecurity, Present: -20, Issue: issueSQL},
		},
	}
	if err := r.Compile(); err != nil {
		panic(err)
	}
	return r
}

// Compile validates and compiles every pattern of the rubric.
func (r *Rubric) Compile() error {
	r.placeholders = r.placeholders[:0]
	for _, p := range r.PlaceholderPatterns {
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			return fmt.Errorf("invalid placeholder pattern %q: %w", p, err)
		}
		r.placeholders = append(r.placeholders, re)
	}

	for gi := range r.Groups {
		g := &r.Groups[gi]
		if g.BonusThreshold > 0 && !knownCategory(g.BonusCategory) {
			return fmt.Errorf("group %q: unknown bonus category %q", g.Artifact, g.BonusCategory)
		}
		for ri := range g.Rules {
			if err := compileRule(&g.Rules[ri]); err != nil {
				return fmt.Errorf("group %q: %w", g.Artifact, err)
			}
		}
	}
	for i := range r.Security {
		if err := compileRule(&r.Security[i]); err != nil {
			return fmt.Errorf("security: %w", err)
		}
	}
	return nil
}

func compileRule(rule *Rule) error {
	if !knownCategory(rule.Category) {
		return fmt.Errorf("rule %q: unknown category %q", rule.Name, rule.Category)
	}
	return rule.compile()
}

func knownCategory(c models.Category) bool {
	return slices.Contains(models.Categories, c)
}

// rubricFile mirrors Rubric with optional scalars so a file only overrides
// what it sets.
type rubricFile struct {
	RequiredArtifacts   []string     `yaml:"required_artifacts"`
	RequiredPenalty     *int         `yaml:"required_penalty"`
	PlaceholderPenalty  *int         `yaml:"placeholder_penalty"`
	PlaceholderPatterns []string     `yaml:"placeholder_patterns"`
	UnbalancedPenalty   *int         `yaml:"unbalanced_penalty"`
	Groups              []CheckGroup `yaml:"groups"`
	Security            []Rule       `yaml:"security"`
}

// LoadRubric reads a YAML rubric override from path and applies it to the
// default rubric.
func LoadRubric(path string) (*Rubric, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading rubric %s: %w", path, err)
	}
	r, err := ParseRubric(data)
	if err != nil {
		return nil, fmt.Errorf("rubric %s: %w", path, err)
	}
	return r, nil
}

// ParseRubric applies a YAML override to the default rubric. Scalars replace
// defaults when set; lists replace the default list. Groups replace the
// default group for the same artifact and security rules replace the default
// rule with the same name; anything else is appended.
func ParseRubric(data []byte) (*Rubric, error) {
	if errs := validation.ValidateYAMLBytes(validation.SchemaRubric, data); len(errs) > 0 {
		return nil, fmt.Errorf("invalid rubric:\n  %s", strings.Join(errs, "\n  "))
	}

	var f rubricFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing rubric: %w", err)
	}

	r := DefaultRubric()
	if f.RequiredArtifacts != nil {
		r.RequiredArtifacts = f.RequiredArtifacts
	}
	if f.PlaceholderPatterns != nil {
		r.PlaceholderPatterns = f.PlaceholderPatterns
	}
	setIf(&r.RequiredPenalty, f.RequiredPenalty)
	setIf(&r.PlaceholderPenalty, f.PlaceholderPenalty)
	setIf(&r.UnbalancedPenalty, f.UnbalancedPenalty)

	for _, g := range f.Groups {
		idx := slices.IndexFunc(r.Groups, func(d CheckGroup) bool { return d.Artifact == g.Artifact })
		if idx >= 0 {
			r.Groups[idx] = g
		} else {
			r.Groups = append(r.Groups, g)
		}
	}
	for _, rule := range f.Security {
		idx := slices.IndexFunc(r.Security, func(d Rule) bool { return d.Name == rule.Name })
		if idx >= 0 {
			r.Security[idx] = rule
		} else {
			r.Security = append(r.Security, rule)
		}
	}

	if err := r.Compile(); err != nil {
		return nil, err
	}
	return r, nil
}

func setIf(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}
