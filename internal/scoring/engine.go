package scoring

import (
	"context"
	"errors"
	"fmt"
	"path"
	"regexp"
	"strings"

	"github.com/spboyer/aemforge/internal/models"
	"golang.org/x/sync/errgroup"
)

// Reviewer produces a secondary opinion on a bundle. Implementations apply
// their own retry policy; an error means the opinion could not be obtained.
type Reviewer interface {
	Review(ctx context.Context, bundle *models.ArtifactBundle) (*models.ReviewOpinion, error)
}

// Scorer is what the pipeline needs from the scoring engine.
type Scorer interface {
	Score(bundle *models.ArtifactBundle) *models.ValidationReport
	ScoreWithSecondaryOpinion(ctx context.Context, bundle *models.ArtifactBundle) (*models.ValidationReport, error)
}

// ErrNoReviewer is returned when a secondary opinion is requested from an
// engine built without a reviewer.
var ErrNoReviewer = errors.New("no secondary reviewer configured")

// Engine scores bundles with a rubric and, on request, a secondary reviewer.
type Engine struct {
	rubric   *Rubric
	reviewer Reviewer
}

// NewEngine creates an engine. A nil rubric selects DefaultRubric.
func NewEngine(rubric *Rubric, reviewer Reviewer) *Engine {
	if rubric == nil {
		rubric = DefaultRubric()
	}
	return &Engine{rubric: rubric, reviewer: reviewer}
}

var _ Scorer = (*Engine)(nil)

// Score rates bundle against the rubric. It never fails; a nil bundle is
// scored as an empty one.
func (e *Engine) Score(bundle *models.ArtifactBundle) *models.ValidationReport {
	if bundle == nil {
		bundle = models.NewArtifactBundle()
	}
	s := newScorecard()
	r := e.rubric

	for _, p := range bundle.Paths() {
		content, ok := bundle.Lookup(p)
		if !ok {
			continue
		}
		for _, re := range r.placeholders {
			if re.MatchString(content) {
				s.issue(fmt.Sprintf("Placeholder or incomplete code found in %s", p))
				s.add(models.CategoryCompleteness, -r.PlaceholderPenalty)
				break
			}
		}
	}

	var missing []string
	for _, name := range r.RequiredArtifacts {
		if _, ok := bundle.Lookup(name); !ok {
			missing = append(missing, name)
			s.add(models.CategoryCompleteness, -r.RequiredPenalty)
		}
	}
	if len(missing) > 0 {
		s.issue("Missing or empty required artifacts: " + strings.Join(missing, ", "))
	}

	for i := range r.Groups {
		g := &r.Groups[i]
		content, ok := bundle.Lookup(g.Artifact)
		if !ok {
			continue
		}
		passed := 0
		for j := range g.Rules {
			rule := &g.Rules[j]
			matched := s.apply(rule, content)
			if matched && rule.CountsTowardBonus {
				passed++
			}
		}
		if g.BonusThreshold > 0 && passed >= g.BonusThreshold {
			s.add(g.BonusCategory, g.BonusPoints)
		}
	}

	crossFileChecks(bundle, s, r.UnbalancedPenalty)

	var all []string
	for _, p := range bundle.Paths() {
		if content, ok := bundle.Lookup(p); ok {
			all = append(all, content)
		}
	}
	joined := strings.Join(all, " ")
	for i := range r.Security {
		s.apply(&r.Security[i], joined)
	}

	return s.report()
}

// ScoreWithSecondaryOpinion runs the rubric and the reviewer concurrently and
// merges both reports. Malformed or partial reviewer output is backfilled;
// only a failed reviewer call is returned as an error.
func (e *Engine) ScoreWithSecondaryOpinion(ctx context.Context, bundle *models.ArtifactBundle) (*models.ValidationReport, error) {
	if e.reviewer == nil {
		return nil, ErrNoReviewer
	}

	var (
		primary *models.ValidationReport
		opinion *models.ReviewOpinion
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		primary = e.Score(bundle)
		return nil
	})
	g.Go(func() error {
		var err error
		opinion, err = e.reviewer.Review(gctx, bundle)
		if err != nil {
			return fmt.Errorf("secondary review failed: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return Merge(primary, Backfill(opinion)), nil
}

var (
	publicTypeDecl = regexp.MustCompile(`public\s+(?:final\s+|abstract\s+)?(?:class|interface)\s+(\w+)`)
	packageDecl    = regexp.MustCompile(`(?m)^\s*package\s+([\w.]+)\s*;`)
)

const javaSourceRoot = "src/main/java/"

// crossFileChecks compares the model source with its placement and checks
// code artifacts for unbalanced delimiters.
func crossFileChecks(bundle *models.ArtifactBundle, s *scorecard, unbalancedPenalty int) {
	model, hasModel := bundle.Get(models.ArtifactModel)
	location := bundle.Placement[models.ArtifactModel]

	if hasModel && location != "" {
		if m := publicTypeDecl.FindStringSubmatch(model); m != nil {
			file := strings.TrimSuffix(path.Base(location), ".java")
			if m[1] != file {
				s.issue(fmt.Sprintf("Sling Model class %s does not match its file name %s.java", m[1], file))
				s.add(models.CategoryBestPractices, -20)
			}
		}

		if ns, ok := namespaceFor(location); ok {
			if m := packageDecl.FindStringSubmatch(model); m != nil && m[1] != ns {
				s.issue(fmt.Sprintf("Sling Model package %s does not match its location (expected %s)", m[1], ns))
				s.add(models.CategoryBestPractices, -15)
			}
		}
	}

	for _, p := range []string{models.ArtifactModel, models.Path(models.GroupClientlib, models.ClientlibScript)} {
		content, ok := bundle.Lookup(p)
		if !ok || balanced(content) {
			continue
		}
		s.issue(fmt.Sprintf("Compilation safety: unbalanced braces or parentheses in %s", p))
		s.add(models.CategoryCompleteness, -unbalancedPenalty)
	}
}

// namespaceFor derives the Java package from a source file location such as
// core/src/main/java/com/acme/core/models/X.java.
func namespaceFor(location string) (string, bool) {
	_, rel, ok := strings.Cut(location, javaSourceRoot)
	if !ok {
		return "", false
	}
	dir := path.Dir(rel)
	if dir == "." {
		return "", false
	}
	return strings.ReplaceAll(dir, "/", "."), true
}

// balanced reports whether src has as many { as } and as many ( as ).
// Counts are taken over the raw text, literals and comments included.
func balanced(src string) bool {
	return strings.Count(src, "{") == strings.Count(src, "}") &&
		strings.Count(src, "(") == strings.Count(src, ")")
}
