package agents

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/spboyer/aemforge/internal/models"
	"github.com/spboyer/aemforge/internal/repair"
	"github.com/spboyer/aemforge/internal/retry"
	"github.com/spboyer/aemforge/internal/validation"
)

// RequirementsStage extracts structured requirements from a request.
type RequirementsStage struct{}

func (RequirementsStage) Name() string { return StageRequirements }

// PromptText renders the user prompt. The text is also the cache fingerprint
// for the stage, so identical requests share an answer.
func (RequirementsStage) PromptText(req *models.GenerationRequest) (string, error) {
	if req == nil {
		return "", errors.New("nil request")
	}
	return requirementsPrompt.Render(req)
}

func (s RequirementsStage) Request(req *models.GenerationRequest) (*GenerateRequest, error) {
	prompt, err := s.PromptText(req)
	if err != nil {
		return nil, err
	}
	return &GenerateRequest{
		Stage:  StageRequirements,
		System: requirementsSystem,
		Prompt: prompt,
		Vars: map[string]string{
			"description":    req.Description,
			"component_type": req.ComponentType,
			"fields":         fieldNames(req.Fields),
		},
	}, nil
}

func (RequirementsStage) Parse(text string) (*models.Requirements, error) {
	var r models.Requirements
	if err := decodePayload(StageRequirements, validation.SchemaRequirements, text, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// VisualStage extracts layout and styling hints from an image reference.
type VisualStage struct{}

func (VisualStage) Name() string { return StageVisual }

func (VisualStage) Request(imageURL string) (*GenerateRequest, error) {
	if strings.TrimSpace(imageURL) == "" {
		return nil, errors.New("image reference is required")
	}
	prompt, err := visualPrompt.Render(nil)
	if err != nil {
		return nil, err
	}
	return &GenerateRequest{
		Stage:    StageVisual,
		System:   visualSystem,
		Prompt:   prompt,
		ImageURL: imageURL,
		Vars:     map[string]string{"image_url": imageURL},
	}, nil
}

func (VisualStage) Parse(text string) (*models.VisualHints, error) {
	var v models.VisualHints
	if err := decodePayload(StageVisual, validation.SchemaVisual, text, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// ComponentInput is what the generation stages know about the component.
type ComponentInput struct {
	Identity     repair.Identity
	Request      *models.GenerationRequest
	Requirements *models.Requirements
	Visual       *models.VisualHints
}

// Responsive reports whether responsive styling was requested.
func (in ComponentInput) Responsive() bool {
	return in.Request != nil && models.Enabled(in.Request.Options.Responsive)
}

// Accessibility reports whether accessibility features were requested.
func (in ComponentInput) Accessibility() bool {
	return in.Request != nil && models.Enabled(in.Request.Options.Accessibility)
}

func (in ComponentInput) vars() map[string]string {
	id := in.Identity
	vars := map[string]string{
		"name":          id.Name,
		"title":         id.Title(),
		"group":         id.Group,
		"app":           id.AppID,
		"package":       id.ModelPackage(),
		"class":         id.ClassName(),
		"fqcn":          id.FQCN(),
		"resource_type": id.ResourceType(),
	}
	if in.Requirements != nil {
		vars["fields"] = fieldNames(in.Requirements.Fields)
	}
	return vars
}

type componentPayload struct {
	HTL        string            `mapstructure:"htl"`
	SlingModel string            `mapstructure:"slingModel"`
	Dialog     string            `mapstructure:"dialog"`
	ContentXML string            `mapstructure:"contentXml"`
	Clientlibs *clientlibPayload `mapstructure:"clientlibs"`
}

type clientlibPayload struct {
	CSS           string `mapstructure:"css"`
	JS            string `mapstructure:"js"`
	CategoriesXML string `mapstructure:"categoriesXml"`
}

// ComponentStage generates the core artifact bundle.
type ComponentStage struct{}

func (ComponentStage) Name() string { return StageComponent }

func (ComponentStage) Request(in ComponentInput) (*GenerateRequest, error) {
	if in.Requirements == nil {
		return nil, errors.New("requirements are required")
	}
	prompt, err := componentPrompt.Render(in)
	if err != nil {
		return nil, err
	}
	return &GenerateRequest{Stage: StageComponent, System: componentSystem, Prompt: prompt, Vars: in.vars()}, nil
}

func (ComponentStage) Parse(text string) (*models.ArtifactBundle, error) {
	var p componentPayload
	if err := decodePayload(StageComponent, validation.SchemaComponent, text, &p); err != nil {
		return nil, err
	}

	b := models.NewArtifactBundle()
	setIfPresent := func(name, content string) {
		if strings.TrimSpace(content) != "" {
			b.Set(name, content)
		}
	}
	setIfPresent(models.ArtifactTemplate, p.HTL)
	setIfPresent(models.ArtifactModel, p.SlingModel)
	setIfPresent(models.ArtifactDialog, p.Dialog)
	setIfPresent(models.ArtifactMetadataXML, p.ContentXML)
	if p.Clientlibs != nil {
		Clientlib{Style: p.Clientlibs.CSS, Script: p.Clientlibs.JS, Categories: p.Clientlibs.CategoriesXML}.ApplyTo(b)
	}
	return b, nil
}

// Clientlib is the output of clientlib generation.
type Clientlib struct {
	Style      string
	Script     string
	Categories string
}

// ApplyTo stores the non-blank clientlib entries in b, replacing existing ones.
func (c Clientlib) ApplyTo(b *models.ArtifactBundle) {
	for name, content := range map[string]string{
		models.ClientlibStyle:      c.Style,
		models.ClientlibScript:     c.Script,
		models.ClientlibCategories: c.Categories,
	} {
		if strings.TrimSpace(content) != "" {
			b.SetGrouped(models.GroupClientlib, name, content)
		}
	}
}

// ClientlibStage generates the component's client library.
type ClientlibStage struct{}

func (ClientlibStage) Name() string { return StageClientlib }

func (ClientlibStage) Request(in ComponentInput) (*GenerateRequest, error) {
	if in.Requirements == nil {
		return nil, errors.New("requirements are required")
	}
	prompt, err := clientlibPrompt.Render(in)
	if err != nil {
		return nil, err
	}
	return &GenerateRequest{Stage: StageClientlib, System: clientlibSystem, Prompt: prompt, Vars: in.vars()}, nil
}

func (ClientlibStage) Parse(text string) (*Clientlib, error) {
	var p clientlibPayload
	if err := decodePayload(StageClientlib, validation.SchemaClientlib, text, &p); err != nil {
		return nil, err
	}
	return &Clientlib{Style: p.CSS, Script: p.JS, Categories: p.CategoriesXML}, nil
}

// reviewCategories maps the reviewer's detail keys to rubric categories.
var reviewCategories = map[string]models.Category{
	"completeness":   models.CategoryCompleteness,
	"bestPractices":  models.CategoryBestPractices,
	"best-practices": models.CategoryBestPractices,
	"performance":    models.CategoryPerformance,
	"accessibility":  models.CategoryAccessibility,
	"security":       models.CategorySecurity,
}

// ReviewStage asks for a secondary opinion on a bundle. Parsing is lenient:
// fields with unexpected types are dropped so the scorer can backfill them.
type ReviewStage struct{}

func (ReviewStage) Name() string { return StageReview }

func (ReviewStage) Request(bundle *models.ArtifactBundle) (*GenerateRequest, error) {
	files := map[string]string{}
	for _, p := range bundle.Paths() {
		if content, ok := bundle.Lookup(p); ok {
			files[p] = content
		}
	}
	prompt, err := reviewPrompt.Render(files)
	if err != nil {
		return nil, err
	}
	return &GenerateRequest{Stage: StageReview, System: reviewSystem, Prompt: prompt, Vars: map[string]string{"files": strings.Join(bundle.Paths(), ",")}}, nil
}

func (ReviewStage) Parse(text string) (*models.ReviewOpinion, error) {
	var raw map[string]any
	if err := decodePayload(StageReview, validation.SchemaReview, text, &raw); err != nil {
		return nil, err
	}

	op := &models.ReviewOpinion{}
	if s, ok := raw["validationStatus"].(string); ok {
		op.Status = strings.ToUpper(strings.TrimSpace(s))
	}
	if n, ok := asScore(raw["score"]); ok {
		op.Score = &n
	}
	op.Issues = asStrings(raw["issues"])
	op.Suggestions = asStrings(raw["suggestions"])

	if details, ok := raw["details"].(map[string]any); ok {
		for key, v := range details {
			cat, known := reviewCategories[key]
			if !known {
				continue
			}
			if n, ok := asScore(v); ok {
				if op.Categories == nil {
					op.Categories = map[models.Category]int{}
				}
				op.Categories[cat] = n
			}
		}
	}
	return op, nil
}

// Reviewer produces secondary opinions with a generator under a retry policy.
type Reviewer struct {
	Generator Generator
	Policy    retry.Policy
}

// Review asks the generator for a secondary opinion on bundle. An answer that
// cannot be parsed yields an empty opinion for the scorer to backfill; only a
// failed call is an error.
func (r *Reviewer) Review(ctx context.Context, bundle *models.ArtifactBundle) (*models.ReviewOpinion, error) {
	if r == nil || r.Generator == nil {
		return nil, fmt.Errorf("%s: no generator configured", StageReview)
	}
	op, err := Invoke(ctx, r.Generator, r.Policy, ReviewStage{}, bundle)
	var invalid *InvalidResponseError
	if errors.As(err, &invalid) {
		slog.Warn("Discarding unusable secondary review", "reason", invalid.Reason, "raw", invalid.Raw)
		return &models.ReviewOpinion{}, nil
	}
	return op, err
}

func asScore(v any) (int, bool) {
	f, ok := v.(float64)
	if !ok || math.IsNaN(f) {
		return 0, false
	}
	return models.ClampScore(int(f)), true
}

func asStrings(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
			out = append(out, s)
		}
	}
	return out
}

func fieldNames(fields []models.ComponentField) string {
	names := make([]string, 0, len(fields))
	for _, f := range fields {
		names = append(names, f.Name)
	}
	return strings.Join(names, ",")
}
