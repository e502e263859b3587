package agents

import (
	"testing"

	"github.com/spboyer/aemforge/internal/models"
	"github.com/spboyer/aemforge/internal/repair"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testInput() ComponentInput {
	return ComponentInput{
		Identity: repair.NewIdentity("hero-banner", "wknd", "com.adobe.wknd", ""),
		Request:  &models.GenerationRequest{Description: "A hero banner"},
		Requirements: &models.Requirements{
			ComponentMetadata: models.ComponentMetadata{Name: "hero-banner"},
			Fields: []models.ComponentField{
				{Name: "title", Type: "textfield"},
				{Name: "subtitle", Type: "textfield"},
			},
		},
	}
}

func TestRequirementsStage_Request(t *testing.T) {
	req := &models.GenerationRequest{
		Description:   "A hero banner with a title",
		ComponentType: "hero",
		Fields:        []models.ComponentField{{Name: "title", Label: "Title", Type: "textfield"}},
	}

	gr, err := RequirementsStage{}.Request(req)
	require.NoError(t, err)
	assert.Equal(t, StageRequirements, gr.Stage)
	assert.Contains(t, gr.Prompt, "User Request: A hero banner with a title")
	assert.Contains(t, gr.Prompt, "Component type: hero")
	assert.Contains(t, gr.Prompt, `"name": "title"`)
	assert.Equal(t, "title", gr.Vars["fields"])

	// the prompt text is the cache fingerprint and must be stable
	again, err := RequirementsStage{}.PromptText(req)
	require.NoError(t, err)
	assert.Equal(t, gr.Prompt, again)

	_, err = RequirementsStage{}.Request(nil)
	require.Error(t, err)
}

func TestVisualStage(t *testing.T) {
	_, err := VisualStage{}.Request("  ")
	require.Error(t, err)

	gr, err := VisualStage{}.Request("https://example.com/hero.png")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/hero.png", gr.ImageURL)

	hints, err := VisualStage{}.Parse(`{"analysis": {"componentType": "hero", "layoutMethod": "flexbox"}, "layout": {"type": "flexbox", "columns": 2}}`)
	require.NoError(t, err)
	assert.Equal(t, "hero", hints.Analysis.ComponentType)
	assert.Equal(t, 2, hints.Layout.Columns)
}

func TestComponentStage_Request(t *testing.T) {
	gr, err := ComponentStage{}.Request(testInput())
	require.NoError(t, err)
	assert.Contains(t, gr.Prompt, "Sling Model Class: com.adobe.wknd.core.models.HeroBannerModel")
	assert.Contains(t, gr.Prompt, "Resource Type: wknd/components/hero-banner")
	assert.NotContains(t, gr.Prompt, "EXTRACTED UI CODE")
	assert.Equal(t, "title,subtitle", gr.Vars["fields"])
	assert.Equal(t, "HeroBannerModel", gr.Vars["class"])

	in := testInput()
	in.Requirements = nil
	_, err = ComponentStage{}.Request(in)
	require.Error(t, err)
}

func TestComponentStage_Parse(t *testing.T) {
	b, err := ComponentStage{}.Parse(`{
		"htl": "<div></div>",
		"slingModel": "public class X {}",
		"dialog": "  ",
		"contentXml": "<jcr:root/>",
		"clientlibs": {"css": ".x{}", "js": ""}
	}`)
	require.NoError(t, err)

	_, ok := b.Get(models.ArtifactTemplate)
	assert.True(t, ok)
	_, ok = b.Get(models.ArtifactDialog)
	assert.False(t, ok, "blank artifacts are left for repair")

	css, ok := b.GetGrouped(models.GroupClientlib, models.ClientlibStyle)
	assert.True(t, ok)
	assert.Equal(t, ".x{}", css)
	_, ok = b.GetGrouped(models.GroupClientlib, models.ClientlibScript)
	assert.False(t, ok)
}

func TestClientlibStage(t *testing.T) {
	_, err := ClientlibStage{}.Parse(`{"categoriesXml": "<jcr:root/>"}`)
	require.Error(t, err, "a clientlib needs css or js")

	cl, err := ClientlibStage{}.Parse(`{"css": ".a{}", "js": "init();"}`)
	require.NoError(t, err)

	b := models.NewArtifactBundle()
	b.SetGrouped(models.GroupClientlib, models.ClientlibStyle, "old")
	cl.ApplyTo(b)

	css, _ := b.GetGrouped(models.GroupClientlib, models.ClientlibStyle)
	js, _ := b.GetGrouped(models.GroupClientlib, models.ClientlibScript)
	assert.Equal(t, ".a{}", css)
	assert.Equal(t, "init();", js)
}

func TestReviewStage_Parse(t *testing.T) {
	op, err := ReviewStage{}.Parse("```json\n" + `{
		"validationStatus": " pass ",
		"score": 140,
		"issues": ["missing alt text", 3, ""],
		"suggestions": "not a list",
		"details": {"completeness": 80, "best-practices": 70, "security": "high", "style": 10}
	}` + "\n```")
	require.NoError(t, err)

	assert.Equal(t, "PASS", op.Status)
	require.NotNil(t, op.Score)
	assert.Equal(t, 100, *op.Score)
	assert.Equal(t, []string{"missing alt text"}, op.Issues)
	assert.Nil(t, op.Suggestions)
	assert.Equal(t, map[models.Category]int{
		models.CategoryCompleteness:  80,
		models.CategoryBestPractices: 70,
	}, op.Categories)
}

func TestReviewStage_ParseEmptyObject(t *testing.T) {
	op, err := ReviewStage{}.Parse(`{}`)
	require.NoError(t, err)
	assert.Empty(t, op.Status)
	assert.Nil(t, op.Score)
	assert.Nil(t, op.Categories)

	_, err = ReviewStage{}.Parse("I could not review this.")
	require.Error(t, err)
}

func TestReviewStage_Request(t *testing.T) {
	b := models.NewArtifactBundle()
	b.Set(models.ArtifactTemplate, "<div></div>")
	b.Placement = map[string]string{models.ArtifactTemplate: "apps/x/x.html"}

	gr, err := ReviewStage{}.Request(b)
	require.NoError(t, err)
	assert.Equal(t, StageReview, gr.Stage)
	assert.Contains(t, gr.Prompt, "FILES TO VALIDATE")
	assert.Contains(t, gr.Prompt, "<div></div>")
}
