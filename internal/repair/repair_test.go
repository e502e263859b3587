package repair

import (
	"errors"
	"strings"
	"testing"

	"github.com/spboyer/aemforge/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testIdentity() Identity {
	return NewIdentity("hero-banner", "wknd", "com.adobe.wknd", "")
}

func completeBundle() *models.ArtifactBundle {
	id := testIdentity()
	b := models.NewArtifactBundle()
	b.Set(models.ArtifactTemplate, fallbackTemplate(id))
	b.Set(models.ArtifactModel, fallbackModel(id))
	b.Set(models.ArtifactDialog, fallbackDialog(id))
	b.Set(models.ArtifactMetadataXML, fallbackMetadata(id))
	return b
}

func TestClassName(t *testing.T) {
	tests := map[string]string{
		"feature-grid":      "FeatureGridModel",
		"accordion":         "AccordionModel",
		"two-column-layout": "TwoColumnLayoutModel",
		"Hero Banner!":      "HeroBannerModel",
		"image_carousel":    "ImageCarouselModel",
		"card--grid":        "CardGridModel",
		"hero-model":        "HeroModel",
		"":                  "ComponentModel",
	}
	for in, want := range tests {
		t.Run(in, func(t *testing.T) {
			assert.Equal(t, want, ClassName(in))
		})
	}
}

func TestNewIdentity(t *testing.T) {
	id := NewIdentity("  Hero Banner ", "wknd", "com.adobe.wknd", "/content/")
	assert.Equal(t, "hero-banner", id.Name)
	assert.Equal(t, "content", id.Folder)
	assert.Equal(t, "com.adobe.wknd.core.models.HeroBannerModel", id.FQCN())
	assert.Equal(t, "wknd/components/content/hero-banner", id.ResourceType())
	assert.Equal(t, "Hero Banner", id.Title())

	assert.Equal(t, DefaultComponentName, NewIdentity("!!!", "a", "b", "").Name)
}

func TestPlacement(t *testing.T) {
	p := Placement(testIdentity())
	base := "ui.apps/src/main/content/jcr_root/apps/wknd/components/hero-banner"
	assert.Equal(t, base+"/hero-banner.html", p[models.ArtifactTemplate])
	assert.Equal(t, "core/src/main/java/com/adobe/wknd/core/models/HeroBannerModel.java", p[models.ArtifactModel])
	assert.Equal(t, base+"/_cq_dialog/.content.xml", p[models.ArtifactDialog])
	assert.Equal(t, base+"/.content.xml", p[models.ArtifactMetadataXML])
	assert.Equal(t, base+"/clientlibs/css/hero-banner.css", p["clientlib/style"])
	assert.Equal(t, base+"/clientlibs/js/hero-banner.js", p["clientlib/script"])
	assert.Equal(t, base+"/clientlibs/.content.xml", p["clientlib/categories"])

	folder := Placement(NewIdentity("hero-banner", "wknd", "com.adobe.wknd", "content"))
	assert.Equal(t, "ui.apps/src/main/content/jcr_root/apps/wknd/components/content/hero-banner/hero-banner.html", folder[models.ArtifactTemplate])
}

func TestApply_SynthesizesMissingArtifacts(t *testing.T) {
	b := models.NewArtifactBundle()
	b.Set(models.ArtifactTemplate, `<section class="hero"></section>`)
	b.Set(models.ArtifactDialog, "   ")

	out, notices := Apply(b, testIdentity())

	for _, name := range RequiredArtifacts {
		_, ok := out.Get(name)
		assert.True(t, ok, "%s should be present after repair", name)
	}

	var missing []string
	for _, n := range notices {
		if n.Kind != NoticeFallback {
			continue
		}
		var mae *MissingArtifactError
		require.True(t, errors.As(n.Err, &mae))
		missing = append(missing, mae.Artifact)
		assert.NotEmpty(t, n.Patch)
	}
	assert.ElementsMatch(t, []string{models.ArtifactModel, models.ArtifactDialog, models.ArtifactMetadataXML}, missing)

	_, ok := b.Get(models.ArtifactModel)
	assert.False(t, ok, "input bundle must not be mutated")
}

func TestApply_NilBundle(t *testing.T) {
	out, notices := Apply(nil, testIdentity())
	require.NotNil(t, out)
	assert.Len(t, notices, len(RequiredArtifacts))
	assert.Len(t, out.Placement, len(RequiredArtifacts))
}

func TestApply_CompleteBundleIsStable(t *testing.T) {
	out, notices := Apply(completeBundle(), testIdentity())
	assert.Empty(t, notices)

	again, notices := Apply(out, testIdentity())
	assert.Empty(t, notices)
	assert.Equal(t, out.Artifacts, again.Artifacts)
}

func TestFixTemplate(t *testing.T) {
	id := testIdentity()
	fqcn := id.FQCN()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "injects into first tag",
			in:   `<section class="hero"><h2>${properties.title}</h2></section>`,
			want: `<section data-sly-use.model="` + fqcn + `" class="hero"><h2>${properties.title}</h2></section>`,
		},
		{
			name: "wraps text without tags",
			in:   `${properties.title}`,
			want: `<div data-sly-use.model="` + fqcn + `" class="hero-banner">` + "\n${properties.title}\n</div>",
		},
		{
			name: "rewrites class binding and keeps variable",
			in:   `<div data-sly-use.hero="com.example.Wrong"><sly data-sly-use.tpl="core/templates.html"/></div>`,
			want: `<div data-sly-use.hero="` + fqcn + `"><sly data-sly-use.tpl="core/templates.html"/></div>`,
		},
		{
			name: "template library before class binding untouched",
			in:   `<sly data-sly-use.templates="core/wcm/components/commons/v1/templates.html"/>` + "\n" + `<div data-sly-use.hero="com.example.Wrong" class="hero"></div>`,
			want: `<sly data-sly-use.templates="core/wcm/components/commons/v1/templates.html"/>` + "\n" + `<div data-sly-use.hero="` + fqcn + `" class="hero"></div>`,
		},
		{
			name: "model variable preferred",
			in:   `<div data-sly-use.img="com.example.Image" data-sly-use.model="com.example.Wrong"></div>`,
			want: `<div data-sly-use.img="com.example.Image" data-sly-use.model="` + fqcn + `"></div>`,
		},
		{
			name: "only script and library bindings gets a model binding on first structural tag",
			in:   `<sly data-sly-use.templates="core/templates.html"/>` + "\n" + `<div data-sly-use.model="helper.js" class="hero"></div>`,
			want: `<sly data-sly-use.templates="core/templates.html"/>` + "\n" + `<div data-sly-use.slingModel="` + fqcn + `" data-sly-use.model="helper.js" class="hero"></div>`,
		},
		{
			name: "correct directive unchanged",
			in:   `<div data-sly-use.model="` + fqcn + `"></div>`,
			want: `<div data-sly-use.model="` + fqcn + `"></div>`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, fixTemplate(tt.in, id))
		})
	}
}

func TestFixPackage(t *testing.T) {
	id := testIdentity()
	assert.Equal(t,
		"package com.adobe.wknd.core.models;\n\npublic class X {}",
		fixPackage("package com.example.models;\n\npublic class X {}", id))
	assert.Equal(t,
		"package com.adobe.wknd.core.models;\n\npublic class X {}",
		fixPackage("public class X {}", id))
}

func TestFixResourceType(t *testing.T) {
	id := NewIdentity("hero-banner", "wknd", "com.adobe.wknd", "content")

	replaced := fixResourceType(`@Model(adaptables = Resource.class, resourceType = "old/components/x")`, id)
	assert.Equal(t, `@Model(adaptables = Resource.class, resourceType = "wknd/components/content/hero-banner")`, replaced)

	added := fixResourceType(`@Model(adaptables = SlingHttpServletRequest.class)`, id)
	assert.Equal(t, `@Model(adaptables = SlingHttpServletRequest.class, resourceType = "wknd/components/content/hero-banner")`, added)

	kept := fixResourceType("@Model(\n    adaptables = SlingHttpServletRequest.class,\n    adapters = { ComponentExporter.class },\n    defaultInjectionStrategy = DefaultInjectionStrategy.OPTIONAL\n)", id)
	assert.Equal(t, "@Model(adaptables = SlingHttpServletRequest.class,\n    adapters = { ComponentExporter.class },\n    defaultInjectionStrategy = DefaultInjectionStrategy.OPTIONAL, resourceType = \"wknd/components/content/hero-banner\")", kept)

	empty := fixResourceType(`@Model()`, id)
	assert.Equal(t, `@Model(adaptables = Resource.class, resourceType = "wknd/components/content/hero-banner")`, empty)

	bare := fixResourceType("@Model\npublic class X {}", id)
	assert.Equal(t, "@Model(adaptables = Resource.class, resourceType = \"wknd/components/content/hero-banner\")\npublic class X {}", bare)

	noAnnotation := "public class X {}"
	assert.Equal(t, noAnnotation, fixResourceType(noAnnotation, id))
}

func TestFixClassName(t *testing.T) {
	id := testIdentity()
	in := "public class Hero {\n    public Hero() {}\n    private HeroHelper helper;\n}"
	out := fixClassName(in, id)
	assert.Equal(t, "public class HeroBannerModel {\n    public HeroBannerModel() {}\n    private HeroHelper helper;\n}", out)

	iface := fixClassName("public interface Banner {}", id)
	assert.Equal(t, "public interface HeroBannerModel {}", iface)
}

func TestApply_ModelRepairsProduceNotices(t *testing.T) {
	b := completeBundle()
	b.Set(models.ArtifactModel, `package com.example;

@Model(adaptables = Resource.class)
public class Banner {
}`)

	out, notices := Apply(b, testIdentity())

	kinds := map[NoticeKind]bool{}
	for _, n := range notices {
		kinds[n.Kind] = true
		assert.Nil(t, n.Err)
		assert.True(t, strings.HasPrefix(n.Patch, "@@"), "patch should be unified patch text")
	}
	assert.True(t, kinds[NoticeModelPackage])
	assert.True(t, kinds[NoticeModelResourceType])
	assert.True(t, kinds[NoticeModelClassName])

	model, _ := out.Get(models.ArtifactModel)
	assert.Contains(t, model, "package com.adobe.wknd.core.models;")
	assert.Contains(t, model, `resourceType = "wknd/components/hero-banner"`)
	assert.Contains(t, model, "public class HeroBannerModel")
}

func TestApply_PlacementOnlyForPresentArtifacts(t *testing.T) {
	b := completeBundle()
	b.SetGrouped(models.GroupClientlib, models.ClientlibStyle, ".hero-banner{}")
	b.SetGrouped(models.GroupClientlib, models.ClientlibScript, "")

	out, _ := Apply(b, testIdentity())
	assert.Contains(t, out.Placement, "clientlib/style")
	assert.NotContains(t, out.Placement, "clientlib/script")
	assert.NotContains(t, out.Placement, "clientlib/categories")
}
