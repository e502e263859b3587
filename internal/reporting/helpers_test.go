package reporting

import (
	"time"

	"github.com/spboyer/aemforge/internal/models"
)

func newTestResult() *models.JobResult {
	b := models.NewArtifactBundle()
	b.Set(models.ArtifactModel, "package com.adobe.wknd.core.models;\n\npublic class HeroBannerModel {}\n")
	b.Set(models.ArtifactTemplate, `<div class="hero-banner" data-sly-use.model="com.adobe.wknd.core.models.HeroBannerModel"></div>`)
	b.SetGrouped(models.GroupClientlib, models.ClientlibScript, "// uses ```fences``` in a comment\n")
	b.Placement = map[string]string{
		models.ArtifactModel: "core/src/main/java/com/adobe/wknd/core/models/HeroBannerModel.java",
	}

	return &models.JobResult{
		JobID:         "job-1",
		Status:        models.JobCompleted,
		ComponentName: "hero-banner",
		ComponentType: "banner",
		Bundle:        b,
		Validation: &models.ValidationReport{
			Status:      models.ValidationFail,
			Score:       64,
			Issues:      []string{"Missing required file: dialog", "Potential XSS vulnerability: avoid innerHTML"},
			Suggestions: []string{"Add ARIA attributes for accessibility"},
			Categories: map[models.Category]int{
				models.CategoryCompleteness:  75,
				models.CategoryBestPractices: 60,
				models.CategoryPerformance:   100,
				models.CategoryAccessibility: 90,
				models.CategorySecurity:      80,
			},
		},
		Metadata: models.ResultMetadata{GeneratedAt: time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)},
	}
}
