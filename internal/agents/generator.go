// Package agents holds the content-generation stages of the pipeline and the
// generator backends that answer their prompts.
package agents

import (
	"context"
)

// Stage names, used in logs, retry messages and scripted responses.
const (
	StageRequirements = "requirement-analysis"
	StageVisual       = "image-analysis"
	StageComponent    = "component-generation"
	StageClientlib    = "clientlib-generation"
	StageReview       = "secondary-review"
)

// GenerateRequest is a single prompt sent to a generator.
type GenerateRequest struct {
	// Stage identifies the pipeline stage issuing the prompt.
	Stage string
	// System is the role/instructions prompt.
	System string
	// Prompt is the user prompt.
	Prompt string
	// ImageURL is set for vision prompts; http(s) or data: URLs.
	ImageURL string
	// Vars are the values the prompt was rendered from. Offline generators
	// use them to build deterministic answers.
	Vars map[string]string
}

//go:generate go tool mockgen -source=generator.go -destination=mock_generator.go -package=agents

// Generator answers prompts with free text.
type Generator interface {
	// Generate returns the generator's text answer. Connectivity, timeout and
	// rate failures are returned as *TransientError.
	Generate(ctx context.Context, req *GenerateRequest) (string, error)
}
