package models

import (
	"errors"
	"strings"
)

// Defaults applied to requests that leave identity settings blank.
const (
	DefaultAppID            = "myapp"
	DefaultPackageName      = "com.mycompany.myapp"
	DefaultProjectNamespace = "wknd"
	DefaultComponentGroup   = "WKND.Content"
)

// ComponentField is a caller-provided authoring field.
type ComponentField struct {
	Name        string `json:"name" yaml:"name" mapstructure:"name"`
	Label       string `json:"label" yaml:"label" mapstructure:"label"`
	Type        string `json:"type" yaml:"type" mapstructure:"type"`
	Required    bool   `json:"required,omitempty" yaml:"required,omitempty" mapstructure:"required"`
	Description string `json:"description,omitempty" yaml:"description,omitempty" mapstructure:"description"`
}

// GenerationOptions tune how artifacts are produced and checked.
// Nil booleans fall back to their defaults.
type GenerationOptions struct {
	IncludeClientlibs *bool  `json:"include_clientlibs,omitempty" yaml:"include_clientlibs,omitempty"`
	Responsive        *bool  `json:"responsive,omitempty" yaml:"responsive,omitempty"`
	Accessibility     *bool  `json:"accessibility,omitempty" yaml:"accessibility,omitempty"`
	Validate          *bool  `json:"validate,omitempty" yaml:"validate,omitempty"`
	SecondaryOpinion  *bool  `json:"secondary_opinion,omitempty" yaml:"secondary_opinion,omitempty"`
	AppID             string `json:"app_id,omitempty" yaml:"app_id,omitempty"`
	PackageName       string `json:"package_name,omitempty" yaml:"package_name,omitempty"`
	ComponentFolder   string `json:"component_folder,omitempty" yaml:"component_folder,omitempty"`
}

// GenerationRequest is the input accepted by the orchestrator.
type GenerationRequest struct {
	Description      string            `json:"description" yaml:"description"`
	ComponentType    string            `json:"component_type,omitempty" yaml:"component_type,omitempty"`
	Fields           []ComponentField  `json:"fields,omitempty" yaml:"fields,omitempty"`
	ImageURL         string            `json:"image_url,omitempty" yaml:"image_url,omitempty"`
	ProjectNamespace string            `json:"project_namespace,omitempty" yaml:"project_namespace,omitempty"`
	ComponentGroup   string            `json:"component_group,omitempty" yaml:"component_group,omitempty"`
	Options          GenerationOptions `json:"options" yaml:"options,omitempty"`
}

// ErrEmptyDescription is returned for requests without a description.
var ErrEmptyDescription = errors.New("description is required")

// Validate checks the fields the pipeline cannot run without.
func (r *GenerationRequest) Validate() error {
	if strings.TrimSpace(r.Description) == "" {
		return ErrEmptyDescription
	}
	return nil
}

// ApplyDefaults fills blank identity settings from the given defaults,
// falling back to the package constants.
func (r *GenerationRequest) ApplyDefaults(d GenerationOptions, namespace, group string) {
	if r.ProjectNamespace == "" {
		r.ProjectNamespace = firstNonEmpty(namespace, DefaultProjectNamespace)
	}
	if r.ComponentGroup == "" {
		r.ComponentGroup = firstNonEmpty(group, DefaultComponentGroup)
	}
	o := &r.Options
	if o.AppID == "" {
		o.AppID = firstNonEmpty(d.AppID, DefaultAppID)
	}
	if o.PackageName == "" {
		o.PackageName = firstNonEmpty(d.PackageName, DefaultPackageName)
	}
	if o.ComponentFolder == "" {
		o.ComponentFolder = d.ComponentFolder
	}
	o.IncludeClientlibs = orDefault(o.IncludeClientlibs, d.IncludeClientlibs, true)
	o.Responsive = orDefault(o.Responsive, d.Responsive, true)
	o.Accessibility = orDefault(o.Accessibility, d.Accessibility, true)
	o.Validate = orDefault(o.Validate, d.Validate, true)
	o.SecondaryOpinion = orDefault(o.SecondaryOpinion, d.SecondaryOpinion, false)
}

// Enabled dereferences an option flag, treating nil as false.
func Enabled(b *bool) bool {
	return b != nil && *b
}

func orDefault(v, fallback *bool, def bool) *bool {
	if v != nil {
		return v
	}
	if fallback != nil {
		b := *fallback
		return &b
	}
	return &def
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
