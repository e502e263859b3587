package models

// ComponentMetadata identifies the component being generated.
type ComponentMetadata struct {
	Name        string `json:"name" mapstructure:"name"`
	DisplayName string `json:"displayName,omitempty" mapstructure:"displayName"`
	Group       string `json:"group,omitempty" mapstructure:"group"`
	Description string `json:"description,omitempty" mapstructure:"description"`
	Type        string `json:"type,omitempty" mapstructure:"type"`
}

// Requirements is the structured output of requirement extraction.
type Requirements struct {
	ComponentMetadata ComponentMetadata `json:"componentMetadata" mapstructure:"componentMetadata"`
	Fields            []ComponentField  `json:"fields" mapstructure:"fields"`
	Features          map[string]bool   `json:"features,omitempty" mapstructure:"features"`
}

// VisualAnalysis summarizes what the image shows.
type VisualAnalysis struct {
	ComponentType string `json:"componentType,omitempty" mapstructure:"componentType"`
	LayoutMethod  string `json:"layoutMethod,omitempty" mapstructure:"layoutMethod"`
	Complexity    string `json:"complexity,omitempty" mapstructure:"complexity"`
}

// VisualLayout describes the detected grid or flex layout.
type VisualLayout struct {
	Type    string `json:"type,omitempty" mapstructure:"type"`
	Columns int    `json:"columns,omitempty" mapstructure:"columns"`
}

// VisualHTML carries the markup extracted from the image.
type VisualHTML struct {
	Structure  string   `json:"structure,omitempty" mapstructure:"structure"`
	CSSClasses []string `json:"cssClasses,omitempty" mapstructure:"cssClasses"`
}

// VisualCSS carries the styling extracted from the image.
type VisualCSS struct {
	Variables map[string]string `json:"variables,omitempty" mapstructure:"variables"`
	Layout    string            `json:"layout,omitempty" mapstructure:"layout"`
	Styles    string            `json:"styles,omitempty" mapstructure:"styles"`
}

// VisualHints is the structured output of visual extraction.
type VisualHints struct {
	Analysis VisualAnalysis `json:"analysis" mapstructure:"analysis"`
	Layout   VisualLayout   `json:"layout" mapstructure:"layout"`
	HTML     VisualHTML     `json:"html" mapstructure:"html"`
	CSS      VisualCSS      `json:"css" mapstructure:"css"`
}
