// Package template renders agent prompts.
package template

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"
)

var funcs = template.FuncMap{
	"json": toJSON,
	"join": strings.Join,
}

// Prompt is a parsed prompt template.
type Prompt struct {
	name string
	tmpl *template.Template
}

// MustParse parses a prompt template and panics on syntax errors. Prompts are
// compiled into the binary, so a parse failure is a programming error.
func MustParse(name, text string) *Prompt {
	p, err := Parse(name, text)
	if err != nil {
		panic(err)
	}
	return p
}

// Parse parses a prompt template. Missing map keys are errors.
func Parse(name, text string) (*Prompt, error) {
	t, err := template.New(name).Option("missingkey=error").Funcs(funcs).Parse(text)
	if err != nil {
		return nil, fmt.Errorf("template %s: parse: %w", name, err)
	}
	return &Prompt{name: name, tmpl: t}, nil
}

// Render executes the prompt against data.
func (p *Prompt) Render(data any) (string, error) {
	var buf bytes.Buffer
	if err := p.tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("template %s: render: %w", p.name, err)
	}
	return buf.String(), nil
}

// Render resolves a one-off template string.
// Returns the input unchanged if it contains no template delimiters.
func Render(tmpl string, data any) (string, error) {
	// Fast path: no template delimiters means no work to do.
	if !strings.Contains(tmpl, "{{") {
		return tmpl, nil
	}
	p, err := Parse("inline", tmpl)
	if err != nil {
		return "", err
	}
	return p.Render(data)
}

func toJSON(v any) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}
