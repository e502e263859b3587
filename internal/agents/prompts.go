package agents

import (
	"github.com/spboyer/aemforge/internal/template"
)

const requirementsSystem = `You are an AEM Component Requirements Analyzer. Extract and structure component requirements from user input.

Analyze the user's request and extract the component name and type, the authorable fields with their types, and any functional features.

Respond with JSON only:
{
  "componentMetadata": {"name": "component-name", "displayName": "Component Display Name", "group": "Component.Group", "description": "Component description", "type": "component type"},
  "fields": [{"name": "fieldName", "label": "Field Label", "type": "textfield", "required": true, "description": "Field description"}],
  "features": {"responsive": true, "accessibility": true, "lazyLoading": false, "animations": false}
}`

const visualSystem = `You are a UI component analyzer. Extract semantic, accessible HTML structure and CSS styling from the provided component image.

Respond with JSON only:
{
  "analysis": {"componentType": "form|card|navigation|hero|content-block|list", "layoutMethod": "css-grid|flexbox|hybrid", "complexity": "simple|moderate|complex"},
  "layout": {"type": "grid|flexbox|block", "columns": 2},
  "html": {"structure": "<!-- semantic HTML5 with BEM classes -->", "cssClasses": ["block", "block__element"]},
  "css": {"variables": {"--gap": "2rem"}, "layout": "/* layout rules */", "styles": "/* complete styles */"}
}`

const componentSystem = `You are an expert AEM Component Generator. Create a complete, production-ready AEM component.

- The HTL template MUST bind the Sling Model with data-sly-use, render conditionally with data-sly-test and carry ARIA attributes.
- The Sling Model uses @Model with adaptables and resourceType, @ValueMapValue injection, null-safe accessors and JavaDoc.
- The dialog uses Granite UI components with a fieldLabel on every field.
- No placeholders, TODOs or truncated code.

Respond with a single JSON object:
{
  "htl": "complete HTL template",
  "slingModel": "complete Java Sling Model class",
  "dialog": "complete dialog XML",
  "contentXml": "complete component .content.xml"
}`

const clientlibSystem = `You are an AEM front-end developer. Write the client library of a component: responsive CSS with focus and hover states, JavaScript that initializes every component instance with addEventListener, and the clientlib category definition.

Respond with a single JSON object:
{"css": "complete CSS", "js": "complete JavaScript", "categoriesXml": "complete clientlib .content.xml"}`

const reviewSystem = `You are an AEM Component Quality Validator. Review the generated component for completeness, AEM best practices, performance, accessibility and security.

Respond with JSON only:
{
  "validationStatus": "PASS|FAIL",
  "score": 0,
  "issues": ["critical issues"],
  "suggestions": ["improvements"],
  "details": {"completeness": 0, "bestPractices": 0, "performance": 0, "accessibility": 0, "security": 0}
}`

var requirementsPrompt = template.MustParse("requirements", `User Request: {{.Description}}
{{- if .ComponentType}}

Component type: {{.ComponentType}}
{{- end}}
{{- if .Fields}}

Provided fields: {{json .Fields}}
{{- end}}`)

var visualPrompt = template.MustParse("visual", `Analyze this component image and extract its HTML structure and CSS styling.`)

var componentPrompt = template.MustParse("component", `Generate a complete AEM component based on these specifications:

CONFIGURATION:
- App ID: {{.Identity.AppID}}
- Package Name: {{.Identity.PackageName}}
- Component Name: {{.Identity.Name}}
- Display Name: {{.Identity.Title}}
- Component Group: {{.Identity.Group}}
- Sling Model Class: {{.Identity.FQCN}}
- Resource Type: {{.Identity.ResourceType}}

REQUIREMENTS:
{{json .Requirements}}
{{- if .Visual}}

EXTRACTED UI CODE:
{{json .Visual}}
{{- end}}

OPTIONS:
- Responsive: {{.Responsive}}
- Accessibility: {{.Accessibility}}

The HTL template MUST start with: <div data-sly-use.model="{{.Identity.FQCN}}" class="{{.Identity.Name}}">
The Sling Model MUST declare: package {{.Identity.ModelPackage}}; and public class {{.Identity.ClassName}}
with @Model(adaptables = Resource.class, resourceType = "{{.Identity.ResourceType}}").`)

var clientlibPrompt = template.MustParse("clientlib", `Write the client library for the AEM component "{{.Identity.Name}}" ({{.Identity.Title}}).

Category: {{.Identity.AppID}}.components.{{.Identity.Name}}
Root CSS class: .{{.Identity.Name}}
Responsive: {{.Responsive}}
Accessibility: {{.Accessibility}}

REQUIREMENTS:
{{json .Requirements}}
{{- if .Visual}}

EXTRACTED STYLES:
{{json .Visual.CSS}}
{{- end}}`)

var reviewPrompt = template.MustParse("review", `Review this AEM component and provide a detailed validation.

FILES TO VALIDATE:
{{json .}}`)
