// Package validation checks agent payloads and rubric files against the
// embedded JSON schemas.
package validation

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"gopkg.in/yaml.v3"
)

// Schema names accepted by Validate. Each maps to schemas/<name>.schema.json.
const (
	SchemaRequirements = "requirements"
	SchemaVisual       = "visual"
	SchemaComponent    = "component"
	SchemaClientlib    = "clientlib"
	SchemaReview       = "review"
	SchemaRubric       = "rubric"
)

//go:embed schemas/*.schema.json
var schemaFS embed.FS

var printer = message.NewPrinter(language.English)

// compiledSchemas builds every embedded schema once, on first use. A broken
// embedded schema is a build defect, so it panics.
var compiledSchemas = sync.OnceValue(func() map[string]*jsonschema.Schema {
	files, err := schemaFS.ReadDir("schemas")
	if err != nil {
		panic(fmt.Sprintf("validation: reading embedded schemas: %v", err))
	}

	c := jsonschema.NewCompiler()
	var names []string
	for _, f := range files {
		raw, err := schemaFS.ReadFile(path.Join("schemas", f.Name()))
		if err != nil {
			panic(fmt.Sprintf("validation: reading %s: %v", f.Name(), err))
		}
		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
		if err != nil {
			panic(fmt.Sprintf("validation: parsing %s: %v", f.Name(), err))
		}
		if err := c.AddResource(f.Name(), doc); err != nil {
			panic(fmt.Sprintf("validation: adding %s: %v", f.Name(), err))
		}
		names = append(names, f.Name())
	}

	out := make(map[string]*jsonschema.Schema, len(names))
	for _, file := range names {
		sch, err := c.Compile(file)
		if err != nil {
			panic(fmt.Sprintf("validation: compiling %s: %v", file, err))
		}
		out[strings.TrimSuffix(file, ".schema.json")] = sch
	}
	return out
})

// Validate checks a document decoded by jsonschema.UnmarshalJSON (or
// encoding/json) against the named schema. It returns one "<pointer>: <reason>"
// message per violated leaf constraint, or nil.
func Validate(schemaName string, instance any) []string {
	sch, ok := compiledSchemas()[schemaName]
	if !ok {
		return []string{fmt.Sprintf("unknown schema %q", schemaName)}
	}

	err := sch.Validate(instance)
	if err == nil {
		return nil
	}
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return []string{fmt.Sprintf("schema: %v", err)}
	}
	return violations(ve)
}

// ValidateJSONBytes decodes data and validates it against the named schema.
func ValidateJSONBytes(schemaName string, data []byte) []string {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return []string{fmt.Sprintf("JSON parse error: %v", err)}
	}
	return Validate(schemaName, doc)
}

// ValidateYAMLBytes decodes YAML and validates it against the named schema.
// An empty document validates as an empty mapping.
func ValidateYAMLBytes(schemaName string, data []byte) []string {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return []string{fmt.Sprintf("YAML parse error: %v", err)}
	}
	if doc == nil {
		return Validate(schemaName, map[string]any{})
	}
	return Validate(schemaName, fromYAML(doc))
}

// violations flattens the cause tree depth first, keeping only leaves.
func violations(root *jsonschema.ValidationError) []string {
	var msgs []string
	stack := []*jsonschema.ValidationError{root}
	for len(stack) > 0 {
		ve := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if len(ve.Causes) > 0 {
			for i := len(ve.Causes) - 1; i >= 0; i-- {
				stack = append(stack, ve.Causes[i])
			}
			continue
		}
		msgs = append(msgs, "/"+strings.Join(ve.InstanceLocation, "/")+": "+ve.ErrorKind.LocalizedString(printer))
	}
	return msgs
}

// fromYAML rewrites yaml.v3 scalars into the shapes the validator accepts:
// numbers become json.Number and non-string keys are stringified.
func fromYAML(v any) any {
	switch val := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(val))
		for k, item := range val {
			m[k] = fromYAML(item)
		}
		return m
	case map[any]any:
		m := make(map[string]any, len(val))
		for k, item := range val {
			m[fmt.Sprint(k)] = fromYAML(item)
		}
		return m
	case []any:
		s := make([]any, len(val))
		for i, item := range val {
			s[i] = fromYAML(item)
		}
		return s
	case int, int64, uint64, float64:
		return json.Number(fmt.Sprint(val))
	default:
		return val
	}
}
