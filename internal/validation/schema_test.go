package validation

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateJSONBytes_Requirements(t *testing.T) {
	valid := `{"componentMetadata":{"name":"hero-banner","displayName":"Hero Banner"},
		"fields":[{"name":"title","type":"textfield","required":true}],
		"features":{"responsive":true}}`
	require.Empty(t, ValidateJSONBytes(SchemaRequirements, []byte(valid)))

	errs := ValidateJSONBytes(SchemaRequirements, []byte(`{"fields":[{"label":"x"}]}`))
	require.NotEmpty(t, errs)
	joined := strings.Join(errs, "\n")
	assert.Contains(t, joined, "componentMetadata")
	assert.Contains(t, joined, "/fields/0")
}

func TestValidateJSONBytes_ParseError(t *testing.T) {
	errs := ValidateJSONBytes(SchemaComponent, []byte(`{"htl":`))
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "JSON parse error")
}

func TestValidate_Component(t *testing.T) {
	require.Empty(t, Validate(SchemaComponent, map[string]any{
		"htl":        "<div></div>",
		"slingModel": "package a;",
		"clientlibs": map[string]any{"css": ".a{}"},
	}))

	errs := Validate(SchemaComponent, map[string]any{"htl": true})
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "/htl")
}

func TestValidate_ClientlibNeedsCode(t *testing.T) {
	require.Empty(t, Validate(SchemaClientlib, map[string]any{"js": "init();"}))
	require.NotEmpty(t, Validate(SchemaClientlib, map[string]any{"categoriesXml": "<jcr:root/>"}))
}

func TestValidate_UnknownSchema(t *testing.T) {
	errs := Validate("nope", map[string]any{})
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "unknown schema")
}

func TestValidateYAMLBytes_Rubric(t *testing.T) {
	valid := `
required_penalty: 20
groups:
  - artifact: template
    bonus_threshold: 3
    bonus_category: best-practices
    bonus_points: 5
    rules:
      - name: aria
        pattern: 'aria-\w+'
        category: accessibility
        absent: -10
`
	require.Empty(t, ValidateYAMLBytes(SchemaRubric, []byte(valid)))

	invalid := `
groups:
  - artifact: template
    rules:
      - name: aria
        pattern: 'aria-\w+'
        category: styling
unknown_key: true
`
	errs := ValidateYAMLBytes(SchemaRubric, []byte(invalid))
	require.GreaterOrEqual(t, len(errs), 2)
	assert.Contains(t, strings.Join(errs, "\n"), "/groups/0/rules/0/category")

	errs = ValidateYAMLBytes(SchemaRubric, []byte("groups: [unclosed"))
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "YAML parse error")
}

func TestValidateYAMLBytes_EmptyDocument(t *testing.T) {
	assert.Empty(t, ValidateYAMLBytes(SchemaRubric, []byte("")))
}

func TestCompiledSchemas_AllEmbedded(t *testing.T) {
	schemas := compiledSchemas()
	for _, name := range []string{SchemaRequirements, SchemaVisual, SchemaComponent, SchemaClientlib, SchemaReview, SchemaRubric} {
		assert.Contains(t, schemas, name)
	}
	assert.Len(t, schemas, 6)
}

func TestFromYAML(t *testing.T) {
	got := fromYAML(map[string]any{
		"points": 5,
		"ratio":  0.5,
		"nested": map[any]any{1: "one"},
		"list":   []any{int64(2), "x"},
	})
	assert.Equal(t, map[string]any{
		"points": json.Number("5"),
		"ratio":  json.Number("0.5"),
		"nested": map[string]any{"1": "one"},
		"list":   []any{json.Number("2"), "x"},
	}, got)
}
