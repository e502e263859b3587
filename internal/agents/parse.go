package agents

import (
	"encoding/json"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spboyer/aemforge/internal/validation"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

var markdown = goldmark.New()

// extractJSON returns the JSON document embedded in a generator answer. The
// first ```json fenced block wins; an untagged fence is accepted when it
// holds an object. Otherwise the outermost {...} span of the raw text is used.
func extractJSON(answer string) string {
	source := []byte(answer)
	doc := markdown.Parser().Parse(text.NewReader(source))

	var found string
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		block, ok := n.(*ast.FencedCodeBlock)
		if !ok {
			return ast.WalkContinue, nil
		}

		lang := string(block.Language(source))
		if lang != "" && !strings.EqualFold(lang, "json") {
			return ast.WalkSkipChildren, nil
		}

		var b strings.Builder
		lines := block.Lines()
		for i := 0; i < lines.Len(); i++ {
			seg := lines.At(i)
			b.Write(seg.Value(source))
		}
		body := strings.TrimSpace(b.String())
		if lang == "" && !strings.HasPrefix(body, "{") {
			return ast.WalkSkipChildren, nil
		}

		found = body
		return ast.WalkStop, nil
	})
	if found != "" {
		return found
	}

	trimmed := strings.TrimSpace(answer)
	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start >= 0 && end > start {
		return trimmed[start : end+1]
	}
	return trimmed
}

// decodePayload extracts the JSON document from answer, validates it against
// the named schema and decodes it into dst.
func decodePayload(stage, schemaName, answer string, dst any) error {
	body := extractJSON(answer)
	if body == "" {
		return invalidResponse(stage, "empty answer", answer, nil)
	}

	var doc any
	if err := json.Unmarshal([]byte(body), &doc); err != nil {
		return invalidResponse(stage, "answer is not JSON", body, err)
	}
	if _, ok := doc.(map[string]any); !ok {
		return invalidResponse(stage, "answer is not a JSON object", body, nil)
	}

	if errs := validation.Validate(schemaName, doc); len(errs) > 0 {
		return invalidResponse(stage, "schema violation: "+strings.Join(errs, "; "), body, nil)
	}

	if err := mapstructure.Decode(doc, dst); err != nil {
		return invalidResponse(stage, "unexpected field types", body, err)
	}
	return nil
}
