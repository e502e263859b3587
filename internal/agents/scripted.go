package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
)

// ScriptedGenerator answers prompts without a model. Queued answers are
// returned first, per stage; afterwards it renders a deterministic,
// well-formed answer from the request variables. It backs offline runs and
// tests.
type ScriptedGenerator struct {
	mu     sync.Mutex
	queued map[string][]scripted
	calls  map[string]int
}

type scripted struct {
	text string
	err  error
}

// NewScriptedGenerator creates an offline generator.
func NewScriptedGenerator() *ScriptedGenerator {
	return &ScriptedGenerator{
		queued: map[string][]scripted{},
		calls:  map[string]int{},
	}
}

// Enqueue queues an answer for the next call of stage.
func (g *ScriptedGenerator) Enqueue(stage, text string) *ScriptedGenerator {
	return g.push(stage, scripted{text: text})
}

// EnqueueError queues a failure for the next call of stage.
func (g *ScriptedGenerator) EnqueueError(stage string, err error) *ScriptedGenerator {
	return g.push(stage, scripted{err: err})
}

func (g *ScriptedGenerator) push(stage string, s scripted) *ScriptedGenerator {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.queued[stage] = append(g.queued[stage], s)
	return g
}

// Calls returns how often stage was asked.
func (g *ScriptedGenerator) Calls(stage string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls[stage]
}

func (g *ScriptedGenerator) Generate(ctx context.Context, req *GenerateRequest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	g.mu.Lock()
	g.calls[req.Stage]++
	var next *scripted
	if q := g.queued[req.Stage]; len(q) > 0 {
		next = &q[0]
		g.queued[req.Stage] = q[1:]
	}
	g.mu.Unlock()

	if next != nil {
		return next.text, next.err
	}
	return defaultAnswer(req)
}

func defaultAnswer(req *GenerateRequest) (string, error) {
	v := req.Vars
	if v == nil {
		v = map[string]string{}
	}

	var payload any
	switch req.Stage {
	case StageRequirements:
		payload = scriptedRequirements(v)
	case StageVisual:
		payload = map[string]any{
			"analysis": map[string]any{"componentType": "content-block", "layoutMethod": "flexbox", "complexity": "simple"},
			"layout":   map[string]any{"type": "flexbox", "columns": 1},
			"html":     map[string]any{"structure": "<section></section>", "cssClasses": []string{}},
			"css":      map[string]any{"variables": map[string]string{"--gap": "1rem"}},
		}
	case StageComponent:
		payload = scriptedComponent(v)
	case StageClientlib:
		payload = scriptedClientlib(v)
	case StageReview:
		payload = map[string]any{
			"validationStatus": "PASS",
			"score":            90,
			"issues":           []string{},
			"suggestions":      []string{},
			"details": map[string]int{
				"completeness": 90, "bestPractices": 90, "performance": 90, "accessibility": 90, "security": 90,
			},
		}
	default:
		return "", fmt.Errorf("scripted generator has no answer for stage %q", req.Stage)
	}

	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return "", err
	}
	return "```json\n" + string(data) + "\n```\n", nil
}

var stopWords = map[string]bool{
	"a": true, "an": true, "the": true, "with": true, "and": true, "for": true, "of": true, "that": true, "to": true,
}

// scriptedName picks a component name from the type or the first words of
// the description.
func scriptedName(v map[string]string) string {
	source := v["component_type"]
	if source == "" {
		source = v["description"]
	}
	var words []string
	for _, w := range strings.Fields(strings.ToLower(source)) {
		w = strings.Trim(w, ".,;:!?\"'()")
		if w == "" || stopWords[w] {
			continue
		}
		words = append(words, w)
		if len(words) == 2 {
			break
		}
	}
	if len(words) == 0 {
		return "component"
	}
	return strings.Join(words, "-")
}

func scriptedFields(list string) []string {
	var names []string
	for _, n := range strings.Split(list, ",") {
		if n = strings.TrimSpace(n); n != "" {
			names = append(names, n)
		}
	}
	if len(names) == 0 {
		names = []string{"title", "description"}
	}
	return names
}

func scriptedRequirements(v map[string]string) map[string]any {
	name := scriptedName(v)
	var fields []map[string]any
	for i, f := range scriptedFields(v["fields"]) {
		fields = append(fields, map[string]any{
			"name":     f,
			"label":    capitalize(f),
			"type":     "textfield",
			"required": i == 0,
		})
	}
	return map[string]any{
		"componentMetadata": map[string]any{
			"name":        name,
			"displayName": titleCase(name),
			"description": v["description"],
			"type":        v["component_type"],
		},
		"fields":   fields,
		"features": map[string]bool{"responsive": true, "accessibility": true},
	}
}

func scriptedComponent(v map[string]string) map[string]any {
	fields := scriptedFields(v["fields"])
	name := v["name"]

	var htl, javaFields, javaGetters, dialogItems strings.Builder
	for _, f := range fields {
		fmt.Fprintf(&htl, "    <p class=\"%s__%s\" data-sly-test=\"${model.%s}\">${model.%s}</p>\n", name, f, f, f)
		fmt.Fprintf(&javaFields, "    @ValueMapValue\n    private String %s;\n\n", f)
		fmt.Fprintf(&javaGetters, "    public String get%s() {\n        return StringUtils.isNotBlank(%s) ? %s : \"\";\n    }\n\n", capitalize(f), f, f)
		fmt.Fprintf(&dialogItems, `            <%s jcr:primaryType="nt:unstructured"
                sling:resourceType="granite/ui/components/coral/foundation/form/textfield"
                fieldLabel="%s"
                name="./%s"/>
`, f, capitalize(f), f)
	}

	template := fmt.Sprintf("<div data-sly-use.model=\"%s\" class=\"%s\" role=\"region\" aria-label=\"%s\">\n%s</div>\n",
		v["fqcn"], name, v["title"], htl.String())

	model := fmt.Sprintf(`package %s;

import javax.annotation.PostConstruct;

import org.apache.commons.lang3.StringUtils;
import org.apache.sling.api.resource.Resource;
import org.apache.sling.models.annotations.DefaultInjectionStrategy;
import org.apache.sling.models.annotations.Model;
import org.apache.sling.models.annotations.injectorspecific.ValueMapValue;

/**
 * Sling model backing the %s component.
 */
@Model(adaptables = Resource.class, resourceType = "%s", defaultInjectionStrategy = DefaultInjectionStrategy.OPTIONAL)
public class %s {

%s    private boolean empty;

    @PostConstruct
    protected void init() {
        empty = StringUtils.isBlank(%s);
    }

    public boolean isEmpty() {
        return empty;
    }

%s}
`, v["package"], v["title"], v["resource_type"], v["class"], javaFields.String(), fields[0], javaGetters.String())

	dialog := fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<jcr:root xmlns:sling="http://sling.apache.org/jcr/sling/1.0" xmlns:jcr="http://www.jcp.org/jcr/1.0" xmlns:nt="http://www.jcp.org/jcr/nt/1.0"
    jcr:primaryType="nt:unstructured"
    jcr:title="%s"
    sling:resourceType="cq/gui/components/authoring/dialog">
    <content jcr:primaryType="nt:unstructured" sling:resourceType="granite/ui/components/coral/foundation/container">
        <items jcr:primaryType="nt:unstructured">
%s        </items>
    </content>
</jcr:root>
`, v["title"], dialogItems.String())

	metadata := fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<jcr:root xmlns:cq="http://www.day.com/jcr/cq/1.0" xmlns:jcr="http://www.jcp.org/jcr/1.0"
    jcr:primaryType="cq:Component"
    jcr:title="%s"
    componentGroup="%s"/>
`, v["title"], v["group"])

	return map[string]any{
		"htl":        template,
		"slingModel": model,
		"dialog":     dialog,
		"contentXml": metadata,
	}
}

func scriptedClientlib(v map[string]string) map[string]any {
	name := v["name"]
	css := fmt.Sprintf(`.%[1]s {
  display: flex;
  flex-direction: column;
  gap: 1rem;
}

.%[1]s a:focus,
.%[1]s a:hover {
  outline: 2px solid currentColor;
}

@media (min-width: 768px) {
  .%[1]s {
    flex-direction: row;
  }
}
`, name)

	js := fmt.Sprintf(`(function () {
  "use strict";

  function init(element) {
    element.classList.add("%[1]s--ready");
  }

  document.addEventListener("DOMContentLoaded", function () {
    document.querySelectorAll(".%[1]s").forEach(init);
  });
})();
`, name)

	categories := fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<jcr:root xmlns:cq="http://www.day.com/jcr/cq/1.0" xmlns:jcr="http://www.jcp.org/jcr/1.0"
    jcr:primaryType="cq:ClientLibraryFolder"
    categories="[%s.components.%s]"/>
`, v["app"], name)

	return map[string]any{"css": css, "js": js, "categoriesXml": categories}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func titleCase(slug string) string {
	words := strings.Split(slug, "-")
	for i, w := range words {
		words[i] = capitalize(w)
	}
	return strings.Join(words, " ")
}
