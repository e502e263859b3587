// Package repair makes a generated artifact bundle self-consistent: required
// artifacts exist, the template binds the model class, and the model's
// package, resource type and class name match where the files are placed.
package repair

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
	"github.com/spboyer/aemforge/internal/models"
)

// NoticeKind classifies a repair.
type NoticeKind string

const (
	NoticeFallback          NoticeKind = "fallback"
	NoticeTemplateDirective NoticeKind = "template-directive"
	NoticeModelPackage      NoticeKind = "model-package"
	NoticeModelResourceType NoticeKind = "model-resource-type"
	NoticeModelClassName    NoticeKind = "model-class-name"
)

// ConsistencyRepairNotice describes one rewrite applied to a bundle.
// Notices are informational; Err is set for synthesized artifacts.
type ConsistencyRepairNotice struct {
	Artifact string     `json:"artifact"`
	Kind     NoticeKind `json:"kind"`
	Message  string     `json:"message"`
	// Patch is the change in unified patch text form.
	Patch string `json:"patch,omitempty"`
	Err   error  `json:"-"`
}

var (
	slyUseDirective = regexp.MustCompile(`data-sly-use\.(\w+)="([^"]*)"`)
	openingTag      = regexp.MustCompile(`<(\w+)([^>]*?)>`)
	javaClassName   = regexp.MustCompile(`^[A-Za-z_$][\w$]*(?:\.[A-Za-z_$][\w$]*)+$`)

	packageDecl      = regexp.MustCompile(`package\s+[^;]+;`)
	modelAnnotation  = regexp.MustCompile(`@Model\b(\s*\([^)]*\))?`)
	resourceTypeAttr = regexp.MustCompile(`resourceType\s*=\s*"[^"]*"`)
	publicType       = regexp.MustCompile(`public\s+(?:final\s+|abstract\s+)?(?:class|interface)\s+(\w+)`)
)

// Apply returns a repaired copy of bundle and the notices describing every
// change. The input bundle is not modified. A nil bundle is treated as empty.
func Apply(bundle *models.ArtifactBundle, id Identity) (*models.ArtifactBundle, []ConsistencyRepairNotice) {
	out := bundle.Clone()

	var notices []ConsistencyRepairNotice
	record := func(artifact string, kind NoticeKind, msg, before, after string, err error) {
		notices = append(notices, ConsistencyRepairNotice{
			Artifact: artifact,
			Kind:     kind,
			Message:  msg,
			Patch:    patch(before, after),
			Err:      err,
		})
	}

	for _, name := range RequiredArtifacts {
		if _, ok := out.Get(name); ok {
			continue
		}
		before := out.Artifacts[name]
		content := fallback(name, id)
		out.Set(name, content)
		missing := &MissingArtifactError{Artifact: name}
		record(name, NoticeFallback, missing.Error(), before, content, missing)
	}

	tmpl, _ := out.Get(models.ArtifactTemplate)
	if fixed := fixTemplate(tmpl, id); fixed != tmpl {
		out.Set(models.ArtifactTemplate, fixed)
		record(models.ArtifactTemplate, NoticeTemplateDirective,
			fmt.Sprintf("template now binds %s", id.FQCN()), tmpl, fixed, nil)
	}

	model, _ := out.Get(models.ArtifactModel)
	steps := []struct {
		kind NoticeKind
		msg  string
		fix  func(string, Identity) string
	}{
		{NoticeModelPackage, "package set to " + id.ModelPackage(), fixPackage},
		{NoticeModelResourceType, "resourceType set to " + id.ResourceType(), fixResourceType},
		{NoticeModelClassName, "class renamed to " + id.ClassName(), fixClassName},
	}
	for _, step := range steps {
		fixed := step.fix(model, id)
		if fixed == model {
			continue
		}
		record(models.ArtifactModel, step.kind, step.msg, model, fixed, nil)
		model = fixed
	}
	out.Set(models.ArtifactModel, model)

	out.Placement = placementFor(out, id)

	for _, n := range notices {
		slog.Debug("Repaired artifact", "artifact", n.Artifact, "kind", n.Kind, "message", n.Message)
	}
	return out, notices
}

// placementFor maps the artifacts present in b to their file locations.
func placementFor(b *models.ArtifactBundle, id Identity) map[string]string {
	all := Placement(id)
	placement := make(map[string]string, len(all))
	for _, p := range b.Paths() {
		if _, present := b.Lookup(p); !present {
			continue
		}
		if loc, ok := all[p]; ok {
			placement[p] = loc
		}
	}
	return placement
}

// fixTemplate points the template's Java use-binding at the model class.
// Bindings of scripts and template libraries are left alone. The "model"
// variable wins when several bindings name classes; with none, a binding is
// added to the first structural tag.
func fixTemplate(tmpl string, id Identity) string {
	fqcn := id.FQCN()

	var target []int
	taken := map[string]bool{}
	for _, m := range slyUseDirective.FindAllStringSubmatchIndex(tmpl, -1) {
		variable, value := tmpl[m[2]:m[3]], tmpl[m[4]:m[5]]
		taken[variable] = true
		if !bindsClass(value) {
			continue
		}
		if target == nil || variable == "model" {
			target = m
		}
	}
	if target != nil {
		return tmpl[:target[4]] + fqcn + tmpl[target[5]:]
	}

	variable := "model"
	if taken[variable] {
		variable = "slingModel"
	}
	directive := " data-sly-use." + variable + `="` + fqcn + `"`

	tags := openingTag.FindAllStringSubmatchIndex(tmpl, -1)
	if len(tags) == 0 {
		return `<div` + directive + ` class="` + id.Name + `">` + "\n" + tmpl + "\n</div>"
	}
	tag := tags[0]
	for _, m := range tags {
		if tmpl[m[2]:m[3]] != "sly" {
			tag = m
			break
		}
	}
	return tmpl[:tag[3]] + directive + tmpl[tag[3]:]
}

// bindsClass reports whether a data-sly-use value names a Java class rather
// than an HTL template or a script.
func bindsClass(value string) bool {
	if strings.HasSuffix(value, ".html") || strings.HasSuffix(value, ".js") {
		return false
	}
	return javaClassName.MatchString(value)
}

func fixPackage(model string, id Identity) string {
	decl := "package " + id.ModelPackage() + ";"
	loc := packageDecl.FindStringIndex(model)
	if loc == nil {
		return decl + "\n\n" + model
	}
	return model[:loc[0]] + decl + model[loc[1]:]
}

func fixResourceType(model string, id Identity) string {
	m := modelAnnotation.FindStringSubmatchIndex(model)
	if m == nil {
		return model
	}

	attr := `resourceType = "` + id.ResourceType() + `"`
	if m[2] < 0 {
		return model[:m[0]] + "@Model(adaptables = Resource.class, " + attr + ")" + model[m[1]:]
	}

	// args includes the parentheses
	args := model[m[2]:m[3]]
	if loc := resourceTypeAttr.FindStringIndex(args); loc != nil {
		args = args[:loc[0]] + attr + args[loc[1]:]
	} else if inner := strings.TrimSpace(args[strings.Index(args, "(")+1 : len(args)-1]); inner == "" {
		args = "(adaptables = Resource.class, " + attr + ")"
	} else {
		args = "(" + inner + ", " + attr + ")"
	}
	return model[:m[2]] + args + model[m[3]:]
}

func fixClassName(model string, id Identity) string {
	m := publicType.FindStringSubmatchIndex(model)
	if m == nil {
		return model
	}
	current := model[m[2]:m[3]]
	want := id.ClassName()
	if current == want {
		return model
	}
	// constructors and self references follow the declaration
	ident := regexp.MustCompile(`\b` + regexp.QuoteMeta(current) + `\b`)
	return ident.ReplaceAllLiteralString(model, want)
}

func patch(before, after string) string {
	dmp := diffmatchpatch.New()
	return dmp.PatchToText(dmp.PatchMake(before, after))
}
