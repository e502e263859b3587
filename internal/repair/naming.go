package repair

import (
	"path"
	"regexp"
	"strings"
)

// DefaultComponentName is used when requirements carry no usable name.
const DefaultComponentName = "component"

var (
	disallowedClassChars = regexp.MustCompile(`[^a-z0-9\s_-]`)
	wordSeparators       = regexp.MustCompile(`[\s_-]+`)
)

// ClassName derives the model class name from a component name:
// "hero-banner" becomes "HeroBannerModel".
func ClassName(componentName string) string {
	cleaned := disallowedClassChars.ReplaceAllString(strings.ToLower(componentName), "")

	var b strings.Builder
	for _, word := range wordSeparators.Split(cleaned, -1) {
		if word == "" {
			continue
		}
		b.WriteString(strings.ToUpper(word[:1]))
		b.WriteString(word[1:])
	}

	name := b.String()
	if name == "" {
		name = "Component"
	}
	if !strings.HasSuffix(name, "Model") {
		name += "Model"
	}
	return name
}

// Slug turns a free-form name into the kebab-case form used in paths.
func Slug(name string) string {
	cleaned := disallowedClassChars.ReplaceAllString(strings.ToLower(strings.TrimSpace(name)), "")
	var words []string
	for _, w := range wordSeparators.Split(cleaned, -1) {
		if w != "" {
			words = append(words, w)
		}
	}
	return strings.Join(words, "-")
}

// Identity is everything naming and placement derive from.
type Identity struct {
	// Name is the kebab-case component name.
	Name        string
	DisplayName string
	Group       string
	AppID       string
	PackageName string
	// Folder optionally groups components below components/.
	Folder string
}

// NewIdentity normalizes the component name and folder.
func NewIdentity(name, appID, packageName, folder string) Identity {
	slug := Slug(name)
	if slug == "" {
		slug = DefaultComponentName
	}
	return Identity{
		Name:        slug,
		AppID:       appID,
		PackageName: packageName,
		Folder:      strings.Trim(folder, "/"),
	}
}

// ClassName is the model class name.
func (id Identity) ClassName() string { return ClassName(id.Name) }

// ModelPackage is the Java package of the model class.
func (id Identity) ModelPackage() string { return id.PackageName + ".core.models" }

// FQCN is the fully qualified model class name.
func (id Identity) FQCN() string { return id.ModelPackage() + "." + id.ClassName() }

// ResourceType is the sling resource type of the component.
func (id Identity) ResourceType() string {
	return path.Join(id.AppID, "components", id.Folder, id.Name)
}

// Title is the display name, falling back to a title-cased component name.
func (id Identity) Title() string {
	if id.DisplayName != "" {
		return id.DisplayName
	}
	words := strings.Split(id.Name, "-")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}
