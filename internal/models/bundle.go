package models

import (
	"sort"
	"strings"
)

// Artifact names.
const (
	ArtifactModel       = "model"
	ArtifactTemplate    = "template"
	ArtifactDialog      = "dialog"
	ArtifactMetadataXML = "metadata-xml"

	GroupClientlib = "clientlib"

	ClientlibStyle      = "style"
	ClientlibScript     = "script"
	ClientlibCategories = "categories"
)

// ArtifactBundle holds the generated text artifacts of one component.
type ArtifactBundle struct {
	Artifacts map[string]string            `json:"artifacts"`
	Groups    map[string]map[string]string `json:"groups,omitempty"`
	// Placement maps an artifact path (see Path) to its file location.
	Placement map[string]string `json:"placement,omitempty"`
}

// NewArtifactBundle returns an empty bundle.
func NewArtifactBundle() *ArtifactBundle {
	return &ArtifactBundle{
		Artifacts: map[string]string{},
		Groups:    map[string]map[string]string{},
	}
}

// Path joins a group and entry name into the logical path used by
// Placement and reporting, e.g. "clientlib/style".
func Path(group, name string) string {
	if group == "" {
		return name
	}
	return group + "/" + name
}

// Get returns a top-level artifact and whether it is present and non-blank.
func (b *ArtifactBundle) Get(name string) (string, bool) {
	if b == nil {
		return "", false
	}
	v, ok := b.Artifacts[name]
	if !ok || strings.TrimSpace(v) == "" {
		return v, false
	}
	return v, true
}

// GetGrouped returns a grouped artifact and whether it is present and non-blank.
func (b *ArtifactBundle) GetGrouped(group, name string) (string, bool) {
	if b == nil {
		return "", false
	}
	g, ok := b.Groups[group]
	if !ok {
		return "", false
	}
	v, ok := g[name]
	if !ok || strings.TrimSpace(v) == "" {
		return v, false
	}
	return v, true
}

// Set stores a top-level artifact.
func (b *ArtifactBundle) Set(name, content string) {
	if b.Artifacts == nil {
		b.Artifacts = map[string]string{}
	}
	b.Artifacts[name] = content
}

// SetGrouped stores a grouped artifact.
func (b *ArtifactBundle) SetGrouped(group, name, content string) {
	if b.Groups == nil {
		b.Groups = map[string]map[string]string{}
	}
	if b.Groups[group] == nil {
		b.Groups[group] = map[string]string{}
	}
	b.Groups[group][name] = content
}

// Lookup resolves a logical path produced by Path.
func (b *ArtifactBundle) Lookup(path string) (string, bool) {
	if group, name, ok := strings.Cut(path, "/"); ok {
		return b.GetGrouped(group, name)
	}
	return b.Get(path)
}

// Paths lists every artifact path in the bundle in a stable order:
// top-level artifacts first, then grouped ones.
func (b *ArtifactBundle) Paths() []string {
	if b == nil {
		return nil
	}
	var top, grouped []string
	for name := range b.Artifacts {
		top = append(top, name)
	}
	for group, entries := range b.Groups {
		for name := range entries {
			grouped = append(grouped, Path(group, name))
		}
	}
	sort.Strings(top)
	sort.Strings(grouped)
	return append(top, grouped...)
}

// Clone returns a deep copy so repairs never mutate the generator's output.
func (b *ArtifactBundle) Clone() *ArtifactBundle {
	out := NewArtifactBundle()
	if b == nil {
		return out
	}
	for k, v := range b.Artifacts {
		out.Artifacts[k] = v
	}
	for g, entries := range b.Groups {
		for k, v := range entries {
			out.SetGrouped(g, k, v)
		}
	}
	if b.Placement != nil {
		out.Placement = make(map[string]string, len(b.Placement))
		for k, v := range b.Placement {
			out.Placement[k] = v
		}
	}
	return out
}
