package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestArtifactBundle_LookupAndPaths(t *testing.T) {
	b := NewArtifactBundle()
	b.Set(ArtifactTemplate, "<div></div>")
	b.Set(ArtifactModel, "public class Hero {}")
	b.Set(ArtifactDialog, "   ")
	b.SetGrouped(GroupClientlib, ClientlibStyle, ".hero {}")
	b.SetGrouped(GroupClientlib, ClientlibScript, "")

	assert.Equal(t, []string{
		ArtifactDialog, ArtifactModel, ArtifactTemplate,
		"clientlib/script", "clientlib/style",
	}, b.Paths())

	v, ok := b.Lookup(ArtifactTemplate)
	assert.True(t, ok)
	assert.Equal(t, "<div></div>", v)

	_, ok = b.Lookup(ArtifactDialog)
	assert.False(t, ok, "blank artifacts are absent")

	v, ok = b.Lookup(Path(GroupClientlib, ClientlibStyle))
	assert.True(t, ok)
	assert.Equal(t, ".hero {}", v)

	_, ok = b.Lookup(Path(GroupClientlib, ClientlibScript))
	assert.False(t, ok)
	_, ok = b.Lookup("missing/style")
	assert.False(t, ok)
}

func TestArtifactBundle_NilSafe(t *testing.T) {
	var b *ArtifactBundle
	assert.Nil(t, b.Paths())
	_, ok := b.Get(ArtifactModel)
	assert.False(t, ok)
	_, ok = b.GetGrouped(GroupClientlib, ClientlibStyle)
	assert.False(t, ok)
	assert.NotNil(t, b.Clone())
}

func TestArtifactBundle_Clone(t *testing.T) {
	b := &ArtifactBundle{}
	b.Set(ArtifactModel, "model")
	b.SetGrouped(GroupClientlib, ClientlibStyle, "css")
	b.Placement = map[string]string{ArtifactModel: "core/Hero.java"}

	c := b.Clone()
	c.Set(ArtifactModel, "changed")
	c.SetGrouped(GroupClientlib, ClientlibStyle, "changed")
	c.Placement[ArtifactModel] = "elsewhere"

	assert.Equal(t, "model", b.Artifacts[ArtifactModel])
	assert.Equal(t, "css", b.Groups[GroupClientlib][ClientlibStyle])
	assert.Equal(t, "core/Hero.java", b.Placement[ArtifactModel])
}

func TestPath(t *testing.T) {
	assert.Equal(t, "model", Path("", "model"))
	assert.Equal(t, "clientlib/style", Path(GroupClientlib, ClientlibStyle))
}
