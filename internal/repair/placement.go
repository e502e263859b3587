package repair

import (
	"path"
	"strings"

	"github.com/spboyer/aemforge/internal/models"
)

// ComponentDir is the component's folder in the ui.apps module.
func (id Identity) ComponentDir() string {
	return path.Join("ui.apps/src/main/content/jcr_root/apps", id.AppID, "components", id.Folder, id.Name)
}

// ModelFile is the model source file in the core module.
func (id Identity) ModelFile() string {
	pkgPath := strings.ReplaceAll(id.PackageName, ".", "/")
	return path.Join("core/src/main/java", pkgPath, "core/models", id.ClassName()+".java")
}

// Placement returns the file location of every artifact path.
func Placement(id Identity) map[string]string {
	dir := id.ComponentDir()
	clientlibs := path.Join(dir, "clientlibs")
	return map[string]string{
		models.ArtifactTemplate:    path.Join(dir, id.Name+".html"),
		models.ArtifactModel:       id.ModelFile(),
		models.ArtifactDialog:      path.Join(dir, "_cq_dialog/.content.xml"),
		models.ArtifactMetadataXML: path.Join(dir, ".content.xml"),

		models.Path(models.GroupClientlib, models.ClientlibStyle):      path.Join(clientlibs, "css", id.Name+".css"),
		models.Path(models.GroupClientlib, models.ClientlibScript):     path.Join(clientlibs, "js", id.Name+".js"),
		models.Path(models.GroupClientlib, models.ClientlibCategories): path.Join(clientlibs, ".content.xml"),
	}
}
