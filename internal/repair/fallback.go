package repair

import (
	"fmt"

	"github.com/spboyer/aemforge/internal/models"
)

// MissingArtifactError records a required artifact that was absent or blank
// and had to be synthesized.
type MissingArtifactError struct {
	Artifact string
}

func (e *MissingArtifactError) Error() string {
	return fmt.Sprintf("required artifact %q was missing; generated a fallback", e.Artifact)
}

// RequiredArtifacts must exist in every repaired bundle.
var RequiredArtifacts = []string{
	models.ArtifactModel,
	models.ArtifactTemplate,
	models.ArtifactDialog,
	models.ArtifactMetadataXML,
}

func fallback(artifact string, id Identity) string {
	switch artifact {
	case models.ArtifactTemplate:
		return fallbackTemplate(id)
	case models.ArtifactModel:
		return fallbackModel(id)
	case models.ArtifactDialog:
		return fallbackDialog(id)
	case models.ArtifactMetadataXML:
		return fallbackMetadata(id)
	}
	return ""
}

func fallbackTemplate(id Identity) string {
	return fmt.Sprintf(`<div data-sly-use.model="%[1]s" class="%[2]s" aria-label="%[3]s">
    <h2 class="%[2]s__title" data-sly-test="${model.title}">${model.title}</h2>
    <p class="%[2]s__description" data-sly-test="${model.description}">${model.description}</p>
</div>
`, id.FQCN(), id.Name, id.Title())
}

func fallbackModel(id Identity) string {
	return fmt.Sprintf(`package %[1]s;

import javax.annotation.PostConstruct;

import org.apache.commons.lang3.StringUtils;
import org.apache.sling.api.resource.Resource;
import org.apache.sling.models.annotations.DefaultInjectionStrategy;
import org.apache.sling.models.annotations.Model;
import org.apache.sling.models.annotations.injectorspecific.ValueMapValue;

@Model(adaptables = Resource.class, resourceType = "%[2]s", defaultInjectionStrategy = DefaultInjectionStrategy.OPTIONAL)
public class %[3]s {

    @ValueMapValue
    private String title;

    @ValueMapValue
    private String description;

    @PostConstruct
    protected void init() {
        title = StringUtils.isNotBlank(title) ? title.trim() : "";
        description = StringUtils.isNotBlank(description) ? description.trim() : "";
    }

    public String getTitle() {
        return title;
    }

    public String getDescription() {
        return description;
    }
}
`, id.ModelPackage(), id.ResourceType(), id.ClassName())
}

func fallbackDialog(id Identity) string {
	return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<jcr:root xmlns:sling="http://sling.apache.org/jcr/sling/1.0" xmlns:cq="http://www.day.com/jcr/cq/1.0"
    xmlns:jcr="http://www.jcp.org/jcr/1.0" xmlns:nt="http://www.jcp.org/jcr/nt/1.0"
    jcr:primaryType="nt:unstructured"
    jcr:title="%[1]s"
    sling:resourceType="cq/gui/components/authoring/dialog">
    <content jcr:primaryType="nt:unstructured" sling:resourceType="granite/ui/components/coral/foundation/container">
        <items jcr:primaryType="nt:unstructured">
            <title jcr:primaryType="nt:unstructured"
                sling:resourceType="granite/ui/components/coral/foundation/form/textfield"
                fieldLabel="Title"
                name="./title"/>
            <description jcr:primaryType="nt:unstructured"
                sling:resourceType="granite/ui/components/coral/foundation/form/textarea"
                fieldLabel="Description"
                name="./description"/>
        </items>
    </content>
</jcr:root>
`, id.Title())
}

func fallbackMetadata(id Identity) string {
	group := id.Group
	if group == "" {
		group = models.DefaultComponentGroup
	}
	return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<jcr:root xmlns:sling="http://sling.apache.org/jcr/sling/1.0" xmlns:cq="http://www.day.com/jcr/cq/1.0"
    xmlns:jcr="http://www.jcp.org/jcr/1.0"
    jcr:primaryType="cq:Component"
    jcr:title="%s"
    sling:resourceType="%s"
    componentGroup="%s"/>
`, id.Title(), id.ResourceType(), group)
}
