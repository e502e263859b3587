package reporting

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/spboyer/aemforge/internal/models"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

var markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))

// fenceLanguage maps artifact paths to code fence info strings.
var fenceLanguage = map[string]string{
	models.ArtifactModel:       "java",
	models.ArtifactTemplate:    "html",
	models.ArtifactDialog:      "xml",
	models.ArtifactMetadataXML: "xml",
	models.Path(models.GroupClientlib, models.ClientlibStyle):      "css",
	models.Path(models.GroupClientlib, models.ClientlibScript):     "javascript",
	models.Path(models.GroupClientlib, models.ClientlibCategories): "xml",
}

// Markdown renders a job result as a markdown document: the scorecard, the
// findings and every artifact in a fenced block.
func Markdown(res *models.JobResult) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", res.ComponentName)
	if res.ComponentType != "" {
		fmt.Fprintf(&b, "Type: `%s`\n\n", res.ComponentType)
	}
	if !res.Metadata.GeneratedAt.IsZero() {
		fmt.Fprintf(&b, "Generated: %s\n\n", res.Metadata.GeneratedAt.UTC().Format("2006-01-02 15:04:05 MST"))
	}

	if v := res.Validation; v != nil {
		fmt.Fprintf(&b, "## Validation: %s (%d)\n\n", v.Status, v.Score)
		b.WriteString("| Category | Score | Weight |\n|---|---:|---:|\n")
		for _, c := range models.Categories {
			fmt.Fprintf(&b, "| %s | %d | %d%% |\n", c, v.Categories[c], models.CategoryWeights[c])
		}
		b.WriteString("\n")
		writeMarkdownList(&b, "Issues", v.Issues)
		writeMarkdownList(&b, "Suggestions", v.Suggestions)
	}

	b.WriteString("## Files\n\n")
	for _, p := range res.Bundle.Paths() {
		content, ok := res.Bundle.Lookup(p)
		if !ok {
			continue
		}
		title := p
		if loc := res.Bundle.Placement[p]; loc != "" {
			title = loc
		}
		fence := fenceFor(content)
		fmt.Fprintf(&b, "### `%s`\n\n%s%s\n%s", title, fence, fenceLanguage[p], content)
		if !strings.HasSuffix(content, "\n") {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%s\n\n", fence)
	}
	return b.String()
}

// HTML renders Markdown(res) as a standalone HTML page. Raw HTML in the
// generated artifacts only ever appears inside code blocks.
func HTML(res *models.JobResult) ([]byte, error) {
	var body bytes.Buffer
	if err := markdown.Convert([]byte(Markdown(res)), &body); err != nil {
		return nil, fmt.Errorf("rendering report: %w", err)
	}

	var page bytes.Buffer
	page.WriteString("<!DOCTYPE html>\n<html lang=\"en\">\n<head>\n<meta charset=\"utf-8\">\n")
	fmt.Fprintf(&page, "<title>%s report</title>\n", htmlEscaper.Replace(res.ComponentName))
	page.WriteString(reportStyle)
	page.WriteString("</head>\n<body>\n")
	page.Write(body.Bytes())
	page.WriteString("</body>\n</html>\n")
	return page.Bytes(), nil
}

var htmlEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;")

const reportStyle = `<style>
body { font-family: system-ui, sans-serif; max-width: 960px; margin: 2rem auto; padding: 0 1rem; }
table { border-collapse: collapse; }
th, td { border: 1px solid #ddd; padding: .25rem .75rem; }
pre { background: #f6f8fa; padding: 1rem; overflow-x: auto; }
</style>
`

func writeMarkdownList(b *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "### %s\n\n", title)
	for _, it := range items {
		fmt.Fprintf(b, "- %s\n", it)
	}
	b.WriteString("\n")
}

// fenceFor returns a backtick fence longer than any backtick run in content.
func fenceFor(content string) string {
	longest, run := 0, 0
	for _, r := range content {
		if r == '`' {
			run++
			longest = max(longest, run)
		} else {
			run = 0
		}
	}
	return strings.Repeat("`", max(3, longest+1))
}
