package writer

import (
	"github.com/gomarkdown/markdown"
	mdhtml "github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
	"github.com/microcosm-cc/bluemonday"
)

// RenderHTML converts a markdown draft to sanitized HTML suitable for saving
// or serving. Script tags and event handlers the model might emit are
// stripped.
func RenderHTML(draft string) string {
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.AutoHeadingIDs)
	doc := p.Parse([]byte(draft))

	renderer := mdhtml.NewRenderer(mdhtml.RendererOptions{Flags: mdhtml.CommonFlags})
	raw := markdown.Render(doc, renderer)

	return string(bluemonday.UGCPolicy().SanitizeBytes(raw))
}
