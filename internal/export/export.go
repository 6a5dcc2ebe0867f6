// Package export renders converted documents as standalone HTML or Markdown.
package export

import (
	"fmt"
	"html"
	"regexp"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/microcosm-cc/bluemonday"

	"github.com/dgallion1/bookgest/internal/doctree"
)

var (
	policy      = newPolicy()
	mdConverter = converter.NewConverter(
		converter.WithPlugins(
			base.NewBasePlugin(),
			commonmark.NewCommonmarkPlugin(),
		),
	)
)

var anchorID = regexp.MustCompile(`^[A-Za-z0-9_\-]+$`)

// newPolicy allows the markup the assembler emits plus embedded PNG images.
func newPolicy() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowDataURIImages()
	p.AllowAttrs("class").Matching(regexp.MustCompile(`^` + doctree.SceneBreakClass + `$`)).OnElements("p")
	p.AllowAttrs("id").Matching(anchorID).OnElements("section", "h2")
	p.AllowElements("section", "nav")
	return p
}

// Body renders the document title, TOC and chapters as a sanitized HTML
// fragment.
func Body(doc *doctree.Document) string {
	var b strings.Builder
	if doc.Metadata.Title != "" {
		fmt.Fprintf(&b, "<h1>%s</h1>\n", html.EscapeString(doc.Metadata.Title))
	}
	if doc.Metadata.Author != "" {
		fmt.Fprintf(&b, "<p>%s</p>\n", html.EscapeString(doc.Metadata.Author))
	}

	if len(doc.TOC) > 0 {
		b.WriteString("<nav>\n<ol>\n")
		for _, e := range doc.TOC {
			fmt.Fprintf(&b, "<li><a href=\"#%s\">%s</a></li>\n", html.EscapeString(e.ID), html.EscapeString(e.Label))
		}
		b.WriteString("</ol>\n</nav>\n")
	}

	for _, ch := range doc.Chapters {
		fmt.Fprintf(&b, "<section id=\"%s\">\n", html.EscapeString(ch.ID))
		if ch.Title != "" {
			fmt.Fprintf(&b, "<h2>%s</h2>\n", html.EscapeString(ch.Title))
		}
		for _, blk := range ch.Blocks {
			if blk.Kind == doctree.KindImage {
				fmt.Fprintf(&b, "<img src=\"%s\" alt=\"%s\">\n", html.EscapeString(blk.Src), html.EscapeString(blk.Alt))
				continue
			}
			b.WriteString(blk.HTML)
			b.WriteByte('\n')
		}
		b.WriteString("</section>\n")
	}
	return policy.Sanitize(b.String())
}

// HTML renders a complete HTML page.
func HTML(doc *doctree.Document) string {
	lang := doc.Metadata.Language
	if lang == "" {
		lang = "en"
	}
	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n")
	fmt.Fprintf(&b, "<html lang=\"%s\">\n<head>\n<meta charset=\"utf-8\">\n", html.EscapeString(lang))
	fmt.Fprintf(&b, "<title>%s</title>\n", html.EscapeString(doc.Metadata.Title))
	b.WriteString("</head>\n<body>\n")
	b.WriteString(Body(doc))
	b.WriteString("</body>\n</html>\n")
	return b.String()
}

// Markdown converts the rendered body to CommonMark.
func Markdown(doc *doctree.Document) (string, error) {
	md, err := mdConverter.ConvertString(Body(doc))
	if err != nil {
		return "", fmt.Errorf("convert to markdown: %w", err)
	}
	return strings.TrimSpace(md) + "\n", nil
}
