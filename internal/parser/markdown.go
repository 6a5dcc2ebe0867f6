package parser

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// MarkdownParser handles Markdown files using goldmark. Headings and
// paragraphs become lines of a single page; thematic breaks become
// scene-break lines.
type MarkdownParser struct{}

func (p *MarkdownParser) Parse(r io.Reader, filename string) (*Extraction, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read markdown: %w", err)
	}

	md := goldmark.New()
	doc := md.Parser().Parse(text.NewReader(src))

	ext := &Extraction{Title: baseTitle(filename)}
	var b blockBuilder
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		switch node := n.(type) {
		case *ast.Heading:
			b.paragraph(extractText(node, src))
		case *ast.ThematicBreak:
			b.paragraph("* * *")
		case *ast.Paragraph:
			markdownParagraph(&b, node, src)
		default:
			b.paragraph(extractText(n, src))
		}
	}
	return b.finish(ext), nil
}

// markdownParagraph writes inline text, splitting it around data: URI images.
func markdownParagraph(b *blockBuilder, para ast.Node, src []byte) {
	var buf bytes.Buffer
	var walk func(n ast.Node)
	walk = func(n ast.Node) {
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			switch node := c.(type) {
			case *ast.Text:
				buf.Write(node.Value(src))
				if node.HardLineBreak() || node.SoftLineBreak() {
					buf.WriteByte('\n')
				}
			case *ast.Image:
				data, err := decodeDataURI(string(node.Destination))
				if err != nil {
					if !errors.Is(err, errNotDataURI) {
						b.warn("image: %v", err)
					}
					continue
				}
				b.paragraph(buf.String())
				buf.Reset()
				b.image(data, extractText(node, src))
			default:
				walk(c)
			}
		}
	}
	walk(para)
	b.paragraph(buf.String())
}

// extractText gets the text content of a goldmark AST node. Raw lines are
// only read from leaf blocks such as code blocks.
func extractText(n ast.Node, src []byte) string {
	var buf bytes.Buffer
	if n.Type() == ast.TypeBlock && n.FirstChild() == nil {
		lines := n.Lines()
		for i := 0; i < lines.Len(); i++ {
			line := lines.At(i)
			buf.Write(line.Value(src))
		}
	}
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		if t, ok := c.(*ast.Text); ok {
			buf.Write(t.Value(src))
			if t.HardLineBreak() || t.SoftLineBreak() {
				buf.WriteByte('\n')
			}
		} else {
			if c.Type() == ast.TypeBlock && buf.Len() > 0 {
				buf.WriteByte('\n')
			}
			buf.WriteString(extractText(c, src))
		}
	}
	return strings.TrimSpace(buf.String())
}
