package parser

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/net/html"
)

// HTMLParser handles HTML files. Only data: URI images can be resolved.
type HTMLParser struct{}

func (p *HTMLParser) Parse(r io.Reader, filename string) (*Extraction, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	ext := &Extraction{Title: baseTitle(filename), Language: documentLang(doc)}
	if title := findTitle(doc); title != "" {
		ext.Title = title
	}

	var b blockBuilder
	w := &htmlWalker{b: &b, resolve: dataURIResolver}
	if body := findBody(doc); body != nil {
		w.walk(body)
	} else {
		w.walk(doc)
	}
	w.endParagraph()
	return b.finish(ext), nil
}

// imageResolver maps an <img src> to encoded image bytes.
type imageResolver func(src string) ([]byte, error)

func dataURIResolver(src string) ([]byte, error) {
	return decodeDataURI(src)
}

// htmlWalker flattens markup into paragraphs. Block-level elements end the
// current paragraph, <hr> becomes a scene-break line and <img> an image block.
type htmlWalker struct {
	b       *blockBuilder
	resolve imageResolver
	para    strings.Builder
	space   bool
}

var skipElements = map[string]bool{
	"script": true, "style": true, "nav": true, "head": true, "template": true, "noscript": true,
}

var blockElements = map[string]bool{
	"p": true, "div": true, "li": true, "ul": true, "ol": true, "blockquote": true,
	"section": true, "article": true, "header": true, "footer": true, "aside": true,
	"figure": true, "figcaption": true, "table": true, "tr": true, "td": true, "th": true,
	"pre": true, "body": true, "dd": true, "dt": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
}

func (w *htmlWalker) walk(n *html.Node) {
	switch n.Type {
	case html.TextNode:
		w.text(n.Data)
		return
	case html.ElementNode:
		if skipElements[n.Data] {
			return
		}
		switch n.Data {
		case "br":
			w.para.WriteByte('\n')
			w.space = false
			return
		case "hr":
			w.endParagraph()
			w.b.paragraph("* * *")
			return
		case "img", "image":
			w.image(n)
			return
		}
	}

	block := n.Type == html.ElementNode && blockElements[n.Data]
	if block {
		w.endParagraph()
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		w.walk(c)
	}
	if block {
		w.endParagraph()
	}
}

// text collapses whitespace runs the way a browser would.
func (w *htmlWalker) text(data string) {
	if strings.TrimSpace(data) == "" {
		if w.para.Len() > 0 {
			w.space = true
		}
		return
	}
	if first, _ := utf8.DecodeRuneInString(data); unicode.IsSpace(first) && w.para.Len() > 0 {
		w.space = true
	}
	if w.space {
		w.para.WriteByte(' ')
		w.space = false
	}
	w.para.WriteString(strings.Join(strings.Fields(data), " "))
	if last, _ := utf8.DecodeLastRuneInString(data); unicode.IsSpace(last) {
		w.space = true
	}
}

func (w *htmlWalker) endParagraph() {
	w.b.paragraph(w.para.String())
	w.para.Reset()
	w.space = false
}

func (w *htmlWalker) image(n *html.Node) {
	src := attr(n, "src")
	if src == "" {
		// SVG <image> elements reference their source through href.
		src = attr(n, "href")
		if src == "" {
			src = attr(n, "xlink:href")
		}
	}
	if src == "" || w.resolve == nil {
		return
	}
	data, err := w.resolve(src)
	if err != nil {
		if !errors.Is(err, errNotDataURI) {
			w.b.warn("image %q: %v", truncate(src, 64), err)
		}
		return
	}
	w.endParagraph()
	w.b.image(data, attr(n, "alt"))
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key || (a.Namespace != "" && a.Namespace+":"+a.Key == key) {
			return a.Val
		}
	}
	return ""
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func textContent(n *html.Node) string {
	var buf strings.Builder
	var extract func(*html.Node)
	extract = func(n *html.Node) {
		if n.Type == html.TextNode {
			buf.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			extract(c)
		}
	}
	extract(n)
	return strings.TrimSpace(buf.String())
}

func findTitle(n *html.Node) string {
	if n.Type == html.ElementNode && n.Data == "title" {
		return textContent(n)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if t := findTitle(c); t != "" {
			return t
		}
	}
	return ""
}

func findBody(n *html.Node) *html.Node {
	if n.Type == html.ElementNode && n.Data == "body" {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if b := findBody(c); b != nil {
			return b
		}
	}
	return nil
}

// documentLang reads the lang attribute of the root <html> element.
func documentLang(doc *html.Node) string {
	for c := doc.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.Data == "html" {
			if lang := attr(c, "lang"); lang != "" {
				return lang
			}
			return attr(c, "xml:lang")
		}
	}
	return ""
}
