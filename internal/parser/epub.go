package parser

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"github.com/taylorskalyo/goreader/epub"
	"golang.org/x/net/html"
)

// EPUBParser handles .epub files. Each spine item is one page; images are
// resolved against the package manifest.
type EPUBParser struct{}

func (p *EPUBParser) Parse(r io.Reader, filename string) (*Extraction, error) {
	// goreader opens archives by path.
	tmp, err := os.CreateTemp("", "bookgest-epub-*.epub")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("write temp file: %w", err)
	}
	tmp.Close()

	rc, err := epub.OpenReader(tmpPath)
	if err != nil {
		return nil, fmt.Errorf("open epub: %w", err)
	}
	defer rc.Close()

	if len(rc.Rootfiles) == 0 {
		return nil, fmt.Errorf("no rootfiles found in epub")
	}
	book := rc.Rootfiles[0]

	ext := &Extraction{
		Title:    strings.TrimSpace(book.Metadata.Title),
		Author:   strings.TrimSpace(book.Metadata.Creator),
		Language: strings.TrimSpace(book.Metadata.Language),
	}
	if ext.Title == "" {
		ext.Title = baseTitle(filename)
	}

	manifest := make(map[string]*epub.Item, len(book.Manifest.Items))
	for i := range book.Manifest.Items {
		item := &book.Manifest.Items[i]
		manifest[path.Clean(item.HREF)] = item
	}

	var b blockBuilder
	first := true
	for _, ref := range book.Spine.Itemrefs {
		if ref.Item == nil {
			continue
		}
		data, err := readItem(ref.Item)
		if err != nil {
			b.warn("spine item %s: %v", ref.Item.HREF, err)
			continue
		}
		doc, err := html.Parse(bytes.NewReader(data))
		if err != nil {
			b.warn("spine item %s: %v", ref.Item.HREF, err)
			continue
		}
		if !first {
			b.nextPage()
		}
		first = false

		base := path.Dir(ref.Item.HREF)
		w := &htmlWalker{b: &b, resolve: func(src string) ([]byte, error) {
			if strings.HasPrefix(src, "data:") {
				return decodeDataURI(src)
			}
			src, _, _ = strings.Cut(src, "#")
			item, ok := manifest[path.Clean(path.Join(base, src))]
			if !ok {
				return nil, fmt.Errorf("not in manifest")
			}
			if !strings.HasPrefix(item.MediaType, "image/") {
				return nil, fmt.Errorf("media type %s", item.MediaType)
			}
			return readItem(item)
		}}
		if body := findBody(doc); body != nil {
			w.walk(body)
		} else {
			w.walk(doc)
		}
		w.endParagraph()
	}
	return b.finish(ext), nil
}

func readItem(item *epub.Item) ([]byte, error) {
	r, err := item.Open()
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}
