package parser

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/dgallion1/bookgest/internal/doctree"
)

// ErrUnsupported is returned by ForFile for unknown extensions.
var ErrUnsupported = errors.New("unsupported file extension")

// Extraction is the raw content of one source file, ready for assembly.
// Blocks are sorted by (PageIndex, Order).
type Extraction struct {
	Title    string
	Author   string
	Language string
	Blocks   []doctree.RawBlock

	// Warnings collects non-fatal problems such as undecodable images.
	Warnings []string
}

// Parser converts raw document bytes into an Extraction.
type Parser interface {
	Parse(r io.Reader, filename string) (*Extraction, error)
}

// Options tune format-specific behavior.
type Options struct {
	FallbackPdftotext bool
}

// SupportedExtensions lists file extensions this service can handle.
var SupportedExtensions = map[string]bool{
	".txt":      true,
	".md":       true,
	".markdown": true,
	".html":     true,
	".htm":      true,
	".xhtml":    true,
	".pdf":      true,
	".docx":     true,
	".epub":     true,
}

// ForFile returns the appropriate parser for a filename.
func ForFile(filename string, opts Options) (Parser, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".txt":
		return &TextParser{}, nil
	case ".md", ".markdown":
		return &MarkdownParser{}, nil
	case ".html", ".htm", ".xhtml":
		return &HTMLParser{}, nil
	case ".pdf":
		return &PDFParser{FallbackPdftotext: opts.FallbackPdftotext}, nil
	case ".docx":
		return &DOCXParser{}, nil
	case ".epub":
		return &EPUBParser{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupported, ext)
	}
}

// IsSupportedExtension checks if a file extension is supported.
func IsSupportedExtension(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return SupportedExtensions[ext]
}

// baseTitle strips directory and extension from a filename.
func baseTitle(filename string) string {
	base := filepath.Base(filename)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// blockBuilder accumulates page text and interleaved images into RawBlocks,
// assigning order numbers within each page.
type blockBuilder struct {
	blocks   []doctree.RawBlock
	warnings []string
	page     int
	order    int
	text     strings.Builder
}

// paragraph appends s as its own paragraph on the current page.
func (b *blockBuilder) paragraph(s string) {
	s = strings.TrimSpace(s)
	if s == "" {
		return
	}
	if b.text.Len() > 0 {
		b.text.WriteString("\n\n")
	}
	b.text.WriteString(s)
}

// raw appends page text verbatim.
func (b *blockBuilder) raw(s string) {
	b.text.WriteString(s)
}

func (b *blockBuilder) flushText() {
	if strings.TrimSpace(b.text.String()) != "" {
		b.blocks = append(b.blocks, doctree.RawBlock{
			Kind:      doctree.RawText,
			PageIndex: b.page,
			Order:     b.order,
			Text:      b.text.String(),
		})
		b.order++
	}
	b.text.Reset()
}

// image decodes data and appends it after any pending text.
func (b *blockBuilder) image(data []byte, alt string) {
	img, err := decodeImage(data)
	if err != nil {
		b.warn("page %d: %v", b.page, err)
		return
	}
	b.decoded(img, alt)
}

func (b *blockBuilder) decoded(img decodedImage, alt string) {
	b.flushText()
	b.blocks = append(b.blocks, doctree.RawBlock{
		Kind:      doctree.RawImage,
		PageIndex: b.page,
		Order:     b.order,
		Pixels:    img.pixels,
		Width:     img.width,
		Height:    img.height,
		AltText:   alt,
	})
	b.order++
}

func (b *blockBuilder) nextPage() {
	b.flushText()
	b.page++
	b.order = 0
}

func (b *blockBuilder) warn(format string, args ...any) {
	b.warnings = append(b.warnings, fmt.Sprintf(format, args...))
}

func (b *blockBuilder) finish(ext *Extraction) *Extraction {
	b.flushText()
	ext.Blocks = b.blocks
	ext.Warnings = b.warnings
	return ext
}
