// Package assembler turns an ordered stream of raw page text and image
// blocks into a chaptered Document.
package assembler

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/dgallion1/bookgest/internal/doctree"
	"github.com/dgallion1/bookgest/internal/patterns"
	"github.com/dgallion1/bookgest/internal/segmenter"
)

// DefaultImageWorkers bounds concurrent PNG encoding when Options leaves it unset.
const DefaultImageWorkers = 4

// ConversionError is fatal for the whole document.
type ConversionError struct {
	Block  int // index into the input, -1 when not tied to one block
	Reason string
}

func (e *ConversionError) Error() string {
	if e.Block < 0 {
		return "convert: " + e.Reason
	}
	return fmt.Sprintf("convert block %d: %s", e.Block, e.Reason)
}

// Options configures one conversion.
type Options struct {
	Metadata doctree.Metadata

	// Matcher defaults to the built-in table for Metadata.Language.
	Matcher *patterns.Matcher

	ImageWorkers int

	// NewID generates block ids. Defaults to random UUIDs.
	NewID func() string

	Log *slog.Logger
}

// Report summarizes a conversion for progress tracking.
type Report struct {
	Chapters      int
	Blocks        int
	Images        int
	SkippedImages int
	Words         int
}

// Convert assembles blocks into a Document. Metadata is copied verbatim.
func Convert(blocks []doctree.RawBlock, opts Options) (*doctree.Document, error) {
	doc, _, err := ConvertWithReport(blocks, opts)
	return doc, err
}

// ConvertWithReport is Convert plus counters describing what was produced.
func ConvertWithReport(blocks []doctree.RawBlock, opts Options) (*doctree.Document, Report, error) {
	if opts.Matcher == nil {
		opts.Matcher = patterns.For(opts.Metadata.Language)
	}
	if opts.ImageWorkers <= 0 {
		opts.ImageWorkers = DefaultImageWorkers
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	if opts.Log == nil {
		opts.Log = slog.Default()
	}

	if err := validate(blocks); err != nil {
		return nil, Report{}, err
	}

	encoded := encodeImages(blocks, opts.ImageWorkers)

	a := &assembler{
		m:        opts.Matcher,
		seg:      segmenter.New(opts.Matcher),
		newID:    opts.NewID,
		log:      opts.Log,
		chapters: []doctree.Chapter{},
	}
	for i, b := range blocks {
		switch b.Kind {
		case doctree.RawText:
			a.text(b.Text)
		case doctree.RawImage:
			a.image(i, b, encoded[i])
		}
	}
	a.flush()
	a.push()

	doc := &doctree.Document{
		Metadata: opts.Metadata,
		TOC:      doctree.BuildTOC(a.chapters),
		Chapters: a.chapters,
	}
	a.report.Chapters = len(doc.Chapters)
	a.report.Blocks = doc.BlockCount()
	a.log.Debug("document assembled",
		"chapters", a.report.Chapters,
		"blocks", a.report.Blocks,
		"images", a.report.Images,
		"skipped_images", a.report.SkippedImages,
	)
	return doc, a.report, nil
}

func validate(blocks []doctree.RawBlock) error {
	for i, b := range blocks {
		switch b.Kind {
		case doctree.RawText, doctree.RawImage:
		default:
			return &ConversionError{Block: i, Reason: fmt.Sprintf("unknown block type %q", b.Kind)}
		}
		if i > 0 && b.Before(blocks[i-1]) {
			return &ConversionError{Block: i, Reason: fmt.Sprintf(
				"block at page %d order %d precedes page %d order %d",
				b.PageIndex, b.Order, blocks[i-1].PageIndex, blocks[i-1].Order)}
		}
	}
	return nil
}

// draft is the chapter being filled. It is only materialized when it holds
// at least one block.
type draft struct {
	title  string
	number *int
	blocks []doctree.ContentBlock
}

type assembler struct {
	m     *patterns.Matcher
	seg   *segmenter.Segmenter
	newID func() string
	log   *slog.Logger

	pending  []string
	current  *draft
	counter  int
	chapters []doctree.Chapter
	report   Report
}

func (a *assembler) text(page string) {
	page = strings.ReplaceAll(page, "\r\n", "\n")
	lines := strings.Split(page, "\n")
	for i := 0; i < len(lines); {
		line := strings.TrimSpace(lines[i])
		if a.m.IsPageLine(line) {
			i++
			continue
		}

		if match, ok := a.m.DetectChapter(line); ok {
			a.flush()
			a.push()
			h := resolveChapterHeading(a.m, lines, i, match)
			a.current = &draft{title: h.Title, number: match.Number}
			if h.Remainder != "" {
				a.pending = append(a.pending, h.Remainder)
			}
			i += h.Consumed
			continue
		}

		if !a.m.LooksLikeOpeningProse(line) && a.m.DetectSection(line) {
			consumed, title := mergeSectionTitle(a.m, lines, i)
			a.flush()
			a.push()
			a.current = &draft{title: title}
			i += consumed
			continue
		}

		a.pending = append(a.pending, lines[i])
		i++
	}
}

func (a *assembler) image(idx int, b doctree.RawBlock, enc encodedImage) {
	a.flush()
	if enc.err != nil {
		a.report.SkippedImages++
		a.log.Debug("skipping image", "block", idx, "page", b.PageIndex, "error", enc.err)
		return
	}
	d := a.active()
	d.blocks = append(d.blocks, doctree.ContentBlock{
		ID:   a.newID(),
		Kind: doctree.KindImage,
		Src:  enc.src,
		Alt:  b.AltText,
	})
	a.report.Images++
}

// active returns the current chapter, opening an untitled one for content
// that precedes the first heading.
func (a *assembler) active() *draft {
	if a.current == nil {
		a.current = &draft{}
	}
	return a.current
}

// flush runs pending text through the segmenter into the current chapter.
func (a *assembler) flush() {
	if len(a.pending) == 0 {
		return
	}
	text := strings.Join(a.pending, "\n")
	a.pending = a.pending[:0]

	frags := a.seg.Segment(text)
	if len(frags) == 0 {
		return
	}
	d := a.active()
	for _, f := range frags {
		d.blocks = append(d.blocks, doctree.ContentBlock{ID: a.newID(), Kind: f.Kind, HTML: f.HTML})
	}
	a.report.Words += segmenter.CountWords(frags)
}

// push materializes the current chapter if it has content.
func (a *assembler) push() {
	d := a.current
	a.current = nil
	if d == nil || len(d.blocks) == 0 {
		return
	}
	a.counter++
	number := a.counter
	if d.number != nil {
		number = *d.number
	}
	a.chapters = append(a.chapters, doctree.Chapter{
		ID:     fmt.Sprintf("chapter-%d", a.counter),
		Number: number,
		Title:  d.title,
		Blocks: d.blocks,
	})
}
