package doctree

import (
	"encoding/json"
	"strings"
)

// RawKind tags a RawBlock as page text or a raster image.
type RawKind string

const (
	RawText  RawKind = "text"
	RawImage RawKind = "image"
)

// RawBlock is one unit of extracted source content. Input order is defined
// by (PageIndex, Order) ascending.
type RawBlock struct {
	Kind      RawKind `json:"type"`
	PageIndex int     `json:"pageIndex"`
	Order     int     `json:"order"`

	// Text blocks.
	Text string `json:"text,omitempty"`

	// Image blocks.
	Pixels  []byte `json:"pixelData,omitempty"`
	Width   int    `json:"width,omitempty"`
	Height  int    `json:"height,omitempty"`
	AltText string `json:"altText,omitempty"`
}

// Before reports whether b sorts strictly before o.
func (b RawBlock) Before(o RawBlock) bool {
	if b.PageIndex != o.PageIndex {
		return b.PageIndex < o.PageIndex
	}
	return b.Order < o.Order
}

// BlockKind distinguishes content block variants.
type BlockKind int

const (
	KindParagraph BlockKind = iota
	KindDialogue
	KindSceneBreak
	KindImage
)

// Wire discriminants for ContentBlock.Type.
const (
	TypeParagraph = "paragraph"
	TypeDialogue  = "dialogue"
	TypeImage     = "image"
)

// SceneBreakClass marks scene-break paragraphs in emitted markup.
const SceneBreakClass = "scene-break"

// ContentBlock is the output unit inside a chapter.
type ContentBlock struct {
	ID   string
	Kind BlockKind
	HTML string // paragraph, dialogue, scene-break
	Src  string // image
	Alt  string // image
}

// Type returns the wire discriminant. Scene breaks travel as paragraphs.
func (b ContentBlock) Type() string {
	switch b.Kind {
	case KindDialogue:
		return TypeDialogue
	case KindImage:
		return TypeImage
	default:
		return TypeParagraph
	}
}

type textBlockJSON struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	HTML string `json:"html"`
}

type imageBlockJSON struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Src  string `json:"src"`
	Alt  string `json:"alt"`
}

func (b ContentBlock) MarshalJSON() ([]byte, error) {
	if b.Kind == KindImage {
		return json.Marshal(imageBlockJSON{ID: b.ID, Type: TypeImage, Src: b.Src, Alt: b.Alt})
	}
	return json.Marshal(textBlockJSON{ID: b.ID, Type: b.Type(), HTML: b.HTML})
}

func (b *ContentBlock) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID   string `json:"id"`
		Type string `json:"type"`
		HTML string `json:"html"`
		Src  string `json:"src"`
		Alt  string `json:"alt"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*b = ContentBlock{ID: raw.ID, HTML: raw.HTML, Src: raw.Src, Alt: raw.Alt}
	switch raw.Type {
	case TypeImage:
		b.Kind = KindImage
	case TypeDialogue:
		b.Kind = KindDialogue
	default:
		if strings.Contains(raw.HTML, `class="`+SceneBreakClass+`"`) {
			b.Kind = KindSceneBreak
		} else {
			b.Kind = KindParagraph
		}
	}
	return nil
}

// Chapter is a run of content blocks under one heading. ID comes from a
// per-document counter and is unrelated to the parsed Number.
type Chapter struct {
	ID     string         `json:"id"`
	Number int            `json:"number"`
	Title  string         `json:"title"`
	Blocks []ContentBlock `json:"blocks"`
}

// TocEntry is derived 1:1 from titled chapters.
type TocEntry struct {
	ID            string `json:"id"`
	Label         string `json:"label"`
	ChapterNumber int    `json:"chapterNumber"`
}

// Metadata is supplied by the caller and copied verbatim into the Document.
type Metadata struct {
	Title    string `json:"title"`
	Language string `json:"language"`
	Author   string `json:"author,omitempty"`
	Series   string `json:"series,omitempty"`
	Volume   string `json:"volume,omitempty"`
}

// Document is the structured result of one conversion.
type Document struct {
	Metadata Metadata   `json:"metadata"`
	TOC      []TocEntry `json:"toc"`
	Chapters []Chapter  `json:"chapters"`
}

// BuildTOC derives table-of-contents entries from chapters with non-empty
// titles, preserving chapter order.
func BuildTOC(chapters []Chapter) []TocEntry {
	toc := []TocEntry{}
	for _, ch := range chapters {
		if ch.Title == "" {
			continue
		}
		toc = append(toc, TocEntry{ID: ch.ID, Label: ch.Title, ChapterNumber: ch.Number})
	}
	return toc
}

// BlockCount returns the total number of content blocks across chapters.
func (d *Document) BlockCount() int {
	n := 0
	for _, ch := range d.Chapters {
		n += len(ch.Blocks)
	}
	return n
}
