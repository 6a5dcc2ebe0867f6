package assembler

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/dgallion1/bookgest/internal/doctree"
)

func seqIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("b%d", n)
	}
}

func textBlocks(pages ...string) []doctree.RawBlock {
	out := make([]doctree.RawBlock, len(pages))
	for i, p := range pages {
		out[i] = doctree.RawBlock{Kind: doctree.RawText, PageIndex: i, Text: p}
	}
	return out
}

func convert(t *testing.T, lang string, blocks []doctree.RawBlock) *doctree.Document {
	t.Helper()
	doc, err := Convert(blocks, Options{
		Metadata: doctree.Metadata{Title: "Book", Language: lang},
		NewID:    seqIDs(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return doc
}

type chapterWant struct {
	number int
	title  string
	blocks []string
}

func checkChapters(t *testing.T, doc *doctree.Document, want []chapterWant) {
	t.Helper()
	if len(doc.Chapters) != len(want) {
		t.Fatalf("expected %d chapters, got %d: %+v", len(want), len(doc.Chapters), doc.Chapters)
	}
	for i, w := range want {
		ch := doc.Chapters[i]
		if ch.ID != fmt.Sprintf("chapter-%d", i+1) {
			t.Errorf("chapter %d: expected id chapter-%d, got %s", i, i+1, ch.ID)
		}
		if ch.Number != w.number {
			t.Errorf("chapter %d: expected number %d, got %d", i, w.number, ch.Number)
		}
		if ch.Title != w.title {
			t.Errorf("chapter %d: expected title %q, got %q", i, w.title, ch.Title)
		}
		if w.blocks == nil {
			continue
		}
		var got []string
		for _, b := range ch.Blocks {
			got = append(got, b.HTML)
		}
		if strings.Join(got, "|") != strings.Join(w.blocks, "|") {
			t.Errorf("chapter %d: expected blocks %q, got %q", i, w.blocks, got)
		}
	}
}

func TestConvert_EndToEnd(t *testing.T) {
	doc := convert(t, "en", textBlocks(
		"Chapter 1: Arrival\nThe sky was red.",
		"\"Stop!\" she shouted.\n\"Why?\" he asked.",
	))
	checkChapters(t, doc, []chapterWant{{
		number: 1,
		title:  "Chapter 1: Arrival",
		blocks: []string{
			"<p>The sky was red.</p>",
			"<blockquote>\"Stop!\" she shouted.</blockquote>",
			"<blockquote>\"Why?\" he asked.</blockquote>",
		},
	}})
	kinds := []doctree.BlockKind{doctree.KindParagraph, doctree.KindDialogue, doctree.KindDialogue}
	for i, b := range doc.Chapters[0].Blocks {
		if b.Kind != kinds[i] {
			t.Errorf("block %d: expected kind %v, got %v", i, kinds[i], b.Kind)
		}
	}
	if len(doc.TOC) != 1 || doc.TOC[0].Label != "Chapter 1: Arrival" || doc.TOC[0].ChapterNumber != 1 {
		t.Errorf("unexpected toc %+v", doc.TOC)
	}
}

func TestConvert_InlineNumberAndTitle(t *testing.T) {
	doc := convert(t, "en", textBlocks("Chapter 7: The Letter\nShe opened it."))
	if len(doc.Chapters) != 1 {
		t.Fatalf("expected 1 chapter, got %d", len(doc.Chapters))
	}
	ch := doc.Chapters[0]
	if ch.Number != 7 || !strings.Contains(ch.Title, "The Letter") {
		t.Errorf("expected number 7 and title with The Letter, got %d %q", ch.Number, ch.Title)
	}
}

func TestConvert_EmptyInput(t *testing.T) {
	meta := doctree.Metadata{Title: "Empty", Language: "fr", Author: "A. N. Other", Volume: "2"}
	doc, err := Convert(nil, Options{Metadata: meta})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.Metadata != meta {
		t.Errorf("expected metadata %+v, got %+v", meta, doc.Metadata)
	}
	if doc.TOC == nil || len(doc.TOC) != 0 || doc.Chapters == nil || len(doc.Chapters) != 0 {
		t.Errorf("expected empty non-nil toc and chapters, got %+v", doc)
	}
}

func TestConvert_Deterministic(t *testing.T) {
	blocks := textBlocks(
		"PROLOGUE\nIt began.\nChapter 1: Arrival\nThe sky was red.\n* * *\n“Run,” she said.",
		"Chapter 2:\nTHE DARK NIGHT It was cold.",
	)
	a, _ := json.Marshal(convert(t, "en", blocks))
	b, _ := json.Marshal(convert(t, "en", blocks))
	if !bytes.Equal(a, b) {
		t.Errorf("expected identical output\n%s\n%s", a, b)
	}

	x, err := Convert(blocks, Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	y, _ := Convert(blocks, Options{})
	for i := range x.Chapters {
		if x.Chapters[i].Title != y.Chapters[i].Title || x.Chapters[i].Number != y.Chapters[i].Number {
			t.Errorf("chapter %d differs between runs", i)
		}
		for j := range x.Chapters[i].Blocks {
			if x.Chapters[i].Blocks[j].HTML != y.Chapters[i].Blocks[j].HTML {
				t.Errorf("chapter %d block %d differs between runs", i, j)
			}
		}
	}
}

func TestConvert_SceneBreakIsOneBlock(t *testing.T) {
	doc := convert(t, "en", textBlocks("Chapter 1\nHe left.\n◊ ◊ ◊\nShe stayed."))
	checkChapters(t, doc, []chapterWant{{
		number: 1,
		title:  "Chapter 1",
		blocks: []string{"<p>He left.</p>", `<p class="scene-break">◊ ◊ ◊</p>`, "<p>She stayed.</p>"},
	}})
	if doc.Chapters[0].Blocks[1].Kind != doctree.KindSceneBreak {
		t.Errorf("expected scene break kind, got %v", doc.Chapters[0].Blocks[1].Kind)
	}
}

func TestConvert_StrayQuoteIsNarration(t *testing.T) {
	doc := convert(t, "en", textBlocks("\" Hearing the news, he paused."))
	checkChapters(t, doc, []chapterWant{{
		number: 1,
		blocks: []string{"<p>Hearing the news, he paused.</p>"},
	}})
	if doc.Chapters[0].Blocks[0].Kind != doctree.KindParagraph {
		t.Errorf("expected narration, got %v", doc.Chapters[0].Blocks[0].Kind)
	}
	if len(doc.TOC) != 0 {
		t.Errorf("expected untitled chapter to stay out of the toc, got %+v", doc.TOC)
	}
}

func TestConvert_MultiLineHeading(t *testing.T) {
	doc := convert(t, "en", textBlocks("Chapter 3:\n\nThe Long\nRoad Home\nIt was raining."))
	checkChapters(t, doc, []chapterWant{{
		number: 3,
		title:  "Chapter 3: The Long Road Home",
		blocks: []string{"<p>It was raining.</p>"},
	}})
}

func TestConvert_CapsRunTitleSplitsFromProse(t *testing.T) {
	doc := convert(t, "en", textBlocks("Chapter 4:\nTHE DARK NIGHT It was cold and the wind howled."))
	checkChapters(t, doc, []chapterWant{{
		number: 4,
		title:  "Chapter 4: THE DARK NIGHT",
		blocks: []string{"<p>It was cold and the wind howled.</p>"},
	}})
}

func TestConvert_SeparatorWithoutTitleLine(t *testing.T) {
	doc := convert(t, "en", textBlocks("Chapter 5:\n\"Hello,\" she said."))
	checkChapters(t, doc, []chapterWant{{
		number: 5,
		title:  "Chapter 5",
		blocks: []string{"<blockquote>\"Hello,\" she said.</blockquote>"},
	}})
}

func TestConvert_Sections(t *testing.T) {
	doc := convert(t, "en", textBlocks(
		"PROLOGUE\nIt began.\nChapter 1\nThen more.",
		"PART ONE\nTHE BEGINNING\nIt began again.",
	))
	checkChapters(t, doc, []chapterWant{
		{number: 1, title: "PROLOGUE", blocks: []string{"<p>It began.</p>"}},
		{number: 1, title: "Chapter 1", blocks: []string{"<p>Then more.</p>"}},
		{number: 3, title: "PART ONE THE BEGINNING", blocks: []string{"<p>It began again.</p>"}},
	})
}

func TestConvert_NumberingIsNotReconciled(t *testing.T) {
	doc := convert(t, "en", textBlocks("Chapter 10\nA.\nInterlude\nB."))
	checkChapters(t, doc, []chapterWant{
		{number: 10, title: "Chapter 10"},
		{number: 2, title: "Interlude"},
	})
}

func TestConvert_EmptyChaptersAreDropped(t *testing.T) {
	doc := convert(t, "en", textBlocks("Chapter 1\nChapter 2\nText here."))
	checkChapters(t, doc, []chapterWant{{number: 2, title: "Chapter 2", blocks: []string{"<p>Text here.</p>"}}})
}

func TestConvert_PageFootersSkipped(t *testing.T) {
	doc := convert(t, "en", textBlocks("Chapter 1\nSome text\nPage 12\ncontinues here."))
	checkChapters(t, doc, []chapterWant{{number: 1, title: "Chapter 1", blocks: []string{"<p>Some text continues here.</p>"}}})
}

func TestConvert_Spanish(t *testing.T) {
	doc := convert(t, "es", textBlocks("Capítulo 2: El viaje\n—Hola —dijo él—."))
	checkChapters(t, doc, []chapterWant{{
		number: 2,
		title:  "Capítulo 2: El viaje",
		blocks: []string{"<blockquote>—Hola —dijo él—.</blockquote>"},
	}})
}

func TestConvert_Images(t *testing.T) {
	pixels := bytes.Repeat([]byte{10, 20, 30, 255}, 4)
	blocks := []doctree.RawBlock{
		{Kind: doctree.RawImage, PageIndex: 0, Order: 0, Pixels: pixels, Width: 2, Height: 2, AltText: "cover"},
		{Kind: doctree.RawText, PageIndex: 0, Order: 1, Text: "Chapter 1\nBefore the image."},
		{Kind: doctree.RawImage, PageIndex: 0, Order: 2, Pixels: pixels, Width: 2, Height: 2, AltText: "map"},
		{Kind: doctree.RawImage, PageIndex: 0, Order: 3, Pixels: pixels[:3], Width: 2, Height: 2},
		{Kind: doctree.RawText, PageIndex: 1, Order: 0, Text: "After."},
	}
	doc, report, err := ConvertWithReport(blocks, Options{NewID: seqIDs(), ImageWorkers: 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(doc.Chapters) != 2 {
		t.Fatalf("expected 2 chapters, got %+v", doc.Chapters)
	}

	cover := doc.Chapters[0].Blocks
	if len(cover) != 1 || cover[0].Kind != doctree.KindImage || cover[0].Alt != "cover" {
		t.Fatalf("expected leading image in an untitled chapter, got %+v", cover)
	}
	if !strings.HasPrefix(cover[0].Src, "data:image/png;base64,") {
		t.Errorf("expected png data uri, got %q", cover[0].Src)
	}

	body := doc.Chapters[1].Blocks
	if len(body) != 3 {
		t.Fatalf("expected paragraph, image, paragraph; got %+v", body)
	}
	if body[0].HTML != "<p>Before the image.</p>" || body[1].Alt != "map" || body[2].HTML != "<p>After.</p>" {
		t.Errorf("unexpected block order %+v", body)
	}

	if report.Images != 2 || report.SkippedImages != 1 {
		t.Errorf("expected 2 images and 1 skipped, got %+v", report)
	}
	if report.Chapters != 2 || report.Blocks != 4 {
		t.Errorf("unexpected report %+v", report)
	}
}

func TestConvert_InvalidInput(t *testing.T) {
	tests := []struct {
		name   string
		blocks []doctree.RawBlock
	}{
		{"unsorted", []doctree.RawBlock{
			{Kind: doctree.RawText, PageIndex: 1, Text: "b"},
			{Kind: doctree.RawText, PageIndex: 0, Text: "a"},
		}},
		{"unknown kind", []doctree.RawBlock{{Kind: "table"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Convert(tt.blocks, Options{})
			var convErr *ConversionError
			if !errors.As(err, &convErr) {
				t.Fatalf("expected *ConversionError, got %v", err)
			}
		})
	}
}

func TestConvert_UnencodableImagesAreSkipped(t *testing.T) {
	blocks := []doctree.RawBlock{
		{Kind: doctree.RawText, PageIndex: 0, Order: 0, Text: "Chapter 1: A\nBody text."},
		{Kind: doctree.RawImage, PageIndex: 0, Order: 1},
		{Kind: doctree.RawImage, PageIndex: 0, Order: 2, Width: 2, Height: 2},
		{Kind: doctree.RawImage, PageIndex: 0, Order: 3, Width: 1 << 62, Height: 4, Pixels: []byte{1}},
	}
	doc, report, err := ConvertWithReport(blocks, Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.SkippedImages != 3 || report.Images != 0 {
		t.Errorf("expected 3 skipped images, got %+v", report)
	}
	if len(doc.Chapters) != 1 || len(doc.Chapters[0].Blocks) != 1 {
		t.Fatalf("expected one chapter with the body paragraph, got %+v", doc.Chapters)
	}
}
