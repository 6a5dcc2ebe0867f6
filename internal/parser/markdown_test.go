package parser

import (
	"strings"
	"testing"

	"github.com/dgallion1/bookgest/internal/doctree"
)

func TestMarkdownParser(t *testing.T) {
	input := "# Chapter 1\n\nIt was a *dark* night.\n\n---\n\n![map](" + pngDataURI(t) + ") After the map.\n"

	ext, err := (&MarkdownParser{}).Parse(strings.NewReader(input), "story.md")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ext.Title != "story" {
		t.Errorf("expected title %q, got %q", "story", ext.Title)
	}
	if len(ext.Blocks) != 3 {
		t.Fatalf("expected 3 blocks, got %+v", ext.Blocks)
	}

	want := "Chapter 1\n\nIt was a dark night.\n\n* * *"
	if ext.Blocks[0].Text != want {
		t.Errorf("block 0: expected %q, got %q", want, ext.Blocks[0].Text)
	}
	if ext.Blocks[1].Kind != doctree.RawImage || ext.Blocks[1].AltText != "map" {
		t.Errorf("block 1: expected image with alt map, got %+v", ext.Blocks[1])
	}
	if ext.Blocks[2].Text != "After the map." {
		t.Errorf("block 2: expected %q, got %q", "After the map.", ext.Blocks[2].Text)
	}
}

func TestMarkdownParser_SoftBreaksKept(t *testing.T) {
	input := "\"Hello,\" she said.\n\"Goodbye.\"\n"
	ext, err := (&MarkdownParser{}).Parse(strings.NewReader(input), "d.md")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "\"Hello,\" she said.\n\"Goodbye.\""
	if len(ext.Blocks) != 1 || ext.Blocks[0].Text != want {
		t.Errorf("expected %q, got %+v", want, ext.Blocks)
	}
}

func TestMarkdownParser_CodeBlockNotDuplicated(t *testing.T) {
	input := "```\nline one\nline two\n```\n"
	ext, err := (&MarkdownParser{}).Parse(strings.NewReader(input), "c.md")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ext.Blocks) != 1 {
		t.Fatalf("expected 1 block, got %+v", ext.Blocks)
	}
	if got := strings.Count(ext.Blocks[0].Text, "line one"); got != 1 {
		t.Errorf("expected code text once, got %d times in %q", got, ext.Blocks[0].Text)
	}
}
