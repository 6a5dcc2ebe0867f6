package assembler

import (
	"strings"

	"github.com/dgallion1/bookgest/internal/patterns"
)

// maxSectionLines caps how many lines a section title may span.
const maxSectionLines = 3

// heading is a resolved chapter heading starting at some line index.
// Consumed counts the heading line itself plus any merged lookahead lines.
type heading struct {
	Consumed  int
	Title     string
	Remainder string
}

// resolveChapterHeading decides the title for the chapter heading at
// lines[start]. An inline title or a line without a trailing separator is
// kept as-is. A bare "Chapter 3:" borrows the next content line, plus one
// more if that is also heading-shaped, splitting off any prose that was
// glued to an all-caps title.
func resolveChapterHeading(m *patterns.Matcher, lines []string, start int, match patterns.ChapterMatch) heading {
	raw := strings.TrimSpace(lines[start])
	if match.Title != "" || !patterns.EndsWithSeparator(raw) {
		return heading{Consumed: 1, Title: raw}
	}
	bare := heading{Consumed: 1, Title: strings.TrimRight(raw, " \t:：-–—")}

	j := nextContent(m, lines, start+1)
	if j < 0 {
		return bare
	}
	next := strings.TrimSpace(lines[j])
	if _, isChapter := m.DetectChapter(next); isChapter || m.LooksLikeOpeningProse(next) {
		return bare
	}
	if caps, rest, ok := patterns.SplitCapsRun(next); ok {
		return heading{Consumed: j - start + 1, Title: raw + " " + caps, Remainder: rest}
	}
	if !m.IsHeadingContinuation(next) && !m.IsLikelyChapterTitleLine(next) {
		return bare
	}

	merged := next
	consumed := j - start + 1
	if k := nextContent(m, lines, j+1); k >= 0 {
		extra := strings.TrimSpace(lines[k])
		if _, isChapter := m.DetectChapter(extra); !isChapter && m.IsHeadingContinuation(extra) {
			merged += " " + extra
			consumed = k - start + 1
		}
	}

	h := heading{Consumed: consumed, Title: raw + " " + merged}
	if caps, rest, ok := patterns.SplitCapsRun(merged); ok {
		h.Title = raw + " " + caps
		h.Remainder = rest
	}
	return h
}

// mergeSectionTitle joins the section heading at lines[start] with the
// heading-shaped lines that directly follow it.
func mergeSectionTitle(m *patterns.Matcher, lines []string, start int) (consumed int, title string) {
	parts := []string{strings.TrimSpace(lines[start])}
	consumed = 1
	for k := start + 1; len(parts) < maxSectionLines; k++ {
		k = nextContent(m, lines, k)
		if k < 0 {
			break
		}
		line := strings.TrimSpace(lines[k])
		if _, isChapter := m.DetectChapter(line); isChapter || !m.IsHeadingContinuation(line) {
			break
		}
		parts = append(parts, line)
		consumed = k - start + 1
	}
	return consumed, strings.Join(parts, " ")
}

// nextContent returns the index of the first line at or after from that is
// neither blank nor a page footer, or -1.
func nextContent(m *patterns.Matcher, lines []string, from int) int {
	for i := from; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])
		if line == "" || m.IsPageLine(line) {
			continue
		}
		return i
	}
	return -1
}
