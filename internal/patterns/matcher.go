// Package patterns classifies text lines as chapter headings, section
// headings, running footers or prose, using per-language pattern tables.
package patterns

import (
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// Heuristic thresholds for dynamic heading detection. These are tuned
// against real extraction output, not invariants.
const (
	ShortHeadingMinLen    = 3
	ShortHeadingMaxLen    = 80
	ShortHeadingCapsRatio = 0.7
	NewswireMinLen        = 10
	NewswireMaxLen        = 160
	NewswireCapsRatio     = 0.6
	TitleLineMinLen       = 3
	TitleLineMaxLen       = 140
	TitleLineMaxPunct     = 3
	ContinuationMaxLen    = 80
	ContinuationCapsRatio = 0.7
	ContinuationMaxWords  = 10
	CapsRunMinTokens      = 3
)

// terminalPunct ends a sentence.
const terminalPunct = ".!?…。！？"

// ChapterMatch is the result of a chapter pattern hit. Number is nil when the
// captured token is not purely numeric (roman numerals, number words).
type ChapterMatch struct {
	Number *int
	Title  string
}

// Matcher classifies lines for one language. It is immutable and safe for
// concurrent use.
type Matcher struct {
	lang  Language
	table *Table
}

// NormalizeLanguage reduces a BCP 47 tag such as "pt-BR" to its base code.
func NormalizeLanguage(code string) Language {
	code = strings.TrimSpace(code)
	if code == "" {
		return DefaultLanguage
	}
	tag, err := language.Parse(code)
	if err != nil {
		return Language(strings.ToLower(code))
	}
	base, _ := tag.Base()
	return Language(base.String())
}

// Language returns the language whose table the matcher uses.
func (m *Matcher) Language() Language { return m.lang }

// DialogueMarkers returns the glyphs that may open a quotation, in order.
func (m *Matcher) DialogueMarkers() []string {
	return append([]string(nil), m.table.Dialogue...)
}

// DetectChapter tries each chapter pattern in order.
func (m *Matcher) DetectChapter(line string) (ChapterMatch, bool) {
	line = strings.TrimSpace(line)
	if line == "" {
		return ChapterMatch{}, false
	}
	for _, re := range m.table.Chapter {
		sub := re.FindStringSubmatch(line)
		if sub == nil {
			continue
		}
		var match ChapterMatch
		if len(sub) > 1 {
			match.Number = parseNumber(sub[1])
		}
		if len(sub) > 2 {
			match.Title = strings.TrimSpace(sub[2])
		}
		return match, true
	}
	return ChapterMatch{}, false
}

// parseNumber accepts ASCII and full-width digits only.
func parseNumber(s string) *int {
	s = norm.NFKC.String(strings.TrimSpace(s))
	if s == "" {
		return nil
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return nil
		}
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return nil
	}
	return &n
}

// DetectSection reports whether line is a section heading: an explicit
// section pattern, a short mostly-uppercase line, or a newswire-style
// uppercase line with digits or commas.
func (m *Matcher) DetectSection(line string) bool {
	line = strings.TrimSpace(line)
	if line == "" || m.LooksLikeOpeningProse(line) {
		return false
	}
	for _, re := range m.table.Section {
		if re.MatchString(line) {
			return true
		}
	}

	n := utf8.RuneCountInString(line)
	ratio := UppercaseRatio(line)
	if n >= ShortHeadingMinLen && n <= ShortHeadingMaxLen && ratio > ShortHeadingCapsRatio &&
		!endsWithAny(line, terminalPunct+",") {
		return true
	}
	if n >= NewswireMinLen && n <= NewswireMaxLen && ratio > NewswireCapsRatio &&
		strings.ContainsAny(line, "0123456789,") && !strings.HasSuffix(line, ",") {
		return true
	}
	return false
}

// LooksLikeOpeningProse reports lines that open with a quotation glyph or
// trail a comma. Such lines continue narrative and are never headings.
func (m *Matcher) LooksLikeOpeningProse(line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}
	if strings.HasSuffix(line, ",") {
		return true
	}
	for _, q := range openingQuotes {
		if strings.HasPrefix(line, q) {
			return true
		}
	}
	for _, q := range m.table.Dialogue {
		if strings.HasPrefix(line, q) {
			return true
		}
	}
	return false
}

// IsLikelyChapterTitleLine reports whether line could be the title part of
// a heading whose prefix ended on a separator.
func (m *Matcher) IsLikelyChapterTitleLine(line string) bool {
	line = strings.TrimSpace(line)
	if m.IsPageLine(line) || m.LooksLikeOpeningProse(line) {
		return false
	}
	n := utf8.RuneCountInString(line)
	if n < TitleLineMinLen || n > TitleLineMaxLen {
		return false
	}
	if endsWithAny(line, terminalPunct) {
		return false
	}
	if first, _ := utf8.DecodeRuneInString(line); unicode.IsLower(first) {
		return false
	}
	return strings.Count(line, ",")+strings.Count(line, ";")+strings.Count(line, ":") <= TitleLineMaxPunct
}

// IsHeadingContinuation reports whether line is shaped like the second line
// of a wrapped heading: short, unterminated, and uppercase or title case.
func (m *Matcher) IsHeadingContinuation(line string) bool {
	line = strings.TrimSpace(line)
	if line == "" || m.IsPageLine(line) || m.LooksLikeOpeningProse(line) {
		return false
	}
	if utf8.RuneCountInString(line) > ContinuationMaxLen || endsWithAny(line, terminalPunct+",") {
		return false
	}
	return UppercaseRatio(line) > ContinuationCapsRatio || isTitleCase(line)
}

// IsPageLine recognizes running footers such as "Page 205" or "205 | Page".
func (m *Matcher) IsPageLine(line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}
	for _, re := range pageLinePatterns {
		if re.MatchString(line) {
			return true
		}
	}
	return false
}

// UppercaseRatio is the share of uppercase runes among letters. Letters
// without case (CJK) count toward the total only.
func UppercaseRatio(s string) float64 {
	var letters, upper int
	for _, r := range s {
		if !unicode.IsLetter(r) {
			continue
		}
		letters++
		if unicode.IsUpper(r) {
			upper++
		}
	}
	if letters == 0 {
		return 0
	}
	return float64(upper) / float64(letters)
}

// SplitCapsRun splits "THE DARK NIGHT It was cold..." into a title made of a
// leading run of at least three all-caps tokens and the prose that follows.
// It reports false when the text has no such run followed by lowercase content.
func SplitCapsRun(text string) (title, rest string, ok bool) {
	tokens := strings.Fields(text)
	run := 0
	for run < len(tokens) && isCapsToken(tokens[run]) {
		run++
	}
	if run < CapsRunMinTokens || run == len(tokens) || !hasLower(tokens[run]) {
		return "", "", false
	}
	return strings.Join(tokens[:run], " "), strings.Join(tokens[run:], " "), true
}

func isCapsToken(tok string) bool {
	upper := false
	for _, r := range tok {
		if unicode.IsLower(r) {
			return false
		}
		if unicode.IsUpper(r) {
			upper = true
		}
	}
	return upper
}

func hasLower(s string) bool {
	for _, r := range s {
		if unicode.IsLower(r) {
			return true
		}
	}
	return false
}

// connectors may stay lowercase inside a title-cased heading.
var connectors = map[string]bool{
	"a": true, "an": true, "the": true, "of": true, "and": true, "or": true, "in": true,
	"on": true, "at": true, "to": true, "for": true, "with": true, "from": true, "by": true,
	"de": true, "del": true, "la": true, "le": true, "les": true, "el": true, "los": true,
	"du": true, "des": true, "y": true, "e": true, "et": true, "und": true, "der": true,
	"die": true, "das": true, "di": true, "da": true, "do": true, "von": true,
}

func isTitleCase(line string) bool {
	words := strings.Fields(line)
	if len(words) == 0 || len(words) > ContinuationMaxWords {
		return false
	}
	for i, w := range words {
		first, _ := utf8.DecodeRuneInString(w)
		if !unicode.IsLetter(first) {
			continue
		}
		if unicode.IsUpper(first) {
			continue
		}
		if i > 0 && connectors[strings.ToLower(w)] {
			continue
		}
		return false
	}
	first, _ := utf8.DecodeRuneInString(words[0])
	return unicode.IsUpper(first) || unicode.IsDigit(first)
}

// EndsWithTerminal reports whether s ends a sentence once trailing closing
// quotation glyphs are removed.
func EndsWithTerminal(s string) bool {
	s = strings.TrimRightFunc(s, func(r rune) bool {
		return unicode.IsSpace(r) || strings.ContainsRune(closingGlyphs, r)
	})
	return endsWithAny(s, terminalPunct)
}

// closingGlyphs may trail a sentence-terminal mark.
const closingGlyphs = "\"”’'»«」』)）"

// EndsWithClosingGlyph reports text that ends on a closing quotation glyph.
func EndsWithClosingGlyph(s string) bool {
	return endsWithAny(strings.TrimSpace(s), closingGlyphs)
}

// EndsWithSeparator reports a heading prefix that trails a colon or dash.
func EndsWithSeparator(s string) bool {
	return endsWithAny(strings.TrimSpace(s), ":：-–—")
}

func endsWithAny(s, set string) bool {
	r, size := utf8.DecodeLastRuneInString(s)
	if size == 0 {
		return false
	}
	return strings.ContainsRune(set, r)
}
