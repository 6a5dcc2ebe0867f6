// Package segmenter splits chapter body text into narration, dialogue and
// scene-break fragments.
package segmenter

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"github.com/dgallion1/bookgest/internal/doctree"
	"github.com/dgallion1/bookgest/internal/patterns"
)

// Classifier supplies the language-specific pieces the segmenter needs.
// *patterns.Matcher satisfies it.
type Classifier interface {
	DialogueMarkers() []string
	IsPageLine(line string) bool
}

// Fragment is one classified span of body text.
type Fragment struct {
	Kind doctree.BlockKind
	Text string
	HTML string
}

// sceneGlyphs may form a scene-break run when one of them repeats three or
// more times.
var sceneGlyphs = []string{`\*`, "◊", "#", "~", "•", "·", "◆", "❖", "○"}

var (
	sceneRun     = regexp.MustCompile(sceneRunExpr())
	sceneLine    = regexp.MustCompile(`^(?:` + sceneRunExpr() + `)$`)
	bareURL      = regexp.MustCompile(`(?i)^(?:https?://|www\.)\S+$`)
	quoteOnly    = regexp.MustCompile(`^[\s"'“”‘’«»„‚「」『』]+$`)
	blankLine    = regexp.MustCompile(`\n[ \t]*\n`)
	escapeMarkup = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
)

func sceneRunExpr() string {
	alts := make([]string, len(sceneGlyphs))
	for i, g := range sceneGlyphs {
		alts[i] = `(?:` + g + `[ \t]*){2,}` + g
	}
	return strings.Join(alts, "|")
}

// Segmenter is bound to one language. It holds no state between calls.
type Segmenter struct {
	markers []string
	isPage  func(string) bool
}

// New returns a segmenter using c's dialogue markers and footer detection.
func New(c Classifier) *Segmenter {
	return &Segmenter{markers: c.DialogueMarkers(), isPage: c.IsPageLine}
}

// Segment classifies text. Paragraph groups separated by blank lines are
// processed independently.
func (s *Segmenter) Segment(text string) []Fragment {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = norm.NFC.String(text)

	text = sceneRun.ReplaceAllStringFunc(text, func(run string) string {
		return "\n" + run + "\n"
	})

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = s.splitOpeners(line)
	}
	text = strings.Join(lines, "\n")

	var out []Fragment
	for _, group := range blankLine.Split(text, -1) {
		out = s.segmentGroup(group, out)
	}
	return out
}

// groupState is the narration/dialogue sub-machine for one paragraph group.
type groupState struct {
	current    []string
	inDialogue bool
	out        []Fragment
}

func (g *groupState) flush() {
	if len(g.current) > 0 {
		text := strings.Join(g.current, " ")
		if g.inDialogue {
			g.out = append(g.out, fragment(doctree.KindDialogue, text))
		} else {
			g.out = append(g.out, fragment(doctree.KindParagraph, text))
		}
	}
	g.current = g.current[:0]
	g.inDialogue = false
}

func (s *Segmenter) segmentGroup(group string, out []Fragment) []Fragment {
	g := &groupState{out: out}
	for _, raw := range strings.Split(group, "\n") {
		line := strings.TrimSpace(raw)
		if !s.validLine(line) {
			continue
		}
		line = stripStrayQuote(line)
		if line == "" {
			continue
		}

		switch {
		case sceneLine.MatchString(line):
			g.flush()
			g.out = append(g.out, fragment(doctree.KindSceneBreak, line))
		case s.isDialogueStart(line):
			g.flush()
			g.current = append(g.current, line)
			g.inDialogue = true
			if patterns.EndsWithTerminal(line) {
				g.flush()
			}
		default:
			g.current = append(g.current, line)
			if patterns.EndsWithTerminal(line) {
				g.flush()
			}
		}
	}
	g.flush()
	return g.out
}

func (s *Segmenter) validLine(line string) bool {
	switch {
	case line == "":
		return false
	case bareURL.MatchString(line):
		return false
	case quoteOnly.MatchString(line):
		return false
	case s.isPage != nil && s.isPage(line):
		return false
	}
	return true
}

// stripStrayQuote drops a leading straight double quote that is never
// closed on the same line.
func stripStrayQuote(line string) string {
	if strings.HasPrefix(line, `"`) && strings.Count(line, `"`) == 1 {
		return strings.TrimSpace(line[1:])
	}
	return line
}

// isDialogueStart reports a line opening with a configured marker. A
// straight double quote needs its closing partner on the same line.
func (s *Segmenter) isDialogueStart(line string) bool {
	for _, m := range s.markers {
		if !strings.HasPrefix(line, m) {
			continue
		}
		if m == `"` {
			return strings.Count(line, `"`) >= 2
		}
		return true
	}
	return false
}

// splitOpeners breaks a line before each dialogue opener that follows a
// finished sentence or a closed quotation, so "A" "B" becomes two lines.
// Straight double quotes alternate between opening and closing.
func (s *Segmenter) splitOpeners(line string) string {
	var cuts []int
	last, straight := 0, 0
	for i := 0; i < len(line); {
		m := markerAt(line[i:], s.markers)
		if m == "" {
			_, size := utf8.DecodeRuneInString(line[i:])
			i += size
			continue
		}
		opener := true
		if m == `"` {
			opener = straight%2 == 0
			straight++
		}
		if opener && i > 0 && (line[i-1] == ' ' || line[i-1] == '\t') {
			prev := strings.TrimSpace(line[last:i])
			if prev != "" && (patterns.EndsWithTerminal(prev) || patterns.EndsWithClosingGlyph(prev)) {
				cuts = append(cuts, i)
				last = i
			}
		}
		i += len(m)
	}
	if len(cuts) == 0 {
		return line
	}

	var b strings.Builder
	start := 0
	for _, c := range cuts {
		b.WriteString(strings.TrimRight(line[start:c], " \t"))
		b.WriteByte('\n')
		start = c
	}
	b.WriteString(line[start:])
	return b.String()
}

func markerAt(s string, markers []string) string {
	for _, m := range markers {
		if strings.HasPrefix(s, m) {
			return m
		}
	}
	return ""
}

func fragment(kind doctree.BlockKind, text string) Fragment {
	return Fragment{Kind: kind, Text: text, HTML: Markup(kind, text)}
}

// Markup wraps text in the container for kind, escaping &, < and >.
func Markup(kind doctree.BlockKind, text string) string {
	escaped := escapeMarkup.Replace(text)
	switch kind {
	case doctree.KindDialogue:
		return "<blockquote>" + escaped + "</blockquote>"
	case doctree.KindSceneBreak:
		return `<p class="` + doctree.SceneBreakClass + `">` + escaped + "</p>"
	default:
		return "<p>" + escaped + "</p>"
	}
}
