package segmenter

import (
	"strings"

	"github.com/dgallion1/bookgest/internal/doctree"
)

// CountWords gives the whitespace-delimited word count of the fragments'
// text. CJK text without spaces counts one word per run, which is good
// enough for progress reporting.
func CountWords(fragments []Fragment) int {
	n := 0
	for _, f := range fragments {
		if f.Kind == doctree.KindParagraph || f.Kind == doctree.KindDialogue {
			n += len(strings.Fields(f.Text))
		}
	}
	return n
}
