package parser

import (
	"fmt"
	"io"
	"strings"
)

// TextParser handles plain text files. A form feed starts a new page.
type TextParser struct{}

func (p *TextParser) Parse(r io.Reader, filename string) (*Extraction, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read text: %w", err)
	}
	text := strings.ReplaceAll(string(data), "\r\n", "\n")

	var b blockBuilder
	for i, page := range strings.Split(text, "\f") {
		if i > 0 {
			b.nextPage()
		}
		b.raw(page)
	}
	return b.finish(&Extraction{Title: baseTitle(filename)}), nil
}
