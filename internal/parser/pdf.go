package parser

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"strings"

	pdflib "github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// PDFParser handles PDF files. Page text comes from ledongthuc/pdf with a
// pdftotext fallback; embedded raster images come from pdfcpu.
type PDFParser struct {
	FallbackPdftotext bool
}

func (p *PDFParser) Parse(r io.Reader, filename string) (*Extraction, error) {
	// Both libraries want a seekable file, so spool to disk.
	tmp, err := os.CreateTemp("", "bookgest-pdf-*.pdf")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("write temp file: %w", err)
	}
	tmp.Close()

	pages, err := extractPDFPages(tmpPath)
	if (err != nil || blankPages(pages)) && p.FallbackPdftotext {
		if text, ferr := extractPdftotext(tmpPath); ferr == nil {
			pages, err = strings.Split(text, "\f"), nil
		}
	}
	if err != nil {
		return nil, fmt.Errorf("extract pdf text: %w", err)
	}

	var b blockBuilder
	images, imgErr := extractPDFImages(tmpPath)
	if imgErr != nil {
		b.warn("pdf images: %v", imgErr)
	}

	n := len(pages)
	for pageNr := range images {
		n = max(n, pageNr)
	}
	for i := 0; i < n; i++ {
		if i > 0 {
			b.nextPage()
		}
		if i < len(pages) {
			b.raw(pages[i])
		}
		for _, img := range images[i+1] {
			b.decoded(img, "")
		}
	}
	return b.finish(&Extraction{Title: baseTitle(filename)}), nil
}

func blankPages(pages []string) bool {
	for _, p := range pages {
		if strings.TrimSpace(p) != "" {
			return false
		}
	}
	return true
}

// extractPDFPages returns one string per page, empty for unreadable pages.
func extractPDFPages(path string) ([]string, error) {
	f, reader, err := pdflib.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	numPages := reader.NumPage()
	pages := make([]string, numPages)
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		pages[i-1] = text
	}
	return pages, nil
}

func extractPdftotext(path string) (string, error) {
	cmd := exec.Command("pdftotext", "-layout", path, "-")
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("pdftotext: %w", err)
	}
	return string(out), nil
}

// extractPDFImages decodes embedded images keyed by 1-based page number,
// ordered by object number within a page.
func extractPDFImages(path string) (map[int][]decodedImage, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	conf := model.NewDefaultConfiguration()
	ctx, err := api.ReadValidateAndOptimize(f, conf)
	if err != nil {
		return nil, fmt.Errorf("pdfcpu read: %w", err)
	}

	out := make(map[int][]decodedImage)
	for pageNr := 1; pageNr <= ctx.PageCount; pageNr++ {
		imgs, err := pdfcpu.ExtractPageImages(ctx, pageNr, false)
		if err != nil {
			continue
		}
		objNrs := make([]int, 0, len(imgs))
		for nr := range imgs {
			objNrs = append(objNrs, nr)
		}
		sort.Ints(objNrs)
		for _, nr := range objNrs {
			data, err := io.ReadAll(imgs[nr])
			if err != nil {
				continue
			}
			img, err := decodeImage(data)
			if err != nil {
				continue
			}
			out[pageNr] = append(out[pageNr], img)
		}
	}
	return out, nil
}
