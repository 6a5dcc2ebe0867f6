package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/dgallion1/bookgest/internal/assembler"
	"github.com/dgallion1/bookgest/internal/config"
	"github.com/dgallion1/bookgest/internal/doctree"
	"github.com/dgallion1/bookgest/internal/export"
	"github.com/dgallion1/bookgest/internal/parser"
	"github.com/dgallion1/bookgest/internal/patterns"
)

// Version info (injected via ldflags)
var (
	version = "dev"
	commit  = "none"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#00AAFF"))

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888")).
			Width(16)

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF"))

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFAA00"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF0000")).
			Bold(true)
)

func main() {
	title := flag.String("title", "", "Book title (default: from the source)")
	author := flag.String("author", "", "Author")
	series := flag.String("series", "", "Series name")
	volume := flag.String("volume", "", "Volume within the series")
	lang := flag.String("lang", "", "Language code, e.g. en, es, pt-BR (default: from the source)")
	format := flag.String("format", "json", "Output format: json, markdown or html")
	out := flag.String("o", "", "Output file (default: stdout)")
	patternsFile := flag.String("patterns", os.Getenv("PATTERNS_FILE"), "YAML file with extra heading and dialogue patterns")
	quiet := flag.Bool("q", false, "Do not print the summary")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "bookgest-convert - convert a book into structured chapters\n\n")
		fmt.Fprintf(os.Stderr, "Usage: %s [options] <file>\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if *showVersion {
		fmt.Printf("bookgest-convert %s (%s)\n", version, commit)
		return
	}
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	if err := run(flag.Arg(0), *out, *format, *patternsFile, *quiet, doctree.Metadata{
		Title:    *title,
		Author:   *author,
		Series:   *series,
		Volume:   *volume,
		Language: *lang,
	}); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("error: ")+err.Error())
		os.Exit(1)
	}
}

func run(path, outPath, format, patternsFile string, quiet bool, meta doctree.Metadata) error {
	cfg := config.Load()

	registry := patterns.Builtin()
	if patternsFile != "" {
		var err error
		if registry, err = patterns.LoadFile(patternsFile); err != nil {
			return err
		}
	}

	p, err := parser.ForFile(path, parser.Options{FallbackPdftotext: cfg.PDFFallbackPdftotext})
	if err != nil {
		return err
	}
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	start := time.Now()
	ext, err := p.Parse(f, path)
	if err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	if meta.Title == "" {
		meta.Title = ext.Title
	}
	if meta.Author == "" {
		meta.Author = ext.Author
	}
	if meta.Language == "" {
		meta.Language = ext.Language
	}
	if meta.Language == "" {
		meta.Language = cfg.DefaultLanguage
	}

	blocks, dropped := parser.ApplyImageLimits(ext.Blocks, parser.Limits{
		MaxImages:        cfg.MaxImages,
		MaxImagesPerPage: cfg.MaxImagesPerPage,
		MinImageArea:     cfg.MinImageArea,
	})
	doc, report, err := assembler.ConvertWithReport(blocks, assembler.Options{
		Metadata:     meta,
		Matcher:      registry.Matcher(meta.Language),
		ImageWorkers: cfg.ImageWorkers,
	})
	if err != nil {
		return err
	}
	elapsed := time.Since(start)

	var w io.Writer = os.Stdout
	if outPath != "" {
		of, err := os.Create(outPath)
		if err != nil {
			return err
		}
		defer of.Close()
		w = of
	}
	if err := write(w, doc, format); err != nil {
		return err
	}

	if !quiet {
		printSummary(doc, report, dropped, ext.Warnings, elapsed)
	}
	return nil
}

func write(w io.Writer, doc *doctree.Document, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(doc)
	case "markdown", "md":
		md, err := export.Markdown(doc)
		if err != nil {
			return err
		}
		_, err = io.WriteString(w, md)
		return err
	case "html":
		_, err := io.WriteString(w, export.HTML(doc))
		return err
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}

func printSummary(doc *doctree.Document, r assembler.Report, dropped int, warnings []string, elapsed time.Duration) {
	row := func(label string, value any) {
		fmt.Fprintln(os.Stderr, labelStyle.Render(label)+valueStyle.Render(fmt.Sprint(value)))
	}
	fmt.Fprintln(os.Stderr, titleStyle.Render(doc.Metadata.Title))
	row("language", doc.Metadata.Language)
	row("chapters", r.Chapters)
	row("blocks", r.Blocks)
	row("images", r.Images)
	row("words", r.Words)
	row("time", elapsed.Round(time.Millisecond))
	if r.SkippedImages > 0 || dropped > 0 {
		fmt.Fprintln(os.Stderr, warnStyle.Render(fmt.Sprintf("%d images dropped by limits, %d failed to encode", dropped, r.SkippedImages)))
	}
	for _, w := range warnings {
		fmt.Fprintln(os.Stderr, warnStyle.Render("warning: "+w))
	}
	for _, e := range doc.TOC {
		fmt.Fprintln(os.Stderr, "  "+labelStyle.Render(fmt.Sprintf("%d", e.ChapterNumber))+e.Label)
	}
}
