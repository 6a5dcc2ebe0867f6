package pipeline

import (
	"bytes"
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dgallion1/bookgest/internal/assembler"
	"github.com/dgallion1/bookgest/internal/doctree"
	"github.com/dgallion1/bookgest/internal/parser"
	"github.com/dgallion1/bookgest/internal/patterns"
	"github.com/dgallion1/bookgest/internal/store"
)

// DocumentStore is the persistence the worker needs.
type DocumentStore interface {
	Put(ctx context.Context, id, contentHash string, doc *doctree.Document) (store.Record, error)
	GetByHash(ctx context.Context, contentHash string) (store.Record, error)
}

// WorkerConfig holds the per-conversion knobs shared by all workers.
type WorkerConfig struct {
	DefaultLanguage string
	ImageWorkers    int
	Limits          parser.Limits
	ParserOptions   parser.Options
}

// Worker processes a single conversion job.
type Worker struct {
	docs     DocumentStore
	patterns *patterns.Registry
	stats    *ConversionStats
	log      *slog.Logger
	cfg      WorkerConfig
}

func NewWorker(docs DocumentStore, registry *patterns.Registry, stats *ConversionStats, log *slog.Logger, cfg WorkerConfig) *Worker {
	if registry == nil {
		registry = patterns.Builtin()
	}
	if log == nil {
		log = slog.Default()
	}
	return &Worker{
		docs:     docs,
		patterns: registry,
		stats:    stats,
		log:      log,
		cfg:      cfg,
	}
}

// Process runs the full conversion pipeline for a job.
func (w *Worker) Process(ctx context.Context, job *Job) {
	log := w.log.With("job_id", job.ID, "doc_id", job.DocID, "filename", job.Filename)
	defer job.releaseFileData()

	// Phase 1: Extract
	job.SetStatus(StatusExtracting, "extracting")
	p, err := parser.ForFile(job.Filename, w.cfg.ParserOptions)
	if err != nil {
		log.Error("unsupported format", "error", err)
		job.AddError(err.Error())
		job.SetStatus(StatusFailed, "extracting")
		return
	}

	ext, err := p.Parse(bytes.NewReader(job.FileData()), job.Filename)
	if err != nil {
		log.Error("parse failed", "error", err)
		job.AddError(fmt.Sprintf("parse: %s", err))
		job.SetStatus(StatusFailed, "extracting")
		return
	}
	job.AddWarnings(ext.Warnings)

	meta := w.resolveMetadata(job.Snapshot().Metadata, ext)
	job.SetMetadata(meta)

	blocks, dropped := parser.ApplyImageLimits(ext.Blocks, w.cfg.Limits)
	job.SetExtracted(len(blocks), dropped)
	log.Info("extracted document", "blocks", len(blocks), "dropped_images", dropped, "warnings", len(ext.Warnings))

	// Phase 1.5: Dedup check
	hash := ContentHash(blocks, meta.Language)
	job.SetContentHash(hash)
	if !job.Force && w.docs != nil {
		rec, err := w.docs.GetByHash(ctx, hash)
		switch {
		case err == nil:
			log.Info("duplicate document, skipping", "existing_doc_id", rec.ID)
			job.MarkDuplicate(rec.ID)
			return
		case !errors.Is(err, store.ErrNotFound):
			log.Warn("dedup check failed, proceeding", "error", err)
		}
	}

	// Phase 2: Convert
	job.SetStatus(StatusConverting, "converting")
	start := time.Now()
	doc, report, err := assembler.ConvertWithReport(blocks, assembler.Options{
		Metadata:     meta,
		Matcher:      w.patterns.Matcher(meta.Language),
		ImageWorkers: w.cfg.ImageWorkers,
		Log:          log,
	})
	if err != nil {
		log.Error("conversion failed", "error", err)
		job.AddError(fmt.Sprintf("convert: %s", err))
		job.SetStatus(StatusFailed, "converting")
		return
	}
	elapsed := time.Since(start)
	if w.stats != nil {
		w.stats.Record(elapsed, report.Blocks)
	}
	job.SetReport(report)
	log.Info("converted document",
		"chapters", report.Chapters, "blocks", report.Blocks,
		"images", report.Images, "skipped_images", report.SkippedImages,
		"duration_ms", elapsed.Milliseconds())

	// Phase 3: Store
	job.SetStatus(StatusStoring, "storing")
	if w.docs != nil {
		if _, err := w.docs.Put(ctx, job.DocID, hash, doc); err != nil {
			log.Error("store failed", "error", err)
			job.AddError(fmt.Sprintf("store: %s", err))
			job.SetStatus(StatusFailed, "storing")
			return
		}
	}

	job.SetStatus(StatusCompleted, "done")
}

// resolveMetadata fills empty caller fields from the source document.
func (w *Worker) resolveMetadata(meta doctree.Metadata, ext *parser.Extraction) doctree.Metadata {
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
		meta.Language = w.cfg.DefaultLanguage
	}
	if meta.Language == "" {
		meta.Language = string(patterns.DefaultLanguage)
	}
	return meta
}

// ContentHash fingerprints the extracted blocks and conversion language so
// the same book uploaded in another container format is still a duplicate.
func ContentHash(blocks []doctree.RawBlock, language string) string {
	h := sha256.New()
	fmt.Fprintf(h, "lang:%s\n", patterns.NormalizeLanguage(language))
	for _, b := range blocks {
		fmt.Fprintf(h, "%s:%d:%d\n", b.Kind, b.PageIndex, b.Order)
		switch b.Kind {
		case doctree.RawText:
			h.Write([]byte(strings.TrimSpace(b.Text)))
		case doctree.RawImage:
			fmt.Fprintf(h, "%dx%d\n", b.Width, b.Height)
			h.Write(b.Pixels)
		}
		h.Write([]byte{0})
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}
