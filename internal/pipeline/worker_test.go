package pipeline

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/dgallion1/bookgest/internal/config"
	"github.com/dgallion1/bookgest/internal/doctree"
	"github.com/dgallion1/bookgest/internal/store"
)

const sampleBook = "Chapter 1\nIt was a dark night.\n\n\"Hello,\" she said.\n\nChapter 2\nMorning came.\n"

func openStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "docs.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func newTestWorker(docs DocumentStore) *Worker {
	return NewWorker(docs, nil, NewConversionStats(time.Hour), nil, WorkerConfig{DefaultLanguage: "en", ImageWorkers: 2})
}

func TestWorker_ConvertsAndStores(t *testing.T) {
	docs := openStore(t)
	w := newTestWorker(docs)

	job := NewJob("book.txt", doctree.Metadata{Author: "Someone"}, false, []byte(sampleBook))
	w.Process(context.Background(), job)

	snap := job.Snapshot()
	if snap.Status != StatusCompleted {
		t.Fatalf("expected completed, got %s (errors %v)", snap.Status, snap.Progress.Errors)
	}
	if snap.Metadata.Title != "book" || snap.Metadata.Language != "en" || snap.Metadata.Author != "Someone" {
		t.Errorf("unexpected resolved metadata %+v", snap.Metadata)
	}
	if snap.Progress.Chapters != 2 {
		t.Errorf("expected 2 chapters, got %d", snap.Progress.Chapters)
	}
	if snap.ContentHash == "" {
		t.Error("expected content hash")
	}
	if job.FileData() != nil {
		t.Error("expected upload released after processing")
	}

	doc, rec, err := docs.Get(context.Background(), job.DocID)
	if err != nil {
		t.Fatalf("get stored document: %v", err)
	}
	if rec.ContentHash != snap.ContentHash || len(doc.Chapters) != 2 {
		t.Errorf("unexpected stored document %+v", rec)
	}
	if snap := w.stats.Snapshot(); snap.Count != 1 {
		t.Errorf("expected one stats sample, got %d", snap.Count)
	}
}

func TestWorker_DuplicateSkipped(t *testing.T) {
	docs := openStore(t)
	w := newTestWorker(docs)
	ctx := context.Background()

	first := NewJob("book.txt", doctree.Metadata{}, false, []byte(sampleBook))
	w.Process(ctx, first)

	// Same content under a different container format is still a duplicate.
	second := NewJob("book.md", doctree.Metadata{}, false, []byte(sampleBook))
	w.Process(ctx, second)
	snap := second.Snapshot()
	if snap.Status != StatusDupSkipped {
		t.Fatalf("expected duplicate_skipped, got %s", snap.Status)
	}
	if snap.ExistingDocID != first.DocID {
		t.Errorf("expected existing doc %s, got %s", first.DocID, snap.ExistingDocID)
	}

	forced := NewJob("book.txt", doctree.Metadata{}, true, []byte(sampleBook))
	w.Process(ctx, forced)
	if got := forced.Snapshot().Status; got != StatusCompleted {
		t.Errorf("expected forced conversion to complete, got %s", got)
	}
}

func TestWorker_UnsupportedFormat(t *testing.T) {
	w := newTestWorker(nil)
	job := NewJob("sheet.xlsx", doctree.Metadata{}, false, []byte("x"))
	w.Process(context.Background(), job)

	snap := job.Snapshot()
	if snap.Status != StatusFailed || snap.Phase != "extracting" {
		t.Errorf("expected failure while extracting, got %s/%s", snap.Status, snap.Phase)
	}
	if len(snap.Progress.Errors) != 1 {
		t.Errorf("expected 1 error, got %v", snap.Progress.Errors)
	}
}

func TestWorker_CallerLanguageWins(t *testing.T) {
	w := newTestWorker(nil)
	text := "Capítulo 1\n—Hola —dijo ella.\n"
	job := NewJob("libro.txt", doctree.Metadata{Title: "Libro", Language: "es"}, false, []byte(text))
	w.Process(context.Background(), job)

	snap := job.Snapshot()
	if snap.Status != StatusCompleted {
		t.Fatalf("expected completed, got %s (%v)", snap.Status, snap.Progress.Errors)
	}
	if snap.Metadata.Language != "es" || snap.Metadata.Title != "Libro" {
		t.Errorf("caller metadata overwritten: %+v", snap.Metadata)
	}
	if snap.Progress.Chapters != 1 {
		t.Errorf("expected Spanish heading detected, got %d chapters", snap.Progress.Chapters)
	}
}

func TestOrchestrator_ProcessesJobs(t *testing.T) {
	cfg := config.Config{WorkerCount: 2, MaxQueueSize: 4, JobTTL: time.Hour, StatsWindow: time.Hour, DefaultLanguage: "en"}
	o := NewOrchestrator(cfg, openStore(t), nil, nil)
	o.Start(context.Background())

	job := NewJob("book.txt", doctree.Metadata{}, false, []byte(sampleBook))
	if err := o.Submit(job); err != nil {
		t.Fatalf("submit: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		status := o.GetJob(job.ID).Snapshot().Status
		if status == StatusCompleted {
			break
		}
		if status == StatusFailed || time.Now().After(deadline) {
			o.Stop()
			t.Fatalf("job did not complete, status %s", status)
		}
		time.Sleep(10 * time.Millisecond)
	}
	o.Stop()

	if o.Stats().Snapshot().Count != 1 {
		t.Errorf("expected one conversion recorded")
	}
}

func TestOrchestrator_QueueFull(t *testing.T) {
	cfg := config.Config{WorkerCount: 1, MaxQueueSize: 1, JobTTL: time.Hour}
	o := NewOrchestrator(cfg, nil, nil, nil)
	defer o.Stop()

	if err := o.Submit(NewJob("a.txt", doctree.Metadata{}, false, nil)); err != nil {
		t.Fatalf("first submit: %v", err)
	}
	job := NewJob("b.txt", doctree.Metadata{}, false, nil)
	if err := o.Submit(job); err == nil {
		t.Fatal("expected queue full error")
	}
	if got := job.Snapshot().Status; got != StatusFailed {
		t.Errorf("expected failed status, got %s", got)
	}
	if o.QueueDepth() != 1 {
		t.Errorf("expected queue depth 1, got %d", o.QueueDepth())
	}
}
