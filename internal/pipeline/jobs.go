package pipeline

import (
	"crypto/sha256"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dgallion1/bookgest/internal/assembler"
	"github.com/dgallion1/bookgest/internal/doctree"
)

// JobStatus represents the state of a conversion job.
type JobStatus string

const (
	StatusQueued     JobStatus = "queued"
	StatusExtracting JobStatus = "extracting"
	StatusConverting JobStatus = "converting"
	StatusStoring    JobStatus = "storing"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
	StatusDupSkipped JobStatus = "duplicate_skipped"
)

// Job tracks the state of a single book conversion.
type Job struct {
	mu sync.Mutex

	ID    string `json:"job_id"`
	DocID string `json:"doc_id"`

	Status   JobStatus `json:"status"`
	Phase    string    `json:"phase"`
	Filename string    `json:"filename"`

	// Metadata is caller-supplied; empty fields are filled from the source.
	Metadata doctree.Metadata `json:"metadata"`
	Force    bool             `json:"force"`

	Progress Progress `json:"progress"`

	ContentHash   string    `json:"content_hash,omitempty"`
	ExistingDocID string    `json:"existing_doc_id,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`

	// Internal: not serialized.
	fileData []byte
	errors   []string
}

// Progress tracks processing progress.
type Progress struct {
	RawBlocks     int      `json:"raw_blocks"`
	DroppedImages int      `json:"dropped_images"`
	Chapters      int      `json:"chapters"`
	Blocks        int      `json:"blocks"`
	Images        int      `json:"images"`
	SkippedImages int      `json:"skipped_images"`
	Words         int      `json:"words"`
	Warnings      []string `json:"warnings"`
	Errors        []string `json:"errors"`
}

// NewJob creates a queued job with fresh job and document ids.
func NewJob(filename string, meta doctree.Metadata, force bool, data []byte) *Job {
	now := time.Now()
	return &Job{
		ID:        uuid.NewString(),
		DocID:     uuid.NewString(),
		Status:    StatusQueued,
		Phase:     "queued",
		Filename:  filename,
		Metadata:  meta,
		Force:     force,
		CreatedAt: now,
		UpdatedAt: now,
		fileData:  data,
	}
}

// JobStore is a thread-safe in-memory job registry with TTL eviction.
type JobStore struct {
	mu   sync.Mutex
	jobs map[string]*Job
	ttl  time.Duration
}

func NewJobStore(ttl time.Duration) *JobStore {
	return &JobStore{
		jobs: make(map[string]*Job),
		ttl:  ttl,
	}
}

func (s *JobStore) Put(job *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
}

func (s *JobStore) Get(id string) *Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jobs[id]
}

// Len returns the number of tracked jobs.
func (s *JobStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

// Cleanup removes expired jobs.
func (s *JobStore) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for id, job := range s.jobs {
		job.mu.Lock()
		updated := job.UpdatedAt
		job.mu.Unlock()
		if now.Sub(updated) > s.ttl {
			delete(s.jobs, id)
		}
	}
}

// SetStatus updates job status atomically.
func (j *Job) SetStatus(status JobStatus, phase string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Status = status
	j.Phase = phase
	j.UpdatedAt = time.Now()
}

// AddError records an error.
func (j *Job) AddError(err string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.errors = append(j.errors, err)
	j.Progress.Errors = j.errors
	j.UpdatedAt = time.Now()
}

// AddWarnings records non-fatal extraction problems.
func (j *Job) AddWarnings(warnings []string) {
	if len(warnings) == 0 {
		return
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.Warnings = append(j.Progress.Warnings, warnings...)
	j.UpdatedAt = time.Now()
}

// SetExtracted records how many raw blocks survived image limits.
func (j *Job) SetExtracted(rawBlocks, droppedImages int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.RawBlocks = rawBlocks
	j.Progress.DroppedImages = droppedImages
	j.UpdatedAt = time.Now()
}

// SetReport copies assembler counters into the job progress.
func (j *Job) SetReport(r assembler.Report) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.Chapters = r.Chapters
	j.Progress.Blocks = r.Blocks
	j.Progress.Images = r.Images
	j.Progress.SkippedImages = r.SkippedImages
	j.Progress.Words = r.Words
	j.UpdatedAt = time.Now()
}

// SetContentHash records the hash used for dedup.
func (j *Job) SetContentHash(hash string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.ContentHash = hash
}

// MarkDuplicate points the job at an already stored document.
func (j *Job) MarkDuplicate(existingDocID string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.ExistingDocID = existingDocID
	j.Status = StatusDupSkipped
	j.Phase = "dedup"
	j.UpdatedAt = time.Now()
}

// SetMetadata replaces the resolved document metadata.
func (j *Job) SetMetadata(meta doctree.Metadata) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Metadata = meta
}

// SetFileData sets the raw file bytes for processing.
func (j *Job) SetFileData(data []byte) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.fileData = data
}

// FileData returns the raw file bytes.
func (j *Job) FileData() []byte {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.fileData
}

// releaseFileData drops the upload once the job no longer needs it.
func (j *Job) releaseFileData() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.fileData = nil
}

// JobSnapshot is a read-only, JSON-safe copy of job state.
type JobSnapshot struct {
	ID            string           `json:"job_id"`
	DocID         string           `json:"doc_id"`
	Status        JobStatus        `json:"status"`
	Phase         string           `json:"phase"`
	Filename      string           `json:"filename"`
	Metadata      doctree.Metadata `json:"metadata"`
	ContentHash   string           `json:"content_hash,omitempty"`
	ExistingDocID string           `json:"existing_doc_id,omitempty"`
	Progress      Progress         `json:"progress"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

// Snapshot returns a JSON-safe copy of the job state.
func (j *Job) Snapshot() JobSnapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	progress := j.Progress
	progress.Errors = append([]string{}, j.Progress.Errors...)
	progress.Warnings = append([]string{}, j.Progress.Warnings...)
	return JobSnapshot{
		ID:            j.ID,
		DocID:         j.DocID,
		Status:        j.Status,
		Phase:         j.Phase,
		Filename:      j.Filename,
		Metadata:      j.Metadata,
		ContentHash:   j.ContentHash,
		ExistingDocID: j.ExistingDocID,
		Progress:      progress,
		CreatedAt:     j.CreatedAt,
		UpdatedAt:     j.UpdatedAt,
	}
}

// ContentHashHex computes SHA-256 of content and returns hex string.
func ContentHashHex(data []byte) string {
	h := sha256.Sum256(data)
	return fmt.Sprintf("%x", h[:])
}
