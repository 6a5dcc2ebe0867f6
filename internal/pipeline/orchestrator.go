package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dgallion1/bookgest/internal/config"
	"github.com/dgallion1/bookgest/internal/parser"
	"github.com/dgallion1/bookgest/internal/patterns"
)

// Orchestrator manages the book conversion pipeline.
type Orchestrator struct {
	jobs      *JobStore
	queue     chan *Job
	docs      DocumentStore
	patterns  *patterns.Registry
	stats     *ConversionStats
	log       *slog.Logger
	cfg       config.Config
	workerCfg WorkerConfig

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewOrchestrator creates the pipeline. Call Start to launch workers.
func NewOrchestrator(cfg config.Config, docs DocumentStore, registry *patterns.Registry, log *slog.Logger) *Orchestrator {
	if registry == nil {
		registry = patterns.Builtin()
	}
	if log == nil {
		log = slog.Default()
	}
	return &Orchestrator{
		jobs:     NewJobStore(cfg.JobTTL),
		queue:    make(chan *Job, cfg.MaxQueueSize),
		docs:     docs,
		patterns: registry,
		stats:    NewConversionStats(cfg.StatsWindow),
		log:      log,
		cfg:      cfg,
		workerCfg: WorkerConfig{
			DefaultLanguage: cfg.DefaultLanguage,
			ImageWorkers:    cfg.ImageWorkers,
			Limits: parser.Limits{
				MaxImages:        cfg.MaxImages,
				MaxImagesPerPage: cfg.MaxImagesPerPage,
				MinImageArea:     cfg.MinImageArea,
			},
			ParserOptions: parser.Options{FallbackPdftotext: cfg.PDFFallbackPdftotext},
		},
	}
}

// Start launches worker goroutines.
func (o *Orchestrator) Start(ctx context.Context) {
	workerCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel

	for range o.cfg.WorkerCount {
		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			w := NewWorker(o.docs, o.patterns, o.stats, o.log, o.workerCfg)
			for {
				select {
				case <-workerCtx.Done():
					return
				case job, ok := <-o.queue:
					if !ok {
						return
					}
					w.Process(workerCtx, job)
				}
			}
		}()
	}

	// Start job store cleanup.
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-workerCtx.Done():
				return
			case <-ticker.C:
				o.jobs.Cleanup()
			}
		}
	}()
}

// Stop gracefully shuts down the pipeline.
func (o *Orchestrator) Stop() {
	if o.cancel != nil {
		o.cancel()
	}
	close(o.queue)
	o.wg.Wait()
}

// Submit queues a new job for processing.
func (o *Orchestrator) Submit(job *Job) error {
	o.jobs.Put(job)
	select {
	case o.queue <- job:
		return nil
	default:
		job.AddError("queue full")
		job.SetStatus(StatusFailed, "queue_full")
		return fmt.Errorf("job queue is full (%d)", o.cfg.MaxQueueSize)
	}
}

// GetJob returns a job by ID.
func (o *Orchestrator) GetJob(id string) *Job {
	return o.jobs.Get(id)
}

// QueueDepth returns current queue depth.
func (o *Orchestrator) QueueDepth() int {
	return len(o.queue)
}

// Stats returns the rolling conversion latency tracker.
func (o *Orchestrator) Stats() *ConversionStats {
	return o.stats
}

// Patterns returns the language tables used for conversion.
func (o *Orchestrator) Patterns() *patterns.Registry {
	return o.patterns
}

// WorkerConfig returns the per-conversion settings, for synchronous use by
// API handlers.
func (o *Orchestrator) WorkerConfig() WorkerConfig {
	return o.workerCfg
}
