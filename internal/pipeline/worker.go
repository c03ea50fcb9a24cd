package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/dgallion1/ndachunk/internal/chunker"
	"github.com/dgallion1/ndachunk/internal/metrics"
	"github.com/dgallion1/ndachunk/internal/parser"
	"github.com/dgallion1/ndachunk/internal/store"
)

// Worker processes a single document job: parse, chunk, persist.
type Worker struct {
	chunker *chunker.LegalChunker
	sink    store.Sink
	log     *slog.Logger
	metrics *metrics.Recorder
	backoff func(int) time.Duration
}

// NewWorker returns a Worker. sink may be nil, in which case results are
// only kept on the job. rec may be nil.
func NewWorker(lc *chunker.LegalChunker, sink store.Sink, log *slog.Logger, rec *metrics.Recorder) *Worker {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Worker{
		chunker: lc,
		sink:    sink,
		log:     log,
		metrics: rec,
		backoff: Backoff,
	}
}

// Process runs the full analysis pipeline for a job.
func (w *Worker) Process(ctx context.Context, job *Job) {
	log := w.log.With("job_id", job.ID, "doc_id", job.DocID)
	defer func() {
		snap := job.Snapshot()
		w.metrics.JobFinished(string(snap.Status))
	}()

	// Phase 1: Parse
	job.SetStatus(StatusParsing, "parsing")
	p, err := parser.ForFile(job.Filename)
	if err != nil {
		log.Error("unsupported format", "error", err)
		job.AddError(err.Error())
		job.SetStatus(StatusFailed, "parsing")
		return
	}

	doc, err := p.Parse(bytes.NewReader(job.FileData()), job.Filename)
	job.releaseFileData()
	if err != nil {
		log.Error("parse failed", "error", err)
		job.AddError(fmt.Sprintf("parse: %s", err))
		job.SetStatus(StatusFailed, "parsing")
		return
	}
	title := doc.Title
	if job.Title != "" {
		title = job.Title
	}
	job.ContentHash = ContentHashHex([]byte(doc.Text))

	// Phase 1.5: Dedup check
	if w.sink != nil && !job.Force {
		existing, found, err := w.sink.FindByHash(ctx, job.ContentHash)
		if err != nil {
			log.Warn("dedup check failed, proceeding", "error", err)
		} else if found && existing != job.DocID {
			log.Info("duplicate document, skipping", "existing_doc_id", existing)
			job.AddError("duplicate of " + existing)
			job.SetStatus(StatusDupSkipped, "dedup")
			return
		}
	}

	// Phase 2: Chunk
	job.SetStatus(StatusChunking, "chunking")
	start := time.Now()
	res := w.chunker.Chunk(ctx, doc.Text, chunker.Request{
		DocumentID: job.DocID,
		ForceLLM:   job.ForceLLM,
		Options:    job.Options,
	})
	w.metrics.ObserveAnalysis(res.Structure.Source, res.Rechunked, res.Chunks, time.Since(start))
	job.SetResult(res)
	log.Info("chunked document",
		"chunks", len(res.Chunks),
		"sections", len(res.Structure.Sections),
		"source", res.Structure.Source,
		"rechunked", res.Rechunked,
	)

	if len(res.Chunks) == 0 {
		log.Warn("no chunks produced")
		job.AddError("no extractable content")
		job.SetStatus(StatusFailed, "chunking")
		return
	}

	if w.sink == nil {
		job.SetStatus(StatusCompleted, "done")
		return
	}

	// Phase 3: Persist
	job.SetStatus(StatusStoring, "storing")
	analysis := store.Analysis{
		DocID:       job.DocID,
		Title:       title,
		Filename:    job.Filename,
		ContentHash: job.ContentHash,
		Structure:   res.Structure,
		Chunks:      res.Chunks,
		CreatedAt:   job.CreatedAt,
	}
	err = withRetry(ctx, log, w.backoff, func(ctx context.Context) error {
		job.IncrStoreAttempts()
		err := w.sink.SaveAnalysis(ctx, analysis)
		w.metrics.StoreWrite(err)
		return err
	})
	if err != nil {
		log.Error("store failed", "error", err)
		job.AddError(fmt.Sprintf("store: %s", err))
		job.SetStatus(StatusFailed, "storing")
		return
	}
	job.SetChunksStored(len(res.Chunks))
	log.Info("storage complete", "stored", len(res.Chunks))
	job.SetStatus(StatusCompleted, "done")
}
