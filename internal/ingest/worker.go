package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/cngjsskaisme/folio/internal/retrieval"
	"github.com/cngjsskaisme/folio/internal/storage"
)

// JobType is the job queue type processed by Worker.
const JobType = "embed_document"

// JobStore abstracts the job queue and document operations the worker needs.
type JobStore interface {
	ClaimNextJob(ctx context.Context, types []string) (*storage.Job, error)
	CompleteJob(ctx context.Context, id string) error
	FailJob(ctx context.Context, id string, errMsg string) error
	GetDocument(ctx context.Context, id string) (storage.Document, error)
	MarkDocumentEmbedded(ctx context.Context, id, collection, vectorID string) error
}

// VectorAdder adds documents to a vector collection. retrieval.VectorStore
// implementations satisfy it.
type VectorAdder interface {
	Add(ctx context.Context, collection string, docs []retrieval.Document) error
}

// Worker processes embed_document jobs from the SQLite job queue.
type Worker struct {
	store      JobStore
	vectors    VectorAdder
	collection string
	poll       time.Duration
	logger     *slog.Logger
}

// NewWorker creates a Worker that embeds documents into collection.
// If pollInterval is <= 0, it defaults to 500ms.
func NewWorker(store JobStore, vectors VectorAdder, collection string, pollInterval time.Duration) *Worker {
	if pollInterval <= 0 {
		pollInterval = 500 * time.Millisecond
	}
	return &Worker{
		store:      store,
		vectors:    vectors,
		collection: collection,
		poll:       pollInterval,
		logger:     slog.Default(),
	}
}

// Run polls for jobs until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		done, err := w.RunOnce(ctx)
		if err != nil {
			w.logger.Error("worker iteration failed", "error", err)
		}
		if done {
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(w.poll):
		}
	}
}

// RunOnce claims and processes a single embed_document job.
// Returns true if a job was processed (regardless of success/failure).
func (w *Worker) RunOnce(ctx context.Context) (bool, error) {
	job, err := w.store.ClaimNextJob(ctx, []string{JobType})
	if err != nil {
		return false, fmt.Errorf("claiming job: %w", err)
	}
	if job == nil {
		return false, nil
	}

	if err := w.processJob(ctx, job); err != nil {
		w.logger.Warn("job failed", "job_id", job.ID, "error", err)
		if failErr := w.store.FailJob(ctx, job.ID, err.Error()); failErr != nil {
			w.logger.Error("failed to mark job as failed", "job_id", job.ID, "error", failErr)
		}
		return true, nil
	}

	if err := w.store.CompleteJob(ctx, job.ID); err != nil {
		return true, fmt.Errorf("completing job %s: %w", job.ID, err)
	}
	return true, nil
}

type embedPayload struct {
	DocumentID string `json:"document_id"`
}

func (w *Worker) processJob(ctx context.Context, job *storage.Job) error {
	var payload embedPayload
	if err := json.Unmarshal([]byte(job.PayloadJSON), &payload); err != nil {
		return fmt.Errorf("parsing payload: %w", err)
	}

	doc, err := w.store.GetDocument(ctx, payload.DocumentID)
	if err != nil {
		return fmt.Errorf("loading document %s: %w", payload.DocumentID, err)
	}

	// The document id doubles as the vector id so a re-crawl overwrites
	// the previous embedding instead of adding a duplicate.
	vec := VectorDocument(doc)
	if err := w.vectors.Add(ctx, w.collection, []retrieval.Document{vec}); err != nil {
		return fmt.Errorf("adding vector: %w", err)
	}

	if err := w.store.MarkDocumentEmbedded(ctx, doc.ID, w.collection, vec.ID); err != nil {
		return fmt.Errorf("updating vector_id: %w", err)
	}

	w.logger.Debug("document embedded", "document_id", doc.ID, "path", doc.Path)
	return nil
}

// VectorDocument maps a stored document to its vector-store form. The
// metadata keys are the fields the query synthesizer may filter on.
func VectorDocument(d storage.Document) retrieval.Document {
	return retrieval.Document{
		ID:      d.ID,
		Content: d.Content,
		Metadata: map[string]string{
			"path":         d.Path,
			"modifiedTime": d.ModifiedTime.UTC().Format(time.RFC3339),
		},
	}
}
