// Package ingest queues portfolio documents for embedding and runs the
// background worker that moves them into the vector store.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cngjsskaisme/folio/internal/crawl"
	"github.com/cngjsskaisme/folio/internal/storage"
)

// ErrEmptyContent is returned by Submit for a blank document.
var ErrEmptyContent = errors.New("document content is empty")

// DocumentQueue is the storage surface used to queue documents.
type DocumentQueue interface {
	GetDocumentByPath(ctx context.Context, path string) (storage.Document, error)
	UpsertDocument(ctx context.Context, d storage.Document) (string, error)
	EnqueueJob(ctx context.Context, job storage.Job) error
}

// Submission describes one document to ingest.
type Submission struct {
	Path         string
	Content      string
	ModifiedTime time.Time
}

// Summary counts what Files did.
type Summary struct {
	Queued    int `json:"queued"`
	Unchanged int `json:"unchanged"`
}

// Submit stores a document and queues it for embedding, returning its id.
// Documents are keyed by path; resubmitting a path replaces its content.
func Submit(ctx context.Context, q DocumentQueue, s Submission) (string, error) {
	if strings.TrimSpace(s.Content) == "" {
		return "", ErrEmptyContent
	}
	if s.Path == "" {
		s.Path = "submitted/" + uuid.New().String()
	}
	if s.ModifiedTime.IsZero() {
		s.ModifiedTime = time.Now()
	}

	id, err := q.UpsertDocument(ctx, storage.Document{
		ID:           uuid.New().String(),
		Path:         s.Path,
		Content:      s.Content,
		ModifiedTime: s.ModifiedTime,
	})
	if err != nil {
		return "", err
	}

	payload, err := json.Marshal(embedPayload{DocumentID: id})
	if err != nil {
		return "", fmt.Errorf("encoding payload: %w", err)
	}
	if err := q.EnqueueJob(ctx, storage.Job{
		ID:          uuid.New().String(),
		Type:        JobType,
		PayloadJSON: string(payload),
	}); err != nil {
		return "", fmt.Errorf("enqueueing embed job: %w", err)
	}
	return id, nil
}

// Files queues crawled files, skipping those already embedded with the same
// content and modification time.
func Files(ctx context.Context, q DocumentQueue, files []crawl.File) (Summary, error) {
	var sum Summary
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return sum, err
		}

		existing, err := q.GetDocumentByPath(ctx, f.Path)
		switch {
		case err == nil:
			if existing.VectorID != "" &&
				existing.Content == f.Content &&
				existing.ModifiedTime.Equal(f.ModifiedTime.UTC().Truncate(time.Second)) {
				sum.Unchanged++
				continue
			}
		case !errors.Is(err, storage.ErrNotFound):
			return sum, fmt.Errorf("looking up %s: %w", f.Path, err)
		}

		if _, err := Submit(ctx, q, Submission{Path: f.Path, Content: f.Content, ModifiedTime: f.ModifiedTime}); err != nil {
			return sum, fmt.Errorf("queueing %s: %w", f.Path, err)
		}
		sum.Queued++
	}
	return sum, nil
}
