package storage

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestUpsertDocument_InsertAndGet(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	mod := time.Date(2024, 3, 4, 5, 6, 7, 0, time.UTC)
	id, err := s.UpsertDocument(ctx, Document{ID: "doc-1", Path: "resume.md", Content: "Go engineer", ModifiedTime: mod})
	if err != nil {
		t.Fatalf("UpsertDocument: %v", err)
	}
	if id != "doc-1" {
		t.Errorf("id = %q, want doc-1", id)
	}

	got, err := s.GetDocument(ctx, "doc-1")
	if err != nil {
		t.Fatalf("GetDocument: %v", err)
	}
	if got.Path != "resume.md" || got.Content != "Go engineer" || !got.ModifiedTime.Equal(mod) {
		t.Errorf("GetDocument() = %+v", got)
	}
	if got.VectorID != "" || got.Collection != "" {
		t.Errorf("new document should not be embedded yet: %+v", got)
	}
}

func TestUpsertDocument_SamePathKeepsID(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	s.UpsertDocument(ctx, Document{ID: "doc-1", Path: "a.md", Content: "v1", ModifiedTime: time.Now()})
	if err := s.MarkDocumentEmbedded(ctx, "doc-1", "portfolio", "doc-1"); err != nil {
		t.Fatalf("MarkDocumentEmbedded: %v", err)
	}

	id, err := s.UpsertDocument(ctx, Document{ID: "doc-2", Path: "a.md", Content: "v2", ModifiedTime: time.Now()})
	if err != nil {
		t.Fatalf("UpsertDocument: %v", err)
	}
	if id != "doc-1" {
		t.Errorf("id = %q, want the original doc-1", id)
	}

	got, _ := s.GetDocumentByPath(ctx, "a.md")
	if got.Content != "v2" {
		t.Errorf("Content = %q, want v2", got.Content)
	}
	if got.VectorID != "" {
		t.Errorf("VectorID = %q, want it cleared for re-embedding", got.VectorID)
	}
}

func TestMarkDocumentEmbedded(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	s.UpsertDocument(ctx, Document{ID: "doc-1", Path: "a.md", Content: "x", ModifiedTime: time.Now()})
	if err := s.MarkDocumentEmbedded(ctx, "doc-1", "portfolio", "vec-1"); err != nil {
		t.Fatalf("MarkDocumentEmbedded: %v", err)
	}
	got, _ := s.GetDocument(ctx, "doc-1")
	if got.Collection != "portfolio" || got.VectorID != "vec-1" {
		t.Errorf("GetDocument() = %+v", got)
	}

	if err := s.MarkDocumentEmbedded(ctx, "missing", "c", "v"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestListAndDeleteDocuments(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	for _, p := range []string{"a.md", "b.md", "c.md"} {
		if _, err := s.UpsertDocument(ctx, Document{ID: "id-" + p, Path: p, Content: p, ModifiedTime: time.Now()}); err != nil {
			t.Fatalf("UpsertDocument %s: %v", p, err)
		}
	}

	docs, err := s.ListDocuments(ctx, 2)
	if err != nil {
		t.Fatalf("ListDocuments: %v", err)
	}
	if len(docs) != 2 || docs[0].Path != "c.md" {
		t.Errorf("ListDocuments() = %+v", docs)
	}

	if err := s.DeleteDocument(ctx, "id-a.md"); err != nil {
		t.Fatalf("DeleteDocument: %v", err)
	}
	if _, err := s.GetDocumentByPath(ctx, "a.md"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}
