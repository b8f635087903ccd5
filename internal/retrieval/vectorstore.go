package retrieval

import (
	"context"
	"errors"

	"github.com/cngjsskaisme/folio/internal/engine"
	"github.com/cngjsskaisme/folio/internal/query"
)

// ErrCollectionNotFound is returned by VectorStore.Query when the named
// collection has not been created (or not opened with an embedding function).
var ErrCollectionNotFound = errors.New("collection not found")

// EmbeddingFunc computes the embedding of a text. The store uses it for
// documents added without an embedding and for every query text.
type EmbeddingFunc func(ctx context.Context, text string) ([]float32, error)

// EmbeddingFuncFor adapts an engine.Embedder.
func EmbeddingFuncFor(e engine.Embedder) EmbeddingFunc {
	return e.Embed
}

// VectorStore is the interface for vector storage and similarity search backends.
// Two implementations exist: ChromemStore (embedded chromem-go, the default)
// and SQLiteStore (brute-force cosine similarity over a SQLite table).
//
// Query returns one column set per query text in q, in the shape the rest of
// the pipeline zips into rows with Normalize.
type VectorStore interface {
	// GetOrCreateCollection opens the named collection, creating it if needed,
	// and binds embed as its embedding function. Idempotent.
	GetOrCreateCollection(ctx context.Context, name string, embed EmbeddingFunc) error

	// Query runs a similarity search. Filters the backend cannot evaluate are
	// rejected with an error describing the offending clause.
	Query(ctx context.Context, name string, q query.StructuredQuery) (QueryResult, error)

	// Add stores documents, embedding those without an Embedding.
	Add(ctx context.Context, name string, docs []Document) error

	// Count returns the number of documents in the collection.
	Count(ctx context.Context, name string) (int, error)

	// Delete removes documents by ID.
	Delete(ctx context.Context, name string, ids ...string) error
}

// Document is a unit of text stored in a collection.
type Document struct {
	ID        string
	Content   string
	Metadata  map[string]string
	Embedding []float32
}

// QueryResult holds parallel result columns, one inner slice per query text.
// Inner slices at the same index describe the same rows.
type QueryResult struct {
	IDs       [][]string
	Distances [][]float64
	Metadatas [][]map[string]any
	Documents [][]string
}

// append adds the column set for one query text.
func (r *QueryResult) append(ids []string, distances []float64, metas []map[string]any, docs []string) {
	r.IDs = append(r.IDs, ids)
	r.Distances = append(r.Distances, distances)
	r.Metadatas = append(r.Metadatas, metas)
	r.Documents = append(r.Documents, docs)
}
