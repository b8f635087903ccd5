package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cngjsskaisme/folio/internal/query"
)

// RetrievalError reports that a query could not be executed: it was
// invalid, the store rejected its filters, or the store was unreachable.
type RetrievalError struct {
	Cause error
}

func (e *RetrievalError) Error() string {
	return fmt.Sprintf("retrieval: %v", e.Cause)
}

func (e *RetrievalError) Unwrap() error { return e.Cause }

// Executor runs StructuredQuery values against one collection.
type Executor struct {
	store      VectorStore
	collection string
	embed      EmbeddingFunc
	logger     *slog.Logger
}

// NewExecutor creates an Executor for collection. embed is the embedding
// function bound to the collection when it has to be created.
func NewExecutor(store VectorStore, collection string, embed EmbeddingFunc) *Executor {
	return &Executor{store: store, collection: collection, embed: embed, logger: slog.Default()}
}

// Collection returns the name of the collection queries run against.
func (e *Executor) Collection() string { return e.collection }

// Retrieve validates q, runs it and zips the result into at most
// q.NResults rows ordered by ascending distance.
func (e *Executor) Retrieve(ctx context.Context, q query.StructuredQuery) ([]Row, error) {
	if err := q.Validate(); err != nil {
		return nil, &RetrievalError{Cause: err}
	}

	res, err := e.store.Query(ctx, e.collection, q)
	if errors.Is(err, ErrCollectionNotFound) {
		e.logger.Info("collection missing, creating it", "collection", e.collection)
		if cerr := e.store.GetOrCreateCollection(ctx, e.collection, e.embed); cerr != nil {
			return nil, &RetrievalError{Cause: cerr}
		}
		res, err = e.store.Query(ctx, e.collection, q)
	}
	if err != nil {
		return nil, &RetrievalError{Cause: err}
	}

	return normalize(e.logger, res, q.NResults), nil
}
