package retrieval

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"sync"

	chromem "github.com/philippgille/chromem-go"

	"github.com/cngjsskaisme/folio/internal/query"
)

// Compile-time check that ChromemStore implements VectorStore.
var _ VectorStore = (*ChromemStore)(nil)

// ChromemStore is the default VectorStore, an embedded chromem-go database.
// With a directory it persists collections as gob files; without one it is
// purely in-memory.
type ChromemStore struct {
	db *chromem.DB

	mu    sync.RWMutex
	embed map[string]chromem.EmbeddingFunc
}

// NewChromemStore opens (or creates) a persistent store under dir. An empty
// dir yields an in-memory store.
func NewChromemStore(dir string) (*ChromemStore, error) {
	db := chromem.NewDB()
	if dir != "" {
		var err error
		db, err = chromem.NewPersistentDB(dir, true)
		if err != nil {
			return nil, fmt.Errorf("opening chromem store at %s: %w", dir, err)
		}
	}
	return &ChromemStore{db: db, embed: make(map[string]chromem.EmbeddingFunc)}, nil
}

func (s *ChromemStore) GetOrCreateCollection(_ context.Context, name string, embed EmbeddingFunc) error {
	if name == "" {
		return fmt.Errorf("collection name is empty")
	}
	if embed == nil {
		return fmt.Errorf("collection %s: embedding function is nil", name)
	}
	ef := chromem.EmbeddingFunc(embed)
	if _, err := s.db.GetOrCreateCollection(name, nil, ef); err != nil {
		return fmt.Errorf("getting/creating collection %s: %w", name, err)
	}

	s.mu.Lock()
	s.embed[name] = ef
	s.mu.Unlock()
	return nil
}

// collection returns the named collection, or ErrCollectionNotFound when it
// does not exist or was never opened with an embedding function.
func (s *ChromemStore) collection(name string) (*chromem.Collection, error) {
	s.mu.RLock()
	ef, ok := s.embed[name]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrCollectionNotFound, name)
	}
	c := s.db.GetCollection(name, ef)
	if c == nil {
		return nil, fmt.Errorf("%w: %s", ErrCollectionNotFound, name)
	}
	return c, nil
}

func (s *ChromemStore) Query(ctx context.Context, name string, q query.StructuredQuery) (QueryResult, error) {
	where, err := compileWhere(q.Where)
	if err != nil {
		return QueryResult{}, err
	}
	whereDoc, err := compileWhereDocument(q.WhereDocument)
	if err != nil {
		return QueryResult{}, err
	}

	c, err := s.collection(name)
	if err != nil {
		return QueryResult{}, err
	}

	// chromem requires nResults <= document count.
	n := min(q.NResults, c.Count())

	var res QueryResult
	for _, text := range q.QueryTexts {
		if strings.TrimSpace(text) == "" {
			continue
		}
		if n == 0 {
			res.append(nil, nil, nil, nil)
			continue
		}

		results, err := c.Query(ctx, text, n, where, whereDoc)
		if err != nil {
			return QueryResult{}, fmt.Errorf("querying collection %s: %w", name, err)
		}

		ids := make([]string, len(results))
		dists := make([]float64, len(results))
		metas := make([]map[string]any, len(results))
		docs := make([]string, len(results))
		for i, r := range results {
			ids[i] = r.ID
			dists[i] = 1 - float64(r.Similarity)
			metas[i] = metadataToAny(r.Metadata)
			docs[i] = r.Content
		}
		res.append(ids, dists, metas, docs)
	}
	return res, nil
}

func (s *ChromemStore) Add(ctx context.Context, name string, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}
	c, err := s.collection(name)
	if err != nil {
		return err
	}

	cdocs := make([]chromem.Document, len(docs))
	for i, d := range docs {
		cdocs[i] = chromem.Document{
			ID:        d.ID,
			Metadata:  d.Metadata,
			Embedding: d.Embedding,
			Content:   d.Content,
		}
	}
	if err := c.AddDocuments(ctx, cdocs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("adding documents to %s: %w", name, err)
	}
	return nil
}

func (s *ChromemStore) Count(_ context.Context, name string) (int, error) {
	c, err := s.collection(name)
	if err != nil {
		return 0, err
	}
	return c.Count(), nil
}

func (s *ChromemStore) Delete(ctx context.Context, name string, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	c, err := s.collection(name)
	if err != nil {
		return err
	}
	if err := c.Delete(ctx, nil, nil, ids...); err != nil {
		return fmt.Errorf("deleting from %s: %w", name, err)
	}
	return nil
}

func metadataToAny(m map[string]string) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
