package retrieval

import (
	"context"
	"errors"
	"testing"

	"github.com/cngjsskaisme/folio/internal/query"
)

// mockStore implements VectorStore for testing.
type mockStore struct {
	results   []QueryResult
	errs      []error
	queries   int
	created   []string
	createErr error
}

func (m *mockStore) GetOrCreateCollection(_ context.Context, name string, _ EmbeddingFunc) error {
	m.created = append(m.created, name)
	return m.createErr
}

func (m *mockStore) Query(_ context.Context, _ string, _ query.StructuredQuery) (QueryResult, error) {
	i := m.queries
	m.queries++
	var res QueryResult
	var err error
	if i < len(m.results) {
		res = m.results[i]
	}
	if i < len(m.errs) {
		err = m.errs[i]
	}
	return res, err
}

func (m *mockStore) Add(context.Context, string, []Document) error  { return nil }
func (m *mockStore) Count(context.Context, string) (int, error)     { return 0, nil }
func (m *mockStore) Delete(context.Context, string, ...string) error { return nil }

func threeRows() QueryResult {
	return QueryResult{
		IDs:       [][]string{{"a", "b", "c"}},
		Distances: [][]float64{{0.1, 0.2, 0.3}},
		Metadatas: [][]map[string]any{{{}, {}, {}}},
		Documents: [][]string{{"a", "b", "c"}},
	}
}

func TestExecutor_RespectsNResults(t *testing.T) {
	store := &mockStore{results: []QueryResult{threeRows()}}
	ex := NewExecutor(store, "portfolio", keywordEmbed)

	rows, err := ex.Retrieve(context.Background(), query.StructuredQuery{QueryTexts: []string{"x"}, NResults: 2})
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(rows) != 2 {
		t.Errorf("got %d rows, want 2", len(rows))
	}
}

func TestExecutor_InvalidQuery(t *testing.T) {
	store := &mockStore{}
	ex := NewExecutor(store, "portfolio", keywordEmbed)

	_, err := ex.Retrieve(context.Background(), query.StructuredQuery{NResults: 2})
	var rErr *RetrievalError
	if !errors.As(err, &rErr) || !errors.Is(err, query.ErrNoQueryTexts) {
		t.Fatalf("expected RetrievalError wrapping ErrNoQueryTexts, got %v", err)
	}
	if store.queries != 0 {
		t.Error("store must not be called with an invalid query")
	}
}

func TestExecutor_CreatesMissingCollection(t *testing.T) {
	store := &mockStore{
		errs:    []error{ErrCollectionNotFound, nil},
		results: []QueryResult{{}, threeRows()},
	}
	ex := NewExecutor(store, "portfolio", keywordEmbed)

	rows, err := ex.Retrieve(context.Background(), query.StructuredQuery{QueryTexts: []string{"x"}, NResults: 5})
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(rows) != 3 {
		t.Errorf("got %d rows, want 3", len(rows))
	}
	if len(store.created) != 1 || store.created[0] != "portfolio" {
		t.Errorf("created = %v", store.created)
	}
}

func TestExecutor_MissingCollectionTwice(t *testing.T) {
	store := &mockStore{errs: []error{ErrCollectionNotFound, ErrCollectionNotFound}}
	ex := NewExecutor(store, "portfolio", keywordEmbed)

	_, err := ex.Retrieve(context.Background(), query.StructuredQuery{QueryTexts: []string{"x"}, NResults: 5})
	var rErr *RetrievalError
	if !errors.As(err, &rErr) {
		t.Fatalf("expected RetrievalError, got %v", err)
	}
	if store.queries != 2 {
		t.Errorf("queries = %d, want 2", store.queries)
	}
}

func TestExecutor_StoreError(t *testing.T) {
	store := &mockStore{errs: []error{errors.New(`where: unsupported operator "$gt"`)}}
	ex := NewExecutor(store, "portfolio", keywordEmbed)

	_, err := ex.Retrieve(context.Background(), query.StructuredQuery{QueryTexts: []string{"x"}, NResults: 5})
	var rErr *RetrievalError
	if !errors.As(err, &rErr) {
		t.Fatalf("expected RetrievalError, got %v", err)
	}
	if len(store.created) != 0 {
		t.Error("collection must not be created for filter errors")
	}
}

func TestExecutor_EndToEndChromem(t *testing.T) {
	ctx := context.Background()
	s := newTestChromem(t)
	ex := NewExecutor(s, "portfolio", keywordEmbed)

	// First call bootstraps the collection and returns no rows.
	rows, err := ex.Retrieve(ctx, query.Fallback("go", 5))
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("got %d rows from new collection", len(rows))
	}

	if err := s.Add(ctx, "portfolio", testDocs()); err != nil {
		t.Fatalf("Add: %v", err)
	}
	rows, err = ex.Retrieve(ctx, query.Fallback("go", 2))
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(rows) != 2 || rows[0].ID != "d1" {
		t.Errorf("rows = %+v", rows)
	}
}
