//go:build integration

package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/cngjsskaisme/folio/internal/composer"
	"github.com/cngjsskaisme/folio/internal/engine"
	"github.com/cngjsskaisme/folio/internal/retrieval"
	"github.com/cngjsskaisme/folio/internal/storage"
	"github.com/cngjsskaisme/folio/internal/synth"
)

const (
	integrationModel      = "llama3.2"
	integrationEmbedModel = "nomic-embed-text"
)

// setupIntegrationAsker wires the full question pipeline against a running
// Ollama instance and an in-memory SQLite vector store.
func setupIntegrationAsker(t *testing.T) (*Asker, *retrieval.SQLiteStore, retrieval.EmbeddingFunc) {
	t.Helper()

	eng := engine.NewOllamaEngine("http://localhost:11434")
	if !eng.IsRunning(context.Background()) {
		t.Skip("Ollama is not running, skipping integration test")
	}
	for _, m := range []string{integrationModel, integrationEmbedModel} {
		if !eng.HasModel(context.Background(), m) {
			t.Skipf("%s model not available", m)
		}
	}

	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("opening storage: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	vectors := retrieval.NewSQLiteStore(store.DB())
	embed := retrieval.EmbeddingFuncFor(engine.ModelEmbedder{Engine: eng, Model: integrationEmbedModel})
	gen := engine.ModelGenerator{Engine: eng, Model: integrationModel}

	ctrl := NewController(synth.New(gen), retrieval.NewExecutor(vectors, "portfolio", embed), WithPause(0))
	return NewAsker(ctrl, composer.New(gen), store), vectors, embed
}

func TestIntegration_AskAnswersFromStore(t *testing.T) {
	asker, vectors, embed := setupIntegrationAsker(t)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	if err := vectors.GetOrCreateCollection(ctx, "portfolio", embed); err != nil {
		t.Fatalf("GetOrCreateCollection: %v", err)
	}
	docs := []retrieval.Document{
		{ID: "career", Content: "Worked at Acme Corp from 2019 to 2023 building payment services in Go.", Metadata: map[string]string{"path": "career.md"}},
		{ID: "projects", Content: "Built an open source vector search engine called Needle.", Metadata: map[string]string{"path": "projects.md"}},
		{ID: "hobbies", Content: "Enjoys trail running and film photography.", Metadata: map[string]string{"path": "hobbies.md"}},
	}
	if err := vectors.Add(ctx, "portfolio", docs); err != nil {
		t.Fatalf("Add: %v", err)
	}

	ans, err := asker.Ask(ctx, "Where did you work before 2023?")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if ans.Text == "" {
		t.Error("expected non-empty answer")
	}
	if ans.Attempts < 1 || ans.Attempts > DefaultMaxAttempts {
		t.Errorf("Attempts = %d, want 1..%d", ans.Attempts, DefaultMaxAttempts)
	}
	if len(ans.Rows) == 0 {
		t.Error("expected retrieved rows")
	}
	t.Logf("answer after %d attempt(s), fallback=%v: %s", ans.Attempts, ans.Fallback, ans.Text)
}
