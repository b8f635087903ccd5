package engine

import "context"

// Generator produces a text completion for a single prompt. No
// conversation state is carried between calls.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Embedder turns text into a vector. It is the embedding strategy the
// vector store uses for documents and query texts alike.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Engine abstracts a local inference backend that manages its own models
// (Ollama today). Hosted providers only implement Generator/Embedder.
type Engine interface {
	Generate(ctx context.Context, model, prompt string) (string, error)
	Embed(ctx context.Context, model, text string) ([]float32, error)

	// IsRunning reports whether the inference backend is reachable.
	IsRunning(ctx context.Context) bool

	// ListModels returns the names of all locally available models.
	ListModels(ctx context.Context) ([]string, error)

	// HasModel reports whether the given model name is available locally.
	HasModel(ctx context.Context, name string) bool

	// PullModel downloads a model. The optional callback receives progress updates.
	PullModel(ctx context.Context, name string, onProgress func(PullProgress)) error
}

// PullProgress reports download progress for a model pull operation.
type PullProgress struct {
	Status    string `json:"status"`
	Total     int64  `json:"total,omitempty"`
	Completed int64  `json:"completed,omitempty"`
}

// ModelGenerator binds an Engine to one model so it satisfies Generator.
type ModelGenerator struct {
	Engine Engine
	Model  string
}

func (g ModelGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	return g.Engine.Generate(ctx, g.Model, prompt)
}

// ModelEmbedder binds an Engine to one embedding model so it satisfies Embedder.
type ModelEmbedder struct {
	Engine Engine
	Model  string
}

func (e ModelEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return e.Engine.Embed(ctx, e.Model, text)
}
