package synth

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/cngjsskaisme/folio/internal/config"
	"github.com/cngjsskaisme/folio/internal/query"
)

// mockGenerator implements engine.Generator for testing.
type mockGenerator struct {
	response string
	err      error
	prompts  []string
}

func (m *mockGenerator) Generate(_ context.Context, prompt string) (string, error) {
	m.prompts = append(m.prompts, prompt)
	return m.response, m.err
}

func TestSynthesize_ValidQuery(t *testing.T) {
	gen := &mockGenerator{response: `{"queryTexts":["go projects"],"nResults":3,"where":{"path":"resume.md"}}`}
	s := New(gen)

	got, err := s.Synthesize(context.Background(), "which Go projects did you build?", "")
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	want := query.StructuredQuery{
		QueryTexts: []string{"go projects"},
		NResults:   3,
		Where:      map[string]any{"path": "resume.md"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Synthesize() = %+v, want %+v", got, want)
	}
}

func TestSynthesize_FencedOutputWithEmbeddings(t *testing.T) {
	gen := &mockGenerator{response: "```json\n{\"queryTexts\":[\"career\"],\"nResults\":5,\"queryEmbeddings\":[[0.1,0.2]]}\n```"}
	got, err := New(gen).Synthesize(context.Background(), "career?", "")
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if len(got.QueryTexts) != 1 || got.QueryTexts[0] != "career" || got.NResults != 5 {
		t.Errorf("Synthesize() = %+v", got)
	}
}

func TestSynthesize_MalformedJSON(t *testing.T) {
	gen := &mockGenerator{response: `not valid json {{{`}
	_, err := New(gen).Synthesize(context.Background(), "q", "")

	var synErr *SynthesisError
	if !errors.As(err, &synErr) {
		t.Fatalf("expected *SynthesisError, got %v", err)
	}
	if synErr.Raw != `not valid json {{{` {
		t.Errorf("Raw = %q", synErr.Raw)
	}
}

func TestSynthesize_InvalidQuery(t *testing.T) {
	gen := &mockGenerator{response: `{"queryText":"career","nResults":5}`}
	_, err := New(gen).Synthesize(context.Background(), "q", "")

	var synErr *SynthesisError
	if !errors.As(err, &synErr) {
		t.Fatalf("expected *SynthesisError, got %v", err)
	}
	if !errors.Is(err, query.ErrNoQueryTexts) {
		t.Errorf("expected ErrNoQueryTexts in chain, got %v", err)
	}
}

func TestSynthesize_GeneratorError(t *testing.T) {
	gen := &mockGenerator{err: errors.New("connection refused")}
	_, err := New(gen).Synthesize(context.Background(), "q", "")

	var synErr *SynthesisError
	if !errors.As(err, &synErr) {
		t.Fatalf("expected *SynthesisError, got %v", err)
	}
}

func TestSynthesize_ConfigurationErrorPassesThrough(t *testing.T) {
	gen := &mockGenerator{err: &config.ConfigurationError{Key: "gemini.api_key", Reason: "credentials rejected"}}
	_, err := New(gen).Synthesize(context.Background(), "q", "")

	var cfgErr *config.ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected *config.ConfigurationError, got %v", err)
	}
	var synErr *SynthesisError
	if errors.As(err, &synErr) {
		t.Error("configuration error must not be wrapped in SynthesisError")
	}
}

func TestSynthesize_PromptCarriesErrorContext(t *testing.T) {
	gen := &mockGenerator{response: `{"queryTexts":["x"],"nResults":1}`}
	s := New(gen)

	if _, err := s.Synthesize(context.Background(), "who are you?", ""); err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if _, err := s.Synthesize(context.Background(), "who are you?", "second error\nfirst error"); err != nil {
		t.Fatalf("Synthesize: %v", err)
	}

	first, second := gen.prompts[0], gen.prompts[1]
	if strings.Contains(first, "previous attempt") {
		t.Error("first prompt must not mention a previous attempt")
	}
	if !strings.Contains(second, "second error\nfirst error") {
		t.Errorf("second prompt missing error context:\n%s", second)
	}
}

func TestBuildPrompt(t *testing.T) {
	p := BuildPrompt("what is your stack?", "", DefaultFields)
	for _, want := range []string{"what is your stack?", "queryTexts", "not queryText", "camelCase", "single line", "modifiedTime", "path"} {
		if !strings.Contains(p, want) {
			t.Errorf("prompt missing %q", want)
		}
	}

	custom := BuildPrompt("q", "", []MetadataField{{Name: "lang", Meaning: "document language"}})
	if !strings.Contains(custom, "lang: document language") || strings.Contains(custom, "modifiedTime") {
		t.Errorf("custom fields not honoured:\n%s", custom)
	}
}
