package retrieval

import (
	"bytes"
	"log/slog"
	"reflect"
	"strings"
	"testing"
)

func TestNormalize_ZipsColumns(t *testing.T) {
	res := QueryResult{
		IDs:       [][]string{{"a", "b"}},
		Distances: [][]float64{{0.1, 0.2}},
		Metadatas: [][]map[string]any{{{"path": "a.md"}, {"path": "b.md"}}},
		Documents: [][]string{{"doc a", "doc b"}},
	}
	got := Normalize(res, 5)
	want := []Row{
		{ID: "a", Distance: 0.1, Metadata: map[string]any{"path": "a.md"}, Document: "doc a"},
		{ID: "b", Distance: 0.2, Metadata: map[string]any{"path": "b.md"}, Document: "doc b"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Normalize() = %+v, want %+v", got, want)
	}
}

func TestNormalize_TruncatesMismatchedColumns(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))

	res := QueryResult{
		IDs:       [][]string{{"a", "b", "c"}},
		Distances: [][]float64{{0.1, 0.2, 0.3}},
		Metadatas: [][]map[string]any{{{}, {}}},
		Documents: [][]string{{"x", "y", "z"}},
	}
	got := normalize(logger, res, 10)
	if len(got) != 2 {
		t.Fatalf("got %d rows, want 2", len(got))
	}
	if got[1].ID != "b" {
		t.Errorf("last row = %q, want b", got[1].ID)
	}
	if !strings.Contains(logs.String(), "level=WARN") {
		t.Errorf("expected a warning, logs:\n%s", logs.String())
	}
}

func TestNormalize_MergesQueryTexts(t *testing.T) {
	res := QueryResult{
		IDs:       [][]string{{"a", "b"}, {"b", "c"}},
		Distances: [][]float64{{0.3, 0.5}, {0.1, 0.4}},
		Metadatas: [][]map[string]any{{{}, {}}, {{}, {}}},
		Documents: [][]string{{"a", "b1"}, {"b2", "c"}},
	}
	got := Normalize(res, 2)

	if len(got) != 2 {
		t.Fatalf("got %d rows, want 2", len(got))
	}
	if got[0].ID != "b" || got[0].Distance != 0.1 || got[0].Document != "b2" {
		t.Errorf("first row = %+v, want b at 0.1 from second query", got[0])
	}
	if got[1].ID != "a" {
		t.Errorf("second row = %q, want a", got[1].ID)
	}
}

func TestNormalize_Empty(t *testing.T) {
	if got := Normalize(QueryResult{}, 5); len(got) != 0 {
		t.Errorf("Normalize(empty) = %v", got)
	}
}
