package query

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// DefaultNResults is the result count used by the fallback query when the
// caller does not supply one.
const DefaultNResults = 5

// StructuredQuery is a search request in the vector store's wire shape.
// Keys are camelCase to match what the model is asked to produce.
type StructuredQuery struct {
	QueryTexts    []string       `json:"queryTexts"`
	NResults      int            `json:"nResults"`
	Where         map[string]any `json:"where,omitempty"`
	WhereDocument map[string]any `json:"whereDocument,omitempty"`
}

var (
	ErrNoQueryTexts     = errors.New("queryTexts must contain at least one non-empty string")
	ErrInvalidNResults  = errors.New("nResults must be a positive integer")
	ErrEmptyModelOutput = errors.New("empty model output")
)

// Validate reports whether q satisfies the invariants every consumer relies on.
func (q StructuredQuery) Validate() error {
	hasText := false
	for _, t := range q.QueryTexts {
		if strings.TrimSpace(t) != "" {
			hasText = true
			break
		}
	}
	if !hasText {
		return ErrNoQueryTexts
	}
	if q.NResults <= 0 {
		return ErrInvalidNResults
	}
	return nil
}

// HasFilters reports whether q carries a metadata or document filter.
func (q StructuredQuery) HasFilters() bool {
	return len(q.Where) > 0 || len(q.WhereDocument) > 0
}

// String renders q as compact JSON for logs and error messages.
func (q StructuredQuery) String() string {
	b, err := json.Marshal(q)
	if err != nil {
		return fmt.Sprintf("%+v", []any{q.QueryTexts, q.NResults})
	}
	return string(b)
}

// Fallback returns the query used once synthesis has been given up on:
// the question itself as the only query text, n results, no filters.
func Fallback(question string, n int) StructuredQuery {
	if n <= 0 {
		n = DefaultNResults
	}
	return StructuredQuery{
		QueryTexts: []string{question},
		NResults:   n,
	}
}

// Parse decodes raw model output into a validated StructuredQuery.
// Markdown code fences around the object are stripped and any
// queryEmbeddings field is dropped since the store computes embeddings.
func Parse(raw string) (StructuredQuery, error) {
	text := StripFences(raw)
	if text == "" {
		return StructuredQuery{}, ErrEmptyModelOutput
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(text), &fields); err != nil {
		return StructuredQuery{}, fmt.Errorf("parsing query JSON: %w", err)
	}
	delete(fields, "queryEmbeddings")

	cleaned, err := json.Marshal(fields)
	if err != nil {
		return StructuredQuery{}, fmt.Errorf("re-encoding query: %w", err)
	}

	var q StructuredQuery
	dec := json.NewDecoder(bytes.NewReader(cleaned))
	if err := dec.Decode(&q); err != nil {
		return StructuredQuery{}, fmt.Errorf("decoding query fields: %w", err)
	}
	if err := q.Validate(); err != nil {
		return StructuredQuery{}, err
	}
	return q, nil
}

// StripFences removes a surrounding ``` or ```json fence and trims whitespace.
func StripFences(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	// Drop the info string (e.g. "json") up to the first newline.
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		if info := strings.TrimSpace(s[:nl]); !strings.ContainsAny(info, "{[") {
			s = s[nl+1:]
		}
	} else {
		s = strings.TrimPrefix(s, "json")
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
