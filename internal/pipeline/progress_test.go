package pipeline

import (
	"context"
	"reflect"
	"testing"

	"github.com/cngjsskaisme/folio/internal/composer"
)

func collectProgress() (context.Context, *[]string) {
	var got []string
	ctx := WithProgress(context.Background(), func(s string) { got = append(got, s) })
	return ctx, &got
}

func TestReport_WithoutProgressIsNoop(t *testing.T) {
	Report(context.Background(), "nobody listens %d", 1)
}

func TestRun_ReportsRetriesAndFallback(t *testing.T) {
	s := &mockSynth{results: []synthResult{synthFailure("bad json")}}
	ctx, got := collectProgress()

	if _, err := newTestController(s, okRetriever(5)).Run(ctx, "What's your stack?"); err != nil {
		t.Fatalf("Run: %v", err)
	}

	want := []string{
		"Refining the search (attempt 2 of 3)...",
		"Refining the search (attempt 3 of 3)...",
		"Falling back to a broad search...",
	}
	if !reflect.DeepEqual(*got, want) {
		t.Errorf("progress = %q, want %q", *got, want)
	}
}

func TestRun_FirstAttemptReportsNothing(t *testing.T) {
	s := &mockSynth{results: []synthResult{validQuery("career")}}
	ctx, got := collectProgress()

	if _, err := newTestController(s, okRetriever(5)).Run(ctx, "career"); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(*got) != 0 {
		t.Errorf("progress = %q, want none", *got)
	}
}

func TestAsk_ReportsComposing(t *testing.T) {
	s := &mockSynth{results: []synthResult{validQuery("career")}}
	a := NewAsker(newTestController(s, okRetriever(4)), composer.New(&mockGenerator{response: "ok"}), nil)
	ctx, got := collectProgress()

	if _, err := a.Ask(ctx, "career"); err != nil {
		t.Fatalf("Ask: %v", err)
	}
	want := []string{"Composing the answer from 4 result(s)..."}
	if !reflect.DeepEqual(*got, want) {
		t.Errorf("progress = %q, want %q", *got, want)
	}
}
