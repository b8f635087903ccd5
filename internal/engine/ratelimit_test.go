package engine

import (
	"context"
	"errors"
	"testing"
	"time"
)

type countingGenerator struct {
	calls int
}

func (g *countingGenerator) Generate(_ context.Context, prompt string) (string, error) {
	g.calls++
	return "echo: " + prompt, nil
}

func TestNewRateLimited_Disabled(t *testing.T) {
	g := &countingGenerator{}
	if got := NewRateLimited(g, 0); got != Generator(g) {
		t.Errorf("NewRateLimited(g, 0) = %T, want the generator itself", got)
	}
}

func TestRateLimited_PassesThrough(t *testing.T) {
	g := &countingGenerator{}
	rl := NewRateLimited(g, 100)
	out, err := rl.Generate(context.Background(), "hi")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if out != "echo: hi" || g.calls != 1 {
		t.Errorf("out = %q, calls = %d", out, g.calls)
	}
}

func TestRateLimited_HonoursContext(t *testing.T) {
	g := &countingGenerator{}
	rl := NewRateLimited(g, 0.1) // one token, then ten seconds per token

	if _, err := rl.Generate(context.Background(), "first"); err != nil {
		t.Fatalf("first Generate: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := rl.Generate(ctx, "second")
	if err == nil {
		t.Fatal("expected limiter wait to fail under a short deadline")
	}
	if g.calls != 1 {
		t.Errorf("calls = %d, want 1", g.calls)
	}
	if errors.Is(err, context.Canceled) {
		t.Errorf("unexpected cancel: %v", err)
	}
}
