package retrieval

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
)

func makeVector(dim int) []float32 {
	v := make([]float32, dim)
	for i := range v {
		v[i] = float32(i) * 0.001
	}
	return v
}

func TestEmbed_ReturnsDimension(t *testing.T) {
	e := NewEmbedder(func(_ context.Context, _ string) ([]float32, error) {
		return makeVector(384), nil
	})

	vec, err := e.Embed(context.Background(), "hello world")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vec) != 384 {
		t.Errorf("got %d dimensions, want 384", len(vec))
	}
}

func TestEmbed_BackendError(t *testing.T) {
	e := NewEmbedder(func(_ context.Context, _ string) ([]float32, error) {
		return nil, errors.New("connection refused")
	})

	_, err := e.Embed(context.Background(), "hello")
	if err == nil || !strings.Contains(err.Error(), "connection refused") {
		t.Fatalf("expected wrapped backend error, got %v", err)
	}
}

func TestEmbedBatch_PreservesOrder(t *testing.T) {
	e := NewEmbedder(func(_ context.Context, text string) ([]float32, error) {
		var n float32
		fmt.Sscanf(text, "text-%f", &n)
		return []float32{n}, nil
	})

	texts := make([]string, 20)
	for i := range texts {
		texts[i] = fmt.Sprintf("text-%d", i)
	}
	vecs, err := e.EmbedBatch(context.Background(), texts)
	if err != nil {
		t.Fatalf("EmbedBatch: %v", err)
	}
	for i, v := range vecs {
		if v[0] != float32(i) {
			t.Fatalf("vecs[%d] = %v, want [%d]", i, v, i)
		}
	}
}

func TestEmbedBatch_Empty(t *testing.T) {
	e := NewEmbedder(keywordEmbed)
	vecs, err := e.EmbedBatch(context.Background(), nil)
	if err != nil || vecs != nil {
		t.Errorf("EmbedBatch(nil) = %v, %v", vecs, err)
	}
}

func TestEmbedBatch_BoundedConcurrency(t *testing.T) {
	var inFlight, peak atomic.Int32
	release := make(chan struct{})
	e := NewEmbedder(func(ctx context.Context, _ string) ([]float32, error) {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		<-release
		inFlight.Add(-1)
		return []float32{1}, nil
	})

	done := make(chan error)
	go func() {
		_, err := e.EmbedBatch(context.Background(), make([]string, 12))
		done <- err
	}()
	close(release)
	if err := <-done; err != nil {
		t.Fatalf("EmbedBatch: %v", err)
	}
	if peak.Load() > embedConcurrency {
		t.Errorf("peak concurrency = %d, want <= %d", peak.Load(), embedConcurrency)
	}
}

func TestEmbedBatch_Error(t *testing.T) {
	e := NewEmbedder(func(_ context.Context, text string) ([]float32, error) {
		if text == "bad" {
			return nil, errors.New("boom")
		}
		return []float32{1}, nil
	})
	if _, err := e.EmbedBatch(context.Background(), []string{"ok", "bad", "ok"}); err == nil {
		t.Fatal("expected error")
	}
}
