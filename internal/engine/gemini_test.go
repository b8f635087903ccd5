package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cngjsskaisme/folio/internal/config"
)

func noBackoff(t *testing.T) {
	t.Helper()
	orig := backoff
	backoff = func(int) time.Duration { return time.Millisecond }
	t.Cleanup(func() { backoff = orig })
}

func TestGemini_Generate(t *testing.T) {
	var gotPath, gotKey string
	var gotReq generateContentRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("x-goog-api-key")
		json.NewDecoder(r.Body).Decode(&gotReq)
		fmt.Fprint(w, `{"candidates":[{"content":{"role":"model","parts":[{"text":"Hello"},{"text":" there"}]}}]}`)
	}))
	defer srv.Close()

	c := NewGeminiClient("test-key", "gemini-1.5-flash", "").WithBaseURL(srv.URL)
	out, err := c.Generate(context.Background(), "say hi")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if out != "Hello there" {
		t.Errorf("Generate() = %q, want %q", out, "Hello there")
	}
	if gotPath != "/models/gemini-1.5-flash:generateContent" {
		t.Errorf("path = %q", gotPath)
	}
	if gotKey != "test-key" {
		t.Errorf("api key header = %q", gotKey)
	}
	if len(gotReq.Contents) != 1 || gotReq.Contents[0].Parts[0].Text != "say hi" {
		t.Errorf("request = %+v", gotReq)
	}
}

func TestGemini_GenerateBlocked(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"candidates":[],"promptFeedback":{"blockReason":"SAFETY"}}`)
	}))
	defer srv.Close()

	_, err := NewGeminiClient("k", "m", "").WithBaseURL(srv.URL).Generate(context.Background(), "x")
	if err == nil {
		t.Fatal("expected error for blocked prompt")
	}
}

func TestGemini_Embed(t *testing.T) {
	var gotReq embedContentRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models/text-embedding-004:embedContent" {
			http.NotFound(w, r)
			return
		}
		json.NewDecoder(r.Body).Decode(&gotReq)
		fmt.Fprint(w, `{"embedding":{"values":[0.5,0.25]}}`)
	}))
	defer srv.Close()

	c := NewGeminiClient("k", "", "text-embedding-004").WithBaseURL(srv.URL)
	vec, err := c.Embed(context.Background(), "resume")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vec) != 2 || vec[0] != 0.5 {
		t.Errorf("Embed() = %v", vec)
	}
	if gotReq.Model != "models/text-embedding-004" {
		t.Errorf("model = %q", gotReq.Model)
	}
}

func TestGemini_InvalidKeyIsConfigurationError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":{"code":400,"message":"API key not valid.","details":[{"reason":"API_KEY_INVALID"}]}}`)
	}))
	defer srv.Close()

	_, err := NewGeminiClient("bad", "m", "").WithBaseURL(srv.URL).Generate(context.Background(), "x")
	var cfgErr *config.ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected *config.ConfigurationError, got %v", err)
	}
	if cfgErr.Key != "gemini.api_key" {
		t.Errorf("Key = %q", cfgErr.Key)
	}
}

func TestGemini_RateLimitRetry(t *testing.T) {
	noBackoff(t)
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, `{"candidates":[{"content":{"parts":[{"text":"ok"}]}}]}`)
	}))
	defer srv.Close()

	out, err := NewGeminiClient("k", "m", "").WithBaseURL(srv.URL).Generate(context.Background(), "x")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if out != "ok" || calls.Load() != 2 {
		t.Errorf("out = %q after %d calls", out, calls.Load())
	}
}

func TestGemini_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := NewGeminiClient("k", "m", "").WithBaseURL(srv.URL).Generate(context.Background(), "x")
	if err == nil {
		t.Fatal("expected error")
	}
	var cfgErr *config.ConfigurationError
	if errors.As(err, &cfgErr) {
		t.Errorf("500 must not be a configuration error")
	}
}
