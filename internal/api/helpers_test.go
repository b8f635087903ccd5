package api

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/cngjsskaisme/folio/internal/pipeline"
	"github.com/cngjsskaisme/folio/internal/storage"
)

const testToken = "test-token-12345"

type mockAsker struct {
	mu        sync.Mutex
	questions []string
	askFn     func(ctx context.Context, q string) (pipeline.Answer, error)
	recallFn  func(ctx context.Context, q string) (pipeline.Result, error)
}

func (m *mockAsker) Ask(ctx context.Context, q string) (pipeline.Answer, error) {
	m.mu.Lock()
	m.questions = append(m.questions, q)
	m.mu.Unlock()
	return m.askFn(ctx, q)
}

func (m *mockAsker) Recall(ctx context.Context, q string) (pipeline.Result, error) {
	return m.recallFn(ctx, q)
}

func openTestStore(t *testing.T) *storage.Store {
	t.Helper()
	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func authReq(method, url, body, token string) *http.Request {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, url, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}
