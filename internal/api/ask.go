package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/cngjsskaisme/folio/internal/composer"
	"github.com/cngjsskaisme/folio/internal/config"
	"github.com/cngjsskaisme/folio/internal/pipeline"
	"github.com/cngjsskaisme/folio/internal/retrieval"
)

const maxRequestBodySize = 1 << 20 // 1MB

// Asker answers questions. *pipeline.Asker implements it.
type Asker interface {
	Ask(ctx context.Context, question string) (pipeline.Answer, error)
	Recall(ctx context.Context, question string) (pipeline.Result, error)
}

type AskRequest struct {
	Question string `json:"question"`
}

// NewQueryHandler returns the question-answering routes: a JSON endpoint
// and the WebSocket chat transport.
func NewQueryHandler(asker Asker) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", handleHealth)
	r.Post("/v1/ask", handleAsk(asker))
	r.Get("/api/v1/chat", handleChat(asker))

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func handleAsk(asker Asker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req AskRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}

		ans, err := asker.Ask(r.Context(), req.Question)
		if err != nil {
			code, errType := classify(err)
			httpError(w, code, errType, "%v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(ans)
	}
}

// classify maps a pipeline error to an HTTP status and error type.
func classify(err error) (int, string) {
	var (
		cfgErr *config.ConfigurationError
		rErr   *retrieval.RetrievalError
		aErr   *composer.AnswerError
	)
	switch {
	case errors.Is(err, pipeline.ErrEmptyQuestion):
		return http.StatusBadRequest, "invalid_request_error"
	case errors.As(err, &cfgErr):
		return http.StatusInternalServerError, "configuration_error"
	case errors.As(err, &rErr):
		return http.StatusBadGateway, "retrieval_error"
	case errors.As(err, &aErr):
		return http.StatusBadGateway, "answer_error"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout_error"
	case errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable, "api_error"
	default:
		return http.StatusInternalServerError, "api_error"
	}
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}
