package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cngjsskaisme/folio/internal/query"
	"github.com/cngjsskaisme/folio/internal/retrieval"
	"github.com/cngjsskaisme/folio/internal/storage"
)

// ErrEmptyQuestion is returned by Ask and Recall for blank input.
var ErrEmptyQuestion = errors.New("question is empty")

// AnswerComposer turns retrieved rows into the final answer text.
type AnswerComposer interface {
	Compose(ctx context.Context, question string, rows []retrieval.Row) (string, error)
}

// Recorder persists handled questions. *storage.Store implements it.
type Recorder interface {
	SaveInteraction(ctx context.Context, i storage.Interaction) error
}

// Answer is the outcome of Ask.
type Answer struct {
	ID       string                `json:"id"`
	Text     string                `json:"answer"`
	Query    query.StructuredQuery `json:"query"`
	Attempts int                   `json:"attempts"`
	Fallback bool                  `json:"fallback"`
	Rows     []retrieval.Row       `json:"rows"`
	Duration time.Duration         `json:"duration_ns"`
}

// Asker answers questions end to end: retry loop, composition and recording.
type Asker struct {
	controller *Controller
	composer   AnswerComposer
	recorder   Recorder
	logger     *slog.Logger
}

// NewAsker wires an Asker. recorder may be nil.
func NewAsker(ctrl *Controller, comp AnswerComposer, recorder Recorder) *Asker {
	return &Asker{controller: ctrl, composer: comp, recorder: recorder, logger: slog.Default()}
}

// Recall runs only the retry loop and returns the rows it produced.
func (a *Asker) Recall(ctx context.Context, question string) (Result, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return Result{}, ErrEmptyQuestion
	}
	return a.controller.Run(ctx, question)
}

// Ask answers question. Terminal failures are recorded as failed
// interactions and returned unchanged.
func (a *Asker) Ask(ctx context.Context, question string) (Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return Answer{}, ErrEmptyQuestion
	}

	start := time.Now()
	ans := Answer{ID: uuid.New().String()}

	res, err := a.controller.Run(ctx, question)
	ans.Query, ans.Attempts, ans.Fallback = res.Query, res.Attempts, res.Fallback
	if err == nil {
		ans.Rows = res.Rows
		Report(ctx, "Composing the answer from %d result(s)...", len(res.Rows))
		ans.Text, err = a.composer.Compose(ctx, question, res.Rows)
	}
	ans.Duration = time.Since(start)

	if err != nil {
		a.logger.Error("question failed",
			"id", ans.ID, "attempts", ans.Attempts, "fallback", ans.Fallback,
			"duration", ans.Duration, "error", err)
		a.record(ctx, question, ans, err)
		return ans, err
	}

	a.logger.Info("question answered",
		"id", ans.ID, "attempts", ans.Attempts, "fallback", ans.Fallback,
		"rows", len(ans.Rows), "duration", ans.Duration)
	a.record(ctx, question, ans, nil)
	return ans, nil
}

func (a *Asker) record(ctx context.Context, question string, ans Answer, failure error) {
	if a.recorder == nil {
		return
	}
	i := storage.Interaction{
		ID:           ans.ID,
		CreatedAt:    time.Now(),
		Question:     question,
		Attempts:     ans.Attempts,
		UsedFallback: ans.Fallback,
		Answer:       ans.Text,
		Status:       storage.StatusAnswered,
		DurationMs:   ans.Duration.Milliseconds(),
	}
	if len(ans.Query.QueryTexts) > 0 {
		i.GeneratedQuery = ans.Query.String()
	}
	if failure != nil {
		i.Status = storage.StatusFailed
		i.ErrorText = failure.Error()
	}

	// Record even when the caller has gone away.
	if err := a.recorder.SaveInteraction(context.WithoutCancel(ctx), i); err != nil {
		a.logger.Warn("failed to record interaction", "id", ans.ID, "error", err)
	}
}
