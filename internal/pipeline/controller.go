package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cngjsskaisme/folio/internal/config"
	"github.com/cngjsskaisme/folio/internal/query"
	"github.com/cngjsskaisme/folio/internal/retrieval"
)

const (
	DefaultMaxAttempts = 3
	DefaultPause       = 2 * time.Second
)

// Synthesizer produces a structured query for a question.
type Synthesizer interface {
	Synthesize(ctx context.Context, question, errorContext string) (query.StructuredQuery, error)
}

// Retriever executes a structured query.
type Retriever interface {
	Retrieve(ctx context.Context, q query.StructuredQuery) ([]retrieval.Row, error)
}

// Result is the outcome of a successful Run.
type Result struct {
	Rows     []retrieval.Row
	Query    query.StructuredQuery
	Attempts int  // synthesis calls made
	Fallback bool // rows came from the fallback query
	Errors   []string
}

// Controller runs the bounded synthesize-and-retrieve loop for a question,
// feeding every failure back to the synthesizer and falling back to a plain
// similarity query once MaxAttempts syntheses have failed.
type Controller struct {
	synth       Synthesizer
	exec        Retriever
	maxAttempts int
	pause       time.Duration
	defaultN    int
	logger      *slog.Logger
}

// Option configures a Controller.
type Option func(*Controller)

// WithMaxAttempts sets how many syntheses are tried before falling back.
func WithMaxAttempts(n int) Option {
	return func(c *Controller) {
		if n > 0 {
			c.maxAttempts = n
		}
	}
}

// WithPause sets the wait between a failed attempt and the next one.
func WithPause(d time.Duration) Option {
	return func(c *Controller) {
		if d >= 0 {
			c.pause = d
		}
	}
}

// WithDefaultNResults sets the result count of the fallback query.
func WithDefaultNResults(n int) Option {
	return func(c *Controller) {
		if n > 0 {
			c.defaultN = n
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

func NewController(s Synthesizer, r Retriever, opts ...Option) *Controller {
	c := &Controller{
		synth:       s,
		exec:        r,
		maxAttempts: DefaultMaxAttempts,
		pause:       DefaultPause,
		defaultN:    query.DefaultNResults,
		logger:      slog.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Run retrieves rows for question.
//
// Synthesis and retrieval failures are retried up to MaxAttempts, then the
// fallback query runs once; if it fails, the *retrieval.RetrievalError is
// returned. A *config.ConfigurationError or a cancelled ctx ends the run
// immediately.
func (c *Controller) Run(ctx context.Context, question string) (Result, error) {
	sess := newSession(c.maxAttempts)

	for !sess.exhausted() {
		if sess.Attempt > 0 {
			if err := c.wait(ctx); err != nil {
				return Result{}, err
			}
			Report(ctx, "Refining the search (attempt %d of %d)...", sess.Attempt+1, c.maxAttempts)
		}

		sess.State = StateSynthesizing
		var errCtx string
		if sess.Attempt > 0 {
			errCtx = sess.ErrorContext()
		}
		q, err := c.synth.Synthesize(ctx, question, errCtx)
		if err != nil {
			if abort := fatal(ctx, err); abort != nil {
				return Result{}, abort
			}
			sess.fail(err)
			c.logger.Warn("query synthesis failed", "attempt", sess.Attempt, "error", err)
			continue
		}

		sess.State = StateValidating
		rows, err := c.exec.Retrieve(ctx, q)
		if err != nil {
			if abort := fatal(ctx, err); abort != nil {
				return Result{}, abort
			}
			sess.fail(err)
			c.logger.Warn("retrieval failed", "attempt", sess.Attempt, "query", q.String(), "error", err)
			continue
		}

		sess.State = StateSucceeded
		return Result{Rows: rows, Query: q, Attempts: sess.Attempt + 1, Errors: sess.Errors}, nil
	}

	sess.State = StateFallback
	q := query.Fallback(question, c.defaultN)
	c.logger.Info("attempt limit reached, using fallback query", "attempts", sess.Attempt)
	Report(ctx, "Falling back to a broad search...")

	res := Result{Query: q, Attempts: sess.Attempt, Fallback: true, Errors: sess.Errors}
	rows, err := c.exec.Retrieve(ctx, q)
	if err != nil {
		if abort := fatal(ctx, err); abort != nil {
			return res, abort
		}
		var rErr *retrieval.RetrievalError
		if !errors.As(err, &rErr) {
			err = &retrieval.RetrievalError{Cause: err}
		}
		return res, err
	}
	res.Rows = rows
	return res, nil
}

// wait pauses between attempts without outliving ctx.
func (c *Controller) wait(ctx context.Context) error {
	if c.pause <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(c.pause)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// fatal returns the error that should end the run, or nil if err is
// recoverable.
func fatal(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	var cfgErr *config.ConfigurationError
	if errors.As(err, &cfgErr) {
		return cfgErr
	}
	return nil
}
