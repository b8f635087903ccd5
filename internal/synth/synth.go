package synth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cngjsskaisme/folio/internal/config"
	"github.com/cngjsskaisme/folio/internal/engine"
	"github.com/cngjsskaisme/folio/internal/query"
)

// SynthesisError reports that the model did not produce a usable query.
// Raw holds the model output when there was one.
type SynthesisError struct {
	Cause error
	Raw   string
}

func (e *SynthesisError) Error() string {
	return fmt.Sprintf("query synthesis: %v", e.Cause)
}

func (e *SynthesisError) Unwrap() error { return e.Cause }

// Synthesizer turns a free-text question into a StructuredQuery using a
// generative model.
type Synthesizer struct {
	gen    engine.Generator
	fields []MetadataField
	logger *slog.Logger
}

// Option configures a Synthesizer.
type Option func(*Synthesizer)

// WithFields overrides the metadata fields advertised to the model.
func WithFields(fields []MetadataField) Option {
	return func(s *Synthesizer) { s.fields = fields }
}

// WithLogger sets the logger used for failed attempts.
func WithLogger(l *slog.Logger) Option {
	return func(s *Synthesizer) { s.logger = l }
}

func New(gen engine.Generator, opts ...Option) *Synthesizer {
	s := &Synthesizer{gen: gen, fields: DefaultFields, logger: slog.Default()}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Synthesize asks the model for a query answering question. errorContext,
// when non-empty, carries the errors of earlier attempts, most recent first.
//
// Rejected credentials are returned as *config.ConfigurationError; every
// other failure is a *SynthesisError.
func (s *Synthesizer) Synthesize(ctx context.Context, question, errorContext string) (query.StructuredQuery, error) {
	raw, err := s.gen.Generate(ctx, BuildPrompt(question, errorContext, s.fields))
	if err != nil {
		var cfgErr *config.ConfigurationError
		if errors.As(err, &cfgErr) {
			return query.StructuredQuery{}, cfgErr
		}
		if ctx.Err() != nil {
			return query.StructuredQuery{}, ctx.Err()
		}
		return query.StructuredQuery{}, &SynthesisError{Cause: fmt.Errorf("generating query: %w", err)}
	}

	q, err := query.Parse(raw)
	if err != nil {
		s.logger.Warn("model returned an unusable query", "error", err, "response", raw)
		return query.StructuredQuery{}, &SynthesisError{Cause: err, Raw: raw}
	}
	return q, nil
}
