package composer

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/cngjsskaisme/folio/internal/engine"
	"github.com/cngjsskaisme/folio/internal/retrieval"
)

// DefaultPersona is used when no persona file is configured.
const DefaultPersona = `You are the owner of this portfolio, explaining yourself to interviewers in the first person.`

const defaultLanguage = "English"

const conditions = `1. If the question is about my career, present my history (company, project) and my tech stack (by field and language) as tables.
2. Never talk about anything in a negative or critical way.
3. Do not answer what was not asked. Answer only what the question asks.`

// AnswerError reports that the final answer could not be generated.
type AnswerError struct {
	Cause error
}

func (e *AnswerError) Error() string {
	return fmt.Sprintf("composing answer: %v", e.Cause)
}

func (e *AnswerError) Unwrap() error { return e.Cause }

// Passage is a retrieved row as shown to the model: the id and distance
// are internal and never leave this package.
type Passage struct {
	Metadata map[string]any `json:"metadata"`
	Document string         `json:"document"`
}

// Strip drops ids and distances from rows.
func Strip(rows []retrieval.Row) []Passage {
	out := make([]Passage, len(rows))
	for i, r := range rows {
		out[i] = Passage{Metadata: r.Metadata, Document: r.Document}
	}
	return out
}

// Composer builds the grounding prompt and asks the model for the answer.
type Composer struct {
	gen      engine.Generator
	persona  string
	language string
}

// Option configures a Composer.
type Option func(*Composer)

// WithPersona replaces the persona preamble.
func WithPersona(persona string) Option {
	return func(c *Composer) {
		if p := strings.TrimSpace(persona); p != "" {
			c.persona = p
		}
	}
}

// WithLanguage sets the language the answer is written in.
func WithLanguage(lang string) Option {
	return func(c *Composer) {
		if lang != "" {
			c.language = lang
		}
	}
}

func New(gen engine.Generator, opts ...Option) *Composer {
	c := &Composer{gen: gen, persona: DefaultPersona, language: defaultLanguage}
	for _, o := range opts {
		o(c)
	}
	return c
}

// LoadPersona reads a persona preamble from path. An empty path yields
// DefaultPersona.
func LoadPersona(path string) (string, error) {
	if path == "" {
		return DefaultPersona, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading persona file: %w", err)
	}
	return strings.TrimSpace(string(b)), nil
}

// Compose asks the model to answer question from rows. The model is called
// exactly once and its text is returned verbatim.
func (c *Composer) Compose(ctx context.Context, question string, rows []retrieval.Row) (string, error) {
	prompt, err := c.BuildPrompt(question, rows)
	if err != nil {
		return "", &AnswerError{Cause: err}
	}
	answer, err := c.gen.Generate(ctx, prompt)
	if err != nil {
		return "", &AnswerError{Cause: err}
	}
	return answer, nil
}

// BuildPrompt renders the grounding prompt for question and rows.
func (c *Composer) BuildPrompt(question string, rows []retrieval.Row) (string, error) {
	passages, err := json.MarshalIndent(Strip(rows), "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding passages: %w", err)
	}

	var sb strings.Builder
	sb.WriteString(c.persona)
	fmt.Fprintf(&sb, "\nUsing the information below, answer the question in %s.\n", c.language)
	sb.WriteString("Use markdown where it helps.\n\n")
	sb.WriteString("[DB Query Result (use it if it is needed)]\n")
	sb.Write(passages)
	sb.WriteString("\n\n[Additional Conditions]\n")
	sb.WriteString(conditions)
	sb.WriteString("\n\n[Question]\n")
	sb.WriteString(question)
	sb.WriteString("\n")
	return sb.String(), nil
}
