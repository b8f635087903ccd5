package pipeline

import (
	"context"
	"fmt"
)

// ProgressFunc receives short status lines while a question is in flight.
// It is called from the goroutine running the question.
type ProgressFunc func(status string)

type progressKey struct{}

// WithProgress returns a context whose questions report their stages to fn.
func WithProgress(ctx context.Context, fn ProgressFunc) context.Context {
	return context.WithValue(ctx, progressKey{}, fn)
}

// Report sends a status line to the ProgressFunc carried by ctx, if any.
func Report(ctx context.Context, format string, args ...any) {
	if fn, ok := ctx.Value(progressKey{}).(ProgressFunc); ok && fn != nil {
		fn(fmt.Sprintf(format, args...))
	}
}
