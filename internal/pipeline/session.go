package pipeline

import "strings"

// State is a step of the retry state machine.
type State int

const (
	StateSynthesizing State = iota
	StateValidating
	StateSucceeded
	StateRetrying
	StateFallback
)

func (s State) String() string {
	switch s {
	case StateSynthesizing:
		return "synthesizing"
	case StateValidating:
		return "validating"
	case StateSucceeded:
		return "succeeded"
	case StateRetrying:
		return "retrying"
	case StateFallback:
		return "fallback"
	default:
		return "unknown"
	}
}

// Session tracks the attempts made for one question. It is owned by a
// single Controller.Run call and never shared.
type Session struct {
	Attempt     int
	MaxAttempts int
	State       State

	// Errors holds failure descriptions, most recent first.
	Errors []string
}

func newSession(maxAttempts int) *Session {
	return &Session{MaxAttempts: maxAttempts, State: StateSynthesizing}
}

// fail records err as the most recent failure and advances the attempt.
// Errors is replaced, never mutated in place, so earlier snapshots stay valid.
func (s *Session) fail(err error) {
	errs := make([]string, 0, len(s.Errors)+1)
	errs = append(errs, err.Error())
	s.Errors = append(errs, s.Errors...)
	s.Attempt++
	if s.exhausted() {
		s.State = StateFallback
	} else {
		s.State = StateRetrying
	}
}

func (s *Session) exhausted() bool {
	return s.Attempt >= s.MaxAttempts
}

// ErrorContext joins the recorded errors, most recent first, for the
// next synthesis prompt.
func (s *Session) ErrorContext() string {
	return strings.Join(s.Errors, "\n")
}
