package pipeline

import (
	"errors"
	"testing"
)

func TestSession_Transitions(t *testing.T) {
	s := newSession(2)
	if s.State != StateSynthesizing || s.exhausted() {
		t.Fatalf("new session = %+v", s)
	}

	s.fail(errors.New("one"))
	if s.State != StateRetrying || s.Attempt != 1 {
		t.Errorf("after first failure: %+v", s)
	}

	snapshot := s.Errors
	s.fail(errors.New("two"))
	if s.State != StateFallback || !s.exhausted() {
		t.Errorf("after second failure: %+v", s)
	}
	if s.ErrorContext() != "two\none" {
		t.Errorf("ErrorContext() = %q", s.ErrorContext())
	}
	if len(snapshot) != 1 || snapshot[0] != "one" {
		t.Errorf("earlier snapshot was mutated: %v", snapshot)
	}
}

func TestState_String(t *testing.T) {
	for s, want := range map[State]string{
		StateSynthesizing: "synthesizing",
		StateValidating:   "validating",
		StateSucceeded:    "succeeded",
		StateRetrying:     "retrying",
		StateFallback:     "fallback",
		State(42):         "unknown",
	} {
		if got := s.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", s, got, want)
		}
	}
}
