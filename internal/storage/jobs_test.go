package storage

import (
	"context"
	"testing"
	"time"
)

func TestEnqueueAndClaimJob(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	job := Job{ID: "j-claim-1", Type: "embed_document", PayloadJSON: `{"document_id":"d1"}`}
	if err := s.EnqueueJob(ctx, job); err != nil {
		t.Fatalf("EnqueueJob: %v", err)
	}

	got, err := s.ClaimNextJob(ctx, []string{"embed_document"})
	if err != nil {
		t.Fatalf("ClaimNextJob: %v", err)
	}
	if got == nil {
		t.Fatal("ClaimNextJob returned nil")
	}
	if got.ID != "j-claim-1" || got.PayloadJSON != `{"document_id":"d1"}` {
		t.Errorf("ClaimNextJob() = %+v", got)
	}
	if got.Status != JobRunning {
		t.Errorf("Status = %q, want %q", got.Status, JobRunning)
	}
	if got.MaxAttempts != 3 {
		t.Errorf("MaxAttempts = %d, want 3", got.MaxAttempts)
	}
}

func TestClaimNextJob_Empty(t *testing.T) {
	s := openTestStore(t)

	got, err := s.ClaimNextJob(context.Background(), []string{"embed_document"})
	if err != nil {
		t.Fatalf("ClaimNextJob: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil, got %+v", got)
	}
}

func TestClaimNextJob_RespectRunAfter(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	job := Job{ID: "j-future", Type: "x", PayloadJSON: `{}`, RunAfter: time.Now().Add(time.Hour)}
	if err := s.EnqueueJob(ctx, job); err != nil {
		t.Fatalf("EnqueueJob: %v", err)
	}
	got, err := s.ClaimNextJob(ctx, []string{"x"})
	if err != nil {
		t.Fatalf("ClaimNextJob: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil for future run_after, got %+v", got)
	}
}

func TestClaimNextJob_TypeFilterAndSkipsRunning(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	s.EnqueueJob(ctx, Job{ID: "j-a", Type: "a", PayloadJSON: `{}`})
	s.EnqueueJob(ctx, Job{ID: "j-b", Type: "b", PayloadJSON: `{}`})

	got, err := s.ClaimNextJob(ctx, []string{"a"})
	if err != nil || got == nil || got.ID != "j-a" {
		t.Fatalf("ClaimNextJob(a) = %+v, %v", got, err)
	}
	got, err = s.ClaimNextJob(ctx, []string{"a"})
	if err != nil || got != nil {
		t.Errorf("running job claimed twice: %+v, %v", got, err)
	}
}

func TestCompleteJob(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	s.EnqueueJob(ctx, Job{ID: "j-complete", Type: "x", PayloadJSON: `{}`})
	s.ClaimNextJob(ctx, []string{"x"})
	if err := s.CompleteJob(ctx, "j-complete"); err != nil {
		t.Fatalf("CompleteJob: %v", err)
	}

	counts, err := s.JobCounts(ctx)
	if err != nil {
		t.Fatalf("JobCounts: %v", err)
	}
	if counts[JobCompleted] != 1 {
		t.Errorf("counts = %v", counts)
	}
}

func TestFailJob_RetriesThenFails(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	s.EnqueueJob(ctx, Job{ID: "j-fail", Type: "x", PayloadJSON: `{}`, MaxAttempts: 2})
	s.ClaimNextJob(ctx, []string{"x"})

	before := time.Now().UTC()
	if err := s.FailJob(ctx, "j-fail", "something broke"); err != nil {
		t.Fatalf("FailJob: %v", err)
	}

	var status, lastError, runAfterStr string
	var attempts int
	err := s.db.QueryRow(`SELECT status, attempts, last_error, run_after FROM jobs WHERE id = 'j-fail'`).
		Scan(&status, &attempts, &lastError, &runAfterStr)
	if err != nil {
		t.Fatalf("SELECT: %v", err)
	}
	if status != JobPending || attempts != 1 || lastError != "something broke" {
		t.Errorf("after first failure: status=%q attempts=%d last_error=%q", status, attempts, lastError)
	}
	runAfter, err := time.Parse(time.RFC3339, runAfterStr)
	if err != nil {
		t.Fatalf("parsing run_after: %v", err)
	}
	if !runAfter.After(before) {
		t.Errorf("run_after %v should be after %v", runAfter, before)
	}

	if err := s.FailJob(ctx, "j-fail", "fatal"); err != nil {
		t.Fatalf("FailJob: %v", err)
	}
	s.db.QueryRow(`SELECT status FROM jobs WHERE id = 'j-fail'`).Scan(&status)
	if status != JobFailed {
		t.Errorf("status = %q, want %q", status, JobFailed)
	}
}
