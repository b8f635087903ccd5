package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Interaction statuses.
const (
	StatusAnswered = "answered"
	StatusFailed   = "failed"
)

// Interaction is one question handled by the service, answered or not.
type Interaction struct {
	ID             string
	CreatedAt      time.Time
	Question       string
	GeneratedQuery string // JSON of the query that produced the rows
	Attempts       int
	UsedFallback   bool
	Answer         string
	Status         string
	ErrorText      string
	DurationMs     int64
}

// Document is a crawled or submitted text awaiting (or done with) embedding.
type Document struct {
	ID           string
	Path         string
	Content      string
	ModifiedTime time.Time
	Collection   string // set once the document is in the vector store
	VectorID     string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Job statuses.
const (
	JobPending   = "pending"
	JobRunning   = "running"
	JobCompleted = "completed"
	JobFailed    = "failed"
)

type Job struct {
	ID          string
	Type        string
	PayloadJSON string
	Status      string // "pending", "running", "completed", "failed"
	Attempts    int
	MaxAttempts int
	RunAfter    time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
	LastError   string
}
