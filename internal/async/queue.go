package async

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Job is one pending processing pass over an uploaded document.
type Job struct {
	ProfileID   uuid.UUID
	DocumentID  uuid.UUID
	Path        string // location of the document bytes on disk
	Filename    string
	SubmittedAt time.Time
}

type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Shutdown(ctx context.Context)
}
