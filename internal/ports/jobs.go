package ports

import (
	"context"

	"antygravity/internal/domain"
)

type BatchJob struct {
	ID      string
	BatchID string
}

// JobRepository supports claiming and updating batch jobs.
type JobRepository interface {
	ClaimNext(ctx context.Context) (job BatchJob, found bool, err error)
	LoadBatch(ctx context.Context, batchID string) (domain.Batch, error)
	UpdateBatchProgress(ctx context.Context, batchID string, progress float64) error
	MarkCompleted(ctx context.Context, jobID string) error
	MarkFailed(ctx context.Context, jobID string, reason string) error
	StartJobForBatch(ctx context.Context, batchID string) (jobID string, err error)
}
