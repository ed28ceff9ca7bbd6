// Package batchrunner claims queued batch jobs and scores their apps.
package batchrunner

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"antygravity/internal/ports"
	"antygravity/internal/scoring"
)

// BatchProcessor performs the work for a job's batch id.
type BatchProcessor interface {
	Process(ctx context.Context, batchID string) error
}

// Scorer checks every descriptor of a batch under the batch's pinned policy
// version and stores each result linked to the batch.
type Scorer struct {
	Jobs    ports.JobRepository
	Checks  ports.CheckRepository
	Scoring *scoring.Service
}

func (s Scorer) Process(ctx context.Context, batchID string) error {
	b, err := s.Jobs.LoadBatch(ctx, batchID)
	if err != nil {
		return err
	}
	total := len(b.Descriptors)
	// The failure reason carries how many results were already saved.
	partial := func(saved int, err error) error {
		return fmt.Errorf("%w (%d of %d results saved)", err, saved, total)
	}
	for i, d := range b.Descriptors {
		if err := ctx.Err(); err != nil {
			return partial(i, err)
		}
		res, err := s.Scoring.Check(d, b.PolicyVersion)
		if err != nil {
			return partial(i, fmt.Errorf("app %d (%s): %w", i, d.PackageName, err))
		}
		if _, err := s.Checks.SaveCheck(ctx, b.UserID, &b.ID, res); err != nil {
			return partial(i, fmt.Errorf("app %d (%s): save: %w", i, d.PackageName, err))
		}
		if err := s.Jobs.UpdateBatchProgress(ctx, batchID, float64(i+1)/float64(total)); err != nil {
			return partial(i+1, err)
		}
	}
	return nil
}

// Run starts a dispatcher and concurrency workers that claim and process
// jobs until ctx is cancelled. The returned channel closes once every worker
// has exited.
func Run(ctx context.Context, repo ports.JobRepository, processor BatchProcessor, concurrency int, pollInterval time.Duration, log *slog.Logger) <-chan struct{} {
	done := make(chan struct{})
	if concurrency < 1 {
		close(done)
		return done
	}
	if log == nil {
		log = slog.Default()
	}
	jobsCh := make(chan ports.BatchJob, concurrency)

	go func() {
		defer close(jobsCh)
		ticker := time.NewTicker(pollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			for {
				job, found, err := repo.ClaimNext(ctx)
				if err != nil {
					if ctx.Err() == nil {
						log.Error("job claim failed", "err", err)
					}
					break
				}
				if !found {
					break
				}
				select {
				case jobsCh <- job:
				case <-ctx.Done():
					// Claimed but never started; record why.
					failJob(repo, job.ID, "worker shutting down", log)
					return
				}
			}
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			for job := range jobsCh {
				start := time.Now()
				if err := processor.Process(ctx, job.BatchID); err != nil {
					failJob(repo, job.ID, err.Error(), log)
					log.Warn("batch failed", "worker", idx, "job_id", job.ID, "batch_id", job.BatchID, "err", err)
					continue
				}
				if err := repo.MarkCompleted(context.WithoutCancel(ctx), job.ID); err != nil {
					log.Error("batch completion not recorded", "worker", idx, "job_id", job.ID, "err", err)
					continue
				}
				log.Info("batch completed", "worker", idx, "batch_id", job.BatchID, "took", time.Since(start))
			}
		}(i)
	}
	go func() {
		wg.Wait()
		close(done)
	}()
	return done
}

// ProcessInline starts and processes a specific batch synchronously using
// the same processor logic as the background workers.
func ProcessInline(ctx context.Context, repo ports.JobRepository, processor BatchProcessor, batchID string) error {
	jobID, err := repo.StartJobForBatch(ctx, batchID)
	if err != nil {
		return err
	}
	if err := processor.Process(ctx, batchID); err != nil {
		_ = repo.MarkFailed(context.WithoutCancel(ctx), jobID, err.Error())
		return err
	}
	return repo.MarkCompleted(context.WithoutCancel(ctx), jobID)
}

func failJob(repo ports.JobRepository, jobID, reason string, log *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := repo.MarkFailed(ctx, jobID, reason); err != nil {
		log.Error("batch failure not recorded", "job_id", jobID, "err", err)
	}
}
