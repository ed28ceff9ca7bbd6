package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"antygravity/internal/domain"
	"antygravity/internal/ports"
)

// ClaimNext selects the next queued job using SKIP LOCKED and marks it running.
func (db *DB) ClaimNext(ctx context.Context) (job ports.BatchJob, found bool, err error) {
	err = db.inTx(ctx, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			SELECT id, batch_id FROM batch_jobs
			WHERE status = 'queued'
			ORDER BY queued_at
			FOR UPDATE SKIP LOCKED
			LIMIT 1
		`).Scan(&job.ID, &job.BatchID)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return startJob(ctx, tx, job)
	})
	if err != nil {
		return ports.BatchJob{}, false, err
	}
	return job, found, nil
}

// StartJobForBatch claims the queued job of one batch and returns its id.
// It fails with domain.ErrNotFound when a worker already took it.
func (db *DB) StartJobForBatch(ctx context.Context, batchID string) (string, error) {
	job := ports.BatchJob{BatchID: batchID}
	err := db.inTx(ctx, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			SELECT id FROM batch_jobs
			WHERE batch_id = $1 AND status = 'queued'
			FOR UPDATE SKIP LOCKED
		`, batchID).Scan(&job.ID)
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrNotFound
		}
		if err != nil {
			return err
		}
		return startJob(ctx, tx, job)
	})
	return job.ID, err
}

func startJob(ctx context.Context, tx pgx.Tx, job ports.BatchJob) error {
	if _, err := tx.Exec(ctx, `
		UPDATE batch_jobs SET status='running', started_at=now(), attempts=attempts+1 WHERE id=$1
	`, job.ID); err != nil {
		return err
	}
	_, err := tx.Exec(ctx, `
		UPDATE privacy_batches SET status='running', started_at=COALESCE(started_at, now()) WHERE id=$1
	`, job.BatchID)
	return err
}

func (db *DB) UpdateBatchProgress(ctx context.Context, batchID string, progress float64) error {
	_, err := db.Pool.Exec(ctx, `UPDATE privacy_batches SET progress=$2 WHERE id=$1`, batchID, clampProgress(progress))
	return err
}

func (db *DB) MarkCompleted(ctx context.Context, jobID string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return db.finishJob(ctx, jobID, domain.StatusCompleted, "")
}

func (db *DB) MarkFailed(ctx context.Context, jobID string, reason string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return db.finishJob(ctx, jobID, domain.StatusFailed, reason)
}

// finishJob moves a job and its batch to a terminal status atomically.
func (db *DB) finishJob(ctx context.Context, jobID, status, reason string) error {
	return db.inTx(ctx, func(tx pgx.Tx) error {
		var batchID string
		if err := tx.QueryRow(ctx, `SELECT batch_id FROM batch_jobs WHERE id=$1`, jobID).Scan(&batchID); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `UPDATE batch_jobs SET status=$2, finished_at=now() WHERE id=$1`, jobID, status); err != nil {
			return err
		}
		q := `UPDATE privacy_batches SET status=$2, last_error=$3, finished_at=now() WHERE id=$1`
		if status == domain.StatusCompleted {
			q = `UPDATE privacy_batches SET status=$2, last_error=$3, progress=1, finished_at=now() WHERE id=$1`
		}
		_, err := tx.Exec(ctx, q, batchID, status, reason)
		return err
	})
}

func clampProgress(p float64) float64 {
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}
