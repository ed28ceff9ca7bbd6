package sqlstore

import (
	"context"
	"database/sql"
	"errors"

	"antygravity/internal/domain"
	"antygravity/internal/ports"
)

// ClaimNext takes the oldest queued job and marks it running. The status
// guard on the UPDATE keeps two claimers from taking the same job.
func (s *Store) ClaimNext(ctx context.Context) (job ports.BatchJob, found bool, err error) {
	err = s.inTx(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, `
			SELECT id, batch_id FROM batch_jobs
			WHERE status = 'queued'
			ORDER BY queued_at, id
			LIMIT 1`+s.forUpdate(true)).Scan(&job.ID, &job.BatchID)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		found, err = s.startJob(ctx, tx, job)
		return err
	})
	if err != nil {
		return ports.BatchJob{}, false, err
	}
	return job, found, nil
}

// StartJobForBatch claims the queued job of one batch and returns its id.
// It fails with domain.ErrNotFound when a worker already took it.
func (s *Store) StartJobForBatch(ctx context.Context, batchID string) (string, error) {
	job := ports.BatchJob{BatchID: batchID}
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, `
			SELECT id FROM batch_jobs
			WHERE batch_id = ? AND status = 'queued'`+s.forUpdate(true), batchID).Scan(&job.ID)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrNotFound
		}
		if err != nil {
			return err
		}
		ok, err := s.startJob(ctx, tx, job)
		if err == nil && !ok {
			err = domain.ErrNotFound
		}
		return err
	})
	if err != nil {
		return "", err
	}
	return job.ID, nil
}

func (s *Store) startJob(ctx context.Context, tx *sql.Tx, job ports.BatchJob) (bool, error) {
	now := s.stamp()
	res, err := tx.ExecContext(ctx, `
		UPDATE batch_jobs SET status = 'running', started_at = ?, attempts = attempts + 1
		WHERE id = ? AND status = 'queued'`, now, job.ID)
	if err != nil {
		return false, err
	}
	if n, err := res.RowsAffected(); err != nil || n == 0 {
		return false, err
	}
	_, err = tx.ExecContext(ctx, `
		UPDATE privacy_batches SET status = 'running', started_at = COALESCE(started_at, ?)
		WHERE id = ?`, now, job.BatchID)
	return err == nil, err
}

func (s *Store) UpdateBatchProgress(ctx context.Context, batchID string, progress float64) error {
	if progress < 0 {
		progress = 0
	}
	if progress > 1 {
		progress = 1
	}
	_, err := s.db.ExecContext(ctx, `UPDATE privacy_batches SET progress = ? WHERE id = ?`, progress, batchID)
	return err
}

func (s *Store) MarkCompleted(ctx context.Context, jobID string) error {
	return s.finishJob(ctx, jobID, domain.StatusCompleted, "")
}

func (s *Store) MarkFailed(ctx context.Context, jobID string, reason string) error {
	return s.finishJob(ctx, jobID, domain.StatusFailed, reason)
}

// finishJob moves a job and its batch to a terminal status atomically.
func (s *Store) finishJob(ctx context.Context, jobID, status, reason string) error {
	now := s.stamp()
	return s.inTx(ctx, func(tx *sql.Tx) error {
		var batchID string
		if err := tx.QueryRowContext(ctx, `SELECT batch_id FROM batch_jobs WHERE id = ?`, jobID).Scan(&batchID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return domain.ErrNotFound
			}
			return err
		}
		if _, err := tx.ExecContext(ctx, `UPDATE batch_jobs SET status = ?, finished_at = ? WHERE id = ?`, status, now, jobID); err != nil {
			return err
		}
		q := `UPDATE privacy_batches SET status = ?, last_error = ?, finished_at = ? WHERE id = ?`
		if status == domain.StatusCompleted {
			q = `UPDATE privacy_batches SET status = ?, last_error = ?, finished_at = ?, progress = 1 WHERE id = ?`
		}
		_, err := tx.ExecContext(ctx, q, status, reason, now, batchID)
		return err
	})
}
