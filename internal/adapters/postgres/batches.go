package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"antygravity/internal/domain"
)

const batchColumns = `id, user_id, policy_version, status, progress, total, descriptors, last_error, created_at, started_at, finished_at`

// CreateBatch stores the batch and its queued job in one transaction.
func (db *DB) CreateBatch(ctx context.Context, userID, policyVersion string, descriptors []domain.AppDescriptor) (string, error) {
	payload, err := json.Marshal(descriptors)
	if err != nil {
		return "", err
	}
	var batchID string
	err = db.inTx(ctx, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, `
			INSERT INTO privacy_batches (user_id, policy_version, status, progress, total, descriptors)
			VALUES ($1, $2, 'queued', 0, $3, $4)
			RETURNING id
		`, userID, policyVersion, len(descriptors), payload).Scan(&batchID); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `INSERT INTO batch_jobs (batch_id) VALUES ($1)`, batchID)
		return err
	})
	return batchID, err
}

func (db *DB) GetBatch(ctx context.Context, userID, batchID string) (domain.Batch, error) {
	b, err := scanBatch(db.Pool.QueryRow(ctx,
		`SELECT `+batchColumns+` FROM privacy_batches WHERE id = $1 AND user_id = $2`, batchID, userID))
	if errors.Is(err, pgx.ErrNoRows) || invalidID(err) {
		return domain.Batch{}, domain.ErrNotFound
	}
	return b, err
}

// LoadBatch reads a batch regardless of owner; workers use it.
func (db *DB) LoadBatch(ctx context.Context, batchID string) (domain.Batch, error) {
	b, err := scanBatch(db.Pool.QueryRow(ctx,
		`SELECT `+batchColumns+` FROM privacy_batches WHERE id = $1`, batchID))
	if errors.Is(err, pgx.ErrNoRows) || invalidID(err) {
		return domain.Batch{}, domain.ErrNotFound
	}
	return b, err
}

func scanBatch(row rowScanner) (domain.Batch, error) {
	var (
		b       domain.Batch
		payload []byte
	)
	err := row.Scan(&b.ID, &b.UserID, &b.PolicyVersion, &b.Status, &b.Progress, &b.Total,
		&payload, &b.LastError, &b.CreatedAt, &b.StartedAt, &b.FinishedAt)
	if err != nil {
		return b, err
	}
	if err := json.Unmarshal(payload, &b.Descriptors); err != nil {
		return b, fmt.Errorf("decode descriptors: %w", err)
	}
	return b, nil
}
