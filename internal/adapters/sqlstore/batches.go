package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"antygravity/internal/domain"
)

const batchColumns = `id, user_id, policy_version, status, progress, total, descriptors, last_error, created_at, started_at, finished_at`

// CreateBatch stores the batch and its queued job in one transaction.
func (s *Store) CreateBatch(ctx context.Context, userID, policyVersion string, descriptors []domain.AppDescriptor) (string, error) {
	payload, err := json.Marshal(descriptors)
	if err != nil {
		return "", err
	}
	batchID := uuid.NewString()
	now := s.stamp()
	err = s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO privacy_batches (id, user_id, policy_version, status, progress, total, descriptors, last_error, created_at)
			VALUES (?, ?, ?, 'queued', 0, ?, ?, '', ?)`,
			batchID, userID, policyVersion, len(descriptors), string(payload), now); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `INSERT INTO batch_jobs (id, batch_id, status, attempts, queued_at) VALUES (?, ?, 'queued', 0, ?)`,
			uuid.NewString(), batchID, now)
		return err
	})
	if err != nil {
		return "", err
	}
	return batchID, nil
}

func (s *Store) GetBatch(ctx context.Context, userID, batchID string) (domain.Batch, error) {
	b, err := scanBatch(s.db.QueryRowContext(ctx,
		`SELECT `+batchColumns+` FROM privacy_batches WHERE id = ? AND user_id = ?`, batchID, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Batch{}, domain.ErrNotFound
	}
	return b, err
}

// LoadBatch reads a batch regardless of owner; workers use it.
func (s *Store) LoadBatch(ctx context.Context, batchID string) (domain.Batch, error) {
	b, err := scanBatch(s.db.QueryRowContext(ctx,
		`SELECT `+batchColumns+` FROM privacy_batches WHERE id = ?`, batchID))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Batch{}, domain.ErrNotFound
	}
	return b, err
}

func scanBatch(row rowScanner) (domain.Batch, error) {
	var (
		b                 domain.Batch
		payload           string
		created           int64
		started, finished sql.NullInt64
	)
	err := row.Scan(&b.ID, &b.UserID, &b.PolicyVersion, &b.Status, &b.Progress, &b.Total,
		&payload, &b.LastError, &created, &started, &finished)
	if err != nil {
		return b, err
	}
	if err := json.Unmarshal([]byte(payload), &b.Descriptors); err != nil {
		return b, fmt.Errorf("decode descriptors: %w", err)
	}
	b.CreatedAt = fromMicros(created)
	b.StartedAt = fromNullMicros(started)
	b.FinishedAt = fromNullMicros(finished)
	return b, nil
}
